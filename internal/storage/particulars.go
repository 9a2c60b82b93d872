package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/budget-rollup/internal/common"
	"github.com/Veraticus/budget-rollup/internal/model"
	"github.com/mattn/go-sqlite3"
)

// CreateParticular inserts a new particular. Codes are unique.
func (s *SQLiteStorage) CreateParticular(ctx context.Context, p *model.Particular) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateParticular(p); err != nil {
		return err
	}

	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO particulars (code, full_name, is_active, is_system_default, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		p.Code, p.FullName, p.IsActive, p.IsSystemDefault, p.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("particular %s: %w", p.Code, common.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to create particular: %w", err)
	}

	slog.Info("created particular", "code", p.Code)
	return nil
}

// GetParticular returns the particular with the given code.
func (s *SQLiteStorage) GetParticular(ctx context.Context, code string) (*model.Particular, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(code, "code"); err != nil {
		return nil, err
	}

	var p model.Particular
	err := s.q.QueryRowContext(ctx, `
		SELECT code, full_name, is_active, is_system_default, created_at
		FROM particulars
		WHERE code = ?`, code).Scan(&p.Code, &p.FullName, &p.IsActive, &p.IsSystemDefault, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("particular %s: %w", code, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query particular: %w", err)
	}

	return &p, nil
}

// ListParticulars returns particulars ordered by code.
func (s *SQLiteStorage) ListParticulars(ctx context.Context, includeInactive bool) ([]model.Particular, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `
		SELECT code, full_name, is_active, is_system_default, created_at
		FROM particulars`
	if !includeInactive {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY code`

	rows, err := s.q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query particulars: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var particulars []model.Particular
	for rows.Next() {
		var p model.Particular
		if err := rows.Scan(&p.Code, &p.FullName, &p.IsActive, &p.IsSystemDefault, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan particular: %w", err)
		}
		particulars = append(particulars, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating particulars: %w", err)
	}

	return particulars, nil
}

// UpdateParticular updates the full name and active flag. The code is the
// key and never changes.
func (s *SQLiteStorage) UpdateParticular(ctx context.Context, p *model.Particular) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateParticular(p); err != nil {
		return err
	}

	result, err := s.q.ExecContext(ctx, `
		UPDATE particulars SET full_name = ?, is_active = ? WHERE code = ?`,
		p.FullName, p.IsActive, p.Code)
	if err != nil {
		return fmt.Errorf("failed to update particular: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("particular %s: %w", p.Code, common.ErrNotFound)
	}
	return nil
}

// DeleteParticular removes a particular. It is refused while any budget
// item references it and for system defaults.
func (s *SQLiteStorage) DeleteParticular(ctx context.Context, code string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	p, err := s.GetParticular(ctx, code)
	if err != nil {
		return err
	}
	if p.IsSystemDefault {
		return fmt.Errorf("particular %s: %w", code, common.ErrSystemParticular)
	}

	usage, err := s.CountParticularUsage(ctx, code)
	if err != nil {
		return err
	}
	if usage > 0 {
		return fmt.Errorf("particular %s used by %d budget items: %w", code, usage, common.ErrParticularInUse)
	}

	if _, err := s.q.ExecContext(ctx, `DELETE FROM particulars WHERE code = ?`, code); err != nil {
		return fmt.Errorf("failed to delete particular: %w", err)
	}

	slog.Info("deleted particular", "code", code)
	return nil
}

// CountParticularUsage returns how many budget items reference code.
func (s *SQLiteStorage) CountParticularUsage(ctx context.Context, code string) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateString(code, "code"); err != nil {
		return 0, err
	}

	var count int
	err := s.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM budget_items WHERE particular_code = ?`, code).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count particular usage: %w", err)
	}
	return count, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
