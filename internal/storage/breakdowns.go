package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/budget-rollup/internal/common"
	"github.com/Veraticus/budget-rollup/internal/model"
)

const breakdownColumns = `
	id, project_id, name, status, allocated_budget, obligated_budget,
	budget_utilized, balance, utilization_rate,
	date_started, target_date, completion_date,
	is_deleted, deleted_at, deleted_by, version, created_at, updated_at`

func scanBreakdown(row rowScanner) (*model.Breakdown, error) {
	var (
		b                                     model.Breakdown
		status                                string
		started, target, completed, deletedAt sql.NullTime
		deletedBy                             sql.NullString
	)
	err := row.Scan(
		&b.ID, &b.ProjectID, &b.Name, &status, &b.AllocatedBudget, &b.ObligatedBudget,
		&b.BudgetUtilized, &b.Balance, &b.UtilizationRate,
		&started, &target, &completed,
		&b.IsDeleted, &deletedAt, &deletedBy, &b.Version, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.Status = model.Status(status)
	b.DateStarted = timePtr(started)
	b.TargetDate = timePtr(target)
	b.CompletionDate = timePtr(completed)
	b.DeletedAt = timePtr(deletedAt)
	b.DeletedBy = deletedBy.String
	return &b, nil
}

// CreateBreakdown inserts a breakdown at version 1. Balance and rate are
// stored as given; the caller derives them.
func (s *SQLiteStorage) CreateBreakdown(ctx context.Context, b *model.Breakdown) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateBreakdown(b); err != nil {
		return err
	}

	now := time.Now().UTC()
	b.CreatedAt, b.UpdatedAt, b.Version = now, now, 1

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO breakdowns (`+breakdownColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.ProjectID, b.Name, string(b.Status), b.AllocatedBudget.String(), b.ObligatedBudget,
		b.BudgetUtilized.String(), b.Balance.String(), b.UtilizationRate,
		nullableTime(b.DateStarted), nullableTime(b.TargetDate), nullableTime(b.CompletionDate),
		b.IsDeleted, nullableTime(b.DeletedAt), nullableString(b.DeletedBy), b.Version, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("breakdown %s: %w", b.ID, common.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to create breakdown: %w", err)
	}

	slog.Debug("created breakdown", "id", b.ID, "project_id", b.ProjectID)
	return nil
}

// GetBreakdown returns a breakdown by ID, deleted or not.
func (s *SQLiteStorage) GetBreakdown(ctx context.Context, id string) (*model.Breakdown, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.q.QueryRowContext(ctx, `SELECT `+breakdownColumns+` FROM breakdowns WHERE id = ?`, id)
	b, err := scanBreakdown(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("breakdown %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query breakdown: %w", err)
	}
	return b, nil
}

// ListBreakdowns returns the breakdowns of a project in creation order.
func (s *SQLiteStorage) ListBreakdowns(ctx context.Context, projectID string, includeDeleted bool) ([]model.Breakdown, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(projectID, "projectID"); err != nil {
		return nil, err
	}

	query := `SELECT ` + breakdownColumns + ` FROM breakdowns WHERE project_id = ?`
	if !includeDeleted {
		query += ` AND is_deleted = 0`
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.q.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query breakdowns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var breakdowns []model.Breakdown
	for rows.Next() {
		b, err := scanBreakdown(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan breakdown: %w", err)
		}
		breakdowns = append(breakdowns, *b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating breakdowns: %w", err)
	}

	return breakdowns, nil
}

// UpdateBreakdown writes every editable field if b.Version still matches,
// then advances b.Version.
func (s *SQLiteStorage) UpdateBreakdown(ctx context.Context, b *model.Breakdown) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateBreakdown(b); err != nil {
		return err
	}

	b.UpdatedAt = time.Now().UTC()
	result, err := s.q.ExecContext(ctx, `
		UPDATE breakdowns SET
			name = ?, status = ?, allocated_budget = ?, obligated_budget = ?,
			budget_utilized = ?, balance = ?, utilization_rate = ?,
			date_started = ?, target_date = ?, completion_date = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		b.Name, string(b.Status), b.AllocatedBudget.String(), b.ObligatedBudget,
		b.BudgetUtilized.String(), b.Balance.String(), b.UtilizationRate,
		nullableTime(b.DateStarted), nullableTime(b.TargetDate), nullableTime(b.CompletionDate),
		b.UpdatedAt, b.ID, b.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update breakdown: %w", err)
	}
	if err := s.checkVersionedWrite(ctx, result, "breakdowns", b.ID); err != nil {
		return err
	}

	b.Version++
	return nil
}

// SetBreakdownDeleted soft-deletes or restores a breakdown.
func (s *SQLiteStorage) SetBreakdownDeleted(ctx context.Context, id string, deleted bool, by string) error {
	return s.setDeleted(ctx, "breakdowns", id, deleted, by)
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
