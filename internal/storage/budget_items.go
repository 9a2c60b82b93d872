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
	"github.com/Veraticus/budget-rollup/internal/service"
)

const budgetItemColumns = `
	id, particular_code, year, status, total_budget_allocated, obligated_budget,
	total_budget_utilized, utilization_rate, auto_calculate,
	tally_completed, tally_ongoing, tally_delayed, tally_uncategorized,
	version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBudgetItem(row rowScanner) (*model.BudgetItem, error) {
	var (
		item   model.BudgetItem
		year   sql.NullInt64
		status string
	)
	err := row.Scan(
		&item.ID, &item.ParticularCode, &year, &status,
		&item.TotalBudgetAllocated, &item.ObligatedBudget, &item.TotalBudgetUtilized,
		&item.UtilizationRate, &item.AutoCalculate,
		&item.Tallies.Completed, &item.Tallies.Ongoing, &item.Tallies.Delayed, &item.Tallies.Uncategorized,
		&item.Version, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if year.Valid {
		y := int(year.Int64)
		item.Year = &y
	}
	item.Status = model.Status(status)
	return &item, nil
}

// CreateBudgetItem inserts a budget item at version 1.
func (s *SQLiteStorage) CreateBudgetItem(ctx context.Context, item *model.BudgetItem) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateBudgetItem(item); err != nil {
		return err
	}

	now := time.Now().UTC()
	item.CreatedAt, item.UpdatedAt, item.Version = now, now, 1

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO budget_items (`+budgetItemColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.ParticularCode, nullableYear(item.Year), string(item.Status),
		item.TotalBudgetAllocated.String(), item.ObligatedBudget, item.TotalBudgetUtilized.String(),
		item.UtilizationRate, item.AutoCalculate,
		item.Tallies.Completed, item.Tallies.Ongoing, item.Tallies.Delayed, item.Tallies.Uncategorized,
		item.Version, item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("budget item %s: %w", item.ID, common.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to create budget item: %w", err)
	}

	slog.Debug("created budget item", "id", item.ID, "particular", item.ParticularCode)
	return nil
}

// GetBudgetItem returns a budget item by ID.
func (s *SQLiteStorage) GetBudgetItem(ctx context.Context, id string) (*model.BudgetItem, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.q.QueryRowContext(ctx, `SELECT `+budgetItemColumns+` FROM budget_items WHERE id = ?`, id)
	item, err := scanBudgetItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("budget item %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query budget item: %w", err)
	}
	return item, nil
}

// ListBudgetItems returns budget items matching filter, ordered by
// particular then creation time.
func (s *SQLiteStorage) ListBudgetItems(ctx context.Context, filter service.BudgetItemFilter) ([]model.BudgetItem, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `SELECT ` + budgetItemColumns + ` FROM budget_items WHERE 1=1`
	var args []any
	if filter.Year != nil {
		query += ` AND year = ?`
		args = append(args, *filter.Year)
	}
	if filter.ParticularCode != "" {
		query += ` AND particular_code = ?`
		args = append(args, filter.ParticularCode)
	}
	query += ` ORDER BY particular_code, created_at, id`

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query budget items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []model.BudgetItem
	for rows.Next() {
		item, err := scanBudgetItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan budget item: %w", err)
		}
		items = append(items, *item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating budget items: %w", err)
	}

	return items, nil
}

// UpdateBudgetItem writes every editable field if item.Version still
// matches the stored version, then advances item.Version.
func (s *SQLiteStorage) UpdateBudgetItem(ctx context.Context, item *model.BudgetItem) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateBudgetItem(item); err != nil {
		return err
	}

	item.UpdatedAt = time.Now().UTC()
	result, err := s.q.ExecContext(ctx, `
		UPDATE budget_items SET
			particular_code = ?, year = ?, status = ?,
			total_budget_allocated = ?, obligated_budget = ?, total_budget_utilized = ?,
			utilization_rate = ?, auto_calculate = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		item.ParticularCode, nullableYear(item.Year), string(item.Status),
		item.TotalBudgetAllocated.String(), item.ObligatedBudget, item.TotalBudgetUtilized.String(),
		item.UtilizationRate, item.AutoCalculate,
		item.UpdatedAt, item.ID, item.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update budget item: %w", err)
	}
	if err := s.checkVersionedWrite(ctx, result, "budget_items", item.ID); err != nil {
		return err
	}

	item.Version++
	return nil
}

func nullableYear(year *int) any {
	if year == nil {
		return nil
	}
	return *year
}
