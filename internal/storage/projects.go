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

const projectColumns = `
	id, budget_item_id, particulars, name, year, status,
	total_budget_allocated, obligated_budget, total_budget_utilized,
	utilization_rate, auto_calculate,
	tally_completed, tally_ongoing, tally_delayed, tally_uncategorized,
	is_deleted, deleted_at, deleted_by, version, created_at, updated_at`

func scanProject(row rowScanner) (*model.Project, error) {
	var (
		p         model.Project
		status    string
		deletedAt sql.NullTime
		deletedBy sql.NullString
	)
	err := row.Scan(
		&p.ID, &p.BudgetItemID, &p.Particulars, &p.Name, &p.Year, &status,
		&p.TotalBudgetAllocated, &p.ObligatedBudget, &p.TotalBudgetUtilized,
		&p.UtilizationRate, &p.AutoCalculate,
		&p.Tallies.Completed, &p.Tallies.Ongoing, &p.Tallies.Delayed, &p.Tallies.Uncategorized,
		&p.IsDeleted, &deletedAt, &deletedBy, &p.Version, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Status = model.Status(status)
	if deletedAt.Valid {
		t := deletedAt.Time
		p.DeletedAt = &t
	}
	p.DeletedBy = deletedBy.String
	return &p, nil
}

// CreateProject inserts a project at version 1.
func (s *SQLiteStorage) CreateProject(ctx context.Context, p *model.Project) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateProject(p); err != nil {
		return err
	}

	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt, p.Version = now, now, 1

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO projects (`+projectColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.BudgetItemID, p.Particulars, p.Name, p.Year, string(p.Status),
		p.TotalBudgetAllocated.String(), p.ObligatedBudget, p.TotalBudgetUtilized.String(),
		p.UtilizationRate, p.AutoCalculate,
		p.Tallies.Completed, p.Tallies.Ongoing, p.Tallies.Delayed, p.Tallies.Uncategorized,
		p.IsDeleted, nullableTime(p.DeletedAt), nullableString(p.DeletedBy), p.Version, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("project %s: %w", p.ID, common.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to create project: %w", err)
	}

	slog.Debug("created project", "id", p.ID, "budget_item_id", p.BudgetItemID)
	return nil
}

// GetProject returns a project by ID, deleted or not.
func (s *SQLiteStorage) GetProject(ctx context.Context, id string) (*model.Project, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.q.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("project %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query project: %w", err)
	}
	return p, nil
}

// ListProjects returns the projects of a budget item in creation order.
func (s *SQLiteStorage) ListProjects(ctx context.Context, budgetItemID string, includeDeleted bool) ([]model.Project, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(budgetItemID, "budgetItemID"); err != nil {
		return nil, err
	}

	query := `SELECT ` + projectColumns + ` FROM projects WHERE budget_item_id = ?`
	if !includeDeleted {
		query += ` AND is_deleted = 0`
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.q.QueryContext(ctx, query, budgetItemID)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var projects []model.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating projects: %w", err)
	}

	return projects, nil
}

// UpdateProject writes every editable field if p.Version still matches,
// then advances p.Version. Soft-delete state is changed only through
// SetProjectDeleted.
func (s *SQLiteStorage) UpdateProject(ctx context.Context, p *model.Project) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateProject(p); err != nil {
		return err
	}

	p.UpdatedAt = time.Now().UTC()
	result, err := s.q.ExecContext(ctx, `
		UPDATE projects SET
			particulars = ?, name = ?, year = ?, status = ?,
			total_budget_allocated = ?, obligated_budget = ?, total_budget_utilized = ?,
			utilization_rate = ?, auto_calculate = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		p.Particulars, p.Name, p.Year, string(p.Status),
		p.TotalBudgetAllocated.String(), p.ObligatedBudget, p.TotalBudgetUtilized.String(),
		p.UtilizationRate, p.AutoCalculate,
		p.UpdatedAt, p.ID, p.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	if err := s.checkVersionedWrite(ctx, result, "projects", p.ID); err != nil {
		return err
	}

	p.Version++
	return nil
}

// SetProjectDeleted soft-deletes or restores a project.
func (s *SQLiteStorage) SetProjectDeleted(ctx context.Context, id string, deleted bool, by string) error {
	return s.setDeleted(ctx, "projects", id, deleted, by)
}

func (s *SQLiteStorage) setDeleted(ctx context.Context, table, id string, deleted bool, by string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	now := time.Now().UTC()
	var (
		deletedAt any
		deletedBy any
	)
	if deleted {
		deletedAt, deletedBy = now, nullableString(by)
	}

	query := fmt.Sprintf(`
		UPDATE %s SET is_deleted = ?, deleted_at = ?, deleted_by = ?,
			version = version + 1, updated_at = ?
		WHERE id = ?`, table)
	result, err := s.q.ExecContext(ctx, query, deleted, deletedAt, deletedBy, now, id)
	if err != nil {
		return fmt.Errorf("failed to update %s deleted flag: %w", table, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%s %s: %w", table, id, common.ErrNotFound)
	}
	return nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
