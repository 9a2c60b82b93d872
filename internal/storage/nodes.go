package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/budget-rollup/internal/common"
	"github.com/Veraticus/budget-rollup/internal/model"
)

// aggregateTables maps aggregate-bearing node types to their tables.
var aggregateTables = map[model.NodeType]string{
	model.NodeBudgetItem: "budget_items",
	model.NodeProject:    "projects",
}

// GetNode returns the aggregate view of a budget item or project.
func (s *SQLiteStorage) GetNode(ctx context.Context, ref model.NodeRef) (*model.Node, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateRef(ref); err != nil {
		return nil, err
	}

	switch ref.Type {
	case model.NodeBudgetItem:
		item, err := s.GetBudgetItem(ctx, ref.ID)
		if err != nil {
			return nil, err
		}
		node := item.Node()
		return &node, nil
	case model.NodeProject:
		project, err := s.GetProject(ctx, ref.ID)
		if err != nil {
			return nil, err
		}
		node := project.Node()
		return &node, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidNodeType, ref.Type)
	}
}

// GetChildren returns every child of parent, soft-deleted ones included,
// in creation order. Filtering is the caller's decision.
func (s *SQLiteStorage) GetChildren(ctx context.Context, parent model.NodeRef) ([]model.ChildRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateRef(parent); err != nil {
		return nil, err
	}

	switch parent.Type {
	case model.NodeBudgetItem:
		projects, err := s.ListProjects(ctx, parent.ID, true)
		if err != nil {
			return nil, err
		}
		children := make([]model.ChildRecord, len(projects))
		for i, p := range projects {
			children[i] = p.Child()
		}
		return children, nil
	case model.NodeProject:
		breakdowns, err := s.ListBreakdowns(ctx, parent.ID, true)
		if err != nil {
			return nil, err
		}
		children := make([]model.ChildRecord, len(breakdowns))
		for i, b := range breakdowns {
			children[i] = b.Child()
		}
		return children, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidNodeType, parent.Type)
	}
}

// PatchNode writes the non-nil fields of patch if the node is still at
// patch.ExpectedVersion, bumping the version. A stale version yields
// common.ErrVersionConflict.
func (s *SQLiteStorage) PatchNode(ctx context.Context, ref model.NodeRef, patch model.NodePatch) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRef(ref); err != nil {
		return err
	}
	table, ok := aggregateTables[ref.Type]
	if !ok {
		return fmt.Errorf("%w: %s", ErrInvalidNodeType, ref.Type)
	}

	var (
		sets []string
		args []any
	)
	if patch.Utilized != nil {
		sets = append(sets, "total_budget_utilized = ?")
		args = append(args, patch.Utilized.String())
	}
	if patch.Obligated != nil {
		sets = append(sets, "obligated_budget = ?")
		args = append(args, patch.Obligated.String())
	}
	if patch.Tallies != nil {
		sets = append(sets,
			"tally_completed = ?", "tally_ongoing = ?", "tally_delayed = ?", "tally_uncategorized = ?")
		args = append(args,
			patch.Tallies.Completed, patch.Tallies.Ongoing, patch.Tallies.Delayed, patch.Tallies.Uncategorized)
	}
	if patch.UtilizationRate != nil {
		sets = append(sets, "utilization_rate = ?")
		args = append(args, *patch.UtilizationRate)
	}
	if patch.AutoCalculate != nil {
		sets = append(sets, "auto_calculate = ?")
		args = append(args, *patch.AutoCalculate)
	}
	if len(sets) == 0 {
		return nil
	}

	sets = append(sets, "version = version + 1", "updated_at = ?")
	args = append(args, time.Now().UTC(), ref.ID, patch.ExpectedVersion)

	query := fmt.Sprintf(`UPDATE %s SET %s WHERE id = ? AND version = ?`, table, strings.Join(sets, ", "))
	result, err := s.q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to patch %s: %w", ref, err)
	}

	return s.checkVersionedWrite(ctx, result, table, ref.ID)
}

// checkVersionedWrite distinguishes a missing row from a stale version
// after an UPDATE ... WHERE version = ? touched nothing.
func (s *SQLiteStorage) checkVersionedWrite(ctx context.Context, result interface{ RowsAffected() (int64, error) }, table, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	var exists int
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE id = ?`, table)
	if err := s.q.QueryRowContext(ctx, query, id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check %s existence: %w", table, err)
	}
	if exists == 0 {
		return fmt.Errorf("%s %s: %w", table, id, common.ErrNotFound)
	}
	return common.Conflict(fmt.Errorf("%s %s: %w", table, id, common.ErrVersionConflict))
}
