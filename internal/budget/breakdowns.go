package budget

import (
	"context"
	"fmt"
	"strings"

	"github.com/Veraticus/budget-rollup/internal/common"
	"github.com/Veraticus/budget-rollup/internal/model"
	"github.com/Veraticus/budget-rollup/internal/money"
	"github.com/Veraticus/budget-rollup/internal/service"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func breakdownSnapshot(b *model.Breakdown) map[string]any {
	return map[string]any{
		"name":            b.Name,
		"status":          string(b.Status),
		"allocatedBudget": b.AllocatedBudget.String(),
		"budgetUtilized":  b.BudgetUtilized.String(),
		"obligatedBudget": nullDecimalString(b.ObligatedBudget),
		"balance":         b.Balance.String(),
		"isDeleted":       b.IsDeleted,
	}
}

// derive sets the breakdown figures that are never taken from input.
func derive(b *model.Breakdown) {
	b.Balance = money.Balance(b.AllocatedBudget, b.BudgetUtilized)
	b.UtilizationRate = money.UtilizationRate(b.BudgetUtilized, b.AllocatedBudget)
}

func breakdownParent(b *model.Breakdown) model.NodeRef {
	return model.NodeRef{Type: model.NodeProject, ID: b.ProjectID}
}

// CreateBreakdown adds a breakdown under an active project and recomputes
// the project and its budget item.
func (s *Service) CreateBreakdown(ctx context.Context, in BreakdownInput) (*BreakdownResult, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := s.check(in); err != nil {
		return nil, err
	}

	b := &model.Breakdown{
		ID:              uuid.NewString(),
		ProjectID:       in.ProjectID,
		Name:            in.Name,
		Status:          model.ParseStatus(in.Status),
		AllocatedBudget: in.Allocated,
		BudgetUtilized:  in.Utilized,
		DateStarted:     in.DateStarted,
		TargetDate:      in.TargetDate,
		CompletionDate:  in.CompletionDate,
	}
	if in.Obligated != nil {
		b.ObligatedBudget = decimal.NewNullDecimal(*in.Obligated)
	}
	derive(b)

	result := &BreakdownResult{Breakdown: b}
	err := s.inTx(ctx, func(tx service.Transaction) error {
		project, err := tx.GetProject(ctx, in.ProjectID)
		if err != nil {
			return err
		}
		if project.IsDeleted {
			return fmt.Errorf("project %s: %w", project.ID, common.ErrParentDeleted)
		}

		result.Allocation, err = breakdownAllocation(ctx, tx, project.ID, "", b.AllocatedBudget)
		if err != nil {
			return err
		}

		if err := tx.CreateBreakdown(ctx, b); err != nil {
			return err
		}
		ref := b.Child().Ref
		if err := record(ctx, tx, ref, model.ActionCreate, nil, breakdownSnapshot(b), ""); err != nil {
			return err
		}

		result.Cascade, err = s.updater.RecomputeTx(ctx, tx, breakdownParent(b))
		return err
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// GetBreakdown returns a breakdown by ID, deleted or not.
func (s *Service) GetBreakdown(ctx context.Context, id string) (*model.Breakdown, error) {
	return s.store.GetBreakdown(ctx, id)
}

// ListBreakdowns returns the breakdowns of a project.
func (s *Service) ListBreakdowns(ctx context.Context, projectID string, includeDeleted bool) ([]model.Breakdown, error) {
	return s.store.ListBreakdowns(ctx, projectID, includeDeleted)
}

// UpdateBreakdown edits a breakdown, re-derives its balance and rate, and
// recomputes the project and budget item above it.
func (s *Service) UpdateBreakdown(ctx context.Context, id string, in BreakdownUpdate) (*BreakdownResult, error) {
	if err := s.check(in); err != nil {
		return nil, err
	}

	result := &BreakdownResult{}
	err := s.inTx(ctx, func(tx service.Transaction) error {
		b, err := tx.GetBreakdown(ctx, id)
		if err != nil {
			return err
		}
		if b.IsDeleted {
			return fmt.Errorf("breakdown %s is deleted: %w", id, common.ErrInvalidInput)
		}

		previous := breakdownSnapshot(b)
		if in.Name != nil {
			b.Name = strings.TrimSpace(*in.Name)
		}
		if in.Status != nil {
			b.Status = model.ParseStatus(*in.Status)
		}
		if in.Allocated != nil {
			b.AllocatedBudget = *in.Allocated
			result.Allocation, err = breakdownAllocation(ctx, tx, b.ProjectID, b.ID, b.AllocatedBudget)
			if err != nil {
				return err
			}
		}
		if in.Utilized != nil {
			b.BudgetUtilized = *in.Utilized
		}
		if in.Obligated != nil {
			b.ObligatedBudget = decimal.NewNullDecimal(*in.Obligated)
		}
		if in.DateStarted != nil {
			b.DateStarted = in.DateStarted
		}
		if in.TargetDate != nil {
			b.TargetDate = in.TargetDate
		}
		if in.CompletionDate != nil {
			b.CompletionDate = in.CompletionDate
		}
		derive(b)

		if err := tx.UpdateBreakdown(ctx, b); err != nil {
			return err
		}
		if err := record(ctx, tx, b.Child().Ref, model.ActionUpdate, previous, breakdownSnapshot(b), in.Reason); err != nil {
			return err
		}

		result.Breakdown = b
		result.Cascade, err = s.updater.RecomputeTx(ctx, tx, breakdownParent(b))
		return err
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// DeleteBreakdown soft-deletes a breakdown so it drops out of its project's
// aggregates. Deleting a deleted breakdown is a no-op.
func (s *Service) DeleteBreakdown(ctx context.Context, id, by string) (*BreakdownResult, error) {
	return s.setBreakdownDeleted(ctx, id, true, by)
}

// RestoreBreakdown brings a soft-deleted breakdown back into its project's
// aggregates.
func (s *Service) RestoreBreakdown(ctx context.Context, id string) (*BreakdownResult, error) {
	return s.setBreakdownDeleted(ctx, id, false, "")
}

func (s *Service) setBreakdownDeleted(ctx context.Context, id string, deleted bool, by string) (*BreakdownResult, error) {
	result := &BreakdownResult{}
	err := s.inTx(ctx, func(tx service.Transaction) error {
		b, err := tx.GetBreakdown(ctx, id)
		if err != nil {
			return err
		}
		result.Breakdown = b
		if b.IsDeleted == deleted {
			return nil
		}

		if err := tx.SetBreakdownDeleted(ctx, id, deleted, by); err != nil {
			return err
		}

		action := model.ActionRestore
		if deleted {
			action = model.ActionDelete
		}
		previous := map[string]any{"isDeleted": !deleted}
		next := map[string]any{"isDeleted": deleted}
		if err := record(ctx, tx, b.Child().Ref, action, previous, next, by); err != nil {
			return err
		}

		result.Cascade, err = s.updater.RecomputeTx(ctx, tx, breakdownParent(b))
		return err
	})
	if err != nil {
		return nil, err
	}

	b, err := s.store.GetBreakdown(ctx, id)
	if err != nil {
		return nil, err
	}
	result.Breakdown = b
	return result, nil
}
