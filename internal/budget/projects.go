package budget

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/budget-rollup/internal/common"
	"github.com/Veraticus/budget-rollup/internal/model"
	"github.com/Veraticus/budget-rollup/internal/money"
	"github.com/Veraticus/budget-rollup/internal/service"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func projectSnapshot(p *model.Project) map[string]any {
	return map[string]any{
		"name":                        p.Name,
		"particulars":                 p.Particulars,
		"year":                        p.Year,
		"status":                      string(p.Status),
		"totalBudgetAllocated":        p.TotalBudgetAllocated.String(),
		"totalBudgetUtilized":         p.TotalBudgetUtilized.String(),
		"obligatedBudget":             nullDecimalString(p.ObligatedBudget),
		"autoCalculateBudgetUtilized": p.AutoCalculate,
		"isDeleted":                   p.IsDeleted,
	}
}

// CreateProject adds a project under a budget item and recomputes the
// item. Projects are auto-calculated unless AutoCalculate is explicitly
// false.
func (s *Service) CreateProject(ctx context.Context, in ProjectInput) (*ProjectResult, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := s.check(in); err != nil {
		return nil, err
	}

	auto := in.AutoCalculate == nil || *in.AutoCalculate
	if err := guardDerived(auto, in.Utilized, in.Obligated); err != nil {
		return nil, err
	}

	p := &model.Project{
		ID:                   uuid.NewString(),
		BudgetItemID:         in.BudgetItemID,
		Name:                 in.Name,
		Particulars:          in.Particulars,
		Status:               model.ParseStatus(in.Status),
		TotalBudgetAllocated: in.Allocated,
		TotalBudgetUtilized:  decimal.Zero,
		AutoCalculate:        auto,
	}
	if in.Utilized != nil {
		p.TotalBudgetUtilized = *in.Utilized
	}
	if in.Obligated != nil {
		p.ObligatedBudget = decimal.NewNullDecimal(*in.Obligated)
	}
	p.UtilizationRate = money.UtilizationRate(p.TotalBudgetUtilized, p.TotalBudgetAllocated)

	result := &ProjectResult{Project: p}
	err := s.inTx(ctx, func(tx service.Transaction) error {
		item, err := tx.GetBudgetItem(ctx, in.BudgetItemID)
		if err != nil {
			return err
		}
		p.Year = projectYear(in.Year, item.Year)
		if p.Particulars == "" {
			p.Particulars = item.ParticularCode
		}

		result.Allocation, err = projectAllocation(ctx, tx, item.ID, "", p.TotalBudgetAllocated)
		if err != nil {
			return err
		}

		if err := tx.CreateProject(ctx, p); err != nil {
			return err
		}
		ref := p.Node().Ref
		if err := record(ctx, tx, ref, model.ActionCreate, nil, projectSnapshot(p), ""); err != nil {
			return err
		}

		result.Cascade, err = s.updater.RecomputeTx(ctx, tx, ref)
		return err
	})
	if err != nil {
		return nil, err
	}

	slog.Info("created project", "id", p.ID, "budget_item_id", p.BudgetItemID)
	return s.refreshProject(ctx, result)
}

func projectYear(year, itemYear *int) int {
	switch {
	case year != nil:
		return *year
	case itemYear != nil:
		return *itemYear
	default:
		return time.Now().Year()
	}
}

// GetProject returns a project by ID, deleted or not.
func (s *Service) GetProject(ctx context.Context, id string) (*model.Project, error) {
	return s.store.GetProject(ctx, id)
}

// ListProjects returns the projects of a budget item.
func (s *Service) ListProjects(ctx context.Context, budgetItemID string, includeDeleted bool) ([]model.Project, error) {
	return s.store.ListProjects(ctx, budgetItemID, includeDeleted)
}

// UpdateProject edits a project and recomputes it and its budget item.
// Utilized and obligated amounts can only be edited in manual mode.
func (s *Service) UpdateProject(ctx context.Context, id string, in ProjectUpdate) (*ProjectResult, error) {
	if err := s.check(in); err != nil {
		return nil, err
	}

	result := &ProjectResult{}
	err := s.inTx(ctx, func(tx service.Transaction) error {
		p, err := tx.GetProject(ctx, id)
		if err != nil {
			return err
		}
		if p.IsDeleted {
			return fmt.Errorf("project %s is deleted: %w", id, common.ErrInvalidInput)
		}
		if err := guardDerived(p.AutoCalculate, in.Utilized, in.Obligated); err != nil {
			return err
		}

		previous := projectSnapshot(p)
		if in.Name != nil {
			p.Name = strings.TrimSpace(*in.Name)
		}
		if in.Particulars != nil {
			p.Particulars = *in.Particulars
		}
		if in.Year != nil {
			p.Year = *in.Year
		}
		if in.Status != nil {
			p.Status = model.ParseStatus(*in.Status)
		}
		if in.Allocated != nil {
			p.TotalBudgetAllocated = *in.Allocated
			result.Allocation, err = projectAllocation(ctx, tx, p.BudgetItemID, p.ID, p.TotalBudgetAllocated)
			if err != nil {
				return err
			}
		}
		if in.Utilized != nil {
			p.TotalBudgetUtilized = *in.Utilized
		}
		if in.Obligated != nil {
			p.ObligatedBudget = decimal.NewNullDecimal(*in.Obligated)
		}
		p.UtilizationRate = money.UtilizationRate(p.TotalBudgetUtilized, p.TotalBudgetAllocated)

		if err := tx.UpdateProject(ctx, p); err != nil {
			return err
		}
		ref := p.Node().Ref
		if err := record(ctx, tx, ref, model.ActionUpdate, previous, projectSnapshot(p), in.Reason); err != nil {
			return err
		}

		result.Project = p
		result.Cascade, err = s.updater.RecomputeTx(ctx, tx, ref)
		return err
	})
	if err != nil {
		return nil, err
	}

	return s.refreshProject(ctx, result)
}

// DeleteProject soft-deletes a project so it drops out of its budget
// item's aggregates. Deleting a deleted project is a no-op.
func (s *Service) DeleteProject(ctx context.Context, id, by string) (*ProjectResult, error) {
	return s.setProjectDeleted(ctx, id, true, by)
}

// RestoreProject brings a soft-deleted project back into its budget
// item's aggregates.
func (s *Service) RestoreProject(ctx context.Context, id string) (*ProjectResult, error) {
	return s.setProjectDeleted(ctx, id, false, "")
}

func (s *Service) setProjectDeleted(ctx context.Context, id string, deleted bool, by string) (*ProjectResult, error) {
	result := &ProjectResult{}
	err := s.inTx(ctx, func(tx service.Transaction) error {
		p, err := tx.GetProject(ctx, id)
		if err != nil {
			return err
		}
		result.Project = p
		if p.IsDeleted == deleted {
			return nil
		}

		if err := tx.SetProjectDeleted(ctx, id, deleted, by); err != nil {
			return err
		}

		action := model.ActionRestore
		if deleted {
			action = model.ActionDelete
		}
		ref := p.Node().Ref
		previous := map[string]any{"isDeleted": !deleted}
		next := map[string]any{"isDeleted": deleted}
		if err := record(ctx, tx, ref, action, previous, next, by); err != nil {
			return err
		}

		result.Cascade, err = s.updater.RecomputeTx(ctx, tx, *p.Node().Parent)
		return err
	})
	if err != nil {
		return nil, err
	}

	return s.refreshProject(ctx, result)
}

func (s *Service) refreshProject(ctx context.Context, result *ProjectResult) (*ProjectResult, error) {
	p, err := s.store.GetProject(ctx, result.Project.ID)
	if err != nil {
		return nil, err
	}
	result.Project = p
	return result, nil
}
