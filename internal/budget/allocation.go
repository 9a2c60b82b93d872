package budget

import (
	"context"
	"log/slog"

	"github.com/Veraticus/budget-rollup/internal/allocation"
	"github.com/Veraticus/budget-rollup/internal/model"
	"github.com/Veraticus/budget-rollup/internal/service"
	"github.com/shopspring/decimal"
)

// CheckProjectAllocation reports how candidate fits in the budget item's
// allocation next to its active projects, excluding excludeProjectID (the
// project being edited, or empty for a new one).
func (s *Service) CheckProjectAllocation(ctx context.Context, budgetItemID, excludeProjectID string, candidate decimal.Decimal) (*allocation.Result, error) {
	return projectAllocation(ctx, s.store, budgetItemID, excludeProjectID, candidate)
}

// CheckBreakdownAllocation reports how candidate fits in the project's
// allocation next to its active breakdowns, excluding excludeBreakdownID.
func (s *Service) CheckBreakdownAllocation(ctx context.Context, projectID, excludeBreakdownID string, candidate decimal.Decimal) (*allocation.Result, error) {
	return breakdownAllocation(ctx, s.store, projectID, excludeBreakdownID, candidate)
}

func projectAllocation(ctx context.Context, store service.Storage, budgetItemID, excludeID string, candidate decimal.Decimal) (*allocation.Result, error) {
	item, err := store.GetBudgetItem(ctx, budgetItemID)
	if err != nil {
		return nil, err
	}
	projects, err := store.ListProjects(ctx, budgetItemID, false)
	if err != nil {
		return nil, err
	}

	siblings := make([]decimal.Decimal, 0, len(projects))
	for _, p := range projects {
		if p.ID == excludeID {
			continue
		}
		siblings = append(siblings, p.TotalBudgetAllocated)
	}

	r := allocation.Check(item.TotalBudgetAllocated, siblings, candidate)
	warnIfExceeded(model.NodeRef{Type: model.NodeBudgetItem, ID: budgetItemID}, r)
	return &r, nil
}

func breakdownAllocation(ctx context.Context, store service.Storage, projectID, excludeID string, candidate decimal.Decimal) (*allocation.Result, error) {
	project, err := store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	breakdowns, err := store.ListBreakdowns(ctx, projectID, false)
	if err != nil {
		return nil, err
	}

	siblings := make([]decimal.Decimal, 0, len(breakdowns))
	for _, b := range breakdowns {
		if b.ID == excludeID {
			continue
		}
		siblings = append(siblings, b.AllocatedBudget)
	}

	r := allocation.Check(project.TotalBudgetAllocated, siblings, candidate)
	warnIfExceeded(model.NodeRef{Type: model.NodeProject, ID: projectID}, r)
	return &r, nil
}

func warnIfExceeded(parent model.NodeRef, r allocation.Result) {
	if !r.IsExceeded {
		return
	}
	slog.Warn("allocation exceeds parent budget",
		"parent", parent.String(),
		"parent_total", r.ParentTotal.String(),
		"available", r.Available.String(),
		"candidate", r.Candidate.String())
}
