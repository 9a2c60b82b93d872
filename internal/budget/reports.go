package budget

import (
	"context"

	"github.com/Veraticus/budget-rollup/internal/model"
	"github.com/Veraticus/budget-rollup/internal/money"
	"github.com/Veraticus/budget-rollup/internal/rollup"
	"github.com/Veraticus/budget-rollup/internal/service"
	"github.com/shopspring/decimal"
)

// ParticularSummary is the read-side rollup of one particular's budget
// items. Particulars store no aggregates of their own.
type ParticularSummary struct {
	Particular      model.Particular `json:"particular"`
	Balance         decimal.Decimal  `json:"balance"`
	Rollup          rollup.Result    `json:"rollup"`
	UtilizationRate float64          `json:"utilizationRate"`
}

// ParticularSummaries totals budget items per particular, optionally for a
// single year. Every particular is listed, inactive ones and those with no
// items included.
func (s *Service) ParticularSummaries(ctx context.Context, year *int) ([]ParticularSummary, error) {
	particulars, err := s.store.ListParticulars(ctx, true)
	if err != nil {
		return nil, err
	}
	items, err := s.store.ListBudgetItems(ctx, service.BudgetItemFilter{Year: year})
	if err != nil {
		return nil, err
	}

	byCode := make(map[string][]model.ChildRecord, len(particulars))
	for _, item := range items {
		byCode[item.ParticularCode] = append(byCode[item.ParticularCode], model.ChildRecord{
			Ref:       model.NodeRef{Type: model.NodeBudgetItem, ID: item.ID},
			Status:    item.Status,
			Allocated: item.TotalBudgetAllocated,
			Obligated: item.ObligatedBudget,
			Utilized:  item.TotalBudgetUtilized,
		})
	}

	summaries := make([]ParticularSummary, 0, len(particulars))
	for _, p := range particulars {
		r := rollup.Aggregate(byCode[p.Code])
		summaries = append(summaries, ParticularSummary{
			Particular:      p,
			Rollup:          r,
			UtilizationRate: money.UtilizationRate(r.TotalUtilized, r.TotalAllocated),
			Balance:         money.Balance(r.TotalAllocated, r.TotalUtilized),
		})
	}

	return summaries, nil
}
