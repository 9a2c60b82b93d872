package budget

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Veraticus/budget-rollup/internal/common"
	"github.com/Veraticus/budget-rollup/internal/model"
	"github.com/Veraticus/budget-rollup/internal/money"
	"github.com/Veraticus/budget-rollup/internal/service"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func itemSnapshot(item *model.BudgetItem) map[string]any {
	year := any(nil)
	if item.Year != nil {
		year = *item.Year
	}
	return map[string]any{
		"particularCode":              item.ParticularCode,
		"year":                        year,
		"status":                      string(item.Status),
		"totalBudgetAllocated":        item.TotalBudgetAllocated.String(),
		"totalBudgetUtilized":         item.TotalBudgetUtilized.String(),
		"obligatedBudget":             nullDecimalString(item.ObligatedBudget),
		"autoCalculateBudgetUtilized": item.AutoCalculate,
	}
}

func nullDecimalString(d decimal.NullDecimal) any {
	if !d.Valid {
		return nil
	}
	return d.Decimal.String()
}

// CreateBudgetItem adds a budget item under an active particular. Items
// are auto-calculated unless AutoCalculate is explicitly false.
func (s *Service) CreateBudgetItem(ctx context.Context, in BudgetItemInput) (*BudgetItemResult, error) {
	in.ParticularCode = strings.ToUpper(strings.TrimSpace(in.ParticularCode))
	if err := s.check(in); err != nil {
		return nil, err
	}

	auto := in.AutoCalculate == nil || *in.AutoCalculate
	if err := guardDerived(auto, in.Utilized, in.Obligated); err != nil {
		return nil, err
	}

	item := &model.BudgetItem{
		ID:                   uuid.NewString(),
		ParticularCode:       in.ParticularCode,
		Year:                 in.Year,
		Status:               model.ParseStatus(in.Status),
		TotalBudgetAllocated: in.Allocated,
		TotalBudgetUtilized:  decimal.Zero,
		AutoCalculate:        auto,
	}
	if in.Utilized != nil {
		item.TotalBudgetUtilized = *in.Utilized
	}
	if in.Obligated != nil {
		item.ObligatedBudget = decimal.NewNullDecimal(*in.Obligated)
	}
	item.UtilizationRate = money.UtilizationRate(item.TotalBudgetUtilized, item.TotalBudgetAllocated)

	result := &BudgetItemResult{BudgetItem: item}
	err := s.inTx(ctx, func(tx service.Transaction) error {
		particular, err := tx.GetParticular(ctx, in.ParticularCode)
		if err != nil {
			return err
		}
		if !particular.IsActive {
			return fmt.Errorf("%w: particular %s is inactive", common.ErrInvalidInput, particular.Code)
		}

		if err := tx.CreateBudgetItem(ctx, item); err != nil {
			return err
		}
		ref := item.Node().Ref
		if err := record(ctx, tx, ref, model.ActionCreate, nil, itemSnapshot(item), ""); err != nil {
			return err
		}

		result.Cascade, err = s.updater.RecomputeTx(ctx, tx, ref)
		return err
	})
	if err != nil {
		return nil, err
	}

	slog.Info("created budget item", "id", item.ID, "particular", item.ParticularCode)
	return s.refreshItem(ctx, result)
}

// GetBudgetItem returns a budget item by ID.
func (s *Service) GetBudgetItem(ctx context.Context, id string) (*model.BudgetItem, error) {
	return s.store.GetBudgetItem(ctx, id)
}

// ListBudgetItems returns budget items matching filter.
func (s *Service) ListBudgetItems(ctx context.Context, filter service.BudgetItemFilter) ([]model.BudgetItem, error) {
	return s.store.ListBudgetItems(ctx, filter)
}

// UpdateBudgetItem edits a budget item. Utilized and obligated amounts can
// only be edited while the item is in manual mode.
func (s *Service) UpdateBudgetItem(ctx context.Context, id string, in BudgetItemUpdate) (*BudgetItemResult, error) {
	if err := s.check(in); err != nil {
		return nil, err
	}

	result := &BudgetItemResult{}
	err := s.inTx(ctx, func(tx service.Transaction) error {
		item, err := tx.GetBudgetItem(ctx, id)
		if err != nil {
			return err
		}
		if err := guardDerived(item.AutoCalculate, in.Utilized, in.Obligated); err != nil {
			return err
		}

		previous := itemSnapshot(item)
		if in.Year != nil {
			item.Year = in.Year
		}
		if in.Status != nil {
			item.Status = model.ParseStatus(*in.Status)
		}
		if in.Allocated != nil {
			item.TotalBudgetAllocated = *in.Allocated
		}
		if in.Utilized != nil {
			item.TotalBudgetUtilized = *in.Utilized
		}
		if in.Obligated != nil {
			item.ObligatedBudget = decimal.NewNullDecimal(*in.Obligated)
		}
		item.UtilizationRate = money.UtilizationRate(item.TotalBudgetUtilized, item.TotalBudgetAllocated)

		if err := tx.UpdateBudgetItem(ctx, item); err != nil {
			return err
		}
		ref := item.Node().Ref
		if err := record(ctx, tx, ref, model.ActionUpdate, previous, itemSnapshot(item), in.Reason); err != nil {
			return err
		}

		result.BudgetItem = item
		result.Cascade, err = s.updater.RecomputeTx(ctx, tx, ref)
		return err
	})
	if err != nil {
		return nil, err
	}

	return s.refreshItem(ctx, result)
}

// refreshItem reloads the item after the cascade patched it.
func (s *Service) refreshItem(ctx context.Context, result *BudgetItemResult) (*BudgetItemResult, error) {
	item, err := s.store.GetBudgetItem(ctx, result.BudgetItem.ID)
	if err != nil {
		return nil, err
	}
	result.BudgetItem = item
	return result, nil
}
