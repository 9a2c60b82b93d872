package testutil

import (
	"context"
	"testing"

	"github.com/Veraticus/budget-rollup/internal/model"
	"github.com/Veraticus/budget-rollup/internal/money"
	"github.com/Veraticus/budget-rollup/internal/service"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TreeBuilder seeds budget tree records straight into storage, bypassing
// the cascade, so tests can start from any state including stale ones.
type TreeBuilder struct {
	t     *testing.T
	store service.Storage
}

// NewTreeBuilder creates a builder writing to store.
func NewTreeBuilder(t *testing.T, store service.Storage) *TreeBuilder {
	t.Helper()
	return &TreeBuilder{t: t, store: store}
}

// Dec parses a decimal literal, panicking on malformed input.
func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// NullDec parses a decimal literal into a valid NullDecimal.
func NullDec(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(Dec(s))
}

// Particular creates an active, non-system particular.
func (b *TreeBuilder) Particular(code, fullName string) *model.Particular {
	b.t.Helper()

	p := &model.Particular{Code: code, FullName: fullName, IsActive: true}
	if err := b.store.CreateParticular(context.Background(), p); err != nil {
		b.t.Fatalf("failed to seed particular %q: %v", code, err)
	}
	return p
}

// BudgetItem creates an auto-calculated budget item under particular with
// the given allocation. Options run before the insert.
func (b *TreeBuilder) BudgetItem(particular, allocated string, opts ...func(*model.BudgetItem)) *model.BudgetItem {
	b.t.Helper()

	year := 2024
	item := &model.BudgetItem{
		ID:                   uuid.NewString(),
		ParticularCode:       particular,
		Year:                 &year,
		TotalBudgetAllocated: Dec(allocated),
		TotalBudgetUtilized:  decimal.Zero,
		AutoCalculate:        true,
	}
	for _, opt := range opts {
		opt(item)
	}
	item.UtilizationRate = money.UtilizationRate(item.TotalBudgetUtilized, item.TotalBudgetAllocated)

	if err := b.store.CreateBudgetItem(context.Background(), item); err != nil {
		b.t.Fatalf("failed to seed budget item: %v", err)
	}
	return item
}

// Project creates an auto-calculated, ongoing project under a budget item.
func (b *TreeBuilder) Project(budgetItemID, name, allocated string, opts ...func(*model.Project)) *model.Project {
	b.t.Helper()

	p := &model.Project{
		ID:                   uuid.NewString(),
		BudgetItemID:         budgetItemID,
		Name:                 name,
		Year:                 2024,
		Status:               model.StatusOngoing,
		TotalBudgetAllocated: Dec(allocated),
		TotalBudgetUtilized:  decimal.Zero,
		AutoCalculate:        true,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.UtilizationRate = money.UtilizationRate(p.TotalBudgetUtilized, p.TotalBudgetAllocated)

	if err := b.store.CreateProject(context.Background(), p); err != nil {
		b.t.Fatalf("failed to seed project %q: %v", name, err)
	}
	return p
}

// Breakdown creates a breakdown under a project with derived balance and
// utilization rate.
func (b *TreeBuilder) Breakdown(projectID, name, allocated, utilized string, status model.Status, opts ...func(*model.Breakdown)) *model.Breakdown {
	b.t.Helper()

	bd := &model.Breakdown{
		ID:              uuid.NewString(),
		ProjectID:       projectID,
		Name:            name,
		Status:          status,
		AllocatedBudget: Dec(allocated),
		BudgetUtilized:  Dec(utilized),
	}
	for _, opt := range opts {
		opt(bd)
	}
	bd.Balance = money.Balance(bd.AllocatedBudget, bd.BudgetUtilized)
	bd.UtilizationRate = money.UtilizationRate(bd.BudgetUtilized, bd.AllocatedBudget)

	if err := b.store.CreateBreakdown(context.Background(), bd); err != nil {
		b.t.Fatalf("failed to seed breakdown %q: %v", name, err)
	}
	return bd
}

// ManualItem puts a budget item in manual mode with a stored utilized amount.
func ManualItem(utilized string) func(*model.BudgetItem) {
	return func(item *model.BudgetItem) {
		item.AutoCalculate = false
		item.TotalBudgetUtilized = Dec(utilized)
	}
}

// ManualProject puts a project in manual mode with a stored utilized amount.
func ManualProject(utilized string) func(*model.Project) {
	return func(p *model.Project) {
		p.AutoCalculate = false
		p.TotalBudgetUtilized = Dec(utilized)
	}
}

// ProjectStatus sets a project's status.
func ProjectStatus(status model.Status) func(*model.Project) {
	return func(p *model.Project) {
		p.Status = status
	}
}

// Obligated sets a breakdown's obligated amount.
func Obligated(amount string) func(*model.Breakdown) {
	return func(bd *model.Breakdown) {
		bd.ObligatedBudget = NullDec(amount)
	}
}

// Deleted marks a breakdown as soft-deleted at creation.
func Deleted() func(*model.Breakdown) {
	return func(bd *model.Breakdown) {
		bd.IsDeleted = true
	}
}
