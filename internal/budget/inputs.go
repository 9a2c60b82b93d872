package budget

import (
	"time"

	"github.com/Veraticus/budget-rollup/internal/allocation"
	"github.com/Veraticus/budget-rollup/internal/cascade"
	"github.com/Veraticus/budget-rollup/internal/model"
	"github.com/shopspring/decimal"
)

// ParticularInput creates a particular.
type ParticularInput struct {
	Code     string `json:"code" validate:"required,max=32"`
	FullName string `json:"fullName" validate:"required,max=200"`
}

// ParticularUpdate edits a particular. Nil fields are left unchanged.
type ParticularUpdate struct {
	FullName *string `json:"fullName" validate:"omitempty,min=1,max=200"`
	IsActive *bool   `json:"isActive"`
}

// BudgetItemInput creates a budget item. Utilized and Obligated may only
// be given together with AutoCalculate=false.
type BudgetItemInput struct {
	Year           *int             `json:"year" validate:"omitempty,gte=1900,lte=2200"`
	Utilized       *decimal.Decimal `json:"totalBudgetUtilized" validate:"omitempty,gte=0"`
	Obligated      *decimal.Decimal `json:"obligatedBudget" validate:"omitempty,gte=0"`
	AutoCalculate  *bool            `json:"autoCalculateBudgetUtilized"`
	ParticularCode string           `json:"particularCode" validate:"required"`
	Status         string           `json:"status" validate:"omitempty,max=32"`
	Allocated      decimal.Decimal  `json:"totalBudgetAllocated" validate:"gte=0"`
}

// BudgetItemUpdate edits a budget item. Nil fields are left unchanged.
type BudgetItemUpdate struct {
	Year      *int             `json:"year" validate:"omitempty,gte=1900,lte=2200"`
	Status    *string          `json:"status" validate:"omitempty,max=32"`
	Allocated *decimal.Decimal `json:"totalBudgetAllocated" validate:"omitempty,gte=0"`
	Utilized  *decimal.Decimal `json:"totalBudgetUtilized" validate:"omitempty,gte=0"`
	Obligated *decimal.Decimal `json:"obligatedBudget" validate:"omitempty,gte=0"`
	Reason    string           `json:"reason"`
}

// ProjectInput creates a project.
type ProjectInput struct {
	Year          *int             `json:"year" validate:"omitempty,gte=1900,lte=2200"`
	Utilized      *decimal.Decimal `json:"totalBudgetUtilized" validate:"omitempty,gte=0"`
	Obligated     *decimal.Decimal `json:"obligatedBudget" validate:"omitempty,gte=0"`
	AutoCalculate *bool            `json:"autoCalculateBudgetUtilized"`
	BudgetItemID  string           `json:"budgetItemId" validate:"required"`
	Name          string           `json:"name" validate:"required,max=300"`
	Particulars   string           `json:"particulars" validate:"omitempty,max=300"`
	Status        string           `json:"status" validate:"omitempty,max=32"`
	Allocated     decimal.Decimal  `json:"totalBudgetAllocated" validate:"gte=0"`
}

// ProjectUpdate edits a project. Nil fields are left unchanged.
type ProjectUpdate struct {
	Year        *int             `json:"year" validate:"omitempty,gte=1900,lte=2200"`
	Name        *string          `json:"name" validate:"omitempty,min=1,max=300"`
	Particulars *string          `json:"particulars" validate:"omitempty,max=300"`
	Status      *string          `json:"status" validate:"omitempty,max=32"`
	Allocated   *decimal.Decimal `json:"totalBudgetAllocated" validate:"omitempty,gte=0"`
	Utilized    *decimal.Decimal `json:"totalBudgetUtilized" validate:"omitempty,gte=0"`
	Obligated   *decimal.Decimal `json:"obligatedBudget" validate:"omitempty,gte=0"`
	Reason      string           `json:"reason"`
}

// BreakdownInput creates a breakdown. Balance and utilization rate are
// always derived.
type BreakdownInput struct {
	DateStarted    *time.Time       `json:"dateStarted"`
	TargetDate     *time.Time       `json:"targetDate"`
	CompletionDate *time.Time       `json:"completionDate"`
	Obligated      *decimal.Decimal `json:"obligatedBudget" validate:"omitempty,gte=0"`
	ProjectID      string           `json:"projectId" validate:"required"`
	Name           string           `json:"name" validate:"required,max=300"`
	Status         string           `json:"status" validate:"omitempty,max=32"`
	Allocated      decimal.Decimal  `json:"allocatedBudget" validate:"gte=0"`
	Utilized       decimal.Decimal  `json:"budgetUtilized" validate:"gte=0"`
}

// BreakdownUpdate edits a breakdown. Nil fields are left unchanged.
type BreakdownUpdate struct {
	DateStarted    *time.Time       `json:"dateStarted"`
	TargetDate     *time.Time       `json:"targetDate"`
	CompletionDate *time.Time       `json:"completionDate"`
	Name           *string          `json:"name" validate:"omitempty,min=1,max=300"`
	Status         *string          `json:"status" validate:"omitempty,max=32"`
	Allocated      *decimal.Decimal `json:"allocatedBudget" validate:"omitempty,gte=0"`
	Utilized       *decimal.Decimal `json:"budgetUtilized" validate:"omitempty,gte=0"`
	Obligated      *decimal.Decimal `json:"obligatedBudget" validate:"omitempty,gte=0"`
	Reason         string           `json:"reason"`
}

// BudgetItemResult is returned by budget item mutations.
type BudgetItemResult struct {
	BudgetItem *model.BudgetItem
	Cascade    []cascade.LevelResult
}

// ProjectResult is returned by project mutations. Allocation is set when
// the project's allocation was created or changed; an exceeded allocation
// is a warning, never an error.
type ProjectResult struct {
	Project    *model.Project
	Allocation *allocation.Result
	Cascade    []cascade.LevelResult
}

// BreakdownResult is returned by breakdown mutations.
type BreakdownResult struct {
	Breakdown  *model.Breakdown
	Allocation *allocation.Result
	Cascade    []cascade.LevelResult
}
