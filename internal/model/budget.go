package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Particular is a budget category code such as "GAD".
type Particular struct {
	CreatedAt       time.Time `json:"createdAt"`
	Code            string    `json:"code"`
	FullName        string    `json:"fullName"`
	IsActive        bool      `json:"isActive"`
	IsSystemDefault bool      `json:"isSystemDefault"`
}

// BudgetItem is a yearly budget allocation under one particular.
type BudgetItem struct {
	CreatedAt            time.Time           `json:"createdAt"`
	UpdatedAt            time.Time           `json:"updatedAt"`
	Year                 *int                `json:"year,omitempty"`
	ID                   string              `json:"id"`
	ParticularCode       string              `json:"particularCode"`
	Status               Status              `json:"status,omitempty"`
	TotalBudgetAllocated decimal.Decimal     `json:"totalBudgetAllocated"`
	ObligatedBudget      decimal.NullDecimal `json:"obligatedBudget"`
	TotalBudgetUtilized  decimal.Decimal     `json:"totalBudgetUtilized"`
	Tallies              StatusCounts        `json:"tallies"`
	UtilizationRate      float64             `json:"utilizationRate"`
	Version              int64               `json:"version"`
	AutoCalculate        bool                `json:"autoCalculateBudgetUtilized"`
}

// ProjectCompleted is the number of completed child projects.
func (b BudgetItem) ProjectCompleted() int { return b.Tallies.Completed }

// ProjectDelayed is the number of delayed child projects.
func (b BudgetItem) ProjectDelayed() int { return b.Tallies.Delayed }

// ProjectsOnTrack is the number of ongoing child projects.
func (b BudgetItem) ProjectsOnTrack() int { return b.Tallies.Ongoing }

// Node returns the aggregate view of the budget item.
func (b BudgetItem) Node() Node {
	return Node{
		Ref:             NodeRef{Type: NodeBudgetItem, ID: b.ID},
		Label:           b.ParticularCode,
		Allocated:       b.TotalBudgetAllocated,
		Obligated:       b.ObligatedBudget,
		Utilized:        b.TotalBudgetUtilized,
		Tallies:         b.Tallies,
		UtilizationRate: b.UtilizationRate,
		Version:         b.Version,
		AutoCalculate:   b.AutoCalculate,
	}
}

// Project is a funded initiative under one budget item.
type Project struct {
	CreatedAt            time.Time           `json:"createdAt"`
	UpdatedAt            time.Time           `json:"updatedAt"`
	DeletedAt            *time.Time          `json:"deletedAt,omitempty"`
	ID                   string              `json:"id"`
	BudgetItemID         string              `json:"budgetItemId"`
	Particulars          string              `json:"particulars"`
	Name                 string              `json:"name"`
	Status               Status              `json:"status"`
	DeletedBy            string              `json:"deletedBy,omitempty"`
	TotalBudgetAllocated decimal.Decimal     `json:"totalBudgetAllocated"`
	ObligatedBudget      decimal.NullDecimal `json:"obligatedBudget"`
	TotalBudgetUtilized  decimal.Decimal     `json:"totalBudgetUtilized"`
	Tallies              StatusCounts        `json:"tallies"`
	UtilizationRate      float64             `json:"utilizationRate"`
	Version              int64               `json:"version"`
	Year                 int                 `json:"year"`
	AutoCalculate        bool                `json:"autoCalculateBudgetUtilized"`
	IsDeleted            bool                `json:"isDeleted"`
}

// Node returns the aggregate view of the project.
func (p Project) Node() Node {
	return Node{
		Ref:             NodeRef{Type: NodeProject, ID: p.ID},
		Parent:          &NodeRef{Type: NodeBudgetItem, ID: p.BudgetItemID},
		Label:           p.Name,
		Allocated:       p.TotalBudgetAllocated,
		Obligated:       p.ObligatedBudget,
		Utilized:        p.TotalBudgetUtilized,
		Tallies:         p.Tallies,
		UtilizationRate: p.UtilizationRate,
		Version:         p.Version,
		AutoCalculate:   p.AutoCalculate,
	}
}

// Child returns the project's contribution to its budget item.
func (p Project) Child() ChildRecord {
	return ChildRecord{
		Ref:       NodeRef{Type: NodeProject, ID: p.ID},
		Status:    p.Status,
		Allocated: p.TotalBudgetAllocated,
		Obligated: p.ObligatedBudget,
		Utilized:  p.TotalBudgetUtilized,
		IsDeleted: p.IsDeleted,
	}
}

// Breakdown is a line-item financial record under one project.
type Breakdown struct {
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
	DateStarted     *time.Time          `json:"dateStarted,omitempty"`
	TargetDate      *time.Time          `json:"targetDate,omitempty"`
	CompletionDate  *time.Time          `json:"completionDate,omitempty"`
	DeletedAt       *time.Time          `json:"deletedAt,omitempty"`
	ID              string              `json:"id"`
	ProjectID       string              `json:"projectId"`
	Name            string              `json:"name"`
	Status          Status              `json:"status"`
	DeletedBy       string              `json:"deletedBy,omitempty"`
	AllocatedBudget decimal.Decimal     `json:"allocatedBudget"`
	ObligatedBudget decimal.NullDecimal `json:"obligatedBudget"`
	BudgetUtilized  decimal.Decimal     `json:"budgetUtilized"`
	Balance         decimal.Decimal     `json:"balance"`
	UtilizationRate float64             `json:"utilizationRate"`
	Version         int64               `json:"version"`
	IsDeleted       bool                `json:"isDeleted"`
}

// Child returns the breakdown's contribution to its project.
func (b Breakdown) Child() ChildRecord {
	return ChildRecord{
		Ref:       NodeRef{Type: NodeBreakdown, ID: b.ID},
		Status:    b.Status,
		Allocated: b.AllocatedBudget,
		Obligated: b.ObligatedBudget,
		Utilized:  b.BudgetUtilized,
		IsDeleted: b.IsDeleted,
	}
}
