// Package rollup computes parent-level aggregates from child records and
// decides which of them a node keeps, depending on its auto-calculate mode.
package rollup

import (
	"github.com/Veraticus/budget-rollup/internal/model"
	"github.com/shopspring/decimal"
)

// Result holds the sums and status tally over a set of children.
type Result struct {
	TotalAllocated decimal.Decimal    `json:"totalAllocated"`
	TotalObligated decimal.Decimal    `json:"totalObligated"`
	TotalUtilized  decimal.Decimal    `json:"totalUtilized"`
	StatusCounts   model.StatusCounts `json:"statusCounts"`
	Count          int                `json:"count"`
}

// Aggregate sums children in a single pass. Absent obligated amounts count
// as zero. Uncategorized statuses contribute to Count and to the money
// totals but not to the completed/ongoing/delayed buckets.
//
// The caller decides which children are included; see Active.
func Aggregate(children []model.ChildRecord) Result {
	r := Result{
		TotalAllocated: decimal.Zero,
		TotalObligated: decimal.Zero,
		TotalUtilized:  decimal.Zero,
	}

	for _, c := range children {
		r.Count++
		r.TotalAllocated = r.TotalAllocated.Add(c.Allocated)
		if c.Obligated.Valid {
			r.TotalObligated = r.TotalObligated.Add(c.Obligated.Decimal)
		}
		r.TotalUtilized = r.TotalUtilized.Add(c.Utilized)
		r.StatusCounts.Add(c.Status)
	}

	return r
}

// Active returns the children that are not soft-deleted, preserving order.
func Active(children []model.ChildRecord) []model.ChildRecord {
	active := make([]model.ChildRecord, 0, len(children))
	for _, c := range children {
		if c.IsDeleted {
			continue
		}
		active = append(active, c)
	}
	return active
}
