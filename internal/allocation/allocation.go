// Package allocation checks a candidate allocation against what its parent
// still has available. Results are advisory: callers surface them as
// warnings and never block a write on them.
package allocation

import (
	"github.com/shopspring/decimal"
)

// Result is consumed directly by the allocation UI.
type Result struct {
	ParentTotal  decimal.Decimal `json:"parentTotal"`
	SiblingTotal decimal.Decimal `json:"siblingTotal"`
	Available    decimal.Decimal `json:"available"`
	Candidate    decimal.Decimal `json:"candidate"`
	SiblingCount int             `json:"siblingCount"`
	IsExceeded   bool            `json:"isExceeded"`
}

// Remaining is what would be left after the candidate is allocated.
// Negative when the parent is overallocated.
func (r Result) Remaining() decimal.Decimal {
	return r.Available.Sub(r.Candidate)
}

// Check computes the allocation headroom for candidate given the sibling
// allocations, which must already exclude the node being edited.
func Check(parentTotal decimal.Decimal, siblings []decimal.Decimal, candidate decimal.Decimal) Result {
	siblingTotal := decimal.Zero
	for _, s := range siblings {
		siblingTotal = siblingTotal.Add(s)
	}

	return Result{
		ParentTotal:  parentTotal,
		SiblingTotal: siblingTotal,
		Available:    parentTotal.Sub(siblingTotal),
		Candidate:    candidate,
		SiblingCount: len(siblings),
		IsExceeded:   siblingTotal.Add(candidate).GreaterThan(parentTotal),
	}
}
