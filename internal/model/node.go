package model

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// NodeType identifies a level of the budget tree.
type NodeType string

const (
	// NodeParticular is a budget category such as "GAD".
	NodeParticular NodeType = "particular"
	// NodeBudgetItem is a yearly allocation under one particular.
	NodeBudgetItem NodeType = "budget_item"
	// NodeProject is a funded initiative under one budget item.
	NodeProject NodeType = "project"
	// NodeBreakdown is a line item under one project.
	NodeBreakdown NodeType = "breakdown"
)

// ChildType returns the node type whose records roll up into t.
// The second return is false for leaf levels.
func (t NodeType) ChildType() (NodeType, bool) {
	switch t {
	case NodeBudgetItem:
		return NodeProject, true
	case NodeProject:
		return NodeBreakdown, true
	default:
		return "", false
	}
}

// ParseNodeType accepts the canonical names plus a few CLI-friendly aliases.
func ParseNodeType(s string) (NodeType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "particular", "particulars":
		return NodeParticular, nil
	case "budget_item", "budget-item", "item", "items":
		return NodeBudgetItem, nil
	case "project", "projects":
		return NodeProject, nil
	case "breakdown", "breakdowns":
		return NodeBreakdown, nil
	}
	return "", fmt.Errorf("unknown node type %q", s)
}

// NodeRef points at one record in the tree.
type NodeRef struct {
	Type NodeType `json:"type"`
	ID   string   `json:"id"`
}

func (r NodeRef) String() string {
	return string(r.Type) + ":" + r.ID
}

// Node is the aggregate-bearing view of a budget item or project, the shape
// the cascade reads and patches regardless of level.
type Node struct {
	Parent          *NodeRef
	Ref             NodeRef
	Label           string
	Allocated       decimal.Decimal
	Obligated       decimal.NullDecimal
	Utilized        decimal.Decimal
	Tallies         StatusCounts
	UtilizationRate float64
	Version         int64
	AutoCalculate   bool
}

// ChildRecord is what a child contributes to its parent's rollup.
type ChildRecord struct {
	Ref       NodeRef
	Status    Status
	Allocated decimal.Decimal
	Obligated decimal.NullDecimal
	Utilized  decimal.Decimal
	IsDeleted bool
}

// NodePatch lists the aggregate fields to write on a node. Nil fields are
// left untouched. ExpectedVersion guards the write against concurrent edits.
type NodePatch struct {
	Utilized        *decimal.Decimal
	Obligated       *decimal.Decimal
	Tallies         *StatusCounts
	UtilizationRate *float64
	AutoCalculate   *bool
	ExpectedVersion int64
}

// IsEmpty reports whether the patch writes nothing.
func (p NodePatch) IsEmpty() bool {
	return p.Utilized == nil && p.Obligated == nil && p.Tallies == nil &&
		p.UtilizationRate == nil && p.AutoCalculate == nil
}

// ApplyTo returns a copy of n with the patch applied, used to compute
// post-patch derived values and activity diffs before the write happens.
func (p NodePatch) ApplyTo(n Node) Node {
	if p.Utilized != nil {
		n.Utilized = *p.Utilized
	}
	if p.Obligated != nil {
		n.Obligated = decimal.NewNullDecimal(*p.Obligated)
	}
	if p.Tallies != nil {
		n.Tallies = *p.Tallies
	}
	if p.UtilizationRate != nil {
		n.UtilizationRate = *p.UtilizationRate
	}
	if p.AutoCalculate != nil {
		n.AutoCalculate = *p.AutoCalculate
	}
	return n
}
