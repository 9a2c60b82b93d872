// Package cascade keeps aggregate figures consistent up the budget tree.
// Every child mutation ends in one call to Updater.RecomputeTx (or
// Recompute), which walks from the mutated node's parent towards the root.
package cascade

import (
	"context"
	"errors"
	"fmt"

	"github.com/Veraticus/budget-rollup/internal/model"
)

// NodeStore is the persistence contract the cascade reads and patches through.
type NodeStore interface {
	GetNode(ctx context.Context, ref model.NodeRef) (*model.Node, error)
	GetChildren(ctx context.Context, parent model.NodeRef) ([]model.ChildRecord, error)
	PatchNode(ctx context.Context, ref model.NodeRef, patch model.NodePatch) error
}

// ActivityLog receives one event per aggregate patch or mode toggle.
type ActivityLog interface {
	RecordActivity(ctx context.Context, event *model.ActivityEvent) error
}

// Tx is what a cascade needs from an open transaction.
type Tx interface {
	NodeStore
	ActivityLog
}

// ErrIncompleteAggregate marks a recompute abandoned because the sibling
// set could not be loaded in full.
var ErrIncompleteAggregate = errors.New("incomplete sibling set")

// IncompleteAggregateError reports which parent could not be recomputed.
// Nothing is written for that parent or anything above it.
type IncompleteAggregateError struct {
	Err    error
	Parent model.NodeRef
}

func (e *IncompleteAggregateError) Error() string {
	return fmt.Sprintf("cannot aggregate %s: %v", e.Parent, e.Err)
}

func (e *IncompleteAggregateError) Unwrap() []error {
	return []error{ErrIncompleteAggregate, e.Err}
}
