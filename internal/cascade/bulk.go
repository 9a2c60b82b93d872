package cascade

import (
	"context"
	"log/slog"

	"github.com/Veraticus/budget-rollup/internal/model"
	"github.com/Veraticus/budget-rollup/internal/rollup"
)

// Toggler performs a single-node mode change.
type Toggler interface {
	SetMode(ctx context.Context, ref model.NodeRef, target rollup.Mode, reason string) (*ToggleResult, error)
}

// ToggleOutcome is the per-node entry of a bulk toggle.
type ToggleOutcome struct {
	Err      error
	Ref      model.NodeRef
	Previous rollup.Mode
	Current  rollup.Mode
	Changed  bool
}

// OK reports whether the node was toggled or already in the target mode.
func (o ToggleOutcome) OK() bool {
	return o.Err == nil
}

// BulkSummary counts the outcomes of a bulk toggle.
type BulkSummary struct {
	Total     int
	Changed   int
	Unchanged int
	Failed    int
}

// BulkToggler applies a mode change to many nodes, each in its own
// transaction. A failure on one node never rolls back another.
type BulkToggler struct {
	toggler Toggler
	// OnOutcome, when set, is called after each node is processed. It is
	// how callers render progress; the toggler itself has no output.
	OnOutcome func(index int, outcome ToggleOutcome)
}

// NewBulkToggler creates a bulk toggler over t.
func NewBulkToggler(t Toggler) *BulkToggler {
	return &BulkToggler{toggler: t}
}

// Toggle moves every ref into target and returns one outcome per ref, in
// input order. Once ctx is done the remaining refs are reported with the
// context error without being attempted.
func (b *BulkToggler) Toggle(ctx context.Context, refs []model.NodeRef, target rollup.Mode, reason string) []ToggleOutcome {
	outcomes := make([]ToggleOutcome, len(refs))

	for i, ref := range refs {
		outcome := ToggleOutcome{Ref: ref}

		if err := ctx.Err(); err != nil {
			outcome.Err = err
		} else {
			result, err := b.toggler.SetMode(ctx, ref, target, reason)
			if err != nil {
				outcome.Err = err
				slog.Warn("bulk mode toggle failed", "node", ref.String(), "error", err)
			} else {
				outcome.Previous = result.Previous
				outcome.Current = result.Current
				outcome.Changed = result.Changed
			}
		}

		outcomes[i] = outcome
		if b.OnOutcome != nil {
			b.OnOutcome(i, outcome)
		}
	}

	return outcomes
}

// Summarize counts outcomes by result.
func Summarize(outcomes []ToggleOutcome) BulkSummary {
	s := BulkSummary{Total: len(outcomes)}
	for _, o := range outcomes {
		switch {
		case o.Err != nil:
			s.Failed++
		case o.Changed:
			s.Changed++
		default:
			s.Unchanged++
		}
	}
	return s
}
