package cascade

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Veraticus/budget-rollup/internal/common"
	"github.com/Veraticus/budget-rollup/internal/model"
	"github.com/Veraticus/budget-rollup/internal/money"
	"github.com/Veraticus/budget-rollup/internal/rollup"
	"github.com/Veraticus/budget-rollup/internal/service"
	"github.com/shopspring/decimal"
)

// Config holds configuration options for the cascade.
type Config struct {
	Retry service.RetryOptions
	// MaxDepth bounds the walk towards the root; it only matters if stored
	// parent references ever form a cycle.
	MaxDepth int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Retry:    service.DefaultRetryOptions(),
		MaxDepth: 8,
	}
}

// Updater recomputes parent aggregates after child mutations and owns
// auto-calculate mode changes.
type Updater struct {
	db       common.TxBeginner
	retry    service.RetryOptions
	maxDepth int
}

// New creates an updater with the default configuration.
func New(db common.TxBeginner) *Updater {
	return NewWithConfig(db, DefaultConfig())
}

// NewWithConfig creates an updater with custom configuration.
func NewWithConfig(db common.TxBeginner, config Config) *Updater {
	if config.MaxDepth <= 0 {
		config.MaxDepth = DefaultConfig().MaxDepth
	}
	return &Updater{
		db:       db,
		retry:    config.Retry,
		maxDepth: config.MaxDepth,
	}
}

// LevelResult describes what one level of a cascade did.
type LevelResult struct {
	Before  model.Node
	After   model.Node
	Rollup  rollup.Result
	Mode    rollup.Mode
	Changed []string
}

// Recompute recomputes start and every ancestor in one transaction,
// retrying the whole walk on optimistic-concurrency conflicts.
func (u *Updater) Recompute(ctx context.Context, start model.NodeRef) ([]LevelResult, error) {
	var results []LevelResult
	err := common.RunInTx(ctx, u.db, u.retry, func(tx service.Transaction) error {
		var err error
		results, err = u.RecomputeTx(ctx, tx, start)
		return err
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// RecomputeTx recomputes start and then each parent in turn until a node
// has no parent. It runs inside the caller's transaction so a child write
// and the cascade it triggers commit together. On error nothing should be
// committed; levels already patched are in the same transaction.
func (u *Updater) RecomputeTx(ctx context.Context, tx Tx, start model.NodeRef) ([]LevelResult, error) {
	var results []LevelResult

	ref := &start
	for depth := 0; ref != nil; depth++ {
		if depth >= u.maxDepth {
			return results, fmt.Errorf("cascade from %s exceeded %d levels", start, u.maxDepth)
		}

		level, err := u.recomputeLevel(ctx, tx, *ref)
		if err != nil {
			return results, err
		}
		results = append(results, *level)
		ref = level.After.Parent
	}

	return results, nil
}

func (u *Updater) recomputeLevel(ctx context.Context, tx Tx, ref model.NodeRef) (*LevelResult, error) {
	node, r, err := loadLevel(ctx, tx, ref)
	if err != nil {
		return nil, err
	}

	return u.write(ctx, tx, *node, rollup.Apply(*node, r), r, model.ActionRecompute, "")
}

// loadLevel reads a node and aggregates its active children. A failed
// child load is never aggregated partially.
func loadLevel(ctx context.Context, tx NodeStore, ref model.NodeRef) (*model.Node, rollup.Result, error) {
	node, err := tx.GetNode(ctx, ref)
	if err != nil {
		return nil, rollup.Result{}, fmt.Errorf("failed to load %s: %w", ref, err)
	}

	children, err := tx.GetChildren(ctx, ref)
	if err != nil {
		return nil, rollup.Result{}, &IncompleteAggregateError{Parent: ref, Err: err}
	}

	return node, rollup.Aggregate(rollup.Active(children)), nil
}

// write finalizes patch with the utilization rate derived from the
// post-patch amounts, skips the write when nothing changes, and records an
// activity event otherwise.
func (u *Updater) write(ctx context.Context, tx Tx, node model.Node, patch model.NodePatch, r rollup.Result, action model.ActivityAction, reason string) (*LevelResult, error) {
	after := patch.ApplyTo(node)
	rate := money.UtilizationRate(after.Utilized, after.Allocated)
	patch.UtilizationRate = &rate
	after.UtilizationRate = rate

	level := &LevelResult{
		Before: node,
		After:  after,
		Rollup: r,
		Mode:   rollup.ModeOf(after),
	}

	previous, next, changed := diff(node, after)
	level.Changed = changed
	if len(changed) == 0 {
		slog.Debug("aggregate unchanged", "node", node.Ref.String())
		return level, nil
	}

	if err := tx.PatchNode(ctx, node.Ref, patch); err != nil {
		return nil, fmt.Errorf("failed to patch %s: %w", node.Ref, err)
	}
	level.After.Version = node.Version + 1

	event := &model.ActivityEvent{
		NodeType:       node.Ref.Type,
		NodeID:         node.Ref.ID,
		Action:         action,
		PreviousValues: previous,
		NewValues:      next,
		ChangedFields:  changed,
		Reason:         reason,
	}
	if err := tx.RecordActivity(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to record activity for %s: %w", node.Ref, err)
	}

	slog.Debug("aggregate patched",
		"node", node.Ref.String(),
		"mode", level.Mode,
		"children", r.Count,
		"changed", changed)
	return level, nil
}

// diff lists the aggregate fields that differ between before and after,
// keyed by their record field names.
func diff(before, after model.Node) (map[string]any, map[string]any, []string) {
	previous := map[string]any{}
	next := map[string]any{}
	var changed []string

	add := func(field string, old, updated any) {
		previous[field] = old
		next[field] = updated
		changed = append(changed, field)
	}

	if !before.Utilized.Equal(after.Utilized) {
		add("totalBudgetUtilized", before.Utilized.String(), after.Utilized.String())
	}
	if before.Obligated.Valid != after.Obligated.Valid ||
		!before.Obligated.Decimal.Equal(after.Obligated.Decimal) {
		add("obligatedBudget", nullString(before.Obligated), nullString(after.Obligated))
	}
	if before.UtilizationRate != after.UtilizationRate {
		add("utilizationRate", before.UtilizationRate, after.UtilizationRate)
	}
	if before.Tallies != after.Tallies {
		add("statusCounts", before.Tallies, after.Tallies)
	}
	if before.AutoCalculate != after.AutoCalculate {
		add("autoCalculateBudgetUtilized", before.AutoCalculate, after.AutoCalculate)
	}

	return previous, next, changed
}

func nullString(d decimal.NullDecimal) any {
	if !d.Valid {
		return nil
	}
	return d.Decimal.String()
}
