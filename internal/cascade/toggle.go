package cascade

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Veraticus/budget-rollup/internal/common"
	"github.com/Veraticus/budget-rollup/internal/model"
	"github.com/Veraticus/budget-rollup/internal/rollup"
	"github.com/Veraticus/budget-rollup/internal/service"
)

// ToggleResult reports a single mode change.
type ToggleResult struct {
	Ref      model.NodeRef
	Previous rollup.Mode
	Current  rollup.Mode
	// Levels holds the toggled node followed by every ancestor recomputed
	// afterwards. It is empty when the node was already in the target mode.
	Levels  []LevelResult
	Changed bool
}

// SetMode moves ref into target. The flag flip, the resync from children
// and the recompute of every ancestor commit in one transaction; a
// concurrent cascade that read the node before the flip fails its version
// check and re-plans under the new mode.
func (u *Updater) SetMode(ctx context.Context, ref model.NodeRef, target rollup.Mode, reason string) (*ToggleResult, error) {
	var result *ToggleResult
	err := common.RunInTx(ctx, u.db, u.retry, func(tx service.Transaction) error {
		var err error
		result, err = u.SetModeTx(ctx, tx, ref, target, reason)
		return err
	})
	if err != nil {
		return nil, err
	}

	if result.Changed {
		slog.Info("calculation mode changed",
			"node", ref.String(),
			"from", result.Previous,
			"to", result.Current,
			"reason", reason)
	}
	return result, nil
}

// SetModeTx is SetMode inside the caller's transaction.
func (u *Updater) SetModeTx(ctx context.Context, tx Tx, ref model.NodeRef, target rollup.Mode, reason string) (*ToggleResult, error) {
	if _, ok := rollup.ParseMode(string(target)); !ok {
		return nil, fmt.Errorf("%w: unknown mode %q", common.ErrInvalidInput, target)
	}
	if _, ok := ref.Type.ChildType(); !ok {
		return nil, fmt.Errorf("%w: %s has no calculation mode", common.ErrInvalidInput, ref.Type)
	}

	node, r, err := loadLevel(ctx, tx, ref)
	if err != nil {
		return nil, err
	}

	result := &ToggleResult{
		Ref:      ref,
		Previous: rollup.ModeOf(*node),
		Current:  rollup.ModeOf(*node),
	}

	patch, ok := rollup.Transition(*node, target, r)
	if !ok {
		return result, nil
	}

	level, err := u.write(ctx, tx, *node, patch, r, model.ActionModeToggle, reason)
	if err != nil {
		return nil, err
	}
	result.Changed = true
	result.Current = target
	result.Levels = append(result.Levels, *level)

	if node.Parent == nil {
		return result, nil
	}

	ancestors, err := u.RecomputeTx(ctx, tx, *node.Parent)
	if err != nil {
		return nil, err
	}
	result.Levels = append(result.Levels, ancestors...)
	return result, nil
}
