package cascade

import (
	"context"
	"errors"
	"testing"

	"github.com/Veraticus/budget-rollup/internal/common"
	"github.com/Veraticus/budget-rollup/internal/model"
	"github.com/Veraticus/budget-rollup/internal/rollup"
	"github.com/Veraticus/budget-rollup/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubToggler struct {
	failures map[string]error
	calls    []model.NodeRef
}

func (s *stubToggler) SetMode(_ context.Context, ref model.NodeRef, target rollup.Mode, _ string) (*ToggleResult, error) {
	s.calls = append(s.calls, ref)
	if err, ok := s.failures[ref.ID]; ok {
		return nil, err
	}
	return &ToggleResult{Ref: ref, Previous: rollup.ModeAuto, Current: target, Changed: target != rollup.ModeAuto}, nil
}

func TestBulkToggler_ContinuesPastFailures(t *testing.T) {
	errLocked := errors.New("locked")
	stub := &stubToggler{failures: map[string]error{"b": errLocked}}
	refs := []model.NodeRef{projectRef("a"), projectRef("b"), projectRef("c")}

	var seen []int
	bulk := NewBulkToggler(stub)
	bulk.OnOutcome = func(i int, _ ToggleOutcome) { seen = append(seen, i) }

	outcomes := bulk.Toggle(context.Background(), refs, rollup.ModeManual, "year-end freeze")

	require.Len(t, outcomes, 3)
	assert.Equal(t, refs, stub.calls)
	assert.Equal(t, []int{0, 1, 2}, seen)

	assert.True(t, outcomes[0].OK())
	assert.True(t, outcomes[0].Changed)
	assert.ErrorIs(t, outcomes[1].Err, errLocked)
	assert.False(t, outcomes[1].OK())
	assert.True(t, outcomes[2].OK())

	assert.Equal(t, BulkSummary{Total: 3, Changed: 2, Failed: 1}, Summarize(outcomes))
}

func TestBulkToggler_StopsAttemptingAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	stub := &stubToggler{}
	refs := []model.NodeRef{projectRef("a"), projectRef("b")}

	bulk := NewBulkToggler(stub)
	bulk.OnOutcome = func(i int, _ ToggleOutcome) {
		if i == 0 {
			cancel()
		}
	}

	outcomes := bulk.Toggle(ctx, refs, rollup.ModeManual, "")
	require.Len(t, outcomes, 2)
	assert.NoError(t, outcomes[0].Err)
	assert.ErrorIs(t, outcomes[1].Err, context.Canceled)
	assert.Len(t, stub.calls, 1)
}

func TestBulkToggler_KeepsAppliedItemsOnPartialFailure(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	tree := db.Tree()

	item := tree.BudgetItem("TF", "3000")
	first := tree.Project(item.ID, "First", "1000")
	second := tree.Project(item.ID, "Second", "1000", testutil.ManualProject("10"))

	refs := []model.NodeRef{
		projectRef(first.ID),
		projectRef("does-not-exist"),
		projectRef(second.ID),
	}

	u := NewWithConfig(db.Storage, fastConfig())
	outcomes := NewBulkToggler(u).Toggle(ctx, refs, rollup.ModeManual, "audit")
	require.Len(t, outcomes, 3)

	assert.NoError(t, outcomes[0].Err)
	assert.True(t, outcomes[0].Changed)
	assert.ErrorIs(t, outcomes[1].Err, common.ErrNotFound)
	assert.NoError(t, outcomes[2].Err)
	assert.False(t, outcomes[2].Changed, "already manual")

	got, err := db.Storage.GetProject(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, got.AutoCalculate)

	assert.Equal(t, BulkSummary{Total: 3, Changed: 1, Unchanged: 1, Failed: 1}, Summarize(outcomes))
}
