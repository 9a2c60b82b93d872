package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Veraticus/budget-rollup/internal/common"
	"github.com/Veraticus/budget-rollup/internal/model"
	"github.com/Veraticus/budget-rollup/internal/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ service.Storage = (*SQLiteStorage)(nil)

// createTestStorage opens a migrated database in a temp dir.
func createTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := NewSQLiteStorage(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func createItem(t *testing.T, store *SQLiteStorage, id, code, allocated string) *model.BudgetItem {
	t.Helper()
	year := 2024
	item := &model.BudgetItem{
		ID:                   id,
		ParticularCode:       code,
		Year:                 &year,
		TotalBudgetAllocated: dec(allocated),
		TotalBudgetUtilized:  decimal.Zero,
		AutoCalculate:        true,
	}
	require.NoError(t, store.CreateBudgetItem(context.Background(), item))
	return item
}

func createProject(t *testing.T, store *SQLiteStorage, id, itemID, allocated string, status model.Status) *model.Project {
	t.Helper()
	p := &model.Project{
		ID:                   id,
		BudgetItemID:         itemID,
		Name:                 "Project " + id,
		Year:                 2024,
		Status:               status,
		TotalBudgetAllocated: dec(allocated),
		TotalBudgetUtilized:  decimal.Zero,
		AutoCalculate:        true,
	}
	require.NoError(t, store.CreateProject(context.Background(), p))
	return p
}

func TestMigrate(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	version, err := store.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, ExpectedSchemaVersion, version)

	// Running again is a no-op.
	require.NoError(t, store.Migrate(ctx))

	particulars, err := store.ListParticulars(ctx, true)
	require.NoError(t, err)
	require.Len(t, particulars, len(SystemParticulars))
	for _, p := range particulars {
		assert.True(t, p.IsSystemDefault, p.Code)
		assert.True(t, p.IsActive, p.Code)
	}
}

func TestMigrate_InsideTransaction(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	tx, err := store.BeginTx(ctx)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback() }()

	assert.Error(t, tx.Migrate(ctx))
	_, err = tx.BeginTx(ctx)
	assert.Error(t, err)
}

func TestParticulars(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	p := &model.Particular{Code: "MOOE", FullName: "Maintenance and Other Operating Expenses", IsActive: true}
	require.NoError(t, store.CreateParticular(ctx, p))

	err := store.CreateParticular(ctx, &model.Particular{Code: "MOOE", FullName: "Again"})
	assert.ErrorIs(t, err, common.ErrDuplicateEntry)

	p.FullName = "MOOE"
	p.IsActive = false
	require.NoError(t, store.UpdateParticular(ctx, p))

	got, err := store.GetParticular(ctx, "MOOE")
	require.NoError(t, err)
	assert.Equal(t, "MOOE", got.FullName)
	assert.False(t, got.IsActive)

	active, err := store.ListParticulars(ctx, false)
	require.NoError(t, err)
	assert.Len(t, active, len(SystemParticulars))

	all, err := store.ListParticulars(ctx, true)
	require.NoError(t, err)
	assert.Len(t, all, len(SystemParticulars)+1)

	err = store.UpdateParticular(ctx, &model.Particular{Code: "NOPE", FullName: "x"})
	assert.ErrorIs(t, err, common.ErrNotFound)

	require.NoError(t, store.DeleteParticular(ctx, "MOOE"))
	_, err = store.GetParticular(ctx, "MOOE")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestDeleteParticular_Guards(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	assert.ErrorIs(t, store.DeleteParticular(ctx, "GAD"), common.ErrSystemParticular)

	require.NoError(t, store.CreateParticular(ctx, &model.Particular{Code: "PS", FullName: "Personal Services", IsActive: true}))
	createItem(t, store, "item-1", "PS", "1000")

	usage, err := store.CountParticularUsage(ctx, "PS")
	require.NoError(t, err)
	assert.Equal(t, 1, usage)
	assert.ErrorIs(t, store.DeleteParticular(ctx, "PS"), common.ErrParticularInUse)
}

func TestBudgetItems(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	item := createItem(t, store, "item-1", "GAD", "1000.50")
	assert.Equal(t, int64(1), item.Version)

	got, err := store.GetBudgetItem(ctx, "item-1")
	require.NoError(t, err)
	assert.True(t, dec("1000.50").Equal(got.TotalBudgetAllocated))
	assert.False(t, got.ObligatedBudget.Valid, "absent obligated stays absent")
	require.NotNil(t, got.Year)
	assert.Equal(t, 2024, *got.Year)

	got.ObligatedBudget = decimal.NewNullDecimal(dec("25"))
	got.TotalBudgetUtilized = dec("300")
	require.NoError(t, store.UpdateBudgetItem(ctx, got))
	assert.Equal(t, int64(2), got.Version)

	reloaded, err := store.GetBudgetItem(ctx, "item-1")
	require.NoError(t, err)
	assert.True(t, dec("25").Equal(reloaded.ObligatedBudget.Decimal))
	assert.True(t, dec("300").Equal(reloaded.TotalBudgetUtilized))

	// Writing through the stale copy conflicts.
	item.TotalBudgetUtilized = dec("1")
	err = store.UpdateBudgetItem(ctx, item)
	assert.ErrorIs(t, err, common.ErrVersionConflict)
	assert.True(t, common.IsRetryable(err))

	createItem(t, store, "item-2", "SEF", "500")
	gad, err := store.ListBudgetItems(ctx, service.BudgetItemFilter{ParticularCode: "GAD"})
	require.NoError(t, err)
	require.Len(t, gad, 1)
	assert.Equal(t, "item-1", gad[0].ID)

	_, err = store.GetBudgetItem(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestGetChildren_IncludesDeleted(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	createItem(t, store, "item-1", "GAD", "1000")
	createProject(t, store, "p1", "item-1", "600", model.StatusOngoing)
	createProject(t, store, "p2", "item-1", "400", model.StatusDelayed)
	require.NoError(t, store.SetProjectDeleted(ctx, "p2", true, "auditor"))

	children, err := store.GetChildren(ctx, model.NodeRef{Type: model.NodeBudgetItem, ID: "item-1"})
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.False(t, children[0].IsDeleted)
	assert.True(t, children[1].IsDeleted)

	active, err := store.ListProjects(ctx, "item-1", false)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	deleted, err := store.GetProject(ctx, "p2")
	require.NoError(t, err)
	assert.True(t, deleted.IsDeleted)
	assert.Equal(t, "auditor", deleted.DeletedBy)
	assert.NotNil(t, deleted.DeletedAt)

	require.NoError(t, store.SetProjectDeleted(ctx, "p2", false, ""))
	restored, err := store.GetProject(ctx, "p2")
	require.NoError(t, err)
	assert.False(t, restored.IsDeleted)
	assert.Nil(t, restored.DeletedAt)

	_, err = store.GetChildren(ctx, model.NodeRef{Type: model.NodeBreakdown, ID: "b1"})
	assert.ErrorIs(t, err, ErrInvalidNodeType)
}

func TestBreakdowns(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	createItem(t, store, "item-1", "GAD", "1000")
	createProject(t, store, "p1", "item-1", "600", model.StatusOngoing)

	b := &model.Breakdown{
		ID:              "b1",
		ProjectID:       "p1",
		Name:            "Asphalt",
		Status:          model.StatusCompleted,
		AllocatedBudget: dec("200"),
		BudgetUtilized:  dec("100"),
		ObligatedBudget: decimal.NewNullDecimal(dec("50")),
		Balance:         dec("100"),
		UtilizationRate: 50,
	}
	require.NoError(t, store.CreateBreakdown(ctx, b))

	children, err := store.GetChildren(ctx, model.NodeRef{Type: model.NodeProject, ID: "p1"})
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, model.StatusCompleted, children[0].Status)
	assert.True(t, dec("50").Equal(children[0].Obligated.Decimal))

	b.BudgetUtilized = dec("250")
	require.NoError(t, store.UpdateBreakdown(ctx, b))
	got, err := store.GetBreakdown(ctx, "b1")
	require.NoError(t, err)
	assert.True(t, dec("250").Equal(got.BudgetUtilized))

	require.NoError(t, store.SetBreakdownDeleted(ctx, "b1", true, ""))
	listed, err := store.ListBreakdowns(ctx, "p1", false)
	require.NoError(t, err)
	assert.Empty(t, listed)

	assert.ErrorIs(t, store.SetBreakdownDeleted(ctx, "missing", true, ""), common.ErrNotFound)
}

func TestPatchNode(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	createItem(t, store, "item-1", "GAD", "1000")
	ref := model.NodeRef{Type: model.NodeBudgetItem, ID: "item-1"}

	utilized := dec("175")
	obligated := dec("50")
	rate := 17.5
	tallies := model.StatusCounts{Completed: 1, Delayed: 1}
	require.NoError(t, store.PatchNode(ctx, ref, model.NodePatch{
		Utilized:        &utilized,
		Obligated:       &obligated,
		UtilizationRate: &rate,
		Tallies:         &tallies,
		ExpectedVersion: 1,
	}))

	node, err := store.GetNode(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, int64(2), node.Version)
	assert.True(t, utilized.Equal(node.Utilized))
	assert.True(t, obligated.Equal(node.Obligated.Decimal))
	assert.InDelta(t, 17.5, node.UtilizationRate, 0.0001)
	assert.Equal(t, tallies, node.Tallies)
	assert.True(t, dec("1000").Equal(node.Allocated), "allocated is never patched")

	t.Run("stale version conflicts", func(t *testing.T) {
		err := store.PatchNode(ctx, ref, model.NodePatch{Utilized: &utilized, ExpectedVersion: 1})
		assert.ErrorIs(t, err, common.ErrVersionConflict)
		assert.True(t, common.IsRetryable(err))
	})

	t.Run("missing node", func(t *testing.T) {
		err := store.PatchNode(ctx, model.NodeRef{Type: model.NodeProject, ID: "nope"}, model.NodePatch{Utilized: &utilized, ExpectedVersion: 1})
		assert.ErrorIs(t, err, common.ErrNotFound)
		assert.False(t, common.IsRetryable(err))
	})

	t.Run("breakdowns carry no aggregates", func(t *testing.T) {
		err := store.PatchNode(ctx, model.NodeRef{Type: model.NodeBreakdown, ID: "b"}, model.NodePatch{Utilized: &utilized})
		assert.ErrorIs(t, err, ErrInvalidNodeType)
	})

	t.Run("empty patch writes nothing", func(t *testing.T) {
		require.NoError(t, store.PatchNode(ctx, ref, model.NodePatch{ExpectedVersion: 99}))
		node, err := store.GetNode(ctx, ref)
		require.NoError(t, err)
		assert.Equal(t, int64(2), node.Version)
	})
}

func TestActivity(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	ref := model.NodeRef{Type: model.NodeProject, ID: "p1"}

	first := &model.ActivityEvent{
		NodeType:       ref.Type,
		NodeID:         ref.ID,
		Action:         model.ActionUpdate,
		PreviousValues: map[string]any{"totalBudgetUtilized": "100"},
		NewValues:      map[string]any{"totalBudgetUtilized": "150"},
		ChangedFields:  []string{"totalBudgetUtilized"},
		Reason:         "invoice 42",
	}
	require.NoError(t, store.RecordActivity(ctx, first))
	assert.NotEmpty(t, first.ID)
	assert.False(t, first.CreatedAt.IsZero())

	second := &model.ActivityEvent{NodeType: ref.Type, NodeID: ref.ID, Action: model.ActionModeToggle, CreatedAt: first.CreatedAt}
	require.NoError(t, store.RecordActivity(ctx, second))

	events, err := store.ListActivity(ctx, ref, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, second.ID, events[0].ID, "newest first")
	assert.Empty(t, events[0].ChangedFields)
	assert.Nil(t, events[0].PreviousValues)

	got := events[1]
	assert.Equal(t, model.ActionUpdate, got.Action)
	assert.Equal(t, "invoice 42", got.Reason)
	assert.Equal(t, "150", got.NewValues["totalBudgetUtilized"])
	assert.Equal(t, []string{"totalBudgetUtilized"}, got.ChangedFields)

	limited, err := store.ListActivity(ctx, ref, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestTransaction_Rollback(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	createItem(t, store, "item-1", "GAD", "1000")

	tx, err := store.BeginTx(ctx)
	require.NoError(t, err)

	utilized := dec("500")
	require.NoError(t, tx.PatchNode(ctx, model.NodeRef{Type: model.NodeBudgetItem, ID: "item-1"}, model.NodePatch{Utilized: &utilized, ExpectedVersion: 1}))
	inside, err := tx.GetBudgetItem(ctx, "item-1")
	require.NoError(t, err)
	assert.True(t, utilized.Equal(inside.TotalBudgetUtilized))
	require.NoError(t, tx.Rollback())

	after, err := store.GetBudgetItem(ctx, "item-1")
	require.NoError(t, err)
	assert.True(t, after.TotalBudgetUtilized.IsZero())
	assert.Equal(t, int64(1), after.Version)
}

func TestTransaction_Commit(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	createItem(t, store, "item-1", "GAD", "1000")

	tx, err := store.BeginTx(ctx)
	require.NoError(t, err)
	createProject(t, tx.(*sqliteTransaction).SQLiteStorage, "p1", "item-1", "300", model.StatusOngoing)
	require.NoError(t, tx.Commit())

	projects, err := store.ListProjects(ctx, "item-1", false)
	require.NoError(t, err)
	assert.Len(t, projects, 1)
}
