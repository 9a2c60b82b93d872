package budget

import (
	"context"
	"testing"

	"github.com/Veraticus/budget-rollup/internal/cascade"
	"github.com/Veraticus/budget-rollup/internal/common"
	"github.com/Veraticus/budget-rollup/internal/model"
	"github.com/Veraticus/budget-rollup/internal/rollup"
	"github.com/Veraticus/budget-rollup/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *testutil.TestDB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	return New(db.Storage), db
}

func dec(s string) decimal.Decimal {
	return testutil.Dec(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func ptr[T any](v T) *T {
	return &v
}

func assertDec(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), append([]any{"want %s, got %s", want, got.String()}, msgAndArgs...)...)
}

// seedItemAndProject creates GAD item(1000) → project(600) through the service.
func seedItemAndProject(t *testing.T, svc *Service, projectAuto bool) (*model.BudgetItem, *model.Project) {
	t.Helper()
	ctx := context.Background()

	item, err := svc.CreateBudgetItem(ctx, BudgetItemInput{
		ParticularCode: "gad",
		Year:           ptr(2024),
		Allocated:      dec("1000"),
	})
	require.NoError(t, err)

	in := ProjectInput{
		BudgetItemID: item.BudgetItem.ID,
		Name:         "Women's shelter",
		Status:       "ongoing",
		Allocated:    dec("600"),
	}
	if !projectAuto {
		in.AutoCalculate = ptr(false)
		in.Utilized = decPtr("250")
	}
	project, err := svc.CreateProject(ctx, in)
	require.NoError(t, err)

	return item.BudgetItem, project.Project
}

func TestParticulars(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	p, err := svc.CreateParticular(ctx, ParticularInput{Code: " cdf ", FullName: "City Development Fund"})
	require.NoError(t, err)
	assert.Equal(t, "CDF", p.Code)

	_, err = svc.CreateParticular(ctx, ParticularInput{Code: "CDF", FullName: "Again"})
	assert.ErrorIs(t, err, common.ErrDuplicateEntry)

	_, err = svc.CreateParticular(ctx, ParticularInput{Code: "", FullName: "Nameless"})
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	updated, err := svc.UpdateParticular(ctx, "cdf", ParticularUpdate{IsActive: ptr(false)})
	require.NoError(t, err)
	assert.False(t, updated.IsActive)

	active, err := svc.ListParticulars(ctx, false)
	require.NoError(t, err)
	for _, a := range active {
		assert.NotEqual(t, "CDF", a.Code)
	}

	_, err = svc.CreateBudgetItem(ctx, BudgetItemInput{ParticularCode: "CDF", Allocated: dec("10")})
	assert.ErrorIs(t, err, common.ErrInvalidInput, "inactive particular")

	require.NoError(t, svc.DeleteParticular(ctx, "CDF"))
	_, err = svc.GetParticular(ctx, "CDF")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestDeleteParticular_Guards(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	err := svc.DeleteParticular(ctx, "GAD")
	assert.ErrorIs(t, err, common.ErrSystemParticular)

	_, err = svc.CreateParticular(ctx, ParticularInput{Code: "RF", FullName: "Road Fund"})
	require.NoError(t, err)
	_, err = svc.CreateBudgetItem(ctx, BudgetItemInput{ParticularCode: "RF", Allocated: dec("100")})
	require.NoError(t, err)

	err = svc.DeleteParticular(ctx, "RF")
	assert.ErrorIs(t, err, common.ErrParticularInUse)
}

func TestCreateBreakdown_CascadesThroughAutoParents(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	item, project := seedItemAndProject(t, svc, true)

	result, err := svc.CreateBreakdown(ctx, BreakdownInput{
		ProjectID: project.ID,
		Name:      "Foundation",
		Status:    "completed",
		Allocated: dec("300"),
		Utilized:  dec("120"),
		Obligated: decPtr("200"),
	})
	require.NoError(t, err)
	assertDec(t, "180", result.Breakdown.Balance)
	assert.InDelta(t, 40.0, result.Breakdown.UtilizationRate, 1e-9)
	require.NotNil(t, result.Allocation)
	assert.False(t, result.Allocation.IsExceeded)
	require.Len(t, result.Cascade, 2)

	gotProject, err := svc.GetProject(ctx, project.ID)
	require.NoError(t, err)
	assertDec(t, "120", gotProject.TotalBudgetUtilized)
	assertDec(t, "200", gotProject.ObligatedBudget.Decimal)
	assert.InDelta(t, 20.0, gotProject.UtilizationRate, 1e-9)
	assert.Equal(t, 1, gotProject.Tallies.Completed)

	gotItem, err := svc.GetBudgetItem(ctx, item.ID)
	require.NoError(t, err)
	assertDec(t, "120", gotItem.TotalBudgetUtilized)
	assert.InDelta(t, 12.0, gotItem.UtilizationRate, 1e-9)
	assert.Equal(t, 1, gotItem.ProjectsOnTrack())
}

func TestCreateBreakdown_ManualProjectOnlyUpdatesTallies(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	item, project := seedItemAndProject(t, svc, false)

	_, err := svc.CreateBreakdown(ctx, BreakdownInput{
		ProjectID: project.ID,
		Name:      "Roofing",
		Status:    "delayed",
		Allocated: dec("300"),
		Utilized:  dec("299"),
	})
	require.NoError(t, err)

	gotProject, err := svc.GetProject(ctx, project.ID)
	require.NoError(t, err)
	assertDec(t, "250", gotProject.TotalBudgetUtilized)
	assert.Equal(t, 1, gotProject.Tallies.Delayed)

	gotItem, err := svc.GetBudgetItem(ctx, item.ID)
	require.NoError(t, err)
	assertDec(t, "250", gotItem.TotalBudgetUtilized)
}

func TestCreateProject_OverallocationIsAdvisory(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	item, err := svc.CreateBudgetItem(ctx, BudgetItemInput{ParticularCode: "SEF", Allocated: dec("1000")})
	require.NoError(t, err)

	_, err = svc.CreateProject(ctx, ProjectInput{BudgetItemID: item.BudgetItem.ID, Name: "Classrooms", Allocated: dec("900")})
	require.NoError(t, err)

	result, err := svc.CreateProject(ctx, ProjectInput{BudgetItemID: item.BudgetItem.ID, Name: "Library", Allocated: dec("200")})
	require.NoError(t, err, "overallocation must not block the write")
	require.NotNil(t, result.Allocation)
	assert.True(t, result.Allocation.IsExceeded)
	assertDec(t, "100", result.Allocation.Available)
	assertDec(t, "900", result.Allocation.SiblingTotal)

	check, err := svc.CheckProjectAllocation(ctx, item.BudgetItem.ID, result.Project.ID, dec("100"))
	require.NoError(t, err)
	assert.False(t, check.IsExceeded)
	assert.Equal(t, 1, check.SiblingCount)
}

func TestUpdateBreakdown_RederivesAndCascades(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	item, project := seedItemAndProject(t, svc, true)

	created, err := svc.CreateBreakdown(ctx, BreakdownInput{
		ProjectID: project.ID, Name: "Walls", Status: "ongoing", Allocated: dec("400"), Utilized: dec("100"),
	})
	require.NoError(t, err)

	updated, err := svc.UpdateBreakdown(ctx, created.Breakdown.ID, BreakdownUpdate{
		Utilized: decPtr("500"),
		Status:   ptr("completed"),
	})
	require.NoError(t, err)
	assertDec(t, "-100", updated.Breakdown.Balance, "over-utilization keeps a negative balance")
	assert.InDelta(t, 125.0, updated.Breakdown.UtilizationRate, 1e-9)

	gotItem, err := svc.GetBudgetItem(ctx, item.ID)
	require.NoError(t, err)
	assertDec(t, "500", gotItem.TotalBudgetUtilized)

	gotProject, err := svc.GetProject(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCounts{Completed: 1}, gotProject.Tallies)
}

func TestDeleteAndRestoreBreakdown(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	item, project := seedItemAndProject(t, svc, true)

	keep, err := svc.CreateBreakdown(ctx, BreakdownInput{ProjectID: project.ID, Name: "A", Status: "ongoing", Allocated: dec("100"), Utilized: dec("40")})
	require.NoError(t, err)
	drop, err := svc.CreateBreakdown(ctx, BreakdownInput{ProjectID: project.ID, Name: "B", Status: "ongoing", Allocated: dec("100"), Utilized: dec("60")})
	require.NoError(t, err)

	deleted, err := svc.DeleteBreakdown(ctx, drop.Breakdown.ID, "auditor")
	require.NoError(t, err)
	assert.True(t, deleted.Breakdown.IsDeleted)
	assert.Equal(t, "auditor", deleted.Breakdown.DeletedBy)

	gotItem, err := svc.GetBudgetItem(ctx, item.ID)
	require.NoError(t, err)
	assertDec(t, "40", gotItem.TotalBudgetUtilized)

	again, err := svc.DeleteBreakdown(ctx, drop.Breakdown.ID, "auditor")
	require.NoError(t, err)
	assert.Empty(t, again.Cascade)

	_, err = svc.RestoreBreakdown(ctx, drop.Breakdown.ID)
	require.NoError(t, err)
	gotItem, err = svc.GetBudgetItem(ctx, item.ID)
	require.NoError(t, err)
	assertDec(t, "100", gotItem.TotalBudgetUtilized)

	live, err := svc.ListBreakdowns(ctx, project.ID, false)
	require.NoError(t, err)
	assert.Len(t, live, 2)
	assert.Equal(t, keep.Breakdown.ID, live[0].ID)
}

func TestDeleteProject_ExcludedFromItem(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	item, project := seedItemAndProject(t, svc, false)

	_, err := svc.DeleteProject(ctx, project.ID, "admin")
	require.NoError(t, err)

	gotItem, err := svc.GetBudgetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, gotItem.TotalBudgetUtilized.IsZero())
	assert.Equal(t, 0, gotItem.Tallies.Ongoing)

	_, err = svc.CreateBreakdown(ctx, BreakdownInput{ProjectID: project.ID, Name: "Late", Allocated: dec("1"), Utilized: dec("0")})
	assert.ErrorIs(t, err, common.ErrParentDeleted)

	_, err = svc.RestoreProject(ctx, project.ID)
	require.NoError(t, err)
	gotItem, err = svc.GetBudgetItem(ctx, item.ID)
	require.NoError(t, err)
	assertDec(t, "250", gotItem.TotalBudgetUtilized)
}

func TestManualEditsRequireManualMode(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	item, project := seedItemAndProject(t, svc, true)

	_, err := svc.UpdateProject(ctx, project.ID, ProjectUpdate{Utilized: decPtr("10")})
	assert.ErrorIs(t, err, common.ErrDerivedField)

	_, err = svc.CreateProject(ctx, ProjectInput{BudgetItemID: item.ID, Name: "X", Allocated: dec("1"), Utilized: decPtr("1")})
	assert.ErrorIs(t, err, common.ErrDerivedField)

	_, err = svc.SetMode(ctx, project.Node().Ref, rollup.ModeManual, "figures from the field office")
	require.NoError(t, err)

	result, err := svc.UpdateProject(ctx, project.ID, ProjectUpdate{Utilized: decPtr("450"), Reason: "Q3 report"})
	require.NoError(t, err)
	assertDec(t, "450", result.Project.TotalBudgetUtilized)
	assert.InDelta(t, 75.0, result.Project.UtilizationRate, 1e-9)

	gotItem, err := svc.GetBudgetItem(ctx, item.ID)
	require.NoError(t, err)
	assertDec(t, "450", gotItem.TotalBudgetUtilized)

	events, err := svc.Activity(ctx, project.Node().Ref, 0)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, model.ActionUpdate, events[0].Action)
	assert.Equal(t, "Q3 report", events[0].Reason)
	assert.Equal(t, []string{"totalBudgetUtilized"}, events[0].ChangedFields)
}

func TestValidationRejectsNegativeAmounts(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	_, project := seedItemAndProject(t, svc, true)

	_, err := svc.CreateBreakdown(ctx, BreakdownInput{ProjectID: project.ID, Name: "Bad", Allocated: dec("-1"), Utilized: dec("0")})
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = svc.CreateBreakdown(ctx, BreakdownInput{ProjectID: project.ID, Allocated: dec("1"), Utilized: dec("0")})
	assert.ErrorIs(t, err, common.ErrInvalidInput, "name is required")

	_, err = svc.UpdateProject(ctx, project.ID, ProjectUpdate{Allocated: decPtr("-5")})
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestParticularSummaries(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.CreateBudgetItem(ctx, BudgetItemInput{ParticularCode: "GAD", Year: ptr(2024), Allocated: dec("1000"), Status: "ongoing"})
	require.NoError(t, err)
	_, err = svc.CreateBudgetItem(ctx, BudgetItemInput{
		ParticularCode: "GAD", Year: ptr(2024), Allocated: dec("500"), Status: "completed",
		AutoCalculate: ptr(false), Utilized: decPtr("500"),
	})
	require.NoError(t, err)
	_, err = svc.CreateBudgetItem(ctx, BudgetItemInput{ParticularCode: "GAD", Year: ptr(2023), Allocated: dec("9999")})
	require.NoError(t, err)

	summaries, err := svc.ParticularSummaries(ctx, ptr(2024))
	require.NoError(t, err)

	var gad *ParticularSummary
	for i := range summaries {
		if summaries[i].Particular.Code == "GAD" {
			gad = &summaries[i]
		}
	}
	require.NotNil(t, gad)
	assert.Equal(t, 2, gad.Rollup.Count)
	assertDec(t, "1500", gad.Rollup.TotalAllocated)
	assertDec(t, "500", gad.Rollup.TotalUtilized)
	assertDec(t, "1000", gad.Balance)
	assert.InDelta(t, 100.0/3, gad.UtilizationRate, 1e-6)
	assert.Equal(t, model.StatusCounts{Completed: 1, Ongoing: 1}, gad.Rollup.StatusCounts)
}

func TestBulkSetMode(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	item, project := seedItemAndProject(t, svc, true)

	refs := []model.NodeRef{
		project.Node().Ref,
		{Type: model.NodeProject, ID: "ghost"},
		item.Node().Ref,
	}

	var progress []int
	outcomes := svc.BulkSetMode(ctx, refs, rollup.ModeManual, "year-end close", func(i int, _ cascade.ToggleOutcome) {
		progress = append(progress, i)
	})

	require.Len(t, outcomes, 3)
	assert.Equal(t, []int{0, 1, 2}, progress)
	assert.True(t, outcomes[0].Changed)
	assert.ErrorIs(t, outcomes[1].Err, common.ErrNotFound)
	assert.True(t, outcomes[2].Changed)

	gotItem, err := svc.GetBudgetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.False(t, gotItem.AutoCalculate)
}
