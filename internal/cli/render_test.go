package cli

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Veraticus/budget-rollup/internal/allocation"
	"github.com/Veraticus/budget-rollup/internal/budget"
	"github.com/Veraticus/budget-rollup/internal/cascade"
	"github.com/Veraticus/budget-rollup/internal/model"
	"github.com/Veraticus/budget-rollup/internal/rollup"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestRenderTable(t *testing.T) {
	out := RenderTable(Table{
		Title:   "Totals",
		Headers: []string{"Name", "Amount"},
		Rows: [][]string{
			{"road", "₱600.00"},
			{SeparatorRow},
			{"total", "₱1,000.00"},
		},
	})

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	assert.Contains(t, lines[0], "Totals")
	assert.True(t, strings.HasPrefix(lines[1], "╭"))
	assert.True(t, strings.HasPrefix(lines[len(lines)-1], "╰"))
	assert.Contains(t, out, "│ road  │   ₱600.00 │")
	assert.Contains(t, out, "│ total │ ₱1,000.00 │")
	assert.Equal(t, 2, strings.Count(out, "├"), "header rule plus separator row")
}

func TestRenderTable_Empty(t *testing.T) {
	assert.Empty(t, RenderTable(Table{}))
}

func TestRenderParticularSummaries(t *testing.T) {
	summaries := []budget.ParticularSummary{
		{
			Particular: model.Particular{Code: "GAD"},
			Rollup: rollup.Result{
				TotalAllocated: dec("1000"),
				TotalObligated: dec("50"),
				TotalUtilized:  dec("250"),
				StatusCounts:   model.StatusCounts{Completed: 1, Ongoing: 1},
				Count:          2,
			},
			Balance:         dec("750"),
			UtilizationRate: 25,
		},
		{
			Particular: model.Particular{Code: "LDRRMF"},
			Rollup: rollup.Result{
				TotalAllocated: dec("3000"),
				TotalObligated: dec("0"),
				TotalUtilized:  dec("750"),
				StatusCounts:   model.StatusCounts{Delayed: 1},
				Count:          1,
			},
			Balance:         dec("2250"),
			UtilizationRate: 25,
		},
	}

	out := RenderParticularSummaries(summaries)
	assert.Contains(t, out, "GAD")
	assert.Contains(t, out, "LDRRMF")
	assert.Contains(t, out, "₱4,000.00")
	assert.Contains(t, out, "₱1,000.00")
	assert.Contains(t, out, "₱3,000.00")
	assert.Contains(t, out, "25.00%")
	assert.Contains(t, out, "1/1/1")
}

func TestRenderBudgetItems(t *testing.T) {
	year := 2024
	out := RenderBudgetItems([]model.BudgetItem{
		{
			ID:                   "item-1",
			ParticularCode:       "GAD",
			Year:                 &year,
			TotalBudgetAllocated: dec("1000"),
			TotalBudgetUtilized:  dec("175"),
			UtilizationRate:      17.5,
			AutoCalculate:        true,
			Tallies:              model.StatusCounts{Completed: 1, Delayed: 1},
		},
		{
			ID:                   "item-2",
			ParticularCode:       "SEF",
			ObligatedBudget:      decimal.NewNullDecimal(dec("20")),
			TotalBudgetAllocated: dec("500"),
			TotalBudgetUtilized:  dec("0"),
		},
	})

	assert.Contains(t, out, "2024")
	assert.Contains(t, out, "⟳ auto")
	assert.Contains(t, out, "✎ manual")
	assert.Contains(t, out, "17.50%")
	assert.Contains(t, out, "₱20.00")
	assert.Contains(t, out, "1/0/1")
}

func TestRenderProjectsAndBreakdowns(t *testing.T) {
	projects := RenderProjects([]model.Project{
		{ID: "p1", Name: "Road", Year: 2024, Status: model.StatusOngoing, TotalBudgetAllocated: dec("600"), TotalBudgetUtilized: dec("0"), AutoCalculate: true},
		{ID: "p2", Name: "Bridge", Year: 2024, Status: model.StatusDelayed, TotalBudgetAllocated: dec("400"), TotalBudgetUtilized: dec("0"), IsDeleted: true},
	})
	assert.Contains(t, projects, "Bridge (deleted)")
	assert.NotContains(t, projects, "Road (deleted)")

	breakdowns := RenderBreakdowns([]model.Breakdown{
		{ID: "b1", Name: "Asphalt", Status: model.StatusCompleted, AllocatedBudget: dec("100"), BudgetUtilized: dec("125"), Balance: dec("-25"), UtilizationRate: 125},
	})
	assert.Contains(t, breakdowns, "-₱25.00")
	assert.Contains(t, breakdowns, "125.00%")
}

func TestRenderAllocation(t *testing.T) {
	exceeded := RenderAllocation(allocation.Check(dec("1000"), []decimal.Decimal{dec("900")}, dec("200")))
	assert.Contains(t, exceeded, "Available:     ₱100.00")
	assert.Contains(t, exceeded, "Exceeds available budget by ₱100.00")

	within := RenderAllocation(allocation.Check(dec("1000"), []decimal.Decimal{dec("600")}, dec("300")))
	assert.Contains(t, within, "Within budget, ₱100.00 left")
}

func TestRenderToggle(t *testing.T) {
	ref := model.NodeRef{Type: model.NodeProject, ID: "p1"}

	unchanged := RenderToggle(&cascade.ToggleResult{Ref: ref, Previous: rollup.ModeAuto, Current: rollup.ModeAuto})
	assert.Contains(t, unchanged, "project:p1 is already auto")

	changed := RenderToggle(&cascade.ToggleResult{
		Ref:      ref,
		Previous: rollup.ModeManual,
		Current:  rollup.ModeAuto,
		Changed:  true,
		Levels: []cascade.LevelResult{{
			Before:  model.Node{Ref: ref, Utilized: dec("1000")},
			After:   model.Node{Ref: ref, Utilized: dec("1500")},
			Mode:    rollup.ModeAuto,
			Changed: []string{"totalBudgetUtilized"},
		}},
	})
	assert.Contains(t, changed, "project:p1: manual → auto")
	assert.Contains(t, changed, "₱1,000.00 → ₱1,500.00")
	assert.Contains(t, changed, "totalBudgetUtilized")
}

func TestRenderBulkSummary(t *testing.T) {
	outcomes := []cascade.ToggleOutcome{
		{Ref: model.NodeRef{Type: model.NodeProject, ID: "a"}, Changed: true},
		{Ref: model.NodeRef{Type: model.NodeProject, ID: "b"}},
		{Ref: model.NodeRef{Type: model.NodeProject, ID: "c"}, Err: errors.New("not found")},
	}

	out := RenderBulkSummary(outcomes)
	assert.Contains(t, out, "1 of 3 node(s) changed")
	assert.Contains(t, out, "1 already in target mode")
	assert.Contains(t, out, "1 failed")
	assert.Contains(t, out, "project:c")
	assert.Contains(t, out, "not found")
	assert.NotContains(t, out, "project:a")
}

func TestRenderActivity(t *testing.T) {
	assert.Contains(t, RenderActivity(nil), "No activity recorded.")

	out := RenderActivity([]model.ActivityEvent{{
		CreatedAt:     time.Date(2024, 3, 1, 9, 30, 0, 0, time.Local),
		Action:        model.ActionModeToggle,
		ChangedFields: []string{"autoCalculateBudgetUtilized", "totalBudgetUtilized"},
		Reason:        "audit",
	}})
	assert.Contains(t, out, "2024-03-01 09:30")
	assert.Contains(t, out, "mode_toggle")
	assert.Contains(t, out, "autoCalculateBudgetUtilized, totalBudgetUtilized")
	assert.Contains(t, out, "audit")
}
