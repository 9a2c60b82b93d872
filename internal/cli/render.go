package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Veraticus/budget-rollup/internal/allocation"
	"github.com/Veraticus/budget-rollup/internal/budget"
	"github.com/Veraticus/budget-rollup/internal/cascade"
	"github.com/Veraticus/budget-rollup/internal/model"
	"github.com/Veraticus/budget-rollup/internal/money"
	"github.com/Veraticus/budget-rollup/internal/rollup"
	"github.com/shopspring/decimal"
)

const timeLayout = "2006-01-02 15:04"

// ModeLabel renders an auto-calculate flag.
func ModeLabel(auto bool) string {
	if auto {
		return AutoIcon + " auto"
	}
	return ManualIcon + " manual"
}

func obligated(d decimal.NullDecimal) string {
	if !d.Valid {
		return "-"
	}
	return money.Format(d.Decimal)
}

func tallies(c model.StatusCounts) string {
	return fmt.Sprintf("%d/%d/%d", c.Completed, c.Ongoing, c.Delayed)
}

// RenderParticularSummaries renders the per-particular rollup report with a
// grand total row.
func RenderParticularSummaries(summaries []budget.ParticularSummary) string {
	t := Table{
		Title:   "Budget by particular",
		Headers: []string{"Particular", "Items", "Allocated", "Obligated", "Utilized", "Balance", "Rate", "Done/On track/Delayed"},
	}

	var records []model.ChildRecord
	for _, s := range summaries {
		r := s.Rollup
		t.Rows = append(t.Rows, []string{
			s.Particular.Code,
			strconv.Itoa(r.Count),
			money.Format(r.TotalAllocated),
			money.Format(r.TotalObligated),
			money.Format(r.TotalUtilized),
			money.Format(s.Balance),
			money.FormatRate(s.UtilizationRate),
			tallies(r.StatusCounts),
		})
		records = append(records, model.ChildRecord{
			Allocated: r.TotalAllocated,
			Obligated: decimal.NewNullDecimal(r.TotalObligated),
			Utilized:  r.TotalUtilized,
		})
	}

	total := rollup.Aggregate(records)
	items := 0
	counts := model.StatusCounts{}
	for _, s := range summaries {
		items += s.Rollup.Count
		counts.Completed += s.Rollup.StatusCounts.Completed
		counts.Ongoing += s.Rollup.StatusCounts.Ongoing
		counts.Delayed += s.Rollup.StatusCounts.Delayed
	}
	t.Rows = append(t.Rows, []string{SeparatorRow}, []string{
		"Total",
		strconv.Itoa(items),
		money.Format(total.TotalAllocated),
		money.Format(total.TotalObligated),
		money.Format(total.TotalUtilized),
		money.Format(money.Balance(total.TotalAllocated, total.TotalUtilized)),
		money.FormatRate(money.UtilizationRate(total.TotalUtilized, total.TotalAllocated)),
		tallies(counts),
	})

	return RenderTable(t)
}

// RenderParticulars lists particular codes.
func RenderParticulars(particulars []model.Particular) string {
	t := Table{Headers: []string{"Code", "Name", "Active", "System"}}
	for _, p := range particulars {
		t.Rows = append(t.Rows, []string{p.Code, p.FullName, yesNo(p.IsActive), yesNo(p.IsSystemDefault)})
	}
	return RenderTable(t)
}

// RenderBudgetItems lists budget items with their aggregates.
func RenderBudgetItems(items []model.BudgetItem) string {
	t := Table{Headers: []string{"ID", "Particular", "Year", "Mode", "Allocated", "Obligated", "Utilized", "Rate", "Done/On track/Delayed"}}
	for _, item := range items {
		year := "-"
		if item.Year != nil {
			year = strconv.Itoa(*item.Year)
		}
		t.Rows = append(t.Rows, []string{
			item.ID,
			item.ParticularCode,
			year,
			ModeLabel(item.AutoCalculate),
			money.Format(item.TotalBudgetAllocated),
			obligated(item.ObligatedBudget),
			money.Format(item.TotalBudgetUtilized),
			money.FormatRate(item.UtilizationRate),
			tallies(item.Tallies),
		})
	}
	return RenderTable(t)
}

// RenderProjects lists projects with their aggregates. Deleted projects are
// marked.
func RenderProjects(projects []model.Project) string {
	t := Table{Headers: []string{"ID", "Name", "Year", "Status", "Mode", "Allocated", "Obligated", "Utilized", "Rate"}}
	for _, p := range projects {
		name := p.Name
		if p.IsDeleted {
			name += " (deleted)"
		}
		t.Rows = append(t.Rows, []string{
			p.ID,
			name,
			strconv.Itoa(p.Year),
			string(p.Status),
			ModeLabel(p.AutoCalculate),
			money.Format(p.TotalBudgetAllocated),
			obligated(p.ObligatedBudget),
			money.Format(p.TotalBudgetUtilized),
			money.FormatRate(p.UtilizationRate),
		})
	}
	return RenderTable(t)
}

// RenderBreakdowns lists breakdown records.
func RenderBreakdowns(breakdowns []model.Breakdown) string {
	t := Table{Headers: []string{"ID", "Name", "Status", "Allocated", "Obligated", "Utilized", "Balance", "Rate"}}
	for _, b := range breakdowns {
		name := b.Name
		if b.IsDeleted {
			name += " (deleted)"
		}
		t.Rows = append(t.Rows, []string{
			b.ID,
			name,
			string(b.Status),
			money.Format(b.AllocatedBudget),
			obligated(b.ObligatedBudget),
			money.Format(b.BudgetUtilized),
			money.Format(b.Balance),
			money.FormatRate(b.UtilizationRate),
		})
	}
	return RenderTable(t)
}

// RenderAllocation renders an allocation check. Exceeded allocations are
// shown as a warning, never as an error.
func RenderAllocation(r allocation.Result) string {
	lines := []string{
		fmt.Sprintf("Parent total:  %s", money.Format(r.ParentTotal)),
		fmt.Sprintf("Allocated to %d sibling(s): %s", r.SiblingCount, money.Format(r.SiblingTotal)),
		fmt.Sprintf("Available:     %s", money.Format(r.Available)),
		fmt.Sprintf("Requested:     %s", money.Format(r.Candidate)),
	}
	body := strings.Join(lines, "\n")
	if r.IsExceeded {
		body += "\n\n" + FormatWarning(fmt.Sprintf("Exceeds available budget by %s", money.Format(r.Remaining().Neg())))
	} else {
		body += "\n\n" + FormatSuccess(fmt.Sprintf("Within budget, %s left", money.Format(r.Remaining())))
	}
	return RenderBox("Allocation check", body)
}

// RenderCascade renders the levels a recompute touched, bottom-up.
func RenderCascade(levels []cascade.LevelResult) string {
	if len(levels) == 0 {
		return SubtleStyle.Render("No levels recomputed.") + "\n"
	}
	t := Table{Headers: []string{"Node", "Mode", "Utilized", "Obligated", "Rate", "Changed"}}
	for _, l := range levels {
		changed := "-"
		if len(l.Changed) > 0 {
			changed = strings.Join(l.Changed, ", ")
		}
		t.Rows = append(t.Rows, []string{
			l.After.Ref.String(),
			string(l.Mode),
			transition(money.Format(l.Before.Utilized), money.Format(l.After.Utilized)),
			transition(obligated(l.Before.Obligated), obligated(l.After.Obligated)),
			transition(money.FormatRate(l.Before.UtilizationRate), money.FormatRate(l.After.UtilizationRate)),
			changed,
		})
	}
	return RenderTable(t)
}

func transition(before, after string) string {
	if before == after {
		return after
	}
	return before + " → " + after
}

// RenderToggle renders a single mode change and the cascade it triggered.
func RenderToggle(r *cascade.ToggleResult) string {
	if !r.Changed {
		return FormatInfo(fmt.Sprintf("%s is already %s", r.Ref, r.Current)) + "\n"
	}
	return FormatSuccess(fmt.Sprintf("%s: %s → %s", r.Ref, r.Previous, r.Current)) + "\n" +
		RenderCascade(r.Levels)
}

// RenderBulkSummary renders the totals of a bulk toggle followed by every
// failure.
func RenderBulkSummary(outcomes []cascade.ToggleOutcome) string {
	s := cascade.Summarize(outcomes)

	var b strings.Builder
	b.WriteString(FormatSuccess(fmt.Sprintf("%d of %d node(s) changed", s.Changed, s.Total)))
	b.WriteString("\n")
	if s.Unchanged > 0 {
		b.WriteString(FormatInfo(fmt.Sprintf("%d already in target mode", s.Unchanged)))
		b.WriteString("\n")
	}
	if s.Failed == 0 {
		return b.String()
	}

	b.WriteString(FormatError(fmt.Sprintf("%d failed", s.Failed)))
	b.WriteString("\n")
	t := Table{Headers: []string{"Node", "Error"}}
	for _, o := range outcomes {
		if o.OK() {
			continue
		}
		t.Rows = append(t.Rows, []string{o.Ref.String(), o.Err.Error()})
	}
	b.WriteString(RenderTable(t))
	return b.String()
}

// RenderActivity lists activity events, newest first as stored.
func RenderActivity(events []model.ActivityEvent) string {
	if len(events) == 0 {
		return SubtleStyle.Render("No activity recorded.") + "\n"
	}
	t := Table{Headers: []string{"When", "Action", "Fields", "Reason"}}
	for _, e := range events {
		reason := e.Reason
		if reason == "" {
			reason = "-"
		}
		t.Rows = append(t.Rows, []string{
			e.CreatedAt.Local().Format(timeLayout),
			string(e.Action),
			strings.Join(e.ChangedFields, ", "),
			reason,
		})
	}
	return RenderTable(t)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
