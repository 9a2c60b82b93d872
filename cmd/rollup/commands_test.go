package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Veraticus/budget-rollup/internal/budget"
	"github.com/Veraticus/budget-rollup/internal/config"
	"github.com/Veraticus/budget-rollup/internal/model"
	"github.com/Veraticus/budget-rollup/internal/storage"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_Subcommands(t *testing.T) {
	want := []string{"migrate", "particulars", "items", "projects", "breakdowns", "mode", "allocation", "recompute", "report", "activity", "snapshot", "version"}

	names := make([]string, 0, len(rootCmd.Commands()))
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	for _, name := range want {
		assert.Contains(t, names, name)
	}
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("json"))
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("db"))
}

func TestModeCmd_Flags(t *testing.T) {
	cmd := bulkModeCmd()

	for _, name := range []string{"projects-of", "items", "year", "particular", "reason", "no-snapshot"} {
		assert.NotNil(t, cmd.Flag(name), "%s flag should exist", name)
	}
	assert.Equal(t, "false", cmd.Flag("no-snapshot").DefValue)
}

func TestCreateCmds_RequireAllocated(t *testing.T) {
	for _, cmd := range []*cobra.Command{createItemCmd(), createProjectCmd(), createBreakdownCmd()} {
		flag := cmd.Flag("allocated")
		require.NotNil(t, flag, cmd.Name())
		assert.Equal(t, []string{"true"}, flag.Annotations[cobra.BashCompOneRequiredFlag], cmd.Use)
	}
}

// useTestDatabase points the commands at a fresh database file.
func useTestDatabase(t *testing.T) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "rollup.db")
	previous := appConfig
	appConfig = &config.Config{
		Database: config.DatabaseConfig{Path: dbPath},
		Retry:    config.RetryConfig{MaxAttempts: 3},
	}
	t.Cleanup(func() { appConfig = previous })
	return dbPath
}

// run executes args against a fresh command tree and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := &cobra.Command{Use: "rollup", SilenceUsage: true, SilenceErrors: true}
	root.PersistentFlags().Bool("json", false, "")
	root.AddCommand(particularsCmd(), itemsCmd(), projectsCmd(), breakdownsCmd(),
		modeCmd(), allocationCmd(), recomputeCmd(), reportCmd(), activityCmd(), snapshotCmd())

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(""))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func runJSON(t *testing.T, v any, args ...string) {
	t.Helper()
	out, err := run(t, append([]string{"--json"}, args...)...)
	require.NoError(t, err, out)
	require.NoError(t, json.Unmarshal([]byte(out), v), out)
}

func TestCommands_EndToEnd(t *testing.T) {
	useTestDatabase(t)

	var item model.BudgetItem
	runJSON(t, &item, "items", "create", "GAD", "--allocated", "1,000,000", "--year", "2024")
	require.NotEmpty(t, item.ID)
	assert.True(t, item.AutoCalculate)

	var project struct{ Project model.Project }
	runJSON(t, &project, "projects", "create", item.ID, "Road concreting", "--allocated", "600000")
	require.NotEmpty(t, project.Project.ID)
	assert.Equal(t, 2024, project.Project.Year)

	var bd struct{ Breakdown model.Breakdown }
	runJSON(t, &bd, "breakdowns", "create", project.Project.ID, "Asphalt",
		"--allocated", "400000", "--utilized", "150000", "--status", "completed")
	require.NotEmpty(t, bd.Breakdown.ID)

	var items []model.BudgetItem
	runJSON(t, &items, "items", "list", "--year", "2024")
	require.Len(t, items, 1)
	assert.Equal(t, "150000", items[0].TotalBudgetUtilized.String())
	assert.Equal(t, 1, items[0].Tallies.Ongoing)

	t.Run("allocation warns when exceeded", func(t *testing.T) {
		out, err := run(t, "allocation", "item:"+item.ID, "500000")
		require.NoError(t, err)
		assert.Contains(t, out, "Exceeds available budget")
	})

	t.Run("manual project keeps its figures", func(t *testing.T) {
		out, err := run(t, "mode", "set", "project:"+project.Project.ID, "manual", "--reason", "audited")
		require.NoError(t, err)
		assert.Contains(t, out, "manual")

		_, err = run(t, "breakdowns", "update", bd.Breakdown.ID, "--utilized", "300000")
		require.NoError(t, err)

		var projects []model.Project
		runJSON(t, &projects, "projects", "list", item.ID)
		require.Len(t, projects, 1)
		assert.Equal(t, "150000", projects[0].TotalBudgetUtilized.String())
	})

	t.Run("bulk switch back to auto resyncs", func(t *testing.T) {
		var outcomes []bulkOutcome
		runJSON(t, &outcomes, "mode", "bulk", "auto", "--projects-of", item.ID)
		require.Len(t, outcomes, 1)
		assert.True(t, outcomes[0].Changed)
		assert.Empty(t, outcomes[0].Error)

		var projects []model.Project
		runJSON(t, &projects, "projects", "list", item.ID)
		assert.Equal(t, "300000", projects[0].TotalBudgetUtilized.String())

		var snapshots []storage.SnapshotInfo
		runJSON(t, &snapshots, "snapshot", "list")
		require.Len(t, snapshots, 1)
		assert.True(t, snapshots[0].IsAuto)
	})

	t.Run("report totals per particular", func(t *testing.T) {
		var summaries []budget.ParticularSummary
		runJSON(t, &summaries, "report", "--year", "2024")
		for _, s := range summaries {
			if s.Particular.Code == "GAD" {
				assert.Equal(t, "300000", s.Rollup.TotalUtilized.String())
				return
			}
		}
		t.Fatal("GAD missing from report")
	})

	t.Run("activity lists the mode change", func(t *testing.T) {
		out, err := run(t, "activity", "project:"+project.Project.ID)
		require.NoError(t, err)
		assert.Contains(t, out, "audited")
	})

	t.Run("restore without confirmation is cancelled", func(t *testing.T) {
		_, err := run(t, "snapshot", "create", "--tag", "manual-one")
		require.NoError(t, err)

		out, err := run(t, "snapshot", "restore", "manual-one")
		require.NoError(t, err)
		assert.Contains(t, out, "Restore cancelled.")
	})
}

func TestCommands_Errors(t *testing.T) {
	useTestDatabase(t)

	tests := []struct {
		name string
		want string
		args []string
	}{
		{name: "unknown particular", args: []string{"items", "create", "NOPE", "--allocated", "10"}, want: "NOPE"},
		{name: "bad amount", args: []string{"items", "create", "GAD", "--allocated", "lots"}, want: "invalid allocated"},
		{name: "bad ref", args: []string{"recompute", "vendor:1"}, want: "unknown node type"},
		{name: "recompute needs a target", args: []string{"recompute"}, want: "--all"},
		{name: "bulk with nothing selected", args: []string{"mode", "bulk", "auto", "--no-snapshot"}, want: "no nodes selected"},
		{name: "missing snapshot", args: []string{"snapshot", "delete", "ghost", "--force"}, want: "not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
