package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Veraticus/budget-rollup/internal/budget"
	"github.com/Veraticus/budget-rollup/internal/cascade"
	"github.com/Veraticus/budget-rollup/internal/cli"
	"github.com/Veraticus/budget-rollup/internal/common"
	"github.com/Veraticus/budget-rollup/internal/model"
	"github.com/Veraticus/budget-rollup/internal/rollup"
	"github.com/Veraticus/budget-rollup/internal/service"
	"github.com/Veraticus/budget-rollup/internal/storage"
	"github.com/spf13/cobra"
)

func modeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mode",
		Short: "Switch nodes between auto and manual calculation",
		Long: `In auto mode a budget item or project derives its utilized and
obligated amounts from its children. In manual mode those amounts are
frozen at whatever was last stored and can be edited directly. Status
tallies follow the children in both modes.

Switching back to auto immediately resyncs the node from its children and
recomputes every ancestor.`,
	}

	cmd.AddCommand(setModeCmd())
	cmd.AddCommand(bulkModeCmd())

	return cmd
}

func parseMode(s string) (rollup.Mode, error) {
	mode, ok := rollup.ParseMode(s)
	if !ok {
		return "", common.NewUserError(fmt.Sprintf("mode must be auto or manual, got %q", s), common.ErrInvalidInput)
	}
	return mode, nil
}

func setModeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <type:id> <auto|manual>",
		Short: "Switch one budget item or project",
		Example: `  rollup mode set project:9a2e... manual --reason "audited figures"
  rollup mode set item:6f1c... auto`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := parseRef(args[:1])
			if err != nil {
				return err
			}
			target, err := parseMode(args[1])
			if err != nil {
				return err
			}
			reason, _ := cmd.Flags().GetString("reason")

			return withService(cmd.Context(), func(svc *budget.Service) error {
				result, err := svc.SetMode(cmd.Context(), ref, target, reason)
				if err != nil {
					return err
				}
				return show(cmd, result, func() string { return cli.RenderToggle(result) })
			})
		},
	}

	cmd.Flags().String("reason", "", "Reason recorded in the activity log")

	return cmd
}

func bulkModeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bulk <auto|manual> [type:id ...]",
		Short: "Switch many nodes, one transaction each",
		Long: `Switch many budget items or projects. Each node is switched in its own
transaction, so a failure on one node never undoes another. An automatic
snapshot is taken first unless --no-snapshot is given.`,
		Example: `  rollup mode bulk auto --projects-of 6f1c...
  rollup mode bulk manual --items --year 2024
  rollup mode bulk auto project:9a2e... project:b7d0...`,
		Args: cobra.MinimumNArgs(1),
		RunE: runBulkMode,
	}

	flags := cmd.Flags()
	flags.String("projects-of", "", "Every active project of this budget item")
	flags.Bool("items", false, "Every budget item (narrow with --year and --particular)")
	flags.Int("year", 0, "With --items, only this year")
	flags.String("particular", "", "With --items, only this particular")
	flags.String("reason", "", "Reason recorded in the activity log")
	flags.Bool("no-snapshot", false, "Skip the automatic snapshot")

	return cmd
}

func runBulkMode(cmd *cobra.Command, args []string) error {
	target, err := parseMode(args[0])
	if err != nil {
		return err
	}

	refs := make([]model.NodeRef, 0, len(args)-1)
	for _, arg := range args[1:] {
		ref, err := parseRef([]string{arg})
		if err != nil {
			return err
		}
		refs = append(refs, ref)
	}

	flags := cmd.Flags()
	reason, _ := flags.GetString("reason")
	noSnapshot, _ := flags.GetBool("no-snapshot")
	projectsOf, _ := flags.GetString("projects-of")
	allItems, _ := flags.GetBool("items")
	filter := service.BudgetItemFilter{Year: intFlag(flags, "year")}
	filter.ParticularCode, _ = flags.GetString("particular")

	out := cmd.OutOrStdout()
	return withStore(cmd.Context(), func(store *storage.SQLiteStorage, svc *budget.Service) error {
		ctx := cmd.Context()

		if projectsOf != "" {
			projects, err := svc.ListProjects(ctx, projectsOf, false)
			if err != nil {
				return err
			}
			for _, p := range projects {
				refs = append(refs, p.Node().Ref)
			}
		}
		if allItems {
			items, err := svc.ListBudgetItems(ctx, filter)
			if err != nil {
				return err
			}
			for _, item := range items {
				refs = append(refs, item.Node().Ref)
			}
		}
		if len(refs) == 0 {
			return common.NewUserError("no nodes selected", common.ErrInvalidInput)
		}

		if !noSnapshot {
			if err := autoSnapshot(ctx, store, "bulk-mode"); err != nil {
				return err
			}
		}

		interrupts := cli.NewInterruptHandler(out, "Bulk mode change").
			WithResumeHint("rerun the same command; nodes already switched are left as they are")
		ctx = interrupts.HandleInterrupts(ctx)

		var (
			observe  func(int, cascade.ToggleOutcome)
			progress *cli.BulkProgress
		)
		if !wantJSON(cmd) {
			progress = cli.NewBulkProgress(out, len(refs), fmt.Sprintf("Switching %d node(s) to %s", len(refs), target))
			observe = progress.Observe
		}

		outcomes := svc.BulkSetMode(ctx, refs, target, reason, observe)
		if progress != nil {
			progress.Finish()
		}
		return show(cmd, bulkView(outcomes), func() string { return cli.RenderBulkSummary(outcomes) })
	})
}

func autoSnapshot(ctx context.Context, store *storage.SQLiteStorage, operation string) error {
	snapshots, err := store.Snapshots()
	if errors.Is(err, storage.ErrSnapshotInMemory) {
		return nil
	}
	if err != nil {
		return err
	}
	info, err := snapshots.Auto(ctx, operation)
	if err != nil {
		return err
	}
	slog.Info("snapshot taken", "id", info.ID)
	return nil
}

type bulkOutcome struct {
	Ref      model.NodeRef `json:"ref"`
	Previous rollup.Mode   `json:"previous,omitempty"`
	Current  rollup.Mode   `json:"current,omitempty"`
	Error    string        `json:"error,omitempty"`
	Changed  bool          `json:"changed"`
}

func bulkView(outcomes []cascade.ToggleOutcome) []bulkOutcome {
	view := make([]bulkOutcome, len(outcomes))
	for i, o := range outcomes {
		view[i] = bulkOutcome{Ref: o.Ref, Previous: o.Previous, Current: o.Current, Changed: o.Changed}
		if o.Err != nil {
			view[i].Error = o.Err.Error()
		}
	}
	return view
}
