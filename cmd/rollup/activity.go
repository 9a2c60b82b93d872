package main

import (
	"github.com/Veraticus/budget-rollup/internal/budget"
	"github.com/Veraticus/budget-rollup/internal/cli"
	"github.com/Veraticus/budget-rollup/internal/common"
	"github.com/spf13/cobra"
)

func activityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "activity <type:id>",
		Short: "Show the change history of a node",
		Long: `List recorded changes to a budget item, project or breakdown, newest
first. Recalculations triggered by a cascade are listed alongside direct
edits.`,
		Example: `  rollup activity project:9a2e...
  rollup activity item 6f1c... --limit 50`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := parseRef(args)
			if err != nil {
				return err
			}
			limit, _ := cmd.Flags().GetInt("limit")
			if limit <= 0 {
				return common.NewUserError("--limit must be positive", common.ErrInvalidInput)
			}

			return withService(cmd.Context(), func(svc *budget.Service) error {
				events, err := svc.Activity(cmd.Context(), ref, limit)
				if err != nil {
					return err
				}
				return show(cmd, events, func() string { return cli.RenderActivity(events) })
			})
		},
	}

	cmd.Flags().Int("limit", 20, "Maximum number of entries")

	return cmd
}
