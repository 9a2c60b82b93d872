package main

import (
	"github.com/Veraticus/budget-rollup/internal/budget"
	"github.com/Veraticus/budget-rollup/internal/cli"
	"github.com/spf13/cobra"
)

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show budget totals per particular",
		Long: `Summarize allocated, obligated and utilized budget for every particular,
totalled from its budget items. Use --year to limit the report to one
fiscal year.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			year := intFlag(cmd.Flags(), "year")

			return withService(cmd.Context(), func(svc *budget.Service) error {
				summaries, err := svc.ParticularSummaries(cmd.Context(), year)
				if err != nil {
					return err
				}
				return show(cmd, summaries, func() string { return cli.RenderParticularSummaries(summaries) })
			})
		},
	}

	cmd.Flags().Int("year", 0, "Only count budget items of this year")

	return cmd
}
