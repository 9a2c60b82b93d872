package main

import (
	"fmt"

	"github.com/Veraticus/budget-rollup/internal/budget"
	"github.com/Veraticus/budget-rollup/internal/cascade"
	"github.com/Veraticus/budget-rollup/internal/cli"
	"github.com/Veraticus/budget-rollup/internal/common"
	"github.com/Veraticus/budget-rollup/internal/model"
	"github.com/Veraticus/budget-rollup/internal/service"
	"github.com/spf13/cobra"
)

func recomputeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recompute [type:id]",
		Short: "Re-derive aggregates from children",
		Long: `Recompute a budget item or project and every ancestor from the stored
children. Use it after a failed cascade to bring totals back in sync.
With --all, every project and then every budget item is recomputed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			all, _ := cmd.Flags().GetBool("all")
			if all == (len(args) == 1) {
				return common.NewUserError("give either a node or --all", common.ErrInvalidInput)
			}

			return withService(cmd.Context(), func(svc *budget.Service) error {
				ctx := cmd.Context()
				if !all {
					ref, err := parseRef(args)
					if err != nil {
						return err
					}
					levels, err := svc.Recompute(ctx, ref)
					if err != nil {
						return err
					}
					return show(cmd, levels, func() string { return cli.RenderCascade(levels) })
				}

				levels, err := recomputeAll(cmd, svc)
				if err != nil {
					return err
				}
				return show(cmd, levels, func() string {
					return cli.FormatSuccess(fmt.Sprintf("Recomputed %d level(s)", len(levels))) + "\n" + cli.RenderCascade(changedOnly(levels))
				})
			})
		},
	}

	cmd.Flags().Bool("all", false, "Recompute every project and budget item")

	return cmd
}

// recomputeAll walks projects before their items so each item sees
// freshly derived project totals.
func recomputeAll(cmd *cobra.Command, svc *budget.Service) ([]cascade.LevelResult, error) {
	ctx := cmd.Context()
	items, err := svc.ListBudgetItems(ctx, service.BudgetItemFilter{})
	if err != nil {
		return nil, err
	}

	var levels []cascade.LevelResult
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return levels, err
		}
		projects, err := svc.ListProjects(ctx, item.ID, false)
		if err != nil {
			return levels, err
		}
		refs := make([]model.NodeRef, 0, len(projects)+1)
		for _, p := range projects {
			refs = append(refs, p.Node().Ref)
		}
		if len(refs) == 0 {
			refs = append(refs, item.Node().Ref)
		}
		for _, ref := range refs {
			got, err := svc.Recompute(ctx, ref)
			if err != nil {
				return levels, fmt.Errorf("recompute %s: %w", ref, err)
			}
			levels = append(levels, got...)
		}
	}
	return levels, nil
}

func changedOnly(levels []cascade.LevelResult) []cascade.LevelResult {
	changed := make([]cascade.LevelResult, 0, len(levels))
	for _, l := range levels {
		if len(l.Changed) > 0 {
			changed = append(changed, l)
		}
	}
	return changed
}
