package main

import (
	"fmt"
	"strings"

	"github.com/Veraticus/budget-rollup/internal/allocation"
	"github.com/Veraticus/budget-rollup/internal/budget"
	"github.com/Veraticus/budget-rollup/internal/cascade"
	"github.com/Veraticus/budget-rollup/internal/cli"
	"github.com/Veraticus/budget-rollup/internal/model"
	"github.com/Veraticus/budget-rollup/internal/service"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// addAmountFlags registers the financial flags shared by the create and
// update commands of every level.
func addAmountFlags(flags *pflag.FlagSet, allocatedName, utilizedName string) {
	flags.String(allocatedName, "", "Allocated budget")
	flags.String(utilizedName, "", "Utilized budget (manual mode only for items and projects)")
	flags.String("obligated", "", "Obligated budget (manual mode only for items and projects)")
}

// renderMutation renders an allocation warning and the cascade a write
// triggered.
func renderMutation(headline string, alloc *allocation.Result, levels []cascade.LevelResult) string {
	var b strings.Builder
	b.WriteString(cli.FormatSuccess(headline))
	b.WriteString("\n")
	if alloc != nil && alloc.IsExceeded {
		b.WriteString(cli.RenderAllocation(*alloc))
		b.WriteString("\n")
	}
	if len(levels) > 0 {
		b.WriteString(cli.RenderCascade(levels))
	}
	return b.String()
}

func itemsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "items",
		Aliases: []string{"item", "budget-items"},
		Short:   "Manage budget items",
		Long:    `Create, list, show and update the yearly budget items filed under each particular.`,
	}

	cmd.AddCommand(createItemCmd())
	cmd.AddCommand(listItemsCmd())
	cmd.AddCommand(showItemCmd())
	cmd.AddCommand(updateItemCmd())

	return cmd
}

func createItemCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "create <particular>",
		Short:   "Create a budget item",
		Example: `  rollup items create GAD --allocated 1000000 --year 2024`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			in := budget.BudgetItemInput{
				ParticularCode: args[0],
				Year:           intFlag(flags, "year"),
				AutoCalculate:  boolFlag(flags, "auto"),
			}
			in.Status, _ = flags.GetString("status")

			allocated, err := amountFlag(flags, "allocated")
			if err != nil {
				return err
			}
			if allocated != nil {
				in.Allocated = *allocated
			}
			if in.Utilized, err = amountFlag(flags, "utilized"); err != nil {
				return err
			}
			if in.Obligated, err = amountFlag(flags, "obligated"); err != nil {
				return err
			}

			return withService(cmd.Context(), func(svc *budget.Service) error {
				result, err := svc.CreateBudgetItem(cmd.Context(), in)
				if err != nil {
					return err
				}
				return show(cmd, result.BudgetItem, func() string {
					return renderMutation(fmt.Sprintf("Created budget item %s", result.BudgetItem.ID), nil, nil) +
						cli.RenderBudgetItems([]model.BudgetItem{*result.BudgetItem})
				})
			})
		},
	}

	flags := cmd.Flags()
	addAmountFlags(flags, "allocated", "utilized")
	flags.Int("year", 0, "Budget year")
	flags.String("status", "", "Status (completed, ongoing, delayed, draft)")
	flags.Bool("auto", true, "Auto-calculate utilized and obligated from projects")
	_ = cmd.MarkFlagRequired("allocated")

	return cmd
}

func listItemsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List budget items",
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter := service.BudgetItemFilter{Year: intFlag(cmd.Flags(), "year")}
			filter.ParticularCode, _ = cmd.Flags().GetString("particular")

			return withService(cmd.Context(), func(svc *budget.Service) error {
				items, err := svc.ListBudgetItems(cmd.Context(), filter)
				if err != nil {
					return fmt.Errorf("failed to list budget items: %w", err)
				}
				return show(cmd, items, func() string { return cli.RenderBudgetItems(items) })
			})
		},
	}

	cmd.Flags().Int("year", 0, "Only items of this year")
	cmd.Flags().String("particular", "", "Only items under this particular")

	return cmd
}

func showItemCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a budget item and its projects",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deleted, _ := cmd.Flags().GetBool("deleted")

			return withService(cmd.Context(), func(svc *budget.Service) error {
				item, err := svc.GetBudgetItem(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				projects, err := svc.ListProjects(cmd.Context(), item.ID, deleted)
				if err != nil {
					return err
				}

				view := struct {
					BudgetItem *model.BudgetItem `json:"budgetItem"`
					Projects   []model.Project   `json:"projects"`
				}{item, projects}
				return show(cmd, view, func() string {
					return cli.RenderBudgetItems([]model.BudgetItem{*item}) + cli.RenderProjects(projects)
				})
			})
		},
	}

	cmd.Flags().Bool("deleted", false, "Include soft-deleted projects")

	return cmd
}

func updateItemCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a budget item",
		Long: `Update a budget item. Utilized and obligated amounts can only be set
while the item is in manual mode; see 'rollup mode set'.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			in := budget.BudgetItemUpdate{
				Year:   intFlag(flags, "year"),
				Status: stringFlag(flags, "status"),
			}
			in.Reason, _ = flags.GetString("reason")

			var err error
			if in.Allocated, err = amountFlag(flags, "allocated"); err != nil {
				return err
			}
			if in.Utilized, err = amountFlag(flags, "utilized"); err != nil {
				return err
			}
			if in.Obligated, err = amountFlag(flags, "obligated"); err != nil {
				return err
			}

			return withService(cmd.Context(), func(svc *budget.Service) error {
				result, err := svc.UpdateBudgetItem(cmd.Context(), args[0], in)
				if err != nil {
					return err
				}
				return show(cmd, result.BudgetItem, func() string {
					return renderMutation(fmt.Sprintf("Updated budget item %s", result.BudgetItem.ID), nil, result.Cascade)
				})
			})
		},
	}

	flags := cmd.Flags()
	addAmountFlags(flags, "allocated", "utilized")
	flags.Int("year", 0, "Budget year")
	flags.String("status", "", "Status")
	flags.String("reason", "", "Reason recorded in the activity log")

	return cmd
}
