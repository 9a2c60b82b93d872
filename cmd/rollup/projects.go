package main

import (
	"fmt"

	"github.com/Veraticus/budget-rollup/internal/budget"
	"github.com/Veraticus/budget-rollup/internal/cli"
	"github.com/spf13/cobra"
)

func projectsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "projects",
		Aliases: []string{"project"},
		Short:   "Manage projects",
		Long: `Create, list, update, delete and restore projects. Every change
recomputes the owning budget item.`,
	}

	cmd.AddCommand(createProjectCmd())
	cmd.AddCommand(listProjectsCmd())
	cmd.AddCommand(updateProjectCmd())
	cmd.AddCommand(deleteProjectCmd())
	cmd.AddCommand(restoreProjectCmd())

	return cmd
}

func createProjectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "create <budget item id> <name>",
		Short:   "Create a project under a budget item",
		Example: `  rollup projects create 6f1c... "Barangay road concreting" --allocated 600000`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			in := budget.ProjectInput{
				BudgetItemID:  args[0],
				Name:          args[1],
				Year:          intFlag(flags, "year"),
				AutoCalculate: boolFlag(flags, "auto"),
			}
			in.Status, _ = flags.GetString("status")
			in.Particulars, _ = flags.GetString("particulars")

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
				result, err := svc.CreateProject(cmd.Context(), in)
				if err != nil {
					return err
				}
				return show(cmd, result, func() string {
					return renderMutation(fmt.Sprintf("Created project %s", result.Project.ID), result.Allocation, result.Cascade)
				})
			})
		},
	}

	flags := cmd.Flags()
	addAmountFlags(flags, "allocated", "utilized")
	flags.Int("year", 0, "Project year (default: the budget item's year)")
	flags.String("status", "ongoing", "Status (completed, ongoing, delayed)")
	flags.String("particulars", "", "Particulars text (default: the budget item's particular)")
	flags.Bool("auto", true, "Auto-calculate utilized and obligated from breakdowns")
	_ = cmd.MarkFlagRequired("allocated")

	return cmd
}

func listProjectsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <budget item id>",
		Short: "List the projects of a budget item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deleted, _ := cmd.Flags().GetBool("deleted")
			return withService(cmd.Context(), func(svc *budget.Service) error {
				projects, err := svc.ListProjects(cmd.Context(), args[0], deleted)
				if err != nil {
					return fmt.Errorf("failed to list projects: %w", err)
				}
				return show(cmd, projects, func() string { return cli.RenderProjects(projects) })
			})
		},
	}

	cmd.Flags().Bool("deleted", false, "Include soft-deleted projects")

	return cmd
}

func updateProjectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a project",
		Long: `Update a project. Utilized and obligated amounts can only be set while
the project is in manual mode; see 'rollup mode set'.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			in := budget.ProjectUpdate{
				Year:        intFlag(flags, "year"),
				Name:        stringFlag(flags, "name"),
				Particulars: stringFlag(flags, "particulars"),
				Status:      stringFlag(flags, "status"),
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
				result, err := svc.UpdateProject(cmd.Context(), args[0], in)
				if err != nil {
					return err
				}
				return show(cmd, result, func() string {
					return renderMutation(fmt.Sprintf("Updated project %s", result.Project.ID), result.Allocation, result.Cascade)
				})
			})
		},
	}

	flags := cmd.Flags()
	addAmountFlags(flags, "allocated", "utilized")
	flags.Int("year", 0, "Project year")
	flags.String("name", "", "Project name")
	flags.String("particulars", "", "Particulars text")
	flags.String("status", "", "Status")
	flags.String("reason", "", "Reason recorded in the activity log")

	return cmd
}

func deleteProjectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Soft-delete a project",
		Long:  `Soft-delete a project. It drops out of its budget item's totals until restored.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			by, _ := cmd.Flags().GetString("by")
			return withService(cmd.Context(), func(svc *budget.Service) error {
				result, err := svc.DeleteProject(cmd.Context(), args[0], by)
				if err != nil {
					return err
				}
				return show(cmd, result, func() string {
					return renderMutation(fmt.Sprintf("Deleted project %s", args[0]), nil, result.Cascade)
				})
			})
		},
	}

	cmd.Flags().String("by", "", "Who deleted the project")

	return cmd
}

func restoreProjectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <id>",
		Short: "Restore a soft-deleted project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), func(svc *budget.Service) error {
				result, err := svc.RestoreProject(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return show(cmd, result, func() string {
					return renderMutation(fmt.Sprintf("Restored project %s", args[0]), nil, result.Cascade)
				})
			})
		},
	}
}
