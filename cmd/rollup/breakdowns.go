package main

import (
	"fmt"

	"github.com/Veraticus/budget-rollup/internal/budget"
	"github.com/Veraticus/budget-rollup/internal/cli"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func breakdownsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "breakdowns",
		Aliases: []string{"breakdown"},
		Short:   "Manage project breakdowns",
		Long: `Create, list, update, delete and restore the line items under a
project. Every change recomputes the project and its budget item.`,
	}

	cmd.AddCommand(createBreakdownCmd())
	cmd.AddCommand(listBreakdownsCmd())
	cmd.AddCommand(updateBreakdownCmd())
	cmd.AddCommand(deleteBreakdownCmd())
	cmd.AddCommand(restoreBreakdownCmd())

	return cmd
}

func addDateFlags(flags *pflag.FlagSet) {
	flags.String("started", "", "Date started (YYYY-MM-DD)")
	flags.String("target", "", "Target completion date (YYYY-MM-DD)")
	flags.String("completed", "", "Completion date (YYYY-MM-DD)")
}

func createBreakdownCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "create <project id> <name>",
		Short:   "Create a breakdown under a project",
		Example: `  rollup breakdowns create 9a2e... "Asphalt" --allocated 200000 --utilized 100000 --status completed`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			in := budget.BreakdownInput{ProjectID: args[0], Name: args[1]}
			in.Status, _ = flags.GetString("status")

			allocated, err := amountFlag(flags, "allocated")
			if err != nil {
				return err
			}
			if allocated != nil {
				in.Allocated = *allocated
			}
			utilized, err := amountFlag(flags, "utilized")
			if err != nil {
				return err
			}
			if utilized != nil {
				in.Utilized = *utilized
			}
			if in.Obligated, err = amountFlag(flags, "obligated"); err != nil {
				return err
			}
			if in.DateStarted, err = dateFlag(flags, "started"); err != nil {
				return err
			}
			if in.TargetDate, err = dateFlag(flags, "target"); err != nil {
				return err
			}
			if in.CompletionDate, err = dateFlag(flags, "completed"); err != nil {
				return err
			}

			return withService(cmd.Context(), func(svc *budget.Service) error {
				result, err := svc.CreateBreakdown(cmd.Context(), in)
				if err != nil {
					return err
				}
				return show(cmd, result, func() string {
					return renderMutation(fmt.Sprintf("Created breakdown %s", result.Breakdown.ID), result.Allocation, result.Cascade)
				})
			})
		},
	}

	flags := cmd.Flags()
	addAmountFlags(flags, "allocated", "utilized")
	addDateFlags(flags)
	flags.String("status", "not_available", "Status (completed, ongoing, delayed, not_available)")
	_ = cmd.MarkFlagRequired("allocated")

	return cmd
}

func listBreakdownsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <project id>",
		Short: "List the breakdowns of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deleted, _ := cmd.Flags().GetBool("deleted")
			return withService(cmd.Context(), func(svc *budget.Service) error {
				breakdowns, err := svc.ListBreakdowns(cmd.Context(), args[0], deleted)
				if err != nil {
					return fmt.Errorf("failed to list breakdowns: %w", err)
				}
				return show(cmd, breakdowns, func() string { return cli.RenderBreakdowns(breakdowns) })
			})
		},
	}

	cmd.Flags().Bool("deleted", false, "Include soft-deleted breakdowns")

	return cmd
}

func updateBreakdownCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a breakdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			in := budget.BreakdownUpdate{
				Name:   stringFlag(flags, "name"),
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
			if in.DateStarted, err = dateFlag(flags, "started"); err != nil {
				return err
			}
			if in.TargetDate, err = dateFlag(flags, "target"); err != nil {
				return err
			}
			if in.CompletionDate, err = dateFlag(flags, "completed"); err != nil {
				return err
			}

			return withService(cmd.Context(), func(svc *budget.Service) error {
				result, err := svc.UpdateBreakdown(cmd.Context(), args[0], in)
				if err != nil {
					return err
				}
				return show(cmd, result, func() string {
					return renderMutation(fmt.Sprintf("Updated breakdown %s", result.Breakdown.ID), result.Allocation, result.Cascade)
				})
			})
		},
	}

	flags := cmd.Flags()
	addAmountFlags(flags, "allocated", "utilized")
	addDateFlags(flags)
	flags.String("name", "", "Breakdown name")
	flags.String("status", "", "Status")
	flags.String("reason", "", "Reason recorded in the activity log")

	return cmd
}

func deleteBreakdownCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Soft-delete a breakdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			by, _ := cmd.Flags().GetString("by")
			return withService(cmd.Context(), func(svc *budget.Service) error {
				result, err := svc.DeleteBreakdown(cmd.Context(), args[0], by)
				if err != nil {
					return err
				}
				return show(cmd, result, func() string {
					return renderMutation(fmt.Sprintf("Deleted breakdown %s", args[0]), nil, result.Cascade)
				})
			})
		},
	}

	cmd.Flags().String("by", "", "Who deleted the breakdown")

	return cmd
}

func restoreBreakdownCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <id>",
		Short: "Restore a soft-deleted breakdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), func(svc *budget.Service) error {
				result, err := svc.RestoreBreakdown(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return show(cmd, result, func() string {
					return renderMutation(fmt.Sprintf("Restored breakdown %s", args[0]), nil, result.Cascade)
				})
			})
		},
	}
}
