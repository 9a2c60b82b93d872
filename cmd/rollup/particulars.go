package main

import (
	"fmt"

	"github.com/Veraticus/budget-rollup/internal/budget"
	"github.com/Veraticus/budget-rollup/internal/cli"
	"github.com/Veraticus/budget-rollup/internal/model"
	"github.com/spf13/cobra"
)

func particularsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "particulars",
		Aliases: []string{"particular"},
		Short:   "Manage budget particulars",
		Long:    `List, add, update, and delete the particular codes budget items are filed under.`,
	}

	cmd.AddCommand(listParticularsCmd())
	cmd.AddCommand(addParticularCmd())
	cmd.AddCommand(updateParticularCmd())
	cmd.AddCommand(deleteParticularCmd())

	return cmd
}

func listParticularsCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List particulars",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd.Context(), func(svc *budget.Service) error {
				particulars, err := svc.ListParticulars(cmd.Context(), all)
				if err != nil {
					return fmt.Errorf("failed to list particulars: %w", err)
				}
				return show(cmd, particulars, func() string { return cli.RenderParticulars(particulars) })
			})
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "Include inactive particulars")

	return cmd
}

func addParticularCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "add <code> <full name>",
		Short:   "Add a particular",
		Example: `  rollup particulars add MOOE "Maintenance and Other Operating Expenses"`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), func(svc *budget.Service) error {
				p, err := svc.CreateParticular(cmd.Context(), budget.ParticularInput{Code: args[0], FullName: args[1]})
				if err != nil {
					return err
				}
				return show(cmd, p, func() string {
					return cli.FormatSuccess(fmt.Sprintf("Added particular %s", p.Code)) + "\n"
				})
			})
		},
	}
}

func updateParticularCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update <code>",
		Short: "Rename or (de)activate a particular",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := budget.ParticularUpdate{
				FullName: stringFlag(cmd.Flags(), "name"),
				IsActive: boolFlag(cmd.Flags(), "active"),
			}
			return withService(cmd.Context(), func(svc *budget.Service) error {
				p, err := svc.UpdateParticular(cmd.Context(), args[0], in)
				if err != nil {
					return err
				}
				return show(cmd, p, func() string { return cli.RenderParticulars([]model.Particular{*p}) })
			})
		},
	}

	cmd.Flags().String("name", "", "New full name")
	cmd.Flags().Bool("active", true, "Whether the particular accepts new budget items")

	return cmd
}

func deleteParticularCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <code>",
		Short: "Delete an unused particular",
		Long:  `Delete a particular. System defaults and particulars referenced by budget items cannot be deleted.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), func(svc *budget.Service) error {
				if err := svc.DeleteParticular(cmd.Context(), args[0]); err != nil {
					return err
				}
				_, err := fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Deleted particular %s", args[0])))
				return err
			})
		},
	}
}
