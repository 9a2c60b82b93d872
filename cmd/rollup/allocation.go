package main

import (
	"github.com/Veraticus/budget-rollup/internal/allocation"
	"github.com/Veraticus/budget-rollup/internal/budget"
	"github.com/Veraticus/budget-rollup/internal/cli"
	"github.com/Veraticus/budget-rollup/internal/common"
	"github.com/Veraticus/budget-rollup/internal/model"
	"github.com/spf13/cobra"
)

func allocationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "allocation <type:id> <amount>",
		Short: "Check an allocation against what its parent has left",
		Long: `Check whether allocating an amount to a new child of a budget item or
project would exceed the parent's allocation. The result is advisory:
writes are never blocked on it.

Pass --exclude with the id of the child being edited so its current
allocation is not counted twice.`,
		Example: `  rollup allocation item:6f1c... 200000
  rollup allocation project:9a2e... 50000 --exclude b7d0...`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			parent, err := parseRef(args[:1])
			if err != nil {
				return err
			}
			candidate, err := parseAmount(args[1], "amount")
			if err != nil {
				return err
			}
			exclude, _ := cmd.Flags().GetString("exclude")

			return withService(cmd.Context(), func(svc *budget.Service) error {
				var result *allocation.Result
				switch parent.Type {
				case model.NodeBudgetItem:
					result, err = svc.CheckProjectAllocation(cmd.Context(), parent.ID, exclude, candidate)
				case model.NodeProject:
					result, err = svc.CheckBreakdownAllocation(cmd.Context(), parent.ID, exclude, candidate)
				default:
					return common.NewUserError("allocations are checked against a budget item or project", common.ErrInvalidInput)
				}
				if err != nil {
					return err
				}
				return show(cmd, result, func() string { return cli.RenderAllocation(*result) + "\n" })
			})
		},
	}

	cmd.Flags().String("exclude", "", "Id of the child being edited")

	return cmd
}
