package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/Veraticus/budget-rollup/internal/budget"
	"github.com/Veraticus/budget-rollup/internal/cli"
	"github.com/Veraticus/budget-rollup/internal/common"
	"github.com/Veraticus/budget-rollup/internal/storage"
	"github.com/spf13/cobra"
)

func snapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Manage database snapshots",
		Long: `Create, list, restore, and delete snapshots of the budget database.

A snapshot is taken automatically before every bulk mode change, so a
toggle that went wrong can be undone with a restore.`,
		Example: `  # Snapshot before year-end adjustments
  rollup snapshot create --tag pre-close-2025

  # List all snapshots
  rollup snapshot list

  # Roll back
  rollup snapshot restore pre-close-2025`,
	}

	cmd.AddCommand(createSnapshotCmd())
	cmd.AddCommand(listSnapshotsCmd())
	cmd.AddCommand(restoreSnapshotCmd())
	cmd.AddCommand(deleteSnapshotCmd())

	return cmd
}

// withSnapshots opens storage and hands its snapshot manager to fn.
func withSnapshots(cmd *cobra.Command, fn func(manager *storage.SnapshotManager) error) error {
	return withStore(cmd.Context(), func(store *storage.SQLiteStorage, _ *budget.Service) error {
		manager, err := store.Snapshots()
		if errors.Is(err, storage.ErrSnapshotInMemory) {
			return common.NewUserError("snapshots need a database file, not :memory:", err)
		}
		if err != nil {
			return fmt.Errorf("failed to open snapshots: %w", err)
		}
		return fn(manager)
	})
}

func snapshotError(id string, err error) error {
	switch {
	case errors.Is(err, storage.ErrSnapshotNotFound):
		return common.NewUserError(fmt.Sprintf("snapshot %q not found", id), err)
	case errors.Is(err, storage.ErrSnapshotExists):
		return common.NewUserError(fmt.Sprintf("snapshot %q already exists", id), err)
	default:
		return err
	}
}

func createSnapshotCmd() *cobra.Command {
	var tag string
	var description string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new snapshot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSnapshots(cmd, func(manager *storage.SnapshotManager) error {
				info, err := manager.Create(cmd.Context(), tag, description)
				if err != nil {
					return snapshotError(tag, err)
				}
				return show(cmd, info, func() string {
					var b strings.Builder
					b.WriteString(cli.FormatSuccess(fmt.Sprintf("Created snapshot %s (%s)", info.ID, formatFileSize(info.FileSize))))
					b.WriteString("\n")
					if info.Description != "" {
						fmt.Fprintf(&b, "  Description: %s\n", info.Description)
					}
					return b.String()
				})
			})
		},
	}

	cmd.Flags().StringVarP(&tag, "tag", "t", "", "Snapshot name (generated when empty)")
	cmd.Flags().StringVarP(&description, "description", "d", "", "Description of the snapshot")

	return cmd
}

func listSnapshotsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all snapshots",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSnapshots(cmd, func(manager *storage.SnapshotManager) error {
				snapshots, err := manager.List(cmd.Context())
				if err != nil {
					return fmt.Errorf("failed to list snapshots: %w", err)
				}
				return show(cmd, snapshots, func() string { return renderSnapshots(snapshots, time.Now()) })
			})
		},
	}
}

func renderSnapshots(snapshots []storage.SnapshotInfo, now time.Time) string {
	if len(snapshots) == 0 {
		return cli.SubtleStyle.Render("No snapshots found.") + "\n"
	}

	rows := make([][]string, 0, len(snapshots))
	for _, s := range snapshots {
		kind := "manual"
		if s.IsAuto {
			kind = "auto"
		}
		rows = append(rows, []string{
			s.ID,
			formatRelativeTime(s.CreatedAt, now),
			formatFileSize(s.FileSize),
			fmt.Sprint(s.RowCounts["budget_items"]),
			fmt.Sprint(s.RowCounts["projects"]),
			fmt.Sprint(s.RowCounts["breakdowns"]),
			kind,
		})
	}
	return cli.RenderTable(cli.Table{
		Title:   "Snapshots",
		Headers: []string{"Name", "Created", "Size", "Items", "Projects", "Breakdowns", "Type"},
		Rows:    rows,
	})
}

func restoreSnapshotCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "restore <snapshot-id>",
		Short: "Restore the database from a snapshot",
		Long:  `Replace the current database with a snapshot. Changes made since the snapshot are lost.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withSnapshots(cmd, func(manager *storage.SnapshotManager) error {
				info, err := manager.Get(cmd.Context(), id)
				if err != nil {
					return snapshotError(id, err)
				}

				if !force {
					prompt := fmt.Sprintf("This will replace your current database with snapshot %s.\n  Created: %s",
						info.ID, info.CreatedAt.Format("2006-01-02 15:04:05"))
					if !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), prompt) {
						fmt.Fprintln(cmd.OutOrStdout(), cli.SubtleStyle.Render("Restore cancelled."))
						return nil
					}
				}

				if err := manager.Restore(cmd.Context(), id); err != nil {
					return snapshotError(id, err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Restored from snapshot "+id))
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip confirmation prompt")

	return cmd
}

func deleteSnapshotCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete <snapshot-id>",
		Short: "Delete a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withSnapshots(cmd, func(manager *storage.SnapshotManager) error {
				info, err := manager.Get(cmd.Context(), id)
				if err != nil {
					return snapshotError(id, err)
				}

				if !force {
					prompt := fmt.Sprintf("This will permanently delete snapshot %s.\n  Size: %s",
						info.ID, formatFileSize(info.FileSize))
					if !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), prompt) {
						fmt.Fprintln(cmd.OutOrStdout(), cli.SubtleStyle.Render("Deletion cancelled."))
						return nil
					}
				}

				if err := manager.Delete(cmd.Context(), id); err != nil {
					return snapshotError(id, err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Deleted snapshot "+id))
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip confirmation prompt")

	return cmd
}

// confirm asks a yes/no question and defaults to no.
func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprintf(out, "%s %s\n\nContinue? (y/N) ", cli.WarningStyle.Render(cli.WarningIcon), prompt)
	response, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && response == "" {
		return false
	}
	response = strings.ToLower(strings.TrimSpace(response))
	return slices.Contains([]string{"y", "yes"}, response)
}

func formatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}

func formatRelativeTime(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		if m := int(d.Minutes()); m != 1 {
			return fmt.Sprintf("%d minutes ago", m)
		}
		return "1 minute ago"
	case d < 24*time.Hour:
		if h := int(d.Hours()); h != 1 {
			return fmt.Sprintf("%d hours ago", h)
		}
		return "1 hour ago"
	case d < 7*24*time.Hour:
		if days := int(d.Hours() / 24); days != 1 {
			return fmt.Sprintf("%d days ago", days)
		}
		return "yesterday"
	default:
		return t.Format("2006-01-02 15:04")
	}
}
