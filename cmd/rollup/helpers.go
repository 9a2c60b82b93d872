package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/budget-rollup/internal/budget"
	"github.com/Veraticus/budget-rollup/internal/common"
	"github.com/Veraticus/budget-rollup/internal/config"
	"github.com/Veraticus/budget-rollup/internal/model"
	"github.com/Veraticus/budget-rollup/internal/storage"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const dateLayout = "2006-01-02"

// currentConfig returns the loaded configuration, or the defaults when a
// command runs without the root's pre-run hook (as in tests).
func currentConfig() *config.Config {
	if appConfig != nil {
		return appConfig
	}
	return &config.Config{
		Database: config.DatabaseConfig{Path: config.ExpandPath(config.DefaultDatabasePath)},
		Retry:    config.RetryConfig{MaxAttempts: 5},
	}
}

// initStorage opens the configured database and runs migrations.
func initStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	dbPath := currentConfig().Database.Path

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// withService opens storage, builds the budget service and runs fn.
func withService(ctx context.Context, fn func(svc *budget.Service) error) error {
	return withStore(ctx, func(_ *storage.SQLiteStorage, svc *budget.Service) error {
		return fn(svc)
	})
}

// withStore is withService for commands that also need the storage itself.
func withStore(ctx context.Context, fn func(store *storage.SQLiteStorage, svc *budget.Service) error) error {
	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Debug("failed to close database", "error", err)
		}
	}()

	svc := budget.NewWithConfig(store, budget.Config{Retry: currentConfig().Retry.Options()})
	return fn(store, svc)
}

// wantJSON reports whether the global --json flag is set.
func wantJSON(cmd *cobra.Command) bool {
	asJSON, _ := cmd.Flags().GetBool("json")
	return asJSON
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}

// show prints v as JSON under --json, otherwise the rendered text.
func show(cmd *cobra.Command, v any, render func() string) error {
	if wantJSON(cmd) {
		return printJSON(cmd.OutOrStdout(), v)
	}
	_, err := fmt.Fprint(cmd.OutOrStdout(), render())
	return err
}

func parseAmount(s, name string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(s), ",", ""))
	if err != nil {
		return decimal.Zero, common.NewUserError(fmt.Sprintf("invalid %s %q", name, s), common.ErrInvalidInput)
	}
	return d, nil
}

// amountFlag returns the decimal value of a string flag, or nil when the
// flag was not given.
func amountFlag(flags *pflag.FlagSet, name string) (*decimal.Decimal, error) {
	if !flags.Changed(name) {
		return nil, nil
	}
	raw, _ := flags.GetString(name)
	d, err := parseAmount(raw, name)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func stringFlag(flags *pflag.FlagSet, name string) *string {
	if !flags.Changed(name) {
		return nil
	}
	v, _ := flags.GetString(name)
	return &v
}

func intFlag(flags *pflag.FlagSet, name string) *int {
	if !flags.Changed(name) {
		return nil
	}
	v, _ := flags.GetInt(name)
	return &v
}

func boolFlag(flags *pflag.FlagSet, name string) *bool {
	if !flags.Changed(name) {
		return nil
	}
	v, _ := flags.GetBool(name)
	return &v
}

func dateFlag(flags *pflag.FlagSet, name string) (*time.Time, error) {
	if !flags.Changed(name) {
		return nil, nil
	}
	raw, _ := flags.GetString(name)
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, common.NewUserError(fmt.Sprintf("invalid %s %q, expected YYYY-MM-DD", name, raw), common.ErrInvalidInput)
	}
	return &t, nil
}

// parseRef reads a node reference written as "type:id" or as a type and
// an id in separate arguments.
func parseRef(args []string) (model.NodeRef, error) {
	var typ, id string
	switch len(args) {
	case 1:
		var ok bool
		typ, id, ok = strings.Cut(args[0], ":")
		if !ok {
			return model.NodeRef{}, common.NewUserError(fmt.Sprintf("expected type:id, got %q", args[0]), common.ErrInvalidInput)
		}
	case 2:
		typ, id = args[0], args[1]
	default:
		return model.NodeRef{}, common.NewUserError("expected a node as type:id", common.ErrInvalidInput)
	}

	nodeType, err := model.ParseNodeType(typ)
	if err != nil {
		return model.NodeRef{}, common.NewUserError(err.Error(), common.ErrInvalidInput)
	}
	if strings.TrimSpace(id) == "" {
		return model.NodeRef{}, common.NewUserError("node id is empty", common.ErrInvalidInput)
	}
	return model.NodeRef{Type: nodeType, ID: id}, nil
}
