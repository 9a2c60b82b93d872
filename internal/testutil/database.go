// Package testutil provides test utilities for the budget-rollup project:
// an isolated in-memory database and a builder for budget trees.
package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/Veraticus/budget-rollup/internal/service"
	"github.com/Veraticus/budget-rollup/internal/storage"
)

// TestDB represents a test database with associated test utilities.
type TestDB struct {
	Storage *storage.SQLiteStorage
	t       *testing.T
}

// SetupTestDB creates a new in-memory test database with every migration
// applied, system particulars included. Cleanup is registered on t.
//
// Example:
//
//	db := testutil.SetupTestDB(t)
//	item := db.Tree().BudgetItem("GAD", "1000")
//	project := db.Tree().Project(item.ID, "Road", "600")
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return &TestDB{
		Storage: store,
		t:       t,
	}
}

// WithTransaction executes the given function within a database transaction.
// The transaction is always rolled back afterwards.
func (db *TestDB) WithTransaction(fn func(tx service.Transaction) error) error {
	ctx := context.Background()
	tx, err := db.Storage.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() { _ = tx.Rollback() }()

	return fn(tx)
}

// Tree starts a tree builder seeded into this database.
func (db *TestDB) Tree() *TreeBuilder {
	db.t.Helper()
	return NewTreeBuilder(db.t, db.Storage)
}
