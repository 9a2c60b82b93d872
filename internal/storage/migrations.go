package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

// SystemParticulars are seeded on first migration and cannot be deleted.
var SystemParticulars = []struct {
	Code     string
	FullName string
}{
	{"GAD", "Gender and Development"},
	{"LDRRMF", "Local Disaster Risk Reduction and Management Fund"},
	{"20%DF", "20% Development Fund"},
	{"SEF", "Special Education Fund"},
	{"TF", "Trust Fund"},
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial budget tree schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS particulars (
					code TEXT PRIMARY KEY,
					full_name TEXT NOT NULL,
					is_active INTEGER NOT NULL DEFAULT 1,
					is_system_default INTEGER NOT NULL DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,

				`CREATE TABLE IF NOT EXISTS budget_items (
					id TEXT PRIMARY KEY,
					particular_code TEXT NOT NULL,
					year INTEGER,
					status TEXT NOT NULL DEFAULT '',
					total_budget_allocated TEXT NOT NULL DEFAULT '0',
					obligated_budget TEXT,
					total_budget_utilized TEXT NOT NULL DEFAULT '0',
					utilization_rate REAL NOT NULL DEFAULT 0,
					auto_calculate INTEGER NOT NULL DEFAULT 1,
					tally_completed INTEGER NOT NULL DEFAULT 0,
					tally_ongoing INTEGER NOT NULL DEFAULT 0,
					tally_delayed INTEGER NOT NULL DEFAULT 0,
					tally_uncategorized INTEGER NOT NULL DEFAULT 0,
					version INTEGER NOT NULL DEFAULT 1,
					created_at DATETIME NOT NULL,
					updated_at DATETIME NOT NULL,
					FOREIGN KEY (particular_code) REFERENCES particulars(code) ON DELETE RESTRICT
				)`,
				`CREATE INDEX idx_budget_items_particular ON budget_items(particular_code)`,
				`CREATE INDEX idx_budget_items_year ON budget_items(year)`,

				`CREATE TABLE IF NOT EXISTS projects (
					id TEXT PRIMARY KEY,
					budget_item_id TEXT NOT NULL,
					particulars TEXT NOT NULL DEFAULT '',
					name TEXT NOT NULL,
					year INTEGER NOT NULL DEFAULT 0,
					status TEXT NOT NULL DEFAULT '',
					total_budget_allocated TEXT NOT NULL DEFAULT '0',
					obligated_budget TEXT,
					total_budget_utilized TEXT NOT NULL DEFAULT '0',
					utilization_rate REAL NOT NULL DEFAULT 0,
					auto_calculate INTEGER NOT NULL DEFAULT 1,
					tally_completed INTEGER NOT NULL DEFAULT 0,
					tally_ongoing INTEGER NOT NULL DEFAULT 0,
					tally_delayed INTEGER NOT NULL DEFAULT 0,
					tally_uncategorized INTEGER NOT NULL DEFAULT 0,
					is_deleted INTEGER NOT NULL DEFAULT 0,
					deleted_at DATETIME,
					deleted_by TEXT,
					version INTEGER NOT NULL DEFAULT 1,
					created_at DATETIME NOT NULL,
					updated_at DATETIME NOT NULL,
					FOREIGN KEY (budget_item_id) REFERENCES budget_items(id) ON DELETE RESTRICT
				)`,
				`CREATE INDEX idx_projects_budget_item ON projects(budget_item_id)`,

				`CREATE TABLE IF NOT EXISTS breakdowns (
					id TEXT PRIMARY KEY,
					project_id TEXT NOT NULL,
					name TEXT NOT NULL,
					status TEXT NOT NULL DEFAULT '',
					allocated_budget TEXT NOT NULL DEFAULT '0',
					obligated_budget TEXT,
					budget_utilized TEXT NOT NULL DEFAULT '0',
					balance TEXT NOT NULL DEFAULT '0',
					utilization_rate REAL NOT NULL DEFAULT 0,
					date_started DATETIME,
					target_date DATETIME,
					completion_date DATETIME,
					is_deleted INTEGER NOT NULL DEFAULT 0,
					deleted_at DATETIME,
					deleted_by TEXT,
					version INTEGER NOT NULL DEFAULT 1,
					created_at DATETIME NOT NULL,
					updated_at DATETIME NOT NULL,
					FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE RESTRICT
				)`,
				`CREATE INDEX idx_breakdowns_project ON breakdowns(project_id)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Add activity log for aggregate and mode changes",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS activity_log (
					id TEXT PRIMARY KEY,
					node_type TEXT NOT NULL,
					node_id TEXT NOT NULL,
					action TEXT NOT NULL,
					previous_values TEXT,
					new_values TEXT,
					changed_fields TEXT NOT NULL DEFAULT '[]',
					reason TEXT,
					created_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_activity_log_node ON activity_log(node_type, node_id, created_at)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query '%s': %w", query, err)
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Seed system default particulars",
		Up: func(tx *sql.Tx) error {
			for _, p := range SystemParticulars {
				if _, err := tx.Exec(`
					INSERT OR IGNORE INTO particulars (code, full_name, is_active, is_system_default)
					VALUES (?, ?, 1, 1)`, p.Code, p.FullName); err != nil {
					return fmt.Errorf("failed to seed particular %s: %w", p.Code, err)
				}
			}
			return nil
		},
	},
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}

// SchemaVersion reports the database's current schema version.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}
