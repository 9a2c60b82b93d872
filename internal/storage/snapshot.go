package storage

import (
	"cmp"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// Snapshot errors.
var (
	ErrSnapshotNotFound  = errors.New("snapshot not found")
	ErrSnapshotCorrupted = errors.New("snapshot integrity check failed")
	ErrSnapshotExists    = errors.New("snapshot already exists")
	ErrSnapshotInMemory  = errors.New("in-memory databases cannot be snapshotted")
)

// maxAutoSnapshots is how many automatic snapshots are kept.
const maxAutoSnapshots = 5

// snapshotTables are counted into each snapshot's metadata.
var snapshotTables = []string{"particulars", "budget_items", "projects", "breakdowns", "activity_log"}

// SnapshotInfo describes one snapshot of the budget database.
type SnapshotInfo struct {
	CreatedAt     time.Time      `json:"created_at"`
	RowCounts     map[string]int `json:"row_counts"`
	ID            string         `json:"id"`
	Description   string         `json:"description"`
	FileSize      int64          `json:"file_size"`
	SchemaVersion int            `json:"schema_version"`
	IsAuto        bool           `json:"is_auto"`
}

// SnapshotManager copies the database file aside before risky bulk changes
// and restores it on request. Snapshots live next to the database in a
// "snapshots" directory, each with a JSON metadata sidecar.
type SnapshotManager struct {
	db     *sql.DB
	dbPath string
	dir    string
}

// Snapshots returns a snapshot manager for s.
func (s *SQLiteStorage) Snapshots() (*SnapshotManager, error) {
	if strings.HasPrefix(s.dbPath, ":memory:") {
		return nil, ErrSnapshotInMemory
	}
	dbPath, err := filepath.Abs(s.dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database path: %w", err)
	}

	dir := filepath.Join(filepath.Dir(dbPath), "snapshots")
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create snapshots directory: %w", err)
	}

	return &SnapshotManager{db: s.db, dbPath: dbPath, dir: dir}, nil
}

func validSnapshotID(id string) error {
	if id == "" || strings.ContainsAny(id, `/\'";`) || strings.Contains(id, "..") {
		return fmt.Errorf("invalid snapshot id %q", id)
	}
	return nil
}

func (m *SnapshotManager) dataPath(id string) string {
	return filepath.Join(m.dir, id+".db")
}

func (m *SnapshotManager) metaPath(id string) string {
	return filepath.Join(m.dir, id+".meta.json")
}

// Create writes a snapshot. An empty tag gets a timestamped name.
func (m *SnapshotManager) Create(ctx context.Context, tag, description string) (*SnapshotInfo, error) {
	return m.create(ctx, tag, description, false)
}

// Auto writes an automatic snapshot before operation and prunes old
// automatic snapshots.
func (m *SnapshotManager) Auto(ctx context.Context, operation string) (*SnapshotInfo, error) {
	tag := fmt.Sprintf("auto-%s-%s", operation, time.Now().Format("20060102-150405.000"))
	info, err := m.create(ctx, tag, "Automatic snapshot before "+operation, true)
	if err != nil {
		return nil, fmt.Errorf("failed to create automatic snapshot: %w", err)
	}

	if err := m.prune(ctx); err != nil {
		slog.Warn("failed to prune automatic snapshots", "error", err)
	}
	return info, nil
}

func (m *SnapshotManager) create(ctx context.Context, tag, description string, auto bool) (*SnapshotInfo, error) {
	if tag == "" {
		tag = "snapshot-" + time.Now().Format("2006-01-02-1504")
	}
	if err := validSnapshotID(tag); err != nil {
		return nil, err
	}

	dest := m.dataPath(tag)
	if _, err := os.Stat(dest); err == nil {
		return nil, ErrSnapshotExists
	}

	info := &SnapshotInfo{
		ID:          tag,
		CreatedAt:   time.Now(),
		Description: description,
		IsAuto:      auto,
		RowCounts:   make(map[string]int, len(snapshotTables)),
	}
	if err := m.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&info.SchemaVersion); err != nil {
		return nil, fmt.Errorf("failed to get schema version: %w", err)
	}
	for _, table := range snapshotTables {
		var n int
		// #nosec G202 - table names come from a fixed list
		if err := m.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", table, err)
		}
		info.RowCounts[table] = n
	}

	if _, err := m.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return nil, fmt.Errorf("failed to checkpoint WAL: %w", err)
	}
	// #nosec G201 - dest is built from a validated id
	if _, err := m.db.ExecContext(ctx, fmt.Sprintf("VACUUM INTO '%s'", dest)); err != nil {
		return nil, fmt.Errorf("failed to write snapshot: %w", err)
	}

	stat, err := os.Stat(dest)
	if err != nil {
		return nil, fmt.Errorf("failed to stat snapshot: %w", err)
	}
	info.FileSize = stat.Size()

	if err := writeJSONAtomic(m.metaPath(tag), info); err != nil {
		if rmErr := os.Remove(dest); rmErr != nil {
			slog.Error("failed to remove snapshot after metadata failure", "error", rmErr)
		}
		return nil, fmt.Errorf("failed to save snapshot metadata: %w", err)
	}

	slog.Info("created snapshot", "id", tag, "auto", auto, "size", info.FileSize)
	return info, nil
}

// List returns every snapshot, newest first. Snapshots with unreadable
// metadata are skipped.
func (m *SnapshotManager) List(_ context.Context) ([]SnapshotInfo, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshots directory: %w", err)
	}

	snapshots := make([]SnapshotInfo, 0, len(entries))
	for _, entry := range entries {
		id, ok := strings.CutSuffix(entry.Name(), ".meta.json")
		if entry.IsDir() || !ok {
			continue
		}
		info, err := m.load(id)
		if err != nil {
			slog.Debug("skipping unreadable snapshot metadata", "id", id, "error", err)
			continue
		}
		snapshots = append(snapshots, *info)
	}

	slices.SortFunc(snapshots, func(a, b SnapshotInfo) int {
		return cmp.Compare(b.CreatedAt.UnixNano(), a.CreatedAt.UnixNano())
	})
	return snapshots, nil
}

// Get returns one snapshot's metadata.
func (m *SnapshotManager) Get(_ context.Context, id string) (*SnapshotInfo, error) {
	if err := validSnapshotID(id); err != nil {
		return nil, err
	}
	return m.load(id)
}

func (m *SnapshotManager) load(id string) (*SnapshotInfo, error) {
	data, err := os.ReadFile(m.metaPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrSnapshotNotFound
		}
		return nil, err
	}

	var info SnapshotInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Restore replaces the database file with snapshot id. It closes the
// storage's connection; the caller must reopen the database afterwards.
func (m *SnapshotManager) Restore(_ context.Context, id string) error {
	if err := validSnapshotID(id); err != nil {
		return err
	}
	src := m.dataPath(id)
	if _, err := os.Stat(src); err != nil {
		if os.IsNotExist(err) {
			return ErrSnapshotNotFound
		}
		return fmt.Errorf("failed to access snapshot: %w", err)
	}
	if err := verifyIntegrity(src); err != nil {
		return fmt.Errorf("%w: %v", ErrSnapshotCorrupted, err)
	}

	if err := m.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	backup := m.dbPath + ".restore-backup"
	if err := copyFile(m.dbPath, backup); err != nil {
		return fmt.Errorf("failed to back up current database: %w", err)
	}
	if err := copyFile(src, m.dbPath); err != nil {
		if restoreErr := copyFile(backup, m.dbPath); restoreErr != nil {
			slog.Error("failed to put database back after restore failure", "error", restoreErr)
		}
		return fmt.Errorf("failed to restore snapshot: %w", err)
	}
	// Stale WAL pages would be replayed over the restored file.
	for _, suffix := range []string{"-wal", "-shm"} {
		if err := os.Remove(m.dbPath + suffix); err != nil && !os.IsNotExist(err) {
			slog.Warn("failed to remove database sidecar", "file", m.dbPath+suffix, "error", err)
		}
	}
	if err := os.Remove(backup); err != nil {
		slog.Error("failed to remove restore backup", "error", err)
	}

	slog.Info("restored snapshot", "id", id)
	return nil
}

// Delete removes a snapshot and its metadata.
func (m *SnapshotManager) Delete(_ context.Context, id string) error {
	if err := validSnapshotID(id); err != nil {
		return err
	}
	if err := os.Remove(m.dataPath(id)); err != nil {
		if os.IsNotExist(err) {
			return ErrSnapshotNotFound
		}
		return fmt.Errorf("failed to remove snapshot: %w", err)
	}
	if err := os.Remove(m.metaPath(id)); err != nil && !os.IsNotExist(err) {
		slog.Debug("failed to remove snapshot metadata", "id", id, "error", err)
	}
	return nil
}

func (m *SnapshotManager) prune(ctx context.Context) error {
	snapshots, err := m.List(ctx)
	if err != nil {
		return err
	}

	kept := 0
	for _, s := range snapshots {
		if !s.IsAuto {
			continue
		}
		kept++
		if kept <= maxAutoSnapshots {
			continue
		}
		if err := m.Delete(ctx, s.ID); err != nil {
			slog.Debug("failed to delete old automatic snapshot", "id", s.ID, "error", err)
		}
	}
	return nil
}

func verifyIntegrity(path string) error {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			slog.Error("failed to close snapshot database", "error", err)
		}
	}()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return err
	}
	if result != "ok" {
		return fmt.Errorf("integrity check: %s", result)
	}
	return nil
}

func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// copyFile copies src over dst through a temporary file and a rename.
func copyFile(src, dst string) error {
	// #nosec G304 - paths are built by the snapshot manager
	source, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := source.Close(); closeErr != nil {
			slog.Error("failed to close source file", "error", closeErr)
		}
	}()

	tmp := dst + ".tmp"
	// #nosec G304 - paths are built by the snapshot manager
	destination, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(destination, source); err != nil {
		_ = destination.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := destination.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}
