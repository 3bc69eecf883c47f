package mirror

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const historySchema = `
CREATE TABLE IF NOT EXISTS cycle_history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    started_at TEXT NOT NULL, -- RFC3339
    duration_ms INTEGER NOT NULL,
    changed INTEGER NOT NULL,
    dirs_created INTEGER NOT NULL,
    files_copied INTEGER NOT NULL,
    files_updated INTEGER NOT NULL,
    files_deleted INTEGER NOT NULL,
    dirs_deleted INTEGER NOT NULL,
    errors INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_history_started_at ON cycle_history(started_at);
`

// HistoryPath returns the history database location for a replica root.
func HistoryPath(replicaRoot string) string {
	return filepath.Join(replicaRoot, metadataDirName, historyFileName)
}

// CycleRecord is one persisted cycle outcome.
type CycleRecord struct {
	ID           int64
	StartedAt    time.Time
	Duration     time.Duration
	Changed      bool
	DirsCreated  int
	FilesCopied  int
	FilesUpdated int
	FilesDeleted int
	DirsDeleted  int
	Errors       int
}

// History records cycle outcomes in a SQLite database under the replica's
// metadata directory. The mirror core itself stays stateless: history is an
// audit trail for the driver, never an input to a cycle.
type History struct {
	db     *sql.DB
	dbPath string
}

// NewHistory creates or opens a cycle history database.
func NewHistory(dbPath string) (*History, error) {
	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history directory %s: %w", dbDir, err)
	}

	dsn := fmt.Sprintf("file:%s?mode=rwc&_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db at %s: %w", dbPath, err)
	}

	// SQLite best practice for WAL mode
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(historySchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize history schema: %w", err)
	}

	return &History{db: db, dbPath: dbPath}, nil
}

func (h *History) Close() error {
	if h.db != nil {
		return h.db.Close()
	}
	return nil
}

// Append persists the outcome of one completed cycle.
func (h *History) Append(report *CycleReport) error {
	changed := 0
	if report.Changed() {
		changed = 1
	}

	_, err := h.db.Exec(
		`INSERT INTO cycle_history
		(started_at, duration_ms, changed, dirs_created, files_copied, files_updated, files_deleted, dirs_deleted, errors)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.StartedAt.UTC().Format(time.RFC3339),
		report.Duration.Milliseconds(),
		changed,
		report.Count(OpCreateDir),
		report.Count(OpCopyFile),
		report.Count(OpUpdateFile),
		report.Count(OpDeleteFile),
		report.Count(OpDeleteDir),
		len(report.Errors()),
	)
	if err != nil {
		return fmt.Errorf("failed to append cycle record: %w", err)
	}
	return nil
}

// Recent returns up to limit cycle records, newest first.
func (h *History) Recent(limit int) ([]CycleRecord, error) {
	rows, err := h.db.Query(
		`SELECT id, started_at, duration_ms, changed, dirs_created, files_copied, files_updated, files_deleted, dirs_deleted, errors
		FROM cycle_history ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query cycle history: %w", err)
	}
	defer rows.Close()

	var records []CycleRecord
	for rows.Next() {
		var rec CycleRecord
		var startedAt string
		var durationMs int64
		var changed int
		if err := rows.Scan(
			&rec.ID, &startedAt, &durationMs, &changed,
			&rec.DirsCreated, &rec.FilesCopied, &rec.FilesUpdated,
			&rec.FilesDeleted, &rec.DirsDeleted, &rec.Errors,
		); err != nil {
			return nil, fmt.Errorf("failed to scan cycle record: %w", err)
		}

		rec.StartedAt, err = time.Parse(time.RFC3339, startedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse cycle timestamp %q: %w", startedAt, err)
		}
		rec.Duration = time.Duration(durationMs) * time.Millisecond
		rec.Changed = changed != 0
		records = append(records, rec)
	}

	return records, rows.Err()
}
