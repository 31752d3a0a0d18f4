// Package watchdogstore is a supplementary, long-lived audit trail of
// every WatchdogEntry the Task Watchdog has ever seen, backed by
// SQLite. task_timers.json (the spec-mandated canonical registry, see
// internal/watchdog) holds only each task's latest entry; this store
// keeps every recorded transition across phases and restarts for
// post-hoc inspection —
// an enrichment beyond spec §4.6's minimum, grounded on the teacher's
// internal/learning/store.go (go:embed schema + database/sql,
// NewStore/openAndInitStore/initSchema shape).
package watchdogstore

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/conductor-core/conductor-core/internal/models"
)

//go:embed schema.sql
var schemaSQL string

// Store manages the SQLite-backed watchdog history database.
type Store struct {
	db     *sql.DB
	dbPath string
}

// NewStore opens (creating if necessary) the history database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create watchdog history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open watchdog history database: %w", err)
	}

	store := &Store{db: db, dbPath: dbPath}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init watchdog history schema: %w", err)
	}
	return store, nil
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(schemaSQL)
	if err != nil {
		return fmt.Errorf("execute watchdog history schema: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordEntry appends a snapshot of entry to the history table. Called
// on every status transition (register, heartbeat-driven staleness,
// complete) so the history reflects the entry's full lifecycle, not just
// its terminal state.
func (s *Store) RecordEntry(ctx context.Context, phaseID, taskID string, entry models.WatchdogEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO watchdog_history (
			phase_id, task_id, mode, command, status,
			started_at, completed_at, last_heartbeat,
			exit_status, failure_reason, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	`,
		phaseID, taskID, string(entry.Mode), entry.Command, string(entry.Status),
		entry.StartedAt, entry.CompletedAt, entry.LastHeartbeat,
		entry.ExitStatus, entry.FailureReason,
	)
	if err != nil {
		return fmt.Errorf("record watchdog history entry: %w", err)
	}
	return nil
}

// HistoryForTask returns every recorded transition for taskID across all
// phases, oldest first.
func (s *Store) HistoryForTask(ctx context.Context, taskID string) ([]models.WatchdogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT mode, command, status, started_at, completed_at, last_heartbeat, exit_status, failure_reason
		FROM watchdog_history
		WHERE task_id = ?
		ORDER BY id ASC
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("query watchdog history for %s: %w", taskID, err)
	}
	defer rows.Close()

	var entries []models.WatchdogEntry
	for rows.Next() {
		var e models.WatchdogEntry
		e.TaskID = taskID
		var mode, status string
		var completedAt sql.NullTime
		var exitStatus sql.NullInt64
		var failureReason sql.NullString
		if err := rows.Scan(&mode, &e.Command, &status, &e.StartedAt, &completedAt, &e.LastHeartbeat, &exitStatus, &failureReason); err != nil {
			return nil, fmt.Errorf("scan watchdog history row: %w", err)
		}
		e.Mode = models.WatchdogMode(mode)
		e.Status = models.WatchdogStatus(status)
		if completedAt.Valid {
			e.CompletedAt = &completedAt.Time
		}
		if exitStatus.Valid {
			v := int(exitStatus.Int64)
			e.ExitStatus = &v
		}
		e.FailureReason = failureReason.String
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate watchdog history rows: %w", err)
	}
	return entries, nil
}
