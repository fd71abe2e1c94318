// Package store persists conversation turns. The log is append-only: no
// update or delete operations exist, and appends are at-least-once from
// the caller's perspective, so readers tolerate occasional duplicates.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/quietroomlabs/haven/pkg/therapy"
)

// Store is the SQLite-backed conversation log.
type Store struct {
	db *sql.DB
}

// New creates/opens the conversation database at path and runs pending
// migrations before accepting traffic.
func New(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Single shared connection avoids SQLite writer lock contention when
	// multiple sessions log concurrently.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// migrations is the ordered, versioned schema history. Version 1 is the
// original table shape; later versions extend it additively so older
// databases upgrade exactly once at open, never per write.
var migrations = []string{
	// v1: base conversation log
	`CREATE TABLE IF NOT EXISTS conversation_logs (
		id TEXT PRIMARY KEY,
		timestamp_ms INTEGER NOT NULL,
		user_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		user_message TEXT NOT NULL,
		agent_response TEXT NOT NULL,
		tags TEXT NOT NULL DEFAULT '[]',
		crisis_detected INTEGER NOT NULL DEFAULT 0,
		therapy_mode TEXT NOT NULL
	);`,
	// v2: record the abandoned mode when a turn switched personas
	`ALTER TABLE conversation_logs ADD COLUMN redirected_from TEXT NOT NULL DEFAULT '';`,
	// v3: synthetic runtime turns (mode-change notices)
	`ALTER TABLE conversation_logs ADD COLUMN system_turn INTEGER NOT NULL DEFAULT 0;`,
	// v4: read paths
	`CREATE INDEX IF NOT EXISTS logs_user_ts_idx ON conversation_logs(user_id, timestamp_ms DESC);
	 CREATE INDEX IF NOT EXISTS logs_session_ts_idx ON conversation_logs(session_id, timestamp_ms);`,
}

func (s *Store) migrate() error {
	pragmas := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA synchronous=NORMAL;`,
		`PRAGMA busy_timeout=5000;`,
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("set pragma: %w", err)
		}
	}

	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at_ms INTEGER NOT NULL
	);`); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	var current int
	if err := s.db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for version := current + 1; version <= len(migrations); version++ {
		if _, err := s.db.Exec(migrations[version-1]); err != nil {
			return fmt.Errorf("apply migration %d: %w", version, err)
		}
		if _, err := s.db.Exec(`INSERT INTO schema_migrations (version, applied_at_ms) VALUES (?, ?)`,
			version, time.Now().UnixMilli()); err != nil {
			return fmt.Errorf("record migration %d: %w", version, err)
		}
	}
	return nil
}

// Append writes one turn. The id is assigned here when the caller left it
// empty. History is immutable once written.
func (s *Store) Append(ctx context.Context, turn therapy.Turn) error {
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now()
	}
	tagsJSON, err := json.Marshal(turn.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO conversation_logs
		(id, timestamp_ms, user_id, session_id, user_message, agent_response, tags, crisis_detected, therapy_mode, redirected_from, system_turn)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		turn.ID, turn.Timestamp.UnixMilli(), turn.UserID, turn.SessionID,
		turn.UserMessage, turn.AgentResponse, string(tagsJSON),
		boolToInt(turn.CrisisDetected), string(turn.Mode), string(turn.RedirectedFrom),
		boolToInt(turn.System))
	if err != nil {
		return fmt.Errorf("%w: append turn: %v", ErrUnavailable, err)
	}
	return nil
}

// Recent returns the most recent turns for a user, newest first.
func (s *Store) Recent(ctx context.Context, userID string, limit int) ([]therapy.Turn, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, timestamp_ms, user_id, session_id, user_message, agent_response, tags, crisis_detected, therapy_mode, redirected_from, system_turn
		FROM conversation_logs WHERE user_id = ? ORDER BY timestamp_ms DESC, id DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: recent turns: %v", ErrUnavailable, err)
	}
	defer rows.Close()
	return scanTurns(rows)
}

// SessionTurns returns the turns of one session in chronological order,
// capped at limit (0 means no cap).
func (s *Store) SessionTurns(ctx context.Context, sessionID string, limit int) ([]therapy.Turn, error) {
	query := `SELECT id, timestamp_ms, user_id, session_id, user_message, agent_response, tags, crisis_detected, therapy_mode, redirected_from, system_turn
		FROM conversation_logs WHERE session_id = ? ORDER BY timestamp_ms, id`
	args := []interface{}{sessionID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: session turns: %v", ErrUnavailable, err)
	}
	defer rows.Close()
	return scanTurns(rows)
}

// ByTag returns a user's turns carrying the given tag, newest first. Tags
// are stored as a JSON array; the SQL filter narrows candidates and the
// decoded tag list confirms membership.
func (s *Store) ByTag(ctx context.Context, userID, tag string) ([]therapy.Turn, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, timestamp_ms, user_id, session_id, user_message, agent_response, tags, crisis_detected, therapy_mode, redirected_from, system_turn
		FROM conversation_logs WHERE user_id = ? AND tags LIKE ? ORDER BY timestamp_ms DESC, id DESC`,
		userID, `%"`+tag+`"%`)
	if err != nil {
		return nil, fmt.Errorf("%w: turns by tag: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	turns, err := scanTurns(rows)
	if err != nil {
		return nil, err
	}
	filtered := turns[:0]
	for _, turn := range turns {
		if turn.HasTag(tag) {
			filtered = append(filtered, turn)
		}
	}
	return filtered, nil
}

func scanTurns(rows *sql.Rows) ([]therapy.Turn, error) {
	var turns []therapy.Turn
	for rows.Next() {
		var (
			turn           therapy.Turn
			tsMS           int64
			tagsJSON       string
			crisis, system int
			mode, from     string
		)
		if err := rows.Scan(&turn.ID, &tsMS, &turn.UserID, &turn.SessionID,
			&turn.UserMessage, &turn.AgentResponse, &tagsJSON, &crisis, &mode, &from, &system); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		turn.Timestamp = time.UnixMilli(tsMS)
		turn.CrisisDetected = crisis != 0
		turn.System = system != 0
		turn.Mode = therapy.Mode(mode)
		turn.RedirectedFrom = therapy.Mode(from)
		if err := json.Unmarshal([]byte(tagsJSON), &turn.Tags); err != nil {
			// Tolerate malformed tag payloads from older writers.
			turn.Tags = nil
		}
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate turns: %v", ErrUnavailable, err)
	}
	return turns, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
