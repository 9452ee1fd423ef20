package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/hoard/internal/action"
	"github.com/tanq16/hoard/internal/scheduler"
	_ "modernc.org/sqlite"
)

const schema = `
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;

CREATE TABLE IF NOT EXISTS task_events (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  task_id TEXT NOT NULL,
  content_id TEXT NOT NULL,
  format TEXT NOT NULL,
  action TEXT NOT NULL,
  sub_keys TEXT NOT NULL,
  prev_state TEXT NOT NULL,
  state TEXT NOT NULL,
  retries INTEGER DEFAULT 0,
  bytes_done INTEGER DEFAULT 0,
  error TEXT,
  created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_task_events_content ON task_events(content_id);
`

const writeTimeout = 5 * time.Second

// IdleState is the state of the rows written when the queue goes idle.
const IdleState = "idle"

type Event struct {
	ID        int64
	TaskID    string
	ContentID string
	Format    string
	Action    string
	SubKeys   string
	PrevState string
	State     string
	Retries   int
	BytesDone int64
	Error     sql.NullString
	CreatedAt string
}

// Store records task transitions in SQLite. Register it as a scheduler
// listener; write failures are logged and never reach the manager.
type Store struct {
	db *sql.DB
}

var _ scheduler.Listener = (*Store)(nil)

// Open opens the SQLite database and ensures schema exists.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Record(ctx context.Context, snap scheduler.TaskSnapshot) error {
	var errText sql.NullString
	if snap.Err != nil {
		errText = sql.NullString{String: snap.Err.Error(), Valid: true}
	}
	keys := "all"
	if snap.Action.IsRemove() {
		keys = "-"
	} else if len(snap.Action.SubKeys) > 0 {
		keys = action.FormatKeys(snap.Action.SubKeys)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, `
INSERT INTO task_events (task_id, content_id, format, action, sub_keys, prev_state, state, retries, bytes_done, error, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, snap.ID, snap.Action.ContentID, snap.Action.Format, snap.Action.Type.String(), keys,
		snap.PrevState.String(), snap.State.String(), snap.RetryCount, snap.Downloaded, errText, now)
	return err
}

func (s *Store) OnTaskStateChanged(snap scheduler.TaskSnapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := s.Record(ctx, snap); err != nil {
		log.Error().Str("op", "journal/record").Str("task", snap.ID).Err(err).Msg("failed to record task event")
	}
}

func (s *Store) OnIdle() {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := s.RecordIdle(ctx); err != nil {
		log.Error().Str("op", "journal/idle").Err(err).Msg("failed to record idle event")
	}
}

// RecordIdle stores an idle marker. It belongs to no task or content.
func (s *Store) RecordIdle(ctx context.Context) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, `
INSERT INTO task_events (task_id, content_id, format, action, sub_keys, prev_state, state, created_at)
VALUES ('', '', '', 'idle', '', '', ?, ?)
`, IdleState, now)
	return err
}

// List returns the newest events first. An empty contentID lists all content.
func (s *Store) List(ctx context.Context, contentID string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
SELECT id, task_id, content_id, format, action, sub_keys, prev_state, state, retries, bytes_done, error, created_at
FROM task_events`
	args := []any{}
	if contentID != "" {
		query += ` WHERE content_id = ?`
		args = append(args, contentID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.TaskID, &e.ContentID, &e.Format, &e.Action, &e.SubKeys,
			&e.PrevState, &e.State, &e.Retries, &e.BytesDone, &e.Error, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
