package session

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ditloop/ditloop/internal/domain"
)

// Store persists session records to SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (or creates) the session database under dataDir.
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, "ditloop.db")
	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db, path: dbPath}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		task_id TEXT NOT NULL,
		workspace TEXT NOT NULL,
		status TEXT NOT NULL,
		error TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_task ON sessions(task_id);
	CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at DESC);

	CREATE TABLE IF NOT EXISTS session_messages (
		session_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		tool_call_id TEXT,
		timestamp DATETIME NOT NULL,
		PRIMARY KEY (session_id, seq),
		FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS session_actions (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		action_json TEXT NOT NULL,
		status TEXT NOT NULL,
		result TEXT,
		proposed_at DATETIME NOT NULL,
		resolved_at DATETIME,
		FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_actions_session ON session_actions(session_id, seq);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save writes a full session snapshot, replacing any previous one.
func (s *Store) Save(ctx context.Context, sess *Session) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (id, task_id, workspace, status, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			error = excluded.error,
			updated_at = excluded.updated_at
	`, sess.ID, sess.TaskID, sess.Workspace, sess.Status, sess.Error, sess.CreatedAt, sess.UpdatedAt)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM session_messages WHERE session_id = ?`, sess.ID); err != nil {
		return err
	}
	for i, msg := range sess.Messages {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO session_messages (session_id, seq, role, content, tool_call_id, timestamp)
			VALUES (?, ?, ?, ?, ?, ?)
		`, sess.ID, i, msg.Role, msg.Content, msg.ToolCallID, msg.Timestamp)
		if err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM session_actions WHERE session_id = ?`, sess.ID); err != nil {
		return err
	}
	for i, ta := range sess.Actions {
		actionJSON, err := domain.MarshalAction(ta.Action)
		if err != nil {
			return fmt.Errorf("marshal action: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO session_actions (id, session_id, seq, action_json, status, result, proposed_at, resolved_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, ta.ID, sess.ID, i, string(actionJSON), ta.Status, ta.Result, ta.ProposedAt, ta.ResolvedAt)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Get loads one session with its messages and actions.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	var sess Session
	var errStr sql.NullString

	err := s.db.QueryRowContext(ctx, `
		SELECT id, task_id, workspace, status, error, created_at, updated_at
		FROM sessions WHERE id = ?
	`, id).Scan(&sess.ID, &sess.TaskID, &sess.Workspace, &sess.Status, &errStr, &sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if errStr.Valid {
		sess.Error = errStr.String
	}

	if sess.Messages, err = s.loadMessages(ctx, id); err != nil {
		return nil, err
	}
	if sess.Actions, err = s.loadActions(ctx, id); err != nil {
		return nil, err
	}
	return &sess, nil
}

// List returns the most recently updated sessions, newest first, without
// their messages or actions.
func (s *Store) List(ctx context.Context, limit int) ([]*Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task_id, workspace, status, error, created_at, updated_at
		FROM sessions ORDER BY updated_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		var sess Session
		var errStr sql.NullString
		if err := rows.Scan(&sess.ID, &sess.TaskID, &sess.Workspace, &sess.Status, &errStr, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
			return nil, err
		}
		if errStr.Valid {
			sess.Error = errStr.String
		}
		sessions = append(sessions, &sess)
	}
	return sessions, rows.Err()
}

// Delete removes a session and its children.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	return err
}

func (s *Store) loadMessages(ctx context.Context, sessionID string) ([]domain.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content, tool_call_id, timestamp
		FROM session_messages WHERE session_id = ? ORDER BY seq ASC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var msg domain.Message
		var toolCallID sql.NullString
		if err := rows.Scan(&msg.Role, &msg.Content, &toolCallID, &msg.Timestamp); err != nil {
			return nil, err
		}
		if toolCallID.Valid {
			msg.ToolCallID = toolCallID.String
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func (s *Store) loadActions(ctx context.Context, sessionID string) ([]TrackedAction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, action_json, status, result, proposed_at, resolved_at
		FROM session_actions WHERE session_id = ? ORDER BY seq ASC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var actions []TrackedAction
	for rows.Next() {
		var ta TrackedAction
		var actionJSON string
		var result sql.NullString
		var resolvedAt sql.NullTime
		if err := rows.Scan(&ta.ID, &actionJSON, &ta.Status, &result, &ta.ProposedAt, &resolvedAt); err != nil {
			return nil, err
		}
		action, err := domain.UnmarshalAction([]byte(actionJSON))
		if err != nil {
			return nil, fmt.Errorf("unmarshal action: %w", err)
		}
		ta.Action = action
		if result.Valid {
			ta.Result = result.String
		}
		if resolvedAt.Valid {
			t := resolvedAt.Time
			ta.ResolvedAt = &t
		}
		actions = append(actions, ta)
	}
	return actions, rows.Err()
}
