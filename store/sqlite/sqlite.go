// Package sqlite implements codex.RolloutWriter using pure-Go SQLite. Zero
// CGO required.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	codex "github.com/samooth/open-codex-sub001"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// StoreOption configures a RolloutStore.
type StoreOption func(*RolloutStore)

// WithLogger sets a structured logger for the store.
// When set, the store emits debug logs for every operation including
// timing, row counts, and key parameters. If not set, no logs are emitted.
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *RolloutStore) { s.logger = l }
}

// RolloutStore implements codex.RolloutWriter. Every appended message and
// every saved session both update a SQLite index (for fast session listing)
// and rewrite the session's full `.codex/rollout-<id>.json` file, so the
// file on disk is always the authoritative, complete record of a session
// even if the SQLite index is deleted and rebuilt.
type RolloutStore struct {
	db         *sql.DB
	logger     *slog.Logger
	rolloutDir string

	mu       sync.Mutex
	sessions map[string]*codex.Session
}

var _ codex.RolloutWriter = (*RolloutStore)(nil)

// nopLogger is a logger that discards all output.
var nopLogger = slog.New(discardHandler{})

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// New creates a RolloutStore using a local SQLite file at dbPath, persisting
// rollout JSON files under rolloutDir (normally workspace/.codex).
// It opens a single shared connection pool with SetMaxOpenConns(1) so that
// all goroutines serialize through one connection, eliminating SQLITE_BUSY
// errors caused by concurrent writers opening independent connections.
func New(dbPath, rolloutDir string, opts ...StoreOption) *RolloutStore {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		// sql.Open only fails when the driver is not registered; with the
		// blank import above that never happens.
		panic(fmt.Sprintf("sqlite: open driver: %v", err))
	}
	db.SetMaxOpenConns(1)
	s := &RolloutStore{db: db, logger: nopLogger, rolloutDir: rolloutDir, sessions: make(map[string]*codex.Session)}
	for _, o := range opts {
		o(s)
	}
	s.logger.Debug("sqlite: rollout store opened", "path", dbPath, "rollout_dir", rolloutDir)
	return s
}

// Init creates the sessions index table.
func (s *RolloutStore) Init(ctx context.Context) error {
	start := time.Now()
	s.logger.Debug("sqlite: init started")
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		model TEXT NOT NULL,
		approval_policy INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		updated_at INTEGER NOT NULL,
		message_count INTEGER NOT NULL DEFAULT 0
	)`)
	if err != nil {
		s.logger.Error("sqlite: init failed", "error", err, "duration", time.Since(start))
		return fmt.Errorf("init sessions table: %w", err)
	}
	s.logger.Debug("sqlite: init ok", "duration", time.Since(start))
	return nil
}

// AppendMessage persists a single newly appended message for sessionID: it
// updates the in-memory session snapshot, rewrites the rollout JSON file,
// and bumps the SQLite session index row.
func (s *RolloutStore) AppendMessage(ctx context.Context, sessionID string, msg codex.ChatMessage) error {
	start := time.Now()
	s.logger.Debug("sqlite: append message", "session_id", sessionID, "role", msg.Role)

	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = &codex.Session{ID: sessionID, CreatedAt: time.Now().UTC().Format(time.RFC3339)}
		s.sessions[sessionID] = sess
	}
	sess.Items = append(sess.Items, msg)
	snapshot := *sess
	snapshot.Items = append([]codex.ChatMessage{}, sess.Items...)
	s.mu.Unlock()

	if err := s.writeRolloutFile(snapshot); err != nil {
		s.logger.Error("sqlite: append message write failed", "session_id", sessionID, "error", err, "duration", time.Since(start))
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, model, approval_policy, created_at, updated_at, message_count)
		 VALUES (?, ?, ?, ?, ?, 1)
		 ON CONFLICT(id) DO UPDATE SET updated_at=excluded.updated_at, message_count=message_count+1`,
		snapshot.ID, snapshot.Model, int(snapshot.ApprovalPolicy), snapshot.CreatedAt, time.Now().UnixNano(),
	)
	if err != nil {
		s.logger.Error("sqlite: append message index failed", "session_id", sessionID, "error", err, "duration", time.Since(start))
		return fmt.Errorf("index session: %w", err)
	}
	s.logger.Debug("sqlite: append message ok", "session_id", sessionID, "duration", time.Since(start))
	return nil
}

// SaveSession persists the full session state, e.g. after its policy or
// model changes.
func (s *RolloutStore) SaveSession(ctx context.Context, sess codex.Session) error {
	start := time.Now()
	s.logger.Debug("sqlite: save session", "id", sess.ID, "model", sess.Model, "items", len(sess.Items))

	s.mu.Lock()
	cp := sess
	s.sessions[sess.ID] = &cp
	s.mu.Unlock()

	if err := s.writeRolloutFile(sess); err != nil {
		s.logger.Error("sqlite: save session write failed", "id", sess.ID, "error", err, "duration", time.Since(start))
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, model, approval_policy, created_at, updated_at, message_count)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET model=excluded.model, approval_policy=excluded.approval_policy,
			updated_at=excluded.updated_at, message_count=excluded.message_count`,
		sess.ID, sess.Model, int(sess.ApprovalPolicy), sess.CreatedAt, time.Now().UnixNano(), len(sess.Items),
	)
	if err != nil {
		s.logger.Error("sqlite: save session index failed", "id", sess.ID, "error", err, "duration", time.Since(start))
		return fmt.Errorf("index session: %w", err)
	}
	s.logger.Debug("sqlite: save session ok", "id", sess.ID, "duration", time.Since(start))
	return nil
}

// ListSessions returns session summaries ordered by most recently updated,
// read from the SQLite index rather than the slower full-file scan.
func (s *RolloutStore) ListSessions(ctx context.Context, limit int) ([]codex.Session, error) {
	start := time.Now()
	s.logger.Debug("sqlite: list sessions", "limit", limit)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, model, approval_policy, created_at FROM sessions ORDER BY updated_at DESC LIMIT ?`, limit)
	if err != nil {
		s.logger.Error("sqlite: list sessions failed", "error", err, "duration", time.Since(start))
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []codex.Session
	for rows.Next() {
		var sess codex.Session
		var policy int
		if err := rows.Scan(&sess.ID, &sess.Model, &policy, &sess.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sess.ApprovalPolicy = codex.ApprovalPolicy(policy)
		out = append(out, sess)
	}
	s.logger.Debug("sqlite: list sessions ok", "count", len(out), "duration", time.Since(start))
	return out, rows.Err()
}

// writeRolloutFile writes the session's full JSON to
// <rolloutDir>/rollout-<id>.json, overwriting any previous contents.
func (s *RolloutStore) writeRolloutFile(sess codex.Session) error {
	if s.rolloutDir == "" {
		return nil
	}
	if err := os.MkdirAll(s.rolloutDir, 0o755); err != nil {
		return fmt.Errorf("mkdir rollout dir: %w", err)
	}
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	path := filepath.Join(s.rolloutDir, fmt.Sprintf("rollout-%s.json", sess.ID))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write rollout file: %w", err)
	}
	return nil
}

// Close releases the underlying database connection.
func (s *RolloutStore) Close() error {
	return s.db.Close()
}
