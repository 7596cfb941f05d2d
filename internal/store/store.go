// Package store persists issued execution handles so status can be
// polled across process restarts.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	aperr "github.com/bulltickr/aoprism-sub000/internal/errors"
	"github.com/bulltickr/aoprism-sub000/internal/model"
)

type Store struct {
	db   *sql.DB
	lock *flock.Flock
}

func Open(path, lockPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create handle store directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create handle lock directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open handle sqlite: %w", err)
	}

	queries := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		`CREATE TABLE IF NOT EXISTS handles (
			handle_id TEXT PRIMARY KEY,
			bridge TEXT NOT NULL,
			status TEXT NOT NULL,
			tx_hash TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			payload BLOB NOT NULL
		);`,
		"CREATE INDEX IF NOT EXISTS idx_handles_status_updated ON handles(status, updated_at DESC);",
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init handle schema: %w", err)
		}
	}
	return &Store{db: db, lock: flock.New(lockPath)}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Save(handle model.ExecutionHandle) error {
	if strings.TrimSpace(handle.HandleID) == "" {
		return fmt.Errorf("save handle: missing handle id")
	}
	locked, err := s.lock.TryLockContext(context.Background(), 5*time.Second)
	if err != nil {
		return fmt.Errorf("lock handle store: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock handle store: timeout acquiring lock")
	}
	defer func() { _ = s.lock.Unlock() }()

	payload, err := json.Marshal(handle)
	if err != nil {
		return fmt.Errorf("marshal handle: %w", err)
	}
	createdUnix, _ := parseRFC3339Unix(handle.CreatedAt)
	updatedUnix, _ := parseRFC3339Unix(handle.UpdatedAt)
	if createdUnix == 0 {
		createdUnix = time.Now().UTC().Unix()
	}
	if updatedUnix == 0 {
		updatedUnix = time.Now().UTC().Unix()
	}

	_, err = s.db.Exec(`
		INSERT INTO handles (handle_id, bridge, status, tx_hash, created_at, updated_at, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(handle_id) DO UPDATE SET
			bridge=excluded.bridge,
			status=excluded.status,
			tx_hash=excluded.tx_hash,
			updated_at=excluded.updated_at,
			payload=excluded.payload
	`, handle.HandleID, handle.Bridge, string(handle.Status), handle.TxHash, createdUnix, updatedUnix, payload)
	if err != nil {
		return fmt.Errorf("save handle: %w", err)
	}
	return nil
}

func (s *Store) Get(handleID string) (model.ExecutionHandle, error) {
	var payload []byte
	err := s.db.QueryRow("SELECT payload FROM handles WHERE handle_id = ?", handleID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.ExecutionHandle{}, aperr.New(aperr.CodeUsage, fmt.Sprintf("handle not found: %s", handleID))
		}
		return model.ExecutionHandle{}, fmt.Errorf("read handle: %w", err)
	}
	var handle model.ExecutionHandle
	if err := json.Unmarshal(payload, &handle); err != nil {
		return model.ExecutionHandle{}, fmt.Errorf("decode handle payload: %w", err)
	}
	return handle, nil
}

func (s *Store) List(status model.Status, limit int) ([]model.ExecutionHandle, error) {
	if limit <= 0 {
		limit = 20
	}
	var (
		rows *sql.Rows
		err  error
	)
	if status == "" {
		rows, err = s.db.Query("SELECT payload FROM handles ORDER BY updated_at DESC LIMIT ?", limit)
	} else {
		rows, err = s.db.Query("SELECT payload FROM handles WHERE status = ? ORDER BY updated_at DESC LIMIT ?", string(status), limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list handles: %w", err)
	}
	defer rows.Close()

	handles := make([]model.ExecutionHandle, 0)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan handle row: %w", err)
		}
		var handle model.ExecutionHandle
		if err := json.Unmarshal(payload, &handle); err != nil {
			return nil, fmt.Errorf("decode handle row: %w", err)
		}
		handles = append(handles, handle)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate handle rows: %w", err)
	}
	return handles, nil
}

func parseRFC3339Unix(v string) (int64, bool) {
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return 0, false
	}
	return t.UTC().Unix(), true
}
