package control

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const controlSchema = `
CREATE TABLE IF NOT EXISTS metadata (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);
`

// SQLiteStore keeps the flags as JSON values in a key/value metadata table.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open control db %s: %w", path, err)
	}
	if _, err := db.Exec(controlSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create control schema: %w", err)
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

func (s *SQLiteStore) Paused(ctx context.Context) (Flag, error) {
	return s.get(ctx, keyPaused)
}

func (s *SQLiteStore) EmergencyKill(ctx context.Context) (Flag, error) {
	return s.get(ctx, keyEmergencyKill)
}

func (s *SQLiteStore) SetPaused(ctx context.Context, active bool, reason string) error {
	return s.upsert(ctx, keyPaused, active, reason)
}

func (s *SQLiteStore) SetEmergencyKill(ctx context.Context, active bool, reason string) error {
	return s.upsert(ctx, keyEmergencyKill, active, reason)
}

func (s *SQLiteStore) DailyReset(ctx context.Context) (Flag, error) {
	return s.get(ctx, keyDailyReset)
}

func (s *SQLiteStore) PeakReset(ctx context.Context) (Flag, error) {
	return s.get(ctx, keyPeakReset)
}

func (s *SQLiteStore) RequestDailyReset(ctx context.Context, reason string) error {
	return s.upsert(ctx, keyDailyReset, true, reason)
}

func (s *SQLiteStore) RequestPeakReset(ctx context.Context, reason string) error {
	return s.upsert(ctx, keyPeakReset, true, reason)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) get(ctx context.Context, key string) (Flag, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return Flag{}, nil
	}
	if err != nil {
		return Flag{}, fmt.Errorf("read %s flag: %w", key, err)
	}

	// Strict decode, same as FileStore: null or a row without a boolean
	// "active" is an error, never "off".
	var raw map[string]any
	if err := json.Unmarshal([]byte(value), &raw); err != nil {
		return Flag{}, fmt.Errorf("parse %s flag: %w", key, err)
	}
	if _, ok := raw["active"].(bool); !ok {
		return Flag{}, fmt.Errorf("parse %s flag: missing boolean \"active\"", key)
	}

	var f Flag
	if err := json.Unmarshal([]byte(value), &f); err != nil {
		return Flag{}, fmt.Errorf("parse %s flag: %w", key, err)
	}
	return f, nil
}

func (s *SQLiteStore) upsert(ctx context.Context, key string, active bool, reason string) error {
	now := s.now().UTC()
	value, err := json.Marshal(Flag{Active: active, Reason: reason, UpdatedAt: now})
	if err != nil {
		return fmt.Errorf("marshal %s flag: %w", key, err)
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO metadata (key, value, updated_at) VALUES (?, ?, ?) ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at",
		key, string(value), now.Unix(),
	)
	if err != nil {
		return fmt.Errorf("write %s flag: %w", key, err)
	}
	return nil
}
