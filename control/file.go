package control

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileStore keeps each flag in its own YAML file under a directory, so a
// dashboard or an operator with a shell can flip one without touching the
// other. A missing file means the flag was never set.
type FileStore struct {
	dir string
	now func() time.Time
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create control dir: %w", err)
	}
	return &FileStore{dir: dir, now: time.Now}, nil
}

// Path returns the file backing a flag key.
func (s *FileStore) Path(key string) string {
	return filepath.Join(s.dir, key+".yaml")
}

func (s *FileStore) Paused(ctx context.Context) (Flag, error) {
	return s.read(keyPaused)
}

func (s *FileStore) EmergencyKill(ctx context.Context) (Flag, error) {
	return s.read(keyEmergencyKill)
}

func (s *FileStore) SetPaused(ctx context.Context, active bool, reason string) error {
	return s.write(keyPaused, active, reason)
}

func (s *FileStore) SetEmergencyKill(ctx context.Context, active bool, reason string) error {
	return s.write(keyEmergencyKill, active, reason)
}

func (s *FileStore) DailyReset(ctx context.Context) (Flag, error) {
	return s.read(keyDailyReset)
}

func (s *FileStore) PeakReset(ctx context.Context) (Flag, error) {
	return s.read(keyPeakReset)
}

func (s *FileStore) RequestDailyReset(ctx context.Context, reason string) error {
	return s.write(keyDailyReset, true, reason)
}

func (s *FileStore) RequestPeakReset(ctx context.Context, reason string) error {
	return s.write(keyPeakReset, true, reason)
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) read(key string) (Flag, error) {
	data, err := os.ReadFile(s.Path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return Flag{}, nil
	}
	if err != nil {
		return Flag{}, fmt.Errorf("read %s flag: %w", key, err)
	}

	// Strict decode: a truncated or hand-mangled file is an error, not "off".
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Flag{}, fmt.Errorf("parse %s flag: %w", key, err)
	}
	if _, ok := raw["active"].(bool); !ok {
		return Flag{}, fmt.Errorf("parse %s flag: missing boolean \"active\"", key)
	}

	var f Flag
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Flag{}, fmt.Errorf("parse %s flag: %w", key, err)
	}
	return f, nil
}

// write replaces the file atomically so readers never see a partial flag.
func (s *FileStore) write(key string, active bool, reason string) error {
	data, err := yaml.Marshal(Flag{Active: active, Reason: reason, UpdatedAt: s.now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal %s flag: %w", key, err)
	}

	tmp, err := os.CreateTemp(s.dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("write %s flag: %w", key, err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write %s flag: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write %s flag: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), s.Path(key)); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write %s flag: %w", key, err)
	}
	return nil
}
