package control

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()

	dir := t.TempDir()
	fs, err := NewFileStore(filepath.Join(dir, "flags"))
	require.NoError(t, err)
	db, err := NewSQLiteStore(filepath.Join(dir, "control.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return map[string]Store{
		"memory": NewMemory(),
		"file":   fs,
		"sqlite": db,
	}
}

func TestStoresUnsetIsInactive(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			f, err := s.Paused(ctx)
			require.NoError(t, err)
			assert.False(t, f.Active)

			f, err = s.EmergencyKill(ctx)
			require.NoError(t, err)
			assert.False(t, f.Active)
		})
	}
}

func TestStoresRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.SetPaused(ctx, true, "3 consecutive losses (limit 3)"))
			require.NoError(t, s.SetEmergencyKill(ctx, true, "operator"))

			p, err := s.Paused(ctx)
			require.NoError(t, err)
			assert.True(t, p.Active)
			assert.Equal(t, "3 consecutive losses (limit 3)", p.Reason)
			assert.False(t, p.UpdatedAt.IsZero())

			k, err := s.EmergencyKill(ctx)
			require.NoError(t, err)
			assert.True(t, k.Active)

			// Flags are independent.
			require.NoError(t, s.SetPaused(ctx, false, ""))
			p, err = s.Paused(ctx)
			require.NoError(t, err)
			assert.False(t, p.Active)
			k, err = s.EmergencyKill(ctx)
			require.NoError(t, err)
			assert.True(t, k.Active)
		})
	}
}

func TestFileStoreCorruptFlagIsError(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(s.Path(keyEmergencyKill), []byte("{{{ not yaml"), 0o644))
	_, err = s.EmergencyKill(ctx)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(s.Path(keyEmergencyKill), []byte("reason: x\n"), 0o644))
	_, err = s.EmergencyKill(ctx)
	assert.Error(t, err, "missing active field")
}

func TestFileStoreHandEditedFlag(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(s.Path(keyPaused), []byte("active: true\nreason: maintenance\n"), 0o644))

	f, err := s.Paused(context.Background())
	require.NoError(t, err)
	assert.True(t, f.Active)
	assert.Equal(t, "maintenance", f.Reason)
}

func TestSQLiteStorePersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "control.db")

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.SetEmergencyKill(ctx, true, "halt"))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()
	k, err := s.EmergencyKill(ctx)
	require.NoError(t, err)
	assert.True(t, k.Active)
	assert.Equal(t, "halt", k.Reason)
}

func TestSQLiteStoreCorruptRowIsError(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "control.db"))
	require.NoError(t, err)
	defer s.Close()

	for _, value := range []string{"null", "{}", `{"reason":"halt"}`, `{"active":"yes"}`, "not json"} {
		_, err := s.db.ExecContext(ctx,
			"INSERT INTO metadata (key, value, updated_at) VALUES (?, ?, 0) ON CONFLICT(key) DO UPDATE SET value=excluded.value",
			keyEmergencyKill, value)
		require.NoError(t, err)

		_, err = s.EmergencyKill(ctx)
		assert.Error(t, err, value)
	}
}

func TestStoresResetRequests(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			f, err := s.DailyReset(ctx)
			require.NoError(t, err)
			assert.False(t, f.Active)

			require.NoError(t, s.RequestDailyReset(ctx, "new session"))
			first, err := s.DailyReset(ctx)
			require.NoError(t, err)
			assert.True(t, first.Active)
			assert.Equal(t, "new session", first.Reason)

			time.Sleep(2 * time.Millisecond)
			require.NoError(t, s.RequestDailyReset(ctx, "again"))
			second, err := s.DailyReset(ctx)
			require.NoError(t, err)
			assert.True(t, second.UpdatedAt.After(first.UpdatedAt), "each request gets a newer stamp")

			require.NoError(t, s.RequestPeakReset(ctx, "acknowledged"))
			p, err := s.PeakReset(ctx)
			require.NoError(t, err)
			assert.True(t, p.Active)
		})
	}
}
