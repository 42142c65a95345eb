package persist

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/zonewarden/internal/domain"
)

func sampleSessions() map[uuid.UUID]domain.Session {
	pid := uuid.New()
	return map[uuid.UUID]domain.Session{
		pid: {
			ParticipantID:    pid,
			OriginalPosition: domain.Point3{X: 10, Y: 64, Z: -3},
			OriginRegionID:   "overworld",
			ZoneID:           1,
			ExpiresAtMillis:  1700000000000,
			LogoutAtMillis:   1699999990000,
		},
	}
}

func TestFileStore_LoadMissingFileIsEmpty(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "sessions.json"))

	sessions, err := store.Load(context.Background())

	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestFileStore_SaveLoadRoundtrip(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "sessions.json"))
	want := sampleSessions()

	require.NoError(t, store.Save(context.Background(), want))

	got, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestFileStore_SaveCreatesMissingDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deep", "sessions.json")
	store := NewFileStore(path)

	require.NoError(t, store.Save(context.Background(), sampleSessions()))

	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestFileStore_CorruptFileReportsAndDegradesToEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	require.NoError(t, os.WriteFile(path, []byte("{{{{"), 0o644))
	store := NewFileStore(path)

	sessions, err := store.Load(context.Background())

	require.ErrorIs(t, err, domain.ErrCorruptState)
	assert.NotNil(t, sessions)
	assert.Empty(t, sessions)
}

func TestFileStore_LoadNullDocumentIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	require.NoError(t, os.WriteFile(path, []byte("null"), 0o644))
	store := NewFileStore(path)

	sessions, err := store.Load(context.Background())

	require.NoError(t, err)
	assert.NotNil(t, sessions)
	assert.Empty(t, sessions)
}

func TestFileStore_SaveLeavesNoTempFilesBehind(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(filepath.Join(dir, "sessions.json"))

	require.NoError(t, store.Save(context.Background(), sampleSessions()))
	require.NoError(t, store.Save(context.Background(), map[uuid.UUID]domain.Session{}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "sessions.json", entries[0].Name())
}

func TestFileStore_SaveOverwritesPreviousSnapshot(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "sessions.json"))

	require.NoError(t, store.Save(context.Background(), sampleSessions()))
	require.NoError(t, store.Save(context.Background(), map[uuid.UUID]domain.Session{}))

	got, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}
