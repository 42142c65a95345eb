// Package persist provides the durable session snapshot gateways.
//
// FileStore writes the whole session map as JSON via temp-file-plus-rename;
// RedisStore keeps the same snapshot under a single key. Both treat "nothing
// saved yet" as an empty map, not an error.
package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/pscheid92/zonewarden/internal/domain"
)

// FileStore persists the session snapshot to a JSON file.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the snapshot. A missing file yields an empty map. A corrupt
// file yields an empty map plus ErrCorruptState so the caller can report it.
func (f *FileStore) Load(_ context.Context) (map[uuid.UUID]domain.Session, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[uuid.UUID]domain.Session{}, nil
		}
		return map[uuid.UUID]domain.Session{}, fmt.Errorf("read session snapshot: %w", err)
	}

	var sessions map[uuid.UUID]domain.Session
	if err := json.Unmarshal(data, &sessions); err != nil {
		return map[uuid.UUID]domain.Session{}, fmt.Errorf("%w: %w", domain.ErrCorruptState, err)
	}
	if sessions == nil {
		sessions = map[uuid.UUID]domain.Session{}
	}
	return sessions, nil
}

// Save atomically replaces the snapshot on disk: write to a temp file in the
// same directory, then rename over the target. A crash mid-save leaves the
// previous snapshot intact.
func (f *FileStore) Save(_ context.Context, sessions map[uuid.UUID]domain.Session) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}

	data, err := json.MarshalIndent(sessions, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".sessions-*.json")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp snapshot: %w", err)
	}

	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace session snapshot: %w", err)
	}
	return nil
}
