// Package snapshot persists the durable subset of session state (the
// current state vector) and builds the export artifacts derived from a
// session.
package snapshot

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/maiiam/maiiam/internal/state"
)

// maxAge matches the 30-day lifetime of the original client-side slot.
const maxAge = 30 * 24 * time.Hour

const fileName = "state.json"

// envelope is the on-disk snapshot format: the vector plus the save time
// used to enforce the 30-day expiry.
type envelope struct {
	SavedAt time.Time    `json:"saved_at"`
	State   state.Vector `json:"state"`
}

// Store persists the state vector as a small JSON file in the data
// directory. It is the only state that crosses session lifetimes.
type Store struct {
	path   string
	logger *slog.Logger
	now    func() time.Time
}

// NewStore returns a Store rooted at dataDir.
func NewStore(dataDir string) *Store {
	return &Store{
		path:   filepath.Join(dataDir, fileName),
		logger: slog.Default(),
		now:    time.Now,
	}
}

// Load returns the persisted vector, or nil when no usable snapshot exists.
// A missing file, unparseable content, and snapshots older than 30 days are
// all treated as "no prior state", never as errors.
func (s *Store) Load() *state.Vector {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Debug("could not read snapshot", "path", s.path, "error", err)
		}
		return nil
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.logger.Debug("could not parse snapshot", "path", s.path, "error", err)
		return nil
	}
	if env.SavedAt.IsZero() || s.now().Sub(env.SavedAt) > maxAge {
		return nil
	}

	v := env.State.Clamp()
	return &v
}

// Save unconditionally overwrites the snapshot with v.
func (s *Store) Save(v state.Vector) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	data, err := json.Marshal(envelope{SavedAt: s.now().UTC(), State: v})
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return nil
}
