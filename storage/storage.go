package storage

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/tokenlens/tokenlens/config"
	"github.com/tokenlens/tokenlens/scheduler"
)

// Store is the ephemeral screenshot store. Entries are named by request id
// and live only until the result has been delivered; a periodic sweep
// removes anything a crashed delivery path left behind.
type Store struct {
	dir     string
	maxAge  time.Duration
	sweeper *scheduler.Scheduler
}

// NewStore creates a store under cfg.Dir
func NewStore(cfg config.StorageConfig) *Store {
	store := &Store{
		dir:    cfg.Dir,
		maxAge: cfg.MaxAge,
	}
	store.sweeper = scheduler.New(cfg.SweepInterval, store.sweep)
	return store
}

// Start implements core.Interface: ensures the directory exists and starts
// the sweep loop.
func (s *Store) Start(ctx context.Context) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating screenshot dir %s: %w", s.dir, err)
	}
	s.sweeper.Start(ctx, false)
	return nil
}

// Stop implements core.Interface
func (s *Store) Stop() {
	s.sweeper.Stop()
}

// Save writes png under the request id and returns the file path
func (s *Store) Save(requestID string, png []byte) (string, error) {
	path := s.Path(requestID)
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return "", fmt.Errorf("writing screenshot %s: %w", path, err)
	}
	return path, nil
}

// Remove deletes the entry for requestID. Removing an already-removed
// entry is not an error.
func (s *Store) Remove(requestID string) error {
	err := os.Remove(s.Path(requestID))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Path returns the file path an entry for requestID would use
func (s *Store) Path(requestID string) string {
	return filepath.Join(s.dir, requestID+".png")
}

// sweep removes entries older than the configured max age
func (s *Store) sweep(ctx context.Context) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		log.Printf("Storage: sweep failed to read %s: %v", s.dir, err)
		return
	}

	cutoff := time.Now().Add(-s.maxAge)
	removed := 0
	for _, entry := range entries {
		if ctx.Err() != nil {
			return
		}
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".png" {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err == nil {
			removed++
		}
	}
	if removed > 0 {
		log.Printf("Storage: sweep removed %d stale screenshots", removed)
	}
}
