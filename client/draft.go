package chatclient

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
)

// Draft is the in-progress composer state. Client-local only, never sent to
// the server until submission.
type Draft struct {
	Text             string `toml:"text"`
	ModelID          string `toml:"model_id"`
	WebSearchEnabled bool   `toml:"web_search_enabled"`
}

// DraftStore persists the composer draft to a TOML file, debouncing writes so
// per-keystroke updates do not hit the disk individually.
type DraftStore struct {
	path  string
	delay time.Duration

	mu      sync.Mutex
	pending Draft
	dirty   bool
	timer   *time.Timer
}

// NewDraftStore builds a store writing to path. A non-positive delay
// disables debouncing and every Set flushes immediately.
func NewDraftStore(path string, delay time.Duration) *DraftStore {
	return &DraftStore{path: path, delay: delay}
}

// Load reads the persisted draft. A missing file yields the zero draft.
func (s *DraftStore) Load() (Draft, error) {
	var d Draft
	if _, err := toml.DecodeFile(s.path, &d); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Draft{}, nil
		}
		return Draft{}, fmt.Errorf("decode draft: %w", err)
	}
	return d, nil
}

// Set records the latest draft and schedules a flush.
func (s *DraftStore) Set(d Draft) {
	s.mu.Lock()
	s.pending = d
	s.dirty = true

	if s.delay <= 0 {
		s.mu.Unlock()
		_ = s.Flush()
		return
	}

	if s.timer == nil {
		s.timer = time.AfterFunc(s.delay, func() { _ = s.Flush() })
	} else {
		s.timer.Reset(s.delay)
	}
	s.mu.Unlock()
}

// Flush writes the pending draft now.
func (s *DraftStore) Flush() error {
	s.mu.Lock()
	if !s.dirty {
		s.mu.Unlock()
		return nil
	}
	d := s.pending
	s.dirty = false
	s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create draft dir: %w", err)
	}

	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("create draft file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(d); err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	return nil
}

// Clear drops the pending draft and removes the file, e.g. after submission.
func (s *DraftStore) Clear() error {
	s.mu.Lock()
	s.pending = Draft{}
	s.dirty = false
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove draft file: %w", err)
	}
	return nil
}
