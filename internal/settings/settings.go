// Package settings holds the user-editable settings (Redis endpoint and
// aggregation mode) and watches them for changes.
package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/tgrall/gears-explorer/internal/gears"
)

// Settings is what the user can change at runtime.
type Settings struct {
	URL             string     `yaml:"url"`
	AggregationMode gears.Mode `yaml:"aggregation_mode"`
}

// Store loads and saves Settings. With no path they live in memory only.
type Store struct {
	path     string
	defaults Settings

	mu  sync.Mutex
	mem Settings
}

// NewStore creates a store backed by path, falling back to defaults for
// anything the file leaves out.
func NewStore(path string, defaults Settings) *Store {
	return &Store{
		path:     path,
		defaults: defaults,
		mem:      defaults,
	}
}

// Path returns the backing file, empty for an in-memory store.
func (s *Store) Path() string {
	return s.path
}

// Load reads the current settings. A missing file yields the defaults.
func (s *Store) Load() (Settings, error) {
	if s.path == "" {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.mem, nil
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return s.defaults, nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read settings file: %w", err)
	}

	out := s.defaults
	if err := yaml.Unmarshal(data, &out); err != nil {
		return Settings{}, fmt.Errorf("failed to parse settings yaml: %w", err)
	}
	if out.AggregationMode == "" {
		out.AggregationMode = s.defaults.AggregationMode
	}
	if _, ok := gears.ParseMode(string(out.AggregationMode)); !ok {
		return Settings{}, fmt.Errorf("invalid aggregation_mode %q", out.AggregationMode)
	}
	return out, nil
}

// Save persists settings. The file is replaced atomically.
func (s *Store) Save(set Settings) error {
	if _, ok := gears.ParseMode(string(set.AggregationMode)); !ok {
		return fmt.Errorf("invalid aggregation_mode %q", set.AggregationMode)
	}
	if s.path == "" {
		s.mu.Lock()
		s.mem = set
		s.mu.Unlock()
		return nil
	}

	data, err := yaml.Marshal(set)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".settings-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create temp settings file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace settings file: %w", err)
	}
	return nil
}
