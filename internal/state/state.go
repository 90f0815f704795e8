// Package state keeps the durable per-channel record of already-archived
// video ids. One JSON file backs every channel; each mutation is a locked
// load-modify-persist cycle with an atomic file replace, so concurrent
// channel workers never lose each other's updates.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// Retention caps how many video ids are kept per channel; the oldest are
// evicted first.
const Retention = 200

// Store is a file-backed processed-video registry. The zero value is not
// usable; construct with NewStore.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore returns a Store persisting to path. The file is created on first
// append.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Get returns the processed video ids for channel, oldest first. Every call
// re-reads the backing file; there is no long-lived in-memory authority.
func (s *Store) Get(channel string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.load()
	return normalize(state[channel]), nil
}

// Append records id as processed for channel and returns the updated list.
// Duplicates are dropped preserving first occurrence and the list is capped
// at Retention entries.
func (s *Store) Append(channel, id string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.load()
	history := normalize(state[channel])
	history = normalizeStrings(append(history, id))

	raw := make([]any, len(history))
	for i, v := range history {
		raw[i] = v
	}
	state[channel] = raw

	if err := s.persist(state); err != nil {
		return nil, err
	}
	return history, nil
}

// load reads the full state file. A missing or corrupt file yields an empty
// state rather than an error; the next persist rewrites it whole.
func (s *Store) load() map[string][]any {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return map[string][]any{}
	}
	var state map[string][]any
	if err := json.Unmarshal(data, &state); err != nil || state == nil {
		return map[string][]any{}
	}
	return state
}

// persist writes the full state via temp-file-then-rename so a crash mid-write
// leaves the prior file intact.
func (s *Store) persist(state map[string][]any) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("state encode: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("state write: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("state replace: %w", err)
	}
	return nil
}

// normalize coerces a stored value into a clean id list: strings only,
// de-duplicated preserving first occurrence, capped to the most recent
// Retention entries.
func normalize(raw []any) []string {
	values := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			values = append(values, s)
		}
	}
	return normalizeStrings(values)
}

func normalizeStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	ordered := make([]string, 0, len(values))
	for _, v := range values {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		ordered = append(ordered, v)
	}
	if len(ordered) > Retention {
		ordered = ordered[len(ordered)-Retention:]
	}
	return ordered
}
