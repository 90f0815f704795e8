package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "_state.json"))
}

func TestGetMissingFile(t *testing.T) {
	s := newTestStore(t)
	got, err := s.Get("somechannel")
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestAppendAndGet(t *testing.T) {
	s := newTestStore(t)

	list, err := s.Append("ch", "vid-1")
	require.NoError(t, err)
	require.Equal(t, []string{"vid-1"}, list)

	list, err = s.Append("ch", "vid-2")
	require.NoError(t, err)
	require.Equal(t, []string{"vid-1", "vid-2"}, list)

	got, err := s.Get("ch")
	require.NoError(t, err)
	require.Equal(t, []string{"vid-1", "vid-2"}, got)
}

func TestAppendDeduplicates(t *testing.T) {
	s := newTestStore(t)
	s.Append("ch", "a")
	s.Append("ch", "b")
	list, err := s.Append("ch", "a")
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, list)
}

func TestRetentionCap(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < Retention+25; i++ {
		_, err := s.Append("ch", fmt.Sprintf("vid-%04d", i))
		require.NoError(t, err)
	}
	got, err := s.Get("ch")
	require.NoError(t, err)
	require.Len(t, got, Retention)
	require.Equal(t, "vid-0025", got[0])
	require.Equal(t, fmt.Sprintf("vid-%04d", Retention+24), got[len(got)-1])
}

func TestChannelsAreIndependent(t *testing.T) {
	s := newTestStore(t)
	s.Append("a", "v1")
	s.Append("b", "v2")

	gotA, _ := s.Get("a")
	gotB, _ := s.Get("b")
	require.Equal(t, []string{"v1"}, gotA)
	require.Equal(t, []string{"v2"}, gotB)
}

func TestCorruptFileTreatedAsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "_state.json")
	require.NoError(t, os.WriteFile(path, []byte("{truncated"), 0o644))
	s := NewStore(path)

	got, err := s.Get("ch")
	require.NoError(t, err)
	require.Empty(t, got)

	// The next append rewrites the file whole.
	_, err = s.Append("ch", "v1")
	require.NoError(t, err)
	got, err = s.Get("ch")
	require.NoError(t, err)
	require.Equal(t, []string{"v1"}, got)
}

func TestNonStringEntriesDropped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "_state.json")
	raw, _ := json.Marshal(map[string][]any{"ch": {"v1", 7, nil, "v2", "v1"}})
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	got, err := NewStore(path).Get("ch")
	require.NoError(t, err)
	require.Equal(t, []string{"v1", "v2"}, got)
}

func TestSharedAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "_state.json")
	first := NewStore(path)
	first.Append("ch", "v1")

	got, err := NewStore(path).Get("ch")
	require.NoError(t, err)
	require.Equal(t, []string{"v1"}, got)
}

func TestConcurrentAppends(t *testing.T) {
	s := newTestStore(t)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Append("ch", fmt.Sprintf("vid-%02d", i))
			require.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := s.Get("ch")
	require.NoError(t, err)
	require.Len(t, got, 20)
}

func TestStaleTempFileDoesNotCorruptState(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "_state.json")
	s := NewStore(path)
	_, err := s.Append("ch", "v1")
	require.NoError(t, err)

	// A crash between temp-file write and rename leaves a partial temp file
	// behind; the state file itself must stay authoritative.
	require.NoError(t, os.WriteFile(path+".tmp", []byte(`{"ch": ["gar`), 0o644))

	got, err := s.Get("ch")
	require.NoError(t, err)
	require.Equal(t, []string{"v1"}, got)

	// The next append overwrites the stale temp file and persists cleanly.
	list, err := s.Append("ch", "v2")
	require.NoError(t, err)
	require.Equal(t, []string{"v1", "v2"}, list)

	got, err = NewStore(path).Get("ch")
	require.NoError(t, err)
	require.Equal(t, []string{"v1", "v2"}, got)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestAtomicReplaceLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "_state.json")
	s := NewStore(path)
	_, err := s.Append("ch", "v1")
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "_state.json", entries[0].Name())
}
