package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventTypeString(t *testing.T) {
	testCases := []struct {
		eventType EventType
		expected  string
	}{
		{EventTypeCreated, "created"},
		{EventTypeModified, "modified"},
		{EventTypeDeleted, "deleted"},
		{EventTypeRenamed, "renamed"},
		{EventType(42), "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.eventType.String())
		})
	}
}

func TestValidatePath(t *testing.T) {
	testCases := []struct {
		path    string
		wantErr bool
	}{
		{path: "logs", wantErr: false},
		{path: "./logs/../data", wantErr: false},
		{path: "../outside", wantErr: true},
		{path: "", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			_, err := validatePath(tc.path)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestExtensionFilter(t *testing.T) {
	filter := ExtensionFilter([]string{".txt", ".LOG"})

	testCases := []struct {
		path     string
		expected bool
	}{
		{"readings.txt", true},
		{"server.log", true},
		{"UPPER.TXT", true},
		{"readings.txt.out", false},
		{"image.png", false},
		{"noext", false},
	}

	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			assert.Equal(t, tc.expected, filter(tc.path))
		})
	}

	assert.True(t, ExtensionFilter(nil)("anything.bin"))
}

func TestNoOutputFilter(t *testing.T) {
	filter := NoOutputFilter(".out")
	assert.True(t, filter("a.txt"))
	assert.False(t, filter("a.txt.out"))
	assert.True(t, NoOutputFilter("")("a.txt.out"))
}

func TestNoHiddenFilter(t *testing.T) {
	testCases := []struct {
		path     string
		expected bool
	}{
		{"dir/readings.txt", true},
		{"dir/.hidden.txt", false},
		{"dir/readings.txt~", false},
		{"dir/readings.txt.swp", false},
	}

	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			assert.Equal(t, tc.expected, NoHiddenFilter(tc.path))
		})
	}
}

func TestNoGitFilter(t *testing.T) {
	assert.True(t, NoGitFilter("src/main.txt"))
	assert.False(t, NoGitFilter(".git/config"))
	assert.False(t, NoGitFilter("src/.git/HEAD"))
}

func TestExisting(t *testing.T) {
	events := []ChangeEvent{
		{Type: EventTypeCreated, Path: "a"},
		{Type: EventTypeDeleted, Path: "b"},
		{Type: EventTypeModified, Path: "c"},
		{Type: EventTypeRenamed, Path: "d"},
	}
	got := Existing(events)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Path)
	assert.Equal(t, "c", got[1].Path)
}

func TestDebouncer(t *testing.T) {
	d := newDebouncer(30 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.start(ctx)

	d.events <- ChangeEvent{Type: EventTypeCreated, Path: "b.txt"}
	d.events <- ChangeEvent{Type: EventTypeCreated, Path: "a.txt"}
	d.events <- ChangeEvent{Type: EventTypeModified, Path: "b.txt"}

	select {
	case events := <-d.output:
		require.Len(t, events, 2)
		assert.Equal(t, "a.txt", events[0].Path)
		assert.Equal(t, "b.txt", events[1].Path)
		assert.Equal(t, EventTypeModified, events[1].Type)
	case <-time.After(2 * time.Second):
		t.Fatal("debouncer did not flush")
	}
}

func TestFileWatcher_Lifecycle(t *testing.T) {
	watcher, err := NewFileWatcher(50*time.Millisecond, nil)
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".hidden"), 0755))

	require.NoError(t, watcher.AddRecursive(dir))
	list := watcher.WatchList()
	assert.Contains(t, list, filepath.Clean(dir))
	assert.Contains(t, list, filepath.Join(dir, "nested"))
	assert.NotContains(t, list, filepath.Join(dir, ".hidden"))

	assert.Error(t, watcher.AddPath(filepath.Join(dir, "missing")))
	assert.Error(t, watcher.AddRecursive("../../etc"))

	watcher.AddFilter(ExtensionFilter([]string{".txt"}))

	var (
		mu       sync.Mutex
		received []ChangeEvent
	)
	watcher.AddHandler(func(_ context.Context, events []ChangeEvent) error {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, events...)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, watcher.Start(ctx))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "skip.png"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "readings.txt"), []byte("x"), 0644))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) > 0
	}, 3*time.Second, 20*time.Millisecond)

	mu.Lock()
	for _, e := range received {
		assert.Equal(t, ".txt", filepath.Ext(e.Path))
	}
	mu.Unlock()

	cancel()
	assert.NoError(t, watcher.Stop())
}
