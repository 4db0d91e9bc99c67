package sweeper

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kelsos/genjobs/internal/storage"
)

const day = 24 * time.Hour

func touch(t *testing.T, dir, name string, mod time.Time) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(name), 0644))
	require.NoError(t, os.Chtimes(path, mod, mod))
}

func TestSweepDeletesOnlyFilesPastRetention(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	for _, age := range []int{1, 2, 3, 4} {
		touch(t, dir, fmt.Sprintf("video_%d.mp4", age), now.Add(-time.Duration(age)*day))
	}

	s := New(storage.NewResultStore(dir), 3*day, day)
	removed, err := s.Sweep(now)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"video_1.mp4", "video_2.mp4", "video_3.mp4"}, names)
}

func TestSweepMissingRootIsSkipped(t *testing.T) {
	s := New(storage.NewResultStore(filepath.Join(t.TempDir(), "missing")), 3*day, day)

	removed, err := s.Sweep(time.Now())
	assert.NoError(t, err)
	assert.Zero(t, removed)
}

func TestSweepIgnoresDirectories(t *testing.T) {
	dir := t.TempDir()
	old := time.Now().Add(-10 * day)
	sub := filepath.Join(dir, "nested")
	require.NoError(t, os.Mkdir(sub, 0755))
	require.NoError(t, os.Chtimes(sub, old, old))

	removed, err := New(storage.NewResultStore(dir), 3*day, day).Sweep(time.Now())
	require.NoError(t, err)
	assert.Zero(t, removed)
	assert.DirExists(t, sub)
}

func TestRunSweepsImmediatelyAndStops(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	touch(t, dir, "image_old.png", now.Add(-5*day))

	results := make(chan Result, 4)
	s := New(storage.NewResultStore(dir), 3*day, time.Hour).WithClock(func() time.Time { return now })
	s.OnSweep(func(r Result) { results <- r })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case r := <-results:
		assert.Equal(t, []string{"image_old.png"}, r.Removed)
	case <-time.After(5 * time.Second):
		t.Fatal("sweeper did not run its first cycle")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}
