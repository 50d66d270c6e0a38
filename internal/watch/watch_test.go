package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirRunsOnStartAndAfterChanges(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runs atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- Dir(ctx, dir, Options{
			Match:    func(name string) bool { return strings.HasSuffix(name, ".json") },
			Debounce: 150 * time.Millisecond,
			Log:      zerolog.Nop(),
		}, func(context.Context) error {
			runs.Add(1)
			return nil
		})
	}()

	require.Eventually(t, func() bool { return runs.Load() == 1 }, 2*time.Second, 10*time.Millisecond)

	// A burst of writes collapses into a single run.
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "message_1.json"), []byte("[]"), 0644))
	}
	require.Eventually(t, func() bool { return runs.Load() == 2 }, 2*time.Second, 10*time.Millisecond)

	// Non-matching files are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))
	time.Sleep(400 * time.Millisecond)
	assert.Equal(t, int32(2), runs.Load())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}

func TestDirKeepsWatchingAfterRunError(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runs atomic.Int32
	go Dir(ctx, dir, Options{Debounce: 100 * time.Millisecond, Log: zerolog.Nop()}, func(context.Context) error {
		runs.Add(1)
		return errors.New("boom")
	})

	require.Eventually(t, func() bool { return runs.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.json"), []byte("[]"), 0644))
	require.Eventually(t, func() bool { return runs.Load() == 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestDirMissingDirectory(t *testing.T) {
	err := Dir(context.Background(), filepath.Join(t.TempDir(), "missing"), Options{Log: zerolog.Nop()}, func(context.Context) error {
		t.Fatal("fn must not run")
		return nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "watch ")
}
