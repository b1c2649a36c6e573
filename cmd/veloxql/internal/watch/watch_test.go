package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher(t *testing.T) {
	dir := t.TempDir()
	schema := filepath.Join(dir, "schema.yaml")
	other := filepath.Join(dir, "other.yaml")
	require.NoError(t, os.WriteFile(schema, []byte("tables: []\n"), 0o600))

	calls := make(chan []string, 4)
	w, err := New([]string{schema}, func(changed []string) error {
		calls <- changed
		return errors.New("ignored")
	}, WithDebounce(20*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.NoError(t, os.WriteFile(other, []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(schema, []byte("tables: [{name: A}]\n"), 0o600))
	require.NoError(t, os.WriteFile(schema, []byte("tables: [{name: B}]\n"), 0o600))

	select {
	case changed := <-calls:
		abs, err := filepath.Abs(schema)
		require.NoError(t, err)
		assert.Equal(t, []string{abs}, changed, "writes are debounced and unwatched files ignored")
	case <-time.After(5 * time.Second):
		t.Fatal("no callback")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestNew_MissingDirectory(t *testing.T) {
	_, err := New([]string{filepath.Join(t.TempDir(), "missing", "schema.yaml")}, func([]string) error { return nil })
	assert.Error(t, err)
}
