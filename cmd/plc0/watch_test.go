package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/miniplc0/manifest"
)

// syncBuffer is a bytes.Buffer safe for concurrent writers and readers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWatchFiles_RecompilesOnWrite(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "prog.plc0", "begin print(1); end")
	artifact := filepath.Join(dir, "prog.s")

	m := manifest.Default()
	m.Dir = dir

	ctx, cancel := context.WithCancel(context.Background())
	var errOut syncBuffer
	done := make(chan error, 1)
	go func() { done <- watchFiles(ctx, []string{src}, m, &errOut) }()

	// Initial compile happens after the watch is registered.
	require.Eventually(t, func() bool {
		data, err := os.ReadFile(artifact)
		return err == nil && string(data) == "LIT 1\nWRT\n"
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, os.WriteFile(src, []byte("begin print(2); end"), 0644))
	require.Eventually(t, func() bool {
		data, err := os.ReadFile(artifact)
		return err == nil && string(data) == "LIT 2\nWRT\n"
	}, 5*time.Second, 20*time.Millisecond)

	// A broken edit is reported and leaves the last good artifact alone.
	require.NoError(t, os.WriteFile(src, []byte("begin print(; end"), 0644))
	require.Eventually(t, func() bool {
		return bytes.Contains([]byte(errOut.String()), []byte("expression operand missing"))
	}, 5*time.Second, 20*time.Millisecond)
	data, err := os.ReadFile(artifact)
	require.NoError(t, err)
	assert.Equal(t, "LIT 2\nWRT\n", string(data))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watchFiles did not stop after cancel")
	}
}
