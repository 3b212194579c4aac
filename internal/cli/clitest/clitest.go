// Package clitest builds command contexts over temporary stores for tests.
package clitest

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/julianstephens/questbot/internal/cli"
	"github.com/julianstephens/questbot/internal/config"
	"github.com/julianstephens/questbot/internal/utils"
)

// Now is the instant the test clock starts at
var Now = time.Date(2025, 3, 14, 21, 0, 0, 0, time.UTC)

// NewContext returns a context over an uninitialized store named name in a
// temp dir, with a fixed UTC clock and output captured in the buffer
func NewContext(t *testing.T, name string) (*cli.Context, *bytes.Buffer) {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)

	cfg := config.Default()
	cfg.Store = path
	cfg.Timezone = "UTC"

	var out bytes.Buffer
	store := cli.OpenStore(path)
	ctx, err := cli.NewContext(&cfg, store, &utils.FixedClock{T: Now}, &out)
	if err != nil {
		t.Fatalf("NewContext failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return ctx, &out
}

// NewInitialized is NewContext with the store initialized
func NewInitialized(t *testing.T, name string) (*cli.Context, *bytes.Buffer) {
	t.Helper()
	ctx, out := NewContext(t, name)
	if err := ctx.Store.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	return ctx, out
}
