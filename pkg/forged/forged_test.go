package forged

import (
	"context"
	"testing"
	"time"

	"github.com/forgelabs/forge/pkg/builder"
	"github.com/forgelabs/forge/pkg/config"
	"github.com/forgelabs/forge/pkg/logging"
)

func newTestConfig(t *testing.T) config.Configuration {
	t.Helper()
	scanRoot := t.TempDir()
	cacheRoot := t.TempDir()
	return config.Configuration{
		GameName:      "mygame",
		ScanFolders:   []config.ScanFolderConfiguration{{Root: scanRoot, Recursive: true}},
		Platforms:     []string{"pc"},
		CacheRoot:     cacheRoot,
		StorePath:     cacheRoot + "/forge.db",
		MaxPathLength: 1024,
		Workers:       2,
	}
}

func TestNewWiresAllComponents(t *testing.T) {
	logger := logging.NewRoot(logging.LevelError)
	registry := builder.New(logger)

	d, err := New(newTestConfig(t), registry, logger)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer d.Close()

	if d.Resolver == nil || d.Store == nil || d.Fence == nil || d.Scheduler == nil ||
		d.Pipeline == nil || d.Idle == nil || d.RPC == nil {
		t.Fatalf("expected all components to be constructed, got %+v", d)
	}
	if len(d.Catalogs) != 1 || d.Catalogs["pc"] == nil {
		t.Fatalf("expected a catalog for platform pc, got %+v", d.Catalogs)
	}
}

func TestRunStopsOnContextCancellation(t *testing.T) {
	logger := logging.NewRoot(logging.LevelError)
	registry := builder.New(logger)

	d, err := New(newTestConfig(t), registry, logger)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer d.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after context cancellation")
	}
}
