package rpcsurface

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/forgelabs/forge/pkg/builder"
	"github.com/forgelabs/forge/pkg/fence"
	"github.com/forgelabs/forge/pkg/idle"
	"github.com/forgelabs/forge/pkg/logging"
	"github.com/forgelabs/forge/pkg/pathresolver"
	"github.com/forgelabs/forge/pkg/scheduler"
	"github.com/forgelabs/forge/pkg/store"
)

func newTestServer(t *testing.T) (*Server, string, string) {
	t.Helper()

	scanRoot := t.TempDir()
	cacheRoot := t.TempDir()
	logger := logging.NewRoot(logging.LevelError)

	resolver, err := pathresolver.New(pathresolver.Config{
		ScanFolders: []pathresolver.ScanFolder{{Root: scanRoot, Recursive: true}},
	}, logger)
	if err != nil {
		t.Fatalf("New resolver: %v", err)
	}

	st, err := store.Open(filepath.Join(t.TempDir(), "store.db"), logger)
	if err != nil {
		t.Fatalf("Open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	registry := builder.New(logger)
	sched, err := scheduler.New(scheduler.Config{
		Resolver:  resolver,
		Store:     st,
		Builders:  registry,
		CacheRoot: cacheRoot,
	}, logger)
	if err != nil {
		t.Fatalf("New scheduler: %v", err)
	}

	coordinator := fence.New(t.TempDir(), logger)

	srv := New(Config{
		Resolver:        resolver,
		Store:           st,
		Scheduler:       sched,
		Fence:           coordinator,
		CacheRoot:       cacheRoot,
		GameName:        "mygame",
		DefaultPlatform: "pc",
		Platforms:       []string{"pc"},
	}, logger)

	return srv, scanRoot, cacheRoot
}

func TestAssetIDForRelativePathReturnsUnchanged(t *testing.T) {
	srv, _, _ := newTestServer(t)
	id, ok := srv.AssetIDForPath("textures/foo.png")
	if !ok || id != "textures/foo.png" {
		t.Fatalf("expected unchanged relative path, got id=%q ok=%v", id, ok)
	}
}

func TestAssetIDForCachePathStripsPlatformAndGameName(t *testing.T) {
	srv, _, cacheRoot := newTestServer(t)
	abs := cacheRoot + "/pc/mygame/textures/foo.png.out"
	id, ok := srv.AssetIDForPath(abs)
	if !ok || id != "textures/foo.png.out" {
		t.Fatalf("expected stripped asset id, got id=%q ok=%v", id, ok)
	}
}

func TestAssetIDForSourcePathFallsBackToRelativePath(t *testing.T) {
	srv, scanRoot, _ := newTestServer(t)
	src := filepath.Join(scanRoot, "model.fbx")
	if err := os.WriteFile(src, []byte("data"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	id, ok := srv.AssetIDForPath(src)
	if !ok || id != "model.fbx" {
		t.Fatalf("expected fallback to relative source path, got id=%q ok=%v", id, ok)
	}
}

func TestAssetIDFailurePathReturnsOriginalInput(t *testing.T) {
	srv, _, _ := newTestServer(t)
	input := "/totally/unrelated/absolute/path.txt"
	id, ok := srv.AssetIDForPath(input)
	if ok || id != input {
		t.Fatalf("expected failure to echo original input, got id=%q ok=%v", id, ok)
	}
}

func TestStatusRequestUnknownForNeverSeenSource(t *testing.T) {
	srv, _, _ := newTestServer(t)
	if got := srv.StatusRequest("never/seen.txt"); got != StatusUnknown {
		t.Fatalf("expected StatusUnknown, got %v", got)
	}
}

type fakeIdleProbe struct{ idle bool }

func (p *fakeIdleProbe) IsIdle() bool { return p.idle }

func TestAssetExistsWithoutIdleDetectorReturnsImmediately(t *testing.T) {
	srv, _, _ := newTestServer(t)
	done := make(chan bool, 1)
	go func() { done <- srv.AssetExists(context.Background(), "never/seen.txt") }()
	select {
	case got := <-done:
		if got {
			t.Fatalf("expected false for a never-seen asset")
		}
	case <-time.After(time.Second):
		t.Fatalf("AssetExists blocked with no Idle Detector configured")
	}
}

func TestAssetExistsRechecksAfterIdleTransition(t *testing.T) {
	srv, _, _ := newTestServer(t)
	logger := logging.NewRoot(logging.LevelError)

	pipeline := &fakeIdleProbe{idle: false}
	scheduler := &fakeIdleProbe{idle: false}
	detector := idle.New(pipeline, scheduler, srv.cfg.Store, logger)
	srv.cfg.Idle = detector

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go detector.Run(ctx)

	key := store.SourceKey{SourcePath: "textures/foo.png", Platform: "pc"}

	result := make(chan bool, 1)
	go func() {
		result <- srv.AssetExists(ctx, "textures/foo.png")
	}()

	// Give AssetExists a chance to observe the initial miss and park on the
	// idle wait before the product actually lands.
	time.Sleep(50 * time.Millisecond)

	if err := srv.cfg.Store.SetFingerprint(key, store.Fingerprint(42)); err != nil {
		t.Fatalf("SetFingerprint: %v", err)
	}
	if err := srv.cfg.Store.SetProducts(key, []store.ProductEntry{{RelPath: "pc/mygame/textures/foo.png.out"}}); err != nil {
		t.Fatalf("SetProducts: %v", err)
	}
	pipeline.idle = true
	scheduler.idle = true

	select {
	case got := <-result:
		if !got {
			t.Fatalf("expected AssetExists to find the asset after the idle re-check")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("AssetExists did not return after idle transition")
	}
}

func TestStatusRequestMissingAfterFailedFingerprint(t *testing.T) {
	srv, _, _ := newTestServer(t)
	key := store.SourceKey{SourcePath: "broken.txt", Platform: "pc"}
	if err := srv.cfg.Store.SetFingerprint(key, store.FingerprintFailed); err != nil {
		t.Fatalf("SetFingerprint: %v", err)
	}
	if got := srv.StatusRequest("broken.txt"); got != StatusMissing {
		t.Fatalf("expected StatusMissing, got %v", got)
	}
}
