package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/forgelabs/forge/pkg/builder"
	"github.com/forgelabs/forge/pkg/logging"
	"github.com/forgelabs/forge/pkg/pathresolver"
	"github.com/forgelabs/forge/pkg/store"
)

func newTestScheduler(t *testing.T) (*Scheduler, string, string, *store.Store) {
	t.Helper()

	scanRoot := t.TempDir()
	cacheRoot := t.TempDir()

	resolver, err := pathresolver.New(pathresolver.Config{
		ScanFolders: []pathresolver.ScanFolder{{Root: scanRoot, Recursive: true}},
	}, logging.NewRoot(logging.LevelError))
	if err != nil {
		t.Fatalf("New resolver: %v", err)
	}

	st, err := store.Open(filepath.Join(t.TempDir(), "store.db"), logging.NewRoot(logging.LevelError))
	if err != nil {
		t.Fatalf("Open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	registry := builder.New(logging.NewRoot(logging.LevelError))

	sched, err := New(Config{
		Resolver:  resolver,
		Store:     st,
		Builders:  registry,
		CacheRoot: cacheRoot,
		Workers:   2,
	}, logging.NewRoot(logging.LevelError))
	if err != nil {
		t.Fatalf("New scheduler: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go sched.Run(ctx)

	return sched, scanRoot, cacheRoot, st
}

func registerEchoBuilder(t *testing.T, registry *builder.Registry, cacheRoot string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	err := registry.Register(&builder.Recognizer{
		ID:           id,
		Name:         "echo",
		MatchPattern: "**/*.txt",
		PatternKind:  builder.PatternGlob,
		Version:      "v1",
		PlanJobs: func(req builder.PlanRequest) (builder.PlanResult, []builder.JobDescriptor) {
			return builder.PlanSuccess, []builder.JobDescriptor{{Platform: "any", JobKey: "main"}}
		},
		RunJob: func(req builder.RunRequest) (builder.RunResult, []builder.ProductPath) {
			out := filepath.Join(cacheRoot, "any", filepath.Base(req.SourcePath)+".out")
			if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
				return builder.RunFailed, nil
			}
			if err := os.WriteFile(out, []byte("built"), 0o644); err != nil {
				return builder.RunFailed, nil
			}
			rel := "any/" + filepath.Base(req.SourcePath) + ".out"
			return builder.RunSuccess, []builder.ProductPath{builder.ProductPath(rel)}
		},
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	return id
}

func TestAnalyzeSourceProducesProduct(t *testing.T) {
	sched, scanRoot, _, st := newTestScheduler(t)
	registerEchoBuilder(t, sched.cfg.Builders, sched.cfg.CacheRoot)

	src := filepath.Join(scanRoot, "a.txt")
	if err := os.WriteFile(src, []byte("hello"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	sched.AnalyzeSource("a.txt")

	deadline := time.Now().Add(2 * time.Second)
	for {
		fp, err := st.GetFingerprint(store.SourceKey{SourcePath: "a.txt", Platform: "any", JobKey: "main"})
		if err != nil {
			t.Fatalf("GetFingerprint: %v", err)
		}
		if !fp.Absent() {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for job to complete")
		}
		time.Sleep(10 * time.Millisecond)
	}

	products, known, err := st.GetProducts(store.SourceKey{SourcePath: "a.txt", Platform: "any", JobKey: "main"})
	if err != nil {
		t.Fatalf("GetProducts: %v", err)
	}
	if !known || len(products) != 1 {
		t.Fatalf("expected one recorded product, got known=%v products=%v", known, products)
	}
}

func TestRunJobHoldsExclusiveLockForItsDuration(t *testing.T) {
	sched, scanRoot, cacheRoot, _ := newTestScheduler(t)

	started := make(chan struct{})
	proceed := make(chan struct{})
	id := uuid.New()
	err := sched.cfg.Builders.Register(&builder.Recognizer{
		ID:                   id,
		Name:                 "exclusive",
		MatchPattern:         "**/*.txt",
		PatternKind:          builder.PatternGlob,
		TestForExclusiveLock: true,
		PlanJobs: func(req builder.PlanRequest) (builder.PlanResult, []builder.JobDescriptor) {
			return builder.PlanSuccess, []builder.JobDescriptor{{Platform: "any", JobKey: "main"}}
		},
		RunJob: func(req builder.RunRequest) (builder.RunResult, []builder.ProductPath) {
			close(started)
			<-proceed
			out := filepath.Join(cacheRoot, "any", filepath.Base(req.SourcePath)+".out")
			if err := os.WriteFile(out, []byte("built"), 0o644); err != nil {
				return builder.RunFailed, nil
			}
			return builder.RunSuccess, []builder.ProductPath{builder.ProductPath("any/" + filepath.Base(req.SourcePath) + ".out")}
		},
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	src := filepath.Join(scanRoot, "a.txt")
	if err := os.WriteFile(src, []byte("hello"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	sched.AnalyzeSource("a.txt")

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for job to start")
	}

	if matches := sched.cfg.Builders.MatchingBuilders("a.txt"); len(matches) != 0 {
		t.Fatalf("expected builder to be skipped while its job is in flight, got %v", matches)
	}

	close(proceed)

	deadline := time.Now().Add(2 * time.Second)
	for {
		if matches := sched.cfg.Builders.MatchingBuilders("a.txt"); len(matches) == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for exclusive lock to be released after job completion")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestFailPathTooLongRecordsFailedFingerprint(t *testing.T) {
	sched, _, _, st := newTestScheduler(t)
	sched.FailPathTooLong("deep/path.txt")

	fp, err := st.GetFingerprint(store.SourceKey{SourcePath: "deep/path.txt", Platform: ""})
	if err != nil {
		t.Fatalf("GetFingerprint: %v", err)
	}
	if !fp.Failed() {
		t.Fatalf("expected failed sentinel, got %v", fp)
	}
}
