// Package scheduler implements the Job Planner & Scheduler component (C6):
// per-source analysis (matching builders, missing-jobs reconciliation,
// fingerprint comparison, process/skip decisions) and per-SourceKey-exclusive
// dispatch of runnable jobs to a worker pool.
package scheduler

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/forgelabs/forge/pkg/builder"
	"github.com/forgelabs/forge/pkg/catalog"
	"github.com/forgelabs/forge/pkg/logging"
	"github.com/forgelabs/forge/pkg/pathresolver"
	"github.com/forgelabs/forge/pkg/store"
)

// Config carries the Scheduler's construction-time collaborators.
type Config struct {
	Resolver *pathresolver.Resolver
	Store    *store.Store
	Builders *builder.Registry
	// Catalogs maps platform name to that platform's Product Catalog (C7),
	// kept in sync with every successful job's product set.
	Catalogs map[string]*catalog.Catalog

	// GameName prefixes product paths; stripped when deriving an asset id
	// for the catalog, matching the RPC surface's own derivation rule.
	GameName string
	// CacheRoot is the absolute path to the product cache root.
	CacheRoot string
	// Platforms restricts job processing to this set if non-empty (the
	// command-line platform-subset restriction of §4.6 step 5b).
	Platforms map[string]struct{}
	// Workers is the worker pool size. Defaults to 4 if zero.
	Workers int
}

// Scheduler is the C6 Job Planner & Scheduler.
type Scheduler struct {
	cfg    Config
	logger *logging.Logger

	pool *workerPool

	inFlight *inFlightIndex

	nextJobID int64

	critical sync.WaitGroup
}

// New constructs a Scheduler. Call Run to start the worker pool; call
// AnalyzeSource to drive per-source analysis (typically invoked by the
// Change Pipeline).
func New(cfg Config, logger *logging.Logger) (*Scheduler, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}

	highest, err := cfg.Store.HighestJobID()
	if err != nil {
		return nil, fmt.Errorf("unable to seed job id counter: %w", err)
	}

	s := &Scheduler{
		cfg:       cfg,
		logger:    logger,
		inFlight:  newInFlightIndex(),
		nextJobID: highest,
	}
	s.pool = newWorkerPool(cfg.Workers)
	return s, nil
}

// Run starts the worker pool and blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.pool.Run(ctx)
}

// WaitForCriticalJobs blocks until every job enqueued so far for a critical
// builder has reached a terminal state, or ctx is cancelled. Callers use
// this at startup to gate serving the RPC surface until critical asset
// products (e.g. a manifest the game client cannot start without) are ready.
func (s *Scheduler) WaitForCriticalJobs(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.critical.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsProductInFlight reports whether relProduct falls under the destination
// directory of a currently running job (queued jobs are not consulted),
// consulted by the Change Pipeline before treating
// a cache-tree deletion as product loss.
func (s *Scheduler) IsProductInFlight(relProduct string) bool {
	return s.inFlight.hasProduct(relProduct)
}

// InFlightJobs returns the identity and lifecycle status of every job
// currently queued or in progress for relSource, for the RPC surface's
// job-info handler to merge with C2's historical records.
func (s *Scheduler) InFlightJobs(relSource string) []InFlightJob {
	statuses := s.inFlight.forSource(relSource)
	jobs := make([]InFlightJob, len(statuses))
	for i, st := range statuses {
		jobs[i] = InFlightJob{JobID: st.jobID, Source: st.key, BuilderID: st.builderID, Status: st.status}
	}
	return jobs
}

// InFlightJob is a currently tracked job's identity and lifecycle status.
type InFlightJob struct {
	JobID     int64
	Source    store.SourceKey
	BuilderID string
	Status    store.JobStatus
}

// IsIdle reports whether the scheduler's in-flight set (running and
// pending jobs) is empty, consulted by the Idle Detector (C9).
func (s *Scheduler) IsIdle() bool {
	return s.inFlight.idle()
}

// allocJobID returns the next monotonically increasing job id.
func (s *Scheduler) allocJobID() int64 {
	return atomic.AddInt64(&s.nextJobID, 1)
}

// destinationDir computes the cache-root-relative directory a job's products
// should land under: the source's directory, under the platform and,
// optionally, the scan folder's output prefix.
func destinationDir(relSource, platform, outputPrefix string) string {
	dir := path.Dir(relSource)
	if dir == "." {
		dir = ""
	}
	parts := []string{platform}
	if outputPrefix != "" {
		parts = append(parts, outputPrefix)
	}
	if dir != "" {
		parts = append(parts, dir)
	}
	return strings.Join(parts, "/")
}
