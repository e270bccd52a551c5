// Package idle implements the Idle Detector component (C9): it polls the
// Change Pipeline's queues and the Scheduler's in-flight set, and on every
// transition to idle broadcasts an event and (on the first such transition
// since startup) runs store compaction.
//
// Grounded on the shape of the teacher's housekeeping loop (a ticker-driven
// background routine with a single responsibility), adapted here from "run
// on a fixed interval" to "run once per idle transition, plus a recurring
// poll."
package idle

import (
	"context"
	"time"

	"github.com/forgelabs/forge/pkg/logging"
	"github.com/forgelabs/forge/pkg/state"
	"github.com/forgelabs/forge/pkg/store"
)

// pollInterval is how often idleness is re-checked.
const pollInterval = 250 * time.Millisecond

// PipelineProbe reports whether the Change Pipeline has no pending work.
type PipelineProbe interface {
	IsIdle() bool
}

// SchedulerProbe reports whether the Scheduler has no in-flight jobs.
type SchedulerProbe interface {
	IsIdle() bool
}

// Detector is the C9 Idle Detector.
type Detector struct {
	logger    *logging.Logger
	pipeline  PipelineProbe
	scheduler SchedulerProbe
	store     *store.Store

	events *state.Tracker

	wasIdle       bool
	compactedOnce bool
}

// New constructs a Detector over the given pipeline and scheduler probes.
func New(pipeline PipelineProbe, scheduler SchedulerProbe, st *store.Store, logger *logging.Logger) *Detector {
	return &Detector{
		logger:    logger,
		pipeline:  pipeline,
		scheduler: scheduler,
		store:     st,
		events:    state.NewTracker(),
	}
}

// Run polls idleness on pollInterval until ctx is cancelled.
func (d *Detector) Run(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.check()
		}
	}
}

func (d *Detector) check() {
	idle := d.pipeline.IsIdle() && d.scheduler.IsIdle()
	if !idle {
		d.wasIdle = false
		return
	}
	if d.wasIdle {
		// Already idle as of the last poll; only the transition broadcasts.
		return
	}
	d.wasIdle = true

	if !d.compactedOnce {
		d.compactedOnce = true
		if err := d.store.Compact(); err != nil {
			d.logger.Warnf("Unable to compact store on first idle transition: %s", err.Error())
		}
	}

	d.events.NotifyOfChange()
}

// WaitForIdleEvent blocks until an idle transition has occurred since
// previousIndex (0 returns immediately), or ctx is cancelled, returning the
// observed index for the next call. The RPC `asset exists` handler uses
// this to re-check files it previously reported missing.
func (d *Detector) WaitForIdleEvent(ctx context.Context, previousIndex uint64) (uint64, error) {
	return d.events.WaitForChange(ctx, previousIndex)
}
