package rpcsurface

import (
	"context"

	"github.com/forgelabs/forge/pkg/store"
)

// Status is the lightweight enumerated status returned by the status
// request handler.
type Status int

const (
	StatusUnknown Status = iota
	StatusQueued
	StatusInProgress
	StatusCompiled
	StatusMissing
)

// String implements fmt.Stringer for Status.
func (st Status) String() string {
	switch st {
	case StatusQueued:
		return "queued"
	case StatusInProgress:
		return "in-progress"
	case StatusCompiled:
		return "compiled"
	case StatusMissing:
		return "missing"
	default:
		return "unknown"
	}
}

// AssetExists implements the "asset exists" request: a boolean derived by
// looking up the input as a product, then as a source with any of its
// known (enabled) platforms. If the asset isn't found and an Idle Detector
// was configured, it waits for one idle transition (the core may simply
// not have caught up to the file yet) and re-checks exactly once before
// reporting it missing.
func (s *Server) AssetExists(ctx context.Context, path string) bool {
	if s.assetExistsOnce(path) {
		return true
	}
	if s.cfg.Idle == nil {
		return false
	}
	baseline, err := s.cfg.Idle.WaitForIdleEvent(ctx, 0)
	if err != nil {
		return false
	}
	if _, err := s.cfg.Idle.WaitForIdleEvent(ctx, baseline); err != nil {
		return false
	}
	return s.assetExistsOnce(path)
}

func (s *Server) assetExistsOnce(path string) bool {
	if _, ok, err := s.cfg.Store.SourceOfProduct(path); err == nil && ok {
		return true
	}

	rel := path
	if abs := s.cfg.Resolver.Normalize(path); abs != path {
		rel = abs
	}
	if r, _, ok := s.cfg.Resolver.ToRelative(rel); ok {
		rel = r
	}

	platforms := s.cfg.Platforms
	if len(platforms) == 0 && s.cfg.DefaultPlatform != "" {
		platforms = []string{s.cfg.DefaultPlatform}
	}
	for _, platform := range platforms {
		if _, known, err := s.cfg.Store.GetProducts(store.SourceKey{SourcePath: rel, Platform: platform}); err == nil && known {
			return true
		}
	}
	return false
}

// StatusRequest implements the lightweight status-request handler.
func (s *Server) StatusRequest(path string) Status {
	rel := path
	if r, _, ok := s.cfg.Resolver.ToRelative(s.cfg.Resolver.Normalize(path)); ok {
		rel = r
	}

	for _, job := range s.cfg.Scheduler.InFlightJobs(rel) {
		switch job.Status {
		case store.JobInProgress:
			return StatusInProgress
		case store.JobQueued:
			return StatusQueued
		}
	}

	platforms := s.cfg.Platforms
	if len(platforms) == 0 && s.cfg.DefaultPlatform != "" {
		platforms = []string{s.cfg.DefaultPlatform}
	}

	sawKnown := false
	for _, platform := range platforms {
		key := store.SourceKey{SourcePath: rel, Platform: platform}
		fp, err := s.cfg.Store.GetFingerprint(key)
		if err != nil || fp.Absent() {
			continue
		}
		sawKnown = true
		if fp.Failed() {
			return StatusMissing
		}
		products, known, err := s.cfg.Store.GetProducts(key)
		if err != nil || !known || len(products) == 0 {
			return StatusMissing
		}
		return StatusCompiled
	}
	if sawKnown {
		return StatusMissing
	}
	return StatusUnknown
}
