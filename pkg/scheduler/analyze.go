package scheduler

import (
	"os"

	"github.com/forgelabs/forge/pkg/builder"
	"github.com/forgelabs/forge/pkg/store"
)

// plannedJob pairs a builder's recognizer with one job descriptor it
// emitted during planning.
type plannedJob struct {
	rec        *builder.Recognizer
	descriptor builder.JobDescriptor
}

// AnalyzeSource runs the per-source analysis of §4.6 for relpath: it asks
// every matching builder to plan jobs, reconciles the result against the
// last-known job set, and enqueues whatever descriptors need (re)processing.
func (s *Scheduler) AnalyzeSource(relpath string) {
	sourceAbs, ok := s.cfg.Resolver.FindActiveSource(relpath)
	if !ok {
		s.logger.Debugf("Source no longer exists, skipping analysis: %s", relpath)
		return
	}

	recognizers := s.cfg.Builders.MatchingBuilders(relpath)

	var all []plannedJob

	for _, rec := range recognizers {
		result, descriptors := rec.PlanJobs(builder.PlanRequest{SourcePath: sourceAbs})
		switch result {
		case builder.PlanSuccess:
			for _, d := range descriptors {
				all = append(all, plannedJob{rec: rec, descriptor: d})
			}
		case builder.PlanFailed:
			s.logger.Warnf("Builder %q failed to plan jobs for %s", rec.Name, relpath)
		case builder.PlanShuttingDown:
			s.logger.Debugf("Builder %q is shutting down, aborting analysis of %s", rec.Name, relpath)
			return
		}
	}

	s.reconcile(relpath, all)

	notified := false
	for _, p := range all {
		s.processDescriptor(relpath, sourceAbs, p.rec, p.descriptor, &notified)
	}
}

// reconcile implements the "missing jobs" step of §4.6: any latest=true
// JobRecord for relpath whose (builder, jobKey) no longer appears in the
// freshly planned set has its products deleted and its fingerprint cleared.
func (s *Scheduler) reconcile(relpath string, planned []plannedJob) {
	existing, err := s.cfg.Store.JobsForSource(relpath)
	if err != nil {
		s.logger.Warnf("Unable to load prior jobs for %s: %s", relpath, err.Error())
		return
	}

	stillPlanned := make(map[string]struct{}, len(planned))
	for _, p := range planned {
		stillPlanned[p.rec.ID.String()+"\x00"+p.descriptor.Platform+"\x00"+p.descriptor.JobKey] = struct{}{}
	}

	for _, rec := range existing {
		fold := rec.BuilderID + "\x00" + rec.Source.Platform + "\x00" + rec.Source.JobKey
		if _, ok := stillPlanned[fold]; ok {
			continue
		}
		if err := s.cfg.Store.ClearFingerprint(rec.Source); err != nil {
			s.logger.Warnf("Unable to clear stale job record for %s: %s", relpath, err.Error())
		}
	}
}

// processDescriptor implements §4.6 steps 5a-5d for a single planned
// descriptor.
func (s *Scheduler) processDescriptor(relpath, sourceAbs string, rec *builder.Recognizer, descriptor builder.JobDescriptor, sourceChangedNotified *bool) {
	if len(s.cfg.Platforms) > 0 {
		if _, enabled := s.cfg.Platforms[descriptor.Platform]; !enabled {
			return
		}
	}

	key := store.SourceKey{SourcePath: relpath, Platform: descriptor.Platform, JobKey: descriptor.JobKey}

	metaAbs, hasMeta := s.cfg.Resolver.MetadataPath(sourceAbs)
	fingerprint, err := computeFingerprint(sourceAbs, metaAbs, hasMeta, rec, descriptor)
	if err != nil {
		s.logger.Warnf("Unable to compute fingerprint for %s: %s", relpath, err.Error())
		return
	}

	stored, err := s.cfg.Store.GetFingerprint(key)
	if err != nil {
		s.logger.Warnf("Unable to read stored fingerprint for %s: %s", relpath, err.Error())
		return
	}

	products, known, err := s.cfg.Store.GetProducts(key)
	if err != nil {
		s.logger.Warnf("Unable to read stored products for %s: %s", relpath, err.Error())
		return
	}

	needsProcessing := stored.Failed() || stored != fingerprint || !known
	if !needsProcessing {
		for _, p := range products {
			if _, err := os.Stat(destAbs(s.cfg.CacheRoot, p.RelPath)); err != nil {
				needsProcessing = true
				break
			}
		}
	}
	if !needsProcessing {
		return
	}

	if !*sourceChangedNotified {
		s.logger.Infof("Source file changed: %s", relpath)
		*sourceChangedNotified = true
	}

	jobID := s.allocJobID()
	destDir := destinationDir(relpath, descriptor.Platform, "")

	if err := s.cfg.Store.RecordJob(jobID, key, rec.ID.String(), store.JobQueued); err != nil {
		s.logger.Warnf("Unable to record queued job for %s: %s", relpath, err.Error())
		return
	}

	job := &activeJob{jobID: jobID, key: key, builderID: rec.ID.String(), destDir: destDir}

	s.inFlight.submit(job, func() {
		s.pool.Submit(func() {
			s.runJob(job, sourceAbs, rec, descriptor, fingerprint)
		})
	})
}

func destAbs(cacheRoot, relProduct string) string {
	return cacheRoot + "/" + relProduct
}
