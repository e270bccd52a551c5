package scheduler

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/forgelabs/forge/pkg/builder"
	"github.com/forgelabs/forge/pkg/catalog"
	"github.com/forgelabs/forge/pkg/joblog"
	"github.com/forgelabs/forge/pkg/store"
)

// fileBusyRetryDelay is how long to wait before retrying the removal of a
// stale product whose first removal failed because the file was busy.
const fileBusyRetryDelay = 250 * time.Millisecond

// runJob executes descriptor's RunJob callback and applies its result to the
// store, then releases job's exclusive slot so the next queued job (if any)
// for the same SourceKey can start.
func (s *Scheduler) runJob(job *activeJob, sourceAbs string, rec *builder.Recognizer, descriptor builder.JobDescriptor, fingerprint store.Fingerprint) {
	if descriptor.Critical {
		s.critical.Add(1)
		defer s.critical.Done()
	}

	if rec.TestForExclusiveLock {
		s.cfg.Builders.SetLockHeld(rec.ID, true)
		defer s.cfg.Builders.SetLockHeld(rec.ID, false)
	}

	if err := s.cfg.Store.RecordJob(job.jobID, job.key, job.builderID, store.JobInProgress); err != nil {
		s.logger.Warnf("Unable to record in-progress job %d: %s", job.jobID, err.Error())
	}

	result, products := rec.RunJob(builder.RunRequest{
		SourcePath: sourceAbs,
		Platform:   descriptor.Platform,
		JobKey:     descriptor.JobKey,
		Params:     descriptor.Params,
	})

	switch result {
	case builder.RunSuccess:
		s.complete(job, fingerprint, products)
	case builder.RunFailed:
		s.fail(job, store.JobFailed)
	case builder.RunCrashed:
		s.fail(job, store.JobFailed)
	case builder.RunCancelled:
		s.fail(job, store.JobCancelled)
	}

	s.inFlight.finish(job)
}

// complete implements the "on success" branch of §4.6: reconcile the new
// product set against the old one, write the new fingerprint/products/job
// record in one transaction, and prune newly-empty cache directories.
func (s *Scheduler) complete(job *activeJob, fingerprint store.Fingerprint, fresh []builder.ProductPath) {
	previous, _, err := s.cfg.Store.GetProducts(job.key)
	if err != nil {
		s.logger.Warnf("Unable to load previous products for job %d: %s", job.jobID, err.Error())
	}

	freshSet := make(map[string]struct{}, len(fresh))
	var newEntries []store.ProductEntry
	for _, p := range fresh {
		freshSet[string(p)] = struct{}{}
		newEntries = append(newEntries, store.ProductEntry{RelPath: string(p)})
	}

	for _, p := range previous {
		if _, stillPresent := freshSet[p.RelPath]; stillPresent {
			continue
		}
		abs := destAbs(s.cfg.CacheRoot, p.RelPath)
		if err := s.removeWithBusyRetry(abs); err != nil {
			s.logger.Warnf("Unable to remove stale product %s: %s", p.RelPath, err.Error())
			continue
		}
		s.pruneEmptyDirs(filepath.Dir(filepath.FromSlash(abs)))
		s.removeFromCatalog(job.key.Platform, p.RelPath)
	}

	if err := s.cfg.Store.CompleteJob(job.key, fingerprint, newEntries, job.jobID, job.builderID); err != nil {
		s.logger.Warnf("Unable to complete job %d: %s", job.jobID, err.Error())
		return
	}

	for _, entry := range newEntries {
		s.publishToCatalog(job.key.Platform, entry)
	}

	s.writeLog(job, fmt.Sprintf("job %d completed: %d product(s)\n", job.jobID, len(newEntries)))
}

// publishToCatalog registers relEntry with platform's Product Catalog (C7),
// deriving its asset id the same way the RPC surface does: the product's
// relative path with the game-name segment stripped.
func (s *Scheduler) publishToCatalog(platform string, relEntry store.ProductEntry) {
	cat := s.cfg.Catalogs[platform]
	if cat == nil {
		return
	}
	abs := destAbs(s.cfg.CacheRoot, relEntry.RelPath)
	size := fileSize(abs)
	cat.Put(catalog.Entry{AssetID: s.assetID(relEntry.RelPath), RelPath: relEntry.RelPath, SizeBytes: size})
}

// removeFromCatalog removes relPath's entry from platform's Product Catalog.
func (s *Scheduler) removeFromCatalog(platform, relPath string) {
	cat := s.cfg.Catalogs[platform]
	if cat == nil {
		return
	}
	cat.Remove(s.assetID(relPath))
}

// assetID derives a product's catalog asset id by stripping the game-name
// segment, matching pkg/rpcsurface's own asset-id derivation rule.
func (s *Scheduler) assetID(relProduct string) string {
	if s.cfg.GameName == "" {
		return relProduct
	}
	return strings.TrimPrefix(relProduct, s.cfg.GameName+"/")
}

// fileSize stats abs for its size, returning 0 if it cannot be statted
// (e.g. a builder that reports a product path it didn't actually write).
func fileSize(abs string) int64 {
	info, err := os.Stat(filepath.FromSlash(abs))
	if err != nil {
		return 0
	}
	return info.Size()
}

// fail implements the "on failure / crash / cancelled" branch: the failed
// fingerprint sentinel is written so the next filesystem change retries the
// build, and prior products are left untouched.
func (s *Scheduler) fail(job *activeJob, status store.JobStatus) {
	if err := s.cfg.Store.SetFingerprint(job.key, store.FingerprintFailed); err != nil {
		s.logger.Warnf("Unable to write failed fingerprint for job %d: %s", job.jobID, err.Error())
	}
	if err := s.cfg.Store.RecordJob(job.jobID, job.key, job.builderID, status); err != nil {
		s.logger.Warnf("Unable to record %s job %d: %s", status, job.jobID, err.Error())
	}

	s.writeLog(job, fmt.Sprintf("job %d ended with status %s\n", job.jobID, status))
}

// writeLog records content as the job's per-job log, at the deterministic
// path the RPC surface's job-log handler recomputes from a JobRecord.
func (s *Scheduler) writeLog(job *activeJob, content string) {
	path := joblog.Path(s.cfg.CacheRoot, job.jobID, job.key.SourcePath, job.key.Platform, job.builderID, job.key.JobKey)
	if err := joblog.Write(path, []byte(content)); err != nil {
		s.logger.Warnf("Unable to write log for job %d: %s", job.jobID, err.Error())
	}
}

// FailPathTooLong synthesizes a failed job per enabled platform for a
// source whose path exceeds the platform maximum (§4.4).
func (s *Scheduler) FailPathTooLong(relpath string) {
	platforms := s.cfg.Platforms
	if len(platforms) == 0 {
		platforms = map[string]struct{}{"": {}}
	}
	for platform := range platforms {
		key := store.SourceKey{SourcePath: relpath, Platform: platform}
		if err := s.cfg.Store.SetFingerprint(key, store.FingerprintFailed); err != nil {
			s.logger.Warnf("Unable to mark %s as failed (path too long): %s", relpath, err.Error())
			continue
		}
		jobID := s.allocJobID()
		if err := s.cfg.Store.RecordJob(jobID, key, "", store.JobFailedPathTooLong); err != nil {
			s.logger.Warnf("Unable to record path-too-long job for %s: %s", relpath, err.Error())
		}
	}
}

// removeWithBusyRetry removes abs, retrying once after fileBusyRetryDelay if
// the operating system reports the file as busy during the commit step.
func (s *Scheduler) removeWithBusyRetry(abs string) error {
	err := os.Remove(filepath.FromSlash(abs))
	if err == nil || !isBusy(err) {
		return err
	}
	time.Sleep(fileBusyRetryDelay)
	return os.Remove(filepath.FromSlash(abs))
}

func isBusy(err error) bool {
	return strings.Contains(err.Error(), "busy") || strings.Contains(err.Error(), "in use")
}

// pruneEmptyDirs removes dir and any now-empty ancestor directories, up to
// (but not including) the cache root.
func (s *Scheduler) pruneEmptyDirs(dir string) {
	root := filepath.FromSlash(s.cfg.CacheRoot)
	for dir != root && dir != "." && dir != string(filepath.Separator) {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}
