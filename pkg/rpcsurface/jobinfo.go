package rpcsurface

import (
	"context"

	"github.com/forgelabs/forge/pkg/identifier"
	"github.com/forgelabs/forge/pkg/joblog"
	"github.com/forgelabs/forge/pkg/scheduler"
	"github.com/forgelabs/forge/pkg/store"
)

// requestCorrelationID returns a short, loggable id for tagging a single
// fenced request across its warning lines, falling back to a fixed
// placeholder on the exceedingly unlikely event that generation fails.
func requestCorrelationID() string {
	if id, err := identifier.New(identifier.PrefixRequest); err == nil {
		return id
	}
	return identifier.PrefixRequest + "_unavailable"
}

// JobInfoForSource implements the fenced "job info for source path" request:
// the merged list of in-memory queued/in-progress jobs and historical
// latest JobRecords from C2.
func (s *Server) JobInfoForSource(ctx context.Context, source string) ([]store.JobRecord, bool) {
	if !s.cfg.Fence.Wait(ctx) {
		s.logger.Warnf("[%s] Fencing failed for job-info request on %s; serving with degraded correctness", requestCorrelationID(), source)
	}

	records, err := s.cfg.Store.JobsForSource(source)
	if err != nil {
		s.logger.Warnf("Unable to load job records for %s: %s", source, err.Error())
		return nil, false
	}

	return mergeInFlight(records, s.cfg.Scheduler.InFlightJobs(source)), true
}

// mergeInFlight overlays the in-memory scheduler state onto the store's
// historical records, so a job that is mid-flight (and whose store write
// may not have landed yet) is still reported accurately.
func mergeInFlight(records []store.JobRecord, inFlight []scheduler.InFlightJob) []store.JobRecord {
	byID := make(map[int64]int, len(records))
	for i, r := range records {
		byID[r.JobID] = i
	}

	for _, job := range inFlight {
		if i, ok := byID[job.JobID]; ok {
			records[i].Status = job.Status
			continue
		}
		records = append(records, store.JobRecord{
			JobID:     job.JobID,
			Source:    job.Source,
			BuilderID: job.BuilderID,
			Status:    job.Status,
			Latest:    true,
		})
	}
	return records
}

// JobLogForID implements the fenced "job log for job id" request: the
// contents of the per-job log file, or a specific error string if the job
// failed due to path length (no log file was ever written for it).
func (s *Server) JobLogForID(ctx context.Context, jobID int64) (string, bool) {
	if !s.cfg.Fence.Wait(ctx) {
		s.logger.Warnf("[%s] Fencing failed for job-log request on job %d; serving with degraded correctness", requestCorrelationID(), jobID)
	}

	record, found, err := s.cfg.Store.JobByID(jobID)
	if err != nil || !found {
		return "", false
	}

	if record.Status == store.JobFailedPathTooLong {
		return "build skipped: source path exceeds the platform's maximum path length", true
	}

	path := joblog.Path(s.cfg.CacheRoot, record.JobID, record.Source.SourcePath, record.Source.Platform, record.BuilderID, record.Source.JobKey)
	data, err := joblog.Read(path)
	if err != nil {
		return "", false
	}
	return string(data), true
}
