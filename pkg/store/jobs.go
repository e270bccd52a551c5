package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// jobRow mirrors the jobs table layout for sqlx struct scanning.
type jobRow struct {
	JobID      int64  `db:"job_id"`
	SourcePath string `db:"source_path"`
	Platform   string `db:"platform"`
	JobKey     string `db:"job_key"`
	BuilderID  string `db:"builder_id"`
	Status     string `db:"status"`
	Latest     bool   `db:"latest"`
}

func (r jobRow) toRecord() JobRecord {
	return JobRecord{
		JobID:     r.JobID,
		Source:    SourceKey{SourcePath: r.SourcePath, Platform: r.Platform, JobKey: r.JobKey},
		BuilderID: r.BuilderID,
		Status:    JobStatus(r.Status),
		Latest:    r.Latest,
	}
}

// JobDescriptionsFor returns every distinct job key recorded for the given
// (source, platform) pair.
func (s *Store) JobDescriptionsFor(source, platform string) ([]string, error) {
	var keys []string
	err := s.db.Select(&keys,
		`SELECT DISTINCT job_key FROM jobs WHERE source_path = ? AND platform = ?`,
		source, platform,
	)
	if err != nil {
		return nil, fmt.Errorf("unable to query job descriptions: %w", err)
	}
	return keys, nil
}

// RecordJob writes a new JobRecord and, in the same transaction, clears the
// latest bit on any prior record matching (source, platform, builder, job
// key).
func (s *Store) RecordJob(jobID int64, key SourceKey, builderID string, status JobStatus) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("unable to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`UPDATE jobs SET latest = 0
		 WHERE source_path = ? AND platform = ? AND builder_id = ? AND job_key = ?`,
		key.SourcePath, key.Platform, builderID, key.JobKey,
	); err != nil {
		return fmt.Errorf("unable to clear prior latest flag: %w", err)
	}

	if _, err := tx.Exec(
		`INSERT INTO jobs (job_id, source_path, platform, job_key, builder_id, status, latest)
		 VALUES (?, ?, ?, ?, ?, ?, 1)`,
		jobID, key.SourcePath, key.Platform, key.JobKey, builderID, string(status),
	); err != nil {
		return fmt.Errorf("unable to insert job record: %w", err)
	}

	return tx.Commit()
}

// JobsForSource returns every latest=true JobRecord for the given source
// path, across all platforms and builders.
func (s *Store) JobsForSource(source string) ([]JobRecord, error) {
	var rows []jobRow
	err := s.db.Select(&rows,
		`SELECT job_id, source_path, platform, job_key, builder_id, status, latest
		 FROM jobs WHERE source_path = ? AND latest = 1`,
		source,
	)
	if err != nil {
		return nil, fmt.Errorf("unable to query jobs for source: %w", err)
	}
	records := make([]JobRecord, len(rows))
	for i, r := range rows {
		records[i] = r.toRecord()
	}
	return records, nil
}

// JobByID looks up a single JobRecord by its monotonic id.
func (s *Store) JobByID(jobID int64) (JobRecord, bool, error) {
	var row jobRow
	err := s.db.Get(&row,
		`SELECT job_id, source_path, platform, job_key, builder_id, status, latest
		 FROM jobs WHERE job_id = ?`,
		jobID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return JobRecord{}, false, nil
	} else if err != nil {
		return JobRecord{}, false, fmt.Errorf("unable to query job by id: %w", err)
	}
	return row.toRecord(), true, nil
}

// HighestJobID returns the largest job id ever recorded, or -1 if the jobs
// table is empty. This is used to seed the monotonic job id counter on
// restart. The source system's equivalent query returns the boolean literal
// false cast to a 64-bit integer as an error sentinel; this store returns an
// explicit -1 instead (see DESIGN.md).
func (s *Store) HighestJobID() (int64, error) {
	var max sql.NullInt64
	err := s.db.Get(&max, `SELECT MAX(job_id) FROM jobs`)
	if err != nil {
		return -1, fmt.Errorf("unable to query highest job id: %w", err)
	}
	if !max.Valid {
		return -1, nil
	}
	return max.Int64, nil
}

// Compact reclaims space and refreshes the query planner's statistics.
func (s *Store) Compact() error {
	if _, err := s.db.Exec(`ANALYZE`); err != nil {
		return fmt.Errorf("unable to analyze store: %w", err)
	}
	if _, err := s.db.Exec(`VACUUM`); err != nil {
		return fmt.Errorf("unable to vacuum store: %w", err)
	}
	return nil
}
