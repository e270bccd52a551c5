package store

import "fmt"

// CompleteJob implements §4.6's "on success" write: the new fingerprint, the
// replaced product list, and a completed JobRecord all land inside a single
// transaction, so a crash between any two of these writes is impossible —
// either the whole completion is durable or none of it is.
func (s *Store) CompleteJob(key SourceKey, fingerprint Fingerprint, products []ProductEntry, jobID int64, builderID string) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("unable to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO fingerprints (source_path, platform, job_key, fingerprint)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (source_path, platform, job_key)
		 DO UPDATE SET fingerprint = excluded.fingerprint`,
		key.SourcePath, key.Platform, key.JobKey, uint32(fingerprint),
	); err != nil {
		return fmt.Errorf("unable to set fingerprint: %w", err)
	}

	if _, err := tx.Exec(
		`DELETE FROM products WHERE source_path = ? AND platform = ? AND job_key = ?`,
		key.SourcePath, key.Platform, key.JobKey,
	); err != nil {
		return fmt.Errorf("unable to clear previous products: %w", err)
	}
	for _, p := range products {
		if _, err := tx.Exec(
			`INSERT INTO products (source_path, platform, job_key, product_path) VALUES (?, ?, ?, ?)`,
			key.SourcePath, key.Platform, key.JobKey, p.RelPath,
		); err != nil {
			return fmt.Errorf("unable to insert product: %w", err)
		}
	}

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
		jobID, key.SourcePath, key.Platform, key.JobKey, builderID, string(JobCompleted),
	); err != nil {
		return fmt.Errorf("unable to insert job record: %w", err)
	}

	return tx.Commit()
}
