package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// GetFingerprint returns the fingerprint for key, or FingerprintAbsent if
// none is recorded.
func (s *Store) GetFingerprint(key SourceKey) (Fingerprint, error) {
	var value uint32
	err := s.db.Get(&value,
		`SELECT fingerprint FROM fingerprints WHERE source_path = ? AND platform = ? AND job_key = ?`,
		key.SourcePath, key.Platform, key.JobKey,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return FingerprintAbsent, nil
	} else if err != nil {
		return FingerprintAbsent, fmt.Errorf("unable to query fingerprint: %w", err)
	}
	return Fingerprint(value), nil
}

// SetFingerprint upserts the fingerprint for key. Setting to
// FingerprintAbsent is a no-op if the key has no existing record, and
// behaves like ClearFingerprint if it does.
func (s *Store) SetFingerprint(key SourceKey, value Fingerprint) error {
	if value == FingerprintAbsent {
		existing, err := s.GetFingerprint(key)
		if err != nil {
			return err
		}
		if existing == FingerprintAbsent {
			return nil
		}
		return s.ClearFingerprint(key)
	}

	_, err := s.db.Exec(
		`INSERT INTO fingerprints (source_path, platform, job_key, fingerprint)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (source_path, platform, job_key)
		 DO UPDATE SET fingerprint = excluded.fingerprint`,
		key.SourcePath, key.Platform, key.JobKey, uint32(value),
	)
	if err != nil {
		return fmt.Errorf("unable to set fingerprint: %w", err)
	}
	return nil
}

// ClearFingerprint removes the fingerprint for key and cascades to remove
// all ProductEntries and JobRecords belonging to it, all inside one
// transaction.
func (s *Store) ClearFingerprint(key SourceKey) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("unable to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`DELETE FROM fingerprints WHERE source_path = ? AND platform = ? AND job_key = ?`,
		key.SourcePath, key.Platform, key.JobKey,
	); err != nil {
		return fmt.Errorf("unable to clear fingerprint: %w", err)
	}
	if _, err := tx.Exec(
		`DELETE FROM products WHERE source_path = ? AND platform = ? AND job_key = ?`,
		key.SourcePath, key.Platform, key.JobKey,
	); err != nil {
		return fmt.Errorf("unable to cascade-clear products: %w", err)
	}
	if _, err := tx.Exec(
		`DELETE FROM jobs WHERE source_path = ? AND platform = ? AND job_key = ?`,
		key.SourcePath, key.Platform, key.JobKey,
	); err != nil {
		return fmt.Errorf("unable to cascade-clear jobs: %w", err)
	}

	return tx.Commit()
}
