package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// GetProducts returns the product list for key. The boolean return
// distinguishes "known source with zero products" (true, empty slice) from
// "unknown source" (false, nil).
func (s *Store) GetProducts(key SourceKey) ([]ProductEntry, bool, error) {
	fp, err := s.GetFingerprint(key)
	if err != nil {
		return nil, false, err
	}
	if fp.Absent() {
		return nil, false, nil
	}

	var paths []string
	err = s.db.Select(&paths,
		`SELECT product_path FROM products WHERE source_path = ? AND platform = ? AND job_key = ? ORDER BY product_path`,
		key.SourcePath, key.Platform, key.JobKey,
	)
	if err != nil {
		return nil, false, fmt.Errorf("unable to query products: %w", err)
	}

	entries := make([]ProductEntry, len(paths))
	for i, p := range paths {
		entries[i] = ProductEntry{RelPath: p}
	}
	return entries, true, nil
}

// SetProducts atomically replaces the product list for key. It rejects the
// call (no partial writes) if key has no fingerprint yet.
func (s *Store) SetProducts(key SourceKey, products []ProductEntry) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("unable to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var fingerprint uint32
	err = tx.Get(&fingerprint,
		`SELECT fingerprint FROM fingerprints WHERE source_path = ? AND platform = ? AND job_key = ?`,
		key.SourcePath, key.Platform, key.JobKey,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("source key has no fingerprint")
	} else if err != nil {
		return fmt.Errorf("unable to check fingerprint: %w", err)
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

	return tx.Commit()
}

// ClearProducts empties the product list for key while keeping the
// SourceKey's fingerprint intact.
func (s *Store) ClearProducts(key SourceKey) error {
	_, err := s.db.Exec(
		`DELETE FROM products WHERE source_path = ? AND platform = ? AND job_key = ?`,
		key.SourcePath, key.Platform, key.JobKey,
	)
	if err != nil {
		return fmt.Errorf("unable to clear products: %w", err)
	}
	return nil
}

// SourceOfProduct performs the reverse lookup from a product's relative
// path to its owning SourceKey.
func (s *Store) SourceOfProduct(relProduct string) (SourceKey, bool, error) {
	var row struct {
		SourcePath string `db:"source_path"`
		Platform   string `db:"platform"`
		JobKey     string `db:"job_key"`
	}
	err := s.db.Get(&row,
		`SELECT source_path, platform, job_key FROM products WHERE product_path = ?`,
		relProduct,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return SourceKey{}, false, nil
	} else if err != nil {
		return SourceKey{}, false, fmt.Errorf("unable to query reverse product lookup: %w", err)
	}
	return SourceKey{SourcePath: row.SourcePath, Platform: row.Platform, JobKey: row.JobKey}, true, nil
}

// FindProductsByPrefix returns every product path beginning with prefix. The
// prefix is escaped so that literal '%' and '_' characters are not treated
// as LIKE wildcards.
func (s *Store) FindProductsByPrefix(prefix string) ([]string, error) {
	var paths []string
	pattern := escapeLikeOperand(prefix) + "%"
	err := s.db.Select(&paths,
		`SELECT DISTINCT product_path FROM products WHERE product_path LIKE ? ESCAPE '\' ORDER BY product_path`,
		pattern,
	)
	if err != nil {
		return nil, fmt.Errorf("unable to query products by prefix: %w", err)
	}
	return paths, nil
}

// FindSourcesByPrefix returns every distinct source path beginning with
// prefix, similarly escaped against LIKE metacharacters.
func (s *Store) FindSourcesByPrefix(prefix string) ([]string, error) {
	var paths []string
	pattern := escapeLikeOperand(prefix) + "%"
	err := s.db.Select(&paths,
		`SELECT DISTINCT source_path FROM fingerprints WHERE source_path LIKE ? ESCAPE '\' ORDER BY source_path`,
		pattern,
	)
	if err != nil {
		return nil, fmt.Errorf("unable to query sources by prefix: %w", err)
	}
	return paths, nil
}
