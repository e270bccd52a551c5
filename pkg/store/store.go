package store

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/forgelabs/forge/pkg/logging"
)

// likeEscape is the escape character used in LIKE patterns so that literal
// '%' and '_' in caller-provided strings are not treated as wildcards. It is
// not legal in any path this store handles (paths are normalized to forward
// slashes only), so it can't collide with real path content.
const likeEscape = `\`

// Store is the durable C2 fingerprint/product/job database, backed by a
// single SQLite file and accessed through sqlx for struct scanning.
type Store struct {
	db     *sqlx.DB
	logger *logging.Logger
}

// Open opens (creating if necessary) the store file at path and migrates its
// schema to the current version.
func Open(path string, logger *logging.Logger) (*Store, error) {
	db, err := sqlx.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("unable to open store: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to contact store: %w", err)
	}

	if err := migrate(db.DB); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to migrate store: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// escapeLikeOperand escapes '%', '_' and the escape character itself within a
// caller-provided string destined for a LIKE pattern.
func escapeLikeOperand(s string) string {
	replacer := strings.NewReplacer(
		likeEscape, likeEscape+likeEscape,
		"%", likeEscape+"%",
		"_", likeEscape+"_",
	)
	return replacer.Replace(s)
}
