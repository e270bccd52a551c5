// Package pathresolver implements the Path Resolver component (C1): path
// normalization, absolute/relative mapping across a set of layered scan
// folders, override precedence, exclusion, and metadata-suffix rewriting.
package pathresolver

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/forgelabs/forge/pkg/logging"
)

// ScanFolder is a configured root directory that contributes sources.
type ScanFolder struct {
	// Root is the absolute root path of the scan folder.
	Root string
	// OutputPrefix is prepended to product paths derived from sources in
	// this scan folder (the game-name segment, for non-root folders).
	OutputPrefix string
	// Recursive indicates whether files deeper than immediate children are
	// considered part of this scan folder.
	Recursive bool
	// Order is the override precedence; lower values win.
	Order int

	// registrationIndex breaks order ties by registration order.
	registrationIndex int
}

// Resolver implements C1 over a fixed set of scan folders and excludes.
type Resolver struct {
	logger *logging.Logger

	// folders is kept sorted ascending by (Order, registrationIndex).
	folders []ScanFolder

	excludes *ExcludeSet

	// metadataSuffixes maps a registered metadata file suffix (e.g.
	// ".meta") to nothing; presence in the map means the suffix is
	// recognized.
	metadataSuffixes map[string]struct{}
}

// Config carries the construction-time parameters for a Resolver.
type Config struct {
	ScanFolders      []ScanFolder
	ExcludePatterns  []string
	MetadataSuffixes []string
}

// New constructs a Resolver from the given configuration.
func New(cfg Config, logger *logging.Logger) (*Resolver, error) {
	excludes, err := NewExcludeSet(cfg.ExcludePatterns)
	if err != nil {
		return nil, err
	}

	folders := make([]ScanFolder, len(cfg.ScanFolders))
	copy(folders, cfg.ScanFolders)
	for i := range folders {
		folders[i].Root = normalize(folders[i].Root)
		folders[i].registrationIndex = i
	}
	sort.SliceStable(folders, func(i, j int) bool {
		if folders[i].Order != folders[j].Order {
			return folders[i].Order < folders[j].Order
		}
		return folders[i].registrationIndex < folders[j].registrationIndex
	})

	suffixes := make(map[string]struct{}, len(cfg.MetadataSuffixes))
	for _, s := range cfg.MetadataSuffixes {
		suffixes[s] = struct{}{}
	}

	return &Resolver{
		logger:           logger,
		folders:          folders,
		excludes:         excludes,
		metadataSuffixes: suffixes,
	}, nil
}

// normalize canonicalizes a path: forward slashes only, no ".." collapsing,
// no case change.
func normalize(path string) string {
	return strings.ReplaceAll(path, "\\", "/")
}

// Normalize implements the normalize(path) operation.
func (r *Resolver) Normalize(path string) string {
	return normalize(path)
}

// ToRelative finds the scan folder that the given absolute path lives in and
// returns the folder-relative path. Non-recursive folders reject any path
// deeper than their immediate children.
func (r *Resolver) ToRelative(abs string) (relpath string, folder ScanFolder, ok bool) {
	abs = normalize(abs)
	for _, f := range r.folders {
		rel, inside := relativeTo(f.Root, abs)
		if !inside {
			continue
		}
		if !f.Recursive && strings.Contains(rel, "/") {
			continue
		}
		return rel, f, true
	}
	return "", ScanFolder{}, false
}

// relativeTo returns the path of abs relative to root, if abs lives under
// root.
func relativeTo(root, abs string) (string, bool) {
	root = strings.TrimSuffix(root, "/")
	if abs == root {
		return "", true
	}
	prefix := root + "/"
	if !strings.HasPrefix(abs, prefix) {
		return "", false
	}
	return strings.TrimPrefix(abs, prefix), true
}

// FindActiveSource walks scan folders in ascending precedence order and
// returns the first absolute path that exists on disk for the given relative
// path.
func (r *Resolver) FindActiveSource(relpath string) (string, bool) {
	for _, f := range r.folders {
		if !f.Recursive && strings.Contains(relpath, "/") {
			continue
		}
		candidate := joinRel(f.Root, relpath)
		if fileExists(candidate) {
			return candidate, true
		}
	}
	return "", false
}

// higherPrecedence reports whether a has strictly higher precedence than b
// (lower Order wins; ties broken by registration order).
func higherPrecedence(a, b ScanFolder) bool {
	if a.Order != b.Order {
		return a.Order < b.Order
	}
	return a.registrationIndex < b.registrationIndex
}

// FindOverride returns a higher-precedence file that shadows relpath as
// resolved under owning, or none if no such override exists. r.folders is
// kept sorted ascending by precedence, so the first match found among
// strictly-higher-precedence folders is the active override.
func (r *Resolver) FindOverride(relpath string, owning ScanFolder) (string, bool) {
	for _, f := range r.folders {
		if !higherPrecedence(f, owning) {
			continue
		}
		if !f.Recursive && strings.Contains(relpath, "/") {
			continue
		}
		candidate := joinRel(f.Root, relpath)
		if fileExists(candidate) {
			return candidate, true
		}
	}
	return "", false
}

// IsExcluded applies the exclude-pattern list to an absolute path, matching
// against the path relative to whichever scan folder it lives in (or the raw
// path if it is not inside any folder).
func (r *Resolver) IsExcluded(abs string) bool {
	rel, _, ok := r.ToRelative(abs)
	if !ok {
		rel = normalize(abs)
	}
	return r.excludes.Excluded(rel)
}

// MetadataResolve rewrites a metadata-suffixed path to its underlying source
// file, using the directory's actual on-disk casing. It reports false if the
// path does not carry a registered metadata suffix, and returns an error if
// the suffix is registered but the underlying file is missing.
func (r *Resolver) MetadataResolve(path string) (resolved string, isMetadata bool, err error) {
	for suffix := range r.metadataSuffixes {
		if strings.HasSuffix(path, suffix) {
			underlying := strings.TrimSuffix(path, suffix)
			actual, findErr := findActualCasing(underlying)
			if findErr != nil {
				return "", true, findErr
			}
			return actual, true, nil
		}
	}
	return path, false, nil
}

// findActualCasing resolves the on-disk casing of a path's containing
// directory entry so that downstream case-insensitive comparisons behave
// consistently across hosts.
func findActualCasing(path string) (string, error) {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	for _, entry := range entries {
		if strings.EqualFold(entry.Name(), base) {
			return filepath.Join(dir, entry.Name()), nil
		}
	}
	return "", os.ErrNotExist
}

// MetadataPath returns the path of the registered metadata file sitting
// alongside sourceAbs, if one exists on disk, for use in fingerprint
// computation (§3's "metadata-file contents if any").
func (r *Resolver) MetadataPath(sourceAbs string) (string, bool) {
	for suffix := range r.metadataSuffixes {
		candidate := sourceAbs + suffix
		if fileExists(candidate) {
			return candidate, true
		}
	}
	return "", false
}

func joinRel(root, relpath string) string {
	if relpath == "" {
		return root
	}
	return root + "/" + relpath
}

func fileExists(path string) bool {
	_, err := os.Stat(filepath.FromSlash(path))
	return err == nil
}
