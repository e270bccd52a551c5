package rpcsurface

import (
	"path/filepath"
	"strings"

	"github.com/forgelabs/forge/pkg/store"
)

// AssetIDForPath implements §4.8's asset-id derivation rules. It is never
// fenced: asset-id derivation only inspects path shape and, at most, the
// currently-published product list, which does not require ordering behind
// in-flight filesystem events.
func (s *Server) AssetIDForPath(path string) (string, bool) {
	norm := s.cfg.Resolver.Normalize(path)

	if !filepath.IsAbs(filepath.FromSlash(norm)) {
		return path, true
	}

	if id, ok := s.assetIDFromCachePath(norm); ok {
		return id, true
	}
	if id, ok := s.assetIDFromSourcePath(norm); ok {
		return id, true
	}
	return path, false
}

// assetIDFromCachePath strips the cache root prefix, the platform segment,
// and (if present) the game-name segment from an absolute cache path.
func (s *Server) assetIDFromCachePath(abs string) (string, bool) {
	prefix := s.cacheRootPrefix()
	if !strings.HasPrefix(abs, prefix) {
		return "", false
	}
	rel := strings.TrimPrefix(abs, prefix)
	parts := strings.SplitN(rel, "/", 2)
	if len(parts) != 2 {
		return "", false
	}
	return s.stripGameName(parts[1]), true
}

// assetIDFromSourcePath resolves abs as a scan-folder path, follows any
// override, and returns the first product's asset id for the default
// platform, falling back to the resolved relative source path if the
// source has no recorded products yet.
func (s *Server) assetIDFromSourcePath(abs string) (string, bool) {
	rel, folder, ok := s.cfg.Resolver.ToRelative(abs)
	if !ok {
		return "", false
	}

	if override, found := s.cfg.Resolver.FindOverride(rel, folder); found {
		if orel, _, ok2 := s.cfg.Resolver.ToRelative(override); ok2 {
			rel = orel
		}
	}

	key := store.SourceKey{SourcePath: rel, Platform: s.cfg.DefaultPlatform}
	products, known, err := s.cfg.Store.GetProducts(key)
	if err == nil && known && len(products) > 0 {
		return s.stripGameName(products[0].RelPath), true
	}
	return rel, true
}

func (s *Server) stripGameName(rel string) string {
	if s.cfg.GameName == "" {
		return rel
	}
	return strings.TrimPrefix(rel, s.cfg.GameName+"/")
}

// FullPathForAssetID implements §4.8's full-path derivation: the inverse of
// asset-id derivation, tried as a product, then as a source name, then as a
// literal path.
func (s *Server) FullPathForAssetID(assetID string) (string, bool) {
	if abs, ok := s.fullPathFromProduct(assetID); ok {
		return abs, true
	}
	if abs, ok := s.cfg.Resolver.FindActiveSource(assetID); ok {
		return abs, true
	}
	if fileExists(assetID) {
		return assetID, true
	}
	return assetID, false
}

func (s *Server) fullPathFromProduct(assetID string) (string, bool) {
	candidates := []string{assetID}
	if s.cfg.GameName != "" {
		candidates = append(candidates, s.cfg.GameName+"/"+assetID)
	}
	for _, candidate := range candidates {
		key, ok, err := s.cfg.Store.SourceOfProduct(candidate)
		if err == nil && ok {
			return s.cacheRootPrefix() + key.Platform + "/" + candidate, true
		}
	}
	return "", false
}
