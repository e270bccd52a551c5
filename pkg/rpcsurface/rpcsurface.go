// Package rpcsurface implements the RPC Surface component (C8): a typed
// handler table consuming opaque request values and returning typed
// responses. Only the job-info and job-log handlers are fenced; the asset-id,
// full-path, asset-exists and status handlers read the store unfenced.
package rpcsurface

import (
	"os"
	"path/filepath"

	"github.com/forgelabs/forge/pkg/catalog"
	"github.com/forgelabs/forge/pkg/fence"
	"github.com/forgelabs/forge/pkg/idle"
	"github.com/forgelabs/forge/pkg/logging"
	"github.com/forgelabs/forge/pkg/pathresolver"
	"github.com/forgelabs/forge/pkg/scheduler"
	"github.com/forgelabs/forge/pkg/store"
)

// Config carries the Server's construction-time collaborators.
type Config struct {
	Resolver  *pathresolver.Resolver
	Store     *store.Store
	Scheduler *scheduler.Scheduler
	Fence     *fence.Coordinator
	Catalogs  map[string]*catalog.Catalog // keyed by platform
	// Idle is consulted by the asset-exists handler to re-check a file it
	// initially reported missing, once the core reaches quiescence. May be
	// nil, in which case asset-exists never re-checks.
	Idle *idle.Detector

	CacheRoot       string
	GameName        string
	DefaultPlatform string
	// Platforms is the configured enabled-platform set, consulted by the
	// asset-exists handler ("looking up the input ... as a source with any
	// of its known platforms").
	Platforms []string
}

// Server is the C8 RPC Surface: a typed handler table over the rest of the
// core pipeline. It holds no transport of its own; the wire framing of the
// client RPC is an external collaborator (see DESIGN.md).
type Server struct {
	cfg    Config
	logger *logging.Logger
}

// New constructs a Server.
func New(cfg Config, logger *logging.Logger) *Server {
	return &Server{cfg: cfg, logger: logger}
}

func (s *Server) cacheRootPrefix() string {
	return trimSuffixSlash(s.cfg.Resolver.Normalize(s.cfg.CacheRoot)) + "/"
}

func trimSuffixSlash(p string) string {
	for len(p) > 0 && p[len(p)-1] == '/' {
		p = p[:len(p)-1]
	}
	return p
}

func fileExists(path string) bool {
	_, err := os.Stat(filepath.FromSlash(path))
	return err == nil
}
