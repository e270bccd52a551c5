// Package forged wires the core pipeline's components (C1-C9) together into
// a single running daemon, by analogy to the teacher's
// pkg/synchronization Manager binding a session's controller, endpoints, and
// state tracker into one cohesive unit.
package forged

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/forgelabs/forge/pkg/builder"
	"github.com/forgelabs/forge/pkg/catalog"
	"github.com/forgelabs/forge/pkg/changepipeline"
	"github.com/forgelabs/forge/pkg/config"
	"github.com/forgelabs/forge/pkg/fence"
	"github.com/forgelabs/forge/pkg/idle"
	"github.com/forgelabs/forge/pkg/logging"
	"github.com/forgelabs/forge/pkg/pathresolver"
	"github.com/forgelabs/forge/pkg/rpcsurface"
	"github.com/forgelabs/forge/pkg/scheduler"
	"github.com/forgelabs/forge/pkg/store"
)

// fenceDirName is the cache-root-relative directory used for fence sentinel
// files, kept out of any platform's product tree.
const fenceDirName = ".fence"

// catalogFileName is the on-disk name of a platform's serialized Product
// Catalog, per §6's on-disk layout.
const catalogFileName = "assetcatalog.xml"

// Daemon binds the core pipeline's components into one runnable unit.
//
// Builder registration is the caller's responsibility: this repo ships no
// concrete builders (the spec's own non-goal), so New takes an
// already-populated *builder.Registry rather than loading builder manifests
// from disk itself. Config.Builders is not loaded into the registry; its
// paths are only watched as restart triggers by cmd/forge.
type Daemon struct {
	cfg    config.Configuration
	logger *logging.Logger

	Resolver  *pathresolver.Resolver
	Store     *store.Store
	Fence     *fence.Coordinator
	Builders  *builder.Registry
	Catalogs  map[string]*catalog.Catalog
	Scheduler *scheduler.Scheduler
	Pipeline  *changepipeline.Pipeline
	Idle      *idle.Detector
	RPC       *rpcsurface.Server
}

// New constructs a Daemon from cfg and a pre-populated builder registry. It
// opens the durable store and loads any existing per-platform catalogs, but
// does not start any background loop; call Run for that.
func New(cfg config.Configuration, registry *builder.Registry, logger *logging.Logger) (*Daemon, error) {
	scanFolders := make([]pathresolver.ScanFolder, len(cfg.ScanFolders))
	watchRoots := make([]string, 0, len(cfg.ScanFolders)+2)
	for i, sf := range cfg.ScanFolders {
		scanFolders[i] = pathresolver.ScanFolder{
			Root:         sf.Root,
			OutputPrefix: sf.OutputPrefix,
			Recursive:    sf.Recursive,
			Order:        sf.Order,
		}
		watchRoots = append(watchRoots, sf.Root)
	}

	resolver, err := pathresolver.New(pathresolver.Config{
		ScanFolders:      scanFolders,
		ExcludePatterns:  cfg.ExcludePatterns,
		MetadataSuffixes: cfg.MetadataSuffixes,
	}, logger.Sublogger("pathresolver"))
	if err != nil {
		return nil, fmt.Errorf("unable to construct path resolver: %w", err)
	}

	st, err := store.Open(cfg.StorePath, logger.Sublogger("store"))
	if err != nil {
		return nil, fmt.Errorf("unable to open store: %w", err)
	}

	fenceDir := filepath.ToSlash(filepath.Join(cfg.CacheRoot, fenceDirName))
	fenceCoordinator := fence.New(fenceDir, logger.Sublogger("fence"))
	watchRoots = append(watchRoots, cfg.CacheRoot, fenceDir)

	platforms := make(map[string]struct{}, len(cfg.Platforms))
	catalogs := make(map[string]*catalog.Catalog, len(cfg.Platforms))
	for _, platform := range cfg.Platforms {
		platforms[platform] = struct{}{}
		path := filepath.ToSlash(filepath.Join(cfg.CacheRoot, platform, cfg.GameName, catalogFileName))
		cat := catalog.New(path, logger.Sublogger("catalog-"+platform))
		if err := cat.Load(); err != nil {
			st.Close()
			return nil, fmt.Errorf("unable to load %s catalog: %w", platform, err)
		}
		catalogs[platform] = cat
	}

	sched, err := scheduler.New(scheduler.Config{
		Resolver:  resolver,
		Store:     st,
		Builders:  registry,
		Catalogs:  catalogs,
		GameName:  cfg.GameName,
		CacheRoot: cfg.CacheRoot,
		Platforms: platforms,
		Workers:   cfg.Workers,
	}, logger.Sublogger("scheduler"))
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("unable to construct scheduler: %w", err)
	}

	pipeline, err := changepipeline.New(changepipeline.Config{
		Resolver:      resolver,
		Store:         st,
		Fence:         fenceCoordinator,
		Scheduler:     sched,
		CacheRoot:     cfg.CacheRoot,
		MaxPathLength: cfg.MaxPathLength,
		WatchRoots:    watchRoots,
	}, logger.Sublogger("changepipeline"))
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("unable to construct change pipeline: %w", err)
	}

	idleDetector := idle.New(pipeline, sched, st, logger.Sublogger("idle"))

	platformList := make([]string, len(cfg.Platforms))
	copy(platformList, cfg.Platforms)
	defaultPlatform := ""
	if len(platformList) > 0 {
		defaultPlatform = platformList[0]
	}

	rpc := rpcsurface.New(rpcsurface.Config{
		Resolver:        resolver,
		Store:           st,
		Scheduler:       sched,
		Fence:           fenceCoordinator,
		Catalogs:        catalogs,
		Idle:            idleDetector,
		CacheRoot:       cfg.CacheRoot,
		GameName:        cfg.GameName,
		DefaultPlatform: defaultPlatform,
		Platforms:       platformList,
	}, logger.Sublogger("rpcsurface"))

	return &Daemon{
		cfg:       cfg,
		logger:    logger,
		Resolver:  resolver,
		Store:     st,
		Fence:     fenceCoordinator,
		Builders:  registry,
		Catalogs:  catalogs,
		Scheduler: sched,
		Pipeline:  pipeline,
		Idle:      idleDetector,
		RPC:       rpc,
	}, nil
}

// Run starts every background loop (scheduler worker pool, change pipeline,
// per-platform catalog serializers, idle detector) and blocks until ctx is
// cancelled.
func (d *Daemon) Run(ctx context.Context) {
	go d.Scheduler.Run(ctx)
	go d.Pipeline.Run(ctx)
	go d.Idle.Run(ctx)
	for _, cat := range d.Catalogs {
		go cat.Run(ctx)
	}
	<-ctx.Done()
}

// Close releases the daemon's durable resources. Call after Run returns.
func (d *Daemon) Close() error {
	return d.Store.Close()
}
