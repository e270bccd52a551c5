// Package changepipeline implements the Change Pipeline component (C4): it
// ingests raw file events from an external watcher, coalesces them,
// classifies each as excluded / metadata alias / cache-tree / source-tree,
// and dispatches the classified result to the scheduler (C6) or fence
// coordinator (C3).
package changepipeline

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/forgelabs/forge/pkg/fence"
	"github.com/forgelabs/forge/pkg/logging"
	"github.com/forgelabs/forge/pkg/pathresolver"
	"github.com/forgelabs/forge/pkg/store"
)

// maxBatchSize bounds how many coalesced events are drained per scheduling
// turn, keeping the pipeline responsive to cancellation.
const maxBatchSize = 256

// Scheduler is the subset of the Job Planner & Scheduler (C6) that the
// Change Pipeline drives directly.
type Scheduler interface {
	// AnalyzeSource enqueues a coalesced source-tree change for analysis.
	AnalyzeSource(relpath string)
	// IsProductInFlight reports whether a product path is currently being
	// written by a running job, so its deletion can be treated as an
	// expected intermediate delete rather than product loss.
	IsProductInFlight(relProduct string) bool
	// FailPathTooLong synthesizes one failed job per enabled platform for a
	// source whose path exceeds the platform maximum.
	FailPathTooLong(relpath string)
}

// Config carries the Pipeline's construction-time collaborators.
type Config struct {
	Resolver  *pathresolver.Resolver
	Store     *store.Store
	Fence     *fence.Coordinator
	Scheduler Scheduler

	// CacheRoot is the absolute path to the product cache root.
	CacheRoot string
	// MaxPathLength is the platform path length ceiling (§4.4). Zero
	// disables the check.
	MaxPathLength int
	// WatchRoots are the absolute roots to recursively watch: every scan
	// folder root plus the cache root and fence directory.
	WatchRoots []string
}

// Pipeline is the C4 Change Pipeline.
type Pipeline struct {
	cfg    Config
	logger *logging.Logger

	watcher   *watcher
	coalescer *coalescer
}

// New constructs a Pipeline. Call Run to start watching and draining.
func New(cfg Config, logger *logging.Logger) (*Pipeline, error) {
	w, err := newWatcher(logger)
	if err != nil {
		return nil, err
	}
	for _, root := range cfg.WatchRoots {
		if err := addRecursiveWatch(w, root); err != nil {
			logger.Warnf("Unable to watch %s: %s", root, err.Error())
		}
	}

	return &Pipeline{
		cfg:       cfg,
		logger:    logger,
		watcher:   w,
		coalescer: newCoalescer(),
	}, nil
}

// Run starts the watcher's translation loop and drains coalesced events in
// batches until ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context) {
	go p.watcher.run(p.coalescer)

	out := p.coalescer.Out()
	for {
		// Block for at least one event (or cancellation), then greedily
		// drain up to maxBatchSize more without blocking, so the pipeline
		// stays responsive to cancellation between batches.
		select {
		case ev := <-out:
			p.classify(ev)
		case <-ctx.Done():
			p.coalescer.Close()
			p.watcher.Close()
			return
		}

		for drained := 1; drained < maxBatchSize; drained++ {
			select {
			case ev := <-out:
				p.classify(ev)
			case <-ctx.Done():
				p.coalescer.Close()
				p.watcher.Close()
				return
			default:
				drained = maxBatchSize
			}
		}
	}
}

// IsIdle reports whether the pipeline's active-file and to-examine queues
// (the coalescer's pending set and its output buffer) are both empty,
// consulted by the Idle Detector (C9).
func (p *Pipeline) IsIdle() bool {
	return p.coalescer.idle()
}

// classify dispatches a coalesced event to the cache-tree or source-tree
// classifier, after excluded/metadata-alias handling.
func (p *Pipeline) classify(ev RawEvent) {
	path := filepath.ToSlash(ev.Path)

	if strings.HasPrefix(path, p.cacheRootPrefix()) {
		p.classifyCache(strings.TrimPrefix(path, p.cacheRootPrefix()), ev.Kind)
		return
	}

	if p.cfg.Resolver.IsExcluded(path) {
		return
	}

	if resolved, isMeta, err := p.cfg.Resolver.MetadataResolve(path); err != nil {
		p.logger.Warnf("Metadata alias for %s dropped: %s", path, err.Error())
		return
	} else if isMeta {
		path = resolved
	}

	p.classifySource(path, ev.Kind)
}

func (p *Pipeline) cacheRootPrefix() string {
	return strings.TrimSuffix(filepath.ToSlash(p.cfg.CacheRoot), "/") + "/"
}

// classifySource implements the "in source tree" branch of §4.4.
func (p *Pipeline) classifySource(path string, kind EventKind) {
	relpath, folder, ok := p.cfg.Resolver.ToRelative(path)
	if !ok {
		p.logger.Debugf("Path not under any scan folder: %s", path)
		return
	}

	if p.cfg.MaxPathLength > 0 && len(path) > p.cfg.MaxPathLength {
		p.cfg.Scheduler.FailPathTooLong(relpath)
		return
	}

	switch kind {
	case EventDeleted:
		if p.isDirectoryPrefix(relpath) {
			sources, err := p.cfg.Store.FindSourcesByPrefix(relpath + "/")
			if err != nil {
				p.logger.Warnf("Unable to enumerate sources under %s: %s", relpath, err.Error())
				return
			}
			for _, src := range sources {
				p.cfg.Scheduler.AnalyzeSource(src)
			}
			return
		}

		if override, ok := p.cfg.Resolver.FindOverride(relpath, folder); ok {
			revealedRel, _, ok := p.cfg.Resolver.ToRelative(override)
			if ok && revealedRel != relpath {
				p.cfg.Scheduler.AnalyzeSource(revealedRel)
				return
			}
		}
		p.cfg.Scheduler.AnalyzeSource(relpath)
	case EventAdded, EventModified:
		p.cfg.Scheduler.AnalyzeSource(relpath)
	}
}

// isDirectoryPrefix reports whether relpath was (as best we can tell from
// the store) a directory rather than a single source file, by checking
// whether any recorded source begins with relpath as a path prefix.
func (p *Pipeline) isDirectoryPrefix(relpath string) bool {
	sources, err := p.cfg.Store.FindSourcesByPrefix(relpath + "/")
	if err != nil {
		return false
	}
	return len(sources) > 0
}

// classifyCache implements the "in cache tree" branch of §4.4.
func (p *Pipeline) classifyCache(relToCache string, kind EventKind) {
	if filepath.Ext(relToCache) == fence.FenceExtension {
		if kind == EventDeleted {
			if id, ok := fence.ParseSentinelID(relToCache); ok {
				p.cfg.Fence.Satisfy(id)
			}
		}
		return
	}

	if kind != EventDeleted {
		// Products are written by builders, never by external editors; only
		// deletions in the cache tree carry meaning for this pipeline.
		return
	}

	products, err := p.cfg.Store.FindProductsByPrefix(relToCache + "/")
	if err == nil && len(products) > 0 {
		for _, product := range products {
			p.classifyProductDeletion(product)
		}
		return
	}

	p.classifyProductDeletion(relToCache)
}

// classifyProductDeletion handles the deletion of a single product path.
func (p *Pipeline) classifyProductDeletion(relProduct string) {
	if p.cfg.Scheduler.IsProductInFlight(relProduct) {
		return
	}

	key, ok, err := p.cfg.Store.SourceOfProduct(relProduct)
	if err != nil {
		p.logger.Warnf("Unable to resolve source of deleted product %s: %s", relProduct, err.Error())
		return
	}
	if !ok {
		return
	}

	if err := p.cfg.Store.SetFingerprint(key, store.FingerprintFailed); err != nil {
		p.logger.Warnf("Unable to mark %s as needing rebuild: %s", key.SourcePath, err.Error())
		return
	}
	p.cfg.Scheduler.AnalyzeSource(key.SourcePath)
}
