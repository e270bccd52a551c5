// Package catalog implements the Product Catalog component (C7): an
// in-memory registry of published products per platform, serialized to an
// on-disk XML catalog file on a background cadence.
package catalog

import (
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/forgelabs/forge/pkg/filesystem"
	"github.com/forgelabs/forge/pkg/logging"
	"github.com/forgelabs/forge/pkg/state"
)

// Entry is a single published asset: its relative product path and size.
type Entry struct {
	AssetID  string
	RelPath  string
	SizeBytes int64
}

// catalogFile is the on-disk XML schema for a single platform's catalog.
type catalogFile struct {
	XMLName xml.Name      `xml:"AssetCatalog"`
	Assets  []catalogItem `xml:"Asset"`
}

type catalogItem struct {
	ID       string `xml:"id,attr"`
	RelPath  string `xml:"path,attr"`
	SizeBytes int64 `xml:"size,attr"`
}

// serializeInterval is the background save cadence.
const serializeInterval = 2 * time.Second

// Catalog holds the published product map for a single platform and drains
// its dirty bit on a background cadence.
type Catalog struct {
	logger *logging.Logger
	path   string

	mu      sync.RWMutex
	assets  map[string]Entry
	dirty   bool

	versions *state.Tracker
	saveVersion uint64
}

// New constructs a Catalog that will be persisted to path.
func New(path string, logger *logging.Logger) *Catalog {
	return &Catalog{
		logger:   logger,
		path:     path,
		assets:   make(map[string]Entry),
		versions: state.NewTracker(),
	}
}

// Load reads the on-disk catalog file, if it exists, into memory.
func (c *Catalog) Load() error {
	data, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		return nil
	} else if err != nil {
		return fmt.Errorf("unable to read catalog: %w", err)
	}

	var parsed catalogFile
	if err := xml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("unable to parse catalog: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, item := range parsed.Assets {
		c.assets[item.ID] = Entry{AssetID: item.ID, RelPath: item.RelPath, SizeBytes: item.SizeBytes}
	}
	return nil
}

// Put registers or updates a product. It marks the catalog dirty and
// returns the save-version this change will be reflected in.
func (c *Catalog) Put(e Entry) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.assets[e.AssetID] = e
	c.dirty = true
	return c.saveVersion + 1
}

// Remove removes a product by asset id. It marks the catalog dirty and
// returns the save-version this change will be reflected in.
func (c *Catalog) Remove(assetID string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.assets, assetID)
	c.dirty = true
	return c.saveVersion + 1
}

// Lookup returns the entry for an asset id, if published.
func (c *Catalog) Lookup(assetID string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.assets[assetID]
	return e, ok
}

// WaitForVersion blocks until the catalog has been saved at or beyond the
// given version, or ctx is cancelled.
func (c *Catalog) WaitForVersion(ctx context.Context, version uint64) error {
	previous := uint64(0)
	for {
		c.mu.RLock()
		current := c.saveVersion
		c.mu.RUnlock()
		if current >= version {
			return nil
		}

		newIndex, err := c.versions.WaitForChange(ctx, previous)
		if err != nil {
			return err
		}
		previous = newIndex
	}
}

// Run drains the dirty bit on a background cadence until ctx is cancelled,
// atomically writing the catalog to a temp file and renaming it over the
// live file on every dirty save.
func (c *Catalog) Run(ctx context.Context) {
	ticker := time.NewTicker(serializeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.saveIfDirty(); err != nil {
				c.logger.Errorf("Unable to save catalog: %s", err.Error())
			}
		}
	}
}

func (c *Catalog) saveIfDirty() error {
	c.mu.Lock()
	if !c.dirty {
		c.mu.Unlock()
		return nil
	}
	items := make([]catalogItem, 0, len(c.assets))
	for _, e := range c.assets {
		items = append(items, catalogItem{ID: e.AssetID, RelPath: e.RelPath, SizeBytes: e.SizeBytes})
	}
	c.dirty = false
	c.saveVersion++
	c.mu.Unlock()

	data, err := xml.MarshalIndent(catalogFile{Assets: items}, "", "  ")
	if err != nil {
		return fmt.Errorf("unable to marshal catalog: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return fmt.Errorf("unable to create catalog directory: %w", err)
	}
	if err := filesystem.WriteFileAtomic(c.path, data, 0644, c.logger); err != nil {
		return fmt.Errorf("unable to write catalog: %w", err)
	}

	c.versions.NotifyOfChange()
	return nil
}
