// Package cache is the content-addressed artifact store. Entries are keyed
// solely by fingerprint and are immutable once committed; a changed
// parameter produces a new fingerprint, never an overwrite. GetOrBuild
// guarantees at most one build per fingerprint runs process-wide at a time.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Cryptokraken974/SHO-to-Z-sub005/internal/ctxlog"
	"github.com/Cryptokraken974/SHO-to-Z-sub005/internal/fingerprint"
	"github.com/Cryptokraken974/SHO-to-Z-sub005/internal/raster"
)

// BuildFunc materializes the artifact for a fingerprint on a cache miss.
type BuildFunc func(ctx context.Context) (*raster.Artifact, error)

// CacheError reports a storage-layer failure while persisting or reading an
// artifact. It is treated as a step failure, not a process failure.
type CacheError struct {
	Fingerprint string
	Err         error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("cache: artifact %s: %v", e.Fingerprint, e.Err)
}

func (e *CacheError) Unwrap() error { return e.Err }

// Cache holds committed artifacts in memory and, when configured with a
// directory, mirrors them to disk so a restarted process serves prior work.
// Retention is unbounded; eviction can be layered on without changing the
// contract.
type Cache struct {
	dir   string
	group singleflight.Group

	mu  sync.RWMutex
	mem map[fingerprint.Fingerprint]*raster.Artifact
}

// New creates a cache. dir may be empty for a memory-only cache.
func New(dir string) (*Cache, error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("cache: creating %s: %w", dir, err)
		}
	}
	return &Cache{dir: dir, mem: make(map[fingerprint.Fingerprint]*raster.Artifact)}, nil
}

// GetOrBuild returns the artifact for fp, building it at most once no
// matter how many callers arrive concurrently. Every caller for an
// in-flight fingerprint blocks on the same build and receives its result,
// success or failure. hit reports whether the artifact came from the cache
// rather than this build.
func (c *Cache) GetOrBuild(ctx context.Context, fp fingerprint.Fingerprint, build BuildFunc) (a *raster.Artifact, hit bool, err error) {
	if a, ok := c.lookup(fp); ok {
		return a, true, nil
	}

	built := false
	v, err, _ := c.group.Do(string(fp), func() (any, error) {
		// Re-check under the flight: a previous caller may have committed
		// between our lookup and joining the group.
		if a, ok := c.lookup(fp); ok {
			return a, nil
		}
		built = true
		a, err := build(ctx)
		if err != nil {
			return nil, err
		}
		a.Fingerprint = string(fp)
		if a.CreatedAt.IsZero() {
			a.CreatedAt = time.Now().UTC()
		}
		if err := c.commit(ctx, fp, a); err != nil {
			return nil, err
		}
		return a, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.(*raster.Artifact), !built, nil
}

// Get returns a committed artifact without building.
func (c *Cache) Get(fp fingerprint.Fingerprint) (*raster.Artifact, bool) {
	return c.lookup(fp)
}

// Meta returns the sidecar metadata for a committed artifact.
func (c *Cache) Meta(fp fingerprint.Fingerprint) (raster.Meta, bool) {
	a, ok := c.lookup(fp)
	if !ok {
		return raster.Meta{}, false
	}
	return raster.MetaOf(a), true
}

// Len returns the number of artifacts currently held in memory.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.mem)
}

func (c *Cache) lookup(fp fingerprint.Fingerprint) (*raster.Artifact, bool) {
	c.mu.RLock()
	a, ok := c.mem[fp]
	c.mu.RUnlock()
	if ok {
		return a, true
	}
	if c.dir == "" {
		return nil, false
	}
	a, err := c.readDisk(fp)
	if err != nil {
		return nil, false
	}
	c.mu.Lock()
	c.mem[fp] = a
	c.mu.Unlock()
	return a, true
}

// commit stores the artifact in memory and on disk. The grid file lands via
// temp-file-plus-rename so a crash never leaves a half-written entry under
// its final name.
func (c *Cache) commit(ctx context.Context, fp fingerprint.Fingerprint, a *raster.Artifact) error {
	if c.dir != "" {
		if err := c.writeDisk(a); err != nil {
			return &CacheError{Fingerprint: string(fp), Err: err}
		}
		ctxlog.FromContext(ctx).Debug("Artifact persisted.", "fingerprint", fp, "kind", a.Kind)
	}
	c.mu.Lock()
	c.mem[fp] = a
	c.mu.Unlock()
	return nil
}

func (c *Cache) entryDir(fp fingerprint.Fingerprint) string {
	s := string(fp)
	return filepath.Join(c.dir, s[:2], s)
}

func (c *Cache) writeDisk(a *raster.Artifact) error {
	dir := c.entryDir(fingerprint.Fingerprint(a.Fingerprint))
	if _, err := os.Stat(filepath.Join(dir, "meta.json")); err == nil {
		// Already committed by an earlier process; entries are immutable.
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "grid-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := raster.WriteASC(tmp, a.Grid); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, "grid.asc")); err != nil {
		return err
	}

	meta, err := json.MarshalIndent(raster.MetaOf(a), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "meta.json"), meta, 0o644)
}

func (c *Cache) readDisk(fp fingerprint.Fingerprint) (*raster.Artifact, error) {
	dir := c.entryDir(fp)
	metaRaw, err := os.ReadFile(filepath.Join(dir, "meta.json"))
	if err != nil {
		return nil, err
	}
	var meta raster.Meta
	if err := json.Unmarshal(metaRaw, &meta); err != nil {
		return nil, &CacheError{Fingerprint: string(fp), Err: err}
	}

	f, err := os.Open(filepath.Join(dir, "grid.asc"))
	if err != nil {
		return nil, &CacheError{Fingerprint: string(fp), Err: err}
	}
	defer f.Close()
	grid, err := raster.ReadASC(f, meta.Geo.CRS)
	if err != nil {
		return nil, &CacheError{Fingerprint: string(fp), Err: err}
	}
	grid.Geo = meta.Geo

	return &raster.Artifact{
		Fingerprint: meta.Fingerprint,
		Kind:        meta.Kind,
		CreatedAt:   meta.CreatedAt,
		Grid:        grid,
	}, nil
}
