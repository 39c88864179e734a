// Package tilecache keeps fetched tiles per zoom level so that panning
// back over already-visited ground never re-issues a network request.
package tilecache

import (
	"image"
	"sync"

	"github.com/PlyoJay/wmsview/internal/geo"
)

// Tile is a fetched, decoded map tile. The cache owns it once inserted;
// a Surface only holds a non-owning reference for display positioning.
type Tile struct {
	Key   string
	Start geo.GeoPoint
	End   geo.GeoPoint
	Image image.Image
}

// Cache maps zoom level -> tile key -> tile. Partitions are created
// lazily on first access to a zoom level; entries never expire or get
// evicted. Callers needing bounded memory must wrap the cache.
//
// A single mutex guards all partitions.
type Cache struct {
	mu     sync.Mutex
	levels map[int]map[string]*Tile
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{levels: make(map[int]map[string]*Tile)}
}

// Get returns the cached tile for (zoom, key) if present.
func (c *Cache) Get(zoom int, key string) (*Tile, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	partition, ok := c.levels[zoom]
	if !ok {
		return nil, false
	}
	t, ok := partition[key]
	return t, ok
}

// Put inserts or overwrites the tile for (zoom, key). Overwriting is
// legal and simply replaces the reference.
func (c *Cache) Put(zoom int, key string, t *Tile) {
	c.mu.Lock()
	defer c.mu.Unlock()

	partition, ok := c.levels[zoom]
	if !ok {
		partition = make(map[string]*Tile)
		c.levels[zoom] = partition
	}
	partition[key] = t
}

// Len returns the number of tiles cached for a zoom level.
func (c *Cache) Len(zoom int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.levels[zoom])
}
