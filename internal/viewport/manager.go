// Package viewport orchestrates tile planning, caching and fetching for
// a pannable, zoomable map view.
package viewport

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/PlyoJay/wmsview/internal/geo"
	"github.com/PlyoJay/wmsview/internal/grid"
	"github.com/PlyoJay/wmsview/internal/tilecache"
)

// Fetcher retrieves and decodes the tile covering a geographic bounding
// box. Both the WMS client and the synthetic fetcher satisfy this.
type Fetcher interface {
	Fetch(ctx context.Context, start, end geo.GeoPoint, size geo.Size) (image.Image, error)
}

// Surface is the display collaborator tiles are placed on. Implementers
// must tolerate calls from concurrent fetch completions.
type Surface interface {
	Attach(t *tilecache.Tile, topLeft geo.PixelPoint)
	Detach(t *tilecache.Tile)
	Clear()
}

// Config configures a Manager.
type Config struct {
	// Scale is the zoom table (default: geo.DefaultDegPerTile).
	Scale geo.Scale
	// Viewport is the canvas size in pixels.
	Viewport geo.Size
	// TileSize is the fixed square tile size in pixels (default 1024).
	TileSize geo.Size
	// GridRadius controls the planned grid: (2r+1) tiles per side
	// (default 1, the 3x3 grid).
	GridRadius int
	// Center and Zoom are the initial view state.
	Center geo.GeoPoint
	Zoom   int
	// Logger for fetch diagnostics.
	Logger *slog.Logger
}

// Stats counts fetch outcomes since the manager was created. Failures
// are diagnostics only; they never abort a refresh pass.
type Stats struct {
	Completed int64
	Failed    int64
}

// Manager owns the view state and runs refresh passes: plan the grid,
// reuse cache hits, fetch misses concurrently, and place tiles on the
// surface as they arrive. At most one fetch is in flight per
// (zoom, key) across the whole process; a refresh pass that needs a
// tile another pass is already fetching joins that fetch instead of
// issuing a duplicate request.
type Manager struct {
	cfg     Config
	fetcher Fetcher
	surface Surface
	cache   *tilecache.Cache
	planner grid.Planner
	log     *slog.Logger

	mu   sync.Mutex // guards view and surface mutation ordering
	view ViewState

	inflight  singleflight.Group
	completed atomic.Int64
	failed    atomic.Int64
}

// New creates a manager. fetcher and surf must be non-nil.
func New(fetcher Fetcher, surf Surface, cfg Config) *Manager {
	if cfg.Scale.Levels() == 0 {
		cfg.Scale = geo.NewScale(nil)
	}
	if cfg.TileSize.Width == 0 || cfg.TileSize.Height == 0 {
		cfg.TileSize = geo.Size{Width: 1024, Height: 1024}
	}
	if cfg.GridRadius < 1 {
		cfg.GridRadius = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Manager{
		cfg:     cfg,
		fetcher: fetcher,
		surface: surf,
		cache:   tilecache.New(),
		planner: grid.NewPlanner(cfg.Scale, cfg.GridRadius),
		log:     cfg.Logger,
		view: ViewState{
			Center: cfg.Center,
			Zoom:   cfg.Scale.Clamp(cfg.Zoom),
		},
	}
}

// View returns a snapshot of the current view state.
func (m *Manager) View() ViewState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view
}

// Stats returns fetch counters.
func (m *Manager) Stats() Stats {
	return Stats{
		Completed: m.completed.Load(),
		Failed:    m.failed.Load(),
	}
}

// Cache exposes the tile cache (shared across refresh passes).
func (m *Manager) Cache() *tilecache.Cache {
	return m.cache
}

// PanBy accumulates a visual-only pan delta. The tile plan is
// unaffected until the gesture ends with CommitPan.
func (m *Manager) PanBy(delta geo.PixelPoint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.view.PanOffset.X += delta.X
	m.view.PanOffset.Y += delta.Y
}

// CommitPan resolves the accumulated pixel offset back into a new
// geographic center, zeroes the offset and refreshes. The inverse
// transform expects pan-adjusted pixel space, so the active offset is
// un-applied here before calling it.
func (m *Manager) CommitPan(ctx context.Context) {
	m.mu.Lock()
	d := m.cfg.Scale.DegPerTile(m.view.Zoom)
	logical := geo.PixelPoint{
		X: float64(m.cfg.Viewport.Width)/2 - m.view.PanOffset.X,
		Y: float64(m.cfg.Viewport.Height)/2 - m.view.PanOffset.Y,
	}
	newCenter := geo.ToGeo(logical, m.view.Center, d, m.cfg.Viewport, m.cfg.TileSize)
	m.view.PanOffset = geo.PixelPoint{}
	m.mu.Unlock()

	m.refreshAt(ctx, newCenter)
}

// ZoomTo changes the zoom level, holding the geographic point at the
// viewport center fixed. The level is clamped to the valid range; if
// that leaves it unchanged the call is a no-op, with no refresh and no
// state change.
func (m *Manager) ZoomTo(ctx context.Context, level int) {
	m.mu.Lock()
	level = m.cfg.Scale.Clamp(level)
	if level == m.view.Zoom {
		m.mu.Unlock()
		return
	}

	// The fixed point is computed at the old zoom level, before the
	// change takes effect.
	d := m.cfg.Scale.DegPerTile(m.view.Zoom)
	logical := geo.PixelPoint{
		X: float64(m.cfg.Viewport.Width)/2 - m.view.PanOffset.X,
		Y: float64(m.cfg.Viewport.Height)/2 - m.view.PanOffset.Y,
	}
	fixed := geo.ToGeo(logical, m.view.Center, d, m.cfg.Viewport, m.cfg.TileSize)

	m.view.Zoom = level
	m.view.PanOffset = geo.PixelPoint{}
	m.mu.Unlock()

	m.refreshAt(ctx, fixed)
}

// ZoomIn steps one level toward higher resolution.
func (m *Manager) ZoomIn(ctx context.Context) {
	m.ZoomTo(ctx, m.View().Zoom-1)
}

// ZoomOut steps one level toward lower resolution.
func (m *Manager) ZoomOut(ctx context.Context) {
	m.ZoomTo(ctx, m.View().Zoom+1)
}

// Refresh re-plans the grid around the current center and repopulates
// the surface.
func (m *Manager) Refresh(ctx context.Context) {
	m.refreshAt(ctx, m.View().Center)
}

type plannedTile struct {
	spec grid.TileSpec
	pos  geo.PixelPoint
}

// refreshAt runs one refresh pass centered on the requested position.
// Cache hits are reattached synchronously in planner order; misses are
// fetched concurrently and attached as each fetch resolves. Individual
// fetch failures are logged and skipped. The requested center is
// committed once the pass completes, regardless of tile failures.
func (m *Manager) refreshAt(ctx context.Context, center geo.GeoPoint) {
	m.mu.Lock()
	zoom := m.view.Zoom
	d := m.cfg.Scale.DegPerTile(zoom)

	m.surface.Clear()
	specs := m.planner.Plan(center, zoom)

	var misses []plannedTile
	for _, spec := range specs {
		pos := geo.ToCanvas(spec.Center(d), center, d, m.cfg.Viewport, m.cfg.TileSize)
		if t, ok := m.cache.Get(zoom, spec.Key); ok {
			m.surface.Attach(t, m.topLeft(pos))
			continue
		}
		misses = append(misses, plannedTile{spec: spec, pos: pos})
	}
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, pt := range misses {
		wg.Add(1)
		go func(pt plannedTile) {
			defer wg.Done()

			t, err := m.fetchTile(ctx, zoom, pt.spec)
			if err != nil {
				return
			}

			m.mu.Lock()
			m.surface.Attach(t, m.topLeft(pt.pos))
			m.mu.Unlock()
		}(pt)
	}
	wg.Wait()

	m.mu.Lock()
	m.view.Center = center
	m.mu.Unlock()
}

// fetchTile fetches one tile, installing it into the cache on success.
// Concurrent requests for the same (zoom, key) collapse onto a single
// network call.
func (m *Manager) fetchTile(ctx context.Context, zoom int, spec grid.TileSpec) (*tilecache.Tile, error) {
	flightKey := fmt.Sprintf("%d/%s", zoom, spec.Key)

	v, err, _ := m.inflight.Do(flightKey, func() (interface{}, error) {
		// A pass we joined behind may have installed the tile already.
		if t, ok := m.cache.Get(zoom, spec.Key); ok {
			return t, nil
		}

		start := time.Now()
		img, err := m.fetcher.Fetch(ctx, spec.Start, spec.End, m.cfg.TileSize)
		elapsed := time.Since(start)

		if err != nil {
			m.failed.Add(1)
			m.log.Warn("tile fetch failed",
				"key", spec.Key,
				"zoom", zoom,
				"duration_ms", elapsed.Milliseconds(),
				"error", err,
			)
			return nil, err
		}

		t := &tilecache.Tile{
			Key:   spec.Key,
			Start: spec.Start,
			End:   spec.End,
			Image: img,
		}
		m.cache.Put(zoom, spec.Key, t)

		m.completed.Add(1)
		m.log.Debug("tile fetched",
			"key", spec.Key,
			"zoom", zoom,
			"duration_ms", elapsed.Milliseconds(),
		)
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*tilecache.Tile), nil
}

// topLeft converts a tile's center canvas position to its floor-rounded
// top-left placement. Tiles are always square and axis-aligned.
func (m *Manager) topLeft(center geo.PixelPoint) geo.PixelPoint {
	return geo.PixelPoint{
		X: math.Floor(center.X - float64(m.cfg.TileSize.Width)/2),
		Y: math.Floor(center.Y - float64(m.cfg.TileSize.Height)/2),
	}
}
