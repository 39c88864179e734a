// Package surface provides a headless, image-backed implementation of
// the display surface the viewport manager draws on. It stands in for a
// GUI canvas in the render command and in tests.
package surface

import (
	"image"
	"sync"

	xdraw "golang.org/x/image/draw"

	"github.com/PlyoJay/wmsview/internal/geo"
	"github.com/PlyoJay/wmsview/internal/tilecache"
)

// ImageSurface composites attached tiles onto a viewport-sized NRGBA
// image. Attaching an already-attached tile just repositions it.
type ImageSurface struct {
	mu         sync.Mutex
	viewport   geo.Size
	tileSize   geo.Size
	placements map[*tilecache.Tile]geo.PixelPoint
	order      []*tilecache.Tile
}

// NewImageSurface creates a surface for the given viewport and tile
// pixel size.
func NewImageSurface(viewport, tileSize geo.Size) *ImageSurface {
	return &ImageSurface{
		viewport:   viewport,
		tileSize:   tileSize,
		placements: make(map[*tilecache.Tile]geo.PixelPoint),
	}
}

// Attach places a tile with its top-left corner at the given pixel
// position.
func (s *ImageSurface) Attach(t *tilecache.Tile, topLeft geo.PixelPoint) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.placements[t]; !ok {
		s.order = append(s.order, t)
	}
	s.placements[t] = topLeft
}

// Detach removes a tile from the surface. The tile itself stays alive
// in the cache.
func (s *ImageSurface) Detach(t *tilecache.Tile) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.placements[t]; !ok {
		return
	}
	delete(s.placements, t)
	for i, o := range s.order {
		if o == t {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Clear detaches every tile.
func (s *ImageSurface) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.placements = make(map[*tilecache.Tile]geo.PixelPoint)
	s.order = nil
}

// Count returns the number of attached tiles.
func (s *ImageSurface) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.placements)
}

// Render composites the attached tiles, in attach order, onto a fresh
// viewport image. Tiles are scaled to the configured tile pixel size
// with nearest-neighbor sampling.
func (s *ImageSurface) Render() *image.NRGBA {
	s.mu.Lock()
	defer s.mu.Unlock()

	dst := image.NewNRGBA(image.Rect(0, 0, s.viewport.Width, s.viewport.Height))

	for _, t := range s.order {
		pos := s.placements[t]
		rect := image.Rect(
			int(pos.X),
			int(pos.Y),
			int(pos.X)+s.tileSize.Width,
			int(pos.Y)+s.tileSize.Height,
		)
		xdraw.NearestNeighbor.Scale(dst, rect, t.Image, t.Image.Bounds(), xdraw.Over, nil)
	}

	return dst
}
