package wms

import (
	"context"
	"image"
	"image/color"
	"math"

	"github.com/aquilax/go-perlin"
	"github.com/disintegration/gift"

	"github.com/PlyoJay/wmsview/internal/geo"
)

// Synthetic renders deterministic placeholder tiles without any network
// access. The noise is sampled in geographic space so adjacent tiles
// join seamlessly; a light Gaussian blur softens the banding. Used by
// the render command when no endpoint is configured, and by tests that
// need a working fetcher.
type Synthetic struct {
	noise     *perlin.Perlin
	blurSigma float32
}

// NewSynthetic creates a synthetic fetcher with a deterministic seed.
func NewSynthetic(seed int64) *Synthetic {
	return &Synthetic{
		// alpha 2, beta 2, 3 octaves: same parameters as a coarse
		// terrain mask.
		noise:     perlin.NewPerlin(2.0, 2.0, 3, seed),
		blurSigma: 1.5,
	}
}

// Fetch renders the tile covering the given bounding box.
func (s *Synthetic) Fetch(ctx context.Context, start, end geo.GeoPoint, size geo.Size) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	gray := image.NewGray(image.Rect(0, 0, size.Width, size.Height))

	spanX := end.X() - start.X()
	spanY := end.Y() - start.Y()
	// Roughly 8 noise periods across a tile regardless of zoom.
	const frequency = 8.0

	for y := 0; y < size.Height; y++ {
		// Pixel rows run north to south, geographic Y south to north.
		gy := end.Y() - (float64(y)+0.5)/float64(size.Height)*spanY
		for x := 0; x < size.Width; x++ {
			gx := start.X() + (float64(x)+0.5)/float64(size.Width)*spanX

			v := s.noise.Noise2D(gx/spanX*frequency, gy/spanY*frequency)
			normalized := (v + 1.0) / 2.0
			gray.SetGray(x, y, color.Gray{Y: uint8(math.Max(0, math.Min(255, normalized*255)))})
		}
	}

	g := gift.New(gift.GaussianBlur(s.blurSigma))
	dst := image.NewNRGBA(g.Bounds(gray.Bounds()))
	g.Draw(dst, gray)

	return dst, nil
}
