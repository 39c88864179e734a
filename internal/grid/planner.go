// Package grid computes the set of tiles needed to cover a viewport.
package grid

import (
	"github.com/PlyoJay/wmsview/internal/geo"
)

// TileSpec identifies one tile of the planned grid by its geographic
// bounding box. Start is the south-west corner, End the north-east one;
// both are normalized so that the derived key is stable.
type TileSpec struct {
	Key   string
	Start geo.GeoPoint
	End   geo.GeoPoint
}

// Center returns the normalized geographic center of the tile for a
// grid spacing of degPerTile.
func (s TileSpec) Center(degPerTile float64) geo.GeoPoint {
	return geo.GeoPoint{
		geo.Normalize(s.Start.X() + degPerTile/2),
		geo.Normalize(s.Start.Y() + degPerTile/2),
	}
}

// Planner emits the fixed odd-sized tile grid around a center position.
// The grid is (2*radius+1) tiles per side; the default radius of 1
// yields a 3x3 grid. The size is a policy choice, not derived from the
// viewport dimensions.
type Planner struct {
	scale  geo.Scale
	radius int
}

// NewPlanner creates a planner for the given zoom scale. A radius below
// 1 is raised to 1.
func NewPlanner(scale geo.Scale, radius int) Planner {
	if radius < 1 {
		radius = 1
	}
	return Planner{scale: scale, radius: radius}
}

// Plan returns the tiles covering the viewport around center at the
// given zoom level, in row-major order (south to north, west to east).
// Identical inputs always yield the identical ordered sequence.
func (p Planner) Plan(center geo.GeoPoint, zoom int) []TileSpec {
	d := p.scale.DegPerTile(zoom)
	side := 2*p.radius + 1

	// South-west corner of the tile containing the center, then step
	// back radius tiles on both axes to reach the grid's reference
	// corner.
	reference := geo.GeoPoint{
		center.X() - d/2 - float64(p.radius)*d,
		center.Y() - d/2 - float64(p.radius)*d,
	}

	specs := make([]TileSpec, 0, side*side)
	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			start := geo.GeoPoint{
				geo.Normalize(reference.X() + float64(x)*d),
				geo.Normalize(reference.Y() + float64(y)*d),
			}
			end := geo.GeoPoint{
				geo.Normalize(start.X() + d),
				geo.Normalize(start.Y() + d),
			}
			specs = append(specs, TileSpec{
				Key:   geo.Key(start),
				Start: start,
				End:   end,
			})
		}
	}

	return specs
}

// Region enumerates the tiles of a geographic bounding region at the
// zoom level's tile step, for bulk download jobs. bounds is
// [minLon, minLat, maxLon, maxLat]; both edges are inclusive.
func (p Planner) Region(bounds [4]float64, zoom int) []TileSpec {
	d := p.scale.DegPerTile(zoom)

	var specs []TileSpec
	for y := bounds[1]; y <= bounds[3]; y += d {
		for x := bounds[0]; x <= bounds[2]; x += d {
			start := geo.GeoPoint{geo.Normalize(x), geo.Normalize(y)}
			end := geo.GeoPoint{
				geo.Normalize(start.X() + d),
				geo.Normalize(start.Y() + d),
			}
			specs = append(specs, TileSpec{
				Key:   geo.Key(start),
				Start: start,
				End:   end,
			})
		}
	}

	return specs
}
