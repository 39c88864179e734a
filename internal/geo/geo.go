// Package geo holds the flat lat/long coordinate model shared by the
// planner, the viewport manager and the WMS client. Positions are plain
// degree pairs (EPSG:4326-like, not geodesically correct); no range
// validation is performed.
package geo

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// GeoPoint is a geographic position in degrees: X is longitude, Y is
// latitude. By overload it also expresses sizes in degrees.
type GeoPoint = orb.Point

// PixelPoint is a canvas-space pixel position, origin top-left,
// Y increasing downward.
type PixelPoint struct {
	X float64
	Y float64
}

// Size is a pixel extent (viewport or tile).
type Size struct {
	Width  int
	Height int
}

// DefaultDegPerTile is the ascending degrees-per-tile table. Index 0 is
// the most zoomed-in level.
var DefaultDegPerTile = []float64{0.005, 0.0125, 0.025, 0.05, 0.125, 0.25}

// Scale maps zoom levels to the geographic span of a single tile.
type Scale struct {
	degPerTile []float64
}

// NewScale creates a Scale from an ascending degrees-per-tile table.
// An empty table falls back to DefaultDegPerTile.
func NewScale(degPerTile []float64) Scale {
	if len(degPerTile) == 0 {
		degPerTile = DefaultDegPerTile
	}
	return Scale{degPerTile: degPerTile}
}

// Levels returns the number of zoom levels.
func (s Scale) Levels() int {
	return len(s.degPerTile)
}

// DegPerTile returns the geographic span of one tile at the given level.
// The level must satisfy 0 <= level < Levels().
func (s Scale) DegPerTile(level int) float64 {
	return s.degPerTile[level]
}

// Clamp restricts a requested zoom level to the valid index range.
func (s Scale) Clamp(level int) int {
	if level < 0 {
		return 0
	}
	if level >= len(s.degPerTile) {
		return len(s.degPerTile) - 1
	}
	return level
}

// Normalize rounds a coordinate to 5 decimal places. It is applied
// wherever a coordinate becomes part of a cache key, so that repeated
// derivations of the same logical tile agree despite floating-point
// drift in the intermediate arithmetic.
func Normalize(v float64) float64 {
	return math.Round(v*1e5) / 1e5
}

// Key derives the stable cache key for a tile from its south-west
// corner. The corner is expected to be normalized already.
func Key(start GeoPoint) string {
	return fmt.Sprintf("%.5f_%.5f", start.X(), start.Y())
}
