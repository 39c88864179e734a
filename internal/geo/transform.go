package geo

// ToCanvas maps a geographic position to canvas pixel coordinates for a
// view centered on center at the given degrees-per-tile resolution.
// Latitude increases upward in geo-space but downward in pixel-space,
// hence the sign flip on the Y axis.
//
// The function is pure and total over finite floats; degenerate inputs
// (zero-sized viewport) simply produce coordinates that are not
// meaningful.
func ToCanvas(g GeoPoint, center GeoPoint, degPerTile float64, viewport, tile Size) PixelPoint {
	dx := (g.X() - center.X()) / degPerTile * float64(tile.Width)
	dy := (center.Y() - g.Y()) / degPerTile * float64(tile.Height)

	return PixelPoint{
		X: float64(viewport.Width)/2 + dx,
		Y: float64(viewport.Height)/2 + dy,
	}
}

// ToGeo is the exact inverse of ToCanvas. The pixel argument must be in
// the same space ToCanvas outputs: callers holding an active visual pan
// translation must un-apply it before calling (the viewport manager
// does this when committing a pan).
func ToGeo(p PixelPoint, center GeoPoint, degPerTile float64, viewport, tile Size) GeoPoint {
	dx := p.X - float64(viewport.Width)/2
	dy := p.Y - float64(viewport.Height)/2

	return GeoPoint{
		center.X() + dx/float64(tile.Width)*degPerTile,
		center.Y() - dy/float64(tile.Height)*degPerTile,
	}
}
