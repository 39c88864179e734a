package viewport

import (
	"github.com/PlyoJay/wmsview/internal/geo"
)

// ViewState is the authoritative navigation state of the map view.
// Center holds between interactions; PanOffset is an ephemeral
// visual-only delta that is folded back into Center whenever a pan
// gesture ends.
type ViewState struct {
	Center    geo.GeoPoint
	Zoom      int
	PanOffset geo.PixelPoint
}
