package tilestore

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/PlyoJay/wmsview/internal/geo"
	"github.com/PlyoJay/wmsview/internal/grid"
)

func testSpec(x, y float64) grid.TileSpec {
	start := geo.GeoPoint{geo.Normalize(x), geo.Normalize(y)}
	return grid.TileSpec{
		Key:   geo.Key(start),
		Start: start,
		End:   geo.GeoPoint{geo.Normalize(x + 0.25), geo.Normalize(y + 0.25)},
	}
}

func TestWriteAndFlush(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiles.db")

	w, err := New(path, Metadata{
		Name:   "test",
		Layers: "l",
		Format: "png",
		Bounds: [4]float64{126, 36, 127, 37},
		Zoom:   5,
	})
	require.NoError(t, err)

	require.NoError(t, w.WriteTile(5, testSpec(126.0, 36.0), []byte("tile-a")))
	require.NoError(t, w.WriteTile(5, testSpec(126.25, 36.0), []byte("tile-b")))
	require.NoError(t, w.Close())

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM tiles").Scan(&count))
	require.Equal(t, 2, count)

	var data []byte
	var startX float64
	require.NoError(t, db.QueryRow(
		"SELECT tile_data, start_x FROM tiles WHERE zoom = 5 AND tile_key = ?",
		"126.00000_36.00000",
	).Scan(&data, &startX))
	require.Equal(t, []byte("tile-a"), data)
	require.Equal(t, 126.0, startX)
}

func TestRewriteReplacesRow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiles.db")

	w, err := New(path, Metadata{Name: "test", Format: "png", Zoom: 5})
	require.NoError(t, err)

	spec := testSpec(126.0, 36.0)
	require.NoError(t, w.WriteTile(5, spec, []byte("first")))
	require.NoError(t, w.Flush())
	require.NoError(t, w.WriteTile(5, spec, []byte("second")))
	require.NoError(t, w.Close())

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM tiles").Scan(&count))
	require.Equal(t, 1, count)

	var data []byte
	require.NoError(t, db.QueryRow(
		"SELECT tile_data FROM tiles WHERE tile_key = ?", spec.Key,
	).Scan(&data))
	require.Equal(t, []byte("second"), data)
}

func TestMetadataStored(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiles.db")

	w, err := New(path, Metadata{
		Name:     "wmsview",
		Endpoint: "http://localhost:8080/geoserver/wms",
		Layers:   "HJ:DJ_SJ",
		Format:   "png",
		Bounds:   [4]float64{126.97, 35.98, 127.725, 36.74},
		Zoom:     5,
	})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	rows, err := db.Query("SELECT name, value FROM metadata")
	require.NoError(t, err)
	defer rows.Close()

	meta := make(map[string]string)
	for rows.Next() {
		var name, value string
		require.NoError(t, rows.Scan(&name, &value))
		meta[name] = value
	}
	require.NoError(t, rows.Err())

	require.Equal(t, "wmsview", meta["name"])
	require.Equal(t, "HJ:DJ_SJ", meta["layers"])
	require.Equal(t, "png", meta["format"])
	require.Equal(t, "5", meta["zoom"])
	require.Contains(t, meta["bounds"], "126.97")
}
