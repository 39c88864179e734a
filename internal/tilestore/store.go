// Package tilestore writes bulk-downloaded tiles into a SQLite archive.
// The archive is an output artifact of the download command, not a
// read-through cache: the fetch path never consults it.
package tilestore

import (
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/PlyoJay/wmsview/internal/grid"
)

const (
	// DefaultBatchSize is the number of tiles buffered before an
	// automatic flush.
	DefaultBatchSize = 100
)

// Metadata describes the archive contents.
type Metadata struct {
	Name     string
	Endpoint string
	Layers   string
	Format   string
	// Bounds is the downloaded region: minLon, minLat, maxLon, maxLat.
	Bounds [4]float64
	// Zoom is the zoom level index the tiles were fetched at.
	Zoom int
}

// ToMap flattens the metadata into the name/value rows stored in the
// archive.
func (m Metadata) ToMap() map[string]string {
	return map[string]string{
		"name":     m.Name,
		"endpoint": m.Endpoint,
		"layers":   m.Layers,
		"format":   m.Format,
		"bounds": fmt.Sprintf("%v,%v,%v,%v",
			m.Bounds[0], m.Bounds[1], m.Bounds[2], m.Bounds[3]),
		"zoom": fmt.Sprintf("%d", m.Zoom),
	}
}

type entry struct {
	spec grid.TileSpec
	zoom int
	data []byte
}

// Writer batches tile writes into a SQLite archive keyed by zoom level
// and tile key (the normalized south-west corner).
type Writer struct {
	db        *sql.DB
	path      string
	batch     []entry
	batchSize int
	mu        sync.Mutex
}

// New creates an archive writer. The database file is created if it
// doesn't exist and the schema is initialized.
func New(path string, metadata Metadata) (*Writer, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	if err := insertMetadata(db, metadata); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to insert metadata: %w", err)
	}

	return &Writer{
		db:        db,
		path:      path,
		batch:     make([]entry, 0, DefaultBatchSize),
		batchSize: DefaultBatchSize,
	}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS metadata (
			name TEXT NOT NULL,
			value TEXT
		);

		CREATE TABLE IF NOT EXISTS tiles (
			zoom INTEGER NOT NULL,
			tile_key TEXT NOT NULL,
			start_x REAL NOT NULL,
			start_y REAL NOT NULL,
			end_x REAL NOT NULL,
			end_y REAL NOT NULL,
			tile_data BLOB NOT NULL
		);

		CREATE UNIQUE INDEX IF NOT EXISTS tile_index ON tiles (zoom, tile_key);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	return nil
}

func insertMetadata(db *sql.DB, meta Metadata) error {
	if _, err := db.Exec("DELETE FROM metadata"); err != nil {
		return fmt.Errorf("failed to clear metadata: %w", err)
	}

	stmt, err := db.Prepare("INSERT INTO metadata (name, value) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare metadata insert: %w", err)
	}
	defer stmt.Close()

	for key, value := range meta.ToMap() {
		if _, err := stmt.Exec(key, value); err != nil {
			return fmt.Errorf("failed to insert metadata %q: %w", key, err)
		}
	}

	return nil
}

// WriteTile adds a tile to the batch. When the batch is full it is
// automatically flushed. Re-writing an existing key replaces the row.
func (w *Writer) WriteTile(zoom int, spec grid.TileSpec, pngData []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.batch = append(w.batch, entry{spec: spec, zoom: zoom, data: pngData})

	if len(w.batch) >= w.batchSize {
		return w.flushLocked()
	}

	return nil
}

// Flush writes any buffered tiles to the database.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked()
}

func (w *Writer) flushLocked() error {
	if len(w.batch) == 0 {
		return nil
	}

	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck

	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO tiles
		(zoom, tile_key, start_x, start_y, end_x, end_y, tile_data)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range w.batch {
		if _, err := stmt.Exec(
			e.zoom, e.spec.Key,
			e.spec.Start.X(), e.spec.Start.Y(),
			e.spec.End.X(), e.spec.End.Y(),
			e.data,
		); err != nil {
			return fmt.Errorf("failed to insert tile %s: %w", e.spec.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	w.batch = w.batch[:0]
	return nil
}

// Close flushes any remaining tiles and closes the database.
func (w *Writer) Close() error {
	if err := w.Flush(); err != nil {
		w.db.Close()
		return err
	}

	if err := w.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	return nil
}
