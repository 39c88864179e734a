// Package download runs bulk tile downloads over a geographic region as
// an explicit batch job: enumerate the region, fetch with bounded
// concurrency, observe every result and report aggregate counts.
package download

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/PlyoJay/wmsview/internal/geo"
	"github.com/PlyoJay/wmsview/internal/grid"
	"github.com/PlyoJay/wmsview/internal/tilestore"
	"github.com/PlyoJay/wmsview/internal/worker"
)

// Options configures a bulk download.
type Options struct {
	// Bounds is the region to cover: minLon, minLat, maxLon, maxLat.
	Bounds [4]float64
	// Zoom is the zoom level index to fetch at.
	Zoom int
	// Workers bounds fetch concurrency (default 1).
	Workers int
	// TileSize is the requested pixel size per tile.
	TileSize geo.Size
	// OutputDir, when set, writes each tile to
	// tile_{startX:.5f}_{startY:.5f}.png in that directory.
	OutputDir string
	// Store, when set, also writes each tile into a SQLite archive.
	Store *tilestore.Writer
	// ShowProgress renders a terminal progress bar while the batch runs.
	ShowProgress bool
	// OnProgress is called after each task completes.
	OnProgress worker.ProgressFunc
	// Logger for per-tile diagnostics.
	Logger *slog.Logger
}

// Summary aggregates the outcome of a bulk download.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
}

// Run downloads every tile of the region. Individual fetch failures
// are counted and logged, never fatal; an error is returned only for
// setup problems or when writing a fetched tile out fails.
func Run(ctx context.Context, fetcher worker.Fetcher, scale geo.Scale, opts Options) (Summary, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	specs := grid.NewPlanner(scale, 1).Region(opts.Bounds, opts.Zoom)
	tasks := make([]worker.Task, 0, len(specs))
	for _, spec := range specs {
		tasks = append(tasks, worker.Task{Spec: spec, Zoom: opts.Zoom})
	}

	summary := Summary{Total: len(tasks)}
	if len(tasks) == 0 {
		return summary, nil
	}

	if opts.OutputDir != "" {
		if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
			return summary, fmt.Errorf("create output directory: %w", err)
		}
	}

	// The reporter is owned here so it is always constructed with the
	// real task count.
	progress := worker.NewProgress(len(tasks), opts.ShowProgress)
	onProgress := progress.Callback()
	if opts.OnProgress != nil {
		extra := opts.OnProgress
		onProgress = func(completed, total, failed int) {
			progress.Update(completed, total, failed)
			extra(completed, total, failed)
		}
	}

	pool := worker.New(worker.Config{
		Workers:    opts.Workers,
		Fetcher:    fetcher,
		TileSize:   opts.TileSize,
		OnProgress: onProgress,
	})

	results := pool.Run(ctx, tasks)
	progress.Done()

	for _, r := range results {
		if r.Err != nil {
			summary.Failed++
			log.Warn("tile download failed",
				"key", r.Task.Spec.Key,
				"zoom", r.Task.Zoom,
				"error", r.Err,
			)
			continue
		}

		data, err := encodePNG(r)
		if err != nil {
			return summary, err
		}

		if opts.OutputDir != "" {
			name := fmt.Sprintf("tile_%.5f_%.5f.png",
				r.Task.Spec.Start.X(), r.Task.Spec.Start.Y())
			if err := os.WriteFile(filepath.Join(opts.OutputDir, name), data, 0o644); err != nil {
				return summary, fmt.Errorf("write tile %s: %w", name, err)
			}
		}

		if opts.Store != nil {
			if err := opts.Store.WriteTile(r.Task.Zoom, r.Task.Spec, data); err != nil {
				return summary, fmt.Errorf("archive tile %s: %w", r.Task.Spec.Key, err)
			}
		}

		summary.Succeeded++
	}

	if opts.Store != nil {
		if err := opts.Store.Flush(); err != nil {
			return summary, fmt.Errorf("flush archive: %w", err)
		}
	}

	return summary, nil
}

func encodePNG(r worker.Result) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, r.Image); err != nil {
		return nil, fmt.Errorf("encode tile %s: %w", r.Task.Spec.Key, err)
	}
	return buf.Bytes(), nil
}
