package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/PlyoJay/wmsview/internal/download"
	"github.com/PlyoJay/wmsview/internal/geo"
	"github.com/PlyoJay/wmsview/internal/tilestore"
	"github.com/PlyoJay/wmsview/internal/wms"
)

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Bulk-download tiles for a geographic region",
	Long: `Download fetches every tile of a bounding region at one zoom level,
with bounded concurrency, and reports aggregate success/failure counts.`,
	RunE: runDownload,
}

func init() {
	rootCmd.AddCommand(downloadCmd)

	downloadCmd.Flags().String("bbox", "", "Bounding box: minLon,minLat,maxLon,maxLat (e.g., \"126.97,35.98,127.725,36.74\")")
	downloadCmd.Flags().IntP("zoom", "z", 5, "Zoom level index (0 = most zoomed in)")
	downloadCmd.Flags().IntP("workers", "w", runtime.NumCPU(), "Number of parallel fetch workers")
	downloadCmd.Flags().Bool("progress", true, "Show progress bar")
	downloadCmd.Flags().String("format", "folder", "Output format: folder or archive")
	downloadCmd.Flags().String("output-dir", "SavedTiles", "Output directory for folder format")
	downloadCmd.Flags().String("output-file", "", "Output file path for archive format (e.g., tiles.db)")
	downloadCmd.Flags().Bool("allow-failures", true, "Exit zero even if some tiles fail")

	mustBind := func(key, name string) {
		if err := viper.BindPFlag(key, downloadCmd.Flags().Lookup(name)); err != nil {
			panic(fmt.Sprintf("failed to bind flag: %v", err))
		}
	}

	mustBind("download.bbox", "bbox")
	mustBind("download.zoom", "zoom")
	mustBind("download.workers", "workers")
	mustBind("download.progress", "progress")
	mustBind("download.format", "format")
	mustBind("download.output_dir", "output-dir")
	mustBind("download.output_file", "output-file")
	mustBind("download.allow_failures", "allow-failures")
}

func runDownload(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	bboxStr := viper.GetString("download.bbox")
	zoom := viper.GetInt("download.zoom")
	workers := viper.GetInt("download.workers")
	showProgress := viper.GetBool("download.progress")
	format := viper.GetString("download.format")
	outputDir := viper.GetString("download.output_dir")
	outputFile := viper.GetString("download.output_file")
	allowFailures := viper.GetBool("download.allow_failures")

	endpoint := viper.GetString("endpoint")
	layers := viper.GetString("layers")
	tileSize := viper.GetInt("tile_size")

	if bboxStr == "" {
		return fmt.Errorf("--bbox is required")
	}
	bbox, err := parseBBox(bboxStr)
	if err != nil {
		return fmt.Errorf("invalid bbox: %w", err)
	}

	scale := geo.NewScale(nil)
	if zoom < 0 || zoom >= scale.Levels() {
		return fmt.Errorf("zoom %d out of range [0, %d]", zoom, scale.Levels()-1)
	}

	if format != "folder" && format != "archive" {
		return fmt.Errorf("invalid format %q: must be 'folder' or 'archive'", format)
	}

	var store *tilestore.Writer
	if format == "archive" {
		if outputFile == "" {
			return fmt.Errorf("--output-file is required when using --format=archive")
		}
		store, err = tilestore.New(outputFile, tilestore.Metadata{
			Name:     "wmsview",
			Endpoint: endpoint,
			Layers:   layers,
			Format:   "png",
			Bounds:   bbox,
			Zoom:     zoom,
		})
		if err != nil {
			return fmt.Errorf("failed to create tile archive: %w", err)
		}
		defer store.Close()
		outputDir = ""
	}

	client := wms.NewClient(wms.ClientConfig{
		Endpoint: endpoint,
		Layers:   layers,
		Logger:   logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("Received interrupt signal, cancelling...")
		cancel()
	}()

	logger.Info("Starting bulk tile download",
		"bbox", bboxStr,
		"zoom", zoom,
		"workers", workers,
		"format", format,
	)

	summary, err := download.Run(ctx, client, scale, download.Options{
		Bounds:       bbox,
		Zoom:         zoom,
		Workers:      workers,
		TileSize:     geo.Size{Width: tileSize, Height: tileSize},
		OutputDir:    outputDir,
		Store:        store,
		ShowProgress: showProgress,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	logger.Info("Bulk download complete",
		"total", summary.Total,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
	)

	if summary.Failed > 0 && !allowFailures {
		return fmt.Errorf("%d tiles failed to download", summary.Failed)
	}

	return nil
}

// parseBBox parses "minLon,minLat,maxLon,maxLat" into [4]float64.
func parseBBox(s string) ([4]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return [4]float64{}, fmt.Errorf("expected 4 comma-separated values, got %d", len(parts))
	}

	var bbox [4]float64
	for i, part := range parts {
		val, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return [4]float64{}, fmt.Errorf("invalid number at position %d: %w", i, err)
		}
		bbox[i] = val
	}

	if bbox[0] >= bbox[2] {
		return [4]float64{}, fmt.Errorf("minLon (%.4f) must be < maxLon (%.4f)", bbox[0], bbox[2])
	}
	if bbox[1] >= bbox[3] {
		return [4]float64{}, fmt.Errorf("minLat (%.4f) must be < maxLat (%.4f)", bbox[1], bbox[3])
	}

	return bbox, nil
}
