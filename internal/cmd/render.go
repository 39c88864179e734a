package cmd

import (
	"context"
	"fmt"
	"image/png"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/PlyoJay/wmsview/internal/geo"
	"github.com/PlyoJay/wmsview/internal/surface"
	"github.com/PlyoJay/wmsview/internal/viewport"
	"github.com/PlyoJay/wmsview/internal/wms"
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render one viewport to a PNG",
	Long: `Render runs a full refresh pass through the viewport manager -- plan the
tile grid, fetch the tiles, composite them -- and writes the resulting
viewport image to a file. A headless stand-in for the interactive map
window.`,
	RunE: runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().String("center", "127.36,36.34", "Viewport center as lon,lat")
	renderCmd.Flags().IntP("zoom", "z", 2, "Zoom level index (0 = most zoomed in)")
	renderCmd.Flags().Int("width", 1024, "Viewport width in pixels")
	renderCmd.Flags().Int("height", 1024, "Viewport height in pixels")
	renderCmd.Flags().Int("grid-radius", 1, "Planned grid radius: (2r+1) tiles per side")
	renderCmd.Flags().StringP("output", "o", "viewport.png", "Output PNG path")
	renderCmd.Flags().Bool("synthetic", false, "Use the offline synthetic fetcher instead of the WMS endpoint")
	renderCmd.Flags().Int64("seed", 1337, "Seed for the synthetic fetcher")
	renderCmd.Flags().String("save-dir", "", "Also save fetched tile bytes into this directory")

	mustBind := func(key, name string) {
		if err := viper.BindPFlag(key, renderCmd.Flags().Lookup(name)); err != nil {
			panic(fmt.Sprintf("failed to bind flag: %v", err))
		}
	}

	mustBind("render.center", "center")
	mustBind("render.zoom", "zoom")
	mustBind("render.width", "width")
	mustBind("render.height", "height")
	mustBind("render.grid_radius", "grid-radius")
	mustBind("render.output", "output")
	mustBind("render.synthetic", "synthetic")
	mustBind("render.seed", "seed")
	mustBind("render.save_dir", "save-dir")
}

func runRender(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	center, err := parseCenter(viper.GetString("render.center"))
	if err != nil {
		return fmt.Errorf("invalid center: %w", err)
	}
	zoom := viper.GetInt("render.zoom")
	width := viper.GetInt("render.width")
	height := viper.GetInt("render.height")
	gridRadius := viper.GetInt("render.grid_radius")
	output := viper.GetString("render.output")
	synthetic := viper.GetBool("render.synthetic")
	seed := viper.GetInt64("render.seed")
	saveDir := viper.GetString("render.save_dir")

	tileSize := viper.GetInt("tile_size")

	scale := geo.NewScale(nil)
	if zoom < 0 || zoom >= scale.Levels() {
		return fmt.Errorf("zoom %d out of range [0, %d]", zoom, scale.Levels()-1)
	}

	var fetcher viewport.Fetcher
	if synthetic {
		fetcher = wms.NewSynthetic(seed)
	} else {
		fetcher = wms.NewClient(wms.ClientConfig{
			Endpoint: viper.GetString("endpoint"),
			Layers:   viper.GetString("layers"),
			SaveDir:  saveDir,
			Logger:   logger,
		})
	}

	viewportSize := geo.Size{Width: width, Height: height}
	tilePixelSize := geo.Size{Width: tileSize, Height: tileSize}

	surf := surface.NewImageSurface(viewportSize, tilePixelSize)
	mgr := viewport.New(fetcher, surf, viewport.Config{
		Scale:      scale,
		Viewport:   viewportSize,
		TileSize:   tilePixelSize,
		GridRadius: gridRadius,
		Center:     center,
		Zoom:       zoom,
		Logger:     logger,
	})

	logger.Info("Rendering viewport",
		"center", viper.GetString("render.center"),
		"zoom", zoom,
		"viewport", fmt.Sprintf("%dx%d", width, height),
		"synthetic", synthetic,
	)

	mgr.Refresh(context.Background())

	stats := mgr.Stats()
	logger.Info("Refresh pass complete",
		"fetched", stats.Completed,
		"failed", stats.Failed,
		"attached", surf.Count(),
	)

	out, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer out.Close()

	if err := png.Encode(out, surf.Render()); err != nil {
		return fmt.Errorf("encode viewport: %w", err)
	}

	logger.Info("Viewport written", "path", output)
	return nil
}

// parseCenter parses "lon,lat" into a GeoPoint.
func parseCenter(s string) (geo.GeoPoint, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return geo.GeoPoint{}, fmt.Errorf("expected lon,lat, got %q", s)
	}

	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return geo.GeoPoint{}, fmt.Errorf("invalid longitude: %w", err)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return geo.GeoPoint{}, fmt.Errorf("invalid latitude: %w", err)
	}

	return geo.GeoPoint{lon, lat}, nil
}
