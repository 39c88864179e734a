// Package wms fetches rendered map tiles from a WMS endpoint.
package wms

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/png" // GetMap responses are requested as image/png
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/paulmach/orb"

	"github.com/PlyoJay/wmsview/internal/geo"
)

// ClientConfig configures the WMS client.
type ClientConfig struct {
	// Endpoint is the base WMS URL (e.g. http://host/geoserver/wms).
	Endpoint string
	// Layers is the GetMap LAYERS parameter.
	Layers string
	// SaveDir, when set, stores every fetched tile's raw bytes under
	// tile_{startX:.5f}_{startY:.5f}.png. Save failures are logged,
	// never raised. Optional side channel, not needed for rendering.
	SaveDir string
	// HTTPClient is the transport to use (default: 10s timeout client).
	HTTPClient *http.Client
	// UserAgent overrides the request User-Agent header.
	UserAgent string
	// Logger for fetch diagnostics.
	Logger *slog.Logger
}

// Client issues WMS 1.1.1 GetMap requests and decodes the returned
// PNGs. It is an explicitly owned instance rather than a process-wide
// singleton so tests can substitute a fake fetcher.
type Client struct {
	cfg ClientConfig
	log *slog.Logger
}

// NewClient creates a WMS client. Endpoint and Layers must be set by
// the caller; everything else has defaults.
func NewClient(cfg ClientConfig) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "wmsview/1.0"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{cfg: cfg, log: cfg.Logger}
}

// GetMapURL builds the GetMap request URL for the bounding box spanned
// by the two corner points. The corners may arrive in either order;
// the bbox always uses the per-axis min/max.
func (c *Client) GetMapURL(start, end geo.GeoPoint, size geo.Size) string {
	bound := orb.MultiPoint{start, end}.Bound()
	bbox := formatFloat(bound.Min.X()) + "," + formatFloat(bound.Min.Y()) + "," +
		formatFloat(bound.Max.X()) + "," + formatFloat(bound.Max.Y())

	params := url.Values{}
	params.Set("service", "WMS")
	params.Set("version", "1.1.1")
	params.Set("request", "GetMap")
	params.Set("layers", c.cfg.Layers)
	params.Set("bbox", bbox)
	params.Set("width", strconv.Itoa(size.Width))
	params.Set("height", strconv.Itoa(size.Height))
	params.Set("srs", "EPSG:4326")
	params.Set("format", "image/png")
	params.Set("transparent", "true")

	return c.cfg.Endpoint + "?" + params.Encode()
}

// Fetch requests the tile covering the given bounding box and decodes
// the response. A non-2xx status, an empty body and an undecodable
// payload are all errors; the caller decides whether a failed tile is
// fatal (the viewport manager treats it as "no tile this pass").
func (c *Client) Fetch(ctx context.Context, start, end geo.GeoPoint, size geo.Size) (image.Image, error) {
	reqURL := c.GetMapURL(start, end, size)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build GetMap request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GetMap request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("GetMap returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read GetMap response: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("GetMap returned an empty body")
	}

	if c.cfg.SaveDir != "" {
		c.saveTile(data, start)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode tile image: %w", err)
	}

	return img, nil
}

func (c *Client) saveTile(data []byte, start geo.GeoPoint) {
	name := fmt.Sprintf("tile_%.5f_%.5f.png", start.X(), start.Y())

	if err := os.MkdirAll(c.cfg.SaveDir, 0o755); err != nil {
		c.log.Warn("tile save failed", "file", name, "error", err)
		return
	}
	if err := os.WriteFile(filepath.Join(c.cfg.SaveDir, name), data, 0o644); err != nil {
		c.log.Warn("tile save failed", "file", name, "error", err)
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
