// Package geocode resolves street addresses to coordinates through a
// Nominatim-compatible endpoint.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/urbanpulse/fleetops/core/geo"
)

const userAgent = "fleetops-dispatch/1.0"

// Config defines the geocoder endpoint.
type Config struct {
	Enabled   bool   `json:"enabled"`
	BaseURL   string `json:"base_url"`
	TimeoutMS int    `json:"timeout_ms"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://nominatim.openstreetmap.org/search"
	}
	if c.TimeoutMS == 0 {
		c.TimeoutMS = 5000
	}
}

// Client queries a Nominatim-compatible search endpoint.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a geocoder client.
func NewClient(cfg Config) *Client {
	cfg.SetDefaults()
	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: time.Duration(cfg.TimeoutMS) * time.Millisecond},
	}
}

// Geocode resolves the address to a coordinate. A nil point with a nil
// error means the address was not found; that is an expected outcome, not a
// failure.
func (c *Client) Geocode(ctx context.Context, address string) (*geo.Point, error) {
	if address == "" {
		return nil, fmt.Errorf("address is required")
	}
	q := url.Values{}
	q.Set("q", address)
	q.Set("format", "json")
	q.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, body)
	}

	var results []struct {
		Lat string `json:"lat"`
		Lon string `json:"lon"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}
	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid latitude %q: %w", results[0].Lat, err)
	}
	lng, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid longitude %q: %w", results[0].Lon, err)
	}
	return &geo.Point{Lat: lat, Lng: lng}, nil
}
