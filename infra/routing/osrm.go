// Package routing fetches display polylines from an OSRM-compatible
// endpoint. Routes are for display only and never influence dispatch
// decisions.
package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Config defines the routing endpoint.
type Config struct {
	Enabled   bool   `json:"enabled"`
	BaseURL   string `json:"base_url"`
	TimeoutMS int    `json:"timeout_ms"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "http://router.project-osrm.org/route/v1/driving"
	}
	if c.TimeoutMS == 0 {
		c.TimeoutMS = 5000
	}
}

// Client queries an OSRM-compatible route endpoint.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a routing client.
func NewClient(cfg Config) *Client {
	cfg.SetDefaults()
	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: time.Duration(cfg.TimeoutMS) * time.Millisecond},
	}
}

// Route returns the route geometry between start and end as a list of
// [lng, lat] pairs, or nil when no route exists.
func (c *Client) Route(ctx context.Context, start, end [2]float64) ([][2]float64, error) {
	url := fmt.Sprintf("%s/%f,%f;%f,%f?overview=full&geometries=geojson",
		c.baseURL, start[0], start[1], end[0], end[1])

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, body)
	}

	var out struct {
		Routes []struct {
			Geometry struct {
				Coordinates [][2]float64 `json:"coordinates"`
			} `json:"geometry"`
		} `json:"routes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(out.Routes) == 0 {
		return nil, nil
	}
	return out.Routes[0].Geometry.Coordinates, nil
}
