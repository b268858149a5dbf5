// Package geocode resolves free-form place names to coordinates through a
// Nominatim-compatible HTTP endpoint.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/talgya/pokebot/internal/geo"
)

const defaultEndpoint = "https://nominatim.openstreetmap.org/search"

// ErrNotFound means the service answered but knows no such place.
var ErrNotFound = errors.New("geocode: place not found")

// Place is one resolved location.
type Place struct {
	Coordinate  geo.Coordinate
	DisplayName string
}

// Client queries a Nominatim-compatible geocoding service.
type Client struct {
	endpoint   string
	userAgent  string
	httpClient *http.Client
}

// NewClient creates a geocoding client. The user agent identifies the bot
// to the service, which requires one.
func NewClient(userAgent string) *Client {
	return &Client{
		endpoint:  defaultEndpoint,
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// NewClientWithEndpoint creates a client against a custom endpoint, for
// self-hosted instances and tests.
func NewClientWithEndpoint(userAgent, endpoint string) *Client {
	c := NewClient(userAgent)
	c.endpoint = endpoint
	return c
}

// result is one entry of the service's response body.
type result struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Lookup resolves a place name to its best-ranked location.
func (c *Client) Lookup(ctx context.Context, place string) (Place, error) {
	q := url.Values{}
	q.Set("q", place)
	q.Set("format", "json")
	q.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return Place{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Place{}, fmt.Errorf("geocode call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Place{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Place{}, fmt.Errorf("geocode error %d: %s", resp.StatusCode, string(body))
	}

	var results []result
	if err := json.Unmarshal(body, &results); err != nil {
		return Place{}, fmt.Errorf("unmarshal response: %w", err)
	}
	if len(results) == 0 {
		return Place{}, fmt.Errorf("%w: %q", ErrNotFound, place)
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return Place{}, fmt.Errorf("parse latitude %q: %w", results[0].Lat, err)
	}
	lng, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return Place{}, fmt.Errorf("parse longitude %q: %w", results[0].Lon, err)
	}

	p := Place{
		Coordinate:  geo.Coordinate{Lat: lat, Lng: lng},
		DisplayName: results[0].DisplayName,
	}
	if !p.Coordinate.Valid() {
		return Place{}, fmt.Errorf("geocode returned out-of-range coordinate %v", p.Coordinate)
	}
	return p, nil
}
