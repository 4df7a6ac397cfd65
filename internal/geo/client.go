// Package geo resolves postal addresses against the BAN national address
// API (api-adresse.data.gouv.fr).
package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// MinScore is the relevance below which a match is discarded rather than
// stored as a bad coordinate.
const MinScore = 0.5

// Result is a geocoded address.
type Result struct {
	Label     string
	City      string
	Postcode  string
	Latitude  float64
	Longitude float64
	Score     float64
}

// ErrNoMatch indicates the API returned no usable candidate.
var ErrNoMatch = errors.New("geo: no match above score threshold")

// Client queries the BAN search endpoint.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient constructs a Client. timeout bounds each request.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type searchResponse struct {
	Features []struct {
		Geometry struct {
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
		Properties struct {
			Label    string  `json:"label"`
			City     string  `json:"city"`
			Postcode string  `json:"postcode"`
			Score    float64 `json:"score"`
		} `json:"properties"`
	} `json:"features"`
}

// Search geocodes a free-form address, returning the best candidate.
func (c *Client) Search(ctx context.Context, address string) (*Result, error) {
	if address == "" {
		return nil, errors.New("geo: empty address")
	}

	endpoint := fmt.Sprintf("%s/search?q=%s&limit=1", c.baseURL, url.QueryEscape(address))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("geo: build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geo: search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geo: search status %d", resp.StatusCode)
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("geo: decode response: %w", err)
	}

	if len(parsed.Features) == 0 {
		return nil, ErrNoMatch
	}
	f := parsed.Features[0]
	if f.Properties.Score < MinScore || len(f.Geometry.Coordinates) < 2 {
		return nil, ErrNoMatch
	}

	return &Result{
		Label:     f.Properties.Label,
		City:      f.Properties.City,
		Postcode:  f.Properties.Postcode,
		Longitude: f.Geometry.Coordinates[0],
		Latitude:  f.Geometry.Coordinates[1],
		Score:     f.Properties.Score,
	}, nil
}
