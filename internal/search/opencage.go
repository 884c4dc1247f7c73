package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/example/restaurant-matching/internal/models"
	"github.com/example/restaurant-matching/internal/observability"
)

// OpenCageClient resolves free-text locations via the OpenCage geocoding API.
type OpenCageClient struct {
	Endpoint string
	APIKey   string
	Client   *http.Client
}

func NewOpenCageClient(endpoint, apiKey string, timeout time.Duration) *OpenCageClient {
	return &OpenCageClient{
		Endpoint: endpoint,
		APIKey:   apiKey,
		Client:   &http.Client{Timeout: timeout},
	}
}

type openCageResponse struct {
	Results []struct {
		Formatted string `json:"formatted"`
		Geometry  struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"geometry"`
	} `json:"results"`
}

func (c *OpenCageClient) Geocode(ctx context.Context, location string) (models.Coord, error) {
	out, err := c.query(ctx, location, 1)
	if err != nil {
		return models.Coord{}, err
	}
	if len(out.Results) == 0 {
		return models.Coord{}, ErrNoResults
	}
	g := out.Results[0].Geometry
	return models.Coord{Lat: g.Lat, Lng: g.Lng}, nil
}

func (c *OpenCageClient) Suggest(ctx context.Context, query string) ([]string, error) {
	out, err := c.query(ctx, query, 5)
	if err != nil {
		return nil, err
	}
	suggestions := make([]string, 0, len(out.Results))
	for _, r := range out.Results {
		if r.Formatted != "" {
			suggestions = append(suggestions, r.Formatted)
		}
	}
	return suggestions, nil
}

func (c *OpenCageClient) query(ctx context.Context, q string, limit int) (*openCageResponse, error) {
	params := url.Values{}
	params.Set("q", q)
	params.Set("key", c.APIKey)
	params.Set("limit", fmt.Sprintf("%d", limit))
	params.Set("no_annotations", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		observability.ProviderRequestsTotal.WithLabelValues("opencage", "error").Inc()
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		observability.ProviderRequestsTotal.WithLabelValues("opencage", "error").Inc()
		return nil, fmt.Errorf("%w: geocoder status %d", ErrUpstream, resp.StatusCode)
	}

	var out openCageResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		observability.ProviderRequestsTotal.WithLabelValues("opencage", "error").Inc()
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	observability.ProviderRequestsTotal.WithLabelValues("opencage", "ok").Inc()
	return &out, nil
}
