package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/example/restaurant-matching/internal/models"
	"github.com/example/restaurant-matching/internal/observability"
)

// YelpClient performs business searches against the Yelp Fusion API.
type YelpClient struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

func NewYelpClient(baseURL, apiKey string, timeout time.Duration) *YelpClient {
	return &YelpClient{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client:  &http.Client{Timeout: timeout},
	}
}

type yelpBusiness struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	DisplayPhone string  `json:"display_phone"`
	Rating       float64 `json:"rating"`
	ReviewCount  int     `json:"review_count"`
	Price        string  `json:"price"`
	Distance     float64 `json:"distance"`
	ImageURL     string  `json:"image_url"`
	URL          string  `json:"url"`
	Categories   []struct {
		Title string `json:"title"`
	} `json:"categories"`
	Coordinates struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"coordinates"`
	Location struct {
		DisplayAddress []string `json:"display_address"`
	} `json:"location"`
	Photos []string `json:"photos"`
}

func (c *YelpClient) Search(ctx context.Context, cfg models.SearchConfig, limit int) ([]models.Restaurant, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(cfg.Lat, 'f', 6, 64))
	q.Set("longitude", strconv.FormatFloat(cfg.Lng, 'f', 6, 64))
	q.Set("radius", strconv.Itoa(cfg.RadiusM))
	q.Set("limit", strconv.Itoa(limit))
	categories := cfg.Categories
	if categories == "" {
		categories = "restaurants"
	}
	q.Set("categories", categories)
	if cfg.Price != "" {
		q.Set("price", cfg.Price)
	}
	if cfg.SortBy != "" {
		q.Set("sort_by", cfg.SortBy)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/businesses/search?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.Client.Do(req)
	if err != nil {
		observability.ProviderRequestsTotal.WithLabelValues("yelp", "error").Inc()
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		observability.ProviderRequestsTotal.WithLabelValues("yelp", "error").Inc()
		return nil, fmt.Errorf("yelp status %d", resp.StatusCode)
	}

	var out struct {
		Businesses []yelpBusiness `json:"businesses"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		observability.ProviderRequestsTotal.WithLabelValues("yelp", "error").Inc()
		return nil, err
	}
	observability.ProviderRequestsTotal.WithLabelValues("yelp", "ok").Inc()

	list := make([]models.Restaurant, 0, len(out.Businesses))
	for _, b := range out.Businesses {
		list = append(list, toRestaurant(b))
	}
	return list, nil
}

func toRestaurant(b yelpBusiness) models.Restaurant {
	cats := make([]string, 0, len(b.Categories))
	for _, c := range b.Categories {
		cats = append(cats, c.Title)
	}
	address := "Address not available"
	if len(b.Location.DisplayAddress) > 0 {
		address = strings.Join(b.Location.DisplayAddress, ", ")
	}
	photos := b.Photos
	if len(photos) == 0 && b.ImageURL != "" {
		photos = []string{b.ImageURL}
	}
	return models.Restaurant{
		ID:          b.ID,
		Name:        b.Name,
		Address:     address,
		Phone:       b.DisplayPhone,
		Rating:      b.Rating,
		ReviewCount: b.ReviewCount,
		Categories:  cats,
		Price:       b.Price,
		Coordinates: models.Coord{Lat: b.Coordinates.Latitude, Lng: b.Coordinates.Longitude},
		DistanceM:   b.Distance,
		ImageURL:    b.ImageURL,
		Photos:      photos,
		URL:         b.URL,
	}
}
