// Package search wraps the external business-search and geocoding providers
// behind the candidate-provider seam the session core consumes.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/example/restaurant-matching/internal/models"
)

var (
	ErrNoResults = errors.New("no results for location")
	ErrUpstream  = errors.New("search provider error")
)

// maxRadiusM is the largest radius the business-search API accepts.
const maxRadiusM = 40000

// Client is the raw business-search call.
type Client interface {
	Search(ctx context.Context, cfg models.SearchConfig, limit int) ([]models.Restaurant, error)
}

// Geocoder resolves free text to coordinates and offers suggestions.
type Geocoder interface {
	Geocode(ctx context.Context, location string) (models.Coord, error)
	Suggest(ctx context.Context, query string) ([]string, error)
}

// Cache holds recent search results keyed by the frozen search parameters.
type Cache interface {
	Get(ctx context.Context, key string) ([]models.Restaurant, bool)
	Set(ctx context.Context, key string, list []models.Restaurant)
}

// Service is the candidate provider adapter: it dedupes, filters, and caps
// what the raw client returns so every session sees a stable ordered list.
type Service struct {
	Client Client
	Cache  Cache // nil disables caching
	Limit  int   // final candidate cap, 20 by default
	Logger *slog.Logger
}

func (s *Service) Search(ctx context.Context, cfg models.SearchConfig) ([]models.Restaurant, error) {
	if cfg.RadiusM > maxRadiusM {
		cfg.RadiusM = maxRadiusM
	}
	limit := s.Limit
	if limit <= 0 {
		limit = 20
	}

	key := cacheKey(cfg)
	if s.Cache != nil {
		if list, ok := s.Cache.Get(ctx, key); ok {
			return list, nil
		}
	}

	// Ask for headroom so local filtering can still fill the cap.
	raw, err := s.Client.Search(ctx, cfg, 50)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	list := make([]models.Restaurant, 0, limit)
	seen := make(map[string]struct{}, len(raw))
	for _, r := range raw {
		if r.ID == "" {
			continue
		}
		if _, dup := seen[r.ID]; dup {
			continue
		}
		// The provider cannot filter on rating; apply it here.
		if cfg.MinRating > 0 && r.Rating < cfg.MinRating {
			continue
		}
		seen[r.ID] = struct{}{}
		list = append(list, r)
		if len(list) == limit {
			break
		}
	}

	if s.Cache != nil && len(list) > 0 {
		s.Cache.Set(ctx, key, list)
	}
	return list, nil
}

// cacheKey rounds coordinates to ~10 m so nearby repeat searches share results.
func cacheKey(cfg models.SearchConfig) string {
	return fmt.Sprintf("search:%.4f,%.4f:%d:%s:%s:%.1f:%s",
		cfg.Lat, cfg.Lng, cfg.RadiusM, cfg.Categories, cfg.Price, cfg.MinRating, cfg.SortBy)
}
