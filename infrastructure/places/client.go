// Package places adapts the Google Maps Platform web services (Places,
// Geocoding and Place Photos) to the provider ports used by the pipeline.
package places

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"googlemaps.github.io/maps"

	"github.com/ahrav/shinise-scout/internal/domain"
	"github.com/ahrav/shinise-scout/internal/logger"
	"github.com/ahrav/shinise-scout/internal/ports"
)

const (
	// DefaultLanguage is the language results and reviews are requested in.
	DefaultLanguage = "ja"
	// DefaultRegion biases text and geocoding results.
	DefaultRegion = "jp"
	// DefaultQPS is the request rate shared by every call of one client.
	DefaultQPS = 10
)

// Config holds the settings of a Client.
type Config struct {
	APIKey   string
	Language string
	Region   string

	// QPS and Burst bound the request rate. Zero selects the defaults.
	QPS   float64
	Burst int

	// BaseURL overrides the Google endpoint, for tests.
	BaseURL    string
	HTTPClient *http.Client
}

// Client implements ports.PlacesProvider, ports.PhotoProvider and
// ports.Geocoder against the Google Maps web services.
type Client struct {
	maps     *maps.Client
	limiter  *rate.Limiter
	language string
	region   string
	log      logger.Logger
	metrics  ports.MetricsCollector
}

var (
	_ ports.PlacesProvider = (*Client)(nil)
	_ ports.PhotoProvider  = (*Client)(nil)
	_ ports.Geocoder       = (*Client)(nil)
)

// NewClient creates a client. log and metrics may be nil.
func NewClient(cfg Config, log logger.Logger, metrics ports.MetricsCollector) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ports.NewConfigError("maps.api_key", domain.ErrEmptyValue)
	}
	if cfg.Language == "" {
		cfg.Language = DefaultLanguage
	}
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}
	if cfg.QPS <= 0 {
		cfg.QPS = DefaultQPS
	}
	if cfg.Burst <= 0 {
		cfg.Burst = int(cfg.QPS)
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}

	opts := []maps.ClientOption{maps.WithAPIKey(cfg.APIKey), maps.WithRateLimit(0)}
	if cfg.BaseURL != "" {
		opts = append(opts, maps.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, maps.WithHTTPClient(cfg.HTTPClient))
	}
	mc, err := maps.NewClient(opts...)
	if err != nil {
		return nil, ports.NewConfigError("maps", err)
	}

	return &Client{
		maps:     mc,
		limiter:  rate.NewLimiter(rate.Limit(cfg.QPS), cfg.Burst),
		language: cfg.Language,
		region:   cfg.Region,
		log:      log,
		metrics:  metrics,
	}, nil
}

// call waits for the limiter, runs fn and records its latency.
func (c *Client) call(ctx context.Context, op string, fn func() error) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("places %s: waiting for rate limiter: %w", op, err)
	}
	start := time.Now()
	err := fn()
	status := "success"
	if err != nil {
		status = "error"
	}
	c.metrics.RecordLatency("places_request", time.Since(start), map[string]string{"operation": op, "status": status})
	return err
}

// SearchNearby lists restaurants within radius meters of center.
func (c *Client) SearchNearby(ctx context.Context, center domain.LatLng, radius int) ([]domain.Shop, error) {
	var resp maps.PlacesSearchResponse
	err := c.call(ctx, "nearby", func() (err error) {
		resp, err = c.maps.NearbySearch(ctx, &maps.NearbySearchRequest{
			Location: toMaps(center),
			Radius:   uint(max(radius, 1)),
			Language: c.language,
			Type:     maps.PlaceTypeRestaurant,
		})
		return err
	})
	if err != nil {
		return nil, classify("nearby", err)
	}
	return fromResults(resp.Results), nil
}

// SearchByText runs a keyword query biased to the circle around center.
func (c *Client) SearchByText(ctx context.Context, query string, center domain.LatLng, radius int) ([]domain.Shop, error) {
	var resp maps.PlacesSearchResponse
	err := c.call(ctx, "text", func() (err error) {
		resp, err = c.maps.TextSearch(ctx, &maps.TextSearchRequest{
			Query:    query,
			Location: toMaps(center),
			Radius:   uint(max(radius, 1)),
			Language: c.language,
			Region:   c.region,
		})
		return err
	})
	if err != nil {
		return nil, classify("text", err)
	}
	return fromResults(resp.Results), nil
}

// GetDetails returns the full record with reviews. Unknown ids yield nil.
func (c *Client) GetDetails(ctx context.Context, placeID string) (*domain.Shop, error) {
	var res maps.PlaceDetailsResult
	err := c.call(ctx, "details", func() (err error) {
		res, err = c.maps.PlaceDetails(ctx, &maps.PlaceDetailsRequest{
			PlaceID:  placeID,
			Language: c.language,
		})
		return err
	})
	if err != nil {
		if isStatus(err, "NOT_FOUND", "INVALID_REQUEST") {
			return nil, nil
		}
		return nil, classify("details", err)
	}

	shop := fromDetails(res)
	return &shop, nil
}

// Geocode resolves address to the location of the first match.
func (c *Client) Geocode(ctx context.Context, address string) (*domain.LatLng, error) {
	var results []maps.GeocodingResult
	err := c.call(ctx, "geocode", func() (err error) {
		results, err = c.maps.Geocode(ctx, &maps.GeocodingRequest{
			Address:  address,
			Language: c.language,
			Region:   c.region,
		})
		return err
	})
	if err != nil {
		return nil, classify("geocode", err)
	}
	if len(results) == 0 {
		return nil, nil
	}
	loc := results[0].Geometry.Location
	return &domain.LatLng{Lat: loc.Lat, Lng: loc.Lng}, nil
}

// Photo streams the photo identified by ref.
func (c *Client) Photo(ctx context.Context, ref string, maxWidth, maxHeight uint) (string, io.ReadCloser, error) {
	var resp maps.PlacePhotoResponse
	err := c.call(ctx, "photo", func() (err error) {
		resp, err = c.maps.PlacePhoto(ctx, &maps.PlacePhotoRequest{
			PhotoReference: ref,
			MaxWidth:       maxWidth,
			MaxHeight:      maxHeight,
		})
		return err
	})
	if err != nil {
		return "", nil, classify("photo", err)
	}
	contentType := resp.ContentType
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return contentType, resp.Data, nil
}

func isStatus(err error, statuses ...string) bool {
	msg := err.Error()
	for _, s := range statuses {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func classify(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if isStatus(err, "OVER_QUERY_LIMIT") {
		return ports.NewRateLimitError("maps", err)
	}
	return ports.NewUpstreamError("maps", op, err)
}

func toMaps(l domain.LatLng) *maps.LatLng {
	return &maps.LatLng{Lat: l.Lat, Lng: l.Lng}
}

func fromResults(results []maps.PlacesSearchResult) []domain.Shop {
	out := make([]domain.Shop, 0, len(results))
	for _, r := range results {
		if r.PlaceID == "" {
			continue
		}
		loc := domain.LatLng{Lat: r.Geometry.Location.Lat, Lng: r.Geometry.Location.Lng}
		addr := r.FormattedAddress
		if addr == "" {
			addr = r.Vicinity
		}
		out = append(out, domain.Shop{
			ID:       r.PlaceID,
			Name:     r.Name,
			Address:  addr,
			Location: &loc,
			Photos:   photoRefs(r.Photos),
			Types:    r.Types,
			Rating:   float64(r.Rating),
		})
	}
	return out
}

func fromDetails(r maps.PlaceDetailsResult) domain.Shop {
	loc := domain.LatLng{Lat: r.Geometry.Location.Lat, Lng: r.Geometry.Location.Lng}
	shop := domain.Shop{
		ID:      r.PlaceID,
		Name:    r.Name,
		Address: r.FormattedAddress,
		Photos:  photoRefs(r.Photos),
		Types:   r.Types,
		Rating:  float64(r.Rating),
	}
	if !loc.IsZero() {
		shop.Location = &loc
	}
	for _, rv := range r.Reviews {
		if t := strings.TrimSpace(rv.Text); t != "" {
			shop.Reviews = append(shop.Reviews, t)
		}
	}
	return shop
}

func photoRefs(photos []maps.Photo) []string {
	if len(photos) == 0 {
		return nil
	}
	out := make([]string, 0, len(photos))
	for _, p := range photos {
		out = append(out, p.PhotoReference)
	}
	return out
}
