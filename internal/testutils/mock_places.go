package testutils

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/ahrav/shinise-scout/internal/domain"
	"github.com/ahrav/shinise-scout/internal/ports"
)

// MockPlaces implements the places, photo and geocoding ports from
// in-memory tables.
type MockPlaces struct {
	mu sync.Mutex

	Nearby    []domain.Shop
	NearbyErr error

	// Text maps a query to its results. Unknown queries return nothing.
	Text    map[string][]domain.Shop
	TextErr error

	Details    map[string]*domain.Shop
	DetailsErr error

	Geo    map[string]*domain.LatLng
	GeoErr error

	PhotoBody []byte
	PhotoErr  error

	textQueries []string
	nearbyCalls int
	detailCalls int
	geoCalls    int
}

var (
	_ ports.PlacesProvider = (*MockPlaces)(nil)
	_ ports.PhotoProvider  = (*MockPlaces)(nil)
	_ ports.Geocoder       = (*MockPlaces)(nil)
)

// NewMockPlaces returns an empty backend.
func NewMockPlaces() *MockPlaces {
	return &MockPlaces{
		Text:    make(map[string][]domain.Shop),
		Details: make(map[string]*domain.Shop),
		Geo:     make(map[string]*domain.LatLng),
	}
}

// SearchNearby implements ports.PlacesProvider.
func (m *MockPlaces) SearchNearby(_ context.Context, _ domain.LatLng, _ int) ([]domain.Shop, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nearbyCalls++
	if m.NearbyErr != nil {
		return nil, m.NearbyErr
	}
	return append([]domain.Shop(nil), m.Nearby...), nil
}

// SearchByText implements ports.PlacesProvider.
func (m *MockPlaces) SearchByText(_ context.Context, query string, _ domain.LatLng, _ int) ([]domain.Shop, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.textQueries = append(m.textQueries, query)
	if m.TextErr != nil {
		return nil, m.TextErr
	}
	return append([]domain.Shop(nil), m.Text[query]...), nil
}

// GetDetails implements ports.PlacesProvider.
func (m *MockPlaces) GetDetails(_ context.Context, placeID string) (*domain.Shop, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detailCalls++
	if m.DetailsErr != nil {
		return nil, m.DetailsErr
	}
	shop, ok := m.Details[placeID]
	if !ok {
		return nil, nil
	}
	cp := *shop
	return &cp, nil
}

// Photo implements ports.PhotoProvider.
func (m *MockPlaces) Photo(_ context.Context, _ string, _, _ uint) (string, io.ReadCloser, error) {
	if m.PhotoErr != nil {
		return "", nil, m.PhotoErr
	}
	return "image/jpeg", io.NopCloser(bytes.NewReader(m.PhotoBody)), nil
}

// Geocode implements ports.Geocoder.
func (m *MockPlaces) Geocode(_ context.Context, address string) (*domain.LatLng, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.geoCalls++
	if m.GeoErr != nil {
		return nil, m.GeoErr
	}
	return m.Geo[address], nil
}

// TextQueries returns the queries passed to SearchByText in call order.
func (m *MockPlaces) TextQueries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.textQueries...)
}

// NearbyCalls returns how often SearchNearby ran.
func (m *MockPlaces) NearbyCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nearbyCalls
}

// DetailCalls returns how often GetDetails ran.
func (m *MockPlaces) DetailCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.detailCalls
}

// GeocodeCalls returns how often Geocode ran.
func (m *MockPlaces) GeocodeCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.geoCalls
}
