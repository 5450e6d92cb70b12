package places

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/shinise-scout/internal/domain"
	"github.com/ahrav/shinise-scout/internal/logger"
	"github.com/ahrav/shinise-scout/internal/ports"
	"github.com/ahrav/shinise-scout/internal/testutils"
)

var asakusa = domain.LatLng{Lat: 35.7118, Lng: 139.7966}

// fakeMaps serves canned Maps web-service answers keyed by path.
type fakeMaps struct {
	t       *testing.T
	answers map[string]any
	queries map[string][]string
}

func (f *fakeMaps) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.queries[r.URL.Path] = append(f.queries[r.URL.Path], r.URL.RawQuery)
	if r.URL.Path == "/maps/api/place/photo" {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png-bytes"))
		return
	}
	body, ok := f.answers[r.URL.Path]
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	require.NoError(f.t, json.NewEncoder(w).Encode(body))
}

func newFake(t *testing.T) (*fakeMaps, *Client, *testutils.RecordingMetrics) {
	t.Helper()
	f := &fakeMaps{t: t, answers: make(map[string]any), queries: make(map[string][]string)}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	metrics := testutils.NewRecordingMetrics()
	c, err := NewClient(Config{APIKey: "AIza-test", BaseURL: srv.URL, QPS: 1000}, logger.NewTestLogger(t), metrics)
	require.NoError(t, err)
	return f, c, metrics
}

func searchAnswer() map[string]any {
	return map[string]any{
		"status": "OK",
		"results": []map[string]any{
			{
				"place_id":          "p1",
				"name":              "神谷バー",
				"formatted_address": "日本、〒111-0032 東京都台東区浅草１丁目",
				"geometry":          map[string]any{"location": map[string]any{"lat": 35.7109, "lng": 139.7966}},
				"types":             []string{"bar", "restaurant"},
				"rating":            3.9,
				"photos":            []map[string]any{{"photo_reference": "ref-1", "width": 400, "height": 300}},
			},
			{"name": "no id"},
		},
	}
}

func TestNewClient_RequiresKey(t *testing.T) {
	_, err := NewClient(Config{}, nil, nil)
	var ce *ports.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.ErrorIs(t, err, domain.ErrEmptyValue)
}

func TestClient_SearchNearby(t *testing.T) {
	f, c, metrics := newFake(t)
	f.answers["/maps/api/place/nearbysearch/json"] = searchAnswer()

	shops, err := c.SearchNearby(context.Background(), asakusa, 1000)
	require.NoError(t, err)

	require.Len(t, shops, 1)
	s := shops[0]
	assert.Equal(t, "p1", s.ID)
	assert.Equal(t, "神谷バー", s.Name)
	assert.Equal(t, []string{"ref-1"}, s.Photos)
	assert.Equal(t, []string{"bar", "restaurant"}, s.Types)
	assert.InDelta(t, 3.9, s.Rating, 0.001)
	require.NotNil(t, s.Location)
	assert.InDelta(t, 35.7109, s.Location.Lat, 1e-9)

	q := f.queries["/maps/api/place/nearbysearch/json"]
	require.Len(t, q, 1)
	assert.Contains(t, q[0], "radius=1000")
	assert.Contains(t, q[0], "language=ja")
	assert.Len(t, metrics.Observations("places_request"), 1)
}

func TestClient_SearchByText(t *testing.T) {
	f, c, _ := newFake(t)
	f.answers["/maps/api/place/textsearch/json"] = searchAnswer()

	shops, err := c.SearchByText(context.Background(), "神谷バー", asakusa, 500)
	require.NoError(t, err)
	assert.Len(t, shops, 1)

	q := f.queries["/maps/api/place/textsearch/json"]
	require.Len(t, q, 1)
	assert.Contains(t, q[0], "radius=500")
	assert.Contains(t, q[0], "region=jp")
}

func TestClient_GetDetails(t *testing.T) {
	f, c, _ := newFake(t)
	f.answers["/maps/api/place/details/json"] = map[string]any{
		"status": "OK",
		"result": map[string]any{
			"place_id":          "p1",
			"name":              "神谷バー",
			"formatted_address": "東京都台東区浅草１丁目",
			"geometry":          map[string]any{"location": map[string]any{"lat": 35.7109, "lng": 139.7966}},
			"reviews": []map[string]any{
				{"text": "電気ブランが名物", "rating": 5},
				{"text": "  ", "rating": 1},
				{"text": "昼から混む", "rating": 4},
			},
		},
	}

	shop, err := c.GetDetails(context.Background(), "p1")
	require.NoError(t, err)
	require.NotNil(t, shop)
	assert.Equal(t, []string{"電気ブランが名物", "昼から混む"}, shop.Reviews)
	assert.NotNil(t, shop.Location)
}

func TestClient_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status string
		check  func(t *testing.T, shop *domain.Shop, err error)
	}{
		{
			name:   "unknown place",
			status: "NOT_FOUND",
			check: func(t *testing.T, shop *domain.Shop, err error) {
				assert.NoError(t, err)
				assert.Nil(t, shop)
			},
		},
		{
			name:   "quota",
			status: "OVER_QUERY_LIMIT",
			check: func(t *testing.T, _ *domain.Shop, err error) {
				assert.ErrorIs(t, err, ports.ErrRateLimited)
			},
		},
		{
			name:   "denied",
			status: "REQUEST_DENIED",
			check: func(t *testing.T, _ *domain.Shop, err error) {
				var ue *ports.UpstreamError
				require.ErrorAs(t, err, &ue)
				assert.Equal(t, "details", ue.Operation)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, c, _ := newFake(t)
			f.answers["/maps/api/place/details/json"] = map[string]any{"status": tt.status}

			shop, err := c.GetDetails(context.Background(), "p1")
			tt.check(t, shop, err)
		})
	}
}

func TestClient_Geocode(t *testing.T) {
	f, c, _ := newFake(t)
	f.answers["/maps/api/geocode/json"] = map[string]any{
		"status": "OK",
		"results": []map[string]any{
			{"geometry": map[string]any{"location": map[string]any{"lat": 35.7118, "lng": 139.7966}}},
		},
	}

	loc, err := c.Geocode(context.Background(), "浅草駅")
	require.NoError(t, err)
	require.NotNil(t, loc)
	assert.InDelta(t, 35.7118, loc.Lat, 1e-9)

	f.answers["/maps/api/geocode/json"] = map[string]any{"status": "ZERO_RESULTS", "results": []any{}}
	loc, err = c.Geocode(context.Background(), "存在しない駅")
	require.NoError(t, err)
	assert.Nil(t, loc)
}

func TestClient_Photo(t *testing.T) {
	_, c, _ := newFake(t)

	ct, body, err := c.Photo(context.Background(), "ref-1", 400, 400)
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "image/png", ct)
	assert.Equal(t, "png-bytes", string(data))
}

func TestClient_CancelledContext(t *testing.T) {
	_, c, _ := newFake(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.SearchNearby(ctx, asakusa, 100)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}
