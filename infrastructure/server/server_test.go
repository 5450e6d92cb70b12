package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/shinise-scout/infrastructure/agents"
	"github.com/ahrav/shinise-scout/infrastructure/cache"
	"github.com/ahrav/shinise-scout/infrastructure/middleware"
	"github.com/ahrav/shinise-scout/internal/application"
	"github.com/ahrav/shinise-scout/internal/domain"
	"github.com/ahrav/shinise-scout/internal/logger"
	"github.com/ahrav/shinise-scout/internal/ports"
	"github.com/ahrav/shinise-scout/internal/testutils"
)

type stubImages struct{}

func (stubImages) GenerateImage(context.Context, string) (string, []byte, error) {
	return "image/png", []byte{1, 2, 3}, nil
}

type fixture struct {
	model  *testutils.MockModelClient
	places *testutils.MockPlaces
	srv    *Server
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	log := logger.NewTestLogger(t)
	model := testutils.NewMockModelClient()
	places := testutils.NewMockPlaces()
	metrics := testutils.NewRecordingMetrics()

	exec := application.NewExecutor(model, application.RetryConfig{}, log, metrics)
	c := cache.NewLayer(cache.NewMemoryStore(), cache.DefaultTTL, log, nil)

	if cfg.KeepAliveInterval == 0 {
		cfg.KeepAliveInterval = time.Hour
	}
	srv := New(cfg, Deps{
		Agents:   application.NewAgentService(exec, c, log),
		Search:   application.NewPipeline(exec, places, places, c, application.PipelineConfig{}, log, metrics),
		Shops:    application.NewShopService(exec, places, c, log),
		Reviews:  application.NewReviewService(exec, places, log),
		Course:   application.NewCourseService(stubImages{}, log),
		Photos:   places,
		Gatherer: prometheus.NewRegistry(),
		Log:      log,
		Metrics:  metrics,
	})
	return &fixture{model: model, places: places, srv: srv}
}

func (f *fixture) do(method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func TestServer_Healthz(t *testing.T) {
	f := newFixture(t, Config{})

	rec := f.do(http.MethodGet, "/healthz", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}

func TestServer_ListAgents(t *testing.T) {
	f := newFixture(t, Config{})

	rec := f.do(http.MethodGet, "/api/agents", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var entries []agents.CatalogEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	assert.Len(t, entries, len(agents.AgentTasks()))
}

func TestServer_OriginCheck(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]string
		want   int
	}{
		{name: "no origin", want: http.StatusOK},
		{name: "localhost", header: map[string]string{"Origin": "http://localhost:3000"}, want: http.StatusOK},
		{name: "loopback referer", header: map[string]string{"Referer": "http://127.0.0.1:8080/shop"}, want: http.StatusOK},
		{name: "allowed prefix", header: map[string]string{"Origin": "https://shinise.example.com"}, want: http.StatusOK},
		{name: "foreign origin", header: map[string]string{"Origin": "https://evil.example.net"}, want: http.StatusForbidden},
		{name: "localhost lookalike host", header: map[string]string{"Origin": "https://localhost.evil.example"}, want: http.StatusForbidden},
		{name: "localhost in path", header: map[string]string{"Referer": "https://evil.example.net/localhost/127.0.0.1"}, want: http.StatusForbidden},
		{name: "allowed prefix lookalike", header: map[string]string{"Origin": "https://shinise.example.com.evil.net"}, want: http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Config{AllowedOrigins: []string{"https://shinise.example.com"}})

			rec := f.do(http.MethodGet, "/api/agents", "", tt.header)

			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusForbidden {
				assert.Equal(t, "Forbidden: Unauthorized Origin", errorOf(t, rec))
			}
		})
	}
}

func TestServer_RunAgent(t *testing.T) {
	// Given a model answering the praiser agent
	f := newFixture(t, Config{})
	f.model.SetResponse("praiser", `{"summary":"名店","details":["創業百年"],"score":88}`)

	// When the agent is requested
	rec := f.do(http.MethodPost, "/api/agent",
		`{"agentType":"praiser","shopName":"神谷バー","shopAddress":"浅草","shopId":"p1"}`, nil)

	// Then the result is returned as plain JSON
	require.Equal(t, http.StatusOK, rec.Code)
	var res domain.AgentResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, domain.TaskPraiser, res.AgentType)
	assert.Equal(t, "名店", res.Summary)
	require.NotNil(t, res.Score)
	assert.Equal(t, 88, *res.Score)
}

func TestServer_RunAgentRejectsBadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "unknown agent", body: `{"agentType":"oracle","shopName":"x"}`},
		{name: "pipeline task", body: `{"agentType":"score","shopName":"x"}`},
		{name: "missing shop name", body: `{"agentType":"praiser"}`},
		{name: "malformed json", body: `{"agentType":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Config{})

			rec := f.do(http.MethodPost, "/api/agent", tt.body, nil)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, f.model.Calls())
		})
	}
}

func TestServer_RunAgentKeepAlive(t *testing.T) {
	// Given a slow model and a short keep-alive interval
	f := newFixture(t, Config{KeepAliveInterval: 5 * time.Millisecond})
	f.model.Delay = 60 * time.Millisecond

	// When the agent is requested
	rec := f.do(http.MethodPost, "/api/agent", `{"agentType":"critic","shopName":"尾張屋"}`, nil)

	// Then spaces precede the JSON body on a committed 200
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, " "))
	var res domain.AgentResult
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(body)), &res))
	assert.Equal(t, domain.TaskCritic, res.AgentType)
}

func TestServer_BatchStreamsNDJSON(t *testing.T) {
	// Given three requested agents
	f := newFixture(t, Config{DispatchConcurrency: 2})

	// When the batch runs
	rec := f.do(http.MethodPost, "/api/agents/batch",
		`{"agentTypes":["praiser","critic","sake"],"shopName":"神谷バー","shopId":"p1"}`, nil)

	// Then one line per agent is streamed
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-ndjson", rec.Header().Get(echo.HeaderContentType))

	seen := map[domain.TaskID]bool{}
	sc := bufio.NewScanner(strings.NewReader(rec.Body.String()))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var res domain.AgentResult
		require.NoError(t, json.Unmarshal([]byte(line), &res))
		seen[res.AgentType] = true
	}
	assert.Equal(t, map[domain.TaskID]bool{
		domain.TaskPraiser: true,
		domain.TaskCritic:  true,
		domain.TaskSake:    true,
	}, seen)
}

func TestServer_BatchUnknownAgent(t *testing.T) {
	f := newFixture(t, Config{})

	rec := f.do(http.MethodPost, "/api/agents/batch", `{"agentTypes":["nope"],"shopName":"x"}`, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_Search(t *testing.T) {
	// Given a geocodable station with nearby shops and no AI candidates
	f := newFixture(t, Config{})
	f.places.Geo["浅草駅"] = &domain.LatLng{Lat: 35.71, Lng: 139.79}
	f.places.Text["bar"] = []domain.Shop{{ID: "p1", Name: "神谷バー"}}
	f.model.SetResponse("candidates", `{"candidates":[]}`)
	f.model.SetResponse("score", `{"score":80,"reasoning":"r","short_summary":"s","is_shinise":true,"founding_year":"1880"}`)

	// When searching by station
	rec := f.do(http.MethodGet, "/api/search?station=浅草駅&genre=bar", "", nil)

	// Then the keyword results are returned
	require.Equal(t, http.StatusOK, rec.Code)
	var resp application.SearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, application.SourceKeyword, resp.Source)
}

func TestServer_SearchErrors(t *testing.T) {
	tests := []struct {
		name  string
		query string
		setup func(*fixture)
		want  int
	}{
		{name: "nothing to search", query: "", want: http.StatusBadRequest},
		{name: "invalid mode", query: "station=浅草駅&mode=chaos", want: http.StatusBadRequest},
		{name: "bad coordinates", query: "lat=north&lng=1", want: http.StatusBadRequest},
		{name: "bad radius", query: "station=x&radius=far", want: http.StatusBadRequest},
		{name: "unknown station", query: "station=無名駅", want: http.StatusNotFound},
		{
			name:  "places down",
			query: "lat=35.7&lng=139.7",
			setup: func(f *fixture) {
				f.places.NearbyErr = ports.NewUpstreamError("maps", "nearby", errors.New("503"))
			},
			want: http.StatusBadGateway,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Config{})
			if tt.setup != nil {
				tt.setup(f)
			}

			rec := f.do(http.MethodGet, "/api/search?"+tt.query, "", nil)

			assert.Equal(t, tt.want, rec.Code)
			assert.NotEmpty(t, errorOf(t, rec))
		})
	}
}

func TestServer_ShopDetail(t *testing.T) {
	f := newFixture(t, Config{})
	f.places.Details["p1"] = &domain.Shop{ID: "p1", Name: "神谷バー", Reviews: []string{"良い"}}
	f.model.SetResponse("guide", `{"history_background":"明治創業","smoking_status":"禁煙"}`)

	rec := f.do(http.MethodGet, "/api/shop/p1", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var detail application.ShopDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.Equal(t, "神谷バー", detail.Shop.Name)
	assert.Equal(t, "明治創業", detail.AIGuide.HistoryBackground)

	missing := f.do(http.MethodGet, "/api/shop/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, missing.Code)
}

func TestServer_AnalyzeReviews(t *testing.T) {
	f := newFixture(t, Config{})
	f.places.Details["p1"] = &domain.Shop{ID: "p1", Name: "神谷バー"}

	rec := f.do(http.MethodPost, "/api/analyze-reviews", `{"placeId":"p1"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPost, "/api/analyze-reviews", `{"placeId":"p1","shopName":"神谷バー"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body, "analysis")
}

func TestServer_CourseMap(t *testing.T) {
	f := newFixture(t, Config{})

	rec := f.do(http.MethodPost, "/api/course/map", `{"shops":[]}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPost, "/api/course/map",
		`{"shops":[{"displayName":"神谷バー"}],"station":"浅草"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "data:image/png;base64,AQID", body["mapUrl"])
}

func TestServer_Photo(t *testing.T) {
	f := newFixture(t, Config{})
	f.places.PhotoBody = []byte("jpeg-bytes")

	rec := f.do(http.MethodGet, "/api/image", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing photo name", errorOf(t, rec))

	rec = f.do(http.MethodGet, "/api/image?name=ref1&maxWidthPx=9999", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "jpeg-bytes", rec.Body.String())
	assert.Equal(t, "image/jpeg", rec.Header().Get(echo.HeaderContentType))
	assert.Equal(t, photoCacheAge, rec.Header().Get(echo.HeaderCacheControl))
}

func TestPhotoDim(t *testing.T) {
	tests := []struct {
		in   string
		want uint
	}{
		{in: "", want: maxPhotoPx},
		{in: "200", want: 200},
		{in: "4000", want: maxPhotoPx},
		{in: "-3", want: maxPhotoPx},
		{in: "abc", want: maxPhotoPx},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, photoDim(tt.in))
		})
	}
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "http error", err: echo.NewHTTPError(http.StatusTeapot, "x"), want: http.StatusTeapot},
		{name: "validation", err: domain.NewValidationError("search"), want: http.StatusBadRequest},
		{name: "unknown task", err: fmt.Errorf("%w: x", domain.ErrUnknownTask), want: http.StatusBadRequest},
		{name: "not found", err: ports.NewNotFoundError("station", "x"), want: http.StatusNotFound},
		{name: "rate limited", err: ports.NewRateLimitError("maps", errors.New("429")), want: http.StatusTooManyRequests},
		{name: "upstream", err: ports.NewUpstreamError("maps", "geocode", errors.New("x")), want: http.StatusBadGateway},
		{name: "other", err: errors.New("boom"), want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusOf(tt.err))
		})
	}
}

func TestServer_MetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := middleware.NewPrometheusMetrics(reg)
	collector.RecordCounter("cache_hits_total", 1, map[string]string{"collection": "searches"})

	srv := New(Config{}, Deps{Gatherer: reg})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "shinise_cache_hits_total")
}

func TestOriginAllowed(t *testing.T) {
	allowed := []string{"https://shinise.example.com"}
	tests := []struct {
		origin string
		want   bool
	}{
		{origin: "", want: true},
		{origin: "http://localhost:3000", want: true},
		{origin: "http://[::1]:8080/page", want: true},
		{origin: "https://shinise.example.com/shop/p1", want: true},
		{origin: "HTTPS://SHINISE.EXAMPLE.COM", want: true},
		{origin: "http://shinise.example.com", want: false},
		{origin: "https://localhost.evil.example", want: false},
		{origin: "https://evil-localhost.example", want: false},
		{origin: "https://shinise.example.com.evil.net", want: false},
		{origin: "localhost", want: false},
		{origin: "://bad", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			assert.Equal(t, tt.want, originAllowed(tt.origin, allowed))
		})
	}
}
