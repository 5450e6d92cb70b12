// Package scout is a Go client for the shinise-scout HTTP API. Responses
// are kept in a session cache keyed by request URL; force requests skip the
// read and refresh the entry.
package scout

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ahrav/shinise-scout/infrastructure/agents"
	"github.com/ahrav/shinise-scout/internal/application"
	"github.com/ahrav/shinise-scout/internal/domain"
	"github.com/ahrav/shinise-scout/internal/logger"
)

// DefaultTimeout bounds one HTTP exchange. Agent runs may retry upstream
// for about a minute, so it is generous.
const DefaultTimeout = 3 * time.Minute

// APIError is a non-success answer from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("scout api: %d %s", e.StatusCode, e.Message)
}

// Client talks to one shinise-scout server.
type Client struct {
	baseURL     string
	http        *http.Client
	session     *SessionCache
	log         logger.Logger
	concurrency int
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

// WithSessionCache shares a session cache between clients.
func WithSessionCache(s *SessionCache) Option { return func(c *Client) { c.session = s } }

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option { return func(c *Client) { c.log = l } }

// WithConcurrency sets how many agents RunAgents keeps in flight.
func WithConcurrency(n int) Option { return func(c *Client) { c.concurrency = n } }

// New returns a client for baseURL, e.g. "http://localhost:8080".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		http:        &http.Client{Timeout: DefaultTimeout},
		session:     NewSessionCache(),
		log:         logger.NewNoOpLogger(),
		concurrency: application.DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Session exposes the session cache.
func (c *Client) Session() *SessionCache { return c.session }

// do sends one request and returns the body with keep-alive padding
// trimmed. A 200 stream that ends in an error object is reported as an
// APIError.
func (c *Client) do(ctx context.Context, method, target string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, target, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", target, err)
	}
	raw = bytes.TrimSpace(raw)

	var envelope struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(raw, &envelope)
	if resp.StatusCode >= http.StatusBadRequest || envelope.Error != "" {
		msg := envelope.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		code := resp.StatusCode
		if code < http.StatusBadRequest {
			code = http.StatusBadGateway
		}
		return nil, &APIError{StatusCode: code, Message: msg}
	}
	return raw, nil
}

// cached serves key from the session cache unless force, otherwise calls
// fetch and stores its body when keep approves it.
func (c *Client) cached(key string, force bool, fetch func() ([]byte, error), keep func([]byte) bool) ([]byte, error) {
	if !force {
		if b, ok := c.session.Get(key); ok {
			c.log.Debug("session cache hit", map[string]any{"key": key})
			return b, nil
		}
	}
	b, err := fetch()
	if err != nil {
		return nil, err
	}
	if keep == nil || keep(b) {
		c.session.Set(key, b)
	}
	return b, nil
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, force bool, dst any) error {
	target := c.baseURL + path
	if enc := q.Encode(); enc != "" {
		target += "?" + enc
	}
	fetchURL := target
	if force {
		fq := url.Values{}
		for k, v := range q {
			fq[k] = v
		}
		fq.Set("force", "true")
		fetchURL = c.baseURL + path + "?" + fq.Encode()
	}

	b, err := c.cached(target, force, func() ([]byte, error) {
		return c.do(ctx, http.MethodGet, fetchURL, nil)
	}, nil)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dst)
}

// Agents lists the analysis catalog.
func (c *Client) Agents(ctx context.Context) ([]agents.CatalogEntry, error) {
	var out []agents.CatalogEntry
	if err := c.getJSON(ctx, "/api/agents", nil, false, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SearchParams selects shops by station name or coordinates.
type SearchParams struct {
	Station  string
	Location *domain.LatLng
	Genre    string
	Mode     domain.Mode
	Radius   int
	Force    bool
}

func (p SearchParams) values() url.Values {
	q := url.Values{}
	if p.Station != "" {
		q.Set("station", p.Station)
	}
	if p.Location != nil {
		q.Set("lat", strconv.FormatFloat(p.Location.Lat, 'f', -1, 64))
		q.Set("lng", strconv.FormatFloat(p.Location.Lng, 'f', -1, 64))
	}
	if p.Genre != "" {
		q.Set("genre", p.Genre)
	}
	if p.Mode != "" {
		q.Set("mode", string(p.Mode))
	}
	if p.Radius > 0 {
		q.Set("radius", strconv.Itoa(p.Radius))
	}
	return q
}

// Search runs the discovery pipeline.
func (c *Client) Search(ctx context.Context, p SearchParams) (*application.SearchResponse, error) {
	var out application.SearchResponse
	if err := c.getJSON(ctx, "/api/search", p.values(), p.Force, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Shop returns a shop with its guide.
func (c *Client) Shop(ctx context.Context, placeID string, force bool) (*application.ShopDetail, error) {
	var out application.ShopDetail
	if err := c.getJSON(ctx, "/api/shop/"+url.PathEscape(placeID), nil, force, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type agentPayload struct {
	AgentType   domain.TaskID `json:"agentType"`
	ShopName    string        `json:"shopName"`
	ShopAddress string        `json:"shopAddress,omitempty"`
	ShopID      string        `json:"shopId,omitempty"`
	Force       bool          `json:"force,omitempty"`
}

func agentKey(shop domain.Shop, id domain.TaskID) string {
	return "agent:" + shop.ID + "/" + shop.Name + "/" + string(id)
}

// RunAgent runs one agent against shop. Degraded results are returned but
// not kept in the session cache.
func (c *Client) RunAgent(ctx context.Context, id domain.TaskID, shop domain.Shop, force bool) (domain.AgentResult, error) {
	payload := agentPayload{
		AgentType:   id,
		ShopName:    shop.Name,
		ShopAddress: shop.Address,
		ShopID:      shop.ID,
		Force:       force,
	}
	b, err := c.cached(agentKey(shop, id), force,
		func() ([]byte, error) { return c.do(ctx, http.MethodPost, c.baseURL+"/api/agent", payload) },
		func(b []byte) bool {
			var r domain.AgentResult
			return json.Unmarshal(b, &r) == nil && !r.IsDegraded()
		},
	)
	if err != nil {
		return domain.AgentResult{}, err
	}
	var out domain.AgentResult
	if err := json.Unmarshal(b, &out); err != nil {
		return domain.AgentResult{}, fmt.Errorf("decoding agent result: %w", err)
	}
	return out, nil
}

// RunAgents runs ids against shop with a bounded number in flight, calling
// onResult in completion order from a single goroutine. Transport failures
// become failed results so every agent reports exactly once.
func (c *Client) RunAgents(
	ctx context.Context,
	ids []domain.TaskID,
	shop domain.Shop,
	force bool,
	onResult func(domain.AgentResult),
) (map[domain.TaskID]domain.AgentResult, error) {
	tasks := make([]*agents.Task, 0, len(ids))
	for _, id := range ids {
		t, err := agents.Lookup(id)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}

	board := application.NewBoard()
	board.MarkPending(shop.ID, tasks)

	done := application.RunPool(ctx, c.concurrency, tasks, func(ctx context.Context, t *agents.Task) domain.AgentResult {
		res, err := c.RunAgent(ctx, t.ID(), shop, force)
		if err != nil {
			c.log.Warn("agent request failed", map[string]any{
				"agent": t.ID(),
				"shop":  shop.Name,
				"error": err.Error(),
			})
			return application.DegradedResult(t, err)
		}
		return res
	})

	emissions := make(chan application.Emission)
	go func() {
		defer close(emissions)
		for d := range done {
			emissions <- application.Emission{ShopID: shop.ID, Result: d.Result}
		}
	}()
	board.Consume(emissions, func(e application.Emission) {
		if onResult != nil {
			onResult(e.Result)
		}
	})
	return board.Results(shop.ID), nil
}

// AnalyzeReviews grades the reviews of a shop.
func (c *Client) AnalyzeReviews(ctx context.Context, placeID, shopName string) (*domain.ReviewAnalysis, error) {
	b, err := c.do(ctx, http.MethodPost, c.baseURL+"/api/analyze-reviews",
		map[string]string{"placeId": placeID, "shopName": shopName})
	if err != nil {
		return nil, err
	}
	var out struct {
		Analysis *domain.ReviewAnalysis `json:"analysis"`
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decoding analysis: %w", err)
	}
	if out.Analysis == nil {
		return nil, errors.New("scout api: response has no analysis")
	}
	return out.Analysis, nil
}

// CourseMap draws a walking-course map and returns its URL.
func (c *Client) CourseMap(ctx context.Context, station string, shopNames []string) (string, error) {
	type shop struct {
		Name string `json:"displayName"`
	}
	shops := make([]shop, len(shopNames))
	for i, n := range shopNames {
		shops[i] = shop{Name: n}
	}
	b, err := c.do(ctx, http.MethodPost, c.baseURL+"/api/course/map",
		map[string]any{"shops": shops, "station": station})
	if err != nil {
		return "", err
	}
	var out struct {
		MapURL string `json:"mapUrl"`
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return "", fmt.Errorf("decoding map: %w", err)
	}
	return out.MapURL, nil
}
