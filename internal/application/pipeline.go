package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ahrav/shinise-scout/infrastructure/agents"
	"github.com/ahrav/shinise-scout/infrastructure/cache"
	"github.com/ahrav/shinise-scout/internal/domain"
	"github.com/ahrav/shinise-scout/internal/logger"
	"github.com/ahrav/shinise-scout/internal/ports"
)

// Result sources.
const (
	SourceAI      = "ai"
	SourceKeyword = "keyword"
)

const (
	// scoreFailedSummary marks an AI-sourced shop whose scoring call failed.
	scoreFailedSummary = "判定不能"
	scoreFailedPrefix  = "AIエラー: "
)

// PipelineConfig sizes the discovery pipeline.
type PipelineConfig struct {
	// DefaultGenre names the categories the candidate prompt asks for when
	// a request has no genre. Keyword search still runs a nearby search.
	DefaultGenre string
	// DefaultRadius is the search radius in meters when a request has none.
	DefaultRadius int
	// AIScoreLimit is how many AI-sourced shops receive a scoring call.
	AIScoreLimit int
	// FallbackScoreLimit is how many keyword-sourced shops receive one.
	FallbackScoreLimit int
	// HydrateConcurrency bounds concurrent place lookups.
	HydrateConcurrency int
	// ScoreConcurrency bounds concurrent scoring calls.
	ScoreConcurrency int
}

// DefaultPipelineConfig returns the production sizing.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		DefaultGenre:       agents.DefaultGenre,
		DefaultRadius:      1000,
		AIScoreLimit:       10,
		FallbackScoreLimit: 5,
		HydrateConcurrency: 5,
		ScoreConcurrency:   5,
	}
}

func (c PipelineConfig) withDefaults() PipelineConfig {
	d := DefaultPipelineConfig()
	if strings.TrimSpace(c.DefaultGenre) == "" {
		c.DefaultGenre = d.DefaultGenre
	}
	if c.DefaultRadius <= 0 {
		c.DefaultRadius = d.DefaultRadius
	}
	if c.AIScoreLimit <= 0 {
		c.AIScoreLimit = d.AIScoreLimit
	}
	if c.FallbackScoreLimit <= 0 {
		c.FallbackScoreLimit = d.FallbackScoreLimit
	}
	if c.HydrateConcurrency <= 0 {
		c.HydrateConcurrency = d.HydrateConcurrency
	}
	if c.ScoreConcurrency <= 0 {
		c.ScoreConcurrency = d.ScoreConcurrency
	}
	return c
}

// SearchRequest is one discovery request.
type SearchRequest struct {
	// Query is a station or place name. It is geocoded when Location is nil
	// and names the area in the candidate prompt.
	Query    string
	Location *domain.LatLng
	Genre    string
	Mode     domain.Mode
	Radius   int
	// Force skips the cache read but still writes the fresh result.
	Force bool
}

// SearchResponse is the outcome of a discovery request.
type SearchResponse struct {
	Shops  domain.SearchResultSet `json:"shops"`
	Count  int                    `json:"count"`
	Source string                 `json:"source"`
	Cached bool                   `json:"cached"`
}

// searchRecord is the stored form of a search result set.
type searchRecord struct {
	Shops    domain.SearchResultSet `json:"shops"`
	Count    int                    `json:"count"`
	Source   string                 `json:"source"`
	CachedAt time.Time              `json:"cachedAt"`
}

// discovered is a shop found by either strategy, with the candidate data
// the model suggested for it when AI-sourced.
type discovered struct {
	shop      domain.Shop
	candidate *domain.Candidate
}

// Pipeline runs geocode, cache check, discovery, hydration, scoring and
// merge for a search request.
type Pipeline struct {
	exec     *Executor
	places   ports.PlacesProvider
	geocoder ports.Geocoder
	cache    ports.Cache
	cfg      PipelineConfig
	log      logger.Logger
	metrics  ports.MetricsCollector
	tracer   trace.Tracer
	now      func() time.Time
}

// NewPipeline wires the pipeline. cache, log and metrics may be nil.
func NewPipeline(
	exec *Executor,
	places ports.PlacesProvider,
	geocoder ports.Geocoder,
	c ports.Cache,
	cfg PipelineConfig,
	log logger.Logger,
	metrics ports.MetricsCollector,
) *Pipeline {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &Pipeline{
		exec:     exec,
		places:   places,
		geocoder: geocoder,
		cache:    c,
		cfg:      cfg.withDefaults(),
		log:      log,
		metrics:  metrics,
		tracer:   otel.Tracer("github.com/ahrav/shinise-scout/pipeline"),
		now:      time.Now,
	}
}

func (p *Pipeline) validate(req SearchRequest) error {
	v := domain.NewValidationError("search request")
	if strings.TrimSpace(req.Query) == "" && req.Location == nil {
		v.AddError("either a station name or coordinates are required")
	}
	if req.Radius < 0 {
		v.AddError("radius must not be negative")
	}
	if req.Location != nil && (req.Location.Lat < -90 || req.Location.Lat > 90 || req.Location.Lng < -180 || req.Location.Lng > 180) {
		v.AddError("coordinates out of range")
	}
	return v.Err()
}

// Search runs the pipeline for req.
//
// Errors:
//   - *domain.ValidationError for a request without a query or coordinates
//   - *ports.NotFoundError when the station or any shop cannot be found
//   - *ports.UpstreamError when geocoding or the places search fails
func (p *Pipeline) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.search", trace.WithAttributes(
		attribute.String("query", req.Query),
		attribute.String("genre", req.Genre),
		attribute.String("mode", string(req.Mode)),
		attribute.Bool("force", req.Force),
	))
	defer span.End()

	resp, err := p.search(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("result_count", resp.Count),
		attribute.String("source", resp.Source),
		attribute.Bool("cached", resp.Cached),
	)
	return resp, nil
}

func (p *Pipeline) search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	if err := p.validate(req); err != nil {
		return nil, err
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Mode == "" {
		req.Mode = domain.ModeStandard
	}
	if req.Radius == 0 {
		req.Radius = p.cfg.DefaultRadius
	}

	// Named queries are keyed by name and resolved only on a miss.
	locationKey := req.Query
	if locationKey == "" {
		locationKey = req.Location.String()
	}
	key := cache.SearchKey(locationKey, req.Genre, req.Mode)

	if p.cache != nil && !req.Force {
		var rec searchRecord
		if p.cache.Lookup(ctx, cache.CollectionSearches, key, &rec) {
			p.log.Info("search cache hit", map[string]any{"key": key, "count": rec.Count})
			return &SearchResponse{Shops: rec.Shops, Count: rec.Count, Source: rec.Source, Cached: true}, nil
		}
	}

	center, err := p.resolveCenter(ctx, req)
	if err != nil {
		return nil, err
	}

	found, source, err := p.discover(ctx, req, center)
	if err != nil {
		return nil, err
	}

	shops := p.score(ctx, found, source)
	shops.SortByScore()

	p.metrics.RecordCounter("pipeline_searches_total", 1, map[string]string{"source": source})
	resp := &SearchResponse{Shops: shops, Count: len(shops), Source: source}

	if p.cache != nil {
		p.cache.Store(ctx, cache.CollectionSearches, key, searchRecord{
			Shops:    shops,
			Count:    len(shops),
			Source:   source,
			CachedAt: p.now(),
		})
	}
	return resp, nil
}

func (p *Pipeline) resolveCenter(ctx context.Context, req SearchRequest) (domain.LatLng, error) {
	if req.Location != nil {
		return *req.Location, nil
	}
	defer p.stage("geocode")()

	loc, err := p.geocoder.Geocode(ctx, req.Query)
	if err != nil {
		return domain.LatLng{}, ports.NewUpstreamError("geocoding", "geocode", err)
	}
	if loc == nil {
		return domain.LatLng{}, ports.NewNotFoundError("station", req.Query)
	}
	return *loc, nil
}

// stage records the latency of one pipeline stage. Use as
// defer p.stage("name")().
func (p *Pipeline) stage(name string) func() {
	start := time.Now()
	return func() {
		p.metrics.RecordLatency("pipeline_stage", time.Since(start), map[string]string{"stage": name})
	}
}

// discover asks the model for candidates and falls back to keyword search
// when that yields no hydrated shop.
func (p *Pipeline) discover(ctx context.Context, req SearchRequest, center domain.LatLng) ([]discovered, string, error) {
	if req.Query != "" {
		candidates := p.candidates(ctx, req)
		if len(candidates) > 0 {
			found := p.hydrate(ctx, candidates, center, req.Radius)
			if len(found) > 0 {
				return found, SourceAI, nil
			}
			p.log.Warn("no candidate resolved to a place", map[string]any{"query": req.Query, "candidates": len(candidates)})
		}
	}

	found, err := p.keywordSearch(ctx, req, center)
	if err != nil {
		return nil, "", err
	}
	return found, SourceKeyword, nil
}

func (p *Pipeline) candidates(ctx context.Context, req SearchRequest) []domain.Candidate {
	defer p.stage("candidates")()
	ctx, span := p.tracer.Start(ctx, "pipeline.candidates")
	defer span.End()

	genre := strings.TrimSpace(req.Genre)
	if genre == "" {
		genre = p.cfg.DefaultGenre
	}
	raw, err := p.exec.Complete(ctx, agents.Candidates, agents.PromptInput{
		Area:  req.Query,
		Genre: genre,
		Mode:  req.Mode,
	})
	if err != nil {
		span.RecordError(err)
		p.log.Warn("candidate discovery failed", map[string]any{"query": req.Query, "error": err.Error()})
		return nil
	}

	var out struct {
		Candidates []domain.Candidate `json:"candidates"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		span.RecordError(err)
		p.log.Warn("decoding candidates", map[string]any{"error": err.Error()})
		return nil
	}

	valid := out.Candidates[:0]
	for _, c := range out.Candidates {
		if strings.TrimSpace(c.Name) != "" {
			valid = append(valid, c)
		}
	}
	span.SetAttributes(attribute.Int("candidates", len(valid)))
	return valid
}

// hydrate resolves candidate names to place records. Unresolved candidates
// are dropped; the first occurrence of a place wins; discovery order is
// preserved.
func (p *Pipeline) hydrate(ctx context.Context, candidates []domain.Candidate, center domain.LatLng, radius int) []discovered {
	defer p.stage("hydrate")()

	resolved := make([]*domain.Shop, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.HydrateConcurrency)
	for i, c := range candidates {
		g.Go(func() error {
			results, err := p.places.SearchByText(gctx, c.Name, center, radius)
			if err != nil {
				p.log.Warn("hydrating candidate", map[string]any{"candidate": c.Name, "error": err.Error()})
				return nil
			}
			resolved[i] = closestByName(c.Name, results)
			return nil
		})
	}
	_ = g.Wait()

	seen := make(map[string]bool, len(candidates))
	out := make([]discovered, 0, len(candidates))
	for i, shop := range resolved {
		if shop == nil || seen[shop.ID] {
			continue
		}
		seen[shop.ID] = true
		c := candidates[i]
		out = append(out, discovered{shop: *shop, candidate: &c})
	}
	return out
}

// closestByName returns the result whose name has the smallest edit
// distance to name. Ties keep provider order.
func closestByName(name string, results []domain.Shop) *domain.Shop {
	if len(results) == 0 {
		return nil
	}
	target := strings.ToLower(strings.TrimSpace(name))
	best, bestDist := 0, -1
	for i, r := range results {
		d := levenshtein.ComputeDistance(target, strings.ToLower(strings.TrimSpace(r.Name)))
		if bestDist < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	shop := results[best]
	return &shop
}

func (p *Pipeline) keywordSearch(ctx context.Context, req SearchRequest, center domain.LatLng) ([]discovered, error) {
	defer p.stage("keyword")()

	var (
		shops []domain.Shop
		err   error
	)
	if genre := strings.TrimSpace(req.Genre); genre != "" {
		shops, err = p.places.SearchByText(ctx, genre, center, req.Radius)
	} else {
		shops, err = p.places.SearchNearby(ctx, center, req.Radius)
	}
	if err != nil {
		return nil, ports.NewUpstreamError("places", "search", err)
	}
	if len(shops) == 0 {
		where := req.Query
		if where == "" {
			where = center.String()
		}
		return nil, ports.NewNotFoundError("shops", where)
	}

	out := make([]discovered, 0, len(shops))
	seen := make(map[string]bool, len(shops))
	for _, s := range shops {
		if seen[s.ID] {
			continue
		}
		seen[s.ID] = true
		out = append(out, discovered{shop: s})
	}
	return out, nil
}

// score gives the first N shops a scoring call and the rest a placeholder.
func (p *Pipeline) score(ctx context.Context, found []discovered, source string) domain.SearchResultSet {
	defer p.stage("score")()

	limit := p.cfg.FallbackScoreLimit
	if source == SourceAI {
		limit = p.cfg.AIScoreLimit
	}
	limit = min(limit, len(found))

	out := make(domain.SearchResultSet, len(found))
	for i := limit; i < len(found); i++ {
		out[i] = domain.ScoredShop{Shop: found[i].shop, AIAnalysis: domain.PlaceholderVerdict()}
	}

	for c := range RunPool(ctx, p.cfg.ScoreConcurrency, found[:limit], func(ctx context.Context, d discovered) domain.AnalysisVerdict {
		return p.scoreOne(ctx, d, source)
	}) {
		out[c.Index] = domain.ScoredShop{Shop: c.Job.shop, AIAnalysis: c.Result}
	}
	return out
}

// scoreAnswer is the JSON the scoring task returns.
type scoreAnswer struct {
	Score         float64 `json:"score"`
	Reasoning     string  `json:"reasoning"`
	ShortSummary  string  `json:"short_summary"`
	IsShinise     bool    `json:"is_shinise"`
	FoundingYear  string  `json:"founding_year"`
	TabelogRating float64 `json:"tabelog_rating"`
}

func (p *Pipeline) scoreOne(ctx context.Context, d discovered, source string) domain.AnalysisVerdict {
	shop := d.shop
	if details, err := p.places.GetDetails(ctx, shop.ID); err == nil && details != nil {
		shop = mergeDetails(shop, *details)
	} else if err != nil {
		p.log.Warn("fetching details for scoring", map[string]any{"shop": shop.ID, "error": err.Error()})
	}

	raw, err := p.exec.Complete(ctx, agents.Score, agents.PromptInput{Shop: shop})
	var ans scoreAnswer
	if err == nil {
		err = json.Unmarshal(raw, &ans)
	}

	if source == SourceKeyword {
		return fallbackVerdict(ans, err)
	}
	return aiVerdict(ans, err, d.candidate)
}

func mergeDetails(base, details domain.Shop) domain.Shop {
	if details.ID == "" {
		details.ID = base.ID
	}
	if details.Name == "" {
		details.Name = base.Name
	}
	if details.Address == "" {
		details.Address = base.Address
	}
	if details.Location == nil {
		details.Location = base.Location
	}
	if len(details.Types) == 0 {
		details.Types = base.Types
	}
	if len(details.Photos) == 0 {
		details.Photos = base.Photos
	}
	if details.Rating == 0 {
		details.Rating = base.Rating
	}
	return details
}

func aiVerdict(ans scoreAnswer, err error, c *domain.Candidate) domain.AnalysisVerdict {
	var v domain.AnalysisVerdict
	if err != nil {
		v = domain.AnalysisVerdict{
			Reasoning:    scoreFailedPrefix + errorMessage(err),
			ShortSummary: scoreFailedSummary,
			FoundingYear: domain.FoundingUnknown,
		}
	} else {
		v = domain.AnalysisVerdict{
			Score:         clampScore(ans.Score),
			Reasoning:     ans.Reasoning,
			ShortSummary:  ans.ShortSummary,
			IsShinise:     ans.IsShinise,
			FoundingYear:  ans.FoundingYear,
			TabelogRating: ans.TabelogRating,
		}
	}

	if c != nil {
		if (v.FoundingYear == "" || v.FoundingYear == domain.FoundingUnknown) && c.FoundingYear != "" {
			v.FoundingYear = c.FoundingYear
		}
		if v.TabelogRating == 0 {
			v.TabelogRating = c.TabelogRating
		}
	}
	if v.FoundingYear == "" {
		v.FoundingYear = domain.FoundingUnknown
	}
	return v
}

// fallbackVerdict keeps the neutral fallback score for keyword-sourced
// shops and carries the disclosure in front of any model reasoning.
func fallbackVerdict(ans scoreAnswer, err error) domain.AnalysisVerdict {
	v := domain.FallbackVerdict()
	if err != nil {
		return v
	}
	if ans.Reasoning != "" {
		v.Reasoning = domain.ReasoningFallback + "\n" + ans.Reasoning
	}
	if ans.ShortSummary != "" {
		v.ShortSummary = ans.ShortSummary
	}
	if ans.FoundingYear != "" {
		v.FoundingYear = ans.FoundingYear
	}
	v.IsShinise = ans.IsShinise
	v.TabelogRating = ans.TabelogRating
	return v
}

func errorMessage(err error) string {
	var pe *ports.ParseError
	if errors.As(err, &pe) {
		return fmt.Sprintf("invalid response: %v", pe.Err)
	}
	return err.Error()
}
