package application

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/shinise-scout/internal/domain"
	"github.com/ahrav/shinise-scout/internal/logger"
	"github.com/ahrav/shinise-scout/internal/ports"
	"github.com/ahrav/shinise-scout/internal/testutils"
)

var (
	asakusa    = domain.LatLng{Lat: 35.7118, Lng: 139.7966}
	shopNameRe = regexp.MustCompile(`店名: (\S+)`)
)

func numberedShop(i int) domain.Shop {
	return domain.Shop{
		ID:       fmt.Sprintf("p%02d", i),
		Name:     fmt.Sprintf("老舗%02d", i),
		Address:  "日本 東京都台東区浅草",
		Location: &asakusa,
	}
}

// candidatesJSON builds a candidate answer naming shops 0..n-1.
func candidatesJSON(n int) string {
	items := make([]string, n)
	for i := range n {
		items[i] = fmt.Sprintf(`{"name":"老舗%02d","tabelog_rating":3.5,"reasoning":"r","founding_year":"19%02d"}`, i, 20+i)
	}
	return `{"candidates":[` + strings.Join(items, ",") + `]}`
}

// scoreByIndex answers scoring calls with 40 plus the shop's number, so
// higher-numbered shops sort first.
func scoreByIndex(prompt string, opts ports.CompleteOptions) (testutils.ModelOutcome, bool) {
	if opts.Label != string(domain.TaskScore) {
		return testutils.ModelOutcome{}, false
	}
	m := shopNameRe.FindStringSubmatch(prompt)
	if m == nil {
		return testutils.ModelOutcome{}, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(m[1], "老舗"))
	if err != nil {
		return testutils.ModelOutcome{}, false
	}
	return testutils.ModelOutcome{Raw: fmt.Sprintf(
		`{"score":%d,"reasoning":"創業が古い","short_summary":"老舗","is_shinise":true,"founding_year":""}`, 40+n,
	)}, true
}

type pipelineFixture struct {
	model  *testutils.MockModelClient
	places *testutils.MockPlaces
	store  interface{ Len() int }
	pipe   *Pipeline
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()
	model := testutils.NewMockModelClient()
	places := testutils.NewMockPlaces()
	places.Geo["浅草駅"] = &asakusa
	exec, _, _ := newTestExecutor(t, model)
	c, store := newTestCache(t)
	pipe := NewPipeline(exec, places, places, c, PipelineConfig{}, logger.NewTestLogger(t), testutils.NewRecordingMetrics())
	return &pipelineFixture{model: model, places: places, store: store, pipe: pipe}
}

func (f *pipelineFixture) registerShops(n int) {
	for i := range n {
		s := numberedShop(i)
		f.places.Text[s.Name] = []domain.Shop{s}
		detail := s
		detail.Reviews = []string{"美味しい", "古い"}
		f.places.Details[s.ID] = &detail
	}
}

func TestPipeline_KeywordFallback(t *testing.T) {
	// Given a model that finds no candidates near the station
	f := newPipelineFixture(t)
	f.model.SetResponse("candidates", `{"candidates":[]}`)
	f.model.SetResponse("score", `{"score":92,"reasoning":"昭和初期創業","short_summary":"甘味処","is_shinise":true,"founding_year":"1930"}`)
	f.places.Nearby = []domain.Shop{numberedShop(1), numberedShop(2), numberedShop(1)}

	// When searching
	resp, err := f.pipe.Search(context.Background(), SearchRequest{Query: "浅草駅"})
	require.NoError(t, err)

	// Then keyword results carry the neutral score and the disclosure
	assert.Equal(t, SourceKeyword, resp.Source)
	assert.False(t, resp.Cached)
	require.Equal(t, 2, resp.Count)
	for _, s := range resp.Shops {
		assert.Equal(t, domain.FallbackScore, s.AIAnalysis.Score)
		assert.True(t, strings.HasPrefix(s.AIAnalysis.Reasoning, domain.ReasoningFallback))
		assert.Contains(t, s.AIAnalysis.Reasoning, "昭和初期創業")
		assert.Equal(t, "1930", s.AIAnalysis.FoundingYear)
	}
	assert.Equal(t, 1, f.places.NearbyCalls())
}

func TestPipeline_KeywordFallback_ScoringFails(t *testing.T) {
	f := newPipelineFixture(t)
	f.model.Script("candidates", testutils.ModelOutcome{Err: ports.NewUpstreamError("google", "generate", errors.New("boom"))})
	for range 5 {
		f.model.Script("score", testutils.ModelOutcome{Err: ports.NewUpstreamError("google", "generate", errors.New("boom"))})
	}
	f.places.Text["甘味処"] = []domain.Shop{numberedShop(3)}

	resp, err := f.pipe.Search(context.Background(), SearchRequest{Query: "浅草駅", Genre: "甘味処"})
	require.NoError(t, err)

	require.Len(t, resp.Shops, 1)
	assert.Equal(t, domain.FallbackVerdict(), resp.Shops[0].AIAnalysis)
	assert.Contains(t, f.places.TextQueries(), "甘味処")
}

func TestPipeline_AIDiscovery_ScoresPrefixAndSorts(t *testing.T) {
	// Given twelve candidates that all resolve to places
	f := newPipelineFixture(t)
	f.model.SetResponse("candidates", candidatesJSON(12))
	f.model.Handler = scoreByIndex
	f.registerShops(12)

	// When searching
	resp, err := f.pipe.Search(context.Background(), SearchRequest{Query: "浅草駅", Mode: domain.ModeAdventure})
	require.NoError(t, err)

	// Then ten shops are scored and two get placeholders
	assert.Equal(t, SourceAI, resp.Source)
	require.Equal(t, 12, resp.Count)
	assert.Equal(t, 10, f.model.CallCount("score"))

	var placeholders int
	for _, s := range resp.Shops {
		if s.AIAnalysis.Reasoning == domain.ReasoningUnjudged {
			placeholders++
			assert.Zero(t, s.AIAnalysis.Score)
		}
	}
	assert.Equal(t, 2, placeholders)

	// And results are ordered by descending score
	for i := 1; i < len(resp.Shops); i++ {
		assert.GreaterOrEqual(t, resp.Shops[i-1].AIAnalysis.Score, resp.Shops[i].AIAnalysis.Score)
	}
	top := resp.Shops[0]
	assert.Equal(t, "p09", top.ID)
	assert.Equal(t, 49, top.AIAnalysis.Score)

	// And empty founding years are backfilled from the candidate
	assert.Equal(t, "1929", top.AIAnalysis.FoundingYear)
	assert.Equal(t, 3.5, top.AIAnalysis.TabelogRating)

	// And the adventure profile reached the candidate prompt
	for _, c := range f.model.Calls() {
		if c.Options.Label == "candidates" {
			assert.Contains(t, c.Prompt, "浅草駅")
		}
	}
}

func TestPipeline_Hydration(t *testing.T) {
	f := newPipelineFixture(t)
	f.model.SetResponse("candidates", `{"candidates":[{"name":"尾張屋"},{"name":"幻の店"},{"name":"尾張屋 本店"},{"name":""}]}`)

	owariya := domain.Shop{ID: "o1", Name: "尾張屋"}
	f.places.Text["尾張屋"] = []domain.Shop{{ID: "x", Name: "尾張屋ビル駐車場"}, owariya}
	f.places.Text["尾張屋 本店"] = []domain.Shop{owariya}

	resp, err := f.pipe.Search(context.Background(), SearchRequest{Query: "浅草駅"})
	require.NoError(t, err)

	require.Len(t, resp.Shops, 1)
	assert.Equal(t, "o1", resp.Shops[0].ID)
	assert.Equal(t, SourceAI, resp.Source)
}

func TestPipeline_ScoreFailureOnAIShop(t *testing.T) {
	f := newPipelineFixture(t)
	f.model.SetResponse("candidates", candidatesJSON(1))
	f.model.SetResponse("score", `{"score": 80, "reasoning": `)
	f.registerShops(1)

	resp, err := f.pipe.Search(context.Background(), SearchRequest{Query: "浅草駅"})
	require.NoError(t, err)

	require.Len(t, resp.Shops, 1)
	v := resp.Shops[0].AIAnalysis
	assert.Zero(t, v.Score)
	assert.Equal(t, "判定不能", v.ShortSummary)
	assert.True(t, strings.HasPrefix(v.Reasoning, "AIエラー: "))
	assert.Equal(t, "1920", v.FoundingYear)
}

func TestPipeline_CacheAndForce(t *testing.T) {
	// Given a completed search
	f := newPipelineFixture(t)
	f.model.SetResponse("candidates", candidatesJSON(3))
	f.model.Handler = scoreByIndex
	f.registerShops(3)
	ctx := context.Background()

	first, err := f.pipe.Search(ctx, SearchRequest{Query: "浅草駅", Genre: "蕎麦"})
	require.NoError(t, err)
	calls := f.model.CallCount("")
	assert.Equal(t, 1, f.store.Len())
	assert.Equal(t, 1, f.places.GeocodeCalls())

	// When the same search repeats, with a differently written genre
	second, err := f.pipe.Search(ctx, SearchRequest{Query: "浅草駅", Genre: " 蕎麦 "})
	require.NoError(t, err)

	// Then it is served from the cache without model or provider calls
	assert.True(t, second.Cached)
	assert.Equal(t, first.Shops, second.Shops)
	assert.Equal(t, SourceAI, second.Source)
	assert.Equal(t, calls, f.model.CallCount(""))
	assert.Equal(t, 1, f.places.GeocodeCalls())

	// When forced
	third, err := f.pipe.Search(ctx, SearchRequest{Query: "浅草駅", Genre: "蕎麦", Force: true})
	require.NoError(t, err)

	// Then the pipeline runs again
	assert.False(t, third.Cached)
	assert.Greater(t, f.model.CallCount(""), calls)
	assert.Equal(t, 2, f.places.GeocodeCalls())
}

func TestPipeline_CacheHitSurvivesGeocoderOutage(t *testing.T) {
	// Given a cached search
	f := newPipelineFixture(t)
	f.model.SetResponse("candidates", candidatesJSON(2))
	f.model.Handler = scoreByIndex
	f.registerShops(2)
	ctx := context.Background()

	first, err := f.pipe.Search(ctx, SearchRequest{Query: "浅草駅"})
	require.NoError(t, err)

	// When the geocoder goes down
	f.places.GeoErr = errors.New("geocoding unavailable")

	// Then the cached shops are still served
	cached, err := f.pipe.Search(ctx, SearchRequest{Query: "浅草駅"})
	require.NoError(t, err)
	assert.True(t, cached.Cached)
	assert.Equal(t, first.Shops, cached.Shops)

	// And a forced refresh reports the outage
	_, err = f.pipe.Search(ctx, SearchRequest{Query: "浅草駅", Force: true})
	assert.ErrorIs(t, err, ports.ErrUpstream)
}

func TestPipeline_CoordinatesSkipDiscovery(t *testing.T) {
	f := newPipelineFixture(t)
	f.places.Nearby = []domain.Shop{numberedShop(0)}

	resp, err := f.pipe.Search(context.Background(), SearchRequest{Location: &asakusa})
	require.NoError(t, err)

	assert.Equal(t, SourceKeyword, resp.Source)
	assert.Zero(t, f.model.CallCount("candidates"))
}

func TestPipeline_Errors(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(f *pipelineFixture)
		req     SearchRequest
		wantErr func(t *testing.T, err error)
	}{
		{
			name: "empty request",
			req:  SearchRequest{},
			wantErr: func(t *testing.T, err error) {
				var v *domain.ValidationError
				assert.ErrorAs(t, err, &v)
			},
		},
		{
			name: "coordinates out of range",
			req:  SearchRequest{Location: &domain.LatLng{Lat: 120}},
			wantErr: func(t *testing.T, err error) {
				var v *domain.ValidationError
				assert.ErrorAs(t, err, &v)
			},
		},
		{
			name: "unknown station",
			req:  SearchRequest{Query: "存在しない駅"},
			wantErr: func(t *testing.T, err error) {
				var nf *ports.NotFoundError
				require.ErrorAs(t, err, &nf)
				assert.Equal(t, "station", nf.Resource)
			},
		},
		{
			name:  "geocoder down",
			setup: func(f *pipelineFixture) { f.places.GeoErr = errors.New("dial tcp: refused") },
			req:   SearchRequest{Query: "浅草駅"},
			wantErr: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ports.ErrUpstream)
			},
		},
		{
			name: "places down",
			setup: func(f *pipelineFixture) {
				f.model.SetResponse("candidates", `{"candidates":[]}`)
				f.places.NearbyErr = errors.New("quota exceeded")
			},
			req: SearchRequest{Query: "浅草駅"},
			wantErr: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ports.ErrUpstream)
			},
		},
		{
			name:  "no shops at all",
			setup: func(f *pipelineFixture) { f.model.SetResponse("candidates", `{"candidates":[]}`) },
			req:   SearchRequest{Query: "浅草駅"},
			wantErr: func(t *testing.T, err error) {
				var nf *ports.NotFoundError
				require.ErrorAs(t, err, &nf)
				assert.Equal(t, "shops", nf.Resource)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPipelineFixture(t)
			if tt.setup != nil {
				tt.setup(f)
			}
			resp, err := f.pipe.Search(context.Background(), tt.req)
			assert.Nil(t, resp)
			require.Error(t, err)
			tt.wantErr(t, err)
			assert.Zero(t, f.store.Len())
		})
	}
}

func TestClosestByName(t *testing.T) {
	results := []domain.Shop{{ID: "a", Name: "Kamiya Bar Annex"}, {ID: "b", Name: "kamiya bar"}, {ID: "c", Name: "Kamiya"}}

	got := closestByName("KAMIYA BAR", results)
	require.NotNil(t, got)
	assert.Equal(t, "b", got.ID)
	assert.Nil(t, closestByName("x", nil))
}

func TestPipeline_DefaultGenreInCandidatePrompt(t *testing.T) {
	// Given a pipeline configured with its own default genre
	model := testutils.NewMockModelClient()
	places := testutils.NewMockPlaces()
	places.Geo["浅草駅"] = &asakusa
	places.Nearby = []domain.Shop{numberedShop(1)}
	model.SetResponse("candidates", `{"candidates":[]}`)
	model.SetResponse("score", `{"score":70}`)
	exec, _, _ := newTestExecutor(t, model)
	pipe := NewPipeline(exec, places, places, nil, PipelineConfig{DefaultGenre: "蕎麦屋"}, logger.NewTestLogger(t), nil)

	// When searching without a genre
	_, err := pipe.Search(context.Background(), SearchRequest{Query: "浅草駅"})
	require.NoError(t, err)

	// Then the candidate prompt asks for the configured categories
	var prompt string
	for _, c := range model.Calls() {
		if c.Options.Label == "candidates" {
			prompt = c.Prompt
		}
	}
	assert.Contains(t, prompt, "カテゴリ: 蕎麦屋")
}
