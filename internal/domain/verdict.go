package domain

import (
	"fmt"
	"slices"
	"strings"
)

// Mode selects which candidate profile discovery looks for.
type Mode string

const (
	// ModeStandard favors shops with a high third-party rating.
	ModeStandard Mode = "standard"
	// ModeAdventure favors low-visibility local favorites.
	ModeAdventure Mode = "adventure"
)

// ParseMode maps user input onto a Mode. An empty string selects the
// standard mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeStandard:
		return ModeStandard, nil
	case ModeAdventure:
		return ModeAdventure, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// Reasoning strings used by synthesized verdicts.
const (
	ReasoningUnjudged = "未判定"
	// ReasoningFallback discloses that the shop came from keyword search
	// instead of the AI shortlist.
	ReasoningFallback = "AIによる候補抽出で該当店が見つからなかったため、キーワード検索の結果を表示しています。"
	FoundingUnknown   = "不明"
	// FallbackScore is the neutral score given to keyword-search shops.
	FallbackScore = 50
)

// AnalysisVerdict is the shinise appraisal attached to every search result.
type AnalysisVerdict struct {
	Score         int     `json:"score"`
	Reasoning     string  `json:"reasoning"`
	ShortSummary  string  `json:"short_summary"`
	IsShinise     bool    `json:"is_shinise"`
	FoundingYear  string  `json:"founding_year"`
	TabelogRating float64 `json:"tabelog_rating,omitempty"`
}

// PlaceholderVerdict is given to discovered shops outside the scored prefix.
func PlaceholderVerdict() AnalysisVerdict {
	return AnalysisVerdict{Reasoning: ReasoningUnjudged, ShortSummary: "-", FoundingYear: FoundingUnknown}
}

// FallbackVerdict is given to keyword-search shops whose scoring call did
// not produce a verdict.
func FallbackVerdict() AnalysisVerdict {
	return AnalysisVerdict{
		Score:        FallbackScore,
		Reasoning:    ReasoningFallback,
		ShortSummary: "キーワード検索",
		FoundingYear: FoundingUnknown,
	}
}

// ScoredShop pairs a shop with its verdict. The shop fields are flattened
// into the JSON object next to "aiAnalysis".
type ScoredShop struct {
	Shop
	AIAnalysis AnalysisVerdict `json:"aiAnalysis"`
}

// SearchResultSet is an ordered list of scored shops.
type SearchResultSet []ScoredShop

// SortByScore orders the set by descending score. Equal scores keep their
// discovery order.
func (s SearchResultSet) SortByScore() {
	slices.SortStableFunc(s, func(a, b ScoredShop) int {
		return b.AIAnalysis.Score - a.AIAnalysis.Score
	})
}

// Candidate is a named shop suggested by the model before it is resolved to
// a concrete place record.
type Candidate struct {
	Name          string  `json:"name"`
	TabelogRating float64 `json:"tabelog_rating"`
	Reasoning     string  `json:"reasoning"`
	FoundingYear  string  `json:"founding_year"`
}

// GuideResult is the long-form editorial guide shown on the shop page.
type GuideResult struct {
	HistoryBackground string `json:"history_background"`
	RecommendedPoints string `json:"recommended_points"`
	Atmosphere        string `json:"atmosphere"`
	BestTimeToVisit   string `json:"best_time_to_visit"`
	TabelogURL        string `json:"tabelog_url"`
	SmokingStatus     string `json:"smoking_status"`
}

// ReviewAnalysis is the skeptical read of a shop's provider reviews.
type ReviewAnalysis struct {
	IsSuspicious    bool     `json:"is_suspicious"`
	SuspicionLevel  string   `json:"suspicion_level"`
	SuspicionReason string   `json:"suspicion_reason"`
	NegativePoints  []string `json:"negative_points"`
	RealitySummary  string   `json:"reality_summary"`
}
