package application

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/ahrav/shinise-scout/infrastructure/agents"
	"github.com/ahrav/shinise-scout/internal/domain"
	"github.com/ahrav/shinise-scout/internal/logger"
	"github.com/ahrav/shinise-scout/internal/ports"
)

// Canned review analyses.
var (
	noReviewsAnalysis = domain.ReviewAnalysis{
		SuspicionLevel:  "low",
		SuspicionReason: "口コミが見つかりませんでした",
		NegativePoints:  []string{},
		RealitySummary:  "口コミがないため分析不能",
	}
	noClientAnalysis = domain.ReviewAnalysis{
		SuspicionLevel:  "low",
		SuspicionReason: "AI未接続",
		NegativePoints:  []string{},
		RealitySummary:  "分析できませんでした",
	}
)

// ReviewService produces the skeptical review read for a shop.
type ReviewService struct {
	exec   *Executor
	places ports.PlacesProvider
	log    logger.Logger
}

// NewReviewService creates the service.
func NewReviewService(exec *Executor, places ports.PlacesProvider, log logger.Logger) *ReviewService {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &ReviewService{exec: exec, places: places, log: log}
}

// Analyze fetches the shop's reviews and asks the model to grade them.
// Model failures are folded into the returned analysis.
func (s *ReviewService) Analyze(ctx context.Context, placeID, shopName string) (*domain.ReviewAnalysis, error) {
	v := domain.NewValidationError("review analysis request")
	if strings.TrimSpace(placeID) == "" {
		v.AddError("placeId is required")
	}
	if strings.TrimSpace(shopName) == "" {
		v.AddError("shopName is required")
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	details, err := s.places.GetDetails(ctx, placeID)
	if err != nil {
		return nil, ports.NewUpstreamError("places", "details", err)
	}
	if details == nil {
		return nil, ports.NewNotFoundError("shop", placeID)
	}

	reviews := make([]string, 0, len(details.Reviews))
	for _, r := range details.Reviews {
		if strings.TrimSpace(r) != "" {
			reviews = append(reviews, r)
		}
	}
	if len(reviews) == 0 {
		out := noReviewsAnalysis
		return &out, nil
	}

	shop := *details
	shop.Name = shopName
	shop.Reviews = reviews

	raw, err := s.exec.Complete(ctx, agents.ReviewAnalysis, agents.PromptInput{Shop: shop})
	var out domain.ReviewAnalysis
	if err == nil {
		err = json.Unmarshal(raw, &out)
	}
	if err != nil {
		s.log.Error("review analysis failed", map[string]any{"shop": placeID, "error": err.Error()})
		if isNoClient(err) {
			out = noClientAnalysis
			return &out, nil
		}
		return &domain.ReviewAnalysis{
			SuspicionLevel:  "low",
			SuspicionReason: guideErrorPrefix + errorMessage(err),
			NegativePoints:  []string{},
			RealitySummary:  "エラーにより分析失敗",
		}, nil
	}
	if out.NegativePoints == nil {
		out.NegativePoints = []string{}
	}
	return &out, nil
}
