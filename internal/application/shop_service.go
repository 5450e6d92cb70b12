package application

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/ahrav/shinise-scout/infrastructure/agents"
	"github.com/ahrav/shinise-scout/infrastructure/cache"
	"github.com/ahrav/shinise-scout/internal/domain"
	"github.com/ahrav/shinise-scout/internal/logger"
	"github.com/ahrav/shinise-scout/internal/ports"
)

const guideErrorPrefix = "エラー: "

// ShopDetail is a place record with its editorial guide.
type ShopDetail struct {
	Shop    domain.Shop        `json:"shop"`
	AIGuide domain.GuideResult `json:"aiGuide"`
	Cached  bool               `json:"cached"`
}

type shopRecord struct {
	Shop     domain.Shop        `json:"shop"`
	AIGuide  domain.GuideResult `json:"aiGuide"`
	CachedAt time.Time          `json:"cachedAt"`
}

// ShopService serves the shop page: details plus the guide.
type ShopService struct {
	exec   *Executor
	places ports.PlacesProvider
	cache  ports.Cache
	log    logger.Logger
	now    func() time.Time
}

// NewShopService creates the service. cache may be nil.
func NewShopService(exec *Executor, places ports.PlacesProvider, c ports.Cache, log logger.Logger) *ShopService {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &ShopService{exec: exec, places: places, cache: c, log: log, now: time.Now}
}

// Detail returns the shop and its guide. A failed guide is returned in its
// degraded form and not cached.
func (s *ShopService) Detail(ctx context.Context, placeID string, force bool) (*ShopDetail, error) {
	placeID = strings.TrimSpace(placeID)
	if placeID == "" {
		v := domain.NewValidationError("shop request")
		v.AddError("place id is required")
		return nil, v
	}

	if s.cache != nil && !force {
		var rec shopRecord
		if s.cache.Lookup(ctx, cache.CollectionShops, placeID, &rec) {
			return &ShopDetail{Shop: rec.Shop, AIGuide: rec.AIGuide, Cached: true}, nil
		}
	}

	shop, err := s.places.GetDetails(ctx, placeID)
	if err != nil {
		return nil, ports.NewUpstreamError("places", "details", err)
	}
	if shop == nil {
		return nil, ports.NewNotFoundError("shop", placeID)
	}

	guide, ok := s.guide(ctx, *shop)
	if ok && s.cache != nil {
		s.cache.Store(ctx, cache.CollectionShops, placeID, shopRecord{Shop: *shop, AIGuide: guide, CachedAt: s.now()})
	}
	return &ShopDetail{Shop: *shop, AIGuide: guide}, nil
}

func (s *ShopService) guide(ctx context.Context, shop domain.Shop) (domain.GuideResult, bool) {
	raw, err := s.exec.Complete(ctx, agents.Guide, agents.PromptInput{Shop: shop})
	var g domain.GuideResult
	if err == nil {
		err = json.Unmarshal(raw, &g)
	}
	if err != nil {
		s.log.Error("guide generation failed", map[string]any{"shop": shop.ID, "error": err.Error()})
		return degradedGuide(err), false
	}
	if g.SmokingStatus == "" {
		g.SmokingStatus = domain.FoundingUnknown
	}
	return g, true
}

func degradedGuide(err error) domain.GuideResult {
	if isNoClient(err) {
		return domain.GuideResult{HistoryBackground: domain.SummaryNoClient, SmokingStatus: domain.FoundingUnknown}
	}
	return domain.GuideResult{
		HistoryBackground: guideErrorPrefix + errorMessage(err),
		SmokingStatus:     domain.FoundingUnknown,
	}
}
