package application

import (
	"context"
	"time"

	"github.com/ahrav/shinise-scout/infrastructure/agents"
	"github.com/ahrav/shinise-scout/infrastructure/cache"
	"github.com/ahrav/shinise-scout/internal/domain"
	"github.com/ahrav/shinise-scout/internal/logger"
	"github.com/ahrav/shinise-scout/internal/ports"
)

// agentRecord is the stored form of one agent result.
type agentRecord struct {
	Result    domain.AgentResult `json:"result"`
	ShopID    string             `json:"shopId"`
	AgentType domain.TaskID      `json:"agentType"`
	ShopName  string             `json:"shopName"`
	CachedAt  time.Time          `json:"cachedAt"`
}

// AgentService runs agents through the server cache tier. Results for
// shops without an id are never cached.
type AgentService struct {
	exec  *Executor
	cache ports.Cache
	log   logger.Logger
	now   func() time.Time
}

var _ TaskRunner = (*AgentService)(nil)

// NewAgentService creates the service. cache may be nil to disable caching.
func NewAgentService(exec *Executor, c ports.Cache, log logger.Logger) *AgentService {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &AgentService{exec: exec, cache: c, log: log, now: time.Now}
}

// RunTask returns the cached result for shop and task unless force is set,
// otherwise runs the agent and writes successful results through.
func (s *AgentService) RunTask(ctx context.Context, task *agents.Task, shop domain.Shop, force bool) domain.AgentResult {
	cacheable := s.cache != nil && shop.ID != ""
	key := cache.AgentKey(shop.ID, task.ID())

	if cacheable && !force {
		var rec agentRecord
		if s.cache.Lookup(ctx, cache.CollectionAgentResults, key, &rec) {
			s.log.Debug("agent cache hit", map[string]any{"key": key})
			return rec.Result
		}
	}

	result := s.exec.Run(ctx, task, shop)

	if cacheable && !result.IsDegraded() {
		s.cache.Store(ctx, cache.CollectionAgentResults, key, agentRecord{
			Result:    result,
			ShopID:    shop.ID,
			AgentType: task.ID(),
			ShopName:  shop.Name,
			CachedAt:  s.now(),
		})
	}
	return result
}
