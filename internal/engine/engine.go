package engine

import (
	"go.uber.org/zap"

	"github.com/steveyegge/convanalytics/internal/cache"
	"github.com/steveyegge/convanalytics/internal/config"
	"github.com/steveyegge/convanalytics/internal/logging"
)

// Engine orchestrates the four analyzers over conversations loaded from
// a MessageStore, persists their output through the four repositories,
// and assembles cached reports (spec §4.10). Construct one per logical
// corpus; its report cache is never shared across instances (spec §9).
type Engine struct {
	store MessageStore

	conversations ConversationsRepo
	patterns      PatternsRepo
	gaps          GapsRepo
	decisions     DecisionsRepo

	cache *cache.ReportCache
	cfg   config.EngineConfig
	log   *zap.Logger
}

// Repos bundles the four repositories an Engine needs; keeping this as a
// struct avoids a five-plus-argument constructor. The concrete
// repository.*Repo types satisfy these interfaces structurally.
type Repos struct {
	Conversations ConversationsRepo
	Patterns      PatternsRepo
	Gaps          GapsRepo
	Decisions     DecisionsRepo
}

// New constructs an Engine. cfg is normalized defensively in case the
// caller forgot to call Normalize().
func New(store MessageStore, repos Repos, cfg config.EngineConfig, log *zap.Logger) *Engine {
	_ = cfg.Normalize()
	return &Engine{
		store:         store,
		conversations: repos.Conversations,
		patterns:      repos.Patterns,
		gaps:          repos.Gaps,
		decisions:     repos.Decisions,
		cache:         cache.New(cfg.CacheExpiration),
		cfg:           cfg,
		log:           logging.OrNop(log),
	}
}

// InvalidateCache removes every cached report whose key contains pattern.
func (e *Engine) InvalidateCache(pattern string) int {
	return e.cache.Invalidate(pattern)
}
