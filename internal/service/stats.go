package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/quarrylabs/sediment/internal/cache"
	"github.com/quarrylabs/sediment/internal/domain"
)

const statsCacheTTL = 30 * time.Second

// Stats is the aggregate lifecycle snapshot.
type Stats struct {
	TotalFragments      int                       `json:"total_fragments"`
	TotalKnowledge      int                       `json:"total_knowledge"`
	TotalConsolidations int                       `json:"total_consolidations"`
	DecayDistribution   *domain.DecayDistribution `json:"decay_distribution"`
}

// StatsService aggregates counts and the decay distribution behind a short
// TTL cache. Stats queries fan out over full-table aggregates, so dashboard
// polling should not hit the database every time.
type StatsService struct {
	fragmentStore  domain.FragmentStore
	knowledgeStore domain.KnowledgeStore
	ledgerStore    domain.LedgerStore
	logger         *zap.Logger

	cache *cache.Cache[*Stats]
}

func NewStatsService(fs domain.FragmentStore, ks domain.KnowledgeStore, ls domain.LedgerStore, logger *zap.Logger) *StatsService {
	s := &StatsService{
		fragmentStore:  fs,
		knowledgeStore: ks,
		ledgerStore:    ls,
		logger:         logger,
	}
	s.cache = cache.New(statsCacheTTL, s.loadStats)
	return s
}

// GetStats returns the cached snapshot, recomputing when stale or when the
// caller forces a refresh.
func (s *StatsService) GetStats(ctx context.Context, forceRefresh bool) (*Stats, error) {
	return s.cache.Get(ctx, forceRefresh)
}

func (s *StatsService) loadStats(ctx context.Context) (*Stats, error) {
	fragments, err := s.fragmentStore.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count fragments: %w", err)
	}

	knowledge, err := s.knowledgeStore.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count knowledge: %w", err)
	}

	consolidations, err := s.ledgerStore.CountByActions(ctx, domain.ActionMerge, domain.ActionPromote)
	if err != nil {
		return nil, fmt.Errorf("count consolidations: %w", err)
	}

	distribution, err := s.fragmentStore.DecayDistribution(ctx)
	if err != nil {
		return nil, fmt.Errorf("decay distribution: %w", err)
	}

	s.logger.Debug("stats recomputed",
		zap.Int("fragments", fragments),
		zap.Int("knowledge", knowledge))

	return &Stats{
		TotalFragments:      fragments,
		TotalKnowledge:      knowledge,
		TotalConsolidations: consolidations,
		DecayDistribution:   distribution,
	}, nil
}
