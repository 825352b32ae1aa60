package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mnemo-labs/mnemo-engine/pkg/events"
	"github.com/mnemo-labs/mnemo-engine/pkg/models"
	"github.com/mnemo-labs/mnemo-engine/pkg/repositories"
)

const (
	// lifecycleBatchLimit caps how many episodes a single prune or
	// archive invocation touches. Convergence over a large backlog
	// comes from repeated scheduled runs, not unbounded scans.
	lifecycleBatchLimit = 1000

	// pruneConfidenceCeiling is the confidence below which a stale
	// episode becomes a pruning candidate.
	pruneConfidenceCeiling = 0.3
)

// PruneService hard-deletes stale, low-confidence, unprotected
// episodes across a workspace.
type PruneService interface {
	Prune(ctx context.Context, workspaceID uuid.UUID) *models.PruneResult
}

type pruneService struct {
	episodes repositories.EpisodeRepository
	policies PolicyService
	sink     events.Sink
	logger   *zap.Logger
}

// NewPruneService creates a new PruneService.
func NewPruneService(episodes repositories.EpisodeRepository, policies PolicyService, sink events.Sink, logger *zap.Logger) PruneService {
	return &pruneService{
		episodes: episodes,
		policies: policies,
		sink:     sink,
		logger:   logger.Named("prune-service"),
	}
}

var _ PruneService = (*pruneService)(nil)

// Prune never fails the caller: a total query failure degrades to a
// zero-valued result, and a single episode's delete failure is skipped
// without aborting the batch.
func (s *pruneService) Prune(ctx context.Context, workspaceID uuid.UUID) *models.PruneResult {
	started := time.Now()
	result := &models.PruneResult{PrunedIDs: []uuid.UUID{}}

	policy := s.policies.GetPolicy(ctx, workspaceID)
	cutoff := started.AddDate(0, 0, -policy.PruneAfterDays)

	candidates, err := s.episodes.FindStale(ctx, workspaceID, pruneConfidenceCeiling, cutoff, lifecycleBatchLimit)
	if err != nil {
		s.logger.Warn("Prune candidate query failed",
			zap.String("workspace_id", workspaceID.String()),
			zap.Error(err))
		result.DurationMs = time.Since(started).Milliseconds()
		return result
	}

	for _, ep := range candidates {
		if models.IsProtected(ep, policy) {
			switch {
			case ep.Pinned || ep.LegacyPinned():
				result.SkippedPinned++
			case ep.EpisodeType == models.EpisodeDecision:
				result.SkippedDecisions++
			case ep.EpisodeType == models.EpisodePattern:
				result.SkippedPatterns++
			}
			continue
		}

		deleted, err := s.episodes.DeleteEpisode(ctx, ep.ID)
		if err != nil {
			s.logger.Warn("Failed to prune episode",
				zap.String("episode_id", ep.ID.String()),
				zap.Error(err))
			continue
		}
		if deleted {
			result.PrunedCount++
			result.PrunedIDs = append(result.PrunedIDs, ep.ID)
		}
	}

	result.DurationMs = time.Since(started).Milliseconds()

	s.logger.Info("Pruned stale episodes",
		zap.String("workspace_id", workspaceID.String()),
		zap.Int("pruned", result.PrunedCount),
		zap.Int("skipped_pinned", result.SkippedPinned),
		zap.Int("skipped_decisions", result.SkippedDecisions),
		zap.Int("skipped_patterns", result.SkippedPatterns))

	s.sink.Emit(ctx, events.EventMemoriesPruned, result)
	return result
}
