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

// archiveReasonLifecycle tags episodes archived by the retention
// window, as opposed to consolidation or cap enforcement.
const archiveReasonLifecycle = "lifecycle-archive"

// ArchiveService soft-archives episodes older than the policy's
// retention window. Archival preserves content for later
// consolidation, reporting, and audit.
type ArchiveService interface {
	Archive(ctx context.Context, workspaceID uuid.UUID) *models.ArchiveResult
}

type archiveService struct {
	episodes repositories.EpisodeRepository
	policies PolicyService
	sink     events.Sink
	logger   *zap.Logger
}

// NewArchiveService creates a new ArchiveService.
func NewArchiveService(episodes repositories.EpisodeRepository, policies PolicyService, sink events.Sink, logger *zap.Logger) ArchiveService {
	return &archiveService{
		episodes: episodes,
		policies: policies,
		sink:     sink,
		logger:   logger.Named("archive-service"),
	}
}

var _ ArchiveService = (*archiveService)(nil)

// Archive never fails the caller; query failures degrade to a
// zero-valued result and per-episode failures are skipped.
func (s *archiveService) Archive(ctx context.Context, workspaceID uuid.UUID) *models.ArchiveResult {
	started := time.Now()
	result := &models.ArchiveResult{ArchivedIDs: []uuid.UUID{}}

	policy := s.policies.GetPolicy(ctx, workspaceID)
	cutoff := started.AddDate(0, 0, -policy.ArchiveAfterDays)

	candidates, err := s.episodes.FindAgedOut(ctx, workspaceID, cutoff, lifecycleBatchLimit)
	if err != nil {
		s.logger.Warn("Archive candidate query failed",
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

		archived, err := s.episodes.ArchiveEpisode(ctx, ep.ID, archiveReasonLifecycle)
		if err != nil {
			s.logger.Warn("Failed to archive episode",
				zap.String("episode_id", ep.ID.String()),
				zap.Error(err))
			continue
		}
		if archived {
			result.ArchivedCount++
			result.ArchivedIDs = append(result.ArchivedIDs, ep.ID)
		}
	}

	result.DurationMs = time.Since(started).Milliseconds()

	s.logger.Info("Archived aged-out episodes",
		zap.String("workspace_id", workspaceID.String()),
		zap.Int("archived", result.ArchivedCount),
		zap.Int("skipped_pinned", result.SkippedPinned),
		zap.Int("skipped_decisions", result.SkippedDecisions),
		zap.Int("skipped_patterns", result.SkippedPatterns))

	s.sink.Emit(ctx, events.EventMemoriesArchived, result)
	return result
}
