package services

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mnemo-labs/mnemo-engine/pkg/events"
	"github.com/mnemo-labs/mnemo-engine/pkg/models"
	"github.com/mnemo-labs/mnemo-engine/pkg/repositories"
)

// Composite eviction score weights. Kept as named constants so they can
// be promoted to policy fields without touching engine logic.
const (
	scoreWeightConfidence = 0.4
	scoreWeightRecency    = 0.3
	scoreWeightUsage      = 0.3

	// recencyWindowDays is the age at which the recency component of
	// the score reaches zero.
	recencyWindowDays = 365

	// usageSaturation is the access count at which the usage component
	// of the score reaches one.
	usageSaturation = 10

	archiveReasonCap = "cap-enforcement"
)

// CapService brings a project's active-episode count back under the
// policy ceiling by archiving the lowest-scoring episodes. Eviction is
// archival, never deletion.
type CapService interface {
	EnforceCap(ctx context.Context, projectID, workspaceID uuid.UUID) *models.CapResult
}

type capService struct {
	episodes repositories.EpisodeRepository
	policies PolicyService
	sink     events.Sink
	logger   *zap.Logger
}

// NewCapService creates a new CapService.
func NewCapService(episodes repositories.EpisodeRepository, policies PolicyService, sink events.Sink, logger *zap.Logger) CapService {
	return &capService{
		episodes: episodes,
		policies: policies,
		sink:     sink,
		logger:   logger.Named("cap-service"),
	}
}

var _ CapService = (*capService)(nil)

// episodeScore blends confidence, recency, and usage into one eviction
// rank. Higher scores are kept longer.
func episodeScore(ep *models.Episode, now time.Time) float64 {
	recency := 1 - ep.AgeDays(now)/recencyWindowDays
	if recency < 0 {
		recency = 0
	}
	if recency > 1 {
		recency = 1
	}

	usage := ep.UsageCount() / usageSaturation
	if usage > 1 {
		usage = 1
	}

	return ep.Confidence*scoreWeightConfidence +
		recency*scoreWeightRecency +
		usage*scoreWeightUsage
}

// EnforceCap never fails the caller; query failures degrade to a
// zero-valued result. Protected episodes are skipped during eviction
// and may leave a project permanently over cap — accepted, not an
// error.
func (s *capService) EnforceCap(ctx context.Context, projectID, workspaceID uuid.UUID) *models.CapResult {
	started := time.Now()
	result := &models.CapResult{ProjectID: projectID}

	policy := s.policies.GetPolicy(ctx, workspaceID)

	before, err := s.episodes.CountActive(ctx, projectID)
	if err != nil {
		s.logger.Warn("Cap enforcement count failed",
			zap.String("project_id", projectID.String()),
			zap.Error(err))
		result.DurationMs = time.Since(started).Milliseconds()
		return result
	}

	result.ActiveCountBefore = before
	result.ActiveCountAfter = before
	if before <= policy.MaxMemoriesPerProject {
		result.DurationMs = time.Since(started).Milliseconds()
		return result
	}

	active, err := s.episodes.FindActiveByProject(ctx, projectID)
	if err != nil {
		s.logger.Warn("Cap enforcement episode load failed",
			zap.String("project_id", projectID.String()),
			zap.Error(err))
		result.DurationMs = time.Since(started).Milliseconds()
		return result
	}

	type scored struct {
		episode *models.Episode
		score   float64
	}
	ranked := make([]scored, 0, len(active))
	for _, ep := range active {
		ranked = append(ranked, scored{episode: ep, score: episodeScore(ep, started)})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score < ranked[j].score
	})

	excess := before - policy.MaxMemoriesPerProject
	for _, candidate := range ranked {
		if result.ArchivedCount >= excess {
			break
		}
		if models.IsProtected(candidate.episode, policy) {
			continue
		}

		archived, err := s.episodes.ArchiveEpisode(ctx, candidate.episode.ID, archiveReasonCap)
		if err != nil {
			s.logger.Warn("Failed to archive over-cap episode",
				zap.String("episode_id", candidate.episode.ID.String()),
				zap.Error(err))
			continue
		}
		if archived {
			result.ArchivedCount++
		}
	}

	result.ActiveCountAfter = before - result.ArchivedCount
	result.DurationMs = time.Since(started).Milliseconds()

	s.logger.Info("Enforced project memory cap",
		zap.String("project_id", projectID.String()),
		zap.Int("before", result.ActiveCountBefore),
		zap.Int("after", result.ActiveCountAfter),
		zap.Int("archived", result.ArchivedCount))

	s.sink.Emit(ctx, events.EventCapEnforced, result)
	return result
}
