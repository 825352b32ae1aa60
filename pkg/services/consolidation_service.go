package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mnemo-labs/mnemo-engine/pkg/models"
	"github.com/mnemo-labs/mnemo-engine/pkg/repositories"
)

// consolidationConfidenceBoost is added to the higher of the two
// merged confidences, capped at 1.0. Agreement between near-duplicate
// episodes is weak positive evidence.
const consolidationConfidenceBoost = 0.05

// ConsolidationService merges near-duplicate episode pairs within a
// project into a single new episode with provenance links, archiving
// the originals.
type ConsolidationService interface {
	Consolidate(ctx context.Context, projectID, workspaceID uuid.UUID) *models.ConsolidationResult
}

type consolidationService struct {
	episodes repositories.EpisodeRepository
	policies PolicyService
	logger   *zap.Logger
}

// NewConsolidationService creates a new ConsolidationService.
func NewConsolidationService(episodes repositories.EpisodeRepository, policies PolicyService, logger *zap.Logger) ConsolidationService {
	return &consolidationService{
		episodes: episodes,
		policies: policies,
		logger:   logger.Named("consolidation-service"),
	}
}

var _ ConsolidationService = (*consolidationService)(nil)

// Consolidate visits each unordered pair of active, unprotected,
// non-decision episodes sharing a referenced entity, and merges pairs
// whose keyword similarity clears the policy threshold. An episode
// consumed by one merge is not merged again within the same run, so a
// single pass never chain-merges transitively. Any single-pair failure
// is skipped; the method never fails the caller.
func (s *consolidationService) Consolidate(ctx context.Context, projectID, workspaceID uuid.UUID) *models.ConsolidationResult {
	started := time.Now()
	result := &models.ConsolidationResult{
		ProjectID:           projectID,
		NewEpisodeIDs:       []uuid.UUID{},
		ArchivedOriginalIDs: []uuid.UUID{},
	}

	policy := s.policies.GetPolicy(ctx, workspaceID)

	active, err := s.episodes.FindActiveByProject(ctx, projectID)
	if err != nil {
		s.logger.Warn("Consolidation episode load failed",
			zap.String("project_id", projectID.String()),
			zap.Error(err))
		result.DurationMs = time.Since(started).Milliseconds()
		return result
	}

	byID := make(map[uuid.UUID]*models.Episode, len(active))
	for _, ep := range active {
		byID[ep.ID] = ep
	}

	pairs, err := s.episodes.FindSharedEntityPairs(ctx, projectID)
	if err != nil {
		s.logger.Warn("Consolidation pair query failed",
			zap.String("project_id", projectID.String()),
			zap.Error(err))
		result.DurationMs = time.Since(started).Milliseconds()
		return result
	}

	consumed := make(map[uuid.UUID]bool)
	for _, pair := range pairs {
		if consumed[pair.IDA] || consumed[pair.IDB] {
			continue
		}

		a, okA := byID[pair.IDA]
		b, okB := byID[pair.IDB]
		if !okA || !okB {
			continue
		}
		if models.IsProtected(a, policy) || models.IsProtected(b, policy) {
			continue
		}

		similarity := keywordSimilarity(a.Content, b.Content)
		if similarity < policy.ConsolidateThreshold {
			continue
		}

		merged, err := s.mergePair(ctx, a, b, pair.SharedEntities)
		if err != nil {
			s.logger.Warn("Failed to consolidate episode pair",
				zap.String("episode_a", a.ID.String()),
				zap.String("episode_b", b.ID.String()),
				zap.Error(err))
			continue
		}

		consumed[a.ID] = true
		consumed[b.ID] = true
		result.ConsolidatedCount++
		result.NewEpisodeIDs = append(result.NewEpisodeIDs, merged.ID)
		result.ArchivedOriginalIDs = append(result.ArchivedOriginalIDs, a.ID, b.ID)
	}

	result.DurationMs = time.Since(started).Milliseconds()

	if result.ConsolidatedCount > 0 {
		s.logger.Info("Consolidated near-duplicate episodes",
			zap.String("project_id", projectID.String()),
			zap.Int("merged_pairs", result.ConsolidatedCount))
	}
	return result
}

// mergePair creates the consolidated episode, links provenance, and
// archives both originals. Originals are never deleted; the
// CONSOLIDATED_FROM edges must stay traversable.
func (s *consolidationService) mergePair(ctx context.Context, a, b *models.Episode, shared []string) (*models.Episode, error) {
	confidence := a.Confidence
	if b.Confidence > confidence {
		confidence = b.Confidence
	}
	confidence += consolidationConfidenceBoost
	if confidence > 1.0 {
		confidence = 1.0
	}

	merged := &models.Episode{
		ID:          uuid.New(),
		ProjectID:   a.ProjectID,
		WorkspaceID: a.WorkspaceID,
		EpisodeType: a.EpisodeType,
		Content:     mergeContents(a.Content, b.Content),
		Confidence:  confidence,
		Entities:    unionEntities(a.Entities, b.Entities, shared),
		Timestamp:   time.Now(),
	}

	if err := s.episodes.AddEpisode(ctx, merged); err != nil {
		return nil, fmt.Errorf("add consolidated episode: %w", err)
	}

	for _, original := range []*models.Episode{a, b} {
		if err := s.episodes.LinkConsolidatedFrom(ctx, merged.ID, original.ID); err != nil {
			return nil, fmt.Errorf("link provenance: %w", err)
		}
	}

	reason := "consolidated-" + merged.ID.String()
	for _, original := range []*models.Episode{a, b} {
		if _, err := s.episodes.ArchiveEpisode(ctx, original.ID, reason); err != nil {
			return nil, fmt.Errorf("archive original %s: %w", original.ID, err)
		}
	}

	return merged, nil
}

func unionEntities(groups ...[]string) []string {
	seen := make(map[string]struct{})
	var union []string
	for _, group := range groups {
		for _, name := range group {
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			union = append(union, name)
		}
	}
	sort.Strings(union)
	return union
}
