package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mnemo-labs/mnemo-engine/pkg/apperrors"
	"github.com/mnemo-labs/mnemo-engine/pkg/events"
	"github.com/mnemo-labs/mnemo-engine/pkg/models"
	"github.com/mnemo-labs/mnemo-engine/pkg/repositories"
)

// MemoryService holds the manual per-episode overrides that sit outside
// the automated lifecycle flow. Pin and unpin only ever write the
// dedicated pinned column; the legacy metadata marker is a read-path
// concern. Delete bypasses all protection and is the only operation
// that permanently removes data.
type MemoryService interface {
	// Get loads a single episode. Returns apperrors.ErrNotFound when no
	// episode with the given id exists.
	Get(ctx context.Context, episodeID uuid.UUID) (*models.Episode, error)

	// Pin protects an episode from automated removal. Returns whether
	// the episode existed.
	Pin(ctx context.Context, episodeID uuid.UUID) (bool, error)

	// Unpin clears the dedicated pinned flag. Returns whether the
	// episode existed.
	Unpin(ctx context.Context, episodeID uuid.UUID) (bool, error)

	// Delete hard-deletes an episode, protection notwithstanding.
	// Returns whether the episode existed.
	Delete(ctx context.Context, episodeID uuid.UUID) (bool, error)
}

type memoryService struct {
	episodes repositories.EpisodeRepository
	sink     events.Sink
	logger   *zap.Logger
}

// NewMemoryService creates a new MemoryService.
func NewMemoryService(episodes repositories.EpisodeRepository, sink events.Sink, logger *zap.Logger) MemoryService {
	return &memoryService{
		episodes: episodes,
		sink:     sink,
		logger:   logger.Named("memory-service"),
	}
}

var _ MemoryService = (*memoryService)(nil)

func (s *memoryService) Get(ctx context.Context, episodeID uuid.UUID) (*models.Episode, error) {
	episode, err := s.episodes.GetEpisode(ctx, episodeID)
	if err != nil {
		return nil, fmt.Errorf("get episode: %w", err)
	}
	if episode == nil {
		return nil, fmt.Errorf("episode %s: %w", episodeID, apperrors.ErrNotFound)
	}
	return episode, nil
}

func (s *memoryService) Pin(ctx context.Context, episodeID uuid.UUID) (bool, error) {
	existed, err := s.episodes.SetPinned(ctx, episodeID, true)
	if err != nil {
		return false, fmt.Errorf("pin episode: %w", err)
	}
	if existed {
		s.sink.Emit(ctx, events.EventMemoryPinned, map[string]interface{}{"episode_id": episodeID})
	}
	return existed, nil
}

func (s *memoryService) Unpin(ctx context.Context, episodeID uuid.UUID) (bool, error) {
	existed, err := s.episodes.SetPinned(ctx, episodeID, false)
	if err != nil {
		return false, fmt.Errorf("unpin episode: %w", err)
	}
	if existed {
		s.sink.Emit(ctx, events.EventMemoryUnpinned, map[string]interface{}{"episode_id": episodeID})
	}
	return existed, nil
}

func (s *memoryService) Delete(ctx context.Context, episodeID uuid.UUID) (bool, error) {
	existed, err := s.episodes.DeleteEpisode(ctx, episodeID)
	if err != nil {
		return false, fmt.Errorf("delete episode: %w", err)
	}
	if existed {
		s.logger.Info("Episode deleted", zap.String("episode_id", episodeID.String()))
		s.sink.Emit(ctx, events.EventMemoryDeleted, map[string]interface{}{"episode_id": episodeID})
	}
	return existed, nil
}
