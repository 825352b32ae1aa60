package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mnemo-labs/mnemo-engine/pkg/events"
	"github.com/mnemo-labs/mnemo-engine/pkg/models"
	"github.com/mnemo-labs/mnemo-engine/pkg/repositories"
)

// LifecycleService orchestrates a full maintenance run for one
// workspace: prune, then per-project consolidation, then archival,
// then per-project cap enforcement. Phases run strictly sequentially;
// projects within a phase are processed one at a time against the
// shared graph store.
type LifecycleService interface {
	RunLifecycle(ctx context.Context, workspaceID uuid.UUID) *models.LifecycleResult
}

type lifecycleService struct {
	episodes      repositories.EpisodeRepository
	pruning       PruneService
	consolidation ConsolidationService
	archival      ArchiveService
	cap           CapService
	sink          events.Sink
	logger        *zap.Logger
}

// NewLifecycleService creates a new LifecycleService.
func NewLifecycleService(
	episodes repositories.EpisodeRepository,
	pruning PruneService,
	consolidation ConsolidationService,
	archival ArchiveService,
	cap CapService,
	sink events.Sink,
	logger *zap.Logger,
) LifecycleService {
	return &lifecycleService{
		episodes:      episodes,
		pruning:       pruning,
		consolidation: consolidation,
		archival:      archival,
		cap:           cap,
		sink:          sink,
		logger:        logger.Named("lifecycle-service"),
	}
}

var _ LifecycleService = (*lifecycleService)(nil)

// RunLifecycle never fails the caller. Each phase and each project is
// isolated: a failure is recorded as a human-readable string in
// Errors, a zero-valued placeholder result stands in for that
// phase/project, and the run continues. The lifecycle_completed event
// carries the full aggregated result, success or partial failure.
func (s *lifecycleService) RunLifecycle(ctx context.Context, workspaceID uuid.UUID) *models.LifecycleResult {
	started := time.Now()
	result := &models.LifecycleResult{
		WorkspaceID:          workspaceID,
		ConsolidationResults: []models.ConsolidationResult{},
		CapResults:           []models.CapResult{},
		Errors:               []string{},
	}

	s.logger.Info("Lifecycle run started", zap.String("workspace_id", workspaceID.String()))

	s.runPhase(result, "prune", func() {
		result.PruneResult = s.pruning.Prune(ctx, workspaceID)
	})
	if result.PruneResult == nil {
		result.PruneResult = &models.PruneResult{PrunedIDs: []uuid.UUID{}}
	}

	projects, err := s.episodes.ListProjectIDs(ctx, workspaceID)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("list projects: %v", err))
		projects = nil
	}

	for _, projectID := range projects {
		pid := projectID
		before := len(result.ConsolidationResults)
		s.runPhase(result, fmt.Sprintf("consolidate project %s", pid), func() {
			result.ConsolidationResults = append(result.ConsolidationResults,
				*s.consolidation.Consolidate(ctx, pid, workspaceID))
		})
		if len(result.ConsolidationResults) == before {
			result.ConsolidationResults = append(result.ConsolidationResults,
				models.ConsolidationResult{
					ProjectID:           pid,
					NewEpisodeIDs:       []uuid.UUID{},
					ArchivedOriginalIDs: []uuid.UUID{},
				})
		}
	}

	s.runPhase(result, "archive", func() {
		result.ArchiveResult = s.archival.Archive(ctx, workspaceID)
	})
	if result.ArchiveResult == nil {
		result.ArchiveResult = &models.ArchiveResult{ArchivedIDs: []uuid.UUID{}}
	}

	for _, projectID := range projects {
		pid := projectID
		before := len(result.CapResults)
		s.runPhase(result, fmt.Sprintf("enforce cap project %s", pid), func() {
			result.CapResults = append(result.CapResults,
				*s.cap.EnforceCap(ctx, pid, workspaceID))
		})
		if len(result.CapResults) == before {
			result.CapResults = append(result.CapResults,
				models.CapResult{ProjectID: pid})
		}
	}

	result.TotalDurationMs = time.Since(started).Milliseconds()

	s.logger.Info("Lifecycle run completed",
		zap.String("workspace_id", workspaceID.String()),
		zap.Int64("duration_ms", result.TotalDurationMs),
		zap.Int("errors", len(result.Errors)))

	s.sink.Emit(ctx, events.EventLifecycleCompleted, result)
	return result
}

// runPhase executes one phase call, converting a panic into an entry
// in the result's error list so later phases still run.
func (s *lifecycleService) runPhase(result *models.LifecycleResult, name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Lifecycle phase failed",
				zap.String("phase", name),
				zap.Any("panic", r))
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", name, r))
		}
	}()
	fn()
}
