package services

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mnemo-labs/mnemo-engine/pkg/models"
	"github.com/mnemo-labs/mnemo-engine/pkg/repositories"
)

const (
	// needsPruningRatio is the active/cap ratio past which a project is
	// flagged before it actually exceeds the cap.
	needsPruningRatio = 0.8

	// tooFewThreshold flags projects whose memory is too sparse to be
	// useful for context assembly.
	tooFewThreshold = 10

	// Rough storage estimate applied to graph size numbers.
	estBytesPerNode = 1024
	estBytesPerEdge = 512
)

// ReportService produces the read-only workspace health report.
type ReportService interface {
	Report(ctx context.Context, workspaceID uuid.UUID) (*models.LifecycleReport, error)
}

type reportService struct {
	episodes repositories.EpisodeRepository
	policies PolicyService
	logger   *zap.Logger
}

// NewReportService creates a new ReportService.
func NewReportService(episodes repositories.EpisodeRepository, policies PolicyService, logger *zap.Logger) ReportService {
	return &reportService{
		episodes: episodes,
		policies: policies,
		logger:   logger.Named("report-service"),
	}
}

var _ ReportService = (*reportService)(nil)

func recommend(active, cap int) string {
	switch {
	case active > cap:
		return models.RecommendationOverCap
	case float64(active) > needsPruningRatio*float64(cap):
		return models.RecommendationNeedsPruning
	case active < tooFewThreshold:
		return models.RecommendationTooFew
	default:
		return models.RecommendationHealthy
	}
}

// Report is read-only and idempotent: two calls with no intervening
// writes return identical counts. Metrics sub-query failures degrade
// to zero rather than failing the report.
func (s *reportService) Report(ctx context.Context, workspaceID uuid.UUID) (*models.LifecycleReport, error) {
	policy := s.policies.GetPolicy(ctx, workspaceID)

	counts, err := s.episodes.CountByProject(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	report := &models.LifecycleReport{
		WorkspaceID: workspaceID,
		Projects:    make([]models.ProjectHealth, 0, len(counts)),
		Policy:      policy,
	}

	for _, c := range counts {
		report.Projects = append(report.Projects, models.ProjectHealth{
			ProjectID:      c.ProjectID,
			ActiveCount:    c.Active,
			ArchivedCount:  c.Archived,
			Recommendation: recommend(c.Active, policy.MaxMemoriesPerProject),
		})
		report.TotalActive += c.Active
		report.TotalArchived += c.Archived
	}

	nodes, edges, err := s.episodes.GraphMetrics(ctx, workspaceID)
	if err != nil {
		s.logger.Warn("Graph metrics query failed, reporting zeros",
			zap.String("workspace_id", workspaceID.String()),
			zap.Error(err))
		nodes, edges = 0, 0
	}
	report.Metrics = models.GraphMetrics{
		NodeCount:       nodes,
		EdgeCount:       edges,
		EstStorageBytes: nodes*estBytesPerNode + edges*estBytesPerEdge,
	}

	return report, nil
}
