package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mnemo-labs/mnemo-engine/pkg/models"
)

func TestRecommend(t *testing.T) {
	tests := []struct {
		name   string
		active int
		cap    int
		want   string
	}{
		{"over cap", 101, 100, models.RecommendationOverCap},
		{"at cap", 100, 100, models.RecommendationNeedsPruning},
		{"above pruning ratio", 81, 100, models.RecommendationNeedsPruning},
		{"at pruning ratio", 80, 100, models.RecommendationHealthy},
		{"too few", 9, 100, models.RecommendationTooFew},
		{"healthy", 50, 100, models.RecommendationHealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, recommend(tt.active, tt.cap))
		})
	}
}

func TestReportService_CountsAndRecommendations(t *testing.T) {
	repo := newMockEpisodeRepository()
	repo.metricNodes = 100
	repo.metricEdges = 40
	policies := newTestPolicyService(newMockPolicyRepository())
	svc := NewReportService(repo, policies, zap.NewNop())

	workspaceID := uuid.New()
	cap := 20
	_, err := policies.UpdatePolicy(context.Background(), workspaceID, models.PolicyUpdate{
		MaxMemoriesPerProject: &cap,
	})
	require.NoError(t, err)

	sparse := uuid.New()
	crowded := uuid.New()
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.AddEpisode(context.Background(),
			newTestEpisode(sparse, workspaceID, models.EpisodeFact, 0.5, 1)))
	}
	for i := 0; i < 25; i++ {
		require.NoError(t, repo.AddEpisode(context.Background(),
			newTestEpisode(crowded, workspaceID, models.EpisodeFact, 0.5, 1)))
	}
	archived := newTestEpisode(crowded, workspaceID, models.EpisodeFact, 0.5, 1)
	archived.Archived = true
	require.NoError(t, repo.AddEpisode(context.Background(), archived))

	report, err := svc.Report(context.Background(), workspaceID)
	require.NoError(t, err)

	assert.Equal(t, workspaceID, report.WorkspaceID)
	assert.Equal(t, 28, report.TotalActive)
	assert.Equal(t, 1, report.TotalArchived)
	require.Len(t, report.Projects, 2)

	byProject := make(map[uuid.UUID]models.ProjectHealth)
	for _, p := range report.Projects {
		byProject[p.ProjectID] = p
	}
	assert.Equal(t, models.RecommendationTooFew, byProject[sparse].Recommendation)
	assert.Equal(t, models.RecommendationOverCap, byProject[crowded].Recommendation)
	assert.Equal(t, 25, byProject[crowded].ActiveCount)
	assert.Equal(t, 1, byProject[crowded].ArchivedCount)

	assert.Equal(t, int64(100), report.Metrics.NodeCount)
	assert.Equal(t, int64(40), report.Metrics.EdgeCount)
	assert.Equal(t, int64(100*1024+40*512), report.Metrics.EstStorageBytes)
	assert.Equal(t, cap, report.Policy.MaxMemoriesPerProject)
}

func TestReportService_Idempotent(t *testing.T) {
	repo := newMockEpisodeRepository()
	policies := newTestPolicyService(newMockPolicyRepository())
	svc := NewReportService(repo, policies, zap.NewNop())

	workspaceID := uuid.New()
	projectID := uuid.New()
	for i := 0; i < 12; i++ {
		require.NoError(t, repo.AddEpisode(context.Background(),
			newTestEpisode(projectID, workspaceID, models.EpisodeFact, 0.5, 1)))
	}

	first, err := svc.Report(context.Background(), workspaceID)
	require.NoError(t, err)
	second, err := svc.Report(context.Background(), workspaceID)
	require.NoError(t, err)

	assert.Equal(t, first.TotalActive, second.TotalActive)
	assert.Equal(t, first.TotalArchived, second.TotalArchived)
	assert.Equal(t, first.Projects, second.Projects)
}

func TestReportService_MetricsFailureReportsZeros(t *testing.T) {
	repo := newMockEpisodeRepository()
	repo.failMetrics = true
	policies := newTestPolicyService(newMockPolicyRepository())
	svc := NewReportService(repo, policies, zap.NewNop())

	workspaceID := uuid.New()
	require.NoError(t, repo.AddEpisode(context.Background(),
		newTestEpisode(uuid.New(), workspaceID, models.EpisodeFact, 0.5, 1)))

	report, err := svc.Report(context.Background(), workspaceID)
	require.NoError(t, err)

	assert.Equal(t, int64(0), report.Metrics.NodeCount)
	assert.Equal(t, int64(0), report.Metrics.EdgeCount)
	assert.Equal(t, int64(0), report.Metrics.EstStorageBytes)
	require.Len(t, report.Projects, 1)
}

func TestReportService_CountFailurePropagates(t *testing.T) {
	repo := newMockEpisodeRepository()
	repo.failQueries = true
	policies := newTestPolicyService(newMockPolicyRepository())
	svc := NewReportService(repo, policies, zap.NewNop())

	report, err := svc.Report(context.Background(), uuid.New())

	assert.Error(t, err)
	assert.Nil(t, report)
}
