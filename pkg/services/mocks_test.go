package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mnemo-labs/mnemo-engine/pkg/config"
	"github.com/mnemo-labs/mnemo-engine/pkg/models"
	"github.com/mnemo-labs/mnemo-engine/pkg/repositories"
)

var errStoreDown = errors.New("graph store unavailable")

// testDefaults mirrors the shipped policy defaults.
var testDefaults = config.LifecycleConfig{
	PruneAfterDays:         180,
	ConsolidateThreshold:   0.85,
	ArchiveAfterDays:       365,
	MaxMemoriesPerProject:  5000,
	RetainDecisionsForever: true,
	RetainPatternsForever:  true,
}

// mockEpisodeRepository is an in-memory implementation of
// repositories.EpisodeRepository for engine tests.
type mockEpisodeRepository struct {
	episodes       []*models.Episode
	archiveReasons map[uuid.UUID]string
	provenance     map[uuid.UUID][]uuid.UUID

	failQueries   bool
	failDeleteIDs map[uuid.UUID]bool
	failMetrics   bool
	metricNodes   int64
	metricEdges   int64
}

func newMockEpisodeRepository() *mockEpisodeRepository {
	return &mockEpisodeRepository{
		archiveReasons: make(map[uuid.UUID]string),
		provenance:     make(map[uuid.UUID][]uuid.UUID),
		failDeleteIDs:  make(map[uuid.UUID]bool),
	}
}

var _ repositories.EpisodeRepository = (*mockEpisodeRepository)(nil)

func (m *mockEpisodeRepository) AddEpisode(ctx context.Context, ep *models.Episode) error {
	if ep.ID == uuid.Nil {
		ep.ID = uuid.New()
	}
	if ep.Timestamp.IsZero() {
		ep.Timestamp = time.Now()
	}
	m.episodes = append(m.episodes, ep)
	return nil
}

func (m *mockEpisodeRepository) find(id uuid.UUID) *models.Episode {
	for _, ep := range m.episodes {
		if ep.ID == id {
			return ep
		}
	}
	return nil
}

func (m *mockEpisodeRepository) GetEpisode(ctx context.Context, id uuid.UUID) (*models.Episode, error) {
	return m.find(id), nil
}

func (m *mockEpisodeRepository) DeleteEpisode(ctx context.Context, id uuid.UUID) (bool, error) {
	if m.failDeleteIDs[id] {
		return false, errStoreDown
	}
	for i, ep := range m.episodes {
		if ep.ID == id {
			m.episodes = append(m.episodes[:i], m.episodes[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *mockEpisodeRepository) ArchiveEpisode(ctx context.Context, id uuid.UUID, reason string) (bool, error) {
	ep := m.find(id)
	if ep == nil || ep.Archived {
		return false, nil
	}
	ep.Archived = true
	m.archiveReasons[id] = reason
	return true, nil
}

func (m *mockEpisodeRepository) SetPinned(ctx context.Context, id uuid.UUID, pinned bool) (bool, error) {
	ep := m.find(id)
	if ep == nil {
		return false, nil
	}
	ep.Pinned = pinned
	return true, nil
}

func (m *mockEpisodeRepository) CountActive(ctx context.Context, projectID uuid.UUID) (int, error) {
	if m.failQueries {
		return 0, errStoreDown
	}
	count := 0
	for _, ep := range m.episodes {
		if ep.ProjectID == projectID && !ep.Archived {
			count++
		}
	}
	return count, nil
}

func (m *mockEpisodeRepository) FindStale(ctx context.Context, workspaceID uuid.UUID, maxConfidence float64, cutoff time.Time, limit int) ([]*models.Episode, error) {
	if m.failQueries {
		return nil, errStoreDown
	}
	var result []*models.Episode
	for _, ep := range m.episodes {
		if ep.WorkspaceID == workspaceID && !ep.Archived &&
			ep.Confidence < maxConfidence && ep.Timestamp.Before(cutoff) {
			result = append(result, ep)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Confidence != result[j].Confidence {
			return result[i].Confidence < result[j].Confidence
		}
		return result[i].Timestamp.After(result[j].Timestamp)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *mockEpisodeRepository) FindAgedOut(ctx context.Context, workspaceID uuid.UUID, cutoff time.Time, limit int) ([]*models.Episode, error) {
	if m.failQueries {
		return nil, errStoreDown
	}
	var result []*models.Episode
	for _, ep := range m.episodes {
		if ep.WorkspaceID == workspaceID && !ep.Archived && ep.Timestamp.Before(cutoff) {
			result = append(result, ep)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp.After(result[j].Timestamp)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *mockEpisodeRepository) FindActiveByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Episode, error) {
	if m.failQueries {
		return nil, errStoreDown
	}
	var result []*models.Episode
	for _, ep := range m.episodes {
		if ep.ProjectID == projectID && !ep.Archived {
			result = append(result, ep)
		}
	}
	return result, nil
}

func (m *mockEpisodeRepository) FindSharedEntityPairs(ctx context.Context, projectID uuid.UUID) ([]repositories.EpisodePair, error) {
	if m.failQueries {
		return nil, errStoreDown
	}
	var candidates []*models.Episode
	for _, ep := range m.episodes {
		if ep.ProjectID == projectID && !ep.Archived && ep.EpisodeType != models.EpisodeDecision {
			candidates = append(candidates, ep)
		}
	}

	var pairs []repositories.EpisodePair
	for i := 0; i < len(candidates); i++ {
		for j := i + 1; j < len(candidates); j++ {
			a, b := candidates[i], candidates[j]
			if strings.Compare(a.ID.String(), b.ID.String()) > 0 {
				a, b = b, a
			}
			shared := sharedNames(a.Entities, b.Entities)
			if len(shared) == 0 {
				continue
			}
			pairs = append(pairs, repositories.EpisodePair{IDA: a.ID, IDB: b.ID, SharedEntities: shared})
		}
	}
	return pairs, nil
}

func sharedNames(a, b []string) []string {
	set := make(map[string]struct{}, len(a))
	for _, name := range a {
		set[name] = struct{}{}
	}
	var shared []string
	for _, name := range b {
		if _, ok := set[name]; ok {
			shared = append(shared, name)
		}
	}
	return shared
}

func (m *mockEpisodeRepository) LinkConsolidatedFrom(ctx context.Context, episodeID, originalID uuid.UUID) error {
	m.provenance[episodeID] = append(m.provenance[episodeID], originalID)
	return nil
}

func (m *mockEpisodeRepository) ListProjectIDs(ctx context.Context, workspaceID uuid.UUID) ([]uuid.UUID, error) {
	if m.failQueries {
		return nil, errStoreDown
	}
	seen := make(map[uuid.UUID]struct{})
	var ids []uuid.UUID
	for _, ep := range m.episodes {
		if ep.WorkspaceID != workspaceID {
			continue
		}
		if _, ok := seen[ep.ProjectID]; ok {
			continue
		}
		seen[ep.ProjectID] = struct{}{}
		ids = append(ids, ep.ProjectID)
	}
	return ids, nil
}

func (m *mockEpisodeRepository) CountByProject(ctx context.Context, workspaceID uuid.UUID) ([]repositories.ProjectCounts, error) {
	if m.failQueries {
		return nil, errStoreDown
	}
	byProject := make(map[uuid.UUID]*repositories.ProjectCounts)
	var order []uuid.UUID
	for _, ep := range m.episodes {
		if ep.WorkspaceID != workspaceID {
			continue
		}
		counts, ok := byProject[ep.ProjectID]
		if !ok {
			counts = &repositories.ProjectCounts{ProjectID: ep.ProjectID}
			byProject[ep.ProjectID] = counts
			order = append(order, ep.ProjectID)
		}
		if ep.Archived {
			counts.Archived++
		} else {
			counts.Active++
		}
	}
	result := make([]repositories.ProjectCounts, 0, len(order))
	for _, id := range order {
		result = append(result, *byProject[id])
	}
	return result, nil
}

func (m *mockEpisodeRepository) GraphMetrics(ctx context.Context, workspaceID uuid.UUID) (int64, int64, error) {
	if m.failMetrics {
		return 0, 0, errStoreDown
	}
	return m.metricNodes, m.metricEdges, nil
}

// mockPolicyRepository is an in-memory PolicyRepository.
type mockPolicyRepository struct {
	policies map[uuid.UUID]*models.LifecyclePolicy
	failGet  bool
}

func newMockPolicyRepository() *mockPolicyRepository {
	return &mockPolicyRepository{policies: make(map[uuid.UUID]*models.LifecyclePolicy)}
}

var _ repositories.PolicyRepository = (*mockPolicyRepository)(nil)

func (m *mockPolicyRepository) Get(ctx context.Context, workspaceID uuid.UUID) (*models.LifecyclePolicy, error) {
	if m.failGet {
		return nil, errStoreDown
	}
	return m.policies[workspaceID], nil
}

func (m *mockPolicyRepository) Upsert(ctx context.Context, policy *models.LifecyclePolicy) error {
	copied := *policy
	m.policies[policy.WorkspaceID] = &copied
	return nil
}

// captureSink records emitted events for assertions.
type captureSink struct {
	events   []string
	payloads []interface{}
}

func (c *captureSink) Emit(ctx context.Context, event string, payload interface{}) {
	c.events = append(c.events, event)
	c.payloads = append(c.payloads, payload)
}

func daysAgo(days int) time.Time {
	return time.Now().AddDate(0, 0, -days)
}
