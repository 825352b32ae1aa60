package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mnemo-labs/mnemo-engine/pkg/graph"
	"github.com/mnemo-labs/mnemo-engine/pkg/models"
)

// EpisodePair is a candidate consolidation pair: two distinct episodes
// of the same project sharing at least one referenced entity. IDA < IDB
// so each unordered pair is reported once.
type EpisodePair struct {
	IDA            uuid.UUID
	IDB            uuid.UUID
	SharedEntities []string
}

// ProjectCounts holds active/archived episode counts for one project.
type ProjectCounts struct {
	ProjectID uuid.UUID
	Active    int
	Archived  int
}

// EpisodeRepository is the domain-shaped facade over the graph store:
// episode nodes, REFERENCES edges to entities, and CONSOLIDATED_FROM
// provenance edges.
type EpisodeRepository interface {
	AddEpisode(ctx context.Context, ep *models.Episode) error
	GetEpisode(ctx context.Context, id uuid.UUID) (*models.Episode, error)
	DeleteEpisode(ctx context.Context, id uuid.UUID) (bool, error)
	ArchiveEpisode(ctx context.Context, id uuid.UUID, reason string) (bool, error)
	SetPinned(ctx context.Context, id uuid.UUID, pinned bool) (bool, error)
	CountActive(ctx context.Context, projectID uuid.UUID) (int, error)
	FindStale(ctx context.Context, workspaceID uuid.UUID, maxConfidence float64, cutoff time.Time, limit int) ([]*models.Episode, error)
	FindAgedOut(ctx context.Context, workspaceID uuid.UUID, cutoff time.Time, limit int) ([]*models.Episode, error)
	FindActiveByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Episode, error)
	FindSharedEntityPairs(ctx context.Context, projectID uuid.UUID) ([]EpisodePair, error)
	LinkConsolidatedFrom(ctx context.Context, episodeID, originalID uuid.UUID) error
	ListProjectIDs(ctx context.Context, workspaceID uuid.UUID) ([]uuid.UUID, error)
	CountByProject(ctx context.Context, workspaceID uuid.UUID) ([]ProjectCounts, error)
	GraphMetrics(ctx context.Context, workspaceID uuid.UUID) (nodes, edges int64, err error)
}

type episodeRepository struct {
	adapter graph.Adapter
}

// NewEpisodeRepository creates a new EpisodeRepository over the given adapter.
func NewEpisodeRepository(adapter graph.Adapter) EpisodeRepository {
	return &episodeRepository{adapter: adapter}
}

var _ EpisodeRepository = (*episodeRepository)(nil)

const episodeColumns = `
		e.id, e.project_id, e.workspace_id, e.episode_type, e.content,
		e.confidence, e.metadata, e.archived, e.pinned, e.timestamp,
		COALESCE(array_agg(en.name) FILTER (WHERE en.id IS NOT NULL), '{}') AS entities`

const episodeJoins = `
	LEFT JOIN episode_entities x ON x.episode_id = e.id
	LEFT JOIN entities en ON en.id = x.entity_id`

func (r *episodeRepository) AddEpisode(ctx context.Context, ep *models.Episode) error {
	if ep.ID == uuid.Nil {
		ep.ID = uuid.New()
	}
	if ep.Timestamp.IsZero() {
		ep.Timestamp = time.Now()
	}
	if ep.Metadata == nil {
		ep.Metadata = map[string]interface{}{}
	}

	query := `
		INSERT INTO episodes (
			id, project_id, workspace_id, episode_type, content,
			confidence, metadata, archived, pinned, timestamp
		) VALUES (
			@id, @project_id, @workspace_id, @episode_type, @content,
			@confidence, @metadata, FALSE, @pinned, @timestamp
		)`

	_, err := r.adapter.Execute(ctx, query, map[string]interface{}{
		"id":           ep.ID,
		"project_id":   ep.ProjectID,
		"workspace_id": ep.WorkspaceID,
		"episode_type": string(ep.EpisodeType),
		"content":      ep.Content,
		"confidence":   ep.Confidence,
		"metadata":     ep.Metadata,
		"pinned":       ep.Pinned,
		"timestamp":    ep.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("failed to insert episode: %w", err)
	}

	for _, name := range ep.Entities {
		if err := r.linkEntity(ctx, ep, name); err != nil {
			return fmt.Errorf("failed to link entity %q: %w", name, err)
		}
	}

	return nil
}

// linkEntity upserts the named entity and creates a REFERENCES edge.
func (r *episodeRepository) linkEntity(ctx context.Context, ep *models.Episode, name string) error {
	records, err := r.adapter.RunQuery(ctx, `
		INSERT INTO entities (id, project_id, workspace_id, name, kind)
		VALUES (@id, @project_id, @workspace_id, @name, 'other')
		ON CONFLICT (project_id, name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`,
		map[string]interface{}{
			"id":           uuid.New(),
			"project_id":   ep.ProjectID,
			"workspace_id": ep.WorkspaceID,
			"name":         name,
		})
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("entity upsert returned no id")
	}

	_, err = r.adapter.Execute(ctx, `
		INSERT INTO episode_entities (episode_id, entity_id)
		VALUES (@episode_id, @entity_id)
		ON CONFLICT DO NOTHING`,
		map[string]interface{}{
			"episode_id": ep.ID,
			"entity_id":  recordUUID(records[0]["id"]),
		})
	return err
}

func (r *episodeRepository) GetEpisode(ctx context.Context, id uuid.UUID) (*models.Episode, error) {
	records, err := r.adapter.RunQuery(ctx, `
		SELECT`+episodeColumns+`
		FROM episodes e`+episodeJoins+`
		WHERE e.id = @id
		GROUP BY e.id`,
		map[string]interface{}{"id": id})
	if err != nil {
		return nil, fmt.Errorf("failed to get episode: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	return episodeFromRecord(records[0]), nil
}

func (r *episodeRepository) DeleteEpisode(ctx context.Context, id uuid.UUID) (bool, error) {
	affected, err := r.adapter.Execute(ctx,
		`DELETE FROM episodes WHERE id = @id`,
		map[string]interface{}{"id": id})
	if err != nil {
		return false, fmt.Errorf("failed to delete episode: %w", err)
	}
	return affected > 0, nil
}

func (r *episodeRepository) ArchiveEpisode(ctx context.Context, id uuid.UUID, reason string) (bool, error) {
	affected, err := r.adapter.Execute(ctx, `
		UPDATE episodes
		SET archived = TRUE, archive_reason = @reason
		WHERE id = @id AND NOT archived`,
		map[string]interface{}{"id": id, "reason": reason})
	if err != nil {
		return false, fmt.Errorf("failed to archive episode: %w", err)
	}
	return affected > 0, nil
}

func (r *episodeRepository) SetPinned(ctx context.Context, id uuid.UUID, pinned bool) (bool, error) {
	affected, err := r.adapter.Execute(ctx,
		`UPDATE episodes SET pinned = @pinned WHERE id = @id`,
		map[string]interface{}{"id": id, "pinned": pinned})
	if err != nil {
		return false, fmt.Errorf("failed to set pinned flag: %w", err)
	}
	return affected > 0, nil
}

func (r *episodeRepository) CountActive(ctx context.Context, projectID uuid.UUID) (int, error) {
	records, err := r.adapter.RunQuery(ctx,
		`SELECT COUNT(*) AS n FROM episodes WHERE project_id = @project_id AND NOT archived`,
		map[string]interface{}{"project_id": projectID})
	if err != nil {
		return 0, fmt.Errorf("failed to count active episodes: %w", err)
	}
	if len(records) == 0 {
		return 0, nil
	}
	return int(recordInt(records[0]["n"])), nil
}

func (r *episodeRepository) FindStale(ctx context.Context, workspaceID uuid.UUID, maxConfidence float64, cutoff time.Time, limit int) ([]*models.Episode, error) {
	records, err := r.adapter.RunQuery(ctx, `
		SELECT`+episodeColumns+`
		FROM episodes e`+episodeJoins+`
		WHERE e.workspace_id = @workspace_id
		  AND NOT e.archived
		  AND e.confidence < @max_confidence
		  AND e.timestamp < @cutoff
		GROUP BY e.id
		ORDER BY e.confidence ASC, e.timestamp DESC
		LIMIT @limit`,
		map[string]interface{}{
			"workspace_id":   workspaceID,
			"max_confidence": maxConfidence,
			"cutoff":         cutoff,
			"limit":          limit,
		})
	if err != nil {
		return nil, fmt.Errorf("failed to find stale episodes: %w", err)
	}
	return episodesFromRecords(records), nil
}

func (r *episodeRepository) FindAgedOut(ctx context.Context, workspaceID uuid.UUID, cutoff time.Time, limit int) ([]*models.Episode, error) {
	records, err := r.adapter.RunQuery(ctx, `
		SELECT`+episodeColumns+`
		FROM episodes e`+episodeJoins+`
		WHERE e.workspace_id = @workspace_id
		  AND NOT e.archived
		  AND e.timestamp < @cutoff
		GROUP BY e.id
		ORDER BY e.timestamp DESC
		LIMIT @limit`,
		map[string]interface{}{
			"workspace_id": workspaceID,
			"cutoff":       cutoff,
			"limit":        limit,
		})
	if err != nil {
		return nil, fmt.Errorf("failed to find aged-out episodes: %w", err)
	}
	return episodesFromRecords(records), nil
}

func (r *episodeRepository) FindActiveByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Episode, error) {
	records, err := r.adapter.RunQuery(ctx, `
		SELECT`+episodeColumns+`
		FROM episodes e`+episodeJoins+`
		WHERE e.project_id = @project_id AND NOT e.archived
		GROUP BY e.id
		ORDER BY e.timestamp ASC`,
		map[string]interface{}{"project_id": projectID})
	if err != nil {
		return nil, fmt.Errorf("failed to find active episodes: %w", err)
	}
	return episodesFromRecords(records), nil
}

// FindSharedEntityPairs traverses episode -> entity <- episode within a
// project. Decision episodes never consolidate; pin/retention
// protection is policy-dependent and filtered by the caller.
func (r *episodeRepository) FindSharedEntityPairs(ctx context.Context, projectID uuid.UUID) ([]EpisodePair, error) {
	records, err := r.adapter.RunQuery(ctx, `
		SELECT x1.episode_id AS id_a, x2.episode_id AS id_b,
		       array_agg(DISTINCT en.name) AS shared_entities
		FROM episode_entities x1
		JOIN episode_entities x2
		  ON x2.entity_id = x1.entity_id AND x1.episode_id < x2.episode_id
		JOIN episodes e1 ON e1.id = x1.episode_id
		JOIN episodes e2 ON e2.id = x2.episode_id
		JOIN entities en ON en.id = x1.entity_id
		WHERE e1.project_id = @project_id AND e2.project_id = @project_id
		  AND NOT e1.archived AND NOT e2.archived
		  AND e1.episode_type <> 'decision' AND e2.episode_type <> 'decision'
		GROUP BY x1.episode_id, x2.episode_id
		ORDER BY x1.episode_id, x2.episode_id`,
		map[string]interface{}{"project_id": projectID})
	if err != nil {
		return nil, fmt.Errorf("failed to find shared-entity pairs: %w", err)
	}

	pairs := make([]EpisodePair, 0, len(records))
	for _, rec := range records {
		pairs = append(pairs, EpisodePair{
			IDA:            recordUUID(rec["id_a"]),
			IDB:            recordUUID(rec["id_b"]),
			SharedEntities: recordStrings(rec["shared_entities"]),
		})
	}
	return pairs, nil
}

func (r *episodeRepository) LinkConsolidatedFrom(ctx context.Context, episodeID, originalID uuid.UUID) error {
	_, err := r.adapter.Execute(ctx, `
		INSERT INTO episode_provenance (episode_id, original_id)
		VALUES (@episode_id, @original_id)
		ON CONFLICT DO NOTHING`,
		map[string]interface{}{"episode_id": episodeID, "original_id": originalID})
	if err != nil {
		return fmt.Errorf("failed to link provenance: %w", err)
	}
	return nil
}

func (r *episodeRepository) ListProjectIDs(ctx context.Context, workspaceID uuid.UUID) ([]uuid.UUID, error) {
	records, err := r.adapter.RunQuery(ctx, `
		SELECT DISTINCT project_id FROM episodes
		WHERE workspace_id = @workspace_id
		ORDER BY project_id`,
		map[string]interface{}{"workspace_id": workspaceID})
	if err != nil {
		return nil, fmt.Errorf("failed to list project ids: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(records))
	for _, rec := range records {
		ids = append(ids, recordUUID(rec["project_id"]))
	}
	return ids, nil
}

func (r *episodeRepository) CountByProject(ctx context.Context, workspaceID uuid.UUID) ([]ProjectCounts, error) {
	records, err := r.adapter.RunQuery(ctx, `
		SELECT project_id,
		       COUNT(*) FILTER (WHERE NOT archived) AS active,
		       COUNT(*) FILTER (WHERE archived) AS archived
		FROM episodes
		WHERE workspace_id = @workspace_id
		GROUP BY project_id
		ORDER BY project_id`,
		map[string]interface{}{"workspace_id": workspaceID})
	if err != nil {
		return nil, fmt.Errorf("failed to count episodes by project: %w", err)
	}

	counts := make([]ProjectCounts, 0, len(records))
	for _, rec := range records {
		counts = append(counts, ProjectCounts{
			ProjectID: recordUUID(rec["project_id"]),
			Active:    int(recordInt(rec["active"])),
			Archived:  int(recordInt(rec["archived"])),
		})
	}
	return counts, nil
}

func (r *episodeRepository) GraphMetrics(ctx context.Context, workspaceID uuid.UUID) (int64, int64, error) {
	records, err := r.adapter.RunQuery(ctx, `
		SELECT
			(SELECT COUNT(*) FROM episodes WHERE workspace_id = @workspace_id) +
			(SELECT COUNT(*) FROM entities WHERE workspace_id = @workspace_id) AS nodes,
			(SELECT COUNT(*) FROM episode_entities x
				JOIN episodes e ON e.id = x.episode_id
				WHERE e.workspace_id = @workspace_id) +
			(SELECT COUNT(*) FROM episode_provenance p
				JOIN episodes e ON e.id = p.episode_id
				WHERE e.workspace_id = @workspace_id) AS edges`,
		map[string]interface{}{"workspace_id": workspaceID})
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read graph metrics: %w", err)
	}
	if len(records) == 0 {
		return 0, 0, nil
	}
	return recordInt(records[0]["nodes"]), recordInt(records[0]["edges"]), nil
}

func episodesFromRecords(records []graph.Record) []*models.Episode {
	episodes := make([]*models.Episode, 0, len(records))
	for _, rec := range records {
		episodes = append(episodes, episodeFromRecord(rec))
	}
	return episodes
}
