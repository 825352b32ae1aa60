package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/mnemo-labs/mnemo-engine/pkg/graph"
	"github.com/mnemo-labs/mnemo-engine/pkg/models"
)

// PolicyRepository provides data access for per-workspace lifecycle
// policies.
type PolicyRepository interface {
	// Get returns the stored policy, or nil when the workspace has none.
	Get(ctx context.Context, workspaceID uuid.UUID) (*models.LifecyclePolicy, error)

	// Upsert creates or replaces the workspace policy.
	Upsert(ctx context.Context, policy *models.LifecyclePolicy) error
}

type policyRepository struct {
	adapter graph.Adapter
}

// NewPolicyRepository creates a new PolicyRepository over the given adapter.
func NewPolicyRepository(adapter graph.Adapter) PolicyRepository {
	return &policyRepository{adapter: adapter}
}

var _ PolicyRepository = (*policyRepository)(nil)

func (r *policyRepository) Get(ctx context.Context, workspaceID uuid.UUID) (*models.LifecyclePolicy, error) {
	records, err := r.adapter.RunQuery(ctx, `
		SELECT workspace_id, prune_after_days, consolidate_threshold,
		       archive_after_days, max_memories_per_project,
		       retain_decisions_forever, retain_patterns_forever,
		       created_at, updated_at
		FROM lifecycle_policies
		WHERE workspace_id = @workspace_id`,
		map[string]interface{}{"workspace_id": workspaceID})
	if err != nil {
		return nil, fmt.Errorf("failed to get lifecycle policy: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	rec := records[0]
	return &models.LifecyclePolicy{
		WorkspaceID:            recordUUID(rec["workspace_id"]),
		PruneAfterDays:         int(recordInt(rec["prune_after_days"])),
		ConsolidateThreshold:   recordFloat(rec["consolidate_threshold"]),
		ArchiveAfterDays:       int(recordInt(rec["archive_after_days"])),
		MaxMemoriesPerProject:  int(recordInt(rec["max_memories_per_project"])),
		RetainDecisionsForever: recordBool(rec["retain_decisions_forever"]),
		RetainPatternsForever:  recordBool(rec["retain_patterns_forever"]),
		CreatedAt:              recordTime(rec["created_at"]),
		UpdatedAt:              recordTime(rec["updated_at"]),
	}, nil
}

func (r *policyRepository) Upsert(ctx context.Context, policy *models.LifecyclePolicy) error {
	_, err := r.adapter.Execute(ctx, `
		INSERT INTO lifecycle_policies (
			workspace_id, prune_after_days, consolidate_threshold,
			archive_after_days, max_memories_per_project,
			retain_decisions_forever, retain_patterns_forever,
			created_at, updated_at
		) VALUES (
			@workspace_id, @prune_after_days, @consolidate_threshold,
			@archive_after_days, @max_memories_per_project,
			@retain_decisions_forever, @retain_patterns_forever,
			@created_at, @updated_at
		)
		ON CONFLICT (workspace_id) DO UPDATE SET
			prune_after_days = EXCLUDED.prune_after_days,
			consolidate_threshold = EXCLUDED.consolidate_threshold,
			archive_after_days = EXCLUDED.archive_after_days,
			max_memories_per_project = EXCLUDED.max_memories_per_project,
			retain_decisions_forever = EXCLUDED.retain_decisions_forever,
			retain_patterns_forever = EXCLUDED.retain_patterns_forever,
			updated_at = EXCLUDED.updated_at`,
		map[string]interface{}{
			"workspace_id":             policy.WorkspaceID,
			"prune_after_days":         policy.PruneAfterDays,
			"consolidate_threshold":    policy.ConsolidateThreshold,
			"archive_after_days":       policy.ArchiveAfterDays,
			"max_memories_per_project": policy.MaxMemoriesPerProject,
			"retain_decisions_forever": policy.RetainDecisionsForever,
			"retain_patterns_forever":  policy.RetainPatternsForever,
			"created_at":               policy.CreatedAt,
			"updated_at":               policy.UpdatedAt,
		})
	if err != nil {
		return fmt.Errorf("failed to upsert lifecycle policy: %w", err)
	}
	return nil
}
