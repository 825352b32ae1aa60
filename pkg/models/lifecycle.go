package models

import "github.com/google/uuid"

// PruneResult reports the outcome of one pruning pass.
type PruneResult struct {
	PrunedCount      int         `json:"pruned_count"`
	PrunedIDs        []uuid.UUID `json:"pruned_ids"`
	SkippedPinned    int         `json:"skipped_pinned"`
	SkippedDecisions int         `json:"skipped_decisions"`
	SkippedPatterns  int         `json:"skipped_patterns"`
	DurationMs       int64       `json:"duration_ms"`
}

// ConsolidationResult reports the outcome of one consolidation pass
// over a single project.
type ConsolidationResult struct {
	ProjectID           uuid.UUID   `json:"project_id"`
	ConsolidatedCount   int         `json:"consolidated_count"`
	NewEpisodeIDs       []uuid.UUID `json:"new_episode_ids"`
	ArchivedOriginalIDs []uuid.UUID `json:"archived_original_ids"`
	DurationMs          int64       `json:"duration_ms"`
}

// ArchiveResult reports the outcome of one archival pass.
type ArchiveResult struct {
	ArchivedCount    int         `json:"archived_count"`
	ArchivedIDs      []uuid.UUID `json:"archived_ids"`
	SkippedPinned    int         `json:"skipped_pinned"`
	SkippedDecisions int         `json:"skipped_decisions"`
	SkippedPatterns  int         `json:"skipped_patterns"`
	DurationMs       int64       `json:"duration_ms"`
}

// CapResult reports the outcome of cap enforcement for one project.
// Protected episodes may leave a project permanently over cap; that is
// accepted, not an error.
type CapResult struct {
	ProjectID         uuid.UUID `json:"project_id"`
	ActiveCountBefore int       `json:"active_count_before"`
	ActiveCountAfter  int       `json:"active_count_after"`
	ArchivedCount     int       `json:"archived_count"`
	DurationMs        int64     `json:"duration_ms"`
}

// LifecycleResult aggregates a full lifecycle run for a workspace.
// Errors holds human-readable phase/project failure descriptions; a
// run with a non-empty error list is a partial result, never a hard
// failure.
type LifecycleResult struct {
	WorkspaceID          uuid.UUID             `json:"workspace_id"`
	PruneResult          *PruneResult          `json:"prune_result"`
	ConsolidationResults []ConsolidationResult `json:"consolidation_results"`
	ArchiveResult        *ArchiveResult        `json:"archive_result"`
	CapResults           []CapResult           `json:"cap_results"`
	TotalDurationMs      int64                 `json:"total_duration_ms"`
	Errors               []string              `json:"errors"`
}

// Recommendation classifies a project's memory health.
const (
	RecommendationOverCap      = "over-cap"
	RecommendationNeedsPruning = "needs-pruning"
	RecommendationTooFew       = "too-few"
	RecommendationHealthy      = "healthy"
)

// ProjectHealth is the per-project section of a lifecycle report.
type ProjectHealth struct {
	ProjectID      uuid.UUID `json:"project_id"`
	ActiveCount    int       `json:"active_count"`
	ArchivedCount  int       `json:"archived_count"`
	Recommendation string    `json:"recommendation"`
}

// GraphMetrics holds coarse graph-size numbers for a workspace.
type GraphMetrics struct {
	NodeCount       int64 `json:"node_count"`
	EdgeCount       int64 `json:"edge_count"`
	EstStorageBytes int64 `json:"est_storage_bytes"`
}

// LifecycleReport is the read-only workspace health report.
type LifecycleReport struct {
	WorkspaceID   uuid.UUID        `json:"workspace_id"`
	Projects      []ProjectHealth  `json:"projects"`
	TotalActive   int              `json:"total_active"`
	TotalArchived int              `json:"total_archived"`
	Metrics       GraphMetrics     `json:"metrics"`
	Policy        *LifecyclePolicy `json:"policy"`
}
