package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mnemo-labs/mnemo-engine/pkg/config"
)

// LifecyclePolicy controls the lifecycle engines for one workspace.
// Created lazily on first update; reads fall back to the configured
// defaults without persisting them.
type LifecyclePolicy struct {
	WorkspaceID            uuid.UUID `json:"workspace_id"`
	PruneAfterDays         int       `json:"prune_after_days"`
	ConsolidateThreshold   float64   `json:"consolidate_threshold"`
	ArchiveAfterDays       int       `json:"archive_after_days"`
	MaxMemoriesPerProject  int       `json:"max_memories_per_project"`
	RetainDecisionsForever bool      `json:"retain_decisions_forever"`
	RetainPatternsForever  bool      `json:"retain_patterns_forever"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// PolicyUpdate is a partial policy overlay. Nil fields are left
// unchanged. Range validation is an API-boundary concern; the engine
// tolerates degenerate values without crashing.
type PolicyUpdate struct {
	PruneAfterDays         *int     `json:"prune_after_days,omitempty"`
	ConsolidateThreshold   *float64 `json:"consolidate_threshold,omitempty"`
	ArchiveAfterDays       *int     `json:"archive_after_days,omitempty"`
	MaxMemoriesPerProject  *int     `json:"max_memories_per_project,omitempty"`
	RetainDecisionsForever *bool    `json:"retain_decisions_forever,omitempty"`
	RetainPatternsForever  *bool    `json:"retain_patterns_forever,omitempty"`
}

// DefaultPolicy builds the synthesized policy for a workspace with no
// stored record, from process configuration.
func DefaultPolicy(workspaceID uuid.UUID, cfg *config.LifecycleConfig) *LifecyclePolicy {
	now := time.Now()
	return &LifecyclePolicy{
		WorkspaceID:            workspaceID,
		PruneAfterDays:         cfg.PruneAfterDays,
		ConsolidateThreshold:   cfg.ConsolidateThreshold,
		ArchiveAfterDays:       cfg.ArchiveAfterDays,
		MaxMemoriesPerProject:  cfg.MaxMemoriesPerProject,
		RetainDecisionsForever: cfg.RetainDecisionsForever,
		RetainPatternsForever:  cfg.RetainPatternsForever,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
}

// Merge overlays the provided fields onto the policy and bumps
// UpdatedAt. Absent fields keep their current values.
func (p *LifecyclePolicy) Merge(update PolicyUpdate) {
	if update.PruneAfterDays != nil {
		p.PruneAfterDays = *update.PruneAfterDays
	}
	if update.ConsolidateThreshold != nil {
		p.ConsolidateThreshold = *update.ConsolidateThreshold
	}
	if update.ArchiveAfterDays != nil {
		p.ArchiveAfterDays = *update.ArchiveAfterDays
	}
	if update.MaxMemoriesPerProject != nil {
		p.MaxMemoriesPerProject = *update.MaxMemoriesPerProject
	}
	if update.RetainDecisionsForever != nil {
		p.RetainDecisionsForever = *update.RetainDecisionsForever
	}
	if update.RetainPatternsForever != nil {
		p.RetainPatternsForever = *update.RetainPatternsForever
	}
	p.UpdatedAt = time.Now()
}
