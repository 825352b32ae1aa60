// Package models contains domain types for mnemo-engine.
package models

import (
	"time"

	"github.com/google/uuid"
)

// EpisodeType classifies a unit of extracted knowledge.
type EpisodeType string

const (
	EpisodeDecision   EpisodeType = "decision"
	EpisodeFact       EpisodeType = "fact"
	EpisodeProblem    EpisodeType = "problem"
	EpisodePreference EpisodeType = "preference"
	EpisodePattern    EpisodeType = "pattern"
)

// EntityKind classifies a named entity that episodes can reference.
type EntityKind string

const (
	EntityFile    EntityKind = "file"
	EntityAPI     EntityKind = "api"
	EntityLibrary EntityKind = "library"
	EntityService EntityKind = "service"
	EntityConfig  EntityKind = "config"
	EntityOther   EntityKind = "other"
)

// Episode is one timestamped unit of extracted knowledge in the
// per-workspace temporal graph. Timestamp is the creation time and is
// never mutated; consolidation creates a new episode instead of
// rewriting originals.
type Episode struct {
	ID          uuid.UUID              `json:"id"`
	ProjectID   uuid.UUID              `json:"project_id"`
	WorkspaceID uuid.UUID              `json:"workspace_id"`
	EpisodeType EpisodeType            `json:"episode_type"`
	Content     string                 `json:"content"`
	Confidence  float64                `json:"confidence"`
	Entities    []string               `json:"entities,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	Archived    bool                   `json:"archived"`
	Pinned      bool                   `json:"pinned"`
	Timestamp   time.Time              `json:"timestamp"`
}

// EntityRef is a named entity (file, API, library, ...) scoped to a
// project/workspace. Episodes hold REFERENCES edges to entities.
type EntityRef struct {
	ID          uuid.UUID  `json:"id"`
	ProjectID   uuid.UUID  `json:"project_id"`
	WorkspaceID uuid.UUID  `json:"workspace_id"`
	Name        string     `json:"name"`
	Kind        EntityKind `json:"kind"`
}

// AgeDays returns the episode age in whole days relative to now.
func (e *Episode) AgeDays(now time.Time) float64 {
	return now.Sub(e.Timestamp).Hours() / 24
}

// LegacyPinned reports whether the episode carries the legacy
// metadata-encoded pin marker. Older ingestion paths wrote
// metadata.pinned instead of the dedicated column; read paths must
// honor both, writes always target the column.
func (e *Episode) LegacyPinned() bool {
	if e.Metadata == nil {
		return false
	}
	switch v := e.Metadata["pinned"].(type) {
	case bool:
		return v
	case string:
		return v == "true"
	default:
		return false
	}
}

// UsageCount returns the access counter recorded in metadata, 0 when
// absent. Usage is written by the retrieval path, not by this engine.
func (e *Episode) UsageCount() float64 {
	if e.Metadata == nil {
		return 0
	}
	switch v := e.Metadata["usageCount"].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return 0
	}
}

// IsProtected reports whether an episode is immune to automated
// removal (pruning, archival, cap enforcement). Protection never
// blocks the manual pin/unpin/delete operations.
func IsProtected(e *Episode, p *LifecyclePolicy) bool {
	if e.Pinned || e.LegacyPinned() {
		return true
	}
	if e.EpisodeType == EpisodeDecision && p.RetainDecisionsForever {
		return true
	}
	if e.EpisodeType == EpisodePattern && p.RetainPatternsForever {
		return true
	}
	return false
}
