package repositories

import (
	"time"

	"github.com/google/uuid"

	"github.com/mnemo-labs/mnemo-engine/pkg/graph"
	"github.com/mnemo-labs/mnemo-engine/pkg/models"
)

// Value coercion for graph.Record fields. The adapter returns driver
// types (uuid columns as [16]byte, bigints as int64, jsonb as maps);
// these helpers normalize them into domain types.

func recordUUID(v interface{}) uuid.UUID {
	switch t := v.(type) {
	case uuid.UUID:
		return t
	case [16]byte:
		return uuid.UUID(t)
	case string:
		id, err := uuid.Parse(t)
		if err != nil {
			return uuid.Nil
		}
		return id
	default:
		return uuid.Nil
	}
}

func recordString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func recordBool(v interface{}) bool {
	b, _ := v.(bool)
	return b
}

func recordFloat(v interface{}) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int64:
		return float64(t)
	case int32:
		return float64(t)
	default:
		return 0
	}
}

func recordInt(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int32:
		return int64(t)
	case int:
		return int64(t)
	case float64:
		return int64(t)
	default:
		return 0
	}
}

func recordTime(v interface{}) time.Time {
	t, _ := v.(time.Time)
	return t
}

func recordMap(v interface{}) map[string]interface{} {
	m, _ := v.(map[string]interface{})
	return m
}

func recordStrings(v interface{}) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func episodeFromRecord(r graph.Record) *models.Episode {
	return &models.Episode{
		ID:          recordUUID(r["id"]),
		ProjectID:   recordUUID(r["project_id"]),
		WorkspaceID: recordUUID(r["workspace_id"]),
		EpisodeType: models.EpisodeType(recordString(r["episode_type"])),
		Content:     recordString(r["content"]),
		Confidence:  recordFloat(r["confidence"]),
		Entities:    recordStrings(r["entities"]),
		Metadata:    recordMap(r["metadata"]),
		Archived:    recordBool(r["archived"]),
		Pinned:      recordBool(r["pinned"]),
		Timestamp:   recordTime(r["timestamp"]),
	}
}
