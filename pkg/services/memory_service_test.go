package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mnemo-labs/mnemo-engine/pkg/apperrors"
	"github.com/mnemo-labs/mnemo-engine/pkg/events"
	"github.com/mnemo-labs/mnemo-engine/pkg/models"
)

func newMemoryFixture() (*mockEpisodeRepository, *captureSink, MemoryService) {
	repo := newMockEpisodeRepository()
	sink := &captureSink{}
	svc := NewMemoryService(repo, sink, zap.NewNop())
	return repo, sink, svc
}

func TestMemoryService_Get(t *testing.T) {
	repo, _, svc := newMemoryFixture()
	ep := newTestEpisode(uuid.New(), uuid.New(), models.EpisodeFact, 0.5, 10)
	require.NoError(t, repo.AddEpisode(context.Background(), ep))

	got, err := svc.Get(context.Background(), ep.ID)
	require.NoError(t, err)
	assert.Equal(t, ep.ID, got.ID)

	_, err = svc.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestMemoryService_PinSetsFlagAndEmits(t *testing.T) {
	repo, sink, svc := newMemoryFixture()
	ep := newTestEpisode(uuid.New(), uuid.New(), models.EpisodeFact, 0.5, 10)
	require.NoError(t, repo.AddEpisode(context.Background(), ep))

	found, err := svc.Pin(context.Background(), ep.ID)

	require.NoError(t, err)
	assert.True(t, found)
	assert.True(t, ep.Pinned)
	require.Len(t, sink.events, 1)
	assert.Equal(t, events.EventMemoryPinned, sink.events[0])
}

func TestMemoryService_UnpinClearsFlag(t *testing.T) {
	repo, sink, svc := newMemoryFixture()
	ep := newTestEpisode(uuid.New(), uuid.New(), models.EpisodeFact, 0.5, 10)
	ep.Pinned = true
	require.NoError(t, repo.AddEpisode(context.Background(), ep))

	found, err := svc.Unpin(context.Background(), ep.ID)

	require.NoError(t, err)
	assert.True(t, found)
	assert.False(t, ep.Pinned)
	require.Len(t, sink.events, 1)
	assert.Equal(t, events.EventMemoryUnpinned, sink.events[0])
}

func TestMemoryService_UnpinLeavesLegacyMarkerAlone(t *testing.T) {
	repo, _, svc := newMemoryFixture()
	ep := newTestEpisode(uuid.New(), uuid.New(), models.EpisodeFact, 0.5, 10)
	ep.Metadata = map[string]interface{}{"pinned": true}
	require.NoError(t, repo.AddEpisode(context.Background(), ep))

	_, err := svc.Unpin(context.Background(), ep.ID)

	require.NoError(t, err)
	// Writes target only the dedicated column; the metadata marker is
	// untouched and the episode stays protected via the legacy path.
	assert.True(t, ep.LegacyPinned())
}

func TestMemoryService_DeleteRemovesEvenPinned(t *testing.T) {
	repo, sink, svc := newMemoryFixture()
	ep := newTestEpisode(uuid.New(), uuid.New(), models.EpisodeFact, 0.9, 1)
	ep.Pinned = true
	require.NoError(t, repo.AddEpisode(context.Background(), ep))

	found, err := svc.Delete(context.Background(), ep.ID)

	require.NoError(t, err)
	assert.True(t, found)
	got, err := repo.GetEpisode(context.Background(), ep.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
	require.Len(t, sink.events, 1)
	assert.Equal(t, events.EventMemoryDeleted, sink.events[0])
}

func TestMemoryService_MissingEpisodeNoEvent(t *testing.T) {
	_, sink, svc := newMemoryFixture()

	found, err := svc.Pin(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.False(t, found)

	found, err = svc.Delete(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.False(t, found)

	assert.Empty(t, sink.events)
}

func TestMemoryService_DeleteFailurePropagates(t *testing.T) {
	repo, sink, svc := newMemoryFixture()
	ep := newTestEpisode(uuid.New(), uuid.New(), models.EpisodeFact, 0.5, 10)
	require.NoError(t, repo.AddEpisode(context.Background(), ep))
	repo.failDeleteIDs[ep.ID] = true

	found, err := svc.Delete(context.Background(), ep.ID)

	assert.Error(t, err)
	assert.False(t, found)
	assert.Empty(t, sink.events)
}
