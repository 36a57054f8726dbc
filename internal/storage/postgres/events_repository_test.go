package postgres

import (
	"context"
	"testing"

	"github.com/get-me-through/server/internal/domain/events"
	"github.com/stretchr/testify/require"
)

func TestEventRepositoryReserveSlotStopsAtLimit(t *testing.T) {
	pool := setupPostgres(t)
	ctx := context.Background()

	owner := insertUser(t, ctx, pool, "Owner", "owner@example.com")
	category := insertCategory(t, ctx, pool, "Tech")
	eventID := insertEvent(t, ctx, pool, owner, category, "Workshop", 2, 0)

	repo, err := NewRepository(pool)
	require.NoError(t, err)
	eventsRepo := repo.Events()

	for i := 0; i < 2; i++ {
		ok, err := eventsRepo.ReserveSlot(ctx, eventID)
		require.NoError(t, err)
		require.True(t, ok)
	}

	ok, err := eventsRepo.ReserveSlot(ctx, eventID)
	require.NoError(t, err)
	require.False(t, ok, "third reservation must be refused at limit 2")

	event, err := eventsRepo.GetByID(ctx, eventID)
	require.NoError(t, err)
	require.Equal(t, 2, event.ParticipantsCount)
}

func TestEventRepositoryReserveSlotUnbounded(t *testing.T) {
	pool := setupPostgres(t)
	ctx := context.Background()

	owner := insertUser(t, ctx, pool, "Owner", "owner@example.com")
	category := insertCategory(t, ctx, pool, "Tech")
	eventID := insertEvent(t, ctx, pool, owner, category, "Meetup", 0, 0)

	repo, err := NewRepository(pool)
	require.NoError(t, err)
	eventsRepo := repo.Events()

	for i := 0; i < 5; i++ {
		ok, err := eventsRepo.ReserveSlot(ctx, eventID)
		require.NoError(t, err)
		require.True(t, ok)
	}
}

func TestEventRepositoryReleaseSlotNeverGoesNegative(t *testing.T) {
	pool := setupPostgres(t)
	ctx := context.Background()

	owner := insertUser(t, ctx, pool, "Owner", "owner@example.com")
	category := insertCategory(t, ctx, pool, "Tech")
	eventID := insertEvent(t, ctx, pool, owner, category, "Meetup", 0, 0)

	repo, err := NewRepository(pool)
	require.NoError(t, err)
	eventsRepo := repo.Events()

	require.NoError(t, eventsRepo.ReleaseSlot(ctx, eventID))

	event, err := eventsRepo.GetByID(ctx, eventID)
	require.NoError(t, err)
	require.Equal(t, 0, event.ParticipantsCount)
}

func TestEventRepositoryListFilters(t *testing.T) {
	pool := setupPostgres(t)
	ctx := context.Background()

	owner := insertUser(t, ctx, pool, "Owner", "owner@example.com")
	other := insertUser(t, ctx, pool, "Other", "other@example.com")
	tech := insertCategory(t, ctx, pool, "Tech")
	music := insertCategory(t, ctx, pool, "Music")

	insertEvent(t, ctx, pool, owner, tech, "GopherCon", 0, 0)
	insertEvent(t, ctx, pool, owner, music, "Concert", 0, 50000)
	insertEvent(t, ctx, pool, other, tech, "Hackathon", 0, 0)

	repo, err := NewRepository(pool)
	require.NoError(t, err)
	eventsRepo := repo.Events()

	byCategory, total, err := eventsRepo.List(ctx, events.Filter{CategoryID: tech}, 10, 0)
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Len(t, byCategory, 2)

	byOwner, total, err := eventsRepo.List(ctx, events.Filter{OwnerID: other}, 10, 0)
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, "Hackathon", byOwner[0].Name)

	free := true
	freeOnly, total, err := eventsRepo.List(ctx, events.Filter{Free: &free}, 10, 0)
	require.NoError(t, err)
	require.Equal(t, 2, total)
	for _, event := range freeOnly {
		require.True(t, event.Free)
	}

	paged, total, err := eventsRepo.List(ctx, events.Filter{}, 2, 0)
	require.NoError(t, err)
	require.Equal(t, 3, total)
	require.Len(t, paged, 2)
}

func TestEventRepositoryGetMissing(t *testing.T) {
	pool := setupPostgres(t)
	ctx := context.Background()

	repo, err := NewRepository(pool)
	require.NoError(t, err)

	_, err = repo.Events().GetByID(ctx, "01JUNKJUNKJUNKJUNKJUNKJUNK")
	require.ErrorIs(t, err, events.ErrNotFound)
}
