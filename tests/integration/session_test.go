//go:build integration

package integration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eogh234/srt-reservation/internal/engine"
	"github.com/eogh234/srt-reservation/internal/models"
	"github.com/eogh234/srt-reservation/internal/repository"
)

func newRecord(state models.BookingState, startedAgo time.Duration) *models.SessionRecord {
	s := engine.NewSession(models.TripQuery{
		DepartureStation: "수서",
		ArrivalStation:   "부산",
		DepartureDate:    "20260915",
		DepartureTime:    "08",
		TrainsToCheck:    2,
	}, models.Credentials{ID: "u", Secret: "p"})
	rec := s.Record()
	rec.State = state
	rec.StartedAt = time.Now().Add(-startedAgo)
	return rec
}

func TestSessionJournalRoundTrip(t *testing.T) {
	cleanTables()
	repo := repository.NewSessionRepository(testDB)
	ctx := context.Background()

	rec := newRecord(models.StateInitialized, 0)
	require.NoError(t, repo.Create(ctx, rec))

	got, err := repo.FindByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "수서", got.DepartureStation)
	assert.Equal(t, models.StateInitialized, got.State)
	assert.Equal(t, 0, got.RefreshCount)

	now := time.Now()
	rec.State = models.StateBooked
	rec.RefreshCount = 42
	rec.FinishedAt = &now
	require.NoError(t, repo.Update(ctx, rec))

	got, err = repo.FindByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateBooked, got.State)
	assert.Equal(t, 42, got.RefreshCount)
	require.NotNil(t, got.FinishedAt)
}

func TestSessionJournalUpdateFailure(t *testing.T) {
	cleanTables()
	repo := repository.NewSessionRepository(testDB)
	ctx := context.Background()

	rec := newRecord(models.StateInitialized, 0)
	require.NoError(t, repo.Create(ctx, rec))

	rec.State = models.StateFailed
	rec.LastError = "login failed after 10 attempts"
	require.NoError(t, repo.Update(ctx, rec))

	got, err := repo.FindByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateFailed, got.State)
	assert.Equal(t, "login failed after 10 attempts", got.LastError)
}

func TestFindRecentOrdersNewestFirst(t *testing.T) {
	cleanTables()
	repo := repository.NewSessionRepository(testDB)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		rec := newRecord(models.StateBooked, time.Duration(i)*time.Hour)
		rec.LastError = fmt.Sprintf("marker-%d", i)
		require.NoError(t, repo.Create(ctx, rec))
	}

	recs, err := repo.FindRecent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "marker-0", recs[0].LastError)
	assert.Equal(t, "marker-1", recs[1].LastError)
	assert.Equal(t, "marker-2", recs[2].LastError)
	assert.True(t, recs[0].StartedAt.After(recs[1].StartedAt))
}
