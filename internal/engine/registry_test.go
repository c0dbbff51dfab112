package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eogh234/srt-reservation/internal/models"
)

func registrySession(t *testing.T, r *Registry, state models.BookingState, finishedAgo time.Duration) *Session {
	t.Helper()
	s := NewSession(models.TripQuery{
		DepartureStation: "수서",
		ArrivalStation:   "부산",
		DepartureDate:    "20260915",
		DepartureTime:    "08",
		TrainsToCheck:    1,
	}, models.Credentials{ID: "u", Secret: "p"})
	if state != models.StateInitialized {
		s.setState(state)
	}
	if state.Terminal() {
		at := time.Now().Add(-finishedAgo)
		s.mu.Lock()
		s.finishedAt = &at
		s.mu.Unlock()
	}
	r.Add(s)
	return s
}

func TestRegistryEvictsOldestFinishedBeyondCap(t *testing.T) {
	r := NewRegistry()
	r.keepFinished = 2

	oldest := registrySession(t, r, models.StateBooked, 3*time.Hour)
	mid := registrySession(t, r, models.StateFailed, 2*time.Hour)
	newest := registrySession(t, r, models.StateBooked, time.Hour)
	live := registrySession(t, r, models.StateScanning, 0)

	_, ok := r.Get(oldest.ID)
	assert.False(t, ok, "oldest finished session should be evicted")
	_, ok = r.Get(mid.ID)
	assert.True(t, ok)
	_, ok = r.Get(newest.ID)
	assert.True(t, ok)
	_, ok = r.Get(live.ID)
	assert.True(t, ok)

	require.Len(t, r.Snapshots(), 3)
}

func TestRegistryNeverEvictsRunningSessions(t *testing.T) {
	r := NewRegistry()
	r.keepFinished = 1

	running := make([]*Session, 0, 5)
	for i := 0; i < 5; i++ {
		running = append(running, registrySession(t, r, models.StateScanning, 0))
	}
	registrySession(t, r, models.StateBooked, 2*time.Hour)
	registrySession(t, r, models.StateBooked, time.Hour)

	for _, s := range running {
		_, ok := r.Get(s.ID)
		assert.True(t, ok)
	}
	assert.Len(t, r.Snapshots(), 6) // 5 running + 1 retained finished
}

func TestRegistryKeepsFinishedWithinCap(t *testing.T) {
	r := NewRegistry()

	s := registrySession(t, r, models.StateBooked, time.Hour)
	got, ok := r.Get(s.ID)
	require.True(t, ok)
	assert.Equal(t, models.StateBooked, got.State())
}
