package engine

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eogh234/srt-reservation/internal/models"
)

// Session owns one booking attempt: the validated trip, the credentials it
// runs under, and the mutable progress the engine updates along the way.
// A single engine goroutine mutates it; the mutex exists only so the status
// surface can take consistent snapshots while a run is in flight.
type Session struct {
	ID    string
	Query models.TripQuery

	creds models.Credentials

	mu           sync.Mutex
	state        models.BookingState
	refreshCount int
	lastError    string
	startedAt    time.Time
	finishedAt   *time.Time
}

func NewSession(query models.TripQuery, creds models.Credentials) *Session {
	return &Session{
		ID:        uuid.NewString(),
		Query:     query,
		creds:     creds,
		state:     models.StateInitialized,
		startedAt: time.Now(),
	}
}

func (s *Session) State() models.BookingState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) RefreshCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshCount
}

func (s *Session) setState(state models.BookingState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	if state.Terminal() && s.finishedAt == nil {
		now := time.Now()
		s.finishedAt = &now
	}
}

func (s *Session) setError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.lastError = err.Error()
	}
}

// incRefresh bumps the refresh counter once per full unsuccessful scan pass
// and returns the new value.
func (s *Session) incRefresh() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshCount++
	return s.refreshCount
}

// Snapshot is a read-only copy of the session for the status surface.
// Credentials are deliberately absent.
type Snapshot struct {
	ID               string              `json:"id"`
	DepartureStation string              `json:"departure_station"`
	ArrivalStation   string              `json:"arrival_station"`
	DepartureDate    string              `json:"departure_date"`
	DepartureTime    string              `json:"departure_time"`
	TrainsToCheck    int                 `json:"trains_to_check"`
	WantWaitlist     bool                `json:"want_waitlist"`
	State            models.BookingState `json:"state"`
	RefreshCount     int                 `json:"refresh_count"`
	LastError        string              `json:"last_error,omitempty"`
	StartedAt        time.Time           `json:"started_at"`
	FinishedAt       *time.Time          `json:"finished_at,omitempty"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		ID:               s.ID,
		DepartureStation: s.Query.DepartureStation,
		ArrivalStation:   s.Query.ArrivalStation,
		DepartureDate:    s.Query.DepartureDate,
		DepartureTime:    s.Query.DepartureTime,
		TrainsToCheck:    s.Query.TrainsToCheck,
		WantWaitlist:     s.Query.WantWaitlist,
		State:            s.state,
		RefreshCount:     s.refreshCount,
		LastError:        s.lastError,
		StartedAt:        s.startedAt,
		FinishedAt:       s.finishedAt,
	}
}

// Record renders the session as its persisted journal row.
func (s *Session) Record() *models.SessionRecord {
	snap := s.Snapshot()
	return &models.SessionRecord{
		ID:               snap.ID,
		DepartureStation: snap.DepartureStation,
		ArrivalStation:   snap.ArrivalStation,
		DepartureDate:    snap.DepartureDate,
		DepartureTime:    snap.DepartureTime,
		TrainsToCheck:    snap.TrainsToCheck,
		WantWaitlist:     snap.WantWaitlist,
		State:            snap.State,
		RefreshCount:     snap.RefreshCount,
		LastError:        snap.LastError,
		StartedAt:        snap.StartedAt,
		FinishedAt:       snap.FinishedAt,
	}
}
