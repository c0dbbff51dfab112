package dto

import (
	"time"

	"github.com/eogh234/srt-reservation/internal/engine"
	"github.com/eogh234/srt-reservation/internal/models"
)

type SessionResponse struct {
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

// SessionListResponse separates the sessions currently running in this
// process from the persisted journal of past runs.
type SessionListResponse struct {
	Live    []SessionResponse `json:"live"`
	Journal []SessionResponse `json:"journal,omitempty"`
}

type ErrorResponse struct {
	Message string `json:"message"`
}

func FromSnapshot(s engine.Snapshot) SessionResponse {
	return SessionResponse{
		ID:               s.ID,
		DepartureStation: s.DepartureStation,
		ArrivalStation:   s.ArrivalStation,
		DepartureDate:    s.DepartureDate,
		DepartureTime:    s.DepartureTime,
		TrainsToCheck:    s.TrainsToCheck,
		WantWaitlist:     s.WantWaitlist,
		State:            s.State,
		RefreshCount:     s.RefreshCount,
		LastError:        s.LastError,
		StartedAt:        s.StartedAt,
		FinishedAt:       s.FinishedAt,
	}
}

func FromRecord(r *models.SessionRecord) SessionResponse {
	return SessionResponse{
		ID:               r.ID,
		DepartureStation: r.DepartureStation,
		ArrivalStation:   r.ArrivalStation,
		DepartureDate:    r.DepartureDate,
		DepartureTime:    r.DepartureTime,
		TrainsToCheck:    r.TrainsToCheck,
		WantWaitlist:     r.WantWaitlist,
		State:            r.State,
		RefreshCount:     r.RefreshCount,
		LastError:        r.LastError,
		StartedAt:        r.StartedAt,
		FinishedAt:       r.FinishedAt,
	}
}
