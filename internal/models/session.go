package models

import "time"

type BookingState string

const (
	StateInitialized     BookingState = "initialized"
	StateSearchSubmitted BookingState = "search_submitted"
	StateScanning        BookingState = "scanning"
	StateClaimAttempted  BookingState = "claim_attempted"
	StateBooked          BookingState = "booked"
	StateWaitlistBooked  BookingState = "waitlist_booked"
	StateFailed          BookingState = "failed"
)

// Terminal reports whether no further transitions can occur.
func (s BookingState) Terminal() bool {
	return s == StateBooked || s == StateWaitlistBooked || s == StateFailed
}

// SeatStatus classifies a standard-seat cell of one result row. The zero
// value is Unknown: a row whose status could not be read is never claimed.
type SeatStatus int

const (
	SeatUnknown SeatStatus = iota
	SeatAvailable
	SeatSoldOut
)

type WaitlistStatus int

const (
	WaitlistUnknown WaitlistStatus = iota
	WaitlistAvailable
	WaitlistClosed
)

// SeatRow is the ephemeral reading of one result row. Rows are recomputed
// on every scan pass and never cached across refreshes.
type SeatRow struct {
	Index    int
	Standard SeatStatus
	Waitlist WaitlistStatus
}

// SessionRecord is the persisted journal row for one booking session.
// Credentials are deliberately not part of it.
type SessionRecord struct {
	ID               string       `gorm:"primaryKey;type:varchar(36)" json:"id"`
	DepartureStation string       `gorm:"not null" json:"departure_station"`
	ArrivalStation   string       `gorm:"not null" json:"arrival_station"`
	DepartureDate    string       `gorm:"type:varchar(8);not null" json:"departure_date"`
	DepartureTime    string       `gorm:"type:varchar(2);not null" json:"departure_time"`
	TrainsToCheck    int          `json:"trains_to_check"`
	WantWaitlist     bool         `json:"want_waitlist"`
	State            BookingState `gorm:"type:varchar(20);not null" json:"state"`
	RefreshCount     int          `json:"refresh_count"`
	LastError        string       `json:"last_error,omitempty"`
	StartedAt        time.Time    `json:"started_at"`
	FinishedAt       *time.Time   `json:"finished_at,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}
