// Package validation holds the station registry and the pure checks a trip
// query must pass before a booking session is allowed to start.
package validation

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/eogh234/srt-reservation/internal/models"
)

// Stations is the fixed registry of stations the rail operator serves.
// A trip naming any other station is rejected before a session starts.
var Stations = []string{
	"수서", "동탄", "평택지제", "천안아산", "오송", "대전", "김천구미", "동대구",
	"경주", "울산", "부산", "광명", "서대전", "익산", "정읍", "광주송정", "전주",
	"남원", "곡성", "구례구", "순천", "여천", "여수EXPO", "신경주", "포항",
}

var (
	ErrInvalidStation    = errors.New("station is not in the station list")
	ErrInvalidDateFormat = errors.New("date must consist of digits only")
	ErrInvalidDate       = errors.New("date is not a valid calendar date, want YYYYMMDD")
	ErrInvalidTime       = errors.New("time must be a two-digit even hour")
)

// IsStation reports whether name belongs to the station registry.
func IsStation(name string) bool {
	for _, s := range Stations {
		if s == name {
			return true
		}
	}
	return false
}

// ValidateQuery checks q against the station registry and the date/time
// grammar. It is pure: no side effects, first failure wins.
func ValidateQuery(q models.TripQuery) error {
	if !IsStation(q.DepartureStation) {
		return fmt.Errorf("departure station %q: %w", q.DepartureStation, ErrInvalidStation)
	}
	if !IsStation(q.ArrivalStation) {
		return fmt.Errorf("arrival station %q: %w", q.ArrivalStation, ErrInvalidStation)
	}
	if err := ValidateDate(q.DepartureDate); err != nil {
		return err
	}
	return ValidateHour(q.DepartureTime)
}

// ValidateDate accepts only 8-digit strings that form a real calendar date.
func ValidateDate(date string) error {
	if !isDigits(date) {
		return fmt.Errorf("date %q: %w", date, ErrInvalidDateFormat)
	}
	if _, err := time.Parse("20060102", date); err != nil {
		return fmt.Errorf("date %q: %w", date, ErrInvalidDate)
	}
	return nil
}

// ValidateHour accepts only two-digit even hours 00-22. The wizard enforces
// this on input too; the engine-facing check is defensive.
func ValidateHour(tm string) error {
	if len(tm) != 2 || !isDigits(tm) {
		return fmt.Errorf("time %q: %w", tm, ErrInvalidTime)
	}
	h, err := strconv.Atoi(tm)
	if err != nil || h < 0 || h > 23 || h%2 != 0 {
		return fmt.Errorf("time %q: %w", tm, ErrInvalidTime)
	}
	return nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
