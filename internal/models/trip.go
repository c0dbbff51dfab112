package models

// TripQuery carries the validated parameters of one booking attempt.
// DepartureDate is an 8-digit YYYYMMDD string and DepartureTime a two-digit
// even hour, the form the search page's select controls expect.
type TripQuery struct {
	DepartureStation string
	ArrivalStation   string
	DepartureDate    string
	DepartureTime    string
	TrainsToCheck    int
	WantWaitlist     bool
}

// Credentials are held in memory for the session's lifetime only and are
// never written to the journal.
type Credentials struct {
	ID     string
	Secret string
}
