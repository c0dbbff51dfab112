// Package browser defines the capability surface the polling engine drives
// the booking site through. UI faults are classified into the transient
// kinds the engine knows how to recover from; only a lost driver is fatal.
package browser

import (
	"errors"
	"fmt"
)

type ErrorKind int

const (
	StaleElement ErrorKind = iota
	ElementMissing
	ClickIntercepted
	UnexpectedModal
	// DriverUnavailable is the only fatal kind: the session terminates.
	DriverUnavailable
)

func (k ErrorKind) String() string {
	switch k {
	case StaleElement:
		return "stale element"
	case ElementMissing:
		return "element missing"
	case ClickIntercepted:
		return "click intercepted"
	case UnexpectedModal:
		return "unexpected modal"
	case DriverUnavailable:
		return "driver unavailable"
	default:
		return "unknown"
	}
}

// UIError is the classified result of a failed driver call. The engine
// dispatches on Kind instead of on driver-specific error text.
type UIError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *UIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *UIError) Unwrap() error { return e.Err }

func NewUIError(kind ErrorKind, op string, err error) *UIError {
	return &UIError{Kind: kind, Op: op, Err: err}
}

// KindOf returns the classification of err and whether err is a UIError.
func KindOf(err error) (ErrorKind, bool) {
	var ui *UIError
	if errors.As(err, &ui) {
		return ui.Kind, true
	}
	return 0, false
}

// IsTransient reports whether the engine may recover from err locally.
func IsTransient(err error) bool {
	k, ok := KindOf(err)
	return ok && k != DriverUnavailable
}

// Driver is the UI capability port. Every call blocks until the remote
// round trip completes and returns a *UIError on failure.
type Driver interface {
	Navigate(url string) error
	Fill(selector, text string) error
	SelectOption(selector, value string) error
	Click(selector string) error
	// PressEnter activates a control through the keyboard, the fallback
	// path when a click is intercepted by an overlay.
	PressEnter(selector string) error
	ReadText(selector string) (string, error)
	ReadAttribute(selector, name string) (string, error)
	// AcceptModalIfPresent and DismissModalIfPresent are always safe to
	// call; the bool reports whether a dialog was actually open.
	AcceptModalIfPresent() (bool, error)
	DismissModalIfPresent() (bool, error)
	Back() error
	Close() error
}
