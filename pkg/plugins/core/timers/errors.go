package timers

import "errors"

var (
	// ErrTimerNotFound is returned when no timer matches the owner and
	// name.
	ErrTimerNotFound = errors.New("timer not found")

	// ErrTimerExists is returned when a timer with the same owner and
	// name is already registered.
	ErrTimerExists = errors.New("timer already exists")

	// ErrInvalidSpec is returned for a spec missing its owner, name or
	// function, or carrying a non-positive interval.
	ErrInvalidSpec = errors.New("invalid timer spec")

	// ErrInvalidTimeOfDay is returned when the time-of-day anchor is not
	// a valid HHMM clock time.
	ErrInvalidTimeOfDay = errors.New("invalid time-of-day anchor")
)
