package triggers

import "errors"

var (
	// ErrTriggerNotFound indicates no trigger exists for (owner, name).
	ErrTriggerNotFound = errors.New("trigger not found")

	// ErrTriggerExists indicates a duplicate registration.
	ErrTriggerExists = errors.New("trigger already registered")

	// ErrInvalidSpec indicates a spec missing its owner, name or pattern.
	ErrInvalidSpec = errors.New("invalid trigger spec")

	// ErrInvalidPattern indicates a pattern that does not compile, either
	// as written or after degrouping.
	ErrInvalidPattern = errors.New("invalid trigger pattern")
)
