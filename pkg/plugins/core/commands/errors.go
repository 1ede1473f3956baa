package commands

import "errors"

var (
	// ErrCommandNotFound indicates no spec exists for (plugin, name).
	ErrCommandNotFound = errors.New("command not found")

	// ErrCommandExists indicates a duplicate registration.
	ErrCommandExists = errors.New("command already registered")

	// ErrInvalidSpec indicates a spec missing its plugin id, name or
	// handler, or a name the resolver cannot address.
	ErrInvalidSpec = errors.New("invalid command spec")
)
