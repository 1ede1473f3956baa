package settings

import "errors"

var (
	// ErrSettingNotFound indicates no spec exists for (plugin, name).
	ErrSettingNotFound = errors.New("setting not found")

	// ErrSettingExists indicates a duplicate declaration, either the same
	// (plugin, name) pair or a visible name already claimed by another
	// plugin.
	ErrSettingExists = errors.New("setting already declared")

	// ErrTypeUnknown indicates the spec names a type nobody registered.
	ErrTypeUnknown = errors.New("unknown setting type")

	// ErrReadOnly indicates a client tried to change a read-only setting.
	ErrReadOnly = errors.New("setting is read only")

	// ErrInvalidValue indicates the value does not fit the declared type.
	ErrInvalidValue = errors.New("invalid setting value")
)
