package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationErrorFormatting(t *testing.T) {
	withField := NewValidationError("proxy", "command_separator", ErrInvalidValue)
	assert.Equal(t, "proxy: field 'command_separator': invalid field value", withField.Error())

	withoutField := NewValidationError("listen", "", errors.New("boom"))
	assert.Equal(t, "listen: boom", withoutField.Error())
}

func TestValidationErrorUnwrap(t *testing.T) {
	err := NewValidationError("log", "level", ErrInvalidValue)

	assert.ErrorIs(t, err, ErrInvalidValue)

	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
	assert.Equal(t, "log", ve.Section)
	assert.Equal(t, "level", ve.Field)
}

func TestLoadErrorFormatting(t *testing.T) {
	err := NewLoadError("bastion.yaml", ErrInvalidYAML)

	assert.Equal(t, "failed to load bastion.yaml: invalid YAML syntax", err.Error())
	assert.ErrorIs(t, err, ErrInvalidYAML)
}
