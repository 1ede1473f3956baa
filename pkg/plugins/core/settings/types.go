package settings

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bastionmud/bastion/pkg/colors"
)

// TypeDef converts between user input, the canonical Go value and the
// persisted string form of one setting type. Canonical values must be
// comparable.
type TypeDef struct {
	// Coerce validates arbitrary input and returns the canonical value.
	Coerce func(v any) (any, error)
	// Encode renders the canonical value for persistence.
	Encode func(v any) string
	// Decode parses the persisted form back to the canonical value.
	Decode func(s string) (any, error)
}

func builtinTypes() map[string]TypeDef {
	return map[string]TypeDef{
		"str":      strType(),
		"int":      intType(),
		"bool":     boolType(),
		"color":    colorType(),
		"duration": durationType(),
	}
}

func strType() TypeDef {
	return TypeDef{
		Coerce: func(v any) (any, error) {
			if v == nil {
				return "", nil
			}
			if s, ok := v.(string); ok {
				return s, nil
			}
			return fmt.Sprint(v), nil
		},
		Encode: func(v any) string { return v.(string) },
		Decode: func(s string) (any, error) { return s, nil },
	}
}

func intType() TypeDef {
	coerce := func(v any) (any, error) {
		switch x := v.(type) {
		case int:
			return x, nil
		case int64:
			return int(x), nil
		case float64:
			if x == float64(int(x)) {
				return int(x), nil
			}
		case string:
			n, err := strconv.Atoi(strings.TrimSpace(x))
			if err == nil {
				return n, nil
			}
		}
		return nil, fmt.Errorf("%v is not an integer: %w", v, ErrInvalidValue)
	}
	return TypeDef{
		Coerce: coerce,
		Encode: func(v any) string { return strconv.Itoa(v.(int)) },
		Decode: func(s string) (any, error) { return coerce(s) },
	}
}

func boolType() TypeDef {
	coerce := func(v any) (any, error) {
		switch x := v.(type) {
		case bool:
			return x, nil
		case int:
			if x == 0 || x == 1 {
				return x == 1, nil
			}
		case string:
			switch strings.ToLower(strings.TrimSpace(x)) {
			case "true", "yes", "on", "1":
				return true, nil
			case "false", "no", "off", "0":
				return false, nil
			}
		}
		return nil, fmt.Errorf("%v is not a boolean: %w", v, ErrInvalidValue)
	}
	return TypeDef{
		Coerce: coerce,
		Encode: func(v any) string { return strconv.FormatBool(v.(bool)) },
		Decode: func(s string) (any, error) { return coerce(s) },
	}
}

func colorType() TypeDef {
	coerce := func(v any) (any, error) {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%v is not a color code: %w", v, ErrInvalidValue)
		}
		if s != "" && !colors.IsColorCode(s) {
			return nil, fmt.Errorf("%q is not a color code: %w", s, ErrInvalidValue)
		}
		return s, nil
	}
	return TypeDef{
		Coerce: coerce,
		Encode: func(v any) string { return v.(string) },
		Decode: func(s string) (any, error) { return coerce(s) },
	}
}

// durationType stores whole seconds. Input accepts bare integers and the
// 30s / 5m / 1h30m forms.
func durationType() TypeDef {
	coerce := func(v any) (any, error) {
		switch x := v.(type) {
		case int:
			if x >= 0 {
				return x, nil
			}
		case string:
			s := strings.TrimSpace(x)
			if n, err := strconv.Atoi(s); err == nil && n >= 0 {
				return n, nil
			}
			if d, err := time.ParseDuration(s); err == nil && d >= 0 {
				return int(d / time.Second), nil
			}
		}
		return nil, fmt.Errorf("%v is not a duration: %w", v, ErrInvalidValue)
	}
	return TypeDef{
		Coerce: coerce,
		Encode: func(v any) string { return strconv.Itoa(v.(int)) },
		Decode: func(s string) (any, error) { return coerce(s) },
	}
}
