package commands

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/bastionmud/bastion/pkg/colors"
	"github.com/bastionmud/bastion/pkg/plugin"
)

// splitArgs tokenizes an argument string on whitespace. Single and
// double quotes group words into one token; the quotes themselves are
// dropped. There is no escape character inside quotes.
func splitArgs(s string) ([]string, error) {
	var out []string
	var cur strings.Builder
	var quote rune
	inToken := false
	for _, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			inToken = true
		case unicode.IsSpace(r):
			if inToken {
				out = append(out, cur.String())
				cur.Reset()
				inToken = false
			}
		default:
			cur.WriteRune(r)
			inToken = true
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unbalanced quote in %q", s)
	}
	if inToken {
		out = append(out, cur.String())
	}
	return out, nil
}

// coerceArg converts a raw token to the Go value for an argument type.
// Unknown types fall back to the raw string.
func coerceArg(typ, raw string) (any, error) {
	switch typ {
	case "", "str":
		return raw, nil
	case "int":
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", raw)
		}
		return n, nil
	case "bool":
		switch strings.ToLower(strings.TrimSpace(raw)) {
		case "true", "yes", "on", "1":
			return true, nil
		case "false", "no", "off", "0":
			return false, nil
		}
		return nil, fmt.Errorf("%q is not a boolean", raw)
	case "color":
		if raw != "" && !colors.IsColorCode(raw) {
			return nil, fmt.Errorf("%q is not a color code", raw)
		}
		return raw, nil
	}
	return raw, nil
}

// bindArgs matches tokens to the declared arguments in order. A Rest
// argument consumes every remaining token, joined with single spaces.
// Arguments without tokens take their declared default; a missing
// default makes the argument required.
func bindArgs(decl []plugin.CommandArg, tokens []string) (map[string]any, error) {
	args := make(map[string]any, len(decl))
	for i, a := range decl {
		var raw string
		have := i < len(tokens)
		if have {
			if a.Rest {
				raw = strings.Join(tokens[i:], " ")
			} else {
				raw = tokens[i]
			}
		} else {
			if a.Default == nil {
				return nil, fmt.Errorf("missing required argument %q", a.Name)
			}
			args[a.Name] = a.Default
			continue
		}
		val, err := coerceArg(a.Type, raw)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", a.Name, err)
		}
		if len(a.Choices) > 0 && !containsString(a.Choices, fmt.Sprint(val)) {
			return nil, fmt.Errorf("argument %q must be one of %s", a.Name, strings.Join(a.Choices, ", "))
		}
		args[a.Name] = val
	}
	return args, nil
}

// usageLines renders the usage summary and per-argument help for a
// command, addressed the way a client would type it.
func usageLines(prefix string, spec *plugin.CommandSpec) []string {
	parts := []string{fmt.Sprintf("%s.%s.%s", prefix, displayPath(spec.PluginID), spec.Name)}
	for _, a := range spec.Args {
		if a.Default == nil {
			parts = append(parts, "<"+a.Name+">")
		} else {
			parts = append(parts, "["+a.Name+"]")
		}
	}
	lines := []string{"@Wusage:@w " + strings.Join(parts, " ")}
	if spec.Help != "" {
		lines = append(lines, "  "+spec.Help)
	} else if spec.ShortHelp != "" {
		lines = append(lines, "  "+spec.ShortHelp)
	}
	for _, a := range spec.Args {
		detail := fmt.Sprintf("  @G%-12s@w %s", a.Name, a.Help)
		if a.Default != nil {
			detail += fmt.Sprintf(" (default %v)", a.Default)
		}
		if len(a.Choices) > 0 {
			detail += " (one of " + strings.Join(a.Choices, ", ") + ")"
		}
		lines = append(lines, detail)
	}
	return lines
}

// displayPath is the plugin id as typed by clients, without the
// leading plugins namespace.
func displayPath(pluginID string) string {
	return strings.TrimPrefix(pluginID, "plugins.")
}

func containsString(xs []string, want string) bool {
	for _, x := range xs {
		if x == want {
			return true
		}
	}
	return false
}
