// Package colors translates the @-code color grammar used in plugin and
// proxy messages into ANSI escape sequences and back.
//
// Single letter codes select the sixteen base colors (@r dim red, @R bright
// red, and so on through w/W), @x<0-255> selects an xterm-256 foreground,
// @z<0-255> an xterm-256 background, and @@ produces a literal @. Converted
// strings are terminated with an ANSI reset so color never bleeds into
// whatever a client prints next.
package colors

import (
	"regexp"
	"strconv"
	"strings"
)

const esc = "\x1b"

// reset terminates every string that had at least one code converted.
const reset = esc + "[0m"

// codeLetters are the single-letter codes accepted inside strings. @k is
// carried in the conversion table for ANSI round trips but is not part of
// the string grammar.
const codeLetters = "cmyrgbwCMYRGBWD"

var codeToANSI = map[byte]string{
	'k': "0;30",
	'r': "0;31",
	'g': "0;32",
	'y': "0;33",
	'b': "0;34",
	'm': "0;35",
	'c': "0;36",
	'w': "0;37",
	'D': "1;30",
	'R': "1;31",
	'G': "1;32",
	'Y': "1;33",
	'B': "1;34",
	'M': "1;35",
	'C': "1;36",
	'W': "1;37",
	'x': "0",
}

var ansiToCode = map[string]string{}

func init() {
	for c, a := range codeToANSI {
		ansiToCode[a] = string(c)
	}
	for n := 0; n < 256; n++ {
		ansiToCode["38;5;"+strconv.Itoa(n)] = "x" + strconv.Itoa(n)
		ansiToCode["48;5;"+strconv.Itoa(n)] = "z" + strconv.Itoa(n)
	}
	// bare background and foreground arguments map onto the long forms
	for n := 40; n < 48; n++ {
		ansiToCode[strconv.Itoa(n)] = ansiToCode["48;5;"+strconv.Itoa(n-40)]
	}
	for n := 30; n < 38; n++ {
		ansiToCode[strconv.Itoa(n)] = ansiToCode["0;"+strconv.Itoa(n)]
	}
}

var (
	ansiRe      = regexp.MustCompile(esc + `\[(\d+)(?:;(\d+))?(?:;(\d+))?m`)
	letterRe    = regexp.MustCompile(`^@[` + codeLetters + `]$`)
	xtermCodeRe = regexp.MustCompile(`^@[xz](\d{1,3})$`)
)

// IsColorCode reports whether s is exactly one color code, either a single
// letter code or an xterm code in range.
func IsColorCode(s string) bool {
	if letterRe.MatchString(s) {
		return true
	}
	if m := xtermCodeRe.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n <= 255
	}
	return false
}

// ToANSI converts the @-codes in s to ANSI escape sequences. A string with
// no @ passes through untouched. Invalid codes are stripped, consecutive
// codes collapse to the last one, and a trailing code with no text after it
// emits nothing beyond the final reset.
func ToANSI(s string) string {
	if !strings.Contains(s, "@") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 16)
	emitted := false
	pending := ""
	flush := func() {
		if pending != "" {
			b.WriteString(esc + "[" + pending + "m")
			emitted = true
			pending = ""
		}
	}
	for i := 0; i < len(s); {
		c := s[i]
		if c != '@' {
			flush()
			b.WriteByte(c)
			i++
			continue
		}
		if i+1 >= len(s) {
			flush()
			b.WriteByte('@')
			break
		}
		switch n := s[i+1]; {
		case n == '@':
			flush()
			b.WriteByte('@')
			i += 2
		case n == '-':
			flush()
			b.WriteByte('~')
			i += 2
		case strings.IndexByte(codeLetters, n) >= 0:
			pending = codeToANSI[n]
			i += 2
		case n == 'x' || n == 'z':
			num, width := leadingNumber(s[i+2:])
			i += 2 + width
			if width == 0 || num > 255 {
				continue
			}
			if n == 'x' {
				pending = "38;5;" + strconv.Itoa(num)
			} else {
				pending = "48;5;" + strconv.Itoa(num)
			}
		default:
			// unknown code, ripped out with its letter
			i += 2
		}
	}
	if emitted {
		b.WriteString(reset)
	}
	return b.String()
}

// leadingNumber parses up to three leading digits of s.
func leadingNumber(s string) (value, width int) {
	for width < 3 && width < len(s) && s[width] >= '0' && s[width] <= '9' {
		value = value*10 + int(s[width]-'0')
		width++
	}
	return value, width
}

// FromANSI converts ANSI color escape sequences to @-codes. Sequences with
// no @-code equivalent stay in place.
func FromANSI(s string) string {
	return ansiRe.ReplaceAllStringFunc(s, func(seq string) string {
		groups := ansiRe.FindStringSubmatch(seq)
		parts := make([]string, 0, 3)
		for _, g := range groups[1:] {
			if g == "" {
				continue
			}
			n, _ := strconv.Atoi(g)
			parts = append(parts, strconv.Itoa(n))
		}
		if code, ok := ansiToCode[strings.Join(parts, ";")]; ok {
			return "@" + code
		}
		return seq
	})
}

// StripANSI removes ANSI color escape sequences from s.
func StripANSI(s string) string {
	return ansiRe.ReplaceAllString(s, "")
}

// Strip removes both @-codes and ANSI sequences from s.
func Strip(s string) string {
	return StripANSI(ToANSI(s))
}

// LengthDifference returns how many bytes of s are color codes.
func LengthDifference(s string) int {
	return len(s) - len(Strip(s))
}
