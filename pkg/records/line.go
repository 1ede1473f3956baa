// Package records holds the data records that carry each line of network
// traffic between the mud, the clients and the plugin layer. A Line keeps
// its origin and original text frozen from creation, accepts mutations only
// until it is locked, and appends every change to an update log that
// captures the call site and the active event stack at the time.
package records

import (
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/bastionmud/bastion/pkg/colors"
)

// Origin identifies where a line entered the proxy. It never changes after
// creation.
type Origin string

const (
	OriginMud      Origin = "mud"
	OriginClient   Origin = "client"
	OriginInternal Origin = "internal"
)

// Kind separates normal text from telnet option negotiation frames, which
// flow through the pipeline opaquely.
type Kind string

const (
	KindIO            Kind = "io"
	KindTelnetCommand Kind = "telnet-command"
)

// FormatSpec carries the live proxy presentation settings a line needs at
// format time. The proxy plugin supplies it at send time.
type FormatSpec struct {
	Preamble      string
	PreambleColor string
	ErrorColor    string
	Separator     string
}

// Line is one line of network data.
type Line struct {
	id       string
	origin   Origin
	kind     Kind
	text     string
	original string
	payload  []byte

	send           bool
	isPrompt       bool
	preamble       bool
	prelogin       bool
	isError        bool
	hadLineEndings bool
	color          string
	wasSent        bool
	modified       bool
	locked         bool

	updates []Update
}

// NewLine creates an io line. Trailing line endings are stripped and
// remembered so format can restore them.
func NewLine(text string, origin Origin) *Line {
	stripped, had := stripLineEndings(text)
	l := &Line{
		id:             uuid.NewString(),
		origin:         origin,
		kind:           KindIO,
		text:           stripped,
		original:       stripped,
		send:           true,
		hadLineEndings: had,
	}
	l.updates = append(l.updates, newUpdate(FlagInfo, "created", string(origin), stripped))
	return l
}

// NewTelnetLine creates a telnet-command line carrying an opaque
// negotiation frame.
func NewTelnetLine(payload []byte, origin Origin) *Line {
	l := &Line{
		id:      uuid.NewString(),
		origin:  origin,
		kind:    KindTelnetCommand,
		payload: append([]byte(nil), payload...),
		send:    true,
	}
	l.updates = append(l.updates, newUpdate(FlagInfo, "created telnet frame", string(origin), ""))
	return l
}

func stripLineEndings(text string) (string, bool) {
	trimmed := strings.TrimRight(text, "\r\n")
	return trimmed, trimmed != text
}

func (l *Line) ID() string           { return l.id }
func (l *Line) Origin() Origin       { return l.origin }
func (l *Line) Kind() Kind           { return l.kind }
func (l *Line) Text() string         { return l.text }
func (l *Line) Original() string     { return l.original }
func (l *Line) Payload() []byte      { return l.payload }
func (l *Line) Send() bool           { return l.send }
func (l *Line) IsPrompt() bool       { return l.isPrompt }
func (l *Line) Preamble() bool       { return l.preamble }
func (l *Line) Prelogin() bool       { return l.prelogin }
func (l *Line) IsError() bool        { return l.isError }
func (l *Line) HadLineEndings() bool { return l.hadLineEndings }
func (l *Line) Color() string        { return l.color }
func (l *Line) WasSent() bool        { return l.wasSent }
func (l *Line) WasModified() bool    { return l.modified }
func (l *Line) Locked() bool         { return l.locked }

func (l *Line) IsIO() bool       { return l.kind == KindIO }
func (l *Line) IsTelnet() bool   { return l.kind == KindTelnetCommand }
func (l *Line) Internal() bool   { return l.origin == OriginInternal }
func (l *Line) FromMud() bool    { return l.origin == OriginMud }
func (l *Line) FromClient() bool { return l.origin == OriginClient }

// NoANSI returns the text with ANSI escape sequences removed. Triggers
// match against this surface by default.
func (l *Line) NoANSI() string { return colors.StripANSI(l.text) }

// ColorCoded returns the text with ANSI sequences translated to @-codes.
func (l *Line) ColorCoded() string { return colors.FromANSI(l.text) }

// Updates returns the append-only history of the line. Callers must treat
// it as read-only.
func (l *Line) Updates() []Update { return l.updates }

// AddNote appends an informational entry to the update log. Allowed on
// locked lines.
func (l *Line) AddNote(action, actor, data string) {
	l.updates = append(l.updates, newUpdate(FlagInfo, action, actor, data))
}

func (l *Line) rejectLocked(action, actor string) {
	l.updates = append(l.updates, newUpdate(FlagInfo, action+" rejected, line is locked", actor, ""))
	slog.Warn("mutation of locked line rejected",
		"line", l.id,
		"action", action,
		"actor", actor)
}

// SetText replaces the current text. Returns false without changing state
// when the line is locked.
func (l *Line) SetText(text, actor string) bool {
	if l.locked {
		l.rejectLocked("set text", actor)
		return false
	}
	if text == l.text {
		return true
	}
	l.text = text
	l.modified = true
	l.updates = append(l.updates, newUpdate(FlagModify, "text", actor, text))
	return true
}

// SetSend sets the send flag; clearing it suppresses delivery.
func (l *Line) SetSend(v bool, actor string) bool {
	return l.setFlag("send", &l.send, v, actor)
}

// SetPrompt marks the line as a prompt.
func (l *Line) SetPrompt(v bool, actor string) bool {
	return l.setFlag("is_prompt", &l.isPrompt, v, actor)
}

// SetPreamble requests the proxy marker prefix at format time. Only
// internal lines honor it.
func (l *Line) SetPreamble(v bool, actor string) bool {
	return l.setFlag("preamble", &l.preamble, v, actor)
}

// SetPrelogin marks the line deliverable to clients that have not logged
// in yet.
func (l *Line) SetPrelogin(v bool, actor string) bool {
	return l.setFlag("prelogin", &l.prelogin, v, actor)
}

// SetError marks the line as an error message, switching the preamble to
// the error color.
func (l *Line) SetError(v bool, actor string) bool {
	return l.setFlag("is_error", &l.isError, v, actor)
}

func (l *Line) setFlag(name string, field *bool, v bool, actor string) bool {
	if l.locked {
		l.rejectLocked("set "+name, actor)
		return false
	}
	if *field == v {
		return true
	}
	*field = v
	data := "false"
	if v {
		data = "true"
	}
	l.updates = append(l.updates, newUpdate(FlagSetFlag, name, actor, data))
	return true
}

// SetColor sets a color-code prefix applied to the whole line at format
// time.
func (l *Line) SetColor(code, actor string) bool {
	if l.locked {
		l.rejectLocked("set color", actor)
		return false
	}
	if code == l.color {
		return true
	}
	l.color = code
	l.updates = append(l.updates, newUpdate(FlagSetFlag, "color", actor, code))
	return true
}

// Lock freezes the line. Later mutation attempts append an update entry
// but change nothing.
func (l *Line) Lock(actor string) {
	if l.locked {
		return
	}
	l.locked = true
	l.updates = append(l.updates, newUpdate(FlagInfo, "locked", actor, l.text))
}

// MarkSent records that the line was handed to a socket queue. This is
// delivery bookkeeping and is permitted after Lock.
func (l *Line) MarkSent(actor string) {
	if l.wasSent {
		return
	}
	l.wasSent = true
	l.updates = append(l.updates, newUpdate(FlagSetFlag, "was_sent", actor, "true"))
}

// Format renders the line for the wire without mutating it, so formatting
// a locked line yields the same bytes as formatting it unlocked. Telnet
// frames format to their raw payload.
func (l *Line) Format(spec FormatSpec) string {
	if l.kind != KindIO {
		return string(l.payload)
	}
	text := l.text
	if l.Internal() {
		if l.preamble && spec.Preamble != "" {
			color := spec.PreambleColor
			if l.isError {
				color = spec.ErrorColor
			}
			text = color + spec.Preamble + "@w: " + text
		}
	} else if l.FromClient() && spec.Separator != "" {
		// a doubled separator was an escaped literal
		text = strings.ReplaceAll(text, spec.Separator+spec.Separator, spec.Separator)
	}
	if l.color != "" {
		text = applyColor(text, l.color)
	}
	if l.Internal() || l.modified || l.color != "" {
		text = colors.ToANSI(text)
	}
	// prompts keep their position at the cursor; the shim follows them
	// with a telnet GA instead of an ending
	if !l.isPrompt && !strings.HasSuffix(text, "\n") {
		text += "\r\n"
	}
	return text
}

// applyColor prefixes every @w-delimited segment with the color and
// closes the line with @w.
func applyColor(text, color string) string {
	if color == "" || text == "" {
		return text
	}
	if strings.Contains(text, "@w") {
		parts := strings.Split(text, "@w")
		for i, p := range parts {
			if p != "" {
				parts[i] = color + p
			}
		}
		text = strings.Join(parts, "@w"+color)
	}
	return color + text + "@w"
}
