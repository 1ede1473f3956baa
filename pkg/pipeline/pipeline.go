// Package pipeline moves line containers between the network shims, the
// event bus and the plugin layer. Client input is split into commands and
// offered to plugins before it reaches the mud; mud output is offered to
// plugins before it fans out to eligible clients. All methods run on the
// dispatcher goroutine.
package pipeline

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/bastionmud/bastion/pkg/bus"
	"github.com/bastionmud/bastion/pkg/records"
)

// Event names raised by the pipeline. Modify events run one line at a
// time and may rewrite or swallow the line; read events are observation
// only, the lines are already locked.
const (
	EventToMudModify    = "ev_to_mud_data_modify"
	EventToMudRead      = "ev_to_mud_data_read"
	EventToClientModify = "ev_to_client_data_modify"
	EventToClientRead   = "ev_to_client_data_read"
)

// LineKey is the record key carrying the *records.Line in pipeline events.
const LineKey = "line"

// FormatProvider supplies the live presentation settings at send time.
// The proxy plugin implements it over the settings store.
type FormatProvider interface {
	FormatSpec() records.FormatSpec
	Separator() string
}

// Recipient is one connected client as the pipeline sees it.
type Recipient struct {
	ID       string
	ViewOnly bool
	LoggedIn bool
	// Deliver enqueues formatted bytes to the client's send queue. The
	// prompt flag tells the shim to follow with a telnet GA.
	Deliver func(data []byte, prompt bool)
}

// ClientRoster enumerates connected clients. The clients engine
// implements it.
type ClientRoster interface {
	Recipients() []Recipient
}

// MudSink is the upstream connection's outbound queue.
type MudSink interface {
	Connected() bool
	Deliver(data []byte) bool
}

// Pipeline owns the processing flows. The sinks are wired at startup and
// whenever the mud connection changes.
type Pipeline struct {
	log    *slog.Logger
	bus    *bus.Bus
	format FormatProvider
	mud    MudSink
	roster ClientRoster
}

// New creates a pipeline and defines its events on the bus. The bus and
// format provider must not be nil.
func New(log *slog.Logger, b *bus.Bus, format FormatProvider) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	p := &Pipeline{
		log:    log.With("component", "pipeline"),
		bus:    b,
		format: format,
	}
	p.defineEvents()
	return p
}

func (p *Pipeline) defineEvents() {
	lineArg := map[string]string{LineKey: "the line record being processed"}
	events := []struct {
		name string
		desc []string
	}{
		{EventToMudModify, []string{"Raised once per command line headed to the mud.", "Callbacks may rewrite the line or clear its send flag."}},
		{EventToMudRead, []string{"Raised after mud delivery with the lines locked.", "Observation only."}},
		{EventToClientModify, []string{"Raised once per line headed to the clients.", "Callbacks may rewrite the line or clear its send flag."}},
		{EventToClientRead, []string{"Raised after client delivery with the lines locked.", "Observation only."}},
	}
	for _, ev := range events {
		if err := p.bus.AddEvent(ev.name, "core.pipeline", ev.desc, lineArg); err != nil {
			p.log.Warn("pipeline event already defined", "event", ev.name, "error", err)
		}
	}
}

// Separator returns the live command separator.
func (p *Pipeline) Separator() string { return p.format.Separator() }

// SetMudSink wires the upstream connection. Pass nil on disconnect.
func (p *Pipeline) SetMudSink(s MudSink) { p.mud = s }

// SetRoster wires the client roster.
func (p *Pipeline) SetRoster(r ClientRoster) { p.roster = r }

// SendOptions narrows client delivery. Exclude wins over Include; an
// empty Include means every connected client.
type SendOptions struct {
	Include []string
	Exclude []string
	Actor   string
}

// SplitCommands splits raw client input into separate command lines on
// sep. A doubled separator is an escaped literal: it does not split and
// collapses to a single separator at format time.
func SplitCommands(raw, sep string) []string {
	if sep == "" || !strings.Contains(raw, sep) {
		return []string{raw}
	}
	var parts []string
	var cur strings.Builder
	for i := 0; i < len(raw); {
		if strings.HasPrefix(raw[i:], sep+sep) {
			cur.WriteString(sep + sep)
			i += 2 * len(sep)
			continue
		}
		if strings.HasPrefix(raw[i:], sep) {
			parts = append(parts, cur.String())
			cur.Reset()
			i += len(sep)
			continue
		}
		cur.WriteByte(raw[i])
		i++
	}
	return append(parts, cur.String())
}

// InternalContainer builds a container of internal lines with the
// preamble flag set, the standard shape for proxy messages.
func InternalContainer(actor string, isError bool, texts ...string) *records.Container {
	lines := make([]*records.Line, 0, len(texts))
	for _, t := range texts {
		l := records.NewLine(t, records.OriginInternal)
		l.SetPreamble(true, actor)
		if isError {
			l.SetError(true, actor)
		}
		lines = append(lines, l)
	}
	return records.NewContainer(lines...)
}

// ProcessToMud splits raw client input on the command separator, runs
// each piece through the modify event, and sends what survives upstream.
// The returned container carries the full audit trail.
func (p *Pipeline) ProcessToMud(raw, actor string) (*records.Container, error) {
	pieces := SplitCommands(raw, p.format.Separator())
	cont := records.NewContainerFromStrings(records.OriginClient, pieces...)

	if err := p.runModify(cont, EventToMudModify, actor); err != nil {
		return cont, err
	}
	return cont, p.SendToMud(cont, actor)
}

// SendToMud locks the container and delivers every sendable line to the
// upstream queue, then raises the read event.
func (p *Pipeline) SendToMud(cont *records.Container, actor string) error {
	spec := p.format.FormatSpec()
	cont.Lock(actor)

	for _, l := range cont.Lines() {
		if !l.Send() {
			l.AddNote("send skipped, send flag cleared", actor, "")
			continue
		}
		if p.mud == nil || !p.mud.Connected() {
			l.AddNote("dropped, mud not connected", actor, "")
			continue
		}
		if p.mud.Deliver([]byte(l.Format(spec))) {
			l.MarkSent(actor)
		} else {
			l.AddNote("dropped, mud queue refused", actor, "")
		}
	}

	return p.runRead(ioLines(cont), EventToMudRead, actor)
}

// ProcessToClient runs a mud-bound-for-clients container through the
// modify event and fans it out to every eligible client.
func (p *Pipeline) ProcessToClient(cont *records.Container, actor string) error {
	if err := p.runModify(cont, EventToClientModify, actor); err != nil {
		return err
	}
	return p.SendToClient(cont, SendOptions{Actor: actor})
}

// SendToClient locks the container, formats each sendable line once, and
// delivers it to every recipient that passes the eligibility rules, then
// raises the read event.
func (p *Pipeline) SendToClient(cont *records.Container, opts SendOptions) error {
	actor := opts.Actor
	spec := p.format.FormatSpec()
	cont.Lock(actor)

	var recipients []Recipient
	if p.roster != nil {
		recipients = p.roster.Recipients()
	}

	for _, l := range cont.Lines() {
		if !l.Send() {
			l.AddNote("send skipped, send flag cleared", actor, "")
			continue
		}
		data := []byte(l.Format(spec))
		delivered := 0
		for _, r := range recipients {
			if !eligible(l, r, opts) {
				continue
			}
			r.Deliver(data, l.IsPrompt())
			delivered++
		}
		if delivered > 0 {
			l.MarkSent(actor)
			l.AddNote("delivered", actor, fmt.Sprintf("%d clients", delivered))
		} else {
			l.AddNote("no eligible clients", actor, "")
		}
	}

	return p.runRead(sendableIOLines(cont), EventToClientRead, actor)
}

// eligible applies the per-recipient delivery rules: exclude wins, then
// the include list, then view-only clients skip internal lines, then
// unauthenticated clients only get prelogin lines.
func eligible(l *records.Line, r Recipient, opts SendOptions) bool {
	if slices.Contains(opts.Exclude, r.ID) {
		return false
	}
	if len(opts.Include) > 0 && !slices.Contains(opts.Include, r.ID) {
		return false
	}
	if l.Internal() && r.ViewOnly {
		return false
	}
	if !r.LoggedIn && !l.Prelogin() {
		return false
	}
	return true
}

// runModify raises the modify event once per io line via the data-list
// mechanism. Telnet frames and non-io lines pass through untouched.
func (p *Pipeline) runModify(cont *records.Container, event, actor string) error {
	items := ioLines(cont)
	if len(items) == 0 {
		return nil
	}
	_, err := p.bus.Raise(event, nil, actor, bus.WithDataList(items, LineKey))
	return err
}

// runRead raises the observation event over the given locked lines. The
// mud path reads every io line; the client path passes only the lines
// that were still flagged for delivery, so a gagged line never reaches a
// client-side read callback.
func (p *Pipeline) runRead(items []any, event, actor string) error {
	if len(items) == 0 {
		return nil
	}
	_, err := p.bus.Raise(event, nil, actor, bus.WithDataList(items, LineKey))
	return err
}

func ioLines(cont *records.Container) []any {
	var items []any
	for _, l := range cont.Lines() {
		if l.IsIO() {
			items = append(items, l)
		}
	}
	return items
}

func sendableIOLines(cont *records.Container) []any {
	var items []any
	for _, l := range cont.Lines() {
		if l.IsIO() && l.Send() {
			items = append(items, l)
		}
	}
	return items
}
