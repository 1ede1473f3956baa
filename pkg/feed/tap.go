package feed

import (
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/bastionmud/bastion/pkg/bus"
	"github.com/bastionmud/bastion/pkg/pipeline"
	"github.com/bastionmud/bastion/pkg/plugin"
	"github.com/bastionmud/bastion/pkg/plugins/core/clients"
	"github.com/bastionmud/bastion/pkg/plugins/core/proxy"
	"github.com/bastionmud/bastion/pkg/records"
)

// Owner is the identity the tap registers bus callbacks under.
const Owner = "core.feed"

// previewLimit bounds line previews in runes.
const previewLimit = 120

// noisyEvents are excluded from the events channel. Their traffic is
// carried line by line on the mud and client channels instead.
var noisyEvents = map[string]bool{
	pipeline.EventToMudModify:    true,
	pipeline.EventToMudRead:      true,
	pipeline.EventToClientModify: true,
	pipeline.EventToClientRead:   true,
}

// systemKinds maps lifecycle events to system channel notice kinds.
var systemKinds = map[string]string{
	plugin.EventPluginLoaded:      "plugin.loaded",
	plugin.EventPluginUnloaded:    "plugin.unloaded",
	clients.EventConnected:        "client.connected",
	clients.EventLoggedIn:         "client.logged_in",
	clients.EventLoggedInViewOnly: "client.logged_in_view_only",
	clients.EventDisconnected:     "client.disconnected",
	proxy.EventMudConnected:       "mud.connected",
	proxy.EventMudDisconnected:    "mud.disconnected",
	proxy.EventShutdown:           "proxy.shutdown",
}

// Tap publishes bus activity into a hub. Install and Remove run on the
// dispatcher goroutine, as do the callbacks they attach.
type Tap struct {
	log *slog.Logger
	hub *Hub
	bus *bus.Bus
}

// NewTap creates a tap between b and hub.
func NewTap(log *slog.Logger, hub *Hub, b *bus.Bus) *Tap {
	if log == nil {
		log = slog.Default()
	}
	return &Tap{log: log.With("component", "feed-tap"), hub: hub, bus: b}
}

// Install attaches the raise observer, the line read callbacks and the
// lifecycle callbacks.
func (t *Tap) Install() {
	t.bus.SetObserver(t.observe)
	t.bus.RegisterCallback(pipeline.EventToMudRead, Owner, "feed-mud", 100, t.onMudRead)
	t.bus.RegisterCallback(pipeline.EventToClientRead, Owner, "feed-client", 100, t.onClientRead)
	for event := range systemKinds {
		t.bus.RegisterCallback(event, Owner, "feed-system", 100, t.onSystem)
	}
}

// Remove detaches everything Install attached.
func (t *Tap) Remove() {
	t.bus.SetObserver(nil)
	t.bus.RemoveOwner(Owner)
}

func (t *Tap) observe(event, actor string) {
	if noisyEvents[event] {
		return
	}
	t.hub.Publish(ChannelEvents, EventRaisedPayload{
		Type:      TypeEventRaised,
		Event:     event,
		Actor:     actor,
		Timestamp: time.Now().Format(time.RFC3339Nano),
	})
}

func (t *Tap) onMudRead(rec *bus.Record) error {
	t.publishLine(rec, ChannelMud)
	return nil
}

func (t *Tap) onClientRead(rec *bus.Record) error {
	t.publishLine(rec, ChannelClient)
	return nil
}

func (t *Tap) publishLine(rec *bus.Record, channel string) {
	l, ok := bus.Value[*records.Line](rec, pipeline.LineKey)
	if !ok || !l.Send() {
		return
	}
	t.hub.Publish(channel, LinePayload{
		Type:      TypeLine,
		Origin:    string(l.Origin()),
		Preview:   truncate(l.NoANSI(), previewLimit),
		Prompt:    l.IsPrompt(),
		Timestamp: time.Now().Format(time.RFC3339Nano),
	})
}

func (t *Tap) onSystem(rec *bus.Record) error {
	kind, ok := systemKinds[rec.Event()]
	if !ok {
		return nil
	}
	p := SystemNoticePayload{
		Type:      TypeSystemNotice,
		Kind:      kind,
		PluginID:  rec.String("plugin_id"),
		ClientID:  rec.String("client_uuid"),
		Timestamp: time.Now().Format(time.RFC3339Nano),
	}
	if addr := rec.String("addr"); addr != "" {
		p.Detail = addr
	}
	if reason := rec.String("reason"); reason != "" {
		p.Detail = reason
	}
	t.hub.Publish(ChannelSystem, p)
	return nil
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + "..."
}
