package feed

// Message types carried in the "type" field of feed payloads.
const (
	TypeEventRaised  = "event.raised"
	TypeLine         = "line"
	TypeSystemNotice = "system.notice"
)

// ClientMessage is a message from a websocket client.
type ClientMessage struct {
	Action  string `json:"action"` // subscribe, unsubscribe, ping
	Channel string `json:"channel,omitempty"`
}

// EventRaisedPayload summarizes one bus raise on the events channel.
type EventRaisedPayload struct {
	Type      string `json:"type"` // always TypeEventRaised
	Event     string `json:"event"`
	Actor     string `json:"actor,omitempty"`
	Timestamp string `json:"timestamp"` // RFC3339Nano
}

// LinePayload is a color-stripped preview of one delivered line,
// published on the mud channel (mud-bound) or the client channel
// (client-bound).
type LinePayload struct {
	Type      string `json:"type"`   // always TypeLine
	Origin    string `json:"origin"` // mud, client, internal
	Preview   string `json:"preview"`
	Prompt    bool   `json:"prompt,omitempty"`
	Timestamp string `json:"timestamp"` // RFC3339Nano
}

// SystemNoticePayload reports a lifecycle change on the system channel.
type SystemNoticePayload struct {
	Type      string `json:"type"` // always TypeSystemNotice
	Kind      string `json:"kind"` // plugin.loaded, mud.connected, client.disconnected, ...
	PluginID  string `json:"plugin_id,omitempty"`
	ClientID  string `json:"client_uuid,omitempty"`
	Detail    string `json:"detail,omitempty"`
	Timestamp string `json:"timestamp"` // RFC3339Nano
}
