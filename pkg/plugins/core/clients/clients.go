// Package clients tracks proxy connections: who is connected, who has
// logged in, who is view-only, and which addresses are banned. The
// network shims feed the registry through the proxy plugin; everything
// here runs on the dispatcher goroutine.
package clients

import (
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strconv"
	"time"

	"github.com/bastionmud/bastion/pkg/capability"
	"github.com/bastionmud/bastion/pkg/pipeline"
	"github.com/bastionmud/bastion/pkg/plugin"
)

// ID is the client registry's plugin id.
const ID = "plugins.core.clients"

// Client lifecycle events, raised with {client_uuid}.
const (
	EventConnected        = "ev_client_connected"
	EventLoggedIn         = "ev_client_logged_in"
	EventLoggedInViewOnly = "ev_client_logged_in_view_only"
	EventDisconnected     = "ev_client_disconnected"
)

// banDuration is how long a banned address stays banned.
const banDuration = 10 * time.Minute

// Definition describes the engine to the plugin catalog.
func Definition() plugin.Definition {
	return plugin.Definition{
		Manifest: plugin.Manifest{
			ID:                       ID,
			Name:                     "Clients",
			Purpose:                  "connection registry and ban table",
			Author:                   "bastion",
			Version:                  1,
			Required:                 true,
			AttributesToSaveOnReload: []string{"banned"},
		},
		Factory: func(rt *plugin.Runtime) plugin.Plugin { return New(rt) },
	}
}

// Client is the registry's view of one connection. Deliver and Close
// bridge back to the owning shim; both may be nil in tests.
type Client struct {
	ID          string
	Addr        string
	Port        string
	Rows        int
	ViewOnly    bool
	LoggedIn    bool
	ConnectedAt time.Time
	Deliver     func(data []byte, prompt bool)
	Close       func()
}

// Engine is the client registry plugin. It also implements
// pipeline.ClientRoster.
type Engine struct {
	plugin.Base

	rt  *plugin.Runtime
	log *slog.Logger

	clients map[string]*Client
	order   []string
	banned  map[string]time.Time

	now func() time.Time
}

func New(rt *plugin.Runtime) *Engine {
	return &Engine{
		rt:      rt,
		log:     rt.Log.With("plugin", ID),
		clients: make(map[string]*Client),
		banned:  make(map[string]time.Time),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (e *Engine) Init(reg *plugin.Registrar) error {
	if e.rt.Pipeline != nil {
		e.rt.Pipeline.SetRoster(e)
	}

	events := []struct {
		name string
		desc string
	}{
		{EventConnected, "a client connected to the proxy"},
		{EventLoggedIn, "a client entered the proxy password"},
		{EventLoggedInViewOnly, "a client entered the view-only password"},
		{EventDisconnected, "a client disconnected from the proxy"},
	}
	uuidArg := map[string]string{"client_uuid": "the uuid of the client"}
	for _, ev := range events {
		if err := reg.Event(ev.name, []string{ev.desc}, uuidArg); err != nil {
			return err
		}
	}

	caps := []struct {
		name string
		fn   capability.Func
		desc string
	}{
		{"{plugin-id}:client.count", e.capCount, "number of connected clients"},
		{"{plugin-id}:client.banned.check", e.capBannedCheck, "whether an address is banned"},
		{"{plugin-id}:client.banned.add", e.capBannedAdd, "ban the address behind a client uuid"},
		{"{plugin-id}:client.is.logged.in", e.capIsLoggedIn, "whether a client finished the login flow"},
	}
	for _, c := range caps {
		if err := reg.Capability(c.name, c.fn, c.desc); err != nil {
			return err
		}
	}
	return nil
}

// Initialize registers the engine's commands once the command engine is
// up.
func (e *Engine) Initialize() error {
	svc := e.rt.Commands()
	if svc == nil {
		e.log.Debug("command engine absent, client commands skipped")
		return nil
	}
	cmds := []plugin.CommandSpec{
		{
			PluginID:  ID,
			Name:      "show",
			ShortHelp: "list connected clients",
			Handler:   e.cmdShow,
		},
		{
			PluginID:  ID,
			Name:      "ban",
			ShortHelp: "ban the address behind a connected client",
			Args: []plugin.CommandArg{
				{Name: "client", Type: "str", Help: "client uuid"},
			},
			Handler: e.cmdBan,
		},
		{
			PluginID:  ID,
			Name:      "bans",
			ShortHelp: "list banned addresses",
			Handler:   e.cmdBans,
		},
		{
			PluginID:  ID,
			Name:      "unban",
			ShortHelp: "lift the ban on an address",
			Args: []plugin.CommandArg{
				{Name: "address", Type: "str", Help: "banned address"},
			},
			Handler: e.cmdUnban,
		},
	}
	for _, spec := range cmds {
		if err := svc.Add(spec); err != nil {
			return fmt.Errorf("register client command %q: %w", spec.Name, err)
		}
	}
	return nil
}

// AddClient registers a connection and raises the connected event. A
// duplicate uuid replaces the stale entry.
func (e *Engine) AddClient(c *Client) {
	if c == nil || c.ID == "" {
		return
	}
	if _, ok := e.clients[c.ID]; ok {
		e.log.Warn("client already registered, replacing", "client", c.ID)
	} else {
		e.order = append(e.order, c.ID)
	}
	if c.ConnectedAt.IsZero() {
		c.ConnectedAt = e.now()
	}
	e.clients[c.ID] = c
	e.log.Info("client connected", "client", c.ID, "addr", c.Addr, "port", c.Port)
	e.raise(EventConnected, c.ID)
}

// RemoveClient drops a connection and raises the disconnected event.
func (e *Engine) RemoveClient(id string) bool {
	c, ok := e.clients[id]
	if !ok {
		return false
	}
	delete(e.clients, id)
	e.order = slices.DeleteFunc(e.order, func(s string) bool { return s == id })
	e.log.Info("client disconnected", "client", id, "addr", c.Addr, "port", c.Port)
	e.raise(EventDisconnected, id)
	return true
}

// Get returns the registered client for a uuid.
func (e *Engine) Get(id string) (*Client, bool) {
	c, ok := e.clients[id]
	return c, ok
}

// Count reports how many clients are connected.
func (e *Engine) Count() int { return len(e.clients) }

// SetLoggedIn marks a client as authenticated and raises the matching
// login event.
func (e *Engine) SetLoggedIn(id string, viewOnly bool) bool {
	c, ok := e.clients[id]
	if !ok {
		e.log.Debug("login for unknown client", "client", id)
		return false
	}
	c.LoggedIn = true
	c.ViewOnly = viewOnly
	if viewOnly {
		e.log.Warn("view client logged in", "client", id, "addr", c.Addr, "port", c.Port)
		e.raise(EventLoggedInViewOnly, id)
	} else {
		e.log.Warn("client logged in", "client", id, "addr", c.Addr, "port", c.Port)
		e.raise(EventLoggedIn, id)
	}
	return true
}

// IsLoggedIn reports whether a client finished the login flow.
func (e *Engine) IsLoggedIn(id string) bool {
	c, ok := e.clients[id]
	return ok && c.LoggedIn
}

// IsViewClient reports whether a client is view-only.
func (e *Engine) IsViewClient(id string) bool {
	c, ok := e.clients[id]
	return ok && c.ViewOnly
}

// Ban bans the address behind a connected client and closes the
// connection.
func (e *Engine) Ban(id string) bool {
	c, ok := e.clients[id]
	if !ok {
		return false
	}
	e.banned[c.Addr] = e.now()
	e.log.Error("address banned", "addr", c.Addr, "client", id, "duration", banDuration)
	if c.Close != nil {
		c.Close()
	}
	return true
}

// Banned reports whether an address is currently banned. Expired bans
// are dropped on check.
func (e *Engine) Banned(addr string) bool {
	since, ok := e.banned[addr]
	if !ok {
		return false
	}
	if e.now().Sub(since) > banDuration {
		delete(e.banned, addr)
		return false
	}
	return true
}

// Unban lifts the ban on an address.
func (e *Engine) Unban(addr string) bool {
	if _, ok := e.banned[addr]; !ok {
		return false
	}
	delete(e.banned, addr)
	return true
}

// Recipients implements pipeline.ClientRoster.
func (e *Engine) Recipients() []pipeline.Recipient {
	out := make([]pipeline.Recipient, 0, len(e.order))
	for _, id := range e.order {
		c := e.clients[id]
		if c.Deliver == nil {
			continue
		}
		out = append(out, pipeline.Recipient{
			ID:       c.ID,
			ViewOnly: c.ViewOnly,
			LoggedIn: c.LoggedIn,
			Deliver:  c.Deliver,
		})
	}
	return out
}

// Attribute and SetAttribute carry the ban table across a reload.
func (e *Engine) Attribute(name string) (any, bool) {
	if name != "banned" {
		return nil, false
	}
	out := make(map[string]time.Time, len(e.banned))
	for k, v := range e.banned {
		out[k] = v
	}
	return out, true
}

func (e *Engine) SetAttribute(name string, value any) bool {
	if name != "banned" {
		return false
	}
	m, ok := value.(map[string]time.Time)
	if !ok {
		return false
	}
	e.banned = make(map[string]time.Time, len(m))
	for k, v := range m {
		e.banned[k] = v
	}
	return true
}

func (e *Engine) raise(event, id string) {
	if _, err := e.rt.Bus.Raise(event, map[string]any{"client_uuid": id}, ID); err != nil {
		e.log.Warn("client event cancelled", "event", event, "client", id, "error", err)
	}
}

func (e *Engine) capCount(args ...any) (any, error) {
	return e.Count(), nil
}

func (e *Engine) capBannedCheck(args ...any) (any, error) {
	addr, err := capability.Arg[string](args, 0)
	if err != nil {
		return nil, err
	}
	return e.Banned(addr), nil
}

func (e *Engine) capBannedAdd(args ...any) (any, error) {
	id, err := capability.Arg[string](args, 0)
	if err != nil {
		return nil, err
	}
	return e.Ban(id), nil
}

func (e *Engine) capIsLoggedIn(args ...any) (any, error) {
	id, err := capability.Arg[string](args, 0)
	if err != nil {
		return nil, err
	}
	return e.IsLoggedIn(id), nil
}

func (e *Engine) cmdShow(ctx plugin.CommandContext) (bool, []string, error) {
	lines := []string{
		"@Wconnected clients@w",
		fmt.Sprintf("  @G%-36s@w %-21s %-12s %-9s %s", "uuid", "address", "connected", "logged in", "view"),
	}
	now := e.now()
	for _, id := range e.order {
		c := e.clients[id]
		lines = append(lines, fmt.Sprintf("  @G%-36s@w %-21s %-12s %-9s %s",
			c.ID,
			c.Addr+":"+c.Port,
			now.Sub(c.ConnectedAt).Round(time.Second).String(),
			strconv.FormatBool(c.LoggedIn),
			strconv.FormatBool(c.ViewOnly)))
	}
	return true, lines, nil
}

func (e *Engine) cmdBan(ctx plugin.CommandContext) (bool, []string, error) {
	id, _ := ctx.Args["client"].(string)
	if !e.Ban(id) {
		return false, []string{fmt.Sprintf("@R%s@w is not a connected client", id)}, nil
	}
	return true, []string{fmt.Sprintf("banned the address behind %s for %s", id, banDuration)}, nil
}

func (e *Engine) cmdBans(ctx plugin.CommandContext) (bool, []string, error) {
	lines := []string{"@Wbanned addresses@w"}
	addrs := make([]string, 0, len(e.banned))
	for addr := range e.banned {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)
	now := e.now()
	for _, addr := range addrs {
		left := banDuration - now.Sub(e.banned[addr])
		if left < 0 {
			left = 0
		}
		lines = append(lines, fmt.Sprintf("  @G%-21s@w %s left", addr, left.Round(time.Second)))
	}
	if len(lines) == 1 {
		lines = append(lines, "  none")
	}
	return true, lines, nil
}

func (e *Engine) cmdUnban(ctx plugin.CommandContext) (bool, []string, error) {
	addr, _ := ctx.Args["address"].(string)
	if !e.Unban(addr) {
		return false, []string{fmt.Sprintf("@R%s@w is not banned", addr)}, nil
	}
	return true, []string{addr + " unbanned"}, nil
}
