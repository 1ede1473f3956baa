// Package proxy implements the proxy control engine: it owns the
// connection settings and passwords, arms the client listener, dials
// and tears down the mud connection, and bridges the network shims onto
// the dispatcher through the netshim gateway.
package proxy

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"runtime"
	"strconv"
	"time"

	"github.com/bastionmud/bastion/pkg/bus"
	"github.com/bastionmud/bastion/pkg/netshim"
	"github.com/bastionmud/bastion/pkg/pipeline"
	"github.com/bastionmud/bastion/pkg/plugin"
	"github.com/bastionmud/bastion/pkg/plugins/core/clients"
	"github.com/bastionmud/bastion/pkg/plugins/core/commands"
	"github.com/bastionmud/bastion/pkg/plugins/core/settings"
	"github.com/bastionmud/bastion/pkg/records"
)

// ID is the engine's plugin id.
const ID = "plugins.core.proxy"

// Events owned by the engine.
const (
	EventMudConnected    = "ev_mud_connected"
	EventMudDisconnected = "ev_mud_disconnected"
	EventShutdown        = "ev_proxy_shutdown"
)

// Settings owned by the engine. The passwords are hidden from listings.
const (
	settingMudHost       = "mudhost"
	settingMudPort       = "mudport"
	settingListenPort    = "listenport"
	settingPreamble      = "preamble"
	settingPreambleColor = "preamblecolor"
	settingErrorColor    = "preambleerrorcolor"
	settingCmdSep        = "cmdseperator"
	settingProxyPW       = "proxypw"
	settingViewPW        = "proxypwview"
)

const (
	dialTimeout = 10 * time.Second
	timeFormat  = "Mon Jan 02 2006 15:04:05 MST"
	mudActor    = "mud"
)

// Definition describes the engine to the plugin catalog.
func Definition() plugin.Definition {
	return plugin.Definition{
		Manifest: plugin.Manifest{
			ID:           ID,
			Name:         "Proxy",
			Purpose:      "control the proxy and the mud connection",
			Author:       "bastion",
			Version:      1,
			Required:     true,
			Dependencies: []string{settings.ID, commands.ID, clients.ID},
		},
		Factory: func(rt *plugin.Runtime) plugin.Plugin { return New(rt) },
	}
}

// Engine is the proxy control engine. All state runs on the dispatcher
// goroutine; the gateway hops shim calls over.
type Engine struct {
	plugin.Base
	rt  *plugin.Runtime
	log *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	listener *netshim.Listener
	mud      *netshim.MudConn
	mudSince time.Time
	started  time.Time
	dialing  bool
}

// New builds the engine.
func New(rt *plugin.Runtime) *Engine {
	return &Engine{
		rt:  rt,
		log: rt.Log.With("plugin", ID),
	}
}

func (e *Engine) Init(reg *plugin.Registrar) error {
	seed := seeds{
		listenPort: 9999,
		preamble:   defaultPreamble,
		separator:  defaultSeparator,
		password:   "defaultpass",
		viewPW:     "defaultviewpass",
	}
	seed.apply(e.rt.Config)

	for _, spec := range []plugin.SettingSpec{
		{Name: settingMudHost, Type: "str", Default: seed.mudHost,
			Help: "the hostname/ip of the mud"},
		{Name: settingMudPort, Type: "int", Default: seed.mudPort,
			Help: "the port of the mud"},
		{Name: settingListenPort, Type: "int", Default: seed.listenPort,
			Help: "the port for the proxy to listen on, 0 disables listening"},
		{Name: settingPreamble, Type: "str", Default: seed.preamble,
			Help: "the preamble for any proxy output"},
		{Name: settingPreambleColor, Type: "color", Default: defaultPreambleColor,
			Help: "the preamble color"},
		{Name: settingErrorColor, Type: "color", Default: defaultErrorColor,
			Help: "the preamble color for an error line"},
		{Name: settingCmdSep, Type: "str", Default: seed.separator,
			Help: "the seperator for sending multiple commands"},
		{Name: settingProxyPW, Type: "str", Default: seed.password, Hidden: true,
			Help: "the proxy password"},
		{Name: settingViewPW, Type: "str", Default: seed.viewPW, Hidden: true,
			Help: "the view-only proxy password"},
	} {
		if err := reg.Setting(spec); err != nil {
			return err
		}
	}

	events := []struct {
		name string
		desc []string
		args map[string]string
	}{
		{EventMudConnected, []string{"Raised when the mud connection is established."},
			map[string]string{"addr": "the address dialed"}},
		{EventMudDisconnected, []string{"Raised when the mud connection ends."},
			map[string]string{"reason": "the error that ended the connection, empty for a clean close"}},
		{EventShutdown, []string{"Raised when the proxy starts shutting down."}, nil},
	}
	for _, ev := range events {
		if err := reg.Event(ev.name, ev.desc, ev.args); err != nil {
			return err
		}
	}

	reg.Callback(clients.EventLoggedIn, "login-checklist", 50, e.onClientLoggedIn)
	reg.Callback(settings.ModifiedEventName(ID, settingCmdSep), "resplit", 50, e.onSeparatorChanged)
	reg.Callback(settings.ModifiedEventName(ID, settingListenPort), "relisten", 50, e.onListenPortChanged)
	return nil
}

// Initialize registers the engine's commands and arms the client
// listener. A bind failure fails the load.
func (e *Engine) Initialize() error {
	e.started = time.Now().UTC()
	e.ctx, e.cancel = context.WithCancel(context.Background())

	if err := e.registerCommands(); err != nil {
		return err
	}

	if port := e.intSetting(settingListenPort); port > 0 {
		l, err := netshim.Listen(e.rt.Log, gateway{e}, fmt.Sprintf(":%d", port))
		if err != nil {
			return fmt.Errorf("listen for clients: %w", err)
		}
		e.listener = l
		l.Start(e.ctx)
	} else {
		e.log.Warn("client listener disabled", "port", port)
	}
	return nil
}

// Uninitialize stops accepting, drops the mud connection and cancels
// every shim.
func (e *Engine) Uninitialize() error {
	if e.listener != nil {
		e.listener.Close()
		e.listener = nil
	}
	if e.mud != nil {
		e.mud.Close()
		e.mud = nil
	}
	if e.rt.Pipeline != nil {
		e.rt.Pipeline.SetMudSink(nil)
	}
	if e.cancel != nil {
		e.cancel()
	}
	return nil
}

func (e *Engine) registerCommands() error {
	svc := e.rt.Commands()
	if svc == nil {
		e.log.Debug("command engine absent, proxy commands skipped")
		return nil
	}
	cmds := []plugin.CommandSpec{
		{PluginID: ID, Name: "info", ShortHelp: "show proxy information",
			Help: "show uptime, the mud connection and the connected clients", Handler: e.cmdInfo},
		{PluginID: ID, Name: "connect", ShortHelp: "connect to the mud",
			Help: "connect to the mud at the mudhost/mudport settings", Handler: e.cmdConnect},
		{PluginID: ID, Name: "disconnect", ShortHelp: "disconnect from the mud",
			Help: "close the mud connection", Handler: e.cmdDisconnect},
		{PluginID: ID, Name: "shutdown", ShortHelp: "shutdown the proxy",
			Help: "save everything and stop the proxy", Handler: e.cmdShutdown},
	}
	for _, spec := range cmds {
		if err := svc.Add(spec); err != nil {
			return fmt.Errorf("register proxy command %q: %w", spec.Name, err)
		}
	}
	return nil
}

// ConnectedToMud reports whether the upstream connection is live.
func (e *Engine) ConnectedToMud() bool {
	return e.mud != nil && e.mud.Connected()
}

// MudAddr returns the address of the live mud connection, or "".
func (e *Engine) MudAddr() string {
	if e.mud == nil {
		return ""
	}
	return e.mud.Addr()
}

// MudSince returns when the current mud connection was established. Zero
// when there is none.
func (e *Engine) MudSince() time.Time {
	if e.mud == nil {
		return time.Time{}
	}
	return e.mudSince
}

// startDial resolves the dial off the dispatcher and hops back with the
// result.
func (e *Engine) startDial(addr string) {
	e.dialing = true
	ctx := e.ctx
	go func() {
		dctx, cancel := context.WithTimeout(ctx, dialTimeout)
		defer cancel()
		m, err := netshim.DialMud(dctx, e.rt.Log, gateway{e}, addr)
		e.submit("mud dial result", func() { e.finishDial(m, err, addr) })
	}()
}

func (e *Engine) finishDial(m *netshim.MudConn, err error, addr string) {
	e.dialing = false
	if err != nil {
		e.log.Error("mud connection failed", "addr", addr, "error", err)
		e.notify(true, fmt.Sprintf("Could not connect to the mud: %v", err))
		return
	}
	if e.mud != nil || e.ctx.Err() != nil {
		m.Close()
		return
	}
	e.mud = m
	e.mudSince = time.Now().UTC()
	if e.rt.Pipeline != nil {
		e.rt.Pipeline.SetMudSink(m)
	}
	m.Start(e.ctx)

	e.log.Info("mud connected", "addr", addr)
	if _, rerr := e.rt.Bus.Raise(EventMudConnected, map[string]any{"addr": addr}, ID); rerr != nil {
		e.log.Error("mud connected event failed", "error", rerr)
	}
	e.notify(false, "Connected to the mud")
}

func (e *Engine) mudDown(err error) {
	if e.mud == nil {
		return
	}
	e.mud = nil
	if e.rt.Pipeline != nil {
		e.rt.Pipeline.SetMudSink(nil)
	}

	reason := ""
	if err != nil {
		reason = err.Error()
		e.log.Error("mud connection lost", "error", err)
		e.notify(true, fmt.Sprintf("The mud connection failed: %v", err))
	} else {
		e.log.Info("mud connection closed")
		e.notify(false, "The mud connection closed")
	}
	if _, rerr := e.rt.Bus.Raise(EventMudDisconnected, map[string]any{"reason": reason}, ID); rerr != nil {
		e.log.Error("mud disconnected event failed", "error", rerr)
	}
}

// rearmListener replaces the client listener after a port change. Live
// sessions stay up; only accepting moves.
func (e *Engine) rearmListener(port int) {
	if e.listener != nil {
		e.listener.Close()
		e.listener = nil
	}
	if port <= 0 {
		e.log.Warn("client listener disabled", "port", port)
		e.notify(false, "No longer listening for new clients")
		return
	}
	l, err := netshim.Listen(e.rt.Log, gateway{e}, fmt.Sprintf(":%d", port))
	if err != nil {
		e.log.Error("listener re-arm failed", "port", port, "error", err)
		e.notify(true, fmt.Sprintf("Could not listen on port %d: %v", port, err))
		return
	}
	e.listener = l
	l.Start(e.ctx)
	e.notify(false, fmt.Sprintf("Now listening on port %d", port))
}

func (e *Engine) onClientLoggedIn(rec *bus.Record) error {
	uuid := rec.String("client_uuid")
	if uuid == "" || e.rt.Pipeline == nil {
		return nil
	}
	divider := "@R------------------------------------------------@w"
	var msg []string

	if !e.ConnectedToMud() {
		if e.strSetting(settingMudHost) == "" {
			msg = append(msg, divider,
				"Please set the mudhost.",
				"  "+e.setHint(settingMudHost+" 'host'"))
		}
		if e.intSetting(settingMudPort) == 0 {
			msg = append(msg, divider,
				"Please set the mudport.",
				"  "+e.setHint(settingMudPort+" 'port'"))
		}
		msg = append(msg, divider, "Connect to the mud with "+e.cmdHint("connect"))
	} else {
		msg = append(msg, divider, "@GThe proxy is already connected to the mud@w")
	}
	if e.strSetting(settingProxyPW) == "defaultpass" {
		msg = append(msg, divider,
			"The proxy password is still the default password.",
			"Please set the proxy password!",
			"  "+e.setHint(settingProxyPW+" 'a new password'"))
	}
	if e.strSetting(settingViewPW) == "defaultviewpass" {
		msg = append(msg, divider,
			"The proxy view password is still the default password.",
			"Please set the proxy view password!",
			"  "+e.setHint(settingViewPW+" 'a new view password'"))
	}
	msg = append(msg, divider)

	cont := pipeline.InternalContainer(ID, false, msg...)
	return e.rt.Pipeline.SendToClient(cont, pipeline.SendOptions{Include: []string{uuid}, Actor: ID})
}

// onSeparatorChanged announces the new separator. The pipeline reads it
// live through the format source, so splitting already uses it.
func (e *Engine) onSeparatorChanged(rec *bus.Record) error {
	sep := rec.String("newvalue")
	e.log.Info("command separator changed", "separator", sep)
	e.notify(false, fmt.Sprintf("The command separator is now %q", sep))
	return nil
}

func (e *Engine) onListenPortChanged(rec *bus.Record) error {
	e.rearmListener(rec.Int("newvalue"))
	return nil
}

func (e *Engine) cmdInfo(plugin.CommandContext) (bool, []string, error) {
	template := "%-15s : %s"
	out := []string{
		"@B-------------------  Proxy ------------------@w",
		fmt.Sprintf(template, "Started", e.started.Format(timeFormat)),
		fmt.Sprintf(template, "Uptime", formatDuration(time.Since(e.started))),
		fmt.Sprintf(template, "Go Version", runtime.Version()),
		"",
		"@B-------------------   Mud  ------------------@w",
	}
	if e.ConnectedToMud() {
		out = append(out,
			fmt.Sprintf(template, "Connected", e.mudSince.Format(timeFormat)),
			fmt.Sprintf(template, "Uptime", formatDuration(time.Since(e.mudSince))),
			fmt.Sprintf(template, "Address", e.mud.Addr()),
		)
	} else {
		out = append(out, fmt.Sprintf(template, "Mud", "disconnected"))
	}

	active, view := 0, 0
	if ce := e.clientsEngine(); ce != nil {
		for _, r := range ce.Recipients() {
			if r.ViewOnly {
				view++
			} else {
				active++
			}
		}
	}
	out = append(out,
		"",
		"@B-----------------   Clients  ----------------@w",
		fmt.Sprintf(template, "Clients", strconv.Itoa(active)),
		fmt.Sprintf(template, "View Clients", strconv.Itoa(view)),
		"@B---------------------------------------------@w",
	)
	return true, out, nil
}

func (e *Engine) cmdConnect(plugin.CommandContext) (bool, []string, error) {
	if e.ConnectedToMud() {
		return true, []string{"The proxy is currently connected to the mud"}, nil
	}
	if e.dialing {
		return true, []string{"Already connecting to the mud"}, nil
	}
	host := e.strSetting(settingMudHost)
	port := e.intSetting(settingMudPort)
	if host == "" || port == 0 {
		return false, []string{
			"The mud address is not set.",
			"  " + e.setHint(settingMudHost + " 'host'"),
			"  " + e.setHint(settingMudPort + " 'port'"),
		}, nil
	}
	e.startDial(net.JoinHostPort(host, strconv.Itoa(port)))
	return true, []string{"Connecting to the mud"}, nil
}

func (e *Engine) cmdDisconnect(plugin.CommandContext) (bool, []string, error) {
	if !e.ConnectedToMud() {
		return true, []string{"The proxy is not connected to the mud"}, nil
	}
	e.mud.Close()
	return true, []string{"Attempted to close the connection to the mud"}, nil
}

func (e *Engine) cmdShutdown(ctx plugin.CommandContext) (bool, []string, error) {
	e.log.Warn("shutdown requested", "client_uuid", ctx.ClientID)
	if _, err := e.rt.Bus.Raise(EventShutdown, nil, ID); err != nil {
		e.log.Error("shutdown event failed", "error", err)
	}
	if e.rt.RequestShutdown != nil {
		e.rt.RequestShutdown()
	}
	return true, []string{"Shutting down proxy"}, nil
}

// notify sends an internal line to every logged-in client.
func (e *Engine) notify(isError bool, texts ...string) {
	if e.rt.Pipeline == nil {
		return
	}
	cont := pipeline.InternalContainer(ID, isError, texts...)
	if err := e.rt.Pipeline.SendToClient(cont, pipeline.SendOptions{Actor: ID}); err != nil {
		e.log.Error("client notice failed", "error", err)
	}
}

func (e *Engine) clientsEngine() *clients.Engine {
	m := e.rt.Manager()
	if m == nil {
		return nil
	}
	info, ok := m.Get(clients.ID)
	if !ok {
		return nil
	}
	ce, _ := info.Instance.(*clients.Engine)
	return ce
}

// submit hands work to the dispatcher, running it inline when no
// dispatcher is wired.
func (e *Engine) submit(name string, fn func()) {
	d := e.rt.Dispatcher
	if d == nil {
		fn()
		return
	}
	if err := d.Submit(name, fn); err != nil {
		e.log.Warn("task dropped at shutdown", "task", name, "error", err)
	}
}

// call runs fn on the dispatcher and waits for it.
func (e *Engine) call(name string, fn func()) {
	d := e.rt.Dispatcher
	if d == nil {
		fn()
		return
	}
	if err := d.Do(context.Background(), name, fn); err != nil {
		e.log.Warn("dispatcher call failed", "task", name, "error", err)
	}
}

func (e *Engine) strSetting(name string) string {
	svc := e.rt.Settings()
	if svc == nil {
		return ""
	}
	v, err := svc.Get(ID, name)
	if err != nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

func (e *Engine) intSetting(name string) int {
	svc := e.rt.Settings()
	if svc == nil {
		return 0
	}
	v, err := svc.Get(ID, name)
	if err != nil {
		return 0
	}
	n, _ := v.(int)
	return n
}

// cmdPrefix returns the live command prefix for user-facing hints.
func (e *Engine) cmdPrefix() string {
	if svc := e.rt.Settings(); svc != nil {
		if v, err := svc.Get(commands.ID, "cmdprefix"); err == nil {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return "#bp"
}

func (e *Engine) cmdHint(name string) string {
	return e.cmdPrefix() + ".core.proxy." + name
}

func (e *Engine) setHint(rest string) string {
	return e.cmdPrefix() + ".core.settings.set " + ID + " " + rest
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	s := (d - m*time.Minute) / time.Second
	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
	case h > 0:
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

// gateway bridges the network shims onto the dispatcher. Every method
// is safe to call from shim goroutines.
type gateway struct {
	e *Engine
}

func (g gateway) Banned(addr string) bool {
	banned := false
	g.e.call("proxy banned check", func() {
		if ce := g.e.clientsEngine(); ce != nil {
			banned = ce.Banned(addr)
		}
	})
	return banned
}

func (g gateway) Passwords() (string, string) {
	var pw, viewPW string
	g.e.call("proxy password check", func() {
		pw = g.e.strSetting(settingProxyPW)
		viewPW = g.e.strSetting(settingViewPW)
	})
	return pw, viewPW
}

func (g gateway) ClientConnected(c *netshim.ClientConn) {
	g.e.submit("client connected", func() {
		if ce := g.e.clientsEngine(); ce != nil {
			ce.AddClient(&clients.Client{
				ID:      c.ID(),
				Addr:    c.Addr(),
				Port:    c.Port(),
				Deliver: c.Deliver,
				Close:   c.Close,
			})
		}
	})
}

func (g gateway) ClientLoggedIn(id string, viewOnly bool) {
	g.e.submit("client logged in", func() {
		if ce := g.e.clientsEngine(); ce != nil {
			ce.SetLoggedIn(id, viewOnly)
		}
	})
}

func (g gateway) ClientBanned(id string) {
	g.e.submit("client banned", func() {
		if ce := g.e.clientsEngine(); ce != nil {
			ce.Ban(id)
		}
	})
}

func (g gateway) ClientDisconnected(id string) {
	g.e.submit("client disconnected", func() {
		if ce := g.e.clientsEngine(); ce != nil {
			ce.RemoveClient(id)
		}
	})
}

func (g gateway) ClientLine(id, line string) {
	g.e.submit("client line", func() {
		if g.e.rt.Pipeline == nil {
			return
		}
		if _, err := g.e.rt.Pipeline.ProcessToMud(line, plugin.ClientActor(id)); err != nil {
			g.e.log.Error("client line processing failed", "client_uuid", id, "error", err)
		}
	})
}

func (g gateway) MudLine(l *records.Line) {
	g.e.submit("mud line", func() {
		if g.e.rt.Pipeline == nil {
			return
		}
		if err := g.e.rt.Pipeline.ProcessToClient(records.NewContainer(l), mudActor); err != nil {
			g.e.log.Error("mud line processing failed", "error", err)
		}
	})
}

func (g gateway) MudDisconnected(err error) {
	g.e.submit("mud disconnected", func() { g.e.mudDown(err) })
}
