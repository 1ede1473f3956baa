package proxy

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bastionmud/bastion/pkg/bus"
	"github.com/bastionmud/bastion/pkg/capability"
	"github.com/bastionmud/bastion/pkg/dispatch"
	"github.com/bastionmud/bastion/pkg/pipeline"
	"github.com/bastionmud/bastion/pkg/plugin"
	"github.com/bastionmud/bastion/pkg/plugins/core/clients"
	"github.com/bastionmud/bastion/pkg/plugins/core/commands"
	"github.com/bastionmud/bastion/pkg/plugins/core/settings"
)

// newTestProxy boots the settings, command, client and proxy engines
// with the client listener disabled through a pre-seeded store.
func newTestProxy(t *testing.T) (*Engine, *plugin.Runtime, *plugin.Manager) {
	t.Helper()
	store := settings.NewMemoryStore()
	require.NoError(t, store.Put(context.Background(), ID, settingListenPort, "0"))

	rt := &plugin.Runtime{
		Log:   slog.Default(),
		Bus:   bus.New(slog.Default()),
		Caps:  capability.NewRegistry(slog.Default()),
		State: plugin.NewMemoryState(),
	}
	rt.Pipeline = pipeline.New(slog.Default(), rt.Bus, NewFormatSource(rt))

	cat := plugin.NewCatalog()
	require.NoError(t, cat.Add(settings.Definition(store)))
	require.NoError(t, cat.Add(commands.Definition(nil)))
	require.NoError(t, cat.Add(clients.Definition()))
	require.NoError(t, cat.Add(Definition()))
	m := plugin.NewManager(slog.Default(), rt, cat)
	require.NoError(t, m.LoadAll())
	t.Cleanup(m.Shutdown)

	info, ok := m.Get(ID)
	require.True(t, ok)
	eng, ok := info.Instance.(*Engine)
	require.True(t, ok)
	return eng, rt, m
}

func clientsOf(t *testing.T, m *plugin.Manager) *clients.Engine {
	t.Helper()
	info, ok := m.Get(clients.ID)
	require.True(t, ok)
	ce, ok := info.Instance.(*clients.Engine)
	require.True(t, ok)
	return ce
}

// newDispatcher starts a dispatcher and hands the runtime over to it.
// State seeded before the call must not be touched inline afterwards.
func newDispatcher(t *testing.T, rt *plugin.Runtime) *dispatch.Dispatcher {
	t.Helper()
	d := dispatch.New(slog.Default(), 0)
	ctx, cancel := context.WithCancel(context.Background())
	d.Start(ctx)
	t.Cleanup(func() {
		d.Stop()
		cancel()
	})
	rt.Dispatcher = d
	return d
}

func capture(rt *plugin.Runtime, event string) *[]*bus.Record {
	var recs []*bus.Record
	rt.Bus.RegisterCallback(event, "test", "capture", 100, func(r *bus.Record) error {
		recs = append(recs, r)
		return nil
	})
	return &recs
}

// deliverBuf collects client deliveries across goroutines.
type deliverBuf struct {
	mu  sync.Mutex
	buf strings.Builder
}

func (b *deliverBuf) deliver(data []byte, prompt bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Write(data)
}

func (b *deliverBuf) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func TestBootWithListeningDisabled(t *testing.T) {
	e, rt, _ := newTestProxy(t)

	assert.Nil(t, e.listener)
	assert.False(t, e.ConnectedToMud())

	v, err := rt.Settings().Get(ID, settingListenPort)
	require.NoError(t, err)
	assert.Equal(t, 0, v)

	v, err = rt.Settings().Get(ID, settingPreamble)
	require.NoError(t, err)
	assert.Equal(t, "#BP", v)
}

func TestLoginChecklistWarnsAboutDefaults(t *testing.T) {
	_, _, m := newTestProxy(t)
	ce := clientsOf(t, m)

	var out deliverBuf
	ce.AddClient(&clients.Client{ID: "c1", Addr: "10.0.0.1", Port: "4000", Deliver: out.deliver})
	require.True(t, ce.SetLoggedIn("c1", false))

	text := out.String()
	assert.Contains(t, text, "Please set the mudhost.")
	assert.Contains(t, text, "Please set the mudport.")
	assert.Contains(t, text, "#bp.core.settings.set plugins.core.proxy mudhost 'host'")
	assert.Contains(t, text, "Connect to the mud with #bp.core.proxy.connect")
	assert.Contains(t, text, "The proxy password is still the default password.")
	assert.Contains(t, text, "The proxy view password is still the default password.")
	assert.Contains(t, text, "#BP")
}

func TestLoginChecklistAfterConfiguration(t *testing.T) {
	_, rt, m := newTestProxy(t)
	svc := rt.Settings()
	require.NoError(t, svc.Set(ID, settingMudHost, "mud.example.com", "test"))
	require.NoError(t, svc.Set(ID, settingMudPort, 4000, "test"))
	require.NoError(t, svc.Set(ID, settingProxyPW, "s3cret", "test"))
	require.NoError(t, svc.Set(ID, settingViewPW, "v13w", "test"))

	ce := clientsOf(t, m)
	var out deliverBuf
	ce.AddClient(&clients.Client{ID: "c1", Addr: "10.0.0.1", Port: "4000", Deliver: out.deliver})
	require.True(t, ce.SetLoggedIn("c1", false))

	text := out.String()
	assert.Contains(t, text, "Connect to the mud with #bp.core.proxy.connect")
	assert.NotContains(t, text, "Please set the mudhost.")
	assert.NotContains(t, text, "Please set the mudport.")
	assert.NotContains(t, text, "still the default password")
}

func TestInfoShowsProxyAndMudState(t *testing.T) {
	e, _, m := newTestProxy(t)
	ce := clientsOf(t, m)
	var out deliverBuf
	ce.AddClient(&clients.Client{ID: "c1", Addr: "10.0.0.1", Port: "4000", Deliver: out.deliver})
	ce.SetLoggedIn("c1", true)

	ok, lines, err := e.cmdInfo(plugin.CommandContext{})
	require.NoError(t, err)
	assert.True(t, ok)

	joined := strings.Join(lines, "\n")
	assert.Contains(t, joined, "Proxy")
	assert.Contains(t, joined, "Go Version")
	assert.Contains(t, joined, fmt.Sprintf("%-15s : %s", "Mud", "disconnected"))
	assert.Contains(t, joined, fmt.Sprintf("%-15s : %s", "Clients", "0"))
	assert.Contains(t, joined, fmt.Sprintf("%-15s : %s", "View Clients", "1"))
}

func TestConnectRequiresAddress(t *testing.T) {
	e, _, _ := newTestProxy(t)

	ok, lines, err := e.cmdConnect(plugin.CommandContext{})
	require.NoError(t, err)
	assert.False(t, ok)
	require.NotEmpty(t, lines)
	assert.Equal(t, "The mud address is not set.", lines[0])
	assert.False(t, e.dialing)
}

func TestDisconnectWithoutConnection(t *testing.T) {
	e, _, _ := newTestProxy(t)

	ok, lines, err := e.cmdDisconnect(plugin.CommandContext{})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"The proxy is not connected to the mud"}, lines)
}

func TestMudLifecycle(t *testing.T) {
	e, rt, m := newTestProxy(t)
	ce := clientsOf(t, m)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })
	port := ln.Addr().(*net.TCPAddr).Port
	accepted := make(chan net.Conn, 1)
	go func() {
		if c, aerr := ln.Accept(); aerr == nil {
			accepted <- c
		}
	}()

	require.NoError(t, rt.Settings().Set(ID, settingMudHost, "127.0.0.1", "test"))
	require.NoError(t, rt.Settings().Set(ID, settingMudPort, port, "test"))
	var out deliverBuf
	ce.AddClient(&clients.Client{ID: "c1", Addr: "10.0.0.1", Port: "4000", Deliver: out.deliver})
	require.True(t, ce.SetLoggedIn("c1", false))

	connected := capture(rt, EventMudConnected)
	dropped := capture(rt, EventMudDisconnected)
	d := newDispatcher(t, rt)
	ctx := context.Background()

	var ok bool
	var lines []string
	require.NoError(t, d.Do(ctx, "connect", func() {
		ok, lines, _ = e.cmdConnect(plugin.CommandContext{})
	}))
	assert.True(t, ok)
	assert.Equal(t, []string{"Connecting to the mud"}, lines)

	isConnected := func() bool {
		var v bool
		_ = d.Do(ctx, "check", func() { v = e.ConnectedToMud() })
		return v
	}
	waitFor(t, "mud connection", isConnected)
	require.Len(t, *connected, 1)
	assert.Equal(t, fmt.Sprintf("127.0.0.1:%d", port), (*connected)[0].String("addr"))

	var mudSide net.Conn
	select {
	case mudSide = <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("the mud never saw the connection")
	}
	t.Cleanup(func() { _ = mudSide.Close() })

	// mud to client
	_, err = mudSide.Write([]byte("You see a goblin.\r\n"))
	require.NoError(t, err)
	waitFor(t, "mud output at the client", func() bool {
		return strings.Contains(out.String(), "You see a goblin.")
	})
	assert.Contains(t, out.String(), "Connected to the mud")

	// client to mud
	gw := gateway{e}
	gw.ClientLine("c1", "look")
	require.NoError(t, mudSide.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 64)
	var mudGot strings.Builder
	for !strings.Contains(mudGot.String(), "look\r\n") {
		n, rerr := mudSide.Read(buf)
		require.NoError(t, rerr)
		mudGot.Write(buf[:n])
	}

	require.NoError(t, d.Do(ctx, "disconnect", func() {
		ok, lines, _ = e.cmdDisconnect(plugin.CommandContext{})
	}))
	assert.True(t, ok)
	assert.Equal(t, []string{"Attempted to close the connection to the mud"}, lines)

	waitFor(t, "mud teardown", func() bool { return !isConnected() })
	waitFor(t, "disconnect notice", func() bool {
		return strings.Contains(out.String(), "The mud connection closed")
	})
	require.Len(t, *dropped, 1)
	assert.Equal(t, "", (*dropped)[0].String("reason"))

	require.NoError(t, mudSide.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, err = mudSide.Read(buf)
	assert.Error(t, err)
}

func TestConnectFailureNotifiesClients(t *testing.T) {
	e, rt, m := newTestProxy(t)
	ce := clientsOf(t, m)

	require.NoError(t, rt.Settings().Set(ID, settingMudHost, "127.0.0.1", "test"))
	require.NoError(t, rt.Settings().Set(ID, settingMudPort, freePort(t), "test"))
	var out deliverBuf
	ce.AddClient(&clients.Client{ID: "c1", Addr: "10.0.0.1", Port: "4000", Deliver: out.deliver})
	require.True(t, ce.SetLoggedIn("c1", false))

	d := newDispatcher(t, rt)
	ctx := context.Background()

	var lines []string
	require.NoError(t, d.Do(ctx, "connect", func() {
		_, lines, _ = e.cmdConnect(plugin.CommandContext{})
	}))
	assert.Equal(t, []string{"Connecting to the mud"}, lines)

	waitFor(t, "dial failure notice", func() bool {
		return strings.Contains(out.String(), "Could not connect to the mud")
	})
	var dialing, connected bool
	require.NoError(t, d.Do(ctx, "check", func() {
		dialing = e.dialing
		connected = e.ConnectedToMud()
	}))
	assert.False(t, dialing)
	assert.False(t, connected)
}

func TestListenPortRearm(t *testing.T) {
	e, rt, _ := newTestProxy(t)
	d := newDispatcher(t, rt)
	ctx := context.Background()
	port := freePort(t)

	var setErr error
	require.NoError(t, d.Do(ctx, "set port", func() {
		setErr = rt.Settings().Set(ID, settingListenPort, port, "test")
	}))
	require.NoError(t, setErr)

	var armed bool
	require.NoError(t, d.Do(ctx, "check", func() { armed = e.listener != nil }))
	require.True(t, armed)

	conn, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var got strings.Builder
	buf := make([]byte, 256)
	for !strings.Contains(got.String(), "Welcome to Bastion.") {
		n, rerr := conn.Read(buf)
		require.NoError(t, rerr)
		got.Write(buf[:n])
	}

	require.NoError(t, d.Do(ctx, "disable", func() {
		setErr = rt.Settings().Set(ID, settingListenPort, 0, "test")
	}))
	require.NoError(t, setErr)
	require.NoError(t, d.Do(ctx, "check", func() { armed = e.listener != nil }))
	assert.False(t, armed)

	_, err = net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	assert.Error(t, err)
}

func TestSeparatorChangeIsAnnounced(t *testing.T) {
	_, rt, m := newTestProxy(t)
	ce := clientsOf(t, m)
	var out deliverBuf
	ce.AddClient(&clients.Client{ID: "c1", Addr: "10.0.0.1", Port: "4000", Deliver: out.deliver})
	require.True(t, ce.SetLoggedIn("c1", false))

	require.NoError(t, rt.Settings().Set(ID, settingCmdSep, ";", "test"))

	assert.Contains(t, out.String(), `The command separator is now ";"`)
	assert.Equal(t, ";", NewFormatSource(rt).Separator())
}

func TestShutdownCommand(t *testing.T) {
	e, rt, _ := newTestProxy(t)
	var called bool
	rt.RequestShutdown = func() { called = true }
	events := capture(rt, EventShutdown)

	ok, lines, err := e.cmdShutdown(plugin.CommandContext{ClientID: "c1"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"Shutting down proxy"}, lines)
	assert.True(t, called)
	assert.Len(t, *events, 1)
}

func TestGatewayChecksBansAndPasswords(t *testing.T) {
	e, _, m := newTestProxy(t)
	ce := clientsOf(t, m)
	gw := gateway{e}

	pw, view := gw.Passwords()
	assert.Equal(t, "defaultpass", pw)
	assert.Equal(t, "defaultviewpass", view)

	ce.AddClient(&clients.Client{ID: "c1", Addr: "9.9.9.9", Port: "4000"})
	require.True(t, ce.Ban("c1"))
	assert.True(t, gw.Banned("9.9.9.9"))
	assert.False(t, gw.Banned("8.8.8.8"))
}

func TestFormatSourceReadsLiveSettings(t *testing.T) {
	_, rt, _ := newTestProxy(t)
	fs := NewFormatSource(rt)

	spec := fs.FormatSpec()
	assert.Equal(t, "#BP", spec.Preamble)
	assert.Equal(t, "@C", spec.PreambleColor)
	assert.Equal(t, "@R", spec.ErrorColor)
	assert.Equal(t, "|", spec.Separator)

	require.NoError(t, rt.Settings().Set(ID, settingPreamble, "#XX", "test"))
	assert.Equal(t, "#XX", fs.FormatSpec().Preamble)
}

func TestFormatSourceFallbacksWithoutSettings(t *testing.T) {
	fs := NewFormatSource(&plugin.Runtime{Log: slog.Default()})

	spec := fs.FormatSpec()
	assert.Equal(t, "#BP", spec.Preamble)
	assert.Equal(t, "@C", spec.PreambleColor)
	assert.Equal(t, "@R", spec.ErrorColor)
	assert.Equal(t, "|", spec.Separator)
	assert.Equal(t, "|", fs.Separator())
}
