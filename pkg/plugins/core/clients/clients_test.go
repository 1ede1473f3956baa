package clients

import (
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bastionmud/bastion/pkg/bus"
	"github.com/bastionmud/bastion/pkg/capability"
	"github.com/bastionmud/bastion/pkg/plugin"
)

func newTestEngine(t *testing.T) (*Engine, *plugin.Runtime) {
	t.Helper()
	rt := &plugin.Runtime{
		Log:   slog.Default(),
		Bus:   bus.New(slog.Default()),
		Caps:  capability.NewRegistry(slog.Default()),
		State: plugin.NewMemoryState(),
	}
	cat := plugin.NewCatalog()
	require.NoError(t, cat.Add(Definition()))
	m := plugin.NewManager(slog.Default(), rt, cat)
	require.NoError(t, m.LoadAll())

	info, ok := m.Get(ID)
	require.True(t, ok)
	eng, ok := info.Instance.(*Engine)
	require.True(t, ok)
	return eng, rt
}

func capture(rt *plugin.Runtime, event string) *[]*bus.Record {
	var recs []*bus.Record
	rt.Bus.RegisterCallback(event, "test", "capture", 100, func(r *bus.Record) error {
		recs = append(recs, r)
		return nil
	})
	return &recs
}

func testClient(id, addr string) *Client {
	return &Client{ID: id, Addr: addr, Port: "4000"}
}

func TestAddRemoveRaisesEvents(t *testing.T) {
	e, rt := newTestEngine(t)
	connected := capture(rt, EventConnected)
	disconnected := capture(rt, EventDisconnected)

	e.AddClient(testClient("c1", "10.0.0.1"))

	require.Len(t, *connected, 1)
	assert.Equal(t, "c1", (*connected)[0].String("client_uuid"))
	assert.Equal(t, 1, e.Count())

	assert.True(t, e.RemoveClient("c1"))
	require.Len(t, *disconnected, 1)
	assert.Equal(t, "c1", (*disconnected)[0].String("client_uuid"))
	assert.Equal(t, 0, e.Count())

	assert.False(t, e.RemoveClient("c1"))
}

func TestLoginEvents(t *testing.T) {
	e, rt := newTestEngine(t)
	loggedIn := capture(rt, EventLoggedIn)
	viewOnly := capture(rt, EventLoggedInViewOnly)

	e.AddClient(testClient("c1", "10.0.0.1"))
	e.AddClient(testClient("c2", "10.0.0.2"))

	assert.True(t, e.SetLoggedIn("c1", false))
	require.Len(t, *loggedIn, 1)
	assert.True(t, e.IsLoggedIn("c1"))
	assert.False(t, e.IsViewClient("c1"))

	assert.True(t, e.SetLoggedIn("c2", true))
	require.Len(t, *viewOnly, 1)
	assert.True(t, e.IsLoggedIn("c2"))
	assert.True(t, e.IsViewClient("c2"))

	assert.False(t, e.SetLoggedIn("nope", false))
	assert.False(t, e.IsLoggedIn("nope"))
}

func TestBanClosesAndExpires(t *testing.T) {
	e, _ := newTestEngine(t)
	cur := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return cur }

	closed := false
	c := testClient("c1", "10.0.0.1")
	c.Close = func() { closed = true }
	e.AddClient(c)

	assert.False(t, e.Ban("nope"))
	assert.True(t, e.Ban("c1"))
	assert.True(t, closed)
	assert.True(t, e.Banned("10.0.0.1"))

	cur = cur.Add(banDuration + time.Minute)
	assert.False(t, e.Banned("10.0.0.1"))
	// the expired entry is gone, not just inert
	assert.Empty(t, e.banned)
}

func TestUnban(t *testing.T) {
	e, _ := newTestEngine(t)
	e.AddClient(testClient("c1", "10.0.0.1"))
	require.True(t, e.Ban("c1"))

	assert.True(t, e.Unban("10.0.0.1"))
	assert.False(t, e.Banned("10.0.0.1"))
	assert.False(t, e.Unban("10.0.0.1"))
}

func TestRecipientsKeepOrderAndSkipSinkless(t *testing.T) {
	e, _ := newTestEngine(t)
	var got []string
	deliver := func(id string) func([]byte, bool) {
		return func([]byte, bool) { got = append(got, id) }
	}

	a := testClient("a", "10.0.0.1")
	a.Deliver = deliver("a")
	a.LoggedIn = true
	b := testClient("b", "10.0.0.2")
	c := testClient("c", "10.0.0.3")
	c.Deliver = deliver("c")
	c.ViewOnly = true
	e.AddClient(a)
	e.AddClient(b)
	e.AddClient(c)

	recipients := e.Recipients()
	require.Len(t, recipients, 2)
	assert.Equal(t, "a", recipients[0].ID)
	assert.True(t, recipients[0].LoggedIn)
	assert.Equal(t, "c", recipients[1].ID)
	assert.True(t, recipients[1].ViewOnly)

	for _, r := range recipients {
		r.Deliver(nil, false)
	}
	assert.Equal(t, []string{"a", "c"}, got)
}

func TestBanTableSurvivesSnapshot(t *testing.T) {
	e, _ := newTestEngine(t)
	e.AddClient(testClient("c1", "10.0.0.1"))
	require.True(t, e.Ban("c1"))

	snap, ok := e.Attribute("banned")
	require.True(t, ok)
	_, ok = e.Attribute("other")
	assert.False(t, ok)

	fresh, _ := newTestEngine(t)
	assert.False(t, fresh.Banned("10.0.0.1"))
	require.True(t, fresh.SetAttribute("banned", snap))
	assert.True(t, fresh.Banned("10.0.0.1"))
}

func TestCapabilities(t *testing.T) {
	e, rt := newTestEngine(t)
	e.AddClient(testClient("c1", "10.0.0.1"))

	cl := rt.Caps.Client("test")
	n, err := cl.Call(ID+":client.count")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	banned, err := cl.Call(ID+":client.banned.check", "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, false, banned)

	_, err = cl.Call(ID+":client.banned.add", "c1")
	require.NoError(t, err)
	banned, err = cl.Call(ID+":client.banned.check", "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, true, banned)

	in, err := cl.Call(ID+":client.is.logged.in", "c1")
	require.NoError(t, err)
	assert.Equal(t, false, in)
}

func TestShowAndBanCommands(t *testing.T) {
	e, _ := newTestEngine(t)
	e.AddClient(testClient("c1", "10.0.0.1"))

	ok, lines, err := e.cmdShow(plugin.CommandContext{})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, strings.Join(lines, "\n"), "c1")

	ok, _, err = e.cmdBan(plugin.CommandContext{Args: map[string]any{"client": "nope"}})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, _, err = e.cmdBan(plugin.CommandContext{Args: map[string]any{"client": "c1"}})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, lines, err = e.cmdBans(plugin.CommandContext{})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, strings.Join(lines, "\n"), "10.0.0.1")

	ok, _, err = e.cmdUnban(plugin.CommandContext{Args: map[string]any{"address": "10.0.0.1"}})
	require.NoError(t, err)
	assert.True(t, ok)
}
