package netshim

import (
	"context"
	"log/slog"
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*ClientConn, net.Conn, *fakeGateway, *pipeReader) {
	t.Helper()
	gw := newFakeGateway()
	shim, peer := net.Pipe()
	c := NewClientConn(slog.Default(), gw, shim)
	out := drainConn(peer)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	c.Start(ctx)
	t.Cleanup(c.Close)
	return c, peer, gw, out
}

func TestGreetingAsksForPassword(t *testing.T) {
	_, _, _, out := newTestClient(t)

	waitFor(t, "greeting", func() bool {
		return strings.Contains(out.String(), "Please enter your password.")
	})
	assert.Contains(t, out.String(), string(EchoOn()))
	assert.Contains(t, out.String(), "Welcome to Bastion.")
}

func TestLoginAndCommandForwarding(t *testing.T) {
	c, peer, gw, out := newTestClient(t)

	_, err := peer.Write([]byte("secret\r\n"))
	require.NoError(t, err)
	waitFor(t, "login message", func() bool {
		return strings.Contains(out.String(), "You are now logged in.")
	})
	assert.Contains(t, out.String(), string(EchoOff()))
	require.Equal(t, []login{{id: c.ID(), viewOnly: false}}, gw.loginEvents())

	_, err = peer.Write([]byte("look\r\n"))
	require.NoError(t, err)
	waitFor(t, "forwarded command", func() bool { return len(gw.clientLines()) == 1 })
	assert.Equal(t, clientLine{id: c.ID(), line: "look"}, gw.clientLines()[0])
}

func TestViewOnlyLoginRejectsCommands(t *testing.T) {
	c, peer, gw, out := newTestClient(t)

	_, err := peer.Write([]byte("watch\r\n"))
	require.NoError(t, err)
	waitFor(t, "view login message", func() bool {
		return strings.Contains(out.String(), "You are now logged in as view only user.")
	})
	require.Equal(t, []login{{id: c.ID(), viewOnly: true}}, gw.loginEvents())

	_, err = peer.Write([]byte("north\r\n"))
	require.NoError(t, err)
	waitFor(t, "rejection notice", func() bool {
		return strings.Contains(out.String(), "As a view only user, you cannot enter commands")
	})
	assert.Empty(t, gw.clientLines())
}

func TestThreeBadPasswordsBan(t *testing.T) {
	c, peer, gw, out := newTestClient(t)

	for i := 0; i < 3; i++ {
		_, err := peer.Write([]byte("nope\r\n"))
		require.NoError(t, err)
	}
	waitFor(t, "goodbye message", func() bool {
		return strings.Contains(out.String(), "Too many login attempts. Goodbye.")
	})
	assert.Equal(t, 2, strings.Count(out.String(), "Invalid password. Please try again."))
	assert.Equal(t, []string{c.ID()}, gw.bannedClients())
	assert.Empty(t, gw.loginEvents())
	waitFor(t, "disconnect report", func() bool { return len(gw.disconnects()) == 1 })
}

func TestPeerDisconnectReported(t *testing.T) {
	c, peer, gw, _ := newTestClient(t)

	require.NoError(t, peer.Close())
	waitFor(t, "disconnect report", func() bool { return len(gw.disconnects()) == 1 })
	assert.Equal(t, c.ID(), gw.disconnects()[0])
}

func TestDeliverAppendsGoAheadForPrompts(t *testing.T) {
	c, _, _, out := newTestClient(t)

	c.Deliver([]byte("HP:42> "), true)
	waitFor(t, "prompt delivery", func() bool {
		return strings.Contains(out.String(), "HP:42> "+string(GoAhead()))
	})
}

func TestClientTelnetFramesIgnored(t *testing.T) {
	_, peer, gw, out := newTestClient(t)

	_, err := peer.Write(cat([]byte{IAC, DO, ECHO}, []byte("secret\r\n")))
	require.NoError(t, err)
	waitFor(t, "login despite negotiation", func() bool {
		return strings.Contains(out.String(), "You are now logged in.")
	})
	assert.Len(t, gw.loginEvents(), 1)
}
