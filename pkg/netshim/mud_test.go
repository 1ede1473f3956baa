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

func newTestMud(t *testing.T) (*MudConn, net.Conn, *fakeGateway, *pipeReader) {
	t.Helper()
	gw := newFakeGateway()
	shim, peer := net.Pipe()
	m := newMudConn(slog.Default(), gw, shim, "mud.example.com:4000")
	out := drainConn(peer)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	m.Start(ctx)
	t.Cleanup(m.Close)
	return m, peer, gw, out
}

func TestMudLinesReachGateway(t *testing.T) {
	m, peer, gw, _ := newTestMud(t)
	require.True(t, m.Connected())

	_, err := peer.Write([]byte("The town crier shouts.\r\nA beggar wanders by.\r\n"))
	require.NoError(t, err)
	waitFor(t, "mud lines", func() bool { return len(gw.lineRecords()) == 2 })

	lines := gw.lineRecords()
	assert.Equal(t, "The town crier shouts.", lines[0].Text())
	assert.True(t, lines[0].FromMud())
	assert.True(t, lines[0].IsIO())
	assert.Equal(t, "A beggar wanders by.", lines[1].Text())
}

func TestMudTelnetAndPromptFrames(t *testing.T) {
	_, peer, gw, _ := newTestMud(t)

	payload := cat([]byte{IAC, WILL, 201}, []byte("HP:10> "), []byte{IAC, GA})
	_, err := peer.Write(payload)
	require.NoError(t, err)
	waitFor(t, "frames", func() bool { return len(gw.lineRecords()) == 2 })

	lines := gw.lineRecords()
	require.True(t, lines[0].IsTelnet())
	assert.Equal(t, []byte{IAC, WILL, 201}, lines[0].Payload())
	require.True(t, lines[1].IsIO())
	assert.True(t, lines[1].IsPrompt())
	assert.Equal(t, "HP:10> ", lines[1].Text())
}

func TestMudBareGoAheadDropped(t *testing.T) {
	_, peer, gw, _ := newTestMud(t)

	_, err := peer.Write(cat([]byte("line\r\n"), []byte{IAC, GA}, []byte("next\r\n")))
	require.NoError(t, err)
	waitFor(t, "lines", func() bool { return len(gw.lineRecords()) == 2 })

	lines := gw.lineRecords()
	assert.Equal(t, "line", lines[0].Text())
	assert.Equal(t, "next", lines[1].Text())
	assert.False(t, lines[0].IsPrompt())
}

func TestMudDeliverWritesBytes(t *testing.T) {
	m, _, _, out := newTestMud(t)

	require.True(t, m.Deliver([]byte("say hello\n")))
	waitFor(t, "outbound write", func() bool {
		return strings.Contains(out.String(), "say hello\n")
	})
}

func TestMudDisconnectFlushesTail(t *testing.T) {
	m, peer, gw, _ := newTestMud(t)

	_, err := peer.Write([]byte("partial prompt"))
	require.NoError(t, err)
	require.NoError(t, peer.Close())

	waitFor(t, "disconnect report", func() bool {
		drops, _ := gw.mudDrops()
		return drops == 1
	})
	_, derr := gw.mudDrops()
	assert.NoError(t, derr)

	lines := gw.lineRecords()
	require.Len(t, lines, 1)
	assert.Equal(t, "partial prompt", lines[0].Text())
	assert.False(t, m.Connected())
	assert.False(t, m.Deliver([]byte("late")))
}
