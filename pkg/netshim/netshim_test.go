package netshim

import (
	"bytes"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/bastionmud/bastion/pkg/records"
)

type clientLine struct {
	id   string
	line string
}

type login struct {
	id       string
	viewOnly bool
}

// fakeGateway records every crossing out of the shims.
type fakeGateway struct {
	mu           sync.Mutex
	pw           string
	viewPW       string
	bannedAddrs  map[string]bool
	connected    []*ClientConn
	logins       []login
	bannedIDs    []string
	disconnected []string
	lines        []clientLine
	mudLines     []*records.Line
	mudDown      int
	mudErr       error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{pw: "secret", viewPW: "watch", bannedAddrs: map[string]bool{}}
}

func (g *fakeGateway) Banned(addr string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.bannedAddrs[addr]
}

func (g *fakeGateway) Passwords() (string, string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pw, g.viewPW
}

func (g *fakeGateway) ClientConnected(c *ClientConn) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.connected = append(g.connected, c)
}

func (g *fakeGateway) ClientLoggedIn(id string, viewOnly bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.logins = append(g.logins, login{id: id, viewOnly: viewOnly})
}

func (g *fakeGateway) ClientBanned(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.bannedIDs = append(g.bannedIDs, id)
}

func (g *fakeGateway) ClientDisconnected(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.disconnected = append(g.disconnected, id)
}

func (g *fakeGateway) ClientLine(id, line string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lines = append(g.lines, clientLine{id: id, line: line})
}

func (g *fakeGateway) MudDisconnected(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mudDown++
	g.mudErr = err
}

func (g *fakeGateway) MudLine(l *records.Line) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mudLines = append(g.mudLines, l)
}

func (g *fakeGateway) connectedClients() []*ClientConn {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]*ClientConn(nil), g.connected...)
}

func (g *fakeGateway) loginEvents() []login {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]login(nil), g.logins...)
}

func (g *fakeGateway) bannedClients() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.bannedIDs...)
}

func (g *fakeGateway) disconnects() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.disconnected...)
}

func (g *fakeGateway) clientLines() []clientLine {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]clientLine(nil), g.lines...)
}

func (g *fakeGateway) lineRecords() []*records.Line {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]*records.Line(nil), g.mudLines...)
}

func (g *fakeGateway) mudDrops() (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.mudDown, g.mudErr
}

// pipeReader drains one side of a connection into a buffer so shim
// writes never block.
type pipeReader struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func drainConn(c net.Conn) *pipeReader {
	r := &pipeReader{}
	go func() {
		b := make([]byte, 1024)
		for {
			n, err := c.Read(b)
			if n > 0 {
				r.mu.Lock()
				r.buf.Write(b[:n])
				r.mu.Unlock()
			}
			if err != nil {
				return
			}
		}
	}()
	return r
}

func (r *pipeReader) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.String()
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
