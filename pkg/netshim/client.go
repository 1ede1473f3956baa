package netshim

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	outQueueSize  = 256
	drainGrace    = time.Second
	maxLoginTries = 3
)

type outItem struct {
	data   []byte
	prompt bool
}

// ClientConn is one accepted telnet session. Until the password check
// passes it talks to the user directly; afterwards every input line is
// handed to the Gateway and output arrives through Deliver.
type ClientConn struct {
	id   string
	addr string
	port string

	log  *slog.Logger
	gw   Gateway
	conn net.Conn

	out    chan outItem
	closed chan struct{}
	once   sync.Once

	mu       sync.Mutex
	loggedIn bool
	viewOnly bool
	attempts int
}

// NewClientConn wraps an accepted connection. Start must be called to
// begin the session.
func NewClientConn(log *slog.Logger, gw Gateway, conn net.Conn) *ClientConn {
	id := uuid.NewString()
	addr, port := splitHostPort(conn.RemoteAddr().String())
	return &ClientConn{
		id:     id,
		addr:   addr,
		port:   port,
		log:    log.With("component", "client", "client_uuid", id),
		gw:     gw,
		conn:   conn,
		out:    make(chan outItem, outQueueSize),
		closed: make(chan struct{}),
	}
}

func (c *ClientConn) ID() string   { return c.id }
func (c *ClientConn) Addr() string { return c.addr }
func (c *ClientConn) Port() string { return c.port }

// Start greets the client and spawns the session goroutines. The
// connection closes when ctx is cancelled, the peer disconnects, or
// Close is called.
func (c *ClientConn) Start(ctx context.Context) {
	c.mu.Lock()
	c.attempts = 1
	c.mu.Unlock()

	c.Deliver(EchoOn(), false)
	c.Deliver([]byte("Welcome to Bastion.\r\n"), false)
	c.Deliver([]byte("Please enter your password.\r\n"), false)

	go c.watch(ctx)
	go c.readLoop()
	go c.writeLoop()
}

// Deliver queues bytes for the client, adding a go-ahead when prompt is
// set. A full queue drops the payload rather than stalling the caller.
func (c *ClientConn) Deliver(data []byte, prompt bool) {
	select {
	case <-c.closed:
		return
	default:
	}
	select {
	case c.out <- outItem{data: data, prompt: prompt}:
	default:
		c.log.Warn("client send queue full, dropping", "bytes", len(data))
	}
}

// Close signals the session to end. The write loop drains briefly and
// then closes the socket; a write already in flight is cut off by the
// deadline.
func (c *ClientConn) Close() {
	c.once.Do(func() {
		close(c.closed)
		_ = c.conn.SetWriteDeadline(time.Now().Add(drainGrace))
	})
}

func (c *ClientConn) watch(ctx context.Context) {
	select {
	case <-ctx.Done():
		c.Close()
	case <-c.closed:
	}
}

func (c *ClientConn) readLoop() {
	defer func() {
		c.Close()
		c.gw.ClientDisconnected(c.id)
	}()

	var fr Framer
	buf := make([]byte, 4096)
	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			for _, frame := range fr.Feed(buf[:n]) {
				if frame.Telnet || frame.Prompt {
					c.log.Debug("ignoring client telnet frame", "bytes", len(frame.Data))
					continue
				}
				c.handleLine(string(frame.Data))
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				c.log.Debug("client read ended", "error", err)
			}
			return
		}
	}
}

func (c *ClientConn) handleLine(line string) {
	c.mu.Lock()
	logged, view := c.loggedIn, c.viewOnly
	c.mu.Unlock()

	switch {
	case !logged:
		c.handleLogin(strings.TrimSpace(line))
	case view:
		c.Deliver([]byte("As a view only user, you cannot enter commands\r\n"), false)
	default:
		c.gw.ClientLine(c.id, line)
	}
}

func (c *ClientConn) handleLogin(input string) {
	pw, viewPW := c.gw.Passwords()
	switch {
	case pw != "" && input == pw:
		c.setLoggedIn(false)
		c.Deliver(EchoOff(), false)
		c.Deliver([]byte("You are now logged in.\r\n"), false)
		c.gw.ClientLoggedIn(c.id, false)
	case viewPW != "" && input == viewPW:
		c.setLoggedIn(true)
		c.Deliver(EchoOff(), false)
		c.Deliver([]byte("You are now logged in as view only user.\r\n"), false)
		c.gw.ClientLoggedIn(c.id, true)
	default:
		c.mu.Lock()
		tries := c.attempts
		c.attempts++
		c.mu.Unlock()
		if tries < maxLoginTries {
			c.Deliver([]byte("Invalid password. Please try again.\r\n"), false)
			return
		}
		c.log.Warn("too many login attempts", "addr", c.addr)
		c.Deliver([]byte("Too many login attempts. Goodbye.\r\n"), false)
		c.gw.ClientBanned(c.id)
		c.Close()
	}
}

func (c *ClientConn) setLoggedIn(viewOnly bool) {
	c.mu.Lock()
	c.loggedIn = true
	c.viewOnly = viewOnly
	c.mu.Unlock()
}

func (c *ClientConn) writeLoop() {
	defer func() { _ = c.conn.Close() }()
	for {
		select {
		case <-c.closed:
			c.drain()
			return
		case item := <-c.out:
			if !c.write(item) {
				return
			}
		}
	}
}

// drain flushes queued output for up to drainGrace so goodbye messages
// reach the peer before the socket closes.
func (c *ClientConn) drain() {
	deadline := time.Now().Add(drainGrace)
	_ = c.conn.SetWriteDeadline(deadline)
	for time.Now().Before(deadline) {
		select {
		case item := <-c.out:
			if !c.write(item) {
				return
			}
		default:
			return
		}
	}
}

func (c *ClientConn) write(item outItem) bool {
	if _, err := c.conn.Write(item.data); err != nil {
		c.log.Debug("client write failed", "error", err)
		return false
	}
	if item.prompt {
		if _, err := c.conn.Write(GoAhead()); err != nil {
			return false
		}
	}
	return true
}

func splitHostPort(s string) (host, port string) {
	host, port, err := net.SplitHostPort(s)
	if err != nil {
		return s, ""
	}
	return host, port
}
