package netshim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bastionmud/bastion/pkg/records"
)

// MudConn is the single upstream connection. It feeds complete lines
// and telnet frames to the Gateway and implements the pipeline sink for
// outbound data.
type MudConn struct {
	addr string
	log  *slog.Logger
	gw   Gateway
	conn net.Conn

	out       chan []byte
	closed    chan struct{}
	once      sync.Once
	started   atomic.Bool
	connected atomic.Bool
}

// DialMud connects to the mud at addr. Start must be called on the
// returned connection. Dialing honours ctx for cancellation and
// deadline.
func DialMud(ctx context.Context, log *slog.Logger, gw Gateway, addr string) (*MudConn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial mud %s: %w", addr, err)
	}
	return newMudConn(log, gw, conn, addr), nil
}

func newMudConn(log *slog.Logger, gw Gateway, conn net.Conn, addr string) *MudConn {
	m := &MudConn{
		addr:   addr,
		log:    log.With("component", "mud", "addr", addr),
		gw:     gw,
		conn:   conn,
		out:    make(chan []byte, outQueueSize),
		closed: make(chan struct{}),
	}
	m.connected.Store(true)
	return m
}

// Addr returns the address the connection was dialed with.
func (m *MudConn) Addr() string { return m.addr }

// Start spawns the read and write loops.
func (m *MudConn) Start(ctx context.Context) {
	m.started.Store(true)
	go m.watch(ctx)
	go m.readLoop()
	go m.writeLoop()
}

// Connected reports whether the upstream socket is still usable.
func (m *MudConn) Connected() bool { return m.connected.Load() }

// Deliver queues bytes for the mud. It reports false once the
// connection is down or the queue is full.
func (m *MudConn) Deliver(data []byte) bool {
	select {
	case <-m.closed:
		return false
	default:
	}
	select {
	case m.out <- data:
		return true
	default:
		m.log.Warn("mud send queue full, dropping", "bytes", len(data))
		return false
	}
}

// Close tears the connection down. Safe to call more than once. The
// write loop owns the socket once Start has run; before that the
// socket is closed here.
func (m *MudConn) Close() {
	m.once.Do(func() {
		m.connected.Store(false)
		close(m.closed)
		if m.started.Load() {
			_ = m.conn.SetWriteDeadline(time.Now().Add(drainGrace))
		} else {
			_ = m.conn.Close()
		}
	})
}

func (m *MudConn) watch(ctx context.Context) {
	select {
	case <-ctx.Done():
		m.Close()
	case <-m.closed:
	}
}

func (m *MudConn) readLoop() {
	var readErr error
	var fr Framer
	defer func() {
		m.Close()
		if t := fr.Tail(); len(t) > 0 {
			m.gw.MudLine(records.NewLine(string(t), records.OriginMud))
		}
		m.gw.MudDisconnected(readErr)
	}()

	buf := make([]byte, 4096)
	for {
		n, err := m.conn.Read(buf)
		if n > 0 {
			for _, frame := range fr.Feed(buf[:n]) {
				m.handleFrame(frame)
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				readErr = err
			}
			return
		}
	}
}

// handleFrame turns one frame into a pipeline line. Prompt frames carry
// the partial line a go-ahead flushed; the client shim re-appends the
// go-ahead on delivery. Bare keepalive go-aheads are dropped.
func (m *MudConn) handleFrame(frame Frame) {
	switch {
	case frame.Prompt:
		if len(frame.Data) == 0 {
			return
		}
		l := records.NewLine(string(frame.Data), records.OriginMud)
		l.SetPrompt(true, "mud")
		m.gw.MudLine(l)
	case frame.Telnet:
		m.gw.MudLine(records.NewTelnetLine(frame.Data, records.OriginMud))
	default:
		m.gw.MudLine(records.NewLine(string(frame.Data), records.OriginMud))
	}
}

func (m *MudConn) writeLoop() {
	defer func() { _ = m.conn.Close() }()
	for {
		select {
		case <-m.closed:
			m.drain()
			return
		case data := <-m.out:
			if !m.write(data) {
				return
			}
		}
	}
}

func (m *MudConn) drain() {
	deadline := time.Now().Add(drainGrace)
	_ = m.conn.SetWriteDeadline(deadline)
	for time.Now().Before(deadline) {
		select {
		case data := <-m.out:
			if !m.write(data) {
				return
			}
		default:
			return
		}
	}
}

func (m *MudConn) write(data []byte) bool {
	if _, err := m.conn.Write(data); err != nil {
		m.log.Debug("mud write failed", "error", err)
		return false
	}
	return true
}
