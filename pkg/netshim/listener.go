package netshim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
)

// Listener accepts proxy clients. Banned addresses are refused before a
// session is created; everyone else becomes a ClientConn announced
// through the Gateway.
type Listener struct {
	log    *slog.Logger
	gw     Gateway
	ln     net.Listener
	closed chan struct{}
	once   sync.Once
}

// Listen binds addr. Start must be called to begin accepting.
func Listen(log *slog.Logger, gw Gateway, addr string) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	return &Listener{
		log:    log.With("component", "listener"),
		gw:     gw,
		ln:     ln,
		closed: make(chan struct{}),
	}, nil
}

// Addr returns the bound address, useful when listening on port 0.
func (l *Listener) Addr() string { return l.ln.Addr().String() }

// Start spawns the accept loop. Accepting stops when ctx is cancelled
// or Close is called; live sessions are not touched.
func (l *Listener) Start(ctx context.Context) {
	go l.watch(ctx)
	go l.acceptLoop(ctx)
}

// Close stops accepting new connections.
func (l *Listener) Close() {
	l.once.Do(func() {
		close(l.closed)
		_ = l.ln.Close()
	})
}

func (l *Listener) watch(ctx context.Context) {
	select {
	case <-ctx.Done():
		l.Close()
	case <-l.closed:
	}
}

func (l *Listener) acceptLoop(ctx context.Context) {
	l.log.Info("listening for clients", "addr", l.Addr())
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				l.log.Error("accept failed", "error", err)
			}
			return
		}
		host, _ := splitHostPort(conn.RemoteAddr().String())
		if l.gw.Banned(host) {
			l.log.Warn("refused banned address", "addr", host)
			_, _ = conn.Write([]byte("You are banned from this proxy. Goodbye.\r\n"))
			_ = conn.Close()
			continue
		}
		c := NewClientConn(l.log, l.gw, conn)
		l.gw.ClientConnected(c)
		c.Start(ctx)
	}
}
