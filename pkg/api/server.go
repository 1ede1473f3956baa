// Package api exposes the admin HTTP surface: a read-mostly
// introspection API over the bus, the engines and the plugin manager,
// plugin lifecycle control, and the websocket upgrade for the live
// feed. Every read or mutation of dispatcher-confined state hops onto
// the dispatcher, so handlers never touch engine state concurrently.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/bastionmud/bastion/pkg/database"
	"github.com/bastionmud/bastion/pkg/feed"
	"github.com/bastionmud/bastion/pkg/plugin"
	"github.com/bastionmud/bastion/pkg/plugins/core/clients"
	"github.com/bastionmud/bastion/pkg/plugins/core/commands"
	"github.com/bastionmud/bastion/pkg/plugins/core/proxy"
	"github.com/bastionmud/bastion/pkg/plugins/core/settings"
	"github.com/bastionmud/bastion/pkg/plugins/core/timers"
	"github.com/bastionmud/bastion/pkg/plugins/core/triggers"
)

// doTimeout bounds how long a handler waits for the dispatcher.
const doTimeout = 5 * time.Second

// Server is the admin HTTP server.
type Server struct {
	log *slog.Logger
	rt  *plugin.Runtime

	// Optional collaborators, wired with the setters below.
	db        *database.Client
	history   commands.HistoryStore
	hub       *feed.Hub
	wsOrigins []string

	startedAt time.Time
	echo      *echo.Echo
	http      *http.Server
}

// NewServer creates the server and registers its routes.
func NewServer(log *slog.Logger, rt *plugin.Runtime) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		log:       log.With("component", "api"),
		rt:        rt,
		startedAt: time.Now(),
	}
	s.echo = s.routes()
	return s
}

// SetDatabase wires the database client used by the health check.
func (s *Server) SetDatabase(db *database.Client) { s.db = db }

// SetHistory wires the command history store.
func (s *Server) SetHistory(h commands.HistoryStore) { s.history = h }

// SetFeed wires the live feed hub served under /ws.
func (s *Server) SetFeed(hub *feed.Hub) { s.hub = hub }

// SetAllowedWSOrigins restricts websocket upgrades to the given origin
// patterns. With none set, any origin is accepted.
func (s *Server) SetAllowedWSOrigins(origins []string) { s.wsOrigins = origins }

func (s *Server) routes() *echo.Echo {
	e := echo.New()
	e.Use(securityHeaders())

	e.GET("/health", s.healthHandler)
	e.GET("/ws", s.wsHandler)

	e.GET("/api/v1/status", s.statusHandler)
	e.GET("/api/v1/plugins", s.listPluginsHandler)
	e.GET("/api/v1/plugins/:id", s.pluginDetailHandler)
	e.POST("/api/v1/plugins/:id/load", s.pluginLoadHandler)
	e.POST("/api/v1/plugins/:id/unload", s.pluginUnloadHandler)
	e.POST("/api/v1/plugins/:id/reload", s.pluginReloadHandler)
	e.GET("/api/v1/events", s.listEventsHandler)
	e.GET("/api/v1/events/:name", s.eventDetailHandler)
	e.GET("/api/v1/capabilities", s.capabilitiesHandler)
	e.GET("/api/v1/triggers", s.triggersHandler)
	e.GET("/api/v1/timers", s.timersHandler)
	e.GET("/api/v1/settings", s.settingsHandler)
	e.GET("/api/v1/history", s.historyHandler)

	return e
}

// Start serves until the listener fails or Shutdown is called. Blocks.
func (s *Server) Start(addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.echo,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.http.ListenAndServe()
}

// Shutdown stops the HTTP server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// do runs fn on the dispatcher and waits for it, bounded by the request
// context and doTimeout.
func (s *Server) do(c *echo.Context, name string, fn func()) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), doTimeout)
	defer cancel()
	if err := s.rt.Dispatcher.Do(ctx, name, fn); err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "dispatcher unavailable")
	}
	return nil
}

// Engine resolvers. These read manager state, so they run inside do.

func (s *Server) settingsEngine() *settings.Engine {
	if info, ok := s.rt.Manager().Get(settings.ID); ok {
		if e, ok := info.Instance.(*settings.Engine); ok {
			return e
		}
	}
	return nil
}

func (s *Server) triggersEngine() *triggers.Engine {
	if info, ok := s.rt.Manager().Get(triggers.ID); ok {
		if e, ok := info.Instance.(*triggers.Engine); ok {
			return e
		}
	}
	return nil
}

func (s *Server) timersEngine() *timers.Engine {
	if info, ok := s.rt.Manager().Get(timers.ID); ok {
		if e, ok := info.Instance.(*timers.Engine); ok {
			return e
		}
	}
	return nil
}

func (s *Server) clientsEngine() *clients.Engine {
	if info, ok := s.rt.Manager().Get(clients.ID); ok {
		if e, ok := info.Instance.(*clients.Engine); ok {
			return e
		}
	}
	return nil
}

func (s *Server) proxyEngine() *proxy.Engine {
	if info, ok := s.rt.Manager().Get(proxy.ID); ok {
		if e, ok := info.Instance.(*proxy.Engine); ok {
			return e
		}
	}
	return nil
}
