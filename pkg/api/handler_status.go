package api

import (
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/bastionmud/bastion/pkg/version"
)

// --- Response types ---

// StatusResponse is returned by GET /api/v1/status.
type StatusResponse struct {
	Version         string        `json:"version"`
	StartedAt       string        `json:"started_at"`
	UptimeSeconds   int64         `json:"uptime_seconds"`
	Mud             MudStatus     `json:"mud"`
	Clients         ClientsStatus `json:"clients"`
	QueueDepth      int           `json:"queue_depth"`
	Events          int           `json:"events"`
	EventRaises     int           `json:"event_raises"`
	PluginsLoaded   int           `json:"plugins_loaded"`
	FeedConnections int           `json:"feed_connections"`
}

// MudStatus describes the upstream connection.
type MudStatus struct {
	Connected bool   `json:"connected"`
	Address   string `json:"address,omitempty"`
	Since     string `json:"since,omitempty"`
}

// ClientsStatus counts connected proxy clients.
type ClientsStatus struct {
	Total    int `json:"total"`
	LoggedIn int `json:"logged_in"`
	ViewOnly int `json:"view_only"`
}

// --- Handler ---

// statusHandler handles GET /api/v1/status.
func (s *Server) statusHandler(c *echo.Context) error {
	resp := StatusResponse{
		Version:       version.GitCommit,
		StartedAt:     s.startedAt.Format(time.RFC3339),
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
	}

	err := s.do(c, "api status", func() {
		resp.QueueDepth = s.rt.Dispatcher.QueueDepth()

		for _, name := range s.rt.Bus.EventNames() {
			resp.Events++
			if d, ok := s.rt.Bus.Detail(name); ok {
				resp.EventRaises += d.RaiseCount
			}
		}

		for _, info := range s.rt.Manager().List() {
			if info.Loaded() {
				resp.PluginsLoaded++
			}
		}

		if p := s.proxyEngine(); p != nil && p.ConnectedToMud() {
			resp.Mud = MudStatus{
				Connected: true,
				Address:   p.MudAddr(),
				Since:     p.MudSince().Format(time.RFC3339),
			}
		}

		if ce := s.clientsEngine(); ce != nil {
			resp.Clients.Total = ce.Count()
			for _, r := range ce.Recipients() {
				if r.ViewOnly {
					resp.Clients.ViewOnly++
				} else if r.LoggedIn {
					resp.Clients.LoggedIn++
				}
			}
		}
	})
	if err != nil {
		return err
	}

	if s.hub != nil {
		resp.FeedConnections = s.hub.ActiveConnections()
	}

	return c.JSON(http.StatusOK, resp)
}
