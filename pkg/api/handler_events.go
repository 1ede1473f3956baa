package api

import (
	"net/http"
	"sort"
	"strconv"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/bastionmud/bastion/pkg/bus"
)

// defaultInvocationLimit bounds the recent invocations in an event
// detail response unless ?limit= overrides it.
const defaultInvocationLimit = 20

// --- Response types ---

// EventSummary is one row of GET /api/v1/events.
type EventSummary struct {
	Name       string `json:"name"`
	Creator    string `json:"creator,omitempty"`
	RaiseCount int    `json:"raise_count"`
	Callbacks  int    `json:"callbacks"`
}

// EventsResponse is returned by GET /api/v1/events.
type EventsResponse struct {
	Events []EventSummary `json:"events"`
}

// EventDetailResponse is returned by GET /api/v1/events/:name.
type EventDetailResponse struct {
	bus.EventDetail
	Recent []InvocationSummary `json:"recent"`
}

// InvocationSummary is one stored invocation, oldest first.
type InvocationSummary struct {
	Actor   string `json:"actor,omitempty"`
	Started string `json:"started"` // RFC3339Nano
	Passes  int    `json:"passes"`
}

// --- Handlers ---

// listEventsHandler handles GET /api/v1/events.
func (s *Server) listEventsHandler(c *echo.Context) error {
	resp := EventsResponse{Events: []EventSummary{}}

	err := s.do(c, "api events", func() {
		names := s.rt.Bus.EventNames()
		sort.Strings(names)
		for _, name := range names {
			d, ok := s.rt.Bus.Detail(name)
			if !ok {
				continue
			}
			resp.Events = append(resp.Events, EventSummary{
				Name:       d.Name,
				Creator:    d.Creator,
				RaiseCount: d.RaiseCount,
				Callbacks:  len(d.Callbacks),
			})
		}
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, resp)
}

// eventDetailHandler handles GET /api/v1/events/:name.
//
// Optional query parameter: ?limit=N caps the recent invocations.
func (s *Server) eventDetailHandler(c *echo.Context) error {
	name := c.Param("name")
	if name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "event name is required")
	}

	limit := defaultInvocationLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit: must be a non-negative integer")
		}
		limit = n
	}

	var (
		resp  EventDetailResponse
		found bool
	)

	err := s.do(c, "api event detail", func() {
		d, ok := s.rt.Bus.Detail(name)
		if !ok {
			return
		}
		found = true
		resp = EventDetailResponse{EventDetail: d, Recent: []InvocationSummary{}}

		invs := s.rt.Bus.History(name)
		if len(invs) > limit {
			invs = invs[len(invs)-limit:]
		}
		for _, inv := range invs {
			resp.Recent = append(resp.Recent, InvocationSummary{
				Actor:   inv.Actor,
				Started: inv.Started.Format(time.RFC3339Nano),
				Passes:  inv.Passes,
			})
		}
	})
	if err != nil {
		return err
	}
	if !found {
		return echo.NewHTTPError(http.StatusNotFound, "event not found")
	}

	return c.JSON(http.StatusOK, resp)
}
