package api

import (
	"net/http"
	"strconv"

	echo "github.com/labstack/echo/v5"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// HistoryResponse is returned by GET /api/v1/history.
type HistoryResponse struct {
	Commands []string `json:"commands"`
}

// historyHandler handles GET /api/v1/history.
//
// Optional query parameter: ?limit=N (default 50, capped at 500).
// The store may be the dispatcher-confined in-memory ring, so the read
// runs on the dispatcher like everything else.
func (s *Server) historyHandler(c *echo.Context) error {
	if s.history == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "command history not configured")
	}

	limit := defaultHistoryLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit: must be a positive integer")
		}
		limit = n
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	resp := HistoryResponse{Commands: []string{}}

	var readErr error
	if err := s.do(c, "api history", func() {
		cmds, err := s.history.List(c.Request().Context(), limit)
		if err != nil {
			readErr = err
			return
		}
		resp.Commands = cmds
	}); err != nil {
		return err
	}
	if readErr != nil {
		s.log.Error("command history read failed", "error", readErr)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	return c.JSON(http.StatusOK, resp)
}
