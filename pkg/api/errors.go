package api

import (
	"errors"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/bastionmud/bastion/pkg/plugin"
)

// mapPluginError maps plugin manager errors to HTTP error responses.
func mapPluginError(err error) *echo.HTTPError {
	if errors.Is(err, plugin.ErrPluginNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "plugin not found")
	}
	if errors.Is(err, plugin.ErrPluginRequired) {
		return echo.NewHTTPError(http.StatusConflict, "plugin is required and cannot be unloaded")
	}
	if errors.Is(err, plugin.ErrPluginNotLoaded) {
		return echo.NewHTTPError(http.StatusConflict, "plugin is not loaded")
	}
	if errors.Is(err, plugin.ErrPluginAlreadyLoaded) {
		return echo.NewHTTPError(http.StatusConflict, "plugin is already loaded")
	}
	if errors.Is(err, plugin.ErrDependencyMissing) {
		return echo.NewHTTPError(http.StatusConflict, "plugin dependency missing")
	}
	if errors.Is(err, plugin.ErrDependencyCycle) {
		return echo.NewHTTPError(http.StatusConflict, "plugin dependency cycle")
	}

	var lcErr *plugin.LifecycleError
	if errors.As(err, &lcErr) {
		return echo.NewHTTPError(http.StatusInternalServerError, lcErr.Error())
	}

	// Unexpected error
	slog.Error("Unexpected plugin manager error", "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}
