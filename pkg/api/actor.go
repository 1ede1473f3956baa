package api

import (
	echo "github.com/labstack/echo/v5"
)

// extractActor extracts the acting identity from proxy headers.
// Priority: X-Forwarded-User (oauth2-proxy) > X-Remote-User
// (kube-rbac-proxy) > "api". The actor is logged with every lifecycle
// mutation.
func extractActor(c *echo.Context) string {
	if user := c.Request().Header.Get("X-Forwarded-User"); user != "" {
		return user
	}
	if user := c.Request().Header.Get("X-Remote-User"); user != "" {
		return user
	}
	return "api"
}
