package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bastionmud/bastion/pkg/bus"
	"github.com/bastionmud/bastion/pkg/capability"
	"github.com/bastionmud/bastion/pkg/dispatch"
	"github.com/bastionmud/bastion/pkg/pipeline"
	"github.com/bastionmud/bastion/pkg/plugin"
	"github.com/bastionmud/bastion/pkg/plugins/alias"
	"github.com/bastionmud/bastion/pkg/plugins/core/clients"
	"github.com/bastionmud/bastion/pkg/plugins/core/commands"
	"github.com/bastionmud/bastion/pkg/plugins/core/proxy"
	"github.com/bastionmud/bastion/pkg/plugins/core/settings"
	"github.com/bastionmud/bastion/pkg/plugins/core/timers"
	"github.com/bastionmud/bastion/pkg/plugins/core/triggers"
)

// newTestServer boots every engine plus the alias plugin with the
// client listener disabled, attaches a dispatcher and builds a server
// on top.
func newTestServer(t *testing.T) (*Server, *plugin.Runtime, *plugin.Manager) {
	t.Helper()
	log := slog.Default()

	store := settings.NewMemoryStore()
	require.NoError(t, store.Put(context.Background(), proxy.ID, "listenport", "0"))

	rt := &plugin.Runtime{
		Log:   log,
		Bus:   bus.New(log),
		Caps:  capability.NewRegistry(log),
		State: plugin.NewMemoryState(),
	}
	rt.Pipeline = pipeline.New(log, rt.Bus, proxy.NewFormatSource(rt))

	cat := plugin.NewCatalog()
	require.NoError(t, cat.Add(settings.Definition(store)))
	require.NoError(t, cat.Add(commands.Definition(nil)))
	require.NoError(t, cat.Add(clients.Definition()))
	require.NoError(t, cat.Add(triggers.Definition()))
	require.NoError(t, cat.Add(timers.Definition()))
	require.NoError(t, cat.Add(proxy.Definition()))
	require.NoError(t, cat.Add(alias.Definition()))
	m := plugin.NewManager(log, rt, cat)
	require.NoError(t, m.LoadAll())
	t.Cleanup(m.Shutdown)

	d := dispatch.New(log, 0)
	ctx, cancel := context.WithCancel(context.Background())
	d.Start(ctx)
	t.Cleanup(func() {
		d.Stop()
		cancel()
	})
	rt.Dispatcher = d

	return NewServer(log, rt), rt, m
}

// onDispatcher runs fn on the dispatcher and waits for it.
func onDispatcher(t *testing.T, rt *plugin.Runtime, name string, fn func()) {
	t.Helper()
	require.NoError(t, rt.Dispatcher.Do(context.Background(), name, fn))
}

func doGET(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func doPOST(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, nil))
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestSecurityHeadersSet(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := doGET(t, s, "/health")

	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", rec.Header().Get("Referrer-Policy"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestHealthWithoutDatabase(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := doGET(t, s, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	decodeJSON(t, rec, &resp)

	assert.Equal(t, healthStatusHealthy, resp.Status)
	assert.NotEmpty(t, resp.Version)
	// Without a database only the dispatcher is checked.
	require.Contains(t, resp.Checks, "dispatcher")
	assert.Equal(t, healthStatusHealthy, resp.Checks["dispatcher"].Status)
	assert.NotContains(t, resp.Checks, "database")
}

func TestUnknownRouteIs404(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := doGET(t, s, "/api/v1/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
