package api

import (
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/bastionmud/bastion/pkg/capability"
	"github.com/bastionmud/bastion/pkg/plugin"
)

// --- Response types ---

// PluginSummary is one row of GET /api/v1/plugins.
type PluginSummary struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Purpose  string `json:"purpose,omitempty"`
	Author   string `json:"author,omitempty"`
	Version  int    `json:"version"`
	State    string `json:"state"`
	Required bool   `json:"required"`
	Error    string `json:"error,omitempty"`
	LoadedAt string `json:"loaded_at,omitempty"`
}

// PluginsResponse is returned by GET /api/v1/plugins.
type PluginsResponse struct {
	Plugins   []PluginSummary `json:"plugins"`
	LoadOrder []string        `json:"load_order"`
}

// PluginDetailResponse is returned by GET /api/v1/plugins/:id. It adds
// the plugin's live registration footprint to the summary.
type PluginDetailResponse struct {
	PluginSummary
	Dependencies []string            `json:"dependencies,omitempty"`
	Settings     []SettingItem       `json:"settings"`
	Triggers     []TriggerItem       `json:"triggers"`
	Timers       []TimerItem         `json:"timers"`
	Callbacks    []CallbackItem      `json:"callbacks"`
	Capabilities []capability.Detail `json:"capabilities"`
}

// CallbackItem is one bus callback registration.
type CallbackItem struct {
	Event    string `json:"event"`
	Name     string `json:"name"`
	Priority int    `json:"priority"`
	Fired    int    `json:"fired"`
}

// PluginActionResponse is returned by the POST lifecycle endpoints.
type PluginActionResponse struct {
	PluginID string `json:"plugin_id"`
	Action   string `json:"action"`
	Message  string `json:"message"`
}

func toPluginSummary(info plugin.Info) PluginSummary {
	sum := PluginSummary{
		ID:       info.Manifest.ID,
		Name:     info.Manifest.Name,
		Purpose:  info.Manifest.Purpose,
		Author:   info.Manifest.Author,
		Version:  info.Manifest.Version,
		State:    string(info.State),
		Required: info.Manifest.Required,
	}
	if info.Err != nil {
		sum.Error = info.Err.Error()
	}
	if !info.LoadedAt.IsZero() {
		sum.LoadedAt = info.LoadedAt.Format(time.RFC3339)
	}
	return sum
}

// --- Handlers ---

// listPluginsHandler handles GET /api/v1/plugins.
func (s *Server) listPluginsHandler(c *echo.Context) error {
	resp := PluginsResponse{
		Plugins:   []PluginSummary{},
		LoadOrder: []string{},
	}

	err := s.do(c, "api plugins", func() {
		m := s.rt.Manager()
		for _, info := range m.List() {
			resp.Plugins = append(resp.Plugins, toPluginSummary(info))
		}
		resp.LoadOrder = m.LoadOrder()
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, resp)
}

// pluginDetailHandler handles GET /api/v1/plugins/:id.
func (s *Server) pluginDetailHandler(c *echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "plugin id is required")
	}

	var (
		resp  PluginDetailResponse
		found bool
	)

	err := s.do(c, "api plugin detail", func() {
		info, ok := s.rt.Manager().Get(id)
		if !ok {
			return
		}
		found = true

		resp = PluginDetailResponse{
			PluginSummary: toPluginSummary(info),
			Dependencies:  info.Manifest.Dependencies,
			Settings:      []SettingItem{},
			Triggers:      []TriggerItem{},
			Timers:        []TimerItem{},
			Callbacks:     []CallbackItem{},
			Capabilities:  []capability.Detail{},
		}

		if se := s.settingsEngine(); se != nil {
			for _, it := range se.Items(id) {
				if it.Hidden {
					continue
				}
				resp.Settings = append(resp.Settings, toSettingItem(it))
			}
		}
		if te := s.triggersEngine(); te != nil {
			for _, info := range te.List() {
				if info.Owner == id {
					resp.Triggers = append(resp.Triggers, toTriggerItem(info))
				}
			}
		}
		if te := s.timersEngine(); te != nil {
			for _, info := range te.List() {
				if info.Owner == id {
					resp.Timers = append(resp.Timers, toTimerItem(info))
				}
			}
		}
		for _, name := range s.rt.Bus.EventNames() {
			d, ok := s.rt.Bus.Detail(name)
			if !ok {
				continue
			}
			for _, cb := range d.Callbacks {
				if cb.Owner == id {
					resp.Callbacks = append(resp.Callbacks, CallbackItem{
						Event:    name,
						Name:     cb.Name,
						Priority: cb.Priority,
						Fired:    cb.Fired,
					})
				}
			}
		}
		for _, full := range s.rt.Caps.List(id) {
			if d, ok := s.rt.Caps.Detail(full); ok {
				resp.Capabilities = append(resp.Capabilities, d)
			}
		}
	})
	if err != nil {
		return err
	}
	if !found {
		return echo.NewHTTPError(http.StatusNotFound, "plugin not found")
	}

	return c.JSON(http.StatusOK, resp)
}

// pluginLoadHandler handles POST /api/v1/plugins/:id/load.
func (s *Server) pluginLoadHandler(c *echo.Context) error {
	return s.pluginAction(c, "load", func(m *plugin.Manager, id string) error {
		return m.Load(id)
	})
}

// pluginUnloadHandler handles POST /api/v1/plugins/:id/unload.
func (s *Server) pluginUnloadHandler(c *echo.Context) error {
	return s.pluginAction(c, "unload", func(m *plugin.Manager, id string) error {
		return m.Unload(id)
	})
}

// pluginReloadHandler handles POST /api/v1/plugins/:id/reload.
func (s *Server) pluginReloadHandler(c *echo.Context) error {
	return s.pluginAction(c, "reload", func(m *plugin.Manager, id string) error {
		return m.Reload(id)
	})
}

func (s *Server) pluginAction(c *echo.Context, action string, fn func(*plugin.Manager, string) error) error {
	id := c.Param("id")
	if id == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "plugin id is required")
	}

	var opErr error
	if err := s.do(c, "api plugin "+action, func() {
		opErr = fn(s.rt.Manager(), id)
	}); err != nil {
		return err
	}
	if opErr != nil {
		return mapPluginError(opErr)
	}

	s.log.Info("plugin lifecycle action",
		"plugin", id, "action", action, "actor", extractActor(c))

	return c.JSON(http.StatusOK, &PluginActionResponse{
		PluginID: id,
		Action:   action,
		Message:  "plugin " + action + " complete",
	})
}
