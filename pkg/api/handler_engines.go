package api

import (
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/bastionmud/bastion/pkg/capability"
	"github.com/bastionmud/bastion/pkg/plugins/core/settings"
	"github.com/bastionmud/bastion/pkg/plugins/core/timers"
	"github.com/bastionmud/bastion/pkg/plugins/core/triggers"
)

// --- Response types ---

// CapabilitiesResponse is returned by GET /api/v1/capabilities.
type CapabilitiesResponse struct {
	Capabilities []capability.Detail `json:"capabilities"`
}

// TriggerItem is one row of GET /api/v1/triggers.
type TriggerItem struct {
	ID         string `json:"id"`
	Owner      string `json:"owner"`
	Name       string `json:"name"`
	Pattern    string `json:"pattern"`
	Event      string `json:"event,omitempty"`
	Group      string `json:"group,omitempty"`
	Priority   int    `json:"priority"`
	Enabled    bool   `json:"enabled"`
	MatchColor bool   `json:"match_color,omitempty"`
	Hits       int    `json:"hits"`
}

// TriggersResponse is returned by GET /api/v1/triggers.
type TriggersResponse struct {
	Triggers []TriggerItem `json:"triggers"`
}

// TimerItem is one row of GET /api/v1/timers.
type TimerItem struct {
	Owner     string `json:"owner"`
	Name      string `json:"name"`
	Seconds   int    `json:"seconds,omitempty"`
	TimeOfDay string `json:"time_of_day,omitempty"`
	OneShot   bool   `json:"one_shot,omitempty"`
	Enabled   bool   `json:"enabled"`
	Fires     int    `json:"fires"`
	LastFire  string `json:"last_fire,omitempty"`
	NextFire  string `json:"next_fire,omitempty"`
}

// TimersResponse is returned by GET /api/v1/timers.
type TimersResponse struct {
	Timers []TimerItem `json:"timers"`
}

// SettingItem is one row of GET /api/v1/settings. Hidden settings are
// never included.
type SettingItem struct {
	PluginID string `json:"plugin_id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Value    any    `json:"value"`
	Default  any    `json:"default"`
	Help     string `json:"help,omitempty"`
	ReadOnly bool   `json:"read_only,omitempty"`
}

// SettingsResponse is returned by GET /api/v1/settings.
type SettingsResponse struct {
	Settings []SettingItem `json:"settings"`
}

func toTriggerItem(info triggers.Info) TriggerItem {
	return TriggerItem{
		ID:         info.ID,
		Owner:      info.Owner,
		Name:       info.Name,
		Pattern:    info.Pattern,
		Event:      info.Event,
		Group:      info.Group,
		Priority:   info.Priority,
		Enabled:    info.Enabled,
		MatchColor: info.MatchColor,
		Hits:       info.Hits,
	}
}

func toTimerItem(info timers.Info) TimerItem {
	it := TimerItem{
		Owner:     info.Owner,
		Name:      info.Name,
		Seconds:   info.Seconds,
		TimeOfDay: info.TimeOfDay,
		OneShot:   info.OneShot,
		Enabled:   info.Enabled,
		Fires:     info.Fires,
	}
	if !info.LastFire.IsZero() {
		it.LastFire = info.LastFire.Format(time.RFC3339)
	}
	if !info.NextFire.IsZero() {
		it.NextFire = info.NextFire.Format(time.RFC3339)
	}
	return it
}

func toSettingItem(it settings.Item) SettingItem {
	return SettingItem{
		PluginID: it.PluginID,
		Name:     it.Name,
		Type:     it.Type,
		Value:    it.Value,
		Default:  it.Default,
		Help:     it.Help,
		ReadOnly: it.ReadOnly,
	}
}

// --- Handlers ---

// capabilitiesHandler handles GET /api/v1/capabilities.
func (s *Server) capabilitiesHandler(c *echo.Context) error {
	resp := CapabilitiesResponse{Capabilities: []capability.Detail{}}

	err := s.do(c, "api capabilities", func() {
		for _, full := range s.rt.Caps.List("") {
			if d, ok := s.rt.Caps.Detail(full); ok {
				resp.Capabilities = append(resp.Capabilities, d)
			}
		}
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, resp)
}

// triggersHandler handles GET /api/v1/triggers.
func (s *Server) triggersHandler(c *echo.Context) error {
	resp := TriggersResponse{Triggers: []TriggerItem{}}

	err := s.do(c, "api triggers", func() {
		te := s.triggersEngine()
		if te == nil {
			return
		}
		for _, info := range te.List() {
			resp.Triggers = append(resp.Triggers, toTriggerItem(info))
		}
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, resp)
}

// timersHandler handles GET /api/v1/timers.
func (s *Server) timersHandler(c *echo.Context) error {
	resp := TimersResponse{Timers: []TimerItem{}}

	err := s.do(c, "api timers", func() {
		te := s.timersEngine()
		if te == nil {
			return
		}
		for _, info := range te.List() {
			resp.Timers = append(resp.Timers, toTimerItem(info))
		}
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, resp)
}

// settingsHandler handles GET /api/v1/settings.
//
// Optional query parameter: ?plugin=X restricts the table to one
// plugin's settings.
func (s *Server) settingsHandler(c *echo.Context) error {
	pluginID := c.QueryParam("plugin")
	resp := SettingsResponse{Settings: []SettingItem{}}

	err := s.do(c, "api settings", func() {
		se := s.settingsEngine()
		if se == nil {
			return
		}
		ids := []string{pluginID}
		if pluginID == "" {
			ids = se.Plugins()
		}
		for _, id := range ids {
			for _, it := range se.Items(id) {
				if it.Hidden {
					continue
				}
				resp.Settings = append(resp.Settings, toSettingItem(it))
			}
		}
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, resp)
}
