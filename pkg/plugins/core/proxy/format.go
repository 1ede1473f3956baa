package proxy

import (
	"github.com/bastionmud/bastion/pkg/config"
	"github.com/bastionmud/bastion/pkg/plugin"
	"github.com/bastionmud/bastion/pkg/records"
)

// Presentation defaults, used until the engine's settings are declared.
const (
	defaultPreamble      = "#BP"
	defaultPreambleColor = "@C"
	defaultErrorColor    = "@R"
	defaultSeparator     = "|"
)

// seeds are the first-run defaults of the engine's settings. The
// bootstrap config overrides them; a persisted setting value still wins
// over both.
type seeds struct {
	mudHost    string
	mudPort    int
	listenPort int
	preamble   string
	separator  string
	password   string
	viewPW     string
}

func (s *seeds) apply(cfg *config.Config) {
	if cfg == nil {
		return
	}
	if cfg.Mud != nil {
		if cfg.Mud.Host != "" {
			s.mudHost = cfg.Mud.Host
		}
		if cfg.Mud.Port != 0 {
			s.mudPort = cfg.Mud.Port
		}
	}
	if cfg.Listen != nil && cfg.Listen.Port != 0 {
		s.listenPort = cfg.Listen.Port
	}
	if cfg.Proxy != nil {
		if cfg.Proxy.Preamble != "" {
			s.preamble = cfg.Proxy.Preamble
		}
		if cfg.Proxy.CommandSeparator != "" {
			s.separator = cfg.Proxy.CommandSeparator
		}
		if cfg.Proxy.Password != "" {
			s.password = cfg.Proxy.Password
		}
		if cfg.Proxy.ViewPassword != "" {
			s.viewPW = cfg.Proxy.ViewPassword
		}
	}
}

// FormatSource feeds the pipeline the live presentation settings. It
// reads through the settings service on every call, so changes take
// effect on the next formatted line, and falls back to the defaults
// while the proxy engine is not loaded.
type FormatSource struct {
	rt *plugin.Runtime
}

// NewFormatSource builds the provider the pipeline is constructed with.
func NewFormatSource(rt *plugin.Runtime) *FormatSource {
	return &FormatSource{rt: rt}
}

func (f *FormatSource) FormatSpec() records.FormatSpec {
	return records.FormatSpec{
		Preamble:      f.str(settingPreamble, defaultPreamble),
		PreambleColor: f.str(settingPreambleColor, defaultPreambleColor),
		ErrorColor:    f.str(settingErrorColor, defaultErrorColor),
		Separator:     f.str(settingCmdSep, defaultSeparator),
	}
}

func (f *FormatSource) Separator() string {
	return f.str(settingCmdSep, defaultSeparator)
}

func (f *FormatSource) str(name, fallback string) string {
	svc := f.rt.Settings()
	if svc == nil {
		return fallback
	}
	v, err := svc.Get(ID, name)
	if err != nil {
		return fallback
	}
	s, ok := v.(string)
	if !ok {
		return fallback
	}
	return s
}
