package settings

import (
	"log/slog"
	"strconv"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/bastionmud/bastion/pkg/bus"
	"github.com/bastionmud/bastion/pkg/capability"
	"github.com/bastionmud/bastion/pkg/plugin"
)

// lawEngine builds a loaded engine without the testing.T plumbing, so
// the property closures can construct one per case.
func lawEngine() (*Engine, error) {
	rt := &plugin.Runtime{
		Log:   slog.Default(),
		Bus:   bus.New(slog.Default()),
		Caps:  capability.NewRegistry(slog.Default()),
		State: plugin.NewMemoryState(),
	}
	cat := plugin.NewCatalog()
	if err := cat.Add(Definition(NewMemoryStore())); err != nil {
		return nil, err
	}
	m := plugin.NewManager(slog.Default(), rt, cat)
	if err := m.LoadAll(); err != nil {
		return nil, err
	}
	info, _ := m.Get(ID)
	return info.Instance.(*Engine), nil
}

func TestCoercionLaws(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("int settings round-trip through their string form", prop.ForAll(
		func(def, val int) bool {
			e, err := lawEngine()
			if err != nil {
				return false
			}
			if err := e.Add(plugin.SettingSpec{PluginID: "p.law", Name: "n", Type: "int", Default: def}); err != nil {
				return false
			}
			if err := e.Set("p.law", "n", strconv.Itoa(val), "p.law"); err != nil {
				return false
			}
			got, err := e.Get("p.law", "n")
			return err == nil && got == val
		},
		gen.Int(),
		gen.Int(),
	))

	properties.Property("the default sentinel restores the declared default", prop.ForAll(
		func(def, val string) bool {
			if val == DefaultSentinel {
				return true
			}
			e, err := lawEngine()
			if err != nil {
				return false
			}
			if err := e.Add(plugin.SettingSpec{PluginID: "p.law", Name: "s", Type: "str", Default: def}); err != nil {
				return false
			}
			if err := e.Set("p.law", "s", val, "p.law"); err != nil {
				return false
			}
			if err := e.Set("p.law", "s", DefaultSentinel, "p.law"); err != nil {
				return false
			}
			got, err := e.Get("p.law", "s")
			return err == nil && got == def
		},
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.Property("bool settings only ever hold true or false", prop.ForAll(
		func(word string) bool {
			e, err := lawEngine()
			if err != nil {
				return false
			}
			if err := e.Add(plugin.SettingSpec{PluginID: "p.law", Name: "b", Type: "bool", Default: false}); err != nil {
				return false
			}
			_ = e.Set("p.law", "b", word, "p.law")
			got, err := e.Get("p.law", "b")
			if err != nil {
				return false
			}
			_, ok := got.(bool)
			return ok
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
