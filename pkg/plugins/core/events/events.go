// Package events exposes the event bus to the rest of the proxy: the
// register/raise/introspect endpoints live on the capability registry so
// plugins can drive the bus without importing it, and the list/detail/
// raised commands give clients a window into what is firing.
//
// All entry points run on the dispatcher goroutine.
package events

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/bastionmud/bastion/pkg/bus"
	"github.com/bastionmud/bastion/pkg/capability"
	"github.com/bastionmud/bastion/pkg/plugin"
	"github.com/bastionmud/bastion/pkg/plugins/core/commands"
)

// ID is the event engine's plugin id.
const ID = "plugins.core.events"

// Definition describes the engine to the plugin catalog.
func Definition() plugin.Definition {
	return plugin.Definition{
		Manifest: plugin.Manifest{
			ID:           ID,
			Name:         "Events",
			Purpose:      "expose the event bus to plugins and clients",
			Author:       "bastion",
			Version:      1,
			Required:     true,
			Dependencies: []string{commands.ID},
		},
		Factory: func(rt *plugin.Runtime) plugin.Plugin { return New(rt) },
	}
}

// Engine is the event engine plugin.
type Engine struct {
	plugin.Base

	rt  *plugin.Runtime
	log *slog.Logger
}

// New builds the engine.
func New(rt *plugin.Runtime) *Engine {
	return &Engine{
		rt:  rt,
		log: rt.Log.With("plugin", ID),
	}
}

func (e *Engine) Init(reg *plugin.Registrar) error {
	caps := []struct {
		name string
		fn   capability.Func
		desc string
	}{
		{"{plugin-id}:add.event", e.capAddEvent,
			"define an event: (name, creator, description lines...)"},
		{"{plugin-id}:register.callback", e.capRegister,
			"attach a callback to an event: (event, owner, name, priority, func)"},
		{"{plugin-id}:unregister.callback", e.capUnregister,
			"detach a callback from an event: (event, owner, name)"},
		{"{plugin-id}:raise.event", e.capRaise,
			"raise an event: (name, args map, actor)"},
		{"{plugin-id}:current.record", e.capCurrentRecord,
			"the data record of the innermost active raise, nil outside dispatch"},
		{"{plugin-id}:event.stack", e.capStack,
			"the active raises outermost first"},
	}
	for _, c := range caps {
		if err := reg.Capability(c.name, c.fn, c.desc); err != nil {
			return err
		}
	}
	return nil
}

// Initialize registers the engine's commands once the command engine is
// up.
func (e *Engine) Initialize() error {
	svc := e.rt.Commands()
	if svc == nil {
		e.log.Debug("command engine absent, event commands skipped")
		return nil
	}
	cmds := []plugin.CommandSpec{
		{
			PluginID:  ID,
			Name:      "list",
			ShortHelp: "list events",
			Args: []plugin.CommandArg{
				{Name: "match", Type: "str", Default: "", Help: "substring filter on event names"},
			},
			Handler: e.cmdList,
		},
		{
			PluginID:  ID,
			Name:      "detail",
			ShortHelp: "show everything about one event",
			Args: []plugin.CommandArg{
				{Name: "event", Type: "str", Help: "event name"},
			},
			Handler: e.cmdDetail,
		},
		{
			PluginID:  ID,
			Name:      "raised",
			ShortHelp: "show recent raises of an event",
			Args: []plugin.CommandArg{
				{Name: "event", Type: "str", Help: "event name"},
				{Name: "count", Type: "int", Default: 10, Help: "how many raises to show"},
			},
			Handler: e.cmdRaised,
		},
	}
	for _, spec := range cmds {
		if err := svc.Add(spec); err != nil {
			return fmt.Errorf("register event command %q: %w", spec.Name, err)
		}
	}
	return nil
}

func (e *Engine) capAddEvent(args ...any) (any, error) {
	name, err := capability.Arg[string](args, 0)
	if err != nil {
		return nil, err
	}
	creator, err := capability.Arg[string](args, 1)
	if err != nil {
		return nil, err
	}
	var description []string
	for i := 2; i < len(args); i++ {
		line, aerr := capability.Arg[string](args, i)
		if aerr != nil {
			return nil, aerr
		}
		description = append(description, line)
	}
	return nil, e.rt.Bus.AddEvent(name, creator, description, nil)
}

func (e *Engine) capRegister(args ...any) (any, error) {
	event, err := capability.Arg[string](args, 0)
	if err != nil {
		return nil, err
	}
	owner, err := capability.Arg[string](args, 1)
	if err != nil {
		return nil, err
	}
	name, err := capability.Arg[string](args, 2)
	if err != nil {
		return nil, err
	}
	priority, err := capability.OptionalArg[int](args, 3, 50)
	if err != nil {
		return nil, err
	}
	fn, err := capability.Arg[bus.CallbackFunc](args, 4)
	if err != nil {
		return nil, err
	}
	return e.rt.Bus.RegisterCallback(event, owner, name, priority, fn), nil
}

func (e *Engine) capUnregister(args ...any) (any, error) {
	event, err := capability.Arg[string](args, 0)
	if err != nil {
		return nil, err
	}
	owner, err := capability.Arg[string](args, 1)
	if err != nil {
		return nil, err
	}
	name, err := capability.Arg[string](args, 2)
	if err != nil {
		return nil, err
	}
	return e.rt.Bus.UnregisterCallback(event, owner, name), nil
}

func (e *Engine) capRaise(args ...any) (any, error) {
	name, err := capability.Arg[string](args, 0)
	if err != nil {
		return nil, err
	}
	data, err := capability.OptionalArg[map[string]any](args, 1, nil)
	if err != nil {
		return nil, err
	}
	actor, err := capability.OptionalArg[string](args, 2, ID)
	if err != nil {
		return nil, err
	}
	return e.rt.Bus.Raise(name, data, actor)
}

func (e *Engine) capCurrentRecord(...any) (any, error) {
	return e.rt.Bus.CurrentRecord(), nil
}

func (e *Engine) capStack(...any) (any, error) {
	return e.rt.Bus.Stack(), nil
}

func (e *Engine) cmdList(ctx plugin.CommandContext) (bool, []string, error) {
	match, _ := ctx.Args["match"].(string)

	names := e.rt.Bus.EventNames()
	sort.Strings(names)

	out := []string{
		fmt.Sprintf("%-55s %8s %5s", "Event", "Raised", "Cbs"),
		"@B---------------------------------------------------------------------@w",
	}
	shown := 0
	for _, name := range names {
		if match != "" && !strings.Contains(name, match) {
			continue
		}
		d, ok := e.rt.Bus.Detail(name)
		if !ok {
			continue
		}
		out = append(out, fmt.Sprintf("%-55s %8d %5d", d.Name, d.RaiseCount, len(d.Callbacks)))
		shown++
	}
	if shown == 0 {
		return true, []string{"No events matched"}, nil
	}
	return true, out, nil
}

func (e *Engine) cmdDetail(ctx plugin.CommandContext) (bool, []string, error) {
	name, _ := ctx.Args["event"].(string)
	d, ok := e.rt.Bus.Detail(name)
	if !ok {
		return false, []string{fmt.Sprintf("@R%s@w is not a known event", name)}, nil
	}

	template := "%-13s : %s"
	out := []string{
		fmt.Sprintf(template, "Event", d.Name),
		fmt.Sprintf(template, "Created by", d.Creator),
		fmt.Sprintf(template, "Raised", fmt.Sprintf("%d", d.RaiseCount)),
	}
	for i, line := range d.Description {
		label := ""
		if i == 0 {
			label = "Description"
		}
		out = append(out, fmt.Sprintf(template, label, line))
	}
	if len(d.Args) > 0 {
		keys := make([]string, 0, len(d.Args))
		for k := range d.Args {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out = append(out, "Arguments:")
		for _, k := range keys {
			out = append(out, fmt.Sprintf("  %-11s : %s", k, d.Args[k]))
		}
	}
	if len(d.Callbacks) == 0 {
		out = append(out, "No registered callbacks")
		return true, out, nil
	}
	out = append(out,
		"Callbacks:",
		fmt.Sprintf("  %4s %-35s %-20s %6s", "Prio", "Owner", "Callback", "Fired"),
	)
	for _, cb := range d.Callbacks {
		out = append(out, fmt.Sprintf("  %4d %-35s %-20s %6d",
			cb.Priority, cb.Owner, cb.Name, cb.Fired))
	}
	return true, out, nil
}

func (e *Engine) cmdRaised(ctx plugin.CommandContext) (bool, []string, error) {
	name, _ := ctx.Args["event"].(string)
	count, _ := ctx.Args["count"].(int)
	if count <= 0 {
		count = 10
	}
	if _, ok := e.rt.Bus.Detail(name); !ok {
		return false, []string{fmt.Sprintf("@R%s@w is not a known event", name)}, nil
	}
	history := e.rt.Bus.History(name)
	if len(history) == 0 {
		return true, []string{fmt.Sprintf("%s has not been raised", name)}, nil
	}
	if len(history) > count {
		history = history[len(history)-count:]
	}
	out := []string{
		fmt.Sprintf("Last %d raises of %s, oldest first:", len(history), name),
		fmt.Sprintf("  %-25s %-35s %6s", "When", "Actor", "Passes"),
	}
	for _, inv := range history {
		out = append(out, fmt.Sprintf("  %-25s %-35s %6d",
			inv.Started.Format(time.RFC3339), inv.Actor, inv.Passes))
	}
	return true, out, nil
}
