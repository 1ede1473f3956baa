package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/bastionmud/bastion/pkg/plugin"
)

// registerBuiltins adds the engine's own commands. The rerun command
// stays out of history so it can never rerun itself.
func (e *Engine) registerBuiltins() error {
	specs := []plugin.CommandSpec{
		{
			PluginID:  ID,
			Name:      "list",
			ShortHelp: "list plugins with commands, or one plugin's commands",
			Args: []plugin.CommandArg{
				{Name: "plugin", Type: "str", Default: "", Help: "plugin to list commands for"},
			},
			Handler: e.cmdList,
		},
		{
			PluginID:  ID,
			Name:      "help",
			ShortHelp: "show the full help for a command",
			Args: []plugin.CommandArg{
				{Name: "plugin", Type: "str", Default: "", Help: "plugin the command belongs to"},
				{Name: "command", Type: "str", Default: "", Help: "command to describe"},
			},
			Handler: e.cmdHelp,
		},
		{
			PluginID:  ID,
			Name:      "history",
			ShortHelp: "show or clear the command history",
			Args: []plugin.CommandArg{
				{Name: "action", Type: "str", Default: "show",
					Choices: []string{"show", "clear"}, Help: "what to do with the history"},
			},
			Handler: e.cmdHistory,
		},
		{
			PluginID:           ID,
			Name:               "!",
			ShortHelp:          "rerun a command from history",
			ExcludeFromHistory: true,
			Args: []plugin.CommandArg{
				{Name: "number", Type: "int", Default: -1,
					Help: "history entry to rerun, negative counts from the end"},
			},
			Handler: e.cmdRerun,
		},
	}
	for _, spec := range specs {
		if err := e.Add(spec); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) cmdList(ctx plugin.CommandContext) (bool, []string, error) {
	target, _ := ctx.Args["plugin"].(string)
	if target == "" {
		return true, e.renderPluginList(e.pluginPaths()), nil
	}
	m, amb := matchPath(strings.Split(target, "."), e.pluginPaths())
	if m == "" {
		if len(amb) > 0 {
			return false, ambiguityLines(target, "plugin", amb), nil
		}
		return false, []string{fmt.Sprintf("@R%s@w has no commands", target)}, nil
	}
	return true, e.renderCommandList(m), nil
}

func (e *Engine) cmdHelp(ctx plugin.CommandContext) (bool, []string, error) {
	prefix := e.strSetting(settingCmdPrefix)
	target, _ := ctx.Args["plugin"].(string)
	name, _ := ctx.Args["command"].(string)
	if target == "" {
		return true, usageLines(prefix, e.specs[ID]["help"]), nil
	}
	m, amb := matchPath(strings.Split(target, "."), e.pluginPaths())
	if m == "" {
		if len(amb) > 0 {
			return false, ambiguityLines(target, "plugin", amb), nil
		}
		return false, []string{fmt.Sprintf("@R%s@w has no commands", target)}, nil
	}
	if name == "" {
		return true, e.renderCommandList(m), nil
	}
	pid := e.pluginIDForPath(m)
	cm, camb := matchNames(name, e.order[pid])
	if cm == "" {
		if len(camb) > 0 {
			return false, ambiguityLines(name, "command of "+m, camb), nil
		}
		return false, []string{fmt.Sprintf("@R%s@W is not a command of %s", name, m)}, nil
	}
	return true, usageLines(prefix, e.specs[pid][cm]), nil
}

func (e *Engine) cmdHistory(ctx plugin.CommandContext) (bool, []string, error) {
	if action, _ := ctx.Args["action"].(string); action == "clear" {
		e.history = nil
		if err := e.store.Clear(context.Background()); err != nil {
			return false, nil, fmt.Errorf("clear history: %w", err)
		}
		return true, []string{"history cleared"}, nil
	}
	if len(e.history) == 0 {
		return true, []string{"history is empty"}, nil
	}
	lines := make([]string, 0, len(e.history))
	for i, cmd := range e.history {
		lines = append(lines, fmt.Sprintf("%3d : %s", i, cmd))
	}
	return true, lines, nil
}

// cmdRerun feeds a history entry back through the full mud-bound
// pipeline, so rerunning a proxy command dispatches it again.
func (e *Engine) cmdRerun(ctx plugin.CommandContext) (bool, []string, error) {
	n, _ := ctx.Args["number"].(int)
	idx := n
	if idx < 0 {
		idx += len(e.history)
	}
	if idx < 0 || idx >= len(e.history) {
		return false, []string{fmt.Sprintf("@R%d@w is outside of history length", n)}, nil
	}
	entry := e.history[idx]
	if e.rt.Pipeline == nil {
		return false, nil, fmt.Errorf("rerun %q: pipeline unavailable", entry)
	}
	e.send(nil, ctx.ClientID, true, []string{"rerunning: " + entry})

	actor := ID
	if ctx.ClientID != "" {
		actor = plugin.ClientActor(ctx.ClientID)
	}
	if _, err := e.rt.Pipeline.ProcessToMud(entry, actor); err != nil {
		return false, nil, fmt.Errorf("rerun %q: %w", entry, err)
	}
	return true, nil, nil
}

func (e *Engine) renderPluginList(paths []string) []string {
	lines := []string{"@Wplugins with commands@w"}
	for _, p := range paths {
		purpose := ""
		if e.rt.Manager() != nil {
			if info, ok := e.rt.Manager().Get(e.pluginIDForPath(p)); ok {
				purpose = info.Manifest.Purpose
			}
		}
		lines = append(lines, fmt.Sprintf("  @G%-24s@w %s", p, purpose))
	}
	return lines
}

func (e *Engine) renderCommandList(path string) []string {
	pid := e.pluginIDForPath(path)
	lines := []string{fmt.Sprintf("@Wcommands in %s@w", path)}
	for _, name := range e.order[pid] {
		lines = append(lines, fmt.Sprintf("  @G%-16s@w %s", name, e.specs[pid][name].ShortHelp))
	}
	return lines
}
