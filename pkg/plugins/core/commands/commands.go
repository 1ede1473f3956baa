// Package commands implements the command engine. It watches mud-bound
// client lines for the command prefix, resolves the dotted command path
// against every registered command, and runs the owning plugin's
// handler, delivering the output back to the originating client. Lines
// without the prefix pass through an anti-spam stage instead.
//
// All entry points run on the dispatcher goroutine.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/bastionmud/bastion/pkg/bus"
	"github.com/bastionmud/bastion/pkg/capability"
	"github.com/bastionmud/bastion/pkg/pipeline"
	"github.com/bastionmud/bastion/pkg/plugin"
	"github.com/bastionmud/bastion/pkg/plugins/core/settings"
	"github.com/bastionmud/bastion/pkg/records"
)

// ID is the command engine's plugin id.
const ID = "plugins.core.commands"

// Settings owned by the engine. The last two are hidden bookkeeping for
// the anti-spam stage.
const (
	settingCmdPrefix   = "cmdprefix"
	settingSpamCount   = "spamcount"
	settingAntispam    = "antispamcommand"
	settingHistorySize = "historysize"
	settingCmdCount    = "cmdcount"
	settingLastCmd     = "lastcmd"
)

// Definition describes the engine to the plugin catalog.
func Definition(store HistoryStore) plugin.Definition {
	return plugin.Definition{
		Manifest: plugin.Manifest{
			ID:           ID,
			Name:         "Commands",
			Purpose:      "parse and dispatch client commands",
			Author:       "bastion",
			Version:      1,
			Required:     true,
			Dependencies: []string{settings.ID},
		},
		Factory: func(rt *plugin.Runtime) plugin.Plugin { return New(rt, store) },
	}
}

// Engine is the command engine plugin. It is also the CommandService
// other plugins register through.
type Engine struct {
	plugin.Base

	rt    *plugin.Runtime
	log   *slog.Logger
	store HistoryStore

	specs map[string]map[string]*plugin.CommandSpec
	order map[string][]string

	// history is the live ring, oldest first, duplicates collapsed to
	// their latest occurrence.
	history  []string
	noRepeat map[string]bool
}

// New builds the engine. A nil store falls back to an in-memory
// history.
func New(rt *plugin.Runtime, store HistoryStore) *Engine {
	if store == nil {
		store = NewMemoryHistory()
	}
	return &Engine{
		rt:       rt,
		log:      rt.Log.With("plugin", ID),
		store:    store,
		specs:    make(map[string]map[string]*plugin.CommandSpec),
		order:    make(map[string][]string),
		noRepeat: make(map[string]bool),
	}
}

func (e *Engine) Init(reg *plugin.Registrar) error {
	e.rt.SetCommandService(e)

	prefixDefault := "#bp"
	if cfg := e.rt.Config; cfg != nil && cfg.Proxy != nil && cfg.Proxy.CommandPrefix != "" {
		prefixDefault = cfg.Proxy.CommandPrefix
	}

	for _, spec := range []plugin.SettingSpec{
		{Name: settingCmdPrefix, Type: "str", Default: prefixDefault,
			Help: "prefix that marks a client line as a proxy command"},
		{Name: settingSpamCount, Type: "int", Default: 20,
			Help: "identical commands in a row before the antispam command is sent"},
		{Name: settingAntispam, Type: "str", Default: "look",
			Help: "command sent to the mud to break its spam detection"},
		{Name: settingHistorySize, Type: "int", Default: 50,
			Help: "number of commands kept in history"},
		{Name: settingCmdCount, Type: "int", Default: 0, Hidden: true,
			Help: "repeat count of the last mud command"},
		{Name: settingLastCmd, Type: "str", Default: "", Hidden: true,
			Help: "last command sent to the mud"},
	} {
		if err := reg.Setting(spec); err != nil {
			return err
		}
	}

	reg.Callback(pipeline.EventToMudModify, "command-dispatch", 10, e.onToMudLine)

	if err := reg.Capability("{plugin-id}:run", e.capRun,
		"run a command: (plugin id, command, argument line)"); err != nil {
		return err
	}
	if err := reg.Capability("{plugin-id}:norepeat.add", e.capNoRepeatAdd,
		"send a mud command only once while it repeats: (command)"); err != nil {
		return err
	}
	if err := reg.Capability("{plugin-id}:norepeat.remove", e.capNoRepeatRemove,
		"remove a single-send mud command: (command)"); err != nil {
		return err
	}
	return nil
}

// Initialize registers the engine's own commands and rebuilds the
// history ring from the store. Settings are live by now, so the ring is
// sized correctly.
func (e *Engine) Initialize() error {
	if err := e.registerBuiltins(); err != nil {
		return err
	}
	e.loadHistory()
	return nil
}

// Add registers a command. Names must stay addressable by the resolver,
// so no dots or whitespace.
func (e *Engine) Add(spec plugin.CommandSpec) error {
	if spec.PluginID == "" || spec.Name == "" || spec.Handler == nil {
		return fmt.Errorf("add command %q.%q: %w", spec.PluginID, spec.Name, ErrInvalidSpec)
	}
	if strings.ContainsAny(spec.Name, ". \t") {
		return fmt.Errorf("add command %q.%q: name is not addressable: %w", spec.PluginID, spec.Name, ErrInvalidSpec)
	}
	if _, ok := e.specs[spec.PluginID][spec.Name]; ok {
		return fmt.Errorf("add command %q.%q: %w", spec.PluginID, spec.Name, ErrCommandExists)
	}
	if e.specs[spec.PluginID] == nil {
		e.specs[spec.PluginID] = make(map[string]*plugin.CommandSpec)
	}
	e.specs[spec.PluginID][spec.Name] = &spec
	e.order[spec.PluginID] = append(e.order[spec.PluginID], spec.Name)
	e.log.Debug("command added", "target", spec.PluginID, "command", spec.Name)
	return nil
}

func (e *Engine) Remove(pluginID, name string) error {
	if _, ok := e.specs[pluginID][name]; !ok {
		return fmt.Errorf("remove command %q.%q: %w", pluginID, name, ErrCommandNotFound)
	}
	delete(e.specs[pluginID], name)
	if len(e.specs[pluginID]) == 0 {
		delete(e.specs, pluginID)
		delete(e.order, pluginID)
	} else {
		e.order[pluginID] = removeEntry(e.order[pluginID], name)
	}
	return nil
}

func (e *Engine) RemoveOwner(pluginID string) int {
	n := len(e.specs[pluginID])
	delete(e.specs, pluginID)
	delete(e.order, pluginID)
	if n > 0 {
		e.log.Debug("commands removed", "target", pluginID, "count", n)
	}
	return n
}

// onToMudLine runs at priority 10 on every mud-bound line, ahead of
// any plugin callbacks that expect commands to be gone already.
func (e *Engine) onToMudLine(rec *bus.Record) error {
	l, ok := bus.Value[*records.Line](rec, pipeline.LineKey)
	if !ok || l.Kind() != records.KindIO || l.Internal() || !l.Send() {
		return nil
	}
	text := strings.TrimSpace(l.Text())
	prefix := e.strSetting(settingCmdPrefix)
	if prefix == "" || !hasFoldPrefix(text, prefix) {
		e.passThrough(l)
		return nil
	}
	l.SetSend(false, ID)
	l.AddNote("command line intercepted", ID, text)

	clientID := ""
	if id, ok := plugin.ClientFromActor(e.rt.Bus.CurrentActor()); ok {
		clientID = id
	}
	e.dispatch(text, prefix, clientID)
	return nil
}

// dispatch resolves one typed command line, still carrying the prefix,
// and runs it or reports why it could not.
func (e *Engine) dispatch(text, prefix, clientID string) {
	cmdToken := text
	argline := ""
	if i := strings.IndexAny(text, " \t"); i >= 0 {
		cmdToken, argline = text[:i], strings.TrimSpace(text[i+1:])
	}
	path := strings.TrimPrefix(cmdToken[len(prefix):], ".")

	switch {
	case path == "":
		e.run(e.specs[ID]["list"], argline, clientID, text)
		return
	case path == "!":
		e.run(e.specs[ID]["!"], argline, clientID, text)
		return
	}

	segs := strings.Split(path, ".")
	if len(segs) > maxPathSegments {
		e.send(nil, clientID, false,
			[]string{fmt.Sprintf("@R%s@w: command names have at most %d dotted parts", cmdToken, maxPathSegments)})
		return
	}
	if segs[0] == "plugins" && len(segs) > 1 {
		segs = segs[1:]
	}

	paths := e.pluginPaths()

	// The whole path naming one plugin shows that plugin's commands.
	if m, amb := matchPath(segs, paths); m != "" {
		e.run(e.specs[ID]["list"], m, clientID, text)
		return
	} else if len(amb) > 0 {
		e.send(nil, clientID, false, ambiguityLines(path, "plugin", amb))
		return
	}

	// Last segment as the command, the rest as its plugin.
	if len(segs) > 1 {
		pm, pamb := matchPath(segs[:len(segs)-1], paths)
		if len(pamb) > 0 {
			e.send(nil, clientID, false, ambiguityLines(strings.Join(segs[:len(segs)-1], "."), "plugin", pamb))
			return
		}
		if pm != "" {
			e.dispatchIn(pm, segs[len(segs)-1], argline, clientID, text)
			return
		}
	}

	// A single segment can still pick out a plugin family, core alone
	// listing every core.* plugin.
	if len(segs) == 1 {
		if family := e.familyMatches(segs[0]); len(family) > 0 {
			e.send(nil, clientID, true, e.renderPluginList(family))
			return
		}
	}

	lines := []string{fmt.Sprintf("@R%s@W is not a command", cmdToken)}
	if sugg := suggestNames(path, e.allTargets(), 5); len(sugg) > 0 {
		lines = append(lines, "did you mean:")
		for _, s := range sugg {
			lines = append(lines, "  "+prefix+"."+s)
		}
	}
	lines = append(lines, e.renderPluginList(e.pluginPaths())...)
	e.send(nil, clientID, false, lines)
}

// dispatchIn resolves a command name inside an already resolved plugin.
func (e *Engine) dispatchIn(path, name, argline, clientID, text string) {
	pid := e.pluginIDForPath(path)
	m, amb := matchNames(name, e.order[pid])
	if m != "" {
		e.run(e.specs[pid][m], argline, clientID, text)
		return
	}
	if len(amb) > 0 {
		e.send(nil, clientID, false, ambiguityLines(name, "command of "+path, amb))
		return
	}
	lines := []string{fmt.Sprintf("@R%s@W is not a command of %s", name, path)}
	if sugg := suggestNames(name, e.order[pid], 5); len(sugg) > 0 {
		lines = append(lines, "did you mean:")
		for _, s := range sugg {
			lines = append(lines, "  "+s)
		}
	}
	lines = append(lines, e.renderCommandList(path)...)
	e.send(nil, clientID, false, lines)
}

// run parses arguments for a resolved command, records it in history
// and executes the handler.
func (e *Engine) run(spec *plugin.CommandSpec, argline, clientID, typed string) {
	prefix := e.strSetting(settingCmdPrefix)
	tokens, err := splitArgs(argline)
	if err != nil {
		e.send(spec, clientID, false, []string{"@R" + err.Error() + "@w"})
		return
	}
	args, err := bindArgs(spec.Args, tokens)
	if err != nil {
		out := append([]string{"@R" + err.Error() + "@w"}, usageLines(prefix, spec)...)
		e.send(spec, clientID, false, out)
		return
	}
	if typed != "" && !spec.ExcludeFromHistory {
		e.addHistory(typed)
	}

	ok, out, err := e.invoke(spec, plugin.CommandContext{ClientID: clientID, Args: args, Raw: argline})
	if err != nil {
		e.log.Error("command failed",
			"target", spec.PluginID, "command", spec.Name, "error", err)
		out = append(out, fmt.Sprintf("@Rcommand %s.%s failed:@w %v", displayPath(spec.PluginID), spec.Name, err))
		e.send(spec, clientID, false, out)
		return
	}
	if !ok && len(out) == 0 {
		out = usageLines(prefix, spec)
	}
	e.send(spec, clientID, ok, out)
}

// invoke shields the engine from a panicking handler.
func (e *Engine) invoke(spec *plugin.CommandSpec, ctx plugin.CommandContext) (ok bool, out []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return spec.Handler(ctx)
}

// send delivers command output to the originating client, or to every
// logged-in client when the command ran internally. A nil spec means
// the resolver itself is talking, normal formatting applies.
func (e *Engine) send(spec *plugin.CommandSpec, clientID string, success bool, lines []string) {
	if len(lines) == 0 || e.rt.Pipeline == nil {
		return
	}
	rl := make([]*records.Line, 0, len(lines))
	for _, text := range lines {
		l := records.NewLine(text, records.OriginInternal)
		if spec == nil || !spec.NoFormat {
			if spec == nil || !spec.NoPreamble {
				l.SetPreamble(true, ID)
			}
			if !success {
				l.SetError(true, ID)
			}
		}
		rl = append(rl, l)
	}
	opts := pipeline.SendOptions{Actor: ID}
	if clientID != "" {
		opts.Include = []string{clientID}
	}
	if err := e.rt.Pipeline.SendToClient(records.NewContainer(rl...), opts); err != nil {
		e.log.Error("command output delivery failed", "error", err)
	}
}

// passThrough runs the anti-spam bookkeeping on a non-command line.
// Repeating the same command spamcount times injects the antispam
// command so the mud's own spam detection never trips. Commands marked
// no-repeat are swallowed instead of sent again.
func (e *Engine) passThrough(l *records.Line) {
	text := l.Text()
	if text == "" {
		return
	}
	if text == e.strSetting(settingLastCmd) {
		count := e.intSetting(settingCmdCount) + 1
		e.putSetting(settingCmdCount, count)
		if count >= e.intSetting(settingSpamCount) {
			e.injectAntispam()
			e.putSetting(settingCmdCount, 0)
			return
		}
		if e.noRepeat[text] {
			l.SetSend(false, ID)
			l.AddNote("single-send command repeated, swallowed", ID, text)
		}
		return
	}
	e.putSetting(settingCmdCount, 0)
	e.putSetting(settingLastCmd, text)
}

// injectAntispam sends the antispam command straight to the mud. It
// skips the modify event, so the engine never sees its own injection.
func (e *Engine) injectAntispam() {
	cmd := e.strSetting(settingAntispam)
	if cmd == "" || e.rt.Pipeline == nil {
		return
	}
	cont := records.NewContainer(records.NewLine(cmd, records.OriginInternal))
	if err := e.rt.Pipeline.SendToMud(cont, ID); err != nil {
		e.log.Error("antispam send failed", "error", err)
		return
	}
	e.log.Debug("antispam command sent", "command", cmd)
}

// addHistory records a typed command. Duplicates collapse so the latest
// occurrence wins, and the entry is mirrored to the store.
func (e *Engine) addHistory(cmd string) {
	e.history = removeEntry(e.history, cmd)
	e.history = append(e.history, cmd)
	size := e.intSetting(settingHistorySize)
	if size > 0 && len(e.history) > size {
		e.history = e.history[len(e.history)-size:]
	}

	ctx := context.Background()
	if err := e.store.Append(ctx, cmd); err != nil {
		e.log.Error("history append failed", "error", err)
		return
	}
	if size > 0 {
		if err := e.store.Trim(ctx, size); err != nil {
			e.log.Error("history trim failed", "error", err)
		}
	}
}

// loadHistory rebuilds the ring from the store. The store keeps an
// append-only log, so duplicates collapse here.
func (e *Engine) loadHistory() {
	entries, err := e.store.List(context.Background(), 0)
	if err != nil {
		e.log.Error("history load failed", "error", err)
		return
	}
	entries = dedupeKeepLast(entries)
	size := e.intSetting(settingHistorySize)
	if size > 0 && len(entries) > size {
		entries = entries[len(entries)-size:]
	}
	e.history = entries
	if len(entries) > 0 {
		e.log.Debug("history loaded", "entries", len(entries))
	}
}

func (e *Engine) capRun(args ...any) (any, error) {
	pid, err := capability.Arg[string](args, 0)
	if err != nil {
		return nil, err
	}
	name, err := capability.Arg[string](args, 1)
	if err != nil {
		return nil, err
	}
	argline, err := capability.OptionalArg[string](args, 2, "")
	if err != nil {
		return nil, err
	}
	spec, ok := e.specs[pid][name]
	if !ok {
		return nil, fmt.Errorf("run %q.%q: %w", pid, name, ErrCommandNotFound)
	}
	tokens, err := splitArgs(argline)
	if err != nil {
		return nil, err
	}
	parsed, err := bindArgs(spec.Args, tokens)
	if err != nil {
		return nil, err
	}
	_, out, err := e.invoke(spec, plugin.CommandContext{Args: parsed, Raw: argline})
	return out, err
}

func (e *Engine) capNoRepeatAdd(args ...any) (any, error) {
	cmd, err := capability.Arg[string](args, 0)
	if err != nil {
		return nil, err
	}
	e.noRepeat[cmd] = true
	return true, nil
}

func (e *Engine) capNoRepeatRemove(args ...any) (any, error) {
	cmd, err := capability.Arg[string](args, 0)
	if err != nil {
		return nil, err
	}
	delete(e.noRepeat, cmd)
	return true, nil
}

func (e *Engine) strSetting(name string) string {
	v, err := e.rt.Settings().Get(ID, name)
	if err != nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

func (e *Engine) intSetting(name string) int {
	v, err := e.rt.Settings().Get(ID, name)
	if err != nil {
		return 0
	}
	n, _ := v.(int)
	return n
}

func (e *Engine) putSetting(name string, value any) {
	if err := e.rt.Settings().Set(ID, name, value, ID); err != nil {
		e.log.Error("setting update failed", "setting", name, "error", err)
	}
}

// pluginPaths returns the display path of every plugin with commands,
// sorted.
func (e *Engine) pluginPaths() []string {
	out := make([]string, 0, len(e.specs))
	for pid := range e.specs {
		out = append(out, displayPath(pid))
	}
	sort.Strings(out)
	return out
}

func (e *Engine) pluginIDForPath(path string) string {
	for pid := range e.specs {
		if displayPath(pid) == path {
			return pid
		}
	}
	return ""
}

// familyMatches resolves a single segment against the first segments of
// multi-part plugin paths and returns every plugin underneath.
func (e *Engine) familyMatches(seg string) []string {
	var firsts []string
	seen := make(map[string]bool)
	for _, p := range e.pluginPaths() {
		first, _, found := strings.Cut(p, ".")
		if found && !seen[first] {
			seen[first] = true
			firsts = append(firsts, first)
		}
	}
	m, _ := matchNames(seg, firsts)
	if m == "" {
		return nil
	}
	var out []string
	for _, p := range e.pluginPaths() {
		if strings.HasPrefix(p, m+".") {
			out = append(out, p)
		}
	}
	return out
}

// allTargets lists everything a typed path could resolve to, plugin
// paths and dotted plugin.command pairs, for typo suggestions.
func (e *Engine) allTargets() []string {
	var out []string
	for pid, names := range e.specs {
		p := displayPath(pid)
		out = append(out, p)
		for name := range names {
			out = append(out, p+"."+name)
		}
	}
	sort.Strings(out)
	return out
}

func ambiguityLines(input, kind string, hits []string) []string {
	lines := []string{fmt.Sprintf("@R%s@W matches more than one %s:", input, kind)}
	for _, h := range hits {
		lines = append(lines, "  "+h)
	}
	return lines
}

// hasFoldPrefix reports whether s starts with prefix, ignoring case.
func hasFoldPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

func removeEntry(xs []string, s string) []string {
	out := xs[:0]
	for _, x := range xs {
		if x != s {
			out = append(out, x)
		}
	}
	return out
}
