// Package triggers implements the trigger engine. Plugins register
// regex patterns over client-bound lines; matching lines raise the
// trigger's event with the captured groups as arguments. All enabled
// patterns are folded into one anchored union regex per surface, plain
// and color-coded, so each line is scanned once per surface no matter
// how many triggers exist.
//
// All entry points run on the dispatcher goroutine.
package triggers

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/bastionmud/bastion/pkg/bus"
	"github.com/bastionmud/bastion/pkg/pipeline"
	"github.com/bastionmud/bastion/pkg/plugin"
	"github.com/bastionmud/bastion/pkg/records"
)

// ID is the trigger engine's plugin id.
const ID = "plugins.core.triggers"

// Built-in pattern-less triggers raised around the regex stage: beall
// before any matching, emptyline instead of matching on blank lines,
// all after everything else.
const (
	TriggerBeall     = "beall"
	TriggerEmptyline = "emptyline"
	TriggerAll       = "all"
)

// degroupRe rewrites named capture groups to non-capturing ones, so
// patterns with clashing group names can share a union regex.
var degroupRe = regexp.MustCompile(`\(\?P<[^>]+>`)

// Definition describes the engine to the plugin catalog.
func Definition() plugin.Definition {
	return plugin.Definition{
		Manifest: plugin.Manifest{
			ID:       ID,
			Name:     "Triggers",
			Purpose:  "regex watchers over client-bound lines",
			Author:   "bastion",
			Version:  1,
			Required: true,
		},
		Factory: func(rt *plugin.Runtime) plugin.Plugin { return New(rt) },
	}
}

type trigger struct {
	spec     plugin.TriggerSpec
	id       string
	event    string
	enabled  bool
	regexID  string
	compiled *regexp.Regexp
	seq      int
	hits     int
}

// Info is a read-only view of one trigger.
type Info struct {
	ID         string
	Owner      string
	Name       string
	Pattern    string
	Event      string
	Group      string
	Priority   int
	Enabled    bool
	MatchColor bool
	Hits       int
}

// Engine is the trigger engine plugin. It is also the TriggerService
// other plugins register through.
type Engine struct {
	plugin.Base

	rt  *plugin.Runtime
	log *slog.Logger

	triggers map[string]*trigger
	byOwner  map[string][]*trigger

	// one regex id per unique degrouped pattern
	regexIDs      map[string]string
	regexPatterns map[string]string
	regexOrder    []string
	members       map[string][]*trigger
	regexSeq      int
	seq           int

	plainDirty, colorDirty bool
	plainUnion, colorUnion *regexp.Regexp
}

func New(rt *plugin.Runtime) *Engine {
	return &Engine{
		rt:            rt,
		log:           rt.Log.With("plugin", ID),
		triggers:      make(map[string]*trigger),
		byOwner:       make(map[string][]*trigger),
		regexIDs:      make(map[string]string),
		regexPatterns: make(map[string]string),
		members:       make(map[string][]*trigger),
	}
}

func (e *Engine) Init(reg *plugin.Registrar) error {
	e.rt.SetTriggerService(e)

	reg.Callback(pipeline.EventToClientModify, "trigger-match", 50, e.onToClientLine)

	descs := map[string]string{
		TriggerBeall:     "raised for every client-bound line before any trigger matching",
		TriggerEmptyline: "raised instead of trigger matching when the stripped line is empty",
		TriggerAll:       "raised for every client-bound line after all trigger matching",
	}
	for _, name := range []string{TriggerBeall, TriggerEmptyline, TriggerAll} {
		id := triggerID(ID, name)
		if err := reg.Event(deriveEvent(id), []string{descs[name]}, eventArgDescs()); err != nil {
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
		e.log.Debug("command engine absent, trigger commands skipped")
		return nil
	}
	cmds := []plugin.CommandSpec{
		{
			PluginID:  ID,
			Name:      "list",
			ShortHelp: "list triggers",
			Args: []plugin.CommandArg{
				{Name: "match", Type: "str", Default: "", Help: "substring filter on trigger ids"},
			},
			Handler: e.cmdList,
		},
		{
			PluginID:  ID,
			Name:      "detail",
			ShortHelp: "show everything about one trigger",
			Args: []plugin.CommandArg{
				{Name: "trigger", Type: "str", Help: "trigger id"},
			},
			Handler: e.cmdDetail,
		},
	}
	for _, spec := range cmds {
		if err := svc.Add(spec); err != nil {
			return fmt.Errorf("register trigger command %q: %w", spec.Name, err)
		}
	}
	return nil
}

// Add registers a trigger. Both the pattern as written and its
// degrouped form must compile, the union would break at rebuild
// otherwise.
func (e *Engine) Add(spec plugin.TriggerSpec) error {
	if spec.Owner == "" || spec.Name == "" || spec.Pattern == "" {
		return fmt.Errorf("add trigger %q.%q: %w", spec.Owner, spec.Name, ErrInvalidSpec)
	}
	if spec.Priority == 0 {
		spec.Priority = 100
	}
	id := triggerID(spec.Owner, spec.Name)
	if _, ok := e.triggers[id]; ok {
		return fmt.Errorf("add trigger %s: %w", id, ErrTriggerExists)
	}
	compiled, err := regexp.Compile(`\A(?:` + spec.Pattern + `)`)
	if err != nil {
		return fmt.Errorf("add trigger %s: %w: %v", id, ErrInvalidPattern, err)
	}
	degrouped := degroupRe.ReplaceAllString(spec.Pattern, "(?:")
	if _, err := regexp.Compile(`\A(?:` + degrouped + `)`); err != nil {
		return fmt.Errorf("add trigger %s: degrouped form: %w: %v", id, ErrInvalidPattern, err)
	}
	if spec.Event == "" {
		spec.Event = deriveEvent(id)
	}

	regexID, ok := e.regexIDs[degrouped]
	if !ok {
		e.regexSeq++
		regexID = "reg_" + strconv.Itoa(e.regexSeq)
		e.regexIDs[degrouped] = regexID
		e.regexPatterns[regexID] = degrouped
		e.regexOrder = append(e.regexOrder, regexID)
	}

	t := &trigger{
		spec:     spec,
		id:       id,
		event:    spec.Event,
		enabled:  !spec.Disabled,
		regexID:  regexID,
		compiled: compiled,
		seq:      e.seq,
	}
	e.seq++
	e.triggers[id] = t
	e.byOwner[spec.Owner] = append(e.byOwner[spec.Owner], t)
	e.members[regexID] = append(e.members[regexID], t)
	e.markDirty(spec.MatchColor)

	err = e.rt.Bus.AddEvent(spec.Event, spec.Owner,
		[]string{fmt.Sprintf("trigger %s matched a client-bound line", id)},
		eventArgDescs())
	if err != nil && !errors.Is(err, bus.ErrEventExists) {
		e.log.Warn("trigger event definition failed", "trigger", id, "error", err)
	}

	e.log.Debug("trigger added", "trigger", id, "regex", regexID, "target", spec.Owner)
	return nil
}

func (e *Engine) Remove(owner, name string) error {
	id := triggerID(owner, name)
	t, ok := e.triggers[id]
	if !ok {
		return fmt.Errorf("remove trigger %s: %w", id, ErrTriggerNotFound)
	}
	delete(e.triggers, id)
	e.byOwner[owner] = deleteTrigger(e.byOwner[owner], t)
	if len(e.byOwner[owner]) == 0 {
		delete(e.byOwner, owner)
	}
	e.members[t.regexID] = deleteTrigger(e.members[t.regexID], t)
	if len(e.members[t.regexID]) == 0 {
		delete(e.members, t.regexID)
		delete(e.regexIDs, e.regexPatterns[t.regexID])
		delete(e.regexPatterns, t.regexID)
		e.regexOrder = slices.DeleteFunc(e.regexOrder, func(r string) bool { return r == t.regexID })
	}
	e.markDirty(t.spec.MatchColor)
	e.log.Debug("trigger removed", "trigger", id)
	return nil
}

func (e *Engine) SetEnabled(owner, name string, enabled bool) error {
	t, ok := e.triggers[triggerID(owner, name)]
	if !ok {
		return fmt.Errorf("toggle trigger %s: %w", triggerID(owner, name), ErrTriggerNotFound)
	}
	if t.enabled != enabled {
		t.enabled = enabled
		e.markDirty(t.spec.MatchColor)
	}
	return nil
}

// EnableGroup flips every trigger in the group and returns how many
// actually changed.
func (e *Engine) EnableGroup(group string, enabled bool) int {
	n := 0
	for _, t := range e.triggers {
		if t.spec.Group == group && t.enabled != enabled {
			t.enabled = enabled
			e.markDirty(t.spec.MatchColor)
			n++
		}
	}
	return n
}

func (e *Engine) RemoveOwner(owner string) int {
	list := append([]*trigger(nil), e.byOwner[owner]...)
	for _, t := range list {
		if err := e.Remove(owner, t.spec.Name); err != nil {
			e.log.Warn("trigger removal at unload failed", "trigger", t.id, "error", err)
		}
	}
	return len(list)
}

// Get returns a read-only view of one trigger.
func (e *Engine) Get(owner, name string) (Info, bool) {
	t, ok := e.triggers[triggerID(owner, name)]
	if !ok {
		return Info{}, false
	}
	return t.info(), true
}

// List returns every trigger sorted by id.
func (e *Engine) List() []Info {
	out := make([]Info, 0, len(e.triggers))
	for _, t := range e.triggers {
		out = append(out, t.info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (t *trigger) info() Info {
	return Info{
		ID:         t.id,
		Owner:      t.spec.Owner,
		Name:       t.spec.Name,
		Pattern:    t.spec.Pattern,
		Event:      t.event,
		Group:      t.spec.Group,
		Priority:   t.spec.Priority,
		Enabled:    t.enabled,
		MatchColor: t.spec.MatchColor,
		Hits:       t.hits,
	}
}

// onToClientLine runs at priority 50 on every client-bound line.
func (e *Engine) onToClientLine(rec *bus.Record) error {
	l, ok := bus.Value[*records.Line](rec, pipeline.LineKey)
	if !ok || !l.IsIO() || l.Internal() {
		return nil
	}
	line := l.NoANSI()
	colorline := l.ColorCoded()

	e.raiseBuiltin(TriggerBeall, line, colorline)
	if strings.TrimSpace(line) == "" {
		e.raiseBuiltin(TriggerEmptyline, line, colorline)
	} else {
		e.matchLine(l, line, colorline)
	}
	e.raiseBuiltin(TriggerAll, line, colorline)
	return nil
}

// matchLine applies both unions, orders the matched triggers by
// (priority, registration) and raises their events.
func (e *Engine) matchLine(l *records.Line, line, colorline string) {
	var hits []*trigger
	hits = e.collect(hits, e.union(false), line, false)
	hits = e.collect(hits, e.union(true), colorline, true)
	if len(hits) == 0 {
		return
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].spec.Priority != hits[j].spec.Priority {
			return hits[i].spec.Priority < hits[j].spec.Priority
		}
		return hits[i].seq < hits[j].seq
	})

	for _, t := range hits {
		surface := line
		if t.spec.MatchColor {
			surface = colorline
		}
		matches, ok := t.matchArgs(surface)
		if !ok {
			continue
		}
		t.hits++
		args := map[string]any{
			"trigger_name": t.spec.Name,
			"trigger_id":   t.id,
			"line":         line,
			"colorline":    colorline,
		}
		for k, v := range matches {
			args[k] = v
		}
		if _, err := e.rt.Bus.Raise(t.event, args, ID); err != nil {
			e.log.Warn("trigger event cancelled", "trigger", t.id, "error", err)
		}
		if t.spec.Omit {
			l.SetSend(false, ID)
			l.AddNote("omitted by trigger", ID, t.id)
		}
		if t.spec.StopEvaluating {
			break
		}
	}
}

// collect resolves one union match into the triggers behind the matched
// alternative. Submatch indexes distinguish an empty-width match from a
// non-participating group.
func (e *Engine) collect(hits []*trigger, re *regexp.Regexp, surface string, color bool) []*trigger {
	if re == nil {
		return hits
	}
	idx := re.FindStringSubmatchIndex(surface)
	if idx == nil {
		return hits
	}
	for i, name := range re.SubexpNames() {
		if name == "" || idx[2*i] < 0 {
			continue
		}
		for _, t := range e.members[name] {
			if t.enabled && t.spec.MatchColor == color {
				hits = append(hits, t)
			}
		}
	}
	return hits
}

// union returns the compiled union for one surface, rebuilding it only
// after a registration change.
func (e *Engine) union(color bool) *regexp.Regexp {
	dirty, cached := &e.plainDirty, &e.plainUnion
	if color {
		dirty, cached = &e.colorDirty, &e.colorUnion
	}
	if !*dirty {
		return *cached
	}
	*dirty = false

	var alts []string
	for _, regexID := range e.regexOrder {
		if !e.anyEnabled(regexID, color) {
			continue
		}
		alts = append(alts, "(?P<"+regexID+">"+e.regexPatterns[regexID]+")")
	}
	if len(alts) == 0 {
		*cached = nil
		return nil
	}
	re, err := regexp.Compile(`\A(?:` + strings.Join(alts, "|") + `)`)
	if err != nil {
		// every alternative compiled on its own at Add, so this is a
		// pathological interaction; matching stops for the surface
		e.log.Error("union regex rebuild failed", "color", color, "error", err)
		*cached = nil
		return nil
	}
	*cached = re
	e.log.Debug("union regex rebuilt", "color", color, "alternatives", len(alts))
	return re
}

func (e *Engine) anyEnabled(regexID string, color bool) bool {
	for _, t := range e.members[regexID] {
		if t.enabled && t.spec.MatchColor == color {
			return true
		}
	}
	return false
}

func (e *Engine) markDirty(color bool) {
	if color {
		e.colorDirty = true
	} else {
		e.plainDirty = true
	}
}

// matchArgs re-matches the trigger's own pattern to recover its named
// groups, coerced per the declared argtypes.
func (t *trigger) matchArgs(surface string) (map[string]any, bool) {
	m := t.compiled.FindStringSubmatch(surface)
	if m == nil {
		return nil, false
	}
	args := make(map[string]any)
	for i, name := range t.compiled.SubexpNames() {
		if i == 0 || name == "" {
			continue
		}
		args[name] = coerceMatch(t.spec.ArgTypes[name], m[i])
	}
	return args, true
}

// coerceMatch converts a captured group per its argtype. Values that do
// not parse stay strings.
func coerceMatch(typ, raw string) any {
	switch typ {
	case "int":
		if n, err := strconv.Atoi(raw); err == nil {
			return n
		}
	case "float":
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f
		}
	case "bool":
		switch strings.ToLower(raw) {
		case "true", "yes", "on", "1":
			return true
		case "false", "no", "off", "0":
			return false
		}
	}
	return raw
}

func (e *Engine) raiseBuiltin(name, line, colorline string) {
	id := triggerID(ID, name)
	args := map[string]any{
		"trigger_name": name,
		"trigger_id":   id,
		"line":         line,
		"colorline":    colorline,
	}
	if _, err := e.rt.Bus.Raise(deriveEvent(id), args, ID); err != nil {
		e.log.Warn("trigger event cancelled", "trigger", id, "error", err)
	}
}

func (e *Engine) cmdList(ctx plugin.CommandContext) (bool, []string, error) {
	match, _ := ctx.Args["match"].(string)
	lines := []string{"@Wtriggers@w"}
	for _, info := range e.List() {
		if match != "" && !strings.Contains(info.ID, match) {
			continue
		}
		state := "enabled"
		if !info.Enabled {
			state = "disabled"
		}
		lines = append(lines, fmt.Sprintf("  @G%-44s@w %-8s %5d hits", info.ID, state, info.Hits))
	}
	return true, lines, nil
}

func (e *Engine) cmdDetail(ctx plugin.CommandContext) (bool, []string, error) {
	id, _ := ctx.Args["trigger"].(string)
	t, ok := e.triggers[id]
	if !ok {
		return false, []string{fmt.Sprintf("@R%s@w is not a trigger", id)}, nil
	}
	info := t.info()
	surface := "plain"
	if info.MatchColor {
		surface = "color"
	}
	return true, []string{
		"@W" + info.ID + "@w",
		"  owner    : " + info.Owner,
		"  pattern  : " + info.Pattern,
		"  event    : " + info.Event,
		"  group    : " + info.Group,
		"  priority : " + strconv.Itoa(info.Priority),
		"  surface  : " + surface,
		"  enabled  : " + strconv.FormatBool(info.Enabled),
		"  hits     : " + strconv.Itoa(info.Hits),
	}, nil
}

func eventArgDescs() map[string]string {
	return map[string]string{
		"trigger_name": "name of the matched trigger",
		"trigger_id":   "id of the matched trigger",
		"line":         "matched line with color stripped",
		"colorline":    "matched line with color codes",
	}
}

// triggerID builds the canonical trigger id, t_{owner}_{name} with the
// plugins namespace dropped from the owner.
func triggerID(owner, name string) string {
	return "t_" + strings.TrimPrefix(owner, "plugins.") + "_" + name
}

// deriveEvent names the event raised when a trigger matches.
func deriveEvent(id string) string {
	return "ev_" + strings.TrimPrefix(ID, "plugins.") + "_" + id
}

func deleteTrigger(xs []*trigger, t *trigger) []*trigger {
	out := xs[:0]
	for _, x := range xs {
		if x != t {
			out = append(out, x)
		}
	}
	return out
}
