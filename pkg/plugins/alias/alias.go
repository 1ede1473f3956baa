// Package alias rewrites client input before it reaches the mud. Two
// kinds of aliases exist: a plain alias replaces the leading word, and
// a pattern alias (one containing "(.*)") matches the whole line and
// fills {n} placeholders with the quoted nth word of the input.
package alias

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/bastionmud/bastion/pkg/bus"
	"github.com/bastionmud/bastion/pkg/colors"
	"github.com/bastionmud/bastion/pkg/pipeline"
	"github.com/bastionmud/bastion/pkg/plugin"
	"github.com/bastionmud/bastion/pkg/plugins/core/commands"
	"github.com/bastionmud/bastion/pkg/plugins/core/settings"
	"github.com/bastionmud/bastion/pkg/records"
)

// ID is the plugin id.
const ID = "plugins.alias"

const (
	stateKey       = "aliases"
	settingNextNum = "nextnum"
)

var placeholderRe = regexp.MustCompile(`\{(\d+)\}`)

// Definition describes the plugin to the catalog. It is the one
// non-required plugin in the default set and keeps its alias table
// across hot-reloads.
func Definition() plugin.Definition {
	return plugin.Definition{
		Manifest: plugin.Manifest{
			ID:                       ID,
			Name:                     "Alias",
			Purpose:                  "create aliases",
			Author:                   "bastion",
			Version:                  2,
			Dependencies:             []string{settings.ID, commands.ID},
			AttributesToSaveOnReload: []string{stateKey},
		},
		Factory: func(rt *plugin.Runtime) plugin.Plugin { return New(rt) },
	}
}

// entry is one alias. The JSON keys match the persisted table layout.
type entry struct {
	Replacement string `json:"alias"`
	Enabled     bool   `json:"enabled"`
	Num         int    `json:"num"`
	Hits        int    `json:"hits"`

	re *regexp.Regexp
}

// pattern lazily compiles a pattern alias, anchored at the line start.
func (en *entry) pattern(name string) (*regexp.Regexp, error) {
	if en.re != nil {
		return en.re, nil
	}
	re, err := regexp.Compile("^(?:" + name + ")")
	if err != nil {
		return nil, err
	}
	en.re = re
	return re, nil
}

func isPattern(name string) bool { return strings.Contains(name, "(.*)") }

// Engine holds the alias table. Expansion and the commands run on the
// dispatcher like every other engine.
type Engine struct {
	plugin.Base
	rt  *plugin.Runtime
	log *slog.Logger

	aliases     map[string]*entry
	sessionHits map[string]int
	expanding   bool
	restored    bool
}

func New(rt *plugin.Runtime) *Engine {
	return &Engine{
		rt:          rt,
		log:         rt.Log.With("plugin", ID),
		aliases:     make(map[string]*entry),
		sessionHits: make(map[string]int),
	}
}

func (e *Engine) Init(reg *plugin.Registrar) error {
	if err := reg.Setting(plugin.SettingSpec{
		Name: settingNextNum, Type: "int", Default: 0, ReadOnly: true,
		Help: "the number of the next alias added",
	}); err != nil {
		return err
	}

	cmds := []plugin.CommandSpec{
		{Name: "add", ShortHelp: "add an alias",
			Help: "add an alias, pattern aliases fill {n} with the nth word of the input",
			Args: []plugin.CommandArg{
				{Name: "original", Type: "str", Help: "the input to replace"},
				{Name: "replacement", Type: "str", Rest: true, Help: "the string to replace it with"},
			},
			Handler: e.cmdAdd},
		{Name: "remove", ShortHelp: "remove an alias",
			Args: []plugin.CommandArg{
				{Name: "alias", Type: "str", Help: "the alias name or number to remove"},
			},
			Handler: e.cmdRemove},
		{Name: "list", ShortHelp: "list aliases",
			Args: []plugin.CommandArg{
				{Name: "match", Type: "str", Default: "", Help: "list only aliases containing this string"},
			},
			Handler: e.cmdList},
		{Name: "toggle", ShortHelp: "toggle an alias on or off",
			Args: []plugin.CommandArg{
				{Name: "alias", Type: "str", Help: "the alias name or number to toggle"},
			},
			Handler: e.cmdToggle},
		{Name: "detail", ShortHelp: "show one alias in detail",
			Args: []plugin.CommandArg{
				{Name: "alias", Type: "str", Help: "the alias name or number to show"},
			},
			Handler: e.cmdDetail},
	}
	for _, spec := range cmds {
		if err := reg.Command(spec); err != nil {
			return err
		}
	}

	reg.Callback(pipeline.EventToMudModify, "expand", 5, e.onToMudLine)
	return nil
}

// Initialize loads the persisted alias table. A table restored across
// a reload wins over the persisted one, which may be older.
func (e *Engine) Initialize() error {
	if e.restored || e.rt.State == nil {
		return nil
	}
	raw, found, err := e.rt.State.Get(context.Background(), ID, stateKey)
	if err != nil {
		return fmt.Errorf("load aliases: %w", err)
	}
	if !found || raw == "" {
		return nil
	}
	m := make(map[string]*entry)
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return fmt.Errorf("decode aliases: %w", err)
	}
	e.aliases = m
	return nil
}

func (e *Engine) Save() error {
	if e.rt.State == nil {
		return nil
	}
	data, err := json.Marshal(e.aliases)
	if err != nil {
		return fmt.Errorf("encode aliases: %w", err)
	}
	return e.rt.State.Put(context.Background(), ID, stateKey, string(data))
}

func (e *Engine) Reset() error {
	e.aliases = make(map[string]*entry)
	e.sessionHits = make(map[string]int)
	if e.rt.State == nil {
		return nil
	}
	return e.rt.State.Delete(context.Background(), ID, stateKey)
}

// Attribute and SetAttribute carry the alias table across a reload.
func (e *Engine) Attribute(name string) (any, bool) {
	if name != stateKey {
		return nil, false
	}
	out := make(map[string]*entry, len(e.aliases))
	for k, v := range e.aliases {
		cp := *v
		cp.re = nil
		out[k] = &cp
	}
	return out, true
}

func (e *Engine) SetAttribute(name string, value any) bool {
	if name != stateKey {
		return false
	}
	m, ok := value.(map[string]*entry)
	if !ok {
		return false
	}
	e.aliases = make(map[string]*entry, len(m))
	for k, v := range m {
		cp := *v
		cp.re = nil
		e.aliases[k] = &cp
	}
	e.restored = true
	return true
}

// onToMudLine expands the first matching alias on a client line. A
// multi-command result goes back through the splitter with the original
// line suppressed; the expanding flag keeps the pieces from matching
// again, so expansion is single-pass like the lookup itself.
func (e *Engine) onToMudLine(rec *bus.Record) error {
	if e.expanding {
		return nil
	}
	l, ok := bus.Value[*records.Line](rec, pipeline.LineKey)
	if !ok || l.Kind() != records.KindIO || !l.FromClient() || !l.Send() {
		return nil
	}
	text := strings.TrimSpace(l.Text())
	if text == "" {
		return nil
	}
	name, result, matched := e.expand(text)
	if !matched || result == text {
		return nil
	}
	e.aliases[name].Hits++
	e.sessionHits[name]++
	e.log.Debug("alias matched", "alias", name, "result", result)

	sep := ""
	if e.rt.Pipeline != nil {
		sep = e.rt.Pipeline.Separator()
	}
	if sep != "" && strings.Contains(result, sep) {
		l.SetSend(false, ID)
		l.AddNote("alias expanded", ID, result)
		e.expanding = true
		defer func() { e.expanding = false }()
		if _, err := e.rt.Pipeline.ProcessToMud(result, e.rt.Bus.CurrentActor()); err != nil {
			return fmt.Errorf("alias expansion: %w", err)
		}
		return nil
	}
	l.SetText(result, ID)
	l.AddNote("alias expanded", ID, name)
	return nil
}

// expand tries every enabled alias in creation order and returns the
// first rewrite.
func (e *Engine) expand(text string) (string, string, bool) {
	for _, name := range e.sortedNames() {
		ent := e.aliases[name]
		if !ent.Enabled {
			continue
		}
		if isPattern(name) {
			re, err := ent.pattern(name)
			if err != nil {
				e.log.Warn("alias pattern invalid", "alias", name, "error", err)
				continue
			}
			if re.MatchString(text) {
				return name, fillPlaceholders(ent.Replacement, strings.Fields(text)), true
			}
			continue
		}
		if text == name {
			return name, ent.Replacement, true
		}
		if strings.HasPrefix(text, name+" ") {
			return name, ent.Replacement + text[len(name):], true
		}
	}
	return "", "", false
}

// fillPlaceholders maps {n} to the nth whitespace-separated word of the
// input, quoted so multiword values survive the mud's parser. Unknown
// indexes stay literal.
func fillPlaceholders(replacement string, words []string) string {
	return placeholderRe.ReplaceAllStringFunc(replacement, func(m string) string {
		n, err := strconv.Atoi(m[1 : len(m)-1])
		if err != nil || n < 0 || n >= len(words) {
			return m
		}
		return `"` + words[n] + `"`
	})
}

func (e *Engine) sortedNames() []string {
	names := make([]string, 0, len(e.aliases))
	for n := range e.aliases {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool {
		return e.aliases[names[i]].Num < e.aliases[names[j]].Num
	})
	return names
}

// lookup resolves an alias by its number or its name.
func (e *Engine) lookup(key string) (string, *entry) {
	if num, err := strconv.Atoi(key); err == nil {
		for name, ent := range e.aliases {
			if ent.Num == num {
				return name, ent
			}
		}
		return "", nil
	}
	if ent, ok := e.aliases[key]; ok {
		return key, ent
	}
	return "", nil
}

func (e *Engine) addAlias(name, replacement string) {
	num := e.nextNum()
	e.aliases[name] = &entry{Replacement: replacement, Enabled: true, Num: num}
	e.setNextNum(num + 1)
}

func (e *Engine) nextNum() int {
	svc := e.rt.Settings()
	if svc == nil {
		return len(e.aliases)
	}
	v, err := svc.Get(ID, settingNextNum)
	if err != nil {
		return len(e.aliases)
	}
	n, _ := v.(int)
	return n
}

func (e *Engine) setNextNum(n int) {
	svc := e.rt.Settings()
	if svc == nil {
		return
	}
	if err := svc.Set(ID, settingNextNum, n, ID); err != nil {
		e.log.Warn("nextnum update failed", "error", err)
	}
}

func (e *Engine) cmdAdd(ctx plugin.CommandContext) (bool, []string, error) {
	original, _ := ctx.Args["original"].(string)
	replacement, _ := ctx.Args["replacement"].(string)
	if original == "" || replacement == "" {
		return false, []string{"@RPlease include all arguments@w"}, nil
	}
	if isPattern(original) {
		if _, err := regexp.Compile("^(?:" + original + ")"); err != nil {
			return false, []string{fmt.Sprintf("@RThe pattern does not compile: %v@w", err)}, nil
		}
	}
	e.addAlias(original, replacement)
	return true, []string{fmt.Sprintf("@GAdding alias@w : '%s' will be replaced by '%s'", original, replacement)}, nil
}

func (e *Engine) cmdRemove(ctx plugin.CommandContext) (bool, []string, error) {
	key, _ := ctx.Args["alias"].(string)
	if key == "" {
		return false, []string{"@RPlease include an alias to remove@w"}, nil
	}
	name, ent := e.lookup(key)
	if ent == nil {
		return true, []string{fmt.Sprintf("@GCould not remove alias@w : '%s'", key)}, nil
	}
	delete(e.aliases, name)
	delete(e.sessionHits, name)
	return true, []string{fmt.Sprintf("@GRemoving alias@w : '%s'", name)}, nil
}

func (e *Engine) cmdToggle(ctx plugin.CommandContext) (bool, []string, error) {
	key, _ := ctx.Args["alias"].(string)
	if key == "" {
		return false, []string{"@RPlease include an alias to toggle@w"}, nil
	}
	name, ent := e.lookup(key)
	if ent == nil {
		return true, []string{fmt.Sprintf("@GDoes not exist@w : '%s'", key)}, nil
	}
	ent.Enabled = !ent.Enabled
	if ent.Enabled {
		return true, []string{fmt.Sprintf("@GEnabled alias@w : '%s'", name)}, nil
	}
	return true, []string{fmt.Sprintf("@GDisabled alias@w : '%s'", name)}, nil
}

func (e *Engine) cmdDetail(ctx plugin.CommandContext) (bool, []string, error) {
	key, _ := ctx.Args["alias"].(string)
	if key == "" {
		return false, []string{"@RPlease include all arguments@w"}, nil
	}
	name, ent := e.lookup(key)
	if ent == nil {
		return true, []string{fmt.Sprintf("@RAlias does not exist@w : '%s'", key)}, nil
	}
	return true, []string{
		fmt.Sprintf("%-12s : %d", "Num", ent.Num),
		fmt.Sprintf("%-12s : %s", "Enabled", yesNo(ent.Enabled)),
		fmt.Sprintf("%-12s : %d", "Total Hits", ent.Hits),
		fmt.Sprintf("%-12s : %d", "Session Hits", e.sessionHits[name]),
		fmt.Sprintf("%-12s : %s", "Alias", name),
		fmt.Sprintf("%-12s : %s", "Replacement", ent.Replacement),
	}, nil
}

func (e *Engine) cmdList(ctx plugin.CommandContext) (bool, []string, error) {
	match, _ := ctx.Args["match"].(string)
	var rows []string
	for _, name := range e.sortedNames() {
		if match != "" && !strings.Contains(name, match) {
			continue
		}
		ent := e.aliases[name]
		rep := colors.Strip(ent.Replacement)
		if len(rep) > 30 {
			rep = rep[:27] + "..."
		}
		rows = append(rows, fmt.Sprintf("%4d %2s  %-20s : %s@w", ent.Num, yesNo(ent.Enabled), name, rep))
	}
	if len(rows) == 0 {
		return true, []string{"None"}, nil
	}
	out := []string{
		fmt.Sprintf("%4s %2s  %-20s : %s@w", "#", "E", "Alias", "Replacement"),
		"@B" + strings.Repeat("-", 60) + "@w",
	}
	return true, append(out, rows...), nil
}

func yesNo(v bool) string {
	if v {
		return "Y"
	}
	return "N"
}
