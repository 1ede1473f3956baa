package triggers

import (
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bastionmud/bastion/pkg/bus"
	"github.com/bastionmud/bastion/pkg/capability"
	"github.com/bastionmud/bastion/pkg/pipeline"
	"github.com/bastionmud/bastion/pkg/plugin"
	"github.com/bastionmud/bastion/pkg/records"
)

func newTestEngine(t *testing.T) (*Engine, *plugin.Runtime) {
	t.Helper()
	rt := &plugin.Runtime{
		Log:   slog.Default(),
		Bus:   bus.New(slog.Default()),
		Caps:  capability.NewRegistry(slog.Default()),
		State: plugin.NewMemoryState(),
	}
	cat := plugin.NewCatalog()
	require.NoError(t, cat.Add(Definition()))
	m := plugin.NewManager(slog.Default(), rt, cat)
	require.NoError(t, m.LoadAll())

	info, ok := m.Get(ID)
	require.True(t, ok)
	eng, ok := info.Instance.(*Engine)
	require.True(t, ok)
	return eng, rt
}

// feed pushes one mud line through the client-bound modify event.
func feed(t *testing.T, rt *plugin.Runtime, text string) *records.Line {
	t.Helper()
	l := records.NewLine(text, records.OriginMud)
	_, err := rt.Bus.Raise(pipeline.EventToClientModify, map[string]any{pipeline.LineKey: l}, "test")
	require.NoError(t, err)
	return l
}

// capture collects every record raised on an event.
func capture(rt *plugin.Runtime, event string) *[]*bus.Record {
	var recs []*bus.Record
	rt.Bus.RegisterCallback(event, "test", "capture", 100, func(r *bus.Record) error {
		recs = append(recs, r)
		return nil
	})
	return &recs
}

func tspec(owner, name, pattern string) plugin.TriggerSpec {
	return plugin.TriggerSpec{Owner: owner, Name: name, Pattern: pattern}
}

func TestAddValidatesSpecs(t *testing.T) {
	e, _ := newTestEngine(t)

	assert.ErrorIs(t, e.Add(plugin.TriggerSpec{Name: "x", Pattern: "a"}), ErrInvalidSpec)
	assert.ErrorIs(t, e.Add(tspec("plugins.test", "bad", "(")), ErrInvalidPattern)

	require.NoError(t, e.Add(tspec("plugins.test", "x", "abc")))
	assert.ErrorIs(t, e.Add(tspec("plugins.test", "x", "abc")), ErrTriggerExists)
}

func TestMatchRaisesEventWithGroups(t *testing.T) {
	e, rt := newTestEngine(t)
	require.NoError(t, e.Add(plugin.TriggerSpec{
		Owner:   "plugins.test",
		Name:    "arrive",
		Pattern: `(?P<who>\w+) has arrived`,
	}))
	recs := capture(rt, "ev_core.triggers_t_test_arrive")

	feed(t, rt, "Bob has arrived.")

	require.Len(t, *recs, 1)
	rec := (*recs)[0]
	assert.Equal(t, "Bob", rec.String("who"))
	assert.Equal(t, "arrive", rec.String("trigger_name"))
	assert.Equal(t, "t_test_arrive", rec.String("trigger_id"))
	assert.Equal(t, "Bob has arrived.", rec.String("line"))
}

func TestMatchAnchorsAtLineStart(t *testing.T) {
	e, rt := newTestEngine(t)
	require.NoError(t, e.Add(tspec("plugins.test", "arrive", `\w+ has arrived`)))
	recs := capture(rt, "ev_core.triggers_t_test_arrive")

	feed(t, rt, "say Bob has arrived")

	assert.Empty(t, *recs)
}

func TestSharedDegroupedPatternBothFire(t *testing.T) {
	e, rt := newTestEngine(t)
	require.NoError(t, e.Add(plugin.TriggerSpec{
		Owner:    "plugins.a",
		Name:     "loot",
		Pattern:  `(?P<amount>\d+) gold`,
		ArgTypes: map[string]string{"amount": "int"},
	}))
	require.NoError(t, e.Add(plugin.TriggerSpec{
		Owner:   "plugins.b",
		Name:    "tally",
		Pattern: `(?P<total>\d+) gold`,
	}))
	// group names differ but the degrouped patterns are identical
	assert.Len(t, e.regexOrder, 1)

	aRecs := capture(rt, "ev_core.triggers_t_a_loot")
	bRecs := capture(rt, "ev_core.triggers_t_b_tally")

	feed(t, rt, "50 gold coins")

	require.Len(t, *aRecs, 1)
	require.Len(t, *bRecs, 1)
	assert.Equal(t, 50, (*aRecs)[0].Int("amount"))
	assert.Equal(t, "50", (*bRecs)[0].String("total"))
}

func TestFirstAlternativeWins(t *testing.T) {
	e, rt := newTestEngine(t)
	require.NoError(t, e.Add(tspec("plugins.a", "long", "alpha")))
	require.NoError(t, e.Add(tspec("plugins.b", "short", "alp")))

	longRecs := capture(rt, "ev_core.triggers_t_a_long")
	shortRecs := capture(rt, "ev_core.triggers_t_b_short")

	feed(t, rt, "alphabet soup")

	// one union pass picks one alternative, the earlier registration
	assert.Len(t, *longRecs, 1)
	assert.Empty(t, *shortRecs)
}

func TestPriorityOrder(t *testing.T) {
	e, rt := newTestEngine(t)
	var order []string
	require.NoError(t, e.Add(plugin.TriggerSpec{Owner: "plugins.a", Name: "late", Pattern: "hit", Priority: 200}))
	require.NoError(t, e.Add(plugin.TriggerSpec{Owner: "plugins.b", Name: "early", Pattern: "hit", Priority: 10}))
	rt.Bus.RegisterCallback("ev_core.triggers_t_a_late", "test", "capture", 100, func(r *bus.Record) error {
		order = append(order, "late")
		return nil
	})
	rt.Bus.RegisterCallback("ev_core.triggers_t_b_early", "test", "capture", 100, func(r *bus.Record) error {
		order = append(order, "early")
		return nil
	})

	feed(t, rt, "hit the orc")

	assert.Equal(t, []string{"early", "late"}, order)
}

func TestStopEvaluating(t *testing.T) {
	e, rt := newTestEngine(t)
	require.NoError(t, e.Add(plugin.TriggerSpec{
		Owner: "plugins.a", Name: "first", Pattern: "hit", Priority: 10, StopEvaluating: true,
	}))
	require.NoError(t, e.Add(plugin.TriggerSpec{
		Owner: "plugins.b", Name: "second", Pattern: "hit", Priority: 20,
	}))
	firstRecs := capture(rt, "ev_core.triggers_t_a_first")
	secondRecs := capture(rt, "ev_core.triggers_t_b_second")

	feed(t, rt, "hit the orc")

	assert.Len(t, *firstRecs, 1)
	assert.Empty(t, *secondRecs)
}

func TestOmitClearsSend(t *testing.T) {
	e, rt := newTestEngine(t)
	require.NoError(t, e.Add(plugin.TriggerSpec{
		Owner: "plugins.test", Name: "hide", Pattern: "secret", Omit: true,
	}))

	l := feed(t, rt, "secret passage opens")

	assert.False(t, l.Send())
}

func TestColorSurfaceMatching(t *testing.T) {
	e, rt := newTestEngine(t)
	require.NoError(t, e.Add(plugin.TriggerSpec{
		Owner:      "plugins.test",
		Name:       "red",
		Pattern:    `(?P<code>@[a-z])red alert`,
		MatchColor: true,
	}))
	recs := capture(rt, "ev_core.triggers_t_test_red")

	feed(t, rt, "\x1b[0;31mred alert")

	require.Len(t, *recs, 1)
	assert.Equal(t, "@r", (*recs)[0].String("code"))
	assert.Equal(t, "red alert", (*recs)[0].String("line"))
	assert.Equal(t, "@rred alert", (*recs)[0].String("colorline"))
}

func TestBuiltinTriggerOrder(t *testing.T) {
	e, rt := newTestEngine(t)
	require.NoError(t, e.Add(tspec("plugins.test", "gold", "gold")))

	var order []string
	watch := func(label, event string) {
		rt.Bus.RegisterCallback(event, "test", "capture-"+label, 100, func(r *bus.Record) error {
			order = append(order, label)
			return nil
		})
	}
	watch("beall", "ev_core.triggers_t_core.triggers_beall")
	watch("emptyline", "ev_core.triggers_t_core.triggers_emptyline")
	watch("all", "ev_core.triggers_t_core.triggers_all")
	watch("gold", "ev_core.triggers_t_test_gold")

	feed(t, rt, "gold everywhere")
	assert.Equal(t, []string{"beall", "gold", "all"}, order)

	order = nil
	feed(t, rt, "")
	assert.Equal(t, []string{"beall", "emptyline", "all"}, order)
}

func TestDisableAndReenable(t *testing.T) {
	e, rt := newTestEngine(t)
	require.NoError(t, e.Add(tspec("plugins.test", "gold", "gold")))
	recs := capture(rt, "ev_core.triggers_t_test_gold")

	feed(t, rt, "gold")
	require.Len(t, *recs, 1)

	require.NoError(t, e.SetEnabled("plugins.test", "gold", false))
	feed(t, rt, "gold")
	assert.Len(t, *recs, 1)

	require.NoError(t, e.SetEnabled("plugins.test", "gold", true))
	feed(t, rt, "gold")
	assert.Len(t, *recs, 2)

	assert.ErrorIs(t, e.SetEnabled("plugins.test", "nope", true), ErrTriggerNotFound)
}

func TestEnableGroup(t *testing.T) {
	e, rt := newTestEngine(t)
	require.NoError(t, e.Add(plugin.TriggerSpec{
		Owner: "plugins.a", Name: "one", Pattern: "swing", Group: "combat", Disabled: true,
	}))
	require.NoError(t, e.Add(plugin.TriggerSpec{
		Owner: "plugins.a", Name: "two", Pattern: "parry", Group: "combat", Disabled: true,
	}))
	oneRecs := capture(rt, "ev_core.triggers_t_a_one")

	feed(t, rt, "swing at the orc")
	assert.Empty(t, *oneRecs)

	assert.Equal(t, 2, e.EnableGroup("combat", true))
	feed(t, rt, "swing at the orc")
	assert.Len(t, *oneRecs, 1)

	// already enabled, nothing changes
	assert.Equal(t, 0, e.EnableGroup("combat", true))
}

func TestRemoveOwner(t *testing.T) {
	e, rt := newTestEngine(t)
	require.NoError(t, e.Add(tspec("plugins.a", "one", "alpha")))
	require.NoError(t, e.Add(tspec("plugins.a", "two", "beta")))
	require.NoError(t, e.Add(tspec("plugins.b", "three", "gamma")))

	assert.Equal(t, 2, e.RemoveOwner("plugins.a"))
	assert.Len(t, e.regexOrder, 1)

	recs := capture(rt, "ev_core.triggers_t_b_three")
	feed(t, rt, "gamma rays")
	assert.Len(t, *recs, 1)
}

func TestInternalLinesSkipped(t *testing.T) {
	_, rt := newTestEngine(t)
	recs := capture(rt, "ev_core.triggers_t_core.triggers_beall")

	l := records.NewLine("hello", records.OriginInternal)
	_, err := rt.Bus.Raise(pipeline.EventToClientModify, map[string]any{pipeline.LineKey: l}, "test")
	require.NoError(t, err)

	assert.Empty(t, *recs)
}

func TestListAndDetailCommands(t *testing.T) {
	e, _ := newTestEngine(t)
	require.NoError(t, e.Add(tspec("plugins.test", "gold", `\d+ gold`)))

	ok, lines, err := e.cmdList(plugin.CommandContext{Args: map[string]any{"match": ""}})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, strings.Join(lines, "\n"), "t_test_gold")

	ok, lines, err = e.cmdDetail(plugin.CommandContext{Args: map[string]any{"trigger": "t_test_gold"}})
	require.NoError(t, err)
	assert.True(t, ok)
	joined := strings.Join(lines, "\n")
	assert.Contains(t, joined, `\d+ gold`)
	assert.Contains(t, joined, "ev_core.triggers_t_test_gold")

	ok, _, err = e.cmdDetail(plugin.CommandContext{Args: map[string]any{"trigger": "missing"}})
	require.NoError(t, err)
	assert.False(t, ok)
}
