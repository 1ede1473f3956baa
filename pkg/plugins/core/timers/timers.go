// Package timers implements the timer scheduler. Plugins register
// recurring or one-shot functions by interval or by a daily HHMM UTC
// anchor; a single scheduler goroutine sleeps until the earliest
// deadline and hands due functions to the dispatcher, so timer code runs
// with the same guarantees as every other plugin callback.
package timers

import (
	"container/heap"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bastionmud/bastion/pkg/plugin"
)

// ID is the timer engine's plugin id.
const ID = "plugins.core.timers"

// idleWait bounds the scheduler's sleep when no timer is registered.
const idleWait = time.Hour

// cronParser reads the five-field expressions built for time-of-day
// anchors.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Definition describes the engine to the plugin catalog.
func Definition() plugin.Definition {
	return plugin.Definition{
		Manifest: plugin.Manifest{
			ID:       ID,
			Name:     "Timers",
			Purpose:  "interval and time-of-day function scheduling",
			Author:   "bastion",
			Version:  1,
			Required: true,
		},
		Factory: func(rt *plugin.Runtime) plugin.Plugin { return New(rt) },
	}
}

// timer is one scheduled entry. spec and key never change after Add;
// everything else is guarded by the engine mutex.
type timer struct {
	spec     plugin.TimerSpec
	key      string
	schedule cron.Schedule // non-nil for time-of-day anchors
	enabled  bool
	last     time.Time
	next     time.Time
	fires    int
	index    int // heap position, -1 while off the heap
}

// Info is a read-only view of one timer.
type Info struct {
	Owner     string
	Name      string
	Seconds   int
	TimeOfDay string
	OneShot   bool
	Enabled   bool
	Fires     int
	LastFire  time.Time
	NextFire  time.Time
}

// Engine is the timer engine plugin. It is also the TimerService other
// plugins register through. Unlike the other engines it owns a second
// goroutine, so its state is mutex-guarded.
type Engine struct {
	plugin.Base

	rt  *plugin.Runtime
	log *slog.Logger

	mu     sync.Mutex
	timers map[string]*timer
	heap   timerHeap
	total  int

	nudge    chan struct{}
	stopCh   chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	running  bool

	now func() time.Time
}

func New(rt *plugin.Runtime) *Engine {
	return &Engine{
		rt:     rt,
		log:    rt.Log.With("plugin", ID),
		timers: make(map[string]*timer),
		nudge:  make(chan struct{}, 1),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (e *Engine) Init(reg *plugin.Registrar) error {
	e.rt.SetTimerService(e)
	return nil
}

// Initialize registers the engine's commands and starts the scheduler.
func (e *Engine) Initialize() error {
	if svc := e.rt.Commands(); svc != nil {
		cmds := []plugin.CommandSpec{
			{
				PluginID:  ID,
				Name:      "list",
				ShortHelp: "list timers",
				Args: []plugin.CommandArg{
					{Name: "match", Type: "str", Default: "", Help: "substring filter on timer names"},
				},
				Handler: e.cmdList,
			},
			{
				PluginID:  ID,
				Name:      "detail",
				ShortHelp: "show everything about one timer",
				Args: []plugin.CommandArg{
					{Name: "timer", Type: "str", Help: "timer id, owner:name"},
				},
				Handler: e.cmdDetail,
			},
		}
		for _, spec := range cmds {
			if err := svc.Add(spec); err != nil {
				return fmt.Errorf("register timer command %q: %w", spec.Name, err)
			}
		}
	} else {
		e.log.Debug("command engine absent, timer commands skipped")
	}

	e.running = true
	go e.loop()
	return nil
}

// Uninitialize stops the scheduler and waits for it to exit.
func (e *Engine) Uninitialize() error {
	e.stopOnce.Do(func() { close(e.stopCh) })
	if e.running {
		<-e.done
	}
	return nil
}

// Add registers a timer. A time-of-day anchor replaces the interval;
// otherwise the interval must be positive.
func (e *Engine) Add(spec plugin.TimerSpec) error {
	if spec.Owner == "" || spec.Name == "" || spec.Func == nil {
		return fmt.Errorf("add timer %q.%q: %w", spec.Owner, spec.Name, ErrInvalidSpec)
	}
	key := timerKey(spec.Owner, spec.Name)
	var sched cron.Schedule
	if spec.TimeOfDay != "" {
		s, err := dailySchedule(spec.TimeOfDay)
		if err != nil {
			return fmt.Errorf("add timer %s: %w", key, err)
		}
		sched = s
	} else if spec.Seconds <= 0 {
		return fmt.Errorf("add timer %s: interval %d: %w", key, spec.Seconds, ErrInvalidSpec)
	}

	e.mu.Lock()
	if _, ok := e.timers[key]; ok {
		e.mu.Unlock()
		return fmt.Errorf("add timer %s: %w", key, ErrTimerExists)
	}
	t := &timer{
		spec:     spec,
		key:      key,
		schedule: sched,
		enabled:  !spec.Disabled,
		index:    -1,
	}
	e.timers[key] = t
	if t.enabled {
		t.next = t.firstFire(e.now())
		heap.Push(&e.heap, t)
	}
	next := t.next
	e.mu.Unlock()

	e.kick()
	e.log.Debug("timer added", "timer", key, "target", spec.Owner, "next", next)
	return nil
}

func (e *Engine) Remove(owner, name string) error {
	key := timerKey(owner, name)
	e.mu.Lock()
	t, ok := e.timers[key]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("remove timer %s: %w", key, ErrTimerNotFound)
	}
	delete(e.timers, key)
	if t.index >= 0 {
		heap.Remove(&e.heap, t.index)
	}
	e.mu.Unlock()

	e.kick()
	e.log.Debug("timer removed", "timer", key)
	return nil
}

// Toggle enables or disables a timer. Enabling re-anchors the next fire
// from now, a disabled stretch is never caught up.
func (e *Engine) Toggle(owner, name string, enabled bool) error {
	key := timerKey(owner, name)
	e.mu.Lock()
	t, ok := e.timers[key]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("toggle timer %s: %w", key, ErrTimerNotFound)
	}
	if t.enabled == enabled {
		e.mu.Unlock()
		return nil
	}
	t.enabled = enabled
	if enabled {
		t.next = t.firstFire(e.now())
		heap.Push(&e.heap, t)
	} else if t.index >= 0 {
		heap.Remove(&e.heap, t.index)
	}
	e.mu.Unlock()

	e.kick()
	return nil
}

func (e *Engine) RemoveOwner(owner string) int {
	e.mu.Lock()
	var names []string
	for _, t := range e.timers {
		if t.spec.Owner == owner {
			names = append(names, t.spec.Name)
		}
	}
	e.mu.Unlock()

	for _, name := range names {
		if err := e.Remove(owner, name); err != nil {
			e.log.Warn("timer removal at unload failed", "timer", timerKey(owner, name), "error", err)
		}
	}
	return len(names)
}

// Get returns a read-only view of one timer.
func (e *Engine) Get(owner, name string) (Info, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.timers[timerKey(owner, name)]
	if !ok {
		return Info{}, false
	}
	return t.info(), true
}

// List returns every timer sorted by id.
func (e *Engine) List() []Info {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Info, 0, len(e.timers))
	for _, t := range e.timers {
		out = append(out, t.info())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Owner != out[j].Owner {
			return out[i].Owner < out[j].Owner
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func (t *timer) info() Info {
	return Info{
		Owner:     t.spec.Owner,
		Name:      t.spec.Name,
		Seconds:   t.spec.Seconds,
		TimeOfDay: t.spec.TimeOfDay,
		OneShot:   t.spec.OneShot,
		Enabled:   t.enabled,
		Fires:     t.fires,
		LastFire:  t.last,
		NextFire:  t.next,
	}
}

// kick wakes the scheduler so it recomputes its sleep.
func (e *Engine) kick() {
	select {
	case e.nudge <- struct{}{}:
	default:
	}
}

// loop is the scheduler goroutine. It sleeps until the earliest
// deadline, fires everything due, and goes back to sleep.
func (e *Engine) loop() {
	defer close(e.done)
	wake := time.NewTimer(idleWait)
	defer wake.Stop()
	for {
		e.mu.Lock()
		wait := idleWait
		if len(e.heap) > 0 {
			wait = e.heap[0].next.Sub(e.now())
		}
		e.mu.Unlock()
		if wait < 0 {
			wait = 0
		}
		if !wake.Stop() {
			select {
			case <-wake.C:
			default:
			}
		}
		wake.Reset(wait)

		select {
		case <-e.stopCh:
			return
		case <-e.nudge:
		case <-wake.C:
			e.fireDue()
		}
	}
}

// fireDue pops and executes every timer at or past its deadline.
func (e *Engine) fireDue() {
	now := e.now()
	for {
		e.mu.Lock()
		if len(e.heap) == 0 || e.heap[0].next.After(now) {
			e.mu.Unlock()
			return
		}
		t := heap.Pop(&e.heap).(*timer)
		t.last = now
		t.fires++
		e.total++
		fires := t.fires
		if t.spec.OneShot {
			delete(e.timers, t.key)
		} else {
			t.next = t.nextAfter(now)
			heap.Push(&e.heap, t)
		}
		e.mu.Unlock()

		e.execute(t, fires)
	}
}

// execute hands the timer function to the dispatcher, or runs it inline
// when no dispatcher is wired. Faults are logged and the timer keeps its
// schedule.
func (e *Engine) execute(t *timer, fires int) {
	if !t.spec.Silent {
		e.log.Debug("timer fired", "timer", t.key, "target", t.spec.Owner, "fires", fires)
	}
	run := func() {
		if err := t.spec.Func(); err != nil {
			e.log.Error("timer function failed", "timer", t.key, "target", t.spec.Owner, "error", err)
		}
	}
	if d := e.rt.Dispatcher; d != nil {
		if err := d.Submit("timer "+t.key, run); err != nil {
			e.log.Warn("timer fire dropped", "timer", t.key, "error", err)
		}
		return
	}
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("timer function panicked", "timer", t.key, "panic", fmt.Sprint(r))
		}
	}()
	run()
}

// firstFire anchors a fresh or re-enabled timer.
func (t *timer) firstFire(now time.Time) time.Time {
	if t.schedule != nil {
		return t.schedule.Next(now)
	}
	return now.Add(time.Duration(t.spec.Seconds) * time.Second)
}

// nextAfter computes the deadline following a fire at now. Interval
// timers stay aligned to their previous deadline; when the clock jumped
// past more than one interval, the fire that just ran covers the single
// missed slot and the timer re-anchors from now.
func (t *timer) nextAfter(now time.Time) time.Time {
	if t.schedule != nil {
		return t.schedule.Next(now)
	}
	interval := time.Duration(t.spec.Seconds) * time.Second
	next := t.next.Add(interval)
	if !next.After(now) {
		next = now.Add(interval)
	}
	return next
}

// dailySchedule turns an HHMM clock time into a daily UTC cron schedule.
func dailySchedule(hhmm string) (cron.Schedule, error) {
	if len(hhmm) != 4 {
		return nil, fmt.Errorf("%q: %w", hhmm, ErrInvalidTimeOfDay)
	}
	hour, err := strconv.Atoi(hhmm[:2])
	if err != nil {
		return nil, fmt.Errorf("%q: %w", hhmm, ErrInvalidTimeOfDay)
	}
	minute, err := strconv.Atoi(hhmm[2:])
	if err != nil {
		return nil, fmt.Errorf("%q: %w", hhmm, ErrInvalidTimeOfDay)
	}
	if hour > 23 || minute > 59 {
		return nil, fmt.Errorf("%q: %w", hhmm, ErrInvalidTimeOfDay)
	}
	sched, err := cronParser.Parse(fmt.Sprintf("CRON_TZ=UTC %d %d * * *", minute, hour))
	if err != nil {
		return nil, fmt.Errorf("%q: %w: %v", hhmm, ErrInvalidTimeOfDay, err)
	}
	return sched, nil
}

func (e *Engine) cmdList(ctx plugin.CommandContext) (bool, []string, error) {
	match, _ := ctx.Args["match"].(string)
	e.mu.Lock()
	total := e.total
	e.mu.Unlock()
	lines := []string{
		fmt.Sprintf("@WUTC now %s, %d fires overall@w", e.now().Format("Mon Jan 02 2006 15:04:05"), total),
		fmt.Sprintf("  @G%-32s@w %-8s %5s  %s", "timer", "state", "fires", "next fire"),
	}
	for _, info := range e.List() {
		key := timerKey(info.Owner, info.Name)
		if match != "" && !strings.Contains(key, match) {
			continue
		}
		state := "enabled"
		if !info.Enabled {
			state = "disabled"
		}
		next := "-"
		if info.Enabled {
			next = info.NextFire.UTC().Format("Jan 02 15:04:05")
		}
		lines = append(lines, fmt.Sprintf("  @G%-32s@w %-8s %5d  %s", key, state, info.Fires, next))
	}
	return true, lines, nil
}

func (e *Engine) cmdDetail(ctx plugin.CommandContext) (bool, []string, error) {
	id, _ := ctx.Args["timer"].(string)
	e.mu.Lock()
	t, ok := e.timers[id]
	var info Info
	if ok {
		info = t.info()
	}
	e.mu.Unlock()
	if !ok {
		return false, []string{fmt.Sprintf("@R%s@w is not a timer", id)}, nil
	}

	interval := strconv.Itoa(info.Seconds) + "s"
	if info.TimeOfDay != "" {
		interval = "daily at " + info.TimeOfDay + " UTC"
	}
	last := "never"
	if !info.LastFire.IsZero() {
		last = info.LastFire.UTC().Format("Mon Jan 02 2006 15:04:05")
	}
	next := "-"
	if info.Enabled {
		next = info.NextFire.UTC().Format("Mon Jan 02 2006 15:04:05")
	}
	return true, []string{
		"@W" + id + "@w",
		"  owner    : " + info.Owner,
		"  interval : " + interval,
		"  one-shot : " + strconv.FormatBool(info.OneShot),
		"  enabled  : " + strconv.FormatBool(info.Enabled),
		"  fires    : " + strconv.Itoa(info.Fires),
		"  last     : " + last,
		"  next     : " + next,
	}, nil
}

// timerKey builds the canonical timer id, owner:name with the plugins
// namespace dropped from the owner.
func timerKey(owner, name string) string {
	return strings.TrimPrefix(owner, "plugins.") + ":" + name
}

// timerHeap is a min-heap over next fire times.
type timerHeap []*timer

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool { return h[i].next.Before(h[j].next) }

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	t := x.(*timer)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}
