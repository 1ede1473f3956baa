// Package bus implements the priority-ordered, synchronously dispatched
// event bus at the center of the proxy. Events hold callbacks in integer
// priority buckets (lower fires earlier, ties in registration order); a
// raise runs full ascending scans until a scan invokes nothing, so
// callbacks registered during dispatch still run. Raises nest on a
// current-event stack, and each event keeps a bounded history of past
// invocations.
//
// The bus is confined to the dispatcher goroutine and does no locking.
package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"
)

// DefaultHistorySize bounds the per-event invocation history ring.
const DefaultHistorySize = 1000

// ErrEventExists is returned when an event name is defined twice.
var ErrEventExists = errors.New("event already exists")

// Observer sees every raise before its callbacks run. The live feed
// taps the bus through it.
type Observer func(event, actor string)

// Bus owns every event definition and the current-event stack.
type Bus struct {
	log         *slog.Logger
	events      map[string]*Event
	stack       []*Invocation
	historySize int
	observer    Observer
}

// New creates an empty bus.
func New(log *slog.Logger) *Bus {
	if log == nil {
		log = slog.Default()
	}
	return &Bus{
		log:         log.With("component", "bus"),
		events:      map[string]*Event{},
		historySize: DefaultHistorySize,
	}
}

// shell returns the named event, creating an undefined placeholder when a
// callback or raise arrives before the definition.
func (b *Bus) shell(name string) *Event {
	ev, ok := b.events[name]
	if !ok {
		ev = newEvent(name, "", nil, nil, b.historySize)
		b.events[name] = ev
	}
	return ev
}

// AddEvent defines an event. Defining a name twice fails; a placeholder
// created by an early registration or raise is adopted instead.
func (b *Bus) AddEvent(name, creator string, description []string, argDescriptions map[string]string) error {
	if ev, ok := b.events[name]; ok {
		if ev.creator != "" {
			return fmt.Errorf("add event %q by %q: %w (created by %q)", name, creator, ErrEventExists, ev.creator)
		}
		ev.creator = creator
		ev.description = description
		ev.argDescriptions = argDescriptions
		return nil
	}
	b.events[name] = newEvent(name, creator, description, argDescriptions, b.historySize)
	return nil
}

// SetObserver installs the raise observer. Pass nil to remove it. Like
// everything else on the bus this runs on the dispatcher goroutine.
func (b *Bus) SetObserver(fn Observer) {
	b.observer = fn
}

// HasEvent reports whether name is known, defined or placeholder.
func (b *Bus) HasEvent(name string) bool {
	_, ok := b.events[name]
	return ok
}

// RegisterCallback attaches a callback identified by (owner, name) to an
// event at the given priority. Registering the same identity twice is a
// no-op; the return reports whether it was newly added.
func (b *Bus) RegisterCallback(event, owner, name string, priority int, fn CallbackFunc) bool {
	added := b.shell(event).register(&callback{
		owner:    owner,
		name:     name,
		priority: priority,
		fn:       fn,
	})
	if !added {
		b.log.Debug("callback already registered",
			"event", event, "owner", owner, "callback", name)
	}
	return added
}

// UnregisterCallback removes a callback; returns whether it was present.
func (b *Bus) UnregisterCallback(event, owner, name string) bool {
	ev, ok := b.events[event]
	if !ok {
		return false
	}
	return ev.unregister(owner, name)
}

// IsRegistered reports whether (owner, name) is attached to event.
func (b *Bus) IsRegistered(event, owner, name string) bool {
	ev, ok := b.events[event]
	if !ok {
		return false
	}
	_, found := ev.find(owner, name)
	return found
}

// RemoveOwner unregisters every callback owned by owner across all events.
// Plugin unload uses it for atomic release.
func (b *Bus) RemoveOwner(owner string) int {
	removed := 0
	for _, ev := range b.events {
		var victims []string
		for _, bucket := range ev.buckets {
			for _, cb := range bucket {
				if cb.owner == owner {
					victims = append(victims, cb.name)
				}
			}
		}
		for _, name := range victims {
			if ev.unregister(owner, name) {
				removed++
			}
		}
	}
	return removed
}

// RaiseOption adjusts one raise.
type RaiseOption func(*raiseOptions)

type raiseOptions struct {
	dataList []any
	keyName  string
}

// WithDataList dispatches the event once per element, binding each element
// under keyName in the data record so every callback sees exactly one
// element at a time.
func WithDataList(items []any, keyName string) RaiseOption {
	return func(o *raiseOptions) {
		o.dataList = items
		o.keyName = keyName
	}
}

// Raise dispatches the named event synchronously and returns the final
// data record. The error is non-nil only when a callback aborted the raise
// with a cancellation.
func (b *Bus) Raise(name string, args map[string]any, actor string, opts ...RaiseOption) (*Record, error) {
	var o raiseOptions
	for _, opt := range opts {
		opt(&o)
	}

	ev := b.shell(name)
	rec := NewRecord(name, args)

	if b.observer != nil {
		b.observer(name, actor)
	}

	if o.dataList != nil && o.keyName != "" {
		for _, item := range o.dataList {
			rec.Set(o.keyName, item)
			if err := b.dispatch(ev, rec, actor); err != nil {
				return rec, err
			}
		}
		return rec, nil
	}
	return rec, b.dispatch(ev, rec, actor)
}

// dispatch runs one full invocation of ev with rec.
func (b *Bus) dispatch(ev *Event, rec *Record, actor string) (err error) {
	inv := &Invocation{
		Event:    ev.name,
		Actor:    actor,
		Started:  time.Now().UTC(),
		record:   rec,
		executed: map[string]bool{},
	}
	b.stack = append(b.stack, inv)
	defer func() {
		b.stack = b.stack[:len(b.stack)-1]
		ev.raiseCount++
		ev.history.add(inv)
		if inv.Passes > 2 {
			b.log.Warn("event needed multiple dispatch passes",
				"event", ev.name, "passes", inv.Passes, "actor", actor)
		}
	}()

	for {
		inv.Passes++
		invoked := false
		for _, p := range ev.priorities() {
			// snapshot so a callback mutating the bucket cannot skew
			// this pass
			bucket := append([]*callback(nil), ev.buckets[p]...)
			for _, cb := range bucket {
				if inv.executed[cb.key()] {
					continue
				}
				inv.executed[cb.key()] = true
				invoked = true
				inv.current = cb.key()
				cbErr := b.safeCall(cb, rec)
				inv.current = ""
				if cbErr != nil {
					if errors.Is(cbErr, context.Canceled) {
						return cbErr
					}
					b.log.Error("event callback failed",
						"event", ev.name,
						"owner", cb.owner,
						"callback", cb.name,
						"error", cbErr)
				}
			}
		}
		if !invoked {
			return nil
		}
	}
}

// safeCall invokes one callback, converting a panic into an error so one
// faulty plugin cannot take down dispatch.
func (b *Bus) safeCall(cb *callback, rec *Record) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			b.log.Error("event callback panicked",
				"owner", cb.owner,
				"callback", cb.name,
				"stack", string(debug.Stack()))
		}
	}()
	cb.fired++
	return cb.fn(rec)
}

// CurrentRecord returns the data record of the innermost active raise, or
// nil outside dispatch.
func (b *Bus) CurrentRecord() *Record {
	if len(b.stack) == 0 {
		return nil
	}
	return b.stack[len(b.stack)-1].record
}

// CurrentEvent returns the name of the innermost active raise, or "".
func (b *Bus) CurrentEvent() string {
	if len(b.stack) == 0 {
		return ""
	}
	return b.stack[len(b.stack)-1].Event
}

// CurrentActor returns the actor of the innermost active raise, or "".
func (b *Bus) CurrentActor() string {
	if len(b.stack) == 0 {
		return ""
	}
	return b.stack[len(b.stack)-1].Actor
}

// Stack returns the active raises outermost first.
func (b *Bus) Stack() []string {
	names := make([]string, len(b.stack))
	for i, inv := range b.stack {
		names[i] = inv.Event
	}
	return names
}

// EventNames returns every known event name.
func (b *Bus) EventNames() []string {
	names := make([]string, 0, len(b.events))
	for name := range b.events {
		names = append(names, name)
	}
	return names
}

// EventDetail is the introspection view of one event.
type EventDetail struct {
	Name        string            `json:"name"`
	Creator     string            `json:"creator"`
	Description []string          `json:"description,omitempty"`
	Args        map[string]string `json:"args,omitempty"`
	RaiseCount  int               `json:"raise_count"`
	Callbacks   []CallbackInfo    `json:"callbacks"`
	HistoryLen  int               `json:"history_len"`
}

// Detail returns the introspection view for name.
func (b *Bus) Detail(name string) (EventDetail, bool) {
	ev, ok := b.events[name]
	if !ok {
		return EventDetail{}, false
	}
	d := EventDetail{
		Name:        ev.name,
		Creator:     ev.creator,
		Description: ev.description,
		Args:        ev.argDescriptions,
		RaiseCount:  ev.raiseCount,
		Callbacks:   []CallbackInfo{},
		HistoryLen:  ev.history.len(),
	}
	for _, p := range ev.priorities() {
		for _, cb := range ev.buckets[p] {
			d.Callbacks = append(d.Callbacks, CallbackInfo{
				Owner:    cb.owner,
				Name:     cb.name,
				Priority: cb.priority,
				Fired:    cb.fired,
			})
		}
	}
	return d, true
}

// History returns the stored invocations for name, oldest first.
func (b *Bus) History(name string) []*Invocation {
	ev, ok := b.events[name]
	if !ok {
		return nil
	}
	return ev.history.list()
}
