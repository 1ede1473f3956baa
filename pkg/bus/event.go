package bus

import (
	"sort"
	"time"
)

// CallbackFunc is invoked with the in-flight data record of a raise.
// Returning an error logs it and dispatch continues; an error wrapping
// context.Canceled aborts the whole raise.
type CallbackFunc func(*Record) error

type callback struct {
	owner    string
	name     string
	priority int
	fn       CallbackFunc
	fired    int
}

func (c *callback) key() string { return c.owner + ":" + c.name }

// CallbackInfo is the introspection view of a registered callback.
type CallbackInfo struct {
	Owner    string `json:"owner"`
	Name     string `json:"name"`
	Priority int    `json:"priority"`
	Fired    int    `json:"fired"`
}

// Event holds one event definition with its priority buckets and a bounded
// ring of past invocations.
type Event struct {
	name            string
	creator         string
	description     []string
	argDescriptions map[string]string
	buckets         map[int][]*callback
	raiseCount      int
	history         *invocationRing
}

func newEvent(name, creator string, description []string, argDescriptions map[string]string, historySize int) *Event {
	return &Event{
		name:            name,
		creator:         creator,
		description:     description,
		argDescriptions: argDescriptions,
		buckets:         map[int][]*callback{},
		history:         newInvocationRing(historySize),
	}
}

// priorities returns the bucket keys in ascending order.
func (e *Event) priorities() []int {
	keys := make([]int, 0, len(e.buckets))
	for p := range e.buckets {
		keys = append(keys, p)
	}
	sort.Ints(keys)
	return keys
}

func (e *Event) find(owner, name string) (*callback, bool) {
	for _, bucket := range e.buckets {
		for _, cb := range bucket {
			if cb.owner == owner && cb.name == name {
				return cb, true
			}
		}
	}
	return nil, false
}

func (e *Event) register(cb *callback) bool {
	if _, exists := e.find(cb.owner, cb.name); exists {
		return false
	}
	e.buckets[cb.priority] = append(e.buckets[cb.priority], cb)
	return true
}

func (e *Event) unregister(owner, name string) bool {
	for p, bucket := range e.buckets {
		for i, cb := range bucket {
			if cb.owner == owner && cb.name == name {
				e.buckets[p] = append(bucket[:i], bucket[i+1:]...)
				if len(e.buckets[p]) == 0 {
					delete(e.buckets, p)
				}
				return true
			}
		}
	}
	return false
}

func (e *Event) callbackCount() int {
	n := 0
	for _, bucket := range e.buckets {
		n += len(bucket)
	}
	return n
}

// Invocation is one raise in progress, or a finished raise kept in the
// event's history ring.
type Invocation struct {
	Event    string
	Actor    string
	Started  time.Time
	Passes   int
	record   *Record
	executed map[string]bool
	current  string
}

// Record returns the data record of this invocation.
func (inv *Invocation) Record() *Record { return inv.record }

// CurrentCallback returns the key of the callback running right now, or ""
// between callbacks.
func (inv *Invocation) CurrentCallback() string { return inv.current }

// invocationRing keeps the most recent invocations, evicting the oldest
// once full.
type invocationRing struct {
	entries []*Invocation
	next    int
	full    bool
}

func newInvocationRing(size int) *invocationRing {
	if size < 1 {
		size = 1
	}
	return &invocationRing{entries: make([]*Invocation, size)}
}

func (r *invocationRing) add(inv *Invocation) {
	r.entries[r.next] = inv
	r.next++
	if r.next == len(r.entries) {
		r.next = 0
		r.full = true
	}
}

// list returns the stored invocations oldest first.
func (r *invocationRing) list() []*Invocation {
	if !r.full {
		return append([]*Invocation(nil), r.entries[:r.next]...)
	}
	out := make([]*Invocation, 0, len(r.entries))
	out = append(out, r.entries[r.next:]...)
	out = append(out, r.entries[:r.next]...)
	return out
}

func (r *invocationRing) len() int {
	if r.full {
		return len(r.entries)
	}
	return r.next
}
