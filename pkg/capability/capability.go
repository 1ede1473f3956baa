// Package capability implements the registry of callable endpoints that
// plugins expose to each other. Entries live in a flat table keyed by
// "<top-level>:<dotted.path>"; callers go through a Client handle bound to
// their plugin id so every call is attributed for the per-caller
// statistics.
//
// Like the event bus, the registry is confined to the dispatcher goroutine.
package capability

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

var (
	// ErrNotFound is returned when a capability name is not registered.
	ErrNotFound = errors.New("not in the capability table")
	// ErrExists is returned when adding a name that is taken and force
	// was not given.
	ErrExists = errors.New("capability already registered")
	// ErrBadName is returned for names without a single top-level colon.
	ErrBadName = errors.New("capability name must be <top-level>:<dotted.path>")
)

// Func is the uniform callable shape of every endpoint.
type Func func(args ...any) (any, error)

// StatItem accumulates call counts for one entry.
type StatItem struct {
	Total    int
	ByCaller map[string]int
}

func (s *StatItem) record(caller string) {
	s.Total++
	if s.ByCaller == nil {
		s.ByCaller = map[string]int{}
	}
	s.ByCaller[caller]++
}

type entry struct {
	fullName    string
	owner       string
	description string
	instance    bool
	fn          Func
	stats       StatItem
	overwritten *entry
}

// Detail is the introspection view of one entry.
type Detail struct {
	FullName         string         `json:"full_name"`
	Owner            string         `json:"owner"`
	Description      string         `json:"description,omitempty"`
	Instance         bool           `json:"instance"`
	CallCount        int            `json:"call_count"`
	ByCaller         map[string]int `json:"by_caller,omitempty"`
	OverwrittenOwner string         `json:"overwritten_owner,omitempty"`
}

func (e *entry) detail() Detail {
	d := Detail{
		FullName:    e.fullName,
		Owner:       e.owner,
		Description: e.description,
		Instance:    e.instance,
		CallCount:   e.stats.Total,
		ByCaller:    e.stats.ByCaller,
	}
	if e.overwritten != nil {
		d.OverwrittenOwner = e.overwritten.owner
	}
	return d
}

// Registry is the process-wide capability table.
type Registry struct {
	log     *slog.Logger
	entries map[string]*entry
}

// NewRegistry creates an empty registry.
func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		log:     log.With("component", "capability"),
		entries: map[string]*entry{},
	}
}

// AddOption adjusts one Add.
type AddOption func(*addOptions)

type addOptions struct {
	force bool
}

// Force replaces an existing entry, keeping the predecessor for
// introspection.
func Force() AddOption {
	return func(o *addOptions) { o.force = true }
}

func splitName(fullName string) (topLevel, sub string, err error) {
	top, rest, found := strings.Cut(fullName, ":")
	if !found || top == "" || rest == "" {
		return "", "", fmt.Errorf("%q: %w", fullName, ErrBadName)
	}
	return top, rest, nil
}

// Add registers fn under fullName for owner. A "{plugin-id}" placeholder
// in the name expands to the owner id. Adding a taken name fails unless
// Force is given, in which case the predecessor is preserved on the new
// entry.
func (r *Registry) Add(owner, fullName string, fn Func, description string, opts ...AddOption) error {
	var o addOptions
	for _, opt := range opts {
		opt(&o)
	}

	fullName = strings.ReplaceAll(fullName, "{plugin-id}", owner)
	if _, _, err := splitName(fullName); err != nil {
		return err
	}

	existing, taken := r.entries[fullName]
	if taken && !o.force {
		return fmt.Errorf("%q owned by %q: %w", fullName, existing.owner, ErrExists)
	}

	e := &entry{
		fullName:    fullName,
		owner:       owner,
		description: description,
		fn:          fn,
	}
	if taken {
		e.overwritten = existing
		r.log.Info("capability overwritten",
			"name", fullName, "owner", owner, "previous", existing.owner)
	}
	r.entries[fullName] = e
	return nil
}

// Remove drops every entry under topLevel. Plugin unload uses it for
// atomic release; it returns how many entries were removed.
func (r *Registry) Remove(topLevel string) int {
	prefix := topLevel + ":"
	removed := 0
	for name := range r.entries {
		if strings.HasPrefix(name, prefix) {
			delete(r.entries, name)
			removed++
		}
	}
	return removed
}

// Has reports whether fullName is registered.
func (r *Registry) Has(fullName string) bool {
	_, ok := r.entries[fullName]
	return ok
}

// List returns registered names, filtered to one top-level when topLevel
// is not empty, sorted.
func (r *Registry) List(topLevel string) []string {
	prefix := ""
	if topLevel != "" {
		prefix = topLevel + ":"
	}
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		if prefix == "" || strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// TopLevels returns the distinct top-level segments in the table, sorted.
func (r *Registry) TopLevels() []string {
	seen := map[string]bool{}
	for name := range r.entries {
		top, _, _ := strings.Cut(name, ":")
		seen[top] = true
	}
	tops := make([]string, 0, len(seen))
	for t := range seen {
		tops = append(tops, t)
	}
	sort.Strings(tops)
	return tops
}

// Detail returns the introspection view for fullName.
func (r *Registry) Detail(fullName string) (Detail, bool) {
	e, ok := r.entries[fullName]
	if !ok {
		return Detail{}, false
	}
	return e.detail(), true
}

// call resolves and invokes an entry, attributing the call to caller.
func (r *Registry) call(caller, fullName string, e *entry, args []any) (any, error) {
	if caller == "" {
		caller = "unknown"
		r.log.Warn("capability call with no caller identity", "name", fullName)
	}
	e.stats.record(caller)
	return e.fn(args...)
}

// Client returns a handle bound to owner. All calls through the handle are
// attributed to owner, and instance-scoped entries added on the handle
// shadow the process-wide table for that handle only.
func (r *Registry) Client(owner string) *Client {
	return &Client{registry: r, owner: owner}
}

// Client is a caller-bound view of the registry.
type Client struct {
	registry *Registry
	owner    string
	instance map[string]*entry
}

// Owner returns the plugin id the handle is bound to.
func (c *Client) Owner() string { return c.owner }

// AddInstance registers an endpoint visible only through this handle,
// shadowing any process-wide entry of the same name.
func (c *Client) AddInstance(fullName string, fn Func, description string) error {
	fullName = strings.ReplaceAll(fullName, "{plugin-id}", c.owner)
	if _, _, err := splitName(fullName); err != nil {
		return err
	}
	if c.instance == nil {
		c.instance = map[string]*entry{}
	}
	c.instance[fullName] = &entry{
		fullName:    fullName,
		owner:       c.owner,
		description: description,
		instance:    true,
		fn:          fn,
	}
	return nil
}

// Has reports whether fullName resolves through this handle.
func (c *Client) Has(fullName string) bool {
	if _, ok := c.instance[fullName]; ok {
		return true
	}
	return c.registry.Has(fullName)
}

// Call invokes fullName, checking instance entries before the
// process-wide table.
func (c *Client) Call(fullName string, args ...any) (any, error) {
	if e, ok := c.instance[fullName]; ok {
		return c.registry.call(c.owner, fullName, e, args)
	}
	e, ok := c.registry.entries[fullName]
	if !ok {
		return nil, fmt.Errorf("%s: %q: %w", c.owner, fullName, ErrNotFound)
	}
	return c.registry.call(c.owner, fullName, e, args)
}

// Arg extracts argument i of a capability call as T.
func Arg[T any](args []any, i int) (T, error) {
	var zero T
	if i < 0 || i >= len(args) {
		return zero, fmt.Errorf("argument %d missing (%d given)", i, len(args))
	}
	v, ok := args[i].(T)
	if !ok {
		return zero, fmt.Errorf("argument %d: expected %T, got %T", i, zero, args[i])
	}
	return v, nil
}

// OptionalArg extracts argument i as T, falling back to def when absent.
func OptionalArg[T any](args []any, i int, def T) (T, error) {
	if i < 0 || i >= len(args) {
		return def, nil
	}
	v, ok := args[i].(T)
	if !ok {
		return def, fmt.Errorf("argument %d: expected %T, got %T", i, def, args[i])
	}
	return v, nil
}
