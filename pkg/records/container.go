package records

import (
	"log/slog"
	"strings"
)

// Container is an ordered sequence of lines with its own update log. Raw
// strings are coerced to lines on append. Locking a container cascades to
// every line it holds.
type Container struct {
	lines   []*Line
	locked  bool
	updates []Update
}

// NewContainer builds a container around existing lines.
func NewContainer(lines ...*Line) *Container {
	c := &Container{lines: append([]*Line(nil), lines...)}
	c.updates = append(c.updates, newUpdate(FlagInfo, "created", "", c.summary()))
	return c
}

// NewContainerFromStrings coerces each string into an io line with the
// given origin.
func NewContainerFromStrings(origin Origin, texts ...string) *Container {
	lines := make([]*Line, 0, len(texts))
	for _, t := range texts {
		lines = append(lines, NewLine(t, origin))
	}
	return NewContainer(lines...)
}

func (c *Container) Len() int       { return len(c.lines) }
func (c *Container) Lines() []*Line { return c.lines }
func (c *Container) Locked() bool   { return c.locked }

// Updates returns the container's own history, not including the per-line
// logs.
func (c *Container) Updates() []Update { return c.updates }

func (c *Container) summary() string {
	parts := make([]string, 0, len(c.lines))
	for _, l := range c.lines {
		parts = append(parts, l.Text())
	}
	return strings.Join(parts, " | ")
}

func (c *Container) rejectLocked(action, actor string) {
	c.updates = append(c.updates, newUpdate(FlagInfo, action+" rejected, container is locked", actor, ""))
	slog.Warn("mutation of locked container rejected", "action", action, "actor", actor)
}

// Append adds a line to the end.
func (c *Container) Append(l *Line, actor string) bool {
	if c.locked {
		c.rejectLocked("append", actor)
		return false
	}
	c.lines = append(c.lines, l)
	c.updates = append(c.updates, newUpdate(FlagModify, "append", actor, l.Text()))
	return true
}

// AppendText coerces text into a line and appends it.
func (c *Container) AppendText(text string, origin Origin, actor string) bool {
	if c.locked {
		c.rejectLocked("append", actor)
		return false
	}
	return c.Append(NewLine(text, origin), actor)
}

// Insert places a line at position i; out-of-range positions clamp to the
// nearest end.
func (c *Container) Insert(i int, l *Line, actor string) bool {
	if c.locked {
		c.rejectLocked("insert", actor)
		return false
	}
	if i < 0 {
		i = 0
	}
	if i > len(c.lines) {
		i = len(c.lines)
	}
	c.lines = append(c.lines, nil)
	copy(c.lines[i+1:], c.lines[i:])
	c.lines[i] = l
	c.updates = append(c.updates, newUpdate(FlagModify, "insert", actor, l.Text()))
	return true
}

// Replace swaps the whole sequence.
func (c *Container) Replace(lines []*Line, actor string) bool {
	if c.locked {
		c.rejectLocked("replace", actor)
		return false
	}
	c.lines = append([]*Line(nil), lines...)
	c.updates = append(c.updates, newUpdate(FlagModify, "replace", actor, c.summary()))
	return true
}

// Lock freezes the container and every line in it.
func (c *Container) Lock(actor string) {
	if c.locked {
		return
	}
	c.locked = true
	for _, l := range c.lines {
		l.Lock(actor)
	}
	c.updates = append(c.updates, newUpdate(FlagInfo, "locked", actor, ""))
}
