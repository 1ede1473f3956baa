package commands

import "context"

// HistoryStore persists the command history across restarts. The
// database package provides the durable implementation; MemoryHistory
// backs tests and ephemeral runs.
type HistoryStore interface {
	Append(ctx context.Context, command string) error
	List(ctx context.Context, limit int) ([]string, error)
	Trim(ctx context.Context, keep int) error
	Clear(ctx context.Context) error
}

// MemoryHistory is an in-memory HistoryStore.
type MemoryHistory struct {
	entries []string
}

// NewMemoryHistory returns an empty in-memory history store.
func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{}
}

func (m *MemoryHistory) Append(_ context.Context, command string) error {
	m.entries = append(m.entries, command)
	return nil
}

// List returns the most recent entries, oldest first.
func (m *MemoryHistory) List(_ context.Context, limit int) ([]string, error) {
	if limit <= 0 || limit >= len(m.entries) {
		return append([]string(nil), m.entries...), nil
	}
	return append([]string(nil), m.entries[len(m.entries)-limit:]...), nil
}

func (m *MemoryHistory) Trim(_ context.Context, keep int) error {
	if keep >= 0 && len(m.entries) > keep {
		m.entries = append([]string(nil), m.entries[len(m.entries)-keep:]...)
	}
	return nil
}

func (m *MemoryHistory) Clear(_ context.Context) error {
	m.entries = nil
	return nil
}

// dedupeKeepLast collapses repeated entries, keeping each command at
// the position of its latest occurrence.
func dedupeKeepLast(entries []string) []string {
	seen := make(map[string]bool, len(entries))
	out := make([]string, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		if seen[entries[i]] {
			continue
		}
		seen[entries[i]] = true
		out = append(out, entries[i])
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
