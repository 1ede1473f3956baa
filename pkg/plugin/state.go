package plugin

import "context"

// StateStore persists per-plugin key/value state between runs. The
// database-backed store satisfies it; MemoryState covers runs without a
// database.
type StateStore interface {
	Get(ctx context.Context, pluginID, key string) (string, bool, error)
	Put(ctx context.Context, pluginID, key, value string) error
	All(ctx context.Context, pluginID string) (map[string]string, error)
	Delete(ctx context.Context, pluginID, key string) error
	DeletePlugin(ctx context.Context, pluginID string) error
}

// MemoryState is a StateStore that lives for one process. State written
// through it does not survive a restart. Access is serialized by the
// dispatcher, like every other engine structure.
type MemoryState struct {
	data map[string]map[string]string
}

// NewMemoryState creates an empty in-memory store.
func NewMemoryState() *MemoryState {
	return &MemoryState{data: make(map[string]map[string]string)}
}

func (m *MemoryState) Get(_ context.Context, pluginID, key string) (string, bool, error) {
	v, ok := m.data[pluginID][key]
	return v, ok, nil
}

func (m *MemoryState) Put(_ context.Context, pluginID, key, value string) error {
	if m.data[pluginID] == nil {
		m.data[pluginID] = make(map[string]string)
	}
	m.data[pluginID][key] = value
	return nil
}

func (m *MemoryState) All(_ context.Context, pluginID string) (map[string]string, error) {
	out := make(map[string]string, len(m.data[pluginID]))
	for k, v := range m.data[pluginID] {
		out[k] = v
	}
	return out, nil
}

func (m *MemoryState) Delete(_ context.Context, pluginID, key string) error {
	delete(m.data[pluginID], key)
	return nil
}

func (m *MemoryState) DeletePlugin(_ context.Context, pluginID string) error {
	delete(m.data, pluginID)
	return nil
}
