package settings

import "context"

// Store persists setting values as strings keyed by plugin and name. The
// database-backed SettingsStore satisfies it.
type Store interface {
	Get(ctx context.Context, pluginID, name string) (string, bool, error)
	Put(ctx context.Context, pluginID, name, value string) error
	All(ctx context.Context, pluginID string) (map[string]string, error)
	DeletePlugin(ctx context.Context, pluginID string) error
}

// MemoryStore keeps values for one process. Used when the proxy runs
// without a database and in tests.
type MemoryStore struct {
	data map[string]map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]map[string]string)}
}

func (m *MemoryStore) Get(_ context.Context, pluginID, name string) (string, bool, error) {
	v, ok := m.data[pluginID][name]
	return v, ok, nil
}

func (m *MemoryStore) Put(_ context.Context, pluginID, name, value string) error {
	if m.data[pluginID] == nil {
		m.data[pluginID] = make(map[string]string)
	}
	m.data[pluginID][name] = value
	return nil
}

func (m *MemoryStore) All(_ context.Context, pluginID string) (map[string]string, error) {
	out := make(map[string]string, len(m.data[pluginID]))
	for k, v := range m.data[pluginID] {
		out[k] = v
	}
	return out, nil
}

func (m *MemoryStore) DeletePlugin(_ context.Context, pluginID string) error {
	delete(m.data, pluginID)
	return nil
}
