package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient opens a fresh database in a temp directory, running the
// embedded migrations exactly like production startup does.
func newTestClient(t *testing.T) *Client {
	t.Helper()

	client, err := NewClient(context.Background(), filepath.Join(t.TempDir(), "bastion.db"))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = client.Close()
	})
	return client
}

func TestClientMigrationsAndHealth(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.DB().PingContext(ctx))

	health, err := client.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "wal", health.JournalMode)
	assert.Greater(t, health.FileBytes, int64(0))
}

func TestClientReopenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bastion.db")
	ctx := context.Background()

	first, err := NewClient(ctx, path)
	require.NoError(t, err)

	store := NewSettingsStore(first)
	require.NoError(t, store.Put(ctx, "plugins.core.proxy", "mudhost", "mud.example.org"))
	require.NoError(t, first.Close())

	// reopening must see ErrNoChange from migrate and keep the data
	second, err := NewClient(ctx, path)
	require.NoError(t, err)
	defer second.Close()

	value, found, err := NewSettingsStore(second).Get(ctx, "plugins.core.proxy", "mudhost")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "mud.example.org", value)
}

func TestSettingsStore(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	store := NewSettingsStore(client)

	_, found, err := store.Get(ctx, "plugins.core.proxy", "missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Put(ctx, "plugins.core.proxy", "mudport", "4000"))
	require.NoError(t, store.Put(ctx, "plugins.core.proxy", "mudhost", "mud.example.org"))
	require.NoError(t, store.Put(ctx, "plugins.alias", "count", "3"))

	// overwrite
	require.NoError(t, store.Put(ctx, "plugins.core.proxy", "mudport", "5000"))

	value, found, err := store.Get(ctx, "plugins.core.proxy", "mudport")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "5000", value)

	all, err := store.All(ctx, "plugins.core.proxy")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"mudport": "5000",
		"mudhost": "mud.example.org",
	}, all)

	require.NoError(t, store.DeletePlugin(ctx, "plugins.core.proxy"))

	all, err = store.All(ctx, "plugins.core.proxy")
	require.NoError(t, err)
	assert.Empty(t, all)

	// other plugins untouched
	value, found, err = store.Get(ctx, "plugins.alias", "count")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "3", value)
}

func TestHistoryStore(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	store := NewHistoryStore(client)

	for _, cmd := range []string{"#bp.list", "#bp.proxy.info", "#bp.help", "#bp.history"} {
		require.NoError(t, store.Append(ctx, cmd))
	}

	// oldest first, bounded by limit
	commands, err := store.List(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"#bp.proxy.info", "#bp.help", "#bp.history"}, commands)

	require.NoError(t, store.Trim(ctx, 2))

	commands, err = store.List(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"#bp.help", "#bp.history"}, commands)

	// trimming below the row count again is a no-op
	require.NoError(t, store.Trim(ctx, 5))
	commands, err = store.List(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, commands, 2)

	require.NoError(t, store.Clear(ctx))
	commands, err = store.List(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, commands)
}

func TestStateStore(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	store := NewStateStore(client)

	require.NoError(t, store.Put(ctx, "plugins.alias", "aliases", `{"gb":"get bread"}`))
	require.NoError(t, store.Put(ctx, "plugins.alias", "hits", "12"))
	require.NoError(t, store.Put(ctx, "plugins.core.clients", "banned", `["10.0.0.5"]`))

	value, found, err := store.Get(ctx, "plugins.alias", "aliases")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `{"gb":"get bread"}`, value)

	// overwrite
	require.NoError(t, store.Put(ctx, "plugins.alias", "hits", "13"))
	value, _, err = store.Get(ctx, "plugins.alias", "hits")
	require.NoError(t, err)
	assert.Equal(t, "13", value)

	all, err := store.All(ctx, "plugins.alias")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, store.Delete(ctx, "plugins.alias", "hits"))
	_, found, err = store.Get(ctx, "plugins.alias", "hits")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.DeletePlugin(ctx, "plugins.alias"))
	all, err = store.All(ctx, "plugins.alias")
	require.NoError(t, err)
	assert.Empty(t, all)

	_, found, err = store.Get(ctx, "plugins.core.clients", "banned")
	require.NoError(t, err)
	assert.True(t, found)
}
