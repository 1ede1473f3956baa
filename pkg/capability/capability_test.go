package capability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoFunc(args ...any) (any, error) {
	if len(args) == 0 {
		return nil, nil
	}
	return args[0], nil
}

func TestAddAndCall(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Add("plugins.core.events", "plugins.core.events:raise", echoFunc, "raise an event"))

	c := r.Client("plugins.alias")
	got, err := c.Call("plugins.core.events:raise", "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", got)

	d, ok := r.Detail("plugins.core.events:raise")
	require.True(t, ok)
	assert.Equal(t, 1, d.CallCount)
	assert.Equal(t, 1, d.ByCaller["plugins.alias"])
}

func TestAddRejectsBadNames(t *testing.T) {
	r := NewRegistry(nil)

	for _, name := range []string{"nocolon", ":nofront", "noback:", ""} {
		err := r.Add("plugins.a", name, echoFunc, "")
		assert.ErrorIs(t, err, ErrBadName, "name %q", name)
	}
}

func TestAddExpandsPlaceholder(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Add("plugins.alias", "{plugin-id}:add", echoFunc, ""))
	assert.True(t, r.Has("plugins.alias:add"))
}

func TestAddCollisionNeedsForce(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Add("plugins.first", "shared:thing", echoFunc, ""))

	err := r.Add("plugins.second", "shared:thing", echoFunc, "")
	require.ErrorIs(t, err, ErrExists)

	require.NoError(t, r.Add("plugins.second", "shared:thing", echoFunc, "", Force()))

	d, ok := r.Detail("shared:thing")
	require.True(t, ok)
	assert.Equal(t, "plugins.second", d.Owner)
	assert.Equal(t, "plugins.first", d.OverwrittenOwner)
}

func TestRemovePurgesTopLevel(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Add("plugins.doomed", "plugins.doomed:one", echoFunc, ""))
	require.NoError(t, r.Add("plugins.doomed", "plugins.doomed:two.deep", echoFunc, ""))
	require.NoError(t, r.Add("plugins.kept", "plugins.kept:three", echoFunc, ""))

	assert.Equal(t, 2, r.Remove("plugins.doomed"))

	assert.False(t, r.Has("plugins.doomed:one"))
	assert.False(t, r.Has("plugins.doomed:two.deep"))
	assert.True(t, r.Has("plugins.kept:three"))
}

func TestCallUnknownName(t *testing.T) {
	r := NewRegistry(nil)
	c := r.Client("plugins.alias")

	_, err := c.Call("plugins.missing:thing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "plugins.alias")
}

func TestInstanceEntriesShadow(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Add("plugins.a", "shared:value", func(...any) (any, error) {
		return "process-wide", nil
	}, ""))

	shadowed := r.Client("plugins.b")
	require.NoError(t, shadowed.AddInstance("shared:value", func(...any) (any, error) {
		return "instance", nil
	}, ""))

	got, err := shadowed.Call("shared:value")
	require.NoError(t, err)
	assert.Equal(t, "instance", got)

	// other handles still see the process-wide entry
	plain := r.Client("plugins.c")
	got, err = plain.Call("shared:value")
	require.NoError(t, err)
	assert.Equal(t, "process-wide", got)
}

func TestListFiltersByTopLevel(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Add("plugins.a", "plugins.a:z", echoFunc, ""))
	require.NoError(t, r.Add("plugins.a", "plugins.a:a", echoFunc, ""))
	require.NoError(t, r.Add("plugins.b", "plugins.b:x", echoFunc, ""))

	assert.Equal(t, []string{"plugins.a:a", "plugins.a:z"}, r.List("plugins.a"))
	assert.Len(t, r.List(""), 3)
	assert.Equal(t, []string{"plugins.a", "plugins.b"}, r.TopLevels())
}

func TestArgHelpers(t *testing.T) {
	args := []any{"name", 42}

	s, err := Arg[string](args, 0)
	require.NoError(t, err)
	assert.Equal(t, "name", s)

	n, err := Arg[int](args, 1)
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	_, err = Arg[string](args, 1)
	assert.Error(t, err)

	_, err = Arg[string](args, 5)
	assert.Error(t, err)

	d, err := OptionalArg(args, 9, "fallback")
	require.NoError(t, err)
	assert.Equal(t, "fallback", d)
}
