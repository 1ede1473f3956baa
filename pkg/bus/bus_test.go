package bus

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBus() *Bus {
	return New(nil)
}

func TestAddEventRejectsRedefinition(t *testing.T) {
	b := testBus()

	require.NoError(t, b.AddEvent("ev_test", "plugins.core.events", []string{"a test event"}, nil))

	err := b.AddEvent("ev_test", "plugins.other", nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEventExists)
}

func TestAddEventAdoptsPlaceholder(t *testing.T) {
	b := testBus()

	// registering before the definition creates a placeholder
	b.RegisterCallback("ev_early", "plugins.a", "cb", 50, func(*Record) error { return nil })

	require.NoError(t, b.AddEvent("ev_early", "plugins.core.events", []string{"defined late"}, nil))

	d, ok := b.Detail("ev_early")
	require.True(t, ok)
	assert.Equal(t, "plugins.core.events", d.Creator)
	assert.Len(t, d.Callbacks, 1)
}

func TestRegisterCallbackIsIdempotent(t *testing.T) {
	b := testBus()
	fn := func(*Record) error { return nil }

	assert.True(t, b.RegisterCallback("ev_test", "plugins.a", "cb", 50, fn))
	assert.False(t, b.RegisterCallback("ev_test", "plugins.a", "cb", 50, fn))

	d, _ := b.Detail("ev_test")
	assert.Len(t, d.Callbacks, 1)
}

func TestUnregisterRoundTrip(t *testing.T) {
	b := testBus()
	fn := func(*Record) error { return nil }

	before, _ := b.Detail("ev_test")

	require.True(t, b.RegisterCallback("ev_test", "plugins.a", "cb", 50, fn))
	require.True(t, b.UnregisterCallback("ev_test", "plugins.a", "cb"))
	assert.False(t, b.UnregisterCallback("ev_test", "plugins.a", "cb"))

	after, _ := b.Detail("ev_test")
	assert.Equal(t, before.Callbacks, after.Callbacks)
	assert.False(t, b.IsRegistered("ev_test", "plugins.a", "cb"))
}

func TestRaisePriorityOrder(t *testing.T) {
	b := testBus()
	var order []string

	add := func(owner, name string, prio int) {
		b.RegisterCallback("ev_test", owner, name, prio, func(*Record) error {
			order = append(order, name)
			return nil
		})
	}

	// registration order within the same bucket is preserved
	add("plugins.a", "second", 50)
	add("plugins.b", "third", 50)
	add("plugins.c", "first", 10)
	add("plugins.d", "last", 90)

	_, err := b.Raise("ev_test", nil, "test")
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third", "last"}, order)
}

func TestRaiseRunsEachCallbackOnce(t *testing.T) {
	b := testBus()
	counts := map[string]int{}

	for i := 0; i < 5; i++ {
		name := fmt.Sprintf("cb%d", i)
		b.RegisterCallback("ev_test", "plugins.a", name, 50, func(*Record) error {
			counts[name]++
			return nil
		})
	}

	_, err := b.Raise("ev_test", nil, "test")
	require.NoError(t, err)
	for name, n := range counts {
		assert.Equal(t, 1, n, "callback %s", name)
	}

	d, _ := b.Detail("ev_test")
	for _, cb := range d.Callbacks {
		assert.Equal(t, 1, cb.Fired)
	}
}

func TestRaiseRunsCallbacksRegisteredMidDispatch(t *testing.T) {
	b := testBus()
	var order []string

	b.RegisterCallback("ev_test", "plugins.a", "registrar", 50, func(*Record) error {
		order = append(order, "registrar")
		b.RegisterCallback("ev_test", "plugins.a", "late", 10, func(*Record) error {
			order = append(order, "late")
			return nil
		})
		return nil
	})

	_, err := b.Raise("ev_test", nil, "test")
	require.NoError(t, err)
	// the late callback still runs inside the same raise, on a later pass
	assert.Equal(t, []string{"registrar", "late"}, order)
}

func TestRaiseDataListDispatchesPerElement(t *testing.T) {
	b := testBus()
	var seen []string

	b.RegisterCallback("ev_test", "plugins.a", "collect", 50, func(r *Record) error {
		seen = append(seen, r.String("line"))
		return nil
	})

	items := []any{"one", "two", "three"}
	_, err := b.Raise("ev_test", map[string]any{"client_id": "c1"}, "test",
		WithDataList(items, "line"))
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two", "three"}, seen)

	d, _ := b.Detail("ev_test")
	assert.Equal(t, 3, d.RaiseCount, "each element is one dispatch")
}

func TestRaiseContinuesPastFailures(t *testing.T) {
	b := testBus()
	ran := false

	b.RegisterCallback("ev_test", "plugins.bad", "fails", 10, func(*Record) error {
		return errors.New("boom")
	})
	b.RegisterCallback("ev_test", "plugins.bad", "panics", 20, func(*Record) error {
		panic("much worse")
	})
	b.RegisterCallback("ev_test", "plugins.good", "runs", 30, func(*Record) error {
		ran = true
		return nil
	})

	_, err := b.Raise("ev_test", nil, "test")
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestRaisePropagatesCancellation(t *testing.T) {
	b := testBus()
	reached := false

	b.RegisterCallback("ev_test", "plugins.a", "cancels", 10, func(*Record) error {
		return fmt.Errorf("shutting down: %w", context.Canceled)
	})
	b.RegisterCallback("ev_test", "plugins.a", "after", 20, func(*Record) error {
		reached = true
		return nil
	})

	_, err := b.Raise("ev_test", nil, "test")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, reached)
	// the stack unwound despite the abort
	assert.Empty(t, b.Stack())
}

func TestReentrantRaiseStacks(t *testing.T) {
	b := testBus()
	var innerStack []string
	var sawOuterRecord, sawInnerRecord string

	b.RegisterCallback("ev_outer", "plugins.a", "outer", 50, func(r *Record) error {
		sawOuterRecord = b.CurrentRecord().Event()
		_, err := b.Raise("ev_inner", nil, "plugins.a")
		return err
	})
	b.RegisterCallback("ev_inner", "plugins.a", "inner", 50, func(r *Record) error {
		innerStack = append([]string(nil), b.Stack()...)
		sawInnerRecord = b.CurrentRecord().Event()
		return nil
	})

	_, err := b.Raise("ev_outer", nil, "test")
	require.NoError(t, err)

	assert.Equal(t, []string{"ev_outer", "ev_inner"}, innerStack)
	assert.Equal(t, "ev_outer", sawOuterRecord)
	assert.Equal(t, "ev_inner", sawInnerRecord)
	assert.Empty(t, b.Stack())
	assert.Nil(t, b.CurrentRecord())
}

func TestRecursiveRaiseKeepsStatePerInvocation(t *testing.T) {
	b := testBus()
	depth := 0
	runs := 0

	b.RegisterCallback("ev_test", "plugins.a", "recurse", 50, func(*Record) error {
		runs++
		if depth < 2 {
			depth++
			_, err := b.Raise("ev_test", nil, "plugins.a")
			return err
		}
		return nil
	})

	_, err := b.Raise("ev_test", nil, "test")
	require.NoError(t, err)
	assert.Equal(t, 3, runs, "each nested invocation dispatches independently")
}

func TestRemoveOwnerPurgesCallbacks(t *testing.T) {
	b := testBus()
	fn := func(*Record) error { return nil }

	b.RegisterCallback("ev_one", "plugins.doomed", "a", 50, fn)
	b.RegisterCallback("ev_two", "plugins.doomed", "b", 50, fn)
	b.RegisterCallback("ev_two", "plugins.kept", "c", 50, fn)

	assert.Equal(t, 2, b.RemoveOwner("plugins.doomed"))

	assert.False(t, b.IsRegistered("ev_one", "plugins.doomed", "a"))
	assert.False(t, b.IsRegistered("ev_two", "plugins.doomed", "b"))
	assert.True(t, b.IsRegistered("ev_two", "plugins.kept", "c"))
}

func TestHistoryRingEvictsOldest(t *testing.T) {
	b := testBus()
	b.historySize = 3
	require.NoError(t, b.AddEvent("ev_test", "test", nil, nil))

	for i := 0; i < 5; i++ {
		_, err := b.Raise("ev_test", map[string]any{"n": i}, fmt.Sprintf("actor%d", i))
		require.NoError(t, err)
	}

	history := b.History("ev_test")
	require.Len(t, history, 3)
	assert.Equal(t, "actor2", history[0].Actor)
	assert.Equal(t, "actor4", history[2].Actor)

	d, _ := b.Detail("ev_test")
	assert.Equal(t, 5, d.RaiseCount)
}

func TestRecordTypedAccess(t *testing.T) {
	r := NewRecord("ev_test", map[string]any{
		"name":  "gimli",
		"count": 3,
		"flag":  true,
	})

	assert.Equal(t, "gimli", r.String("name"))
	assert.Equal(t, 3, r.Int("count"))
	assert.True(t, r.Bool("flag"))
	assert.Equal(t, "", r.String("missing"))

	v, ok := Value[int](r, "count")
	require.True(t, ok)
	assert.Equal(t, 3, v)

	_, ok = Value[string](r, "count")
	assert.False(t, ok)
}
