package records

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContainerCoercesStrings(t *testing.T) {
	c := NewContainerFromStrings(OriginClient, "north", "look")

	require.Equal(t, 2, c.Len())
	assert.Equal(t, "north", c.Lines()[0].Text())
	assert.Equal(t, "look", c.Lines()[1].Text())
	for _, l := range c.Lines() {
		assert.Equal(t, OriginClient, l.Origin())
		assert.Equal(t, KindIO, l.Kind())
	}
}

func TestContainerAppendAndInsert(t *testing.T) {
	c := NewContainerFromStrings(OriginMud, "one", "three")

	require.True(t, c.Insert(1, NewLine("two", OriginMud), "test"))
	require.True(t, c.AppendText("four", OriginMud, "test"))

	texts := make([]string, 0, c.Len())
	for _, l := range c.Lines() {
		texts = append(texts, l.Text())
	}
	assert.Equal(t, []string{"one", "two", "three", "four"}, texts)
}

func TestContainerInsertClampsOutOfRange(t *testing.T) {
	c := NewContainerFromStrings(OriginMud, "middle")

	require.True(t, c.Insert(-5, NewLine("first", OriginMud), "test"))
	require.True(t, c.Insert(99, NewLine("last", OriginMud), "test"))

	assert.Equal(t, "first", c.Lines()[0].Text())
	assert.Equal(t, "last", c.Lines()[2].Text())
}

func TestContainerReplace(t *testing.T) {
	c := NewContainerFromStrings(OriginClient, "old")
	replacement := []*Line{NewLine("new one", OriginClient), NewLine("new two", OriginClient)}

	require.True(t, c.Replace(replacement, "test"))
	require.Equal(t, 2, c.Len())
	assert.Equal(t, "new one", c.Lines()[0].Text())
}

func TestContainerLockCascades(t *testing.T) {
	c := NewContainerFromStrings(OriginMud, "a", "b")
	c.Lock("test")

	assert.True(t, c.Locked())
	for _, l := range c.Lines() {
		assert.True(t, l.Locked())
	}

	before := c.Len()
	assert.False(t, c.AppendText("rejected", OriginMud, "test"))
	assert.False(t, c.Replace(nil, "test"))
	assert.Equal(t, before, c.Len())
}
