package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bastionmud/bastion/pkg/plugin"
)

func TestSplitArgs(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"one", []string{"one"}},
		{"one two  three", []string{"one", "two", "three"}},
		{`say "hello there" now`, []string{"say", "hello there", "now"}},
		{`'a b' c`, []string{"a b", "c"}},
		{`pre"fix ed"post`, []string{"prefix edpost"}},
	}
	for _, tc := range cases {
		got, err := splitArgs(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestSplitArgsUnbalancedQuote(t *testing.T) {
	_, err := splitArgs(`say "unterminated`)
	assert.Error(t, err)
}

func TestCoerceArg(t *testing.T) {
	v, err := coerceArg("int", "42")
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	_, err = coerceArg("int", "forty")
	assert.Error(t, err)

	v, err = coerceArg("bool", "On")
	require.NoError(t, err)
	assert.Equal(t, true, v)

	v, err = coerceArg("color", "@G")
	require.NoError(t, err)
	assert.Equal(t, "@G", v)

	_, err = coerceArg("color", "green")
	assert.Error(t, err)

	v, err = coerceArg("str", "as typed")
	require.NoError(t, err)
	assert.Equal(t, "as typed", v)
}

func TestBindArgs(t *testing.T) {
	decl := []plugin.CommandArg{
		{Name: "plugin", Type: "str"},
		{Name: "count", Type: "int", Default: 1},
		{Name: "rest", Type: "str", Default: "", Rest: true},
	}

	args, err := bindArgs(decl, []string{"core.proxy", "3", "a", "b"})
	require.NoError(t, err)
	assert.Equal(t, "core.proxy", args["plugin"])
	assert.Equal(t, 3, args["count"])
	assert.Equal(t, "a b", args["rest"])

	args, err = bindArgs(decl, []string{"core.proxy"})
	require.NoError(t, err)
	assert.Equal(t, 1, args["count"])
	assert.Equal(t, "", args["rest"])

	_, err = bindArgs(decl, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "plugin")
}

func TestBindArgsChoices(t *testing.T) {
	decl := []plugin.CommandArg{
		{Name: "action", Type: "str", Default: "show", Choices: []string{"show", "clear"}},
	}

	args, err := bindArgs(decl, []string{"clear"})
	require.NoError(t, err)
	assert.Equal(t, "clear", args["action"])

	_, err = bindArgs(decl, []string{"purge"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "one of")
}

func TestUsageLines(t *testing.T) {
	spec := &plugin.CommandSpec{
		PluginID: "plugins.core.commands",
		Name:     "history",
		Help:     "show or clear the command history",
		Args: []plugin.CommandArg{
			{Name: "action", Type: "str", Default: "show", Choices: []string{"show", "clear"}},
		},
	}
	lines := usageLines("#bp", spec)
	require.NotEmpty(t, lines)
	assert.Contains(t, lines[0], "#bp.core.commands.history")
	assert.Contains(t, lines[0], "[action]")
}
