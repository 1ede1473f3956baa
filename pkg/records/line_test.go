package records

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFormatSpec() FormatSpec {
	return FormatSpec{
		Preamble:      "#BP",
		PreambleColor: "@C",
		ErrorColor:    "@R",
		Separator:     "|",
	}
}

func TestNewLineStripsEndings(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantText string
		wantHad  bool
	}{
		{name: "crlf", input: "hello\r\n", wantText: "hello", wantHad: true},
		{name: "lf only", input: "hello\n", wantText: "hello", wantHad: true},
		{name: "bare cr", input: "hello\r", wantText: "hello", wantHad: true},
		{name: "no endings", input: "hello", wantText: "hello", wantHad: false},
		{name: "empty", input: "", wantText: "", wantHad: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLine(tt.input, OriginMud)
			assert.Equal(t, tt.wantText, l.Text())
			assert.Equal(t, tt.wantText, l.Original())
			assert.Equal(t, tt.wantHad, l.HadLineEndings())
			assert.True(t, l.Send())
			assert.False(t, l.WasModified())
		})
	}
}

func TestSetTextTracksModification(t *testing.T) {
	l := NewLine("original", OriginMud)
	before := len(l.Updates())

	require.True(t, l.SetText("rewritten", "plugins.alias"))
	assert.Equal(t, "rewritten", l.Text())
	assert.Equal(t, "original", l.Original())
	assert.True(t, l.WasModified())
	assert.Len(t, l.Updates(), before+1)

	// writing the same value again is not a modification
	require.True(t, l.SetText("rewritten", "plugins.alias"))
	assert.Len(t, l.Updates(), before+1)
}

func TestLockRejectsMutation(t *testing.T) {
	l := NewLine("keep me", OriginMud)
	l.Lock("test")
	before := len(l.Updates())

	assert.False(t, l.SetText("changed", "test"))
	assert.False(t, l.SetSend(false, "test"))
	assert.False(t, l.SetColor("@R", "test"))

	assert.Equal(t, "keep me", l.Text())
	assert.True(t, l.Send())
	assert.Empty(t, l.Color())
	// every rejected attempt still left an audit entry
	assert.Len(t, l.Updates(), before+3)
}

func TestMarkSentAllowedAfterLock(t *testing.T) {
	l := NewLine("done", OriginMud)
	l.Lock("test")
	l.MarkSent("test")
	assert.True(t, l.WasSent())
}

func TestIdentityNeverChanges(t *testing.T) {
	l := NewLine("first", OriginClient)
	id := l.ID()

	l.SetText("second", "test")
	l.SetSend(false, "test")
	l.Lock("test")

	assert.Equal(t, id, l.ID())
	assert.Equal(t, OriginClient, l.Origin())
	assert.Equal(t, "first", l.Original())
}

func TestFormat(t *testing.T) {
	tests := []struct {
		name  string
		setup func() *Line
		want  string
	}{
		{
			name: "mud line gets crlf",
			setup: func() *Line {
				return NewLine("You are hungry.\r\n", OriginMud)
			},
			want: "You are hungry.\r\n",
		},
		{
			name: "internal line with preamble",
			setup: func() *Line {
				l := NewLine("plugin loaded", OriginInternal)
				l.SetPreamble(true, "test")
				return l
			},
			want: "\x1b[1;36m#BP\x1b[0;37m: plugin loaded\x1b[0m\r\n",
		},
		{
			name: "internal error uses the error color",
			setup: func() *Line {
				l := NewLine("no such command", OriginInternal)
				l.SetPreamble(true, "test")
				l.SetError(true, "test")
				return l
			},
			want: "\x1b[1;31m#BP\x1b[0;37m: no such command\x1b[0m\r\n",
		},
		{
			name: "internal without preamble flag stays bare",
			setup: func() *Line {
				return NewLine("quiet line", OriginInternal)
			},
			want: "quiet line\r\n",
		},
		{
			name: "client doubled separator collapses",
			setup: func() *Line {
				return NewLine("say a||b", OriginClient)
			},
			want: "say a|b\r\n",
		},
		{
			name: "color flag wraps the whole line",
			setup: func() *Line {
				l := NewLine("alert", OriginMud)
				l.SetColor("@G", "test")
				return l
			},
			want: "\x1b[1;32malert\x1b[0m\r\n",
		},
		{
			name: "prompt keeps the cursor",
			setup: func() *Line {
				l := NewLine("hp 100>", OriginMud)
				l.SetPrompt(true, "test")
				return l
			},
			want: "hp 100>",
		},
		{
			name: "telnet frame formats to its payload",
			setup: func() *Line {
				return NewTelnetLine([]byte{0xFF, 0xFB, 0x01}, OriginMud)
			},
			want: "\xff\xfb\x01",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.setup().Format(testFormatSpec()))
		})
	}
}

func TestFormatDoesNotMutate(t *testing.T) {
	l := NewLine("stable", OriginInternal)
	l.SetPreamble(true, "test")

	first := l.Format(testFormatSpec())
	second := l.Format(testFormatSpec())

	assert.Equal(t, first, second)
	assert.Equal(t, "stable", l.Text())
}

func TestFormatLockLaws(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	spec := testFormatSpec()

	properties.Property("locking never changes the formatted bytes", prop.ForAll(
		func(text string, internal, preamble, colored bool) bool {
			origin := OriginMud
			if internal {
				origin = OriginInternal
			}
			l := NewLine(text, origin)
			if preamble {
				l.SetPreamble(true, "prop")
			}
			if colored {
				l.SetColor("@G", "prop")
			}
			before := l.Format(spec)
			l.Lock("prop")
			return l.Format(spec) == before
		},
		gen.AnyString(), gen.Bool(), gen.Bool(), gen.Bool(),
	))

	properties.Property("locked lines ignore writes", prop.ForAll(
		func(original, attempted string) bool {
			l := NewLine(original, OriginMud)
			l.Lock("prop")
			l.SetText(attempted, "prop")
			return l.Text() == strings.TrimRight(original, "\r\n")
		},
		gen.AnyString(), gen.AnyString(),
	))

	properties.TestingRun(t)
}
