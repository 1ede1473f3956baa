package netshim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func TestFramerFeed(t *testing.T) {
	tests := []struct {
		name   string
		chunks [][]byte
		want   []Frame
	}{
		{
			name:   "single line",
			chunks: [][]byte{[]byte("hello\r\n")},
			want:   []Frame{{Data: []byte("hello")}},
		},
		{
			name:   "two lines in one chunk",
			chunks: [][]byte{[]byte("a\nb\n")},
			want:   []Frame{{Data: []byte("a")}, {Data: []byte("b")}},
		},
		{
			name:   "line split across chunks",
			chunks: [][]byte{[]byte("par"), []byte("tial\r\n")},
			want:   []Frame{{Data: []byte("partial")}},
		},
		{
			name:   "empty line",
			chunks: [][]byte{[]byte("\r\n")},
			want:   []Frame{{}},
		},
		{
			name:   "bare carriage return dropped",
			chunks: [][]byte{[]byte("a\rb\n")},
			want:   []Frame{{Data: []byte("ab")}},
		},
		{
			name:   "escaped iac is literal data",
			chunks: [][]byte{{'x', IAC, IAC, 'y', '\n'}},
			want:   []Frame{{Data: []byte{'x', IAC, 'y'}}},
		},
		{
			name:   "negotiation",
			chunks: [][]byte{{IAC, WILL, ECHO}},
			want:   []Frame{{Telnet: true, Data: []byte{IAC, WILL, ECHO}}},
		},
		{
			name:   "negotiation split across chunks",
			chunks: [][]byte{{IAC}, {DO}, {ECHO}},
			want:   []Frame{{Telnet: true, Data: []byte{IAC, DO, ECHO}}},
		},
		{
			name:   "lone command",
			chunks: [][]byte{{IAC, 241}},
			want:   []Frame{{Telnet: true, Data: []byte{IAC, 241}}},
		},
		{
			name:   "go-ahead flushes prompt",
			chunks: [][]byte{cat([]byte("HP:10> "), []byte{IAC, GA}, []byte("after\n"))},
			want:   []Frame{{Prompt: true, Data: []byte("HP:10> ")}, {Data: []byte("after")}},
		},
		{
			name:   "bare go-ahead",
			chunks: [][]byte{{IAC, GA}},
			want:   []Frame{{Prompt: true}},
		},
		{
			name:   "subnegotiation",
			chunks: [][]byte{{IAC, SB, 24, 'V', 'T', IAC, SE}},
			want:   []Frame{{Telnet: true, Data: []byte{IAC, SB, 24, 'V', 'T', IAC, SE}}},
		},
		{
			name:   "subnegotiation with escaped iac",
			chunks: [][]byte{{IAC, SB, 24, IAC, IAC, 5, IAC, SE}},
			want:   []Frame{{Telnet: true, Data: []byte{IAC, SB, 24, IAC, IAC, 5, IAC, SE}}},
		},
		{
			name:   "frame inside a line keeps both whole",
			chunks: [][]byte{cat([]byte("ab"), []byte{IAC, WILL, ECHO}, []byte("cd\n"))},
			want: []Frame{
				{Telnet: true, Data: []byte{IAC, WILL, ECHO}},
				{Data: []byte("abcd")},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var fr Framer
			var got []Frame
			for _, chunk := range tt.chunks {
				got = append(got, fr.Feed(chunk)...)
			}
			require.Equal(t, tt.want, got)
		})
	}
}

func TestFramerTail(t *testing.T) {
	var fr Framer
	require.Empty(t, fr.Feed([]byte("prompt>")))
	assert.Equal(t, []byte("prompt>"), fr.Tail())
	assert.Nil(t, fr.Tail())
}

func TestFramerTailExcludesPartialFrame(t *testing.T) {
	var fr Framer
	require.Empty(t, fr.Feed(cat([]byte("abc"), []byte{IAC})))
	assert.Equal(t, []byte("abc"), fr.Tail())
}
