package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandEnv(t *testing.T) {
	tests := []struct {
		name  string
		input string
		env   map[string]string
		want  string
	}{
		{
			name:  "simple substitution with {{.VAR}}",
			input: "password: {{.PROXY_PW}}",
			env:   map[string]string{"PROXY_PW": "secret123"},
			want:  "password: secret123",
		},
		{
			name:  "literal ${VAR} is NOT expanded (no collision)",
			input: "pattern: ${USER_ID}",
			env:   map[string]string{"USER_ID": "123"},
			want:  "pattern: ${USER_ID}",
		},
		{
			name:  "literal $ in trigger patterns is NOT touched",
			input: `pattern: ^You are hungry\.$`,
			env:   map[string]string{},
			want:  `pattern: ^You are hungry\.$`,
		},
		{
			name:  "multiple substitutions in one line",
			input: "addr: {{.MUD_HOST}}:{{.MUD_PORT}}",
			env: map[string]string{
				"MUD_HOST": "mud.example.org",
				"MUD_PORT": "4000",
			},
			want: "addr: mud.example.org:4000",
		},
		{
			name:  "missing variable expands to empty",
			input: "password: {{.MISSING_VAR}}",
			env:   map[string]string{},
			want:  "password: ",
		},
		{
			name:  "malformed template passes through unchanged",
			input: "broken: {{.UNCLOSED",
			env:   map[string]string{},
			want:  "broken: {{.UNCLOSED",
		},
		{
			name:  "no template syntax passes through",
			input: "listen:\n  port: 9999\n",
			env:   map[string]string{},
			want:  "listen:\n  port: 9999\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			got := ExpandEnv([]byte(tt.input))

			assert.Equal(t, tt.want, string(got))
		})
	}
}
