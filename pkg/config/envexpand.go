package config

import (
	"bytes"
	"os"
	"strings"
	"text/template"
)

// ExpandEnv expands environment variables in raw YAML using Go template
// syntax, {{.VAR_NAME}}. A plain $ is left untouched so trigger patterns
// ("^You are hungry\.$") and passwords survive the config file verbatim.
// Missing variables expand to the empty string; validation catches
// required fields left empty. Content that does not parse or execute as
// a template comes back unchanged.
func ExpandEnv(data []byte) []byte {
	tmpl, err := template.New("config").Option("missingkey=zero").Parse(string(data))
	if err != nil {
		return data
	}

	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok && k != "" {
			env[k] = v
		}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, env); err != nil {
		return data
	}
	return buf.Bytes()
}
