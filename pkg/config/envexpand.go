package config

import (
	"bytes"
	"os"
	"strings"
	"text/template"
)

// ExpandEnv substitutes environment variables in raw config bytes using Go
// template syntax, {{.VAR_NAME}}. Plain $VAR expansion is deliberately not
// supported: config values routinely carry literal dollar signs (regexes,
// passwords, shell fragments) that $-expansion would mangle.
//
// Unset variables render as empty strings and are caught later by field
// validation. If the content does not parse as a template it is returned
// untouched so the JSON decoder reports the real problem.
func ExpandEnv(data []byte) []byte {
	tmpl, err := template.New("config").Option("missingkey=zero").Parse(string(data))
	if err != nil {
		return data
	}

	vars := make(map[string]string)
	for _, kv := range os.Environ() {
		if name, value, ok := strings.Cut(kv, "="); ok && name != "" {
			vars[name] = value
		}
	}

	var out bytes.Buffer
	if err := tmpl.Execute(&out, vars); err != nil {
		return data
	}
	return out.Bytes()
}
