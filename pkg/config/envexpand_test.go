package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandEnv_Basic(t *testing.T) {
	t.Setenv("MESH_TEST_TOKEN", "secret-value")

	out := ExpandEnv([]byte(`{"token": "{{.MESH_TEST_TOKEN}}"}`))
	assert.Equal(t, `{"token": "secret-value"}`, string(out))
}

func TestExpandEnv_MissingVarBecomesEmpty(t *testing.T) {
	out := ExpandEnv([]byte(`{"token": "{{.MESH_DEFINITELY_UNSET_VAR}}"}`))
	assert.Equal(t, `{"token": ""}`, string(out))
}

func TestExpandEnv_DollarSignsPreserved(t *testing.T) {
	in := []byte(`{"pattern": "^price\\$[0-9]+$", "password": "p@ss$word"}`)
	assert.Equal(t, in, ExpandEnv(in))
}

func TestExpandEnv_MalformedTemplatePassesThrough(t *testing.T) {
	in := []byte(`{"broken": "{{.UNCLOSED"}`)
	assert.Equal(t, in, ExpandEnv(in))
}
