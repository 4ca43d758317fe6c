package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONByDefault(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "info", "")
	log.Info("hello", "k", "v")
	log.Debug("hidden")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "hello", rec["msg"])
	assert.Equal(t, "v", rec["k"])
	assert.NotContains(t, buf.String(), "hidden")
}

func TestNew_TextAndLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "DEBUG", "text")
	log.Debug("dbg", "a", 1)

	out := buf.String()
	assert.True(t, strings.Contains(out, "level=DEBUG"), out)
	assert.True(t, strings.Contains(out, "a=1"), out)
}
