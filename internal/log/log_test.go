package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorCarriesFieldsAndError(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(LevelInfo)

	Error("rule skipped", errors.New("boom"), "rule", "Red Panda Day", "index", 3, "dangling")

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "error", line["level"])
	assert.Equal(t, "rule skipped", line["message"])
	assert.Equal(t, "boom", line["error"])
	assert.Equal(t, "Red Panda Day", line["rule"])
	assert.EqualValues(t, 3, line["index"])
	assert.NotContains(t, line, "dangling")
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(LevelError)
	t.Cleanup(func() { SetLevel(LevelInfo) })

	Debug("hidden")
	Info("hidden too")
	assert.Empty(t, buf.String())

	Error("shown", nil)
	assert.True(t, strings.Contains(buf.String(), "shown"))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelError, ParseLevel(" ERROR "))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
}
