package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ asynq.Logger = (*AsynqLogger)(nil)

func TestNewLogger_JSONAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "warn", "json")

	logger.Info("dropped")
	logger.Warn("kept", "post_id", 7)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "kept", line["msg"])
	assert.Equal(t, float64(7), line["post_id"])
}

func TestNewLogger_TextDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "bogus", "text")

	logger.Debug("hidden")
	logger.Info("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "msg=shown")
}

func TestAsynqLogger(t *testing.T) {
	var buf bytes.Buffer
	a := &AsynqLogger{Logger: newLogger(&buf, "debug", "text")}

	a.Info("worker ", "started")
	assert.Contains(t, buf.String(), `msg="worker started"`)
	assert.Panics(t, func() { a.Fatal("boom") })
}
