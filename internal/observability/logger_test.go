package observability

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoggerHonoursLevelAndFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogger(LogConfig{Level: "warn", Format: "json", Output: buf})

	logger.Info("hidden")
	logger.Warn("shown", "round", 2)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"round":2`)
	assert.False(t, logger.Enabled(slog.LevelInfo))
}

func TestWithContextAddsRunAndCaseIDs(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogger(LogConfig{Level: "debug", Format: "text", Output: buf})

	ctx := ContextWithCaseID(ContextWithRunID(context.Background(), "run-1"), "T7")
	logger.WithContext(ctx).Debug("scored")

	assert.Contains(t, buf.String(), "run_id=run-1")
	assert.Contains(t, buf.String(), "case_id=T7")
}

func TestSanitizeAPIKey(t *testing.T) {
	assert.Equal(t, "***", SanitizeAPIKey("short"))
	assert.Equal(t, "sk-abcde...wxyz", SanitizeAPIKey("sk-abcdefghijklmnopqrstuvwxyz"))
}
