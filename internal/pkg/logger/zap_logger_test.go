package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLogger_FieldsCarryModuleAndDetails(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewFromZap(zap.New(core))

	l.Info("Gateway", "attempt failed", map[string]interface{}{"attempt": 2})
	l.Error("Pipeline", "stage panicked", map[string]interface{}{"error": errors.New("boom")})
	l.Debug("Ranker", "no details", nil)

	entries := logs.AllUntimed()
	require.Len(t, entries, 3)

	info := entries[0].ContextMap()
	assert.Equal(t, "Gateway", info["module"])
	assert.Equal(t, map[string]interface{}{"attempt": 2}, info["details"])

	errFields := entries[1].ContextMap()
	assert.Contains(t, errFields, "error_ref")

	assert.Equal(t, map[string]interface{}{}, entries[2].ContextMap()["details"])
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.Warn("x", "y", nil)
	assert.NoError(t, l.Sync())
}
