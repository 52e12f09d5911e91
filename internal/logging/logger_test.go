package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New("shout", "console")
	assert.Error(t, err)
}

func TestNew_Formats(t *testing.T) {
	for _, format := range []string{"console", "json"} {
		logger, err := New("debug", format)
		require.NoError(t, err, format)
		assert.True(t, logger.Enabled(zapcore.DebugLevel))
		assert.False(t, logger.Enabled(TraceLevel))
	}
}

func TestLevelFromString_Trace(t *testing.T) {
	lvl, err := LevelFromString("trace")
	require.NoError(t, err)
	assert.Equal(t, TraceLevel, lvl)
}

func TestLogger_InvocationIDCorrelation(t *testing.T) {
	logger := NewTestLogger()
	ctx := WithInvocationID(context.Background(), "inv-42")

	logger.Info(ctx, "promotion started")

	entries := logger.FilterMessage("promotion started").All()
	require.Len(t, entries, 1)
	require.Len(t, entries[0].Context, 1)
	assert.Equal(t, "invocation.id", entries[0].Context[0].Key)
	assert.Equal(t, "inv-42", entries[0].Context[0].String)
}

func TestWithInvocationID_GeneratesWhenEmpty(t *testing.T) {
	ctx := WithInvocationID(context.Background(), "")
	assert.NotEmpty(t, InvocationIDFromContext(ctx))
}

func TestNop_DiscardsEverything(t *testing.T) {
	logger := Nop()
	logger.Error(context.Background(), "ignored")
	assert.False(t, logger.Enabled(zapcore.ErrorLevel))
}
