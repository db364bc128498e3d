package logger

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]zapcore.Level{
		"debug":  zapcore.DebugLevel,
		" INFO ": zapcore.InfoLevel,
		"warn":   zapcore.WarnLevel,
		"error":  zapcore.ErrorLevel,
	}
	for s, lvl := range cases {
		got, ok := ParseLogLevel(s)
		require.True(t, ok, s)
		require.Equal(t, lvl, got)
	}

	_, ok := ParseLogLevel("verbose")
	require.False(t, ok)
}

func TestFromContext(t *testing.T) {
	t.Parallel()

	require.Same(t, Logger(), FromContext(context.Background()))

	var out bytes.Buffer
	l := NewWriter(&out, zapcore.DebugLevel)
	ctx := ToContext(context.Background(), l)
	require.Same(t, l, FromContext(ctx))

	ctx = WithKV(WithName(ctx, "wpr"), "falcon", 2)
	DebugKV(ctx, "lsb header", "ucode_off", "0x1000")
	require.NoError(t, FromContext(ctx).Sync())

	line := out.String()
	assert.Contains(t, line, "DEBUG")
	assert.Contains(t, line, "wpr")
	assert.Contains(t, line, "lsb header")
	assert.Contains(t, line, `"falcon": 2`)
	assert.Contains(t, line, `"ucode_off": "0x1000"`)
}

func TestLevelFiltering(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	ctx := ToContext(context.Background(), NewWriter(&out, zapcore.InfoLevel))
	DebugKV(ctx, "hidden")
	InfoKV(ctx, "shown")

	assert.NotContains(t, out.String(), "hidden")
	assert.Contains(t, out.String(), "shown")
}
