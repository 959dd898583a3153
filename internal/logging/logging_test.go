package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"sensoretl/internal/config"
)

func TestNew_WritesToFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "etl_process.log")
	l, err := New(config.Logging{File: path, Level: "info", Format: "json"}, "unit")
	require.NoError(t, err)

	l.Info("stage ok", zap.String("stage", "ddl"))
	l.Debug("hidden")
	_ = l.Sync()

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(b)
	require.Contains(t, out, `"msg":"stage ok"`)
	require.Contains(t, out, `"stage":"ddl"`)
	require.Contains(t, out, `"job":"unit"`)
	require.Contains(t, out, `"timestamp":`)
	require.False(t, strings.Contains(out, "hidden"), "debug line written at info level")
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"WARN", zapcore.WarnLevel},
		{" error ", zapcore.ErrorLevel},
		{"info", zapcore.InfoLevel},
		{"bogus", zapcore.InfoLevel},
	}
	for _, tc := range tests {
		if got := parseLevel(tc.in); got != tc.want {
			t.Fatalf("parseLevel(%q)=%v, want %v", tc.in, got, tc.want)
		}
	}
}
