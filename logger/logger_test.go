package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   DEBUG,
		"INFO":    INFO,
		" warn ":  WARN,
		"warning": WARN,
		"error":   ERROR,
		"fatal":   FATAL,
		"verbose": INFO,
		"":        INFO,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "input %q", in)
	}
}

func TestLoggerFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	l, err := newLogger(Config{Level: WARN, Console: &buf})
	require.NoError(t, err)

	l.log(INFO, "hidden %d", 1)
	l.log(WARN, "shown %d", 2)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARN] shown 2")
}

func TestLogEntryFieldsAreSorted(t *testing.T) {
	var buf bytes.Buffer
	l, err := newLogger(Config{Level: DEBUG, Console: &buf})
	require.NoError(t, err)

	entry := &LogEntry{
		fields: map[string]interface{}{"zeta": 1, "alpha": "a", "mid": true},
		logger: l,
	}
	entry.Info("activation")

	assert.Contains(t, buf.String(), "activation | alpha=a, mid=true, zeta=1")
}

func TestLoggerWritesDailyFile(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	l, err := newLogger(Config{Level: INFO, Console: &buf, LogDir: dir})
	require.NoError(t, err)

	l.log(ERROR, "disk message")

	files, err := filepath.Glob(filepath.Join(dir, "licensegate-*.log"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "[ERROR] disk message")
}

func TestFatalUsesExitHook(t *testing.T) {
	var buf bytes.Buffer
	l, err := newLogger(Config{Level: INFO, Console: &buf})
	require.NoError(t, err)

	code := -1
	l.exit = func(c int) { code = c }
	l.log(FATAL, "boom")

	assert.Equal(t, 1, code)
}

func TestEntryWithoutLoggerIsNoop(t *testing.T) {
	entry := &LogEntry{fields: map[string]interface{}{"k": "v"}}
	assert.NotPanics(t, func() { entry.Error("nothing") })
}
