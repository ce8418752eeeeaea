package logger

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHookedLogger() (Logger, *test.Hook) {
	l, hook := test.NewNullLogger()
	l.SetLevel(logrus.DebugLevel)
	return Wrap(l), hook
}

func TestLogWithFields(t *testing.T) {
	log, hook := newHookedLogger()

	log.Warn("queue full", "subject", "alice", "capacity", 10)

	require.Len(t, hook.Entries, 1)
	entry := hook.LastEntry()
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "queue full", entry.Message)
	assert.Equal(t, "alice", entry.Data["subject"])
	assert.Equal(t, 10, entry.Data["capacity"])
}

func TestOddFieldsAreIgnored(t *testing.T) {
	log, hook := newHookedLogger()

	log.Info("dangling", "key")

	require.Len(t, hook.Entries, 1)
	assert.Empty(t, hook.LastEntry().Data)
}

func TestWithFieldIsInherited(t *testing.T) {
	log, hook := newHookedLogger()

	log.WithField("component", "stream").Debug("started")

	assert.Equal(t, "stream", hook.LastEntry().Data["component"])
}

func TestFileOutput(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "nested", "app.log")
	log := NewLogger(Config{Level: LevelInfo, Format: FormatJSON, Output: "file", Filename: filename, MaxSize: 1})

	log.Info("written to disk")

	data, err := os.ReadFile(filename)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to disk")
}

func TestRequestLoggerLevels(t *testing.T) {
	tests := []struct {
		status int
		level  logrus.Level
	}{
		{http.StatusOK, logrus.InfoLevel},
		{http.StatusUnauthorized, logrus.WarnLevel},
		{http.StatusInternalServerError, logrus.ErrorLevel},
	}

	for _, tt := range tests {
		log, hook := newHookedLogger()
		NewRequestLogger(log).LogRequest(HTTPRequestInfo{
			Method:     http.MethodGet,
			Path:       "/api/v1/trades",
			StatusCode: tt.status,
			Latency:    time.Millisecond,
		})
		assert.Equal(t, tt.level, hook.LastEntry().Level, "status %d", tt.status)
	}
}
