package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_HistoryAndLevels(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, LevelInfo)

	log.Debug("speech", "dropped", nil)
	log.Info("speech", "queued", map[string]interface{}{"pending": 2, "id": "abc"})
	log.Error("speech", "engine failed", errors.New("boom"), nil)

	hist := log.GetHistory(0)
	require.Len(t, hist, 2)
	assert.Equal(t, "info", hist[0].Level)
	assert.Equal(t, "id=abc, pending=2", hist[0].Data)
	assert.Equal(t, "error=boom", hist[1].Data)

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, `"component":"speech"`)
	assert.Contains(t, out, `"app":"cortexface"`)
}

func TestLogger_HistoryLimit(t *testing.T) {
	log := newLogger(&bytes.Buffer{}, LevelDebug, 3)
	for i := 0; i < 5; i++ {
		log.Info("test", strings.Repeat("x", i+1), nil)
	}

	hist := log.GetHistory(10)
	require.Len(t, hist, 3)
	assert.Equal(t, "xxx", hist[0].Message)
	assert.Equal(t, "xxxxx", hist[2].Message)

	last := log.GetHistory(1)
	require.Len(t, last, 1)
	assert.Equal(t, "xxxxx", last[0].Message)
}

func TestLogger_OnLogStreams(t *testing.T) {
	log := NewWithWriter(&bytes.Buffer{}, LevelDebug)
	got := make(chan LogEntry, 1)
	log.SetOnLog(func(e LogEntry) { got <- e })

	log.Warn("watchdog", "stall detected", nil)

	select {
	case e := <-got:
		assert.Equal(t, "warn", e.Level)
		assert.Equal(t, "watchdog", e.Component)
	case <-time.After(time.Second):
		t.Fatal("onLog callback not invoked")
	}
}

func TestNew_WritesFile(t *testing.T) {
	dir := t.TempDir()
	log, err := New(&Config{LogDir: dir, Level: LevelDebug, MaxHistory: 10})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(log.GetLogPath(), dir))
	require.NoError(t, log.Close())
}

func TestLogger_ComponentFeedsHistory(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, LevelInfo)

	zl := log.Component("bridge")
	zl.Debug().Msg("hidden")
	zl.Warn().Str("client", "c1").Msg("Dropping slow UI client")

	hist := log.GetHistory(0)
	require.Len(t, hist, 1)
	assert.Equal(t, "warn", hist[0].Level)
	assert.Equal(t, "bridge", hist[0].Component)
	assert.Equal(t, "Dropping slow UI client", hist[0].Message)
	assert.Contains(t, buf.String(), `"client":"c1"`)
}
