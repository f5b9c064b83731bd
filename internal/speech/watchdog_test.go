package speech

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/cortexface/internal/tts"
)

func watchdogConfig(mode WatchdogMode) Config {
	cfg := testConfig()
	cfg.Watchdog = mode
	cfg.WatchdogInterval = 10 * time.Millisecond
	cfg.StallThreshold = 40 * time.Millisecond
	return cfg
}

func TestWatchdog_ResubmitsStalledUtterance(t *testing.T) {
	e := newMockEngine(localUS)
	e.stallProne = true
	m := newTestManager(t, e, watchdogConfig(WatchdogAuto))

	var starts, ends atomic.Int32
	stalls := make(chan Event, 4)
	m.On(EventStall, func(ev Event) { stalls <- ev })

	require.True(t, m.Speak("a long story about robots",
		OnStart(func() { starts.Add(1) }),
		OnEnd(func() { ends.Add(1) }),
	))
	first := e.last().ID
	e.emit(first, tts.EventStart, nil)

	require.Eventually(t, func() bool { return e.spokenCount() >= 2 }, 2*time.Second, 5*time.Millisecond)
	current := e.last()
	e.emit(current.ID, tts.EventStart, nil)

	assert.NotEqual(t, first, current.ID)
	assert.Equal(t, "a long story about robots", current.Text)
	cancels, _, _ := e.counts()
	assert.GreaterOrEqual(t, cancels, 1)

	select {
	case ev := <-stalls:
		assert.Equal(t, first, ev.UtteranceID)
		assert.Equal(t, StallActionResubmit, ev.Name)
	case <-time.After(time.Second):
		t.Fatal("no stall event")
	}

	// the interrupted utterance's own events are stale now
	e.emit(first, tts.EventEnd, nil)
	e.emit(current.ID, tts.EventEnd, nil)

	require.Eventually(t, func() bool { return ends.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), ends.Load())
	assert.Equal(t, int32(1), starts.Load(), "a restart does not repeat OnStart")
	assert.False(t, m.IsSpeaking())
}

func TestWatchdog_ResumesPausedEngine(t *testing.T) {
	e := newMockEngine(localUS)
	m := newTestManager(t, e, watchdogConfig(WatchdogOn))

	require.True(t, m.Speak("hello"))
	e.emit(e.last().ID, tts.EventStart, nil)

	// the engine pauses itself without telling anyone
	e.mu.Lock()
	e.paused = true
	e.mu.Unlock()

	require.Eventually(t, func() bool {
		_, _, resumes := e.counts()
		return resumes >= 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, e.spokenCount())
	assert.True(t, m.IsSpeaking())
}

func TestWatchdog_IgnoresUserPause(t *testing.T) {
	e := newMockEngine(localUS)
	m := newTestManager(t, e, watchdogConfig(WatchdogOn))

	require.True(t, m.Speak("hello"))
	e.emit(e.last().ID, tts.EventStart, nil)
	require.True(t, m.Pause())

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 1, e.spokenCount())
	_, _, resumes := e.counts()
	assert.Zero(t, resumes)
}

func TestWatchdog_Disabled(t *testing.T) {
	tests := []struct {
		name       string
		mode       WatchdogMode
		stallProne bool
	}{
		{"off", WatchdogOff, true},
		{"auto without quirk", WatchdogAuto, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := newMockEngine(localUS)
			e.stallProne = tc.stallProne
			m := newTestManager(t, e, watchdogConfig(tc.mode))

			require.True(t, m.Speak("hello"))
			e.emit(e.last().ID, tts.EventStart, nil)
			time.Sleep(150 * time.Millisecond)

			assert.Equal(t, 1, e.spokenCount())
			cancels, _, _ := e.counts()
			assert.Zero(t, cancels)
		})
	}
}

func TestWatchdog_SimulatedEngineStall(t *testing.T) {
	engine := tts.NewSimulatedEngine(zerolog.Nop(), &tts.SimulatedConfig{
		WordsPerMinute: 3000,
		StartDelay:     time.Millisecond,
		StallAfter:     30 * time.Millisecond,
	})
	defer engine.Close()

	m, err := NewManager(engine, watchdogConfig(WatchdogAuto), zerolog.Nop())
	require.NoError(t, err)
	defer m.Close()

	ended := make(chan struct{})
	require.True(t, m.Speak("one two three four five six seven eight nine ten",
		OnEnd(func() { close(ended) })))

	select {
	case <-ended:
	case <-time.After(3 * time.Second):
		t.Fatal("stalled utterance was never recovered")
	}
}

func TestWatchdog_PauseRejectedDuringRestart(t *testing.T) {
	engine := tts.NewSimulatedEngine(zerolog.Nop(), &tts.SimulatedConfig{
		WordsPerMinute: 3000,
		StartDelay:     time.Millisecond,
		StallAfter:     30 * time.Millisecond,
	})
	defer engine.Close()

	cfg := watchdogConfig(WatchdogAuto)
	cfg.RestartDelay = 200 * time.Millisecond
	m, err := NewManager(engine, cfg, zerolog.Nop())
	require.NoError(t, err)
	defer m.Close()

	stalls := make(chan Event, 4)
	m.On(EventStall, func(ev Event) { stalls <- ev })

	ended := make(chan struct{})
	require.True(t, m.Speak("one two three four five six seven eight nine ten",
		OnEnd(func() { close(ended) })))

	select {
	case ev := <-stalls:
		assert.Equal(t, StallActionResubmit, ev.Name)
	case <-time.After(3 * time.Second):
		t.Fatal("stall was never detected")
	}

	assert.False(t, m.Pause(), "nothing is playing until the resubmit")
	assert.False(t, m.IsPaused())

	select {
	case <-ended:
	case <-time.After(3 * time.Second):
		t.Fatal("resubmitted utterance never finished")
	}
	assert.False(t, engine.Paused())
	assert.Equal(t, StatusIdle, m.State().Status)
}
