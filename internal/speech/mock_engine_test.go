package speech

import (
	"sync"

	"github.com/normanking/cortexface/internal/tts"
)

// mockEngine records calls and lets tests drive utterance events by hand
type mockEngine struct {
	mu         sync.Mutex
	available  bool
	voices     []tts.Voice
	spoken     []tts.Utterance
	notifies   map[string]tts.Notify
	speakErr   error
	cancels    int
	pauses     int
	resumes    int
	paused     bool
	onVoices   []func()
	stallProne bool
}

func newMockEngine(voices ...tts.Voice) *mockEngine {
	return &mockEngine{
		available: true,
		voices:    voices,
		notifies:  make(map[string]tts.Notify),
	}
}

func (e *mockEngine) Available() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.available
}

func (e *mockEngine) Speak(u tts.Utterance, notify tts.Notify) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.speakErr != nil {
		return e.speakErr
	}
	e.spoken = append(e.spoken, u)
	e.notifies[u.ID] = notify
	return nil
}

func (e *mockEngine) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancels++
	e.paused = false
}

func (e *mockEngine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pauses++
	e.paused = true
}

func (e *mockEngine) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resumes++
	e.paused = false
}

func (e *mockEngine) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

func (e *mockEngine) Voices() []tts.Voice {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]tts.Voice(nil), e.voices...)
}

func (e *mockEngine) OnVoicesChanged(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onVoices = append(e.onVoices, fn)
}

func (e *mockEngine) StallsOnLongUtterances() bool {
	return e.stallProne
}

// setVoices replaces the voice list and fires the change handlers
func (e *mockEngine) setVoices(voices ...tts.Voice) {
	e.mu.Lock()
	e.voices = voices
	handlers := append([]func(){}, e.onVoices...)
	e.mu.Unlock()
	for _, fn := range handlers {
		fn()
	}
}

func (e *mockEngine) spokenCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.spoken)
}

func (e *mockEngine) utterance(i int) tts.Utterance {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.spoken[i]
}

func (e *mockEngine) last() tts.Utterance {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.spoken[len(e.spoken)-1]
}

func (e *mockEngine) counts() (cancels, pauses, resumes int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancels, e.pauses, e.resumes
}

// emit delivers an event for utterance id the way an engine would
func (e *mockEngine) emit(id string, typ tts.EventType, err error) {
	e.mu.Lock()
	notify := e.notifies[id]
	e.mu.Unlock()
	if notify != nil {
		notify(tts.Event{Type: typ, UtteranceID: id, Err: err})
	}
}
