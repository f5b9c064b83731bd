// Package tts provides the speech engine capability consumed by the speech
// manager, plus concrete engines for CortexFace.
package tts

import (
	"errors"
	"time"
)

// Common errors
var (
	ErrEngineUnavailable = errors.New("speech engine unavailable")
	ErrVoiceNotFound     = errors.New("voice not found")
	ErrInterrupted       = errors.New("utterance interrupted")
)

// Voice represents an engine voice
type Voice struct {
	Name         string `json:"name"`
	Lang         string `json:"lang"`     // BCP 47, e.g. "en-US"
	VoiceURI     string `json:"voiceURI"` // engine-specific identifier
	LocalService bool   `json:"localService"`
	Default      bool   `json:"default"`
}

// Utterance is a single unit of text submitted to an engine
type Utterance struct {
	ID     string  `json:"id"`
	Text   string  `json:"text"`
	Lang   string  `json:"lang"`
	Voice  *Voice  `json:"voice,omitempty"`
	Rate   float64 `json:"rate"`   // 0.1 to 10, 1 = normal
	Pitch  float64 `json:"pitch"`  // 0 to 2, 1 = normal
	Volume float64 `json:"volume"` // 0 to 1
}

// EventType identifies an utterance lifecycle notification
type EventType string

const (
	EventStart    EventType = "start"
	EventEnd      EventType = "end"
	EventPause    EventType = "pause"
	EventResume   EventType = "resume"
	EventError    EventType = "error"
	EventBoundary EventType = "boundary"
	EventMark     EventType = "mark"
)

// Event is an asynchronous notification about one utterance
type Event struct {
	Type        EventType     `json:"type"`
	UtteranceID string        `json:"utteranceId"`
	CharIndex   int           `json:"charIndex,omitempty"` // boundary
	Name        string        `json:"name,omitempty"`      // boundary word or mark name
	ElapsedTime time.Duration `json:"elapsedTime,omitempty"`
	Err         error         `json:"-"`
}

// Notify receives utterance events. Engines may call it from any goroutine,
// including synchronously from inside Speak or Cancel.
type Notify func(Event)

// Engine is the platform speech capability. Implementations own one audio
// channel; Speak while another utterance is active replaces it.
type Engine interface {
	// Available reports whether the engine can speak at all
	Available() bool

	// Speak submits an utterance; lifecycle events arrive through notify
	Speak(u Utterance, notify Notify) error

	Cancel()
	Pause()
	Resume()

	// Paused reports the engine's own paused flag
	Paused() bool

	// Voices returns the currently known voices. It may be empty until the
	// engine has finished loading them.
	Voices() []Voice

	// OnVoicesChanged registers fn to run whenever the voice list changes
	OnVoicesChanged(fn func())
}

// StallProne is implemented by engines that are known to stop mid-utterance
// without emitting end or error.
type StallProne interface {
	StallsOnLongUtterances() bool
}

// copyVoices returns a defensive copy of vs
func copyVoices(vs []Voice) []Voice {
	if len(vs) == 0 {
		return nil
	}
	out := make([]Voice, len(vs))
	copy(out, vs)
	return out
}
