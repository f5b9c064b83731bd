package speech

import (
	"time"

	"github.com/normanking/cortexface/internal/tts"
)

// Status is the manager's state machine position
type Status string

const (
	StatusIdle     Status = "idle"
	StatusSpeaking Status = "speaking"
	StatusPaused   Status = "paused"
	StatusError    Status = "error"
)

// State is a snapshot of the manager
type State struct {
	Status        Status     `json:"status"`
	Initialized   bool       `json:"initialized"`
	Available     bool       `json:"available"`
	Speaking      bool       `json:"speaking"`
	Paused        bool       `json:"paused"`
	Muted         bool       `json:"muted"`
	SelectedVoice *tts.Voice `json:"selectedVoice,omitempty"`
	Pending       int        `json:"pending"`
	LastSpeechAt  time.Time  `json:"lastSpeechAt"`
	SpeechCount   int        `json:"speechCount"`
	Error         string     `json:"error,omitempty"`
}

// EventType names a manager-level notification
type EventType string

const (
	EventQueued        EventType = "queued"
	EventStart         EventType = "start"
	EventEnd           EventType = "end"
	EventPause         EventType = "pause"
	EventResume        EventType = "resume"
	EventError         EventType = "error"
	EventBoundary      EventType = "boundary"
	EventMark          EventType = "mark"
	EventCancel        EventType = "cancel"
	EventStall         EventType = "stall"
	EventVoicesChanged EventType = "voiceschanged"
)

// Event is delivered to handlers registered with On
type Event struct {
	Type        EventType     `json:"type"`
	UtteranceID string        `json:"utteranceId,omitempty"`
	Text        string        `json:"text,omitempty"`
	CharIndex   int           `json:"charIndex,omitempty"`
	Name        string        `json:"name,omitempty"`
	ElapsedTime time.Duration `json:"elapsedTime,omitempty"`
	Pending     int           `json:"pending"`
	Err         error         `json:"-"`
}

// Handler receives manager events
type Handler func(Event)
