// Package face manages the robot face state driven by sentiment and speech
package face

import (
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/normanking/cortexface/internal/bus"
	"github.com/normanking/cortexface/internal/sentiment"
)

// Pose is the coarse face animation the UI renders
type Pose string

const (
	PoseIdle     Pose = "idle"
	PoseSpeaking Pose = "speaking"
	PosePaused   Pose = "paused"
	PoseError    Pose = "error"
)

// MouthShape for lip flap
type MouthShape string

const (
	MouthClosed MouthShape = "closed"
	MouthAh     MouthShape = "ah"  // a
	MouthOh     MouthShape = "oh"  // o
	MouthOO     MouthShape = "oo"  // u, w
	MouthEe     MouthShape = "ee"  // e, i, y
	MouthMBP    MouthShape = "mbp" // lips together
	MouthFV     MouthShape = "fv"  // teeth on lip
	MouthLNT    MouthShape = "lnt" // everything else
)

// EyeState represents eye animation state
type EyeState string

const (
	EyeOpen   EyeState = "open"
	EyeClosed EyeState = "closed"
	EyeWide   EyeState = "wide"
	EyeSquint EyeState = "squint"
)

// State represents the face's current state
type State struct {
	Emotion    sentiment.Emotion `json:"emotion"`
	Confidence float64           `json:"confidence"`
	Pose       Pose              `json:"pose"`
	MouthShape MouthShape        `json:"mouthShape"`
	EyeState   EyeState          `json:"eyeState"`
	IsSpeaking bool              `json:"isSpeaking"`
	Error      string            `json:"error,omitempty"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

// Config tunes animation timing
type Config struct {
	BlinkInterval time.Duration // 0 disables blinking
	BlinkDuration time.Duration
	MouthHold     time.Duration // how long a boundary keeps the mouth open
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		BlinkInterval: 4 * time.Second,
		BlinkDuration: 150 * time.Millisecond,
		MouthHold:     120 * time.Millisecond,
	}
}

// Controller manages face state transitions
type Controller struct {
	analyzer *sentiment.Analyzer
	logger   zerolog.Logger
	config   Config
	bus      *bus.EventBus

	mu            sync.RWMutex
	publishMu     sync.Mutex // orders change notifications
	state         State
	mouthSeq      uint64
	onStateChange func(State)

	stopOnce sync.Once
	stopChan chan struct{}
}

// NewController creates a new face controller
func NewController(analyzer *sentiment.Analyzer, logger zerolog.Logger, config Config) *Controller {
	if analyzer == nil {
		analyzer = sentiment.NewAnalyzer(sentiment.DefaultOptions())
	}
	return &Controller{
		analyzer: analyzer,
		logger:   logger,
		config:   config,
		state: State{
			Emotion:    sentiment.EmotionNeutral,
			Pose:       PoseIdle,
			MouthShape: MouthClosed,
			EyeState:   EyeOpen,
			UpdatedAt:  time.Now(),
		},
		stopChan: make(chan struct{}),
	}
}

// SetStateHandler sets the callback for state changes
func (c *Controller) SetStateHandler(handler func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onStateChange = handler
}

// Attach subscribes the controller to speech events on b and publishes
// face state changes back to it
func (c *Controller) Attach(b *bus.EventBus) {
	c.mu.Lock()
	c.bus = b
	c.mu.Unlock()

	b.SubscribeMultiple([]bus.EventType{
		bus.EventTypeSpeechStarted,
		bus.EventTypeSpeechEnded,
		bus.EventTypeSpeechPaused,
		bus.EventTypeSpeechResumed,
		bus.EventTypeSpeechError,
		bus.EventTypeSpeechCanceled,
		bus.EventTypeSpeechBoundary,
	}, c.HandleSpeechEvent)
}

// Start begins the blink loop
func (c *Controller) Start() {
	if c.config.BlinkInterval <= 0 {
		return
	}
	ticker := time.NewTicker(c.config.BlinkInterval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-c.stopChan:
				return
			case <-ticker.C:
				c.blink()
			}
		}
	}()
}

// Stop halts all animation loops
func (c *Controller) Stop() {
	c.stopOnce.Do(func() { close(c.stopChan) })
}

// GetState returns the current state
func (c *Controller) GetState() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// React analyzes text and shows the resulting emotion
func (c *Controller) React(text string) sentiment.Result {
	result := c.analyzer.Analyze(text)

	c.update(func(s *State) {
		s.Emotion = result.Emotion
		s.Confidence = result.Confidence
		s.EyeState = eyesFor(result.Emotion)
	})

	c.logger.Debug().
		Str("emotion", string(result.Emotion)).
		Float64("confidence", result.Confidence).
		Msg("Emotion analyzed")

	if b := c.eventBus(); b != nil {
		scores := make(map[string]float64, len(result.Scores))
		for label, score := range result.Scores {
			scores[string(label)] = score
		}
		b.PublishSync(bus.Event{
			Type: bus.EventTypeSentimentAnalyzed,
			Data: map[string]any{
				"emotion":    string(result.Emotion),
				"confidence": result.Confidence,
				"scores":     scores,
			},
		})
	}
	return result
}

// SetEmotion sets the emotion directly
func (c *Controller) SetEmotion(emotion sentiment.Emotion) {
	c.update(func(s *State) {
		s.Emotion = emotion
		s.Confidence = 1
		s.EyeState = eyesFor(emotion)
	})
}

// HandleSpeechEvent maps speech lifecycle events onto poses
func (c *Controller) HandleSpeechEvent(ev bus.Event) {
	switch ev.Type {
	case bus.EventTypeSpeechStarted, bus.EventTypeSpeechResumed:
		c.update(func(s *State) {
			s.Pose = PoseSpeaking
			s.IsSpeaking = true
			s.Error = ""
		})

	case bus.EventTypeSpeechPaused:
		c.update(func(s *State) {
			s.Pose = PosePaused
			s.MouthShape = MouthClosed
		})

	case bus.EventTypeSpeechEnded:
		c.update(func(s *State) {
			s.Pose = PoseIdle
			s.IsSpeaking = false
			s.MouthShape = MouthClosed
			if s.Emotion != sentiment.EmotionHappy {
				s.Emotion = sentiment.EmotionNeutral
				s.EyeState = EyeOpen
			}
		})

	case bus.EventTypeSpeechCanceled:
		c.update(func(s *State) {
			s.Pose = PoseIdle
			s.IsSpeaking = false
			s.MouthShape = MouthClosed
		})

	case bus.EventTypeSpeechError:
		msg, _ := ev.Data["error"].(string)
		c.update(func(s *State) {
			s.Pose = PoseError
			s.IsSpeaking = false
			s.MouthShape = MouthClosed
			s.Error = msg
		})

	case bus.EventTypeSpeechBoundary:
		word, _ := ev.Data["name"].(string)
		c.flapMouth(WordToMouthShape(word))
	}
}

// flapMouth opens the mouth for one word then closes it unless another word
// arrived in the meantime
func (c *Controller) flapMouth(shape MouthShape) {
	c.mu.Lock()
	if !c.state.IsSpeaking {
		c.mu.Unlock()
		return
	}
	c.mouthSeq++
	seq := c.mouthSeq
	c.mu.Unlock()

	c.update(func(s *State) { s.MouthShape = shape })

	time.AfterFunc(c.config.MouthHold, func() {
		c.mu.RLock()
		stale := c.mouthSeq != seq
		c.mu.RUnlock()
		if !stale {
			c.update(func(s *State) { s.MouthShape = MouthClosed })
		}
	})
}

// blink performs a blink animation
func (c *Controller) blink() {
	c.mu.Lock()
	// Don't blink while speaking
	if c.state.IsSpeaking || c.state.EyeState == EyeClosed {
		c.mu.Unlock()
		return
	}
	previous := c.state.EyeState
	c.mu.Unlock()

	c.update(func(s *State) { s.EyeState = EyeClosed })

	time.AfterFunc(c.config.BlinkDuration, func() {
		c.update(func(s *State) {
			if s.EyeState == EyeClosed {
				s.EyeState = previous
			}
		})
	})
}

// update applies fn and, if the state changed, notifies the handler and the
// bus synchronously. publishMu keeps notifications in change order across
// callers.
func (c *Controller) update(fn func(*State)) {
	c.publishMu.Lock()
	defer c.publishMu.Unlock()

	c.mu.Lock()
	before := c.state
	fn(&c.state)
	if c.state == before {
		c.mu.Unlock()
		return
	}
	c.state.UpdatedAt = time.Now()
	state := c.state
	handler := c.onStateChange
	b := c.bus
	c.mu.Unlock()

	if handler != nil {
		handler(state)
	}
	if b != nil {
		b.PublishSync(bus.Event{
			Type: bus.EventTypeFaceStateChanged,
			Data: map[string]any{"state": state},
		})
	}
}

func (c *Controller) eventBus() *bus.EventBus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bus
}

func eyesFor(emotion sentiment.Emotion) EyeState {
	switch emotion {
	case sentiment.EmotionSurprised:
		return EyeWide
	case sentiment.EmotionAngry, sentiment.EmotionConfused:
		return EyeSquint
	default:
		return EyeOpen
	}
}

// WordToMouthShape picks a mouth shape from the first vowel sound of word
func WordToMouthShape(word string) MouthShape {
	word = strings.ToLower(word)
	first := true
	letters := false
	for _, r := range word {
		if !unicode.IsLetter(r) {
			continue
		}
		letters = true
		switch r {
		case 'a':
			return MouthAh
		case 'o':
			return MouthOh
		case 'u', 'w':
			return MouthOO
		case 'e', 'i', 'y':
			return MouthEe
		}
		if first {
			switch r {
			case 'm', 'b', 'p':
				return MouthMBP
			case 'f', 'v':
				return MouthFV
			}
		}
		first = false
	}
	if !letters {
		return MouthClosed
	}
	return MouthLNT
}
