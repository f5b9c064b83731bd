package face

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/cortexface/internal/bus"
	"github.com/normanking/cortexface/internal/sentiment"
)

func newTestController() *Controller {
	cfg := DefaultConfig()
	cfg.BlinkInterval = 0
	cfg.MouthHold = 20 * time.Millisecond
	return NewController(nil, zerolog.Nop(), cfg)
}

func TestController_InitialState(t *testing.T) {
	c := newTestController()
	s := c.GetState()
	assert.Equal(t, sentiment.EmotionNeutral, s.Emotion)
	assert.Equal(t, PoseIdle, s.Pose)
	assert.Equal(t, MouthClosed, s.MouthShape)
	assert.Equal(t, EyeOpen, s.EyeState)
}

func TestController_React(t *testing.T) {
	c := newTestController()

	var mu sync.Mutex
	var changes []State
	c.SetStateHandler(func(s State) {
		mu.Lock()
		changes = append(changes, s)
		mu.Unlock()
	})

	result := c.React("Wow, that was unexpected!")
	assert.Equal(t, sentiment.EmotionSurprised, result.Emotion)

	s := c.GetState()
	assert.Equal(t, sentiment.EmotionSurprised, s.Emotion)
	assert.Equal(t, EyeWide, s.EyeState)
	assert.Equal(t, result.Confidence, s.Confidence)

	mu.Lock()
	assert.Len(t, changes, 1)
	mu.Unlock()

	// unchanged state does not notify
	c.React("Wow, that was unexpected!")
	mu.Lock()
	assert.Len(t, changes, 1)
	mu.Unlock()
}

func TestController_SpeechLifecycle(t *testing.T) {
	c := newTestController()

	c.HandleSpeechEvent(bus.Event{Type: bus.EventTypeSpeechStarted})
	s := c.GetState()
	assert.Equal(t, PoseSpeaking, s.Pose)
	assert.True(t, s.IsSpeaking)

	c.HandleSpeechEvent(bus.Event{Type: bus.EventTypeSpeechPaused})
	assert.Equal(t, PosePaused, c.GetState().Pose)
	c.HandleSpeechEvent(bus.Event{Type: bus.EventTypeSpeechResumed})
	assert.Equal(t, PoseSpeaking, c.GetState().Pose)

	c.HandleSpeechEvent(bus.Event{Type: bus.EventTypeSpeechEnded})
	s = c.GetState()
	assert.Equal(t, PoseIdle, s.Pose)
	assert.False(t, s.IsSpeaking)
	assert.Equal(t, sentiment.EmotionNeutral, s.Emotion)
}

func TestController_EndKeepsHappy(t *testing.T) {
	c := newTestController()
	c.React("I am very happy and excited!")

	c.HandleSpeechEvent(bus.Event{Type: bus.EventTypeSpeechStarted})
	c.HandleSpeechEvent(bus.Event{Type: bus.EventTypeSpeechEnded})
	assert.Equal(t, sentiment.EmotionHappy, c.GetState().Emotion)

	c.SetEmotion(sentiment.EmotionSad)
	c.HandleSpeechEvent(bus.Event{Type: bus.EventTypeSpeechStarted})
	c.HandleSpeechEvent(bus.Event{Type: bus.EventTypeSpeechEnded})
	assert.Equal(t, sentiment.EmotionNeutral, c.GetState().Emotion)
}

func TestController_ErrorPose(t *testing.T) {
	c := newTestController()
	c.HandleSpeechEvent(bus.Event{Type: bus.EventTypeSpeechStarted})
	c.HandleSpeechEvent(bus.Event{
		Type: bus.EventTypeSpeechError,
		Data: map[string]any{"error": "synthesis-failed"},
	})

	s := c.GetState()
	assert.Equal(t, PoseError, s.Pose)
	assert.Equal(t, "synthesis-failed", s.Error)
	assert.False(t, s.IsSpeaking)

	c.HandleSpeechEvent(bus.Event{Type: bus.EventTypeSpeechStarted})
	assert.Empty(t, c.GetState().Error)
}

func TestController_MouthFlap(t *testing.T) {
	c := newTestController()

	// no flapping while idle
	c.HandleSpeechEvent(bus.Event{Type: bus.EventTypeSpeechBoundary, Data: map[string]any{"name": "robot"}})
	assert.Equal(t, MouthClosed, c.GetState().MouthShape)

	c.HandleSpeechEvent(bus.Event{Type: bus.EventTypeSpeechStarted})
	c.HandleSpeechEvent(bus.Event{Type: bus.EventTypeSpeechBoundary, Data: map[string]any{"name": "robot"}})
	assert.Equal(t, MouthOh, c.GetState().MouthShape)

	assert.Eventually(t, func() bool {
		return c.GetState().MouthShape == MouthClosed
	}, time.Second, 5*time.Millisecond)
}

func TestController_AttachToBus(t *testing.T) {
	b := bus.NewEventBus()
	c := newTestController()
	c.Attach(b)

	changed := make(chan State, 8)
	b.Subscribe(bus.EventTypeFaceStateChanged, func(ev bus.Event) {
		if s, ok := ev.Data["state"].(State); ok {
			changed <- s
		}
	})
	analyzed := make(chan bus.Event, 1)
	b.Subscribe(bus.EventTypeSentimentAnalyzed, func(ev bus.Event) { analyzed <- ev })

	b.PublishSync(bus.Event{Type: bus.EventTypeSpeechStarted})
	select {
	case s := <-changed:
		assert.Equal(t, PoseSpeaking, s.Pose)
	case <-time.After(time.Second):
		t.Fatal("no face state event")
	}

	c.React("I hate this, it is so annoying")
	select {
	case ev := <-analyzed:
		assert.Equal(t, "angry", ev.Data["emotion"])
	case <-time.After(time.Second):
		t.Fatal("no sentiment event")
	}
}

func TestController_StateEventsInOrder(t *testing.T) {
	for i := 0; i < 50; i++ {
		b := bus.NewEventBus()
		c := newTestController()
		c.Attach(b)

		var mu sync.Mutex
		var poses []Pose
		b.Subscribe(bus.EventTypeFaceStateChanged, func(ev bus.Event) {
			if s, ok := ev.Data["state"].(State); ok {
				mu.Lock()
				poses = append(poses, s.Pose)
				mu.Unlock()
			}
		})

		b.PublishSync(bus.Event{Type: bus.EventTypeSpeechStarted})
		b.PublishSync(bus.Event{Type: bus.EventTypeSpeechEnded})

		mu.Lock()
		require.Equal(t, []Pose{PoseSpeaking, PoseIdle}, poses)
		mu.Unlock()
		assert.Equal(t, PoseIdle, c.GetState().Pose)
	}
}

func TestController_Blink(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BlinkInterval = 10 * time.Millisecond
	cfg.BlinkDuration = 5 * time.Millisecond
	c := NewController(nil, zerolog.Nop(), cfg)

	closed := make(chan struct{}, 1)
	c.SetStateHandler(func(s State) {
		if s.EyeState == EyeClosed {
			select {
			case closed <- struct{}{}:
			default:
			}
		}
	})

	c.Start()
	defer c.Stop()

	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("never blinked")
	}
	c.Stop()
	require.Eventually(t, func() bool { return c.GetState().EyeState == EyeOpen }, time.Second, 5*time.Millisecond)
}

func TestWordToMouthShape(t *testing.T) {
	tests := map[string]MouthShape{
		"":      MouthClosed,
		"...":   MouthClosed,
		"robot": MouthOh,
		"hello": MouthEe,
		"cat":   MouthAh,
		"moon":  MouthMBP,
		"five":  MouthFV,
		"sum":   MouthOO,
		"Hmm":   MouthLNT,
	}
	for word, want := range tests {
		assert.Equal(t, want, WordToMouthShape(word), word)
	}
}
