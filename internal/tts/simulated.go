package tts

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// SimulatedConfig holds configuration for the timer-driven engine
type SimulatedConfig struct {
	WordsPerMinute int           // at rate 1.0 (default 175)
	StartDelay     time.Duration // delay before the start event
	VoicesDelay    time.Duration // voices appear after this delay; 0 = immediately
	Voices         []Voice       // defaults to DefaultSimulatedVoices()
	StallAfter     time.Duration // go silent this long into an utterance; 0 disables
	MaxStalls      int           // utterances allowed to stall (default 1 when StallAfter > 0)
	Out            io.Writer     // optional transcript of spoken words
}

// DefaultSimulatedConfig returns sensible defaults
func DefaultSimulatedConfig() *SimulatedConfig {
	return &SimulatedConfig{
		WordsPerMinute: 175,
		StartDelay:     20 * time.Millisecond,
	}
}

// DefaultSimulatedVoices mirrors what a browser engine typically exposes:
// a network voice and a device voice per language.
func DefaultSimulatedVoices() []Voice {
	return []Voice{
		{Name: "Cloud English (US)", Lang: "en-US", VoiceURI: "sim:cloud:en-US", LocalService: false},
		{Name: "Samantha", Lang: "en-US", VoiceURI: "sim:local:samantha", LocalService: true, Default: true},
		{Name: "Daniel", Lang: "en-GB", VoiceURI: "sim:local:daniel", LocalService: true},
		{Name: "Cloud Deutsch", Lang: "de-DE", VoiceURI: "sim:cloud:de-DE", LocalService: false},
	}
}

type simRun struct {
	utt      Utterance
	notify   Notify
	stop     chan struct{}
	pauseCh  chan struct{}
	resumeCh chan struct{}
	paused   bool
}

// SimulatedEngine "speaks" by pacing word boundaries on timers. It is used by
// the CLI on hosts without a system synthesizer and can reproduce the
// silent mid-utterance stall that the speech watchdog recovers from.
type SimulatedEngine struct {
	logger zerolog.Logger
	config SimulatedConfig

	mu          sync.Mutex
	voices      []Voice
	voicesTimer *time.Timer
	onVoices    []func()
	run         *simRun
	stalls      int
}

// NewSimulatedEngine creates a new simulated engine
func NewSimulatedEngine(logger zerolog.Logger, config *SimulatedConfig) *SimulatedEngine {
	if config == nil {
		config = DefaultSimulatedConfig()
	}
	cfg := *config
	if cfg.WordsPerMinute <= 0 {
		cfg.WordsPerMinute = 175
	}
	if cfg.Voices == nil {
		cfg.Voices = DefaultSimulatedVoices()
	}
	if cfg.StallAfter > 0 && cfg.MaxStalls == 0 {
		cfg.MaxStalls = 1
	}

	e := &SimulatedEngine{
		logger: logger.With().Str("engine", "simulated").Logger(),
		config: cfg,
	}

	if cfg.VoicesDelay <= 0 {
		e.voices = copyVoices(cfg.Voices)
	} else {
		e.voicesTimer = time.AfterFunc(cfg.VoicesDelay, e.loadVoices)
	}
	return e
}

func (e *SimulatedEngine) loadVoices() {
	e.mu.Lock()
	e.voices = copyVoices(e.config.Voices)
	handlers := append([]func(){}, e.onVoices...)
	e.mu.Unlock()

	e.logger.Debug().Int("voices", len(e.config.Voices)).Msg("Voices loaded")
	for _, fn := range handlers {
		fn()
	}
}

// Available always reports true
func (e *SimulatedEngine) Available() bool { return true }

// StallsOnLongUtterances reports whether stall emulation is configured
func (e *SimulatedEngine) StallsOnLongUtterances() bool {
	return e.config.StallAfter > 0
}

// Voices returns the loaded voices
func (e *SimulatedEngine) Voices() []Voice {
	e.mu.Lock()
	defer e.mu.Unlock()
	return copyVoices(e.voices)
}

// OnVoicesChanged registers a voice list listener
func (e *SimulatedEngine) OnVoicesChanged(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onVoices = append(e.onVoices, fn)
}

// Speak starts pacing u, replacing any active utterance
func (e *SimulatedEngine) Speak(u Utterance, notify Notify) error {
	if notify == nil {
		return fmt.Errorf("simulated engine: nil notify")
	}

	run := &simRun{
		utt:      u,
		notify:   notify,
		stop:     make(chan struct{}),
		pauseCh:  make(chan struct{}, 1),
		resumeCh: make(chan struct{}, 1),
	}

	e.mu.Lock()
	if e.run != nil {
		close(e.run.stop)
	}
	e.run = run
	e.mu.Unlock()

	go e.play(run)
	return nil
}

func (e *SimulatedEngine) play(r *simRun) {
	if !e.wait(r, e.config.StartDelay) {
		r.notify(Event{Type: EventError, UtteranceID: r.utt.ID, Err: ErrInterrupted})
		return
	}

	started := time.Now()
	r.notify(Event{Type: EventStart, UtteranceID: r.utt.ID})

	rate := r.utt.Rate
	if rate <= 0 {
		rate = 1
	}
	perWord := time.Duration(float64(time.Minute) / (float64(e.config.WordsPerMinute) * rate))

	charIndex := 0
	for _, word := range strings.Fields(r.utt.Text) {
		if !e.wait(r, perWord) {
			r.notify(Event{Type: EventError, UtteranceID: r.utt.ID, Err: ErrInterrupted})
			return
		}

		if e.shouldStall(started) {
			e.logger.Debug().Str("utterance", r.utt.ID).Msg("Simulating engine stall")
			<-r.stop
			return
		}

		if e.config.Out != nil {
			fmt.Fprintf(e.config.Out, "%s ", word)
		}
		idx := strings.Index(r.utt.Text[charIndex:], word)
		if idx >= 0 {
			charIndex += idx
		}
		r.notify(Event{Type: EventBoundary, UtteranceID: r.utt.ID, CharIndex: charIndex, Name: word})
		charIndex += len(word)
	}

	e.mu.Lock()
	if e.run == r {
		e.run = nil
	}
	e.mu.Unlock()

	if e.config.Out != nil {
		fmt.Fprintln(e.config.Out)
	}
	r.notify(Event{Type: EventEnd, UtteranceID: r.utt.ID, ElapsedTime: time.Since(started)})
}

func (e *SimulatedEngine) shouldStall(started time.Time) bool {
	if e.config.StallAfter <= 0 || time.Since(started) < e.config.StallAfter {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.config.MaxStalls > 0 && e.stalls >= e.config.MaxStalls {
		return false
	}
	e.stalls++
	return true
}

// wait sleeps for d, holding while paused. It returns false if the run was
// stopped.
func (e *SimulatedEngine) wait(r *simRun, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	for {
		select {
		case <-r.stop:
			return false
		case <-r.pauseCh:
			select {
			case <-r.stop:
				return false
			case <-r.resumeCh:
			}
		case <-timer.C:
			return true
		}
	}
}

// Cancel stops the active utterance
func (e *SimulatedEngine) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.run != nil {
		close(e.run.stop)
		e.run = nil
	}
}

// Pause holds the active utterance
func (e *SimulatedEngine) Pause() {
	e.mu.Lock()
	r := e.run
	if r == nil || r.paused {
		e.mu.Unlock()
		return
	}
	r.paused = true
	e.mu.Unlock()

	select {
	case r.pauseCh <- struct{}{}:
	default:
	}
	r.notify(Event{Type: EventPause, UtteranceID: r.utt.ID})
}

// Resume continues a paused utterance
func (e *SimulatedEngine) Resume() {
	e.mu.Lock()
	r := e.run
	if r == nil || !r.paused {
		e.mu.Unlock()
		return
	}
	r.paused = false
	e.mu.Unlock()

	select {
	case r.resumeCh <- struct{}{}:
	default:
	}
	r.notify(Event{Type: EventResume, UtteranceID: r.utt.ID})
}

// Paused reports whether the active utterance is held
func (e *SimulatedEngine) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.run != nil && e.run.paused
}

// Close stops pending voice loading and any active utterance
func (e *SimulatedEngine) Close() {
	e.mu.Lock()
	if e.voicesTimer != nil {
		e.voicesTimer.Stop()
	}
	e.mu.Unlock()
	e.Cancel()
}
