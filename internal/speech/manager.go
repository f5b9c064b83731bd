// Package speech owns the lifecycle of text-to-speech requests against an
// injected engine: a FIFO queue, voice selection, text preprocessing and a
// stall watchdog.
package speech

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/normanking/cortexface/internal/bus"
	"github.com/normanking/cortexface/internal/metrics"
	"github.com/normanking/cortexface/internal/tts"
)

// Common errors
var (
	ErrEngineUnavailable = tts.ErrEngineUnavailable
	ErrEngineInUse       = errors.New("speech engine already owned by another manager")
	ErrNoVoices          = errors.New("no voices available")
	ErrManagerClosed     = errors.New("speech manager closed")
)

// request is one Speak call. id is the engine utterance currently carrying
// it; it is empty while the request is detached for a stall restart.
type request struct {
	id      string
	text    string
	rate    float64
	pitch   float64
	volume  float64
	lang    string
	started bool

	onStart func()
	onEnd   func()
	onError func(error)
}

// SpeakOption customizes a single Speak call
type SpeakOption func(*request)

// WithRate overrides the rate for one request
func WithRate(rate float64) SpeakOption {
	return func(r *request) { r.rate = clamp(rate, MinRate, MaxRate) }
}

// WithPitch overrides the pitch for one request
func WithPitch(pitch float64) SpeakOption {
	return func(r *request) { r.pitch = clamp(pitch, MinPitch, MaxPitch) }
}

// WithVolume overrides the volume for one request
func WithVolume(volume float64) SpeakOption {
	return func(r *request) { r.volume = clamp(volume, MinVolume, MaxVolume) }
}

// WithLanguage overrides the language for one request
func WithLanguage(lang string) SpeakOption {
	return func(r *request) {
		if lang != "" {
			r.lang = lang
		}
	}
}

// OnStart is called once when the engine starts the request
func OnStart(fn func()) SpeakOption {
	return func(r *request) { r.onStart = fn }
}

// OnEnd is called when the request finishes, or synchronously from Speak
// when the request is rejected
func OnEnd(fn func()) SpeakOption {
	return func(r *request) { r.onEnd = fn }
}

// OnError is called when the engine fails the request
func OnError(fn func(error)) SpeakOption {
	return func(r *request) { r.onError = fn }
}

// Option configures a Manager
type Option func(*Manager)

// WithBus publishes lifecycle events to b
func WithBus(b *bus.EventBus) Option {
	return func(m *Manager) { m.bus = b }
}

// WithMetrics records lifecycle metrics to s
func WithMetrics(s *metrics.Speech) Option {
	return func(m *Manager) { m.metrics = s }
}

// Manager drives one speech engine
type Manager struct {
	engine   tts.Engine
	logger   zerolog.Logger
	bus      *bus.EventBus
	metrics  *metrics.Speech
	dispatch *dispatcher
	watchdog bool

	// engineMu serializes Speak/Cancel/Pause/Resume. It is never acquired
	// while mu is held.
	engineMu sync.Mutex

	mu            sync.Mutex
	cfg           Config
	initialized   bool
	closed        bool
	paused        bool
	voices        []tts.Voice
	selected      *tts.Voice
	voiceExplicit bool
	current       *request
	queue         []*request
	lastSpeechAt  time.Time
	speechCount   int
	lastEventAt   time.Time
	errMsg        string
	handlers      map[EventType][]Handler

	dequeueTimer *time.Timer
	restartTimer *time.Timer
	watchdogStop chan struct{}
	voicesCh     chan struct{}
	closeCh      chan struct{}
}

// NewManager takes ownership of engine. It fails only when the engine is
// missing or unavailable, or already driven by another Manager.
func NewManager(engine tts.Engine, cfg Config, logger zerolog.Logger, opts ...Option) (*Manager, error) {
	if engine == nil || !engine.Available() {
		return nil, fmt.Errorf("new speech manager: %w", ErrEngineUnavailable)
	}
	if !acquireEngine(engine) {
		return nil, fmt.Errorf("new speech manager: %w", ErrEngineInUse)
	}

	cfg = cfg.normalize()

	m := &Manager{
		engine:   engine,
		logger:   logger,
		dispatch: newDispatcher(logger),
		cfg:      cfg,
		handlers: make(map[EventType][]Handler),
		voicesCh: make(chan struct{}, 1),
		closeCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	switch cfg.Watchdog {
	case WatchdogOn:
		m.watchdog = true
	case WatchdogAuto:
		if sp, ok := engine.(tts.StallProne); ok {
			m.watchdog = sp.StallsOnLongUtterances()
		}
	}

	engine.OnVoicesChanged(m.onVoicesChanged)
	m.loadVoices()

	logger.Debug().
		Bool("watchdog", m.watchdog).
		Str("language", cfg.Language).
		Msg("Speech manager created")

	return m, nil
}

// Init waits for the engine's voice list, racing the voices-changed signal
// against an exponential backoff poll, then selects the default voice. When
// no voices appear the manager records the error and stays usable.
func (m *Manager) Init(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrManagerClosed
	}
	attempts := m.cfg.VoiceRetries
	delay := m.cfg.VoiceRetryDelay
	m.mu.Unlock()

	voices := m.loadVoices()
	for attempt := 1; len(voices) == 0 && attempt <= attempts; attempt++ {
		m.logger.Debug().
			Int("attempt", attempt).
			Dur("delay", delay).
			Msg("Waiting for voices")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("init speech: %w", ctx.Err())
		case <-m.closeCh:
			timer.Stop()
			return ErrManagerClosed
		case <-m.voicesCh:
		case <-timer.C:
		}
		timer.Stop()

		delay *= 2
		voices = m.loadVoices()
	}

	m.mu.Lock()
	m.initialized = true
	if len(voices) == 0 {
		m.errMsg = ErrNoVoices.Error()
		m.mu.Unlock()
		m.logger.Warn().Int("attempts", attempts).Msg("No voices after retries, speech degraded")
		return fmt.Errorf("init speech: %w", ErrNoVoices)
	}
	voice := m.selected
	m.mu.Unlock()

	ev := m.logger.Info().Int("voices", len(voices))
	if voice != nil {
		ev = ev.Str("voice", voice.Name).Str("lang", voice.Lang)
	}
	ev.Msg("Speech manager initialized")
	return nil
}

// loadVoices queries the engine and refreshes the cache when it has voices
func (m *Manager) loadVoices() []tts.Voice {
	voices := m.engine.Voices()
	if len(voices) == 0 {
		return nil
	}

	m.mu.Lock()
	m.voices = voices
	m.selectDefaultLocked()
	if m.errMsg == ErrNoVoices.Error() {
		m.errMsg = ""
	}
	m.mu.Unlock()
	return voices
}

func (m *Manager) selectDefaultLocked() {
	if m.voiceExplicit && m.selected != nil {
		return
	}
	if v, ok := SelectDefaultVoice(m.voices, m.cfg.Voice, m.cfg.Language); ok {
		m.selected = &v
	}
}

func (m *Manager) onVoicesChanged() {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return
	}

	voices := m.loadVoices()
	select {
	case m.voicesCh <- struct{}{}:
	default:
	}

	m.logger.Debug().Int("voices", len(voices)).Msg("Engine voices changed")
	m.emit(Event{Type: EventVoicesChanged})
}

// Speak narrates text. It returns false without queueing when the manager
// cannot speak or the text is empty after processing; OnEnd still runs,
// synchronously, in that case.
func (m *Manager) Speak(text string, opts ...SpeakOption) bool {
	m.mu.Lock()
	needVoices := m.selected == nil && len(m.voices) == 0
	m.mu.Unlock()

	var fresh []tts.Voice
	if needVoices {
		fresh = m.engine.Voices()
	}

	m.mu.Lock()
	cfg := m.cfg
	req := &request{
		rate:   cfg.Rate,
		pitch:  cfg.Pitch,
		volume: cfg.Volume,
		lang:   cfg.Language,
	}
	for _, opt := range opts {
		opt(req)
	}

	reason := ""
	switch {
	case m.closed:
		reason = "closed"
	case !cfg.Enabled:
		reason = "disabled"
	case cfg.Muted:
		reason = "muted"
	}

	processed := ""
	if reason == "" {
		processed = ProcessTextForSpeech(text)
		if processed == "" {
			reason = "empty"
		}
	}

	if reason != "" {
		m.mu.Unlock()
		m.metrics.RecordRejected(reason)
		m.logger.Debug().Str("reason", reason).Msg("Speak rejected")
		if req.onEnd != nil {
			supervise(m.logger, "onEnd", req.onEnd)
		}
		return false
	}

	req.text = truncateForSpeech(processed, cfg.MaxTextLength)

	if m.selected == nil {
		if len(m.voices) == 0 && len(fresh) > 0 {
			m.voices = fresh
		}
		if len(m.voices) > 0 {
			v := m.voices[0]
			m.selected = &v
		}
	}

	if m.current == nil && len(m.queue) == 0 {
		m.current = req
		m.paused = false
		m.mu.Unlock()

		m.metrics.RecordQueued(0)
		m.submit(req)
		return true
	}

	m.queue = append(m.queue, req)
	pending := len(m.queue)
	if m.current == nil {
		m.scheduleNextLocked()
	}
	m.mu.Unlock()

	m.metrics.RecordQueued(pending)
	m.logger.Debug().Int("pending", pending).Msg("Speech queued")
	m.emit(Event{Type: EventQueued, Text: req.text, Pending: pending})
	return true
}

// submit hands req to the engine under a fresh utterance ID
func (m *Manager) submit(req *request) {
	m.mu.Lock()
	if m.closed || m.current != req {
		m.mu.Unlock()
		return
	}
	id := uuid.NewString()
	req.id = id
	u := tts.Utterance{
		ID:     id,
		Text:   req.text,
		Lang:   req.lang,
		Rate:   req.rate,
		Pitch:  req.pitch,
		Volume: req.volume,
	}
	if m.selected != nil {
		v := *m.selected
		u.Voice = &v
	}
	m.lastEventAt = time.Now()
	m.startWatchdogLocked()
	m.mu.Unlock()

	m.engineMu.Lock()
	m.mu.Lock()
	stale := m.current != req || req.id != id
	m.mu.Unlock()
	if stale {
		m.engineMu.Unlock()
		return
	}
	err := m.engine.Speak(u, m.handleEngineEvent)
	m.engineMu.Unlock()

	if err != nil {
		m.logger.Warn().Err(err).Str("utterance", id).Msg("Engine rejected utterance")
		m.fail(id, fmt.Errorf("speak: %w", err), "submit")
		return
	}

	m.logger.Debug().
		Str("utterance", id).
		Int("textLen", len(u.Text)).
		Msg("Utterance submitted")
}

// handleEngineEvent runs on engine goroutines. It never takes engineMu.
func (m *Manager) handleEngineEvent(ev tts.Event) {
	m.mu.Lock()
	req := m.current
	if m.closed || req == nil || req.id == "" || req.id != ev.UtteranceID {
		m.mu.Unlock()
		m.logger.Debug().
			Str("type", string(ev.Type)).
			Str("utterance", ev.UtteranceID).
			Msg("Ignoring stale engine event")
		return
	}

	now := time.Now()
	switch ev.Type {
	case tts.EventStart:
		m.lastEventAt = now
		first := !req.started
		req.started = true
		if first {
			m.speechCount++
			m.lastSpeechAt = now
		}
		m.mu.Unlock()

		if !first {
			m.logger.Info().Str("utterance", ev.UtteranceID).Msg("Restarted utterance started")
			return
		}
		m.metrics.RecordStarted()
		m.emit(Event{Type: EventStart, UtteranceID: ev.UtteranceID, Text: req.text})
		m.dispatch.post("onStart", req.onStart)

	case tts.EventEnd:
		m.finishLocked()
		m.mu.Unlock()

		m.metrics.RecordEnded(ev.ElapsedTime)
		m.emit(Event{Type: EventEnd, UtteranceID: ev.UtteranceID, Text: req.text, ElapsedTime: ev.ElapsedTime})
		m.dispatch.post("onEnd", req.onEnd)

	case tts.EventError:
		m.mu.Unlock()
		err := ev.Err
		if err == nil {
			err = errors.New("engine error")
		}
		m.logger.Warn().Err(err).Str("utterance", ev.UtteranceID).Msg("Utterance failed")
		m.fail(ev.UtteranceID, err, "engine")

	case tts.EventPause, tts.EventResume:
		m.lastEventAt = now
		m.mu.Unlock()

	case tts.EventBoundary, tts.EventMark:
		m.lastEventAt = now
		m.mu.Unlock()

		typ := EventBoundary
		if ev.Type == tts.EventMark {
			typ = EventMark
		}
		m.emit(Event{Type: typ, UtteranceID: ev.UtteranceID, CharIndex: ev.CharIndex, Name: ev.Name})

	default:
		m.mu.Unlock()
	}
}

// fail clears the request carried by utterance id and reports err
func (m *Manager) fail(id string, err error, source string) {
	m.mu.Lock()
	req := m.current
	if req == nil || req.id != id {
		m.mu.Unlock()
		return
	}
	m.finishLocked()
	m.mu.Unlock()

	m.metrics.RecordError(source)
	m.emit(Event{Type: EventError, UtteranceID: id, Text: req.text, Err: err})
	if req.onError != nil {
		m.dispatch.post("onError", func() { req.onError(err) })
	}
}

// finishLocked clears the current request and schedules the next one
func (m *Manager) finishLocked() {
	m.current = nil
	m.paused = false
	m.stopWatchdogLocked()
	if m.restartTimer != nil {
		m.restartTimer.Stop()
		m.restartTimer = nil
	}
	m.scheduleNextLocked()
}

// scheduleNextLocked defers the next dequeue so the engine can settle
func (m *Manager) scheduleNextLocked() {
	if len(m.queue) == 0 || m.dequeueTimer != nil || m.closed {
		return
	}
	m.dequeueTimer = time.AfterFunc(m.cfg.QueueDelay, m.dequeue)
}

func (m *Manager) dequeue() {
	m.mu.Lock()
	m.dequeueTimer = nil
	if m.closed || m.current != nil || len(m.queue) == 0 {
		m.mu.Unlock()
		return
	}
	req := m.queue[0]
	m.queue[0] = nil
	m.queue = m.queue[1:]
	m.current = req
	m.paused = false
	pending := len(m.queue)
	m.mu.Unlock()

	m.metrics.SetQueueDepth(pending)
	m.submit(req)
}

// Pause holds the current utterance. It returns false unless speaking,
// including while a stalled utterance waits to be resubmitted.
func (m *Manager) Pause() bool {
	m.mu.Lock()
	if m.closed || m.current == nil || m.current.id == "" || m.paused {
		m.mu.Unlock()
		return false
	}
	m.paused = true
	id := m.current.id
	m.mu.Unlock()

	m.engineMu.Lock()
	m.engine.Pause()
	m.engineMu.Unlock()

	m.logger.Debug().Str("utterance", id).Msg("Speech paused")
	m.emit(Event{Type: EventPause, UtteranceID: id})
	return true
}

// Resume continues a paused utterance. It returns false unless paused.
func (m *Manager) Resume() bool {
	m.mu.Lock()
	if m.closed || m.current == nil || !m.paused {
		m.mu.Unlock()
		return false
	}
	m.paused = false
	m.lastEventAt = time.Now()
	id := m.current.id
	m.mu.Unlock()

	m.engineMu.Lock()
	m.engine.Resume()
	m.engineMu.Unlock()

	m.logger.Debug().Str("utterance", id).Msg("Speech resumed")
	m.emit(Event{Type: EventResume, UtteranceID: id})
	return true
}

// Cancel drops the current request and everything queued behind it
func (m *Manager) Cancel() {
	m.mu.Lock()
	dropped := len(m.queue)
	if m.current != nil {
		dropped++
	}
	m.resetLocked()
	m.mu.Unlock()

	m.engineMu.Lock()
	m.engine.Cancel()
	m.engineMu.Unlock()

	m.metrics.RecordCanceled()
	if dropped > 0 {
		m.logger.Debug().Int("dropped", dropped).Msg("Speech canceled")
		m.emit(Event{Type: EventCancel, Pending: 0})
	}
}

func (m *Manager) resetLocked() {
	m.current = nil
	m.queue = nil
	m.paused = false
	m.stopWatchdogLocked()
	if m.dequeueTimer != nil {
		m.dequeueTimer.Stop()
		m.dequeueTimer = nil
	}
	if m.restartTimer != nil {
		m.restartTimer.Stop()
		m.restartTimer = nil
	}
}

// Mute cancels current speech and rejects new requests until unmuted
func (m *Manager) Mute() {
	m.mu.Lock()
	m.cfg.Muted = true
	m.mu.Unlock()
	m.Cancel()
}

// Unmute allows speech again
func (m *Manager) Unmute() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg.Muted = false
}

// SetEnabled turns speech on or off. Disabling cancels current speech and
// rejects new requests like Mute does.
func (m *Manager) SetEnabled(enabled bool) {
	m.mu.Lock()
	m.cfg.Enabled = enabled
	m.mu.Unlock()
	if !enabled {
		m.Cancel()
	}
}

// ToggleMute flips the mute flag and returns the new value
func (m *Manager) ToggleMute() bool {
	if m.IsMuted() {
		m.Unmute()
		return false
	}
	m.Mute()
	return true
}

// SetRate clamps rate to [0.1, 10] and returns the stored value
func (m *Manager) SetRate(rate float64) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg.Rate = clamp(rate, MinRate, MaxRate)
	return m.cfg.Rate
}

// SetPitch clamps pitch to [0, 2] and returns the stored value
func (m *Manager) SetPitch(pitch float64) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg.Pitch = clamp(pitch, MinPitch, MaxPitch)
	return m.cfg.Pitch
}

// SetVolume clamps volume to [0, 1] and returns the stored value
func (m *Manager) SetVolume(volume float64) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg.Volume = clamp(volume, MinVolume, MaxVolume)
	return m.cfg.Volume
}

// SetVoice selects a voice by index into AvailableVoices or by name/URI.
// It returns false and changes nothing when there is no match.
func (m *Manager) SetVoice(nameOrIndex any) bool {
	v, ok := findVoice(m.AvailableVoices(), nameOrIndex)
	if !ok {
		return false
	}

	m.mu.Lock()
	m.selected = &v
	m.voiceExplicit = true
	m.mu.Unlock()

	m.logger.Debug().Str("voice", v.Name).Str("lang", v.Lang).Msg("Voice selected")
	return true
}

// SetLanguage changes the default language. Unless a voice was chosen
// explicitly, the default voice is reselected for it.
func (m *Manager) SetLanguage(lang string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if lang == "" {
		return
	}
	m.cfg.Language = lang
	if len(m.voices) > 0 {
		m.selectDefaultLocked()
	}
}

// AvailableVoices returns a copy of the voice list
func (m *Manager) AvailableVoices() []tts.Voice {
	m.mu.Lock()
	cached := len(m.voices) > 0
	out := make([]tts.Voice, len(m.voices))
	copy(out, m.voices)
	m.mu.Unlock()

	if cached {
		return out
	}
	return m.loadVoices()
}

// IsSpeaking reports whether an utterance is in flight
func (m *Manager) IsSpeaking() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current != nil
}

// IsPaused reports whether the current utterance is paused
func (m *Manager) IsPaused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current != nil && m.paused
}

// IsMuted reports the mute flag
func (m *Manager) IsMuted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg.Muted
}

// Config returns a copy of the current settings
func (m *Manager) Config() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg
}

// State returns a snapshot of the manager
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := State{
		Status:       m.statusLocked(),
		Initialized:  m.initialized,
		Available:    !m.closed,
		Speaking:     m.current != nil,
		Paused:       m.current != nil && m.paused,
		Muted:        m.cfg.Muted,
		Pending:      len(m.queue),
		LastSpeechAt: m.lastSpeechAt,
		SpeechCount:  m.speechCount,
		Error:        m.errMsg,
	}
	if m.selected != nil {
		v := *m.selected
		s.SelectedVoice = &v
	}
	if m.closed && s.Error == "" {
		s.Error = ErrManagerClosed.Error()
	}
	return s
}

func (m *Manager) statusLocked() Status {
	switch {
	case m.current != nil && m.paused:
		return StatusPaused
	case m.current != nil:
		return StatusSpeaking
	case m.closed || m.errMsg != "":
		return StatusError
	default:
		return StatusIdle
	}
}

// On registers h for events of type t
func (m *Manager) On(t EventType, h Handler) {
	if h == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[t] = append(m.handlers[t], h)
}

// Off removes every handler for t
func (m *Manager) Off(t EventType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handlers, t)
}

// emit queues handler and bus delivery on the dispatcher
func (m *Manager) emit(ev Event) {
	m.mu.Lock()
	handlers := append([]Handler(nil), m.handlers[ev.Type]...)
	m.mu.Unlock()

	for _, h := range handlers {
		h := h
		m.dispatch.post("handler:"+string(ev.Type), func() { h(ev) })
	}
	if m.bus != nil {
		be := toBusEvent(ev)
		m.dispatch.post("bus:"+string(be.Type), func() { m.bus.PublishSync(be) })
	}
}

// Close cancels everything, stops all timers and releases the engine.
// It is safe to call more than once.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.resetLocked()
	m.closed = true
	close(m.closeCh)
	m.mu.Unlock()

	m.engineMu.Lock()
	m.engine.Cancel()
	m.engineMu.Unlock()

	m.dispatch.close()
	releaseEngine(m.engine)
	m.logger.Debug().Msg("Speech manager closed")
}

var busTypes = map[EventType]bus.EventType{
	EventQueued:        bus.EventTypeSpeechQueued,
	EventStart:         bus.EventTypeSpeechStarted,
	EventEnd:           bus.EventTypeSpeechEnded,
	EventPause:         bus.EventTypeSpeechPaused,
	EventResume:        bus.EventTypeSpeechResumed,
	EventError:         bus.EventTypeSpeechError,
	EventCancel:        bus.EventTypeSpeechCanceled,
	EventBoundary:      bus.EventTypeSpeechBoundary,
	EventMark:          bus.EventTypeSpeechBoundary,
	EventStall:         bus.EventTypeSpeechStall,
	EventVoicesChanged: bus.EventTypeVoicesChanged,
}

func toBusEvent(ev Event) bus.Event {
	data := map[string]any{
		"utteranceId": ev.UtteranceID,
		"pending":     ev.Pending,
	}
	if ev.Text != "" {
		data["text"] = ev.Text
	}
	if ev.Type == EventBoundary || ev.Type == EventMark {
		data["charIndex"] = ev.CharIndex
		data["name"] = ev.Name
	}
	if ev.ElapsedTime > 0 {
		data["elapsedMs"] = ev.ElapsedTime.Milliseconds()
	}
	if ev.Err != nil {
		data["error"] = ev.Err.Error()
	}
	if ev.Type == EventStall {
		data["action"] = ev.Name
	}
	return bus.Event{Type: busTypes[ev.Type], Data: data}
}
