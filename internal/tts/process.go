package tts

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const baseWordsPerMinute = 175

// processBackend describes one command-line synthesizer
type processBackend struct {
	name       string
	bin        string
	goos       string // required GOOS, empty for any
	args       func(u Utterance) []string
	listVoices func(output []byte) []Voice
	voicesArgs []string
}

// ProcessEngine speaks by running a system synthesizer per utterance.
// Pause and resume suspend the child process.
type ProcessEngine struct {
	logger  zerolog.Logger
	backend processBackend

	mu           sync.Mutex
	cmd          *exec.Cmd
	notify       Notify
	uttID        string
	paused       bool
	voices       []Voice
	voicesLoaded bool
	loading      bool
	onVoices     []func()
}

// NewSayEngine creates an engine backed by the macOS 'say' command
func NewSayEngine(logger zerolog.Logger) *ProcessEngine {
	return newProcessEngine(logger, processBackend{
		name:       "say",
		bin:        "say",
		goos:       "darwin",
		args:       sayArgs,
		voicesArgs: []string{"-v", "?"},
		listVoices: parseSayVoices,
	})
}

// NewEspeakEngine creates an engine backed by espeak-ng
func NewEspeakEngine(logger zerolog.Logger) *ProcessEngine {
	return newProcessEngine(logger, processBackend{
		name:       "espeak",
		bin:        "espeak-ng",
		args:       espeakArgs,
		voicesArgs: []string{"--voices"},
		listVoices: parseEspeakVoices,
	})
}

func newProcessEngine(logger zerolog.Logger, backend processBackend) *ProcessEngine {
	return &ProcessEngine{
		logger:  logger.With().Str("engine", backend.name).Logger(),
		backend: backend,
	}
}

// Name returns the backend identifier
func (e *ProcessEngine) Name() string {
	return e.backend.name
}

// Available checks the platform and that the binary exists
func (e *ProcessEngine) Available() bool {
	if e.backend.goos != "" && runtime.GOOS != e.backend.goos {
		return false
	}
	_, err := exec.LookPath(e.backend.bin)
	return err == nil
}

// Speak runs the synthesizer for u, killing any active utterance first
func (e *ProcessEngine) Speak(u Utterance, notify Notify) error {
	args := e.backend.args(u)
	cmd := exec.Command(e.backend.bin, args...)

	e.mu.Lock()
	e.killLocked()
	if err := cmd.Start(); err != nil {
		e.mu.Unlock()
		return fmt.Errorf("%s start: %w", e.backend.name, err)
	}
	e.cmd = cmd
	e.notify = notify
	e.uttID = u.ID
	e.paused = false
	e.mu.Unlock()

	e.logger.Debug().
		Str("utterance", u.ID).
		Int("textLen", len(u.Text)).
		Msg("Speaking")

	started := time.Now()
	notify(Event{Type: EventStart, UtteranceID: u.ID})

	go func() {
		err := cmd.Wait()

		e.mu.Lock()
		interrupted := e.cmd != cmd
		if !interrupted {
			e.cmd = nil
			e.notify = nil
			e.uttID = ""
			e.paused = false
		}
		e.mu.Unlock()

		switch {
		case interrupted:
			notify(Event{Type: EventError, UtteranceID: u.ID, Err: ErrInterrupted})
		case err != nil:
			notify(Event{Type: EventError, UtteranceID: u.ID, Err: fmt.Errorf("%s: %w", e.backend.name, err)})
		default:
			notify(Event{Type: EventEnd, UtteranceID: u.ID, ElapsedTime: time.Since(started)})
		}
	}()

	return nil
}

func (e *ProcessEngine) killLocked() {
	if e.cmd == nil || e.cmd.Process == nil {
		return
	}
	if e.paused {
		_ = resumeProcess(e.cmd.Process)
	}
	_ = e.cmd.Process.Kill()
	e.cmd = nil
	e.notify = nil
	e.uttID = ""
	e.paused = false
}

// Cancel kills the active utterance
func (e *ProcessEngine) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.killLocked()
}

// Pause suspends the synthesizer process
func (e *ProcessEngine) Pause() {
	e.mu.Lock()
	if e.cmd == nil || e.paused {
		e.mu.Unlock()
		return
	}
	if err := suspendProcess(e.cmd.Process); err != nil {
		e.mu.Unlock()
		e.logger.Warn().Err(err).Msg("Pause failed")
		return
	}
	e.paused = true
	notify, id := e.notify, e.uttID
	e.mu.Unlock()

	notify(Event{Type: EventPause, UtteranceID: id})
}

// Resume continues a suspended synthesizer process
func (e *ProcessEngine) Resume() {
	e.mu.Lock()
	if e.cmd == nil || !e.paused {
		e.mu.Unlock()
		return
	}
	if err := resumeProcess(e.cmd.Process); err != nil {
		e.mu.Unlock()
		e.logger.Warn().Err(err).Msg("Resume failed")
		return
	}
	e.paused = false
	notify, id := e.notify, e.uttID
	e.mu.Unlock()

	notify(Event{Type: EventResume, UtteranceID: id})
}

// Paused reports whether the process is suspended
func (e *ProcessEngine) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

// OnVoicesChanged registers a voice list listener
func (e *ProcessEngine) OnVoicesChanged(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onVoices = append(e.onVoices, fn)
}

// Voices returns the cached voice list. The first call starts loading in
// the background and returns nothing, like a browser engine does.
func (e *ProcessEngine) Voices() []Voice {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.voicesLoaded && !e.loading {
		e.loading = true
		go e.loadVoices()
	}
	return copyVoices(e.voices)
}

func (e *ProcessEngine) loadVoices() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, e.backend.bin, e.backend.voicesArgs...).Output()

	e.mu.Lock()
	e.loading = false
	if err != nil {
		e.mu.Unlock()
		e.logger.Warn().Err(err).Msg("Listing voices failed")
		return
	}
	e.voices = e.backend.listVoices(output)
	e.voicesLoaded = true
	handlers := append([]func(){}, e.onVoices...)
	count := len(e.voices)
	e.mu.Unlock()

	e.logger.Info().Int("voices", count).Msg("Voices loaded")
	for _, fn := range handlers {
		fn()
	}
}

func wordsPerMinute(rate float64) int {
	if rate <= 0 {
		rate = 1
	}
	return int(baseWordsPerMinute*rate + 0.5)
}

func sayArgs(u Utterance) []string {
	var args []string
	if u.Voice != nil && u.Voice.Name != "" {
		args = append(args, "-v", u.Voice.Name)
	}
	if wpm := wordsPerMinute(u.Rate); wpm != baseWordsPerMinute {
		args = append(args, "-r", fmt.Sprintf("%d", wpm))
	}

	// say has no pitch flag; volume goes through an embedded command
	text := u.Text
	if u.Volume < 1 {
		text = fmt.Sprintf("[[volm %.2f]] %s", u.Volume, text)
	}
	return append(args, "--", text)
}

func espeakArgs(u Utterance) []string {
	voice := strings.ToLower(u.Lang)
	if u.Voice != nil && u.Voice.Lang != "" {
		voice = strings.ToLower(u.Voice.Lang)
	}

	args := []string{
		"-s", fmt.Sprintf("%d", wordsPerMinute(u.Rate)),
		"-a", fmt.Sprintf("%d", int(u.Volume*100+0.5)),
		"-p", fmt.Sprintf("%d", min(int(u.Pitch*50+0.5), 99)),
	}
	if voice != "" {
		args = append(args, "-v", voice)
	}
	return append(args, "--", u.Text)
}

// "Samantha            en_US    # Hello! My name is Samantha."
var sayVoiceLine = regexp.MustCompile(`^(.+?)\s{2,}([a-z]{2,3}[_-][A-Za-z0-9_-]+)\s+#`)

func parseSayVoices(output []byte) []Voice {
	var voices []Voice
	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		m := sayVoiceLine.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		name := strings.TrimSpace(m[1])
		voices = append(voices, Voice{
			Name:         name,
			Lang:         strings.ReplaceAll(m[2], "_", "-"),
			VoiceURI:     "com.apple.speech.synthesis.voice." + name,
			LocalService: true,
		})
	}
	return voices
}

// " 5  en-us           --/M      English_(America)  gmw/en-US"
func parseEspeakVoices(output []byte) []Voice {
	var voices []Voice
	scanner := bufio.NewScanner(bytes.NewReader(output))
	first := true
	for scanner.Scan() {
		if first {
			first = false
			continue
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) < 5 {
			continue
		}
		voices = append(voices, Voice{
			Name:         strings.ReplaceAll(fields[3], "_", " "),
			Lang:         normalizeLang(fields[1]),
			VoiceURI:     fields[4],
			LocalService: true,
		})
	}
	return voices
}

// normalizeLang turns "en-us" or "en_US" into "en-US"
func normalizeLang(tag string) string {
	parts := strings.FieldsFunc(tag, func(r rune) bool { return r == '-' || r == '_' })
	if len(parts) == 0 {
		return tag
	}
	parts[0] = strings.ToLower(parts[0])
	if len(parts) > 1 && len(parts[1]) == 2 {
		parts[1] = strings.ToUpper(parts[1])
	}
	return strings.Join(parts, "-")
}
