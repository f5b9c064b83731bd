package bridge

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/normanking/cortexface/internal/bus"
	"github.com/normanking/cortexface/internal/face"
	"github.com/normanking/cortexface/internal/metrics"
	"github.com/normanking/cortexface/internal/sentiment"
	"github.com/normanking/cortexface/internal/speech"
	"github.com/normanking/cortexface/internal/tts"
)

// Message types sent to the UI
const (
	MessageEvent = "event"
	MessageReply = "reply"
	MessageError = "error"
	MessageHello = "hello"
)

// Command types accepted from the UI
const (
	CommandSpeak    = "speak"
	CommandSay      = "say" // analyze then speak
	CommandCancel   = "cancel"
	CommandPause    = "pause"
	CommandResume   = "resume"
	CommandMute     = "mute"
	CommandUnmute   = "unmute"
	CommandAnalyze  = "analyze"
	CommandKeywords = "keywords"
	CommandVoices   = "voices"
	CommandSetVoice = "set_voice"
	CommandState    = "state"
)

// Command is a control request from the UI
type Command struct {
	Type   string   `json:"type"`
	ID     string   `json:"id,omitempty"`
	Text   string   `json:"text,omitempty"`
	Voice  string   `json:"voice,omitempty"`
	Index  *int     `json:"index,omitempty"`
	Rate   *float64 `json:"rate,omitempty"`
	Pitch  *float64 `json:"pitch,omitempty"`
	Volume *float64 `json:"volume,omitempty"`
	Lang   string   `json:"lang,omitempty"`
	Limit  int      `json:"limit,omitempty"`
}

// Speaker is the speech surface the bridge drives
type Speaker interface {
	Speak(text string, opts ...speech.SpeakOption) bool
	Cancel()
	Pause() bool
	Resume() bool
	Mute()
	Unmute()
	SetVoice(nameOrIndex any) bool
	AvailableVoices() []tts.Voice
	State() speech.State
}

// Face is the face surface the bridge drives
type Face interface {
	React(text string) sentiment.Result
	GetState() face.State
}

// Bridge connects the hub to the bus, the speaker and the face
type Bridge struct {
	hub      *Hub
	speaker  Speaker
	face     Face
	analyzer *sentiment.Analyzer
	logger   zerolog.Logger
}

// forwarded lists the bus events relayed to the UI
var forwarded = []bus.EventType{
	bus.EventTypeSpeechQueued,
	bus.EventTypeSpeechStarted,
	bus.EventTypeSpeechEnded,
	bus.EventTypeSpeechPaused,
	bus.EventTypeSpeechResumed,
	bus.EventTypeSpeechError,
	bus.EventTypeSpeechCanceled,
	bus.EventTypeSpeechBoundary,
	bus.EventTypeSpeechStall,
	bus.EventTypeVoicesChanged,
	bus.EventTypeSentimentAnalyzed,
	bus.EventTypeFaceStateChanged,
	bus.EventTypeLog,
}

// New creates a bridge and wires it to b
func New(hub *Hub, b *bus.EventBus, speaker Speaker, f Face, analyzer *sentiment.Analyzer, logger zerolog.Logger) *Bridge {
	if analyzer == nil {
		analyzer = sentiment.NewAnalyzer(sentiment.DefaultOptions())
	}
	br := &Bridge{
		hub:      hub,
		speaker:  speaker,
		face:     f,
		analyzer: analyzer,
		logger:   logger,
	}

	b.SubscribeMultiple(forwarded, func(ev bus.Event) {
		hub.Broadcast(Message{
			Type: MessageEvent,
			Data: map[string]any{"event": string(ev.Type), "data": ev.Data},
		})
	})
	hub.SetCommandHandler(br.handleCommand)
	return br
}

// Handler returns the HTTP routes: the WebSocket endpoint, metrics and a
// health check
func (br *Bridge) Handler(wsPath, metricsPath string, m *metrics.Speech) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(wsPath, br.hub.ServeWs)
	if metricsPath != "" {
		mux.Handle(metricsPath, m.Handler())
	}
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

func (br *Bridge) handleCommand(c *Client, cmd Command) *Message {
	reply := func(data any) *Message {
		return &Message{Type: MessageReply, ID: cmd.ID, Data: data}
	}

	br.logger.Debug().Str("client", c.ID).Str("command", cmd.Type).Msg("UI command")

	switch strings.ToLower(cmd.Type) {
	case CommandSpeak:
		return reply(map[string]any{"accepted": br.speaker.Speak(cmd.Text, speakOptions(cmd)...)})

	case CommandSay:
		result := br.face.React(cmd.Text)
		accepted := br.speaker.Speak(cmd.Text, speakOptions(cmd)...)
		return reply(map[string]any{"accepted": accepted, "sentiment": result})

	case CommandCancel:
		br.speaker.Cancel()
		return reply(map[string]any{"ok": true})

	case CommandPause:
		return reply(map[string]any{"ok": br.speaker.Pause()})

	case CommandResume:
		return reply(map[string]any{"ok": br.speaker.Resume()})

	case CommandMute:
		br.speaker.Mute()
		return reply(map[string]any{"muted": true})

	case CommandUnmute:
		br.speaker.Unmute()
		return reply(map[string]any{"muted": false})

	case CommandAnalyze:
		return reply(br.face.React(cmd.Text))

	case CommandKeywords:
		return reply(map[string]any{"keywords": br.analyzer.ExtractKeywords(cmd.Text, cmd.Limit)})

	case CommandVoices:
		return reply(map[string]any{"voices": br.speaker.AvailableVoices()})

	case CommandSetVoice:
		var key any = cmd.Voice
		if cmd.Index != nil {
			key = *cmd.Index
		}
		return reply(map[string]any{"ok": br.speaker.SetVoice(key)})

	case CommandState:
		return reply(map[string]any{
			"speech": br.speaker.State(),
			"face":   br.face.GetState(),
		})

	default:
		return &Message{Type: MessageError, ID: cmd.ID, Error: "unknown command: " + cmd.Type}
	}
}

func speakOptions(cmd Command) []speech.SpeakOption {
	var opts []speech.SpeakOption
	if cmd.Rate != nil {
		opts = append(opts, speech.WithRate(*cmd.Rate))
	}
	if cmd.Pitch != nil {
		opts = append(opts, speech.WithPitch(*cmd.Pitch))
	}
	if cmd.Volume != nil {
		opts = append(opts, speech.WithVolume(*cmd.Volume))
	}
	if cmd.Lang != "" {
		opts = append(opts, speech.WithLanguage(cmd.Lang))
	}
	return opts
}
