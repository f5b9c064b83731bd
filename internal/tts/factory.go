package tts

import (
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
)

// Engine kinds accepted by NewEngine
const (
	KindAuto      = "auto"
	KindSay       = "say"
	KindEspeak    = "espeak"
	KindSimulated = "simulated"
)

// Options selects and tunes an engine
type Options struct {
	Kind           string
	WordsPerMinute int
	StallAfter     time.Duration // simulated only
	Out            io.Writer     // simulated transcript
}

// NewEngine builds the engine named by opts.Kind. Auto picks say, then
// espeak-ng, then the simulated engine.
func NewEngine(logger zerolog.Logger, opts Options) (Engine, error) {
	simulated := func() Engine {
		cfg := DefaultSimulatedConfig()
		if opts.WordsPerMinute > 0 {
			cfg.WordsPerMinute = opts.WordsPerMinute
		}
		cfg.StallAfter = opts.StallAfter
		cfg.Out = opts.Out
		return NewSimulatedEngine(logger, cfg)
	}

	switch opts.Kind {
	case "", KindAuto:
		if say := NewSayEngine(logger); say.Available() {
			return say, nil
		}
		if espeak := NewEspeakEngine(logger); espeak.Available() {
			return espeak, nil
		}
		logger.Info().Msg("No system synthesizer found, using simulated engine")
		return simulated(), nil
	case KindSay:
		return requireAvailable(NewSayEngine(logger))
	case KindEspeak:
		return requireAvailable(NewEspeakEngine(logger))
	case KindSimulated:
		return simulated(), nil
	default:
		return nil, fmt.Errorf("unknown engine kind %q", opts.Kind)
	}
}

func requireAvailable(e *ProcessEngine) (Engine, error) {
	if !e.Available() {
		return nil, fmt.Errorf("%s: %w", e.Name(), ErrEngineUnavailable)
	}
	return e, nil
}
