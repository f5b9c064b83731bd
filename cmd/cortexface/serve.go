package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/normanking/cortexface/internal/bridge"
	"github.com/normanking/cortexface/internal/bus"
	"github.com/normanking/cortexface/internal/config"
	"github.com/normanking/cortexface/internal/face"
	"github.com/normanking/cortexface/internal/logging"
	"github.com/normanking/cortexface/internal/metrics"
	"github.com/normanking/cortexface/internal/speech"
	"github.com/normanking/cortexface/internal/tts"
)

func serveCmd() *cobra.Command {
	var addr, engineKind string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the speech manager and face behind the WebSocket bridge",
		Long: `Serve starts the speech manager, the face controller and a WebSocket
bridge for the desktop UI. Prometheus metrics are served next to it.

The config file is watched. The speech settings enabled, muted, rate, pitch,
volume, language and voice apply without a restart.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			loader, err := config.NewLoader(cfgPath)
			if err != nil {
				return err
			}
			cfg, err := loader.Load()
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v (using defaults)\n", err)
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if engineKind != "" {
				cfg.Engine.Kind = engineKind
			}

			log, err := newServeLogger(cfg)
			if err != nil {
				return err
			}
			defer log.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, loader, cfg, log)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().StringVar(&engineKind, "engine", "", "speech engine: auto, say, espeak, simulated (default from config)")
	return cmd
}

func newServeLogger(cfg *config.Config) (*logging.Logger, error) {
	level := logging.LogLevel(cfg.Logging.Level)
	if verbose {
		level = logging.LevelDebug
	}
	lc := logging.DefaultConfig()
	if cfg.Logging.Dir != "" {
		lc.LogDir = cfg.Logging.Dir
	}
	lc.Level = level
	lc.Console = cfg.Logging.Console
	if cfg.Logging.MaxHistory > 0 {
		lc.MaxHistory = cfg.Logging.MaxHistory
	}
	return logging.New(lc)
}

// serve wires the components together and blocks until ctx is done
func serve(ctx context.Context, loader *config.Loader, cfg *config.Config, log *logging.Logger) error {
	eventBus := bus.NewEventBus()
	m := metrics.New()

	// Bridge logs are not streamed back to the UI so a full broadcast queue
	// cannot feed itself.
	log.SetOnLog(func(entry logging.LogEntry) {
		if entry.Component == "bridge" {
			return
		}
		eventBus.Publish(bus.Event{
			Type: bus.EventTypeLog,
			Data: map[string]any{
				"level":     entry.Level,
				"component": entry.Component,
				"message":   entry.Message,
				"timestamp": entry.Timestamp,
			},
		})
	})

	engine, err := tts.NewEngine(log.Component("tts"), tts.Options{
		Kind:           cfg.Engine.Kind,
		WordsPerMinute: cfg.Engine.WordsPerMinute,
		StallAfter:     cfg.Engine.StallAfter,
	})
	if err != nil {
		return fmt.Errorf("speech engine: %w", err)
	}

	mgr, err := speech.NewManager(engine, speech.FromSettings(cfg.Speech), log.Component("speech"),
		speech.WithBus(eventBus),
		speech.WithMetrics(m),
	)
	if err != nil {
		return fmt.Errorf("speech manager: %w", err)
	}
	defer mgr.Close()

	initCtx, cancelInit := context.WithTimeout(ctx, 10*time.Second)
	if err := mgr.Init(initCtx); err != nil {
		log.Warn("serve", "Speech initialized without voices", map[string]interface{}{"error": err.Error()})
	}
	cancelInit()

	analyzer := analyzerFor(cfg)
	controller := face.NewController(analyzer, log.Component("face"), face.DefaultConfig())
	controller.Attach(eventBus)
	eventBus.Subscribe(bus.EventTypeSentimentAnalyzed, func(ev bus.Event) {
		if emotion, ok := ev.Data["emotion"].(string); ok {
			m.RecordEmotion(emotion)
		}
	})
	controller.Start()
	defer controller.Stop()

	hub := bridge.NewHub(log.Component("bridge"), m)
	br := bridge.New(hub, eventBus, mgr, controller, analyzer, log.Component("bridge"))
	go hub.Run(ctx)

	loader.Watch(func(next *config.Config, err error) {
		if err != nil {
			log.Warn("config", "Config reload failed", map[string]interface{}{"error": err.Error()})
			return
		}
		applySpeechSettings(mgr, next.Speech)
		log.Info("config", "Config reloaded", map[string]interface{}{"path": loader.Path()})
	})

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           br.Handler(cfg.Server.WSPath, cfg.Server.MetricsPath, m),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("serve", "Bridge listening", map[string]interface{}{
			"addr":    cfg.Server.Addr,
			"ws":      cfg.Server.WSPath,
			"metrics": cfg.Server.MetricsPath,
		})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("bridge server: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("serve", "Shutting down", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// applySpeechSettings pushes the live-tunable parts of a reloaded config
func applySpeechSettings(mgr *speech.Manager, s config.SpeechConfig) {
	current := mgr.Config()

	if s.Enabled != current.Enabled {
		mgr.SetEnabled(s.Enabled)
	}
	if s.Muted != current.Muted {
		if s.Muted {
			mgr.Mute()
		} else {
			mgr.Unmute()
		}
	}
	if s.Rate > 0 && s.Rate != current.Rate {
		mgr.SetRate(s.Rate)
	}
	if s.Pitch != current.Pitch {
		mgr.SetPitch(s.Pitch)
	}
	if s.Volume != current.Volume {
		mgr.SetVolume(s.Volume)
	}
	if s.Language != "" && s.Language != current.Language {
		mgr.SetLanguage(s.Language)
	}
	if s.Voice != "" && s.Voice != current.Voice {
		mgr.SetVoice(s.Voice)
	}
}
