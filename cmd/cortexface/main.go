// Package main is the entry point for the CortexFace CLI.
// CortexFace gives an assistant a voice and a face: a queued speech manager
// over a system synthesizer, and a lexicon sentiment analyzer that drives
// the avatar's expression.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/normanking/cortexface/internal/config"
	"github.com/normanking/cortexface/internal/logging"
	"github.com/normanking/cortexface/internal/sentiment"
	"github.com/normanking/cortexface/internal/speech"
	"github.com/normanking/cortexface/internal/tts"
)

var (
	version = "0.1.0"
	cfgPath string
	verbose bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cortexface",
		Short: "CortexFace - speech and expression for a local assistant",
		Long: `CortexFace speaks assistant replies and picks a facial expression for them.

Analyze text:        cortexface analyze "I love this"
Speak text:          cortexface speak "Hello there"
Run the UI bridge:   cortexface serve
Configuration:       cortexface config show`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file path (default ~/.cortexface/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "CortexFace v%s\n", version)
		},
	})

	rootCmd.AddCommand(analyzeCmd())
	rootCmd.AddCommand(keywordsCmd())
	rootCmd.AddCommand(speakCmd())
	rootCmd.AddCommand(voicesCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(configCmd())

	return rootCmd
}

// loadConfig reads the config file, falling back to defaults with a warning
func loadConfig(cmd *cobra.Command) *config.Config {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v (using defaults)\n", err)
	}
	return cfg
}

// cliLogger is the quiet logger used by one-shot commands
func cliLogger(cmd *cobra.Command) *logging.Logger {
	if verbose {
		return logging.NewWithWriter(cmd.ErrOrStderr(), logging.LevelDebug)
	}
	return logging.NewWithWriter(io.Discard, logging.LevelError)
}

func analyzerFor(cfg *config.Config) *sentiment.Analyzer {
	return sentiment.NewAnalyzer(sentiment.Options{
		Threshold:         cfg.Sentiment.Threshold,
		NegationWindow:    cfg.Sentiment.NegationWindow,
		IntensifierFactor: cfg.Sentiment.IntensifierFactor,
		ConfidenceScale:   cfg.Sentiment.ConfidenceScale,
	})
}

func textArg(args []string) (string, error) {
	text := strings.Join(args, " ")
	if strings.TrimSpace(text) == "" {
		return "", errors.New("no text given")
	}
	return text, nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// SENTIMENT COMMANDS
// ═══════════════════════════════════════════════════════════════════════════════

func analyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze [text]",
		Short: "Classify the emotion of a piece of text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := textArg(args)
			if err != nil {
				return err
			}
			result := analyzerFor(loadConfig(cmd)).Analyze(text)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Emotion:    %s\n", result.Emotion)
			fmt.Fprintf(out, "Confidence: %.2f\n", result.Confidence)
			for _, label := range sentiment.Labels() {
				if score := result.Scores[label]; score != 0 {
					fmt.Fprintf(out, "  %-10s %.2f\n", label, score)
				}
			}
			return nil
		},
	}
}

func keywordsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "keywords [text]",
		Short: "Extract the most frequent content words",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := textArg(args)
			if err != nil {
				return err
			}
			for _, kw := range analyzerFor(loadConfig(cmd)).ExtractKeywords(text, limit) {
				fmt.Fprintln(cmd.OutOrStdout(), kw)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", sentiment.DefaultKeywordLimit, "maximum keywords")
	return cmd
}

// ═══════════════════════════════════════════════════════════════════════════════
// SPEECH COMMANDS
// ═══════════════════════════════════════════════════════════════════════════════

type speechFlags struct {
	engine string
	voice  string
	rate   float64
}

func (f *speechFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.engine, "engine", "", "speech engine: auto, say, espeak, simulated (default from config)")
	cmd.Flags().StringVar(&f.voice, "voice", "", "voice name or URI")
	cmd.Flags().Float64Var(&f.rate, "rate", 0, "speech rate, 0.1-10 (default from config)")
}

// newManager builds an engine and a speech manager for one-shot commands
func (f *speechFlags) newManager(cmd *cobra.Command, cfg *config.Config, log *logging.Logger) (*speech.Manager, error) {
	kind := cfg.Engine.Kind
	if f.engine != "" {
		kind = f.engine
	}
	engine, err := tts.NewEngine(log.Component("tts"), tts.Options{
		Kind:           kind,
		WordsPerMinute: cfg.Engine.WordsPerMinute,
		StallAfter:     cfg.Engine.StallAfter,
		Out:            cmd.OutOrStdout(),
	})
	if err != nil {
		return nil, err
	}

	sc := speech.FromSettings(cfg.Speech)
	sc.Enabled = true
	sc.Muted = false
	if f.voice != "" {
		sc.Voice = f.voice
	}
	if f.rate > 0 {
		sc.Rate = f.rate
	}
	return speech.NewManager(engine, sc, log.Component("speech"))
}

func speakCmd() *cobra.Command {
	var flags speechFlags
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "speak [text]",
		Short: "Speak text and wait for it to finish",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := textArg(args)
			if err != nil {
				return err
			}
			cfg := loadConfig(cmd)
			log := cliLogger(cmd)
			defer log.Close()

			mgr, err := flags.newManager(cmd, cfg, log)
			if err != nil {
				return err
			}
			defer mgr.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			initCtx, cancelInit := context.WithTimeout(ctx, 5*time.Second)
			if err := mgr.Init(initCtx); err != nil {
				log.Warn("cli", "Speaking without a voice list", map[string]interface{}{"error": err.Error()})
			}
			cancelInit()

			done := make(chan error, 1)
			accepted := mgr.Speak(text,
				speech.OnEnd(func() { done <- nil }),
				speech.OnError(func(err error) { done <- err }),
			)
			if !accepted {
				return errors.New("speech was not accepted")
			}

			waitCtx := ctx
			if timeout > 0 {
				var cancel context.CancelFunc
				waitCtx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			select {
			case err := <-done:
				return err
			case <-waitCtx.Done():
				mgr.Cancel()
				return waitCtx.Err()
			}
		},
	}
	flags.register(cmd)
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "give up after this long (0 waits forever)")
	return cmd
}

func voicesCmd() *cobra.Command {
	var flags speechFlags

	cmd := &cobra.Command{
		Use:   "voices",
		Short: "List the voices the speech engine offers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig(cmd)
			log := cliLogger(cmd)
			defer log.Close()

			mgr, err := flags.newManager(cmd, cfg, log)
			if err != nil {
				return err
			}
			defer mgr.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			if err := mgr.Init(ctx); err != nil {
				return err
			}

			selected := mgr.State().SelectedVoice
			out := cmd.OutOrStdout()
			for i, v := range mgr.AvailableVoices() {
				marker := " "
				if selected != nil && selected.VoiceURI == v.VoiceURI {
					marker = "*"
				}
				kind := "local"
				if !v.LocalService {
					kind = "network"
				}
				fmt.Fprintf(out, "%s %3d  %-28s %-8s %s\n", marker, i, v.Name, v.Lang, kind)
			}
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

// ═══════════════════════════════════════════════════════════════════════════════
// CONFIG COMMANDS
// ═══════════════════════════════════════════════════════════════════════════════

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig(cmd)
			out := cmd.OutOrStdout()

			fmt.Fprintln(out, "CortexFace Configuration:")
			fmt.Fprintln(out, "─────────────────────────")
			fmt.Fprintf(out, "Speech Enabled:  %t\n", cfg.Speech.Enabled)
			fmt.Fprintf(out, "Muted:           %t\n", cfg.Speech.Muted)
			fmt.Fprintf(out, "Rate/Pitch/Vol:  %.2f / %.2f / %.2f\n", cfg.Speech.Rate, cfg.Speech.Pitch, cfg.Speech.Volume)
			fmt.Fprintf(out, "Language:        %s\n", cfg.Speech.Language)
			fmt.Fprintf(out, "Voice:           %s\n", orDefault(cfg.Speech.Voice))
			fmt.Fprintf(out, "Watchdog:        %s (every %s, stall after %s)\n",
				cfg.Speech.Watchdog.Mode, cfg.Speech.Watchdog.Interval, cfg.Speech.Watchdog.StallThreshold)
			fmt.Fprintf(out, "Engine:          %s\n", cfg.Engine.Kind)
			fmt.Fprintf(out, "Bridge:          %s%s\n", cfg.Server.Addr, cfg.Server.WSPath)
			fmt.Fprintf(out, "Log Level:       %s\n", cfg.Logging.Level)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := cfgPath
			if path == "" {
				p, err := config.DefaultPath()
				if err != nil {
					return err
				}
				path = p
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	})

	return cmd
}

func orDefault(s string) string {
	if s == "" {
		return "(auto)"
	}
	return s
}
