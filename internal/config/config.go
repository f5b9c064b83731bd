// Package config provides configuration management for CortexFace
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Speech    SpeechConfig    `mapstructure:"speech" yaml:"speech"`
	Sentiment SentimentConfig `mapstructure:"sentiment" yaml:"sentiment"`
	Engine    EngineConfig    `mapstructure:"engine" yaml:"engine"`
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
}

// SpeechConfig configures the speech manager
type SpeechConfig struct {
	Enabled         bool           `mapstructure:"enabled" yaml:"enabled"`
	Muted           bool           `mapstructure:"muted" yaml:"muted"`
	Rate            float64        `mapstructure:"rate" yaml:"rate"`     // 0.1-10
	Pitch           float64        `mapstructure:"pitch" yaml:"pitch"`   // 0-2
	Volume          float64        `mapstructure:"volume" yaml:"volume"` // 0-1
	Language        string         `mapstructure:"language" yaml:"language"`
	Voice           string         `mapstructure:"voice" yaml:"voice"` // name or URI
	MaxTextLength   int            `mapstructure:"max_text_length" yaml:"max_text_length"`
	QueueDelay      time.Duration  `mapstructure:"queue_delay" yaml:"queue_delay"`
	RestartDelay    time.Duration  `mapstructure:"restart_delay" yaml:"restart_delay"`
	VoiceRetries    int            `mapstructure:"voice_retries" yaml:"voice_retries"`
	VoiceRetryDelay time.Duration  `mapstructure:"voice_retry_delay" yaml:"voice_retry_delay"`
	Watchdog        WatchdogConfig `mapstructure:"watchdog" yaml:"watchdog"`
}

// WatchdogConfig configures stall detection
type WatchdogConfig struct {
	Mode           string        `mapstructure:"mode" yaml:"mode"` // auto, on, off
	Interval       time.Duration `mapstructure:"interval" yaml:"interval"`
	StallThreshold time.Duration `mapstructure:"stall_threshold" yaml:"stall_threshold"`
}

// SentimentConfig tunes the lexicon analyzer
type SentimentConfig struct {
	Threshold         float64 `mapstructure:"threshold" yaml:"threshold"`
	NegationWindow    int     `mapstructure:"negation_window" yaml:"negation_window"`
	IntensifierFactor float64 `mapstructure:"intensifier_factor" yaml:"intensifier_factor"`
	ConfidenceScale   float64 `mapstructure:"confidence_scale" yaml:"confidence_scale"`
}

// EngineConfig selects the speech engine backing the manager
type EngineConfig struct {
	Kind           string        `mapstructure:"kind" yaml:"kind"` // auto, say, simulated
	WordsPerMinute int           `mapstructure:"words_per_minute" yaml:"words_per_minute"`
	StallAfter     time.Duration `mapstructure:"stall_after" yaml:"stall_after"` // simulated only, 0 disables
}

// ServerConfig configures the UI bridge server
type ServerConfig struct {
	Addr        string `mapstructure:"addr" yaml:"addr"`
	WSPath      string `mapstructure:"ws_path" yaml:"ws_path"`
	MetricsPath string `mapstructure:"metrics_path" yaml:"metrics_path"`
}

// LoggingConfig configures the logger
type LoggingConfig struct {
	Dir        string `mapstructure:"dir" yaml:"dir"`
	Level      string `mapstructure:"level" yaml:"level"`
	Console    bool   `mapstructure:"console" yaml:"console"`
	MaxHistory int    `mapstructure:"max_history" yaml:"max_history"`
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() *Config {
	logDir := ""
	if dir, err := GetConfigDir(); err == nil {
		logDir = filepath.Join(dir, "logs")
	}

	return &Config{
		Speech: SpeechConfig{
			Enabled:         true,
			Muted:           false,
			Rate:            1.0,
			Pitch:           1.0,
			Volume:          1.0,
			Language:        "en-US",
			Voice:           "",
			MaxTextLength:   5000,
			QueueDelay:      100 * time.Millisecond,
			RestartDelay:    250 * time.Millisecond,
			VoiceRetries:    3,
			VoiceRetryDelay: 250 * time.Millisecond,
			Watchdog: WatchdogConfig{
				Mode:           "auto",
				Interval:       5 * time.Second,
				StallThreshold: 10 * time.Second,
			},
		},
		Sentiment: SentimentConfig{
			Threshold:         0.2,
			NegationWindow:    4,
			IntensifierFactor: 1.5,
			ConfidenceScale:   3,
		},
		Engine: EngineConfig{
			Kind:           "auto",
			WordsPerMinute: 175,
		},
		Server: ServerConfig{
			Addr:        "127.0.0.1:8765",
			WSPath:      "/ws",
			MetricsPath: "/metrics",
		},
		Logging: LoggingConfig{
			Dir:        logDir,
			Level:      "info",
			Console:    true,
			MaxHistory: 1000,
		},
	}
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".cortexface"), nil
}

// DefaultPath returns ~/.cortexface/config.yaml
func DefaultPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Loader reads, reloads and persists one config file.
type Loader struct {
	v    *viper.Viper
	path string

	mu      sync.Mutex
	current *Config
}

// NewLoader creates a loader for path; an empty path means DefaultPath().
func NewLoader(path string) (*Loader, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("CORTEXFACE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, DefaultConfig())

	return &Loader{v: v, path: path}, nil
}

// Path returns the config file path
func (l *Loader) Path() string {
	return l.path
}

// Load reads configuration from file and environment. A missing file is
// created from defaults.
func (l *Loader) Load() (*Config, error) {
	if _, err := os.Stat(l.path); errors.Is(err, os.ErrNotExist) {
		if err := l.Save(DefaultConfig()); err != nil {
			return DefaultConfig(), fmt.Errorf("write default config: %w", err)
		}
	}

	if err := l.v.ReadInConfig(); err != nil {
		return DefaultConfig(), fmt.Errorf("read config %s: %w", l.path, err)
	}

	return l.unmarshal()
}

func (l *Loader) unmarshal() (*Config, error) {
	cfg := DefaultConfig()
	if err := l.v.Unmarshal(cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("decode config: %w", err)
	}

	l.mu.Lock()
	l.current = cfg
	l.mu.Unlock()
	return cfg, nil
}

// Current returns the last successfully loaded config, or nil
func (l *Loader) Current() *Config {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

// Watch reloads the file whenever it changes on disk and hands the result to
// onChange. Decode failures are reported with the defaults.
func (l *Loader) Watch(onChange func(*Config, error)) {
	l.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := l.unmarshal()
		onChange(cfg, err)
	})
	l.v.WatchConfig()
}

// Save writes the configuration to the loader's path
func (l *Loader) Save(cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return err
	}

	// A scratch instance keeps these overrides from shadowing the file on
	// the next read.
	w := viper.New()
	w.SetConfigType("yaml")
	w.Set("speech", cfg.Speech)
	w.Set("sentiment", cfg.Sentiment)
	w.Set("engine", cfg.Engine)
	w.Set("server", cfg.Server)
	w.Set("logging", cfg.Logging)

	return w.WriteConfigAs(l.path)
}

// Load is a convenience wrapper around NewLoader(path).Load().
func Load(path string) (*Config, error) {
	l, err := NewLoader(path)
	if err != nil {
		return DefaultConfig(), err
	}
	return l.Load()
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("speech.enabled", cfg.Speech.Enabled)
	v.SetDefault("speech.muted", cfg.Speech.Muted)
	v.SetDefault("speech.rate", cfg.Speech.Rate)
	v.SetDefault("speech.pitch", cfg.Speech.Pitch)
	v.SetDefault("speech.volume", cfg.Speech.Volume)
	v.SetDefault("speech.language", cfg.Speech.Language)
	v.SetDefault("speech.voice", cfg.Speech.Voice)
	v.SetDefault("speech.max_text_length", cfg.Speech.MaxTextLength)
	v.SetDefault("speech.queue_delay", cfg.Speech.QueueDelay)
	v.SetDefault("speech.restart_delay", cfg.Speech.RestartDelay)
	v.SetDefault("speech.voice_retries", cfg.Speech.VoiceRetries)
	v.SetDefault("speech.voice_retry_delay", cfg.Speech.VoiceRetryDelay)
	v.SetDefault("speech.watchdog.mode", cfg.Speech.Watchdog.Mode)
	v.SetDefault("speech.watchdog.interval", cfg.Speech.Watchdog.Interval)
	v.SetDefault("speech.watchdog.stall_threshold", cfg.Speech.Watchdog.StallThreshold)

	v.SetDefault("sentiment.threshold", cfg.Sentiment.Threshold)
	v.SetDefault("sentiment.negation_window", cfg.Sentiment.NegationWindow)
	v.SetDefault("sentiment.intensifier_factor", cfg.Sentiment.IntensifierFactor)
	v.SetDefault("sentiment.confidence_scale", cfg.Sentiment.ConfidenceScale)

	v.SetDefault("engine.kind", cfg.Engine.Kind)
	v.SetDefault("engine.words_per_minute", cfg.Engine.WordsPerMinute)
	v.SetDefault("engine.stall_after", cfg.Engine.StallAfter)

	v.SetDefault("server.addr", cfg.Server.Addr)
	v.SetDefault("server.ws_path", cfg.Server.WSPath)
	v.SetDefault("server.metrics_path", cfg.Server.MetricsPath)

	v.SetDefault("logging.dir", cfg.Logging.Dir)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.console", cfg.Logging.Console)
	v.SetDefault("logging.max_history", cfg.Logging.MaxHistory)
}
