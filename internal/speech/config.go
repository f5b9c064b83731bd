package speech

import (
	"time"

	"github.com/normanking/cortexface/internal/config"
)

// WatchdogMode controls stall detection
type WatchdogMode string

const (
	// WatchdogAuto enables the watchdog only for engines reporting the stall quirk
	WatchdogAuto WatchdogMode = "auto"
	WatchdogOn   WatchdogMode = "on"
	WatchdogOff  WatchdogMode = "off"
)

// Parameter ranges
const (
	MinRate   = 0.1
	MaxRate   = 10.0
	MinPitch  = 0.0
	MaxPitch  = 2.0
	MinVolume = 0.0
	MaxVolume = 1.0
)

// Config holds speech manager settings
type Config struct {
	Enabled       bool
	Muted         bool
	Rate          float64
	Pitch         float64
	Volume        float64
	Language      string
	Voice         string // preferred voice name or URI
	MaxTextLength int

	QueueDelay      time.Duration // settle time before the next queued request
	RestartDelay    time.Duration // wait before resubmitting a stalled utterance
	VoiceRetries    int
	VoiceRetryDelay time.Duration // base delay, doubled per attempt

	Watchdog         WatchdogMode
	WatchdogInterval time.Duration
	StallThreshold   time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Enabled:          true,
		Rate:             1.0,
		Pitch:            1.0,
		Volume:           1.0,
		Language:         "en-US",
		MaxTextLength:    5000,
		QueueDelay:       100 * time.Millisecond,
		RestartDelay:     250 * time.Millisecond,
		VoiceRetries:     3,
		VoiceRetryDelay:  250 * time.Millisecond,
		Watchdog:         WatchdogAuto,
		WatchdogInterval: 5 * time.Second,
		StallThreshold:   10 * time.Second,
	}
}

// FromSettings converts the file configuration section
func FromSettings(s config.SpeechConfig) Config {
	return Config{
		Enabled:          s.Enabled,
		Muted:            s.Muted,
		Rate:             s.Rate,
		Pitch:            s.Pitch,
		Volume:           s.Volume,
		Language:         s.Language,
		Voice:            s.Voice,
		MaxTextLength:    s.MaxTextLength,
		QueueDelay:       s.QueueDelay,
		RestartDelay:     s.RestartDelay,
		VoiceRetries:     s.VoiceRetries,
		VoiceRetryDelay:  s.VoiceRetryDelay,
		Watchdog:         WatchdogMode(s.Watchdog.Mode),
		WatchdogInterval: s.Watchdog.Interval,
		StallThreshold:   s.Watchdog.StallThreshold,
	}
}

// normalize fills unset durations and clamps numeric parameters
func (c Config) normalize() Config {
	d := DefaultConfig()
	if c.Language == "" {
		c.Language = d.Language
	}
	if c.MaxTextLength <= 3 {
		c.MaxTextLength = d.MaxTextLength
	}
	if c.QueueDelay < 0 {
		c.QueueDelay = 0
	}
	if c.RestartDelay < 0 {
		c.RestartDelay = 0
	}
	if c.VoiceRetries < 0 {
		c.VoiceRetries = 0
	}
	if c.VoiceRetryDelay <= 0 {
		c.VoiceRetryDelay = d.VoiceRetryDelay
	}
	switch c.Watchdog {
	case WatchdogOn, WatchdogOff:
	default:
		c.Watchdog = WatchdogAuto
	}
	if c.WatchdogInterval <= 0 {
		c.WatchdogInterval = d.WatchdogInterval
	}
	if c.StallThreshold <= 0 {
		c.StallThreshold = d.StallThreshold
	}
	if c.Rate == 0 {
		c.Rate = d.Rate
	}
	c.Rate = clamp(c.Rate, MinRate, MaxRate)
	c.Pitch = clamp(c.Pitch, MinPitch, MaxPitch)
	c.Volume = clamp(c.Volume, MinVolume, MaxVolume)
	return c
}

func clamp(v, lo, hi float64) float64 {
	if v != v { // NaN
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
