package main

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/cortexface/internal/config"
	"github.com/normanking/cortexface/internal/speech"
	"github.com/normanking/cortexface/internal/tts"
)

func TestApplySpeechSettings(t *testing.T) {
	engine := tts.NewSimulatedEngine(zerolog.Nop(), tts.DefaultSimulatedConfig())
	defer engine.Close()
	mgr, err := speech.NewManager(engine, speech.DefaultConfig(), zerolog.Nop())
	require.NoError(t, err)
	defer mgr.Close()

	s := config.DefaultConfig().Speech
	s.Enabled = false
	s.Rate = 2
	s.Volume = 0.5
	applySpeechSettings(mgr, s)

	cfg := mgr.Config()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, 2.0, cfg.Rate)
	assert.Equal(t, 0.5, cfg.Volume)
	assert.False(t, mgr.Speak("hello"))

	s.Enabled = true
	s.Muted = true
	applySpeechSettings(mgr, s)
	assert.True(t, mgr.Config().Enabled)
	assert.True(t, mgr.IsMuted())
}
