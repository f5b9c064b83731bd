package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cfg := filepath.Join(t.TempDir(), "config.yaml")

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", cfg}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "CortexFace v"+version+"\n", out)
}

func TestAnalyzeCommand(t *testing.T) {
	out, err := run(t, "analyze", "I", "love", "this", "wonderful", "day")
	require.NoError(t, err)
	assert.Contains(t, out, "Emotion:    happy")
	assert.Contains(t, out, "Confidence: ")
}

func TestAnalyzeCommand_RequiresText(t *testing.T) {
	_, err := run(t, "analyze")
	assert.Error(t, err)

	_, err = run(t, "analyze", "  ")
	assert.EqualError(t, err, "no text given")
}

func TestKeywordsCommand(t *testing.T) {
	out, err := run(t, "keywords", "-n", "2", "deploy the server, restart the server, deploy again")
	require.NoError(t, err)
	assert.Equal(t, []string{"deploy", "server"}, strings.Fields(out))
}

func TestSpeakCommand_SimulatedEngine(t *testing.T) {
	out, err := run(t, "speak", "--engine", "simulated", "--rate", "10", "hello there")
	require.NoError(t, err)
	assert.Contains(t, out, "hello there")
}

func TestSpeakCommand_UnknownEngine(t *testing.T) {
	_, err := run(t, "speak", "--engine", "robot", "hi")
	assert.ErrorContains(t, err, "unknown engine kind")
}

func TestVoicesCommand_SimulatedEngine(t *testing.T) {
	out, err := run(t, "voices", "--engine", "simulated")
	require.NoError(t, err)
	assert.Contains(t, out, "*")
	assert.Contains(t, out, "en-US")
}

func TestConfigPathCommand(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	path := filepath.Join(t.TempDir(), "custom.yaml")
	cmd.SetArgs([]string{"--config", path, "config", "path"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, path+"\n", out.String())
}

func TestConfigShowCommand(t *testing.T) {
	out, err := run(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "Speech Enabled:  true")
	assert.Contains(t, out, "Engine:          auto")
}
