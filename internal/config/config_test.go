package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pipelined.dev/rack/effect"
	"pipelined.dev/rack/internal/config"
	"pipelined.dev/rack/signal"
)

const full = `
sample_rate: 48000
channels: 2
bit_depth: 24
buffer_size: 256
duration: 2s
type: realtime
mixer:
  pre gain: 0.5
  swap channels: 1
inputs:
  - path: drums.wav
    pan: -0.5
  - path: bass.mp3
    gain: 0.8
    mute: true
    loop: true
  - waveform: square
    frequency: 220
effects:
  - name: gain
    params:
      gain: 1.5
  - name: speed
    params:
      speed: 2
output:
  path: out.wav
log:
  level: debug
`

func write(t *testing.T, name, content string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	c, err := config.Load(write(t, "rack.yaml", full))
	require.NoError(t, err)

	assert.Equal(t, signal.Format{SampleRate: 48000, Channels: 2, BitDepth: signal.BitDepth24}, c.Format())
	assert.Equal(t, 256, c.BufferSize)
	assert.Equal(t, 2*time.Second, c.Duration)
	typ, err := c.MixerType()
	require.NoError(t, err)
	assert.Equal(t, effect.Realtime, typ)
	assert.Equal(t, map[string]float64{"pre gain": 0.5, "swap channels": 1}, c.Mixer)

	require.Len(t, c.Inputs, 3)
	assert.Equal(t, config.Input{Path: "drums.wav", Gain: 1, Pan: -0.5}, c.Inputs[0])
	assert.Equal(t, config.Input{Path: "bass.mp3", Gain: 0.8, Mute: true, Loop: true}, c.Inputs[1])
	assert.Equal(t, config.Input{Waveform: "square", Frequency: 220, Gain: 1}, c.Inputs[2])
	assert.True(t, c.Endless())
	c.Inputs = c.Inputs[:1]
	assert.False(t, c.Endless())

	require.Len(t, c.Effects, 2)
	assert.Equal(t, "speed", c.Effects[1].Name)
	assert.Equal(t, map[string]float64{"gain": 1.5}, c.Effects[0].Params)

	assert.Equal(t, "out.wav", c.Output.Path)
	assert.Equal(t, 192, c.Output.BitRate)
	assert.Equal(t, "debug", c.Log.Level)
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("RACK_OUTPUT_BACKEND", "dummy")
	t.Setenv("RACK_SAMPLE_RATE", "22050")
	c, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "dummy", c.Output.Backend)
	assert.Equal(t, signal.SampleRate(22050), c.Format().SampleRate)
	assert.Equal(t, 512, c.BufferSize)
	typ, err := c.MixerType()
	require.NoError(t, err)
	assert.Equal(t, effect.Offline, typ)
	assert.Empty(t, c.Inputs)
}

func TestInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "no output", content: "channels: 2\n"},
		{name: "both outputs", content: "output:\n  path: a.wav\n  backend: dummy\n"},
		{name: "zero channels", content: "channels: 0\noutput:\n  backend: dummy\n"},
		{name: "buffer size", content: "buffer_size: -1\noutput:\n  backend: dummy\n"},
		{name: "mixer type", content: "type: batch\noutput:\n  backend: dummy\n"},
		{name: "input path", content: "inputs:\n  - gain: 1\noutput:\n  backend: dummy\n"},
		{name: "input path and waveform", content: "inputs:\n  - path: a.wav\n    waveform: sine\noutput:\n  backend: dummy\n"},
		{name: "effect name", content: "effects:\n  - params: {}\noutput:\n  backend: dummy\n"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := config.Load(write(t, "rack.yaml", test.content))
			assert.ErrorIs(t, err, config.ErrInvalid)
		})
	}

	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
