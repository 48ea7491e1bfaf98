package generator_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pipelined.dev/rack"
	"pipelined.dev/rack/generator"
	"pipelined.dev/rack/signal"
)

var stereo = signal.Format{SampleRate: 8000, Channels: 2}

func TestWaveform(t *testing.T) {
	tests := []struct {
		waveform generator.Waveform
		phase    float64
		expected float64
	}{
		{generator.Sine, 0, 0},
		{generator.Sine, 0.25, 1},
		{generator.Sine, 0.75, -1},
		{generator.Sine, 1.25, 1},
		{generator.Square, 0, 0},
		{generator.Square, 0.25, 1},
		{generator.Square, 0.75, -1},
		{generator.Sawtooth, 0, -1},
		{generator.Sawtooth, 0.5, 0},
		{generator.Sawtooth, 0.75, 0.5},
		{generator.Sawtooth, -0.25, 0.5},
		{generator.Triangle, 0, -1},
		{generator.Triangle, 0.25, 0},
		{generator.Triangle, 0.5, 1},
		{generator.Triangle, 0.75, 0},
	}
	for _, test := range tests {
		assert.InDelta(t, test.expected, test.waveform.Value(test.phase), 1e-12, "%v at %v", test.waveform, test.phase)
	}
}

func TestParseWaveform(t *testing.T) {
	for _, name := range []string{"sine", "Square", "SAWTOOTH", "triangle"} {
		w, err := generator.ParseWaveform(name)
		require.NoError(t, err)
		assert.Equal(t, strings.ToLower(name), w.String())
	}
	_, err := generator.ParseWaveform("pulse")
	assert.Error(t, err)
}

func TestOscillator(t *testing.T) {
	o, err := generator.NewOscillator(stereo, generator.Sine, 2000)
	require.NoError(t, err)
	assert.NotEmpty(t, o.ID())
	assert.Equal(t, stereo, o.Format())

	first, err := o.Render(3)
	require.NoError(t, err)
	second, err := o.Render(3)
	require.NoError(t, err)
	result := first.Append(second)
	for c := range result {
		assert.InDeltaSlice(t, []float64{0, 1, 0, -1, 0, 1}, result[c], 1e-12)
	}

	o.Reset()
	o.Amplitude().Set(0.5)
	b, err := o.Render(2)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0, 0.5}, b[0], 1e-12)

	_, err = o.Render(0)
	assert.ErrorIs(t, err, rack.ErrInvalidFrames)
}

func TestOscillatorControls(t *testing.T) {
	o, err := generator.NewOscillator(signal.Format{SampleRate: 8000, Channels: 1}, generator.Triangle, 10000)
	require.NoError(t, err)
	assert.Equal(t, 4000.0, o.Frequency().Value())
	assert.Len(t, o.Controls(), 2)

	o.Frequency().Set(2000)
	o.Amplitude().Set(0.5)
	b, err := o.Render(4)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{-0.5, 0, 0.5, 0}, b[0], 1e-12)

	_, err = generator.NewOscillator(signal.Format{}, generator.Sine, 440)
	assert.ErrorIs(t, err, signal.ErrInvalidFormat)
	_, err = generator.NewOscillator(stereo, generator.Waveform(42), 440)
	assert.Error(t, err)
}

func TestNoise(t *testing.T) {
	n1, err := generator.NewNoise(stereo, 1)
	require.NoError(t, err)
	n2, err := generator.NewNoise(stereo, 1)
	require.NoError(t, err)

	b1, err := n1.Render(256)
	require.NoError(t, err)
	b2, err := n2.Render(256)
	require.NoError(t, err)
	assert.Equal(t, b1, b2)
	assert.NotEqual(t, b1[0], b1[1])
	for c := range b1 {
		for _, v := range b1[c] {
			require.GreaterOrEqual(t, v, -1.0)
			require.Less(t, v, 1.0)
		}
	}

	n1.Amplitude().Set(0)
	b, err := n1.Render(16)
	require.NoError(t, err)
	assert.Equal(t, signal.EmptyFloat64(2, 16), b)

	_, err = n1.Render(-1)
	assert.ErrorIs(t, err, rack.ErrInvalidFrames)
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		kind    interface{}
		invalid bool
	}{
		{name: "sine", kind: &generator.Oscillator{}},
		{name: "triangle", kind: &generator.Oscillator{}},
		{name: "Noise", kind: &generator.Noise{}},
		{name: "pulse", invalid: true},
	}
	for _, test := range tests {
		g, err := generator.New(stereo, test.name, 440)
		if test.invalid {
			assert.Error(t, err, test.name)
			continue
		}
		require.NoError(t, err, test.name)
		assert.IsType(t, test.kind, g, test.name)
		assert.Equal(t, stereo, g.Format())
	}
}
