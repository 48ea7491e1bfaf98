package signal_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pipelined.dev/rack/signal"
)

func TestPanGains(t *testing.T) {
	tests := []struct {
		pan   float64
		left  float64
		right float64
	}{
		{pan: -1, left: 1, right: 0},
		{pan: 0, left: math.Sqrt2 / 2, right: math.Sqrt2 / 2},
		{pan: 1, left: 0, right: 1},
		{pan: 5, left: 0, right: 1},
	}
	for _, test := range tests {
		left, right := signal.PanGains(test.pan)
		assert.InDelta(t, test.left, left, 1e-9)
		assert.InDelta(t, test.right, right, 1e-9)
		// constant power
		assert.InDelta(t, 1, left*left+right*right, 1e-9)
	}
}

func TestCentered(t *testing.T) {
	tests := []struct {
		pan      float64
		centered bool
		gain     float64
	}{
		{pan: 0, centered: true, gain: 1},
		{pan: -1e-7, centered: true, gain: 1},
		{pan: 1e-5, centered: false, gain: math.Sqrt2 / 2},
		{pan: -1e-5, centered: false, gain: math.Sqrt2 / 2},
	}
	for _, test := range tests {
		assert.Equal(t, test.centered, signal.Centered(test.pan), test.pan)
		b := signal.EmptyFloat64(2, 1)
		require.NoError(t, b.AddScaled(signal.Float64{{1}, {1}}, 1, test.pan))
		assert.InDelta(t, test.gain, b[0][0], 1e-4, test.pan)
		assert.InDelta(t, test.gain, b[1][0], 1e-4, test.pan)
	}
}

func TestAddScaled(t *testing.T) {
	tests := []struct {
		description string
		sources     []signal.Float64
		gain        float64
		pan         float64
		expected    signal.Float64
		err         error
	}{
		{
			description: "sum without normalization",
			sources: []signal.Float64{
				{{0.5, 0.5}, {0.5, 0.5}},
				{{-0.25, -0.25}, {-0.25, -0.25}},
			},
			gain:     1,
			expected: signal.Float64{{0.25, 0.25}, {0.25, 0.25}},
		},
		{
			description: "no clipping",
			sources: []signal.Float64{
				{{0.75}, {0.75}},
				{{0.75}, {0.75}},
			},
			gain:     1,
			expected: signal.Float64{{1.5}, {1.5}},
		},
		{
			description: "hard left",
			sources: []signal.Float64{
				{{1}, {1}, {1}},
			},
			gain:     0.5,
			pan:      -1,
			expected: signal.Float64{{0.5}, {0}, {0.5}},
		},
		{
			description: "frames mismatch",
			sources: []signal.Float64{
				{{1, 1, 1}, {1, 1, 1}},
			},
			gain: 1,
			err:  signal.ErrLengthMismatch,
		},
		{
			description: "channels mismatch",
			sources: []signal.Float64{
				{{1, 1}},
			},
			gain: 1,
			err:  signal.ErrChannelsMismatch,
		},
	}
	for _, test := range tests {
		size := 1
		if test.expected != nil {
			size = test.expected.Size()
		} else {
			size = 2
		}
		channels := 2
		if test.expected != nil {
			channels = test.expected.NumChannels()
		}
		sum := signal.EmptyFloat64(channels, size)
		var err error
		for _, src := range test.sources {
			if err = sum.AddScaled(src, test.gain, test.pan); err != nil {
				break
			}
		}
		if test.err != nil {
			assert.Equal(t, test.err, err, test.description)
			continue
		}
		assert.NoError(t, err, test.description)
		for c := range test.expected {
			for i := range test.expected[c] {
				assert.InDelta(t, test.expected[c][i], sum[c][i], 1e-9, test.description)
			}
		}
	}
}

func TestBlend(t *testing.T) {
	dry := signal.Float64{{1, 1}}
	wet := signal.Float64{{0, 0.5}}
	assert.NoError(t, dry.Blend(wet, 0.25))
	assert.InDeltaSlice(t, []float64{0.75, 0.875}, dry[0], 1e-9)
	assert.Equal(t, signal.ErrLengthMismatch, dry.Blend(signal.Float64{{1}}, 0.5))
}

func TestStereoOps(t *testing.T) {
	floats := signal.Float64{{1, 0.5}, {-1, 0.5}}
	floats.SwapChannels()
	assert.Equal(t, signal.Float64{{-1, 0.5}, {1, 0.5}}, floats)

	floats.Invert()
	assert.Equal(t, signal.Float64{{1, -0.5}, {-1, -0.5}}, floats)

	floats.Widen(-1)
	assert.Equal(t, signal.Float64{{0, -0.5}, {0, -0.5}}, floats)

	floats = signal.Float64{{2, -2}}
	floats.Clip(1)
	assert.Equal(t, signal.Float64{{1, -1}}, floats)
}

func TestApplyGainPan(t *testing.T) {
	floats := signal.Float64{{1}, {1}}
	floats.ApplyGainPan(2, 0)
	assert.Equal(t, signal.Float64{{2}, {2}}, floats)

	floats.ApplyGainPan(1, 1)
	assert.InDelta(t, 0, floats[0][0], 1e-9)
	assert.InDelta(t, 2, floats[1][0], 1e-9)
}

func TestFormat(t *testing.T) {
	f := signal.Format{SampleRate: 44100, Channels: 2, BitDepth: signal.BitDepth16}
	assert.NoError(t, f.Validate())
	assert.True(t, f.Compatible(signal.Format{SampleRate: 44100, Channels: 2}))
	assert.False(t, f.Compatible(signal.Format{SampleRate: 48000, Channels: 2}))
	assert.Error(t, signal.Format{}.Validate())
	assert.True(t, signal.Format{}.IsZero())
	assert.Equal(t, "44100Hz/2ch/16bit", f.String())
	assert.Equal(t, 44100, f.SampleRate.FramesIn(1e9))
	assert.Equal(t, int64(5e8), int64(f.SampleRate.DurationOf(22050)))
}
