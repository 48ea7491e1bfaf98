// Package generator provides synthetic leaf nodes: periodic waveforms and
// white noise. Generators never end, so mixers and drivers rendering them
// need a limit.
package generator

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/rs/xid"

	"pipelined.dev/rack"
	"pipelined.dev/rack/control"
	"pipelined.dev/rack/metric"
	"pipelined.dev/rack/signal"
)

// Names of generator controls.
const (
	FrequencyControl = "frequency"
	AmplitudeControl = "amplitude"
)

// NoiseName is the generator name of white noise.
const NoiseName = "noise"

// Waveform is a periodic signal shape.
type Waveform int

const (
	// Sine is a pure tone.
	Sine Waveform = iota
	// Square has 50% duty cycle.
	Square
	// Sawtooth rises from -1 to 1 every period.
	Sawtooth
	// Triangle rises from -1 to 1 in the first half of period and falls
	// back in the second one.
	Triangle
)

var waveforms = map[string]Waveform{
	"sine":     Sine,
	"square":   Square,
	"sawtooth": Sawtooth,
	"triangle": Triangle,
}

func (w Waveform) String() string {
	for name, v := range waveforms {
		if v == w {
			return name
		}
	}
	return fmt.Sprintf("Waveform(%d)", int(w))
}

// ParseWaveform returns waveform by its name.
func ParseWaveform(name string) (Waveform, error) {
	if w, ok := waveforms[strings.ToLower(name)]; ok {
		return w, nil
	}
	return 0, fmt.Errorf("unknown waveform %q", name)
}

// Value returns the waveform value at phase, measured in periods.
func (w Waveform) Value(phase float64) float64 {
	_, frac := math.Modf(phase)
	if frac < 0 {
		frac++
	}
	switch w {
	case Sine:
		return math.Sin(2 * math.Pi * frac)
	case Square:
		s := math.Sin(2 * math.Pi * frac)
		switch {
		case s > 0:
			return 1
		case s < 0:
			return -1
		}
		return 0
	case Sawtooth:
		return 2*frac - 1
	case Triangle:
		return 1 - 4*math.Abs(frac-0.5)
	}
	return 0
}

// Generator is a synthetic node with amplitude control.
type Generator interface {
	rack.Node
	control.Controllable
	Amplitude() *control.Float
}

// New returns noise generator for NoiseName and an oscillator of named
// waveform otherwise.
func New(format signal.Format, name string, frequency float64) (Generator, error) {
	if strings.EqualFold(name, NoiseName) {
		return NewNoise(format, uint64(time.Now().UnixNano()))
	}
	w, err := ParseWaveform(name)
	if err != nil {
		return nil, err
	}
	return NewOscillator(format, w, frequency)
}

// Oscillator renders a periodic waveform. Phase is continuous between
// renders and frequency changes.
type Oscillator struct {
	id        string
	format    signal.Format
	waveform  Waveform
	frequency *control.Float
	amplitude *control.Float
	phase     float64
	meter     *metric.Meter
}

// NewOscillator returns oscillator of the waveform. Frequency is limited by
// Nyquist frequency of the format.
func NewOscillator(format signal.Format, w Waveform, frequency float64) (*Oscillator, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	if w < Sine || w > Triangle {
		return nil, fmt.Errorf("unknown waveform %v", w)
	}
	return &Oscillator{
		id:        xid.New().String(),
		format:    format,
		waveform:  w,
		frequency: control.NewFloat(FrequencyControl, 0, float64(format.SampleRate)/2, frequency),
		amplitude: control.NewFloat(AmplitudeControl, 0, 1, 1),
		meter:     metric.NewMeter(metric.ComponentType(&Oscillator{}), format.SampleRate),
	}, nil
}

// ID returns unique oscillator id.
func (o *Oscillator) ID() string {
	return o.id
}

// Format returns oscillator format.
func (o *Oscillator) Format() signal.Format {
	return o.format
}

// Waveform returns the oscillator waveform.
func (o *Oscillator) Waveform() Waveform {
	return o.waveform
}

// Frequency returns frequency control in Hz.
func (o *Oscillator) Frequency() *control.Float {
	return o.frequency
}

// Amplitude returns amplitude control.
func (o *Oscillator) Amplitude() *control.Float {
	return o.amplitude
}

// Controls returns frequency and amplitude controls.
func (o *Oscillator) Controls() []control.Control {
	return []control.Control{o.frequency, o.amplitude}
}

// Reset restarts the waveform from zero phase.
func (o *Oscillator) Reset() {
	o.phase = 0
}

// Render returns the next frames. All channels get the same signal.
func (o *Oscillator) Render(frames int) (signal.Float64, error) {
	if frames <= 0 {
		return nil, fmt.Errorf("%w: %d", rack.ErrInvalidFrames, frames)
	}
	start := time.Now()
	step := o.frequency.Value() / float64(o.format.SampleRate)
	amplitude := o.amplitude.Value()
	b := signal.EmptyFloat64(o.format.Channels, frames)
	for i := 0; i < frames; i++ {
		v := amplitude * o.waveform.Value(o.phase)
		for c := range b {
			b[c][i] = v
		}
		o.phase += step
	}
	_, o.phase = math.Modf(o.phase)
	o.meter.Measure(start, frames)
	return b, nil
}

// Noise renders uniform white noise in [-amplitude, amplitude). Every
// channel gets its own sequence.
type Noise struct {
	id        string
	format    signal.Format
	amplitude *control.Float
	rand      *rand.Rand
	meter     *metric.Meter
}

// NewNoise returns noise generator. Generators with the same seed render
// the same signal.
func NewNoise(format signal.Format, seed uint64) (*Noise, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	return &Noise{
		id:        xid.New().String(),
		format:    format,
		amplitude: control.NewFloat(AmplitudeControl, 0, 1, 1),
		rand:      rand.New(rand.NewPCG(seed, seed)),
		meter:     metric.NewMeter(metric.ComponentType(&Noise{}), format.SampleRate),
	}, nil
}

// ID returns unique generator id.
func (n *Noise) ID() string {
	return n.id
}

// Format returns generator format.
func (n *Noise) Format() signal.Format {
	return n.format
}

// Amplitude returns amplitude control.
func (n *Noise) Amplitude() *control.Float {
	return n.amplitude
}

// Controls returns amplitude control.
func (n *Noise) Controls() []control.Control {
	return []control.Control{n.amplitude}
}

// Render returns the next frames.
func (n *Noise) Render(frames int) (signal.Float64, error) {
	if frames <= 0 {
		return nil, fmt.Errorf("%w: %d", rack.ErrInvalidFrames, frames)
	}
	start := time.Now()
	amplitude := n.amplitude.Value()
	b := signal.EmptyFloat64(n.format.Channels, frames)
	for c := range b {
		for i := range b[c] {
			b[c][i] = amplitude * (n.rand.Float64()*2 - 1)
		}
	}
	n.meter.Measure(start, frames)
	return b, nil
}

var (
	_ Generator = (*Oscillator)(nil)
	_ Generator = (*Noise)(nil)
)
