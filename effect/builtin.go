package effect

import (
	"fmt"

	"github.com/oov/audio/resampler"

	"pipelined.dev/rack/control"
	"pipelined.dev/rack/signal"
)

// Gain scales the signal.
type Gain struct {
	Base
	gain *control.Float
}

// NewGain returns gain effect. Gain is in [0, 4] range.
func NewGain(gain float64, options ...Option) *Gain {
	g := control.NewFloat("gain", 0, 4, gain)
	return &Gain{
		Base: NewBase([]control.Control{g}, options...),
		gain: g,
	}
}

// Gain returns gain control.
func (g *Gain) Gain() *control.Float {
	return g.gain
}

// Render scales the buffer.
func (g *Gain) Render(b signal.Float64, _ signal.SampleRate) error {
	b.Scale(g.gain.Value())
	return nil
}

// Invert reverses polarity.
type Invert struct {
	Base
}

// NewInvert returns polarity inversion effect.
func NewInvert(options ...Option) *Invert {
	return &Invert{
		Base: NewBase(nil, options...),
	}
}

// Render inverts the buffer.
func (i *Invert) Render(b signal.Float64, _ signal.SampleRate) error {
	b.Invert()
	return nil
}

// Clipper limits the signal to threshold.
type Clipper struct {
	Base
	threshold *control.Float
}

// NewClipper returns hard clipping effect.
func NewClipper(threshold float64, options ...Option) *Clipper {
	t := control.NewFloat("threshold", 0, 1, threshold)
	return &Clipper{
		Base:      NewBase([]control.Control{t}, options...),
		threshold: t,
	}
}

// Threshold returns threshold control.
func (c *Clipper) Threshold() *control.Float {
	return c.threshold
}

// Render clips the buffer.
func (c *Clipper) Render(b signal.Float64, _ signal.SampleRate) error {
	b.Clip(c.threshold.Value())
	return nil
}

// Speed changes playback speed with linear interpolation. Speed 2 plays
// twice faster and halves the number of frames.
type Speed struct {
	Base
	speed *control.Float
}

// NewSpeed returns speed effect. Speed is in [0.001, 50] range.
func NewSpeed(speed float64, options ...Option) *Speed {
	s := control.NewFloat("speed", 0.001, 50, speed)
	return &Speed{
		Base:  NewBase([]control.Control{s}, options...),
		speed: s,
	}
}

// Speed returns speed control.
func (s *Speed) Speed() *control.Float {
	return s.speed
}

// TargetLength returns ceil(in / speed).
func (s *Speed) TargetLength(in int) int {
	return ceil(float64(in) / s.speed.Value())
}

// RequiredInputLength returns ceil(out · speed).
func (s *Speed) RequiredInputLength(out int) int {
	return ceil(float64(out) * s.speed.Value())
}

// Transform interpolates input into output. The step is derived from
// buffer sizes, so it stays consistent if speed changes between calls.
func (s *Speed) Transform(in, out signal.Float64, _ signal.SampleRate) error {
	if in.NumChannels() != out.NumChannels() {
		return signal.ErrChannelsMismatch
	}
	inSize, outSize := in.Size(), out.Size()
	if outSize == 0 {
		return nil
	}
	if inSize == 0 {
		out.Clear()
		return nil
	}
	step := float64(inSize) / float64(outSize)
	for c := range out {
		src, dst := in[c], out[c]
		for i := range dst {
			pos := float64(i) * step
			idx := int(pos)
			if idx >= inSize-1 {
				dst[i] = src[inSize-1]
				continue
			}
			frac := pos - float64(idx)
			dst[i] = src[idx] + (src[idx+1]-src[idx])*frac
		}
	}
	return nil
}

// Resampler converts signal to another sample rate. It's stateful: input
// is treated as continuous stream, so one instance must not be shared
// between mixers.
type Resampler struct {
	Base
	channels int
	inRate   signal.SampleRate
	outRate  signal.SampleRate
	r        processor
	in, out  []float32
	// pending holds resampled frames not returned yet.
	pending [][]float32
}

type processor interface {
	ProcessFloat32(channel int, in, out []float32) (read, written int)
}

// DefaultQuality is the resampler quality used by registry factory.
const DefaultQuality = 10

// NewResampler returns resampler from input format rate to provided rate.
// Quality is in [0, 10] range.
func NewResampler(format signal.Format, outRate signal.SampleRate, quality int, options ...Option) (*Resampler, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	if outRate == 0 {
		return nil, fmt.Errorf("resampler: %w: zero output rate", signal.ErrInvalidFormat)
	}
	return &Resampler{
		Base:     NewBase(nil, options...),
		channels: format.Channels,
		inRate:   format.SampleRate,
		outRate:  outRate,
		r:        resampler.New(format.Channels, int(format.SampleRate), int(outRate), quality),
		pending:  make([][]float32, format.Channels),
	}, nil
}

// InputRate returns the rate of incoming signal.
func (r *Resampler) InputRate() signal.SampleRate {
	return r.inRate
}

// OutputRate returns the rate of resampled signal.
func (r *Resampler) OutputRate() signal.SampleRate {
	return r.outRate
}

// TargetLength returns ceil(in · outRate / inRate).
func (r *Resampler) TargetLength(in int) int {
	return ceil(float64(in) * float64(r.outRate) / float64(r.inRate))
}

// RequiredInputLength returns ceil(out · inRate / outRate).
func (r *Resampler) RequiredInputLength(out int) int {
	return ceil(float64(out) * float64(r.inRate) / float64(r.outRate))
}

// Transform resamples input. Filter delay is compensated with leading
// silence, so output always has the requested number of frames.
func (r *Resampler) Transform(in, out signal.Float64, _ signal.SampleRate) error {
	if in.NumChannels() != r.channels || out.NumChannels() != r.channels {
		return signal.ErrChannelsMismatch
	}
	size := in.Size()
	if cap(r.in) < size {
		r.in = make([]float32, size)
	}
	if outSize := r.TargetLength(size) + 64; cap(r.out) < outSize {
		r.out = make([]float32, outSize)
	}
	for c := 0; c < r.channels; c++ {
		src := r.in[:size]
		for i, v := range in[c] {
			src[i] = float32(v)
		}
		for len(src) > 0 {
			read, written := r.r.ProcessFloat32(c, src, r.out[:cap(r.out)])
			r.pending[c] = append(r.pending[c], r.out[:written]...)
			if read == 0 && written == 0 {
				break
			}
			src = src[read:]
		}

		dst := out[c]
		missing := len(dst) - len(r.pending[c])
		n := 0
		for ; n < missing; n++ {
			dst[n] = 0
		}
		for i := range dst[n:] {
			dst[n+i] = float64(r.pending[c][i])
		}
		r.pending[c] = r.pending[c][:copy(r.pending[c], r.pending[c][len(dst)-n:])]
	}
	return nil
}

var (
	_ Fixed         = (*Gain)(nil)
	_ Fixed         = (*Invert)(nil)
	_ Fixed         = (*Clipper)(nil)
	_ Varying       = (*Speed)(nil)
	_ RateConverter = (*Resampler)(nil)
)
