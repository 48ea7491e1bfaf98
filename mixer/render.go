package mixer

import (
	"errors"
	"fmt"
	"io"
	"time"

	"pipelined.dev/rack"
	"pipelined.dev/rack/effect"
	"pipelined.dev/rack/pool"
	"pipelined.dev/rack/signal"
)

// Render mixes inputs, runs the effects chain and writes the result to
// outputs. Lists are read once, so topology changes made during the call
// take effect on the next one.
//
// Inputs that fail to render are skipped. If every input is exhausted,
// io.EOF is returned. Inputs returning wrong number of frames or channels
// violate the node contract and the error is returned.
//
// With a varying-size effect in the chain the result has the number of
// frames defined by that effect, not the requested one. Consumers that
// need fixed cadence should wrap the mixer with rack.Rechunk.
func (m *Mixer) Render(frames int) (signal.Float64, error) {
	if frames <= 0 {
		return nil, fmt.Errorf("%w: %d", rack.ErrInvalidFrames, frames)
	}
	start := time.Now()
	format := m.InputFormat()
	if format.IsZero() {
		return nil, &Error{Mixer: m.name, Op: "render", Err: ErrNoFormat}
	}
	inputs := m.inputs.load()
	effects := m.effects.load()
	outputs := m.outputs.load()

	b, err := m.mix(inputs, format.Channels, frames)
	if err != nil {
		return nil, err
	}
	b.Scale(m.preGain.Value())
	if m.enableEffects.Enabled() {
		b = m.runChain(effects, b, format.SampleRate)
	}
	b.Widen(m.separation.Value())
	if m.swapChannels.Enabled() {
		b.SwapChannels()
	}
	if m.reversePolarity.Enabled() {
		b.Invert()
	}
	b.ApplyGainPan(m.postGain.Value(), m.pan.Value())

	for _, s := range outputs {
		if err := s.Write(b); err != nil {
			m.logger.WithError(err).Warn("output write failed")
		}
	}
	m.meter.Load().Measure(start, b.Size())
	return b, nil
}

// mix sums inputs into a new buffer.
func (m *Mixer) mix(inputs []*Input, channels, frames int) (signal.Float64, error) {
	b := pool.Get(channels, frames)
	exhausted := 0
	for i, in := range inputs {
		if in.mute.Enabled() {
			continue
		}
		src, err := in.node.Render(frames)
		if err != nil {
			if errors.Is(err, io.EOF) {
				exhausted++
				m.logger.WithField("input", i).Debug("input exhausted")
				continue
			}
			m.logger.WithError(err).WithField("input", i).Warn("input render failed")
			m.meter.Load().Fault()
			continue
		}
		if err := b.AddScaled(src, in.gain.Value(), in.pan.Value()); err != nil {
			pool.Put(b)
			return nil, &Error{
				Mixer: m.name,
				Op:    "render",
				Err:   fmt.Errorf("input %d returned %d frames of %d channels: %w", i, src.Size(), src.NumChannels(), err),
			}
		}
		pool.Put(src)
	}
	if len(inputs) > 0 && exhausted == len(inputs) {
		pool.Put(b)
		return nil, io.EOF
	}
	return b, nil
}

// runChain applies enabled effects in order. Failed effect leaves the
// buffer unmodified, the failure is logged and counted. Effects after a
// rate converter get the converted rate.
func (m *Mixer) runChain(effects []effect.Effect, b signal.Float64, sampleRate signal.SampleRate) signal.Float64 {
	for i, e := range effects {
		if !e.Enable().Enabled() {
			continue
		}
		mix := e.MixLevel().Value()
		switch fx := e.(type) {
		case effect.Varying:
			if !effect.BinaryMix(mix) {
				continue
			}
			out := pool.Get(b.NumChannels(), fx.TargetLength(b.Size()))
			if err := fx.Transform(b, out, sampleRate); err != nil {
				m.effectFault(i, e, err)
				pool.Put(out)
				continue
			}
			if err := out.Validate(); err != nil {
				m.effectFault(i, e, err)
				continue
			}
			pool.Put(b)
			b = out
			if rc, ok := effect.Converter(e); ok {
				sampleRate = rc.OutputRate()
			}
		case effect.Fixed:
			if mix <= 0 {
				continue
			}
			wet := pool.Get(b.NumChannels(), b.Size())
			_ = b.CopyTo(wet)
			if err := m.renderFixed(fx, wet, b.Size(), sampleRate); err != nil {
				m.effectFault(i, e, err)
				pool.Put(wet)
				continue
			}
			if mix >= 1 {
				pool.Put(b)
				b = wet
				continue
			}
			_ = b.Blend(wet, mix)
			pool.Put(wet)
		}
	}
	return b
}

func (m *Mixer) renderFixed(fx effect.Fixed, b signal.Float64, frames int, sampleRate signal.SampleRate) error {
	if err := fx.Render(b, sampleRate); err != nil {
		return err
	}
	if err := b.Validate(); err != nil {
		return err
	}
	if b.Size() != frames {
		return fmt.Errorf("fixed-size effect returned %d frames instead of %d: %w", b.Size(), frames, signal.ErrLengthMismatch)
	}
	return nil
}

func (m *Mixer) effectFault(i int, e effect.Effect, err error) {
	m.meter.Load().Fault()
	m.logger.WithError(err).WithField("effect", i).WithField("type", fmt.Sprintf("%T", effect.Unwrap(e))).Warn("effect failed, buffer left unmodified")
}
