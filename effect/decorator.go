package effect

import (
	"time"

	"github.com/sirupsen/logrus"

	"pipelined.dev/rack/metric"
	"pipelined.dev/rack/signal"
)

// aroundFunc runs the render call of wrapped effect.
type aroundFunc func(frames int, render func() error) error

// Timed wraps the effect to capture render metrics. Failed renders are
// counted as faults. Returned effect keeps the fixed or varying capability
// of the wrapped one.
func Timed(e Effect, m *metric.Meter) Effect {
	return wrap(e, func(frames int, render func() error) error {
		start := time.Now()
		err := render()
		m.Measure(start, frames)
		if err != nil {
			m.Fault()
		}
		return err
	})
}

// Logged wraps the effect to log render failures.
func Logged(e Effect, l logrus.FieldLogger) Effect {
	return wrap(e, func(frames int, render func() error) error {
		err := render()
		if err != nil {
			l.WithError(err).WithField("frames", frames).Warn("effect render failed")
		}
		return err
	})
}

// Unwrap returns the effect wrapped by decorators.
func Unwrap(e Effect) Effect {
	for {
		w, ok := e.(interface{ unwrap() Effect })
		if !ok {
			return e
		}
		e = w.unwrap()
	}
}

func wrap(e Effect, around aroundFunc) Effect {
	switch v := e.(type) {
	case Varying:
		return &varying{Varying: v, around: around}
	case Fixed:
		return &fixed{Fixed: v, around: around}
	}
	return e
}

type fixed struct {
	Fixed
	around aroundFunc
}

func (f *fixed) Render(b signal.Float64, sampleRate signal.SampleRate) error {
	return f.around(b.Size(), func() error {
		return f.Fixed.Render(b, sampleRate)
	})
}

func (f *fixed) unwrap() Effect {
	return f.Fixed
}

type varying struct {
	Varying
	around aroundFunc
}

func (v *varying) Transform(in, out signal.Float64, sampleRate signal.SampleRate) error {
	return v.around(out.Size(), func() error {
		return v.Varying.Transform(in, out, sampleRate)
	})
}

func (v *varying) unwrap() Effect {
	return v.Varying
}
