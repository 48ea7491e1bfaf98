// Package mock provides mocks for graph components and allows to execute
// integration tests.
package mock

import (
	"io"
	"sync"
	"time"

	"pipelined.dev/rack/effect"
	"pipelined.dev/rack/signal"
)

// Source mocks a rack.Node leaf.
type Source struct {
	counter
	SampleRate signal.SampleRate
	Channels   int
	Interval   time.Duration
	// Limit is the number of frames to render, zero means unlimited.
	Limit int
	Value float64
	// Frames overrides number of rendered frames.
	Frames      int
	ErrorOnCall error
	// OnRender is called at the start of every render.
	OnRender func(frames int)
	Hooks
}

// Format returns mocked format.
func (m *Source) Format() signal.Format {
	return signal.Format{SampleRate: m.SampleRate, Channels: m.Channels}
}

// Render returns buffer filled with Value. The last buffer is shortened if
// Limit is reached, io.EOF is returned afterwards.
func (m *Source) Render(frames int) (signal.Float64, error) {
	if m.OnRender != nil {
		m.OnRender(frames)
	}
	if m.ErrorOnCall != nil {
		return nil, m.ErrorOnCall
	}
	if m.Limit > 0 && m.frames >= m.Limit {
		return nil, io.EOF
	}
	time.Sleep(m.Interval)
	if m.Frames > 0 {
		frames = m.Frames
	}
	if left := m.Limit - m.frames; m.Limit > 0 && left < frames {
		frames = left
	}
	b := signal.EmptyFloat64(m.Channels, frames)
	for i := range b {
		for j := range b[i] {
			b[i][j] = m.Value
		}
	}
	m.advance(frames)
	return b, nil
}

// Close implements io.Closer.
func (m *Source) Close() error {
	m.Closed = true
	return m.ErrorOnClose
}

// Sink mocks rack.Sink. It's safe to check the buffer while the graph is
// running.
type Sink struct {
	mu sync.Mutex
	counter
	buffer      signal.Float64
	Discard     bool
	ErrorOnCall error
	Hooks
}

// Write appends the buffer.
func (m *Sink) Write(b signal.Float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ErrorOnCall != nil {
		return m.ErrorOnCall
	}
	if !m.Discard {
		m.buffer = m.buffer.Append(b)
	}
	m.advance(b.Size())
	return nil
}

// Close implements io.Closer.
func (m *Sink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return m.ErrorOnClose
}

// Buffer returns a copy of sink's buffer.
func (m *Sink) Buffer() signal.Float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buffer.Clone()
}

// Count returns number of writes and frames.
func (m *Sink) Count() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counter.Count()
}

// Effect mocks a fixed-size effect: it adds Value to every sample.
type Effect struct {
	effect.Base
	counter
	Value       float64
	ErrorOnCall error
}

// NewEffect returns effect mock.
func NewEffect(value float64, options ...effect.Option) *Effect {
	return &Effect{
		Base:  effect.NewBase(nil, options...),
		Value: value,
	}
}

// Render adds value to samples.
func (m *Effect) Render(b signal.Float64, _ signal.SampleRate) error {
	if m.ErrorOnCall != nil {
		// partially processed buffer must be discarded by caller
		if len(b) > 0 && len(b[0]) > 0 {
			b[0][0] = m.Value
		}
		return m.ErrorOnCall
	}
	for i := range b {
		for j := range b[i] {
			b[i][j] += m.Value
		}
	}
	m.advance(b.Size())
	return nil
}

// Varying mocks a varying-size effect that repeats every frame Factor
// times.
type Varying struct {
	effect.Base
	counter
	Factor      int
	ErrorOnCall error
}

// NewVarying returns varying effect mock.
func NewVarying(factor int, options ...effect.Option) *Varying {
	return &Varying{
		Base:   effect.NewBase(nil, options...),
		Factor: factor,
	}
}

// TargetLength returns in · Factor.
func (m *Varying) TargetLength(in int) int {
	return in * m.Factor
}

// RequiredInputLength returns ceil(out / Factor).
func (m *Varying) RequiredInputLength(out int) int {
	return (out + m.Factor - 1) / m.Factor
}

// Transform repeats frames.
func (m *Varying) Transform(in, out signal.Float64, _ signal.SampleRate) error {
	if m.ErrorOnCall != nil {
		return m.ErrorOnCall
	}
	for c := range out {
		for i := range out[c] {
			out[c][i] = in[c][i/m.Factor]
		}
	}
	m.advance(out.Size())
	return nil
}

// Hooks allows to mock components hooks.
type Hooks struct {
	Closed       bool
	ErrorOnClose error
}

// counter counts calls and frames.
type counter struct {
	calls  int
	frames int
}

// advance counter's metrics.
func (c *counter) advance(size int) {
	c.calls++
	c.frames = c.frames + size
}

// Count returns calls and frames metrics.
func (c *counter) Count() (int, int) {
	return c.calls, c.frames
}

var (
	_ effect.Fixed   = (*Effect)(nil)
	_ effect.Varying = (*Varying)(nil)
)
