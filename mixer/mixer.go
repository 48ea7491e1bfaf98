// Package mixer provides the central node of audio graph. Mixer sums its
// inputs with per-input gain and pan, runs the effects chain and writes the
// result to its outputs.
package mixer

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"

	"pipelined.dev/rack"
	"pipelined.dev/rack/control"
	"pipelined.dev/rack/effect"
	"pipelined.dev/rack/log"
	"pipelined.dev/rack/metric"
	"pipelined.dev/rack/signal"
)

// topology serializes connections across all mixers: cycle check and
// install of the new input happen atomically for the whole graph.
var topology sync.Mutex

// Names of mixer controls.
const (
	PreGainControl         = "pre gain"
	PostGainControl        = "post gain"
	PanControl             = "pan"
	SeparationControl      = "stereo separation"
	EnableEffectsControl   = "enable effects"
	SwapChannelsControl    = "swap channels"
	ReversePolarityControl = "reverse polarity"
)

// Input is a connected node with its mixing controls.
type Input struct {
	node rack.Node
	gain *control.Float
	pan  *control.Float
	mute *control.Bool
}

func newInput(n rack.Node) *Input {
	return &Input{
		node: n,
		gain: control.NewFloat("gain", 0, 2, 1),
		pan:  control.NewFloat("pan", -1, 1, 0),
		mute: control.NewBool("mute", false),
	}
}

// Node returns connected node.
func (in *Input) Node() rack.Node {
	return in.node
}

// Gain returns input gain control.
func (in *Input) Gain() *control.Float {
	return in.gain
}

// Pan returns input pan control.
func (in *Input) Pan() *control.Float {
	return in.pan
}

// Mute returns input mute control.
func (in *Input) Mute() *control.Bool {
	return in.mute
}

// Controls returns gain, pan and mute controls.
func (in *Input) Controls() []control.Control {
	return []control.Control{in.gain, in.pan, in.mute}
}

// Mixer is a composite node. Any number of goroutines can change its
// topology and controls, but only one goroutine may render it at a time.
type Mixer struct {
	id     string
	name   string
	typ    effect.Type
	format atomic.Pointer[signal.Format]
	meter  atomic.Pointer[metric.Meter]
	logger logrus.FieldLogger

	// mu serializes writers of the lists.
	mu      sync.Mutex
	inputs  list[*Input]
	effects list[effect.Effect]
	outputs list[rack.Sink]

	preGain         *control.Float
	postGain        *control.Float
	pan             *control.Float
	separation      *control.Float
	enableEffects   *control.Bool
	swapChannels    *control.Bool
	reversePolarity *control.Bool
}

// Option configures the mixer.
type Option func(*Mixer)

// WithName sets the name used in logs and errors.
func WithName(name string) Option {
	return func(m *Mixer) {
		m.name = name
	}
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(m *Mixer) {
		m.logger = l
	}
}

// New returns an empty mixer. Type is fixed for the life of the mixer. If
// format is zero, it's adopted from the first input.
func New(t effect.Type, format signal.Format, options ...Option) *Mixer {
	m := Mixer{
		id:              xid.New().String(),
		typ:             t,
		preGain:         control.NewFloat(PreGainControl, 0, 2, 1),
		postGain:        control.NewFloat(PostGainControl, 0, 2, 1),
		pan:             control.NewFloat(PanControl, -1, 1, 0),
		separation:      control.NewFloat(SeparationControl, -1, 1, 0),
		enableEffects:   control.NewBool(EnableEffectsControl, true),
		swapChannels:    control.NewBool(SwapChannelsControl, false),
		reversePolarity: control.NewBool(ReversePolarityControl, false),
	}
	for _, option := range options {
		option(&m)
	}
	if m.name == "" {
		m.name = m.id
	}
	if m.logger == nil {
		m.logger = log.Component("mixer", m.name)
	}
	if !format.IsZero() {
		m.setFormat(format)
	}
	return &m
}

// ID returns unique mixer id.
func (m *Mixer) ID() string {
	return m.id
}

// Name returns the mixer name.
func (m *Mixer) Name() string {
	return m.name
}

// Type returns the mixer type.
func (m *Mixer) Type() effect.Type {
	return m.typ
}

// InputFormat returns the format inputs are mixed in. It's zero until set
// at construction or adopted from the first input.
func (m *Mixer) InputFormat() signal.Format {
	if f := m.format.Load(); f != nil {
		return *f
	}
	return signal.Format{}
}

// Format returns the format of rendered buffers. It's the input format,
// unless an active rate converter in the chain changes the sample rate.
func (m *Mixer) Format() signal.Format {
	f := m.InputFormat()
	if f.IsZero() || !m.enableEffects.Enabled() {
		return f
	}
	for _, e := range m.effects.load() {
		if rc, ok := effect.Converter(e); ok && effect.Active(e) {
			f.SampleRate = rc.OutputRate()
		}
	}
	return f
}

func (m *Mixer) setFormat(f signal.Format) {
	m.format.Store(&f)
	m.meter.Store(metric.NewMeter(metric.ComponentType(m), f.SampleRate))
}

func (m *Mixer) String() string {
	return fmt.Sprintf("mixer %s [%v]", m.name, m.Format())
}

func (m *Mixer) reject(op string, err error) error {
	m.logger.WithError(err).WithField("op", op).Info("rejected")
	return &Error{Mixer: m.name, Op: op, Err: err}
}

// AddInput connects the node. Node format must be compatible with the
// mixer format. Connection is rejected if it would create a cycle, the
// graph stays unchanged in that case. Returned input holds mixing
// controls of the node.
func (m *Mixer) AddInput(n rack.Node) (*Input, error) {
	if n == nil {
		return nil, m.reject("add input", ErrNil)
	}
	topology.Lock()
	defer topology.Unlock()
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Input(n) != nil {
		return nil, m.reject("add input", ErrAlreadyConnected)
	}
	format, nodeFormat := m.InputFormat(), n.Format()
	if format.IsZero() {
		if err := nodeFormat.Validate(); err != nil {
			return nil, m.reject("add input", err)
		}
	} else if !format.Compatible(nodeFormat) {
		return nil, m.reject("add input", fmt.Errorf("%w: %v != %v", ErrIncompatibleFormat, nodeFormat, format))
	}
	if rack.Reaches(n, m) {
		return nil, m.reject("add input", ErrCycle)
	}

	if format.IsZero() {
		m.setFormat(signal.Format{
			SampleRate: nodeFormat.SampleRate,
			Channels:   nodeFormat.Channels,
		})
	}
	in := newInput(n)
	m.inputs.add(in)
	m.logger.WithField("inputs", len(m.inputs.load())).Debug("input added")
	return in, nil
}

// RemoveInput disconnects the node.
func (m *Mixer) RemoveInput(n rack.Node) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	in := m.Input(n)
	if in == nil || !m.inputs.remove(in) {
		return m.reject("remove input", ErrNotConnected)
	}
	return nil
}

// Input returns connected input of the node or nil.
func (m *Mixer) Input(n rack.Node) *Input {
	for _, in := range m.inputs.load() {
		if in.node == n {
			return in
		}
	}
	return nil
}

// Inputs returns the snapshot of connected nodes in mixing order.
func (m *Mixer) Inputs() []rack.Node {
	inputs := m.inputs.load()
	nodes := make([]rack.Node, 0, len(inputs))
	for _, in := range inputs {
		nodes = append(nodes, in.node)
	}
	return nodes
}

// AddEffect appends the effect to the chain. Effect type must match the
// mixer type and chain can have at most one varying-size effect. Rate
// converter must take the mixer's input rate.
func (m *Mixer) AddEffect(e effect.Effect) error {
	if e == nil {
		return m.reject("add effect", ErrNil)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.Type() != m.typ {
		return m.reject("add effect", fmt.Errorf("%w: %v != %v", ErrIncompatibleEffectType, e.Type(), m.typ))
	}
	switch e.(type) {
	case effect.Varying:
		for _, existing := range m.effects.load() {
			if effect.IsVarying(existing) {
				return m.reject("add effect", ErrMultipleVaryingEffects)
			}
		}
	case effect.Fixed:
	default:
		return m.reject("add effect", ErrUnsupportedEffect)
	}
	if rc, ok := effect.Converter(e); ok {
		format := m.InputFormat()
		if format.IsZero() {
			return m.reject("add effect", ErrNoFormat)
		}
		if rc.InputRate() != format.SampleRate {
			return m.reject("add effect", fmt.Errorf("%w: converter input rate %v != %v", ErrIncompatibleFormat, rc.InputRate(), format.SampleRate))
		}
	}
	if m.effects.contains(e) {
		return m.reject("add effect", ErrAlreadyConnected)
	}
	m.effects.add(e)
	return nil
}

// RemoveEffect removes the effect from the chain.
func (m *Mixer) RemoveEffect(e effect.Effect) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.effects.remove(e) {
		return m.reject("remove effect", ErrNotConnected)
	}
	return nil
}

// Effects returns the snapshot of the chain.
func (m *Mixer) Effects() []effect.Effect {
	return append([]effect.Effect(nil), m.effects.load()...)
}

// AddOutput adds a sink that receives every rendered buffer.
func (m *Mixer) AddOutput(s rack.Sink) error {
	if s == nil {
		return m.reject("add output", ErrNil)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.outputs.contains(s) {
		return m.reject("add output", ErrAlreadyConnected)
	}
	m.outputs.add(s)
	return nil
}

// RemoveOutput removes the sink. Sink is not closed.
func (m *Mixer) RemoveOutput(s rack.Sink) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.outputs.remove(s) {
		return m.reject("remove output", ErrNotConnected)
	}
	return nil
}

// Outputs returns the snapshot of outputs.
func (m *Mixer) Outputs() []rack.Sink {
	return append([]rack.Sink(nil), m.outputs.load()...)
}

// Close removes all outputs and closes those that implement io.Closer,
// like owned lines and file sinks.
func (m *Mixer) Close() error {
	m.mu.Lock()
	outputs := m.outputs.reset()
	m.mu.Unlock()
	var errs []error
	for _, s := range outputs {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// PreGain is applied to the mix before effects.
func (m *Mixer) PreGain() *control.Float {
	return m.preGain
}

// PostGain is applied after effects.
func (m *Mixer) PostGain() *control.Float {
	return m.postGain
}

// Pan is applied after effects.
func (m *Mixer) Pan() *control.Float {
	return m.pan
}

// Separation changes stereo width after effects.
func (m *Mixer) Separation() *control.Float {
	return m.separation
}

// EnableEffects bypasses the whole chain when disabled.
func (m *Mixer) EnableEffects() *control.Bool {
	return m.enableEffects
}

// SwapChannels exchanges left and right channels after effects.
func (m *Mixer) SwapChannels() *control.Bool {
	return m.swapChannels
}

// ReversePolarity inverts the signal after effects.
func (m *Mixer) ReversePolarity() *control.Bool {
	return m.reversePolarity
}

// Controls returns mixer controls.
func (m *Mixer) Controls() []control.Control {
	return []control.Control{
		m.preGain,
		m.postGain,
		m.pan,
		m.separation,
		m.enableEffects,
		m.swapChannels,
		m.reversePolarity,
	}
}

var (
	_ rack.Composite       = (*Mixer)(nil)
	_ control.Controllable = (*Mixer)(nil)
	_ control.Controllable = (*Input)(nil)
)
