// Package effect provides signal transforms applied by mixers.
//
// An effect is either fixed-size, it renders the buffer in place, or
// varying-size, it transforms a buffer into another one with different
// number of frames. Both kinds expose enable and mix level controls.
package effect

import (
	"fmt"
	"math"
	"strings"

	"pipelined.dev/rack/control"
	"pipelined.dev/rack/signal"
)

// Type tells what kind of mixer can run the effect.
type Type int

const (
	// Realtime effects are cheap enough to run on device cadence.
	Realtime Type = iota
	// Offline effects are used for rendering to files.
	Offline
)

func (t Type) String() string {
	switch t {
	case Realtime:
		return "realtime"
	case Offline:
		return "offline"
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// ParseType returns type by its name. Empty name is Realtime.
func ParseType(name string) (Type, error) {
	switch strings.ToLower(name) {
	case "", "realtime":
		return Realtime, nil
	case "offline":
		return Offline, nil
	}
	return 0, fmt.Errorf("unknown effect type %q", name)
}

const (
	// EnableControl is the name of enable control.
	EnableControl = "enable"
	// MixControl is the name of mix level control.
	MixControl = "mix"
)

// Effect is the common part of fixed and varying size effects.
type Effect interface {
	control.Controllable
	Type() Type
	Enable() *control.Bool
	// MixLevel returns dry/wet control in [0, 1] range.
	MixLevel() *control.Float
}

// Fixed renders the buffer in place. The number of frames doesn't change.
type Fixed interface {
	Effect
	Render(b signal.Float64, sampleRate signal.SampleRate) error
}

// Varying changes the number of frames.
type Varying interface {
	Effect
	// TargetLength returns number of output frames for provided number of
	// input frames.
	TargetLength(in int) int
	// RequiredInputLength is the inverse of TargetLength: it returns
	// number of input frames needed to produce at least out frames.
	RequiredInputLength(out int) int
	// Transform fills out from in. Out has TargetLength(in.Size()) frames.
	Transform(in, out signal.Float64, sampleRate signal.SampleRate) error
}

// RateConverter is a varying effect that changes sample rate of the
// signal.
type RateConverter interface {
	Varying
	InputRate() signal.SampleRate
	OutputRate() signal.SampleRate
}

// Converter returns the rate converter, decorators are looked through.
func Converter(e Effect) (RateConverter, bool) {
	rc, ok := Unwrap(e).(RateConverter)
	return rc, ok
}

// Active reports if enable and mix controls let the effect run. Varying
// effect runs only if its mix level rounds to 1.
func Active(e Effect) bool {
	if !e.Enable().Enabled() {
		return false
	}
	if IsVarying(e) {
		return BinaryMix(e.MixLevel().Value())
	}
	return e.MixLevel().Value() > 0
}

// IsVarying reports if effect changes the number of frames.
func IsVarying(e Effect) bool {
	_, ok := e.(Varying)
	return ok
}

// BinaryMix returns the mix level of varying effect. Blending buffers of
// different length is undefined, so the level is rounded to the nearest
// of 0 and 1.
func BinaryMix(level float64) bool {
	return level >= 0.5
}

// Base holds controls common for all effects. It's embedded into effect
// implementations.
type Base struct {
	typ      Type
	enable   *control.Bool
	mix      *control.Float
	controls []control.Control
}

// Option configures common effect properties.
type Option func(*Base)

// WithType sets the effect type. Realtime is used by default.
func WithType(t Type) Option {
	return func(b *Base) {
		b.typ = t
	}
}

// WithMix sets initial mix level.
func WithMix(level float64) Option {
	return func(b *Base) {
		b.mix.Set(level)
	}
}

// Disabled makes effect initially disabled.
func Disabled() Option {
	return func(b *Base) {
		b.enable.Set(false)
	}
}

// NewBase returns base with enable and mix controls followed by provided
// effect-specific controls.
func NewBase(controls []control.Control, options ...Option) Base {
	b := Base{
		typ:      Realtime,
		enable:   control.NewBool(EnableControl, true),
		mix:      control.NewFloat(MixControl, 0, 1, 1),
		controls: controls,
	}
	for _, option := range options {
		option(&b)
	}
	return b
}

// Type returns effect type.
func (b *Base) Type() Type {
	return b.typ
}

// Enable returns enable control.
func (b *Base) Enable() *control.Bool {
	return b.enable
}

// MixLevel returns mix level control.
func (b *Base) MixLevel() *control.Float {
	return b.mix
}

// Controls returns enable, mix and effect-specific controls.
func (b *Base) Controls() []control.Control {
	result := make([]control.Control, 0, len(b.controls)+2)
	result = append(result, b.enable, b.mix)
	return append(result, b.controls...)
}

// ceil rounds up ignoring float noise.
func ceil(v float64) int {
	return int(math.Ceil(v - 1e-9))
}
