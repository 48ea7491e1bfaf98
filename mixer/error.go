package mixer

import (
	"errors"
	"fmt"
)

var (
	// ErrCycle is returned when connection would make the mixer reachable
	// from itself.
	ErrCycle = errors.New("cycle detected")
	// ErrIncompatibleFormat is returned when input format doesn't match
	// mixer format.
	ErrIncompatibleFormat = errors.New("incompatible format")
	// ErrIncompatibleEffectType is returned when effect type doesn't match
	// mixer type.
	ErrIncompatibleEffectType = errors.New("incompatible effect type")
	// ErrMultipleVaryingEffects is returned when chain already has a
	// varying-size effect.
	ErrMultipleVaryingEffects = errors.New("multiple varying-size effects")
	// ErrUnsupportedEffect is returned when effect is neither fixed nor
	// varying size.
	ErrUnsupportedEffect = errors.New("unsupported effect")
	// ErrAlreadyConnected is returned when component is added twice.
	ErrAlreadyConnected = errors.New("already connected")
	// ErrNotConnected is returned when removed component is not connected.
	ErrNotConnected = errors.New("not connected")
	// ErrNil is returned when nil component is passed.
	ErrNil = errors.New("nil component")
)

// Error is returned when mixer rejects an operation. It carries the
// violated rule, so errors.Is can be used with sentinel errors.
type Error struct {
	Mixer string
	Op    string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("mixer %s: %s: %v", e.Mixer, e.Op, e.Err)
}

// Unwrap returns the violated rule.
func (e *Error) Unwrap() error {
	return e.Err
}

// ErrNoFormat is returned when mixer without format is rendered or gets
// a rate converter.
var ErrNoFormat = errors.New("format is not set")
