// Package control provides lock-free scalar parameters of audio components.
//
// Controls are read on the render goroutine and written from any other
// goroutine. Reads never block. Listeners are called synchronously on the
// goroutine that changed the value, so they must be quick and must not
// touch the render path.
package control

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"sync/atomic"
)

// ErrNotFound is returned when component has no control with requested name.
var ErrNotFound = errors.New("control not found")

// Control is a named parameter of a component.
type Control interface {
	Name() string
	// Normalized returns value mapped to [0, 1].
	Normalized() float64
	// SetNormalized sets value from [0, 1] range. Out of range input is
	// clamped.
	SetNormalized(float64)
}

// Controllable is implemented by components that expose controls.
type Controllable interface {
	Controls() []Control
}

// Find returns control by case-insensitive name.
func Find(c Controllable, name string) (Control, error) {
	for _, ctrl := range c.Controls() {
		if strings.EqualFold(ctrl.Name(), name) {
			return ctrl, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
}

// Apply sets values of controls by name. Float controls receive values as
// is, bool controls are enabled for non-zero values.
func Apply(c Controllable, params map[string]float64) error {
	for name, value := range params {
		ctrl, err := Find(c, name)
		if err != nil {
			return err
		}
		switch v := ctrl.(type) {
		case *Float:
			v.Set(value)
		case *Bool:
			v.Set(value != 0)
		default:
			ctrl.SetNormalized(value)
		}
	}
	return nil
}

// Float is a clamped float control.
type Float struct {
	name      string
	min, max  float64
	def       float64
	bits      atomic.Uint64
	listeners listeners[float64]
}

// NewFloat returns float control with provided range and initial value.
// Initial value is clamped into the range. It panics if min > max.
func NewFloat(name string, min, max, value float64) *Float {
	if min > max || math.IsNaN(min) || math.IsNaN(max) {
		panic(fmt.Sprintf("control %s: invalid range [%v, %v]", name, min, max))
	}
	f := Float{
		name: name,
		min:  min,
		max:  max,
	}
	f.def = f.clamp(value)
	f.bits.Store(math.Float64bits(f.def))
	return &f
}

// Name returns the name of control.
func (f *Float) Name() string {
	return f.name
}

// Min returns lower bound.
func (f *Float) Min() float64 {
	return f.min
}

// Max returns upper bound.
func (f *Float) Max() float64 {
	return f.max
}

// Default returns initial value.
func (f *Float) Default() float64 {
	return f.def
}

// Value returns current value.
func (f *Float) Value() float64 {
	return math.Float64frombits(f.bits.Load())
}

// Set clamps and stores the value, then notifies listeners if value has
// changed. NaN is ignored. Stored value is returned.
func (f *Float) Set(value float64) float64 {
	if math.IsNaN(value) {
		return f.Value()
	}
	value = f.clamp(value)
	old := math.Float64frombits(f.bits.Swap(math.Float64bits(value)))
	if old != value {
		f.listeners.notify(value)
	}
	return value
}

// Reset sets the initial value.
func (f *Float) Reset() {
	f.Set(f.def)
}

// Normalized returns value mapped to [0, 1].
func (f *Float) Normalized() float64 {
	if f.max == f.min {
		return 0
	}
	return (f.Value() - f.min) / (f.max - f.min)
}

// SetNormalized sets value from [0, 1] range: min + x·(max−min).
func (f *Float) SetNormalized(x float64) {
	if math.IsNaN(x) {
		return
	}
	x = math.Max(0, math.Min(1, x))
	f.Set(f.min + x*(f.max-f.min))
}

// Listen registers a function called after each value change. Returned
// function removes the listener.
func (f *Float) Listen(fn func(float64)) (cancel func()) {
	return f.listeners.add(fn)
}

func (f *Float) String() string {
	return fmt.Sprintf("%s=%v", f.name, f.Value())
}

func (f *Float) clamp(value float64) float64 {
	return math.Max(f.min, math.Min(f.max, value))
}

// Bool is an on/off control.
type Bool struct {
	name      string
	def       bool
	v         atomic.Bool
	listeners listeners[bool]
}

// NewBool returns bool control with initial value.
func NewBool(name string, value bool) *Bool {
	b := Bool{
		name: name,
		def:  value,
	}
	b.v.Store(value)
	return &b
}

// Name returns the name of control.
func (b *Bool) Name() string {
	return b.name
}

// Enabled returns current value.
func (b *Bool) Enabled() bool {
	return b.v.Load()
}

// Default returns initial value.
func (b *Bool) Default() bool {
	return b.def
}

// Set stores the value and notifies listeners if it has changed.
func (b *Bool) Set(value bool) {
	if b.v.Swap(value) != value {
		b.listeners.notify(value)
	}
}

// Toggle inverts the value and returns the new one.
func (b *Bool) Toggle() bool {
	for {
		old := b.v.Load()
		if b.v.CompareAndSwap(old, !old) {
			b.listeners.notify(!old)
			return !old
		}
	}
}

// Normalized returns 1 if enabled and 0 otherwise.
func (b *Bool) Normalized() float64 {
	if b.Enabled() {
		return 1
	}
	return 0
}

// SetNormalized enables control for values not less than 0.5.
func (b *Bool) SetNormalized(x float64) {
	b.Set(x >= 0.5)
}

// Listen registers a function called after each value change. Returned
// function removes the listener.
func (b *Bool) Listen(fn func(bool)) (cancel func()) {
	return b.listeners.add(fn)
}

func (b *Bool) String() string {
	return fmt.Sprintf("%s=%v", b.name, b.Enabled())
}

// listeners is a copy-on-write list of callbacks. Notifications iterate
// over immutable snapshot, so listeners can be added and removed during
// dispatch.
type listeners[T any] struct {
	mu   sync.Mutex
	list atomic.Pointer[[]*listener[T]]
}

type listener[T any] struct {
	fn func(T)
}

func (l *listeners[T]) add(fn func(T)) func() {
	entry := &listener[T]{fn: fn}
	l.mu.Lock()
	defer l.mu.Unlock()
	var old []*listener[T]
	if p := l.list.Load(); p != nil {
		old = *p
	}
	list := make([]*listener[T], 0, len(old)+1)
	list = append(list, old...)
	list = append(list, entry)
	l.list.Store(&list)

	var once sync.Once
	return func() {
		once.Do(func() { l.remove(entry) })
	}
}

func (l *listeners[T]) remove(entry *listener[T]) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p := l.list.Load()
	if p == nil {
		return
	}
	list := make([]*listener[T], 0, len(*p))
	for _, e := range *p {
		if e != entry {
			list = append(list, e)
		}
	}
	l.list.Store(&list)
}

func (l *listeners[T]) notify(v T) {
	p := l.list.Load()
	if p == nil {
		return
	}
	for _, e := range *p {
		e.fn(v)
	}
}
