package effect

import (
	"fmt"

	"pipelined.dev/rack/control"
	"pipelined.dev/rack/registry"
	"pipelined.dev/rack/signal"
)

// Factory creates an effect for the mixer format. Params hold construction
// arguments and initial values of controls.
type Factory func(format signal.Format, t Type, params map[string]float64) (Effect, error)

// Registry maps effect identifiers to factories.
type Registry struct {
	*registry.Registry[Factory]
}

// NewRegistry returns empty effect registry.
func NewRegistry() *Registry {
	return &Registry{Registry: registry.New[Factory]("effect")}
}

// New creates registered effect.
func (r *Registry) New(id string, format signal.Format, t Type, params map[string]float64) (Effect, error) {
	factory, err := r.Lookup(id)
	if err != nil {
		return nil, err
	}
	e, err := factory(format, t, params)
	if err != nil {
		return nil, fmt.Errorf("effect %q: %w", id, err)
	}
	return e, nil
}

// RegisterBuiltins adds effects provided by this package: gain, invert,
// clipper, speed and resampler.
func RegisterBuiltins(r *Registry) error {
	builtins := []struct {
		id      string
		factory Factory
	}{
		{
			id: "gain",
			factory: func(_ signal.Format, t Type, params map[string]float64) (Effect, error) {
				return applied(NewGain(1, WithType(t)), params)
			},
		},
		{
			id: "invert",
			factory: func(_ signal.Format, t Type, params map[string]float64) (Effect, error) {
				return applied(NewInvert(WithType(t)), params)
			},
		},
		{
			id: "clipper",
			factory: func(_ signal.Format, t Type, params map[string]float64) (Effect, error) {
				return applied(NewClipper(1, WithType(t)), params)
			},
		},
		{
			id: "speed",
			factory: func(_ signal.Format, t Type, params map[string]float64) (Effect, error) {
				return applied(NewSpeed(1, WithType(t)), params)
			},
		},
		{
			id: "resampler",
			factory: func(format signal.Format, t Type, params map[string]float64) (Effect, error) {
				rate, ok := params["rate"]
				if !ok || rate <= 0 {
					return nil, fmt.Errorf("resampler requires positive rate")
				}
				quality := DefaultQuality
				if q, ok := params["quality"]; ok {
					quality = int(q)
				}
				e, err := NewResampler(format, signal.SampleRate(rate), quality, WithType(t))
				if err != nil {
					return nil, err
				}
				return applied(e, without(params, "rate", "quality"))
			},
		},
	}
	for _, b := range builtins {
		if err := r.Register(b.id, b.factory); err != nil {
			return err
		}
	}
	return nil
}

func applied(e Effect, params map[string]float64) (Effect, error) {
	if err := control.Apply(e, params); err != nil {
		return nil, err
	}
	return e, nil
}

func without(params map[string]float64, keys ...string) map[string]float64 {
	result := make(map[string]float64, len(params))
	for k, v := range params {
		result[k] = v
	}
	for _, k := range keys {
		delete(result, k)
	}
	return result
}
