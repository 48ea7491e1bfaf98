package control_test

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pipelined.dev/rack/control"
)

func TestFloatSet(t *testing.T) {
	tests := []struct {
		value    float64
		expected float64
	}{
		{value: 0.5, expected: 0.5},
		{value: 3, expected: 2},
		{value: -1, expected: 0},
		{value: math.NaN(), expected: 1},
		{value: math.Inf(1), expected: 2},
	}
	for _, test := range tests {
		f := control.NewFloat("gain", 0, 2, 1)
		f.Set(test.value)
		assert.Equal(t, test.expected, f.Value())
	}
}

func TestFloatNormalized(t *testing.T) {
	f := control.NewFloat("pan", -1, 1, 0)
	assert.Equal(t, 0.5, f.Normalized())

	tests := []struct {
		x        float64
		expected float64
	}{
		{x: 0, expected: -1},
		{x: 1, expected: 1},
		{x: 0.75, expected: 0.5},
		{x: 2, expected: 1},
		{x: -3, expected: -1},
	}
	for _, test := range tests {
		f.SetNormalized(test.x)
		assert.Equal(t, test.expected, f.Value())
	}
}

func TestFloatInitialClamped(t *testing.T) {
	f := control.NewFloat("mix", 0, 1, 5)
	assert.Equal(t, 1.0, f.Value())
	assert.Equal(t, 1.0, f.Default())
	f.Set(0.3)
	f.Reset()
	assert.Equal(t, 1.0, f.Value())
}

func TestFloatInvalidRange(t *testing.T) {
	assert.Panics(t, func() {
		control.NewFloat("broken", 1, 0, 0)
	})
}

func TestListeners(t *testing.T) {
	f := control.NewFloat("gain", 0, 2, 1)
	var values []float64
	cancel := f.Listen(func(v float64) {
		values = append(values, v)
	})
	f.Set(1.5)
	f.Set(1.5)
	f.Set(5)
	cancel()
	cancel()
	f.Set(0)
	assert.Equal(t, []float64{1.5, 2}, values)

	b := control.NewBool("enable", true)
	var toggles []bool
	b.Listen(func(v bool) {
		toggles = append(toggles, v)
	})
	b.Set(true)
	b.Set(false)
	assert.True(t, b.Toggle())
	assert.Equal(t, []bool{false, true}, toggles)
}

func TestListenDuringDispatch(t *testing.T) {
	b := control.NewBool("enable", false)
	var calls int
	var cancel func()
	cancel = b.Listen(func(bool) {
		calls++
		cancel()
	})
	b.Set(true)
	b.Set(false)
	assert.Equal(t, 1, calls)
}

func TestConcurrentAccess(t *testing.T) {
	f := control.NewFloat("gain", 0, 1, 0)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				f.Set(float64(j%2) * 0.5)
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				v := f.Value()
				assert.True(t, v == 0 || v == 0.5)
			}
		}()
	}
	wg.Wait()
}

type controls []control.Control

func (c controls) Controls() []control.Control {
	return c
}

func TestFindApply(t *testing.T) {
	gain := control.NewFloat("Gain", 0, 2, 1)
	enable := control.NewBool("Enable", true)
	c := controls{gain, enable}

	ctrl, err := control.Find(c, "gain")
	require.NoError(t, err)
	assert.Equal(t, gain, ctrl)

	_, err = control.Find(c, "pan")
	assert.ErrorIs(t, err, control.ErrNotFound)

	err = control.Apply(c, map[string]float64{"gain": 0.5, "enable": 0})
	require.NoError(t, err)
	assert.Equal(t, 0.5, gain.Value())
	assert.False(t, enable.Enabled())

	assert.ErrorIs(t, control.Apply(c, map[string]float64{"pan": 1}), control.ErrNotFound)
}
