package rack_test

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pipelined.dev/rack"
	"pipelined.dev/rack/mock"
	"pipelined.dev/rack/signal"
)

var format = signal.Format{SampleRate: 44100, Channels: 1}

// composite is a node with fixed inputs.
type composite struct {
	inputs []rack.Node
}

func (c *composite) Format() signal.Format              { return format }
func (c *composite) Render(int) (signal.Float64, error) { return nil, io.EOF }
func (c *composite) Inputs() []rack.Node                { return c.inputs }

func TestReaches(t *testing.T) {
	leaf := &mock.Source{SampleRate: 44100, Channels: 1}
	shared := &composite{inputs: []rack.Node{leaf}}
	left := &composite{inputs: []rack.Node{shared}}
	right := &composite{inputs: []rack.Node{shared, leaf}}
	top := &composite{inputs: []rack.Node{left, right}}
	// existing cycle elsewhere in the graph
	loop := &composite{}
	loop.inputs = []rack.Node{loop, shared}

	tests := []struct {
		description string
		from        rack.Node
		target      rack.Node
		expected    bool
	}{
		{description: "same node", from: leaf, target: leaf, expected: true},
		{description: "direct", from: shared, target: leaf, expected: true},
		{description: "diamond", from: top, target: leaf, expected: true},
		{description: "reverse", from: leaf, target: top, expected: false},
		{description: "sibling", from: left, target: right, expected: false},
		{description: "loop terminates", from: loop, target: top, expected: false},
		{description: "loop reaches", from: loop, target: leaf, expected: true},
		{description: "nil", from: nil, target: leaf, expected: false},
	}
	for _, test := range tests {
		assert.Equal(t, test.expected, rack.Reaches(test.from, test.target), test.description)
	}
}

func TestSilence(t *testing.T) {
	s := rack.NewSilence(format)
	assert.Equal(t, format, s.Format())
	b, err := s.Render(3)
	require.NoError(t, err)
	assert.Equal(t, signal.Float64{{0, 0, 0}}, b)
	_, err = s.Render(0)
	assert.ErrorIs(t, err, rack.ErrInvalidFrames)
}

// varying renders twice as many frames as requested.
type varying struct {
	mock.Source
}

func (v *varying) Render(frames int) (signal.Float64, error) {
	return v.Source.Render(frames * 2)
}

func TestChunkReader(t *testing.T) {
	tests := []struct {
		description string
		node        rack.Node
		frames      int
		expected    []int
		pending     int
	}{
		{
			description: "longer chunks",
			node:        &varying{Source: mock.Source{SampleRate: 44100, Channels: 1, Limit: 10, Value: 1}},
			frames:      3,
			expected:    []int{3, 3, 3, 3},
		},
		{
			description: "shorter chunks",
			node:        &mock.Source{SampleRate: 44100, Channels: 1, Limit: 7, Value: 1, Frames: 2},
			frames:      4,
			expected:    []int{4, 4},
		},
	}
	for _, test := range tests {
		r := rack.Rechunk(test.node)
		assert.Equal(t, format, r.Format())
		assert.Equal(t, []rack.Node{test.node}, r.Inputs())
		var sizes []int
		for {
			b, err := r.Render(test.frames)
			if errors.Is(err, io.EOF) {
				break
			}
			require.NoError(t, err, test.description)
			sizes = append(sizes, b.Size())
		}
		assert.Equal(t, test.expected, sizes, test.description)
		assert.Equal(t, 0, r.Pending())
	}
}

func TestChunkReaderPadding(t *testing.T) {
	r := rack.Rechunk(&mock.Source{SampleRate: 44100, Channels: 1, Limit: 5, Value: 1})
	b, err := r.Render(4)
	require.NoError(t, err)
	assert.Equal(t, signal.Float64{{1, 1, 1, 1}}, b)
	b, err = r.Render(4)
	require.NoError(t, err)
	assert.Equal(t, signal.Float64{{1, 0, 0, 0}}, b)
	_, err = r.Render(4)
	assert.Equal(t, io.EOF, err)
}

// stalled never renders any frames.
type stalled struct{}

func (stalled) Format() signal.Format { return format }
func (stalled) Render(int) (signal.Float64, error) {
	return signal.EmptyFloat64(1, 0), nil
}

func TestChunkReaderNoProgress(t *testing.T) {
	_, err := rack.Rechunk(stalled{}).Render(4)
	assert.ErrorIs(t, err, rack.ErrNoProgress)

	failure := errors.New("failure")
	_, err = rack.Rechunk(&mock.Source{ErrorOnCall: failure}).Render(4)
	assert.ErrorIs(t, err, failure)
}
