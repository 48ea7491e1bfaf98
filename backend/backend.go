// Package backend defines audio device contracts. Devices exchange
// buffers of a fixed size, which is set when the stream is opened.
package backend

import (
	"errors"
	"fmt"

	"pipelined.dev/rack"
	"pipelined.dev/rack/registry"
	"pipelined.dev/rack/signal"
)

var (
	// ErrBufferSize is returned when written buffer doesn't match the
	// stream buffer size.
	ErrBufferSize = errors.New("buffer size mismatch")
	// ErrNotSupported is returned when backend cannot open requested
	// stream.
	ErrNotSupported = errors.New("not supported")
	// ErrClosed is returned on use of closed stream.
	ErrClosed = errors.New("stream closed")
)

// Stream is an opened device stream.
type Stream interface {
	Format() signal.Format
	BufferSize() int
	Close() error
}

// Output plays buffers. Write blocks until the device accepts the buffer.
type Output interface {
	Stream
	rack.Sink
}

// Input records buffers. Read blocks until the device fills the buffer.
type Input interface {
	Stream
	Read() (signal.Float64, error)
}

// Backend opens device streams.
type Backend interface {
	Name() string
	OpenOutput(format signal.Format, bufferSize int) (Output, error)
	OpenInput(format signal.Format, bufferSize int) (Input, error)
}

// Registry maps backend names to backends.
type Registry struct {
	*registry.Registry[Backend]
}

// NewRegistry returns registry with dummy backend.
func NewRegistry() *Registry {
	r := &Registry{Registry: registry.New[Backend]("backend")}
	r.MustRegister(DummyName, &Dummy{Paced: true})
	return r
}

// Add registers the backend by its name.
func (r *Registry) Add(b Backend) error {
	return r.Register(b.Name(), b)
}

// CheckWrite validates buffer written into the stream. Backends call it
// before passing the buffer to device.
func CheckWrite(s Stream, b signal.Float64) error {
	if b.NumChannels() != s.Format().Channels {
		return fmt.Errorf("%w: %d != %d", signal.ErrChannelsMismatch, b.NumChannels(), s.Format().Channels)
	}
	if b.Size() != s.BufferSize() {
		return fmt.Errorf("%w: %d != %d", ErrBufferSize, b.Size(), s.BufferSize())
	}
	return nil
}

// Validate checks stream parameters. Backends call it before opening
// streams.
func Validate(format signal.Format, bufferSize int) error {
	if err := format.Validate(); err != nil {
		return err
	}
	if bufferSize <= 0 {
		return fmt.Errorf("%w: %d", ErrBufferSize, bufferSize)
	}
	return nil
}

// capture adapts input to a node.
type capture struct {
	input Input
}

func (c *capture) Format() signal.Format {
	return c.input.Format()
}

// Render ignores requested frames, device decides the chunk size.
func (c *capture) Render(int) (signal.Float64, error) {
	return c.input.Read()
}

// Capture returns a node that renders recorded signal in chunks of any
// requested size.
func Capture(in Input) *rack.ChunkReader {
	return rack.Rechunk(&capture{input: in})
}
