// Package portaudio provides backend for default audio devices.
package portaudio

import (
	"errors"
	"sync"

	"github.com/gordonklaus/portaudio"

	"pipelined.dev/rack/backend"
	"pipelined.dev/rack/signal"
)

// Name is the name of portaudio backend.
const Name = "portaudio"

// Backend opens streams of default devices. Every stream initializes
// portaudio and terminates it on close.
type Backend struct{}

// Name returns backend name.
func (Backend) Name() string {
	return Name
}

// OpenOutput opens default output device and starts the stream.
func (Backend) OpenOutput(format signal.Format, bufferSize int) (backend.Output, error) {
	s, err := open(format, bufferSize, 0, format.Channels)
	if err != nil {
		return nil, err
	}
	return &Output{stream: s}, nil
}

// OpenInput opens default input device and starts the stream.
func (Backend) OpenInput(format signal.Format, bufferSize int) (backend.Input, error) {
	s, err := open(format, bufferSize, format.Channels, 0)
	if err != nil {
		return nil, err
	}
	return &Input{stream: s}, nil
}

type stream struct {
	mu         sync.Mutex
	format     signal.Format
	bufferSize int
	buf        []float32
	pa         *portaudio.Stream
	closed     bool
}

func open(format signal.Format, bufferSize, inChannels, outChannels int) (*stream, error) {
	if err := backend.Validate(format, bufferSize); err != nil {
		return nil, err
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, err
	}
	s := &stream{
		format:     format,
		bufferSize: bufferSize,
		buf:        make([]float32, bufferSize*format.Channels),
	}
	var err error
	s.pa, err = portaudio.OpenDefaultStream(inChannels, outChannels, float64(format.SampleRate), bufferSize, &s.buf)
	if err != nil {
		return nil, errors.Join(err, portaudio.Terminate())
	}
	if err = s.pa.Start(); err != nil {
		return nil, errors.Join(err, s.pa.Close(), portaudio.Terminate())
	}
	return s, nil
}

func (s *stream) Format() signal.Format {
	return s.format
}

func (s *stream) BufferSize() int {
	return s.bufferSize
}

// Close stops the stream and terminates portaudio.
func (s *stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return errors.Join(s.pa.Stop(), s.pa.Close(), portaudio.Terminate())
}

// Output plays buffers on default output device.
type Output struct {
	*stream
}

// Write blocks until device accepts the buffer.
func (o *Output) Write(b signal.Float64) error {
	if err := backend.CheckWrite(o, b); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return backend.ErrClosed
	}
	b.AsInterFloat32(o.buf)
	return o.pa.Write()
}

// Input records buffers from default input device.
type Input struct {
	*stream
}

// Read blocks until device fills the buffer.
func (i *Input) Read() (signal.Float64, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return nil, backend.ErrClosed
	}
	if err := i.pa.Read(); err != nil {
		return nil, err
	}
	b := signal.EmptyFloat64(i.format.Channels, i.bufferSize)
	b.CopyInterFloat32(i.buf)
	return b, nil
}
