package backend

import (
	"sync"
	"time"

	"pipelined.dev/rack/signal"
)

// DummyName is the name of dummy backend.
const DummyName = "dummy"

// Dummy is a backend without device. Paced streams block each call for
// the buffer duration, like a real device does.
type Dummy struct {
	Paced bool
	// OnWrite receives every buffer written into outputs. Buffer must not
	// be retained.
	OnWrite func(signal.Float64)
}

// Name returns backend name.
func (*Dummy) Name() string {
	return DummyName
}

// OpenOutput returns output that discards or forwards buffers.
func (d *Dummy) OpenOutput(format signal.Format, bufferSize int) (Output, error) {
	if err := Validate(format, bufferSize); err != nil {
		return nil, err
	}
	return &dummyOutput{
		dummyStream: newDummyStream(format, bufferSize, d.Paced),
		onWrite:     d.OnWrite,
	}, nil
}

// OpenInput returns input that records silence.
func (d *Dummy) OpenInput(format signal.Format, bufferSize int) (Input, error) {
	if err := Validate(format, bufferSize); err != nil {
		return nil, err
	}
	return &dummyInput{
		dummyStream: newDummyStream(format, bufferSize, d.Paced),
	}, nil
}

type dummyStream struct {
	format     signal.Format
	bufferSize int
	ticker     *time.Ticker
	done       chan struct{}
	closeOnce  sync.Once
}

func newDummyStream(format signal.Format, bufferSize int, paced bool) *dummyStream {
	s := &dummyStream{
		format:     format,
		bufferSize: bufferSize,
		done:       make(chan struct{}),
	}
	if paced {
		s.ticker = time.NewTicker(format.SampleRate.DurationOf(bufferSize))
	}
	return s
}

func (s *dummyStream) Format() signal.Format {
	return s.format
}

func (s *dummyStream) BufferSize() int {
	return s.bufferSize
}

// wait blocks until the next device period.
func (s *dummyStream) wait() error {
	if s.ticker == nil {
		select {
		case <-s.done:
			return ErrClosed
		default:
			return nil
		}
	}
	select {
	case <-s.done:
		return ErrClosed
	case <-s.ticker.C:
		return nil
	}
}

func (s *dummyStream) Close() error {
	s.closeOnce.Do(func() {
		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.done)
	})
	return nil
}

type dummyOutput struct {
	*dummyStream
	onWrite func(signal.Float64)
}

func (o *dummyOutput) Write(b signal.Float64) error {
	if err := CheckWrite(o, b); err != nil {
		return err
	}
	if err := o.wait(); err != nil {
		return err
	}
	if o.onWrite != nil {
		o.onWrite(b)
	}
	return nil
}

type dummyInput struct {
	*dummyStream
}

func (i *dummyInput) Read() (signal.Float64, error) {
	if err := i.wait(); err != nil {
		return nil, err
	}
	return signal.EmptyFloat64(i.format.Channels, i.bufferSize), nil
}
