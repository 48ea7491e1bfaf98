package line

import (
	"errors"
	"fmt"
	"io"
	"time"

	"pipelined.dev/rack"
	"pipelined.dev/rack/metric"
	"pipelined.dev/rack/signal"
)

// Reader is a node that renders chunks taken from a frames line. It's used
// to connect a producer running on its own goroutine, like a decoder or
// a capture device, to the graph.
type Reader struct {
	line    *Frames
	format  signal.Format
	timeout time.Duration
	pending signal.Float64
	meter   *metric.Meter
}

// ReaderOption configures the reader.
type ReaderOption func(*Reader)

// WithUnderrunTimeout makes reader fill missing frames with silence if no
// chunk arrived in time. Without this option reader blocks until the chunk
// is available.
func WithUnderrunTimeout(timeout time.Duration) ReaderOption {
	return func(r *Reader) {
		r.timeout = timeout
	}
}

// NewReader returns a node over the line. Chunks in the line must have
// the provided format.
func NewReader(l *Frames, format signal.Format, options ...ReaderOption) *Reader {
	r := Reader{
		line:   l,
		format: format,
		meter:  metric.NewMeter(metric.ComponentType(&Reader{}), format.SampleRate),
	}
	for _, option := range options {
		option(&r)
	}
	return &r
}

// Format returns format of the line chunks.
func (r *Reader) Format() signal.Format {
	return r.format
}

// Render returns requested number of frames. When line is closed, pending
// frames are returned padded with silence, then io.EOF.
func (r *Reader) Render(frames int) (signal.Float64, error) {
	if frames <= 0 {
		return nil, fmt.Errorf("%w: %d", rack.ErrInvalidFrames, frames)
	}
	start := time.Now()
	for r.pending.Size() < frames {
		chunk, err := r.take()
		if err == nil {
			if chunk.NumChannels() != r.format.Channels {
				return nil, fmt.Errorf("line chunk: %w", signal.ErrChannelsMismatch)
			}
			r.pending = r.pending.Append(chunk)
			continue
		}
		if errors.Is(err, ErrTimeout) {
			r.meter.Underrun()
			break
		}
		if errors.Is(err, ErrClosed) && r.pending.Size() > 0 {
			break
		}
		if errors.Is(err, ErrClosed) {
			return nil, io.EOF
		}
		return nil, err
	}
	result := r.pending.Slice(0, frames)
	if result == nil {
		result = signal.EmptyFloat64(r.format.Channels, frames)
	} else if result.Size() < frames {
		result = result.Resize(frames)
	}
	r.pending = r.pending.Slice(frames, r.pending.Size())
	r.meter.Measure(start, frames)
	return result, nil
}

func (r *Reader) take() (signal.Float64, error) {
	if r.timeout > 0 {
		return r.line.TakeTimeout(r.timeout)
	}
	return r.line.Take()
}

// Writer is a sink that copies buffers into a frames line.
type Writer struct {
	line    *Frames
	timeout time.Duration
	owned   bool
}

// WriterOption configures the writer.
type WriterOption func(*Writer)

// WithSendTimeout limits how long writer waits for a free slot. ErrTimeout
// is returned if the slot didn't free up in time.
func WithSendTimeout(timeout time.Duration) WriterOption {
	return func(w *Writer) {
		w.timeout = timeout
	}
}

// Owned makes writer close the line when writer is closed.
func Owned() WriterOption {
	return func(w *Writer) {
		w.owned = true
	}
}

// NewWriter returns a sink over the line.
func NewWriter(l *Frames, options ...WriterOption) *Writer {
	w := Writer{line: l}
	for _, option := range options {
		option(&w)
	}
	return &w
}

// Write sends a copy of the buffer.
func (w *Writer) Write(b signal.Float64) error {
	chunk := b.Clone()
	if w.timeout > 0 {
		return w.line.SendTimeout(chunk, w.timeout)
	}
	return w.line.Send(chunk)
}

// Close closes the line if it's owned by the writer.
func (w *Writer) Close() error {
	if w.owned {
		return w.line.Close()
	}
	return nil
}

// Line returns underlying line.
func (w *Writer) Line() *Frames {
	return w.line
}

var (
	_ rack.Node = (*Reader)(nil)
	_ rack.Sink = (*Writer)(nil)
)
