// Package line provides a bounded blocking queue used to hand audio
// chunks between goroutines running at different rates.
//
// A line is a single-producer, single-consumer FIFO. Producer blocks when
// the line is full, consumer blocks when it's empty. Closing the line wakes
// up every blocked call with ErrClosed.
package line

import (
	"context"
	"errors"
	"sync"
	"time"

	"pipelined.dev/rack/signal"
)

var (
	// ErrClosed is returned by operations on closed line. It's terminal.
	ErrClosed = errors.New("line is closed")
	// ErrTimeout is returned when timed operation didn't complete in
	// time. It's recoverable, caller may retry.
	ErrTimeout = errors.New("line timeout")
)

// Line is a bounded FIFO of chunks.
type Line[T any] struct {
	chunks    chan T
	done      chan struct{}
	closeOnce sync.Once
}

type (
	// Frames carries audio buffers.
	Frames = Line[signal.Float64]
	// Bytes carries encoded audio.
	Bytes = Line[[]byte]
)

// New returns a line with provided capacity. Capacity less than 1 is set
// to 1.
func New[T any](capacity int) *Line[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Line[T]{
		chunks: make(chan T, capacity),
		done:   make(chan struct{}),
	}
}

// NewFrames returns a line of audio buffers.
func NewFrames(capacity int) *Frames {
	return New[signal.Float64](capacity)
}

// Send blocks until the chunk is queued or line is closed.
func (l *Line[T]) Send(chunk T) error {
	return l.SendContext(context.Background(), chunk)
}

// SendTimeout blocks until the chunk is queued, line is closed or timeout
// has passed. Zero timeout doesn't block.
func (l *Line[T]) SendTimeout(chunk T, timeout time.Duration) error {
	if l.Closed() {
		return ErrClosed
	}
	if timeout <= 0 {
		select {
		case l.chunks <- chunk:
			return nil
		case <-l.done:
			return ErrClosed
		default:
			return ErrTimeout
		}
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case l.chunks <- chunk:
		return nil
	case <-l.done:
		return ErrClosed
	case <-t.C:
		return ErrTimeout
	}
}

// SendContext blocks until the chunk is queued, line is closed or context
// is done. Context error is returned in the latter case.
func (l *Line[T]) SendContext(ctx context.Context, chunk T) error {
	if l.Closed() {
		return ErrClosed
	}
	select {
	case l.chunks <- chunk:
		return nil
	case <-l.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Take blocks until a chunk is available or line is closed. Chunks queued
// before close are discarded.
func (l *Line[T]) Take() (T, error) {
	return l.TakeContext(context.Background())
}

// TakeTimeout blocks until a chunk is available, line is closed or timeout
// has passed. Zero timeout doesn't block.
func (l *Line[T]) TakeTimeout(timeout time.Duration) (T, error) {
	var zero T
	if l.Closed() {
		return zero, ErrClosed
	}
	if timeout <= 0 {
		select {
		case chunk := <-l.chunks:
			return chunk, nil
		case <-l.done:
			return zero, ErrClosed
		default:
			return zero, ErrTimeout
		}
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case chunk := <-l.chunks:
		return chunk, nil
	case <-l.done:
		return zero, ErrClosed
	case <-t.C:
		return zero, ErrTimeout
	}
}

// TakeContext blocks until a chunk is available, line is closed or context
// is done.
func (l *Line[T]) TakeContext(ctx context.Context) (T, error) {
	var zero T
	if l.Closed() {
		return zero, ErrClosed
	}
	select {
	case chunk := <-l.chunks:
		return chunk, nil
	case <-l.done:
		return zero, ErrClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Close wakes up all blocked calls. Subsequent calls fail with ErrClosed.
// It's safe to call Close multiple times.
func (l *Line[T]) Close() error {
	l.closeOnce.Do(func() {
		close(l.done)
	})
	return nil
}

// Closed reports if line was closed.
func (l *Line[T]) Closed() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}

// Done returns a channel that's closed when the line is closed.
func (l *Line[T]) Done() <-chan struct{} {
	return l.done
}

// Flush discards queued chunks without closing the line. Number of
// discarded chunks is returned. It never blocks.
func (l *Line[T]) Flush() int {
	n := 0
	for i := 0; i < cap(l.chunks); i++ {
		select {
		case <-l.chunks:
			n++
		default:
			return n
		}
	}
	return n
}

// Len returns number of queued chunks.
func (l *Line[T]) Len() int {
	return len(l.chunks)
}

// Cap returns capacity of the line.
func (l *Line[T]) Cap() int {
	return cap(l.chunks)
}
