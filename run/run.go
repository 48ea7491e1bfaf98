// Package run drives audio graphs. Every runner executes in its own
// goroutine and stops when its context is done.
package run

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"pipelined.dev/rack"
	"pipelined.dev/rack/line"
	"pipelined.dev/rack/log"
)

// drainPoll is how often producer checks if line was drained.
const drainPoll = time.Millisecond

// Runner executes until its work is done, context is canceled or an error
// occurs. Cancellation is not an error.
type Runner interface {
	Run(ctx context.Context) error
}

// RunnerFunc is a function adapter for Runner.
type RunnerFunc func(ctx context.Context) error

// Run calls the function.
func (fn RunnerFunc) Run(ctx context.Context) error {
	return fn(ctx)
}

// Error is returned when runner failed. Close error is set if runner
// failed to release its resources.
type Error struct {
	ErrRun   error
	ErrClose error
}

func (e *Error) Error() string {
	switch {
	case e.ErrRun != nil && e.ErrClose != nil:
		return fmt.Sprintf("close error: %v after run error: %v", e.ErrClose, e.ErrRun)
	case e.ErrRun != nil:
		return fmt.Sprintf("run error: %v", e.ErrRun)
	case e.ErrClose != nil:
		return fmt.Sprintf("close error: %v", e.ErrClose)
	}
	return ""
}

// Is checks if any of errors match provided sentinel error.
func (e *Error) Is(err error) bool {
	return errors.Is(e.ErrRun, err) || errors.Is(e.ErrClose, err)
}

// wrap returns untyped nil if both errors are nil.
func wrap(errRun, errClose error) error {
	if errRun == nil && errClose == nil {
		return nil
	}
	return &Error{ErrRun: errRun, ErrClose: errClose}
}

// Driver renders the node into output. It's the only goroutine that calls
// node Render.
type Driver struct {
	Node rack.Node
	// Output is optional, nodes like mixer deliver buffers to their own
	// outputs.
	Output rack.Sink
	// Frames requested per render.
	Frames int
	// Fixed re-chunks node output to exactly Frames. The last chunk cut
	// by Limit is padded with silence.
	Fixed bool
	// Interval paces renders for outputs that don't block, like files.
	// Zero renders as fast as output accepts.
	Interval time.Duration
	// Limit stops the driver after number of frames. Zero is unlimited.
	// It applies to Output only, sinks attached to the node itself receive
	// whole buffers.
	Limit int
	// Close closes output when driver stops, if it's an io.Closer.
	Close bool

	rendered atomic.Int64
}

// Rendered returns number of rendered frames. Silence padding of the
// last fixed chunk is not counted.
func (d *Driver) Rendered() int {
	return int(d.rendered.Load())
}

// Run renders until node returns io.EOF, limit is reached or context is
// done.
func (d *Driver) Run(ctx context.Context) error {
	if d.Frames <= 0 {
		return fmt.Errorf("%w: %d", rack.ErrInvalidFrames, d.Frames)
	}
	logger := log.GetLogger().WithFields(logrus.Fields{
		"runner": "driver",
		"frames": d.Frames,
	})
	logger.Debug("started")
	err := d.render(ctx)
	var errClose error
	if c, ok := d.Output.(io.Closer); ok && d.Close {
		errClose = c.Close()
	}
	logger.WithField("rendered", d.Rendered()).Debug("stopped")
	return wrap(err, errClose)
}

func (d *Driver) render(ctx context.Context) error {
	node := d.Node
	if d.Fixed {
		node = rack.Rechunk(node)
	}
	var tick <-chan time.Time
	if d.Interval > 0 {
		t := time.NewTicker(d.Interval)
		defer t.Stop()
		tick = t.C
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		frames := d.Frames
		if d.Limit > 0 {
			left := d.Limit - d.Rendered()
			if left <= 0 {
				return nil
			}
			if left < frames && !d.Fixed {
				frames = left
			}
		}
		b, err := node.Render(frames)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		size := b.Size()
		if d.Limit > 0 {
			if left := d.Limit - d.Rendered(); size > left {
				size = left
				b = b.Slice(0, left)
				if d.Fixed {
					b = b.Resize(d.Frames)
				}
			}
		}
		if d.Output != nil {
			if err := d.Output.Write(b); err != nil {
				return err
			}
		}
		d.rendered.Add(int64(size))
		if tick != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-tick:
			}
		}
	}
}

// Producer renders the node into a line. Producer closes the line when
// node is exhausted and every queued chunk is taken.
type Producer struct {
	Source rack.Node
	Line   *line.Frames
	Frames int
	// Timeout bounds every send, so cancellation is observed while line
	// is full. Zero defaults to 10ms.
	Timeout time.Duration
}

// DefaultSendTimeout is used when producer timeout is not set.
const DefaultSendTimeout = 10 * time.Millisecond

// Run pumps the source until it's exhausted, line is closed or context
// is done.
func (p *Producer) Run(ctx context.Context) error {
	if p.Frames <= 0 {
		return fmt.Errorf("%w: %d", rack.ErrInvalidFrames, p.Frames)
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultSendTimeout
	}
	err := p.pump(ctx, timeout)
	return wrap(err, p.Line.Close())
}

func (p *Producer) pump(ctx context.Context, timeout time.Duration) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		b, err := p.Source.Render(p.Frames)
		if err != nil {
			if errors.Is(err, io.EOF) {
				p.drain(ctx)
				return nil
			}
			return err
		}
		for {
			err := p.Line.SendTimeout(b, timeout)
			if err == nil {
				break
			}
			if errors.Is(err, line.ErrClosed) {
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
		}
	}
}

// drain waits until consumer takes all queued chunks.
func (p *Producer) drain(ctx context.Context) {
	t := time.NewTicker(drainPoll)
	defer t.Stop()
	for p.Line.Len() > 0 {
		select {
		case <-ctx.Done():
			return
		case <-p.Line.Done():
			return
		case <-t.C:
		}
	}
}

// Group executes runners in their own goroutines. First error cancels
// the rest of runners.
type Group struct {
	g      *errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc
}

// Async starts runners and returns their group.
func Async(ctx context.Context, runners ...Runner) *Group {
	ctx, cancel := context.WithCancel(ctx)
	g, ctx := errgroup.WithContext(ctx)
	group := &Group{g: g, ctx: ctx, cancel: cancel}
	for _, r := range runners {
		group.Go(r)
	}
	return group
}

// Go starts one more runner in the group.
func (g *Group) Go(r Runner) {
	g.g.Go(func() error {
		return r.Run(g.ctx)
	})
}

// Cancel stops all runners.
func (g *Group) Cancel() {
	g.cancel()
}

// Await for successful finish or first error to occur.
func (g *Group) Await() error {
	defer g.cancel()
	return g.g.Wait()
}
