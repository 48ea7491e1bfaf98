package run_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"pipelined.dev/rack"
	"pipelined.dev/rack/backend"
	"pipelined.dev/rack/effect"
	"pipelined.dev/rack/line"
	"pipelined.dev/rack/mixer"
	"pipelined.dev/rack/mock"
	"pipelined.dev/rack/run"
	"pipelined.dev/rack/signal"
)

var errTest = errors.New("test error")

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestDriver(t *testing.T) {
	tests := []struct {
		name     string
		source   *mock.Source
		driver   run.Driver
		frames   int
		rendered int
		writes   int
		closed   bool
		expected error
	}{
		{
			name:   "until eof",
			source: &mock.Source{SampleRate: 44100, Channels: 2, Limit: 1000, Value: 0.5},
			driver: run.Driver{Frames: 300},
			frames: 1000,
			writes: 4,
		},
		{
			name:   "limit",
			source: &mock.Source{SampleRate: 44100, Channels: 1},
			driver: run.Driver{Frames: 300, Limit: 700, Close: true},
			frames: 700,
			writes: 3,
			closed: true,
		},
		{
			name:   "fixed chunks",
			source: &mock.Source{SampleRate: 44100, Channels: 1, Limit: 1000, Frames: 7},
			driver: run.Driver{Frames: 256, Fixed: true},
			frames: 1024,
			writes: 4,
		},
		{
			name:     "fixed chunks with limit",
			source:   &mock.Source{SampleRate: 44100, Channels: 1, Frames: 100},
			driver:   run.Driver{Frames: 256, Fixed: true, Limit: 300},
			frames:   512,
			rendered: 300,
			writes:   2,
		},
		{
			name:     "fixed chunks with partial limit",
			source:   &mock.Source{SampleRate: 8000, Channels: 1, Frames: 80},
			driver:   run.Driver{Frames: 80, Fixed: true, Limit: 440},
			frames:   480,
			rendered: 440,
			writes:   6,
		},
		{
			name:     "source error",
			source:   &mock.Source{SampleRate: 44100, Channels: 1, ErrorOnCall: errTest},
			driver:   run.Driver{Frames: 256, Close: true},
			closed:   true,
			expected: errTest,
		},
		{
			name:     "invalid frames",
			source:   &mock.Source{SampleRate: 44100, Channels: 1},
			driver:   run.Driver{},
			expected: rack.ErrInvalidFrames,
		},
	}
	for i := range tests {
		test := &tests[i]
		t.Run(test.name, func(t *testing.T) {
			sink := &mock.Sink{}
			d := &test.driver
			d.Node = test.source
			d.Output = sink
			err := d.Run(context.Background())
			if test.expected != nil {
				assert.ErrorIs(t, err, test.expected)
			} else {
				require.NoError(t, err)
			}
			writes, frames := sink.Count()
			assert.Equal(t, test.writes, writes)
			assert.Equal(t, test.frames, frames)
			rendered := test.rendered
			if rendered == 0 {
				rendered = test.frames
			}
			assert.Equal(t, rendered, d.Rendered())
			assert.Equal(t, test.closed, sink.Closed)
		})
	}
}

func TestDriverFixedDevice(t *testing.T) {
	format := signal.Format{SampleRate: 8000, Channels: 1}
	var written signal.Float64
	out, err := (&backend.Dummy{OnWrite: func(b signal.Float64) {
		written = written.Append(b)
	}}).OpenOutput(format, 80)
	require.NoError(t, err)

	d := &run.Driver{
		Node:   &mock.Source{SampleRate: format.SampleRate, Channels: format.Channels, Value: 0.5, Frames: 80},
		Output: out,
		Frames: 80,
		Fixed:  true,
		Limit:  440,
		Close:  true,
	}
	require.NoError(t, d.Run(context.Background()))
	assert.Equal(t, 440, d.Rendered())
	require.Equal(t, 480, written.Size())
	for i, v := range written[0] {
		if i < 440 {
			require.Equal(t, 0.5, v)
		} else {
			require.Zero(t, v)
		}
	}
}

func TestDriverLimitVaryingChain(t *testing.T) {
	format := signal.Format{SampleRate: 8000, Channels: 1}
	m := mixer.New(effect.Realtime, format)
	_, err := m.AddInput(&mock.Source{SampleRate: format.SampleRate, Channels: format.Channels, Value: 0.5})
	require.NoError(t, err)
	require.NoError(t, m.AddEffect(effect.NewSpeed(0.5)))

	sink := &mock.Sink{}
	d := &run.Driver{
		Node:   m,
		Output: sink,
		Frames: 64,
		Limit:  100,
	}
	require.NoError(t, d.Run(context.Background()))
	writes, frames := sink.Count()
	assert.Equal(t, 1, writes)
	assert.Equal(t, 100, frames)
	assert.Equal(t, 100, d.Rendered())
}

func TestDriverOutputError(t *testing.T) {
	sink := &mock.Sink{ErrorOnCall: errTest, Hooks: mock.Hooks{ErrorOnClose: errTest}}
	d := &run.Driver{
		Node:   &mock.Source{SampleRate: 8000, Channels: 1},
		Output: sink,
		Frames: 10,
		Close:  true,
	}
	err := d.Run(context.Background())
	var runErr *run.Error
	require.ErrorAs(t, err, &runErr)
	assert.ErrorIs(t, runErr.ErrRun, errTest)
	assert.ErrorIs(t, runErr.ErrClose, errTest)
	assert.Contains(t, err.Error(), "after run error")
}

func TestDriverCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	d := &run.Driver{
		Node:     &mock.Source{SampleRate: 8000, Channels: 1},
		Output:   &mock.Sink{Discard: true},
		Frames:   80,
		Interval: time.Millisecond,
	}
	errc := make(chan error)
	go func() {
		errc <- d.Run(ctx)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("driver is not stopped")
	}
	assert.Greater(t, d.Rendered(), 0)
}

func TestProducer(t *testing.T) {
	format := signal.Format{SampleRate: 8000, Channels: 2}
	l := line.NewFrames(2)
	p := &run.Producer{
		Source: &mock.Source{SampleRate: format.SampleRate, Channels: format.Channels, Limit: 1000, Value: 0.25},
		Line:   l,
		Frames: 100,
	}
	sink := &mock.Sink{}
	d := &run.Driver{
		Node:   line.NewReader(l, format),
		Output: sink,
		Frames: 64,
	}
	g := run.Async(context.Background(), p, d)
	require.NoError(t, g.Await())

	b := sink.Buffer()
	require.Equal(t, 1024, b.Size())
	for c := range b {
		for i, v := range b[c] {
			if i < 1000 {
				require.Equal(t, 0.25, v)
			} else {
				require.Zero(t, v)
			}
		}
	}
	assert.True(t, l.Closed())
}

func TestProducerConsumerGone(t *testing.T) {
	l := line.NewFrames(1)
	p := &run.Producer{
		Source: &mock.Source{SampleRate: 8000, Channels: 1},
		Line:   l,
		Frames: 10,
	}
	g := run.Async(context.Background(), p)
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, l.Close())
	assert.NoError(t, g.Await())
}

func TestGroup(t *testing.T) {
	blocking := run.RunnerFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	})
	failing := run.RunnerFunc(func(context.Context) error {
		return errTest
	})

	g := run.Async(context.Background(), blocking, blocking)
	g.Go(failing)
	assert.ErrorIs(t, g.Await(), errTest)

	g = run.Async(context.Background(), blocking)
	g.Cancel()
	assert.NoError(t, g.Await())
}
