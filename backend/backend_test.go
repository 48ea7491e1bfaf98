package backend_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"pipelined.dev/rack/backend"
	"pipelined.dev/rack/registry"
	"pipelined.dev/rack/signal"
)

var format = signal.Format{SampleRate: 8000, Channels: 2}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestOutput(t *testing.T) {
	var written int
	d := &backend.Dummy{OnWrite: func(b signal.Float64) { written += b.Size() }}
	out, err := d.OpenOutput(format, 16)
	require.NoError(t, err)
	assert.Equal(t, format, out.Format())
	assert.Equal(t, 16, out.BufferSize())

	assert.NoError(t, out.Write(signal.EmptyFloat64(2, 16)))
	assert.ErrorIs(t, out.Write(signal.EmptyFloat64(2, 15)), backend.ErrBufferSize)
	assert.ErrorIs(t, out.Write(signal.EmptyFloat64(1, 16)), signal.ErrChannelsMismatch)
	assert.Equal(t, 16, written)

	require.NoError(t, out.Close())
	require.NoError(t, out.Close())
	assert.ErrorIs(t, out.Write(signal.EmptyFloat64(2, 16)), backend.ErrClosed)
}

func TestOpenInvalid(t *testing.T) {
	d := &backend.Dummy{}
	_, err := d.OpenOutput(format, 0)
	assert.ErrorIs(t, err, backend.ErrBufferSize)
	_, err = d.OpenInput(signal.Format{Channels: 2}, 16)
	assert.ErrorIs(t, err, signal.ErrInvalidFormat)
}

func TestPaced(t *testing.T) {
	const (
		bufferSize = 80 // 10ms at 8kHz
		writes     = 5
	)
	d := &backend.Dummy{Paced: true}
	out, err := d.OpenOutput(format, bufferSize)
	require.NoError(t, err)
	defer out.Close()

	start := time.Now()
	for i := 0; i < writes; i++ {
		require.NoError(t, out.Write(signal.EmptyFloat64(2, bufferSize)))
	}
	assert.GreaterOrEqual(t, time.Since(start), format.SampleRate.DurationOf(bufferSize*(writes-1)))
}

func TestPacedCloseUnblocks(t *testing.T) {
	d := &backend.Dummy{Paced: true}
	in, err := d.OpenInput(format, 8000)
	require.NoError(t, err)

	errs := make(chan error)
	go func() {
		_, err := in.Read()
		errs <- err
	}()
	require.NoError(t, in.Close())
	select {
	case err := <-errs:
		assert.ErrorIs(t, err, backend.ErrClosed)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("read is not unblocked by close")
	}
}

func TestCapture(t *testing.T) {
	d := &backend.Dummy{}
	in, err := d.OpenInput(format, 10)
	require.NoError(t, err)

	node := backend.Capture(in)
	assert.Equal(t, format, node.Format())
	for _, frames := range []int{4, 25, 1} {
		b, err := node.Render(frames)
		require.NoError(t, err)
		assert.Equal(t, frames, b.Size())
		assert.Equal(t, 2, b.NumChannels())
	}
	assert.Equal(t, 0, node.Pending())

	require.NoError(t, in.Close())
	_, err = node.Render(10)
	assert.ErrorIs(t, err, backend.ErrClosed)
}

func TestRegistry(t *testing.T) {
	r := backend.NewRegistry()
	b, err := r.Lookup("Dummy")
	require.NoError(t, err)
	assert.Equal(t, backend.DummyName, b.Name())
	assert.ErrorIs(t, r.Add(&backend.Dummy{}), registry.ErrDuplicate)
	assert.Equal(t, []string{backend.DummyName}, r.IDs())
}
