package line_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"pipelined.dev/rack/line"
)

func TestLineFIFO(t *testing.T) {
	defer goleak.VerifyNone(t)
	l := line.New[int](3)
	for i := 0; i < 3; i++ {
		require.NoError(t, l.Send(i))
	}
	assert.Equal(t, 3, l.Len())
	assert.Equal(t, 3, l.Cap())
	for i := 0; i < 3; i++ {
		v, err := l.Take()
		require.NoError(t, err)
		assert.Equal(t, i, v)
	}
}

func TestSendTimeout(t *testing.T) {
	defer goleak.VerifyNone(t)
	tests := []struct {
		timeout time.Duration
	}{
		{timeout: 0},
		{timeout: 10 * time.Millisecond},
	}
	for _, test := range tests {
		l := line.New[int](1)
		require.NoError(t, l.SendTimeout(1, test.timeout))
		start := time.Now()
		err := l.SendTimeout(2, test.timeout)
		assert.Equal(t, line.ErrTimeout, err)
		assert.GreaterOrEqual(t, time.Since(start), test.timeout)
		// line is still usable after timeout
		v, err := l.TakeTimeout(test.timeout)
		require.NoError(t, err)
		assert.Equal(t, 1, v)
		_, err = l.TakeTimeout(test.timeout)
		assert.Equal(t, line.ErrTimeout, err)
	}
}

func TestCloseWakesWaiters(t *testing.T) {
	defer goleak.VerifyNone(t)
	full := line.New[int](1)
	require.NoError(t, full.Send(0))
	empty := line.New[int](1)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		errs <- full.Send(1)
	}()
	go func() {
		defer wg.Done()
		_, err := empty.Take()
		errs <- err
	}()
	// let goroutines block
	time.Sleep(10 * time.Millisecond)
	assert.NoError(t, full.Close())
	assert.NoError(t, empty.Close())
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.Equal(t, line.ErrClosed, err)
	}
}

func TestCloseIdempotent(t *testing.T) {
	l := line.New[int](2)
	require.NoError(t, l.Send(1))
	assert.NoError(t, l.Close())
	assert.NoError(t, l.Close())
	assert.True(t, l.Closed())

	assert.Equal(t, line.ErrClosed, l.Send(2))
	assert.Equal(t, line.ErrClosed, l.SendTimeout(2, 0))
	_, err := l.Take()
	assert.Equal(t, line.ErrClosed, err)
	_, err = l.TakeTimeout(time.Millisecond)
	assert.Equal(t, line.ErrClosed, err)
	select {
	case <-l.Done():
	default:
		t.Fatal("done channel is not closed")
	}
}

func TestFlush(t *testing.T) {
	l := line.New[int](4)
	assert.Equal(t, 0, l.Flush())
	for i := 0; i < 3; i++ {
		require.NoError(t, l.Send(i))
	}
	assert.Equal(t, 3, l.Flush())
	assert.Equal(t, 0, l.Len())
	assert.False(t, l.Closed())
	require.NoError(t, l.Send(5))
	v, err := l.Take()
	require.NoError(t, err)
	assert.Equal(t, 5, v)
}

func TestContext(t *testing.T) {
	defer goleak.VerifyNone(t)
	l := line.New[int](1)
	require.NoError(t, l.Send(0))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := l.SendContext(ctx, 1)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	l.Flush()
	ctx, cancel = context.WithCancel(context.Background())
	cancel()
	_, err = l.TakeContext(ctx)
	assert.Equal(t, context.Canceled, err)
}

func TestBackpressure(t *testing.T) {
	defer goleak.VerifyNone(t)
	const total = 100
	l := line.New[int](2)
	done := make(chan []int)
	go func() {
		var got []int
		for {
			v, err := l.Take()
			if err != nil {
				done <- got
				return
			}
			got = append(got, v)
			if len(got) == total {
				done <- got
				return
			}
		}
	}()
	for i := 0; i < total; i++ {
		require.NoError(t, l.Send(i))
		assert.LessOrEqual(t, l.Len(), 2)
	}
	got := <-done
	l.Close()
	require.Len(t, got, total)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestCapacity(t *testing.T) {
	assert.Equal(t, 1, line.New[[]byte](0).Cap())
	assert.Equal(t, 4, line.NewFrames(4).Cap())
}
