/*
Package pool provides cache of buffer pools.

The main use case for this package is to reuse buffers of the same shape
across render calls of multiple components. Pools are keyed by number of
channels and frames, lookups don't take locks after the pool is created.
*/
package pool

import (
	"sync"

	"pipelined.dev/rack/signal"
)

type key struct {
	channels int
	frames   int
}

var pools sync.Map

// Get returns a zeroed buffer of provided shape.
func Get(channels, frames int) signal.Float64 {
	b := forShape(channels, frames).Get().(signal.Float64)
	b.Clear()
	return b
}

// Put returns the buffer to the pool. Caller must not use the buffer
// afterwards. Ragged buffers are dropped.
func Put(b signal.Float64) {
	if b == nil || b.Validate() != nil {
		return
	}
	forShape(b.NumChannels(), b.Size()).Put(b)
}

func forShape(channels, frames int) *sync.Pool {
	k := key{channels: channels, frames: frames}
	if p, ok := pools.Load(k); ok {
		return p.(*sync.Pool)
	}
	p, _ := pools.LoadOrStore(k, &sync.Pool{
		New: func() interface{} {
			return signal.EmptyFloat64(channels, frames)
		},
	})
	return p.(*sync.Pool)
}

// Wipe cleans up internal cache of pools.
func Wipe() {
	pools.Range(func(k, _ interface{}) bool {
		pools.Delete(k)
		return true
	})
}
