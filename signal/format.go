package signal

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidFormat is returned when format has zero rate or channels.
var ErrInvalidFormat = errors.New("invalid format")

// SampleRate is the number of frames per second.
type SampleRate uint

// DurationOf returns time duration of passed samples for this sample rate.
func (rate SampleRate) DurationOf(samples int) time.Duration {
	if rate == 0 {
		return 0
	}
	return time.Duration(float64(samples) / float64(rate) * float64(time.Second))
}

// FramesIn returns number of frames that fit into provided duration.
func (rate SampleRate) FramesIn(d time.Duration) int {
	return int(float64(rate) * d.Seconds())
}

// Format describes the signal produced by a node.
type Format struct {
	SampleRate SampleRate
	Channels   int
	// BitDepth is only meaningful at the edges of the graph where
	// signal is encoded or decoded.
	BitDepth BitDepth
}

// IsZero reports if format was not set.
func (f Format) IsZero() bool {
	return f.SampleRate == 0 && f.Channels == 0
}

// Validate checks that format is usable for rendering.
func (f Format) Validate() error {
	if f.SampleRate == 0 || f.Channels <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidFormat, f)
	}
	return nil
}

// Compatible reports if two formats can be mixed together: sample rate and
// number of channels must match. Bit depth is ignored.
func (f Format) Compatible(other Format) bool {
	return f.SampleRate == other.SampleRate && f.Channels == other.Channels
}

func (f Format) String() string {
	if f.BitDepth == 0 {
		return fmt.Sprintf("%dHz/%dch", f.SampleRate, f.Channels)
	}
	return fmt.Sprintf("%dHz/%dch/%dbit", f.SampleRate, f.Channels, f.BitDepth)
}
