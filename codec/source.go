package codec

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/rs/xid"

	"pipelined.dev/rack"
	"pipelined.dev/rack/control"
	"pipelined.dev/rack/metric"
	"pipelined.dev/rack/signal"
)

// Source plays decoded signal. Position can be changed from any goroutine
// while the source is rendered.
type Source struct {
	id       string
	decoded  Decoded
	position atomic.Int64
	loop     *control.Bool
	meter    *metric.Meter
}

// NewSource returns a source of decoded signal.
func NewSource(d Decoded) (*Source, error) {
	if err := d.Format.Validate(); err != nil {
		return nil, err
	}
	if err := d.Signal.Validate(); err != nil {
		return nil, err
	}
	if d.Signal.NumChannels() != d.Format.Channels {
		return nil, fmt.Errorf("decoded signal: %w", signal.ErrChannelsMismatch)
	}
	return &Source{
		id:      xid.New().String(),
		decoded: d,
		loop:    control.NewBool("loop", false),
		meter:   metric.NewMeter(metric.ComponentType(&Source{}), d.Format.SampleRate),
	}, nil
}

// ID returns unique source id.
func (s *Source) ID() string {
	return s.id
}

// Format returns decoded format.
func (s *Source) Format() signal.Format {
	return s.decoded.Format
}

// Tags returns decoded tags.
func (s *Source) Tags() Tags {
	return s.decoded.Tags
}

// Loop returns loop control. Looped source restarts from the beginning
// instead of returning io.EOF.
func (s *Source) Loop() *control.Bool {
	return s.loop
}

// Controls returns source controls.
func (s *Source) Controls() []control.Control {
	return []control.Control{s.loop}
}

// Length returns number of frames.
func (s *Source) Length() int {
	return s.decoded.Signal.Size()
}

// Position returns the next frame to render.
func (s *Source) Position() int {
	return int(s.position.Load())
}

// Seek sets the next frame to render. Position is clamped to the length.
func (s *Source) Seek(frame int) {
	if frame < 0 {
		frame = 0
	}
	if frame > s.Length() {
		frame = s.Length()
	}
	s.position.Store(int64(frame))
}

// Rewind seeks to the beginning.
func (s *Source) Rewind() {
	s.Seek(0)
}

// Render returns next frames. The tail is padded with silence, io.EOF is
// returned after the last frame unless source is looped.
func (s *Source) Render(frames int) (signal.Float64, error) {
	if frames <= 0 {
		return nil, fmt.Errorf("%w: %d", rack.ErrInvalidFrames, frames)
	}
	start := time.Now()
	length := s.Length()
	pos := s.position.Load()
	if int(pos) >= length && (!s.loop.Enabled() || length == 0) {
		return nil, io.EOF
	}
	b := signal.EmptyFloat64(s.decoded.Format.Channels, frames)
	next := int(pos)
	for filled := 0; filled < frames; {
		if next >= length {
			if !s.loop.Enabled() {
				break
			}
			next = 0
		}
		n := copyFrames(b, s.decoded.Signal, filled, next, frames-filled)
		filled += n
		next += n
	}
	// concurrent seek wins
	s.position.CompareAndSwap(pos, int64(next))
	s.meter.Measure(start, frames)
	return b, nil
}

func copyFrames(dst, src signal.Float64, dstPos, srcPos, frames int) int {
	n := 0
	for c := range dst {
		n = copy(dst[c][dstPos:dstPos+frames], src[c][srcPos:])
	}
	return n
}

var _ rack.Node = (*Source)(nil)
