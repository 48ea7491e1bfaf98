package rack

import (
	"errors"
	"fmt"
	"io"

	"pipelined.dev/rack/signal"
)

var (
	// ErrInvalidFrames is returned when render is called with non-positive
	// number of frames.
	ErrInvalidFrames = errors.New("invalid number of frames")
	// ErrNoProgress is returned when node keeps returning empty buffers.
	ErrNoProgress = errors.New("node makes no progress")
)

// Node is a vertex of audio graph. Nodes are compared by identity, so
// implementations must be pointer types.
type Node interface {
	// Format returns format of rendered signal.
	Format() signal.Format
	// Render returns a buffer with rendered signal. The number of frames
	// normally equals requested, but nodes with varying-size transforms
	// may return a different number. io.EOF is returned when node has
	// no more data.
	Render(frames int) (signal.Float64, error)
}

// Composite is a node that has input nodes.
type Composite interface {
	Node
	// Inputs returns the current snapshot of input nodes.
	Inputs() []Node
}

// Sink consumes rendered buffers. Write must not retain the buffer after
// it returns.
type Sink interface {
	Write(signal.Float64) error
}

// Reaches reports if target is reachable from the node, including the
// case when they are the same node. Graph is traversed depth-first and
// every node is visited once, so diamonds are cheap and existing cycles
// don't hang the walk.
func Reaches(from, target Node) bool {
	visited := make(map[Node]struct{})
	var walk func(Node) bool
	walk = func(n Node) bool {
		if n == target {
			return true
		}
		if _, ok := visited[n]; ok {
			return false
		}
		visited[n] = struct{}{}
		c, ok := n.(Composite)
		if !ok {
			return false
		}
		for _, in := range c.Inputs() {
			if in != nil && walk(in) {
				return true
			}
		}
		return false
	}
	return from != nil && walk(from)
}

// Silence is a node that renders zero signal.
type Silence struct {
	format signal.Format
}

// NewSilence returns a silent node of provided format.
func NewSilence(format signal.Format) *Silence {
	return &Silence{format: format}
}

// Format returns node format.
func (s *Silence) Format() signal.Format {
	return s.format
}

// Render returns zeroed buffer.
func (s *Silence) Render(frames int) (signal.Float64, error) {
	if frames <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidFrames, frames)
	}
	return signal.EmptyFloat64(s.format.Channels, frames), nil
}

// maxStalls is the number of consecutive empty renders tolerated by
// ChunkReader.
const maxStalls = 8

// ChunkReader adapts a node that returns arbitrary number of frames to a
// consumer that needs exact chunks, like an audio device. It's a
// Composite, so graph walks see through it.
type ChunkReader struct {
	node    Node
	pending signal.Float64
	eof     bool
}

// Rechunk wraps the node with ChunkReader.
func Rechunk(n Node) *ChunkReader {
	return &ChunkReader{node: n}
}

// Format returns format of wrapped node.
func (r *ChunkReader) Format() signal.Format {
	return r.node.Format()
}

// Inputs returns wrapped node.
func (r *ChunkReader) Inputs() []Node {
	return []Node{r.node}
}

// Render returns exactly requested number of frames. When wrapped node
// runs out of data, the last chunk is padded with silence and io.EOF is
// returned on the next call.
func (r *ChunkReader) Render(frames int) (signal.Float64, error) {
	if frames <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidFrames, frames)
	}
	stalls := 0
	for r.pending.Size() < frames && !r.eof {
		b, err := r.node.Render(frames - r.pending.Size())
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return nil, err
			}
			r.eof = true
		}
		if b.Size() == 0 {
			if r.eof {
				break
			}
			if stalls++; stalls == maxStalls {
				return nil, ErrNoProgress
			}
			continue
		}
		stalls = 0
		r.pending = r.pending.Append(b)
	}
	if r.pending.Size() == 0 {
		return nil, io.EOF
	}
	result := r.pending.Slice(0, frames)
	if result.Size() < frames {
		result = result.Resize(frames)
	}
	r.pending = r.pending.Slice(frames, r.pending.Size())
	return result, nil
}

// Pending returns number of frames buffered by the reader.
func (r *ChunkReader) Pending() int {
	return r.pending.Size()
}
