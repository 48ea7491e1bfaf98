// Package wav provides wav codec, streaming source and file sink.
package wav

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/rs/xid"

	"pipelined.dev/rack"
	"pipelined.dev/rack/codec"
	"pipelined.dev/rack/metric"
	"pipelined.dev/rack/signal"
)

var (
	// ErrUnsupportedBitDepth is returned when unsupported bit depth is used.
	ErrUnsupportedBitDepth = errors.New("only 16, 24 and 32 bit depth is supported")
	// ErrInvalidFile is returned when reader doesn't contain valid wav.
	ErrInvalidFile = errors.New("wav is not valid")
)

const pcmFormat = 1

// DefaultBitDepth is used when format doesn't define bit depth.
const DefaultBitDepth = signal.BitDepth16

func supported(bd signal.BitDepth) bool {
	switch bd {
	case signal.BitDepth16, signal.BitDepth24, signal.BitDepth32:
		return true
	}
	return false
}

// Codec decodes and encodes wav files.
type Codec struct{}

// Extensions returns wav extensions.
func (Codec) Extensions() []string {
	return []string{"wav", "wave"}
}

// Decode reads the whole wav stream.
func (Codec) Decode(r io.ReadSeeker) (codec.Decoded, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return codec.Decoded{}, ErrInvalidFile
	}
	format := formatOf(d)
	if !supported(format.BitDepth) {
		return codec.Decoded{}, fmt.Errorf("%w: %v", ErrUnsupportedBitDepth, format.BitDepth)
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return codec.Decoded{}, err
	}
	sig := signal.FromBuffer(buf)
	if sig == nil {
		sig = signal.EmptyFloat64(format.Channels, 0)
	}
	return codec.Decoded{
		Signal: sig,
		Format: format,
		Tags:   readTags(r),
	}, nil
}

// Encode writes the whole signal. Zero bit depth defaults to 16 bits.
func (Codec) Encode(w io.WriteSeeker, d codec.Decoded) error {
	format := d.Format
	if format.BitDepth == 0 {
		format.BitDepth = DefaultBitDepth
	}
	if !supported(format.BitDepth) {
		return fmt.Errorf("%w: %v", ErrUnsupportedBitDepth, format.BitDepth)
	}
	if d.Signal.NumChannels() != format.Channels {
		return signal.ErrChannelsMismatch
	}
	e := wav.NewEncoder(w, int(format.SampleRate), int(format.BitDepth), format.Channels, pcmFormat)
	e.Metadata = metadataOf(d.Tags)
	if err := e.Write(d.Signal.AsIntBuffer(format.SampleRate, format.BitDepth)); err != nil {
		return err
	}
	return e.Close()
}

// readTags reads trailing metadata chunks. Errors are ignored, tags are
// optional.
func readTags(r io.ReadSeeker) codec.Tags {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil
	}
	d := wav.NewDecoder(r)
	d.ReadMetadata()
	return tagsOf(d.Metadata)
}

func formatOf(d *wav.Decoder) signal.Format {
	return signal.Format{
		SampleRate: signal.SampleRate(d.SampleRate),
		Channels:   int(d.NumChans),
		BitDepth:   signal.BitDepth(d.BitDepth),
	}
}

// tag fields known to INFO list chunk.
func fields(m *wav.Metadata) map[string]*string {
	return map[string]*string{
		"title":      &m.Title,
		"artist":     &m.Artist,
		"comments":   &m.Comments,
		"copyright":  &m.Copyright,
		"date":       &m.CreationDate,
		"engineer":   &m.Engineer,
		"technician": &m.Technician,
		"genre":      &m.Genre,
		"keywords":   &m.Keywords,
		"medium":     &m.Medium,
		"album":      &m.Product,
		"subject":    &m.Subject,
		"software":   &m.Software,
		"source":     &m.Source,
		"location":   &m.Location,
		"track":      &m.TrackNbr,
	}
}

func tagsOf(m *wav.Metadata) codec.Tags {
	if m == nil {
		return nil
	}
	var tags codec.Tags
	for k, v := range fields(m) {
		if *v == "" {
			continue
		}
		if tags == nil {
			tags = codec.Tags{}
		}
		tags[k] = *v
	}
	return tags
}

func metadataOf(tags codec.Tags) *wav.Metadata {
	if len(tags) == 0 {
		return nil
	}
	var (
		m     wav.Metadata
		known bool
	)
	for k, v := range fields(&m) {
		if t, ok := tags[k]; ok {
			*v = t
			known = true
		}
	}
	if !known {
		return nil
	}
	return &m
}

// Source streams wav file without loading it into memory. Source is not
// safe for concurrent rendering.
type Source struct {
	id      string
	closer  io.Closer
	decoder *wav.Decoder
	format  signal.Format
	buf     *audio.IntBuffer
	done    bool
	meter   *metric.Meter
}

// NewSource validates the stream and returns source reading from it.
func NewSource(r io.ReadSeeker) (*Source, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, ErrInvalidFile
	}
	format := formatOf(d)
	if !supported(format.BitDepth) {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedBitDepth, format.BitDepth)
	}
	if err := d.FwdToPCM(); err != nil {
		return nil, err
	}
	return &Source{
		id:      xid.New().String(),
		decoder: d,
		format:  format,
		buf: &audio.IntBuffer{
			Format:         d.Format(),
			SourceBitDepth: int(format.BitDepth),
		},
		meter: metric.NewMeter(metric.ComponentType(&Source{}), format.SampleRate),
	}, nil
}

// Open opens the file and returns source that owns it.
func Open(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	s, err := NewSource(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	s.closer = f
	return s, nil
}

// ID returns unique source id.
func (s *Source) ID() string {
	return s.id
}

// Format returns wav format.
func (s *Source) Format() signal.Format {
	return s.format
}

// Render reads next frames. Last buffer is padded with silence, next call
// returns io.EOF.
func (s *Source) Render(frames int) (signal.Float64, error) {
	if frames <= 0 {
		return nil, fmt.Errorf("%w: %d", rack.ErrInvalidFrames, frames)
	}
	if s.done {
		return nil, io.EOF
	}
	size := frames * s.format.Channels
	if cap(s.buf.Data) < size {
		s.buf.Data = make([]int, size)
	}
	s.buf.Data = s.buf.Data[:size]
	n, err := s.decoder.PCMBuffer(s.buf)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		s.done = true
		return nil, io.EOF
	}
	start := time.Now()
	out := signal.EmptyFloat64(s.format.Channels, frames)
	read := signal.InterInt{
		Data:        s.buf.Data[:n],
		NumChannels: s.format.Channels,
		BitDepth:    s.format.BitDepth,
	}.AsFloat64()
	for c := range read {
		copy(out[c], read[c])
	}
	if n < size {
		s.done = true
	}
	s.meter.Measure(start, frames)
	return out, nil
}

// Rewind restarts the source from the first frame.
func (s *Source) Rewind() error {
	if err := s.decoder.Rewind(); err != nil {
		return err
	}
	s.done = false
	return nil
}

// Close closes the file if source owns it.
func (s *Source) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// Sink encodes buffers into wav stream.
type Sink struct {
	mu      sync.Mutex
	closer  io.Closer
	encoder *wav.Encoder
	format  signal.Format
	closed  bool
}

// NewSink returns sink that writes into w. Format bit depth defaults
// to 16 bits.
func NewSink(w io.WriteSeeker, format signal.Format, tags codec.Tags) (*Sink, error) {
	if format.BitDepth == 0 {
		format.BitDepth = DefaultBitDepth
	}
	if !supported(format.BitDepth) {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedBitDepth, format.BitDepth)
	}
	if err := format.Validate(); err != nil {
		return nil, err
	}
	e := wav.NewEncoder(w, int(format.SampleRate), int(format.BitDepth), format.Channels, pcmFormat)
	e.Metadata = metadataOf(tags)
	return &Sink{
		encoder: e,
		format:  format,
	}, nil
}

// Create creates the file and returns sink that owns it.
func Create(path string, format signal.Format, tags codec.Tags) (*Sink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	s, err := NewSink(f, format, tags)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	s.closer = f
	return s, nil
}

// Format returns sink format.
func (s *Sink) Format() signal.Format {
	return s.format
}

// Write encodes the buffer.
func (s *Sink) Write(b signal.Float64) error {
	if b.NumChannels() != s.format.Channels {
		return signal.ErrChannelsMismatch
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return os.ErrClosed
	}
	return s.encoder.Write(b.AsIntBuffer(s.format.SampleRate, s.format.BitDepth))
}

// Close finalizes headers and closes the file if sink owns it.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	err := s.encoder.Close()
	if s.closer != nil {
		err = errors.Join(err, s.closer.Close())
	}
	return err
}
