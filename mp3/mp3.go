// Package mp3 provides mp3 codec, streaming source and file sink.
// Decoded stream is always 16 bit stereo.
package mp3

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/hajimehoshi/go-mp3"
	"github.com/rs/xid"
	"github.com/viert/lame"

	"pipelined.dev/rack"
	"pipelined.dev/rack/codec"
	"pipelined.dev/rack/metric"
	"pipelined.dev/rack/signal"
)

const (
	// decoder output is 16 bit stereo.
	decodedChannels = 2
	bytesPerSample  = 2

	// DefaultBitRate is used when codec bit rate is not set.
	DefaultBitRate = 192
	// DefaultQuality is used when codec quality is not set.
	DefaultQuality = 2
)

// ErrUnsupportedChannels is returned when encoded signal is not mono or
// stereo.
var ErrUnsupportedChannels = errors.New("only mono and stereo is supported")

// Codec decodes and encodes mp3 files.
type Codec struct {
	// BitRate in kbit/s.
	BitRate int
	// Quality from 0 (best) to 9 (worst).
	Quality int
}

// Extensions returns mp3 extensions.
func (Codec) Extensions() []string {
	return []string{"mp3"}
}

// Decode reads the whole mp3 stream. Tags are not decoded.
func (Codec) Decode(r io.ReadSeeker) (codec.Decoded, error) {
	d, err := mp3.NewDecoder(r)
	if err != nil {
		return codec.Decoded{}, err
	}
	data, err := io.ReadAll(d)
	if err != nil {
		return codec.Decoded{}, err
	}
	return codec.Decoded{
		Signal: decode16(data),
		Format: formatOf(d),
	}, nil
}

// Encode writes the whole signal.
func (c Codec) Encode(w io.WriteSeeker, d codec.Decoded) error {
	s, err := NewSink(w, d.Format, c.BitRate, c.Quality)
	if err != nil {
		return err
	}
	if err := s.Write(d.Signal); err != nil {
		s.Close()
		return err
	}
	return s.Close()
}

func formatOf(d *mp3.Decoder) signal.Format {
	return signal.Format{
		SampleRate: signal.SampleRate(d.SampleRate()),
		Channels:   decodedChannels,
		BitDepth:   signal.BitDepth16,
	}
}

// decode16 converts interleaved 16 bit little endian stereo into signal.
// Trailing partial frame is dropped.
func decode16(data []byte) signal.Float64 {
	frameSize := decodedChannels * bytesPerSample
	ints := make([]int, len(data)/frameSize*decodedChannels)
	for i := range ints {
		ints[i] = int(int16(binary.LittleEndian.Uint16(data[i*bytesPerSample:])))
	}
	b := signal.InterInt{
		Data:        ints,
		NumChannels: decodedChannels,
		BitDepth:    signal.BitDepth16,
	}.AsFloat64()
	if b == nil {
		return signal.EmptyFloat64(decodedChannels, 0)
	}
	return b
}

// encode16 converts signal into interleaved 16 bit little endian bytes.
func encode16(b signal.Float64) []byte {
	ints := b.AsInterInt(signal.BitDepth16)
	data := make([]byte, len(ints)*bytesPerSample)
	for i, v := range ints {
		binary.LittleEndian.PutUint16(data[i*bytesPerSample:], uint16(int16(v)))
	}
	return data
}

// Source streams mp3 file.
type Source struct {
	id      string
	closer  io.Closer
	decoder *mp3.Decoder
	format  signal.Format
	data    []byte
	done    bool
	meter   *metric.Meter
}

// NewSource returns source reading from r.
func NewSource(r io.Reader) (*Source, error) {
	d, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, err
	}
	format := formatOf(d)
	return &Source{
		id:      xid.New().String(),
		decoder: d,
		format:  format,
		meter:   metric.NewMeter(metric.ComponentType(&Source{}), format.SampleRate),
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

// Format returns decoded format.
func (s *Source) Format() signal.Format {
	return s.format
}

// Length returns number of frames if known and -1 otherwise.
func (s *Source) Length() int {
	l := s.decoder.Length()
	if l < 0 {
		return -1
	}
	return int(l) / (decodedChannels * bytesPerSample)
}

// Render decodes next frames. Last buffer is padded with silence, next
// call returns io.EOF.
func (s *Source) Render(frames int) (signal.Float64, error) {
	if frames <= 0 {
		return nil, fmt.Errorf("%w: %d", rack.ErrInvalidFrames, frames)
	}
	if s.done {
		return nil, io.EOF
	}
	size := frames * decodedChannels * bytesPerSample
	if cap(s.data) < size {
		s.data = make([]byte, size)
	}
	s.data = s.data[:size]
	start := time.Now()
	n, err := io.ReadFull(s.decoder, s.data)
	switch {
	case err == io.EOF:
		s.done = true
		return nil, io.EOF
	case err == io.ErrUnexpectedEOF:
		s.done = true
	case err != nil:
		return nil, err
	}
	out := signal.EmptyFloat64(decodedChannels, frames)
	read := decode16(s.data[:n])
	for c := range read {
		copy(out[c], read[c])
	}
	s.meter.Measure(start, frames)
	return out, nil
}

// Rewind restarts the source from the first frame.
func (s *Source) Rewind() error {
	if _, err := s.decoder.Seek(0, io.SeekStart); err != nil {
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

// Sink encodes buffers with lame.
type Sink struct {
	mu     sync.Mutex
	closer io.Closer
	writer *lame.LameWriter
	format signal.Format
	closed bool
}

// NewSink returns sink that encodes into w. Zero bit rate and quality
// are replaced with defaults.
func NewSink(w io.Writer, format signal.Format, bitRate, quality int) (*Sink, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	if format.Channels > 2 {
		return nil, fmt.Errorf("%w: %d channels", ErrUnsupportedChannels, format.Channels)
	}
	if bitRate == 0 {
		bitRate = DefaultBitRate
	}
	if quality == 0 {
		quality = DefaultQuality
	}
	format.BitDepth = signal.BitDepth16
	// lame must not close w, it's owned by the caller.
	wr := lame.NewWriter(struct{ io.Writer }{w})
	wr.Encoder.SetBitrate(bitRate)
	wr.Encoder.SetQuality(quality)
	wr.Encoder.SetNumChannels(format.Channels)
	wr.Encoder.SetInSamplerate(int(format.SampleRate))
	if format.Channels == 2 {
		wr.Encoder.SetMode(lame.JOINT_STEREO)
	}
	wr.Encoder.SetVBR(lame.VBR_RH)
	wr.Encoder.InitParams()
	return &Sink{
		writer: wr,
		format: format,
	}, nil
}

// Create creates the file and returns sink that owns it.
func Create(path string, format signal.Format, bitRate, quality int) (*Sink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	s, err := NewSink(f, format, bitRate, quality)
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
	_, err := s.writer.Write(encode16(b))
	return err
}

// Close flushes encoder and closes the file if sink owns it.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	err := s.writer.Close()
	if s.closer != nil {
		err = errors.Join(err, s.closer.Close())
	}
	return err
}
