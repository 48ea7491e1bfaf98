// Package codec defines how encoded audio is converted to signal buffers
// and back. Concrete codecs live in their own packages and are registered
// by the application.
package codec

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"pipelined.dev/rack/registry"
	"pipelined.dev/rack/signal"
)

// Tags holds metadata of encoded audio, like title and artist.
type Tags map[string]string

// Decoded is a fully decoded audio.
type Decoded struct {
	Signal signal.Float64
	Format signal.Format
	Tags   Tags
}

// Decoder decodes the whole stream.
type Decoder interface {
	Decode(r io.ReadSeeker) (Decoded, error)
}

// Encoder encodes the whole signal.
type Encoder interface {
	Encode(w io.WriteSeeker, d Decoded) error
}

// Codec decodes and encodes one container format.
type Codec interface {
	Decoder
	Encoder
	// Extensions returns lower-case file extensions without dot.
	Extensions() []string
}

// Registry maps file extensions to codecs.
type Registry struct {
	*registry.Registry[Codec]
}

// NewRegistry returns empty registry.
func NewRegistry() *Registry {
	return &Registry{Registry: registry.New[Codec]("codec")}
}

// Add registers the codec for all its extensions.
func (r *Registry) Add(c Codec) error {
	for _, ext := range c.Extensions() {
		if err := r.Register(ext, c); err != nil {
			return err
		}
	}
	return nil
}

// ForPath returns codec for the file extension.
func (r *Registry) ForPath(path string) (Codec, error) {
	return r.Lookup(strings.TrimPrefix(filepath.Ext(path), "."))
}

// DecodeFile decodes the file with codec matching its extension.
func (r *Registry) DecodeFile(path string) (Decoded, error) {
	c, err := r.ForPath(path)
	if err != nil {
		return Decoded{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return Decoded{}, err
	}
	defer f.Close()
	d, err := c.Decode(f)
	if err != nil {
		return Decoded{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return d, nil
}

// EncodeFile creates the file and encodes the signal with codec matching
// its extension.
func (r *Registry) EncodeFile(path string, d Decoded) error {
	c, err := r.ForPath(path)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := c.Encode(f, d); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
