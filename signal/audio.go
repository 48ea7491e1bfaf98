package signal

import (
	"github.com/go-audio/audio"
)

// FromBuffer converts go-audio buffer into non-interleaved float64 signal.
// Int buffers are scaled according to their source bit depth.
func FromBuffer(buf audio.Buffer) Float64 {
	if buf == nil || buf.PCMFormat() == nil {
		return nil
	}
	switch b := buf.(type) {
	case *audio.IntBuffer:
		return InterInt{
			Data:        b.Data,
			NumChannels: b.Format.NumChannels,
			BitDepth:    BitDepth(b.SourceBitDepth),
		}.AsFloat64()
	default:
		fb := buf.AsFloatBuffer()
		numChannels := fb.Format.NumChannels
		if numChannels == 0 {
			return nil
		}
		floats := EmptyFloat64(numChannels, len(fb.Data)/numChannels)
		for i, v := range fb.Data[:floats.Size()*numChannels] {
			floats[i%numChannels][i/numChannels] = v
		}
		return floats
	}
}

// AsIntBuffer converts float64 signal into go-audio int buffer with
// provided bit depth.
func (floats Float64) AsIntBuffer(sampleRate SampleRate, bitDepth BitDepth) *audio.IntBuffer {
	return &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: floats.NumChannels(),
			SampleRate:  int(sampleRate),
		},
		Data:           floats.AsInterInt(bitDepth),
		SourceBitDepth: int(bitDepth),
	}
}

// FormatOf returns a format of go-audio buffer.
func FormatOf(buf audio.Buffer, bitDepth BitDepth) Format {
	f := buf.PCMFormat()
	if f == nil {
		return Format{}
	}
	return Format{
		SampleRate: SampleRate(f.SampleRate),
		Channels:   f.NumChannels,
		BitDepth:   bitDepth,
	}
}
