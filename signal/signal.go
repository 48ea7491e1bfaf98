// Package signal provides an API to manipulate digital signals. It allows to:
// 	- convert interleaved data to non-interleaved
//	- convert bit depth for int signals
//	- mix, pan and blend non-interleaved buffers
package signal

import (
	"errors"
	"math"
)

var (
	// ErrChannelsMismatch is returned when buffers have different number of channels.
	ErrChannelsMismatch = errors.New("number of channels mismatch")
	// ErrLengthMismatch is returned when buffers have different number of frames.
	ErrLengthMismatch = errors.New("number of frames mismatch")
	// ErrRaggedBuffer is returned when channels of a single buffer differ in length.
	ErrRaggedBuffer = errors.New("channels have different length")
)

// Float64 is a non-interleaved float64 signal. Channel-major: floats[c][f]
// is the sample of channel c at frame f.
type Float64 [][]float64

const (
	// BitDepth8 is 8 bit depth.
	BitDepth8 = BitDepth(8)
	// BitDepth16 is 16 bit depth.
	BitDepth16 = BitDepth(16)
	// BitDepth24 is 24 bit depth.
	BitDepth24 = BitDepth(24)
	// BitDepth32 is 32 bit depth.
	BitDepth32 = BitDepth(32)
)

// maxInt24 is the biggest 24-bit signed integer.
const maxInt24 = 1<<23 - 1

// InterInt is an interleaved int signal.
type InterInt struct {
	Data        []int
	NumChannels int
	BitDepth
}

// BitDepth contains values required for int-to-float and backward conversion.
type BitDepth int

// divider is used when int to float conversion is done.
func (bitDepth BitDepth) divider() int {
	switch bitDepth {
	case BitDepth8:
		return math.MaxInt8
	case BitDepth16:
		return math.MaxInt16
	case BitDepth24:
		return maxInt24
	case BitDepth32:
		return math.MaxInt32
	default:
		return 1
	}
}

// multiplier is used when float to int conversion is done.
func (bitDepth BitDepth) multiplier() int {
	switch bitDepth {
	case BitDepth8:
		return math.MaxInt8 - 1
	case BitDepth16:
		return math.MaxInt16 - 1
	case BitDepth24:
		return maxInt24 - 1
	case BitDepth32:
		return math.MaxInt32 - 1
	default:
		return 1
	}
}

// Supported reports if bit depth can be used for int conversions.
func (bitDepth BitDepth) Supported() bool {
	switch bitDepth {
	case BitDepth8, BitDepth16, BitDepth24, BitDepth32:
		return true
	}
	return false
}

// AsFloat64 converts interleaved int signal to float64.
func (ints InterInt) AsFloat64() Float64 {
	if ints.Data == nil || ints.NumChannels == 0 {
		return nil
	}
	floats := make([][]float64, ints.NumChannels)
	bufSize := int(math.Ceil(float64(len(ints.Data)) / float64(ints.NumChannels)))

	divider := float64(ints.BitDepth.divider())
	for i := range floats {
		floats[i] = make([]float64, bufSize)
		pos := 0
		for j := i; j < len(ints.Data); j = j + ints.NumChannels {
			floats[i][pos] = float64(ints.Data[j]) / divider
			pos++
		}
	}
	return floats
}

// AsInterInt converts float64 signal to interleaved int. For supported bit
// depths samples outside of [-1, 1] are clipped.
func (floats Float64) AsInterInt(bitDepth BitDepth) []int {
	var numChannels int
	if numChannels = len(floats); numChannels == 0 {
		return nil
	}

	multiplier := float64(bitDepth.multiplier())
	clipped := bitDepth.Supported()
	ints := make([]int, len(floats[0])*numChannels)
	for j := range floats {
		for i, v := range floats[j] {
			if clipped {
				v = clip(v, 1)
			}
			ints[i*numChannels+j] = int(v * multiplier)
		}
	}
	return ints
}

// AsInterFloat32 converts float64 signal to interleaved float32, the
// layout used by audio devices.
func (floats Float64) AsInterFloat32(out []float32) []float32 {
	numChannels := floats.NumChannels()
	size := floats.Size() * numChannels
	if cap(out) < size {
		out = make([]float32, size)
	}
	out = out[:size]
	for c := range floats {
		for i, v := range floats[c] {
			out[i*numChannels+c] = float32(v)
		}
	}
	return out
}

// CopyInterFloat32 copies interleaved float32 data into the buffer. Number
// of copied frames is returned.
func (floats Float64) CopyInterFloat32(in []float32) int {
	numChannels := floats.NumChannels()
	if numChannels == 0 {
		return 0
	}
	frames := len(in) / numChannels
	if frames > floats.Size() {
		frames = floats.Size()
	}
	for c := range floats {
		for i := 0; i < frames; i++ {
			floats[c][i] = float64(in[i*numChannels+c])
		}
	}
	return frames
}

// EmptyFloat64 returns an empty buffer of specified dimentions.
func EmptyFloat64(numChannels int, bufferSize int) Float64 {
	result := make([][]float64, numChannels)
	for i := range result {
		result[i] = make([]float64, bufferSize)
	}
	return result
}

// NumChannels returns number of channels in this sample slice
func (floats Float64) NumChannels() int {
	return len(floats)
}

// Size returns number of samples in single block in this sample slice
func (floats Float64) Size() int {
	if floats.NumChannels() == 0 {
		return 0
	}
	return len(floats[0])
}

// Validate checks that all channels have the same length.
func (floats Float64) Validate() error {
	size := floats.Size()
	for i := range floats {
		if len(floats[i]) != size {
			return ErrRaggedBuffer
		}
	}
	return nil
}

// Append buffers set to existing one one
// new buffer is returned if b is nil
func (floats Float64) Append(source Float64) Float64 {
	if floats == nil {
		floats = make([][]float64, source.NumChannels())
		for i := range floats {
			floats[i] = make([]float64, 0, source.Size())
		}
	}
	for i := range source {
		floats[i] = append(floats[i], source[i]...)
	}
	return floats
}

// Slice creates a new copy of buffer from start position with defined legth
// if buffer doesn't have enough samples - shorten block is returned
//
// if start >= buffer size, nil is returned
// if start + len >= buffer size, len is decreased till the end of slice
// if start < 0, nil is returned
func (floats Float64) Slice(start int, len int) Float64 {
	if floats == nil || start >= floats.Size() || start < 0 {
		return nil
	}
	end := start + len
	if end > floats.Size() {
		end = floats.Size()
	}
	result := make([][]float64, floats.NumChannels())
	for i := range floats {
		result[i] = append(result[i], floats[i][start:end]...)
	}
	return result
}

// Clone returns a deep copy of the buffer.
func (floats Float64) Clone() Float64 {
	if floats == nil {
		return nil
	}
	result := make([][]float64, len(floats))
	for i := range floats {
		result[i] = append(make([]float64, 0, len(floats[i])), floats[i]...)
	}
	return result
}

// CopyTo copies samples into destination buffer. Buffers must have the
// same shape.
func (floats Float64) CopyTo(dst Float64) error {
	if err := sameShape(dst, floats); err != nil {
		return err
	}
	for i := range floats {
		copy(dst[i], floats[i])
	}
	return nil
}

// Clear sets all samples to zero.
func (floats Float64) Clear() {
	for i := range floats {
		for j := range floats[i] {
			floats[i][j] = 0
		}
	}
}

// Resize returns a buffer with the same channels and requested number of
// frames. Underlying arrays are reused when capacity allows, new frames are
// zeroed.
func (floats Float64) Resize(size int) Float64 {
	for i := range floats {
		if cap(floats[i]) < size {
			grown := make([]float64, size)
			copy(grown, floats[i])
			floats[i] = grown
			continue
		}
		old := len(floats[i])
		floats[i] = floats[i][:size]
		for j := old; j < size; j++ {
			floats[i][j] = 0
		}
	}
	return floats
}

func sameShape(dst, src Float64) error {
	if dst.NumChannels() != src.NumChannels() {
		return ErrChannelsMismatch
	}
	if dst.Size() != src.Size() {
		return ErrLengthMismatch
	}
	return nil
}

func clip(v, threshold float64) float64 {
	switch {
	case v > threshold:
		return threshold
	case v < -threshold:
		return -threshold
	}
	return v
}
