package signal

import "math"

// panEpsilon is the pan value below which the pan stage is skipped and the
// signal passes at unity gain.
const panEpsilon = 1e-6

// PanGains returns constant-power gains for left and right channels:
// left = cos θ, right = sin θ where θ = (pan+1)π/4. Pan is clamped to
// [-1, 1]. Mixing doesn't apply these gains to centered pan, see Centered.
func PanGains(pan float64) (left, right float64) {
	theta := (clip(pan, 1) + 1) * math.Pi / 4
	return math.Cos(theta), math.Sin(theta)
}

// Centered reports if pan is close enough to center to be ignored. The pan
// law is not continuous at this point: a centered signal passes at unity,
// while any pan beyond the threshold scales both sides by about 0.707
// (-3 dB).
func Centered(pan float64) bool {
	return pan*pan <= panEpsilon*panEpsilon
}

// AddScaled adds src multiplied by gain to the buffer. When pan is not
// centered, channels 0 and 1 are additionally scaled by constant-power pan
// gains, other channels get only the gain. See Centered for the level step
// around center.
func (floats Float64) AddScaled(src Float64, gain, pan float64) error {
	if err := sameShape(floats, src); err != nil {
		return err
	}
	if err := src.Validate(); err != nil {
		return err
	}
	gains := channelGains(len(floats), gain, pan)
	for c := range floats {
		g := gains(c)
		dst, in := floats[c], src[c]
		for i := range dst {
			dst[i] += in[i] * g
		}
	}
	return nil
}

// ApplyGainPan scales buffer in place with gain and pan.
func (floats Float64) ApplyGainPan(gain, pan float64) {
	if gain == 1 && Centered(pan) {
		return
	}
	gains := channelGains(len(floats), gain, pan)
	for c := range floats {
		g := gains(c)
		for i := range floats[c] {
			floats[c][i] *= g
		}
	}
}

// Scale multiplies all samples by gain.
func (floats Float64) Scale(gain float64) {
	if gain == 1 {
		return
	}
	for c := range floats {
		for i := range floats[c] {
			floats[c][i] *= gain
		}
	}
}

// Blend mixes processed signal into the buffer: dry·(1−mix) + wet·mix.
// Buffers must have the same shape.
func (floats Float64) Blend(wet Float64, mix float64) error {
	if err := sameShape(floats, wet); err != nil {
		return err
	}
	dry := 1 - mix
	for c := range floats {
		for i := range floats[c] {
			floats[c][i] = floats[c][i]*dry + wet[c][i]*mix
		}
	}
	return nil
}

// SwapChannels exchanges first two channels. No-op for mono.
func (floats Float64) SwapChannels() {
	if len(floats) < 2 {
		return
	}
	floats[0], floats[1] = floats[1], floats[0]
}

// Invert reverses polarity of all samples.
func (floats Float64) Invert() {
	floats.Scale(-1)
}

// Clip limits samples to [-threshold, threshold].
func (floats Float64) Clip(threshold float64) {
	threshold = math.Abs(threshold)
	for c := range floats {
		for i := range floats[c] {
			floats[c][i] = clip(floats[c][i], threshold)
		}
	}
}

// Widen changes stereo separation of first two channels using mid/side
// processing. Separation is in [-1, 1]: -1 collapses to mono, 0 keeps
// the signal untouched, 1 doubles the side component.
func (floats Float64) Widen(separation float64) {
	if len(floats) < 2 || separation == 0 {
		return
	}
	amount := clip(separation, 1) + 1
	left, right := floats[0], floats[1]
	for i := range left {
		mid := (left[i] + right[i]) / 2
		side := (left[i] - right[i]) / 2 * amount
		left[i] = mid + side
		right[i] = mid - side
	}
}

// channelGains returns a function that resolves gain for a channel.
func channelGains(channels int, gain, pan float64) func(int) float64 {
	if Centered(pan) || channels < 2 {
		return func(int) float64 { return gain }
	}
	left, right := PanGains(pan)
	return func(c int) float64 {
		switch c {
		case 0:
			return gain * left
		case 1:
			return gain * right
		}
		return gain
	}
}
