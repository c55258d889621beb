package audio

import "math"

// ApplyVibrato scales every frame by 1 + depth*sin(2*pi*freq*i/rate). The
// same gain applies to all channels of a frame.
func ApplyVibrato(b *Buffer, freq, depth float64) *Buffer {
	out := b.Clone()
	if b.SampleRate == 0 {
		return out
	}
	ch := out.Channels
	step := 2 * math.Pi * freq / float64(b.SampleRate)
	for i := 0; i < out.Frames(); i++ {
		g := 1 + depth*math.Sin(step*float64(i))
		for c := 0; c < ch; c++ {
			out.Data[i*ch+c] *= g
		}
	}
	return out
}
