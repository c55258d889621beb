package audio

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Phase vocoder analysis parameters.
const (
	stretchFFTSize = 2048
	stretchHop     = stretchFFTSize / 4
)

// Stretch changes the duration of b to exactly frames frames without
// changing its pitch, using an STFT phase vocoder on each channel.
func Stretch(b *Buffer, frames int) *Buffer {
	in := b.Frames()
	if frames <= 0 {
		return &Buffer{Channels: b.Channels, SampleRate: b.SampleRate}
	}
	if in == 0 {
		return NewBuffer(frames, b.Channels, b.SampleRate)
	}
	if in == frames {
		return b.Clone()
	}
	rate := float64(in) / float64(frames)
	chans := make([][]float64, b.Channels)
	for c := range chans {
		chans[c] = stretchChannel(b.Channel(c), rate, frames)
	}
	return FromChannels(chans, b.SampleRate)
}

// stretchChannel time-stretches x by rate (>1 is faster) and fixes the
// result to length samples.
func stretchChannel(x []float64, rate float64, length int) []float64 {
	n := stretchFFTSize
	hop := stretchHop
	window := hann(n)
	fft := fourier.NewFFT(n)

	// Centre frames on their timestamps by padding half a window each side.
	padded := make([]float64, len(x)+n)
	copy(padded[n/2:], x)
	numFrames := 1 + (len(padded)-n)/hop

	stft := make([][]complex128, numFrames)
	frame := make([]float64, n)
	for t := 0; t < numFrames; t++ {
		off := t * hop
		for k := 0; k < n; k++ {
			frame[k] = padded[off+k] * window[k]
		}
		stft[t] = fft.Coefficients(nil, frame)
	}

	bins := n/2 + 1
	advance := make([]float64, bins)
	for k := range advance {
		advance[k] = 2 * math.Pi * float64(hop) * float64(k) / float64(n)
	}
	zero := make([]complex128, bins)
	column := func(t int) []complex128 {
		if t < numFrames {
			return stft[t]
		}
		return zero
	}

	steps := int(math.Ceil(float64(numFrames) / rate))
	phase := make([]float64, bins)
	for k := range phase {
		phase[k] = cmplx.Phase(stft[0][k])
	}

	outLen := n + hop*(steps-1)
	out := make([]float64, outLen)
	norm := make([]float64, outLen)
	coeffs := make([]complex128, bins)
	seq := make([]float64, n)
	for s := 0; s < steps; s++ {
		pos := float64(s) * rate
		t := int(pos)
		alpha := pos - float64(t)
		c0, c1 := column(t), column(t+1)
		for k := 0; k < bins; k++ {
			mag := (1-alpha)*cmplx.Abs(c0[k]) + alpha*cmplx.Abs(c1[k])
			coeffs[k] = cmplx.Rect(mag, phase[k])

			dphi := cmplx.Phase(c1[k]) - cmplx.Phase(c0[k]) - advance[k]
			dphi -= 2 * math.Pi * math.Round(dphi/(2*math.Pi))
			phase[k] += advance[k] + dphi
		}
		fft.Sequence(seq, coeffs)
		off := s * hop
		for k := 0; k < n; k++ {
			// gonum's inverse transform is unnormalised.
			out[off+k] += seq[k] / float64(n) * window[k]
			norm[off+k] += window[k] * window[k]
		}
	}
	for i := range out {
		if norm[i] > 1e-10 {
			out[i] /= norm[i]
		}
	}

	// Drop the centring pad, then trim or zero-extend to length.
	result := make([]float64, length)
	if len(out) > n/2 {
		copy(result, out[n/2:])
	}
	return result
}

// hann returns a periodic Hann window of size n.
func hann(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}
