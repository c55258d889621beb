package audio

import (
	"fmt"

	"github.com/dh1tw/gosamplerate"
)

// Upmix duplicates a mono buffer across channels. Buffers that already have
// the requested layout are returned as is; anything else would need a
// downmix and fails.
func Upmix(b *Buffer, channels int) (*Buffer, error) {
	if b.Channels == channels {
		return b, nil
	}
	if b.Channels != 1 {
		return nil, fmt.Errorf("%w: %d -> %d channels", ErrLayoutMismatch, b.Channels, channels)
	}
	n := b.Frames()
	out := NewBuffer(n, channels, b.SampleRate)
	for i := 0; i < n; i++ {
		for c := 0; c < channels; c++ {
			out.Data[i*channels+c] = b.Data[i]
		}
	}
	return out, nil
}

// Resample converts b to the given sample rate with libsamplerate's best
// sinc converter.
func Resample(b *Buffer, rate int) (*Buffer, error) {
	if b.SampleRate == rate {
		return b, nil
	}
	if len(b.Data) == 0 {
		return &Buffer{Channels: b.Channels, SampleRate: rate}, nil
	}
	in := make([]float32, len(b.Data))
	for i, v := range b.Data {
		in[i] = float32(v)
	}
	ratio := float64(rate) / float64(b.SampleRate)
	res, err := gosamplerate.Simple(in, ratio, b.Channels, gosamplerate.SRC_SINC_BEST_QUALITY)
	if err != nil {
		return nil, fmt.Errorf("resample %d -> %d Hz: %w", b.SampleRate, rate, err)
	}
	out := &Buffer{Data: make([]float64, len(res)), Channels: b.Channels, SampleRate: rate}
	for i, v := range res {
		out.Data[i] = float64(v)
	}
	return out, nil
}

// Match brings b to a's sample rate, and upmixes whichever side is mono when
// the layouts differ. The first return value is a, possibly upmixed.
func Match(a, b *Buffer) (*Buffer, *Buffer, error) {
	var err error
	if b.SampleRate != a.SampleRate {
		if b, err = Resample(b, a.SampleRate); err != nil {
			return nil, nil, err
		}
	}
	switch {
	case a.Channels == b.Channels:
	case a.Channels == 1:
		a, err = Upmix(a, b.Channels)
	case b.Channels == 1:
		b, err = Upmix(b, a.Channels)
	default:
		err = fmt.Errorf("%w: %d and %d channels", ErrLayoutMismatch, a.Channels, b.Channels)
	}
	if err != nil {
		return nil, nil, err
	}
	return a, b, nil
}

// fitFrames trims b to n frames, or repeats it cyclically until n frames are
// filled.
func fitFrames(b *Buffer, n int) *Buffer {
	out := NewBuffer(n, b.Channels, b.SampleRate)
	if len(b.Data) == 0 {
		return out
	}
	for i := range out.Data {
		out.Data[i] = b.Data[i%len(b.Data)]
	}
	return out
}
