package audio

import (
	"errors"
	"time"
)

// Stream format shared by the frame pipeline, playback and listeners.
const (
	SampleRate    = 48000
	Channels      = 2
	BitDepth      = 16
	FrameDuration = 20 * time.Millisecond
	FrameSize     = 960                  // samples per channel per 20ms frame
	FrameSamples  = FrameSize * Channels // total interleaved samples per frame
	FrameBytes    = FrameSamples * 2     // bytes per frame (int16 = 2 bytes)
)

var (
	ErrEmpty          = errors.New("audio: empty buffer")
	ErrLayoutMismatch = errors.New("audio: channel layouts cannot be matched without downmixing")
)

// Buffer holds interleaved float samples in [-1, 1].
type Buffer struct {
	Data       []float64
	Channels   int
	SampleRate int
}

// NewBuffer allocates a silent buffer of the given number of frames.
func NewBuffer(frames, channels, sampleRate int) *Buffer {
	return &Buffer{
		Data:       make([]float64, frames*channels),
		Channels:   channels,
		SampleRate: sampleRate,
	}
}

// FromChannels interleaves per-channel sample slices of equal length.
func FromChannels(chans [][]float64, sampleRate int) *Buffer {
	if len(chans) == 0 {
		return &Buffer{Channels: 1, SampleRate: sampleRate}
	}
	n := len(chans[0])
	b := NewBuffer(n, len(chans), sampleRate)
	for c, ch := range chans {
		for i := 0; i < n; i++ {
			b.Data[i*b.Channels+c] = ch[i]
		}
	}
	return b
}

// Frames returns the number of sample frames.
func (b *Buffer) Frames() int {
	if b.Channels == 0 {
		return 0
	}
	return len(b.Data) / b.Channels
}

// Duration returns the playing time of the buffer.
func (b *Buffer) Duration() time.Duration {
	if b.SampleRate == 0 {
		return 0
	}
	return time.Duration(int64(b.Frames()) * int64(time.Second) / int64(b.SampleRate))
}

// Clone returns a deep copy.
func (b *Buffer) Clone() *Buffer {
	c := &Buffer{Channels: b.Channels, SampleRate: b.SampleRate}
	c.Data = append([]float64(nil), b.Data...)
	return c
}

// Slice copies frames [start, end).
func (b *Buffer) Slice(start, end int) *Buffer {
	c := &Buffer{Channels: b.Channels, SampleRate: b.SampleRate}
	c.Data = append([]float64(nil), b.Data[start*b.Channels:end*b.Channels]...)
	return c
}

// Channel extracts one channel as a contiguous slice.
func (b *Buffer) Channel(c int) []float64 {
	n := b.Frames()
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = b.Data[i*b.Channels+c]
	}
	return out
}

// FramesFor converts a duration to a whole number of frames, truncating.
func FramesFor(d time.Duration, sampleRate int) int {
	if d <= 0 {
		return 0
	}
	return int(int64(d) * int64(sampleRate) / int64(time.Second))
}

// Concat appends b to a. Both must already share rate and layout.
func Concat(a, b *Buffer) (*Buffer, error) {
	if a.Channels != b.Channels || a.SampleRate != b.SampleRate {
		return nil, ErrLayoutMismatch
	}
	out := &Buffer{Channels: a.Channels, SampleRate: a.SampleRate}
	out.Data = make([]float64, 0, len(a.Data)+len(b.Data))
	out.Data = append(out.Data, a.Data...)
	out.Data = append(out.Data, b.Data...)
	return out, nil
}

// PhraseInfo identifies a rendered phrase queued for the stream.
type PhraseInfo struct {
	ID       string
	Sequence string // space separated swaras
	Path     string
}
