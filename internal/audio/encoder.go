package audio

import (
	"fmt"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Save writes b as a 16-bit PCM WAV file, replacing any existing file.
func Save(path string, b *Buffer) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	enc := wav.NewEncoder(f, b.SampleRate, BitDepth, b.Channels, 1)
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: b.Channels,
			SampleRate:  b.SampleRate,
		},
		Data:           make([]int, len(b.Data)),
		SourceBitDepth: BitDepth,
	}
	for i, v := range b.Data {
		buf.Data[i] = int(toInt16(v))
	}

	if err := enc.Write(buf); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return fmt.Errorf("finalize %s: %w", path, err)
	}
	return f.Close()
}

// StreamPCM converts b to the stream format: 48 kHz interleaved stereo int16.
func StreamPCM(b *Buffer) ([]int16, error) {
	b, err := Resample(b, SampleRate)
	if err != nil {
		return nil, err
	}
	if b, err = Upmix(b, Channels); err != nil {
		return nil, err
	}
	out := make([]int16, len(b.Data))
	for i, v := range b.Data {
		out[i] = toInt16(v)
	}
	return out, nil
}

// toInt16 scales a float sample to int16, clipping to range.
func toInt16(v float64) int16 {
	s := v * 32767
	if s > 32767 {
		return 32767
	} else if s < -32768 {
		return -32768
	}
	return int16(s)
}
