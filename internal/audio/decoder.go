package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
)

// Load decodes a WAV or MP3 file into a float buffer at the file's native
// sample rate and channel layout.
func Load(path string) (*Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var b *Buffer
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".wav", ".wave":
		b, err = decodeWAV(f)
	case ".mp3":
		b, err = decodeMP3(f)
	default:
		err = fmt.Errorf("unsupported format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if b.Frames() == 0 {
		return nil, fmt.Errorf("decode %s: %w", path, ErrEmpty)
	}
	return b, nil
}

func decodeWAV(r io.ReadSeeker) (*Buffer, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("invalid WAV file")
	}
	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, err
	}
	depth := int(dec.BitDepth)
	if depth == 0 {
		return nil, fmt.Errorf("unknown bit depth")
	}
	channels := pcm.Format.NumChannels
	if channels <= 0 {
		return nil, fmt.Errorf("invalid channel count %d", channels)
	}

	b := &Buffer{
		Data:       make([]float64, len(pcm.Data)-len(pcm.Data)%channels),
		Channels:   channels,
		SampleRate: pcm.Format.SampleRate,
	}
	scale := math.Pow(2, float64(depth-1))
	for i := range b.Data {
		v := pcm.Data[i]
		if depth == 8 {
			// 8-bit WAV is unsigned.
			v -= 128
		}
		b.Data[i] = float64(v) / scale
	}
	return b, nil
}

func decodeMP3(r io.Reader) (*Buffer, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, err
	}
	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, err
	}
	// go-mp3 always yields interleaved stereo int16.
	raw = raw[:len(raw)-len(raw)%4]
	b := &Buffer{
		Data:       make([]float64, len(raw)/2),
		Channels:   2,
		SampleRate: dec.SampleRate(),
	}
	for i := range b.Data {
		b.Data[i] = float64(int16(binary.LittleEndian.Uint16(raw[i*2:]))) / 32768
	}
	return b, nil
}

// SamplesToBytes converts int16 samples to little-endian bytes.
func SamplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}
