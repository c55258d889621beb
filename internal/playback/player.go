package playback

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/hajimehoshi/oto/v2"

	"github.com/npsboy/vathapi/internal/audio"
	"github.com/npsboy/vathapi/internal/session"
)

// Player plays rendered phrase files on the default sound device.
type Player struct {
	ctx   *oto.Context
	ready chan struct{}
}

// New opens the sound device in the stream format.
func New() (*Player, error) {
	ctx, ready, err := oto.NewContext(audio.SampleRate, audio.Channels, oto.FormatSignedInt16LE)
	if err != nil {
		return nil, fmt.Errorf("open sound device: %w", err)
	}
	return &Player{ctx: ctx, ready: ready}, nil
}

// Play implements session.Sink: it plays p.Path to completion and then
// deletes the file.
func (pl *Player) Play(ctx context.Context, p session.Phrase) error {
	if err := pl.PlayFile(ctx, p.Path); err != nil {
		return err
	}
	if err := os.Remove(p.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// PlayFile blocks until the file has played or ctx is done.
func (pl *Player) PlayFile(ctx context.Context, path string) error {
	select {
	case <-pl.ready:
	case <-ctx.Done():
		return ctx.Err()
	}

	b, err := audio.Load(path)
	if err != nil {
		return err
	}
	pcm, err := audio.StreamPCM(b)
	if err != nil {
		return err
	}

	player := pl.ctx.NewPlayer(bytes.NewReader(audio.SamplesToBytes(pcm)))
	defer player.Close()
	player.Play()
	log.Printf("Playing %s (%v)", path, b.Duration())

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for player.IsPlaying() {
		select {
		case <-ctx.Done():
			player.Pause()
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return player.Err()
}
