package session

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/npsboy/vathapi/internal/audio"
)

// StreamSink queues rendered phrases on a frame pipeline for listeners,
// holding the render loop back while bufferAhead phrases are waiting.
type StreamSink struct {
	pipeline    *audio.Pipeline
	bufferAhead int
	poll        time.Duration
}

// NewStreamSink creates a sink feeding pipeline.
func NewStreamSink(pipeline *audio.Pipeline, bufferAhead int) *StreamSink {
	if bufferAhead < 1 {
		bufferAhead = 1
	}
	return &StreamSink{pipeline: pipeline, bufferAhead: bufferAhead, poll: time.Second}
}

// Play implements Sink.
func (s *StreamSink) Play(ctx context.Context, p Phrase) error {
	for s.pipeline.QueueSize() >= s.bufferAhead {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.poll):
		}
	}

	pcm, err := audio.StreamPCM(p.Buffer)
	if err != nil {
		return err
	}
	return s.pipeline.Enqueue(ctx, audio.PhraseInfo{
		ID:       PhraseID(p.Cycle),
		Sequence: p.Sequence.String(),
		Path:     p.Path,
	}, pcm)
}

// Cleanup removes the rendered file when no player is there to do it.
var Cleanup = SinkFunc(func(_ context.Context, p Phrase) error {
	if err := os.Remove(p.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
})
