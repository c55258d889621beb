package audio

import (
	"context"
	"log"
	"sync"
	"time"
)

type queuedPhrase struct {
	info    PhraseInfo
	samples []int16
}

// Pipeline takes rendered phrases in stream format, blends consecutive
// phrases, and outputs PCM frames at real-time rate.
type Pipeline struct {
	phraseCh chan *queuedPhrase
	frameCh  chan []int16
	skipCh   chan struct{}

	mu             sync.RWMutex
	crossfadeDur   time.Duration
	currentPhrase  PhraseInfo
	phrasePosition time.Duration
	phraseDuration time.Duration
}

// NewPipeline creates a frame pipeline that blends phrases over crossfadeDuration.
func NewPipeline(crossfadeDuration time.Duration) *Pipeline {
	return &Pipeline{
		phraseCh:     make(chan *queuedPhrase, 8),
		frameCh:      make(chan []int16, 100),
		skipCh:       make(chan struct{}, 1),
		crossfadeDur: crossfadeDuration,
	}
}

// Frames returns the channel of outgoing PCM frames (20ms each).
func (p *Pipeline) Frames() <-chan []int16 {
	return p.frameCh
}

// Enqueue adds a phrase, already converted with StreamPCM, to the playback
// queue. It blocks while the queue is full or until ctx is done.
func (p *Pipeline) Enqueue(ctx context.Context, info PhraseInfo, samples []int16) error {
	select {
	case p.phraseCh <- &queuedPhrase{info: info, samples: samples}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// QueueSize returns the number of phrases waiting in the queue.
func (p *Pipeline) QueueSize() int {
	return len(p.phraseCh)
}

// Skip interrupts the current phrase.
func (p *Pipeline) Skip() {
	select {
	case p.skipCh <- struct{}{}:
	default:
	}
}

// SetCrossfade changes the blend length used for following phrases.
func (p *Pipeline) SetCrossfade(d time.Duration) {
	p.mu.Lock()
	p.crossfadeDur = d
	p.mu.Unlock()
}

// CrossfadeDuration returns the current blend length.
func (p *Pipeline) CrossfadeDuration() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.crossfadeDur
}

// Status returns current playback info.
func (p *Pipeline) Status() (phrase PhraseInfo, position, duration time.Duration) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.currentPhrase, p.phrasePosition, p.phraseDuration
}

// Run starts the pipeline. Blocks until ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context) {
	defer close(p.frameCh)

	ticker := time.NewTicker(FrameDuration)
	defer ticker.Stop()

	var pending *queuedPhrase
	var startFrame int

	for {
		var qp *queuedPhrase

		if pending != nil {
			qp = pending
			pending = nil
		} else {
			select {
			case <-ctx.Done():
				return
			case q := <-p.phraseCh:
				qp = q
				startFrame = 0
			}
		}

		next, nextStart := p.playPhrase(ctx, ticker, qp, startFrame)
		if next != nil {
			pending = next
			startFrame = nextStart
		} else {
			startFrame = 0
		}
	}
}

// playPhrase plays a phrase with a blend into the next one if it is already
// queued. Returns the next phrase and its starting frame if a blend occurred.
func (p *Pipeline) playPhrase(ctx context.Context, ticker *time.Ticker, qp *queuedPhrase, startFrame int) (*queuedPhrase, int) {
	samples := qp.samples
	totalFrames := len(samples) / FrameSamples
	cfFrames := FramesFor(p.CrossfadeDuration(), SampleRate) / FrameSize
	if cfFrames > totalFrames/2 {
		cfFrames = totalFrames / 2 // don't blend more than half the phrase
	}
	cfStart := totalFrames - cfFrames

	p.setPhrase(qp.info, totalFrames)
	log.Printf("Now playing phrase %s: %s (frames: %d)", qp.info.ID, qp.info.Sequence, totalFrames)

	for i := startFrame; i < cfStart; i++ {
		if !p.sendFrame(ctx, ticker, samples[i*FrameSamples:(i+1)*FrameSamples]) {
			return nil, 0
		}
		p.updatePosition(i)
	}

	var next *queuedPhrase
	select {
	case q := <-p.phraseCh:
		next = q
	default:
	}

	if next != nil {
		for i := 0; i < cfFrames; i++ {
			outPos := (cfStart + i) * FrameSamples
			inPos := i * FrameSamples

			if outPos+FrameSamples > len(samples) || inPos+FrameSamples > len(next.samples) {
				break
			}

			progress := float64(i) / float64(cfFrames)
			frame := CrossfadeFrames(
				samples[outPos:outPos+FrameSamples],
				next.samples[inPos:inPos+FrameSamples],
				progress,
			)

			if !p.sendFrame(ctx, ticker, frame) {
				return nil, 0
			}
			p.updatePosition(cfStart + i)
		}

		log.Printf("Blended into phrase %s", next.info.ID)
		return next, cfFrames
	}

	for i := cfStart; i < totalFrames; i++ {
		if !p.sendFrame(ctx, ticker, samples[i*FrameSamples:(i+1)*FrameSamples]) {
			return nil, 0
		}
		p.updatePosition(i)
	}

	return nil, 0
}

// sendFrame waits for the ticker then sends a frame. Returns false on skip or cancel.
func (p *Pipeline) sendFrame(ctx context.Context, ticker *time.Ticker, frame []int16) bool {
	select {
	case <-ctx.Done():
		return false
	case <-p.skipCh:
		log.Println("Phrase skipped")
		return false
	case <-ticker.C:
	}

	select {
	case p.frameCh <- frame:
		return true
	case <-ctx.Done():
		return false
	}
}

func (p *Pipeline) setPhrase(info PhraseInfo, totalFrames int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.currentPhrase = info
	p.phrasePosition = 0
	p.phraseDuration = time.Duration(totalFrames) * FrameDuration
}

func (p *Pipeline) updatePosition(frameIdx int) {
	p.mu.Lock()
	p.phrasePosition = time.Duration(frameIdx) * FrameDuration
	p.mu.Unlock()
}
