package render

import (
	"errors"
	"fmt"
	"time"

	"github.com/npsboy/vathapi/internal/audio"
	"github.com/npsboy/vathapi/internal/swara"
)

var ErrEmptySequence = errors.New("render: empty sequence")

// Vibrato is the amplitude shimmer applied to a finished phrase.
type Vibrato struct {
	Freq  float64 // Hz
	Depth float64
}

// Assembler renders a whole phrase into one buffer.
type Assembler struct {
	renderer *Renderer
	fade     time.Duration
	vibrato  Vibrato
	leadIn   []string
}

// NewAssembler creates a phrase assembler. Recordings in leadIn are played
// before every phrase.
func NewAssembler(r *Renderer, fade time.Duration, v Vibrato, leadIn ...string) *Assembler {
	return &Assembler{
		renderer: r,
		fade:     fade,
		vibrato:  v,
		leadIn:   leadIn,
	}
}

// Assemble renders the lead-in followed by every swara of seq, crossfading
// each tone into the running buffer, then applies vibrato to the result.
func (a *Assembler) Assemble(seq swara.Sequence) (*audio.Buffer, error) {
	names := append(append([]string(nil), a.leadIn...), seq.Names()...)
	return a.AssembleNames(names)
}

// AssembleNames is Assemble for raw recording names. The sample rate of the
// first recording is used for the whole phrase.
func (a *Assembler) AssembleNames(names []string) (*audio.Buffer, error) {
	if len(names) == 0 {
		return nil, ErrEmptySequence
	}

	out, err := a.renderer.Render(names[0])
	if err != nil {
		return nil, err
	}
	for _, name := range names[1:] {
		next, err := a.renderer.Render(name)
		if err != nil {
			return nil, err
		}
		if out, err = audio.Crossfade(out, next, a.fade); err != nil {
			return nil, fmt.Errorf("crossfade %q: %w", name, err)
		}
	}

	return audio.ApplyVibrato(out, a.vibrato.Freq, a.vibrato.Depth), nil
}
