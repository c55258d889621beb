package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/npsboy/vathapi/internal/audio"
	"github.com/npsboy/vathapi/internal/render"
	"github.com/npsboy/vathapi/internal/swara"
)

// Config holds the render loop parameters.
type Config struct {
	Length        int           // swaras per phrase
	Cycles        int           // render cycles, 0 runs until ctx is done
	OutputPath    string        // rendered phrase, overwritten each cycle
	DroneDuration time.Duration // lead-in length, 0 disables the lead-in check
}

// Phrase is one rendered cycle handed to the sinks.
type Phrase struct {
	Cycle    int
	Sequence swara.Sequence
	Path     string
	Buffer   *audio.Buffer
}

// Generator produces phrases and checks them against its rules.
// *swara.Generator implements it.
type Generator interface {
	Generate(length int) (swara.Sequence, error)
	Check(seq swara.Sequence) error
}

// Sink consumes a rendered phrase. A sink that plays from Path owns the file
// afterwards and removes it.
type Sink interface {
	Play(ctx context.Context, p Phrase) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, p Phrase) error

// Play implements Sink.
func (f SinkFunc) Play(ctx context.Context, p Phrase) error { return f(ctx, p) }

// Status is the state of the render loop.
type Status struct {
	Cycle     int    `json:"cycle"`
	Sequence  string `json:"sequence"`
	LastError string `json:"last_error,omitempty"`
	Running   bool   `json:"running"`
}

// Session generates, renders and hands off one phrase per cycle.
type Session struct {
	gen   Generator
	asm   *render.Assembler
	drone *render.Blender
	sinks []Sink
	cfg   Config

	mu     sync.RWMutex
	status Status
}

// New creates a session. drone may be nil when phrases have no lead-in.
func New(gen Generator, asm *render.Assembler, drone *render.Blender, cfg Config, sinks ...Sink) *Session {
	return &Session{
		gen:   gen,
		asm:   asm,
		drone: drone,
		sinks: sinks,
		cfg:   cfg,
	}
}

// Status returns the current loop state.
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// RunCycle runs one generate, render and hand-off cycle.
func (s *Session) RunCycle(ctx context.Context) (Phrase, error) {
	s.mu.Lock()
	s.status.Cycle++
	cycle := s.status.Cycle
	s.mu.Unlock()

	seq, err := s.gen.Generate(s.cfg.Length)
	if err != nil {
		return Phrase{}, s.fail(fmt.Errorf("generate: %w", err))
	}
	log.Printf("Cycle %d: %s", cycle, seq)

	s.mu.Lock()
	s.status.Sequence = seq.String()
	s.mu.Unlock()

	if err := s.gen.Check(seq); err != nil {
		log.Printf("Cycle %d: rejected phrase: %v", cycle, err)
		return Phrase{}, s.fail(fmt.Errorf("generate: %w", err))
	}

	if s.drone != nil {
		derived, err := s.drone.Ensure(s.cfg.DroneDuration)
		if err != nil {
			return Phrase{}, s.fail(fmt.Errorf("drone: %w", err))
		}
		if derived {
			log.Printf("Drone lead-in derived at %s", s.drone.Path())
		}
	}

	buf, err := s.asm.Assemble(seq)
	if err != nil {
		return Phrase{}, s.fail(err)
	}
	if err := audio.Save(s.cfg.OutputPath, buf); err != nil {
		return Phrase{}, s.fail(err)
	}

	p := Phrase{Cycle: cycle, Sequence: seq, Path: s.cfg.OutputPath, Buffer: buf}
	for _, sink := range s.sinks {
		if err := sink.Play(ctx, p); err != nil {
			return p, s.fail(fmt.Errorf("sink: %w", err))
		}
	}

	s.mu.Lock()
	s.status.LastError = ""
	s.mu.Unlock()
	return p, nil
}

// Run repeats cycles until the configured count is reached or ctx is
// cancelled. A failed cycle is logged and skipped; generator configuration
// errors stop the loop.
func (s *Session) Run(ctx context.Context) error {
	s.setRunning(true)
	defer s.setRunning(false)

	log.Printf("Session started: %d swaras per phrase", s.cfg.Length)

	for i := 0; s.cfg.Cycles == 0 || i < s.cfg.Cycles; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if _, err := s.RunCycle(ctx); err != nil {
			if errors.Is(err, swara.ErrNoProgress) || errors.Is(err, swara.ErrAnchorIsolated) ||
				errors.Is(err, swara.ErrEmptyAlphabet) || errors.Is(err, swara.ErrInvalidLength) {
				return err
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("Cycle failed: %v", err)
		}
	}
	return nil
}

func (s *Session) fail(err error) error {
	s.mu.Lock()
	s.status.LastError = err.Error()
	s.mu.Unlock()
	return err
}

func (s *Session) setRunning(v bool) {
	s.mu.Lock()
	s.status.Running = v
	s.mu.Unlock()
}

// PhraseID names a cycle for listeners.
func PhraseID(cycle int) string {
	return strconv.Itoa(cycle)
}
