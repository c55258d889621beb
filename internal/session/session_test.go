package session

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/npsboy/vathapi/internal/audio"
	"github.com/npsboy/vathapi/internal/render"
	"github.com/npsboy/vathapi/internal/swara"
)

const testRate = 8000

type memLoader map[string]*audio.Buffer

func (m memLoader) Load(name string) (*audio.Buffer, error) {
	b, ok := m[name]
	if !ok {
		return nil, os.ErrNotExist
	}
	return b.Clone(), nil
}

func tone(freq float64, d time.Duration, rate int) *audio.Buffer {
	b := audio.NewBuffer(audio.FramesFor(d, rate), 1, rate)
	for i := range b.Data {
		b.Data[i] = 0.3 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate))
	}
	return b
}

func clips() memLoader {
	m := memLoader{}
	for i, s := range swara.Alphabet {
		m[string(s)] = tone(262+40*float64(i), 350*time.Millisecond, testRate)
	}
	return m
}

type recorder struct {
	mu      sync.Mutex
	phrases []Phrase
	err     error
}

func (r *recorder) Play(_ context.Context, p Phrase) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.phrases = append(r.phrases, p)
	return r.err
}

func newSession(t *testing.T, loader render.Loader, drone *render.Blender, cfg Config, sinks ...Sink) *Session {
	t.Helper()
	gen := swara.NewGenerator(swara.Alphabet, swara.NewRules(swara.InvalidPairs), swara.Anchor, 0, rand.New(rand.NewPCG(1, 2)))
	r := render.NewRenderer(loader, 300*time.Millisecond)
	asm := render.NewAssembler(r, 100*time.Millisecond, render.Vibrato{Freq: 5, Depth: 0.002})
	if cfg.OutputPath == "" {
		cfg.OutputPath = filepath.Join(t.TempDir(), "final_output.wav")
	}
	return New(gen, asm, drone, cfg, sinks...)
}

func TestRunCycle(t *testing.T) {
	rec := &recorder{}
	s := newSession(t, clips(), nil, Config{Length: 20}, rec)

	p, err := s.RunCycle(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Sequence) != 20 {
		t.Errorf("sequence length = %d, want 20", len(p.Sequence))
	}
	if err := swara.Validate(p.Sequence, swara.NewRules(swara.InvalidPairs), swara.Anchor); err != nil {
		t.Error(err)
	}
	if want := 20 * audio.FramesFor(300*time.Millisecond, testRate); p.Buffer.Frames() != want {
		t.Errorf("phrase frames = %d, want %d", p.Buffer.Frames(), want)
	}
	saved, err := audio.Load(p.Path)
	if err != nil {
		t.Fatalf("rendered file: %v", err)
	}
	if saved.Frames() != p.Buffer.Frames() {
		t.Errorf("saved %d frames, rendered %d", saved.Frames(), p.Buffer.Frames())
	}
	if len(rec.phrases) != 1 {
		t.Fatalf("sink got %d phrases, want 1", len(rec.phrases))
	}

	st := s.Status()
	if st.Cycle != 1 || st.Sequence != p.Sequence.String() || st.LastError != "" {
		t.Errorf("Status = %+v", st)
	}
}

func TestRunStopsAfterCycles(t *testing.T) {
	rec := &recorder{}
	s := newSession(t, clips(), nil, Config{Length: 4, Cycles: 3}, rec, Cleanup)
	if err := s.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(rec.phrases) != 3 {
		t.Errorf("sink got %d phrases, want 3", len(rec.phrases))
	}
	if _, err := os.Stat(rec.phrases[0].Path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("rendered file should be removed by Cleanup, stat err = %v", err)
	}
	if s.Status().Running {
		t.Error("Status().Running after Run returned")
	}
}

func TestRunSkipsFailedCycles(t *testing.T) {
	rec := &recorder{}
	// No "p" clip: any phrase using Pa fails to render.
	loader := clips()
	delete(loader, string(swara.Pa))
	s := newSession(t, loader, nil, Config{Length: 20, Cycles: 5}, rec)

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run returned %v, want render failures skipped", err)
	}
	if s.Status().Cycle != 5 {
		t.Errorf("Cycle = %d, want 5", s.Status().Cycle)
	}
}

func TestRunStopsOnGeneratorError(t *testing.T) {
	gen := swara.NewGenerator([]swara.Symbol{swara.Ri}, swara.NewRules(nil), swara.Ri, 10, nil)
	asm := render.NewAssembler(render.NewRenderer(clips(), 300*time.Millisecond), 100*time.Millisecond, render.Vibrato{})
	s := New(gen, asm, nil, Config{Length: 5, OutputPath: filepath.Join(t.TempDir(), "out.wav")})

	err := s.Run(context.Background())
	if !errors.Is(err, swara.ErrNoProgress) {
		t.Fatalf("Run error = %v, want ErrNoProgress", err)
	}
	if s.Status().LastError == "" {
		t.Error("LastError not recorded")
	}
}

// fixedGenerator always offers the same phrase, checked by real rules.
type fixedGenerator struct {
	seq swara.Sequence
}

func (g fixedGenerator) Generate(int) (swara.Sequence, error) { return g.seq, nil }

func (g fixedGenerator) Check(seq swara.Sequence) error {
	return swara.Validate(seq, swara.NewRules(swara.InvalidPairs), swara.Anchor)
}

func TestRunCycleRejectsInvalidPhrase(t *testing.T) {
	rec := &recorder{}
	out := filepath.Join(t.TempDir(), "out.wav")
	gen := fixedGenerator{seq: swara.Sequence{swara.Ga, swara.Sa, swara.Ri}}
	asm := render.NewAssembler(render.NewRenderer(clips(), 300*time.Millisecond), 100*time.Millisecond, render.Vibrato{})
	s := New(gen, asm, nil, Config{Length: 3, Cycles: 3, OutputPath: out}, rec)

	if _, err := s.RunCycle(context.Background()); !errors.Is(err, swara.ErrInvalidPhrase) {
		t.Fatalf("RunCycle error = %v, want ErrInvalidPhrase", err)
	}
	if _, err := os.Stat(out); !errors.Is(err, os.ErrNotExist) {
		t.Error("rejected phrase was rendered")
	}

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run returned %v, want rejected phrases skipped", err)
	}
	if len(rec.phrases) != 0 {
		t.Errorf("sinks got %d phrases, want 0", len(rec.phrases))
	}
	if st := s.Status(); st.Cycle != 4 || st.Sequence != "g s r" || st.LastError == "" {
		t.Errorf("Status = %+v, want cycle 4 with the rejected phrase and its error", st)
	}
}

func TestRunHonoursCancel(t *testing.T) {
	s := newSession(t, clips(), nil, Config{Length: 4})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Run error = %v, want context.Canceled", err)
	}
}

func TestRunCycleWithDrone(t *testing.T) {
	dir := t.TempDir()
	cfg := render.DroneConfig{
		Source:    filepath.Join(dir, "vathapi.wav"),
		Output:    filepath.Join(dir, "vathapi_trimmed.wav"),
		Blend:     filepath.Join(dir, "g.wav"),
		Threshold: 3 * time.Second,
		Lead:      500 * time.Millisecond,
		Tail:      300 * time.Millisecond,
		Fade:      100 * time.Millisecond,
	}
	if err := audio.Save(cfg.Source, tone(131, 4*time.Second, testRate)); err != nil {
		t.Fatal(err)
	}
	loader := render.Overlay{Base: clips(), Paths: map[string]string{"vathapi_trimmed": cfg.Output}}
	r := render.NewRenderer(loader, 300*time.Millisecond, "vathapi_trimmed")
	asm := render.NewAssembler(r, 100*time.Millisecond, render.Vibrato{}, "vathapi_trimmed")
	gen := swara.NewGenerator(swara.Alphabet, swara.NewRules(swara.InvalidPairs), swara.Anchor, 0, rand.New(rand.NewPCG(3, 4)))
	s := New(gen, asm, render.NewBlender(cfg), Config{
		Length:        6,
		OutputPath:    filepath.Join(dir, "final_output.wav"),
		DroneDuration: 3700 * time.Millisecond,
	})

	p, err := s.RunCycle(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := audio.FramesFor(3700*time.Millisecond, testRate) + 6*audio.FramesFor(300*time.Millisecond, testRate)
	if p.Buffer.Frames() != want {
		t.Errorf("phrase frames = %d, want %d", p.Buffer.Frames(), want)
	}
}

func TestSinkErrorRecorded(t *testing.T) {
	rec := &recorder{err: errors.New("device busy")}
	s := newSession(t, clips(), nil, Config{Length: 3}, rec)
	if _, err := s.RunCycle(context.Background()); err == nil {
		t.Fatal("RunCycle should report the sink error")
	}
	if s.Status().LastError == "" {
		t.Error("LastError not recorded")
	}
}

func TestStreamSinkQueues(t *testing.T) {
	pipeline := audio.NewPipeline(0)
	sink := NewStreamSink(pipeline, 2)
	sink.poll = 10 * time.Millisecond

	p := Phrase{Cycle: 1, Sequence: swara.Sequence{swara.Ri}, Buffer: tone(440, 100*time.Millisecond, audio.SampleRate)}
	for i := 0; i < 2; i++ {
		if err := sink.Play(context.Background(), p); err != nil {
			t.Fatal(err)
		}
	}
	if pipeline.QueueSize() != 2 {
		t.Fatalf("QueueSize = %d, want 2", pipeline.QueueSize())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := sink.Play(ctx, p); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Play on a full buffer error = %v, want DeadlineExceeded", err)
	}
}
