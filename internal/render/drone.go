package render

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/npsboy/vathapi/internal/audio"
)

// DroneConfig describes how the lead-in is derived from the drone recording.
type DroneConfig struct {
	Source    string        // long drone recording
	Output    string        // derived lead-in, rewritten on each derivation
	Blend     string        // clip blended into short lead-ins
	Threshold time.Duration // lead-ins longer than this are plain crops
	Lead      time.Duration // how much shorter the drone is cut before blending
	Tail      time.Duration // tail stretched when a crop must grow the drone
	Fade      time.Duration
}

// droneStamp records what a persisted lead-in was derived from. It is stored
// next to the lead-in as "<Output>.json".
type droneStamp struct {
	Duration    time.Duration `json:"duration"`
	Threshold   time.Duration `json:"threshold"`
	Lead        time.Duration `json:"lead"`
	Tail        time.Duration `json:"tail"`
	Fade        time.Duration `json:"fade"`
	Source      string        `json:"source"`
	SourceSize  int64         `json:"source_size"`
	SourceMtime int64         `json:"source_mtime"`
	Blend       string        `json:"blend,omitempty"`
	BlendSize   int64         `json:"blend_size,omitempty"`
	BlendMtime  int64         `json:"blend_mtime,omitempty"`
}

// Blender derives the drone lead-in once and keeps it on disk for reuse.
type Blender struct {
	cfg DroneConfig
	mu  sync.Mutex
}

// NewBlender creates a drone blender.
func NewBlender(cfg DroneConfig) *Blender {
	return &Blender{cfg: cfg}
}

// Path returns where the lead-in is persisted.
func (b *Blender) Path() string {
	return b.cfg.Output
}

// Ensure makes sure the persisted lead-in matches duration d, deriving it
// again when the file is missing or was derived from different parameters or
// source files. It reports whether a derivation ran.
func (b *Blender) Ensure(d time.Duration) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	want, err := b.stamp(d)
	if err != nil {
		return false, err
	}
	if have, err := b.readStamp(); err == nil && have == want {
		if _, err := os.Stat(b.cfg.Output); err == nil {
			return false, nil
		}
	}

	if _, err := b.blend(d); err != nil {
		return false, err
	}
	return true, b.writeStamp(want)
}

// Blend derives the lead-in for duration d, persists it, and returns it.
func (b *Blender) Blend(d time.Duration) (*audio.Buffer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	out, err := b.blend(d)
	if err != nil {
		return nil, err
	}
	want, err := b.stamp(d)
	if err != nil {
		return nil, err
	}
	return out, b.writeStamp(want)
}

func (b *Blender) blend(d time.Duration) (*audio.Buffer, error) {
	if b.cfg.Tail <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrNoTail, b.cfg.Tail)
	}
	src, err := audio.Load(b.cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("drone source: %w", err)
	}

	var out *audio.Buffer
	if d > b.cfg.Threshold {
		log.Printf("Cropping drone to %v", d)
		out = audio.Crop(src, d, b.cfg.Tail)
	} else {
		short := d - b.cfg.Lead
		if short <= 0 {
			return nil, fmt.Errorf("drone duration %v leaves nothing before the %v blend", d, b.cfg.Lead)
		}
		log.Printf("Cropping drone to %v and blending %s", short, b.cfg.Blend)

		clip, err := audio.Load(b.cfg.Blend)
		if err != nil {
			return nil, fmt.Errorf("drone blend clip: %w", err)
		}
		mixed, err := audio.Crossfade(audio.Crop(src, short, b.cfg.Tail), clip, b.cfg.Fade)
		if err != nil {
			return nil, fmt.Errorf("drone blend: %w", err)
		}
		// Cut back to the shortened length first, then grow to d by
		// stretching the faded tail.
		out = audio.Crop(audio.Crop(mixed, short, b.cfg.Tail), d, b.cfg.Tail)
	}

	if err := audio.Save(b.cfg.Output, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (b *Blender) stamp(d time.Duration) (droneStamp, error) {
	s := droneStamp{
		Duration:  d,
		Threshold: b.cfg.Threshold,
		Lead:      b.cfg.Lead,
		Tail:      b.cfg.Tail,
		Fade:      b.cfg.Fade,
		Source:    b.cfg.Source,
	}
	fi, err := os.Stat(b.cfg.Source)
	if err != nil {
		return s, fmt.Errorf("drone source: %w", err)
	}
	s.SourceSize, s.SourceMtime = fi.Size(), fi.ModTime().UnixNano()

	if d <= b.cfg.Threshold {
		s.Blend = b.cfg.Blend
		fi, err := os.Stat(b.cfg.Blend)
		if err != nil {
			return s, fmt.Errorf("drone blend clip: %w", err)
		}
		s.BlendSize, s.BlendMtime = fi.Size(), fi.ModTime().UnixNano()
	}
	return s, nil
}

func (b *Blender) stampPath() string {
	return b.cfg.Output + ".json"
}

func (b *Blender) readStamp() (droneStamp, error) {
	var s droneStamp
	data, err := os.ReadFile(b.stampPath())
	if err != nil {
		return s, err
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("decode %s: %w", b.stampPath(), err)
	}
	return s, nil
}

func (b *Blender) writeStamp(s droneStamp) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal drone stamp: %w", err)
	}
	if err := os.WriteFile(b.stampPath(), data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", b.stampPath(), err)
	}
	return nil
}

// ErrNoTail is returned when a blender has no tail to stretch, since a short
// source could then only be padded with silence.
var ErrNoTail = errors.New("render: drone tail must be positive")

// ErrNoDrone is returned by Overlay when a lead-in is requested before it exists.
var ErrNoDrone = errors.New("render: drone lead-in not derived")

// Overlay serves selected recording names from explicit paths and defers
// every other name to Base.
type Overlay struct {
	Base  Loader
	Paths map[string]string
}

// Load implements Loader.
func (o Overlay) Load(name string) (*audio.Buffer, error) {
	if p, ok := o.Paths[name]; ok {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoDrone, p)
		}
		return audio.Load(p)
	}
	return o.Base.Load(name)
}
