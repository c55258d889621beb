package render

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/npsboy/vathapi/internal/audio"
)

// Loader resolves a recording name to its decoded audio.
type Loader interface {
	Load(name string) (*audio.Buffer, error)
}

// DirLoader loads "<Dir>/<name><Ext>" from disk.
type DirLoader struct {
	Dir string
	Ext string
}

// Path returns the file a recording name maps to.
func (l DirLoader) Path(name string) string {
	return filepath.Join(l.Dir, name+l.Ext)
}

// Load decodes the recording for name.
func (l DirLoader) Load(name string) (*audio.Buffer, error) {
	return audio.Load(l.Path(name))
}

// Renderer turns a recording name into a clip of fixed duration.
type Renderer struct {
	loader Loader
	target time.Duration
	native map[string]bool // recordings returned at their own length
}

// NewRenderer creates a tone renderer stretching every recording to target,
// except the names listed in native, which are returned unmodified.
func NewRenderer(loader Loader, target time.Duration, native ...string) *Renderer {
	r := &Renderer{
		loader: loader,
		target: target,
		native: make(map[string]bool, len(native)),
	}
	for _, n := range native {
		r.native[n] = true
	}
	return r
}

// Render loads name and time-stretches it, keeping its pitch, so that it
// lasts exactly the target duration.
func (r *Renderer) Render(name string) (*audio.Buffer, error) {
	b, err := r.loader.Load(name)
	if err != nil {
		return nil, fmt.Errorf("render %q: %w", name, err)
	}
	if r.native[name] {
		return b, nil
	}
	return audio.Stretch(b, audio.FramesFor(r.target, b.SampleRate)), nil
}
