package audio

import "time"

// Smoothstep returns the smoothstep interpolation for t in [0,1].
// Formula: 3t^2 - 2t^3.
func Smoothstep(t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	return t * t * (3 - 2*t)
}

// CrossfadeFrames blends an outgoing stream frame with an incoming one at the
// given progress (0.0 = all outgoing, 1.0 = all incoming) along a smoothstep
// curve. Both frames must have the same length.
func CrossfadeFrames(outgoing, incoming []int16, progress float64) []int16 {
	gain := Smoothstep(progress)
	result := make([]int16, len(outgoing))

	for i := range outgoing {
		mixed := float64(outgoing[i])*(1-gain) + float64(incoming[i])*gain

		// Clip to int16 range
		if mixed > 32767 {
			mixed = 32767
		} else if mixed < -32768 {
			mixed = -32768
		}
		result[i] = int16(mixed)
	}

	return result
}

// Crossfade joins a and b with a linear fade-out over the last fade of a and a
// linear fade-in over the first fade of b. The faded regions abut rather than
// overlap, so the result holds every frame of both inputs. b is converted to
// a's sample rate and a mono side is upmixed when layouts differ. The fade is
// clamped to the shorter buffer. Inputs are not modified.
func Crossfade(a, b *Buffer, fade time.Duration) (*Buffer, error) {
	a, b, err := Match(a, b)
	if err != nil {
		return nil, err
	}

	n := FramesFor(fade, a.SampleRate)
	n = min(n, a.Frames(), b.Frames())

	out, err := Concat(a, b)
	if err != nil {
		return nil, err
	}

	ch := out.Channels
	tail := a.Frames() - n
	head := a.Frames()
	for i := 0; i < n; i++ {
		gOut := ramp(1, 0, i, n)
		gIn := ramp(0, 1, i, n)
		for c := 0; c < ch; c++ {
			out.Data[(tail+i)*ch+c] *= gOut
			out.Data[(head+i)*ch+c] *= gIn
		}
	}
	return out, nil
}

// ramp returns the i-th of n evenly spaced points from start to stop inclusive.
func ramp(start, stop float64, i, n int) float64 {
	if n == 1 {
		return start
	}
	return start + (stop-start)*float64(i)/float64(n-1)
}
