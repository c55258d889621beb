package audio

import "time"

// Crop returns exactly d worth of frames from b. Longer buffers are cut. A
// shorter buffer keeps its body, and its final tail is detached and stretched
// to fill the gap, so the result never ends in padded silence. A tail of zero
// or less stretches the whole buffer.
func Crop(b *Buffer, d, tail time.Duration) *Buffer {
	target := FramesFor(d, b.SampleRate)
	if b.Frames() >= target {
		return b.Slice(0, target)
	}

	tailFrames := min(FramesFor(tail, b.SampleRate), b.Frames())
	if tailFrames == 0 {
		tailFrames = b.Frames()
	}
	split := b.Frames() - tailFrames
	body := b.Slice(0, split)
	last := b.Slice(split, b.Frames())

	gap := target - split
	if tailFrames < gap {
		last = Stretch(last, gap)
	}
	last = fitFrames(last, gap)

	out, _ := Concat(body, last)
	return out
}
