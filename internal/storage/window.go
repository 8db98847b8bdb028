package storage

import "fmt"

// Window is a run of stack+1 consecutive frames stored frame-major.
// Frames 0..stack-1 form the state and frames 1..stack the next state.
type Window[O Element] struct {
	frames    []O
	frameSize int
	stack     int
}

func newWindow[O Element](stack, frameSize int) Window[O] {
	return Window[O]{
		frames:    make([]O, (stack+1)*frameSize),
		frameSize: frameSize,
		stack:     stack,
	}
}

// Frame returns frame j of the window, oldest first
func (w Window[O]) Frame(j int) []O {
	return w.frames[j*w.frameSize : (j+1)*w.frameSize]
}

// State returns the stack frames ending at the current frame
func (w Window[O]) State() []O {
	return w.frames[: w.stack*w.frameSize : w.stack*w.frameSize]
}

// Next returns the stack frames ending at the successor frame. It shares
// all but its last frame with State.
func (w Window[O]) Next() []O {
	return w.frames[w.frameSize:]
}

// gather copies the frames at logical i-(stack-1) .. i+1 into a window
// together with their terminal flags. No masking is applied.
func (b *RingBuffer[O, A]) gather(i, length int) (Window[O], []bool) {
	w := newWindow[O](b.stack, b.obsSize)
	terms := make([]bool, b.stack+1)
	for j := 0; j <= b.stack; j++ {
		slot := physical(b.head, length, b.total, i-(b.stack-1)+j)
		copy(w.Frame(j), b.observation(slot))
		terms[j] = b.terminals[slot]
	}
	return w, terms
}

// reconstruct builds the masked window for logical index i.
//
// Frames at or before the newest terminal among the lookback frames
// belong to an earlier episode and are zeroed. When the current frame is
// terminal, or is head and has no successor yet, the next frame is zeroed.
func (b *RingBuffer[O, A]) reconstruct(i, length int) Window[O] {
	w, terms := b.gather(i, length)
	truncateLookback(w.frames, terms[:b.stack-1], b.obsSize)
	if terms[b.stack-1] || i == length-1 {
		clear(w.Frame(b.stack))
	}
	return w
}

// truncateLookback zeroes frames 0..t where t is the last terminal frame
// in terms.
func truncateLookback[O Element](frames []O, terms []bool, frameSize int) {
	for t := len(terms) - 1; t >= 0; t-- {
		if terms[t] {
			clear(frames[:(t+1)*frameSize])
			return
		}
	}
}

// CurrentState returns the state an actor should act on after observing
// observation, without appending it: the newest stack-1 recorded frames
// followed by observation. Recorded frames at or before a terminal
// transition are zeroed, as are frames that were never written.
//
// On an empty buffer every lookback frame is zero and observation is
// still placed in the newest frame, so the state is all-zero only when
// observation is.
func (b *RingBuffer[O, A]) CurrentState(observation []O) ([]O, error) {
	if len(observation) != b.obsSize {
		return nil, fmt.Errorf("%w: observation has %d elements, want %d", ErrConfig, len(observation), b.obsSize)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	length := b.length()
	if length == 0 {
		state := make([]O, b.stack*b.obsSize)
		copy(state[(b.stack-1)*b.obsSize:], observation)
		return state, nil
	}

	// Head's window advanced by one frame, with observation as the
	// successor of head.
	w, terms := b.gather(length-1, length)
	state := w.Next()
	copy(w.Frame(b.stack), observation)
	truncateLookback(state, terms[1:b.stack], b.obsSize)
	return state, nil
}
