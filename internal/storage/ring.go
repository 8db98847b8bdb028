package storage

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/rs/zerolog"
)

// Config holds the fixed parameters of a RingBuffer
type Config struct {
	ObservationShape Shape
	ActionShape      Shape // empty for scalar actions
	StackSize        int   // frames per state
	Capacity         int   // number of valid transitions retained
}

// DefaultConfig returns a config for unstacked states and scalar actions
func DefaultConfig(observationShape Shape, capacity int) Config {
	return Config{
		ObservationShape: observationShape,
		ActionShape:      Shape{},
		StackSize:        1,
		Capacity:         capacity,
	}
}

// Validate checks if the configuration is valid
func (c Config) Validate() error {
	if c.Capacity <= 0 {
		return fmt.Errorf("%w: capacity must be positive, got %d", ErrConfig, c.Capacity)
	}
	if c.StackSize <= 0 {
		return fmt.Errorf("%w: stack size must be positive, got %d", ErrConfig, c.StackSize)
	}
	if err := c.ObservationShape.validate("observation"); err != nil {
		return err
	}
	return c.ActionShape.validate("action")
}

// RingBuffer is a fixed-capacity circular store of transitions.
//
// The backing arrays hold Capacity+StackSize slots. The slack behind the
// oldest valid transition keeps its lookback frames available, so a full
// window can be built at every sampleable index.
type RingBuffer[O, A Element] struct {
	mu sync.RWMutex

	obsShape Shape
	actShape Shape
	obsSize  int
	actSize  int
	stack    int
	capacity int
	total    int

	observations []O
	actions      []A
	rewards      []float64
	terminals    []bool

	head    int // slot of the most recent append, -1 when empty
	written int // slots ever written, saturates at total

	appends  uint64
	episodes uint64
	wraps    uint64

	rngMu sync.Mutex
	rng   *rand.Rand

	logger zerolog.Logger
}

// NewRingBuffer creates a preallocated, zero-filled ring buffer
func NewRingBuffer[O, A Element](cfg Config, opts ...Option) (*RingBuffer[O, A], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := buildOptions(opts)

	b := &RingBuffer[O, A]{
		obsShape: cfg.ObservationShape.Clone(),
		actShape: cfg.ActionShape.Clone(),
		obsSize:  cfg.ObservationShape.Size(),
		actSize:  cfg.ActionShape.Size(),
		stack:    cfg.StackSize,
		capacity: cfg.Capacity,
		total:    cfg.Capacity + cfg.StackSize,
		head:     -1,
		rng:      o.rng,
		logger:   o.logger.With().Str("component", "ring_buffer").Logger(),
	}
	b.observations = make([]O, b.total*b.obsSize)
	b.actions = make([]A, b.total*b.actSize)
	b.rewards = make([]float64, b.total)
	b.terminals = make([]bool, b.total)

	return b, nil
}

// Append writes a transition over the oldest slot and returns the slot
// written, which CorrectTerminal accepts later.
func (b *RingBuffer[O, A]) Append(observation []O, action []A, reward float64, terminal bool) (int, error) {
	if len(observation) != b.obsSize {
		return -1, fmt.Errorf("%w: observation has %d elements, want %d", ErrConfig, len(observation), b.obsSize)
	}
	if len(action) != b.actSize {
		return -1, fmt.Errorf("%w: action has %d elements, want %d", ErrConfig, len(action), b.actSize)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.head = (b.head + 1) % b.total
	if b.head == 0 && b.written > 0 {
		b.wraps++
		b.logger.Debug().
			Uint64("wraps", b.wraps).
			Uint64("appends", b.appends).
			Msg("Ring buffer wrapped")
	}

	copy(b.observation(b.head), observation)
	copy(b.action(b.head), action)
	b.rewards[b.head] = reward
	b.terminals[b.head] = terminal

	if b.written < b.total {
		b.written++
	}
	b.appends++
	if terminal {
		b.episodes++
	}

	return b.head, nil
}

// CorrectTerminal overwrites the terminal flag of a slot returned by
// Append. Observation, action and reward are left untouched.
func (b *RingBuffer[O, A]) CorrectTerminal(slot int, terminal bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.written == 0 {
		return fmt.Errorf("%w: buffer is empty", ErrIndex)
	}
	if slot < 0 || slot >= b.written {
		return fmt.Errorf("%w: slot %d was never written", ErrIndex, slot)
	}

	if b.terminals[slot] == terminal {
		return nil
	}
	b.terminals[slot] = terminal
	if terminal {
		b.episodes++
	} else if b.episodes > 0 {
		b.episodes--
	}
	return nil
}

// Len returns the number of valid transitions, bounded by capacity
func (b *RingBuffer[O, A]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.length()
}

// Cap returns the configured capacity
func (b *RingBuffer[O, A]) Cap() int { return b.capacity }

// Total returns the number of backing slots, capacity plus stack size
func (b *RingBuffer[O, A]) Total() int { return b.total }

// StackSize returns the number of frames per state
func (b *RingBuffer[O, A]) StackSize() int { return b.stack }

// ObservationShape returns the declared observation shape
func (b *RingBuffer[O, A]) ObservationShape() Shape { return b.obsShape.Clone() }

// ActionShape returns the declared action shape
func (b *RingBuffer[O, A]) ActionShape() Shape { return b.actShape.Clone() }

// StateShape returns the shape of a stacked state, frames first
func (b *RingBuffer[O, A]) StateShape() Shape {
	return append(Shape{b.stack}, b.obsShape...)
}

// Eligible returns the number of transitions Sample can draw from
func (b *RingBuffer[O, A]) Eligible() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	lo, hi := b.eligibleRange()
	return hi - lo
}

// Stats returns a snapshot of buffer statistics
func (b *RingBuffer[O, A]) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	lo, hi := b.eligibleRange()
	return Stats{
		Length:   b.length(),
		Capacity: b.capacity,
		Eligible: hi - lo,
		Appends:  b.appends,
		Episodes: b.episodes,
		Wraps:    b.wraps,
	}
}

// Read returns the windowed transitions at the given logical indices.
// Index 0 is the oldest valid transition and Len()-1 the newest.
// Duplicates are allowed.
func (b *RingBuffer[O, A]) Read(indices ...int) ([]Experience[O, A], error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.read(indices)
}

// Sample draws n distinct transitions uniformly at random from the
// indices that have a complete lookback window and a known successor.
// An empty buffer yields ErrIndex; asking for more than Eligible()
// transitions yields ErrConfig.
func (b *RingBuffer[O, A]) Sample(n int) ([]Experience[O, A], error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.length() == 0 {
		return nil, fmt.Errorf("%w: buffer is empty", ErrIndex)
	}
	lo, hi := b.eligibleRange()
	eligible := hi - lo
	if n < 0 || n > eligible {
		return nil, fmt.Errorf("%w: cannot sample %d of %d eligible transitions", ErrConfig, n, eligible)
	}
	if n == 0 {
		return []Experience[O, A]{}, nil
	}

	b.rngMu.Lock()
	indices := sampleWithoutReplacement(b.rng, eligible, n)
	b.rngMu.Unlock()

	for i := range indices {
		indices[i] += lo
	}
	return b.read(indices)
}

// Helper methods, callers hold b.mu

func (b *RingBuffer[O, A]) length() int {
	return min(b.written, b.capacity)
}

// eligibleRange returns the half-open range of sampleable logical
// indices. Head is excluded because its successor is unknown, and so are
// the oldest indices whose lookback frames were never written.
func (b *RingBuffer[O, A]) eligibleRange() (int, int) {
	length := b.length()
	if length == 0 {
		return 0, 0
	}
	slack := b.written - length
	lo := max(0, b.stack-1-slack)
	hi := length - 1
	if lo > hi {
		lo = hi
	}
	return lo, hi
}

func (b *RingBuffer[O, A]) read(indices []int) ([]Experience[O, A], error) {
	length := b.length()
	if length == 0 {
		return nil, fmt.Errorf("%w: buffer is empty", ErrIndex)
	}

	batch := make([]Experience[O, A], len(indices))
	for n, i := range indices {
		if i < 0 || i >= length {
			return nil, fmt.Errorf("%w: index %d outside [0, %d)", ErrIndex, i, length)
		}

		w := b.reconstruct(i, length)
		slot := physical(b.head, length, b.total, i)
		action := make([]A, b.actSize)
		copy(action, b.action(slot))

		batch[n] = Experience[O, A]{
			Index:     i,
			Slot:      slot,
			State:     w.State(),
			NextState: w.Next(),
			Action:    action,
			Reward:    b.rewards[slot],
			Terminal:  b.terminals[slot],
		}
	}
	return batch, nil
}

func (b *RingBuffer[O, A]) observation(slot int) []O {
	return b.observations[slot*b.obsSize : (slot+1)*b.obsSize]
}

func (b *RingBuffer[O, A]) action(slot int) []A {
	return b.actions[slot*b.actSize : (slot+1)*b.actSize]
}

// sampleWithoutReplacement returns k distinct integers from [0, n) in
// random order using a sparse Fisher-Yates shuffle.
func sampleWithoutReplacement(rng *rand.Rand, n, k int) []int {
	swapped := make(map[int]int, k)
	picked := make([]int, k)
	for i := 0; i < k; i++ {
		j := i + rng.Intn(n-i)

		vj, ok := swapped[j]
		if !ok {
			vj = j
		}
		vi, ok := swapped[i]
		if !ok {
			vi = i
		}

		picked[i] = vj
		swapped[j] = vi
	}
	return picked
}
