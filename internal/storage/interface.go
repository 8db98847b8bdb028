package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig is returned for invalid construction parameters and for
	// sample requests that ask for more transitions than are eligible.
	ErrConfig = errors.New("invalid replay configuration")
	// ErrIndex is returned when reading from an empty buffer or outside
	// the range of valid transitions.
	ErrIndex = errors.New("replay index out of range")
)

// Element is the set of numeric types observations and actions may be stored as
type Element interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~int8 | ~int16 | ~int32 | ~int64 | ~int |
		~float32 | ~float64
}

// Shape is an explicitly declared tensor shape. An empty shape is a scalar.
type Shape []int

// Size returns the number of elements in a tensor of this shape
func (s Shape) Size() int {
	n := 1
	for _, d := range s {
		n *= d
	}
	return n
}

// Clone returns a copy of the shape that does not alias s
func (s Shape) Clone() Shape {
	out := make(Shape, len(s))
	copy(out, s)
	return out
}

// Equal reports whether two shapes have identical dimensions
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

func (s Shape) validate(name string) error {
	for i, d := range s {
		if d <= 0 {
			return fmt.Errorf("%w: %s dimension %d is %d, must be positive", ErrConfig, name, i, d)
		}
	}
	return nil
}

// Experience is one windowed transition returned by Read and Sample.
//
// State holds the stack of frames ending at the transition's observation,
// oldest first; NextState is the same window advanced by one frame. Both
// are views over one backing array of stack+1 frames, so they share
// stack-1 frames and must be treated as read-only.
type Experience[O, A Element] struct {
	Index     int // logical index the transition was read from
	Slot      int // backing slot of the current frame
	State     []O
	NextState []O
	Action    []A
	Reward    float64
	Terminal  bool
}

// Stats represents ring buffer statistics
type Stats struct {
	Length   int
	Capacity int
	Eligible int
	Appends  uint64
	Episodes uint64
	Wraps    uint64
}

// Source is anything a MultiSource can draw transitions from
type Source[O, A Element] interface {
	// Len returns the number of valid transitions held by the source
	Len() int

	// Eligible returns how many transitions can currently be sampled
	Eligible() int

	// Sample draws n distinct transitions uniformly at random
	Sample(n int) ([]Experience[O, A], error)
}
