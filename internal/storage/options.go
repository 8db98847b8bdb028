package storage

import (
	"math/rand"
	"time"

	"github.com/rs/zerolog"
)

// Weighting selects how MultiSource spreads a batch over its sources
type Weighting int

const (
	// WeightUniform gives every source the same chance per draw
	WeightUniform Weighting = iota
	// WeightByLength draws each source proportionally to its length
	WeightByLength
)

func (w Weighting) String() string {
	switch w {
	case WeightUniform:
		return "uniform"
	case WeightByLength:
		return "by-length"
	default:
		return "unknown"
	}
}

type options struct {
	rng       *rand.Rand
	logger    zerolog.Logger
	weighting Weighting
}

// Option configures a RingBuffer or a MultiSource
type Option func(*options)

func buildOptions(opts []Option) options {
	o := options{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.rng == nil {
		o.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return o
}

// WithRand sets the random source used for sampling. The source is
// owned by the receiver afterwards and must not be shared.
func WithRand(rng *rand.Rand) Option {
	return func(o *options) {
		o.rng = rng
	}
}

// WithSeed makes sampling reproducible
func WithSeed(seed int64) Option {
	return WithRand(rand.New(rand.NewSource(seed)))
}

// WithLogger sets the logger used for debug events
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithWeighting sets how a MultiSource spreads draws over its sources.
// It has no effect on a RingBuffer.
func WithWeighting(w Weighting) Option {
	return func(o *options) {
		o.weighting = w
	}
}
