package storage

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/rs/zerolog"
)

// MultiSource samples batches across several sources, typically one
// ring buffer per concurrent producer. Sources are shared handles: the
// producers keep writing to them while they are registered here.
type MultiSource[O, A Element] struct {
	mu        sync.RWMutex
	sources   []Source[O, A] // append-only
	weighting Weighting

	rngMu sync.Mutex
	rng   *rand.Rand

	logger zerolog.Logger
}

// NewMultiSource creates a sampler over the given initial sources
func NewMultiSource[O, A Element](sources []Source[O, A], opts ...Option) *MultiSource[O, A] {
	o := buildOptions(opts)

	m := &MultiSource[O, A]{
		sources:   make([]Source[O, A], 0, len(sources)),
		weighting: o.weighting,
		rng:       o.rng,
		logger:    o.logger.With().Str("component", "multi_source").Logger(),
	}
	m.sources = append(m.sources, sources...)
	return m
}

// Add registers another source. Sources are never deduplicated or removed.
func (m *MultiSource[O, A]) Add(source Source[O, A]) {
	m.mu.Lock()
	m.sources = append(m.sources, source)
	count := len(m.sources)
	m.mu.Unlock()

	m.logger.Debug().Int("sources", count).Msg("Registered source")
}

// Sources returns the number of registered sources
func (m *MultiSource[O, A]) Sources() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sources)
}

// Len returns the total number of valid transitions across all sources
func (m *MultiSource[O, A]) Len() int {
	total := 0
	for _, source := range m.snapshot() {
		total += source.Len()
	}
	return total
}

// Eligible returns the total number of sampleable transitions
func (m *MultiSource[O, A]) Eligible() int {
	total := 0
	for _, source := range m.snapshot() {
		total += source.Eligible()
	}
	return total
}

// Sample draws a batch of n transitions. A multinomial draw over the
// sources decides how many transitions each contributes, then each
// source samples its share. Results are grouped by source in
// registration order.
//
// With uniform weighting the batch is uniform over the union of records
// only when the sources hold similar amounts of data.
func (m *MultiSource[O, A]) Sample(n int) ([]Experience[O, A], error) {
	sources := m.snapshot()
	if len(sources) == 0 {
		return nil, fmt.Errorf("%w: no sources registered", ErrIndex)
	}
	if n < 0 {
		return nil, fmt.Errorf("%w: batch size must not be negative, got %d", ErrConfig, n)
	}

	counts, err := m.draw(sources, n)
	if err != nil {
		return nil, err
	}

	batch := make([]Experience[O, A], 0, n)
	for i, source := range sources {
		if counts[i] == 0 {
			continue
		}
		experiences, err := source.Sample(counts[i])
		if err != nil {
			return nil, fmt.Errorf("sampling source %d: %w", i, err)
		}
		batch = append(batch, experiences...)
	}

	return batch, nil
}

// snapshot returns the sources registered so far. Later additions do
// not affect the returned slice.
func (m *MultiSource[O, A]) snapshot() []Source[O, A] {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sources[:len(m.sources):len(m.sources)]
}

// draw returns how many of n trials land on each source
func (m *MultiSource[O, A]) draw(sources []Source[O, A], n int) ([]int, error) {
	counts := make([]int, len(sources))

	if m.weighting == WeightByLength {
		weights := make([]int64, len(sources))
		var total int64
		for i, source := range sources {
			weights[i] = int64(source.Len())
			total += weights[i]
		}
		if total == 0 {
			return nil, fmt.Errorf("%w: all sources are empty", ErrIndex)
		}

		m.rngMu.Lock()
		defer m.rngMu.Unlock()
		for trial := 0; trial < n; trial++ {
			target := m.rng.Int63n(total)
			for i, w := range weights {
				if target < w {
					counts[i]++
					break
				}
				target -= w
			}
		}
		return counts, nil
	}

	m.rngMu.Lock()
	defer m.rngMu.Unlock()
	for trial := 0; trial < n; trial++ {
		counts[m.rng.Intn(len(sources))]++
	}
	return counts, nil
}
