package service

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/cartridge/framereplay/internal/config"
	"github.com/cartridge/framereplay/internal/storage"
	replayv1 "github.com/cartridge/framereplay/pkg/proto/replay/v1"
)

// Buffer is the ring buffer type served over gRPC
type Buffer = storage.RingBuffer[float32, float32]

// ReplayService implements the Replay gRPC service.
//
// Every producer owns one buffer, created through CreateBuffer. All
// buffers also feed a shared MultiSource used when Sample names no buffer,
// so they must agree on observation shape, action shape and stack size.
type ReplayService struct {
	replayv1.UnimplementedReplayServer

	cfg    *config.Config
	logger zerolog.Logger

	mu      sync.RWMutex
	buffers map[string]*Buffer
	order   []string // registration order

	multi *storage.MultiSource[float32, float32]
}

// NewReplayService creates a new ReplayService
func NewReplayService(cfg *config.Config, logger zerolog.Logger) *ReplayService {
	opts := []storage.Option{storage.WithLogger(logger)}
	if cfg.Seed != 0 {
		opts = append(opts, storage.WithSeed(cfg.Seed))
	}
	if cfg.WeightByLength {
		opts = append(opts, storage.WithWeighting(storage.WeightByLength))
	}

	return &ReplayService{
		cfg:     cfg,
		logger:  logger.With().Str("component", "replay_service").Logger(),
		buffers: make(map[string]*Buffer),
		multi:   storage.NewMultiSource[float32, float32](nil, opts...),
	}
}

// CreateBuffer registers a new ring buffer and returns its id
func (s *ReplayService) CreateBuffer(ctx context.Context, req *replayv1.CreateBufferRequest) (*replayv1.CreateBufferResponse, error) {
	if len(req.ObservationShape) == 0 {
		return nil, status.Error(codes.InvalidArgument, "observation_shape is required")
	}

	cfg := storage.Config{
		ObservationShape: storage.Shape(req.ObservationShape),
		ActionShape:      storage.Shape(req.ActionShape),
		StackSize:        req.StackSize,
		Capacity:         req.Capacity,
	}
	if cfg.StackSize == 0 {
		cfg.StackSize = s.cfg.DefaultStackSize
	}
	if cfg.Capacity == 0 {
		cfg.Capacity = s.cfg.DefaultCapacity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkCompatible(cfg); err != nil {
		return nil, err
	}

	opts := []storage.Option{storage.WithLogger(s.logger)}
	switch {
	case req.Seed != 0:
		opts = append(opts, storage.WithSeed(req.Seed))
	case s.cfg.Seed != 0:
		// Distinct but reproducible streams per buffer
		opts = append(opts, storage.WithSeed(s.cfg.Seed+int64(len(s.order))+1))
	}

	buffer, err := storage.NewRingBuffer[float32, float32](cfg, opts...)
	if err != nil {
		return nil, toStatus(err)
	}

	id := uuid.New().String()
	s.buffers[id] = buffer
	s.order = append(s.order, id)
	s.multi.Add(buffer)

	s.logger.Info().
		Str("buffer_id", id).
		Ints("observation_shape", cfg.ObservationShape).
		Int("stack_size", cfg.StackSize).
		Int("capacity", cfg.Capacity).
		Msg("Created buffer")

	return &replayv1.CreateBufferResponse{BufferId: id}, nil
}

// Append records one transition in a producer's buffer
func (s *ReplayService) Append(ctx context.Context, req *replayv1.AppendRequest) (*replayv1.AppendResponse, error) {
	buffer, err := s.lookup(req.BufferId)
	if err != nil {
		return nil, err
	}

	action := req.Action
	if action == nil && buffer.ActionShape().Size() == 1 {
		action = []float32{0}
	}

	slot, err := buffer.Append(req.Observation, action, req.Reward, req.Terminal)
	if err != nil {
		return nil, toStatus(err)
	}

	return &replayv1.AppendResponse{Slot: slot}, nil
}

// CorrectTerminal rewrites the terminal flag of a previously appended slot
func (s *ReplayService) CorrectTerminal(ctx context.Context, req *replayv1.CorrectTerminalRequest) (*replayv1.CorrectTerminalResponse, error) {
	buffer, err := s.lookup(req.BufferId)
	if err != nil {
		return nil, err
	}

	if err := buffer.CorrectTerminal(req.Slot, req.Terminal); err != nil {
		return nil, toStatus(err)
	}

	return &replayv1.CorrectTerminalResponse{}, nil
}

// CurrentState returns the stacked state for acting on a fresh observation
func (s *ReplayService) CurrentState(ctx context.Context, req *replayv1.CurrentStateRequest) (*replayv1.CurrentStateResponse, error) {
	buffer, err := s.lookup(req.BufferId)
	if err != nil {
		return nil, err
	}

	state, err := buffer.CurrentState(req.Observation)
	if err != nil {
		return nil, toStatus(err)
	}

	return &replayv1.CurrentStateResponse{
		State: state,
		Shape: buffer.StateShape(),
	}, nil
}

// Sample samples a training batch from one buffer or from all of them
func (s *ReplayService) Sample(ctx context.Context, req *replayv1.SampleRequest) (*replayv1.SampleResponse, error) {
	if req.BatchSize <= 0 {
		return nil, status.Error(codes.InvalidArgument, "batch_size must be positive")
	}

	var (
		source storage.Source[float32, float32] = s.multi
		ref    *Buffer
	)
	if req.BufferId != "" {
		buffer, err := s.lookup(req.BufferId)
		if err != nil {
			return nil, err
		}
		source, ref = buffer, buffer
	} else {
		ref = s.reference()
		if ref == nil {
			return nil, status.Error(codes.FailedPrecondition, "no buffers registered")
		}
	}

	experiences, err := source.Sample(req.BatchSize)
	if err != nil {
		return nil, toStatus(err)
	}

	resp := &replayv1.SampleResponse{
		Experiences: make([]replayv1.Experience, len(experiences)),
		StateShape:  ref.StateShape(),
		ActionShape: ref.ActionShape(),
	}
	for i, exp := range experiences {
		resp.Experiences[i] = replayv1.Experience{
			State:     exp.State,
			NextState: exp.NextState,
			Action:    exp.Action,
			Reward:    exp.Reward,
			Terminal:  exp.Terminal,
		}
	}

	return resp, nil
}

// GetStats returns statistics for one buffer or for all of them
func (s *ReplayService) GetStats(ctx context.Context, req *replayv1.GetStatsRequest) (*replayv1.StatsResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if req.BufferId != "" {
		if _, exists := s.buffers[req.BufferId]; !exists {
			return nil, status.Errorf(codes.NotFound, "buffer %q not found", req.BufferId)
		}
	}

	resp := &replayv1.StatsResponse{
		Buffers: make(map[string]replayv1.BufferStats),
	}
	for id, buffer := range s.buffers {
		if req.BufferId != "" && id != req.BufferId {
			continue
		}
		stats := buffer.Stats()
		resp.TotalLength += stats.Length
		resp.Buffers[id] = replayv1.BufferStats{
			Length:   stats.Length,
			Capacity: stats.Capacity,
			Eligible: stats.Eligible,
			Appends:  stats.Appends,
			Episodes: stats.Episodes,
		}
	}

	return resp, nil
}

// BufferIDs returns the ids of all registered buffers in registration order
func (s *ReplayService) BufferIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, len(s.order))
	copy(ids, s.order)
	return ids
}

// Helper methods

func (s *ReplayService) lookup(id string) (*Buffer, error) {
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "buffer_id is required")
	}

	s.mu.RLock()
	buffer, exists := s.buffers[id]
	s.mu.RUnlock()

	if !exists {
		return nil, status.Errorf(codes.NotFound, "buffer %q not found", id)
	}
	return buffer, nil
}

// reference returns the first registered buffer; all share the same shapes
func (s *ReplayService) reference() *Buffer {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.order) == 0 {
		return nil
	}
	return s.buffers[s.order[0]]
}

// checkCompatible rejects buffers the shared sampler could not batch
// together with the existing ones. Callers hold s.mu.
func (s *ReplayService) checkCompatible(cfg storage.Config) error {
	for _, existing := range s.buffers {
		if !existing.ObservationShape().Equal(cfg.ObservationShape) ||
			!existing.ActionShape().Equal(cfg.ActionShape) ||
			existing.StackSize() != cfg.StackSize {
			return status.Errorf(codes.InvalidArgument,
				"buffer shape %v/%v with stack size %d does not match registered buffers (%v/%v, stack size %d)",
				cfg.ObservationShape, cfg.ActionShape, cfg.StackSize,
				existing.ObservationShape(), existing.ActionShape(), existing.StackSize())
		}
	}
	return nil
}

// toStatus maps storage errors onto gRPC status codes
func toStatus(err error) error {
	switch {
	case errors.Is(err, storage.ErrConfig):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, storage.ErrIndex):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
