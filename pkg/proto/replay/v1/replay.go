// Package replayv1 defines the replay.v1.Replay gRPC API.
//
// Messages travel as google.protobuf.Struct values. The Go types in this
// file are their typed views; field names follow the JSON tags.
package replayv1

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// DefaultMaxMessageBytes bounds request and response sizes on both ends.
// A batch of stacked image observations is far larger than the gRPC
// default of 4 MiB.
const DefaultMaxMessageBytes = 64 << 20

// Tensor is a flat float32 tensor. It travels as a base64 string of
// little-endian float32 values rather than as a list of doubles.
type Tensor []float32

func (t Tensor) MarshalJSON() ([]byte, error) {
	raw := make([]byte, 4*len(t))
	for i, v := range t {
		binary.LittleEndian.PutUint32(raw[4*i:], math.Float32bits(v))
	}
	return json.Marshal(base64.StdEncoding.EncodeToString(raw))
}

func (t *Tensor) UnmarshalJSON(data []byte) error {
	var encoded string
	if err := json.Unmarshal(data, &encoded); err != nil {
		return fmt.Errorf("tensor must be a base64 string: %w", err)
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("decoding tensor: %w", err)
	}
	if len(raw)%4 != 0 {
		return fmt.Errorf("tensor has %d bytes, not a multiple of 4", len(raw))
	}
	if len(raw) == 0 {
		*t = nil
		return nil
	}

	out := make(Tensor, len(raw)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:]))
	}
	*t = out
	return nil
}

// CreateBufferRequest registers a ring buffer for one producer
type CreateBufferRequest struct {
	ObservationShape []int `json:"observation_shape"`
	ActionShape      []int `json:"action_shape,omitempty"`
	StackSize        int   `json:"stack_size,omitempty"`
	Capacity         int   `json:"capacity,omitempty"`
	Seed             int64 `json:"seed,omitempty"`
}

type CreateBufferResponse struct {
	BufferId string `json:"buffer_id"`
}

// AppendRequest records one environment step
type AppendRequest struct {
	BufferId    string  `json:"buffer_id"`
	Observation Tensor  `json:"observation"`
	Action      Tensor  `json:"action"`
	Reward      float64 `json:"reward"`
	Terminal    bool    `json:"terminal"`
}

type AppendResponse struct {
	Slot int `json:"slot"`
}

// CorrectTerminalRequest rewrites the terminal flag of an appended step
type CorrectTerminalRequest struct {
	BufferId string `json:"buffer_id"`
	Slot     int    `json:"slot"`
	Terminal bool   `json:"terminal"`
}

type CorrectTerminalResponse struct{}

// CurrentStateRequest asks for the policy input ending at observation
type CurrentStateRequest struct {
	BufferId    string `json:"buffer_id"`
	Observation Tensor `json:"observation"`
}

type CurrentStateResponse struct {
	State Tensor `json:"state"`
	Shape []int  `json:"shape"`
}

// SampleRequest asks for a training batch. An empty BufferId samples
// across every registered buffer.
type SampleRequest struct {
	BatchSize int    `json:"batch_size"`
	BufferId  string `json:"buffer_id,omitempty"`
}

// Experience is one windowed transition
type Experience struct {
	State     Tensor  `json:"state"`
	NextState Tensor  `json:"next_state"`
	Action    Tensor  `json:"action"`
	Reward    float64 `json:"reward"`
	Terminal  bool    `json:"terminal"`
}

type SampleResponse struct {
	Experiences []Experience `json:"experiences"`
	StateShape  []int        `json:"state_shape"`
	ActionShape []int        `json:"action_shape"`
}

type GetStatsRequest struct {
	BufferId string `json:"buffer_id,omitempty"`
}

// BufferStats describes one registered buffer
type BufferStats struct {
	Length   int    `json:"length"`
	Capacity int    `json:"capacity"`
	Eligible int    `json:"eligible"`
	Appends  uint64 `json:"appends"`
	Episodes uint64 `json:"episodes"`
}

type StatsResponse struct {
	TotalLength int                    `json:"total_length"`
	Buffers     map[string]BufferStats `json:"buffers"`
}

// ToStruct converts a typed message into its wire form
func ToStruct(msg any) (*structpb.Struct, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encoding %T: %w", msg, err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("encoding %T: %w", msg, err)
	}
	return out, nil
}

// FromStruct fills a typed message from its wire form
func FromStruct(in *structpb.Struct, msg any) error {
	data, err := protojson.Marshal(in)
	if err != nil {
		return fmt.Errorf("decoding %T: %w", msg, err)
	}
	if err := json.Unmarshal(data, msg); err != nil {
		return fmt.Errorf("decoding %T: %w", msg, err)
	}
	return nil
}
