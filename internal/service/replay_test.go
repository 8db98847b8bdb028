package service

import (
	"context"
	"net"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/cartridge/framereplay/internal/config"
	replayv1 "github.com/cartridge/framereplay/pkg/proto/replay/v1"
)

// startServer serves a fresh ReplayService over an in-memory listener
func startServer(t *testing.T) (*ReplayService, replayv1.ReplayClient) {
	t.Helper()

	cfg := config.Default()
	cfg.Seed = 42
	svc := NewReplayService(cfg, zerolog.Nop())

	lis := bufconn.Listen(1 << 20)
	server := grpc.NewServer(replayv1.ServerOptions(cfg.MaxMessageBytes)...)
	replayv1.RegisterReplayServer(server, svc)
	go func() {
		_ = server.Serve(lis)
	}()
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet", append(
		replayv1.DialOptions(cfg.MaxMessageBytes),
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return svc, replayv1.NewReplayClient(conn)
}

func requireCode(t *testing.T, err error, code codes.Code) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, status.Code(err), err.Error())
}

func TestReplayService_ProducerFlow(t *testing.T) {
	_, client := startServer(t)
	ctx := context.Background()

	created, err := client.CreateBuffer(ctx, &replayv1.CreateBufferRequest{
		ObservationShape: []int{2},
		StackSize:        2,
		Capacity:         4,
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.BufferId)
	id := created.BufferId

	// Empty buffer: lookback is zero-filled
	current, err := client.CurrentState(ctx, &replayv1.CurrentStateRequest{
		BufferId:    id,
		Observation: []float32{1, 1},
	})
	require.NoError(t, err)
	assert.Equal(t, replayv1.Tensor{0, 0, 1, 1}, current.State)
	assert.Equal(t, []int{2, 2}, current.Shape)

	slots := make([]int, 0, 5)
	for i := 1; i <= 5; i++ {
		v := float32(i)
		resp, err := client.Append(ctx, &replayv1.AppendRequest{
			BufferId:    id,
			Observation: []float32{v, v},
			Action:      []float32{v},
			Reward:      float64(i) / 2,
		})
		require.NoError(t, err)
		slots = append(slots, resp.Slot)

		// The producer learns about the end of an episode one step late
		if i == 4 {
			_, err := client.CorrectTerminal(ctx, &replayv1.CorrectTerminalRequest{
				BufferId: id,
				Slot:     slots[2],
				Terminal: true,
			})
			require.NoError(t, err)
		}
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4}, slots)

	current, err = client.CurrentState(ctx, &replayv1.CurrentStateRequest{
		BufferId:    id,
		Observation: []float32{6, 6},
	})
	require.NoError(t, err)
	assert.Equal(t, replayv1.Tensor{5, 5, 6, 6}, current.State)

	stats, err := client.GetStats(ctx, &replayv1.GetStatsRequest{BufferId: id})
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalLength)
	assert.Equal(t, replayv1.BufferStats{
		Length:   4,
		Capacity: 4,
		Eligible: 3,
		Appends:  5,
		Episodes: 1,
	}, stats.Buffers[id])

	sampled, err := client.Sample(ctx, &replayv1.SampleRequest{BatchSize: 3, BufferId: id})
	require.NoError(t, err)
	require.Len(t, sampled.Experiences, 3)
	assert.Equal(t, []int{2, 2}, sampled.StateShape)

	for _, exp := range sampled.Experiences {
		require.Len(t, exp.State, 4)
		require.Len(t, exp.NextState, 4)
		require.Len(t, exp.Action, 1)
		current := exp.State[2]
		assert.Equal(t, current, exp.Action[0])
		assert.Equal(t, float64(current)/2, exp.Reward)

		switch current {
		case 3:
			assert.True(t, exp.Terminal)
			assert.Equal(t, replayv1.Tensor{3, 3, 0, 0}, exp.NextState)
		case 4:
			assert.Equal(t, replayv1.Tensor{0, 0, 4, 4}, exp.State)
			assert.Equal(t, replayv1.Tensor{4, 4, 5, 5}, exp.NextState)
		}
	}
}

func TestReplayService_SampleAcrossBuffers(t *testing.T) {
	svc, client := startServer(t)
	ctx := context.Background()

	for producer := 1; producer <= 2; producer++ {
		created, err := client.CreateBuffer(ctx, &replayv1.CreateBufferRequest{
			ObservationShape: []int{1},
			Capacity:         50,
		})
		require.NoError(t, err)

		for i := 0; i < 30; i++ {
			_, err := client.Append(ctx, &replayv1.AppendRequest{
				BufferId:    created.BufferId,
				Observation: []float32{float32(producer)},
			})
			require.NoError(t, err)
		}
	}
	require.Len(t, svc.BufferIDs(), 2)

	stats, err := client.GetStats(ctx, &replayv1.GetStatsRequest{})
	require.NoError(t, err)
	assert.Equal(t, 60, stats.TotalLength)
	assert.Len(t, stats.Buffers, 2)

	resp, err := client.Sample(ctx, &replayv1.SampleRequest{BatchSize: 16})
	require.NoError(t, err)
	require.Len(t, resp.Experiences, 16)
	assert.Equal(t, []int{1, 1}, resp.StateShape)

	// Grouped by buffer in registration order
	for i := 1; i < len(resp.Experiences); i++ {
		assert.LessOrEqual(t, resp.Experiences[i-1].State[0], resp.Experiences[i].State[0])
	}
}

func TestReplayService_SampleImageBatch(t *testing.T) {
	_, client := startServer(t)
	ctx := context.Background()

	const frameSize = 84 * 84
	created, err := client.CreateBuffer(ctx, &replayv1.CreateBufferRequest{
		ObservationShape: []int{84, 84},
		StackSize:        4,
		Capacity:         64,
	})
	require.NoError(t, err)

	frame := make([]float32, frameSize)
	for i := 1; i <= 40; i++ {
		for p := range frame {
			frame[p] = float32(i) + float32(p%255)/255
		}
		_, err := client.Append(ctx, &replayv1.AppendRequest{
			BufferId:    created.BufferId,
			Observation: frame,
		})
		require.NoError(t, err)
	}

	resp, err := client.Sample(ctx, &replayv1.SampleRequest{BatchSize: 32})
	require.NoError(t, err)
	require.Len(t, resp.Experiences, 32)
	assert.Equal(t, []int{4, 84, 84}, resp.StateShape)

	for _, exp := range resp.Experiences {
		require.Len(t, exp.State, 4*frameSize)
		require.Len(t, exp.NextState, 4*frameSize)

		// Consecutive frames of one episode, shared between state and next state
		first := exp.State[0]
		for f := 0; f < 4; f++ {
			assert.Equal(t, first+float32(f), exp.State[f*frameSize])
		}
		assert.Equal(t, exp.State[frameSize:], exp.NextState[:3*frameSize])
	}
}

func TestReplayService_Errors(t *testing.T) {
	_, client := startServer(t)
	ctx := context.Background()

	_, err := client.Sample(ctx, &replayv1.SampleRequest{BatchSize: 1})
	requireCode(t, err, codes.FailedPrecondition)

	_, err = client.CreateBuffer(ctx, &replayv1.CreateBufferRequest{})
	requireCode(t, err, codes.InvalidArgument)

	_, err = client.CreateBuffer(ctx, &replayv1.CreateBufferRequest{ObservationShape: []int{1}, Capacity: -1})
	requireCode(t, err, codes.InvalidArgument)

	created, err := client.CreateBuffer(ctx, &replayv1.CreateBufferRequest{ObservationShape: []int{3}, Capacity: 8})
	require.NoError(t, err)
	id := created.BufferId

	_, err = client.CreateBuffer(ctx, &replayv1.CreateBufferRequest{ObservationShape: []int{4}, Capacity: 8})
	requireCode(t, err, codes.InvalidArgument)

	_, err = client.Append(ctx, &replayv1.AppendRequest{BufferId: "missing", Observation: []float32{1, 2, 3}})
	requireCode(t, err, codes.NotFound)

	_, err = client.Append(ctx, &replayv1.AppendRequest{Observation: []float32{1, 2, 3}})
	requireCode(t, err, codes.InvalidArgument)

	_, err = client.Append(ctx, &replayv1.AppendRequest{BufferId: id, Observation: []float32{1}})
	requireCode(t, err, codes.InvalidArgument)

	_, err = client.CorrectTerminal(ctx, &replayv1.CorrectTerminalRequest{BufferId: id, Slot: 0, Terminal: true})
	requireCode(t, err, codes.FailedPrecondition)

	// An empty buffer is retryable once producers catch up
	_, err = client.Sample(ctx, &replayv1.SampleRequest{BatchSize: 1, BufferId: id})
	requireCode(t, err, codes.FailedPrecondition)
	_, err = client.Sample(ctx, &replayv1.SampleRequest{BatchSize: 1})
	requireCode(t, err, codes.FailedPrecondition)

	_, err = client.Append(ctx, &replayv1.AppendRequest{BufferId: id, Observation: []float32{1, 2, 3}})
	require.NoError(t, err)

	_, err = client.Sample(ctx, &replayv1.SampleRequest{BatchSize: 5, BufferId: id})
	requireCode(t, err, codes.InvalidArgument)

	_, err = client.Sample(ctx, &replayv1.SampleRequest{BatchSize: 0, BufferId: id})
	requireCode(t, err, codes.InvalidArgument)

	_, err = client.GetStats(ctx, &replayv1.GetStatsRequest{BufferId: "missing"})
	requireCode(t, err, codes.NotFound)
}

func TestToStatus(t *testing.T) {
	assert.Equal(t, codes.Internal, status.Code(toStatus(assert.AnError)))
}
