package replayv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	Replay_CreateBuffer_FullMethodName    = "/replay.v1.Replay/CreateBuffer"
	Replay_Append_FullMethodName          = "/replay.v1.Replay/Append"
	Replay_CorrectTerminal_FullMethodName = "/replay.v1.Replay/CorrectTerminal"
	Replay_CurrentState_FullMethodName    = "/replay.v1.Replay/CurrentState"
	Replay_Sample_FullMethodName          = "/replay.v1.Replay/Sample"
	Replay_GetStats_FullMethodName        = "/replay.v1.Replay/GetStats"
)

// ReplayClient is the client API for the Replay service
type ReplayClient interface {
	CreateBuffer(ctx context.Context, in *CreateBufferRequest, opts ...grpc.CallOption) (*CreateBufferResponse, error)
	Append(ctx context.Context, in *AppendRequest, opts ...grpc.CallOption) (*AppendResponse, error)
	CorrectTerminal(ctx context.Context, in *CorrectTerminalRequest, opts ...grpc.CallOption) (*CorrectTerminalResponse, error)
	CurrentState(ctx context.Context, in *CurrentStateRequest, opts ...grpc.CallOption) (*CurrentStateResponse, error)
	Sample(ctx context.Context, in *SampleRequest, opts ...grpc.CallOption) (*SampleResponse, error)
	GetStats(ctx context.Context, in *GetStatsRequest, opts ...grpc.CallOption) (*StatsResponse, error)
}

type replayClient struct {
	cc grpc.ClientConnInterface
}

// NewReplayClient creates a client over an established connection
func NewReplayClient(cc grpc.ClientConnInterface) ReplayClient {
	return &replayClient{cc}
}

func invoke[Req, Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in *Req, opts []grpc.CallOption) (*Resp, error) {
	req, err := ToStruct(in)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := cc.Invoke(ctx, method, req, out, opts...); err != nil {
		return nil, err
	}
	resp := new(Resp)
	if err := FromStruct(out, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *replayClient) CreateBuffer(ctx context.Context, in *CreateBufferRequest, opts ...grpc.CallOption) (*CreateBufferResponse, error) {
	return invoke[CreateBufferRequest, CreateBufferResponse](ctx, c.cc, Replay_CreateBuffer_FullMethodName, in, opts)
}

func (c *replayClient) Append(ctx context.Context, in *AppendRequest, opts ...grpc.CallOption) (*AppendResponse, error) {
	return invoke[AppendRequest, AppendResponse](ctx, c.cc, Replay_Append_FullMethodName, in, opts)
}

func (c *replayClient) CorrectTerminal(ctx context.Context, in *CorrectTerminalRequest, opts ...grpc.CallOption) (*CorrectTerminalResponse, error) {
	return invoke[CorrectTerminalRequest, CorrectTerminalResponse](ctx, c.cc, Replay_CorrectTerminal_FullMethodName, in, opts)
}

func (c *replayClient) CurrentState(ctx context.Context, in *CurrentStateRequest, opts ...grpc.CallOption) (*CurrentStateResponse, error) {
	return invoke[CurrentStateRequest, CurrentStateResponse](ctx, c.cc, Replay_CurrentState_FullMethodName, in, opts)
}

func (c *replayClient) Sample(ctx context.Context, in *SampleRequest, opts ...grpc.CallOption) (*SampleResponse, error) {
	return invoke[SampleRequest, SampleResponse](ctx, c.cc, Replay_Sample_FullMethodName, in, opts)
}

func (c *replayClient) GetStats(ctx context.Context, in *GetStatsRequest, opts ...grpc.CallOption) (*StatsResponse, error) {
	return invoke[GetStatsRequest, StatsResponse](ctx, c.cc, Replay_GetStats_FullMethodName, in, opts)
}

// DialOptions raises the client message limits to maxBytes
func DialOptions(maxBytes int) []grpc.DialOption {
	return []grpc.DialOption{
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(maxBytes),
			grpc.MaxCallSendMsgSize(maxBytes),
		),
	}
}

// ServerOptions raises the server message limits to maxBytes
func ServerOptions(maxBytes int) []grpc.ServerOption {
	return []grpc.ServerOption{
		grpc.MaxRecvMsgSize(maxBytes),
		grpc.MaxSendMsgSize(maxBytes),
	}
}

// ReplayServer is the server API for the Replay service.
// Implementations must embed UnimplementedReplayServer.
type ReplayServer interface {
	CreateBuffer(context.Context, *CreateBufferRequest) (*CreateBufferResponse, error)
	Append(context.Context, *AppendRequest) (*AppendResponse, error)
	CorrectTerminal(context.Context, *CorrectTerminalRequest) (*CorrectTerminalResponse, error)
	CurrentState(context.Context, *CurrentStateRequest) (*CurrentStateResponse, error)
	Sample(context.Context, *SampleRequest) (*SampleResponse, error)
	GetStats(context.Context, *GetStatsRequest) (*StatsResponse, error)
	mustEmbedUnimplementedReplayServer()
}

// UnimplementedReplayServer must be embedded for forward compatibility
type UnimplementedReplayServer struct{}

func (UnimplementedReplayServer) CreateBuffer(context.Context, *CreateBufferRequest) (*CreateBufferResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method CreateBuffer not implemented")
}
func (UnimplementedReplayServer) Append(context.Context, *AppendRequest) (*AppendResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Append not implemented")
}
func (UnimplementedReplayServer) CorrectTerminal(context.Context, *CorrectTerminalRequest) (*CorrectTerminalResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method CorrectTerminal not implemented")
}
func (UnimplementedReplayServer) CurrentState(context.Context, *CurrentStateRequest) (*CurrentStateResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method CurrentState not implemented")
}
func (UnimplementedReplayServer) Sample(context.Context, *SampleRequest) (*SampleResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Sample not implemented")
}
func (UnimplementedReplayServer) GetStats(context.Context, *GetStatsRequest) (*StatsResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetStats not implemented")
}
func (UnimplementedReplayServer) mustEmbedUnimplementedReplayServer() {}

// RegisterReplayServer registers srv with a gRPC server
func RegisterReplayServer(s grpc.ServiceRegistrar, srv ReplayServer) {
	s.RegisterService(&Replay_ServiceDesc, srv)
}

// unaryHandler adapts a typed server method to a grpc unary method handler that
// decodes and encodes google.protobuf.Struct messages.
func unaryHandler[Req, Resp any](fullMethod string, call func(ReplayServer, context.Context, *Req) (*Resp, error)) func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			typed := new(Req)
			if err := FromStruct(req.(*structpb.Struct), typed); err != nil {
				return nil, status.Error(codes.InvalidArgument, err.Error())
			}
			resp, err := call(srv.(ReplayServer), ctx, typed)
			if err != nil {
				return nil, err
			}
			return ToStruct(resp)
		}
		if interceptor == nil {
			return handler(ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		return interceptor(ctx, in, info, handler)
	}
}

// Replay_ServiceDesc is the grpc.ServiceDesc for the Replay service
var Replay_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "replay.v1.Replay",
	HandlerType: (*ReplayServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "CreateBuffer",
			Handler:    unaryHandler(Replay_CreateBuffer_FullMethodName, ReplayServer.CreateBuffer),
		},
		{
			MethodName: "Append",
			Handler:    unaryHandler(Replay_Append_FullMethodName, ReplayServer.Append),
		},
		{
			MethodName: "CorrectTerminal",
			Handler:    unaryHandler(Replay_CorrectTerminal_FullMethodName, ReplayServer.CorrectTerminal),
		},
		{
			MethodName: "CurrentState",
			Handler:    unaryHandler(Replay_CurrentState_FullMethodName, ReplayServer.CurrentState),
		},
		{
			MethodName: "Sample",
			Handler:    unaryHandler(Replay_Sample_FullMethodName, ReplayServer.Sample),
		},
		{
			MethodName: "GetStats",
			Handler:    unaryHandler(Replay_GetStats_FullMethodName, ReplayServer.GetStats),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "replay/v1/replay.proto",
}
