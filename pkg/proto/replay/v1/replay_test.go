package replayv1

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
)

func TestTensor_TravelsAsBase64(t *testing.T) {
	msg := &Experience{
		State:     Tensor{1.5, -2, float32(math.Inf(1))},
		NextState: Tensor{0.1},
		Reward:    3,
	}

	wire, err := ToStruct(msg)
	require.NoError(t, err)

	// 3 float32 values are 12 bytes, 16 base64 characters
	assert.Len(t, wire.Fields["state"].GetStringValue(), 16)

	var decoded Experience
	require.NoError(t, FromStruct(wire, &decoded))
	assert.Equal(t, msg.State, decoded.State)
	assert.Equal(t, msg.NextState, decoded.NextState)
	assert.Nil(t, decoded.Action)
	assert.Equal(t, 3.0, decoded.Reward)
}

func TestTensor_RejectsMalformedInput(t *testing.T) {
	var tensor Tensor
	assert.Error(t, tensor.UnmarshalJSON([]byte(`[1, 2]`)))
	assert.Error(t, tensor.UnmarshalJSON([]byte(`"not base64!"`)))
	assert.Error(t, tensor.UnmarshalJSON([]byte(`"AAA="`)))
}

func TestFileDescriptor_DescribesService(t *testing.T) {
	desc, err := protoregistry.GlobalFiles.FindDescriptorByName("replay.v1.Replay")
	require.NoError(t, err)

	service, ok := desc.(protoreflect.ServiceDescriptor)
	require.True(t, ok)
	assert.Equal(t, Replay_ServiceDesc.Metadata, service.ParentFile().Path())

	methods := service.Methods()
	require.Equal(t, len(Replay_ServiceDesc.Methods), methods.Len())
	for _, m := range Replay_ServiceDesc.Methods {
		method := methods.ByName(protoreflect.Name(m.MethodName))
		require.NotNil(t, method, m.MethodName)
		assert.Equal(t, protoreflect.FullName("google.protobuf.Struct"), method.Input().FullName())
		assert.Equal(t, protoreflect.FullName("google.protobuf.Struct"), method.Output().FullName())
	}
}
