package replayv1

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/known/structpb"
)

const structTypeName = ".google.protobuf.Struct"

// File_replay_v1_replay_proto describes replay/v1/replay.proto. Every
// method takes and returns a google.protobuf.Struct. It is registered in
// the global registry so server reflection can describe the service.
var File_replay_v1_replay_proto protoreflect.FileDescriptor

func init() {
	fd, err := buildFileDescriptor()
	if err != nil {
		panic(fmt.Sprintf("replay.v1: building descriptor: %v", err))
	}
	if err := protoregistry.GlobalFiles.RegisterFile(fd); err != nil {
		panic(fmt.Sprintf("replay.v1: registering descriptor: %v", err))
	}
	File_replay_v1_replay_proto = fd
}

func buildFileDescriptor() (protoreflect.FileDescriptor, error) {
	methods := make([]*descriptorpb.MethodDescriptorProto, 0, len(Replay_ServiceDesc.Methods))
	for _, m := range Replay_ServiceDesc.Methods {
		methods = append(methods, &descriptorpb.MethodDescriptorProto{
			Name:       proto.String(m.MethodName),
			InputType:  proto.String(structTypeName),
			OutputType: proto.String(structTypeName),
		})
	}

	file := &descriptorpb.FileDescriptorProto{
		Name:       proto.String(Replay_ServiceDesc.Metadata.(string)),
		Package:    proto.String("replay.v1"),
		Dependency: []string{structpb.File_google_protobuf_struct_proto.Path()},
		Syntax:     proto.String("proto3"),
		Options: &descriptorpb.FileOptions{
			GoPackage: proto.String("github.com/cartridge/framereplay/pkg/proto/replay/v1;replayv1"),
		},
		Service: []*descriptorpb.ServiceDescriptorProto{{
			Name:   proto.String("Replay"),
			Method: methods,
		}},
	}
	return protodesc.NewFile(file, protoregistry.GlobalFiles)
}
