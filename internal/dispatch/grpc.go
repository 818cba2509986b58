package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/reflection/grpc_reflection_v1alpha"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/mcpgateway/gateway/internal/catalog"
	"github.com/mcpgateway/gateway/internal/gwerrors"
)

// GRPCInvoker dispatches catalog.IntegrationGRPC tools by resolving their
// method signature through server reflection and invoking them with
// messages built dynamically from the tool call's JSON arguments — there is
// no generated client stub for an upstream registered into the catalog at
// runtime (spec §4.3).
type GRPCInvoker struct {
	mu    sync.Mutex
	conns map[string]*grpc.ClientConn

	methodCacheMu sync.RWMutex
	methodCache   map[string]protoreflect.MethodDescriptor
}

// NewGRPCInvoker builds a GRPCInvoker. Connections are dialed lazily per
// Tool.BaseURL and reused across calls.
func NewGRPCInvoker() *GRPCInvoker {
	return &GRPCInvoker{
		conns:       make(map[string]*grpc.ClientConn),
		methodCache: make(map[string]protoreflect.MethodDescriptor),
	}
}

// Invoke calls tool's gRPC method, built from PathTemplate
// ("/package.Service/Method") against BaseURL ("host:port"), marshaling
// arguments to the method's input message via protojson and returning the
// response message decoded back to a map.
func (g *GRPCInvoker) Invoke(ctx context.Context, tool *catalog.Tool, arguments map[string]any) (map[string]any, error) {
	conn, err := g.dial(tool.BaseURL)
	if err != nil {
		return nil, gwerrors.Upstream(err, "dial grpc upstream for tool %s", tool.Name)
	}

	service, method, err := splitFullMethod(tool.PathTemplate)
	if err != nil {
		return nil, gwerrors.InvalidRequest("tool %s: %v", tool.Name, err)
	}

	methodDesc, err := g.resolveMethod(ctx, conn, tool.BaseURL, service, method)
	if err != nil {
		return nil, gwerrors.Upstream(err, "resolve grpc method for tool %s", tool.Name)
	}

	argBytes, err := json.Marshal(arguments)
	if err != nil {
		return nil, gwerrors.Internal(err, "encode arguments for tool %s", tool.Name)
	}

	reqMsg := dynamicpb.NewMessage(methodDesc.Input())
	if err := protojson.Unmarshal(argBytes, reqMsg); err != nil {
		return nil, gwerrors.InvalidRequest("tool %s: arguments don't match %s: %v", tool.Name, methodDesc.Input().FullName(), err)
	}

	respMsg := dynamicpb.NewMessage(methodDesc.Output())
	if err := conn.Invoke(ctx, tool.PathTemplate, reqMsg, respMsg); err != nil {
		return nil, gwerrors.Upstream(err, "invoke %s", tool.PathTemplate)
	}

	respBytes, err := protojson.Marshal(respMsg)
	if err != nil {
		return nil, gwerrors.Internal(err, "encode grpc response for tool %s", tool.Name)
	}
	var result map[string]any
	if err := json.Unmarshal(respBytes, &result); err != nil {
		return nil, gwerrors.Internal(err, "decode grpc response for tool %s", tool.Name)
	}
	return result, nil
}

// Close closes every pooled connection.
func (g *GRPCInvoker) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	var firstErr error
	for addr, conn := range g.conns {
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(g.conns, addr)
	}
	return firstErr
}

func (g *GRPCInvoker) dial(addr string) (*grpc.ClientConn, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if conn, ok := g.conns[addr]; ok {
		return conn, nil
	}
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	g.conns[addr] = conn
	return conn, nil
}

// resolveMethod looks up a cached MethodDescriptor for service.method, or
// fetches it via the upstream's reflection service and caches it.
func (g *GRPCInvoker) resolveMethod(ctx context.Context, conn *grpc.ClientConn, addr, service, method string) (protoreflect.MethodDescriptor, error) {
	cacheKey := addr + "/" + service + "/" + method

	g.methodCacheMu.RLock()
	cached, ok := g.methodCache[cacheKey]
	g.methodCacheMu.RUnlock()
	if ok {
		return cached, nil
	}

	files, err := fetchFileDescriptors(ctx, conn, service)
	if err != nil {
		return nil, err
	}

	desc, err := files.FindDescriptorByName(protoreflect.FullName(service))
	if err != nil {
		return nil, fmt.Errorf("find service %s: %w", service, err)
	}
	svcDesc, ok := desc.(protoreflect.ServiceDescriptor)
	if !ok {
		return nil, fmt.Errorf("%s is not a service", service)
	}
	methodDesc := svcDesc.Methods().ByName(protoreflect.Name(method))
	if methodDesc == nil {
		return nil, fmt.Errorf("method %s not found on service %s", method, service)
	}

	g.methodCacheMu.Lock()
	g.methodCache[cacheKey] = methodDesc
	g.methodCacheMu.Unlock()
	return methodDesc, nil
}

// fetchFileDescriptors uses the upstream's gRPC server reflection service
// to retrieve the file descriptor for service and everything it transitively
// depends on, assembling them into a queryable protodesc.Files set.
func fetchFileDescriptors(ctx context.Context, conn *grpc.ClientConn, service string) (*protoregistry.Files, error) {
	client := grpc_reflection_v1alpha.NewServerReflectionClient(conn)
	stream, err := client.ServerReflectionInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("open reflection stream: %w", err)
	}
	defer func() { _ = stream.CloseSend() }()

	fdSet := &descriptorpb.FileDescriptorSet{}
	seen := make(map[string]bool)

	if err := requestFile(stream, &grpc_reflection_v1alpha.ServerReflectionRequest_FileContainingSymbol{
		FileContainingSymbol: service,
	}, fdSet, seen); err != nil {
		return nil, err
	}

	// Resolve transitive dependencies the initial response named but didn't
	// include inline.
	for i := 0; i < len(fdSet.File); i++ {
		for _, dep := range fdSet.File[i].GetDependency() {
			if seen[dep] {
				continue
			}
			if err := requestFile(stream, &grpc_reflection_v1alpha.ServerReflectionRequest_FileByFilename{
				FileByFilename: dep,
			}, fdSet, seen); err != nil {
				return nil, err
			}
		}
	}

	files, err := protodesc.NewFiles(fdSet)
	if err != nil {
		return nil, fmt.Errorf("build descriptor set: %w", err)
	}
	return files, nil
}

// requestFile sends a single reflection request and folds every
// FileDescriptorProto in the response into fdSet, marking each by name in
// seen so dependency resolution doesn't loop.
func requestFile(stream grpc_reflection_v1alpha.ServerReflection_ServerReflectionInfoClient, req any, fdSet *descriptorpb.FileDescriptorSet, seen map[string]bool) error {
	reflectReq := &grpc_reflection_v1alpha.ServerReflectionRequest{}
	switch r := req.(type) {
	case *grpc_reflection_v1alpha.ServerReflectionRequest_FileContainingSymbol:
		reflectReq.MessageRequest = r
	case *grpc_reflection_v1alpha.ServerReflectionRequest_FileByFilename:
		reflectReq.MessageRequest = r
	default:
		return fmt.Errorf("unsupported reflection request type %T", req)
	}

	if err := stream.Send(reflectReq); err != nil {
		return fmt.Errorf("send reflection request: %w", err)
	}
	resp, err := stream.Recv()
	if err != nil {
		return fmt.Errorf("receive reflection response: %w", err)
	}
	if errResp := resp.GetErrorResponse(); errResp != nil {
		return fmt.Errorf("reflection error %d: %s", errResp.GetErrorCode(), errResp.GetErrorMessage())
	}
	fdResp := resp.GetFileDescriptorResponse()
	if fdResp == nil {
		return fmt.Errorf("reflection response carried no file descriptor")
	}
	for _, raw := range fdResp.GetFileDescriptorProto() {
		fdProto := &descriptorpb.FileDescriptorProto{}
		if err := proto.Unmarshal(raw, fdProto); err != nil {
			return fmt.Errorf("decode file descriptor: %w", err)
		}
		if seen[fdProto.GetName()] {
			continue
		}
		seen[fdProto.GetName()] = true
		fdSet.File = append(fdSet.File, fdProto)
	}
	return nil
}

// splitFullMethod splits a "/package.Service/Method" path template into its
// service and method name parts.
func splitFullMethod(pathTemplate string) (service, method string, err error) {
	trimmed := strings.TrimPrefix(pathTemplate, "/")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("path_template %q must be \"/package.Service/Method\"", pathTemplate)
	}
	return parts[0], parts[1], nil
}
