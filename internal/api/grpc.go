package api

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/heysubinoy/pyazkv/pkg/codec"
	"github.com/heysubinoy/pyazkv/pkg/kv"
)

// The scalar service speaks google.protobuf.Struct in both directions so it
// needs no generated code. Requests carry "key" and, for Set, "value" as
// text with an optional "kind"; lookups answer with "found", "kind" and
// "value".
const scalarServiceName = "pyazkv.ScalarService"

// ScalarServiceServer is the server API for pyazkv.ScalarService.
type ScalarServiceServer interface {
	Get(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Query(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Set(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Delete(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Export(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

var scalarServiceDesc = grpc.ServiceDesc{
	ServiceName: scalarServiceName,
	HandlerType: (*ScalarServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Get", Handler: unaryHandler("Get", ScalarServiceServer.Get)},
		{MethodName: "Query", Handler: unaryHandler("Query", ScalarServiceServer.Query)},
		{MethodName: "Set", Handler: unaryHandler("Set", ScalarServiceServer.Set)},
		{MethodName: "Delete", Handler: unaryHandler("Delete", ScalarServiceServer.Delete)},
		{MethodName: "Export", Handler: unaryHandler("Export", ScalarServiceServer.Export)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pyazkv/scalar_service",
}

type unaryMethod func(ScalarServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(name string, method unaryMethod) grpc.MethodHandler {
	fullMethod := "/" + scalarServiceName + "/" + name
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return method(srv.(ScalarServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return method(srv.(ScalarServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// RegisterScalarService registers srv on a gRPC server.
func RegisterScalarService(s grpc.ServiceRegistrar, srv ScalarServiceServer) {
	s.RegisterService(&scalarServiceDesc, srv)
}

// GRPCServer implements ScalarServiceServer.
// It wraps a kv.Store and exposes it over gRPC.
type GRPCServer struct {
	Store kv.Store
}

var _ ScalarServiceServer = (*GRPCServer)(nil)

// NewGRPCServer creates a new gRPC server with the given store.
func NewGRPCServer(store kv.Store) *GRPCServer {
	return &GRPCServer{
		Store: store,
	}
}

// Get retrieves a value by key, answering NotFound when it is absent.
func (s *GRPCServer) Get(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	key := stringField(req, "key")
	if key == "" {
		return nil, status.Error(codes.InvalidArgument, "key is required")
	}

	value, err := s.Store.Get(key)
	if errors.Is(err, kv.ErrKeyNotFound) {
		return nil, status.Errorf(codes.NotFound, "key %q not found", key)
	}
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to get key")
	}
	return lookupResponse(value, true), nil
}

// Query retrieves a value by key; absence is reported with found=false.
func (s *GRPCServer) Query(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	key := stringField(req, "key")
	if key == "" {
		return nil, status.Error(codes.InvalidArgument, "key is required")
	}

	value, found := s.Store.Lookup(key)
	return lookupResponse(value, found), nil
}

// Set stores a key-value pair. Without a kind the value text is coerced.
func (s *GRPCServer) Set(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	key := stringField(req, "key")
	if key == "" {
		return nil, status.Error(codes.InvalidArgument, "key is required")
	}
	if _, ok := req.GetFields()["value"]; !ok {
		return nil, status.Error(codes.InvalidArgument, "value is required")
	}

	value, err := requestValue(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	if err := s.Store.Set(key, value); err != nil {
		return nil, status.Error(codes.Internal, "failed to set key")
	}

	return successResponse(), nil
}

// Delete removes a key from the store.
func (s *GRPCServer) Delete(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	key := stringField(req, "key")
	if key == "" {
		return nil, status.Error(codes.InvalidArgument, "key is required")
	}

	if err := s.Store.Delete(key); err != nil {
		return nil, status.Error(codes.Internal, "failed to delete key")
	}

	return successResponse(), nil
}

// Export serializes the whole store in the requested format (json by default).
func (s *GRPCServer) Export(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	format := kv.FormatJSON
	if token := stringField(req, "format"); token != "" {
		f, err := kv.ParseFormat(token)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		format = f
	}

	data, err := codec.Marshal(format, s.Store.Snapshot())
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to encode store")
	}

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"format": structpb.NewStringValue(format.String()),
		"data":   structpb.NewStringValue(string(data)),
	}}, nil
}

func stringField(req *structpb.Struct, name string) string {
	return req.GetFields()[name].GetStringValue()
}

func requestValue(req *structpb.Struct) (kv.Value, error) {
	text := stringField(req, "value")
	kindName := stringField(req, "kind")
	if kindName == "" {
		return kv.Coerce(text), nil
	}
	kind, err := kv.ParseKind(kindName)
	if err != nil {
		return kv.Value{}, err
	}
	return kv.ParseValue(kind, text)
}

func lookupResponse(value kv.Value, found bool) *structpb.Struct {
	fields := map[string]*structpb.Value{"found": structpb.NewBoolValue(found)}
	if found {
		fields["kind"] = structpb.NewStringValue(value.Kind().String())
		fields["value"] = structpb.NewStringValue(value.String())
	}
	return &structpb.Struct{Fields: fields}
}

func successResponse() *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"success": structpb.NewBoolValue(true),
	}}
}

// Client calls pyazkv.ScalarService.
type Client struct {
	conn grpc.ClientConnInterface
}

// NewClient wraps an established connection.
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

func (c *Client) invoke(ctx context.Context, method string, fields map[string]*structpb.Value) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	in := &structpb.Struct{Fields: fields}
	if err := c.conn.Invoke(ctx, "/"+scalarServiceName+"/"+method, in, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Get fetches key, failing with kv.ErrKeyNotFound when it is absent.
func (c *Client) Get(ctx context.Context, key string) (kv.Value, error) {
	out, err := c.invoke(ctx, "Get", keyFields(key))
	if status.Code(err) == codes.NotFound {
		return kv.Value{}, fmt.Errorf("%w: %q", kv.ErrKeyNotFound, key)
	}
	if err != nil {
		return kv.Value{}, err
	}
	return responseValue(out)
}

// Query fetches key and reports whether it was present.
func (c *Client) Query(ctx context.Context, key string) (kv.Value, bool, error) {
	out, err := c.invoke(ctx, "Query", keyFields(key))
	if err != nil {
		return kv.Value{}, false, err
	}
	if !out.GetFields()["found"].GetBoolValue() {
		return kv.Value{}, false, nil
	}
	v, err := responseValue(out)
	return v, err == nil, err
}

// Set stores value under key with its exact kind.
func (c *Client) Set(ctx context.Context, key string, value kv.Value) error {
	fields := keyFields(key)
	fields["kind"] = structpb.NewStringValue(value.Kind().String())
	fields["value"] = structpb.NewStringValue(value.String())
	_, err := c.invoke(ctx, "Set", fields)
	return err
}

func (c *Client) Delete(ctx context.Context, key string) error {
	_, err := c.invoke(ctx, "Delete", keyFields(key))
	return err
}

// Export returns the remote store serialized in format.
func (c *Client) Export(ctx context.Context, format kv.Format) ([]byte, error) {
	out, err := c.invoke(ctx, "Export", map[string]*structpb.Value{
		"format": structpb.NewStringValue(format.String()),
	})
	if err != nil {
		return nil, err
	}
	return []byte(stringField(out, "data")), nil
}

func keyFields(key string) map[string]*structpb.Value {
	return map[string]*structpb.Value{"key": structpb.NewStringValue(key)}
}

func responseValue(out *structpb.Struct) (kv.Value, error) {
	kind, err := kv.ParseKind(stringField(out, "kind"))
	if err != nil {
		return kv.Value{}, err
	}
	return kv.ParseValue(kind, stringField(out, "value"))
}
