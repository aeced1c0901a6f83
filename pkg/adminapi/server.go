package adminapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Server answers the admin RPCs against a Source. It never mutates
// core state.
type Server struct {
	src Source
}

// NewServer builds a Server reading from src.
func NewServer(src Source) *Server {
	return &Server{src: src}
}

// GetTickStats reports the tick loop's current cadence.
func (s *Server) GetTickStats(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	st := s.src.TickStats()
	return structpb.NewStruct(map[string]any{
		"instance_id":           s.src.InstanceID(),
		"mean_interval_ms":      st.MeanIntervalMs,
		"last_tick_duration_ms": st.LastTickDurationMs,
		"tick_count":            float64(st.TickCount),
	})
}

// GetIngressStats reports per-stripe depths and peer bookkeeping.
func (s *Server) GetIngressStats(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	depths := s.src.StripeDepths()
	asFloats := make([]any, len(depths))
	for i, d := range depths {
		asFloats[i] = float64(d)
	}
	return structpb.NewStruct(map[string]any{
		"stripe_depths":       asFloats,
		"known_peers":         float64(s.src.KnownPeers()),
		"pending_disconnects": float64(s.src.PendingDisconnects()),
	})
}

// GetTransactionStats reports one entity's collection queue bounds.
// req must carry an "entity_id" string field.
func (s *Server) GetTransactionStats(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	entityID := req.GetFields()["entity_id"].GetStringValue()
	stats, ok := s.src.TxnStats(entityID)
	if !ok {
		return structpb.NewStruct(map[string]any{"found": false})
	}

	collections := make([]any, len(stats))
	for i, c := range stats {
		collections[i] = map[string]any{
			"name":              c.Name,
			"first_id":          float64(c.FirstID),
			"current_id":        float64(c.CurrentID),
			"pending_callables": float64(c.PendingCallables),
		}
	}
	return structpb.NewStruct(map[string]any{
		"found":       true,
		"collections": collections,
	})
}

// GetPoolStats reports occupancy for the pool named by req's "name"
// field.
func (s *Server) GetPoolStats(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	name := req.GetFields()["name"].GetStringValue()
	slabAllocs, queueDepth, outstanding, ok := s.src.PoolStats(name)
	if !ok {
		return structpb.NewStruct(map[string]any{"found": false})
	}
	return structpb.NewStruct(map[string]any{
		"found":       true,
		"slab_allocs": float64(slabAllocs),
		"queue_depth": float64(queueDepth),
		"outstanding": float64(outstanding),
	})
}

// serviceDesc is the hand-written equivalent of a protoc-generated
// grpc.ServiceDesc: there is no .proto file in this module, so the
// method table is built directly instead of emitted by protoc-gen-go-grpc.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: "realtimecore.adminapi.AdminAPI",
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetTickStats", Handler: tickStatsHandler},
		{MethodName: "GetIngressStats", Handler: ingressStatsHandler},
		{MethodName: "GetTransactionStats", Handler: transactionStatsHandler},
		{MethodName: "GetPoolStats", Handler: poolStatsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "adminapi.proto",
}

func tickStatsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return decodeAndRun(srv.(*Server).GetTickStats, ctx, dec, interceptor, "/realtimecore.adminapi.AdminAPI/GetTickStats")
}

func ingressStatsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return decodeAndRun(srv.(*Server).GetIngressStats, ctx, dec, interceptor, "/realtimecore.adminapi.AdminAPI/GetIngressStats")
}

func transactionStatsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return decodeAndRun(srv.(*Server).GetTransactionStats, ctx, dec, interceptor, "/realtimecore.adminapi.AdminAPI/GetTransactionStats")
}

func poolStatsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return decodeAndRun(srv.(*Server).GetPoolStats, ctx, dec, interceptor, "/realtimecore.adminapi.AdminAPI/GetPoolStats")
}

func decodeAndRun(
	fn func(context.Context, *structpb.Struct) (*structpb.Struct, error),
	ctx context.Context,
	dec func(any) error,
	interceptor grpc.UnaryServerInterceptor,
	fullMethod string,
) (any, error) {
	req := new(structpb.Struct)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return fn(ctx, req)
	}
	info := &grpc.UnaryServerInfo{FullMethod: fullMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return fn(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, req, info, handler)
}

// Register attaches s to grpcServer under the admin service name.
func Register(grpcServer *grpc.Server, s *Server) {
	grpcServer.RegisterService(&serviceDesc, s)
}
