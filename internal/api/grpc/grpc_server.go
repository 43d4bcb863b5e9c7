package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/olyamironova/oms-engine/internal/api/dto"
	"github.com/olyamironova/oms-engine/internal/core"
	"github.com/olyamironova/oms-engine/internal/domain"
)

type GRPCServer struct {
	Eng *core.Engine
	log *zap.Logger

	done     chan struct{}
	stopOnce sync.Once
}

var _ InformerServer = (*GRPCServer)(nil)

func NewGRPCServer(eng *core.Engine, log *zap.Logger) *GRPCServer {
	if log == nil {
		log = zap.NewNop()
	}
	return &GRPCServer{Eng: eng, log: log, done: make(chan struct{})}
}

// Server builds a grpc.Server with the informer registered.
func (s *GRPCServer) Server() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.logUnary))
	RegisterInformerServer(srv, s)
	return srv
}

// Run serves on addr until ctx is done.
func (s *GRPCServer) Run(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := s.Server()
	go func() {
		<-ctx.Done()
		s.Shutdown()
		srv.GracefulStop()
	}()
	s.log.Info("grpc server listening", zap.String("addr", addr))
	if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Shutdown ends open fill streams so a graceful stop can drain them.
func (s *GRPCServer) Shutdown() {
	s.stopOnce.Do(func() { close(s.done) })
}

func (s *GRPCServer) NetWorth(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.StringValue, error) {
	return wrapperspb.String(s.Eng.NetWorth().String()), nil
}

func (s *GRPCServer) Portfolio(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return toStruct(dto.FromView(s.Eng.View()))
}

func (s *GRPCServer) GetOrder(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	if req.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "order id is required")
	}
	o, err := s.Eng.Order(req.GetValue())
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			return nil, status.Errorf(codes.NotFound, "order not found: %s", req.GetValue())
		}
		return nil, status.Errorf(codes.Internal, "get order: %v", err)
	}
	return toStruct(dto.FromOrder(o))
}

func (s *GRPCServer) ListOrders(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	orders := dto.FromOrders(s.Eng.Orders())
	values := make([]*structpb.Value, 0, len(orders))
	for _, o := range orders {
		st, err := toStruct(o)
		if err != nil {
			return nil, err
		}
		values = append(values, structpb.NewStructValue(st))
	}
	return &structpb.ListValue{Values: values}, nil
}

// StreamFills pushes each fill as it is executed until the client cancels
// or the server shuts down.
func (s *GRPCServer) StreamFills(_ *emptypb.Empty, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	fills, cancel := s.Eng.SubscribeFills(64)
	defer cancel()
	if err := stream.SendHeader(metadata.Pairs("subscribed", "true")); err != nil {
		return err
	}

	for {
		select {
		case <-stream.Context().Done():
			return nil
		case <-s.done:
			return status.Error(codes.Unavailable, "server shutting down")
		case f, ok := <-fills:
			if !ok {
				return nil
			}
			msg, err := toStruct(dto.FromFill(f))
			if err != nil {
				return err
			}
			if err := stream.Send(msg); err != nil {
				return err
			}
		}
	}
}

func (s *GRPCServer) logUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	s.log.Info("grpc request",
		zap.String("method", info.FullMethod),
		zap.Stringer("code", status.Code(err)),
		zap.Duration("latency", time.Since(start)),
	)
	return resp, err
}

// toStruct converts a dto value through its JSON form.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, status.Errorf(codes.Internal, "encode: %v", err)
	}
	st, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode: %v", err)
	}
	return st, nil
}
