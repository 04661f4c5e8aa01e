package grpc

import (
	"context"
	"net"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	grpclib "google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"

	"github.com/StarshatterWars/SSW-UE55-sub001/internal/logging"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/metrics"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/radio"
)

// RequestIDKey is the metadata key carrying a caller supplied request id.
const RequestIDKey = "x-request-id"

// ServerOptions configures the status server.
type ServerOptions struct {
	Logger  *logging.Logger
	Radio   *radio.Traffic
	Metrics *metrics.Collector
	// Security options run ahead of logging and metrics, see SecurityOptions.
	Security []grpclib.ServerOption
}

// Server hosts the status service and the standard health service.
type Server struct {
	srv    *grpclib.Server
	health *health.Server
	board  *Board
	log    *logging.Logger
}

// NewServer builds the gRPC server with logging, metrics and tracing interceptors.
func NewServer(opts ServerOptions) *Server {
	log := opts.Logger
	if log == nil {
		log = logging.L()
	}
	unary := []grpclib.UnaryServerInterceptor{RequestIDUnaryInterceptor(log)}
	stream := []grpclib.StreamServerInterceptor{RequestIDStreamInterceptor(log)}
	if opts.Metrics != nil {
		unary = append(unary, opts.Metrics.UnaryServerInterceptor())
		stream = append(stream, opts.Metrics.StreamServerInterceptor())
	}
	serverOpts := append([]grpclib.ServerOption{}, opts.Security...)
	serverOpts = append(serverOpts,
		grpclib.StatsHandler(otelgrpc.NewServerHandler()),
		grpclib.ChainUnaryInterceptor(unary...),
		grpclib.ChainStreamInterceptor(stream...),
	)
	srv := grpclib.NewServer(serverOpts...)

	hs := health.NewServer()
	board := NewBoard(hs)
	healthpb.RegisterHealthServer(srv, hs)
	RegisterStatusServer(srv, NewService(board, opts.Radio, log))
	return &Server{srv: srv, health: hs, board: board, log: log}
}

// Board returns the status board the frame loop publishes to.
func (s *Server) Board() *Board { return s.board }

// Serve blocks serving RPCs on lis.
func (s *Server) Serve(lis net.Listener) error {
	s.log.Info("grpc server listening", logging.String("addr", lis.Addr().String()))
	return s.srv.Serve(lis)
}

// Stop drains in-flight RPCs until ctx expires, then closes every connection.
func (s *Server) Stop(ctx context.Context) {
	s.health.Shutdown()
	done := make(chan struct{})
	go func() {
		s.srv.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn("grpc graceful stop timed out")
		s.srv.Stop()
		<-done
	}
}

// RequestIDUnaryInterceptor attaches a request scoped logger and logs each call.
func RequestIDUnaryInterceptor(base *logging.Logger) grpclib.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpclib.UnaryServerInfo, handler grpclib.UnaryHandler) (any, error) {
		ctx, reqLog := requestLogger(ctx, base, info.FullMethod)
		start := time.Now()
		resp, err := handler(ctx, req)
		if err != nil {
			reqLog.Warn("rpc failed", logging.Error(err), logging.Int64("elapsed_us", time.Since(start).Microseconds()))
		} else {
			reqLog.Debug("rpc served", logging.Int64("elapsed_us", time.Since(start).Microseconds()))
		}
		return resp, err
	}
}

// RequestIDStreamInterceptor attaches a request scoped logger to streams.
func RequestIDStreamInterceptor(base *logging.Logger) grpclib.StreamServerInterceptor {
	return func(srv any, ss grpclib.ServerStream, info *grpclib.StreamServerInfo, handler grpclib.StreamHandler) error {
		ctx, reqLog := requestLogger(ss.Context(), base, info.FullMethod)
		err := handler(srv, &loggedStream{ServerStream: ss, ctx: ctx})
		if err != nil {
			reqLog.Debug("stream closed", logging.Error(err))
		}
		return err
	}
}

func requestLogger(ctx context.Context, base *logging.Logger, method string) (context.Context, *logging.Logger) {
	id := ""
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get(RequestIDKey); len(vals) > 0 {
			id = vals[0]
		}
	}
	if id == "" {
		id = uuid.NewString()
	}
	reqLog := base.With(logging.String("method", method), logging.String("request_id", id))
	return logging.ContextWithLogger(ctx, reqLog), reqLog
}

type loggedStream struct {
	grpclib.ServerStream
	ctx context.Context
}

func (s *loggedStream) Context() context.Context { return s.ctx }
