package grpc

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync/atomic"

	grpclib "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/StarshatterWars/SSW-UE55-sub001/internal/hud"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/logging"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/radio"
)

// ServiceName is the fully qualified name of the status service.
const ServiceName = "ssw.sim.v1.SimStatus"

const (
	methodGetStatus  = "/" + ServiceName + "/GetStatus"
	methodGetShip    = "/" + ServiceName + "/GetShip"
	methodWatchRadio = "/" + ServiceName + "/WatchRadio"
)

// StatusServer is the server API of the status service. Messages are well-known
// protobuf types so the service needs no generated code.
type StatusServer interface {
	GetStatus(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	GetShip(context.Context, *structpb.Struct) (*structpb.Struct, error)
	WatchRadio(*structpb.Struct, RadioStream) error
}

// RadioStream is the server side of WatchRadio.
type RadioStream interface {
	Send(*structpb.Struct) error
	grpclib.ServerStream
}

// Service serves the status board and relays radio traffic.
type Service struct {
	board  *Board
	radio  *radio.Traffic
	log    *logging.Logger
	nextID atomic.Uint64
}

// NewService wires the status service to its board and radio bus.
func NewService(board *Board, traffic *radio.Traffic, log *logging.Logger) *Service {
	if log == nil {
		log = logging.L()
	}
	return &Service{board: board, radio: traffic, log: log.With(logging.String("component", "grpc"))}
}

// GetStatus returns the last published mission status.
func (s *Service) GetStatus(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	if s == nil || s.board == nil {
		return nil, status.Error(codes.FailedPrecondition, "status unavailable")
	}
	st := s.board.Status()
	ships := make([]any, 0, len(st.Snapshot.Ships))
	for _, v := range st.Snapshot.Ships {
		ships = append(ships, shipValue(v))
	}
	out, err := structpb.NewStruct(map[string]any{
		"mission":    st.Mission,
		"seed":       st.Seed,
		"active":     st.Active,
		"frame":      float64(st.Frame),
		"game_ms":    float64(st.Snapshot.GameMs),
		"mission_ms": float64(st.Snapshot.Mission),
		"region":     st.Snapshot.Region,
		"ships":      ships,
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode status: %v", err)
	}
	return out, nil
}

// GetShip returns one ship by {"name": ...}.
func (s *Service) GetShip(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s == nil || s.board == nil {
		return nil, status.Error(codes.FailedPrecondition, "status unavailable")
	}
	name := strings.TrimSpace(req.GetFields()["name"].GetStringValue())
	if name == "" {
		return nil, status.Error(codes.InvalidArgument, "name is required")
	}
	view, ok := s.board.Ship(name)
	if !ok {
		return nil, status.Errorf(codes.NotFound, "ship %q not in the active region", name)
	}
	out, err := structpb.NewStruct(shipValue(view))
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode ship: %v", err)
	}
	return out, nil
}

// WatchRadio streams radio messages to the caller. A stable {"subscriber": id}
// resumes after the last acknowledged message; {"element": name} filters
// traffic to one element and broadcasts.
func (s *Service) WatchRadio(req *structpb.Struct, stream RadioStream) error {
	if s == nil || s.radio == nil {
		return status.Error(codes.FailedPrecondition, "radio unavailable")
	}
	ctx := stream.Context()
	id := strings.TrimSpace(req.GetFields()["subscriber"].GetStringValue())
	if id == "" {
		id = "grpc-" + strconv.FormatUint(s.nextID.Add(1), 10)
	}
	element := strings.TrimSpace(req.GetFields()["element"].GetStringValue())

	//1.- Subscribe so unacknowledged traffic replays before live messages.
	sub, err := s.radio.Subscribe(ctx, id, 64)
	if err != nil {
		return status.Errorf(codes.Internal, "subscribe radio: %v", err)
	}
	defer sub.Close()
	s.log.Info("radio watch started", logging.String("subscriber", id), logging.String("element", element))

	for {
		select {
		case <-ctx.Done():
			//2.- Surface cancellation so clients know whether to retry.
			if errors.Is(ctx.Err(), context.Canceled) {
				return status.Error(codes.Canceled, "stream cancelled")
			}
			return status.Error(codes.DeadlineExceeded, "stream deadline exceeded")
		case msg, ok := <-sub.Events():
			if !ok {
				return nil
			}
			if element == "" || msg.Broadcast() || msg.Element == element {
				frame, err := structpb.NewStruct(messageValue(msg))
				if err != nil {
					return status.Errorf(codes.Internal, "encode radio: %v", err)
				}
				if err := stream.Send(frame); err != nil {
					return err
				}
			}
			//3.- Filtered messages are acknowledged too so they never replay.
			if err := sub.Ack(msg.Sequence); err != nil {
				s.log.Debug("radio ack skipped", logging.String("subscriber", id), logging.Error(err))
			}
		}
	}
}

func shipValue(v hud.ShipView) map[string]any {
	out := map[string]any{
		"name":      v.Name,
		"class":     v.Class,
		"iff":       float64(v.IFF),
		"pos":       []any{v.Position[0], v.Position[1], v.Position[2]},
		"vel":       []any{v.Velocity[0], v.Velocity[1], v.Velocity[2]},
		"integrity": v.Integrity,
		"shield":    v.Shield,
		"dying":     v.Dying,
	}
	if v.Director != "" {
		out["director"] = v.Director
	}
	if v.Target != "" {
		out["target"] = v.Target
	}
	return out
}

func messageValue(m radio.Message) map[string]any {
	return map[string]any{
		"sequence":   float64(m.Sequence),
		"action":     m.Action.String(),
		"sender":     m.Sender,
		"sender_iff": float64(m.SenderIFF),
		"recipient":  m.Recipient,
		"element":    m.Element,
		"target":     m.Target,
		"location":   []any{m.Location.X, m.Location.Y, m.Location.Z},
		"info":       m.Info,
		"mission_ms": float64(m.MissionTime.Milliseconds()),
	}
}

// RegisterStatusServer attaches srv to the gRPC server.
func RegisterStatusServer(s grpclib.ServiceRegistrar, srv StatusServer) {
	s.RegisterService(&statusServiceDesc, srv)
}

var statusServiceDesc = grpclib.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*StatusServer)(nil),
	Methods: []grpclib.MethodDesc{
		{MethodName: "GetStatus", Handler: getStatusHandler},
		{MethodName: "GetShip", Handler: getShipHandler},
	},
	Streams: []grpclib.StreamDesc{
		{StreamName: "WatchRadio", Handler: watchRadioHandler, ServerStreams: true},
	},
	Metadata: "ssw/sim/v1/status.proto",
}

func getStatusHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpclib.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(StatusServer).GetStatus(ctx, in)
	}
	info := &grpclib.UnaryServerInfo{Server: srv, FullMethod: methodGetStatus}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(StatusServer).GetStatus(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func getShipHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpclib.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(StatusServer).GetShip(ctx, in)
	}
	info := &grpclib.UnaryServerInfo{Server: srv, FullMethod: methodGetShip}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(StatusServer).GetShip(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func watchRadioHandler(srv any, stream grpclib.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(StatusServer).WatchRadio(in, &radioStream{stream})
}

type radioStream struct {
	grpclib.ServerStream
}

func (s *radioStream) Send(m *structpb.Struct) error { return s.ServerStream.SendMsg(m) }

var _ StatusServer = (*Service)(nil)
