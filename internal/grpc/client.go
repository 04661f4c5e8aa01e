package grpc

import (
	"context"

	grpclib "google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls the status service over an existing connection.
type Client struct {
	conn grpclib.ClientConnInterface
}

// NewClient wraps conn.
func NewClient(conn grpclib.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// GetStatus fetches the mission status.
func (c *Client) GetStatus(ctx context.Context, opts ...grpclib.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, methodGetStatus, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// GetShip fetches one ship by name.
func (c *Client) GetShip(ctx context.Context, name string, opts ...grpclib.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(map[string]any{"name": name})
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, methodGetShip, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// RadioWatch is the client side of WatchRadio.
type RadioWatch struct {
	stream grpclib.ClientStream
}

// Recv blocks for the next radio message.
func (w *RadioWatch) Recv() (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := w.stream.RecvMsg(out); err != nil {
		return nil, err
	}
	return out, nil
}

// WatchRadio opens a radio stream. Empty subscriber or element values are omitted.
func (c *Client) WatchRadio(ctx context.Context, subscriber, element string, opts ...grpclib.CallOption) (*RadioWatch, error) {
	fields := map[string]any{}
	if subscriber != "" {
		fields["subscriber"] = subscriber
	}
	if element != "" {
		fields["element"] = element
	}
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	stream, err := c.conn.NewStream(ctx, &statusServiceDesc.Streams[0], methodWatchRadio, opts...)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &RadioWatch{stream: stream}, nil
}
