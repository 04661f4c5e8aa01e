package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	grpclib "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/StarshatterWars/SSW-UE55-sub001/internal/hud"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/logging"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/radio"
)

func startServer(t *testing.T, traffic *radio.Traffic) (*Server, *grpclib.ClientConn) {
	t.Helper()
	srv := NewServer(ServerOptions{Logger: logging.NewTestLogger(), Radio: traffic})
	lis := bufconn.Listen(1 << 20)
	go srv.Serve(lis)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Stop(ctx)
	})

	conn, err := grpclib.NewClient("passthrough:///bufnet",
		grpclib.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpclib.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return srv, conn
}

func TestStatusServiceServesBoard(t *testing.T) {
	srv, conn := startServer(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health := healthpb.NewHealthClient(conn)

	//1.- Without a mission the service reports NOT_SERVING.
	resp, err := health.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil || resp.GetStatus() != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("expected NOT_SERVING before the mission, got %v (%v)", resp.GetStatus(), err)
	}

	srv.Board().Update(Status{
		Mission: "Picket",
		Seed:    "alpha",
		Active:  true,
		Frame:   42,
		Snapshot: hud.Snapshot{Frame: 42, GameMs: 1400, Region: "Alpha", Ships: []hud.ShipView{
			{Name: "Viper 1", Class: "Fighter", IFF: 1, Target: "Bandit 1", Integrity: 90},
			{Name: "Bandit 1", Class: "Fighter", IFF: 2},
		}},
	})
	resp, err = health.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil || resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("expected SERVING during the mission, got %v (%v)", resp.GetStatus(), err)
	}

	//2.- Status and ship lookups travel zstd compressed.
	client := NewClient(conn)
	st, err := client.GetStatus(ctx, grpclib.UseCompressor(ZstdName))
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	fields := st.GetFields()
	if fields["mission"].GetStringValue() != "Picket" || fields["frame"].GetNumberValue() != 42 || len(fields["ships"].GetListValue().GetValues()) != 2 {
		t.Fatalf("unexpected status %v", st)
	}

	ship, err := client.GetShip(ctx, "Viper 1", grpclib.UseCompressor(ZstdName))
	if err != nil {
		t.Fatalf("GetShip: %v", err)
	}
	if ship.GetFields()["target"].GetStringValue() != "Bandit 1" || ship.GetFields()["integrity"].GetNumberValue() != 90 {
		t.Fatalf("unexpected ship %v", ship)
	}
	if _, err := client.GetShip(ctx, "Ghost"); status.Code(err) != codes.NotFound {
		t.Fatalf("expected NotFound for an unknown ship, got %v", err)
	}
	if _, err := client.GetShip(ctx, " "); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument for an empty name, got %v", err)
	}
}

func TestWatchRadioFiltersByElement(t *testing.T) {
	traffic := radio.NewTraffic(radio.Config{})
	for _, msg := range []radio.Message{
		{Action: radio.Attack, Sender: "Blue 1", Element: "Blue", Target: "Bandit 1"},
		{Action: radio.RTB, Sender: "Red 1", Element: "Red"},
		{Info: "Splash one", Sender: "Blue 2"},
	} {
		if _, err := traffic.Transmit(msg); err != nil {
			t.Fatalf("transmit: %v", err)
		}
	}
	_, conn := startServer(t, traffic)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	//1.- A fresh subscriber replays the retained traffic, minus other elements.
	watch, err := NewClient(conn).WatchRadio(ctx, "hud-blue", "Blue")
	if err != nil {
		t.Fatalf("WatchRadio: %v", err)
	}
	first, err := watch.Recv()
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if first.GetFields()["action"].GetStringValue() != radio.Attack.String() || first.GetFields()["sequence"].GetNumberValue() != 1 {
		t.Fatalf("unexpected first message %v", first)
	}
	second, err := watch.Recv()
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if second.GetFields()["info"].GetStringValue() != "Splash one" || second.GetFields()["sequence"].GetNumberValue() != 3 {
		t.Fatalf("expected the broadcast to follow, got %v", second)
	}

	//2.- Cancelling ends the stream.
	cancel()
	if _, err := watch.Recv(); status.Code(err) != codes.Canceled {
		t.Fatalf("expected Canceled after cancel, got %v", err)
	}
}

func TestWatchRadioWithoutTraffic(t *testing.T) {
	_, conn := startServer(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	watch, err := NewClient(conn).WatchRadio(ctx, "", "")
	if err != nil {
		t.Fatalf("WatchRadio: %v", err)
	}
	if _, err := watch.Recv(); status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("expected FailedPrecondition without a radio bus, got %v", err)
	}
}

func TestBoardCopiesShips(t *testing.T) {
	board := NewBoard(nil)
	board.Update(Status{Snapshot: hud.Snapshot{Ships: []hud.ShipView{{Name: "Viper 1"}}}})
	st := board.Status()
	st.Snapshot.Ships[0].Name = "Mutated"
	if v, ok := board.Ship("Viper 1"); !ok || v.Name != "Viper 1" {
		t.Fatalf("expected the board to keep its own copy")
	}
	if st.Updated.IsZero() {
		t.Fatalf("expected Update to stamp the time")
	}
}
