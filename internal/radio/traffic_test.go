package radio

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestTrafficDeliverAndAck(t *testing.T) {
	//1.- Arrange a bus and subscribe a listener.
	traffic := NewTraffic(Config{Retain: 8})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := traffic.Subscribe(ctx, "hud", 4)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	//2.- Transmit an engaging call and a splash call.
	if _, err := traffic.Transmit(Message{Action: CallEngaging, Sender: "Viper 1", Target: "Raider 2"}); err != nil {
		t.Fatalf("transmit failed: %v", err)
	}
	if _, err := traffic.Transmit(Message{Action: Splash1, Sender: "Viper 1"}); err != nil {
		t.Fatalf("transmit failed: %v", err)
	}

	//3.- Assert sequential delivery and sequential acknowledgement.
	for expected := uint64(1); expected <= 2; expected++ {
		select {
		case msg := <-sub.Events():
			if msg.Sequence != expected {
				t.Fatalf("expected sequence %d, got %d", expected, msg.Sequence)
			}
			if err := sub.Ack(msg.Sequence); err != nil {
				t.Fatalf("ack failed: %v", err)
			}
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for message %d", expected)
		}
	}
	if traffic.Sent() != 2 {
		t.Fatalf("expected two sent messages, got %d", traffic.Sent())
	}
}

func TestTrafficRejectsOutOfOrderAck(t *testing.T) {
	traffic := NewTraffic(Config{})
	sub, err := traffic.Subscribe(context.Background(), "replay", 4)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	_, _ = traffic.Transmit(Message{Action: Attack})
	_, _ = traffic.Transmit(Message{Action: FormUp})

	if err := sub.Ack(2); !errors.Is(err, ErrOutOfOrderAck) {
		t.Fatalf("expected out of order ack error, got %v", err)
	}
	if err := sub.Ack(1); err != nil {
		t.Fatalf("expected in order ack to succeed, got %v", err)
	}
}

func TestTrafficReplaysAfterResubscribe(t *testing.T) {
	traffic := NewTraffic(Config{Retain: 4})
	sub, err := traffic.Subscribe(context.Background(), "recorder", 1)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	sub.Close()

	//1.- Messages sent while the subscriber is away are replayed on return.
	_, _ = traffic.Transmit(Message{Action: WepFree})
	again, err := traffic.Subscribe(context.Background(), "recorder", 4)
	if err != nil {
		t.Fatalf("resubscribe failed: %v", err)
	}
	select {
	case msg := <-again.Events():
		if msg.Action != WepFree {
			t.Fatalf("expected replayed weapons free, got %v", msg.Action)
		}
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for replay")
	}
}

func TestTransmitRejectsEmptyMessage(t *testing.T) {
	if _, err := NewTraffic(Config{}).Transmit(Message{}); err == nil {
		t.Fatalf("expected empty message to be rejected")
	}
	var nilTraffic *Traffic
	if _, err := nilTraffic.Transmit(Message{Action: Ack}); !errors.Is(err, ErrNilTraffic) {
		t.Fatalf("expected nil traffic error, got %v", err)
	}
}

func TestSplashCallCycles(t *testing.T) {
	if SplashCall(0) != Splash1 || SplashCall(6) != Splash7 || SplashCall(7) != Splash1 {
		t.Fatalf("expected splash calls to cycle through seven values")
	}
	if !Attack.IsOrder() || CallEngaging.IsOrder() || Ack.IsOrder() {
		t.Fatalf("unexpected order classification")
	}
}
