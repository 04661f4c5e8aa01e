package main

import "testing"

func TestReachableHostPort(t *testing.T) {
	cases := map[string]string{
		":43180":              "localhost:43180",
		"0.0.0.0:9000":        "localhost:9000",
		"[::]:43181":          "localhost:43181",
		"127.0.0.1:43180":     "127.0.0.1:43180",
		"[2001:db8::1]:43180": "[2001:db8::1]:43180",
		"sim.local:8080":      "sim.local:8080",
		"":                    "localhost",
	}
	for in, want := range cases {
		if got := reachableHostPort(in); got != want {
			t.Fatalf("reachableHostPort(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestSurfacesForHost(t *testing.T) {
	s := surfacesFor(":43180", "0.0.0.0:43181", false)
	if s.Admin != "http://localhost:43180" || s.HUD != "ws://localhost:43180/hud" {
		t.Fatalf("unexpected admin surfaces %+v", s)
	}
	if s.Pass != "http://localhost:43180/hud/pass" || s.Health != "http://localhost:43180/readyz" {
		t.Fatalf("unexpected admin routes %+v", s)
	}
	if s.GRPC != "localhost:43181" {
		t.Fatalf("expected a dialable grpc target, got %q", s.GRPC)
	}

	//1.- TLS switches both the http and websocket schemes.
	if got := surfacesFor("[::1]:443", "", true); got.Admin != "https://[::1]:443" || got.HUD != "wss://[::1]:443/hud" {
		t.Fatalf("unexpected tls surfaces %+v", got)
	}
}
