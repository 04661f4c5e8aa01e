package main

import (
	"net"
	"net/url"
	"strings"
)

// surfaces are the operator-facing addresses of a running sim host.
type surfaces struct {
	Admin  string
	HUD    string
	GRPC   string
	Pass   string
	Health string
}

// surfacesFor derives the operator URLs from the bound admin and gRPC listener addresses.
func surfacesFor(adminAddr, grpcAddr string, tls bool) surfaces {
	admin := reachableHostPort(adminAddr)
	httpScheme, wsScheme := "http", "ws"
	if tls {
		httpScheme, wsScheme = "https", "wss"
	}
	return surfaces{
		Admin:  (&url.URL{Scheme: httpScheme, Host: admin}).String(),
		HUD:    (&url.URL{Scheme: wsScheme, Host: admin, Path: "/hud"}).String(),
		Pass:   (&url.URL{Scheme: httpScheme, Host: admin, Path: "/hud/pass"}).String(),
		Health: (&url.URL{Scheme: httpScheme, Host: admin, Path: "/readyz"}).String(),
		GRPC:   reachableHostPort(grpcAddr),
	}
}

// reachableHostPort swaps wildcard or missing hosts for localhost so the
// address can be dialed from the same machine.
func reachableHostPort(address string) string {
	trimmed := strings.TrimSpace(address)
	if trimmed == "" {
		return "localhost"
	}
	host, port, err := net.SplitHostPort(trimmed)
	if err != nil {
		return trimmed
	}
	if ip := net.ParseIP(strings.Trim(host, "[]")); host == "" || (ip != nil && ip.IsUnspecified()) {
		host = "localhost"
	}
	return net.JoinHostPort(host, port)
}
