package grpc

import (
	"context"
	"crypto/subtle"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"

	grpclib "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/StarshatterWars/SSW-UE55-sub001/internal/config"
	"github.com/StarshatterWars/SSW-UE55-sub001/internal/logging"
)

// SharedSecretKey is the metadata key carrying the shared secret.
const SharedSecretKey = "x-sim-shared-secret"

// healthPrefix marks the standard health service, which stays open for probes.
const healthPrefix = "/grpc.health.v1.Health/"

// SecurityOptions turns the auth configuration into server options.
func SecurityOptions(cfg config.GRPCAuthConfig, log *logging.Logger) ([]grpclib.ServerOption, error) {
	if log == nil {
		log = logging.L()
	}
	switch cfg.Mode {
	case "", config.GRPCAuthModeNone:
		return nil, nil
	case config.GRPCAuthModeMTLS:
		creds, err := LoadMTLSCredentials(cfg.CertPath, cfg.KeyPath, cfg.ClientCAPath)
		if err != nil {
			return nil, err
		}
		log.Info("grpc mtls enabled")
		return []grpclib.ServerOption{grpclib.Creds(creds)}, nil
	case config.GRPCAuthModeSharedSecret:
		if strings.TrimSpace(cfg.SharedSecret) == "" {
			return nil, fmt.Errorf("grpc shared secret not configured")
		}
		log.Info("grpc shared-secret authentication enabled")
		return []grpclib.ServerOption{
			grpclib.ChainUnaryInterceptor(SharedSecretUnaryInterceptor(cfg.SharedSecret)),
			grpclib.ChainStreamInterceptor(SharedSecretStreamInterceptor(cfg.SharedSecret)),
		}, nil
	default:
		return nil, fmt.Errorf("unsupported grpc auth mode %q", cfg.Mode)
	}
}

// SharedSecretUnaryInterceptor rejects unary calls that lack the shared secret.
func SharedSecretUnaryInterceptor(secret string) grpclib.UnaryServerInterceptor {
	normalized := strings.TrimSpace(secret)
	return func(ctx context.Context, req any, info *grpclib.UnaryServerInfo, handler grpclib.UnaryHandler) (any, error) {
		if !strings.HasPrefix(info.FullMethod, healthPrefix) {
			if err := checkSecret(ctx, normalized); err != nil {
				return nil, err
			}
		}
		return handler(ctx, req)
	}
}

// SharedSecretStreamInterceptor rejects streams that lack the shared secret.
func SharedSecretStreamInterceptor(secret string) grpclib.StreamServerInterceptor {
	normalized := strings.TrimSpace(secret)
	return func(srv any, ss grpclib.ServerStream, info *grpclib.StreamServerInfo, handler grpclib.StreamHandler) error {
		if !strings.HasPrefix(info.FullMethod, healthPrefix) {
			if err := checkSecret(ss.Context(), normalized); err != nil {
				return err
			}
		}
		return handler(srv, ss)
	}
}

func checkSecret(ctx context.Context, secret string) error {
	if secret == "" {
		return status.Error(codes.Unauthenticated, "shared secret not configured")
	}
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return status.Error(codes.Unauthenticated, "missing metadata")
	}
	candidate := extractSharedSecret(md)
	if candidate == "" {
		return status.Error(codes.Unauthenticated, "missing shared secret")
	}
	if subtle.ConstantTimeCompare([]byte(candidate), []byte(secret)) != 1 {
		return status.Error(codes.Unauthenticated, "invalid shared secret")
	}
	return nil
}

func extractSharedSecret(md metadata.MD) string {
	for _, value := range md.Get(SharedSecretKey) {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	for _, value := range md.Get("authorization") {
		if len(value) > 7 && strings.EqualFold(value[:7], "bearer ") {
			if token := strings.TrimSpace(value[7:]); token != "" {
				return token
			}
		}
	}
	return ""
}

// SharedSecret attaches the secret to every call made on a client connection.
type SharedSecret string

// GetRequestMetadata implements credentials.PerRPCCredentials.
func (s SharedSecret) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return map[string]string{SharedSecretKey: string(s)}, nil
}

// RequireTransportSecurity implements credentials.PerRPCCredentials.
func (SharedSecret) RequireTransportSecurity() bool { return false }

// LoadMTLSCredentials builds server credentials that require client certificates signed by caPath.
func LoadMTLSCredentials(certPath, keyPath, caPath string) (credentials.TransportCredentials, error) {
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("load server keypair: %w", err)
	}
	caBytes, err := os.ReadFile(caPath)
	if err != nil {
		return nil, fmt.Errorf("read client ca: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caBytes) {
		return nil, fmt.Errorf("failed to parse client ca bundle")
	}
	return credentials.NewTLS(&tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientAuth:   tls.RequireAndVerifyClientCert,
		ClientCAs:    pool,
		MinVersion:   tls.VersionTLS12,
	}), nil
}

var _ credentials.PerRPCCredentials = SharedSecret("")
