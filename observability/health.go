// Package observability exposes the admin endpoint of a chat endpoint.
package observability

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"

	grpc3 "github.com/mama165/sdk-go/grpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ChatService is the health service name reported next to the overall status.
const ChatService = "chat"

// AdminServer serves the standard gRPC health service on its own port.
type AdminServer struct {
	log    *slog.Logger
	ln     net.Listener
	server *grpc.Server
	health *health.Server
}

// NewAdminServer binds the admin endpoint. Both the overall and the chat
// status start as SERVING.
func NewAdminServer(log *slog.Logger, address string) (*AdminServer, error) {
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", address, err)
	}
	s := grpc.NewServer(grpc.ChainUnaryInterceptor(grpc3.UnaryLoggingInterceptor(log)))
	h := health.NewServer()
	healthpb.RegisterHealthServer(s, h)
	h.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	h.SetServingStatus(ChatService, healthpb.HealthCheckResponse_SERVING)
	return &AdminServer{log: log, ln: ln, server: s, health: h}, nil
}

func (a *AdminServer) Addr() net.Addr {
	return a.ln.Addr()
}

// Run serves until ctx is done, then reports NOT_SERVING and stops gracefully.
func (a *AdminServer) Run(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		a.log.Info("Starting admin gRPC server", "address", a.ln.Addr().String())
		if err := a.server.Serve(a.ln); err != nil && !stderrors.Is(err, grpc.ErrServerStopped) {
			errChan <- fmt.Errorf("admin gRPC server error: %w", err)
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		a.health.Shutdown()
		a.server.GracefulStop()
		return nil
	case err, ok := <-errChan:
		if !ok {
			return nil
		}
		return err
	}
}
