package proxy

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/netutil"
)

// Server is an HTTP server that limits concurrent clients and shuts down gracefully.
type Server struct {
	*http.Server
	MaxClients      int
	ShutdownTimeout time.Duration
	logger          *slog.Logger
}

func NewServer(addr string, h http.Handler, maxClients int, timeout time.Duration, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		Server: &http.Server{
			Addr:              addr,
			Handler:           h,
			ReadHeaderTimeout: timeout,
			IdleTimeout:       timeout,
			ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
		},
		MaxClients:      maxClients,
		ShutdownTimeout: 5 * time.Second,
		logger:          logger.With("module", "server"),
	}
}

// ListenAndRun listens on s.Addr and runs the server until ctx is done.
func (s *Server) ListenAndRun(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	return s.Run(ctx, ln)
}

// Run serves connections accepted on ln until ctx is done, then waits for active requests to
// finish.
func (s *Server) Run(ctx context.Context, ln net.Listener) error {
	if s.MaxClients > 0 {
		ln = netutil.LimitListener(ln, s.MaxClients)
	}
	errC := make(chan error, 1)
	go func() {
		errC <- s.Server.Serve(ln)
	}()
	s.logger.Info("listening", "addr", ln.Addr().String(), "max_clients", s.MaxClients)
	select {
	case err := <-errC:
		return err
	case <-ctx.Done():
	}
	s.logger.Info("shutting down", "cause", context.Cause(ctx))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.ShutdownTimeout)
	defer cancel()
	if err := s.Server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errC; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
