package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/userdash/pkg/logger"
)

const shutdownTimeout = 5 * time.Second

// Server runs the status router on a local address.
type Server struct {
	http *http.Server
	log  *zap.Logger
	errs chan error
}

// Start binds addr and serves handler in the background. The listener is
// opened synchronously so address errors surface immediately.
func Start(addr string, handler http.Handler) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	s := &Server{
		http: &http.Server{Addr: ln.Addr().String(), Handler: handler, ReadHeaderTimeout: 5 * time.Second},
		log:  logger.WithModule("status"),
		errs: make(chan error, 1),
	}

	go func() {
		s.log.Info("status server listening", zap.String("addr", ln.Addr().String()))
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.errs <- err
		}
		close(s.errs)
	}()

	return s, nil
}

// Addr returns the bound address.
func (s *Server) Addr() string {
	return s.http.Addr
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := s.http.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	if err, ok := <-s.errs; ok && err != nil {
		return err
	}
	s.log.Info("status server stopped")
	return nil
}
