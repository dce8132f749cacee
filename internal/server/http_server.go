package server

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
)

func (s *serverImpl) initHTTPServer() {
	// An empty host binds every interface.
	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.HTTPPort)),
		Handler:      s.wrapMiddleware(s.httpMux),
		ReadTimeout:  s.cfg.HTTPReadTimeout,
		WriteTimeout: s.cfg.HTTPWriteTimeout,
		IdleTimeout:  s.cfg.HTTPIdleTimeout,
	}
}

// runHTTPServer listens and serves until Shutdown. Listening before
// serving means the logged address is the bound one even when the
// configured port was 0.
func (s *serverImpl) runHTTPServer(errChan chan<- error) {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		errChan <- fmt.Errorf("http listen error: %w", err)
		return
	}

	s.logger.Info("Starting HTTP server", "addr", ln.Addr().String())
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		errChan <- fmt.Errorf("http server error: %w", err)
	}
}
