package realtime

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Server hosts the gateway on its own listener. It satisfies go-zero's
// service.Service so it runs in the same service group as the REST server.
type Server struct {
	gw  *Gateway
	srv *http.Server
}

func NewServer(cfg Config, gw *Gateway) *Server {
	mux := http.NewServeMux()
	path := cfg.Path
	if path == "" {
		path = "/ws"
	}
	mux.Handle(path, otelhttp.NewHandler(gw, "realtime.upgrade"))
	return &Server{
		gw: gw,
		srv: &http.Server{
			Addr:              cfg.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

func (s *Server) Start() {
	logx.Infof("realtime gateway listening on %s", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logx.Errorf("realtime gateway: %v", err)
	}
}

func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.gw.Close()
	if err := s.srv.Shutdown(ctx); err != nil {
		logx.Errorf("realtime gateway shutdown: %v", err)
	}
}
