package httpserver

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Trust-in-depth/BAYKUS/internal/runtime"
	"github.com/Trust-in-depth/BAYKUS/internal/server/http/controllers"
)

// Server hosts the REST and WebSocket API.
type Server struct {
	rt     *runtime.Runtime
	logger zerolog.Logger
	srv    *http.Server
	lis    net.Listener
}

// New builds the router and wraps it in a Server.
func New(rt *runtime.Runtime, logger zerolog.Logger) *Server {
	r := chi.NewRouter()

	r.Use(metricsMiddleware)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(logger))
	r.Use(chimw.Recoverer)
	r.Use(cors)

	r.Handle("/metrics", promhttp.Handler())

	reg := controllers.NewRegistry(rt, logger)
	reg.RegisterRoutes(r)

	return &Server{
		rt:     rt,
		logger: logger.With().Str("component", "http").Logger(),
		srv:    &http.Server{Handler: r},
	}
}

// Handler returns the underlying handler. Used by tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// ListenAndServe serves until ctx is canceled or the listener fails.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.lis = l
	s.logger.Info().Str("addr", l.Addr().String()).Msg("http server listening")
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(l) }()
	select {
	case <-ctx.Done():
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(cctx)
		return nil
	case err := <-errCh:
		return err
	}
}

// Close releases the listener.
func (s *Server) Close() {
	if s.lis != nil {
		_ = s.lis.Close()
	}
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-User-ID, X-Username")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
