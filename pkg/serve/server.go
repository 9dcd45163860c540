package serve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"
)

// Options configures a Server.
type Options struct {
	Host    string
	Port    int          // 0 picks a free port
	Root    string       // directory served at /
	Metrics http.Handler // served at /metrics when non-nil
}

// Server is the development HTTP server.
type Server struct {
	hub  *Hub
	srv  *http.Server
	ln   net.Listener
	done chan error
}

// New creates a server for opts that announces reloads through hub.
func New(opts Options, hub *Hub) *Server {
	mux := http.NewServeMux()
	mux.Handle("/livereload", hub)
	mux.HandleFunc(scriptPath, serveClientScript)
	if opts.Metrics != nil {
		mux.Handle("/metrics", opts.Metrics)
	}
	mux.Handle("/", injectScript(noCache(http.FileServer(http.Dir(opts.Root)))))

	return &Server{
		hub: hub,
		srv: &http.Server{
			Addr:              net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port)),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
			// Long-lived SSE connections need no write timeout.
			IdleTimeout: 300 * time.Second,
		},
	}
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Start listens and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.srv.Addr, err)
	}
	s.ln = ln
	s.done = make(chan error, 1)
	go func() {
		err := s.srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		s.done <- err
	}()
	slog.Info("dev server listening", "url", "http://"+ln.Addr().String())
	return nil
}

// Addr returns the listening address once started.
func (s *Server) Addr() string {
	if s.ln == nil {
		return s.srv.Addr
	}
	return s.ln.Addr().String()
}

// Shutdown disconnects live-reload clients and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Shutdown()
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down dev server: %w", err)
	}
	if s.done != nil {
		return <-s.done
	}
	return nil
}

func noCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache")
		next.ServeHTTP(w, r)
	})
}
