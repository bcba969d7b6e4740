// Package devserver is a local stand-in for the assistant backend. It serves
// the chat endpoints from memory and streams canned replies in fragments,
// which is enough to drive the client end to end without the real service.
package devserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/ultronhq/ultron/internal/models"
)

// Options configures the development backend
type Options struct {
	Logger zerolog.Logger
	// Prefix mounts the chat routes; defaults to /chat
	Prefix string
	// FragmentDelay is the pause between streamed fragments
	FragmentDelay time.Duration
	// WordsPerFragment controls how much text each fragment carries
	WordsPerFragment int
	// UploadDir stores uploaded files; defaults to a directory under os.TempDir
	UploadDir string
	Reply     ReplyFunc
	Now       func() time.Time
}

// Server serves the chat API from memory
type Server struct {
	opts   Options
	store  *store
	router chi.Router
}

// New creates a server and its upload directory
func New(opts Options) (*Server, error) {
	if opts.Prefix == "" {
		opts.Prefix = models.DefaultAPIPrefix
	}
	if opts.WordsPerFragment <= 0 {
		opts.WordsPerFragment = 2
	}
	if opts.UploadDir == "" {
		opts.UploadDir = filepath.Join(os.TempDir(), "ultron-uploads")
	}
	if opts.Reply == nil {
		opts.Reply = DefaultReply
	}
	if err := os.MkdirAll(opts.UploadDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	s := &Server{
		opts:  opts,
		store: newStore(opts.Now),
	}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(s.opts.Logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Heartbeat("/health"))

	r.Route(s.opts.Prefix, func(r chi.Router) {
		r.Get("/sessions", s.listSessions)
		r.Post("/sessions", s.createSession)
		r.Delete("/sessions/all", s.clearAll)
		r.Get("/sessions/{id}/messages", s.listMessages)
		r.Post("/stream", s.stream)
		r.Post("/", s.send)
		r.Post("/upload", s.upload)
	})
	r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(s.opts.UploadDir))))

	return r
}

// Handler returns the HTTP handler, for httptest or embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.opts.Logger.Info().
		Str("addr", ln.Addr().String()).
		Str("prefix", s.opts.Prefix).
		Msg("dev server listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.opts.Logger.Info().Msg("dev server stopped")
	return nil
}
