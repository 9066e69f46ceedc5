package workflow

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/zombor/invoice-scanner/internal/capture"
)

// Server exposes a Machine over a local JSON API
type Server struct {
	machine   *Machine
	device    capture.Device
	basicAuth BasicAuth
	// allowedOrigin is the one browser origin granted CORS access
	allowedOrigin string
	mux       *http.ServeMux
	now       func() time.Time
}

// BasicAuth holds basic authentication credentials
type BasicAuth struct {
	Username string
	Password string
}

// NewServer creates a new Server with default mux. device may be nil when no
// capture device is configured; an empty allowedOrigin disables CORS.
func NewServer(machine *Machine, device capture.Device, basicAuth BasicAuth, allowedOrigin string) *Server {
	return NewServerWithMux(machine, device, basicAuth, allowedOrigin, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(machine *Machine, device capture.Device, basicAuth BasicAuth, allowedOrigin string, mux *http.ServeMux) *Server {
	s := &Server{
		machine:       machine,
		device:        device,
		basicAuth:     basicAuth,
		allowedOrigin: allowedOrigin,
		mux:           mux,
		now:           time.Now,
	}
	s.registerRoutes()
	return s
}

// authenticate checks basic auth credentials
func (s *Server) authenticate(r *http.Request) bool {
	if s.basicAuth.Username == "" && s.basicAuth.Password == "" {
		return true // No auth required if not configured
	}

	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Basic ") {
		return false
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(auth, "Basic "))
	if err != nil {
		return false
	}

	credentials := strings.SplitN(string(decoded), ":", 2)
	if len(credentials) != 2 {
		return false
	}

	return credentials[0] == s.basicAuth.Username && credentials[1] == s.basicAuth.Password
}

// corsMiddleware adds CORS headers for the allowed origin and answers
// preflight requests
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.setCORSHeaders(w, r)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAuth middleware
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authenticate(r) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Invoice Scanner"`)
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next(w, r)
	}
}

// registerRoutes registers all API routes on the server's mux
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /api/state", s.requireAuth(s.handleState))

	// Scanning
	s.mux.HandleFunc("POST /api/scan/new", s.requireAuth(s.handleNewScan))
	s.mux.HandleFunc("POST /api/scan", s.requireAuth(s.handleScan))
	s.mux.HandleFunc("POST /api/capture", s.requireAuth(s.handleCapture))

	// Review
	s.mux.HandleFunc("POST /api/draft/confirm", s.requireAuth(s.handleConfirm))
	s.mux.HandleFunc("GET /api/draft", s.requireAuth(s.handleGetDraft))
	s.mux.HandleFunc("PATCH /api/draft", s.requireAuth(s.handleEditDraft))
	s.mux.HandleFunc("DELETE /api/draft", s.requireAuth(s.handleDiscard))

	// Dashboard
	s.mux.HandleFunc("POST /api/dashboard", s.requireAuth(s.handleShowDashboard))
	s.mux.HandleFunc("GET /api/documents", s.requireAuth(s.handleListDocuments))
	s.mux.HandleFunc("DELETE /api/documents", s.requireAuth(s.handleClearDocuments))
	s.mux.HandleFunc("GET /api/summary", s.requireAuth(s.handleSummary))
	s.mux.HandleFunc("GET /api/export.csv", s.requireAuth(s.handleExport))
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.corsMiddleware(s.mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting server", "address", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ServeHTTP implements http.Handler for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.corsMiddleware(s.mux).ServeHTTP(w, r)
}
