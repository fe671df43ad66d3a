// Package httpapi exposes the transfer service over HTTP. Owner-scoped
// routes require a bearer token from the identity provider; download routes
// are public and guarded by the transfer's own token and password.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/secureshare/secureshare/internal/logging"
	"github.com/secureshare/secureshare/internal/server/services"
)

// Server is the HTTP front of the transfer core.
type Server struct {
	address   string
	logger    logging.Logger
	transfers *services.TransferService
	downloads *services.DownloadService
	payments  *services.PaymentService
	jwtSecret []byte

	// maxUploadBytes caps a single content-upload request body.
	maxUploadBytes int64
}

// NewServer constructs the HTTP server.
func NewServer(address string, l logging.Logger, ts *services.TransferService,
	ds *services.DownloadService, ps *services.PaymentService,
	secretKey string, maxUploadBytes int64) *Server {
	return &Server{
		address:        address,
		logger:         l.With("module", "http_server"),
		transfers:      ts,
		downloads:      ds,
		payments:       ps,
		jwtSecret:      []byte(secretKey),
		maxUploadBytes: maxUploadBytes,
	}
}

// Routes assembles the chi router.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/api/ping", s.handlePing)

	// Owner-scoped operations.
	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Post("/api/transfers", s.handleRegister)
		r.Get("/api/transfers", s.handleHistory)
		r.Get("/api/transfers/{transferID}", s.handleGetTransfer)
		r.Post("/api/transfers/{transferID}/content", s.handleUploadContent)
		r.Get("/api/transfers/{transferID}/share", s.handleShareLink)
	})

	// Public download surface.
	r.Get("/api/download/{token}/info", s.handleDownloadInfo)
	r.Post("/api/download/{token}", s.handleDownload)

	// Settlement boundary for the payment provider's webhook collaborator.
	r.Post("/api/payments/settle", s.handleSettle)

	return r
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}
