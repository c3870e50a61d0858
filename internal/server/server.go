package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/photo-pipeline/internal/common"
	"github.com/joseph-ayodele/photo-pipeline/internal/export"
	photosvc "github.com/joseph-ayodele/photo-pipeline/internal/services/photo"
	settingssvc "github.com/joseph-ayodele/photo-pipeline/internal/services/settings"
	"github.com/joseph-ayodele/photo-pipeline/internal/storage"
)

// ObjectReader serves stored objects back to clients.
type ObjectReader interface {
	Get(ctx context.Context, key string) (*storage.Object, error)
}

// Server exposes the photo API over HTTP.
type Server struct {
	photos         *photosvc.Service
	settings       *settingssvc.Service
	export         *export.Service
	objects        ObjectReader
	ping           func(ctx context.Context) error
	maxUploadBytes int64
	logger         *slog.Logger
}

type Option func(*Server)

// WithObjects enables GET /files/{key...}.
func WithObjects(objects ObjectReader) Option {
	return func(s *Server) { s.objects = objects }
}

// WithPing wires the /healthz readiness check.
func WithPing(ping func(ctx context.Context) error) Option {
	return func(s *Server) { s.ping = ping }
}

func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUploadBytes = n
		}
	}
}

func New(photos *photosvc.Service, settings *settingssvc.Service, exp *export.Service, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		photos:         photos,
		settings:       settings,
		export:         exp,
		maxUploadBytes: 20 << 20,
		logger:         logger,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/upload", s.handleUpload)
	mux.HandleFunc("POST /api/photos", s.handleCreatePhoto)
	mux.HandleFunc("GET /api/photos", s.handleListPhotos)
	mux.HandleFunc("GET /api/photos/export", s.handleExport)
	mux.HandleFunc("GET /api/photos/{id}", s.handleGetPhoto)
	mux.HandleFunc("PATCH /api/photos/{id}", s.handleModeratePhoto)
	mux.HandleFunc("POST /api/photos/{id}/process", s.handleProcessPhoto)
	mux.HandleFunc("GET /api/photos/{id}/status", s.handlePhotoStatus)
	mux.HandleFunc("GET /api/config", s.handleGetConfig)
	mux.HandleFunc("POST /api/config", s.handleUpdateConfig)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.objects != nil {
		mux.HandleFunc("GET /files/{key...}", s.handleFile)
	}
	return s.withRequestLog(mux)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", reqID)
		r = r.WithContext(common.WithRequestID(r.Context(), reqID))

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("http.request",
			"req_id", reqID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.ping != nil {
		if err := s.ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "database unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
