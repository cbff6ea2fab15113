// Package server hosts the live template playground: a page that edits the
// source and target templates, JSON endpoints that compile and apply them,
// and a websocket that pushes transform results and watch-mode conversions.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/conneroisu/reshape/internal/config"
	"github.com/conneroisu/reshape/internal/logging"
	"github.com/conneroisu/reshape/internal/pipeline"
	"github.com/conneroisu/reshape/internal/template"
)

// maxBodySize bounds request bodies on the JSON endpoints.
const maxBodySize = 4 << 20

// UpdateMessage is pushed to websocket clients outside of a request/reply.
type UpdateMessage struct {
	Type      string    `json:"type"`
	Path      string    `json:"path,omitempty"`
	Output    string    `json:"output,omitempty"`
	Written   int       `json:"written,omitempty"`
	Failed    int       `json:"failed,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Server is the playground HTTP server.
type Server struct {
	config     *config.Config
	logger     logging.Logger
	evaluator  *Evaluator
	hub        *Hub
	router     *chi.Mux
	httpServer *http.Server
	mu         sync.Mutex
}

// New creates a Server for cfg. A nil logger discards output.
func New(cfg *config.Config, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.Nop()
	}
	logger = logger.WithComponent("server")

	s := &Server{
		config: cfg,
		logger: logger,
		evaluator: NewEvaluator(
			template.SourceOptions{LooseWhitespace: cfg.Input.LooseWhitespace},
			pipeline.Options{CommentPrefix: cfg.Input.CommentPrefix, SkipEmpty: cfg.Input.SkipEmpty},
		),
		hub:    newHub(logger),
		router: chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(securityHeaders)
	s.router.Use(s.cors)
}

func (s *Server) setupRoutes() {
	s.router.Get("/", templ.Handler(playgroundPage(s.config)).ServeHTTP)
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/ws", s.handleWebSocket)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/compile", s.handleCompile)
		r.Post("/transform", s.handleTransform)
	})
}

// Router returns the HTTP handler, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Hub returns the websocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start runs the hub and serves HTTP until ctx is cancelled, then shuts the
// listener down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	s.httpServer = &http.Server{
		Addr:              s.config.Server.Address(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	srv := s.httpServer
	s.mu.Unlock()

	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go s.hub.run(hubCtx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "playground listening", "address", "http://"+srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	}
}

// Shutdown stops the HTTP listener. It is a no-op before Start.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	s.logger.Info(ctx, "shutting down playground")
	return srv.Shutdown(ctx)
}

// NotifyConversion tells connected clients that a watched file was
// converted, or failed to convert.
func (s *Server) NotifyConversion(in, out string, res pipeline.Result, err error) {
	msg := UpdateMessage{
		Type:      "converted",
		Path:      in,
		Output:    out,
		Written:   res.Written,
		Failed:    res.Failed,
		Timestamp: time.Now(),
	}
	if err != nil {
		msg.Type = "conversion_failed"
		msg.Error = err.Error()
	}

	if berr := s.hub.Broadcast(msg); berr != nil {
		s.logger.Debug(context.Background(), "conversion not broadcast", "path", in, "reason", berr.Error())
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"clients": s.hub.ClientCount(),
	})
}

func (s *Server) handleCompile(w http.ResponseWriter, r *http.Request) {
	var req CompileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	resp, _ := s.evaluator.Compile(req)
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTransform(w http.ResponseWriter, r *http.Request) {
	var req TransformRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	respondJSON(w, http.StatusOK, s.evaluator.Transform(req))
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// ErrorResponse is the JSON body of a failed API request.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, status int) {
	requestID := middleware.GetReqID(r.Context())
	s.logger.Warn(r.Context(), err, "request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"request_id", requestID,
	)
	respondJSON(w, status, ErrorResponse{Error: err.Error(), RequestID: requestID})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Debug(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// cors allows the configured origins to call the JSON endpoints.
func (s *Server) cors(next http.Handler) http.Handler {
	allowed := make(map[string]bool, len(s.config.Server.AllowedOrigins))
	for _, o := range s.config.Server.AllowedOrigins {
		allowed[o] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && allowed[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.Header().Add("Vary", "Origin")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		// The playground page carries its script and style inline.
		w.Header().Set("Content-Security-Policy",
			"default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; connect-src 'self' ws: wss:")
		next.ServeHTTP(w, r)
	})
}
