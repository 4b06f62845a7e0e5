package frontend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/mikey/openfda-engine/internal/core"
	"go.uber.org/zap"
)

// maxRequestBody caps the size of an operation's JSON parameters
const maxRequestBody = 1 << 20

// HTTPFrontend exposes the operations as a JSON API
type HTTPFrontend struct {
	dispatcher *core.Dispatcher
	logger     *zap.Logger
	listenAddr string
	server     *http.Server
}

// NewHTTPFrontend creates a new HTTP frontend
func NewHTTPFrontend(dispatcher *core.Dispatcher, logger *zap.Logger, listenAddr string) *HTTPFrontend {
	return &HTTPFrontend{
		dispatcher: dispatcher,
		logger:     logger,
		listenAddr: listenAddr,
	}
}

// Router registers routes and the middleware stack
func (f *HTTPFrontend) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(f.requestIDMiddleware)
	r.Use(f.recoverMiddleware)
	r.Use(f.loggingMiddleware)

	r.Get("/healthz", f.healthz)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/operations", f.listOperations)
		r.Post("/operations/{operation}", f.callOperation)
		r.Get("/cache/stats", f.cacheStats)
	})

	return r
}

// Start starts the HTTP server
func (f *HTTPFrontend) Start() error {
	f.server = &http.Server{
		Addr:              f.listenAddr,
		Handler:           f.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute,
	}

	f.logger.Info("HTTP frontend starting", zap.String("address", f.listenAddr))

	go func() {
		if err := f.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			f.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server
func (f *HTTPFrontend) Stop() error {
	if f.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return f.server.Shutdown(ctx)
}

// Call runs an operation directly, bypassing HTTP
func (f *HTTPFrontend) Call(ctx context.Context, operation string, params core.Params) (any, error) {
	return f.dispatcher.Call(ctx, operation, params)
}

func (f *HTTPFrontend) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (f *HTTPFrontend) listOperations(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, map[string]any{"operations": f.dispatcher.Operations()})
}

func (f *HTTPFrontend) cacheStats(w http.ResponseWriter, r *http.Request) {
	f.dispatch(w, r, core.OpCacheStats, nil)
}

func (f *HTTPFrontend) callOperation(w http.ResponseWriter, r *http.Request) {
	operation := chi.URLParam(r, "operation")

	params := core.Params{}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, &core.ErrorDescriptor{
			Type:      core.ErrorTypeValidation,
			Kind:      "invalid_body",
			Message:   "failed to read request body",
			Operation: operation,
		})
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &params); err != nil {
			writeError(w, http.StatusBadRequest, &core.ErrorDescriptor{
				Type:      core.ErrorTypeValidation,
				Kind:      "invalid_body",
				Message:   "request body must be a JSON object of operation parameters",
				Operation: operation,
			})
			return
		}
	}

	f.dispatch(w, r, operation, params)
}

func (f *HTTPFrontend) dispatch(w http.ResponseWriter, r *http.Request, operation string, params core.Params) {
	result, err := f.dispatcher.Call(r.Context(), operation, params)
	if err == nil {
		writeSuccess(w, http.StatusOK, result)
		return
	}

	if errors.Is(err, core.ErrUnknownOperation) {
		writeError(w, http.StatusNotFound, &core.ErrorDescriptor{
			Type:      core.ErrorTypeValidation,
			Kind:      "unknown_operation",
			Message:   err.Error(),
			Operation: operation,
		})
		return
	}

	desc := core.Describe(err)
	status := statusFor(desc.Type)
	if status >= http.StatusInternalServerError {
		f.logger.Error("Operation failed",
			zap.String("operation", operation),
			zap.Int("status", status),
			zap.Error(err))
	}
	writeError(w, status, desc)
}

func statusFor(t core.ErrorType) int {
	switch t {
	case core.ErrorTypeValidation:
		return http.StatusBadRequest
	case core.ErrorTypeRateLimited:
		return http.StatusTooManyRequests
	case core.ErrorTypeUpstreamTransient:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

type apiError struct {
	Status string                `json:"status"`
	Error  *core.ErrorDescriptor `json:"error"`
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeSuccess(w http.ResponseWriter, statusCode int, data any) {
	writeJSON(w, statusCode, map[string]any{
		"status": "success",
		"data":   data,
	})
}

func writeError(w http.ResponseWriter, statusCode int, desc *core.ErrorDescriptor) {
	writeJSON(w, statusCode, apiError{Status: "error", Error: desc})
}

func (f *HTTPFrontend) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(core.WithRequestID(r.Context(), requestID)))
	})
}

func (f *HTTPFrontend) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				f.logger.Error("HTTP handler panicked",
					zap.String("path", r.URL.Path),
					zap.Any("panic", rec))
				writeError(w, http.StatusInternalServerError, &core.ErrorDescriptor{
					Type:    core.ErrorTypeInternal,
					Message: "internal server error",
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (f *HTTPFrontend) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		f.logger.Info("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.String("request_id", w.Header().Get("X-Request-ID")),
			zap.Duration("elapsed", time.Since(start)))
	})
}
