// SPDX-License-Identifier: MIT

// Package server exposes the classifier over HTTP.
//
// Routes:
//
//   - POST /classify: body is a WAV or MP3 file, response is the JSON result.
//   - GET /ws: WebSocket stream of every result, when a broadcaster is set.
//   - GET /metrics: Prometheus scrape endpoint.
//   - GET /healthz: liveness probe.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"meowsense/internal/audio"
	"meowsense/internal/classify"
	applog "meowsense/internal/log"
	"meowsense/internal/observe"
	"meowsense/internal/transport"
)

// Classifier is the subset of *classify.Classifier the server needs.
type Classifier interface {
	Classify(ctx context.Context, sig audio.Signal) (classify.Result, error)
}

// Options configures a Server. Zero values get defaults.
type Options struct {
	MaxUploadBytes  int64
	ShutdownTimeout time.Duration

	// Publisher receives every successful result.
	Publisher transport.Transport
	// WebSocket is mounted at /ws when set.
	WebSocket http.Handler
	// Metrics defaults to observe.DefaultMetrics.
	Metrics *observe.Metrics
	// MetricsHandler defaults to promhttp.Handler.
	MetricsHandler http.Handler
}

// Server routes HTTP requests to the classifier.
type Server struct {
	classifier Classifier
	opts       Options
	handler    http.Handler
}

type errorBody struct {
	Error string `json:"error"`
	ID    string `json:"id,omitempty"`
}

// New builds the route table.
func New(c Classifier, opts Options) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 16 << 20
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	if opts.Metrics == nil {
		opts.Metrics = observe.DefaultMetrics()
	}
	if opts.MetricsHandler == nil {
		opts.MetricsHandler = promhttp.Handler()
	}

	s := &Server{classifier: c, opts: opts}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /classify", s.handleClassify)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.Handle("GET /metrics", opts.MetricsHandler)
	if opts.WebSocket != nil {
		mux.Handle("GET /ws", opts.WebSocket)
	}
	s.handler = observe.Middleware(opts.Metrics)(mux)
	return s
}

// Handler returns the instrumented route table.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully within the configured timeout.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		applog.Infof("Server: listening on %s", ln.Addr())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		applog.Infof("Server: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	id := uuid.NewString()
	w.Header().Set("X-Request-ID", id)
	logger := observe.Logger(r.Context()).With(applog.Fields{"request_id": id})

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{
				Error: fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit),
				ID:    id,
			})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "failed to read upload: " + err.Error(), ID: id})
		return
	}

	sig, err := audio.Decode(bytes.NewReader(data))
	if err != nil {
		logger.Warnf("Rejected upload: %v", err)
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), ID: id})
		return
	}

	res, err := s.classifier.Classify(r.Context(), sig)
	switch {
	case errors.Is(err, classify.ErrInference):
		logger.Errorf("Classification failed: %v", err)
		writeJSON(w, http.StatusBadGateway, errorBody{Error: err.Error(), ID: id})
		return
	case errors.Is(err, audio.ErrEmptySignal), errors.Is(err, audio.ErrInvalidRate):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), ID: id})
		return
	case err != nil:
		logger.Errorf("Classification failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error(), ID: id})
		return
	}

	res.ID = id
	if s.opts.Publisher != nil {
		if err := s.opts.Publisher.Send(res); err != nil {
			logger.Warnf("Publishing result failed: %v", err)
		}
	}
	writeJSON(w, http.StatusOK, res)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		applog.Warnf("Server: failed to encode response: %v", err)
	}
}
