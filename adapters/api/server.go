// Package api exposes the model service over HTTP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"scorekit/app"
	"scorekit/domain/core"
	"scorekit/domain/frame"
	"scorekit/domain/model"
	"scorekit/internal/errors"
	"scorekit/internal/logging"
	"scorekit/ports"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

var logger = logging.New("API")

// maxBodyBytes bounds request bodies; data travels by file path.
const maxBodyBytes = 1 << 20

// ParameterParser decodes family parameters from JSON
type ParameterParser interface {
	ParseParameters(algo model.Algo, raw []byte) (model.Parameters, error)
}

// Server serves the model API
type Server struct {
	router  *chi.Mux
	service *app.ModelService
	parser  ParameterParser
	reader  ports.FrameReader
	config  Config
}

// Config holds API settings
type Config struct {
	Port         string
	ChunkRows    int
	Timeout      time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// NewServer creates the API server and its routes
func NewServer(service *app.ModelService, parser ParameterParser, reader ports.FrameReader, config Config) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		service: service,
		parser:  parser,
		reader:  reader,
		config:  config,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures HTTP middleware
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	if s.config.Timeout > 0 {
		s.router.Use(middleware.Timeout(s.config.Timeout))
	}
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api/models", func(r chi.Router) {
		r.Get("/", s.handleListModels)
		r.Post("/", s.handleTrain)
		r.Route("/{key}", func(r chi.Router) {
			r.Get("/", s.handleGetModel)
			r.Delete("/", s.handleDeleteModel)
			r.Get("/metrics", s.handleListMetrics)
			r.Post("/score", s.handleScore)
			r.Post("/adapt", s.handleAdapt)
		})
	})
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:         ":" + s.config.Port,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Infof("Shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	recs, err := s.service.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]ModelSummary, len(recs))
	for i, rec := range recs {
		out[i] = summarize(rec, false)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleTrain(w http.ResponseWriter, r *http.Request) {
	var req TrainRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Algo == "" || req.TrainPath == "" {
		writeError(w, errors.InvalidInput("algo and train_path are required"))
		return
	}
	params, err := s.parser.ParseParameters(req.Algo, req.Parameters)
	if err != nil {
		writeError(w, err)
		return
	}
	base := params.Base()
	if base.Train, err = s.readFrame(r.Context(), req.TrainPath, req.Sheet); err != nil {
		writeError(w, err)
		return
	}
	if req.ValidPath != "" {
		if base.Valid, err = s.readFrame(r.Context(), req.ValidPath, req.Sheet); err != nil {
			writeError(w, err)
			return
		}
	}

	res, err := s.service.TrainOrReuse(r.Context(), params)
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusCreated
	if res.Reused {
		status = http.StatusOK
	}
	writeJSON(w, status, TrainResponse{
		Model:   summarize(res.Record, true),
		Reused:  res.Reused,
		Metrics: res.Metrics,
	})
}

func (s *Server) handleGetModel(w http.ResponseWriter, r *http.Request) {
	key, err := core.ParseKey(chi.URLParam(r, "key"))
	if err != nil {
		writeError(w, err)
		return
	}
	rec, err := s.service.Get(r.Context(), key)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summarize(rec, true))
}

func (s *Server) handleDeleteModel(w http.ResponseWriter, r *http.Request) {
	key, err := core.ParseKey(chi.URLParam(r, "key"))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.service.Delete(r.Context(), key); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListMetrics(w http.ResponseWriter, r *http.Request) {
	key, err := core.ParseKey(chi.URLParam(r, "key"))
	if err != nil {
		writeError(w, err)
		return
	}
	mms, err := s.service.Metrics(r.Context(), key)
	if err != nil {
		writeError(w, err)
		return
	}
	if mms == nil {
		mms = []*model.ModelMetrics{}
	}
	writeJSON(w, http.StatusOK, mms)
}

func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	key, fr, err := s.keyAndFrame(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := s.service.Score(r.Context(), key, fr)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ScoreResponse{
		Rows:     res.Predictions.NumRows(),
		Columns:  encodeFrame(res.Predictions),
		Metrics:  res.Metrics,
		Warnings: nonNil(res.Warnings),
	})
}

func (s *Server) handleAdapt(w http.ResponseWriter, r *http.Request) {
	key, fr, err := s.keyAndFrame(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	warns, err := s.service.Adapt(r.Context(), key, fr)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AdaptResponse{Warnings: nonNil(warns)})
}

func (s *Server) keyAndFrame(w http.ResponseWriter, r *http.Request) (core.Key, *frame.Frame, error) {
	key, err := core.ParseKey(chi.URLParam(r, "key"))
	if err != nil {
		return "", nil, err
	}
	var req FrameRequest
	if err := decodeBody(w, r, &req); err != nil {
		return "", nil, err
	}
	if req.Path == "" {
		return "", nil, errors.InvalidInput("path is required")
	}
	fr, err := s.readFrame(r.Context(), req.Path, req.Sheet)
	return key, fr, err
}

func (s *Server) readFrame(ctx context.Context, path, sheet string) (*frame.Frame, error) {
	fr, err := s.reader.ReadFrame(ctx, path, ports.ReadOptions{Sheet: sheet, ChunkRows: s.config.ChunkRows})
	if err != nil {
		return nil, errors.WithCode(errors.CodeInvalidInput, err)
	}
	return fr, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.WithCode(errors.CodeInvalidInput, fmt.Errorf("invalid request body: %w", err))
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Errorf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Errorf("Request failed: %v", err)
	}
	writeJSON(w, status, ErrorResponse{Code: errors.GetCode(err), Error: err.Error()})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func hex(v uint64) string {
	return fmt.Sprintf("%016x", v)
}
