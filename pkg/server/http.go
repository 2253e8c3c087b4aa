package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/dasmlab/pagetrans/pkg/pipeline"
	"github.com/dasmlab/pagetrans/pkg/translate"
)

// Page slider bounds of the form.
const (
	MinPage = 0
	MaxPage = 100
)

//go:embed templates/index.html
var templateFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// Runner is the part of the pipeline the HTTP layer needs.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) *pipeline.Result
	Languages() []translate.Language
}

// HealthChecker reports whether the translation backend is reachable.
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// Config holds HTTP server settings.
type Config struct {
	Addr string
	// AllowedOrigins may call the JSON API cross-origin. Empty allows none.
	AllowedOrigins []string
	Logger         *logrus.Logger
}

// HTTPServer serves the translation form, the JSON API, health and metrics.
type HTTPServer struct {
	runner Runner
	health HealthChecker
	logger *logrus.Logger
	srv    *http.Server
}

// NewHTTPServer creates a new HTTP server. health may be nil.
func NewHTTPServer(runner Runner, health HealthChecker, cfg Config) *HTTPServer {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	s := &HTTPServer{
		runner: runner,
		health: health,
		logger: cfg.Logger,
	}
	s.srv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.routes(cfg.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the router, mainly for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.srv.Handler
}

func (s *HTTPServer) routes(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(chimw.Recoverer)
	// Without configured origins the API is same-origin only
	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(corsOptions(allowedOrigins)))
	}

	r.Get("/", s.handleForm)
	r.Post("/", s.handleFormSubmit)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/translate", s.handleTranslateJSON)
		r.Get("/languages", s.handleLanguages)
	})

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// Start listens until Shutdown is called.
func (s *HTTPServer) Start() error {
	s.logger.WithFields(logrus.Fields{
		"addr": s.srv.Addr,
	}).Info("Starting HTTP server for the translation form")

	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// formState is what the template renders back into the form.
type formState struct {
	Input          string
	StartPage      int
	EndPage        int
	TargetLanguage string
	Download       bool
	Prefix         string
}

type pageData struct {
	Form      formState
	Languages []translate.Language
	MinPage   int
	MaxPage   int
	Output    string
}

func (s *HTTPServer) handleForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, formState{TargetLanguage: pipeline.DefaultTargetLanguage}, "")
}

func (s *HTTPServer) handleFormSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}

	form := formState{
		Input:          r.PostFormValue("input"),
		TargetLanguage: r.PostFormValue("target_language"),
		Download:       isChecked(r.PostFormValue("download")),
		Prefix:         r.PostFormValue("prefix"),
	}
	if form.TargetLanguage == "" {
		form.TargetLanguage = pipeline.DefaultTargetLanguage
	}

	var err error
	if form.StartPage, err = pageValue(r.PostFormValue("start_page")); err != nil {
		s.render(w, form, "Error: Start page "+err.Error())
		return
	}
	if form.EndPage, err = pageValue(r.PostFormValue("end_page")); err != nil {
		s.render(w, form, "Error: End page "+err.Error())
		return
	}

	res := s.runner.Run(r.Context(), pipeline.Request{
		Input:          form.Input,
		StartPage:      form.StartPage,
		EndPage:        form.EndPage,
		TargetLanguage: form.TargetLanguage,
		Download:       form.Download,
		Prefix:         form.Prefix,
	})

	s.render(w, form, res.Text())
}

func (s *HTTPServer) render(w http.ResponseWriter, form formState, output string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, pageData{
		Form:      form,
		Languages: s.runner.Languages(),
		MinPage:   MinPage,
		MaxPage:   MaxPage,
		Output:    output,
	}); err != nil {
		s.logger.WithError(err).Error("Failed to render form")
	}
}

// pageValue parses a slider value. Empty means 0.
func pageValue(v string) (int, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("must be a whole number, got %q", v)
	}
	if n < MinPage || n > MaxPage {
		return 0, fmt.Errorf("must be between %d and %d", MinPage, MaxPage)
	}
	return n, nil
}

func isChecked(v string) bool {
	switch strings.ToLower(v) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}

// TranslateRequest is the JSON body of POST /api/v1/translate.
type TranslateRequest struct {
	Input          string `json:"input"`
	StartPage      int    `json:"start_page"`
	EndPage        int    `json:"end_page"`
	TargetLanguage string `json:"target_language"`
	Download       bool   `json:"download"`
	Prefix         string `json:"prefix"`
}

// ErrorBody describes a typed pipeline error.
type ErrorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Page    *int   `json:"page,omitempty"`
}

// PageBody is one translated unit.
type PageBody struct {
	Page  int        `json:"page"`
	Text  string     `json:"text,omitempty"`
	Error *ErrorBody `json:"error,omitempty"`
	File  string     `json:"file,omitempty"`
}

// TranslateResponse is the JSON answer of POST /api/v1/translate.
type TranslateResponse struct {
	RunID          string     `json:"run_id"`
	OK             bool       `json:"ok"`
	Source         string     `json:"source,omitempty"`
	TargetLanguage string     `json:"target_language,omitempty"`
	Text           string     `json:"text"`
	Pages          []PageBody `json:"pages,omitempty"`
	Files          []string   `json:"files,omitempty"`
	Error          *ErrorBody `json:"error,omitempty"`
}

func errorBody(e *pipeline.Error) *ErrorBody {
	if e == nil {
		return nil
	}
	body := &ErrorBody{Kind: string(e.Kind), Message: e.Message}
	if e.Page >= 0 {
		page := e.Page
		body.Page = &page
	}
	return body
}

// NewTranslateResponse converts a pipeline result into its JSON form.
func NewTranslateResponse(res *pipeline.Result) TranslateResponse {
	out := TranslateResponse{
		RunID:          res.RunID,
		OK:             res.OK(),
		Source:         string(res.Source),
		TargetLanguage: res.TargetLanguage,
		Text:           res.Text(),
		Files:          res.Files,
		Error:          errorBody(res.Err),
	}
	for _, p := range res.Pages {
		out.Pages = append(out.Pages, PageBody{
			Page:  p.Page,
			Text:  p.Text,
			Error: errorBody(p.Err),
			File:  p.File,
		})
	}
	return out
}

func (s *HTTPServer) handleTranslateJSON(w http.ResponseWriter, r *http.Request) {
	var req TranslateRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": fmt.Sprintf("invalid request body: %v", err),
		})
		return
	}

	res := s.runner.Run(r.Context(), pipeline.Request{
		Input:          req.Input,
		StartPage:      req.StartPage,
		EndPage:        req.EndPage,
		TargetLanguage: req.TargetLanguage,
		Download:       req.Download,
		Prefix:         req.Prefix,
	})

	// Pipeline failures are results, not transport errors
	writeJSON(w, http.StatusOK, NewTranslateResponse(res))
}

func (s *HTTPServer) handleLanguages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"languages": s.runner.Languages(),
	})
}

// handleHealth provides a liveness endpoint.
func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// handleReady checks the translation backend.
func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := s.health.CheckHealth(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
