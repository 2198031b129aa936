// Package ui serves a small HTML browser over stored analysis runs.
package ui

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"peerscan/internal"
	"peerscan/models"
)

//go:embed templates/*.html
var embeddedFiles embed.FS

// RunSource is the read side of the run history.
type RunSource interface {
	ListRuns(ctx context.Context, limit int) ([]models.RunSummary, error)
	GetRun(ctx context.Context, id string) (*models.AnalysisRun, error)
}

// App represents the UI application
type App struct {
	router    *chi.Mux
	runs      RunSource
	templates *template.Template
	logger    *internal.Logger
	config    Config
}

// Config holds UI application configuration
type Config struct {
	AllowedOrigins []string
	PageSize       int
}

// NewApp creates a new UI application
func NewApp(runs RunSource, config Config, logger *internal.Logger) (*App, error) {
	funcMap := template.FuncMap{
		"add": func(a, b int) int { return a + b },
		"ts":  func(t time.Time) string { return t.UTC().Format("2006-01-02 15:04:05") },
	}
	templates, err := template.New("").Funcs(funcMap).ParseFS(embeddedFiles, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	if config.PageSize <= 0 {
		config.PageSize = 100
	}
	if len(config.AllowedOrigins) == 0 {
		config.AllowedOrigins = []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	}

	app := &App{
		router:    chi.NewRouter(),
		runs:      runs,
		templates: templates,
		logger:    logger.WithComponent("ui"),
		config:    config,
	}

	app.setupMiddleware()
	app.setupRoutes()

	return app, nil
}

// setupMiddleware configures HTTP middleware
func (a *App) setupMiddleware() {
	a.router.Use(middleware.Logger)
	a.router.Use(middleware.Recoverer)
	a.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: a.config.AllowedOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
}

// setupRoutes configures the application routes
func (a *App) setupRoutes() {
	a.router.Get("/", a.handleIndex)
	a.router.Get("/runs/{id}", a.handleRun)
	a.router.Get("/runs/{id}/report.md", a.handleRunMarkdown)
}

// ServeHTTP lets the app be mounted on any server.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

// renderTemplate buffers the page so a template error never leaves a half-written response.
func (a *App) renderTemplate(w http.ResponseWriter, templateName string, data interface{}) {
	var buf bytes.Buffer
	if err := a.templates.ExecuteTemplate(&buf, templateName, data); err != nil {
		a.logger.Error("template %s: %v", templateName, err)
		http.Error(w, "Template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	if _, err := buf.WriteTo(w); err != nil {
		a.logger.Warn("writing %s: %v", templateName, err)
	}
}
