package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brunobiangulo/progspec"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (YAML)")
	addr := flag.String("addr", "", "Listen address (overrides config)")
	flag.Parse()

	cfg, err := progspec.LoadConfig(*configPath)
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}

	slog.SetDefault(progspec.NewLogger(os.Stdout, cfg))

	engine, err := progspec.New(cfg)
	if err != nil {
		slog.Error("creating engine", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      newRouter(engine, cfg),
		ReadTimeout:  2 * time.Minute, // uploads
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown on SIGTERM/SIGINT.
	done := make(chan os.Signal, 1)
	signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("server stopped")
}

// newRouter registers the routes and wraps them in the middleware chain:
// recovery -> cors -> auth -> logging -> mux.
func newRouter(engine progspec.Engine, cfg progspec.Config) http.Handler {
	h := newHandler(engine, cfg.MaxUploadSize)
	mux := http.NewServeMux()

	mux.HandleFunc("POST /programme-specifications", h.handleUpload)
	mux.HandleFunc("GET /courses", h.handleListCourses)
	mux.HandleFunc("GET /modules", h.handleSearchModules)
	mux.HandleFunc("GET /modules/{code}", h.handleGetModule)
	mux.HandleFunc("GET /imports", h.handleListImports)
	mux.HandleFunc("GET /health", h.handleHealth)

	var handler http.Handler = mux
	handler = logMiddleware(handler)
	handler = authMiddleware(cfg.APIKey, handler)
	handler = corsMiddleware(cfg.CORSOrigins, handler)
	handler = recoveryMiddleware(handler)
	return handler
}
