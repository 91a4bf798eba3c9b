package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/inamate/inkboard/internal/auth"
	"github.com/inamate/inkboard/internal/config"
	"github.com/inamate/inkboard/internal/export"
	"github.com/inamate/inkboard/internal/gateway"
	mw "github.com/inamate/inkboard/internal/middleware"
	"github.com/inamate/inkboard/internal/project"
	"github.com/inamate/inkboard/internal/session"
	"github.com/inamate/inkboard/internal/store"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := store.Open(ctx, store.Options{
		Driver:      cfg.StoreDriver,
		DatabaseURL: cfg.DatabaseURL,
		SQLitePath:  cfg.SQLitePath,
	})
	if err != nil {
		slog.Error("open store", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	authService := auth.NewService(cfg.JWTSecret)
	authHandler := auth.NewHandler(authService)

	projectService := project.NewService(st)
	projectHandler := project.NewHandler(projectService)
	exportHandler := export.NewHandler(projectService, cfg.ExportDir)

	origins := mw.SplitOrigins(cfg.AllowedOrigins)

	// Server-side sessions persist straight through the project service.
	manager := session.NewManager()
	go manager.Run()
	sessionHandler := session.NewHandler(manager, session.Config{
		Gateway:        gateway.NewLocal(projectService.Gateway()),
		Auth:           authService,
		OriginPatterns: originPatterns(origins),
		Width:          cfg.CanvasWidth,
		Height:         cfg.CanvasHeight,
		GridPitch:      cfg.GridPitch,
	})

	r := mux.NewRouter()

	// Global middleware
	r.Use(mw.Recovery)
	r.Use(mw.Logger)

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// Protected API routes
	api := r.PathPrefix("/api").Subrouter()
	api.Use(authService.AuthMiddleware)

	api.HandleFunc("/auth/me", authHandler.Me).Methods("GET")
	projectHandler.Register(api)
	api.HandleFunc("/projects/{projectId}/artifacts/{artifactId}/export", exportHandler.Export).Methods("GET")
	api.HandleFunc("/projects/{projectId}/artifacts/{artifactId}/archive", exportHandler.Archive).Methods("POST")

	// Archived exports (public)
	r.PathPrefix("/exports/").Handler(exportHandler.Serve()).Methods("GET")

	r.Handle("/ws/project/{projectId}", sessionHandler)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mw.CORS(origins)(r), // outside the router so preflights never need a route
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down server")

		// Let in-flight saves land before the store goes away.
		manager.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("server starting", "addr", addr, "store", cfg.StoreDriver)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

// originPatterns strips schemes; websocket.Accept matches host patterns.
func originPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			out = append(out, u.Host)
			continue
		}
		out = append(out, o)
	}
	return out
}
