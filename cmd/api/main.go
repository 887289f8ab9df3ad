package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shoplist/internal/app"
	"shoplist/internal/auth"
	"shoplist/internal/config"
	"shoplist/internal/events"
	"shoplist/internal/search"
	"shoplist/internal/session"
	"shoplist/internal/store"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, os.DirFS(cfg.MigrationsDir)); err != nil {
		return err
	}
	dataStore := store.NewPostgresStore(db)

	sessions, err := session.NewStore(cfg.RedisURL, cfg.SessionTTL)
	if err != nil {
		return err
	}
	defer sessions.Close()

	var meili *search.Meili
	if cfg.MeiliURL != "" {
		meili = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meili.Close()
	} else {
		slog.Info("meilisearch not configured, using postgres search only")
	}
	searchService := search.NewService(meili, search.NewPgFallback(db))

	hub := events.NewHub()

	authService := auth.NewService(dataStore, sessions)
	if cfg.BootstrapUser != "" && cfg.BootstrapPassword != "" {
		if err := authService.EnsureUser(ctx, cfg.BootstrapUser, cfg.BootstrapPassword); err != nil {
			return err
		}
	}

	service := app.New(dataStore, hub, searchService)
	if err := service.Bootstrap(ctx); err != nil {
		slog.Error("search reindex failed", "err", err)
	}

	httpServer := app.NewHTTPServer(service, hub, sessions, authService)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", cfg.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
	}
	return nil
}
