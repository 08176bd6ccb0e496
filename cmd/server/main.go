package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/promptpit/promptpit-backend/internal/arena"
	"github.com/promptpit/promptpit-backend/internal/auth"
	"github.com/promptpit/promptpit-backend/internal/config"
	"github.com/promptpit/promptpit-backend/internal/generator"
	"github.com/promptpit/promptpit-backend/internal/httpapi"
	"github.com/promptpit/promptpit-backend/internal/hub"
	"github.com/promptpit/promptpit-backend/internal/store"
)

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config load failed", zap.Error(err))
	}

	st, err := store.Open(cfg.DatabaseURL, log)
	if err != nil {
		log.Fatal("store open failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	h := hub.NewHub(ctx)
	coordinator := arena.New(st, generator.Mock{}, h, log)
	authSvc := auth.NewService(cfg.JWTSecret, cfg.TokenTTL)

	handler := httpapi.SetupRoutes(httpapi.Deps{
		Arena: coordinator,
		Store: st,
		Auth:  authSvc,
		Hub:   h,
		Log:   log,
	})

	srv := &http.Server{Addr: cfg.Addr, Handler: handler}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}
