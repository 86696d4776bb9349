package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/park285/cheese-arena/internal/clock"
	appcfg "github.com/park285/cheese-arena/internal/config"
	"github.com/park285/cheese-arena/internal/lobby"
	"github.com/park285/cheese-arena/internal/msgcat"
	"github.com/park285/cheese-arena/internal/notify"
	"github.com/park285/cheese-arena/internal/obslog"
	"github.com/park285/cheese-arena/internal/repository"
	"github.com/park285/cheese-arena/internal/session"
	"github.com/park285/cheese-arena/internal/wsgateway"
)

func main() {
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer obslog.Sync()

	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	cat, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		log.Fatalf("message catalog error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	var sinks []session.ResultSink

	// finished games: postgres when configured, process memory otherwise
	var repo repository.Repository = repository.NewMemory()
	if cfg.DatabaseURL != "" {
		pg, err := repository.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			cancel()
			log.Fatalf("postgres init error: %v", err)
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			cancel()
			log.Fatalf("postgres schema error: %v", err)
		}
		repo = pg
	}
	sinks = append(sinks, repo)

	// redis lobby index + short-lived archive (optional)
	var store *lobby.Store
	var lister wsgateway.WaitingLister
	if cfg.RedisURL != "" {
		store, err = lobby.Open(ctx, cfg.RedisURL)
		if err != nil {
			cancel()
			log.Fatalf("redis init error: %v", err)
		}
		sinks = append(sinks, store)
		lister = store
	}
	cancel()

	if cfg.ResultWebhookURL != "" {
		sinks = append(sinks, notify.NewWebhook(cfg.ResultWebhookURL))
	}

	regCfg := session.RegistryConfig{
		MaxSessions:  cfg.MaxConcurrentGames,
		Sinks:        sinks,
		ClockOptions: []clock.Option{clock.WithTick(cfg.ClockTick)},
	}
	// /results: postgres first, then the redis archive, then process memory
	var results repository.Reader = repo
	if store != nil {
		regCfg.Lobby = store
		if cfg.DatabaseURL == "" {
			results = store
		}
	}
	gw := wsgateway.New(wsgateway.Config{
		TimeControl:    cfg.TimeControl,
		PingInterval:   cfg.WSPingInterval,
		AllowedOrigins: cfg.AllowedOrigins,
		Results:        results,
	}, regCfg, cat, lister)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           gw.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		obslog.L().Info("server_listen",
			zap.String("addr", cfg.ListenAddr),
			zap.String("time_control", cfg.TimeControl.String()),
			zap.Int("max_games", cfg.MaxConcurrentGames),
			zap.Int("sinks", len(sinks)),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			obslog.L().Fatal("server_error", zap.Error(err))
		}
	}()

	// Wait for termination signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	obslog.L().Info("server_shutdown", zap.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	if err := gw.Close(shutdownCtx); err != nil {
		obslog.L().Warn("gateway_close_error", zap.Error(err))
	}
	_ = repo.Close()
	if store != nil {
		_ = store.Close()
	}
}
