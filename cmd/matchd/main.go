package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	appcfg "github.com/kapu/werewolf-arena-go/internal/config"
	"github.com/kapu/werewolf-arena-go/internal/engine"
	"github.com/kapu/werewolf-arena-go/internal/gateway"
	"github.com/kapu/werewolf-arena-go/internal/history"
	"github.com/kapu/werewolf-arena-go/internal/msgcat"
	"github.com/kapu/werewolf-arena-go/internal/obslog"
	"github.com/kapu/werewolf-arena-go/internal/queue"
	"github.com/kapu/werewolf-arena-go/internal/store"
	"github.com/kapu/werewolf-arena-go/internal/transport"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Printf("logger init error, continuing with defaults: %v", err)
	}
	logger := obslog.L()

	st, err := store.New(cfg.RedisURL, cfg.SnapshotTTL, cfg.IdempotencyTTL)
	if err != nil {
		logger.Fatal("store init failed", zap.Error(err))
	}

	var repo history.Repository
	if cfg.DatabaseURL != "" {
		repo, err = history.NewRepository(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("history repo init failed", zap.Error(err))
		}
	} else {
		logger.Warn("DATABASE_URL not set, match history kept in memory only")
		repo = history.NewMemoryRepository()
	}

	cat, err := msgcat.New(cfg.MessageOverrideDir)
	if err != nil {
		logger.Fatal("message catalog init failed", zap.Error(err))
	}

	feed := transport.NewFeed(cfg.ObserverKey)

	reg := engine.NewRegistry(engine.RegistryConfig{
		RequiredPlayers: cfg.RequiredPlayers,
		Engine: engine.Config{
			LobbyTimeout:     cfg.LobbyTimeout,
			NightDuration:    cfg.NightDuration,
			AnnounceDuration: cfg.AnnounceDuration,
			OpeningDuration:  cfg.OpeningDuration,
			DiscussDuration:  cfg.DiscussDuration,
			VoteDuration:     cfg.VoteDuration,
			ResolutionPause:  cfg.ResolutionPause,
			WolfCounts:       cfg.WolfCounts,
		},
		Grid: queue.Grid{Width: cfg.MapWidth, Height: cfg.MapHeight},
	})
	reg.AttachStore(st)
	reg.AttachHistory(repo)
	reg.AttachCatalog(cat)
	reg.AttachEventSink(feed)

	gw := gateway.New(reg, gateway.NewWindowLimiter(cfg.RateLimitMaxReads, cfg.RateLimitWindow))
	gw.AttachHistory(repo)
	gw.AttachIdempotency(st)
	gw.SetObserverKey(cfg.ObserverKey)

	httpSrv := transport.NewServer(cfg.HTTPAddr, gw)
	feedSrv := transport.NewFeedServer(cfg.WSAddr, feed)

	go func() {
		if err := httpSrv.Start(); err != nil {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()
	go func() {
		if err := feedSrv.Start(); err != nil {
			logger.Fatal("ws feed server failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown()
	_ = feedSrv.Shutdown(shutdownCtx)
	reg.CloseAll()
	_ = st.Close()
	_ = repo.Close()
	_ = logger.Sync()
}
