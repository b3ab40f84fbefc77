package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/veerababu08/sahtalk-backend/internal/app/registry"
	"github.com/veerababu08/sahtalk-backend/internal/app/server"
	"github.com/veerababu08/sahtalk-backend/internal/app/worker"
	"github.com/veerababu08/sahtalk-backend/internal/config"
	"github.com/veerababu08/sahtalk-backend/internal/core/services"
	"github.com/veerababu08/sahtalk-backend/internal/platform/logger"
	"github.com/veerababu08/sahtalk-backend/internal/platform/telemetry"
	"github.com/veerababu08/sahtalk-backend/internal/plugins/expo"
	"github.com/veerababu08/sahtalk-backend/internal/plugins/postgres"
	redisPlugin "github.com/veerababu08/sahtalk-backend/internal/plugins/redis"
)

func main() {
	// Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Config
	cfg := config.Load()

	// Logger
	log := logger.NewLogger(*cfg)
	log.Info("starting application")

	otelShutdown, err := telemetry.InitTelemetry(ctx, *cfg)
	if err != nil {
		log.Error("failed to initialize telemetry", "err", err)
	}
	defer func() {
		if otelShutdown == nil {
			return
		}
		log.Info("flushing telemetry...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			log.Error("telemetry shutdown failed", "err", err)
		}
	}()

	// Infra
	var pdb *sql.DB
	if pdb, err = postgres.New(ctx, *cfg.Postgres); err != nil {
		log.Error("postgres connection failed", "DSN", cfg.Postgres.DSN, "err", err)
		return
	}
	log.Info("postgres connected")
	var rdb *redis.Client
	if rdb, err = redisPlugin.NewRedisClient(ctx, *cfg.Redis); err != nil {
		log.Error("redis connection failed", "url", cfg.Redis.URL, "err", err)
		return
	}
	log.Info("redis connected")

	// Adapters
	userRepo := postgres.NewUserRepository(pdb)
	connRepo := postgres.NewConnectionRepo(pdb)
	msgRepo := postgres.NewMessageRepo(pdb)
	msgQueue := redisPlugin.NewRedisMessageQueue(rdb, log)
	push := expo.NewClient(*cfg.Expo)

	// Registries
	sessions := registry.NewSessionRegistry()
	presence := registry.NewPresenceTracker()
	rooms := registry.NewRoomHub()

	// Core services
	txManager := postgres.NewTxManager(pdb)
	userSvc := services.NewUserService(log, userRepo)
	tokenSvc := services.NewTokenService(cfg.SecretToken, cfg.Service.Name, cfg.TokenTTL)
	connSvc := services.NewConnectionService(log, connRepo, userRepo)
	relay := services.NewMessageRelay(log, msgQueue, sessions, presence, rooms, msgRepo, connRepo, userRepo, push, txManager)
	calls := services.NewCallRelay(log, sessions)
	manager := services.NewSessionManager(log, sessions, presence, rooms, relay, calls)

	wrkr := worker.NewRoomWorker(log, msgQueue, relay, cfg.Worker.MessageGroup)
	rooms.RunWorker(wrkr.Run)

	// Server
	srv := server.NewServer(log, cfg.Service.Name, cfg.Service.Addr, userSvc, tokenSvc, connSvc, relay, manager)
	if err := srv.Start(); err != nil {
		log.Error("server stopped", "err", err)
	}
}
