package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cartsync/internal/config"
	"cartsync/internal/handler"
	"cartsync/internal/infra/broadcast"
	"cartsync/internal/infra/db"
	infraRepo "cartsync/internal/infra/repository"
	"cartsync/internal/middleware"
	"cartsync/internal/obs"
	repo "cartsync/internal/repository"
	"cartsync/internal/server"
	"cartsync/internal/usecase"

	"github.com/google/uuid"
)

type uuidGenerator struct{}

func (g *uuidGenerator) NewID() string {
	return uuid.NewString()
}

type realClock struct{}

func (c *realClock) Now() time.Time {
	return time.Now()
}

// originトークンの有効期限
const originTokenTTL = 30 * 24 * time.Hour

func main() {
	if err := config.LoadDotEnv(".env", "../.env"); err != nil {
		panic(err)
	}
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := obs.NewLogger(obs.Options{Service: "cartsync", Env: cfg.GoEnv, Level: cfg.LogLevel})
	log.Info("service_starting", "store_driver", cfg.StoreDriver)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	//変更通知のハブ
	hub := broadcast.NewHub(log)

	//ストレージ（memory or postgres）
	var storage repo.StorageRepository
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		gormDB, err := db.Connect(cfg)
		if err != nil {
			log.Error("db_connect_failed", "error", err)
			os.Exit(1)
		}
		if err := db.Migrate(gormDB); err != nil {
			log.Error("db_migrate_failed", "error", err)
			os.Exit(1)
		}
		storage = infraRepo.NewStorageGormRepository(gormDB, cfg.CartNotifyChannel)

		//pg_notifyをハブへ流す
		listener := broadcast.NewPGListener(cfg.PostgresDSN(), cfg.CartNotifyChannel, hub, log)
		go listener.Run(ctx)
	default:
		storage = infraRepo.NewStorageMemoryRepository(hub)
	}

	idGen := &uuidGenerator{}
	clock := &realClock{}

	tokens := middleware.NewOriginTokens(cfg.JWTSecret, originTokenTTL)

	//Usecase生成
	tabs := usecase.NewTabRegistry(storage, hub, idGen, clock, usecase.TabOptions{
		StorageKey: cfg.CartStorageKey,
		Aliases:    cfg.CartSyncAliases,
		ToastTTL:   cfg.ToastTTL,
	}, log)
	origins := usecase.NewOriginUsecase(tokens, idGen, clock)

	//Handler生成
	e := server.New(server.Deps{
		Log:     log,
		Tokens:  tokens,
		Origins: handler.NewOriginHandler(origins),
		Carts:   handler.NewCartHandler(tabs),
		Health:  handler.NewHealthHandler(tabs, hub),
	})

	//Server起動
	if err := server.Start(ctx, e, cfg.Addr(), log); err != nil {
		log.Error("http_server_error", "error", err)
	}

	tabs.CloseAll()
	log.Info("service_stopped")
}
