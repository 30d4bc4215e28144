package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/lifelane/lifelane/internal/api"
	"github.com/lifelane/lifelane/internal/auth"
	"github.com/lifelane/lifelane/internal/config"
	"github.com/lifelane/lifelane/internal/store"
	"github.com/lifelane/lifelane/internal/store/jsonfile"
	"github.com/lifelane/lifelane/internal/store/memory"
	"github.com/lifelane/lifelane/internal/store/postgres"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	requestStore, registry, cleanup, err := buildBackend(ctx, cfg)
	if err != nil {
		log.Fatalf("init %s store: %v", cfg.StoreBackend, err)
	}
	defer cleanup()

	authSvc := auth.New(registry, cfg.JWTSecret, cfg.TokenTTL)

	var queueClient *asynq.Client
	if cfg.ExpiryEnabled() {
		queueClient = asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer queueClient.Close()
		log.Printf("siren expiry enabled (ttl %s)", cfg.SirenTTL)
	}

	srv := api.New(cfg, requestStore, authSvc, queueClient)
	if err := srv.Run(ctx); err != nil {
		log.Printf("server stopped: %v", err)
		os.Exit(1)
	}
}

func buildBackend(ctx context.Context, cfg *config.Config) (store.Store, auth.Registry, func(), error) {
	policy := store.TransitionPolicy(cfg.TransitionPolicy)
	noop := func() {}
	switch cfg.StoreBackend {
	case config.StoreMemory:
		return memory.New(policy), auth.NewMemoryRegistry(), noop, nil
	case config.StoreFile:
		s, err := jsonfile.New(cfg.DataFile, policy)
		if err != nil {
			return nil, nil, noop, err
		}
		users, err := jsonfile.NewUsers(cfg.UsersFile)
		if err != nil {
			return nil, nil, noop, err
		}
		return s, users, noop, nil
	case config.StorePostgres:
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, noop, err
		}
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, noop, err
		}
		return postgres.New(pool, policy), postgres.NewUsers(pool), pool.Close, nil
	}
	return nil, nil, noop, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}
