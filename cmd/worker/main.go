package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/lifelane/lifelane/internal/config"
	"github.com/lifelane/lifelane/internal/store"
	"github.com/lifelane/lifelane/internal/store/jsonfile"
	"github.com/lifelane/lifelane/internal/store/postgres"
	"github.com/lifelane/lifelane/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.RedisAddr == "" {
		log.Fatalf("LIFELANE_REDIS_ADDR is required for the worker")
	}

	requestStore, cleanup, err := buildStore(ctx, cfg)
	if err != nil {
		log.Fatalf("init %s store: %v", cfg.StoreBackend, err)
	}
	defer cleanup()

	server := asynq.NewServer(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, asynq.Config{
		Concurrency: cfg.Workers,
	})
	processor := worker.NewProcessor(requestStore)
	mux := processor.Handler()

	go func() {
		<-ctx.Done()
		server.Shutdown()
	}()

	if err := server.Run(mux); err != nil {
		log.Printf("worker stopped: %v", err)
		os.Exit(1)
	}
}

// buildStore picks a durable backend. The worker runs in its own process,
// so the in-memory backend cannot share state with the API and is rejected.
func buildStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	policy := store.TransitionPolicy(cfg.TransitionPolicy)
	noop := func() {}
	switch cfg.StoreBackend {
	case config.StoreFile:
		s, err := jsonfile.New(cfg.DataFile, policy)
		return s, noop, err
	case config.StorePostgres:
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, noop, err
		}
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, noop, err
		}
		return postgres.New(pool, policy), pool.Close, nil
	}
	return nil, noop, errors.New("the worker needs a shared store backend (file or postgres)")
}
