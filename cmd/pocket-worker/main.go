// Command pocket-worker replays fallback writes onto the remote store.
package main

import (
	"context"
	"errors"
	"os"

	"pocket/internal/amqp"
	"pocket/internal/backend"
	"pocket/internal/cli"
	"pocket/internal/local"
	"pocket/internal/log"
	"pocket/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)
	logger.Info("Starting pocket-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if !cfg.RemoteEnabled() {
		logger.Error("REMOTE_BACKEND is none, there is nothing to sync to")
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required by the worker")
		os.Exit(1)
	}
	if cfg.SQLiteDBPath == "" {
		logger.Error("SQLITE_DB_PATH is required by the worker, it must point at the server's device store")
		os.Exit(1)
	}

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	kv, closeKV := cli.OpenKV(logger, cfg.SQLiteDBPath)
	defer closeKV()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	remoteBackend, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize remote store", log.FieldError, err, "backend", backendCfg.Type)
		os.Exit(1)
	}
	defer remoteBackend.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	syncWorker := worker.NewSyncWorker(local.NewPending(kv), remoteBackend.Store, logger)

	logger.Info("Consuming sync messages", "queue", cfg.AMQPQueue, "backend", backendCfg.Type)
	if err := amqpClient.Consume(ctx, syncWorker.HandleMessage); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}
