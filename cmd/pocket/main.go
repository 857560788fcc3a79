// Command pocket serves the ledger API.
//
//	pocket               run the server
//	pocket token <user>  print a bearer token for user
package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"pocket/internal/amqp"
	"pocket/internal/auth"
	"pocket/internal/backend"
	"pocket/internal/cache"
	"pocket/internal/cli"
	"pocket/internal/core"
	apphttp "pocket/internal/http"
	"pocket/internal/log"
	"pocket/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	var tokens *auth.TokenService
	if cfg.JWTSecret != "" {
		tokens = auth.NewTokenService(cfg.JWTSecret, cfg.JWTExpiresIn)
	}

	if len(os.Args) > 1 {
		os.Exit(runCommand(os.Args[1:], tokens))
	}

	kv, closeKV := cli.OpenKV(logger, cfg.SQLiteDBPath)
	defer closeKV()

	ctx, stop := cli.SignalContext(logger)
	defer stop()

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
	defer func() {
		if err := remoteBackend.Close(); err != nil {
			logger.Error("Failed to close remote store", log.FieldError, err)
		}
	}()
	if remoteBackend.Store != nil && tokens == nil {
		logger.Warn("Remote store configured without JWT_SECRET, every request is served from device storage")
	}

	deps := services.Dependencies{
		KV:      kv,
		Remote:  remoteBackend.Store,
		Timeout: cfg.RemoteTimeout,
		Logger:  logger,
	}

	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, fallback writes will stay on this device", log.FieldError, err)
		} else {
			defer amqpClient.Close()
			deps.Publisher = amqpClient
		}
	}

	cacheManager := cache.NewManager(logger)
	if cfg.CacheTTL > 0 {
		summaries := cache.NewLRUCache[core.Summary]("summaries", cfg.CacheSize, cfg.CacheTTL)
		cacheManager.Register(summaries)
		cacheManager.StartCleanup(cfg.CacheTTL)
		deps.Summaries = summaries
	}
	defer cacheManager.Stop()

	srv, err := apphttp.NewServer(apphttp.Config{
		Addr:            ":" + cfg.Port,
		Ledger:          services.NewLedgerService(deps),
		Tokens:          tokens,
		RateLimitPerMin: cfg.RateLimitPerMin,
		Logger:          logger,
	})
	if err != nil {
		logger.Error("Failed to build HTTP server", log.FieldError, err)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting pocket server", "port", cfg.Port, "backend", backendCfg.Type)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := cli.ShutdownContext(30 * time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func runCommand(args []string, tokens *auth.TokenService) int {
	switch args[0] {
	case "token":
		if len(args) != 2 {
			fmt.Fprintln(os.Stderr, "usage: pocket token <user>")
			return 2
		}
		if tokens == nil {
			fmt.Fprintln(os.Stderr, "JWT_SECRET is not set")
			return 1
		}
		tok, err := tokens.GenerateToken(args[1])
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Println(tok)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", args[0])
		return 2
	}
}
