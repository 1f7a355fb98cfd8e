// Command cloudbox-server runs the Telegram bot, the HTTP file API and the
// optional gRPC health endpoint over shared token and storage backends.
package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/cloudbox/internal/bot"
	"github.com/and161185/cloudbox/internal/config"
	"github.com/and161185/cloudbox/internal/crypto"
	"github.com/and161185/cloudbox/internal/limiter"
	"github.com/and161185/cloudbox/internal/logging"
	grpcserver "github.com/and161185/cloudbox/internal/server/grpc"
	httpserver "github.com/and161185/cloudbox/internal/server/http"
	"github.com/and161185/cloudbox/internal/service"
	"github.com/and161185/cloudbox/internal/sweeper"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	cfgPath := flag.String("config", "", "path to YAML config (env CLOUDBOX_* overrides)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		// logger is not configured yet
		_, _ = os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(2)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		_, _ = os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("registry", cfg.Registry.Driver),
		zap.String("storage", cfg.Storage.Driver),
	)

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("fatal", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	// Stores
	repo, closeRepo, err := openRegistry(ctx, cfg.Registry)
	if err != nil {
		return err
	}
	defer closeRepo()

	nsBucket, shareBucket, err := openBuckets(ctx, cfg.Storage)
	if err != nil {
		return err
	}

	// Services
	registry := service.NewRegistry(repo, service.RegistryOptions{
		TokenLength:      cfg.Registry.TokenLength,
		Alphabet:         crypto.Alphabet,
		CollisionRetries: cfg.Registry.CollisionRetries,
	})
	namespaces := service.NewNamespaceService(nsBucket, crypto.Alphabet)
	shares := service.NewShareService(shareBucket, service.ShareOptions{
		TokenLength:      cfg.Shares.TokenLength,
		Alphabet:         crypto.Alphabet,
		CollisionRetries: cfg.Shares.CollisionRetries,
		TTL:              cfg.Shares.TTL,
	})

	var lim limiter.Limiter = limiter.Unlimited{}
	if cfg.HTTP.ShareRatePerMinute > 0 {
		lim = limiter.NewMemory(cfg.HTTP.ShareRatePerMinute, cfg.HTTP.ShareBurst, 10*time.Minute)
	}

	errCh := make(chan error, 3)

	// HTTP
	api := httpserver.New(namespaces, shares, lim, repo.Ping, logger.Named("http"), httpserver.Options{
		MaxUploadBytes: cfg.HTTP.MaxUploadBytes,
		PublicURL:      cfg.HTTP.PublicURL,
	})
	hsrv := api.HTTPServer(cfg.HTTP.Addr)
	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTP.Addr))
		if err := hsrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// gRPC health
	var health *grpcserver.Server
	if cfg.Health.Enabled {
		health = grpcserver.New(map[string]grpcserver.Probe{"registry": repo.Ping}, cfg.Health.ProbeInterval, logger.Named("grpc"))
		lis, err := net.Listen("tcp", cfg.Health.Addr)
		if err != nil {
			return err
		}
		go health.Run(ctx)
		go func() {
			logger.Info("health listening", zap.String("addr", cfg.Health.Addr))
			if err := health.Serve(lis); err != nil {
				errCh <- err
			}
		}()
	}

	// Telegram
	if cfg.Telegram.Enabled {
		tg, err := bot.NewAPI(cfg.Telegram.Token, cfg.Telegram.Debug)
		if err != nil {
			return err
		}
		b := bot.New(tg, registry, namespaces, shares, nil, logger.Named("bot"), bot.Options{
			PollTimeout: cfg.Telegram.PollTimeout,
			PublicURL:   cfg.HTTP.PublicURL,
		})
		go func() {
			if err := b.Run(ctx); err != nil {
				errCh <- err
			}
		}()
	}

	// Share expiry
	sw := sweeper.New(shares, sweeper.Config{
		Enabled:  shares.TTL() > 0,
		Interval: cfg.Shares.SweepInterval,
	}, logger.Named("sweeper"))
	sw.Start()

	// Wait for stop
	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		logger.Error("server error", zap.Error(runErr))
	}

	sctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := hsrv.Shutdown(sctx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if health != nil {
		health.Stop(sctx)
	}
	if err := sw.Stop(sctx); err != nil {
		logger.Warn("sweeper shutdown", zap.Error(err))
	}
	return runErr
}
