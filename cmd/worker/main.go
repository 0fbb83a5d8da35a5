package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/redis/go-redis/v9"

	"github.com/biomarker-io/worker/internal/api"
	"github.com/biomarker-io/worker/internal/api/middleware"
	"github.com/biomarker-io/worker/internal/blob"
	"github.com/biomarker-io/worker/internal/extractor"
	"github.com/biomarker-io/worker/internal/facade"
	"github.com/biomarker-io/worker/internal/job"
	"github.com/biomarker-io/worker/internal/modelbundle"
	"github.com/biomarker-io/worker/internal/queue"
	"github.com/biomarker-io/worker/internal/storage"
)

const (
	version = "0.1.0-dev"
	name    = "biomarker-worker"

	shutdownGracePeriod = 10 * time.Second
)

func main() {
	versionFlag := flag.Bool("version", false, "show version information")
	flag.Parse()

	if *versionFlag {
		log.Printf("%s v%s\n", name, version)
		os.Exit(0)
	}

	cfg := LoadWorkerConfig()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	logger.Info("starting worker", slog.String("service", name), slog.String("version", version))

	if err := run(cfg, logger); err != nil {
		logger.Error("worker exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg WorkerConfig, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gateway, err := buildGateway(cfg)
	if err != nil {
		return fmt.Errorf("build storage gateway: %w", err)
	}
	defer gateway.Close()

	fetcher, err := buildBlobFetcher(ctx, cfg)
	if err != nil {
		return fmt.Errorf("build blob fetcher: %w", err)
	}

	redisClient, err := buildRedisClient(cfg)
	if err != nil {
		return fmt.Errorf("build redis client: %w", err)
	}
	defer redisClient.Close()

	cache := modelbundle.NewCache()
	registry := extractor.NewRegistry()
	runner := job.NewRunner(gateway, fetcher, registry, logger.With(slog.String("component", "job_runner")))
	poller := queue.NewPoller(redisClient, queue.DefaultQueueName, cfg.PollInterval, runner.Run,
		logger.With(slog.String("component", "poller")))
	svc := facade.New(gateway, fetcher, cache, logger.With(slog.String("component", "facade")))

	serverCfg := api.LoadServerConfig()
	serverCfg.Port = cfg.HTTPPort
	serverCfg.LogLevel = cfg.LogLevel
	serverCfg.RateLimiter = middleware.NewInMemoryRateLimiter(middleware.LoadConfig())

	server := api.NewServer(&serverCfg, gateway, svc, runner)

	pollerDone := make(chan struct{})
	go func() {
		defer close(pollerDone)
		poller.Run(ctx)
	}()

	serverErrs := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil {
			serverErrs <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErrs:
		logger.Error("http server failed", slog.String("error", err.Error()))
		stop()
	}

	poller.Stop()
	<-pollerDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
	defer cancel()

	return server.Shutdown(shutdownCtx)
}

func buildGateway(cfg WorkerConfig) (*storage.Gateway, error) {
	storageCfg := storage.LoadConfig()
	if err := storageCfg.Validate(); err != nil {
		return nil, err
	}

	conn, err := storage.NewConnection(storageCfg)
	if err != nil {
		return nil, err
	}

	return storage.NewGateway(conn)
}

func buildBlobFetcher(ctx context.Context, cfg WorkerConfig) (blob.Fetcher, error) {
	var opts []func(*awsconfig.LoadOptions) error

	opts = append(opts, awsconfig.WithRegion(cfg.AWSRegion))

	if cfg.AWSAccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg)

	return blob.NewS3Fetcher(client, cfg.AWSS3Bucket), nil
}

func buildRedisClient(cfg WorkerConfig) (*redis.Client, error) {
	dsn, err := cfg.resolveRedisDSN()
	if err != nil {
		return nil, err
	}

	opts, err := redis.ParseURL(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse redis DSN: %w", err)
	}

	return redis.NewClient(opts), nil
}
