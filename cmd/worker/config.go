// Package main wires the biomarker worker service: the queue poller and
// the synchronous inference facade share one database pool, one blob
// fetcher, and one model cache inside a single process.
package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/biomarker-io/worker/internal/config"
)

const (
	defaultAWSRegion        = "us-west-1"
	defaultPollIntervalSecs = 1.0
	defaultMaxRetries       = 3
	defaultHTTPPort         = 8080
)

// WorkerConfig holds the worker's environment-sourced configuration,
// loaded with internal/config's getter helpers.
type WorkerConfig struct {
	DatabaseURL string

	RedisURL              string
	UpstashRedisRESTURL   string
	UpstashRedisRESTToken string

	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSRegion          string
	AWSS3Bucket        string

	PollInterval time.Duration
	MaxRetries   int

	HTTPPort int
	LogLevel slog.Level
}

// LoadWorkerConfig reads WorkerConfig from the environment.
func LoadWorkerConfig() WorkerConfig {
	return WorkerConfig{
		DatabaseURL: config.GetEnvStr("DATABASE_URL", ""),

		RedisURL:              config.GetEnvStr("REDIS_URL", ""),
		UpstashRedisRESTURL:   config.GetEnvStr("UPSTASH_REDIS_REST_URL", ""),
		UpstashRedisRESTToken: config.GetEnvStr("UPSTASH_REDIS_REST_TOKEN", ""),

		AWSAccessKeyID:     config.GetEnvStr("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey: config.GetEnvStr("AWS_SECRET_ACCESS_KEY", ""),
		AWSRegion:          config.GetEnvStr("AWS_REGION", defaultAWSRegion),
		AWSS3Bucket:        config.GetEnvStr("AWS_S3_BUCKET", ""),

		PollInterval: time.Duration(
			config.GetEnvFloat("POLL_INTERVAL_SECONDS", defaultPollIntervalSecs) * float64(time.Second),
		),
		MaxRetries: config.GetEnvInt("MAX_RETRIES", defaultMaxRetries),

		HTTPPort: config.GetEnvInt("WORKER_HTTP_PORT", defaultHTTPPort),
		LogLevel: config.GetEnvLogLevel("WORKER_LOG_LEVEL", slog.LevelInfo),
	}
}

// resolveRedisDSN prefers an explicit REDIS_URL, falling back to
// combining the Upstash REST pair into a DSN go-redis can dial directly.
func (c WorkerConfig) resolveRedisDSN() (string, error) {
	if c.RedisURL != "" {
		return c.RedisURL, nil
	}

	if c.UpstashRedisRESTURL == "" {
		return "", fmt.Errorf("no queue broker configured: set REDIS_URL or UPSTASH_REDIS_REST_URL/_TOKEN")
	}

	// Upstash's REST endpoint is https://<host>; go-redis speaks RESP
	// against the same host on its standard TLS port.
	host := c.UpstashRedisRESTURL
	const prefix = "https://"

	if len(host) > len(prefix) && host[:len(prefix)] == prefix {
		host = host[len(prefix):]
	}

	if c.UpstashRedisRESTToken == "" {
		return fmt.Sprintf("rediss://%s:6379", host), nil
	}

	return fmt.Sprintf("rediss://default:%s@%s:6379", c.UpstashRedisRESTToken, host), nil
}
