// Package config loads the process configuration enumerated in
// spec.md §6 through viper, so nothing outside this package reads
// os.Getenv directly.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config is the fully-resolved process configuration.
type Config struct {
	// Scheduler / orchestrator knobs.
	BatchSize          int
	LongDelay          time.Duration
	ImmediateDelay     time.Duration
	ErrorRetryDelay    time.Duration
	AITimeout          time.Duration
	HeartbeatInterval  time.Duration

	// Auth.
	SecretKey string

	// LLM extractor.
	LLMEndpoint string
	LLMAPIKey   string

	// Postgres.
	DatabaseURL string

	// Listeners.
	HTTPAddr string
	WSAddr   string

	// Optional image store backend ("s3", "gcs", or "" to disable).
	ImageStoreBackend string
	ImageStoreBucket  string
}

// Load reads configuration from the environment (and an optional
// config file discovered by viper's defaults), applying the spec's
// documented defaults for anything unset.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("")
	v.AutomaticEnv()

	v.SetDefault("OCR_PROCESSOR_BATCH_SIZE", 5)
	v.SetDefault("OCR_PROCESSOR_DELAY", 30_000)
	v.SetDefault("OCR_PROCESSOR_IMMEDIATE_DELAY", 100)
	v.SetDefault("OCR_PROCESSOR_ERROR_RETRY_DELAY", 5_000)
	v.SetDefault("AI_TIMEOUT", 60_000)
	v.SetDefault("HEARTBEAT_INTERVAL", 30_000)
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("WS_ADDR", ":8081")
	v.SetDefault("IMAGE_STORE_BACKEND", "")

	cfg := &Config{
		BatchSize:         v.GetInt("OCR_PROCESSOR_BATCH_SIZE"),
		LongDelay:         time.Duration(v.GetInt64("OCR_PROCESSOR_DELAY")) * time.Millisecond,
		ImmediateDelay:    time.Duration(v.GetInt64("OCR_PROCESSOR_IMMEDIATE_DELAY")) * time.Millisecond,
		ErrorRetryDelay:   time.Duration(v.GetInt64("OCR_PROCESSOR_ERROR_RETRY_DELAY")) * time.Millisecond,
		AITimeout:         time.Duration(v.GetInt64("AI_TIMEOUT")) * time.Millisecond,
		HeartbeatInterval: time.Duration(v.GetInt64("HEARTBEAT_INTERVAL")) * time.Millisecond,
		SecretKey:         v.GetString("SECRET_KEY"),
		LLMEndpoint:       v.GetString("LLM_ENDPOINT"),
		LLMAPIKey:         v.GetString("LLM_API_KEY"),
		DatabaseURL:       v.GetString("DATABASE_URL"),
		HTTPAddr:          v.GetString("HTTP_ADDR"),
		WSAddr:            v.GetString("WS_ADDR"),
		ImageStoreBackend: v.GetString("IMAGE_STORE_BACKEND"),
		ImageStoreBucket:  v.GetString("IMAGE_STORE_BUCKET"),
	}
	return cfg, nil
}
