package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

type R2 struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
	PublicURL  string
	// Endpoint overrides the account derived R2 endpoint.
	Endpoint string
}

// Enabled reports whether media reads can go through the R2 bucket.
func (r R2) Enabled() bool {
	return r.AccountID != "" && r.AccessKey != "" && r.SecretKey != "" && r.BucketName != ""
}

type X struct {
	APIBaseURL    string
	UploadBaseURL string
	TokenURL      string
}

type Config struct {
	PostgresURI          string
	RedisURI             string
	SecretKey            string
	CronSecret           string
	Port                 string
	MaxRetryCount        int
	PublishBatchSize     int
	TokenRefreshBuffer   time.Duration
	TokenRefreshWindow   time.Duration
	StalePublishingAfter time.Duration
	HTTPTimeout          time.Duration
	MediaChunkSize       int
	SweepSchedule        string
	TokenRefreshSchedule string
	PublishSchedule      string
	WorkerConcurrency    int
	LogLevel             string
	LogFormat            string
	X                    X
	R2                   R2
}

func LoadConfig() *Config {
	return &Config{
		PostgresURI:          getEnv("POSTGRES_URI", ""),
		RedisURI:             getEnv("REDIS_URI", ""),
		SecretKey:            getEnv("SECRET_KEY", ""),
		CronSecret:           getEnv("CRON_SECRET", ""),
		Port:                 getEnv("PORT", "3000"),
		MaxRetryCount:        getEnvInt("MAX_RETRY_COUNT", 3),
		PublishBatchSize:     getEnvInt("PUBLISH_BATCH_SIZE", 20),
		TokenRefreshBuffer:   getEnvDuration("TOKEN_REFRESH_BUFFER", 60*time.Second),
		TokenRefreshWindow:   getEnvDuration("TOKEN_REFRESH_WINDOW", 30*time.Minute),
		StalePublishingAfter: getEnvDuration("STALE_PUBLISHING_AFTER", 15*time.Minute),
		HTTPTimeout:          getEnvDuration("HTTP_TIMEOUT", 30*time.Second),
		MediaChunkSize:       getEnvInt("MEDIA_CHUNK_SIZE", 4*1024*1024),
		SweepSchedule:        getEnv("SWEEP_SCHEDULE", "@every 5m"),
		TokenRefreshSchedule: getEnv("TOKEN_REFRESH_SCHEDULE", "@every 10m"),
		PublishSchedule:      getEnv("PUBLISH_SCHEDULE", ""),
		WorkerConcurrency:    getEnvInt("WORKER_CONCURRENCY", 5),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		LogFormat:            getEnv("LOG_FORMAT", "text"),
		X: X{
			APIBaseURL:    getEnv("X_API_BASE_URL", "https://api.x.com"),
			UploadBaseURL: getEnv("X_UPLOAD_BASE_URL", "https://upload.twitter.com"),
			TokenURL:      getEnv("X_TOKEN_URL", "https://api.x.com/2/oauth2/token"),
		},
		R2: R2{
			AccountID:  getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:  getEnv("R2_ACCESS_KEY", ""),
			SecretKey:  getEnv("R2_SECRET_KEY", ""),
			BucketName: getEnv("R2_BUCKET_NAME", ""),
			PublicURL:  getEnv("R2_PUBLIC_URL", ""),
			Endpoint:   getEnv("R2_ENDPOINT", ""),
		},
	}
}

// Validate rejects configurations the pipeline cannot run with.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.PostgresURI, validation.Required),
		validation.Field(&c.SecretKey, validation.Required, validation.By(aesKeyLength)),
		validation.Field(&c.CronSecret, validation.Required),
		validation.Field(&c.Port, validation.Required, is.Port),
		validation.Field(&c.MaxRetryCount, validation.Required, validation.Min(1)),
		validation.Field(&c.PublishBatchSize, validation.Required, validation.Min(1)),
		validation.Field(&c.TokenRefreshBuffer, validation.Min(time.Duration(0))),
		validation.Field(&c.StalePublishingAfter, validation.Required, validation.Min(time.Minute)),
		validation.Field(&c.HTTPTimeout, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.MediaChunkSize, validation.Required, validation.Min(64*1024)),
		validation.Field(&c.WorkerConcurrency, validation.Required, validation.Min(1)),
		validation.Field(&c.LogLevel, validation.In("debug", "info", "warn", "error")),
		validation.Field(&c.X, validation.By(func(value interface{}) error {
			x := value.(X)
			return validation.ValidateStruct(&x,
				validation.Field(&x.APIBaseURL, validation.Required, is.URL),
				validation.Field(&x.UploadBaseURL, validation.Required, is.URL),
				validation.Field(&x.TokenURL, validation.Required, is.URL),
			)
		})),
	)
}

func aesKeyLength(value interface{}) error {
	switch len(value.(string)) {
	case 16, 24, 32:
		return nil
	}
	return errors.New("must be 16, 24 or 32 bytes")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
