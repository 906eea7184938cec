package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/noah-isme/gema-ews-api/internal/risk"
)

// Config holds runtime configuration values for the early-warning service.
type Config struct {
	AppName                string
	AppEnv                 string
	AppPort                string
	DatabaseURL            string
	RedisURL               string
	NATSURL                string
	RealtimeChannel        string
	JWTSecret              string
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
	DashboardCacheTTL      time.Duration
	WorkingDays            int
	ClassificationMode     risk.ClassificationMode
	TopAtRiskLimit         int
	IngestWorkers          int
	IngestMaxUploadMB      int
	IngestRateLimit        int
	PredictionURL          string
	PredictionTimeout      time.Duration
	OpenAIAPIKey           string
	OpenAIBaseURL          string
	OpenAIModel            string
	AnthropicAPIKey        string
	AnthropicModel         string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// CloudinaryEnabled reports whether raw uploads should be archived.
func (c Config) CloudinaryEnabled() bool {
	return c.CloudinaryCloudName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != ""
}

// Load reads configuration values from environment variables and optional .env file.
// The HTTP server requires a JWT secret.
func Load() (Config, error) {
	cfg, err := load()
	if err != nil {
		return Config{}, err
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	return cfg, nil
}

// LoadTooling reads the same settings for offline tools that never serve HTTP.
func LoadTooling() (Config, error) {
	return load()
}

func load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("EWS")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "GEMA Early Warning API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("realtime.channel", "ews")
	v.SetDefault("cloudinary.folder", "gema/ews/uploads")
	v.SetDefault("dashboard.cache_ttl", "5m")
	v.SetDefault("risk.working_days", risk.DefaultWorkingDays)
	v.SetDefault("risk.mode", string(risk.ModeExternal))
	v.SetDefault("risk.top_n", risk.DefaultTopN)
	v.SetDefault("ingest.workers", 4)
	v.SetDefault("ingest.max_upload_mb", 10)
	v.SetDefault("ingest.rate_limit", 5)
	v.SetDefault("prediction.timeout", "30s")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("anthropic.model", "claude-haiku")

	ttl, err := parseDuration(v.GetString("dashboard.cache_ttl"), 5*time.Minute)
	if err != nil {
		return Config{}, fmt.Errorf("invalid dashboard cache ttl: %w", err)
	}

	predictionTimeout, err := parseDuration(v.GetString("prediction.timeout"), 30*time.Second)
	if err != nil {
		return Config{}, fmt.Errorf("invalid prediction timeout: %w", err)
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		RealtimeChannel:        v.GetString("realtime.channel"),
		JWTSecret:              v.GetString("jwt.secret"),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		DashboardCacheTTL:      ttl,
		WorkingDays:            v.GetInt("risk.working_days"),
		ClassificationMode:     risk.ParseMode(v.GetString("risk.mode")),
		TopAtRiskLimit:         v.GetInt("risk.top_n"),
		IngestWorkers:          v.GetInt("ingest.workers"),
		IngestMaxUploadMB:      v.GetInt("ingest.max_upload_mb"),
		IngestRateLimit:        v.GetInt("ingest.rate_limit"),
		PredictionURL:          strings.TrimRight(v.GetString("prediction.url"), "/"),
		PredictionTimeout:      predictionTimeout,
		OpenAIAPIKey:           v.GetString("openai.api_key"),
		OpenAIBaseURL:          v.GetString("openai.base_url"),
		OpenAIModel:            v.GetString("openai.model"),
		AnthropicAPIKey:        v.GetString("anthropic.api_key"),
		AnthropicModel:         v.GetString("anthropic.model"),
	}

	if cfg.WorkingDays <= 0 {
		cfg.WorkingDays = risk.DefaultWorkingDays
	}

	if cfg.TopAtRiskLimit <= 0 {
		cfg.TopAtRiskLimit = risk.DefaultTopN
	}

	if cfg.IngestWorkers <= 0 {
		cfg.IngestWorkers = 1
	}

	return cfg, nil
}

func parseDuration(raw string, fallback time.Duration) (time.Duration, error) {
	if strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	return time.ParseDuration(raw)
}
