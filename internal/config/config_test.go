package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-ews-api/internal/risk"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("EWS_JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddress())
	require.Equal(t, 5*time.Minute, cfg.DashboardCacheTTL)
	require.Equal(t, risk.DefaultWorkingDays, cfg.WorkingDays)
	require.Equal(t, risk.ModeExternal, cfg.ClassificationMode)
	require.Equal(t, risk.DefaultTopN, cfg.TopAtRiskLimit)
	require.False(t, cfg.CloudinaryEnabled())
	require.Equal(t, "gpt-4o-mini", cfg.OpenAIModel)
	require.Equal(t, "claude-haiku", cfg.AnthropicModel)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("EWS_JWT_SECRET", "secret")
	t.Setenv("EWS_RISK_WORKING_DAYS", "180")
	t.Setenv("EWS_RISK_MODE", "threshold")
	t.Setenv("EWS_PREDICTION_URL", "http://127.0.0.1:8000/")
	t.Setenv("EWS_APP_PORT", ":9090")
	t.Setenv("EWS_ANTHROPIC_API_KEY", "sk-ant")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 180, cfg.WorkingDays)
	require.Equal(t, risk.ModeThresholdBased, cfg.ClassificationMode)
	require.Equal(t, "http://127.0.0.1:8000", cfg.PredictionURL)
	require.Equal(t, ":9090", cfg.HTTPAddress())
	require.Equal(t, "sk-ant", cfg.AnthropicAPIKey)
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("EWS_JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadToolingSkipsSecret(t *testing.T) {
	t.Setenv("EWS_JWT_SECRET", "")
	t.Setenv("EWS_DATABASE_URL", "sqlite://ews.db")

	cfg, err := LoadTooling()
	require.NoError(t, err)
	require.Equal(t, "sqlite://ews.db", cfg.DatabaseURL)
}

func TestLoadRejectsInvalidTTL(t *testing.T) {
	t.Setenv("EWS_JWT_SECRET", "secret")
	t.Setenv("EWS_DASHBOARD_CACHE_TTL", "soon")

	_, err := Load()
	require.Error(t, err)
}
