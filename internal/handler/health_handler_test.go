package handler_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-ews-api/internal/config"
	"github.com/noah-isme/gema-ews-api/internal/handler"
)

func TestHealthCheck(t *testing.T) {
	cfg := config.Config{AppName: "GEMA Early Warning API", AppEnv: "test"}

	app := fiber.New()
	app.Get("/health", handler.HealthCheck(cfg, handler.HealthProbe{
		Name:  "postgres",
		Check: func(context.Context) error { return nil },
	}))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var response envelope[handler.HealthResponse]
	decodeResponse(t, resp, &response)
	require.Equal(t, "ok", response.Data.Status)
	require.Equal(t, "ok", response.Data.Dependencies["postgres"])
	require.Equal(t, "test", response.Data.Environment)
}

func TestHealthCheckDegraded(t *testing.T) {
	app := fiber.New()
	app.Get("/health", handler.HealthCheck(config.Config{}, handler.HealthProbe{
		Name:  "redis",
		Check: func(context.Context) error { return errors.New("connection refused") },
	}))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	var response envelope[handler.HealthResponse]
	decodeResponse(t, resp, &response)
	require.False(t, response.Success)
	require.Equal(t, "degraded", response.Data.Status)
	require.Equal(t, "connection refused", response.Data.Dependencies["redis"])
}
