package handler_test

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-ews-api/internal/dto"
	"github.com/noah-isme/gema-ews-api/internal/handler"
	"github.com/noah-isme/gema-ews-api/internal/risk"
)

func sampleDashboard() dto.DashboardResponse {
	return dto.DashboardResponse{
		Stats: risk.CohortStats{
			Total:             3,
			RedCount:          1,
			AmberCount:        1,
			GreenCount:        1,
			AvgAttendance:     81.5,
			AvgScore:          64.25,
			AvgCompositeScore: 38,
			FeeCompliance:     67,
		},
		TopAtRisk: []risk.Assessment{
			{StudentID: "S1", Name: "Asha Rao", Tier: risk.TierHigh, CompositeScore: 81, Reasons: []string{"Administrative debarment on record"}},
		},
		ReasonCounts: map[string]int{"Administrative debarment on record": 1},
		Thresholds:   risk.DefaultThresholds(),
		Mode:         string(risk.ModeExternal),
		GeneratedAt:  time.Now().UTC(),
	}
}

func TestDashboardContract(t *testing.T) {
	schemaPath, err := filepath.Abs(filepath.Join("testdata", "dashboard.schema.json"))
	require.NoError(t, err)

	schema, err := jsonschema.NewCompiler().Compile("file://" + schemaPath)
	require.NoError(t, err)

	app := fiber.New()
	handler.NewDashboardHandler(&cohortServiceStub{response: sampleDashboard()}, zerolog.Nop()).Register(app.Group("/api/v1/dashboard"))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/dashboard", nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var payload interface{}
	require.NoError(t, json.Unmarshal(body, &payload))
	require.NoError(t, schema.Validate(payload))
}

func TestDashboardHandlerFailure(t *testing.T) {
	app := fiber.New()
	handler.NewDashboardHandler(&cohortServiceStub{err: errors.New("db down")}, zerolog.Nop()).Register(app.Group("/dashboard"))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/dashboard", nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	var response envelope[any]
	decodeResponse(t, resp, &response)
	require.False(t, response.Success)
	require.Equal(t, "failed to build dashboard", response.Message)
}
