package handler_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-ews-api/internal/dto"
	"github.com/noah-isme/gema-ews-api/internal/handler"
	"github.com/noah-isme/gema-ews-api/internal/service"
	"github.com/noah-isme/gema-ews-api/pkg/prediction"
)

func runPrediction(t *testing.T, svc *predictionServiceStub) *http.Response {
	t.Helper()
	app := fiber.New()
	handler.NewPredictionHandler(svc, zerolog.Nop()).Register(app.Group("/predictions"))

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/predictions/run", nil), -1)
	require.NoError(t, err)
	return resp
}

func TestPredictionHandlerRun(t *testing.T) {
	resp := runPrediction(t, &predictionServiceStub{response: dto.PredictionRunResponse{
		Processed:    2,
		Stored:       2,
		Distribution: map[string]int{"High": 1, "No Risk": 1},
	}})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var response envelope[dto.PredictionRunResponse]
	decodeResponse(t, resp, &response)
	require.Equal(t, int64(2), response.Data.Stored)
	require.Equal(t, 1, response.Data.Distribution["High"])
}

func TestPredictionHandlerUnavailable(t *testing.T) {
	resp := runPrediction(t, &predictionServiceStub{err: service.ErrPredictionUnavailable})
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestPredictionHandlerInvalidUpstream(t *testing.T) {
	resp := runPrediction(t, &predictionServiceStub{err: fmt.Errorf("%w: status 500", prediction.ErrInvalidResponse)})
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
}
