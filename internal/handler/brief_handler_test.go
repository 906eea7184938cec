package handler_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-ews-api/internal/dto"
	"github.com/noah-isme/gema-ews-api/internal/handler"
	"github.com/noah-isme/gema-ews-api/internal/service"
)

type briefServiceStub struct {
	err error
}

func (s briefServiceStub) Brief(_ context.Context, id string) (dto.StudentBriefResponse, error) {
	if s.err != nil {
		return dto.StudentBriefResponse{}, s.err
	}
	return dto.StudentBriefResponse{StudentID: id, Summary: "Call home.", Urgency: "high"}, nil
}

func TestBriefHandler(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{name: "drafted", status: http.StatusOK},
		{name: "unconfigured", err: service.ErrAdvisorUnavailable, status: http.StatusServiceUnavailable},
		{name: "unknown student", err: service.ErrStudentNotFound, status: http.StatusNotFound},
		{name: "model failure", err: errors.New("timeout"), status: http.StatusBadGateway},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := fiber.New()
			handler.NewBriefHandler(briefServiceStub{err: tc.err}, zerolog.Nop()).Register(app.Group("/students"))

			resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/students/S1/brief", nil), -1)
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)

			if tc.status == http.StatusOK {
				var response envelope[dto.StudentBriefResponse]
				decodeResponse(t, resp, &response)
				require.Equal(t, "S1", response.Data.StudentID)
			}
		})
	}
}
