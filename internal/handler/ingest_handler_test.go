package handler_test

import (
	"bytes"
	"errors"
	"mime/multipart"
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

func multipartCSV(t *testing.T, kind, name, content string) *http.Request {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if kind != "" {
		require.NoError(t, writer.WriteField("type", kind))
	}
	part, err := writer.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/ingest", body)
	req.Header.Set(fiber.HeaderContentType, writer.FormDataContentType())
	return req
}

func newIngestApp(svc *ingestServiceStub) *fiber.App {
	app := fiber.New()
	handler.NewIngestHandler(svc, zerolog.Nop()).Register(app.Group("/ingest"))
	return app
}

func TestIngestHandlerSuccess(t *testing.T) {
	svc := &ingestServiceStub{result: dto.IngestResult{Kind: "marks", FileName: "marks.csv", RowsProcessed: 2, Updated: 2, Issues: []string{}}}
	app := newIngestApp(svc)

	resp, err := app.Test(multipartCSV(t, "marks", "marks.csv", "student_id,math_score\nS1,80\nS2,70\n"), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var response envelope[dto.IngestResult]
	decodeResponse(t, resp, &response)
	require.True(t, response.Success)
	require.Equal(t, 2, response.Data.Updated)
	require.Equal(t, "marks", svc.lastKind)
	require.Equal(t, "marks.csv", svc.lastName)
}

func TestIngestHandlerMissingFile(t *testing.T) {
	app := newIngestApp(&ingestServiceStub{})

	req := httptest.NewRequest(http.MethodPost, "/ingest", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestIngestHandlerErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{err: service.ErrUploadTooLarge, status: http.StatusRequestEntityTooLarge},
		{err: service.ErrUploadTypeNotAllowed, status: http.StatusUnsupportedMediaType},
		{err: service.ErrIngestUnknownKind, status: http.StatusBadRequest},
		{err: service.ErrIngestMissingID, status: http.StatusBadRequest},
		{err: service.ErrIngestEmptyFile, status: http.StatusBadRequest},
		{err: errors.New("database unavailable"), status: http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			app := newIngestApp(&ingestServiceStub{err: tc.err})
			resp, err := app.Test(multipartCSV(t, "students", "roster.csv", "id\nS1\n"), -1)
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)
		})
	}
}
