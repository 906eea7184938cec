package handler_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-ews-api/internal/dto"
	"github.com/noah-isme/gema-ews-api/internal/handler"
	"github.com/noah-isme/gema-ews-api/internal/service"
)

func newAlertApp(svc *alertServiceStub) *fiber.App {
	app := fiber.New()
	handler.NewAlertHandler(svc, zerolog.Nop()).Register(app.Group("/alerts"))
	return app
}

func TestAlertHandlerList(t *testing.T) {
	svc := newAlertServiceStub()
	svc.list = dto.AlertListResponse{
		Items:      []dto.AlertResponse{{ID: 1, StudentID: "S1", ToLevel: "High Risk"}},
		Pagination: dto.NewPaginationMeta(1, 20, 1),
	}
	app := newAlertApp(svc)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/alerts?student_id=S1&unread=true&page=1&page_size=20", nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var response envelope[dto.AlertListResponse]
	decodeResponse(t, resp, &response)
	require.Len(t, response.Data.Items, 1)
	require.Equal(t, "S1", svc.lastList.StudentID)
	require.True(t, svc.lastList.UnreadOnly)
}

func TestAlertHandlerListRejectsBadFlag(t *testing.T) {
	app := newAlertApp(newAlertServiceStub())

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/alerts?unread=maybe", nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAlertHandlerMarkRead(t *testing.T) {
	app := newAlertApp(newAlertServiceStub())

	resp, err := app.Test(httptest.NewRequest(http.MethodPatch, "/alerts/7/read", nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var response envelope[dto.AlertResponse]
	decodeResponse(t, resp, &response)
	require.Equal(t, uint(7), response.Data.ID)
	require.True(t, response.Data.Read)

	resp, err = app.Test(httptest.NewRequest(http.MethodPatch, "/alerts/abc/read", nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAlertHandlerMarkReadNotFound(t *testing.T) {
	svc := newAlertServiceStub()
	svc.err = fmt.Errorf("mark: %w", service.ErrAlertNotFound)
	app := newAlertApp(svc)

	resp, err := app.Test(httptest.NewRequest(http.MethodPatch, "/alerts/9/read", nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAlertHandlerRequiresUpgrade(t *testing.T) {
	app := newAlertApp(newAlertServiceStub())

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/alerts/ws", nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}

func TestAlertHandlerStreamsAlerts(t *testing.T) {
	svc := newAlertServiceStub()
	app := newAlertApp(svc)
	addr, shutdown := startFiberServer(t, app)
	defer shutdown()

	dialer := websocket.Dialer{HandshakeTimeout: 3 * time.Second}
	conn, _, err := dialer.Dial("ws://"+addr+"/alerts/ws", nil)
	require.NoError(t, err)

	svc.stream <- dto.AlertResponse{ID: 3, StudentID: "S1", FromLevel: "Medium Risk", ToLevel: "High Risk", RiskScore: 81}

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var received dto.AlertResponse
	require.NoError(t, conn.ReadJSON(&received))
	require.Equal(t, uint(3), received.ID)
	require.Equal(t, "High Risk", received.ToLevel)

	require.NoError(t, conn.Close())

	select {
	case <-svc.closed:
	case <-time.After(3 * time.Second):
		t.Fatal("subscription was not released after disconnect")
	}
}
