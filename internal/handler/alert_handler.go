package handler

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-ews-api/internal/dto"
	"github.com/noah-isme/gema-ews-api/internal/middleware"
	"github.com/noah-isme/gema-ews-api/internal/service"
	"github.com/noah-isme/gema-ews-api/internal/utils"
)

const alertPingInterval = 30 * time.Second

// AlertHandler exposes risk alerts over REST and a websocket stream.
type AlertHandler struct {
	service service.AlertService
	logger  zerolog.Logger
}

// NewAlertHandler constructs the handler.
func NewAlertHandler(service service.AlertService, logger zerolog.Logger) *AlertHandler {
	return &AlertHandler{
		service: service,
		logger:  logger.With().Str("component", "alert_handler").Logger(),
	}
}

// Register wires alert routes including the websocket upgrade.
func (h *AlertHandler) Register(router fiber.Router) {
	router.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("correlation_id", middleware.GetCorrelationID(c))
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	router.Get("/ws", websocket.New(h.stream))
	router.Get("", h.list)
	router.Patch("/:id/read", h.markRead)
}

func (h *AlertHandler) list(c *fiber.Ctx) error {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}
	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page size")
	}
	unread, err := parseQueryBool(c, "unread")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid unread flag")
	}

	req := dto.AlertListRequest{
		StudentID:  c.Query("student_id"),
		UnreadOnly: unread,
		Page:       page,
		PageSize:   pageSize,
	}

	response, err := h.service.List(withRequestContext(c), req)
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list alerts")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list alerts")
	}

	return utils.SendSuccess(c, "alerts retrieved", response)
}

func (h *AlertHandler) markRead(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	alert, err := h.service.MarkRead(withRequestContext(c), id)
	if err != nil {
		if errors.Is(err, service.ErrAlertNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "alert not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Uint("alert_id", id).Msg("failed to mark alert read")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to mark alert read")
	}

	return utils.SendSuccess(c, "alert marked as read", alert)
}

func (h *AlertHandler) stream(conn *websocket.Conn) {
	logger := h.logger
	if correlation, ok := conn.Locals("correlation_id").(string); ok && correlation != "" {
		logger = logger.With().Str("correlation_id", correlation).Logger()
	}

	alerts, cleanup := h.service.Subscribe()
	defer cleanup()
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Clients only listen; the read loop exists to notice disconnects.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(alertPingInterval)
	defer ticker.Stop()

	logger.Debug().Msg("alert stream opened")
	for {
		select {
		case <-ctx.Done():
			logger.Debug().Msg("alert stream closed")
			return
		case alert, ok := <-alerts:
			if !ok {
				return
			}
			if err := conn.WriteJSON(alert); err != nil {
				logger.Warn().Err(err).Msg("failed to write alert")
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
