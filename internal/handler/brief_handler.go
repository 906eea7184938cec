package handler

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-ews-api/internal/service"
	"github.com/noah-isme/gema-ews-api/internal/utils"
)

// BriefHandler serves AI-drafted intervention briefs.
type BriefHandler struct {
	service service.BriefService
	logger  zerolog.Logger
}

// NewBriefHandler constructs the handler.
func NewBriefHandler(service service.BriefService, logger zerolog.Logger) *BriefHandler {
	return &BriefHandler{
		service: service,
		logger:  logger.With().Str("component", "brief_handler").Logger(),
	}
}

// Register attaches brief routes to the students group.
func (h *BriefHandler) Register(router fiber.Router) {
	router.Post("/:id/brief", h.draft)
}

func (h *BriefHandler) draft(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if id == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	brief, err := h.service.Brief(withRequestContext(c), id)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAdvisorUnavailable):
			return utils.SendError(c, fiber.StatusServiceUnavailable, err.Error())
		case errors.Is(err, service.ErrStudentNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "student not found")
		default:
			requestLogger(h.logger, c).Error().Err(err).Str("student_id", id).Msg("failed to draft brief")
			return utils.SendError(c, fiber.StatusBadGateway, "failed to draft brief")
		}
	}

	return utils.SendSuccess(c, "brief drafted", brief)
}
