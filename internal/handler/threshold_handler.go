package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-ews-api/internal/risk"
	"github.com/noah-isme/gema-ews-api/internal/service"
	"github.com/noah-isme/gema-ews-api/internal/utils"
)

// ThresholdHandler exposes threshold inspection, what-if simulation and commits.
type ThresholdHandler struct {
	service   service.ThresholdService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewThresholdHandler constructs the handler.
func NewThresholdHandler(service service.ThresholdService, validator *validator.Validate, logger zerolog.Logger) *ThresholdHandler {
	return &ThresholdHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("component", "threshold_handler").Logger(),
	}
}

// Register attaches threshold routes. adminOnly guards the reset route and may be nil.
func (h *ThresholdHandler) Register(router fiber.Router, adminOnly fiber.Handler) {
	if adminOnly == nil {
		adminOnly = passthrough
	}
	router.Get("", h.current)
	router.Post("/simulate", h.simulate)
	router.Put("", h.apply)
	router.Post("/reset", adminOnly, h.reset)
}

func (h *ThresholdHandler) current(c *fiber.Ctx) error {
	return utils.SendSuccess(c, "thresholds retrieved", h.service.Current())
}

func (h *ThresholdHandler) simulate(c *fiber.Ctx) error {
	patch, ok, err := h.parsePatch(c)
	if !ok {
		return err
	}

	simulation, err := h.service.Simulate(withRequestContext(c), patch)
	if err != nil {
		return h.fail(c, err, "failed to simulate thresholds")
	}

	return utils.SendSuccess(c, "simulation computed", simulation)
}

func (h *ThresholdHandler) apply(c *fiber.Ctx) error {
	patch, ok, err := h.parsePatch(c)
	if !ok {
		return err
	}

	response, err := h.service.Apply(withRequestContext(c), patch)
	if err != nil {
		return h.fail(c, err, "failed to apply thresholds")
	}

	requestLogger(h.logger, c).Info().Int("changed", response.Reclassified.Changed).Msg("thresholds applied")
	return utils.SendSuccess(c, "thresholds applied", response)
}

func (h *ThresholdHandler) reset(c *fiber.Ctx) error {
	response, err := h.service.Reset(withRequestContext(c))
	if err != nil {
		return h.fail(c, err, "failed to reset thresholds")
	}

	return utils.SendSuccess(c, "thresholds reset", response)
}

// parsePatch reports ok=false once an error response has been written.
func (h *ThresholdHandler) parsePatch(c *fiber.Ctx) (risk.ThresholdPatch, bool, error) {
	var patch risk.ThresholdPatch
	if err := c.BodyParser(&patch); err != nil {
		return patch, false, utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	if err := h.validator.Struct(patch); err != nil {
		return patch, false, utils.SendErrorWithDetails(c, fiber.StatusBadRequest, "invalid thresholds", validationDetails(err))
	}
	return patch, true, nil
}

func (h *ThresholdHandler) fail(c *fiber.Ctx, err error, message string) error {
	switch {
	case errors.Is(err, service.ErrInvalidThresholds), isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg(message)
		return utils.SendError(c, fiber.StatusInternalServerError, message)
	}
}
