package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-ews-api/internal/service"
	"github.com/noah-isme/gema-ews-api/internal/utils"
	"github.com/noah-isme/gema-ews-api/pkg/prediction"
)

// PredictionHandler triggers batch runs against the external prediction service.
type PredictionHandler struct {
	service service.PredictionService
	logger  zerolog.Logger
}

// NewPredictionHandler constructs the handler.
func NewPredictionHandler(service service.PredictionService, logger zerolog.Logger) *PredictionHandler {
	return &PredictionHandler{
		service: service,
		logger:  logger.With().Str("component", "prediction_handler").Logger(),
	}
}

// Register wires prediction routes.
func (h *PredictionHandler) Register(router fiber.Router) {
	router.Post("/run", h.run)
}

func (h *PredictionHandler) run(c *fiber.Ctx) error {
	response, err := h.service.RunAll(withRequestContext(c))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPredictionUnavailable):
			return utils.SendError(c, fiber.StatusServiceUnavailable, err.Error())
		case errors.Is(err, prediction.ErrInvalidResponse):
			requestLogger(h.logger, c).Warn().Err(err).Msg("prediction service returned invalid payload")
			return utils.SendError(c, fiber.StatusBadGateway, "prediction service returned an invalid response")
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("prediction run failed")
			return utils.SendError(c, fiber.StatusBadGateway, "prediction run failed")
		}
	}

	return utils.SendSuccess(c, "predictions stored", response)
}
