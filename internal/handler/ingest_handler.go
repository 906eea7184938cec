package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-ews-api/internal/service"
	"github.com/noah-isme/gema-ews-api/internal/utils"
)

// IngestHandler accepts CSV uploads of students and their sub-records.
type IngestHandler struct {
	service service.IngestService
	logger  zerolog.Logger
}

// NewIngestHandler constructs an ingest handler.
func NewIngestHandler(service service.IngestService, logger zerolog.Logger) *IngestHandler {
	return &IngestHandler{
		service: service,
		logger:  logger.With().Str("component", "ingest_handler").Logger(),
	}
}

// Register wires ingest routes.
func (h *IngestHandler) Register(router fiber.Router) {
	router.Post("", h.upload)
}

func (h *IngestHandler) upload(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "file is required")
	}

	kind := c.FormValue("type", c.Query("type"))
	result, err := h.service.IngestUpload(withRequestContext(c), kind, file)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUploadTooLarge):
			return utils.SendError(c, fiber.StatusRequestEntityTooLarge, err.Error())
		case errors.Is(err, service.ErrUploadTypeNotAllowed):
			return utils.SendError(c, fiber.StatusUnsupportedMediaType, err.Error())
		case errors.Is(err, service.ErrIngestUnknownKind),
			errors.Is(err, service.ErrIngestMissingID),
			errors.Is(err, service.ErrIngestEmptyFile),
			errors.Is(err, service.ErrIngestInvalidCSV):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		default:
			requestLogger(h.logger, c).Error().Err(err).Str("type", kind).Msg("ingest failed")
			return utils.SendError(c, fiber.StatusInternalServerError, "ingest failed")
		}
	}

	requestLogger(h.logger, c).Info().
		Str("type", result.Kind).
		Int("rows", result.RowsProcessed).
		Int("created", result.Created).
		Int("updated", result.Updated).
		Int("issues", len(result.Issues)).
		Msg("ingest completed")

	return utils.SendSuccess(c, "ingest completed", result)
}
