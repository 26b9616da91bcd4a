package handlerUtil

import (
	"errors"

	"VerifyGolang/internal/api/verification"
	"VerifyGolang/pkg/log"
	"VerifyGolang/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/sirupsen/logrus"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

type ErrorHandler struct {
	logger *logrus.Logger
}

func New(logger *logrus.Logger) *ErrorHandler {
	return &ErrorHandler{
		logger: logger,
	}
}

func (h *ErrorHandler) Handle(c *fiber.Ctx, requestID string, err error, path string, operation string) error {
	var respErr *response.Error
	if errors.As(err, &respErr) {
		h.logger.WithFields(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
			"code":       respErr.Code,
			"path":       path,
			"operation":  operation,
		}).Warn("Operation failed with error response")
		return c.Status(respErr.Code).JSON(fiber.Map{"error": err.Error()})
	}

	if errors.Is(err, verification.ErrSessionNotFound) {
		h.logger.WithFields(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
			"path":       path,
			"operation":  operation,
		}).Warn("Verification session not found")
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"message": "Verification session not found",
			"code":    "SESSION_NOT_FOUND",
		})
	}

	if errors.Is(err, verification.ErrMissingIDFace) {
		h.logger.WithFields(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
			"path":       path,
			"operation":  operation,
		}).Warn("No cropped document face for session")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Upload the document front side first",
			"code":    "MISSING_ID_FACE",
		})
	}

	if errors.Is(err, verification.ErrMissingVideo) {
		h.logger.WithFields(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
			"path":       path,
			"operation":  operation,
		}).Warn("No recording for session")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Upload the selfie recording first",
			"code":    "MISSING_VIDEO",
		})
	}

	if errors.Is(err, verification.ErrNoFaceOnDocument) {
		h.logger.WithFields(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
			"path":       path,
			"operation":  operation,
		}).Warn("No face on uploaded document")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "No face found on the uploaded document",
			"code":    "NO_FACE_ON_DOCUMENT",
		})
	}

	if errors.Is(err, verification.ErrNormalizationFailed) {
		h.logger.WithFields(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
			"path":       path,
			"operation":  operation,
		}).Error("Video normalization failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Recording could not be processed",
			"code":    "NORMALIZATION_FAILED",
		})
	}

	if errors.Is(err, verification.ErrNoFramesSampled) {
		h.logger.WithFields(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
			"path":       path,
			"operation":  operation,
		}).Error("Frame sampling produced nothing")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Recording yielded no usable frames",
			"code":    "NO_FRAMES_SAMPLED",
		})
	}

	if errors.Is(err, verification.ErrMatcherUnavailable) {
		h.logger.WithFields(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
			"path":       path,
			"operation":  operation,
		}).Error("Face matching service unavailable")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"message": "Face matching service unavailable",
			"code":    "MATCHER_UNAVAILABLE",
		})
	}

	h.logger.WithFields(log.Fields{
		"request_id": requestID,
		"error":      err.Error(),
		"path":       path,
		"operation":  operation,
	}).Error("Unexpected error")

	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "An unexpected error occurred",
	})
}

func (h *ErrorHandler) HandleValidationError(c *fiber.Ctx, requestID string, err error, path string) error {
	h.logger.WithFields(log.Fields{
		"request_id": requestID,
		"error":      err.Error(),
		"path":       path,
	}).Warn("Validation failed")

	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": "Validation failed: " + err.Error(),
		"code":  "VALIDATION_ERROR",
	})
}

func (h *ErrorHandler) HandleRequestTimeout(c *fiber.Ctx) error {
	return c.Status(fiber.StatusRequestTimeout).JSON(utils.StatusMessage(fiber.StatusRequestTimeout))
}

func (h *ErrorHandler) HandleUnauthorized(c *fiber.Ctx, requestID string, message string) error {
	h.logger.WithFields(log.Fields{
		"request_id": requestID,
		"path":       c.Path(),
		"message":    message,
	}).Warn("Unauthorized access")

	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error": message,
		"code":  "UNAUTHORIZED",
	})
}

func (h *ErrorHandler) HandleSuccess(c *fiber.Ctx, statusCode int, data interface{}) error {
	if data == nil {
		return c.SendStatus(statusCode)
	}
	return c.Status(statusCode).JSON(data)
}
