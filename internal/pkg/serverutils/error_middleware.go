package serverutils

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/noman-nawaz-dev/chatbot-backend/internal/service"
	"github.com/noman-nawaz-dev/chatbot-backend/pkg/history"
	"github.com/noman-nawaz-dev/chatbot-backend/pkg/llm"
	"github.com/noman-nawaz-dev/chatbot-backend/pkg/stream"
)

// ErrorHandlerMiddleware maps domain errors onto HTTP statuses and a uniform
// response envelope.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return ctx.Status(fiberErr.Code).JSON(ErrorResponse(fiberErr.Code, fiberErr.Message))
		}

		var validationErr *ValidationError
		if errors.As(err, &validationErr) {
			return ctx.Status(fiber.StatusBadRequest).JSON(ErrorResponse(fiber.StatusBadRequest, validationErr.Error()))
		}

		if errors.Is(err, service.ErrSessionNotFound) {
			return ctx.Status(fiber.StatusNotFound).JSON(ErrorResponse(fiber.StatusNotFound, "Session not found"))
		}
		if errors.Is(err, stream.ErrChannelNotFound) {
			return ctx.Status(fiber.StatusNotFound).JSON(ErrorResponse(fiber.StatusNotFound, "Stream not found or already finished"))
		}
		if errors.Is(err, stream.ErrAlreadySubscribed) {
			return ctx.Status(fiber.StatusConflict).JSON(ErrorResponse(fiber.StatusConflict, "Stream already has a consumer"))
		}

		var genErr *llm.GenerationError
		if errors.As(err, &genErr) {
			log.Printf("[ERROR] Generation failure: %v", genErr)
			return ctx.Status(fiber.StatusBadGateway).JSON(ErrorResponse(fiber.StatusBadGateway, "Generation backend unavailable"))
		}

		var persistErr *history.PersistenceError
		if errors.As(err, &persistErr) {
			log.Printf("[ERROR] Persistence failure: %v", persistErr)
			return ctx.Status(fiber.StatusInternalServerError).JSON(ErrorResponse(fiber.StatusInternalServerError, "Storage backend unavailable"))
		}

		log.Printf("[ERROR] Unhandled error: %v", err)
		return ctx.Status(fiber.StatusInternalServerError).JSON(ErrorResponse(fiber.StatusInternalServerError, "Internal server error"))
	}
}
