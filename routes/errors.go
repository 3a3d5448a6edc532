package routes

import (
	"errors"
	"net/http"

	"study-assistant-platform/internal/ai"
	"study-assistant-platform/internal/database"
	"study-assistant-platform/internal/logger"
	"study-assistant-platform/internal/quiz"
	"study-assistant-platform/middleware"
	"study-assistant-platform/services"
	"study-assistant-platform/utils"

	"github.com/gin-gonic/gin"
	"github.com/sony/gobreaker"
)

// respondWithError maps domain errors to HTTP responses. Anything unknown is
// logged and reported as a 500 without internal detail.
func respondWithError(c *gin.Context, err error) {
	var (
		genErr   *quiz.InvalidGenerationResponseError
		llmErr   *ai.LLMServiceError
		embedErr *ai.EmbeddingServiceError
	)

	switch {
	case errors.Is(err, database.ErrNotFound):
		utils.RespondWithNotFound(c, "Resource not found")
	case errors.Is(err, services.ErrNoProcessedDocuments):
		utils.RespondWithError(c, http.StatusNotFound, "no_processed_documents", "No processed documents available for search", nil)

	case errors.Is(err, quiz.ErrDocumentNotReady):
		utils.RespondWithConflict(c, "document_not_ready", err.Error())
	case errors.Is(err, quiz.ErrAttemptCompleted):
		utils.RespondWithConflict(c, "attempt_completed", "Attempt has already been submitted")
	case errors.Is(err, services.ErrDocumentLimit):
		utils.RespondWithConflict(c, "document_limit_reached", err.Error())

	case errors.Is(err, services.ErrInvalidUpload),
		errors.Is(err, services.ErrEmptyQuery),
		errors.Is(err, quiz.ErrInvalidRequest):
		utils.RespondWithError(c, http.StatusUnprocessableEntity, "validation_failed", err.Error(), nil)

	case errors.Is(err, ai.ErrRateLimited), errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		c.Header("Retry-After", "30")
		utils.RespondWithError(c, http.StatusServiceUnavailable, "ai_unavailable", "AI service is temporarily unavailable, please retry shortly", nil)
	case errors.As(err, &genErr):
		utils.RespondWithError(c, http.StatusBadGateway, "invalid_generation_response", "The model returned an unusable quiz, please try again", gin.H{"reason": genErr.Reason})
	case errors.As(err, &llmErr), errors.As(err, &embedErr):
		utils.RespondWithError(c, http.StatusBadGateway, "ai_service_error", "AI service request failed", nil)

	default:
		logger.Error("Unhandled request error",
			"path", c.FullPath(),
			"request_id", middleware.GetRequestID(c),
			"error", err,
		)
		utils.RespondWithInternalError(c, "Internal server error", nil)
	}
}
