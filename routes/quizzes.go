package routes

import (
	"context"
	"net/http"

	"study-assistant-platform/internal/progress"
	"study-assistant-platform/internal/quiz"
	"study-assistant-platform/middleware"
	"study-assistant-platform/models"
	"study-assistant-platform/services"
	"study-assistant-platform/utils"

	"github.com/gin-gonic/gin"
)

// QuizAPI is implemented by services.QuizService.
type QuizAPI interface {
	Generate(ctx context.Context, req services.GenerateQuizRequest) (*models.QuizWithQuestions, error)
	Get(ctx context.Context, id, userID string) (*models.QuizWithQuestions, error)
	List(ctx context.Context, userID, documentID string) ([]models.Quiz, error)
	StartAttempt(ctx context.Context, quizID, userID string) (*models.QuizAttempt, error)
	Submit(ctx context.Context, attemptID, userID string, sub quiz.Submission) (*quiz.GradeResult, error)
	Attempt(ctx context.Context, attemptID, userID string) (*services.AttemptDetail, error)
	Attempts(ctx context.Context, userID string) ([]models.QuizAttempt, error)
	Stats(ctx context.Context, userID string) (*models.AttemptStats, error)
	Progress(ctx context.Context, userID string) (*progress.Summary, error)
}

// SetupQuizRoutes registers quiz, attempt and progress endpoints. aiLimit
// guards the endpoints that call the LLM.
func SetupQuizRoutes(api *gin.RouterGroup, quizzes QuizAPI, aiLimit gin.HandlerFunc) {
	q := api.Group("/quizzes")
	{
		q.POST("/generate", aiLimit, handleGenerateQuiz(quizzes))
		q.GET("", handleListQuizzes(quizzes))
		q.GET("/:id", handleGetQuiz(quizzes))
		q.POST("/:id/attempts", handleStartAttempt(quizzes))
	}

	attempts := api.Group("/attempts")
	{
		attempts.GET("", handleListAttempts(quizzes))
		attempts.GET("/:id", handleGetAttempt(quizzes))
		attempts.POST("/:id/submit", aiLimit, handleSubmitAttempt(quizzes))
	}

	api.GET("/progress", handleProgress(quizzes))
	api.GET("/progress/stats", handleAttemptStats(quizzes))
}

func handleGenerateQuiz(quizzes QuizAPI) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req services.GenerateQuizRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid quiz request", gin.H{"error": err.Error()})
			return
		}
		req.UserID = middleware.GetUserID(c)

		result, err := quizzes.Generate(c.Request.Context(), req)
		if err != nil {
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, result)
	}
}

func handleListQuizzes(quizzes QuizAPI) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := quizzes.List(c.Request.Context(), middleware.GetUserID(c), c.Query("document_id"))
		if err != nil {
			respondWithError(c, err)
			return
		}
		if list == nil {
			list = []models.Quiz{}
		}
		c.JSON(http.StatusOK, gin.H{"quizzes": list, "total": len(list)})
	}
}

func handleGetQuiz(quizzes QuizAPI) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := quizzes.Get(c.Request.Context(), c.Param("id"), middleware.GetUserID(c))
		if err != nil {
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func handleStartAttempt(quizzes QuizAPI) gin.HandlerFunc {
	return func(c *gin.Context) {
		attempt, err := quizzes.StartAttempt(c.Request.Context(), c.Param("id"), middleware.GetUserID(c))
		if err != nil {
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, attempt)
	}
}

func handleSubmitAttempt(quizzes QuizAPI) gin.HandlerFunc {
	return func(c *gin.Context) {
		var sub quiz.Submission
		if err := c.ShouldBindJSON(&sub); err != nil {
			utils.RespondWithBadRequest(c, "Invalid submission", gin.H{"error": err.Error()})
			return
		}
		if sub.TimeTaken < 0 {
			utils.RespondWithBadRequest(c, "time_taken must not be negative", nil)
			return
		}

		result, err := quizzes.Submit(c.Request.Context(), c.Param("id"), middleware.GetUserID(c), sub)
		if err != nil {
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func handleListAttempts(quizzes QuizAPI) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := quizzes.Attempts(c.Request.Context(), middleware.GetUserID(c))
		if err != nil {
			respondWithError(c, err)
			return
		}
		if list == nil {
			list = []models.QuizAttempt{}
		}
		c.JSON(http.StatusOK, gin.H{"attempts": list, "total": len(list)})
	}
}

func handleGetAttempt(quizzes QuizAPI) gin.HandlerFunc {
	return func(c *gin.Context) {
		detail, err := quizzes.Attempt(c.Request.Context(), c.Param("id"), middleware.GetUserID(c))
		if err != nil {
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, detail)
	}
}

func handleAttemptStats(quizzes QuizAPI) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := quizzes.Stats(c.Request.Context(), middleware.GetUserID(c))
		if err != nil {
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

func handleProgress(quizzes QuizAPI) gin.HandlerFunc {
	return func(c *gin.Context) {
		summary, err := quizzes.Progress(c.Request.Context(), middleware.GetUserID(c))
		if err != nil {
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}
