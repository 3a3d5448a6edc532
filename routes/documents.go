package routes

import (
	"context"
	"net/http"

	"study-assistant-platform/middleware"
	"study-assistant-platform/models"
	"study-assistant-platform/services"
	"study-assistant-platform/utils"

	"github.com/gin-gonic/gin"
)

// DocumentAPI is implemented by services.DocumentService.
type DocumentAPI interface {
	Upload(ctx context.Context, req services.UploadRequest) (*models.DocumentUploadResponse, error)
	Get(ctx context.Context, id, userID string) (*models.Document, error)
	List(ctx context.Context, userID string, status models.DocumentStatus) ([]models.Document, error)
	Chunks(ctx context.Context, id, userID string) ([]models.Chunk, error)
	Reprocess(ctx context.Context, id, userID string) (*models.DocumentUploadResponse, error)
	Delete(ctx context.Context, id, userID string) error
	Search(ctx context.Context, req services.SearchRequest) (*services.SearchResponse, error)
}

func SetupDocumentRoutes(api *gin.RouterGroup, docs DocumentAPI, maxFileSize int64) {
	documents := api.Group("/documents")
	{
		documents.POST("", middleware.RequestSizeLimit(maxFileSize+(1<<20)), handleUpload(docs))
		documents.GET("", handleListDocuments(docs))
		documents.GET("/:id", handleGetDocument(docs))
		documents.GET("/:id/chunks", handleListChunks(docs))
		documents.POST("/:id/reprocess", handleReprocess(docs))
		documents.DELETE("/:id", handleDeleteDocument(docs))
	}
	api.POST("/search", handleSearch(docs))
}

func handleUpload(docs DocumentAPI) gin.HandlerFunc {
	return func(c *gin.Context) {
		file, header, err := c.Request.FormFile("file")
		if err != nil {
			utils.RespondWithBadRequest(c, "No file provided", nil)
			return
		}
		defer file.Close()

		resp, err := docs.Upload(c.Request.Context(), services.UploadRequest{
			UserID:       middleware.GetUserID(c),
			Filename:     header.Filename,
			Title:        c.PostForm("title"),
			DocumentType: c.PostForm("document_type"),
			Size:         header.Size,
			Body:         file,
		})
		if err != nil {
			respondWithError(c, err)
			return
		}

		status := http.StatusAccepted
		if resp.Status != models.StatusUnprocessed {
			// duplicate of an existing document
			status = http.StatusOK
		}
		c.JSON(status, resp)
	}
}

func handleListDocuments(docs DocumentAPI) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := models.DocumentStatus(c.Query("status"))
		switch status {
		case "", models.StatusUnprocessed, models.StatusProcessed, models.StatusFailed:
		default:
			utils.RespondWithBadRequest(c, "Unknown status filter", gin.H{"status": status})
			return
		}

		list, err := docs.List(c.Request.Context(), middleware.GetUserID(c), status)
		if err != nil {
			respondWithError(c, err)
			return
		}
		if list == nil {
			list = []models.Document{}
		}
		c.JSON(http.StatusOK, gin.H{"documents": list, "total": len(list)})
	}
}

func handleGetDocument(docs DocumentAPI) gin.HandlerFunc {
	return func(c *gin.Context) {
		doc, err := docs.Get(c.Request.Context(), c.Param("id"), middleware.GetUserID(c))
		if err != nil {
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, doc)
	}
}

func handleListChunks(docs DocumentAPI) gin.HandlerFunc {
	return func(c *gin.Context) {
		chunks, err := docs.Chunks(c.Request.Context(), c.Param("id"), middleware.GetUserID(c))
		if err != nil {
			respondWithError(c, err)
			return
		}
		if chunks == nil {
			chunks = []models.Chunk{}
		}
		c.JSON(http.StatusOK, gin.H{"chunks": chunks, "total": len(chunks)})
	}
}

func handleReprocess(docs DocumentAPI) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp, err := docs.Reprocess(c.Request.Context(), c.Param("id"), middleware.GetUserID(c))
		if err != nil {
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, resp)
	}
}

func handleDeleteDocument(docs DocumentAPI) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := docs.Delete(c.Request.Context(), c.Param("id"), middleware.GetUserID(c)); err != nil {
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Document deleted"})
	}
}

type searchRequest struct {
	Query      string `json:"query" binding:"required"`
	DocumentID string `json:"document_id"`
	TopK       int    `json:"top_k" binding:"omitempty,min=1,max=50"`
}

func handleSearch(docs DocumentAPI) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req searchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid search request", gin.H{"error": err.Error()})
			return
		}

		resp, err := docs.Search(c.Request.Context(), services.SearchRequest{
			UserID:     middleware.GetUserID(c),
			Query:      req.Query,
			DocumentID: req.DocumentID,
			TopK:       req.TopK,
		})
		if err != nil {
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}
