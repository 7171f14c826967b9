package handler

import (
	"net/http"
	"strconv"

	"ecom-studio/internal/models"
	"ecom-studio/internal/service"
	"ecom-studio/internal/sources"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// GalleryHandler exposes the image library and generated video galleries.
type GalleryHandler struct {
	gallery service.GalleryService
	uploads sources.UploadSource
	logger  *zap.Logger
}

// NewGalleryHandler creates a new GalleryHandler.
func NewGalleryHandler(gallery service.GalleryService, uploads sources.UploadSource, logger *zap.Logger) *GalleryHandler {
	return &GalleryHandler{
		gallery: gallery,
		uploads: uploads,
		logger:  logger.Named("GalleryHandler"),
	}
}

// RegisterRoutes mounts the gallery endpoints on the authenticated group.
func (h *GalleryHandler) RegisterRoutes(private *gin.RouterGroup) {
	gallery := private.Group("/gallery")
	{
		gallery.GET("", h.list)
		gallery.POST("/upload", h.upload)
		gallery.POST("/:fileID/favorite", h.setFavorite)
		gallery.POST("/:fileID/viewed", h.markViewed)
	}
}

// list returns one page of gallery files.
// Query params: folder, type, favorites, sort, page.
func (h *GalleryHandler) list(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		handleServiceError(c, models.ErrUnauthorized)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	filter := models.FileFilter{
		Folder:        c.Query("folder"),
		FileType:      c.Query("type"),
		FavoritesOnly: c.Query("favorites") == "true",
		Sort:          c.DefaultQuery("sort", models.SortNewest),
		Page:          page,
	}

	result, err := h.gallery.List(c.Request.Context(), userID, filter)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// upload stores images directly into the library, outside any batch.
func (h *GalleryHandler) upload(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		handleServiceError(c, models.ErrUnauthorized)
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{Code: models.ErrCodeBadRequest, Message: "Invalid multipart form: " + err.Error()})
		return
	}
	files := form.File["images"]
	if len(files) == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{Code: models.ErrCodeBadRequest, Message: "At least one image is required in the 'images' field"})
		return
	}

	stored := make([]*models.UserFile, 0, len(files))
	for _, fileHeader := range files {
		if fileHeader.Size > maxUploadBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, models.ErrorResponse{Code: models.ErrCodeBadRequest, Message: "Image exceeds the upload size limit"})
			return
		}
		file, err := fileHeader.Open()
		if err != nil {
			handleServiceError(c, err)
			return
		}
		uf, err := h.uploads.StoreUpload(c.Request.Context(), userID, fileHeader.Filename, fileHeader.Header.Get("Content-Type"), file)
		file.Close()
		if err != nil {
			handleServiceError(c, err)
			return
		}
		uploadsTotal.Inc()
		stored = append(stored, uf)
	}

	c.JSON(http.StatusCreated, gin.H{"files": stored})
}

func (h *GalleryHandler) setFavorite(c *gin.Context) {
	userID, fileID, ok := h.fileParams(c)
	if !ok {
		return
	}
	var req favoriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{Code: models.ErrCodeBadRequest, Message: "Invalid request body: " + err.Error()})
		return
	}
	if err := h.gallery.SetFavorite(c.Request.Context(), userID, fileID, req.Favorite); err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "OK"})
}

func (h *GalleryHandler) markViewed(c *gin.Context) {
	userID, fileID, ok := h.fileParams(c)
	if !ok {
		return
	}
	if err := h.gallery.MarkViewed(c.Request.Context(), userID, fileID); err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "OK"})
}

func (h *GalleryHandler) fileParams(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	userID, ok := currentUserID(c)
	if !ok {
		handleServiceError(c, models.ErrUnauthorized)
		return uuid.Nil, uuid.Nil, false
	}
	fileID, err := uuid.Parse(c.Param("fileID"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{Code: models.ErrCodeBadRequest, Message: "Invalid file ID"})
		return uuid.Nil, uuid.Nil, false
	}
	return userID, fileID, true
}
