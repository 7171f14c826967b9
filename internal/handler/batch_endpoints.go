package handler

import (
	"net/http"

	"ecom-studio/internal/generation"
	"ecom-studio/internal/models"
	"ecom-studio/internal/sources"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxUploadBytes caps one uploaded image at 20 MiB.
const maxUploadBytes = 20 << 20

// BatchHandler exposes the batch session endpoints: creating batches,
// adding units, selecting images and launching generations.
type BatchHandler struct {
	generations generation.Service
	uploads     sources.UploadSource
	library     sources.LibrarySource
	logger      *zap.Logger
}

// NewBatchHandler creates a new BatchHandler.
func NewBatchHandler(
	generations generation.Service,
	uploads sources.UploadSource,
	library sources.LibrarySource,
	logger *zap.Logger,
) *BatchHandler {
	return &BatchHandler{
		generations: generations,
		uploads:     uploads,
		library:     library,
		logger:      logger.Named("BatchHandler"),
	}
}

// RegisterRoutes mounts the batch endpoints on the authenticated group.
func (h *BatchHandler) RegisterRoutes(private *gin.RouterGroup) {
	batches := private.Group("/batches")
	{
		batches.POST("", h.createBatch)
		batches.POST("/import", h.importSpreadsheet)
		batches.GET("/:batchID", h.getBatch)
		batches.DELETE("/:batchID", h.deleteBatch)

		batches.POST("/:batchID/units", h.addProductURLUnit)
		batches.POST("/:batchID/units/upload", h.addUploadUnit)
		batches.POST("/:batchID/units/library", h.addLibraryUnit)

		units := batches.Group("/:batchID/units/:unitID")
		{
			units.POST("/select", h.selectImage)
			units.POST("/deselect", h.deselectImage)
			units.POST("/confirm", h.confirmSelection)
			units.PUT("/settings", h.updateSettings)
			units.POST("/generate", h.generate)
			units.POST("/edit", h.editAgain)
			units.POST("/cancel", h.cancelGeneration)
		}
	}
}

func (h *BatchHandler) createBatch(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		handleServiceError(c, models.ErrUnauthorized)
		return
	}

	var req createBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{Code: models.ErrCodeBadRequest, Message: "Invalid request body: " + err.Error()})
		return
	}

	if len(req.ProductURLs) == 0 {
		batch := h.generations.CreateBatch(c.Request.Context(), userID)
		c.JSON(http.StatusCreated, batchResponse(batch))
		return
	}

	batch, err := h.generations.CreateBatchFromProductURLs(c.Request.Context(), userID, req.ProductURLs)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, batchResponse(batch))
}

// importSpreadsheet accepts an xlsx file and builds a batch from the product
// URLs in its first sheet.
func (h *BatchHandler) importSpreadsheet(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		handleServiceError(c, models.ErrUnauthorized)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{Code: models.ErrCodeBadRequest, Message: "Missing 'file' form field: " + err.Error()})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		handleServiceError(c, err)
		return
	}
	defer file.Close()

	batch, err := h.generations.ImportSpreadsheet(c.Request.Context(), userID, file)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	spreadsheetImportsTotal.Inc()
	c.JSON(http.StatusCreated, batchResponse(batch))
}

func (h *BatchHandler) getBatch(c *gin.Context) {
	userID, batchID, ok := h.batchParams(c)
	if !ok {
		return
	}
	batch, err := h.generations.GetBatch(c.Request.Context(), userID, batchID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, batchResponse(batch))
}

func (h *BatchHandler) deleteBatch(c *gin.Context) {
	userID, batchID, ok := h.batchParams(c)
	if !ok {
		return
	}
	if err := h.generations.DeleteBatch(c.Request.Context(), userID, batchID); err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Batch deleted"})
}

func (h *BatchHandler) addProductURLUnit(c *gin.Context) {
	userID, batchID, ok := h.batchParams(c)
	if !ok {
		return
	}
	var req addProductURLUnitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{Code: models.ErrCodeBadRequest, Message: "Invalid request body: " + err.Error()})
		return
	}
	unit, err := h.generations.AddProductURLUnit(c.Request.Context(), userID, batchID, req.ProductURL)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, unit)
}

// addUploadUnit stores the uploaded images in the library and creates a unit
// whose candidates are exactly those images.
func (h *BatchHandler) addUploadUnit(c *gin.Context) {
	userID, batchID, ok := h.batchParams(c)
	if !ok {
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

	candidates := make([]sources.ImageCandidate, 0, len(files))
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
		stored, err := h.uploads.StoreUpload(c.Request.Context(), userID, fileHeader.Filename, fileHeader.Header.Get("Content-Type"), file)
		file.Close()
		if err != nil {
			handleServiceError(c, err)
			return
		}
		uploadsTotal.Inc()
		candidates = append(candidates, sources.ImageCandidate{URL: stored.FilePath})
	}

	unit, err := h.generations.AddUnitWithCandidates(c.Request.Context(), userID, batchID, candidates)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, unit)
}

// addLibraryUnit creates a unit whose candidates come from the user's
// library, optionally narrowed to specific image URLs.
func (h *BatchHandler) addLibraryUnit(c *gin.Context) {
	userID, batchID, ok := h.batchParams(c)
	if !ok {
		return
	}

	var req addLibraryUnitRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{Code: models.ErrCodeBadRequest, Message: "Invalid request body: " + err.Error()})
		return
	}

	candidates, err := h.library.Candidates(c.Request.Context(), userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	if len(req.ImageURLs) > 0 {
		requested := make(map[string]bool, len(req.ImageURLs))
		for _, u := range req.ImageURLs {
			requested[u] = true
		}
		filtered := candidates[:0]
		for _, cand := range candidates {
			if requested[cand.URL] {
				filtered = append(filtered, cand)
			}
		}
		candidates = filtered
	}

	unit, err := h.generations.AddUnitWithCandidates(c.Request.Context(), userID, batchID, candidates)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, unit)
}

func (h *BatchHandler) selectImage(c *gin.Context) {
	h.unitAction(c, func(userID, batchID, unitID uuid.UUID) error {
		var req selectImageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return models.ErrInvalidInput
		}
		return h.generations.SelectImage(c.Request.Context(), userID, batchID, unitID, req.ImageURL)
	})
}

func (h *BatchHandler) deselectImage(c *gin.Context) {
	h.unitAction(c, func(userID, batchID, unitID uuid.UUID) error {
		var req selectImageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return models.ErrInvalidInput
		}
		return h.generations.DeselectImage(c.Request.Context(), userID, batchID, unitID, req.ImageURL)
	})
}

func (h *BatchHandler) confirmSelection(c *gin.Context) {
	h.unitAction(c, func(userID, batchID, unitID uuid.UUID) error {
		return h.generations.ConfirmSelection(c.Request.Context(), userID, batchID, unitID)
	})
}

func (h *BatchHandler) updateSettings(c *gin.Context) {
	h.unitAction(c, func(userID, batchID, unitID uuid.UUID) error {
		var req updateSettingsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return models.ErrInvalidInput
		}
		return h.generations.UpdateSettings(c.Request.Context(), userID, batchID, unitID, req.Slot, req.Settings)
	})
}

func (h *BatchHandler) editAgain(c *gin.Context) {
	h.unitAction(c, func(userID, batchID, unitID uuid.UUID) error {
		return h.generations.EditAgain(c.Request.Context(), userID, batchID, unitID)
	})
}

func (h *BatchHandler) cancelGeneration(c *gin.Context) {
	h.unitAction(c, func(userID, batchID, unitID uuid.UUID) error {
		return h.generations.CancelGeneration(c.Request.Context(), userID, batchID, unitID)
	})
}

func (h *BatchHandler) generate(c *gin.Context) {
	userID, batchID, ok := h.batchParams(c)
	if !ok {
		return
	}
	unitID, err := uuid.Parse(c.Param("unitID"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{Code: models.ErrCodeBadRequest, Message: "Invalid unit ID"})
		return
	}

	unit, err := h.generations.Generate(c.Request.Context(), userID, batchID, unitID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, unit)
}

// unitAction runs fn for a {batchID, unitID} pair and answers with the
// refreshed unit on success.
func (h *BatchHandler) unitAction(c *gin.Context, fn func(userID, batchID, unitID uuid.UUID) error) {
	userID, batchID, ok := h.batchParams(c)
	if !ok {
		return
	}
	unitID, err := uuid.Parse(c.Param("unitID"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{Code: models.ErrCodeBadRequest, Message: "Invalid unit ID"})
		return
	}

	if err := fn(userID, batchID, unitID); err != nil {
		handleServiceError(c, err)
		return
	}

	batch, err := h.generations.GetBatch(c.Request.Context(), userID, batchID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	unit, err := batch.UnitSnapshot(unitID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, unit)
}

func (h *BatchHandler) batchParams(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	userID, ok := currentUserID(c)
	if !ok {
		handleServiceError(c, models.ErrUnauthorized)
		return uuid.Nil, uuid.Nil, false
	}
	batchID, err := uuid.Parse(c.Param("batchID"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{Code: models.ErrCodeBadRequest, Message: "Invalid batch ID"})
		return uuid.Nil, uuid.Nil, false
	}
	return userID, batchID, true
}

// batchResponse serializes a batch with a stable unit snapshot.
func batchResponse(b *generation.Batch) gin.H {
	return gin.H{
		"id":         b.ID,
		"user_id":    b.UserID,
		"created_at": b.CreatedAt,
		"units":      b.UnitsSnapshot(),
	}
}
