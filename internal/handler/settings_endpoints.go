package handler

import (
	"net/http"

	"ecom-studio/internal/models"
	"ecom-studio/internal/repository"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SettingsHandler exposes the user settings pages (billing address).
type SettingsHandler struct {
	billing repository.BillingAddressRepository
	logger  *zap.Logger
}

// NewSettingsHandler creates a new SettingsHandler.
func NewSettingsHandler(billing repository.BillingAddressRepository, logger *zap.Logger) *SettingsHandler {
	return &SettingsHandler{
		billing: billing,
		logger:  logger.Named("SettingsHandler"),
	}
}

// RegisterRoutes mounts the settings endpoints on the authenticated group.
func (h *SettingsHandler) RegisterRoutes(private *gin.RouterGroup) {
	settings := private.Group("/settings")
	{
		settings.GET("/billing-address", h.getBillingAddress)
		settings.PUT("/billing-address", h.putBillingAddress)
	}
}

func (h *SettingsHandler) getBillingAddress(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		handleServiceError(c, models.ErrUnauthorized)
		return
	}
	addr, err := h.billing.Get(c.Request.Context(), userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, addr)
}

func (h *SettingsHandler) putBillingAddress(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		handleServiceError(c, models.ErrUnauthorized)
		return
	}

	var addr models.BillingAddress
	if err := c.ShouldBindJSON(&addr); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{Code: models.ErrCodeBadRequest, Message: "Invalid request body: " + err.Error()})
		return
	}
	addr.UserID = userID

	if addr.FullName == "" || addr.Line1 == "" || addr.City == "" || addr.PostalCode == "" || addr.Country == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{Code: models.ErrCodeValidation, Message: "full_name, line1, city, postal_code and country are required"})
		return
	}

	if err := h.billing.Upsert(c.Request.Context(), &addr); err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, addr)
}
