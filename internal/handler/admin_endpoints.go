package handler

import (
	"net/http"
	"strconv"

	"ecom-studio/internal/models"
	"ecom-studio/internal/repository"
	"ecom-studio/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AdminHandler exposes the admin console endpoints: user listing, credit
// adjustments, pricing and broadcasts. All routes require ROLE_ADMIN.
type AdminHandler struct {
	users         repository.UserRepository
	credits       service.CreditService
	notifications service.NotificationService
	logger        *zap.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(
	users repository.UserRepository,
	credits service.CreditService,
	notifications service.NotificationService,
	logger *zap.Logger,
) *AdminHandler {
	return &AdminHandler{
		users:         users,
		credits:       credits,
		notifications: notifications,
		logger:        logger.Named("AdminHandler"),
	}
}

// RegisterRoutes mounts the admin endpoints on a ROLE_ADMIN-guarded group.
func (h *AdminHandler) RegisterRoutes(admin *gin.RouterGroup) {
	admin.GET("/users", h.listUsers)
	admin.POST("/credits/adjust", h.adjustCredits)
	admin.GET("/pricing", h.getPricing)
	admin.PUT("/pricing", h.setPricing)
	admin.POST("/broadcast", h.broadcast)
}

// listUsers returns users with their credit balances for the admin console.
func (h *AdminHandler) listUsers(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	users, err := h.users.ListUsersWithBalances(c.Request.Context(), limit, offset)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// adjustCredits applies a manual balance change to one user.
func (h *AdminHandler) adjustCredits(c *gin.Context) {
	var req adjustCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{Code: models.ErrCodeBadRequest, Message: "Invalid request body: " + err.Error()})
		return
	}

	// Проверяем, что пользователь существует
	if _, err := h.users.GetUserByID(c.Request.Context(), req.UserID); err != nil {
		handleServiceError(c, err)
		return
	}

	if err := h.credits.AdjustCredits(c.Request.Context(), req.UserID, req.Delta); err != nil {
		handleServiceError(c, err)
		return
	}

	h.logger.Info("Admin credit adjustment",
		zap.String("targetUserID", req.UserID.String()),
		zap.Int("delta", req.Delta),
	)
	c.JSON(http.StatusOK, gin.H{"message": "Credits adjusted"})
}

func (h *AdminHandler) getPricing(c *gin.Context) {
	pricing, err := h.credits.GetPricing(c.Request.Context())
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, pricing)
}

func (h *AdminHandler) setPricing(c *gin.Context) {
	var req pricingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{Code: models.ErrCodeBadRequest, Message: "Invalid request body: " + err.Error()})
		return
	}

	settings := models.PricingSettings{BasePrice: req.BasePrice, DiscountRate: req.DiscountRate}
	if err := h.credits.SetPricing(c.Request.Context(), settings); err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

// broadcast sends a notification to every registered user.
func (h *AdminHandler) broadcast(c *gin.Context) {
	var req broadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{Code: models.ErrCodeBadRequest, Message: "Invalid request body: " + err.Error()})
		return
	}

	count, err := h.notifications.Broadcast(c.Request.Context(), req.Message)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recipients": count})
}
