package handler

import (
	"net/http"
	"strconv"

	"ecom-studio/internal/models"
	"ecom-studio/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CreditHandler exposes balance, pricing and ledger endpoints.
type CreditHandler struct {
	credits service.CreditService
	logger  *zap.Logger
}

// NewCreditHandler creates a new CreditHandler.
func NewCreditHandler(credits service.CreditService, logger *zap.Logger) *CreditHandler {
	return &CreditHandler{
		credits: credits,
		logger:  logger.Named("CreditHandler"),
	}
}

// RegisterRoutes mounts the credit endpoints on the authenticated group.
func (h *CreditHandler) RegisterRoutes(private *gin.RouterGroup) {
	credits := private.Group("/credits")
	{
		credits.GET("/balance", h.balance)
		credits.GET("/pricing", h.pricing)
		credits.GET("/transactions", h.transactions)
		credits.GET("/check", h.check)
	}
}

func (h *CreditHandler) balance(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		handleServiceError(c, models.ErrUnauthorized)
		return
	}
	balance, err := h.credits.GetBalance(c.Request.Context(), userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"credits": balance})
}

func (h *CreditHandler) pricing(c *gin.Context) {
	pricing, err := h.credits.GetPricing(c.Request.Context())
	if err != nil {
		handleServiceError(c, err)
		return
	}
	perImage, err := h.credits.EffectivePricePerImage(c.Request.Context())
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"base_price":      pricing.BasePrice,
		"discount_rate":   pricing.DiscountRate,
		"price_per_image": perImage,
	})
}

func (h *CreditHandler) transactions(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		handleServiceError(c, models.ErrUnauthorized)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	txs, err := h.credits.ListTransactions(c.Request.Context(), userID, limit, offset)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}

// check answers whether the balance covers a generation of the given number
// of images. Query param: images (1..4).
func (h *CreditHandler) check(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		handleServiceError(c, models.ErrUnauthorized)
		return
	}
	imageCount, err := strconv.Atoi(c.DefaultQuery("images", "1"))
	if err != nil || imageCount <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{Code: models.ErrCodeBadRequest, Message: "Invalid 'images' query parameter"})
		return
	}

	cost, shortfall, err := h.credits.CheckCredits(c.Request.Context(), userID, imageCount)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	if shortfall > 0 {
		c.JSON(http.StatusPaymentRequired, models.ErrorResponse{
			Code:      models.ErrCodeInsufficientCredits,
			Message:   "Not enough credits for this generation",
			Shortfall: shortfall,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cost": cost, "sufficient": true})
}
