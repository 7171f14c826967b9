package handler

import (
	"ecom-studio/internal/generation"
	"ecom-studio/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Auth request bodies.
type registerRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Batch request bodies.
type createBatchRequest struct {
	// ProductURLs may be empty to start a blank batch.
	ProductURLs []string `json:"product_urls"`
}

type addProductURLUnitRequest struct {
	ProductURL string `json:"product_url" binding:"required"`
}

type addLibraryUnitRequest struct {
	// ImageURLs restricts the candidates to specific library images; empty
	// means the whole library.
	ImageURLs []string `json:"image_urls"`
}

type selectImageRequest struct {
	ImageURL string `json:"image_url" binding:"required"`
}

type updateSettingsRequest struct {
	Slot     int                      `json:"slot"`
	Settings generation.ImageSettings `json:"settings" binding:"required"`
}

// Credits / admin request bodies.
type adjustCreditsRequest struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
	Delta  int       `json:"delta" binding:"required"`
}

type pricingRequest struct {
	BasePrice    int `json:"base_price"`
	DiscountRate int `json:"discount_rate"`
}

type broadcastRequest struct {
	Message string `json:"message" binding:"required"`
}

type favoriteRequest struct {
	Favorite bool `json:"favorite"`
}

// currentUserID extracts the authenticated user's ID set by the auth
// middleware. The boolean is false when the middleware did not run.
func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	raw, exists := c.Get(models.UserContextKey)
	if !exists {
		return uuid.Nil, false
	}
	userID, ok := raw.(uuid.UUID)
	return userID, ok
}
