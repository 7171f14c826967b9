package models

import (
	"time"

	"github.com/google/uuid"
)

// Transaction types recorded in the credit ledger.
const (
	TransactionVideoGeneration = "video_generation"
	TransactionAdminAdjustment = "admin_adjustment"
	TransactionPurchase        = "purchase"
)

// Transaction - запись в истории операций с кредитами.
// Amount отрицательный для списаний, положительный для начислений.
type Transaction struct {
	ID              uuid.UUID `json:"id"`
	UserID          uuid.UUID `json:"user_id"`
	Amount          int       `json:"amount"`
	ImagesCount     int       `json:"images_count"`
	TransactionType string    `json:"transaction_type"`
	CreatedAt       time.Time `json:"created_at"`
}

// Admin settings keys for pricing.
const (
	SettingVideoPricePerImage = "video_price_per_image"
	SettingDiscountRate       = "discount_rate"
)

// Defaults applied when a pricing setting is absent from admin_settings.
const (
	DefaultVideoPricePerImage = 100
	DefaultDiscountRate       = 0
)

// PricingSettings is the admin-configured pricing pair.
type PricingSettings struct {
	BasePrice    int `json:"base_price"`
	DiscountRate int `json:"discount_rate"`
}
