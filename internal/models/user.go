package models

import (
	"time"

	"github.com/google/uuid"
)

// Role names used in JWT claims and the users table.
const (
	RoleUser  = "ROLE_USER"
	RoleAdmin = "ROLE_ADMIN"
)

// HasRole reports whether the given role is present in the roles slice.
func HasRole(roles []string, role string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// User представляет учетную запись пользователя Ecom Studio.
type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Roles        []string  `json:"roles"`
	IsBanned     bool      `json:"is_banned"`
	CreatedAt    time.Time `json:"created_at"`
}

// Profile holds the billing-relevant part of a user: the integer credits
// balance consumed by video generation.
type Profile struct {
	UserID    uuid.UUID `json:"user_id"`
	Credits   int       `json:"credits"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserWithBalance is the admin console listing row.
type UserWithBalance struct {
	User
	Credits int `json:"credits"`
}

// TokenDetails содержит пару access/refresh токенов и их метаданные.
type TokenDetails struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	AccessUUID   string    `json:"-"`
	RefreshUUID  string    `json:"-"`
	AtExpires    int64     `json:"access_expires_at"`
	RtExpires    int64     `json:"refresh_expires_at"`
	UserID       uuid.UUID `json:"-"`
}

// BillingAddress is the billing record edited on the user settings pages.
type BillingAddress struct {
	UserID     uuid.UUID `json:"user_id"`
	FullName   string    `json:"full_name"`
	Company    string    `json:"company,omitempty"`
	Line1      string    `json:"line1"`
	Line2      string    `json:"line2,omitempty"`
	City       string    `json:"city"`
	PostalCode string    `json:"postal_code"`
	Country    string    `json:"country"`
	VATNumber  string    `json:"vat_number,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}
