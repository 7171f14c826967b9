package models

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Gin context keys for authenticated request data.
const (
	UserContextKey       = "userID"
	RolesContextKey      = "userRoles"
	AccessUUIDContextKey = "accessUUID"
)

// Claims - полезная нагрузка access-токена.
type Claims struct {
	UserID     uuid.UUID `json:"user_id"`
	Roles      []string  `json:"roles"`
	AccessUUID string    `json:"access_uuid"`
	jwt.RegisteredClaims
}

// RefreshClaims - полезная нагрузка refresh-токена.
type RefreshClaims struct {
	UserID      uuid.UUID `json:"user_id"`
	RefreshUUID string    `json:"refresh_uuid"`
	jwt.RegisteredClaims
}
