package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"ecom-studio/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// TokenVerifier проверяет строку токена и возвращает claims.
// Ошибки: models.ErrTokenInvalid, models.ErrTokenExpired, models.ErrTokenMalformed.
type TokenVerifier func(ctx context.Context, tokenString string) (*models.Claims, error)

// Auth creates a Gin middleware that extracts the bearer token, verifies it
// and checks the required roles. UserID and roles are stored in the Gin
// context under models.UserContextKey and models.RolesContextKey.
func Auth(verifier TokenVerifier, logger *zap.Logger, requiredRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logger.With(zap.String("path", c.Request.URL.Path))

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			log.Warn("Authorization header missing")
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
				Code: models.ErrCodeTokenInvalid, Message: "Unauthorized: Missing token",
			})
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			log.Warn("Malformed Authorization header")
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
				Code: models.ErrCodeTokenInvalid, Message: "Unauthorized: Malformed token header",
			})
			return
		}
		tokenString := parts[1]

		claims, err := verifier(c.Request.Context(), tokenString)
		if err != nil {
			status := http.StatusUnauthorized
			code := models.ErrCodeTokenInvalid
			msg := "Unauthorized: Invalid token"
			switch {
			case errors.Is(err, models.ErrTokenExpired):
				code = models.ErrCodeTokenExpired
				msg = "Unauthorized: Token expired"
			case errors.Is(err, models.ErrTokenMalformed), errors.Is(err, models.ErrTokenInvalid):
				// Одинаковое сообщение для невалидного и некорректного токена
			default:
				log.Error("Unexpected token verification error", zap.Error(err))
				status = http.StatusInternalServerError
				code = models.ErrCodeInternal
				msg = "Internal server error during token verification"
			}
			// Логгируем только начало токена
			tokenSnippet := tokenString
			if len(tokenSnippet) > 10 {
				tokenSnippet = tokenSnippet[:10] + "..."
			}
			log.Warn("Token verification failed", zap.Error(err), zap.String("tokenSnippet", tokenSnippet))
			c.AbortWithStatusJSON(status, models.ErrorResponse{Code: code, Message: msg})
			return
		}

		if len(requiredRoles) > 0 {
			hasRequiredRole := false
			for _, requiredRole := range requiredRoles {
				if models.HasRole(claims.Roles, requiredRole) {
					hasRequiredRole = true
					break
				}
			}
			if !hasRequiredRole {
				log.Warn("User does not have required role",
					zap.String("userID", claims.UserID.String()),
					zap.Strings("userRoles", claims.Roles),
					zap.Strings("requiredRoles", requiredRoles),
				)
				c.AbortWithStatusJSON(http.StatusForbidden, models.ErrorResponse{
					Code: models.ErrCodeForbidden, Message: "Forbidden: Insufficient permissions",
				})
				return
			}
		}

		c.Set(models.UserContextKey, claims.UserID)
		c.Set(models.RolesContextKey, claims.Roles)
		c.Set(models.AccessUUIDContextKey, claims.AccessUUID)

		log.Debug("User authorized", zap.String("userID", claims.UserID.String()), zap.Strings("roles", claims.Roles))
		c.Next()
	}
}
