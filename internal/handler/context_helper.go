package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/sigea-dev/almacen-api/internal/middleware"
	"github.com/sigea-dev/almacen-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// actorFromContext resolves the display name stamped on movements and
// delivery history. Nil when the route is unauthenticated.
func actorFromContext(c *gin.Context) *string {
	claims := claimsFromContext(c)
	if claims == nil {
		return nil
	}
	nombre := claims.FullName
	if nombre == "" {
		nombre = claims.UserID
	}
	return &nombre
}
