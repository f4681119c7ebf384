package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"fundlink/internal/service"
)

const authClaimsKey = "auth_claims"

type accessTokenParser interface {
	ParseAccessToken(accessToken string) (service.Claims, error)
}

// JWTAuthMiddleware valida el access token Bearer y guarda los claims en el contexto.
func JWTAuthMiddleware(tokens accessTokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokens == nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{Error: "jwt not configured"})
			return
		}

		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if len(header) < len("bearer ") || !strings.EqualFold(header[:len("bearer ")], "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: "missing token", Kind: "invalid_token"})
			return
		}

		claims, err := tokens.ParseAccessToken(strings.TrimSpace(header[len("bearer "):]))
		if err != nil || claims.IdentityID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: "invalid token", Kind: "invalid_token"})
			return
		}

		c.Set(authClaimsKey, claims)
		c.Next()
	}
}

// GetAuthClaims obtiene los claims JWT desde el contexto.
func GetAuthClaims(c *gin.Context) (service.Claims, bool) {
	val, ok := c.Get(authClaimsKey)
	if !ok {
		return service.Claims{}, false
	}
	claims, ok := val.(service.Claims)
	return claims, ok
}

func identityID(c *gin.Context) string {
	claims, _ := GetAuthClaims(c)
	return claims.IdentityID
}
