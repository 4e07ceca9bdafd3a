package webserver

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// JWTMiddleware guards the operational endpoints. Tokens are issued
// out-of-band to the dashboard backend; only HMAC signing is accepted.
// With no secret configured every token would verify against an empty
// key, so the guarded routes refuse to serve instead.
func JWTMiddleware(secret []byte) gin.HandlerFunc {
	if len(secret) == 0 {
		log.Printf("[webserver] JWT_SECRET is not set; refusing all /v1 requests until it is configured")
		return func(c *gin.Context) {
			c.AbortWithStatus(http.StatusServiceUnavailable)
		}
	}
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if !strings.HasPrefix(h, "Bearer ") {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		tok, err := jwt.Parse(h[7:], func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return secret, nil
		})
		if err != nil || !tok.Valid {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		if claims, ok := tok.Claims.(jwt.MapClaims); ok {
			c.Set("sub", claims["sub"])
		}
		c.Next()
	}
}
