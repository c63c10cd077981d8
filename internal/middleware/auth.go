// Package middleware 提供了处理 HTTP 请求的中间件。
package middleware

import (
	"docqa-go/pkg/token"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ClaimsKey 是 claims 在 gin 上下文中的键。
const ClaimsKey = "claims"

// AuthMiddleware 校验 Bearer token，并要求 token 拥有所有给定的 scope。
// jwtManager 为 nil 时表示未启用鉴权，直接放行。
func AuthMiddleware(jwtManager *token.JWTManager, scopes ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if jwtManager == nil {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": "UNAUTHORIZED", "message": "missing authorization header"})
			return
		}

		// Token 以 "Bearer <token>" 的形式提供
		const bearerPrefix = "Bearer "
		if !strings.HasPrefix(authHeader, bearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": "UNAUTHORIZED", "message": "invalid authorization header"})
			return
		}

		claims, err := jwtManager.VerifyToken(strings.TrimPrefix(authHeader, bearerPrefix))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": "UNAUTHORIZED", "message": "invalid or expired token"})
			return
		}
		for _, s := range scopes {
			if !claims.HasScope(s) {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"code": "FORBIDDEN", "message": "token lacks scope " + s})
				return
			}
		}

		c.Set(ClaimsKey, claims)
		c.Next()
	}
}
