package middleware

import (
	"errors"
	"strings"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/pkg/jwt"
	"github.com/gin-gonic/gin"
)

// JWTAuth JWT authentication middleware.
// Browsers cannot set headers on a WebSocket upgrade, so a "token" query
// parameter is accepted as a fallback.
func JWTAuth(jwtManager *jwt.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			common.ErrorResponse(c, 401, "Missing authorization header", nil)
			c.Abort()
			return
		}

		claims, err := jwtManager.VerifyToken(tokenString)
		if err != nil {
			if errors.Is(err, jwt.ErrExpiredToken) {
				common.ErrorResponse(c, 401, "Token expired", err)
			} else {
				common.ErrorResponse(c, 401, "Invalid token", err)
			}
			c.Abort()
			return
		}

		c.Set("userID", claims.UserID)
		c.Set("nickname", claims.Nickname)
		c.Set("companyID", claims.CompanyID)
		c.Set("level", claims.Level)

		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		token := c.Query("token")
		return token, token != ""
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// GetUserID extracts user ID from context
func GetUserID(c *gin.Context) string {
	return getString(c, "userID")
}

// GetNickname extracts nickname from context
func GetNickname(c *gin.Context) string {
	return getString(c, "nickname")
}

// GetTokenCompanyID returns the company carried by the access token
func GetTokenCompanyID(c *gin.Context) string {
	return getString(c, "companyID")
}

// GetUserLevel extracts user level from context
func GetUserLevel(c *gin.Context) int {
	level, exists := c.Get("level")
	if !exists {
		return 0
	}
	if lvl, ok := level.(int); ok {
		return lvl
	}
	return 0
}

func getString(c *gin.Context, key string) string {
	v, exists := c.Get(key)
	if !exists {
		return ""
	}
	if str, ok := v.(string); ok {
		return str
	}
	return ""
}
