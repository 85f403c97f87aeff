package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
)

const (
	// CtxUserIDKey / CtxUserEmailKey 认证中间件写入 gin 上下文的键。
	CtxUserIDKey    = "authUserID"
	CtxUserEmailKey = "authUserEmail"
)

// userClaims 用户侧 JWT 载荷：subject 为用户 id。
type userClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

// JWTAuth 校验 Bearer Token 并把用户身份写入上下文。
// 未认证统一返回 401 AUTH_REQUIRED。
func JWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		tokenStr, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenStr == "" {
			abortAuthRequired(c)
			return
		}

		claims := &userClaims{}
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid || claims.Subject == "" {
			abortAuthRequired(c)
			return
		}

		c.Set(CtxUserIDKey, claims.Subject)
		c.Set(CtxUserEmailKey, claims.Email)
		c.Next()
	}
}

// AdminToken 管理端接口使用固定令牌头保护。
func AdminToken(adminToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("X-Admin-Token") != adminToken {
			abortAuthRequired(c)
			return
		}
		c.Next()
	}
}

func abortAuthRequired(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": "authentication required",
		"code":  "AUTH_REQUIRED",
	})
}

// UserID 从上下文取认证用户 id，空串表示未认证。
func UserID(c *gin.Context) string {
	return c.GetString(CtxUserIDKey)
}

// UserEmail 从上下文取认证用户邮箱。
func UserEmail(c *gin.Context) string {
	return c.GetString(CtxUserEmailKey)
}
