package middleware

import (
	"net/http"
	"quiz_portal/internal/config"
	"quiz_portal/internal/model"
	"quiz_portal/internal/util"
	"quiz_portal/pkg/logger"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ConfigMiddleware 把当前配置放入请求上下文
func ConfigMiddleware(cfg func() *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("config", cfg())
		c.Next()
	}
}

func tokenFrom(c *gin.Context) string {
	tokenString := ""
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		tokenString = strings.TrimPrefix(authHeader, "Bearer ")
	}

	// websocket 无法设置请求头，允许查询参数携带
	if tokenString == "" {
		tokenString = c.Query("token")
	}
	return tokenString
}

func parseClaims(c *gin.Context) (*util.Claims, bool) {
	tokenString := tokenFrom(c)
	if tokenString == "" {
		return nil, false
	}
	cfg := c.MustGet("config").(*config.Config)
	claims, err := util.ParseJWT(tokenString, cfg.JWT.Secret)
	if err != nil {
		logger.Log.Debug("JWT解析错误", zap.Error(err))
		return nil, false
	}
	return claims, true
}

func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := parseClaims(c)
		if !ok {
			util.Unauthorized(c)
			c.Abort()
			return
		}
		c.Set("user", claims)
		c.Next()
	}
}

// TryAuthMiddleware 可选登录：令牌有效时注入用户，否则按匿名继续
func TryAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, ok := parseClaims(c); ok {
			c.Set("user", claims)
		}
		c.Next()
	}
}

// LoginGate 进入作答前要求登录；未登录返回 gate=login 而不是普通 401
func LoginGate() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := parseClaims(c)
		if !ok {
			util.Gate(c, http.StatusUnauthorized, util.GateLogin, "login required")
			c.Abort()
			return
		}
		c.Set("user", claims)
		c.Next()
	}
}

func RoleMiddleware(roles ...model.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := util.GetUserFromContext(c)
		if user == nil {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		hasRole := false
		for _, role := range roles {
			// 管理员拥有全部权限
			if user.Role == model.Admin || user.Role == role {
				hasRole = true
				break
			}
		}

		if !hasRole {
			util.Forbidden(c)
			c.Abort()
			return
		}
		c.Next()
	}
}
