package util

import (
	"context"
	"quiz_portal/internal/model"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

type Claims struct {
	UserID string         `json:"user_id"`
	Role   model.UserRole `json:"role"`
	Email  string         `json:"email"`
	Name   string         `json:"name"`
	// UpstreamToken 远程后端签发的令牌，本地模式为空
	UpstreamToken string `json:"upstream_token,omitempty"`
	jwt.RegisteredClaims
}

func GenerateJWT(user *model.User, upstreamToken, secret string, expiration time.Duration) (string, error) {
	expirationTime := time.Now().Add(expiration)

	claims := &Claims{
		UserID:        user.ID,
		Role:          user.Role,
		Email:         user.Email,
		Name:          user.Name,
		UpstreamToken: upstreamToken,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Subject:   user.ID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ParseJWT(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, jwt.ErrTokenInvalidClaims
}

func GetUserFromContext(c *gin.Context) *Claims {
	user, exists := c.Get("user")
	if !exists {
		return nil
	}
	claims, ok := user.(*Claims)
	if !ok {
		return nil
	}
	return claims
}

type bearerKey struct{}

type userIDKey struct{}

// WithBearerToken 将远程后端令牌放入 context，供 upstream 客户端附加
func WithBearerToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, bearerKey{}, token)
}

func BearerToken(ctx context.Context) string {
	token, _ := ctx.Value(bearerKey{}).(string)
	return token
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserID 返回 context 中的当前用户 ID，匿名时为空
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey{}).(string)
	return id
}

// RequestContext 返回携带当前用户 ID 与远程令牌的请求 context
func RequestContext(c *gin.Context) context.Context {
	ctx := c.Request.Context()
	if claims := GetUserFromContext(c); claims != nil {
		ctx = WithUserID(ctx, claims.UserID)
		ctx = WithBearerToken(ctx, claims.UpstreamToken)
	}
	return ctx
}
