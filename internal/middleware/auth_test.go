package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"quiz_portal/internal/config"
	"quiz_portal/internal/model"
	"quiz_portal/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-test-secret-test-secret"

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{JWT: config.JWTConfig{Secret: testSecret}}
	r := gin.New()
	r.Use(ConfigMiddleware(func() *config.Config { return cfg }))
	handlers = append(handlers, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user": util.GetUserFromContext(c).UserID})
	})
	r.GET("/x", handlers...)
	return r
}

func token(t *testing.T, role model.UserRole) string {
	user := &model.User{Name: "Ann", Email: "ann@example.com", Role: role}
	user.ID = "user-1"
	tok, err := util.GenerateJWT(user, "", testSecret, time.Hour)
	require.NoError(t, err)
	return tok
}

func TestLoginGate_NoToken(t *testing.T) {
	r := newRouter(LoginGate())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	var body struct {
		Message string            `json:"message"`
		Data    map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "login required", body.Message)
	assert.Equal(t, util.GateLogin, body.Data["gate"])
}

func TestLoginGate_QueryToken(t *testing.T) {
	r := newRouter(LoginGate())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x?token="+token(t, model.Student), nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "user-1")
}

func TestAuthMiddleware_BadToken(t *testing.T) {
	r := newRouter(AuthMiddleware())

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotContains(t, w.Body.String(), "gate")
}

func TestRoleMiddleware(t *testing.T) {
	r := newRouter(AuthMiddleware(), RoleMiddleware(model.Admin))

	for _, tc := range []struct {
		role model.UserRole
		code int
	}{
		{model.Student, http.StatusForbidden},
		{model.Admin, http.StatusOK},
	} {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set("Authorization", "Bearer "+token(t, tc.role))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, tc.code, w.Code, string(tc.role))
	}
}
