package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-presence-api/internal/models"
	"github.com/noah-isme/campus-presence-api/internal/service"
)

const testSecret = "middleware_test_secret"

func testAuthService() *service.AuthService {
	return service.NewAuthService(nil, nil, nil, nil, service.AuthConfig{
		Secret:     testSecret,
		Expiration: time.Hour,
		Issuer:     "campus-presence-api",
	})
}

func signToken(t *testing.T, role models.UserRole) string {
	t.Helper()
	now := time.Now().UTC()
	claims := &models.JWTClaims{
		StudentID: "stu-1",
		Role:      role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "stu-1",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func protectedRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	chain := append(handlers, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/protected", chain...)
	return router
}

func TestJWTMissingHeader(t *testing.T) {
	router := protectedRouter(JWT(testAuthService()))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJWTMalformedHeader(t *testing.T) {
	router := protectedRouter(JWT(testAuthService()))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Token abc")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJWTValidTokenPasses(t *testing.T) {
	router := protectedRouter(JWT(testAuthService()))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, models.RoleStudent))
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
}

func TestRBACStudentForbiddenOnTeacherRoute(t *testing.T) {
	router := protectedRouter(JWT(testAuthService()), RequireRoles(models.RoleTeacher))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, models.RoleStudent))
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestRBACTeacherAllowed(t *testing.T) {
	router := protectedRouter(JWT(testAuthService()), RequireRoles(models.RoleTeacher))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, models.RoleTeacher))
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
}
