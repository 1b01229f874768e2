package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret = "test-secret"
	testUserID = "d2a6f4e8-5555-4b3c-8e9f-000000000051"
)

func signToken(t *testing.T, secret, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func setupAuthRouter(verifier *TokenVerifier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", AuthMiddleware(verifier), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetString(UserIDKey)})
	})
	return r
}

func TestAuthMiddlewareValidToken(t *testing.T) {
	router := setupAuthRouter(NewTokenVerifier(testSecret))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, testUserID))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), testUserID)
}

func TestAuthMiddlewareMissingHeader(t *testing.T) {
	router := setupAuthRouter(NewTokenVerifier(testSecret))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddlewareWrongScheme(t *testing.T) {
	router := setupAuthRouter(NewTokenVerifier(testSecret))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Basic abc")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddlewareWrongSecret(t *testing.T) {
	router := setupAuthRouter(NewTokenVerifier(testSecret))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "other-secret", testUserID))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestVerifyRejectsNonUUIDSubject(t *testing.T) {
	verifier := NewTokenVerifier(testSecret)

	_, err := verifier.Verify(signToken(t, testSecret, "alice"))
	assert.Error(t, err)
}

func TestVerifyReturnsSubject(t *testing.T) {
	verifier := NewTokenVerifier(testSecret)

	subject, err := verifier.Verify(signToken(t, testSecret, testUserID))
	require.NoError(t, err)
	assert.Equal(t, testUserID, subject)
}
