package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func performAdminRequest(apiKey string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/admin/ping", ValidateAPIKey, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	if apiKey != "" {
		req.Header.Set("X-API-KEY", apiKey)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestValidateAPIKey(t *testing.T) {
	t.Setenv("ADMIN_API_KEY", "secret")

	assert.Equal(t, http.StatusOK, performAdminRequest("secret").Code)
	assert.Equal(t, http.StatusUnauthorized, performAdminRequest("wrong").Code)
	assert.Equal(t, http.StatusUnauthorized, performAdminRequest("").Code)
}
