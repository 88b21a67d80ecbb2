package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func setupRouter(secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/trigger", ServiceAuthMiddleware(secret), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func TestServiceAuthMiddlewareRejectsMissingToken(t *testing.T) {
	r := setupRouter("s3cret")

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/trigger", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestServiceAuthMiddlewareAcceptsHeaderSecret(t *testing.T) {
	r := setupRouter("s3cret")

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/trigger", nil)
	req.Header.Set("X-Trigger-Secret", "s3cret")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestServiceAuthMiddlewareAcceptsBearerToken(t *testing.T) {
	r := setupRouter("s3cret")

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/trigger", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestServiceAuthMiddlewareRejectsWrongSecret(t *testing.T) {
	r := setupRouter("s3cret")

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/trigger", nil)
	req.Header.Set("X-Trigger-Secret", "wrong")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}
