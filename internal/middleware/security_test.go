package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestSecurityHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(SecurityHeaders())
	r.GET("/api/v1/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/swagger/*any", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/x", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	r.ServeHTTP(w, req)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.NotEmpty(t, w.Header().Get("Strict-Transport-Security"))

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/health", nil)
	r.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Cache-Control"))
	assert.Empty(t, w.Header().Get("Strict-Transport-Security"))
	assert.Contains(t, w.Header().Get("Content-Security-Policy"), "default-src 'none'")

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/swagger/index.html", nil)
	r.ServeHTTP(w, req)
	assert.Contains(t, w.Header().Get("Content-Security-Policy"), "script-src 'self'")
}

func TestRateLimitPerUser_FailsOpen(t *testing.T) {
	gin.SetMode(gin.TestMode)

	unreachable := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer unreachable.Close()

	for name, client := range map[string]*redis.Client{"nil": nil, "down": unreachable} {
		t.Run(name, func(t *testing.T) {
			r := gin.New()
			r.Use(RateLimitPerUser(client, RateLimitConfig{RequestsPerMinute: 1, KeyPrefix: "t:"}))
			r.POST("/send", func(c *gin.Context) { c.Status(http.StatusCreated) })

			for i := 0; i < 3; i++ {
				w := httptest.NewRecorder()
				req, _ := http.NewRequest("POST", "/send", nil)
				r.ServeHTTP(w, req)
				assert.Equal(t, http.StatusCreated, w.Code)
				assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
			}
		})
	}
}
