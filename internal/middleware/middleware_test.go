package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func router(limit time.Duration, log *zap.Logger) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestLogger(log), NewRateLimiter(limit).Middleware())
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return r
}

func get(r http.Handler, clientID string) int {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	if clientID != "" {
		req.Header.Set("X-Client-ID", clientID)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimiter(t *testing.T) {
	r := router(time.Hour, zap.NewNop())

	assert.Equal(t, http.StatusOK, get(r, "a"))
	assert.Equal(t, http.StatusTooManyRequests, get(r, "a"))
	assert.Equal(t, http.StatusOK, get(r, "b"), "limits are per client")

	assert.Equal(t, http.StatusOK, get(r, ""), "falls back to client address")
	assert.Equal(t, http.StatusTooManyRequests, get(r, ""))
}

func TestRateLimiter_Disabled(t *testing.T) {
	r := router(0, zap.NewNop())
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, get(r, "a"))
	}
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := router(0, zap.New(core))
	get(r, "a")

	entries := logs.FilterMessage("http request").All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "/ping", fields["path"])
		assert.EqualValues(t, http.StatusOK, fields["status"])
	}
}
