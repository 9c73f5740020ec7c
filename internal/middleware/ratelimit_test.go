package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/GoPolymarket/levergate/internal/config"
	"github.com/GoPolymarket/levergate/internal/manager"
	"github.com/GoPolymarket/levergate/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// 0.001 qps with burst 2: the third call in a row is throttled
	registry, err := service.NewCallerRegistry(config.AccessConfig{RateQPS: 0.001, RateBurst: 2})
	require.NoError(t, err)

	r := gin.New()
	r.Use(ErrorHandler(), MetricsMiddleware())
	r.Use(CallerAuth(config.AuthConfig{}, manager.NewNonceManager(nil)), RateLimitMiddleware(registry))
	r.GET("/v1/strategy", func(c *gin.Context) { c.Status(http.StatusOK) })

	call := func(caller string) int {
		req := httptest.NewRequest(http.MethodGet, "/v1/strategy", nil)
		req.Header.Set(HeaderCaller, caller)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	a := "0x00000000000000000000000000000000000000aa"
	b := "0x00000000000000000000000000000000000000bb"

	assert.Equal(t, http.StatusOK, call(a))
	assert.Equal(t, http.StatusOK, call(a))
	assert.Equal(t, http.StatusTooManyRequests, call(a))

	// limiters are per caller
	assert.Equal(t, http.StatusOK, call(b))
}

func TestRateLimitMiddleware_RequiresCaller(t *testing.T) {
	gin.SetMode(gin.TestMode)
	registry, err := service.NewCallerRegistry(config.AccessConfig{})
	require.NoError(t, err)

	r := gin.New()
	r.Use(RateLimitMiddleware(registry))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
