package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/KOMKZ/go-yogan-cache/errcode"
	"github.com/KOMKZ/go-yogan-cache/metrics"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func newTestContext(cfg *errorLoggingConfigInternal) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/cache/alerts", nil)
	if cfg != nil {
		c.Set(errorLoggingConfigKey, *cfg)
	}
	return c, w
}

func TestOkJson(t *testing.T) {
	c, w := newTestContext(nil)
	OkJson(c, map[string]int{"size": 3})

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.Equal(t, 0, resp.Code)
	assert.Equal(t, "success", resp.Msg)
}

func TestNoRouteAndNoMethod(t *testing.T) {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.NoRoute(NoRouteHandler())
	r.NoMethod(NoMethodHandler())
	r.GET("/cache/report", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/cache/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, decode(t, w).Msg, "路由不存在")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/cache/report", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Contains(t, decode(t, w).Msg, "方法不允许")
}

func TestHandleError(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		c, w := newTestContext(nil)
		HandleError(c, nil)
		assert.Empty(t, w.Body.String())
	})

	t.Run("layered error keeps status and code", func(t *testing.T) {
		for _, level := range []string{"error", "warn", "info"} {
			c, w := newTestContext(&errorLoggingConfigInternal{Enable: true, FullErrorChain: true, LogLevel: level})
			HandleError(c, metrics.ErrAlertNotFound.WithData("id", "a1"))

			assert.Equal(t, http.StatusNotFound, w.Code)
			resp := decode(t, w)
			assert.Equal(t, 720001, resp.Code)
			assert.Equal(t, "告警不存在", resp.Msg)
		}
	})

	t.Run("unknown error hides the cause", func(t *testing.T) {
		c, w := newTestContext(&errorLoggingConfigInternal{Enable: true, LogLevel: "error"})
		HandleError(c, errors.New("dial tcp 10.0.0.3:6379: connection refused"))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		resp := decode(t, w)
		assert.Equal(t, 500, resp.Code)
		assert.Equal(t, "内部服务器错误", resp.Msg)
	})
}

func TestShouldLogError(t *testing.T) {
	notFound := errcode.New(72, 1, "metrics", "error.metrics.alert_not_found", "告警不存在", http.StatusNotFound)

	assert.False(t, shouldLogError(errorLoggingConfigInternal{Enable: false}, notFound))
	assert.True(t, shouldLogError(errorLoggingConfigInternal{Enable: true, IgnoreStatusMap: map[int]bool{}}, notFound))
	assert.False(t, shouldLogError(errorLoggingConfigInternal{Enable: true, IgnoreStatusMap: map[int]bool{404: true}}, notFound))
}

func TestErrorLoggingMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(ErrorLoggingMiddleware(ErrorLoggingConfig{Enable: true, IgnoreHTTPStatus: []int{400}, LogLevel: "warn"}))

	var got errorLoggingConfigInternal
	r.GET("/x", func(c *gin.Context) {
		got = getErrorLoggingConfig(c)
		c.Status(http.StatusNoContent)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.True(t, got.Enable)
	assert.True(t, got.IgnoreStatusMap[400])
	assert.Equal(t, "warn", got.LogLevel)
}
