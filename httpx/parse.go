package httpx

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Parse binds the parts of the request that are present: path parameters
// for routes like /cache/alerts/:id/ack, the query string (refresh, n,
// force) and a JSON body (the write event of POST /cache/invalidate).
// A part that is present but does not bind is an error.
func Parse(c *gin.Context, req any) error {
	if len(c.Params) > 0 {
		if err := c.ShouldBindUri(req); err != nil {
			return fmt.Errorf("路径参数无效: %w", err)
		}
	}

	if c.Request.URL.RawQuery != "" {
		if err := c.ShouldBindQuery(req); err != nil {
			return fmt.Errorf("查询参数无效: %w", err)
		}
	}

	if hasBody(c.Request) {
		// a chunked request may still turn out empty
		if err := c.ShouldBindJSON(req); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("请求体无效: %w", err)
		}
	}
	return nil
}

func hasBody(r *http.Request) bool {
	return r.Body != nil && r.Body != http.NoBody && r.ContentLength != 0
}
