package size

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/taskchat/taskchat/engine/infra/server/router"
)

// BodyLimit caps API request bodies at limit bytes. A declared Content-Length
// over the limit is answered with 413 before any handler runs. Chunked bodies
// are capped while reading and surface as *http.MaxBytesError to the handler.
func BodyLimit(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limit <= 0 || c.Request.Body == nil {
			c.Next()
			return
		}
		if c.Request.ContentLength > limit {
			router.RespondProblemWithCode(
				c,
				http.StatusRequestEntityTooLarge,
				router.ErrRequestTooLargeCode,
				fmt.Sprintf("request body exceeds %d bytes", limit),
			)
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}
