package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// MaxBodyBytes caps request bodies. Reads past max fail, which the form binder reports.
func MaxBodyBytes(max int64) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		switch ctx.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
		default:
			if ctx.Request.Body != nil && max > 0 {
				ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, max)
			}
		}

		ctx.Next()
	}
}
