package middlewares

import "github.com/gin-gonic/gin"

// gin context keys
const (
	CtxRequestID = "request_id"
	CtxSessionID = "session_id"
)

func SessionIDFrom(c *gin.Context) string {
	return c.GetString(CtxSessionID)
}
