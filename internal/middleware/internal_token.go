package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/chapter-points-api/pkg/errors"
	"github.com/noah-isme/chapter-points-api/pkg/response"
)

// InternalTokenHeader carries the shared secret for service-to-service calls.
const InternalTokenHeader = "X-Internal-Token"

// InternalToken admits requests presenting the shared token. An empty token
// disables the guarded routes entirely.
func InternalToken(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "internal endpoints are disabled"))
			c.Abort()
			return
		}
		presented := c.GetHeader(InternalTokenHeader)
		if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid internal token"))
			c.Abort()
			return
		}
		c.Next()
	}
}
