package webhook

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"kitportal_backend/platform/httpkit"
)

// CredentialHeader carries the shared webhook credential.
const CredentialHeader = "X-Carrier-Webhook-Key"

// SharedKeyAuth authenticates carrier deliveries with a constant-time
// comparison against the configured shared credential.
func SharedKeyAuth(key string) gin.HandlerFunc {
	expected := []byte(key)
	return func(c *gin.Context) {
		presented := []byte(c.GetHeader(CredentialHeader))
		if len(expected) == 0 || subtle.ConstantTimeCompare(expected, presented) != 1 {
			httpkit.Error(c, http.StatusUnauthorized, "invalid webhook credential", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}
