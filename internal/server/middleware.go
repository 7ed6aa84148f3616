package server

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/pixbot/internal/observability/context"
)

const HeaderAdminKey = "X-Admin-Key"

// AdminKeyRequired guards the admin API with the static key from ADMIN_API_KEY.
// Without a configured key the admin API is closed.
func (s *Server) AdminKeyRequired() gin.HandlerFunc {
	expected := []byte(strings.TrimSpace(s.cfg.AdminAPIKey))
	return func(c *gin.Context) {
		if len(expected) == 0 {
			AbortWithError(c, ErrForbidden)
			return
		}
		provided := []byte(strings.TrimSpace(c.GetHeader(HeaderAdminKey)))
		if subtle.ConstantTimeCompare(provided, expected) != 1 {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		c.Request = c.Request.WithContext(obscontext.WithActor(c.Request.Context(), obscontext.ActorTypeAdmin, "api_key"))
		c.Next()
	}
}
