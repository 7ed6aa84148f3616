package server

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// maxWebhookBody bounds notification payloads; provider callbacks are small.
const maxWebhookBody = 1 << 20

func (s *Server) HandlePaymentWebhook(c *gin.Context) {
	provider := strings.TrimSpace(c.Param("provider"))
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.paymentSvc.IngestWebhook(c.Request.Context(), provider, payload, c.Request.Header, c.Request.URL.Query())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Set("webhook_outcome", string(result.Outcome))
	c.JSON(http.StatusOK, gin.H{"status": result.Outcome})
}
