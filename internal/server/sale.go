package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	saledomain "github.com/smallbiznis/pixbot/internal/sale/domain"
)

func (s *Server) ListSales(c *gin.Context) {
	var req saledomain.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.Status = strings.ToLower(strings.TrimSpace(req.Status))

	resp, err := s.saleSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) GetSaleByID(c *gin.Context) {
	ctx := c.Request.Context()
	resp, err := s.saleSvc.Get(ctx, strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	body := gin.H{"data": resp}
	if resp.PaymentID != nil {
		event, err := s.paymentSvc.PaymentEvent(ctx, *resp.PaymentID)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if event != nil {
			body["payment_event"] = event
		}
	}

	c.JSON(http.StatusOK, body)
}

func isSaleValidationError(err error) bool {
	switch err {
	case saledomain.ErrInvalidID,
		saledomain.ErrInvalidStatus,
		saledomain.ErrInvalidBuyer:
		return true
	default:
		return false
	}
}
