package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	paymentdomain "github.com/smallbiznis/pixbot/internal/payment/domain"
	productdomain "github.com/smallbiznis/pixbot/internal/product/domain"
	saledomain "github.com/smallbiznis/pixbot/internal/sale/domain"
)

type Service interface {
	Initiate(ctx context.Context, req Request) (*Result, error)
}

type Request struct {
	Buyer     paymentdomain.Buyer
	ProductID snowflake.ID
}

// Result is what the buyer needs to pay: the PIX QR image, the copy-and-paste
// code and the provider checkout page.
type Result struct {
	Sale      *saledomain.Sale
	Product   *productdomain.Product
	Charge    *paymentdomain.Charge
	QRImage   []byte
	CopyCode  string
	TicketURL string
}

var (
	ErrInvalidBuyer       = errors.New("invalid_buyer")
	ErrRateLimited        = errors.New("rate_limited")
	ErrPurchaseInProgress = errors.New("purchase_in_progress")
)
