package domain

import (
	"context"
	"errors"
	"fmt"

	accessdomain "github.com/smallbiznis/pixbot/internal/access/domain"
	productdomain "github.com/smallbiznis/pixbot/internal/product/domain"
	saledomain "github.com/smallbiznis/pixbot/internal/sale/domain"
)

// Delivery carries what the buyer receives after an approved sale. Grant is
// set for passes only.
type Delivery struct {
	Sale    *saledomain.Sale
	Product *productdomain.Product
	Grant   *accessdomain.Grant
}

// Notifier sends purchased content to the buyer. Failures never affect the
// sale state.
type Notifier interface {
	Deliver(ctx context.Context, d Delivery) error
}

var (
	ErrDelivery        = errors.New("delivery_failed")
	ErrInvalidDelivery = errors.New("invalid_delivery")
)

type DeliveryError struct {
	SaleID string
	Step   string
	Err    error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver sale %s: %s: %v", e.SaleID, e.Step, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

func (e *DeliveryError) Is(target error) bool { return target == ErrDelivery }
