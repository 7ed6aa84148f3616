package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	productdomain "github.com/smallbiznis/pixbot/internal/product/domain"
	"github.com/smallbiznis/pixbot/pkg/db/pagination"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Sale, error)
	Get(ctx context.Context, id string) (*Response, error)
	List(ctx context.Context, req ListRequest) (*ListResponse, error)
	AttachCharge(ctx context.Context, id snowflake.ID, chargeID string, snapshot []byte) error
}

type Buyer struct {
	ID   int64
	Name string
}

type CreateRequest struct {
	Buyer   Buyer
	Product *productdomain.Product
}

type ListRequest struct {
	Status  string `form:"status"`
	BuyerID int64  `form:"buyer_id"`
	pagination.Pagination
}

type Response struct {
	ID          string          `json:"id"`
	Token       string          `json:"external_reference"`
	BuyerID     int64           `json:"buyer_id"`
	BuyerName   string          `json:"buyer_name"`
	ProductID   string          `json:"product_id"`
	ProductKind string          `json:"product_kind"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency"`
	Status      Status          `json:"status"`
	ChargeID    *string         `json:"charge_id,omitempty"`
	PaymentID   *string         `json:"payment_id,omitempty"`
	PayerName   *string         `json:"payer_name,omitempty"`
	PayerEmail  *string         `json:"payer_email,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	ResolvedAt  *time.Time      `json:"resolved_at,omitempty"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type ListResponse struct {
	Sales    []Response          `json:"sales"`
	PageInfo pagination.PageInfo `json:"page_info"`
}

var (
	ErrNotFound          = errors.New("not_found")
	ErrInvalidID         = errors.New("invalid_id")
	ErrInvalidBuyer      = errors.New("invalid_buyer")
	ErrInvalidProduct    = errors.New("invalid_product")
	ErrInvalidStatus     = errors.New("invalid_status")
	ErrInvalidTransition = errors.New("invalid_transition")
	ErrInvalidToken      = errors.New("invalid_token")
)
