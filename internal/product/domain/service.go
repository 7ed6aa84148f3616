package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	List(ctx context.Context, req ListRequest) ([]Response, error)
	Get(ctx context.Context, id string) (*Response, error)
	Update(ctx context.Context, req UpdateRequest) (*Response, error)
	// GetActive returns the sellable product, or ErrNotFound when it is
	// missing or inactive.
	GetActive(ctx context.Context, id snowflake.ID) (*Product, error)
}

type ListRequest struct {
	Name   string
	Kind   Kind
	Active *bool
}

type CreateRequest struct {
	Code         string          `json:"code"`
	Kind         Kind            `json:"kind"`
	Name         string          `json:"name"`
	Description  *string         `json:"description"`
	Price        decimal.Decimal `json:"price"`
	DeliveryLink string          `json:"delivery_link"`
	AccessDays   int             `json:"access_days"`
	Active       *bool           `json:"active"`
	Metadata     map[string]any  `json:"metadata"`
}

type UpdateRequest struct {
	ID           string           `json:"-"`
	Name         *string          `json:"name"`
	Description  *string          `json:"description"`
	Price        *decimal.Decimal `json:"price"`
	DeliveryLink *string          `json:"delivery_link"`
	AccessDays   *int             `json:"access_days"`
	Active       *bool            `json:"active"`
	Metadata     map[string]any   `json:"metadata"`
}

type Response struct {
	ID           string          `json:"id"`
	Code         string          `json:"code"`
	Kind         Kind            `json:"kind"`
	Name         string          `json:"name"`
	Description  *string         `json:"description,omitempty"`
	Price        decimal.Decimal `json:"price"`
	DeliveryLink string          `json:"delivery_link"`
	AccessDays   int             `json:"access_days,omitempty"`
	Active       bool            `json:"active"`
	Metadata     map[string]any  `json:"metadata,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

var (
	ErrInvalidCode         = errors.New("invalid_code")
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidKind         = errors.New("invalid_kind")
	ErrInvalidPrice        = errors.New("invalid_price")
	ErrInvalidDeliveryLink = errors.New("invalid_delivery_link")
	ErrInvalidAccessDays   = errors.New("invalid_access_days")
	ErrNotFound            = errors.New("not_found")
	ErrInvalidID           = errors.New("invalid_id")
	ErrDuplicateCode       = errors.New("duplicate_code")
)
