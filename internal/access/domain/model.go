package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Grant is a time-limited access right bought through a pass.
type Grant struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey;autoIncrement:false"`
	BuyerID   int64        `json:"buyer_id" gorm:"not null;index:ix_access_grants_buyer_product"`
	ProductID snowflake.ID `json:"product_id" gorm:"not null;index:ix_access_grants_buyer_product"`
	SaleID    snowflake.ID `json:"sale_id" gorm:"not null;uniqueIndex:ux_access_grants_sale_id"`
	StartsAt  time.Time    `json:"starts_at" gorm:"not null"`
	ExpiresAt time.Time    `json:"expires_at" gorm:"not null;index:ix_access_grants_buyer_product"`
	CreatedAt time.Time    `json:"created_at" gorm:"not null"`
}

func (Grant) TableName() string { return "access_grants" }

func (g Grant) Active(now time.Time) bool {
	return now.Before(g.ExpiresAt)
}

type ExtendRequest struct {
	BuyerID   int64
	ProductID snowflake.ID
	SaleID    snowflake.ID
	Days      int
	Now       time.Time
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, grant *Grant) error
	FindBySaleID(ctx context.Context, db *gorm.DB, saleID snowflake.ID) (*Grant, error)
	LatestActive(ctx context.Context, db *gorm.DB, buyerID int64, productID snowflake.ID, now time.Time) (*Grant, error)
	ListActive(ctx context.Context, db *gorm.DB, buyerID int64, now time.Time) ([]Grant, error)
}

type Service interface {
	// Extend runs on the caller's transaction so the grant commits together
	// with the sale approval.
	Extend(ctx context.Context, tx *gorm.DB, req ExtendRequest) (*Grant, error)
	ListActive(ctx context.Context, buyerID int64) ([]Grant, error)
}

var (
	ErrInvalidBuyer = errors.New("invalid_buyer")
	ErrInvalidDays  = errors.New("invalid_access_days")
	ErrInvalidSale  = errors.New("invalid_sale")
)
