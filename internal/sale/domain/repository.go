package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ApproveParams struct {
	PaymentID  string
	PayerName  string
	PayerEmail string
	ResolvedAt time.Time
}

type ListFilter struct {
	Status   Status
	BuyerID  int64
	BeforeID snowflake.ID
	Limit    int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, sale *Sale) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Sale, error)
	// FindPendingByID returns nil when the sale is missing or already resolved.
	FindPendingByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Sale, error)
	SetChargeID(ctx context.Context, db *gorm.DB, id snowflake.ID, chargeID string, snapshot []byte, at time.Time) error
	// Approve and Expire only touch pending rows and report whether a row changed.
	Approve(ctx context.Context, db *gorm.DB, id snowflake.ID, params ApproveParams) (bool, error)
	Expire(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Sale, error)
}
