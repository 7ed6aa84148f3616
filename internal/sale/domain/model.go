package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusExpired  Status = "expired"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusExpired:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusExpired
}

// CanTransition allows only pending -> approved and pending -> expired.
func CanTransition(from, to Status) bool {
	return from == StatusPending && (to == StatusApproved || to == StatusExpired)
}

type Sale struct {
	ID             snowflake.ID    `json:"id" gorm:"primaryKey;autoIncrement:false"`
	BuyerID        int64           `json:"buyer_id" gorm:"not null;index"`
	BuyerName      string          `json:"buyer_name" gorm:"type:varchar(255);not null;default:''"`
	ProductID      snowflake.ID    `json:"product_id" gorm:"not null"`
	ProductKind    string          `json:"product_kind" gorm:"type:varchar(16);not null"`
	Price          decimal.Decimal `json:"price" gorm:"type:numeric(12,2);not null"`
	Currency       string          `json:"currency" gorm:"type:varchar(3);not null;default:BRL"`
	Status         Status          `json:"status" gorm:"type:varchar(16);not null;default:pending;index"`
	ChargeID       *string         `json:"charge_id,omitempty" gorm:"type:varchar(64)"`
	PaymentID      *string         `json:"payment_id,omitempty" gorm:"type:varchar(64);uniqueIndex:ux_sales_payment_id"`
	PayerName      *string         `json:"payer_name,omitempty" gorm:"type:text"`
	PayerEmail     *string         `json:"payer_email,omitempty" gorm:"type:text"`
	ChargeSnapshot datatypes.JSON  `json:"-" gorm:"column:charge_snapshot"`
	CreatedAt      time.Time       `json:"created_at" gorm:"not null"`
	ResolvedAt     *time.Time      `json:"resolved_at,omitempty"`
	UpdatedAt      time.Time       `json:"updated_at" gorm:"not null"`
}

func (Sale) TableName() string { return "sales" }

func (s Sale) Token() CorrelationToken {
	return NewCorrelationToken(s.ID)
}

// Elapsed returns the time between sale creation and now, never negative.
func (s Sale) Elapsed(now time.Time) time.Duration {
	d := now.Sub(s.CreatedAt)
	if d < 0 {
		return 0
	}
	return d
}

// WithinWindow reports whether a payment observed at now may still approve
// the sale. The window end itself is inclusive.
func (s Sale) WithinWindow(now time.Time, window time.Duration) bool {
	return s.Elapsed(now) <= window
}
