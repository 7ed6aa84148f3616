package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type Kind string

const (
	// KindProduct is delivered as a link once.
	KindProduct Kind = "product"
	// KindPass grants time-limited access to a community.
	KindPass Kind = "pass"
)

func (k Kind) Valid() bool {
	return k == KindProduct || k == KindPass
}

type Product struct {
	ID           snowflake.ID      `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Code         string            `json:"code" gorm:"type:varchar(128);not null;uniqueIndex:ux_products_code"`
	Kind         Kind              `json:"kind" gorm:"type:varchar(16);not null;default:product"`
	Name         string            `json:"name" gorm:"type:text;not null"`
	Description  *string           `json:"description,omitempty" gorm:"type:text"`
	Price        decimal.Decimal   `json:"price" gorm:"type:numeric(12,2);not null"`
	DeliveryLink string            `json:"delivery_link" gorm:"type:varchar(1024);not null;default:''"`
	AccessDays   int               `json:"access_days" gorm:"not null;default:0"`
	Active       bool              `json:"active" gorm:"not null;default:true"`
	Metadata     datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt    time.Time         `json:"created_at" gorm:"not null"`
	UpdatedAt    time.Time         `json:"updated_at" gorm:"not null"`
}

func (Product) TableName() string { return "products" }

func (p Product) IsPass() bool {
	return p.Kind == KindPass
}
