package domain

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	productdomain "github.com/smallbiznis/pixbot/internal/product/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ChargeStatus string

const (
	ChargeStatusPending     ChargeStatus = "pending"
	ChargeStatusApproved    ChargeStatus = "approved"
	ChargeStatusAuthorized  ChargeStatus = "authorized"
	ChargeStatusInProcess   ChargeStatus = "in_process"
	ChargeStatusInMediation ChargeStatus = "in_mediation"
	ChargeStatusRejected    ChargeStatus = "rejected"
	ChargeStatusCancelled   ChargeStatus = "cancelled"
	ChargeStatusRefunded    ChargeStatus = "refunded"
	ChargeStatusChargedBack ChargeStatus = "charged_back"
)

func (s ChargeStatus) Approved() bool {
	return s == ChargeStatusApproved
}

// Buyer identifies who is paying. Email is optional for Telegram buyers.
type Buyer struct {
	ID    int64
	Name  string
	Email string
}

type Payer struct {
	Name  string
	Email string
}

// Charge is the provider view of a payment.
type Charge struct {
	ID                string
	Status            ChargeStatus
	StatusDetail      string
	ExternalReference string
	Amount            decimal.Decimal
	Payer             Payer
	QRCode            string
	QRCodeBase64      string
	TicketURL         string
	DateCreated       *time.Time
	DateApproved      *time.Time
	Raw               []byte
}

// Gateway creates and verifies charges with one payment provider.
type Gateway interface {
	Provider() string
	CreateCharge(ctx context.Context, product *productdomain.Product, buyer Buyer, reference string) (*Charge, error)
	GetChargeStatus(ctx context.Context, chargeID string) (*Charge, error)
	// Verify checks the notification signature. Gateways without a
	// configured secret accept every notification.
	Verify(ctx context.Context, notification *Notification, headers http.Header) error
}

// Notification is the parsed provider callback. It only carries the payment
// id; status and reference always come from GetChargeStatus.
type Notification struct {
	Type      string
	Action    string
	PaymentID string
	Query     url.Values
}

type Outcome string

const (
	OutcomeProcessed        Outcome = "processed"
	OutcomeAlreadyProcessed Outcome = "already_processed"
	OutcomeExpired          Outcome = "expired"
	OutcomeNotApproved      Outcome = "not_approved"
	OutcomeIgnored          Outcome = "ignored"
)

type Result struct {
	Outcome   Outcome
	PaymentID string
	SaleID    snowflake.ID
	Status    ChargeStatus
}

// Service reconciles provider notifications against the sale ledger.
type Service interface {
	IngestWebhook(ctx context.Context, provider string, payload []byte, headers http.Header, query url.Values) (*Result, error)
	Reconcile(ctx context.Context, paymentID string) (*Result, error)
	// PaymentEvent returns the recorded resolution of a payment, or nil when
	// the payment never resolved a sale.
	PaymentEvent(ctx context.Context, paymentID string) (*EventRecord, error)
}

// EventRecord is the audit row written for every notification that resolved a sale.
type EventRecord struct {
	ID         snowflake.ID   `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Provider   string         `json:"provider" gorm:"type:varchar(32);not null;uniqueIndex:ux_payment_events_provider_payment,priority:1"`
	PaymentID  string         `json:"payment_id" gorm:"type:varchar(64);not null;uniqueIndex:ux_payment_events_provider_payment,priority:2"`
	SaleID     snowflake.ID   `json:"sale_id" gorm:"not null;index"`
	Status     string         `json:"status" gorm:"type:varchar(32);not null"`
	Outcome    string         `json:"outcome" gorm:"type:varchar(32);not null"`
	Payload    datatypes.JSON `json:"payload"`
	ReceivedAt time.Time      `json:"received_at" gorm:"not null"`
}

func (EventRecord) TableName() string { return "payment_events" }

type Repository interface {
	InsertEvent(ctx context.Context, db *gorm.DB, event *EventRecord) (bool, error)
	FindEvent(ctx context.Context, db *gorm.DB, provider, paymentID string) (*EventRecord, error)
}
