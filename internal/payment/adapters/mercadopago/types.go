package mercadopago

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	paymentdomain "github.com/smallbiznis/pixbot/internal/payment/domain"
)

type createPaymentRequest struct {
	TransactionAmount json.Number     `json:"transaction_amount"`
	Description       string          `json:"description"`
	PaymentMethodID   string          `json:"payment_method_id"`
	ExternalReference string          `json:"external_reference"`
	NotificationURL   string          `json:"notification_url,omitempty"`
	Payer             payerRequest    `json:"payer"`
	AdditionalInfo    *additionalInfo `json:"additional_info,omitempty"`
}

type payerRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
}

type additionalInfo struct {
	Items []itemRequest `json:"items"`
}

type itemRequest struct {
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	Quantity  int         `json:"quantity"`
	UnitPrice json.Number `json:"unit_price"`
}

type paymentResponse struct {
	ID                 int64               `json:"id"`
	Status             string              `json:"status"`
	StatusDetail       string              `json:"status_detail"`
	ExternalReference  string              `json:"external_reference"`
	TransactionAmount  json.Number         `json:"transaction_amount"`
	DateCreated        string              `json:"date_created"`
	DateApproved       string              `json:"date_approved"`
	Payer              payerResponse       `json:"payer"`
	PointOfInteraction *pointOfInteraction `json:"point_of_interaction"`
}

type payerResponse struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type pointOfInteraction struct {
	TransactionData struct {
		QRCode       string `json:"qr_code"`
		QRCodeBase64 string `json:"qr_code_base64"`
		TicketURL    string `json:"ticket_url"`
	} `json:"transaction_data"`
}

type apiError struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Status  int    `json:"status"`
}

func (e apiError) describe() string {
	switch {
	case e.Error != "" && e.Message != "":
		return e.Error + ": " + e.Message
	case e.Message != "":
		return e.Message
	case e.Error != "":
		return e.Error
	default:
		return "unexpected response"
	}
}

func (p paymentResponse) toCharge(raw []byte) (*paymentdomain.Charge, error) {
	if p.ID == 0 {
		return nil, errors.New("response without payment id")
	}
	charge := &paymentdomain.Charge{
		ID:                strconv.FormatInt(p.ID, 10),
		Status:            paymentdomain.ChargeStatus(strings.ToLower(strings.TrimSpace(p.Status))),
		StatusDetail:      p.StatusDetail,
		ExternalReference: strings.TrimSpace(p.ExternalReference),
		Payer: paymentdomain.Payer{
			Name:  strings.TrimSpace(strings.TrimSpace(p.Payer.FirstName) + " " + strings.TrimSpace(p.Payer.LastName)),
			Email: strings.TrimSpace(p.Payer.Email),
		},
		DateCreated:  parseTime(p.DateCreated),
		DateApproved: parseTime(p.DateApproved),
		Raw:          raw,
	}
	if p.TransactionAmount != "" {
		amount, err := decimal.NewFromString(p.TransactionAmount.String())
		if err == nil {
			charge.Amount = amount
		}
	}
	if p.PointOfInteraction != nil {
		data := p.PointOfInteraction.TransactionData
		charge.QRCode = data.QRCode
		charge.QRCodeBase64 = data.QRCodeBase64
		charge.TicketURL = data.TicketURL
	}
	return charge, nil
}

func parseTime(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}
