package mercadopago

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	paymentdomain "github.com/smallbiznis/pixbot/internal/payment/domain"
)

// Verify validates the x-signature header when a webhook secret is set.
// The signed manifest is "id:<data.id>;request-id:<x-request-id>;ts:<ts>;"
// with absent parts left out.
func (c *Client) Verify(ctx context.Context, notification *paymentdomain.Notification, headers http.Header) error {
	if c.cfg.WebhookSecret == "" {
		return nil
	}
	if notification == nil {
		return paymentdomain.ErrInvalidSignature
	}

	ts, signatures, err := parseSignature(headers.Get("x-signature"))
	if err != nil {
		return paymentdomain.ErrInvalidSignature
	}

	expected := sign(c.cfg.WebhookSecret, manifest(notification.PaymentID, headers.Get("x-request-id"), ts))
	for _, signature := range signatures {
		if hmac.Equal([]byte(signature), []byte(expected)) {
			return nil
		}
	}
	return paymentdomain.ErrInvalidSignature
}

func manifest(dataID, requestID, ts string) string {
	var b strings.Builder
	if dataID = strings.TrimSpace(dataID); dataID != "" {
		b.WriteString("id:" + strings.ToLower(dataID) + ";")
	}
	if requestID = strings.TrimSpace(requestID); requestID != "" {
		b.WriteString("request-id:" + requestID + ";")
	}
	if ts != "" {
		b.WriteString("ts:" + ts + ";")
	}
	return b.String()
}

func sign(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func parseSignature(header string) (string, []string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", nil, paymentdomain.ErrInvalidSignature
	}
	var ts string
	var signatures []string
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "ts":
			ts = strings.TrimSpace(value)
		case "v1":
			signatures = append(signatures, strings.TrimSpace(value))
		}
	}
	if ts == "" || len(signatures) == 0 {
		return "", nil, paymentdomain.ErrInvalidSignature
	}
	return ts, signatures, nil
}
