package domain

import (
	"bytes"
	"encoding/json"
	"net/url"
	"strings"
)

const notificationTypePayment = "payment"

type notificationBody struct {
	Type   string           `json:"type"`
	Topic  string           `json:"topic"`
	Action string           `json:"action"`
	Data   notificationData `json:"data"`
}

type notificationData struct {
	ID json.RawMessage `json:"id"`
}

// ParseNotification reads a provider callback from its JSON body, falling
// back to the query string form (?type=payment&data.id=.. or
// ?topic=payment&id=..). Anything that is not a payment notification with
// an id returns ErrEventIgnored.
func ParseNotification(payload []byte, query url.Values) (*Notification, error) {
	n := &Notification{Query: query}

	if len(bytes.TrimSpace(payload)) > 0 {
		var body notificationBody
		if err := json.Unmarshal(payload, &body); err == nil {
			n.Type = strings.TrimSpace(body.Type)
			if n.Type == "" {
				n.Type = strings.TrimSpace(body.Topic)
			}
			n.Action = strings.TrimSpace(body.Action)
			n.PaymentID = rawID(body.Data.ID)
		}
	}

	if n.Type == "" {
		n.Type = strings.TrimSpace(query.Get("type"))
	}
	if n.Type == "" {
		n.Type = strings.TrimSpace(query.Get("topic"))
	}
	if n.PaymentID == "" {
		n.PaymentID = strings.TrimSpace(query.Get("data.id"))
	}
	if n.PaymentID == "" && strings.EqualFold(query.Get("topic"), notificationTypePayment) {
		n.PaymentID = strings.TrimSpace(query.Get("id"))
	}

	if !strings.EqualFold(n.Type, notificationTypePayment) {
		return nil, ErrEventIgnored
	}
	if n.PaymentID == "" {
		return nil, ErrEventIgnored
	}
	return n, nil
}

// rawID accepts both "123" and 123.
func rawID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&n); err == nil {
		return n.String()
	}
	return ""
}
