package domain

import (
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
)

const tokenPrefix = "sale:"

// CorrelationToken is the external reference sent to the payment provider
// and echoed back on the charge. It always identifies exactly one sale.
type CorrelationToken struct {
	SaleID snowflake.ID
}

func NewCorrelationToken(id snowflake.ID) CorrelationToken {
	return CorrelationToken{SaleID: id}
}

func (t CorrelationToken) String() string {
	return tokenPrefix + t.SaleID.String()
}

// ParseCorrelationToken accepts "sale:<id>" and bare numeric ids.
func ParseCorrelationToken(raw string) (CorrelationToken, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return CorrelationToken{}, ErrInvalidToken
	}
	raw = strings.TrimPrefix(raw, tokenPrefix)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return CorrelationToken{}, ErrInvalidToken
	}
	return CorrelationToken{SaleID: snowflake.ID(id)}, nil
}
