package domain

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	all := []Status{StatusPending, StatusApproved, StatusExpired}
	for _, from := range all {
		for _, to := range all {
			want := from == StatusPending && to != StatusPending
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
	assert.False(t, StatusPending.Terminal())
	assert.True(t, StatusApproved.Terminal())
	assert.True(t, StatusExpired.Terminal())
}

func TestWithinWindowBoundary(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sale := Sale{CreatedAt: created}

	assert.True(t, sale.WithinWindow(created.Add(10*time.Minute), time.Hour))
	assert.True(t, sale.WithinWindow(created.Add(time.Hour), time.Hour))
	assert.False(t, sale.WithinWindow(created.Add(time.Hour+time.Nanosecond), time.Hour))
	assert.False(t, sale.WithinWindow(created.Add(61*time.Minute), time.Hour))
	assert.Equal(t, time.Duration(0), sale.Elapsed(created.Add(-time.Minute)))
}

func TestCorrelationToken(t *testing.T) {
	token := NewCorrelationToken(snowflake.ID(1234567890))
	assert.Equal(t, "sale:1234567890", token.String())

	parsed, err := ParseCorrelationToken(token.String())
	require.NoError(t, err)
	assert.Equal(t, token, parsed)

	legacy, err := ParseCorrelationToken(" 987 ")
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(987), legacy.SaleID)

	for _, raw := range []string{"", "sale:", "sale:abc", "vip:12", "-4", "sale:0"} {
		_, err := ParseCorrelationToken(raw)
		assert.ErrorIs(t, err, ErrInvalidToken, raw)
	}
}
