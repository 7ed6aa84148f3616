package pdf

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateReceipt(t *testing.T) {
	provider := New()
	doc, err := provider.GenerateReceipt(context.Background(), ReceiptData{
		MerchantName:  "Loja do Bot",
		ReceiptNumber: "1771234567890",
		PaymentID:     "9001",
		DatePaid:      "01/03/2026 12:10",
		BuyerName:     "Ana",
		ProductName:   "Curso de Go",
		Amount:        "R$ 29,90",
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(doc, []byte("%PDF")))

	_, err = provider.GenerateReceipt(context.Background(), ReceiptData{})
	assert.ErrorIs(t, err, ErrInvalidReceipt)
}
