package pdf

import (
	"context"
	"errors"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

type ReceiptData struct {
	MerchantName  string
	MerchantEmail string

	ReceiptNumber string
	PaymentID     string
	DatePaid      string

	BuyerName  string
	PayerName  string
	PayerEmail string

	ProductName string
	ProductKind string
	AccessUntil string

	// Amount is already formatted with its currency symbol.
	Amount string
}

var ErrInvalidReceipt = errors.New("invalid_receipt")

type PDFProvider struct{}

func New() Provider {
	return &PDFProvider{}
}

func (p *PDFProvider) GenerateReceipt(ctx context.Context, receipt ReceiptData) ([]byte, error) {
	if receipt.ReceiptNumber == "" || receipt.ProductName == "" {
		return nil, ErrInvalidReceipt
	}

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Página {current} de {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(20,
		text.NewCol(8, "Recibo de compra", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
		text.NewCol(4, receipt.MerchantName, props.Text{
			Size:  12,
			Style: fontstyle.Bold,
			Align: align.Right,
		}),
	)

	m.AddRow(22,
		col.New(6).Add(
			text.New("Recibo nº "+receipt.ReceiptNumber, props.Text{Top: 0}),
			text.New("Pagamento: "+receipt.PaymentID, props.Text{Top: 5}),
			text.New("Pago em: "+receipt.DatePaid, props.Text{Top: 10}),
		),
		col.New(6).Add(
			text.New(receipt.MerchantEmail, props.Text{Align: align.Right}),
		),
	)

	payer := receipt.PayerName
	if payer == "" {
		payer = receipt.BuyerName
	}
	m.AddRow(18,
		col.New(12).Add(
			text.New("Comprador", props.Text{Style: fontstyle.Bold}),
			text.New(payer, props.Text{Top: 5}),
			text.New(receipt.PayerEmail, props.Text{Top: 10}),
		),
	)

	m.AddRow(4, line.NewCol(12))

	m.AddRow(10,
		text.NewCol(8, "Descrição", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(4, "Valor", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	description := receipt.ProductName
	if receipt.AccessUntil != "" {
		description += " (acesso até " + receipt.AccessUntil + ")"
	}
	m.AddRow(12,
		text.NewCol(8, description, props.Text{Size: 9}),
		text.NewCol(4, receipt.Amount, props.Text{Size: 9, Align: align.Right}),
	)

	m.AddRow(4, line.NewCol(12))

	m.AddRow(10,
		col.New(8),
		text.NewCol(2, "Total", props.Text{Size: 10, Style: fontstyle.Bold}),
		text.NewCol(2, receipt.Amount, props.Text{Size: 10, Style: fontstyle.Bold, Align: align.Right}),
	)

	m.AddRow(10,
		text.NewCol(12, "Pagamento via PIX processado pelo Mercado Pago.", props.Text{Size: 8, Top: 4}),
	)

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return doc.GetBytes(), nil
}
