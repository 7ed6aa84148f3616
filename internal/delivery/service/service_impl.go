package service

import (
	"context"
	"fmt"
	"html"
	"time"

	"github.com/smallbiznis/pixbot/internal/config"
	"github.com/smallbiznis/pixbot/internal/delivery/domain"
	obsmetrics "github.com/smallbiznis/pixbot/internal/observability/metrics"
	productdomain "github.com/smallbiznis/pixbot/internal/product/domain"
	"github.com/smallbiznis/pixbot/internal/providers/pdf"
	"github.com/smallbiznis/pixbot/internal/providers/telegram"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const dateLayout = "02/01/2006 15:04"

type Params struct {
	fx.In

	Log        *zap.Logger
	Cfg        config.Config
	Messenger  telegram.Messenger
	Messages   *config.MessagesHolder
	PDF        pdf.Provider        `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	log        *zap.Logger
	messenger  telegram.Messenger
	messages   *config.MessagesHolder
	pdf        pdf.Provider
	receipt    config.ReceiptConfig
	location   *time.Location
	obsMetrics *obsmetrics.Metrics
}

func New(p Params) domain.Notifier {
	return &Service{
		log:        p.Log.Named("delivery.service"),
		messenger:  p.Messenger,
		messages:   p.Messages,
		pdf:        p.PDF,
		receipt:    p.Cfg.Receipt,
		location:   p.Cfg.DisplayLocation(),
		obsMetrics: p.ObsMetrics,
	}
}

// Deliver sends the purchased content and, when enabled, a PDF receipt.
// A receipt failure is reported after the content already went out.
func (s *Service) Deliver(ctx context.Context, d domain.Delivery) error {
	if d.Sale == nil || d.Product == nil {
		return &domain.DeliveryError{Step: "validate", Err: domain.ErrInvalidDelivery}
	}
	saleID := d.Sale.ID.String()
	log := s.log.With(zap.String("sale_id", saleID), zap.Int64("buyer_id", d.Sale.BuyerID))

	text := s.render(d)
	if err := s.messenger.SendText(ctx, d.Sale.BuyerID, text, nil); err != nil {
		s.obsMetrics.RecordDelivery(ctx, "failed")
		return &domain.DeliveryError{SaleID: saleID, Step: "send_message", Err: err}
	}
	s.obsMetrics.RecordDelivery(ctx, "sent")
	log.Info("content delivered", zap.String("product_id", d.Product.ID.String()))

	if !s.receipt.Enabled || s.pdf == nil {
		return nil
	}

	doc, err := s.pdf.GenerateReceipt(ctx, s.receiptData(d))
	if err != nil {
		s.obsMetrics.RecordDelivery(ctx, "receipt_failed")
		return &domain.DeliveryError{SaleID: saleID, Step: "render_receipt", Err: err}
	}
	if len(doc) == 0 {
		return nil
	}
	name := fmt.Sprintf("recibo-%s.pdf", saleID)
	if err := s.messenger.SendDocument(ctx, d.Sale.BuyerID, name, doc, s.messages.Get().ReceiptCaption); err != nil {
		s.obsMetrics.RecordDelivery(ctx, "receipt_failed")
		return &domain.DeliveryError{SaleID: saleID, Step: "send_receipt", Err: err}
	}
	s.obsMetrics.RecordDelivery(ctx, "receipt_sent")
	return nil
}

func (s *Service) render(d domain.Delivery) string {
	msgs := s.messages.Get()
	name := html.EscapeString(d.Product.Name)
	link := html.EscapeString(d.Product.DeliveryLink)
	if d.Product.IsPass() && d.Grant != nil {
		return fmt.Sprintf(msgs.PassDelivered, name, link, d.Grant.ExpiresAt.In(s.location).Format(dateLayout))
	}
	return fmt.Sprintf(msgs.ProductDelivered, name, link)
}

func (s *Service) receiptData(d domain.Delivery) pdf.ReceiptData {
	sale := d.Sale
	data := pdf.ReceiptData{
		MerchantName:  s.receipt.MerchantName,
		MerchantEmail: s.receipt.MerchantEmail,
		ReceiptNumber: sale.ID.String(),
		BuyerName:     sale.BuyerName,
		ProductName:   d.Product.Name,
		ProductKind:   sale.ProductKind,
		Amount:        productdomain.FormatPrice(sale.Price, sale.Currency),
	}
	if sale.PaymentID != nil {
		data.PaymentID = *sale.PaymentID
	}
	if sale.PayerName != nil {
		data.PayerName = *sale.PayerName
	}
	if sale.PayerEmail != nil {
		data.PayerEmail = *sale.PayerEmail
	}
	if sale.ResolvedAt != nil {
		data.DatePaid = sale.ResolvedAt.In(s.location).Format(dateLayout)
	}
	if d.Grant != nil {
		data.AccessUntil = d.Grant.ExpiresAt.In(s.location).Format(dateLayout)
	}
	return data
}
