package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	accessdomain "github.com/smallbiznis/pixbot/internal/access/domain"
	"github.com/smallbiznis/pixbot/internal/clock"
	"github.com/smallbiznis/pixbot/internal/config"
	obscontext "github.com/smallbiznis/pixbot/internal/observability/context"
	"github.com/smallbiznis/pixbot/internal/observability/logger"
	paymentdomain "github.com/smallbiznis/pixbot/internal/payment/domain"
	productdomain "github.com/smallbiznis/pixbot/internal/product/domain"
	"github.com/smallbiznis/pixbot/internal/providers/telegram"
	purchasedomain "github.com/smallbiznis/pixbot/internal/purchase/domain"
	saledomain "github.com/smallbiznis/pixbot/internal/sale/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	buyPrefix   = "buy:"
	checkPrefix = "check:"
)

type Params struct {
	fx.In

	Log         *zap.Logger
	Cfg         config.Config
	Clock       clock.Clock
	Messenger   telegram.Messenger
	Messages    *config.MessagesHolder
	ProductSvc  productdomain.Service
	PurchaseSvc purchasedomain.Service
	SaleSvc     saledomain.Service
	PaymentSvc  paymentdomain.Service
	AccessSvc   accessdomain.Service
}

// Handler turns Telegram updates into catalog, purchase and status replies.
type Handler struct {
	log         *zap.Logger
	cfg         config.Config
	clock       clock.Clock
	messenger   telegram.Messenger
	messages    *config.MessagesHolder
	productSvc  productdomain.Service
	purchaseSvc purchasedomain.Service
	saleSvc     saledomain.Service
	paymentSvc  paymentdomain.Service
	accessSvc   accessdomain.Service
}

func NewHandler(p Params) *Handler {
	return &Handler{
		log:         p.Log.Named("bot.handler"),
		cfg:         p.Cfg,
		clock:       p.Clock,
		messenger:   p.Messenger,
		messages:    p.Messages,
		productSvc:  p.ProductSvc,
		purchaseSvc: p.PurchaseSvc,
		saleSvc:     p.SaleSvc,
		paymentSvc:  p.PaymentSvc,
		accessSvc:   p.AccessSvc,
	}
}

func (h *Handler) HandleUpdate(ctx context.Context, update tgbotapi.Update) error {
	if from := update.SentFrom(); from != nil {
		ctx = obscontext.WithActor(ctx, obscontext.ActorTypeBuyer, strconv.FormatInt(from.ID, 10))
	}
	switch {
	case update.CallbackQuery != nil:
		return h.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.IsCommand():
		return h.handleCommand(ctx, update.Message)
	default:
		return nil
	}
}

func (h *Handler) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.Chat == nil || msg.From == nil {
		return nil
	}
	switch msg.Command() {
	case "start", "produtos":
		return h.sendCatalog(ctx, msg.Chat.ID)
	case "acessos":
		return h.sendAccess(ctx, msg.Chat.ID, msg.From.ID)
	default:
		return nil
	}
}

func (h *Handler) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) error {
	if cq.Message == nil || cq.Message.Chat == nil || cq.From == nil {
		return nil
	}
	if err := h.messenger.AnswerCallback(ctx, cq.ID, ""); err != nil {
		h.log.Debug("answer callback failed", zap.Error(err))
	}

	chatID := cq.Message.Chat.ID
	switch {
	case strings.HasPrefix(cq.Data, buyPrefix):
		return h.buy(ctx, chatID, cq.From, strings.TrimPrefix(cq.Data, buyPrefix))
	case strings.HasPrefix(cq.Data, checkPrefix):
		return h.check(ctx, chatID, cq.From.ID, strings.TrimPrefix(cq.Data, checkPrefix))
	default:
		return nil
	}
}

func (h *Handler) sendCatalog(ctx context.Context, chatID int64) error {
	msgs := h.messages.Get()
	active := true
	products, err := h.productSvc.List(ctx, productdomain.ListRequest{Active: &active})
	if err != nil {
		h.log.Error("list products failed", zap.Error(err))
		return h.messenger.SendText(ctx, chatID, msgs.RetryLater, nil)
	}
	if len(products) == 0 {
		return h.messenger.SendText(ctx, chatID, msgs.EmptyCatalog, nil)
	}

	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(products))
	for _, p := range products {
		label := fmt.Sprintf("%s (%s)", p.Name, productdomain.FormatPrice(p.Price, h.cfg.Sale.Currency))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, buyPrefix+p.ID),
		))
	}
	keyboard := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return h.messenger.SendText(ctx, chatID, msgs.Welcome, &keyboard)
}

func (h *Handler) buy(ctx context.Context, chatID int64, from *tgbotapi.User, rawID string) error {
	msgs := h.messages.Get()
	productID, err := snowflake.ParseString(strings.TrimSpace(rawID))
	if err != nil {
		return h.messenger.SendText(ctx, chatID, msgs.ProductNotFound, nil)
	}

	res, err := h.purchaseSvc.Initiate(ctx, purchasedomain.Request{
		Buyer:     paymentdomain.Buyer{ID: from.ID, Name: displayName(from)},
		ProductID: productID,
	})
	if err != nil {
		logger.WithContext(ctx, h.log).Warn("purchase failed",
			zap.Int64("buyer_id", from.ID),
			zap.String("product_id", productID.String()),
			zap.Error(err),
		)
		return h.messenger.SendText(ctx, chatID, purchaseErrorText(msgs, err), nil)
	}

	text := fmt.Sprintf(msgs.ChargeCreated,
		productdomain.FormatPrice(res.Sale.Price, res.Sale.Currency),
		html.EscapeString(res.Product.Name),
		html.EscapeString(res.CopyCode),
	)
	keyboard := h.checkKeyboard(res)
	if len(res.QRImage) > 0 {
		return h.messenger.SendPhoto(ctx, chatID, res.QRImage, text, &keyboard)
	}
	return h.messenger.SendText(ctx, chatID, text, &keyboard)
}

func (h *Handler) checkKeyboard(res *purchasedomain.Result) tgbotapi.InlineKeyboardMarkup {
	row := tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(h.messages.Get().CheckPaymentButton, checkPrefix+res.Sale.ID.String()),
	)
	if res.TicketURL != "" {
		row = append(row, tgbotapi.NewInlineKeyboardButtonURL("Mercado Pago", res.TicketURL))
	}
	return tgbotapi.NewInlineKeyboardMarkup(row)
}

func (h *Handler) check(ctx context.Context, chatID, buyerID int64, rawID string) error {
	msgs := h.messages.Get()
	sale, err := h.saleSvc.Get(ctx, strings.TrimSpace(rawID))
	if err != nil || sale.BuyerID != buyerID {
		if err != nil && !errors.Is(err, saledomain.ErrNotFound) && !errors.Is(err, saledomain.ErrInvalidID) {
			h.log.Error("load sale failed", zap.String("sale_id", rawID), zap.Error(err))
			return h.messenger.SendText(ctx, chatID, msgs.RetryLater, nil)
		}
		return h.messenger.SendText(ctx, chatID, msgs.SaleNotFound, nil)
	}

	switch sale.Status {
	case saledomain.StatusApproved:
		return h.messenger.SendText(ctx, chatID, msgs.PaymentApproved, nil)
	case saledomain.StatusExpired:
		return h.messenger.SendText(ctx, chatID, msgs.PaymentExpired, nil)
	}

	if sale.ChargeID == nil || *sale.ChargeID == "" {
		return h.messenger.SendText(ctx, chatID, h.pendingText(msgs, sale), nil)
	}

	// Same path as the provider notification, so a missed webhook is recovered here.
	res, err := h.paymentSvc.Reconcile(ctx, *sale.ChargeID)
	if err != nil {
		logger.WithContext(ctx, h.log).Warn("on-demand reconciliation failed", zap.String("sale_id", sale.ID), zap.Error(err))
		return h.messenger.SendText(ctx, chatID, msgs.RetryLater, nil)
	}

	switch res.Outcome {
	case paymentdomain.OutcomeProcessed:
		// The delivery notifier already sent the product.
		return nil
	case paymentdomain.OutcomeExpired:
		return h.messenger.SendText(ctx, chatID, msgs.PaymentExpired, nil)
	case paymentdomain.OutcomeAlreadyProcessed:
		reloaded, err := h.saleSvc.Get(ctx, sale.ID)
		if err == nil && reloaded.Status == saledomain.StatusApproved {
			return h.messenger.SendText(ctx, chatID, msgs.PaymentApproved, nil)
		}
		if err == nil && reloaded.Status == saledomain.StatusExpired {
			return h.messenger.SendText(ctx, chatID, msgs.PaymentExpired, nil)
		}
		return h.messenger.SendText(ctx, chatID, h.pendingText(msgs, sale), nil)
	default:
		return h.messenger.SendText(ctx, chatID, h.pendingText(msgs, sale), nil)
	}
}

func (h *Handler) pendingText(msgs config.Messages, sale *saledomain.Response) string {
	window := h.cfg.Sale.ValidityWindow
	if window > 0 && h.clock.Now().Sub(sale.CreatedAt) > window {
		return msgs.PaymentExpired
	}
	return msgs.PaymentPending
}

func (h *Handler) sendAccess(ctx context.Context, chatID, buyerID int64) error {
	msgs := h.messages.Get()
	grants, err := h.accessSvc.ListActive(ctx, buyerID)
	if err != nil {
		h.log.Error("list access failed", zap.Int64("buyer_id", buyerID), zap.Error(err))
		return h.messenger.SendText(ctx, chatID, msgs.RetryLater, nil)
	}
	if len(grants) == 0 {
		return h.messenger.SendText(ctx, chatID, msgs.NoActiveAccess, nil)
	}

	loc := h.cfg.DisplayLocation()
	var b strings.Builder
	b.WriteString(msgs.ActiveAccessHeader)
	for _, g := range grants {
		name := g.ProductID.String()
		if p, err := h.productSvc.Get(ctx, g.ProductID.String()); err == nil {
			name = p.Name
		}
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf(msgs.ActiveAccessItem,
			html.EscapeString(name),
			g.ExpiresAt.In(loc).Format("02/01/2006 15:04"),
		))
	}
	return h.messenger.SendText(ctx, chatID, b.String(), nil)
}

func purchaseErrorText(msgs config.Messages, err error) string {
	switch {
	case errors.Is(err, productdomain.ErrNotFound), errors.Is(err, productdomain.ErrInvalidID):
		return msgs.ProductNotFound
	case errors.Is(err, purchasedomain.ErrRateLimited):
		return msgs.RateLimited
	case errors.Is(err, purchasedomain.ErrPurchaseInProgress):
		return msgs.PurchaseInProgress
	case errors.Is(err, paymentdomain.ErrGateway):
		return msgs.RetryLater
	default:
		return msgs.PaymentUnavailable
	}
}

func displayName(u *tgbotapi.User) string {
	name := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
	if name == "" {
		name = u.UserName
	}
	return name
}
