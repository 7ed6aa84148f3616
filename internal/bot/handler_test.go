package bot

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	accessdomain "github.com/smallbiznis/pixbot/internal/access/domain"
	"github.com/smallbiznis/pixbot/internal/clock"
	"github.com/smallbiznis/pixbot/internal/config"
	paymentdomain "github.com/smallbiznis/pixbot/internal/payment/domain"
	productdomain "github.com/smallbiznis/pixbot/internal/product/domain"
	"github.com/smallbiznis/pixbot/internal/providers/telegram"
	purchasedomain "github.com/smallbiznis/pixbot/internal/purchase/domain"
	saledomain "github.com/smallbiznis/pixbot/internal/sale/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeProducts struct {
	productdomain.Service
	items []productdomain.Response
}

func (f *fakeProducts) List(ctx context.Context, req productdomain.ListRequest) ([]productdomain.Response, error) {
	return f.items, nil
}

func (f *fakeProducts) Get(ctx context.Context, id string) (*productdomain.Response, error) {
	for i := range f.items {
		if f.items[i].ID == id {
			return &f.items[i], nil
		}
	}
	return nil, productdomain.ErrNotFound
}

type fakeSales struct {
	saledomain.Service
	sales map[string]*saledomain.Response
}

func (f *fakeSales) Get(ctx context.Context, id string) (*saledomain.Response, error) {
	sale, ok := f.sales[id]
	if !ok {
		return nil, saledomain.ErrNotFound
	}
	copied := *sale
	return &copied, nil
}

type fakeAccess struct {
	grants []accessdomain.Grant
}

func (f *fakeAccess) Extend(ctx context.Context, tx *gorm.DB, req accessdomain.ExtendRequest) (*accessdomain.Grant, error) {
	return nil, errors.New("not used")
}

func (f *fakeAccess) ListActive(ctx context.Context, buyerID int64) ([]accessdomain.Grant, error) {
	return f.grants, nil
}

type mockPurchase struct{ mock.Mock }

func (m *mockPurchase) Initiate(ctx context.Context, req purchasedomain.Request) (*purchasedomain.Result, error) {
	args := m.Called(req)
	res, _ := args.Get(0).(*purchasedomain.Result)
	return res, args.Error(1)
}

type mockPayments struct{ mock.Mock }

func (m *mockPayments) IngestWebhook(ctx context.Context, provider string, payload []byte, headers http.Header, query url.Values) (*paymentdomain.Result, error) {
	return nil, errors.New("not used")
}

func (m *mockPayments) Reconcile(ctx context.Context, paymentID string) (*paymentdomain.Result, error) {
	args := m.Called(paymentID)
	res, _ := args.Get(0).(*paymentdomain.Result)
	return res, args.Error(1)
}

func (m *mockPayments) PaymentEvent(ctx context.Context, paymentID string) (*paymentdomain.EventRecord, error) {
	return nil, errors.New("not used")
}

type fixture struct {
	handler  *Handler
	rec      *telegram.Recorder
	products *fakeProducts
	sales    *fakeSales
	access   *fakeAccess
	purchase *mockPurchase
	payments *mockPayments
	clock    *clock.FakeClock
}

func setup(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		rec:      &telegram.Recorder{},
		products: &fakeProducts{},
		sales:    &fakeSales{sales: map[string]*saledomain.Response{}},
		access:   &fakeAccess{},
		purchase: &mockPurchase{},
		payments: &mockPayments{},
		clock:    clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
	}
	f.handler = NewHandler(Params{
		Log:         zap.NewNop(),
		Cfg:         config.Config{Sale: config.SaleConfig{ValidityWindow: time.Hour, Currency: "BRL"}, Receipt: config.ReceiptConfig{Timezone: "UTC"}},
		Clock:       f.clock,
		Messenger:   f.rec,
		Messages:    config.NewStaticMessagesHolder(config.DefaultMessages()),
		ProductSvc:  f.products,
		PurchaseSvc: f.purchase,
		SaleSvc:     f.sales,
		PaymentSvc:  f.payments,
		AccessSvc:   f.access,
	})
	return f
}

func command(text string) tgbotapi.Update {
	cmd := strings.SplitN(strings.TrimPrefix(text, "/"), " ", 2)[0]
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Text:     text,
		Chat:     &tgbotapi.Chat{ID: 77},
		From:     &tgbotapi.User{ID: 77, FirstName: "Ana"},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd) + 1}},
	}}
}

func callback(data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb-1",
		Data:    data,
		From:    &tgbotapi.User{ID: 77, FirstName: "Ana", LastName: "Souza"},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 77}},
	}}
}

func TestStartListsActiveProducts(t *testing.T) {
	f := setup(t)
	f.products.items = []productdomain.Response{
		{ID: "101", Name: "Ebook", Price: decimal.RequireFromString("29.9"), Active: true},
		{ID: "102", Name: "VIP 30 dias", Price: decimal.RequireFromString("1250"), Active: true},
	}

	require.NoError(t, f.handler.HandleUpdate(context.Background(), command("/start")))

	texts := f.rec.OfKind("text")
	require.Len(t, texts, 1)
	assert.Equal(t, config.DefaultMessages().Welcome, texts[0].Text)
	require.NotNil(t, texts[0].Keyboard)
	rows := texts[0].Keyboard.InlineKeyboard
	require.Len(t, rows, 2)
	assert.Equal(t, "Ebook (R$ 29,90)", rows[0][0].Text)
	require.NotNil(t, rows[1][0].CallbackData)
	assert.Equal(t, "buy:102", *rows[1][0].CallbackData)
}

func TestStartEmptyCatalog(t *testing.T) {
	f := setup(t)
	require.NoError(t, f.handler.HandleUpdate(context.Background(), command("/produtos")))
	texts := f.rec.OfKind("text")
	require.Len(t, texts, 1)
	assert.Equal(t, config.DefaultMessages().EmptyCatalog, texts[0].Text)
}

func TestBuySendsQRCode(t *testing.T) {
	f := setup(t)
	saleID := snowflake.ID(555)
	f.purchase.On("Initiate", purchasedomain.Request{
		Buyer:     paymentdomain.Buyer{ID: 77, Name: "Ana Souza"},
		ProductID: 101,
	}).Return(&purchasedomain.Result{
		Sale:      &saledomain.Sale{ID: saleID, Price: decimal.RequireFromString("29.90"), Currency: "BRL"},
		Product:   &productdomain.Product{ID: 101, Name: "Ebook <Go>"},
		QRImage:   []byte("png"),
		CopyCode:  "000201pix",
		TicketURL: "https://mp.example/t/1",
	}, nil).Once()

	require.NoError(t, f.handler.HandleUpdate(context.Background(), callback("buy:101")))
	f.purchase.AssertExpectations(t)

	require.Len(t, f.rec.OfKind("callback"), 1)
	photos := f.rec.OfKind("photo")
	require.Len(t, photos, 1)
	assert.Contains(t, photos[0].Text, "R$ 29,90")
	assert.Contains(t, photos[0].Text, "Ebook &lt;Go&gt;")
	assert.Contains(t, photos[0].Text, "<code>000201pix</code>")
	require.NotNil(t, photos[0].Keyboard)
	buttons := photos[0].Keyboard.InlineKeyboard[0]
	require.Len(t, buttons, 2)
	assert.Equal(t, "check:555", *buttons[0].CallbackData)
	assert.Equal(t, "https://mp.example/t/1", *buttons[1].URL)
}

func TestBuyErrorMessages(t *testing.T) {
	msgs := config.DefaultMessages()
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"not found", productdomain.ErrNotFound, msgs.ProductNotFound},
		{"invalid amount", paymentdomain.ErrInvalidAmount, msgs.PaymentUnavailable},
		{"gateway", &paymentdomain.GatewayError{Provider: "mercadopago", Operation: "create_charge", Err: errors.New("boom")}, msgs.RetryLater},
		{"rate limited", purchasedomain.ErrRateLimited, msgs.RateLimited},
		{"in progress", purchasedomain.ErrPurchaseInProgress, msgs.PurchaseInProgress},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := setup(t)
			f.purchase.On("Initiate", mock.Anything).Return(nil, tc.err).Once()
			require.NoError(t, f.handler.HandleUpdate(context.Background(), callback("buy:101")))
			texts := f.rec.OfKind("text")
			require.Len(t, texts, 1)
			assert.Equal(t, tc.want, texts[0].Text)
		})
	}
}

func TestBuyInvalidProductID(t *testing.T) {
	f := setup(t)
	require.NoError(t, f.handler.HandleUpdate(context.Background(), callback("buy:abc")))
	f.purchase.AssertNotCalled(t, "Initiate", mock.Anything)
	assert.Equal(t, config.DefaultMessages().ProductNotFound, f.rec.OfKind("text")[0].Text)
}

func TestCheckPendingSaleReconciles(t *testing.T) {
	f := setup(t)
	chargeID := "9001"
	f.sales.sales["555"] = &saledomain.Response{ID: "555", BuyerID: 77, Status: saledomain.StatusPending, ChargeID: &chargeID, CreatedAt: f.clock.Now()}
	f.payments.On("Reconcile", "9001").Return(&paymentdomain.Result{Outcome: paymentdomain.OutcomeNotApproved}, nil).Once()

	f.clock.Advance(10 * time.Minute)
	require.NoError(t, f.handler.HandleUpdate(context.Background(), callback("check:555")))
	f.payments.AssertExpectations(t)
	assert.Equal(t, config.DefaultMessages().PaymentPending, f.rec.OfKind("text")[0].Text)
}

func TestCheckProcessedSendsNothingExtra(t *testing.T) {
	f := setup(t)
	chargeID := "9001"
	f.sales.sales["555"] = &saledomain.Response{ID: "555", BuyerID: 77, Status: saledomain.StatusPending, ChargeID: &chargeID, CreatedAt: f.clock.Now()}
	f.payments.On("Reconcile", "9001").Return(&paymentdomain.Result{Outcome: paymentdomain.OutcomeProcessed}, nil).Once()

	require.NoError(t, f.handler.HandleUpdate(context.Background(), callback("check:555")))
	assert.Empty(t, f.rec.OfKind("text"))
}

func TestCheckTerminalSales(t *testing.T) {
	f := setup(t)
	f.sales.sales["1"] = &saledomain.Response{ID: "1", BuyerID: 77, Status: saledomain.StatusApproved}
	f.sales.sales["2"] = &saledomain.Response{ID: "2", BuyerID: 77, Status: saledomain.StatusExpired}
	f.sales.sales["3"] = &saledomain.Response{ID: "3", BuyerID: 99, Status: saledomain.StatusApproved}

	ctx := context.Background()
	require.NoError(t, f.handler.HandleUpdate(ctx, callback("check:1")))
	require.NoError(t, f.handler.HandleUpdate(ctx, callback("check:2")))
	require.NoError(t, f.handler.HandleUpdate(ctx, callback("check:3")))
	require.NoError(t, f.handler.HandleUpdate(ctx, callback("check:404")))

	msgs := config.DefaultMessages()
	texts := f.rec.OfKind("text")
	require.Len(t, texts, 4)
	assert.Equal(t, msgs.PaymentApproved, texts[0].Text)
	assert.Equal(t, msgs.PaymentExpired, texts[1].Text)
	assert.Equal(t, msgs.SaleNotFound, texts[2].Text)
	assert.Equal(t, msgs.SaleNotFound, texts[3].Text)
	f.payments.AssertNotCalled(t, "Reconcile", mock.Anything)
}

func TestCheckPendingPastWindowWithoutCharge(t *testing.T) {
	f := setup(t)
	f.sales.sales["7"] = &saledomain.Response{ID: "7", BuyerID: 77, Status: saledomain.StatusPending, CreatedAt: f.clock.Now()}
	f.clock.Advance(61 * time.Minute)

	require.NoError(t, f.handler.HandleUpdate(context.Background(), callback("check:7")))
	assert.Equal(t, config.DefaultMessages().PaymentExpired, f.rec.OfKind("text")[0].Text)
}

func TestAccessListsActiveGrants(t *testing.T) {
	f := setup(t)
	f.products.items = []productdomain.Response{{ID: "102", Name: "VIP & Amigos"}}
	f.access.grants = []accessdomain.Grant{{
		BuyerID:   77,
		ProductID: 102,
		ExpiresAt: time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC),
	}}

	require.NoError(t, f.handler.HandleUpdate(context.Background(), command("/acessos")))
	text := f.rec.OfKind("text")[0].Text
	assert.True(t, strings.HasPrefix(text, config.DefaultMessages().ActiveAccessHeader))
	assert.Contains(t, text, "<b>VIP &amp; Amigos</b> até 31/03/2026 12:00")
}

func TestAccessNone(t *testing.T) {
	f := setup(t)
	require.NoError(t, f.handler.HandleUpdate(context.Background(), command("/acessos")))
	assert.Equal(t, config.DefaultMessages().NoActiveAccess, f.rec.OfKind("text")[0].Text)
}
