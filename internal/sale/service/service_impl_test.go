package service_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/pixbot/internal/clock"
	"github.com/smallbiznis/pixbot/internal/config"
	productdomain "github.com/smallbiznis/pixbot/internal/product/domain"
	"github.com/smallbiznis/pixbot/internal/sale/domain"
	"github.com/smallbiznis/pixbot/internal/sale/repository"
	"github.com/smallbiznis/pixbot/internal/sale/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db    *gorm.DB
	node  *snowflake.Node
	clock *clock.FakeClock
	repo  domain.Repository
	svc   domain.Service
}

func setup(t *testing.T) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&productdomain.Product{}, &domain.Sale{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	node, err := snowflake.NewNode(2)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	fc := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	repo := repository.Provide()
	cfg := config.Config{Sale: config.SaleConfig{ValidityWindow: time.Hour, Currency: "brl"}}
	return &fixture{
		db:    db,
		node:  node,
		clock: fc,
		repo:  repo,
		svc: service.New(service.Params{
			DB:    db,
			Log:   zap.NewNop(),
			GenID: node,
			Repo:  repo,
			Clock: fc,
			Cfg:   cfg,
		}),
	}
}

func (f *fixture) product(price string) *productdomain.Product {
	return &productdomain.Product{
		ID:    f.node.Generate(),
		Kind:  productdomain.KindProduct,
		Name:  "Ebook",
		Price: decimal.RequireFromString(price),
	}
}

func assertCount(t *testing.T, db *gorm.DB, query string, expected int64, args ...any) {
	t.Helper()
	var count int64
	if err := db.Raw(query, args...).Scan(&count).Error; err != nil {
		t.Fatalf("count query: %v", err)
	}
	if count != expected {
		t.Fatalf("expected %d rows, got %d (%s)", expected, count, query)
	}
}

func TestCreateCapturesPrice(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	product := f.product("29.90")

	sale, err := f.svc.Create(ctx, domain.CreateRequest{
		Buyer:   domain.Buyer{ID: 555, Name: "Ana"},
		Product: product,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, sale.Status)
	assert.Equal(t, "BRL", sale.Currency)

	// Catalog price changes after the sale must not leak into it.
	product.Price = decimal.RequireFromString("99.00")

	stored, err := f.repo.FindByID(ctx, f.db, sale.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.Price.Equal(decimal.RequireFromString("29.90")), "price was %s", stored.Price)
	assert.True(t, f.clock.Now().Equal(stored.CreatedAt))

	ok, err := f.repo.Approve(ctx, f.db, sale.ID, domain.ApproveParams{PaymentID: "1", ResolvedAt: f.clock.Now()})
	require.NoError(t, err)
	require.True(t, ok)

	stored, err = f.repo.FindByID(ctx, f.db, sale.ID)
	require.NoError(t, err)
	assert.True(t, stored.Price.Equal(decimal.RequireFromString("29.90")))
}

func TestCreateValidation(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	_, err := f.svc.Create(ctx, domain.CreateRequest{Product: f.product("1")})
	assert.ErrorIs(t, err, domain.ErrInvalidBuyer)

	_, err = f.svc.Create(ctx, domain.CreateRequest{Buyer: domain.Buyer{ID: 1}})
	assert.ErrorIs(t, err, domain.ErrInvalidProduct)
}

func TestTransitionsAreMonotone(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	approved, err := f.svc.Create(ctx, domain.CreateRequest{Buyer: domain.Buyer{ID: 1}, Product: f.product("10")})
	require.NoError(t, err)
	expired, err := f.svc.Create(ctx, domain.CreateRequest{Buyer: domain.Buyer{ID: 1}, Product: f.product("10")})
	require.NoError(t, err)

	now := f.clock.Now()
	ok, err := f.repo.Approve(ctx, f.db, approved.ID, domain.ApproveParams{
		PaymentID:  "pay-1",
		PayerName:  "Ana Souza",
		PayerEmail: "ana@example.com",
		ResolvedAt: now,
	})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.repo.Expire(ctx, f.db, expired.ID, now)
	require.NoError(t, err)
	assert.True(t, ok)

	// Terminal rows are never touched again.
	ok, err = f.repo.Expire(ctx, f.db, approved.ID, now)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = f.repo.Approve(ctx, f.db, expired.ID, domain.ApproveParams{PaymentID: "pay-2", ResolvedAt: now})
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = f.repo.Approve(ctx, f.db, approved.ID, domain.ApproveParams{PaymentID: "pay-3", ResolvedAt: now})
	require.NoError(t, err)
	assert.False(t, ok)

	pending, err := f.repo.FindPendingByID(ctx, f.db, approved.ID)
	require.NoError(t, err)
	assert.Nil(t, pending)

	stored, err := f.repo.FindByID(ctx, f.db, approved.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, stored.Status)
	require.NotNil(t, stored.PaymentID)
	assert.Equal(t, "pay-1", *stored.PaymentID)
	require.NotNil(t, stored.PayerEmail)
	assert.Equal(t, "ana@example.com", *stored.PayerEmail)

	assertCount(t, f.db, "SELECT COUNT(1) FROM sales WHERE status = ?", 1, "expired")
	assertCount(t, f.db, "SELECT COUNT(1) FROM sales WHERE payment_id IS NOT NULL", 1)
}

func TestAttachChargeOnlyWhilePending(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	sale, err := f.svc.Create(ctx, domain.CreateRequest{Buyer: domain.Buyer{ID: 9}, Product: f.product("5")})
	require.NoError(t, err)

	require.NoError(t, f.svc.AttachCharge(ctx, sale.ID, "123456", []byte(`{"id":123456}`)))
	stored, err := f.repo.FindByID(ctx, f.db, sale.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ChargeID)
	assert.Equal(t, "123456", *stored.ChargeID)

	assert.ErrorIs(t, f.svc.AttachCharge(ctx, sale.ID, " ", nil), domain.ErrInvalidID)
}

func TestListPaginates(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	for i := 0; i < 5; i++ {
		_, err := f.svc.Create(ctx, domain.CreateRequest{Buyer: domain.Buyer{ID: 77}, Product: f.product("1")})
		require.NoError(t, err)
	}

	req := domain.ListRequest{BuyerID: 77}
	req.PageSize = 2
	first, err := f.svc.List(ctx, req)
	require.NoError(t, err)
	require.Len(t, first.Sales, 2)
	assert.True(t, first.PageInfo.HasMore)

	seen := map[string]bool{}
	for _, s := range first.Sales {
		seen[s.ID] = true
	}

	req.PageToken = first.PageInfo.NextPageToken
	second, err := f.svc.List(ctx, req)
	require.NoError(t, err)
	require.Len(t, second.Sales, 2)
	for _, s := range second.Sales {
		assert.False(t, seen[s.ID], "duplicate sale across pages")
	}

	_, err = f.svc.List(ctx, domain.ListRequest{Status: "refunded"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	_, err = f.svc.Get(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrInvalidID)
	_, err = f.svc.Get(ctx, "123")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
