package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pixbot/internal/sale/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const saleColumns = `id, buyer_id, buyer_name, product_id, product_kind, price, currency, status,
	charge_id, payment_id, payer_name, payer_email, charge_snapshot, created_at, resolved_at, updated_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, sale *domain.Sale) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO sales (id, buyer_id, buyer_name, product_id, product_kind, price, currency,
			status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sale.ID,
		sale.BuyerID,
		sale.BuyerName,
		sale.ProductID,
		sale.ProductKind,
		sale.Price,
		sale.Currency,
		sale.Status,
		sale.CreatedAt,
		sale.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Sale, error) {
	var sale domain.Sale
	err := db.WithContext(ctx).Raw(
		`SELECT `+saleColumns+` FROM sales WHERE id = ?`,
		id,
	).Scan(&sale).Error
	if err != nil {
		return nil, err
	}
	if sale.ID == 0 {
		return nil, nil
	}
	return &sale, nil
}

func (r *repo) FindPendingByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Sale, error) {
	var sale domain.Sale
	err := db.WithContext(ctx).Raw(
		`SELECT `+saleColumns+` FROM sales WHERE id = ? AND status = ?`,
		id, domain.StatusPending,
	).Scan(&sale).Error
	if err != nil {
		return nil, err
	}
	if sale.ID == 0 {
		return nil, nil
	}
	return &sale, nil
}

func (r *repo) SetChargeID(ctx context.Context, db *gorm.DB, id snowflake.ID, chargeID string, snapshot []byte, at time.Time) error {
	var raw any
	if len(snapshot) > 0 {
		raw = string(snapshot)
	}
	return db.WithContext(ctx).Exec(
		`UPDATE sales SET charge_id = ?, charge_snapshot = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		chargeID, raw, at, id, domain.StatusPending,
	).Error
}

func (r *repo) Approve(ctx context.Context, db *gorm.DB, id snowflake.ID, params domain.ApproveParams) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE sales
		 SET status = ?, payment_id = ?, payer_name = ?, payer_email = ?, resolved_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.StatusApproved,
		params.PaymentID,
		nullable(params.PayerName),
		nullable(params.PayerEmail),
		params.ResolvedAt,
		params.ResolvedAt,
		id,
		domain.StatusPending,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) Expire(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE sales SET status = ?, resolved_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.StatusExpired, at, at, id, domain.StatusPending,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.Sale, error) {
	var items []domain.Sale
	stmt := db.WithContext(ctx).Model(&domain.Sale{})

	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.BuyerID != 0 {
		stmt = stmt.Where("buyer_id = ?", filter.BuyerID)
	}
	if filter.BeforeID != 0 {
		stmt = stmt.Where("id < ?", filter.BeforeID)
	}
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit)
	}

	if err := stmt.Order("id DESC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func nullable(value string) any {
	if value == "" {
		return nil
	}
	return value
}
