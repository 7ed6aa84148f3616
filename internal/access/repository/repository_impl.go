package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pixbot/internal/access/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, grant *domain.Grant) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO access_grants (id, buyer_id, product_id, sale_id, starts_at, expires_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		grant.ID,
		grant.BuyerID,
		grant.ProductID,
		grant.SaleID,
		grant.StartsAt,
		grant.ExpiresAt,
		grant.CreatedAt,
	).Error
}

func (r *repo) FindBySaleID(ctx context.Context, db *gorm.DB, saleID snowflake.ID) (*domain.Grant, error) {
	var grant domain.Grant
	err := db.WithContext(ctx).Raw(
		`SELECT id, buyer_id, product_id, sale_id, starts_at, expires_at, created_at
		 FROM access_grants WHERE sale_id = ?`,
		saleID,
	).Scan(&grant).Error
	if err != nil {
		return nil, err
	}
	if grant.ID == 0 {
		return nil, nil
	}
	return &grant, nil
}

func (r *repo) LatestActive(ctx context.Context, db *gorm.DB, buyerID int64, productID snowflake.ID, now time.Time) (*domain.Grant, error) {
	var grant domain.Grant
	err := db.WithContext(ctx).Model(&domain.Grant{}).
		Where("buyer_id = ? AND product_id = ? AND expires_at > ?", buyerID, productID, now).
		Order("expires_at DESC").
		Limit(1).
		Find(&grant).Error
	if err != nil {
		return nil, err
	}
	if grant.ID == 0 {
		return nil, nil
	}
	return &grant, nil
}

func (r *repo) ListActive(ctx context.Context, db *gorm.DB, buyerID int64, now time.Time) ([]domain.Grant, error) {
	var grants []domain.Grant
	err := db.WithContext(ctx).Model(&domain.Grant{}).
		Where("buyer_id = ? AND expires_at > ?", buyerID, now).
		Order("expires_at ASC").
		Find(&grants).Error
	if err != nil {
		return nil, err
	}
	return grants, nil
}
