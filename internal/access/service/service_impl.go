package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pixbot/internal/access/domain"
	"github.com/smallbiznis/pixbot/internal/clock"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
	clock clock.Clock
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("access.service"),
		genID: p.GenID,
		repo:  p.Repo,
		clock: p.Clock,
	}
}

// Extend issues the grant for a pass sale. A buyer who still holds access
// to the same product gets the new period appended after the current expiry.
// Calling it twice for the same sale returns the existing grant.
func (s *Service) Extend(ctx context.Context, tx *gorm.DB, req domain.ExtendRequest) (*domain.Grant, error) {
	if req.BuyerID == 0 {
		return nil, domain.ErrInvalidBuyer
	}
	if req.SaleID == 0 || req.ProductID == 0 {
		return nil, domain.ErrInvalidSale
	}
	if req.Days <= 0 {
		return nil, domain.ErrInvalidDays
	}
	if tx == nil {
		tx = s.db
	}

	existing, err := s.repo.FindBySaleID(ctx, tx, req.SaleID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	now := req.Now
	if now.IsZero() {
		now = s.clock.Now()
	}
	now = now.UTC()

	start := now
	current, err := s.repo.LatestActive(ctx, tx, req.BuyerID, req.ProductID, now)
	if err != nil {
		return nil, err
	}
	if current != nil && current.ExpiresAt.After(start) {
		start = current.ExpiresAt.UTC()
	}

	grant := &domain.Grant{
		ID:        s.genID.Generate(),
		BuyerID:   req.BuyerID,
		ProductID: req.ProductID,
		SaleID:    req.SaleID,
		StartsAt:  start,
		ExpiresAt: start.Add(time.Duration(req.Days) * 24 * time.Hour),
		CreatedAt: now,
	}
	if err := s.repo.Insert(ctx, tx, grant); err != nil {
		return nil, err
	}

	s.log.Info("access granted",
		zap.Int64("buyer_id", grant.BuyerID),
		zap.String("product_id", grant.ProductID.String()),
		zap.String("sale_id", grant.SaleID.String()),
		zap.Time("expires_at", grant.ExpiresAt),
	)
	return grant, nil
}

func (s *Service) ListActive(ctx context.Context, buyerID int64) ([]domain.Grant, error) {
	if buyerID == 0 {
		return nil, domain.ErrInvalidBuyer
	}
	return s.repo.ListActive(ctx, s.db, buyerID, s.clock.Now().UTC())
}
