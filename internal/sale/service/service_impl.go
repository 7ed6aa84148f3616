package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pixbot/internal/clock"
	"github.com/smallbiznis/pixbot/internal/config"
	obsmetrics "github.com/smallbiznis/pixbot/internal/observability/metrics"
	"github.com/smallbiznis/pixbot/internal/sale/domain"
	"github.com/smallbiznis/pixbot/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Repo       domain.Repository
	Clock      clock.Clock
	Cfg        config.Config
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	repo       domain.Repository
	clock      clock.Clock
	currency   string
	obsMetrics *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	currency := strings.ToUpper(strings.TrimSpace(p.Cfg.Sale.Currency))
	if currency == "" {
		currency = "BRL"
	}
	c := p.Clock
	if c == nil {
		c = clock.SystemClock{}
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("sale.service"),
		genID:      p.GenID,
		repo:       p.Repo,
		clock:      c,
		currency:   currency,
		obsMetrics: p.ObsMetrics,
	}
}

// Create records a pending sale with the product price captured at this
// moment. Later catalog changes never touch it.
func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Sale, error) {
	if req.Buyer.ID == 0 {
		return nil, domain.ErrInvalidBuyer
	}
	if req.Product == nil || req.Product.ID == 0 {
		return nil, domain.ErrInvalidProduct
	}

	now := s.clock.Now().UTC()
	sale := &domain.Sale{
		ID:          s.genID.Generate(),
		BuyerID:     req.Buyer.ID,
		BuyerName:   strings.TrimSpace(req.Buyer.Name),
		ProductID:   req.Product.ID,
		ProductKind: string(req.Product.Kind),
		Price:       req.Product.Price,
		Currency:    s.currency,
		Status:      domain.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Insert(ctx, s.db, sale); err != nil {
		return nil, err
	}

	s.obsMetrics.RecordSaleCreated(ctx, sale.ProductKind)
	s.log.Info("sale created",
		zap.String("sale_id", sale.ID.String()),
		zap.Int64("buyer_id", sale.BuyerID),
		zap.String("product_id", sale.ProductID.String()),
		zap.String("price", sale.Price.StringFixed(2)),
	)
	return sale, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Response, error) {
	saleID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	item, err := s.repo.FindByID(ctx, s.db, saleID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}
	resp := toResponse(item)
	return &resp, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (*domain.ListResponse, error) {
	filter := domain.ListFilter{
		BuyerID: req.BuyerID,
		Limit:   req.Limit() + 1,
	}
	if status := strings.TrimSpace(req.Status); status != "" {
		filter.Status = domain.Status(strings.ToLower(status))
		if !filter.Status.Valid() {
			return nil, domain.ErrInvalidStatus
		}
	}

	cursor, err := pagination.DecodeCursor(req.PageToken)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		before, err := parseID(cursor.ID)
		if err != nil {
			return nil, pagination.ErrInvalidPageToken
		}
		filter.BeforeID = before
	}

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}

	page, info, err := pagination.BuildCursorPageInfo(items, req.Limit(), func(item domain.Sale) pagination.Cursor {
		return pagination.Cursor{ID: item.ID.String(), CreatedAt: item.CreatedAt.Format("2006-01-02T15:04:05Z07:00")}
	})
	if err != nil {
		return nil, err
	}

	resp := &domain.ListResponse{Sales: make([]domain.Response, 0, len(page)), PageInfo: info}
	for i := range page {
		resp.Sales = append(resp.Sales, toResponse(&page[i]))
	}
	return resp, nil
}

func (s *Service) AttachCharge(ctx context.Context, id snowflake.ID, chargeID string, snapshot []byte) error {
	chargeID = strings.TrimSpace(chargeID)
	if id == 0 || chargeID == "" {
		return domain.ErrInvalidID
	}
	return s.repo.SetChargeID(ctx, s.db, id, chargeID, snapshot, s.clock.Now().UTC())
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id <= 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

func toResponse(s *domain.Sale) domain.Response {
	return domain.Response{
		ID:          s.ID.String(),
		Token:       s.Token().String(),
		BuyerID:     s.BuyerID,
		BuyerName:   s.BuyerName,
		ProductID:   s.ProductID.String(),
		ProductKind: s.ProductKind,
		Price:       s.Price,
		Currency:    s.Currency,
		Status:      s.Status,
		ChargeID:    s.ChargeID,
		PaymentID:   s.PaymentID,
		PayerName:   s.PayerName,
		PayerEmail:  s.PayerEmail,
		CreatedAt:   s.CreatedAt,
		ResolvedAt:  s.ResolvedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}
