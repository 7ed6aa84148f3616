package service

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/pixbot/internal/product/domain"
	"github.com/smallbiznis/pixbot/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	repo  domain.Repository
	genID *snowflake.Node
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("product.service"),
		repo:  p.Repo,
		genID: p.GenID,
	}
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) ([]domain.Response, error) {
	filter := domain.ListRequest{
		Name:   strings.TrimSpace(req.Name),
		Kind:   domain.Kind(strings.TrimSpace(string(req.Kind))),
		Active: req.Active,
	}
	if filter.Kind != "" && !filter.Kind.Valid() {
		return nil, domain.ErrInvalidKind
	}

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}

	resp := make([]domain.Response, 0, len(items))
	for _, item := range items {
		resp = append(resp, s.toResponse(&item))
	}

	return resp, nil
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Response, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	code := strings.TrimSpace(req.Code)
	if code == "" {
		code = slug.Make(name)
	}
	if !slug.IsSlug(code) {
		return nil, domain.ErrInvalidCode
	}

	kind := req.Kind
	if kind == "" {
		kind = domain.KindProduct
	}
	if !kind.Valid() {
		return nil, domain.ErrInvalidKind
	}

	price := req.Price.Round(2)
	if !price.GreaterThan(decimal.Zero) {
		return nil, domain.ErrInvalidPrice
	}

	link := strings.TrimSpace(req.DeliveryLink)
	if err := validateLink(link); err != nil {
		return nil, err
	}

	if err := validateAccessDays(kind, req.AccessDays); err != nil {
		return nil, err
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	now := time.Now().UTC()
	p := &domain.Product{
		ID:           s.genID.Generate(),
		Code:         code,
		Kind:         kind,
		Name:         name,
		Description:  trimmedPtr(req.Description),
		Price:        price,
		DeliveryLink: link,
		AccessDays:   req.AccessDays,
		Active:       active,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if req.Metadata != nil {
		p.Metadata = datatypes.JSONMap(req.Metadata)
	}
	if err := s.repo.Create(ctx, s.db, p); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrDuplicateCode
		}
		return nil, err
	}

	s.log.Info("product created",
		zap.String("product_id", p.ID.String()),
		zap.String("code", p.Code),
		zap.String("kind", string(p.Kind)),
	)

	resp := s.toResponse(p)
	return &resp, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Response, error) {
	productID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return nil, domain.ErrInvalidID
	}

	item, err := s.repo.FindByID(ctx, s.db, productID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}

	resp := s.toResponse(item)
	return &resp, nil
}

func (s *Service) GetActive(ctx context.Context, id snowflake.ID) (*domain.Product, error) {
	if id <= 0 {
		return nil, domain.ErrInvalidID
	}
	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if item == nil || !item.Active {
		return nil, domain.ErrNotFound
	}
	return item, nil
}

// Update changes catalog fields. Prices already captured by sales are not
// affected since sales keep their own copy.
func (s *Service) Update(ctx context.Context, req domain.UpdateRequest) (*domain.Response, error) {
	productID, err := snowflake.ParseString(strings.TrimSpace(req.ID))
	if err != nil {
		return nil, domain.ErrInvalidID
	}

	item, err := s.repo.FindByID(ctx, s.db, productID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, domain.ErrInvalidName
		}
		item.Name = name
	}
	if req.Description != nil {
		item.Description = trimmedPtr(req.Description)
	}
	if req.Price != nil {
		price := req.Price.Round(2)
		if !price.GreaterThan(decimal.Zero) {
			return nil, domain.ErrInvalidPrice
		}
		item.Price = price
	}
	if req.DeliveryLink != nil {
		link := strings.TrimSpace(*req.DeliveryLink)
		if err := validateLink(link); err != nil {
			return nil, err
		}
		item.DeliveryLink = link
	}
	if req.AccessDays != nil {
		item.AccessDays = *req.AccessDays
	}
	if err := validateAccessDays(item.Kind, item.AccessDays); err != nil {
		return nil, err
	}
	if req.Active != nil {
		item.Active = *req.Active
	}
	if req.Metadata != nil {
		item.Metadata = datatypes.JSONMap(req.Metadata)
	}
	item.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, s.db, item); err != nil {
		return nil, err
	}

	resp := s.toResponse(item)
	return &resp, nil
}

func (s *Service) toResponse(p *domain.Product) domain.Response {
	var metadata map[string]any
	if p.Metadata != nil {
		metadata = map[string]any(p.Metadata)
	}

	return domain.Response{
		ID:           p.ID.String(),
		Code:         p.Code,
		Kind:         p.Kind,
		Name:         p.Name,
		Description:  p.Description,
		Price:        p.Price,
		DeliveryLink: p.DeliveryLink,
		AccessDays:   p.AccessDays,
		Active:       p.Active,
		Metadata:     metadata,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

func validateLink(link string) error {
	if link == "" {
		return domain.ErrInvalidDeliveryLink
	}
	parsed, err := url.Parse(link)
	if err != nil || parsed.Host == "" {
		return domain.ErrInvalidDeliveryLink
	}
	if parsed.Scheme != "https" && parsed.Scheme != "http" && parsed.Scheme != "tg" {
		return domain.ErrInvalidDeliveryLink
	}
	return nil
}

func validateAccessDays(kind domain.Kind, days int) error {
	if days < 0 {
		return domain.ErrInvalidAccessDays
	}
	if kind == domain.KindPass && days == 0 {
		return domain.ErrInvalidAccessDays
	}
	return nil
}

func trimmedPtr(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
