package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/smallbiznis/pixbot/internal/observability/logger"
	paymentdomain "github.com/smallbiznis/pixbot/internal/payment/domain"
	productdomain "github.com/smallbiznis/pixbot/internal/product/domain"
	"github.com/smallbiznis/pixbot/internal/purchase/domain"
	"github.com/smallbiznis/pixbot/internal/ratelimit"
	saledomain "github.com/smallbiznis/pixbot/internal/sale/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log        *zap.Logger
	ProductSvc productdomain.Service
	SaleSvc    saledomain.Service
	Gateway    paymentdomain.Gateway
	Limiter    *ratelimit.PurchaseLimiter `optional:"true"`
}

type Service struct {
	log        *zap.Logger
	productSvc productdomain.Service
	saleSvc    saledomain.Service
	gateway    paymentdomain.Gateway
	limiter    *ratelimit.PurchaseLimiter
}

func New(p Params) domain.Service {
	return &Service{
		log:        p.Log.Named("purchase.service"),
		productSvc: p.ProductSvc,
		saleSvc:    p.SaleSvc,
		gateway:    p.Gateway,
		limiter:    p.Limiter,
	}
}

func (s *Service) Initiate(ctx context.Context, req domain.Request) (*domain.Result, error) {
	if req.Buyer.ID <= 0 {
		return nil, domain.ErrInvalidBuyer
	}

	ctx, span := otel.Tracer("purchase").Start(ctx, "purchase.initiate")
	defer span.End()
	span.SetAttributes(attribute.String("product.id", req.ProductID.String()))

	allowed, err := s.limiter.Allow(ctx, req.Buyer.ID)
	if err != nil {
		// Redis trouble never blocks a sale.
		s.log.Warn("purchase rate limit check failed", zap.Int64("buyer_id", req.Buyer.ID), zap.Error(err))
	} else if !allowed.Allowed {
		return nil, domain.ErrRateLimited
	}

	token, locked, err := s.limiter.TryLock(ctx, req.Buyer.ID, req.ProductID)
	if err != nil {
		s.log.Warn("purchase lock failed", zap.Int64("buyer_id", req.Buyer.ID), zap.Error(err))
		locked = true
	} else if !locked {
		return nil, domain.ErrPurchaseInProgress
	}
	if token != "" {
		defer func() {
			if err := s.limiter.Release(context.WithoutCancel(ctx), req.Buyer.ID, req.ProductID, token); err != nil {
				s.log.Warn("purchase lock release failed", zap.Error(err))
			}
		}()
	}

	product, err := s.productSvc.GetActive(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}

	sale, err := s.saleSvc.Create(ctx, saledomain.CreateRequest{
		Buyer:   saledomain.Buyer{ID: req.Buyer.ID, Name: req.Buyer.Name},
		Product: product,
	})
	if err != nil {
		return nil, err
	}

	log := logger.WithSale(logger.WithContext(ctx, s.log), sale.ID.String(), "")
	charge, err := s.gateway.CreateCharge(ctx, product, req.Buyer, sale.Token().String())
	if err != nil {
		// The sale stays pending and expires once the validity window passes.
		log.Warn("charge creation failed", zap.Error(err))
		span.RecordError(err)
		return nil, err
	}

	if err := s.saleSvc.AttachCharge(ctx, sale.ID, charge.ID, charge.Raw); err != nil {
		log.Warn("attach charge failed", zap.String("charge_id", charge.ID), zap.Error(err))
	} else {
		sale.ChargeID = &charge.ID
	}

	result := &domain.Result{
		Sale:      sale,
		Product:   product,
		Charge:    charge,
		CopyCode:  charge.QRCode,
		TicketURL: charge.TicketURL,
	}
	if encoded := strings.TrimSpace(charge.QRCodeBase64); encoded != "" {
		img, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			log.Warn("invalid qr code image", zap.Error(fmt.Errorf("decode qr: %w", err)))
		} else {
			result.QRImage = img
		}
	}

	log.Info("purchase initiated",
		zap.String("charge_id", charge.ID),
		zap.String("product_id", product.ID.String()),
	)
	return result, nil
}
