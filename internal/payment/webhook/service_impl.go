package webhook

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	accessdomain "github.com/smallbiznis/pixbot/internal/access/domain"
	"github.com/smallbiznis/pixbot/internal/clock"
	"github.com/smallbiznis/pixbot/internal/config"
	deliverydomain "github.com/smallbiznis/pixbot/internal/delivery/domain"
	obscontext "github.com/smallbiznis/pixbot/internal/observability/context"
	"github.com/smallbiznis/pixbot/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/pixbot/internal/observability/metrics"
	"github.com/smallbiznis/pixbot/internal/payment/adapters"
	paymentdomain "github.com/smallbiznis/pixbot/internal/payment/domain"
	productdomain "github.com/smallbiznis/pixbot/internal/product/domain"
	saledomain "github.com/smallbiznis/pixbot/internal/sale/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Cfg         config.Config
	Clock       clock.Clock
	Gateway     paymentdomain.Gateway
	Adapters    *adapters.Registry
	Repo        paymentdomain.Repository
	SaleRepo    saledomain.Repository
	ProductRepo productdomain.Repository
	AccessSvc   accessdomain.Service
	Notifier    deliverydomain.Notifier
	ObsMetrics  *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	window      time.Duration
	clock       clock.Clock
	gateway     paymentdomain.Gateway
	adapters    *adapters.Registry
	repo        paymentdomain.Repository
	saleRepo    saledomain.Repository
	productRepo productdomain.Repository
	accessSvc   accessdomain.Service
	notifier    deliverydomain.Notifier
	obsMetrics  *obsmetrics.Metrics
}

func NewService(p Params) paymentdomain.Service {
	window := p.Cfg.Sale.ValidityWindow
	if window <= 0 {
		window = time.Hour
	}
	registry := p.Adapters
	if registry == nil {
		registry = adapters.NewRegistry(p.Gateway)
	}
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("payment.webhook"),
		genID:       p.GenID,
		window:      window,
		clock:       p.Clock,
		gateway:     p.Gateway,
		adapters:    registry,
		repo:        p.Repo,
		saleRepo:    p.SaleRepo,
		productRepo: p.ProductRepo,
		accessSvc:   p.AccessSvc,
		notifier:    p.Notifier,
		obsMetrics:  p.ObsMetrics,
	}
}

// IngestWebhook handles one provider callback. Notifications that are not
// about a payment are acknowledged without touching the database.
func (s *Service) IngestWebhook(ctx context.Context, provider string, payload []byte, headers http.Header, query url.Values) (*paymentdomain.Result, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	ctx = obscontext.WithActor(ctx, obscontext.ActorTypeProvider, provider)
	gateway, err := s.adapters.Gateway(provider)
	if err != nil {
		return nil, err
	}

	notification, err := paymentdomain.ParseNotification(payload, query)
	if err != nil {
		if errors.Is(err, paymentdomain.ErrEventIgnored) {
			s.obsMetrics.RecordPaymentEvent(ctx, provider, "ignored")
			return s.finish(ctx, &paymentdomain.Result{Outcome: paymentdomain.OutcomeIgnored}), nil
		}
		return nil, err
	}
	s.obsMetrics.RecordPaymentEvent(ctx, provider, notification.Type)

	if err := gateway.Verify(ctx, notification, headers); err != nil {
		s.log.Warn("payment notification rejected",
			zap.String("provider", provider),
			zap.String("payment_id", notification.PaymentID),
			zap.Error(err),
		)
		return nil, err
	}

	return s.reconcile(ctx, gateway, notification.PaymentID)
}

// Reconcile re-checks a payment with the default gateway. The bot uses it
// when a buyer asks for the status of a pending sale.
func (s *Service) Reconcile(ctx context.Context, paymentID string) (*paymentdomain.Result, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return s.finish(ctx, &paymentdomain.Result{Outcome: paymentdomain.OutcomeIgnored}), nil
	}
	return s.reconcile(ctx, s.gateway, paymentID)
}

func (s *Service) PaymentEvent(ctx context.Context, paymentID string) (*paymentdomain.EventRecord, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" || s.repo == nil {
		return nil, nil
	}
	return s.repo.FindEvent(ctx, s.db, s.gateway.Provider(), paymentID)
}

func (s *Service) reconcile(ctx context.Context, gateway paymentdomain.Gateway, paymentID string) (*paymentdomain.Result, error) {
	log := logger.WithSale(logger.WithContext(ctx, s.log), "", paymentID)

	charge, err := gateway.GetChargeStatus(ctx, paymentID)
	if err != nil {
		log.Error("payment status lookup failed", zap.Error(err))
		return nil, s.fail(ctx, paymentID, "verify_status", err)
	}

	result := &paymentdomain.Result{PaymentID: paymentID, Status: charge.Status}
	if !charge.Status.Approved() {
		log.Info("payment not approved yet", zap.String("status", string(charge.Status)))
		result.Outcome = paymentdomain.OutcomeNotApproved
		return s.finish(ctx, result), nil
	}

	token, err := saledomain.ParseCorrelationToken(charge.ExternalReference)
	if err != nil {
		log.Warn("payment without usable external reference",
			zap.String("external_reference", charge.ExternalReference),
		)
		result.Outcome = paymentdomain.OutcomeIgnored
		return s.finish(ctx, result), nil
	}
	result.SaleID = token.SaleID
	log = logger.WithSale(logger.WithContext(ctx, s.log), token.SaleID.String(), paymentID)

	var delivery *deliverydomain.Delivery
	now := s.clock.Now().UTC()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sale, err := s.saleRepo.FindPendingByID(ctx, tx, token.SaleID)
		if err != nil {
			return err
		}
		if sale == nil {
			result.Outcome = paymentdomain.OutcomeAlreadyProcessed
			return nil
		}

		target := saledomain.StatusApproved
		if !sale.WithinWindow(now, s.window) {
			target = saledomain.StatusExpired
		}
		if !saledomain.CanTransition(sale.Status, target) {
			return fmt.Errorf("%w: %s to %s", saledomain.ErrInvalidTransition, sale.Status, target)
		}

		if target == saledomain.StatusExpired {
			changed, err := s.saleRepo.Expire(ctx, tx, sale.ID, now)
			if err != nil {
				return err
			}
			if !changed {
				result.Outcome = paymentdomain.OutcomeAlreadyProcessed
				return nil
			}
			result.Outcome = paymentdomain.OutcomeExpired
			return s.recordEvent(ctx, tx, gateway.Provider(), sale.ID, charge, result.Outcome, now)
		}

		changed, err := s.saleRepo.Approve(ctx, tx, sale.ID, saledomain.ApproveParams{
			PaymentID:  charge.ID,
			PayerName:  charge.Payer.Name,
			PayerEmail: charge.Payer.Email,
			ResolvedAt: now,
		})
		if err != nil {
			return err
		}
		if !changed {
			result.Outcome = paymentdomain.OutcomeAlreadyProcessed
			return nil
		}

		product, err := s.productRepo.FindByID(ctx, tx, sale.ProductID)
		if err != nil {
			return err
		}
		if product == nil {
			return productdomain.ErrNotFound
		}

		sale.Status = saledomain.StatusApproved
		sale.PaymentID = &charge.ID
		sale.ResolvedAt = &now
		if charge.Payer.Name != "" {
			sale.PayerName = &charge.Payer.Name
		}
		if charge.Payer.Email != "" {
			sale.PayerEmail = &charge.Payer.Email
		}

		var grant *accessdomain.Grant
		if product.IsPass() {
			grant, err = s.accessSvc.Extend(ctx, tx, accessdomain.ExtendRequest{
				BuyerID:   sale.BuyerID,
				ProductID: product.ID,
				SaleID:    sale.ID,
				Days:      product.AccessDays,
				Now:       now,
			})
			if err != nil {
				return err
			}
		}

		result.Outcome = paymentdomain.OutcomeProcessed
		delivery = &deliverydomain.Delivery{Sale: sale, Product: product, Grant: grant}
		return s.recordEvent(ctx, tx, gateway.Provider(), sale.ID, charge, result.Outcome, now)
	})
	if err != nil {
		log.Error("payment reconciliation rolled back", zap.Error(err))
		return nil, s.fail(ctx, paymentID, "apply", err)
	}

	log.Info("payment reconciled", zap.String("outcome", string(result.Outcome)))

	if delivery != nil {
		s.deliver(ctx, log, *delivery)
	}
	return s.finish(ctx, result), nil
}

// deliver runs after commit. The sale stays approved whatever happens here.
func (s *Service) deliver(ctx context.Context, log *zap.Logger, d deliverydomain.Delivery) {
	if s.notifier == nil {
		log.Warn("no notifier configured, skipping delivery")
		return
	}
	if err := s.notifier.Deliver(ctx, d); err != nil {
		log.Warn("delivery failed", zap.Error(err))
	}
}

func (s *Service) recordEvent(ctx context.Context, tx *gorm.DB, provider string, saleID snowflake.ID, charge *paymentdomain.Charge, outcome paymentdomain.Outcome, now time.Time) error {
	if s.repo == nil {
		return nil
	}
	_, err := s.repo.InsertEvent(ctx, tx, &paymentdomain.EventRecord{
		ID:         s.genID.Generate(),
		Provider:   provider,
		PaymentID:  charge.ID,
		SaleID:     saleID,
		Status:     string(charge.Status),
		Outcome:    string(outcome),
		Payload:    datatypes.JSON(charge.Raw),
		ReceivedAt: now,
	})
	return err
}

func (s *Service) fail(ctx context.Context, paymentID, step string, err error) error {
	s.obsMetrics.RecordReconciliation(ctx, "error")
	return &paymentdomain.ReconciliationError{PaymentID: paymentID, Step: step, Err: err}
}

func (s *Service) finish(ctx context.Context, result *paymentdomain.Result) *paymentdomain.Result {
	s.obsMetrics.RecordReconciliation(ctx, string(result.Outcome))
	return result
}
