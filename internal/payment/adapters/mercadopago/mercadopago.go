package mercadopago

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/pixbot/internal/config"
	obsmetrics "github.com/smallbiznis/pixbot/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/pixbot/internal/payment/domain"
	productdomain "github.com/smallbiznis/pixbot/internal/product/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	ProviderName = "mercadopago"

	defaultBaseURL = "https://api.mercadopago.com"
	defaultTimeout = 10 * time.Second
	webhookPath    = "/api/payments/webhooks/" + ProviderName
)

type Config struct {
	AccessToken       string
	BaseURL           string
	NotificationURL   string
	WebhookSecret     string
	DefaultPayerEmail string
	Timeout           time.Duration
}

type Params struct {
	fx.In

	Cfg        config.Config
	Log        *zap.Logger
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

// Client talks to the Mercado Pago payments API. It is built once at startup
// and shared by every caller.
type Client struct {
	cfg     Config
	http    *resty.Client
	log     *zap.Logger
	metrics *obsmetrics.Metrics
	tracer  trace.Tracer
	newKey  func() string
	now     func() time.Time
}

// Provide builds the client from application config. A missing access token
// or public base URL stops the application from starting.
func Provide(p Params) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(p.Cfg.PublicBaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("%w: public base url is required", paymentdomain.ErrInvalidConfig)
	}
	return New(Config{
		AccessToken:       p.Cfg.MercadoPago.AccessToken,
		BaseURL:           p.Cfg.MercadoPago.BaseURL,
		NotificationURL:   base + webhookPath,
		WebhookSecret:     p.Cfg.MercadoPago.WebhookSecret,
		DefaultPayerEmail: p.Cfg.MercadoPago.DefaultPayerEmail,
		Timeout:           p.Cfg.MercadoPago.Timeout,
	}, p.Log, p.ObsMetrics)
}

func New(cfg Config, log *zap.Logger, metrics *obsmetrics.Metrics) (*Client, error) {
	cfg.AccessToken = strings.TrimSpace(cfg.AccessToken)
	if cfg.AccessToken == "" {
		return nil, fmt.Errorf("%w: mercadopago access token is required", paymentdomain.ErrInvalidConfig)
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetAuthToken(cfg.AccessToken).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{
		cfg:     cfg,
		http:    httpClient,
		log:     log.Named("payment.mercadopago"),
		metrics: metrics,
		tracer:  otel.Tracer("pixbot/payment"),
		newKey:  func() string { return ulid.Make().String() },
		now:     time.Now,
	}, nil
}

func (c *Client) Provider() string {
	return ProviderName
}

func (c *Client) CreateCharge(ctx context.Context, product *productdomain.Product, buyer paymentdomain.Buyer, reference string) (*paymentdomain.Charge, error) {
	if product == nil {
		return nil, paymentdomain.ErrInvalidAmount
	}
	amount := product.Price.Round(2)
	if !amount.GreaterThan(decimal.Zero) {
		return nil, paymentdomain.ErrInvalidAmount
	}

	ctx, span := c.tracer.Start(ctx, "mercadopago.create_charge", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("payment.provider", ProviderName),
		attribute.String("payment.external_reference", reference),
	)

	body := createPaymentRequest{
		TransactionAmount: json.Number(amount.StringFixed(2)),
		Description:       product.Name,
		PaymentMethodID:   "pix",
		ExternalReference: reference,
		NotificationURL:   c.cfg.NotificationURL,
		Payer: payerRequest{
			Email:     c.payerEmail(buyer),
			FirstName: strings.TrimSpace(buyer.Name),
		},
		AdditionalInfo: &additionalInfo{
			Items: []itemRequest{{
				ID:        product.ID.String(),
				Title:     product.Name,
				Quantity:  1,
				UnitPrice: json.Number(amount.StringFixed(2)),
			}},
		},
	}

	var out paymentResponse
	var apiErr apiError
	start := c.now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("X-Idempotency-Key", c.newKey()).
		SetBody(body).
		SetResult(&out).
		SetError(&apiErr).
		Post("/v1/payments")
	if gwErr := c.check("create_charge", start, resp, err, apiErr); gwErr != nil {
		span.RecordError(gwErr)
		span.SetStatus(codes.Error, "create charge failed")
		return nil, gwErr
	}

	charge, err := out.toCharge(resp.Body())
	if err != nil {
		span.RecordError(err)
		return nil, &paymentdomain.GatewayError{Provider: ProviderName, Operation: "create_charge", StatusCode: resp.StatusCode(), Err: err}
	}
	span.SetAttributes(attribute.String("payment.id", charge.ID), attribute.String("payment.status", string(charge.Status)))

	c.log.Info("pix charge created",
		zap.String("payment_id", charge.ID),
		zap.String("external_reference", reference),
		zap.String("status", string(charge.Status)),
	)
	return charge, nil
}

func (c *Client) GetChargeStatus(ctx context.Context, chargeID string) (*paymentdomain.Charge, error) {
	chargeID = strings.TrimSpace(chargeID)
	if chargeID == "" {
		return nil, &paymentdomain.GatewayError{Provider: ProviderName, Operation: "get_charge", Err: errors.New("empty charge id")}
	}

	ctx, span := c.tracer.Start(ctx, "mercadopago.get_charge", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("payment.provider", ProviderName), attribute.String("payment.id", chargeID))

	var out paymentResponse
	var apiErr apiError
	start := c.now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", chargeID).
		SetResult(&out).
		SetError(&apiErr).
		Get("/v1/payments/{id}")
	if gwErr := c.check("get_charge", start, resp, err, apiErr); gwErr != nil {
		span.RecordError(gwErr)
		span.SetStatus(codes.Error, "get charge failed")
		return nil, gwErr
	}

	charge, err := out.toCharge(resp.Body())
	if err != nil {
		return nil, &paymentdomain.GatewayError{Provider: ProviderName, Operation: "get_charge", StatusCode: resp.StatusCode(), Err: err}
	}
	span.SetAttributes(attribute.String("payment.status", string(charge.Status)))
	return charge, nil
}

func (c *Client) check(operation string, start time.Time, resp *resty.Response, err error, apiErr apiError) error {
	elapsed := c.now().Sub(start)
	if err != nil {
		c.metrics.RecordGatewayRequest(context.Background(), ProviderName, operation, "transport_error", elapsed)
		c.log.Warn("mercadopago request failed",
			zap.String("operation", operation),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return &paymentdomain.GatewayError{Provider: ProviderName, Operation: operation, Err: err}
	}
	status := strconv.Itoa(resp.StatusCode())
	c.metrics.RecordGatewayRequest(context.Background(), ProviderName, operation, status, elapsed)
	if resp.IsError() || resp.StatusCode() >= http.StatusMultipleChoices {
		c.log.Warn("mercadopago rejected request",
			zap.String("operation", operation),
			zap.Int("status_code", resp.StatusCode()),
			zap.String("error", apiErr.Error),
			zap.String("message", apiErr.Message),
		)
		return &paymentdomain.GatewayError{
			Provider:   ProviderName,
			Operation:  operation,
			StatusCode: resp.StatusCode(),
			Err:        errors.New(apiErr.describe()),
		}
	}
	return nil
}

func (c *Client) payerEmail(buyer paymentdomain.Buyer) string {
	if email := strings.TrimSpace(buyer.Email); email != "" {
		return email
	}
	if c.cfg.DefaultPayerEmail != "" {
		return c.cfg.DefaultPayerEmail
	}
	return fmt.Sprintf("telegram-%d@buyers.pixbot.invalid", buyer.ID)
}

var _ paymentdomain.Gateway = (*Client)(nil)
