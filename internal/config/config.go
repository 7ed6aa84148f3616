package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewMessagesHolder),
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	// PublicBaseURL is the externally reachable base URL of this service,
	// used to build the payment notification URL.
	PublicBaseURL string
	AdminAPIKey   string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	MercadoPago MercadoPagoConfig
	Telegram    TelegramConfig
	Sale        SaleConfig
	RateLimit   RateLimitConfig
	Receipt     ReceiptConfig
}

type MercadoPagoConfig struct {
	AccessToken       string
	BaseURL           string
	WebhookSecret     string
	DefaultPayerEmail string
	Timeout           time.Duration
}

type TelegramConfig struct {
	BotToken       string
	Debug          bool
	PollTimeout    int
	DisableUpdates bool
}

type SaleConfig struct {
	ValidityWindow time.Duration
	Currency       string
}

type RateLimitConfig struct {
	Enabled       bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	PurchaseRate    float64
	PurchaseBurst   int
	PurchaseLockTTL time.Duration
}

type ReceiptConfig struct {
	Enabled       bool
	MerchantName  string
	MerchantEmail string
	// Timezone is used for dates shown to buyers.
	Timezone string
}

// Load loads configuration from environment variables and .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		AppName:       getenv("APP_SERVICE", "pixbot"),
		AppVersion:    getenv("APP_VERSION", "0.1.0"),
		Environment:   getenv("ENVIRONMENT", "development"),
		HTTPAddr:      getenv("HTTP_ADDR", ":8080"),
		PublicBaseURL: strings.TrimRight(strings.TrimSpace(getenv("PUBLIC_BASE_URL", "")), "/"),
		AdminAPIKey:   strings.TrimSpace(getenv("ADMIN_API_KEY", "")),
		OTLPEndpoint:  getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "pixbot"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),

		MercadoPago: MercadoPagoConfig{
			AccessToken:       strings.TrimSpace(getenv("MERCADOPAGO_ACCESS_TOKEN", "")),
			BaseURL:           strings.TrimRight(getenv("MERCADOPAGO_BASE_URL", "https://api.mercadopago.com"), "/"),
			WebhookSecret:     strings.TrimSpace(getenv("MERCADOPAGO_WEBHOOK_SECRET", "")),
			DefaultPayerEmail: strings.TrimSpace(getenv("MERCADOPAGO_PAYER_EMAIL", "")),
			Timeout:           getenvDuration("MERCADOPAGO_TIMEOUT", 10*time.Second),
		},
		Telegram: TelegramConfig{
			BotToken:       strings.TrimSpace(getenv("TELEGRAM_BOT_TOKEN", "")),
			Debug:          getenvBool("TELEGRAM_DEBUG", false),
			PollTimeout:    getenvInt("TELEGRAM_POLL_TIMEOUT", 60),
			DisableUpdates: getenvBool("TELEGRAM_DISABLE_UPDATES", false),
		},
		Sale: SaleConfig{
			ValidityWindow: getenvDuration("SALE_VALIDITY_WINDOW", time.Hour),
			Currency:       strings.ToUpper(getenv("SALE_CURRENCY", "BRL")),
		},
		RateLimit: RateLimitConfig{
			Enabled:         getenvBool("RATE_LIMIT_ENABLED", false),
			RedisAddr:       strings.TrimSpace(getenv("REDIS_ADDR", "")),
			RedisPassword:   strings.TrimSpace(getenv("REDIS_PASSWORD", "")),
			RedisDB:         getenvInt("REDIS_DB", 0),
			PurchaseRate:    getenvFloat("PURCHASE_RATE_PER_SECOND", 0.2),
			PurchaseBurst:   getenvInt("PURCHASE_BURST", 3),
			PurchaseLockTTL: getenvDuration("PURCHASE_LOCK_TTL", 15*time.Second),
		},
		Receipt: ReceiptConfig{
			Enabled:       getenvBool("RECEIPT_ENABLED", true),
			MerchantName:  getenv("RECEIPT_MERCHANT_NAME", "pixbot"),
			MerchantEmail: getenv("RECEIPT_MERCHANT_EMAIL", ""),
			Timezone:      getenv("DISPLAY_TIMEZONE", "America/Sao_Paulo"),
		},
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DisplayLocation returns the buyer-facing timezone, falling back to UTC.
func (c Config) DisplayLocation() *time.Location {
	name := strings.TrimSpace(c.Receipt.Timezone)
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c Config) validate() error {
	if c.MercadoPago.AccessToken == "" {
		return errors.New("MERCADOPAGO_ACCESS_TOKEN is required")
	}
	if c.PublicBaseURL == "" {
		return errors.New("PUBLIC_BASE_URL is required")
	}
	if c.Telegram.BotToken == "" {
		return errors.New("TELEGRAM_BOT_TOKEN is required")
	}
	if c.Sale.ValidityWindow <= 0 {
		return errors.New("SALE_VALIDITY_WINDOW must be positive")
	}
	if c.IsProduction() && c.MercadoPago.WebhookSecret == "" {
		return errors.New("MERCADOPAGO_WEBHOOK_SECRET is required in production")
	}
	return nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

// getenvDuration accepts Go duration strings ("90m") or plain seconds ("3600").
func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	seconds, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return time.Duration(seconds) * time.Second
}
