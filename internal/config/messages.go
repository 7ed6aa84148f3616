package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Messages holds the buyer-facing texts used by the bot and the delivery notifier.
type Messages struct {
	Welcome            string `mapstructure:"welcome"`
	EmptyCatalog       string `mapstructure:"emptyCatalog"`
	ProductNotFound    string `mapstructure:"productNotFound"`
	PaymentUnavailable string `mapstructure:"paymentUnavailable"`
	RetryLater         string `mapstructure:"retryLater"`
	RateLimited        string `mapstructure:"rateLimited"`
	PurchaseInProgress string `mapstructure:"purchaseInProgress"`
	ChargeCreated      string `mapstructure:"chargeCreated"`
	PaymentPending     string `mapstructure:"paymentPending"`
	PaymentApproved    string `mapstructure:"paymentApproved"`
	PaymentExpired     string `mapstructure:"paymentExpired"`
	ProductDelivered   string `mapstructure:"productDelivered"`
	PassDelivered      string `mapstructure:"passDelivered"`
	NoActiveAccess     string `mapstructure:"noActiveAccess"`
	ActiveAccessHeader string `mapstructure:"activeAccessHeader"`
	ActiveAccessItem   string `mapstructure:"activeAccessItem"`
	CheckPaymentButton string `mapstructure:"checkPaymentButton"`
	ReceiptCaption     string `mapstructure:"receiptCaption"`
	SaleNotFound       string `mapstructure:"saleNotFound"`
}

func DefaultMessages() Messages {
	return Messages{
		Welcome:            "Olá! Escolha um produto abaixo para comprar via PIX.",
		EmptyCatalog:       "Nenhum produto disponível no momento.",
		ProductNotFound:    "Produto não encontrado ou indisponível.",
		PaymentUnavailable: "Não foi possível gerar o pagamento. Tente novamente mais tarde.",
		RetryLater:         "O serviço de pagamento está instável. Tente novamente em alguns minutos.",
		RateLimited:        "Muitas tentativas seguidas. Aguarde um pouco e tente de novo.",
		PurchaseInProgress: "Sua compra já está sendo gerada, aguarde.",
		ChargeCreated:      "Pague %s via PIX para receber <b>%s</b>. O pagamento vale por 1 hora.\n\nCódigo copia e cola:\n<code>%s</code>",
		PaymentPending:     "Ainda não recebemos a confirmação do pagamento.",
		PaymentApproved:    "Pagamento confirmado! Seu produto já foi enviado.",
		PaymentExpired:     "Este pagamento expirou. Inicie uma nova compra.",
		ProductDelivered:   "✅ Pagamento aprovado!\n\nProduto: <b>%s</b>\nAcesse: %s",
		PassDelivered:      "✅ Pagamento aprovado!\n\nAcesso: <b>%s</b>\nEntre pelo link: %s\nVálido até: %s",
		NoActiveAccess:     "Você não possui acessos ativos.",
		ActiveAccessHeader: "Seus acessos ativos:",
		ActiveAccessItem:   "• <b>%s</b> até %s",
		CheckPaymentButton: "✅ Já paguei",
		ReceiptCaption:     "Recibo da sua compra",
		SaleNotFound:       "Compra não encontrada.",
	}
}

type MessagesHolder struct {
	current atomic.Value // holds Messages
}

// NewStaticMessagesHolder returns a holder that never reloads.
func NewStaticMessagesHolder(m Messages) *MessagesHolder {
	holder := &MessagesHolder{}
	holder.current.Store(m)
	return holder
}

func NewMessagesHolder() (*MessagesHolder, error) {
	v := viper.New()

	v.SetConfigName("messages")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/pixbot") // System config
	v.AddConfigPath(".")           // Current directory (dev mode)

	v.SetEnvPrefix("PIXBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultMessages()
	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
	}

	cfg, err := unmarshalMessages(v, defaults)
	if err != nil {
		return nil, err
	}

	holder := NewStaticMessagesHolder(cfg)
	if !fileFound {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := unmarshalMessages(v, defaults)
		if err != nil {
			log.Printf("[messages-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[messages-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *MessagesHolder) Get() Messages {
	if h == nil {
		return DefaultMessages()
	}
	return h.current.Load().(Messages)
}

func unmarshalMessages(v *viper.Viper, defaults Messages) (Messages, error) {
	cfg := defaults
	if err := v.UnmarshalKey("messages", &cfg); err != nil {
		return Messages{}, err
	}
	if err := validateMessages(cfg); err != nil {
		return Messages{}, err
	}
	return cfg, nil
}

func validateMessages(m Messages) error {
	if strings.TrimSpace(m.ProductDelivered) == "" || strings.TrimSpace(m.PassDelivered) == "" {
		return errors.New("messages.productDelivered and messages.passDelivered cannot be empty")
	}
	if strings.TrimSpace(m.ChargeCreated) == "" {
		return errors.New("messages.chargeCreated cannot be empty")
	}
	return nil
}
