package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/smallbiznis/pixbot/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers.telegram",
	fx.Provide(NewBotAPI),
	fx.Provide(New),
	fx.Provide(func(c *Client) Messenger { return c }),
)

// Messenger sends messages to Telegram chats. All texts use HTML parse mode.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string, keyboard *tgbotapi.InlineKeyboardMarkup) error
	SendPhoto(ctx context.Context, chatID int64, png []byte, caption string, keyboard *tgbotapi.InlineKeyboardMarkup) error
	SendDocument(ctx context.Context, chatID int64, name string, data []byte, caption string) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

var ErrEmptyMessage = errors.New("empty_message")

// NewBotAPI builds the single Bot API client. It checks the token against
// Telegram, so a bad token stops the application from starting.
func NewBotAPI(cfg config.Config) (*tgbotapi.BotAPI, error) {
	token := strings.TrimSpace(cfg.Telegram.BotToken)
	if token == "" {
		return nil, errors.New("telegram bot token is required")
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	api.Debug = cfg.Telegram.Debug
	return api, nil
}

type Client struct {
	api *tgbotapi.BotAPI
	log *zap.Logger
}

func New(api *tgbotapi.BotAPI, log *zap.Logger) *Client {
	log = log.Named("telegram")
	if api != nil {
		log.Info("telegram bot ready", zap.String("username", api.Self.UserName))
	}
	return &Client{api: api, log: log}
}

func (c *Client) SendText(ctx context.Context, chatID int64, text string, keyboard *tgbotapi.InlineKeyboardMarkup) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if keyboard != nil {
		msg.ReplyMarkup = *keyboard
	}
	return c.send(ctx, "send_message", msg)
}

func (c *Client) SendPhoto(ctx context.Context, chatID int64, png []byte, caption string, keyboard *tgbotapi.InlineKeyboardMarkup) error {
	if len(png) == 0 {
		return ErrEmptyMessage
	}
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "pix.png", Bytes: png})
	photo.Caption = caption
	photo.ParseMode = tgbotapi.ModeHTML
	if keyboard != nil {
		photo.ReplyMarkup = *keyboard
	}
	return c.send(ctx, "send_photo", photo)
}

func (c *Client) SendDocument(ctx context.Context, chatID int64, name string, data []byte, caption string) error {
	if len(data) == 0 {
		return ErrEmptyMessage
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: name, Bytes: data})
	doc.Caption = caption
	doc.ParseMode = tgbotapi.ModeHTML
	return c.send(ctx, "send_document", doc)
}

func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := c.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		return fmt.Errorf("telegram answer_callback: %w", err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, operation string, chattable tgbotapi.Chattable) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := c.api.Send(chattable); err != nil {
		c.log.Warn("telegram request failed", zap.String("operation", operation), zap.Error(err))
		return fmt.Errorf("telegram %s: %w", operation, err)
	}
	return nil
}

var _ Messenger = (*Client)(nil)
