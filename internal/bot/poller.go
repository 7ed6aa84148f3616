package bot

import (
	"context"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/smallbiznis/pixbot/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const updateTimeout = 30 * time.Second

// Poller runs the long-polling loop and dispatches each update to the Handler.
type Poller struct {
	api     *tgbotapi.BotAPI
	handler *Handler
	log     *zap.Logger
	timeout int

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewPoller(api *tgbotapi.BotAPI, handler *Handler, cfg config.Config, log *zap.Logger) *Poller {
	timeout := cfg.Telegram.PollTimeout
	if timeout <= 0 {
		timeout = 60
	}
	return &Poller{
		api:     api,
		handler: handler,
		log:     log.Named("bot.poller"),
		timeout: timeout,
	}
}

func (p *Poller) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	u := tgbotapi.NewUpdate(0)
	u.Timeout = p.timeout
	updates := p.api.GetUpdatesChan(u)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				p.wg.Add(1)
				go func(update tgbotapi.Update) {
					defer p.wg.Done()
					p.dispatch(ctx, update)
				}(update)
			}
		}
	}()
	p.log.Info("telegram polling started", zap.Int("timeout_seconds", p.timeout))
}

func (p *Poller) Stop(ctx context.Context) error {
	p.api.StopReceivingUpdates()
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		p.log.Info("telegram polling stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Poller) dispatch(parent context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("panic handling update", zap.Int("update_id", update.UpdateID), zap.Any("panic", r))
		}
	}()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), updateTimeout)
	defer cancel()
	if err := p.handler.HandleUpdate(ctx, update); err != nil {
		p.log.Warn("handle update failed", zap.Int("update_id", update.UpdateID), zap.Error(err))
	}
}

func registerPoller(lc fx.Lifecycle, cfg config.Config, poller *Poller, log *zap.Logger) {
	if cfg.Telegram.DisableUpdates {
		log.Info("telegram updates disabled")
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			poller.Start()
			return nil
		},
		OnStop: poller.Stop,
	})
}
