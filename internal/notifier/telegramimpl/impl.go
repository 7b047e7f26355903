package telegramimpl

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/fx"

	"github.com/clipworks/clipfarm/internal/notifier"
	"github.com/clipworks/clipfarm/pkg/config"
	"github.com/clipworks/clipfarm/pkg/logger"
)

type Opts struct {
	fx.In

	Config *config.Config
	Logger logger.Logger
}

type TelegramImpl struct {
	TgBot  *tgbotapi.BotAPI
	Logger logger.Logger
	Config *config.Config
}

func New(opts Opts) (*TelegramImpl, error) {
	if opts.Config.Telegram.Token == "" {
		// No bot configured; alerts degrade to log lines.
		opts.Logger.Warn("Telegram token not set, operator alerts go to the log only")
		return &TelegramImpl{Logger: opts.Logger, Config: opts.Config}, nil
	}

	tgBot, err := tgbotapi.NewBotAPI(opts.Config.Telegram.Token)
	if err != nil {
		opts.Logger.Error("Error creating bot", "Error", err)
		return nil, err
	}

	return &TelegramImpl{
		TgBot:  tgBot,
		Logger: opts.Logger,
		Config: opts.Config,
	}, nil
}

var _ notifier.Client = (*TelegramImpl)(nil)

func (t *TelegramImpl) Notify(text string) {
	if t.TgBot == nil {
		t.Logger.Warn("Operator alert (no telegram)", "text", text)
		return
	}

	msg := tgbotapi.NewMessage(t.Config.Telegram.User, text)
	if _, err := t.TgBot.Send(msg); err != nil {
		t.Logger.Error("Failed to send telegram alert", "error", err)
	}
}
