package notify

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"pve_client/internal/modules/config"
	"pve_client/internal/modules/notify/service"
)

// Module: zap всегда, Telegram — если заданы токен и chat_id.
// Ошибка подключения к Telegram не валит приложение.
func Module() fx.Option {
	return fx.Module("notify",
		fx.Provide(func(cfg *config.Config, log *zap.Logger) service.Notifier {
			out := service.Multi{service.NewLog(log)}
			if cfg.Telegram.Token == "" || cfg.Telegram.ChatID == 0 {
				return out
			}
			tg, err := service.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID, log)
			if err != nil {
				log.Warn("telegram notifier disabled", zap.Error(err))
				return out
			}
			return append(out, tg)
		}),
	)
}
