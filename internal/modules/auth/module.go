package auth

import (
	"go.uber.org/fx"

	"pve_client/internal/modules/auth/service"
	"pve_client/internal/modules/config"
	pveapi "pve_client/internal/modules/pve_api/service"
	sessionsvc "pve_client/internal/modules/session/service"
)

// Module отдаёт файловое хранилище кредов как источник для REST и сессии.
func Module() fx.Option {
	return fx.Module("auth",
		fx.Provide(
			fx.Annotate(
				func(cfg *config.Config) *service.Store {
					return service.NewStore(cfg.CredentialsFile, cfg.Credentials)
				},
				fx.As(fx.Self()),
				fx.As(new(pveapi.CredentialSource)),
				fx.As(new(sessionsvc.CredentialSource)),
			),
		),
	)
}
