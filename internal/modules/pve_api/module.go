package pve_api

import (
	"go.uber.org/fx"

	"pve_client/internal/modules/pve_api/service"
)

// Module поднимает REST-клиент бэкенда. service.CredentialSource
// должен предоставить модуль auth.
func Module() fx.Option {
	return fx.Module("pve_api",
		fx.Provide(
			service.NewClient,
		),
	)
}
