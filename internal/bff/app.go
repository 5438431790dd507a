package bff

import (
	"go.uber.org/zap"

	"foyer/internal/coordinator"
	"foyer/pkg/branding"
	"foyer/pkg/config"
	"foyer/pkg/registry"
	"foyer/pkg/session"
)

// App is the backend-for-frontend application container.
// Shared deps and config only; request-scoped work uses context.
type App struct {
	log      *zap.SugaredLogger
	cfg      config.Config
	sessions *session.Manager
	coord    *coordinator.Coordinator
	branding *branding.Cache
	stores   *registry.Registry
}

func New(log *zap.SugaredLogger, cfg config.Config, sessions *session.Manager, coord *coordinator.Coordinator, brand *branding.Cache, stores *registry.Registry) *App {
	return &App{log: log, cfg: cfg, sessions: sessions, coord: coord, branding: brand, stores: stores}
}
