package services

import (
	"context"

	"go.uber.org/zap"

	"wingspan/pkg/models"
	"wingspan/pkg/store"
)

type ThemeService struct {
	store  *store.Store
	logger *zap.Logger
}

func NewThemeService(st *store.Store, logger *zap.Logger) *ThemeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ThemeService{store: st, logger: logger.Named("theme")}
}

// Get never fails the page: on a storage error the site renders unthemed.
func (s *ThemeService) Get(ctx context.Context) models.SiteSettings {
	settings, err := s.store.Queries().SiteSettings(ctx)
	if err != nil {
		s.logger.Warn("load site settings", zap.Error(err))
		return models.SiteSettings{}
	}
	return settings
}

func (s *ThemeService) Save(ctx context.Context, actor *models.User, settings models.SiteSettings) error {
	if actor != nil && !actor.Permissions.EditHomepage {
		return ErrForbidden
	}
	if err := s.store.Queries().SaveSiteSettings(ctx, settings); err != nil {
		s.logger.Error("save site settings", zap.Error(err))
		return err
	}
	s.logger.Info("theme updated",
		zap.Bool("christmas", settings.IsChristmas),
		zap.Bool("halloween", settings.IsHalloween))
	return nil
}
