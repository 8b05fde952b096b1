package main

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"wingspan/pkg/config"
	"wingspan/pkg/models"
	"wingspan/pkg/services"
	"wingspan/pkg/store"
)

// app holds the long-lived pieces every command shares.
type app struct {
	store    *store.Store
	redis    *redis.Client
	home     *services.HomeCache
	articles *services.ArticleService
	users    *services.UserService
	theme    *services.ThemeService
}

func openApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	st, err := store.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}

	a := &app{store: st}
	var shared services.SharedCache
	if cfg.Redis.Addr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		shared = services.NewRedisCache(a.redis)
		logger.Info("using redis home cache", zap.String("addr", cfg.Redis.Addr))
	}

	// The article service invalidates the cache it is loaded through.
	var loader services.HomeLoader
	a.home = services.NewHomeCache(func(ctx context.Context) (models.HomePage, error) {
		return loader(ctx)
	}, cfg.Cache.TTL, shared, logger)
	a.articles = services.NewArticleService(st, a.home, logger)
	loader = a.articles.HomeLoader()
	a.users = services.NewUserService(st, a.home, logger)
	a.theme = services.NewThemeService(st, logger)
	return a, nil
}

func (a *app) Close() {
	if a.redis != nil {
		a.redis.Close()
	}
	a.store.Close()
}

func newMediaStore(ctx context.Context, cfg config.MediaConfig) (services.MediaStore, error) {
	if cfg.S3Bucket == "" {
		return services.LocalMedia{Dir: cfg.Dir, URLPrefix: cfg.URLPrefix}, nil
	}
	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.S3Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.S3Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return services.NewS3Media(s3.NewFromConfig(awsCfg), cfg.S3Bucket, cfg.S3Prefix, cfg.S3PublicURL), nil
}
