// Package app assembles storage, services and transports from configuration.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"user-admin/internal/archive"
	"user-admin/internal/auth"
	"user-admin/internal/config"
	"user-admin/internal/domain"
	apphttp "user-admin/internal/http"
	"user-admin/internal/repository"
	"user-admin/internal/repository/memory"
	pebblestore "user-admin/internal/repository/pebble"
	"user-admin/internal/repository/sqlite"
	"user-admin/internal/service"
	"user-admin/internal/storage"
)

// App owns the opened backend and the services built on it.
type App struct {
	Users   service.UserService
	Logs    service.LogService
	Admin   service.AdminService
	Archive archive.Manager
	Auth    *auth.Authenticator

	logger  *logrus.Logger
	closers []func() error
}

type backend struct {
	users repository.Store[domain.User]
	logs  repository.LogRepository
	tx    repository.Transactor
	close func() error
}

// New opens the configured backend and wires every service. Close releases
// the backend.
func New(ctx context.Context, cfg config.Config, logger *logrus.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	clock := repository.NewClock(nil)
	b, err := openBackend(ctx, cfg, clock)
	if err != nil {
		return nil, err
	}
	logger.Infof("using %s storage", cfg.Database.Driver)

	a := &App{
		Users:   service.NewUserService(b.users),
		Logs:    service.NewLogService(b.logs),
		Admin:   service.NewAdminService(b.tx),
		logger:  logger,
		closers: []func() error{b.close},
	}

	if cfg.AuthEnabled() {
		a.Auth = auth.New(auth.Config{
			Secret:       cfg.Auth.JWTSecret,
			Username:     cfg.Auth.AdminUser,
			PasswordHash: cfg.Auth.AdminPasswordHash,
			TokenTTL:     cfg.TokenTTL(),
		})
	} else {
		logger.Warn("auth.jwtsecret is empty, API is unauthenticated")
	}

	var store storage.Service
	if cfg.Archive.Bucket != "" {
		client, err := storage.NewS3Client(ctx, storage.ClientOptions{
			Region:   cfg.Archive.Region,
			Endpoint: cfg.Archive.Endpoint,
			Profile:  cfg.AWS.Profile,
		})
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("setup storage: %w", err)
		}
		store = storage.NewS3Service(client)
		logger.Infof("archiving to s3 bucket %s (region %s)", cfg.Archive.Bucket, cfg.Archive.Region)
	}
	a.Archive = archive.NewManager(archive.Config{
		Bucket:    cfg.Archive.Bucket,
		KeyPrefix: cfg.Archive.KeyPrefix,
		Interval:  cfg.ArchiveInterval(),
		Logger:    logger,
	}, a.Logs, store)

	return a, nil
}

func openBackend(ctx context.Context, cfg config.Config, clock *repository.Clock) (backend, error) {
	switch cfg.Database.Driver {
	case config.DriverMemory:
		users := memory.NewStore[domain.User]()
		logs := memory.NewLogRepository(clock)
		return backend{
			users: users,
			logs:  logs,
			tx:    memory.NewTransactor(users, logs),
			close: func() error { return nil },
		}, nil

	case config.DriverSQLite:
		db, err := sqlite.Open(cfg.Database.Path)
		if err != nil {
			return backend{}, fmt.Errorf("open database: %w", err)
		}
		users := sqlite.NewUserStore(db)
		logs := sqlite.NewLogRepository(db, clock)
		if err := users.Init(ctx); err != nil {
			_ = db.Close()
			return backend{}, fmt.Errorf("init user repository: %w", err)
		}
		if err := logs.Init(ctx); err != nil {
			_ = db.Close()
			return backend{}, fmt.Errorf("init log repository: %w", err)
		}
		return backend{
			users: users,
			logs:  logs,
			tx:    sqlite.NewTransactor(db, clock),
			close: db.Close,
		}, nil

	case config.DriverPebble:
		db, err := pebblestore.Open(pebblestore.Options{DataDir: cfg.Database.Path, Sync: cfg.Database.Sync})
		if err != nil {
			return backend{}, fmt.Errorf("open pebble: %w", err)
		}
		logs := pebblestore.NewLogRepository(db, clock)
		if err := logs.Init(ctx); err != nil {
			_ = db.Close()
			return backend{}, fmt.Errorf("init log repository: %w", err)
		}
		return backend{
			users: pebblestore.NewUserStore(db),
			logs:  logs,
			tx:    pebblestore.NewTransactor(db, clock),
			close: db.Close,
		}, nil
	}
	return backend{}, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
}

// Router returns a gin engine serving the JSON API.
func (a *App) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	apphttp.NewHandler(apphttp.Deps{
		Users:   a.Users,
		Logs:    a.Logs,
		Admin:   a.Admin,
		Archive: a.Archive,
		Auth:    a.Auth,
		Logger:  a.logger,
	}).RegisterRoutes(router)
	return router
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
