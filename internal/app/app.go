// Package app assembles the session, stores and services from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hiroki-koketsu/upahead/internal/ai"
	"github.com/hiroki-koketsu/upahead/internal/auth"
	"github.com/hiroki-koketsu/upahead/internal/backend"
	"github.com/hiroki-koketsu/upahead/internal/config"
	"github.com/hiroki-koketsu/upahead/internal/importer"
	"github.com/hiroki-koketsu/upahead/internal/localstate"
	"github.com/hiroki-koketsu/upahead/internal/model"
	"github.com/hiroki-koketsu/upahead/internal/repository"
	"github.com/hiroki-koketsu/upahead/internal/store"
)

// Hooks observe service results. Nil fields are skipped.
type Hooks struct {
	AIOutcome    ai.OutcomeRecorder
	ImportResult func(ctx context.Context, res *model.ImportResult)
}

// App is the wired client core.
type App struct {
	Config   *config.Config
	Session  *auth.Session
	Provider *auth.DemoProvider
	Store    *store.Store
	Backend  *backend.Client
	AI       *ai.Service
	Booster  *ai.Booster
	Importer *importer.Service
	Local    *localstate.Store

	// LocalTasks is set in demo mode, where tasks live in Local.
	LocalTasks *localstate.TaskRepository

	closers []func() error
}

// New opens the configured storage and wires the services. In demo mode
// tasks live in the local state database; otherwise in Postgres. AI usage
// is read from Redis when an address is configured.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, hooks Hooks) (*App, error) {
	a := &App{Config: cfg}

	db, err := localstate.Open(cfg.LocalStatePath, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})
	a.Local = localstate.NewStore(db)

	var (
		repo  repository.TaskRepository
		usage ai.UsageReader
	)
	if cfg.DemoMode() {
		a.LocalTasks = localstate.NewTaskRepository(a.Local)
		repo = a.LocalTasks
		usage = ai.NewMemoryUsage()
		logger.InfoContext(ctx, "demo mode, tasks stored locally", slog.String("path", cfg.LocalStatePath))
	} else {
		pool, err := repository.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, func() error { pool.Close(); return nil })
		if err := repository.EnsureSchema(ctx, pool); err != nil {
			a.Close()
			return nil, err
		}
		repo = repository.NewPostgresRepository(pool)
		usage = ai.NewPostgresUsage(pool)
	}

	if cfg.RedisAddr != "" {
		client, err := ai.OpenRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		usage = ai.NewRedisUsage(client)
	}

	a.Provider = auth.NewDemoProvider(cfg.DemoSecret)
	if state, ok, err := a.Local.LoadSession(ctx); err == nil && ok && state.User != nil {
		a.Provider.Resume(*state.User)
	}

	a.Store = store.New(repo, logger, store.WithPageSize(cfg.PageSize))
	a.Session = auth.NewSession(ctx, a.Provider, logger, auth.WithPersister(a.Local))
	a.Session.Subscribe(func(u *model.User) {
		userID := ""
		if u != nil {
			userID = u.ID
		}
		if err := a.Store.SetCurrentUser(ctx, userID); err != nil {
			logger.WarnContext(ctx, "failed to load tasks for user", slog.String("user", userID), slog.Any("error", err))
		}
	})
	a.Session.Initialize()
	a.closers = append(a.closers, func() error { a.Session.Close(); return nil })

	// A restored session that matches the provider raises no change.
	if err := a.Store.SetCurrentUser(ctx, a.Session.UserID()); err != nil {
		logger.WarnContext(ctx, "failed to load tasks for restored user", slog.Any("error", err))
	}

	a.Backend = backend.New(cfg.APIBaseURL, a.Session)

	var aiOpts []ai.Option
	if hooks.AIOutcome != nil {
		aiOpts = append(aiOpts, ai.WithOutcomeRecorder(hooks.AIOutcome))
	}
	a.AI = ai.NewService(a.Backend, usage, a.Session, logger, aiOpts...)
	a.Booster = ai.NewBooster()

	importOpts := []importer.Option{importer.WithRefresher(a.Store)}
	if hooks.ImportResult != nil {
		importOpts = append(importOpts, importer.WithResultHook(hooks.ImportResult))
	}
	a.Importer = importer.NewService(a.Backend, logger, importOpts...)

	return a, nil
}

// Close releases storage connections in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("close app: %w", err)
	}
	return nil
}
