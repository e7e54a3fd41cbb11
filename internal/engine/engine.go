package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/angelmondragon/printshop-backend/internal/catalog"
	"github.com/angelmondragon/printshop-backend/internal/documents"
	"github.com/angelmondragon/printshop-backend/internal/drafts"
	"github.com/angelmondragon/printshop-backend/internal/inventory"
	"github.com/angelmondragon/printshop-backend/internal/session"
	"github.com/angelmondragon/printshop-backend/pkg/config"
	"github.com/angelmondragon/printshop-backend/pkg/db"
	"github.com/angelmondragon/printshop-backend/pkg/lock"
	"github.com/angelmondragon/printshop-backend/pkg/logger"
	"github.com/angelmondragon/printshop-backend/pkg/metrics"
	"github.com/angelmondragon/printshop-backend/pkg/migrate"
	"github.com/angelmondragon/printshop-backend/pkg/outbox"
	"github.com/angelmondragon/printshop-backend/pkg/redis"
)

// Params wires an Engine around already opened clients.
type Params struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         *db.Client
	Redis      *redis.Client
	Registerer prometheus.Registerer
	Now        func() time.Time
}

// Engine holds the shared collaborators every editing session uses.
type Engine struct {
	cfg       *config.Config
	logg      *logger.Logger
	db        *db.Client
	redis     *redis.Client
	owned     bool
	now       func() time.Time
	resolver  *catalog.Resolver
	drafts    *drafts.RedisStore
	inventory *inventory.Repository
	documents *documents.Repository
	finalizer *documents.Finalizer
	draftObs  *metrics.DraftMetrics
}

// New builds the engine. The caller keeps ownership of the clients.
func New(p Params) (*Engine, error) {
	switch {
	case p.Config == nil:
		return nil, errors.New("config is required")
	case p.DB == nil:
		return nil, errors.New("db client is required")
	case p.Redis == nil:
		return nil, errors.New("redis client is required")
	}
	if p.Logger == nil {
		p.Logger = logger.Nop()
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	cfg := p.Config

	loc, err := cfg.App.Location()
	if err != nil {
		return nil, err
	}
	draftStore, err := drafts.NewRedisStore(p.Redis, cfg.Drafts.TTL)
	if err != nil {
		return nil, fmt.Errorf("draft store: %w", err)
	}
	inv, err := inventory.NewRepository(p.DB.DB())
	if err != nil {
		return nil, fmt.Errorf("inventory: %w", err)
	}
	seq, err := documents.NewSequencer(p.Redis, cfg.Finalize.CodeDigits)
	if err != nil {
		return nil, fmt.Errorf("display codes: %w", err)
	}
	docs, err := documents.NewRepository(p.DB, seq, outbox.NewService(outbox.NewRepository(), p.Logger))
	if err != nil {
		return nil, fmt.Errorf("documents: %w", err)
	}
	locker, err := lock.NewLocker(p.Redis, cfg.Finalize.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("locker: %w", err)
	}
	fin, err := documents.NewFinalizer(documents.Deps{
		Store:     docs,
		Inventory: inv,
		Locker:    locker,
		Fees: documents.FeeTable{
			CreditPercent: cfg.Finalize.CreditFeePercent,
			DebitPercent:  cfg.Finalize.DebitFeePercent,
		},
		Metrics: metrics.NewFinalizeMetrics(p.Registerer),
		Logger:  p.Logger,
		Now:     p.Now,
	})
	if err != nil {
		return nil, fmt.Errorf("finalizer: %w", err)
	}

	return &Engine{
		cfg:       cfg,
		logg:      p.Logger,
		db:        p.DB,
		redis:     p.Redis,
		now:       p.Now,
		resolver:  catalog.NewResolver(loc, p.Now),
		drafts:    draftStore,
		inventory: inv,
		documents: docs,
		finalizer: fin,
		draftObs:  metrics.NewDraftMetrics(p.Registerer),
	}, nil
}

// Bootstrap opens the database and Redis from cfg, applies dev migrations
// when enabled and builds the engine. Close releases both connections.
func Bootstrap(ctx context.Context, cfg *config.Config, logg *logger.Logger, reg prometheus.Registerer) (*Engine, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap database: %w", err)
	}
	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return nil, multierr.Append(fmt.Errorf("dev migrations: %w", err), dbClient.Close())
	}
	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("bootstrap redis: %w", err), dbClient.Close())
	}
	eng, err := New(Params{Config: cfg, Logger: logg, DB: dbClient, Redis: redisClient, Registerer: reg})
	if err != nil {
		return nil, multierr.Combine(err, redisClient.Close(), dbClient.Close())
	}
	eng.owned = true

	logCtx := logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "dialect": dbClient.Dialect()})
	logg.Info(logCtx, "engine ready")
	return eng, nil
}

// OpenSession starts an editing session for sessionKey, optionally editing
// the stored document target.
func (e *Engine) OpenSession(ctx context.Context, sessionKey string, target *uuid.UUID) (*session.Session, error) {
	return session.Open(ctx, session.Deps{
		Resolver:  e.resolver,
		Drafts:    e.drafts,
		Stock:     e.inventory,
		Finalizer: e.finalizer,
		DraftOptions: drafts.Options{
			Debounce:    e.cfg.Drafts.Debounce,
			SaveTimeout: e.cfg.Drafts.SaveTimeout,
			Logger:      e.logg,
			Metrics:     e.draftObs,
			Now:         e.now,
		},
		Logger: e.logg,
	}, sessionKey, target)
}

// Resolver prices catalog items in the shop's time zone.
func (e *Engine) Resolver() *catalog.Resolver { return e.resolver }

// Inventory is the stock ledger.
func (e *Engine) Inventory() *inventory.Repository { return e.inventory }

// Finalizer commits carts and records payments.
func (e *Engine) Finalizer() *documents.Finalizer { return e.finalizer }

// Ping checks both backing stores.
func (e *Engine) Ping(ctx context.Context) error {
	return multierr.Combine(e.db.Ping(ctx), e.redis.Ping(ctx))
}

// Close releases the connections opened by Bootstrap. Engines built with New
// leave their clients alone.
func (e *Engine) Close() error {
	if !e.owned {
		return nil
	}
	return multierr.Combine(e.redis.Close(), e.db.Close())
}
