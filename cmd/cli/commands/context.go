package commands

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Majulish/cookie/internal/config"
	"github.com/Majulish/cookie/pkg/clients/gmailclient"
	"github.com/Majulish/cookie/pkg/clock"
	"github.com/Majulish/cookie/pkg/core/capacity"
	"github.com/Majulish/cookie/pkg/core/reminders"
	"github.com/Majulish/cookie/pkg/core/services"
	"github.com/Majulish/cookie/pkg/db"
	"github.com/Majulish/cookie/pkg/events"
	"github.com/Majulish/cookie/pkg/messages"
	"github.com/Majulish/cookie/pkg/metrics"
	"github.com/Majulish/cookie/pkg/postgres"
	"github.com/Majulish/cookie/pkg/timerqueue"
	"github.com/Majulish/cookie/pkg/utils"
)

// AppContext holds the application dependencies shared across all commands
type AppContext struct {
	Cfg        *config.Config
	Env        string
	Staffing   *services.Staffing
	Dispatcher *reminders.Dispatcher
	Checks     *reminders.EscalationChecks
	Database   db.Database
	// Postgres is nil when the in-memory store is configured
	Postgres *postgres.DB
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
	Ctx      context.Context

	closers []func() error
}

// Build wires the store, timer queues and services described by cfg
func Build(ctx context.Context, cfg *config.Config, env string, logger *zap.Logger) (*AppContext, error) {
	app := &AppContext{
		Cfg:     cfg,
		Env:     env,
		Metrics: metrics.New(),
		Logger:  logger,
		Ctx:     ctx,
	}

	if err := app.openStore(); err != nil {
		app.Close()
		return nil, err
	}

	reminderQueue, checkQueue, err := app.openQueues()
	if err != nil {
		app.Close()
		return nil, err
	}

	catalog, err := messages.NewCatalog(cfg.Locale, logger)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to load message catalog: %w", err)
	}

	publisher := events.Publisher(events.Nop{})
	if len(cfg.Kafka.Brokers) > 0 {
		producer := events.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		app.closers = append(app.closers, producer.Close)
		publisher = producer
		logger.Info("Publishing domain events", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}
	emitter := events.NewEmitter(publisher, logger)

	out := reminders.Outbound{Emitter: emitter}
	if cfg.Mail.Enabled {
		mail, err := app.mailClient()
		if err != nil {
			app.Close()
			return nil, err
		}
		out.Deliverer = mail
	}

	offsets := make([]reminders.Offset, 0, len(cfg.Reminders))
	for _, r := range cfg.Reminders {
		offsets = append(offsets, reminders.Offset{Label: r.Label, Before: r.Before, CheckDelay: r.CheckDelay})
	}
	if err := reminders.ValidateOffsets(offsets); err != nil {
		app.Close()
		return nil, fmt.Errorf("invalid reminder offsets: %w", err)
	}

	clk := clock.System{}
	scheduler := reminders.NewScheduler(reminderQueue, offsets, clk, logger, app.Metrics)
	app.Checks = reminders.NewEscalationChecks(app.Database, checkQueue, clk, logger, app.Metrics, catalog, out)
	app.Checks.RetryDelay = cfg.EscalationRetry
	app.Dispatcher = reminders.NewDispatcher(app.Database, reminderQueue, app.Checks, clk, logger, app.Metrics, catalog, out)

	app.Staffing = services.NewStaffing(services.Deps{
		Database:  app.Database,
		Ledger:    capacity.NewLedger(logger, app.Metrics),
		Scheduler: scheduler,
		Checks:    app.Checks,
		Catalog:   catalog,
		Emitter:   emitter,
		Clock:     clk,
		Logger:    logger,
	})

	return app, nil
}

func (a *AppContext) openStore() error {
	switch a.Cfg.Store {
	case config.StorePostgres:
		a.Logger.Info("Connecting to PostgreSQL")
		pg, err := postgres.NewDB(a.Ctx, a.Cfg.DatabaseURL, a.Logger)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		a.Postgres = pg
		a.Database = pg
		a.closers = append(a.closers, func() error { pg.Close(); return nil })
	default:
		a.Logger.Warn("Using the in-memory store; data is lost when the process exits")
		a.Database = db.NewMemoryStore()
	}
	return nil
}

func (a *AppContext) openQueues() (timerqueue.Queue, timerqueue.Queue, error) {
	if a.Cfg.TimerQueue != config.QueueRedis {
		return timerqueue.NewMemoryQueue(), timerqueue.NewMemoryQueue(), nil
	}

	a.Logger.Info("Connecting to Redis timer queue", zap.String("prefix", a.Cfg.RedisKeyPrefix))
	client, err := timerqueue.NewRedisClient(a.Ctx, a.Cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	a.closers = append(a.closers, client.Close)

	reminderQueue := timerqueue.NewRedisQueue(client, a.Cfg.RedisKeyPrefix+":reminders", a.Logger)
	checkQueue := timerqueue.NewRedisQueue(client, a.Cfg.RedisKeyPrefix+":checks", a.Logger)
	return reminderQueue, checkQueue, nil
}

func (a *AppContext) mailClient() (*gmailclient.Client, error) {
	oauthCfg, err := config.LoadOAuthClientWithEnv(a.Env)
	if err != nil {
		return nil, fmt.Errorf("failed to load mail OAuth client: %w", err)
	}
	oauthConfig, err := utils.GetOAuthConfig(oauthCfg)
	if err != nil {
		return nil, err
	}
	token, err := utils.GetTokenWithFlow(a.Ctx, oauthConfig, a.Env, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to authorize mail delivery: %w", err)
	}
	client, err := gmailclient.NewClient(a.Ctx, oauthCfg, token, a.Cfg.Mail)
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail client: %w", err)
	}
	return client, nil
}

// Close releases connections in reverse order of opening
func (a *AppContext) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if a.Database != nil && a.Postgres == nil {
		a.Database.Close()
	}
	return errors.Join(errs...)
}
