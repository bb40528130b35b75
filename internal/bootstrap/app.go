package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"docchaser/internal/chasers"
	"docchaser/internal/content"
	"docchaser/internal/customers"
	"docchaser/internal/dispatch"
	"docchaser/internal/documents"
	"docchaser/internal/events"
	"docchaser/internal/llm"
	openai "docchaser/internal/llm/openai"
	"docchaser/internal/messaging"
	"docchaser/internal/messaging/gmail"
	"docchaser/internal/schedule"
	"docchaser/internal/services/health"
	"docchaser/internal/shared/config"
	"docchaser/internal/shared/server"
	"docchaser/internal/shared/storage/db"
	"docchaser/internal/shared/storage/kv"
	"docchaser/internal/shared/telemetry"
	"docchaser/internal/timing"
)

const (
	dispatchLeaseKey    = "docchaser:dispatch:lease"
	attemptClaimPrefix  = "docchaser:attempt:claim:"
	attemptClaimTimeout = 2 * time.Minute
)

// App holds shared dependencies.
type App struct {
	Config     config.Config
	Router     *gin.Engine
	DB         *sql.DB
	Redis      *redis.Client
	Events     events.Publisher
	Policies   *timing.Store
	Generator  llm.Generator
	Senders    *messaging.Registry
	Chasers    *chasers.Service
	Documents  *documents.Service
	Customers  *customers.Service
	Dispatcher *dispatch.Dispatcher
	Scheduler  *dispatch.Scheduler
	Health     *health.Service

	closers []func() error
}

// Build prepares every dependency and the router. ctx bounds the dispatch
// loop when it is started over HTTP.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	app := &App{Config: cfg, Health: health.NewService()}

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if sqlDB != nil {
		app.DB = sqlDB
		app.closers = append(app.closers, sqlDB.Close)
		app.Health.Add("database", sqlDB.PingContext)
	}

	rdb, err := buildRedis(ctx, cfg)
	if err != nil {
		app.Close()
		return nil, err
	}
	if rdb != nil {
		app.Redis = rdb
		app.closers = append(app.closers, rdb.Close)
		app.Health.Add("redis", func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	}

	app.Events = buildEvents(cfg, app)

	policies, err := buildPolicies(cfg)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Policies = policies

	gen, err := buildGenerator(cfg)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Generator = gen

	senders, err := buildSenders(ctx, cfg, rdb)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Senders = senders

	if err := buildServices(app); err != nil {
		app.Close()
		return nil, err
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:          cfg,
		ChaserHandler:   chasers.NewHandler(app.Chasers),
		DocumentHandler: documents.NewHandler(app.Documents),
		CustomerHandler: customers.NewHandler(app.Customers),
		Scheduler:       app.Scheduler,
		Health:          app.Health,
		BaseContext:     ctx,
	})

	return app, nil
}

// Close releases connections in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			telemetry.Warn("bootstrap.close_failed", map[string]any{"error": err})
		}
	}
	a.closers = nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}
	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return sqlDB, nil
}

func buildRedis(ctx context.Context, cfg config.Config) (*redis.Client, error) {
	if strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil, nil
	}
	rdb, err := kv.Open(ctx, kv.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: redis unavailable; using in-process counter and no lease: %v", err)
			return nil, nil
		}
		return nil, err
	}
	return rdb, nil
}

func buildEvents(cfg config.Config, app *App) events.Publisher {
	if strings.TrimSpace(cfg.AMQPURL) == "" {
		return events.Noop{}
	}
	pub, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	if err != nil {
		telemetry.Warn("bootstrap.amqp_unavailable", map[string]any{"error": err})
		return events.Noop{}
	}
	app.closers = append(app.closers, pub.Close)
	return pub
}

func buildPolicies(cfg config.Config) (*timing.Store, error) {
	if strings.TrimSpace(cfg.PolicyFile) == "" {
		return timing.NewStore(nil), nil
	}
	p, err := timing.LoadFile(cfg.PolicyFile)
	if err != nil {
		return nil, fmt.Errorf("load policy: %w", err)
	}
	return timing.NewStore(p), nil
}

func buildGenerator(cfg config.Config) (llm.Generator, error) {
	if cfg.LLMProvider != "openai" {
		return llm.Disabled{}, nil
	}
	client, err := openai.NewClient(cfg.OpenAIAPIKey, cfg.LLMModel)
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: openai disabled: %v", err)
			return llm.Disabled{}, nil
		}
		return nil, err
	}
	return client, nil
}

func buildSenders(ctx context.Context, cfg config.Config, rdb *redis.Client) (*messaging.Registry, error) {
	registry := messaging.NewRegistry()
	if !cfg.GmailConfigured() {
		telemetry.Warn("bootstrap.gmail_unconfigured", map[string]any{"env": cfg.Env})
		return registry, nil
	}

	var counter messaging.Counter = messaging.NewMemoryCounter()
	if rdb != nil {
		counter = messaging.NewRedisCounter(rdb, "")
	}
	limiter := messaging.NewDailyLimiter(counter, "gmail", cfg.GmailDailyLimit, cfg.GmailWarnRatio)
	sender, err := gmail.New(ctx, gmail.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RefreshToken: cfg.GoogleRefreshToken,
		From:         cfg.GmailFromEmail,
		Timeout:      30 * time.Second,
	}, limiter)
	if err != nil {
		return nil, fmt.Errorf("gmail sender: %w", err)
	}
	registry.Register("email", sender)
	return registry, nil
}

func buildServices(app *App) error {
	var (
		chaserRepo   chasers.Repo
		documentRepo documents.Repo
		customerRepo customers.Repo
	)
	if app.DB != nil {
		chaserRepo = &chasers.PGRepo{DB: app.DB}
		documentRepo = &documents.PGRepo{DB: app.DB}
		customerRepo = &customers.PGRepo{DB: app.DB}
	} else {
		chaserRepo = chasers.NewMemoryRepo()
		documentRepo = documents.NewMemoryRepo()
		customerRepo = customers.NewMemoryRepo()
	}

	resolver := content.NewResolver(app.Generator, app.Config.LLMGenerateSubjects)

	var parser documents.Parser = documents.SimpleParser{}
	if _, disabled := app.Generator.(llm.Disabled); !disabled {
		parser = documents.AIParser{Gen: app.Generator}
	}
	app.Documents = documents.NewService(documentRepo, parser)
	app.Customers = customers.NewService(customerRepo)

	dispatcher := dispatch.NewDispatcher(chaserRepo, resolver, app.Senders)
	dispatcher.Events = app.Events
	if app.Redis != nil {
		dispatcher.Lease = dispatch.NewRedisLease(app.Redis, dispatchLeaseKey, app.Config.DispatchLeaseTTL)
		dispatcher.Claims = dispatch.NewRedisClaims(app.Redis, attemptClaimPrefix, attemptClaimTimeout)
	}
	app.Dispatcher = dispatcher
	app.Scheduler = dispatch.NewScheduler(dispatcher, app.Config.DispatchInterval)

	svc := chasers.NewService(chaserRepo, schedule.NewGenerator(app.Policies), resolver)
	svc.Customers = app.Customers
	svc.Documents = app.Documents
	svc.Sender = dispatcher
	svc.Events = app.Events
	if pref := strings.TrimSpace(app.Config.DefaultChannelPreference); pref != "" {
		svc.DefaultPreference = pref
	}
	app.Chasers = svc

	if app.Chasers == nil || app.Scheduler == nil {
		return errors.New("failed to initialize services")
	}
	return nil
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
