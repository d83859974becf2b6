package bootstrap

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v4/pgxpool"

	accountrepo "github.com/leafybank/backend/internal/account/repository"
	accountservice "github.com/leafybank/backend/internal/account/service"
	"github.com/leafybank/backend/internal/common/clock"
	"github.com/leafybank/backend/internal/common/config"
	"github.com/leafybank/backend/internal/common/constants"
	"github.com/leafybank/backend/internal/common/db"
	"github.com/leafybank/backend/internal/common/events"
	"github.com/leafybank/backend/internal/common/logger"
	"github.com/leafybank/backend/internal/common/objectid"
	"github.com/leafybank/backend/internal/common/resilience"
	"github.com/leafybank/backend/internal/docstore"
	userrepo "github.com/leafybank/backend/internal/user/repository"
	userservice "github.com/leafybank/backend/internal/user/service"
)

// App holds the store and repositories shared by every binary.
type App struct {
	Log         *logger.Logger
	Pool        *pgxpool.Pool
	Store       docstore.Store
	UserRepo    userrepo.Repository
	AccountRepo accountrepo.Repository
	StoreDriver string
	stopMetrics context.CancelFunc
}

type AccountsApp struct {
	App
	Config         config.AccountsConfig
	Events         events.Publisher
	UserService    *userservice.UserService
	AccountService *accountservice.AccountService
}

func NewAccountsApp(ctx context.Context) (*AccountsApp, error) {
	dotEnvErr := config.LoadDotEnv()

	log, err := initializeLogger("accounts")
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	if dotEnvErr != nil {
		log.Warnf("%v", dotEnvErr)
	}

	cfg, err := config.LoadAccountsConfig()
	if err != nil {
		log.Errorf("failed to load config: %v", err)
		return nil, err
	}

	app, err := initializeApp(ctx, log, cfg.Store, cfg.CircuitBreaker)
	if err != nil {
		return nil, err
	}

	publisher := initializePublisher(log, cfg.Events)
	c := clock.NewRealClock()

	return &AccountsApp{
		App:         *app,
		Config:      cfg,
		Events:      publisher,
		UserService: userservice.NewUserService(app.UserRepo, log),
		AccountService: accountservice.NewAccountService(accountservice.Deps{
			Accounts: app.AccountRepo,
			Users:    app.UserRepo,
			IDs:      objectid.NewGenerator(c),
			Clock:    c,
			Events:   publisher,
			Log:      log,
		}),
	}, nil
}

// NewToolApp builds the store for one-shot commands such as seed and
// reconcile. Events are not published from tools.
func NewToolApp(ctx context.Context, serviceName string) (*App, error) {
	dotEnvErr := config.LoadDotEnv()

	log, err := initializeLogger(serviceName)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	if dotEnvErr != nil {
		log.Warnf("%v", dotEnvErr)
	}

	storeCfg, err := config.LoadStoreConfig()
	if err != nil {
		log.Errorf("failed to load config: %v", err)
		return nil, err
	}

	return initializeApp(ctx, log, storeCfg, config.CircuitBreakerConfig{})
}

func initializeApp(ctx context.Context, log *logger.Logger, storeCfg config.StoreConfig, cbCfg config.CircuitBreakerConfig) (*App, error) {
	specs := []docstore.CollectionSpec{
		accountrepo.Spec(storeCfg.AccountsCollection),
		userrepo.Spec(storeCfg.UsersCollection),
	}

	app := &App{Log: log, StoreDriver: storeCfg.Driver}

	switch storeCfg.Driver {
	case config.StoreDriverMemory:
		log.Warnf("using in-memory store, data is lost on exit")
		app.Store = docstore.NewMemoryStore(specs...)
	default:
		pool, err := db.NewPool(ctx, log, storeCfg.DatabaseURL)
		if err != nil {
			return nil, err
		}

		if err := docstore.EnsureCollections(ctx, pool, log, storeCfg.DatabaseName, specs...); err != nil {
			pool.Close()
			return nil, err
		}

		metricsCtx, cancel := context.WithCancel(context.Background())
		db.StartPoolMetrics(metricsCtx, pool, constants.DBPoolMetricsInterval)

		breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Threshold:  cbCfg.Threshold,
			Timeout:    cbCfg.Timeout,
			ResetAfter: cbCfg.ResetAfter,
			Name:       "docstore",
			IsFailure:  docstore.IsStoreFailure,
			Logger:     log,
		})

		app.Pool = pool
		app.Store = docstore.NewPgStore(pool, storeCfg.DatabaseName, breaker)
		app.stopMetrics = cancel
	}

	app.UserRepo = userrepo.NewDocRepository(app.Store.Collection(storeCfg.UsersCollection))
	app.AccountRepo = accountrepo.NewDocRepository(app.Store.Collection(storeCfg.AccountsCollection))
	return app, nil
}

func initializePublisher(log *logger.Logger, cfg config.EventsConfig) events.Publisher {
	if cfg.RabbitMQURL == "" {
		log.Infof("RABBITMQ_URL not set, account events are logged only")
		return events.NewLogPublisher(log)
	}

	publisher, err := events.NewRabbitPublisher(cfg.RabbitMQURL, cfg.Exchange, log)
	if err != nil {
		log.Warnf("rabbitmq unavailable, falling back to log publisher: %v", err)
		return events.NewLogPublisher(log)
	}
	return publisher
}

// HealthCheck pings the database when one is configured.
func (a *App) HealthCheck(ctx context.Context) error {
	if a.Pool == nil {
		return nil
	}
	return a.Pool.Ping(ctx)
}

func (a *App) Close() {
	if a.stopMetrics != nil {
		a.stopMetrics()
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
}

func (a *AccountsApp) Close() {
	if a.Events != nil {
		if err := a.Events.Close(); err != nil {
			a.Log.Warnf("failed to close events publisher: %v", err)
		}
	}
	a.App.Close()
}

func initializeLogger(serviceName string) (*logger.Logger, error) {
	return logger.New(os.Getenv("LOG_DIR"), serviceName, os.Getenv("LOG_LEVEL"))
}
