package constants

import "time"

const (
	UsernameMinLength = 3
	UsernameMaxLength = 32

	AccountNumberMaxLength    = 34
	MaxInitialBalance         = 1_000_000
	DefaultAccountBank        = "LeafyBank"
	DefaultAccountCurrency    = "EUR"
	DefaultIdentificationType = "AccountNumber"

	DefaultDatabaseName       = "leafy_bank"
	DefaultAccountsCollection = "accounts"
	DefaultUsersCollection    = "users"
	DefaultEventsExchange     = "leafy_bank.accounts"

	DefaultMaxRequestSize = 1 << 20

	DBPoolMaxOpenConns    = 25
	DBPoolMinOpenConns    = 5
	DBPoolConnMaxLifetime = time.Hour
	DBPoolConnMaxIdleTime = 30 * time.Minute
	DBPoolHealthCheck     = 1 * time.Minute
	DBPoolConnectTimeout  = 5 * time.Second
	DBPoolMaxAttempts     = 10
	DBPoolRetryDelay      = 1 * time.Second
	DBPoolMetricsInterval = 30 * time.Second
	DBQueryTimeout        = 30 * time.Second

	ServerReadHeaderTimeout = 10 * time.Second
	ServerReadTimeout       = 30 * time.Second
	ServerWriteTimeout      = 30 * time.Second
	ServerIdleTimeout       = 120 * time.Second

	ShutdownTimeout = 30 * time.Second
	DrainTimeout    = 10 * time.Second

	DefaultAccountsHTTPPort = "8083"

	DefaultCircuitBreakerThreshold = 500
	DefaultCircuitBreakerTimeout   = 15 * time.Second
	DefaultCircuitBreakerReset     = 10 * time.Second

	DefaultAccountsRequestTimeout = 5 * time.Second
	DefaultReconcileTimeout       = 5 * time.Minute
	DefaultEventPublishTimeout    = 3 * time.Second
	EventDialTimeout              = 10 * time.Second

	RateLimitCleanupInterval           = 5 * time.Minute
	RateLimitMutationRequestsPerSecond = 5.0
	RateLimitMutationBurst             = 10
	RateLimitGeneralRequestsPerSecond  = 50.0
	RateLimitGeneralBurst              = 100

	LoggerMaxSize    = 100
	LoggerMaxBackups = 3
	LoggerMaxAge     = 28

	JWTSecretMinLength = 32
)

type TraceIDKeyType string

const TraceIDKey TraceIDKeyType = "trace_id"
