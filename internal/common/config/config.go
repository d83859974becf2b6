package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/leafybank/backend/internal/common/constants"
	commonerrors "github.com/leafybank/backend/internal/common/errors"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type StoreConfig struct {
	Driver             string
	DatabaseURL        string
	DatabaseName       string
	AccountsCollection string
	UsersCollection    string
}

type CircuitBreakerConfig struct {
	Threshold  int32
	Timeout    time.Duration
	ResetAfter time.Duration
}

type EventsConfig struct {
	RabbitMQURL string
	Exchange    string
}

type AccountsConfig struct {
	HTTPPort          string
	Store             StoreConfig
	CircuitBreaker    CircuitBreakerConfig
	Events            EventsConfig
	JWTSecret         string
	RequestTimeout    time.Duration
	ReconcileInterval time.Duration
	ReconcileTimeout  time.Duration
}

// LoadDotEnv reads a .env file from the working directory when one exists.
// Variables already present in the environment win.
func LoadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

func LoadAccountsConfig() (AccountsConfig, error) {
	store, err := loadStoreConfig()
	if err != nil {
		return AccountsConfig{}, err
	}

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret != "" {
		if err := validateJWTSecret(jwtSecret); err != nil {
			return AccountsConfig{}, err
		}
	}

	return AccountsConfig{
		HTTPPort: getEnv("ACCOUNTS_HTTP_PORT", constants.DefaultAccountsHTTPPort),
		Store:    store,
		CircuitBreaker: CircuitBreakerConfig{
			Threshold:  int32(getIntEnv("CIRCUIT_BREAKER_THRESHOLD", constants.DefaultCircuitBreakerThreshold)),
			Timeout:    getDurationEnv("CIRCUIT_BREAKER_TIMEOUT", constants.DefaultCircuitBreakerTimeout),
			ResetAfter: getDurationEnv("CIRCUIT_BREAKER_RESET", constants.DefaultCircuitBreakerReset),
		},
		Events: EventsConfig{
			RabbitMQURL: getEnv("RABBITMQ_URL", ""),
			Exchange:    getEnv("EVENTS_EXCHANGE", constants.DefaultEventsExchange),
		},
		JWTSecret:         jwtSecret,
		RequestTimeout:    getDurationEnv("ACCOUNTS_REQUEST_TIMEOUT", constants.DefaultAccountsRequestTimeout),
		ReconcileInterval: getDurationEnv("RECONCILE_INTERVAL", 0),
		ReconcileTimeout:  getDurationEnv("RECONCILE_TIMEOUT", constants.DefaultReconcileTimeout),
	}, nil
}

// LoadStoreConfig is the subset used by the one-shot tools.
func LoadStoreConfig() (StoreConfig, error) {
	return loadStoreConfig()
}

func loadStoreConfig() (StoreConfig, error) {
	driver := strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres))
	if driver != StoreDriverPostgres && driver != StoreDriverMemory {
		return StoreConfig{}, commonerrors.ErrInvalidStoreDriver.WithCause(fmt.Errorf("got %q", driver))
	}

	cfg := StoreConfig{
		Driver:             driver,
		DatabaseName:       getEnv("DB_NAME", constants.DefaultDatabaseName),
		AccountsCollection: getEnv("ACCOUNTS_COLLECTION", constants.DefaultAccountsCollection),
		UsersCollection:    getEnv("USERS_COLLECTION", constants.DefaultUsersCollection),
	}

	if driver == StoreDriverPostgres {
		databaseURL, err := mustEnv("DATABASE_URL")
		if err != nil {
			return StoreConfig{}, err
		}
		cfg.DatabaseURL = databaseURL
	}

	return cfg, nil
}

func validateJWTSecret(secret string) error {
	if len(secret) < constants.JWTSecretMinLength {
		return commonerrors.ErrInvalidJWTSecret.WithCause(fmt.Errorf("got %d bytes", len(secret)))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func mustEnv(key string) (string, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return "", commonerrors.ErrMissingRequiredEnv.WithCause(errors.New(key))
	}
	return v, nil
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func getIntEnv(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}
