package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Policy   PolicyConfig
	Enforcer EnforcerConfig
	Sweep    SweepConfig
	Revoke   RevokeConfig
	Audit    AuditConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values for the portal account store.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds session store connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines token issuance parameters.
type AuthConfig struct {
	JWTSecret  string
	BcryptCost int
}

// PolicyConfig locates the role→policy table.
type PolicyConfig struct {
	TablePath string
}

// EnforcerConfig configures the network control plane client. An empty
// BaseURL selects the no-op enforcer.
type EnforcerConfig struct {
	BaseURL                 string
	RequestTimeoutSeconds   int
	BreakerMaxRequests      int
	BreakerIntervalSeconds  int
	BreakerTimeoutSeconds   int
	BreakerFailureThreshold int
}

// SweepConfig drives the expired-session sweep.
type SweepConfig struct {
	IntervalSeconds int
	BatchSize       int
	GraceSeconds    int
}

// RevokeConfig bounds the background revocation retry queue.
type RevokeConfig struct {
	QueueSize         int
	MaxAttempts       int
	BackoffBaseMillis int
}

// AuditConfig controls the signed audit trail.
type AuditConfig struct {
	Enabled bool
	Secret  string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "portal-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 15),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:  getEnv("AUTH_JWT_SECRET", "dev-secret"),
			BcryptCost: getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Policy: PolicyConfig{
			TablePath: getEnv("POLICY_TABLE_PATH", "config/policies.yaml"),
		},
		Enforcer: EnforcerConfig{
			BaseURL:                 os.Getenv("ENFORCER_BASE_URL"),
			RequestTimeoutSeconds:   getEnvAsInt("ENFORCER_REQUEST_TIMEOUT_SECONDS", 5),
			BreakerMaxRequests:      getEnvAsInt("ENFORCER_BREAKER_MAX_REQUESTS", 3),
			BreakerIntervalSeconds:  getEnvAsInt("ENFORCER_BREAKER_INTERVAL_SECONDS", 10),
			BreakerTimeoutSeconds:   getEnvAsInt("ENFORCER_BREAKER_TIMEOUT_SECONDS", 30),
			BreakerFailureThreshold: getEnvAsInt("ENFORCER_BREAKER_FAILURE_THRESHOLD", 5),
		},
		Sweep: SweepConfig{
			IntervalSeconds: getEnvAsInt("SWEEP_INTERVAL_SECONDS", 30),
			BatchSize:       getEnvAsInt("SWEEP_BATCH_SIZE", 128),
			GraceSeconds:    getEnvAsInt("SWEEP_GRACE_SECONDS", 120),
		},
		Revoke: RevokeConfig{
			QueueSize:         getEnvAsInt("REVOKE_QUEUE_SIZE", 256),
			MaxAttempts:       getEnvAsInt("REVOKE_MAX_ATTEMPTS", 5),
			BackoffBaseMillis: getEnvAsInt("REVOKE_BACKOFF_BASE_MILLIS", 500),
		},
		Audit: AuditConfig{
			Enabled: getEnvAsBool("AUDIT_ENABLED", true),
			Secret:  getEnv("AUDIT_SECRET", "dev-audit-secret"),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// RequestTimeout returns the per-call enforcement timeout.
func (e EnforcerConfig) RequestTimeout() time.Duration {
	return time.Duration(e.RequestTimeoutSeconds) * time.Second
}

// Interval returns the sweep cadence.
func (s SweepConfig) Interval() time.Duration {
	return time.Duration(s.IntervalSeconds) * time.Second
}

// Grace returns how long an expired record stays sweepable past its expiry.
func (s SweepConfig) Grace() time.Duration {
	return time.Duration(s.GraceSeconds) * time.Second
}

// BackoffBase returns the initial retry delay.
func (r RevokeConfig) BackoffBase() time.Duration {
	return time.Duration(r.BackoffBaseMillis) * time.Millisecond
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
