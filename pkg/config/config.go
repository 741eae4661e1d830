package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "VELOSHOP_DB_DSN"
	EnvDBHost = "VELOSHOP_DB_HOST"
	EnvDBUser = "VELOSHOP_DB_USER"
	EnvDBName = "VELOSHOP_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	ZaloPay      ZaloPayConfig
	Orders       OrdersConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"VELOSHOP_APP_ENV" required:"true"`
	Port         string `envconfig:"VELOSHOP_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"VELOSHOP_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"VELOSHOP_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"VELOSHOP_DB_DSN"`
	Driver string `envconfig:"VELOSHOP_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"VELOSHOP_DB_HOST"`
	LegacyPort     int    `envconfig:"VELOSHOP_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"VELOSHOP_DB_USER"`
	LegacyPassword string `envconfig:"VELOSHOP_DB_PASSWORD"`
	LegacyName     string `envconfig:"VELOSHOP_DB_NAME"`
	LegacySSLMode  string `envconfig:"VELOSHOP_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"VELOSHOP_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"VELOSHOP_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"VELOSHOP_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"VELOSHOP_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"VELOSHOP_REDIS_URL" required:"true"`
	Address      string        `envconfig:"VELOSHOP_REDIS_ADDR"`
	Password     string        `envconfig:"VELOSHOP_REDIS_PASSWORD"`
	DB           int           `envconfig:"VELOSHOP_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"VELOSHOP_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"VELOSHOP_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"VELOSHOP_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"VELOSHOP_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"VELOSHOP_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"VELOSHOP_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"VELOSHOP_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"VELOSHOP_JWT_EXPIRATION_MINUTES" default:"60"`
}

// ZaloPayConfig carries the gateway credentials and endpoints. Key1 signs
// outbound requests, Key2 verifies inbound callbacks.
type ZaloPayConfig struct {
	AppID          string        `envconfig:"VELOSHOP_ZALOPAY_APP_ID" required:"true"`
	Key1           string        `envconfig:"VELOSHOP_ZALOPAY_KEY1" required:"true"`
	Key2           string        `envconfig:"VELOSHOP_ZALOPAY_KEY2" required:"true"`
	CreateEndpoint string        `envconfig:"VELOSHOP_ZALOPAY_CREATE_ENDPOINT" default:"https://sb-openapi.zalopay.vn/v2/create"`
	QueryEndpoint  string        `envconfig:"VELOSHOP_ZALOPAY_QUERY_ENDPOINT" default:"https://sb-openapi.zalopay.vn/v2/query"`
	Timeout        time.Duration `envconfig:"VELOSHOP_ZALOPAY_TIMEOUT" default:"10s"`
}

type OrdersConfig struct {
	PendingTTL    time.Duration `envconfig:"VELOSHOP_ORDERS_PENDING_TTL" default:"24h"`
	SweepInterval time.Duration `envconfig:"VELOSHOP_ORDERS_SWEEP_INTERVAL" default:"1h"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"VELOSHOP_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
