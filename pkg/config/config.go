package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	Drafts       DraftsConfig
	Finalize     FinalizeConfig
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
	if _, err := cfg.App.Location(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"PRINTSHOP_APP_ENV" required:"true"`
	LogLevel     string `envconfig:"PRINTSHOP_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PRINTSHOP_LOG_WARN_STACK" default:"false"`
	Timezone     string `envconfig:"PRINTSHOP_TIMEZONE" default:"America/Sao_Paulo"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

// Location resolves the shop time zone used for promotion day boundaries.
func (a AppConfig) Location() (*time.Location, error) {
	if strings.TrimSpace(a.Timezone) == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", a.Timezone, err)
	}
	return loc, nil
}

type DBConfig struct {
	DSN    string `envconfig:"PRINTSHOP_DB_DSN"`
	Driver string `envconfig:"PRINTSHOP_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"PRINTSHOP_DB_HOST"`
	LegacyPort     int    `envconfig:"PRINTSHOP_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PRINTSHOP_DB_USER"`
	LegacyPassword string `envconfig:"PRINTSHOP_DB_PASSWORD"`
	LegacyName     string `envconfig:"PRINTSHOP_DB_NAME"`
	LegacySSLMode  string `envconfig:"PRINTSHOP_DB_SSLMODE" default:"disable"`

	MigrationsDir string `envconfig:"PRINTSHOP_MIGRATIONS_DIR" default:"pkg/migrate/migrations"`

	MaxOpenConns    int           `envconfig:"PRINTSHOP_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PRINTSHOP_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PRINTSHOP_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PRINTSHOP_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the sqlite driver is selected (local runs and tests).
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(db.Driver, "sqlite") || strings.EqualFold(db.Driver, "sqlite3")
}

type RedisConfig struct {
	URL          string        `envconfig:"PRINTSHOP_REDIS_URL" required:"true"`
	Address      string        `envconfig:"PRINTSHOP_REDIS_ADDR"`
	Password     string        `envconfig:"PRINTSHOP_REDIS_PASSWORD"`
	DB           int           `envconfig:"PRINTSHOP_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PRINTSHOP_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PRINTSHOP_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PRINTSHOP_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PRINTSHOP_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PRINTSHOP_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// DraftsConfig tunes the autosave loop.
type DraftsConfig struct {
	Debounce    time.Duration `envconfig:"PRINTSHOP_DRAFTS_DEBOUNCE" default:"2s"`
	TTL         time.Duration `envconfig:"PRINTSHOP_DRAFTS_TTL" default:"72h"`
	SaveTimeout time.Duration `envconfig:"PRINTSHOP_DRAFTS_SAVE_TIMEOUT" default:"5s"`
}

// FinalizeConfig covers document commit: the cross-process lock, card fees
// deducted from nominal payments and the width of display codes.
type FinalizeConfig struct {
	LockTTL          time.Duration   `envconfig:"PRINTSHOP_FINALIZE_LOCK_TTL" default:"30s"`
	CreditFeePercent decimal.Decimal `envconfig:"PRINTSHOP_FINALIZE_CREDIT_FEE_PERCENT" default:"0"`
	DebitFeePercent  decimal.Decimal `envconfig:"PRINTSHOP_FINALIZE_DEBIT_FEE_PERCENT" default:"0"`
	CodeDigits       int             `envconfig:"PRINTSHOP_FINALIZE_CODE_DIGITS" default:"6"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"PRINTSHOP_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		return fmt.Errorf("%s is required for the sqlite driver", EnvDBDSN)
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
