package config

// EnvPrefix is handed to envconfig; every field also carries its full
// variable name so lookups succeed without the prefix being doubled.
const EnvPrefix = "PRINTSHOP"

const AppEnvDev = "dev"

const (
	EnvAppEnv       = "PRINTSHOP_APP_ENV"
	EnvLogLevel     = "PRINTSHOP_LOG_LEVEL"
	EnvLogWarnStack = "PRINTSHOP_LOG_WARN_STACK"
	EnvTimezone     = "PRINTSHOP_TIMEZONE"

	EnvDBDSN         = "PRINTSHOP_DB_DSN"
	EnvDBDriver      = "PRINTSHOP_DB_DRIVER"
	EnvDBHost        = "PRINTSHOP_DB_HOST"
	EnvDBPort        = "PRINTSHOP_DB_PORT"
	EnvDBUser        = "PRINTSHOP_DB_USER"
	EnvDBPassword    = "PRINTSHOP_DB_PASSWORD"
	EnvDBName        = "PRINTSHOP_DB_NAME"
	EnvDBSSLMode     = "PRINTSHOP_DB_SSLMODE"
	EnvMigrationsDir = "PRINTSHOP_MIGRATIONS_DIR"

	EnvRedisURL = "PRINTSHOP_REDIS_URL"

	EnvDraftDebounce    = "PRINTSHOP_DRAFTS_DEBOUNCE"
	EnvDraftTTL         = "PRINTSHOP_DRAFTS_TTL"
	EnvDraftSaveTimeout = "PRINTSHOP_DRAFTS_SAVE_TIMEOUT"

	EnvFinalizeLockTTL    = "PRINTSHOP_FINALIZE_LOCK_TTL"
	EnvFinalizeCreditFee  = "PRINTSHOP_FINALIZE_CREDIT_FEE_PERCENT"
	EnvFinalizeDebitFee   = "PRINTSHOP_FINALIZE_DEBIT_FEE_PERCENT"
	EnvFinalizeCodeDigits = "PRINTSHOP_FINALIZE_CODE_DIGITS"

	EnvAutoMigrate = "PRINTSHOP_AUTO_MIGRATE"
)

var legacyDBEnvVars = []string{
	EnvDBHost,
	EnvDBUser,
	EnvDBName,
}
