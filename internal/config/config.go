package config

import "time"

// Config is the root application configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Ledger  LedgerConfig  `yaml:"ledger"`
	Clock   ClockConfig   `yaml:"clock"`
	Catalog CatalogConfig `yaml:"catalog"`
	Log     LogConfig     `yaml:"log"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `yaml:"host"             env:"SERVER_HOST"             env-default:"0.0.0.0"`
	Port            int           `yaml:"port"             env:"SERVER_PORT"             env-default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"SERVER_READ_TIMEOUT"     env-default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"SERVER_WRITE_TIMEOUT"    env-default:"15s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

const (
	DriverFile = "file"
	DriverBolt = "bolt"
)

// StorageConfig selects and tunes the record store.
type StorageConfig struct {
	Driver              string        `yaml:"driver"               env:"STORAGE_DRIVER"               env-default:"file"`
	DataDir             string        `yaml:"data_dir"             env:"STORAGE_DATA_DIR"             env-default:"./data"`
	LoansCollection     string        `yaml:"loans_collection"     env:"STORAGE_LOANS_COLLECTION"     env-default:"loans.json"`
	PenaltiesCollection string        `yaml:"penalties_collection" env:"STORAGE_PENALTIES_COLLECTION" env-default:"penalties.json"`
	BoltPath            string        `yaml:"bolt_path"            env:"STORAGE_BOLT_PATH"            env-default:"./data/ledger.db"`
	BoltTimeout         time.Duration `yaml:"bolt_timeout"         env:"STORAGE_BOLT_TIMEOUT"         env-default:"1s"`
	AdvisoryLock        bool          `yaml:"advisory_lock"        env:"STORAGE_ADVISORY_LOCK"        env-default:"false"`
	SaveRetries         int           `yaml:"save_retries"         env:"STORAGE_SAVE_RETRIES"         env-default:"2"`
	RetryDelay          time.Duration `yaml:"retry_delay"          env:"STORAGE_RETRY_DELAY"          env-default:"50ms"`
}

// LedgerConfig holds the lending rules.
type LedgerConfig struct {
	DailyPenaltyRate         int64  `yaml:"daily_penalty_rate"         env:"LEDGER_DAILY_PENALTY_RATE"         env-default:"5000"`
	DefaultLoanDays          int    `yaml:"default_loan_days"          env:"LEDGER_DEFAULT_LOAN_DAYS"          env-default:"7"`
	ApproachingThresholdDays int    `yaml:"approaching_threshold_days" env:"LEDGER_APPROACHING_THRESHOLD_DAYS" env-default:"2"`
	CurrencyLocale           string `yaml:"currency_locale"            env:"LEDGER_CURRENCY_LOCALE"            env-default:"id"`
}

// ClockConfig enables the pinnable test-mode clock.
type ClockConfig struct {
	TestMode bool   `yaml:"test_mode" env:"CLOCK_TEST_MODE" env-default:"false"`
	Date     string `yaml:"date"      env:"CLOCK_DATE"`
}

// CatalogConfig holds the optional PostgreSQL catalog. An empty DSN disables it.
type CatalogConfig struct {
	DSN             string        `yaml:"dsn"               env:"CATALOG_DSN"`
	MaxOpenConns    int           `yaml:"max_open_conns"    env:"CATALOG_MAX_OPEN_CONNS"    env-default:"20"`
	MaxIdleConns    int           `yaml:"max_idle_conns"    env:"CATALOG_MAX_IDLE_CONNS"    env-default:"10"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CATALOG_CONN_MAX_LIFETIME" env-default:"1h"`
	Migrate         bool          `yaml:"migrate"           env:"CATALOG_MIGRATE"           env-default:"true"`
}

// Enabled reports whether a catalog database is configured.
func (c CatalogConfig) Enabled() bool { return c.DSN != "" }

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}
