package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	DB        DBConfig
	Store     StoreConfig
	JWT       JWTConfig
	S3        S3Config
	Log       LogConfig
	CORS      CORSConfig
	LabAPI    LabAPIConfig
	Receipt   ReceiptConfig
	Reconcile ReconcileConfig
	Alert     AlertConfig
	Billing   BillingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Environment  string        `mapstructure:"environment"`
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxOpen  int    `mapstructure:"max_open"`
	MaxIdle  int    `mapstructure:"max_idle"`
}

// DSN returns the PostgreSQL connection string.
func (d *DBConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// StoreConfig selects the ledger store backend: "postgres" or "memory".
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
}

// JWTConfig holds the settings needed to verify bearer tokens issued by the
// console's auth service.
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

// S3Config holds AWS S3 settings for the receipt archive.
type S3Config struct {
	Region        string `mapstructure:"region"`
	Bucket        string `mapstructure:"bucket"`
	Endpoint      string `mapstructure:"endpoint"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	PresignExpiry int64  `mapstructure:"presign_expiry"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LabAPIConfig holds the remote lab API client settings.
type LabAPIConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	APIKey     string        `mapstructure:"api_key"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
}

// ReceiptConfig holds payment receipt upload limits.
type ReceiptConfig struct {
	MaxSizeMB int64 `mapstructure:"max_size_mb"`
}

// MaxBytes returns the receipt size cap in bytes.
func (r *ReceiptConfig) MaxBytes() int64 {
	return r.MaxSizeMB * 1024 * 1024
}

// ReconcileConfig holds reconciliation audit settings.
type ReconcileConfig struct {
	DriftTolerance   decimal.Decimal `mapstructure:"drift_tolerance"`
	PollIntervalSecs int             `mapstructure:"poll_interval_secs"`
	Concurrency      int             `mapstructure:"concurrency"`
	AlertWindowMins  int             `mapstructure:"alert_window_mins"`
}

// AlertConfig holds operator alert delivery settings.
type AlertConfig struct {
	Provider    string   `mapstructure:"provider"`
	Region      string   `mapstructure:"region"`
	FromAddress string   `mapstructure:"from_address"`
	Recipients  []string `mapstructure:"recipients"`
}

// BillingConfig holds billing settings.
type BillingConfig struct {
	Currency string `mapstructure:"currency"`
}

// Load reads configuration from environment variables with the LABDESK_ prefix.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LABDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Server defaults
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.environment", "development")

	// DB defaults
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "labdesk")
	v.SetDefault("db.password", "labdesk_secret")
	v.SetDefault("db.name", "labdesk_db")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_open", 25)
	v.SetDefault("db.max_idle", 10)
	v.SetDefault("store.driver", "postgres")

	v.SetDefault("jwt.secret", "change-me-in-production")
	v.SetDefault("jwt.issuer", "labdesk")

	// S3 defaults
	v.SetDefault("s3.region", "ap-south-1")
	v.SetDefault("s3.bucket", "labdesk-receipts")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.presign_expiry", 900)

	v.SetDefault("log.level", "debug")
	v.SetDefault("log.format", "console")

	v.SetDefault("cors.allowed_origins", "http://localhost:3000,http://127.0.0.1:3000")

	// Lab API defaults
	v.SetDefault("labapi.base_url", "http://localhost:9000/api")
	v.SetDefault("labapi.api_key", "")
	v.SetDefault("labapi.timeout", "30s")
	v.SetDefault("labapi.max_retries", 3)

	v.SetDefault("receipt.max_size_mb", 5)

	// Reconciliation defaults
	v.SetDefault("reconcile.drift_tolerance", "0.01")
	v.SetDefault("reconcile.poll_interval_secs", 300)
	v.SetDefault("reconcile.concurrency", 4)
	v.SetDefault("reconcile.alert_window_mins", 60)

	// Alert defaults
	v.SetDefault("alert.provider", "noop")
	v.SetDefault("alert.region", "ap-south-1")
	v.SetDefault("alert.from_address", "alerts@labdesk.local")
	v.SetDefault("alert.recipients", "")

	v.SetDefault("billing.currency", "INR")

	// Bind environment variables explicitly for nested keys
	envBindings := map[string]string{
		"server.port":                  "LABDESK_SERVER_PORT",
		"server.read_timeout":          "LABDESK_SERVER_READ_TIMEOUT",
		"server.write_timeout":         "LABDESK_SERVER_WRITE_TIMEOUT",
		"server.environment":           "LABDESK_SERVER_ENVIRONMENT",
		"db.host":                      "LABDESK_DB_HOST",
		"db.port":                      "LABDESK_DB_PORT",
		"db.user":                      "LABDESK_DB_USER",
		"db.password":                  "LABDESK_DB_PASSWORD",
		"db.name":                      "LABDESK_DB_NAME",
		"db.sslmode":                   "LABDESK_DB_SSLMODE",
		"db.max_open":                  "LABDESK_DB_MAX_OPEN",
		"db.max_idle":                  "LABDESK_DB_MAX_IDLE",
		"store.driver":                 "LABDESK_STORE_DRIVER",
		"jwt.secret":                   "LABDESK_JWT_SECRET",
		"jwt.issuer":                   "LABDESK_JWT_ISSUER",
		"s3.region":                    "LABDESK_S3_REGION",
		"s3.bucket":                    "LABDESK_S3_BUCKET",
		"s3.endpoint":                  "LABDESK_S3_ENDPOINT",
		"s3.access_key":                "LABDESK_S3_ACCESS_KEY",
		"s3.secret_key":                "LABDESK_S3_SECRET_KEY",
		"s3.presign_expiry":            "LABDESK_S3_PRESIGN_EXPIRY",
		"log.level":                    "LABDESK_LOG_LEVEL",
		"log.format":                   "LABDESK_LOG_FORMAT",
		"cors.allowed_origins":         "LABDESK_CORS_ALLOWED_ORIGINS",
		"labapi.base_url":              "LABDESK_LABAPI_BASE_URL",
		"labapi.api_key":               "LABDESK_LABAPI_API_KEY",
		"labapi.timeout":               "LABDESK_LABAPI_TIMEOUT",
		"labapi.max_retries":           "LABDESK_LABAPI_MAX_RETRIES",
		"receipt.max_size_mb":          "LABDESK_RECEIPT_MAX_SIZE_MB",
		"reconcile.drift_tolerance":    "LABDESK_RECONCILE_DRIFT_TOLERANCE",
		"reconcile.poll_interval_secs": "LABDESK_RECONCILE_POLL_INTERVAL_SECS",
		"reconcile.concurrency":        "LABDESK_RECONCILE_CONCURRENCY",
		"reconcile.alert_window_mins":  "LABDESK_RECONCILE_ALERT_WINDOW_MINS",
		"alert.provider":               "LABDESK_ALERT_PROVIDER",
		"alert.region":                 "LABDESK_ALERT_REGION",
		"alert.from_address":           "LABDESK_ALERT_FROM_ADDRESS",
		"alert.recipients":             "LABDESK_ALERT_RECIPIENTS",
		"billing.currency":             "LABDESK_BILLING_CURRENCY",
	}
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	cfg := &Config{}

	// Container platforms set PORT. Use it if LABDESK_SERVER_PORT is not explicitly set.
	serverPort := v.GetString("server.port")
	if port := os.Getenv("PORT"); port != "" && os.Getenv("LABDESK_SERVER_PORT") == "" {
		serverPort = ":" + port
	}

	cfg.Server = ServerConfig{
		Port:         serverPort,
		ReadTimeout:  v.GetDuration("server.read_timeout"),
		WriteTimeout: v.GetDuration("server.write_timeout"),
		Environment:  v.GetString("server.environment"),
	}
	cfg.DB = DBConfig{
		Host:     v.GetString("db.host"),
		Port:     v.GetInt("db.port"),
		User:     v.GetString("db.user"),
		Password: v.GetString("db.password"),
		Name:     v.GetString("db.name"),
		SSLMode:  v.GetString("db.sslmode"),
		MaxOpen:  v.GetInt("db.max_open"),
		MaxIdle:  v.GetInt("db.max_idle"),
	}
	cfg.Store = StoreConfig{
		Driver: strings.ToLower(v.GetString("store.driver")),
	}
	cfg.JWT = JWTConfig{
		Secret: v.GetString("jwt.secret"),
		Issuer: v.GetString("jwt.issuer"),
	}
	cfg.S3 = S3Config{
		Region:        v.GetString("s3.region"),
		Bucket:        v.GetString("s3.bucket"),
		Endpoint:      v.GetString("s3.endpoint"),
		AccessKey:     v.GetString("s3.access_key"),
		SecretKey:     v.GetString("s3.secret_key"),
		PresignExpiry: v.GetInt64("s3.presign_expiry"),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}
	cfg.CORS = CORSConfig{
		AllowedOrigins: splitList(v.GetString("cors.allowed_origins")),
	}
	cfg.LabAPI = LabAPIConfig{
		BaseURL:    strings.TrimRight(v.GetString("labapi.base_url"), "/"),
		APIKey:     v.GetString("labapi.api_key"),
		Timeout:    v.GetDuration("labapi.timeout"),
		MaxRetries: v.GetInt("labapi.max_retries"),
	}
	cfg.Receipt = ReceiptConfig{
		MaxSizeMB: v.GetInt64("receipt.max_size_mb"),
	}

	tolerance, err := decimal.NewFromString(v.GetString("reconcile.drift_tolerance"))
	if err != nil || tolerance.IsNegative() {
		return nil, fmt.Errorf("invalid reconcile.drift_tolerance %q", v.GetString("reconcile.drift_tolerance"))
	}
	if v.GetInt("reconcile.poll_interval_secs") <= 0 {
		return nil, fmt.Errorf("invalid reconcile.poll_interval_secs %d: must be positive", v.GetInt("reconcile.poll_interval_secs"))
	}
	cfg.Reconcile = ReconcileConfig{
		DriftTolerance:   tolerance,
		PollIntervalSecs: v.GetInt("reconcile.poll_interval_secs"),
		Concurrency:      v.GetInt("reconcile.concurrency"),
		AlertWindowMins:  v.GetInt("reconcile.alert_window_mins"),
	}

	cfg.Alert = AlertConfig{
		Provider:    strings.ToLower(v.GetString("alert.provider")),
		Region:      v.GetString("alert.region"),
		FromAddress: v.GetString("alert.from_address"),
		Recipients:  splitList(v.GetString("alert.recipients")),
	}
	cfg.Billing = BillingConfig{
		Currency: strings.ToUpper(v.GetString("billing.currency")),
	}

	return cfg, nil
}

// splitList parses a comma-separated value, dropping blanks.
func splitList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
