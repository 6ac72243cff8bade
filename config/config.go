package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/Ramsey-B/clover/pkg/matching"
	"github.com/Ramsey-B/clover/pkg/merging"
)

type Config struct {
	AppName                       string        `mapstructure:"app_name"`
	Version                       string        `mapstructure:"app_version"`
	Port                          int           `mapstructure:"port"`
	LogLevel                      string        `mapstructure:"log_level"`
	PrettyLogs                    bool          `mapstructure:"pretty_logs"`
	HttpServerWriteTimeoutSeconds int           `mapstructure:"http_server_write_timeout_seconds"`
	HttpServerReadTimeoutSeconds  int           `mapstructure:"http_server_read_timeout_seconds"`
	HttpServerIdleTimeoutSeconds  int           `mapstructure:"http_server_idle_timeout_seconds"`
	ReadHeaderTimeoutSeconds      int           `mapstructure:"http_server_read_header_timeout_seconds"`
	MaxHeaderBytes                int           `mapstructure:"http_server_max_header_bytes"`
	StartupMaxAttempts            int           `mapstructure:"startup_max_attempts"`
	ShutdownTimeout               time.Duration `mapstructure:"shutdown_timeout"`

	// PostgreSQL
	DatabaseHost                string        `mapstructure:"db_host"`
	DatabasePort                string        `mapstructure:"db_port"`
	DatabaseUserName            string        `mapstructure:"db_user_name"`
	DatabasePassword            string        `mapstructure:"db_password"`
	DatabaseName                string        `mapstructure:"db_name"`
	DatabaseSSLMode             string        `mapstructure:"db_ssl_mode"`
	DatabaseMaxOpenConns        int           `mapstructure:"db_max_open_conns"`
	DatabaseMaxIdleConns        int           `mapstructure:"db_max_idle_conns"`
	DatabaseConnMaxLifetime     time.Duration `mapstructure:"db_conn_max_lifetime"`
	DatabaseMigrationFolderPath string        `mapstructure:"db_migration_folder_path"`
	DatabaseMigrationVersion    uint          `mapstructure:"db_migration_version"`
	DatabaseMigrationForce      int           `mapstructure:"db_migration_force"`

	// Redis (merge locks)
	RedisEnabled  bool   `mapstructure:"redis_enabled"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`

	// Kafka producer (client events)
	KafkaEnabled      bool     `mapstructure:"kafka_enabled"`
	KafkaBrokers      []string `mapstructure:"kafka_brokers"`
	KafkaOutputTopic  string   `mapstructure:"kafka_output_topic"`
	KafkaBatchSize    int      `mapstructure:"kafka_batch_size"`
	KafkaBatchTimeout int      `mapstructure:"kafka_batch_timeout_ms"`
	KafkaRequiredAcks int      `mapstructure:"kafka_required_acks"`
	KafkaCompression  string   `mapstructure:"kafka_compression"`

	// Tracing
	OTLPEnabled  bool   `mapstructure:"otlp_enabled"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	OTLPProtocol string `mapstructure:"otlp_protocol"`
	OTLPInsecure bool   `mapstructure:"otlp_insecure"`

	// Auth
	AuthEnabled   bool   `mapstructure:"auth_enabled"`
	AuthIssuerURL string `mapstructure:"auth_issuer_url"`
	AuthClientID  string `mapstructure:"auth_client_id"`

	// Scoring and merging
	ScoringProfile    string        `mapstructure:"scoring_profile"`
	MergeStepTimeout  time.Duration `mapstructure:"merge_step_timeout"`
	MergeLockTTL      time.Duration `mapstructure:"merge_lock_ttl"`
	MergeAuditEnabled bool          `mapstructure:"merge_audit_enabled"`
}

var defaults = map[string]any{
	"app_name":                          "clover-api",
	"app_version":                       "dev",
	"port":                              3004,
	"log_level":                         "info",
	"pretty_logs":                       false,
	"http_server_write_timeout_seconds": 30,
	"http_server_read_timeout_seconds":  10,
	"http_server_idle_timeout_seconds":  60,
	"http_server_read_header_timeout_seconds": 10,
	"http_server_max_header_bytes":            64000,
	"startup_max_attempts":                    5,
	"shutdown_timeout":                        "15s",

	"db_host":                  "localhost",
	"db_port":                  "5432",
	"db_user_name":             "",
	"db_password":              "",
	"db_name":                  "clover",
	"db_ssl_mode":              "disable",
	"db_max_open_conns":        25,
	"db_max_idle_conns":        10,
	"db_conn_max_lifetime":     "5m",
	"db_migration_folder_path": "db/pg",
	"db_migration_version":     0,
	"db_migration_force":       0,

	"redis_enabled":  false,
	"redis_addr":     "localhost:6379",
	"redis_password": "",
	"redis_db":       0,

	"kafka_enabled":          false,
	"kafka_brokers":          "localhost:9092",
	"kafka_output_topic":     "client-events",
	"kafka_batch_size":       100,
	"kafka_batch_timeout_ms": 100,
	"kafka_required_acks":    1,
	"kafka_compression":      "snappy",

	"otlp_enabled":  false,
	"otlp_endpoint": "localhost:4317",
	"otlp_protocol": "grpc",
	"otlp_insecure": true,

	"auth_enabled":    false,
	"auth_issuer_url": "",
	"auth_client_id":  "",

	"scoring_profile":     "standard",
	"merge_step_timeout":  "30s",
	"merge_lock_ttl":      "3m",
	"merge_audit_enabled": true,
}

// Load reads an optional .env file and then the environment. Every key is the lowercase
// form of its environment variable.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the services cannot run with
func (c *Config) Validate() error {
	if _, err := matching.ScoringConfigForProfile(c.ScoringProfile); err != nil {
		return err
	}
	if c.MergeStepTimeout <= 0 {
		return fmt.Errorf("MERGE_STEP_TIMEOUT must be positive, got %s", c.MergeStepTimeout)
	}
	if minTTL := merging.LockedSteps * c.MergeStepTimeout; c.RedisEnabled && c.MergeLockTTL < minTTL {
		return fmt.Errorf("MERGE_LOCK_TTL must be at least %s (%d x MERGE_STEP_TIMEOUT), got %s", minTTL, merging.LockedSteps, c.MergeLockTTL)
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is set")
	}
	if c.AuthEnabled && (c.AuthIssuerURL == "" || c.AuthClientID == "") {
		return errors.New("AUTH_ISSUER_URL and AUTH_CLIENT_ID are required when AUTH_ENABLED is set")
	}
	return nil
}
