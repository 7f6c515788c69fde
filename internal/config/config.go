package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	Library       LibraryConfig
	Model         ModelConfig
	Warehouse     WarehouseConfig
	Dictionary    DictionaryConfig
	ObjectStore   ObjectStoreConfig
	Analyst       AnalystConfig
	Retention     RetentionConfig
	Observability ObservabilityConfig
	Auth          AuthConfig
}

type ServiceConfig struct {
	Name string
}

type HTTPConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type LibraryConfig struct {
	BasePath  string
	FactsPath string
}

type ModelConfig struct {
	MaxFacts     int
	MaxBytes     int
	FilenameBase string
}

type WarehouseConfig struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

type DictionaryConfig struct {
	// Source selects where fact names come from when a generation
	// request does not name facts explicitly: none, sql, parquet, or
	// object.
	Source    string
	Query     string
	Column    string
	Path      string
	ObjectKey string
}

type ObjectStoreConfig struct {
	Endpoint         string
	Region           string
	Bucket           string
	AccessKeyID      string
	SecretAccessKey  string
	UseSSL           bool
	Prefix           string
	AutoCreateBucket bool
	UploadEnabled    bool
}

type AnalystConfig struct {
	Enabled     bool
	AccountURL  string
	Token       string
	TokenType   string
	MessagePath string
	Timeout     time.Duration
}

type RetentionConfig struct {
	Enabled    bool
	KeepLatest int
	MaxAge     time.Duration
	Interval   time.Duration
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

type AuthConfig struct {
	Required   bool
	StaticKeys string
}

func LoadFromEnv(serviceName string) (Config, error) {
	return Load(serviceName, os.LookupEnv)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("SEMFORGE_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid SEMFORGE_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	if err := applyString(lookup, "SEMFORGE_SERVICE_NAME", &cfg.Service.Name); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SEMFORGE_HTTP_ADDR", &cfg.HTTP.Address); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "SEMFORGE_HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "SEMFORGE_HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "SEMFORGE_HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SEMFORGE_LIBRARY_BASE_PATH", &cfg.Library.BasePath); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SEMFORGE_LIBRARY_FACTS_PATH", &cfg.Library.FactsPath); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "SEMFORGE_MODEL_MAX_FACTS", &cfg.Model.MaxFacts); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "SEMFORGE_MODEL_MAX_BYTES", &cfg.Model.MaxBytes); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SEMFORGE_MODEL_FILENAME_BASE", &cfg.Model.FilenameBase); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SEMFORGE_WAREHOUSE_DRIVER", &cfg.Warehouse.Driver); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SEMFORGE_WAREHOUSE_DSN", &cfg.Warehouse.DSN); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "SEMFORGE_WAREHOUSE_MAX_OPEN_CONNS", &cfg.Warehouse.MaxOpenConns); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "SEMFORGE_WAREHOUSE_MAX_IDLE_CONNS", &cfg.Warehouse.MaxIdleConns); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "SEMFORGE_WAREHOUSE_CONN_MAX_IDLE_TIME", &cfg.Warehouse.ConnMaxIdleTime); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "SEMFORGE_WAREHOUSE_CONN_MAX_LIFETIME", &cfg.Warehouse.ConnMaxLifetime); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SEMFORGE_DICTIONARY_SOURCE", &cfg.Dictionary.Source); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SEMFORGE_DICTIONARY_QUERY", &cfg.Dictionary.Query); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SEMFORGE_DICTIONARY_COLUMN", &cfg.Dictionary.Column); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SEMFORGE_DICTIONARY_PATH", &cfg.Dictionary.Path); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SEMFORGE_DICTIONARY_OBJECT_KEY", &cfg.Dictionary.ObjectKey); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SEMFORGE_OBJECTSTORE_ENDPOINT", &cfg.ObjectStore.Endpoint); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SEMFORGE_OBJECTSTORE_REGION", &cfg.ObjectStore.Region); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SEMFORGE_OBJECTSTORE_BUCKET", &cfg.ObjectStore.Bucket); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SEMFORGE_OBJECTSTORE_ACCESS_KEY", &cfg.ObjectStore.AccessKeyID); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SEMFORGE_OBJECTSTORE_SECRET_KEY", &cfg.ObjectStore.SecretAccessKey); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "SEMFORGE_OBJECTSTORE_USE_SSL", &cfg.ObjectStore.UseSSL); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SEMFORGE_OBJECTSTORE_PREFIX", &cfg.ObjectStore.Prefix); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "SEMFORGE_OBJECTSTORE_AUTO_CREATE_BUCKET", &cfg.ObjectStore.AutoCreateBucket); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "SEMFORGE_OBJECTSTORE_UPLOAD_ENABLED", &cfg.ObjectStore.UploadEnabled); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "SEMFORGE_ANALYST_ENABLED", &cfg.Analyst.Enabled); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SEMFORGE_ANALYST_ACCOUNT_URL", &cfg.Analyst.AccountURL); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SEMFORGE_ANALYST_TOKEN", &cfg.Analyst.Token); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SEMFORGE_ANALYST_TOKEN_TYPE", &cfg.Analyst.TokenType); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SEMFORGE_ANALYST_MESSAGE_PATH", &cfg.Analyst.MessagePath); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "SEMFORGE_ANALYST_TIMEOUT", &cfg.Analyst.Timeout); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "SEMFORGE_RETENTION_ENABLED", &cfg.Retention.Enabled); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "SEMFORGE_RETENTION_KEEP_LATEST", &cfg.Retention.KeepLatest); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "SEMFORGE_RETENTION_MAX_AGE", &cfg.Retention.MaxAge); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "SEMFORGE_RETENTION_INTERVAL", &cfg.Retention.Interval); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "SEMFORGE_LOG_JSON", &cfg.Observability.LogJSON); err != nil {
		return Config{}, err
	}
	if err := applyLogLevel(lookup, "SEMFORGE_LOG_LEVEL", &cfg.Observability.LogLevel); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "SEMFORGE_AUTH_REQUIRED", &cfg.Auth.Required); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "SEMFORGE_AUTH_STATIC_KEYS", &cfg.Auth.StaticKeys); err != nil {
		return Config{}, err
	}

	if cfg.Service.Name == "" {
		return Config{}, fmt.Errorf("service name is required")
	}
	if cfg.HTTP.Address == "" {
		return Config{}, fmt.Errorf("http address is required")
	}
	switch cfg.Dictionary.Source {
	case "none", "sql", "parquet", "object":
	default:
		return Config{}, fmt.Errorf("invalid SEMFORGE_DICTIONARY_SOURCE: %q", cfg.Dictionary.Source)
	}
	if cfg.Dictionary.Source == "sql" && cfg.Dictionary.Query == "" {
		return Config{}, fmt.Errorf("SEMFORGE_DICTIONARY_QUERY is required for the sql dictionary source")
	}
	if cfg.Dictionary.Source == "parquet" && cfg.Dictionary.Path == "" {
		return Config{}, fmt.Errorf("SEMFORGE_DICTIONARY_PATH is required for the parquet dictionary source")
	}
	if cfg.Dictionary.Source == "object" && cfg.Dictionary.ObjectKey == "" {
		return Config{}, fmt.Errorf("SEMFORGE_DICTIONARY_OBJECT_KEY is required for the object dictionary source")
	}
	if cfg.Analyst.Enabled && cfg.Analyst.AccountURL == "" {
		return Config{}, fmt.Errorf("SEMFORGE_ANALYST_ACCOUNT_URL is required when the analyst is enabled")
	}
	if cfg.Analyst.Enabled && cfg.Analyst.Token == "" {
		return Config{}, fmt.Errorf("SEMFORGE_ANALYST_TOKEN is required when the analyst is enabled")
	}
	return cfg, nil
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "semforge-api"},
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Library: LibraryConfig{
			BasePath:  "base.yaml",
			FactsPath: "facts.yaml",
		},
		Model: ModelConfig{
			MaxFacts:     50,
			MaxBytes:     128 * 1024,
			FilenameBase: "semantic_model",
		},
		Warehouse: WarehouseConfig{
			Driver:          "duckdb",
			DSN:             "",
			MaxOpenConns:    4,
			MaxIdleConns:    4,
			ConnMaxIdleTime: 5 * time.Minute,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Dictionary: DictionaryConfig{
			Source: "none",
			Column: "ELEMENT_NUMBER",
		},
		ObjectStore: ObjectStoreConfig{
			Endpoint:         "localhost:9000",
			Region:           "us-east-1",
			Bucket:           "semforge",
			AccessKeyID:      "minio",
			SecretAccessKey:  "miniostorage",
			UseSSL:           false,
			Prefix:           "",
			AutoCreateBucket: true,
			UploadEnabled:    true,
		},
		Analyst: AnalystConfig{
			Enabled:     false,
			AccountURL:  "",
			TokenType:   "PROGRAMMATIC_ACCESS_TOKEN",
			MessagePath: "/api/v2/cortex/analyst/message",
			Timeout:     30 * time.Second,
		},
		Retention: RetentionConfig{
			Enabled:    true,
			KeepLatest: 20,
			MaxAge:     30 * 24 * time.Hour,
			Interval:   time.Hour,
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  true,
		},
		Auth: AuthConfig{
			Required:   false,
			StaticKeys: "",
		},
	}

	switch profile {
	case ProfileTest:
		cfg.HTTP.Address = ":18080"
		cfg.Observability.LogLevel = slog.LevelWarn
		cfg.Auth.Required = false
		cfg.Retention.Enabled = false
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.Auth.Required = true
		cfg.Warehouse.Driver = "snowflake"
		cfg.ObjectStore.UseSSL = true
		cfg.ObjectStore.AutoCreateBucket = false
	}

	return cfg
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyLogLevel(lookup LookupFunc, key string, dst *slog.Level) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	level := strings.ToLower(strings.TrimSpace(raw))
	switch level {
	case "debug":
		*dst = slog.LevelDebug
	case "info":
		*dst = slog.LevelInfo
	case "warn", "warning":
		*dst = slog.LevelWarn
	case "error":
		*dst = slog.LevelError
	default:
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
	return nil
}
