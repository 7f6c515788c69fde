package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoadDefaultsForDevProfile(t *testing.T) {
	lookup := mapLookup(map[string]string{})
	cfg, err := Load("semforge-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileDev {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileDev)
	}
	if cfg.HTTP.Address != ":8080" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.Observability.LogLevel != slog.LevelDebug {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if cfg.Auth.Required {
		t.Fatal("Auth.Required should default to false in dev")
	}
	if cfg.Library.BasePath != "base.yaml" || cfg.Library.FactsPath != "facts.yaml" {
		t.Fatalf("Library = %+v", cfg.Library)
	}
	if cfg.Model.MaxFacts != 50 {
		t.Fatalf("Model.MaxFacts = %d", cfg.Model.MaxFacts)
	}
	if cfg.Model.MaxBytes != 128*1024 {
		t.Fatalf("Model.MaxBytes = %d", cfg.Model.MaxBytes)
	}
	if cfg.Model.FilenameBase != "semantic_model" {
		t.Fatalf("Model.FilenameBase = %q", cfg.Model.FilenameBase)
	}
	if cfg.Warehouse.Driver != "duckdb" {
		t.Fatalf("Warehouse.Driver = %q", cfg.Warehouse.Driver)
	}
	if cfg.ObjectStore.Endpoint != "localhost:9000" {
		t.Fatalf("ObjectStore.Endpoint = %q", cfg.ObjectStore.Endpoint)
	}
	if cfg.Analyst.Enabled {
		t.Fatal("Analyst.Enabled should default to false")
	}
	if cfg.Analyst.TokenType != "PROGRAMMATIC_ACCESS_TOKEN" {
		t.Fatalf("Analyst.TokenType = %q", cfg.Analyst.TokenType)
	}
	if cfg.Retention.KeepLatest != 20 {
		t.Fatalf("Retention.KeepLatest = %d", cfg.Retention.KeepLatest)
	}
}

func TestLoadProdProfileDefaults(t *testing.T) {
	lookup := mapLookup(map[string]string{"SEMFORGE_PROFILE": "prod"})
	cfg, err := Load("semforge-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileProd {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileProd)
	}
	if !cfg.Auth.Required {
		t.Fatal("Auth.Required should default to true in prod")
	}
	if cfg.Warehouse.Driver != "snowflake" {
		t.Fatalf("Warehouse.Driver = %q", cfg.Warehouse.Driver)
	}
	if !cfg.ObjectStore.UseSSL {
		t.Fatal("ObjectStore.UseSSL should default to true in prod")
	}
	if cfg.ObjectStore.AutoCreateBucket {
		t.Fatal("ObjectStore.AutoCreateBucket should default to false in prod")
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	lookup := mapLookup(map[string]string{
		"SEMFORGE_PROFILE":                  "test",
		"SEMFORGE_HTTP_ADDR":                ":9999",
		"SEMFORGE_HTTP_READ_TIMEOUT":        "2s",
		"SEMFORGE_LOG_LEVEL":                "error",
		"SEMFORGE_AUTH_REQUIRED":            "true",
		"SEMFORGE_AUTH_STATIC_KEYS":         "k1:ws1:model_reader",
		"SEMFORGE_SERVICE_NAME":             "semforge-custom",
		"SEMFORGE_LIBRARY_BASE_PATH":        "/etc/semforge/base.yaml",
		"SEMFORGE_LIBRARY_FACTS_PATH":       "/etc/semforge/facts.yaml",
		"SEMFORGE_MODEL_MAX_FACTS":          "12",
		"SEMFORGE_MODEL_MAX_BYTES":          "4096",
		"SEMFORGE_MODEL_FILENAME_BASE":      "mortgage_model",
		"SEMFORGE_WAREHOUSE_DRIVER":         "snowflake",
		"SEMFORGE_WAREHOUSE_DSN":            "user:pass@acct/db/schema?warehouse=COMPUTE_WH",
		"SEMFORGE_WAREHOUSE_MAX_OPEN_CONNS": "9",
		"SEMFORGE_OBJECTSTORE_ENDPOINT":     "s3.example.com",
		"SEMFORGE_OBJECTSTORE_BUCKET":       "semforge-prod",
		"SEMFORGE_OBJECTSTORE_PREFIX":       "stage",
		"SEMFORGE_ANALYST_ENABLED":          "true",
		"SEMFORGE_ANALYST_ACCOUNT_URL":      "https://acct.snowflakecomputing.com",
		"SEMFORGE_ANALYST_TOKEN":            "pat-token",
		"SEMFORGE_ANALYST_TIMEOUT":          "45s",
		"SEMFORGE_RETENTION_KEEP_LATEST":    "5",
		"SEMFORGE_RETENTION_MAX_AGE":        "72h",
	})

	cfg, err := Load("semforge-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Service.Name != "semforge-custom" {
		t.Fatalf("Service.Name = %q", cfg.Service.Name)
	}
	if cfg.HTTP.Address != ":9999" || cfg.HTTP.ReadTimeout != 2*time.Second {
		t.Fatalf("HTTP = %+v", cfg.HTTP)
	}
	if cfg.Model.MaxFacts != 12 || cfg.Model.MaxBytes != 4096 {
		t.Fatalf("Model = %+v", cfg.Model)
	}
	if cfg.Model.FilenameBase != "mortgage_model" {
		t.Fatalf("Model.FilenameBase = %q", cfg.Model.FilenameBase)
	}
	if cfg.Warehouse.Driver != "snowflake" || cfg.Warehouse.MaxOpenConns != 9 {
		t.Fatalf("Warehouse = %+v", cfg.Warehouse)
	}
	if !cfg.Analyst.Enabled || cfg.Analyst.Timeout != 45*time.Second {
		t.Fatalf("Analyst = %+v", cfg.Analyst)
	}
	if cfg.Retention.KeepLatest != 5 || cfg.Retention.MaxAge != 72*time.Hour {
		t.Fatalf("Retention = %+v", cfg.Retention)
	}
	if cfg.Observability.LogLevel != slog.LevelError {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]map[string]string{
		"profile":  {"SEMFORGE_PROFILE": "staging"},
		"duration": {"SEMFORGE_HTTP_READ_TIMEOUT": "soon"},
		"int":      {"SEMFORGE_MODEL_MAX_FACTS": "many"},
		"bool":     {"SEMFORGE_AUTH_REQUIRED": "yep"},
		"loglevel": {"SEMFORGE_LOG_LEVEL": "loud"},
	}
	for name, env := range cases {
		if _, err := Load("semforge-api", mapLookup(env)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestLoadRequiresAnalystSettingsWhenEnabled(t *testing.T) {
	_, err := Load("semforge-api", mapLookup(map[string]string{
		"SEMFORGE_ANALYST_ENABLED": "true",
	}))
	if err == nil {
		t.Fatal("expected error for enabled analyst without account URL")
	}

	_, err = Load("semforge-api", mapLookup(map[string]string{
		"SEMFORGE_ANALYST_ENABLED":     "true",
		"SEMFORGE_ANALYST_ACCOUNT_URL": "https://acct.snowflakecomputing.com",
	}))
	if err == nil {
		t.Fatal("expected error for enabled analyst without token")
	}
}

func TestLoadDictionarySourceValidation(t *testing.T) {
	cfg, err := Load("semforge-api", mapLookup(map[string]string{
		"SEMFORGE_DICTIONARY_SOURCE": "sql",
		"SEMFORGE_DICTIONARY_QUERY":  "SELECT element_number FROM dictionary",
	}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Dictionary.Column != "ELEMENT_NUMBER" {
		t.Fatalf("Dictionary.Column = %q", cfg.Dictionary.Column)
	}

	cases := map[string]map[string]string{
		"unknown source":       {"SEMFORGE_DICTIONARY_SOURCE": "csv"},
		"sql without query":    {"SEMFORGE_DICTIONARY_SOURCE": "sql"},
		"parquet without path": {"SEMFORGE_DICTIONARY_SOURCE": "parquet"},
		"object without key":   {"SEMFORGE_DICTIONARY_SOURCE": "object"},
	}
	for name, env := range cases {
		if _, err := Load("semforge-api", mapLookup(env)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func mapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}
