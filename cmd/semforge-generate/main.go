package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/semforge/semforge/internal/config"
	"github.com/semforge/semforge/internal/dictionary"
	"github.com/semforge/semforge/internal/facts"
	"github.com/semforge/semforge/internal/generator"
	"github.com/semforge/semforge/internal/observability"
	"github.com/semforge/semforge/internal/semantic"
	"github.com/semforge/semforge/internal/storage"
	s3store "github.com/semforge/semforge/internal/storage/s3"
)

// semforge-generate builds one semantic model and exits: selection from
// -facts, a -query against the data dictionary, the configured dictionary
// source, or the whole library.
func main() {
	os.Exit(run())
}

func run() int {
	fs := flag.NewFlagSet("semforge-generate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	basePath := fs.String("base", "", "Base model path (defaults to SEMFORGE_LIBRARY_BASE_PATH)")
	factsPath := fs.String("library", "", "Fact library path (defaults to SEMFORGE_LIBRARY_FACTS_PATH)")
	factNames := fs.String("facts", "", "Comma-separated fact names (empty uses the data dictionary, 'all' selects every fact)")
	query := fs.String("query", "", "Data-dictionary query selecting fact names (overrides the configured dictionary source)")
	output := fs.String("output", "", "Write the model to this file instead of stdout")
	upload := fs.Bool("upload", false, "Upload the generated model to the stage")
	workspace := fs.String("workspace", "default", "Workspace for the staged object key")
	name := fs.String("name", "", "Filename base for the staged model")

	if err := fs.Parse(os.Args[1:]); err != nil {
		return 2
	}

	cfg, err := config.LoadFromEnv("semforge-generate")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		return 1
	}
	logger := observability.NewLogger(cfg, os.Stderr)

	if *basePath == "" {
		*basePath = cfg.Library.BasePath
	}
	if *factsPath == "" {
		*factsPath = cfg.Library.FactsPath
	}

	base, err := semantic.LoadModelFile(*basePath)
	if err != nil {
		logger.Error("failed to load base model", slog.Any("error", err))
		return 1
	}
	library, err := facts.LoadLibrary(*factsPath)
	if err != nil {
		logger.Error("failed to load fact library", slog.Any("error", err))
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	var objectStore storage.ObjectStore
	if *upload || cfg.Dictionary.Source == "object" {
		store, err := s3store.New(ctx, s3store.Config{
			Endpoint:         cfg.ObjectStore.Endpoint,
			Region:           cfg.ObjectStore.Region,
			Bucket:           cfg.ObjectStore.Bucket,
			AccessKeyID:      cfg.ObjectStore.AccessKeyID,
			SecretAccessKey:  cfg.ObjectStore.SecretAccessKey,
			UseSSL:           cfg.ObjectStore.UseSSL,
			Prefix:           cfg.ObjectStore.Prefix,
			AutoCreateBucket: cfg.ObjectStore.AutoCreateBucket,
		})
		if err != nil {
			logger.Error("failed to initialize object store", slog.Any("error", err))
			return 1
		}
		objectStore = store
	}

	var warehouseDB *sql.DB
	if *query != "" || cfg.Dictionary.Source == "sql" {
		db, err := dictionary.Open(ctx, dictionary.DBConfig{
			Driver:          cfg.Warehouse.Driver,
			DSN:             cfg.Warehouse.DSN,
			MaxOpenConns:    cfg.Warehouse.MaxOpenConns,
			MaxIdleConns:    cfg.Warehouse.MaxIdleConns,
			ConnMaxIdleTime: cfg.Warehouse.ConnMaxIdleTime,
			ConnMaxLifetime: cfg.Warehouse.ConnMaxLifetime,
		})
		if err != nil {
			logger.Error("failed to open warehouse db", slog.Any("error", err))
			return 1
		}
		defer func() { _ = db.Close() }()
		warehouseDB = db
	}

	var source dictionary.Source
	switch cfg.Dictionary.Source {
	case "sql":
		source = &dictionary.SQLSource{
			DB:     warehouseDB,
			Query:  cfg.Dictionary.Query,
			Column: cfg.Dictionary.Column,
			Logger: logger,
		}
	case "parquet":
		source = &dictionary.FileSource{Path: cfg.Dictionary.Path}
	case "object":
		source = &dictionary.ObjectSource{Store: objectStore, Key: cfg.Dictionary.ObjectKey}
	}

	svc, err := generator.NewService(generator.Config{
		Library:          library,
		Base:             base,
		Store:            objectStore,
		Source:           source,
		DB:               warehouseDB,
		DictionaryColumn: cfg.Dictionary.Column,
		Budget: semantic.Budget{
			MaxFacts: cfg.Model.MaxFacts,
			MaxBytes: cfg.Model.MaxBytes,
		},
		FilenameBase:  cfg.Model.FilenameBase,
		UploadEnabled: *upload,
		Logger:        logger,
	})
	if err != nil {
		logger.Error("failed to initialize generator", slog.Any("error", err))
		return 1
	}

	names := splitNames(*factNames)
	if strings.EqualFold(strings.TrimSpace(*factNames), "all") {
		names = svc.FactNames()
	}

	result, err := svc.Generate(ctx, generator.GenerateInput{
		Workspace:       *workspace,
		FactNames:       names,
		DictionaryQuery: *query,
		Upload:          *upload,
		FilenameBase:    *name,
	})
	if err != nil {
		logger.Error("model generation failed", slog.Any("error", err))
		return 1
	}

	if *output != "" {
		if err := os.WriteFile(*output, result.YAML, 0o644); err != nil {
			logger.Error("failed to write model file", slog.Any("error", err))
			return 1
		}
	} else {
		_, _ = os.Stdout.Write(result.YAML)
	}

	if len(result.Missing) > 0 {
		_, _ = fmt.Fprintf(os.Stderr, "warning: %d fact name(s) missing from library: %s\n",
			len(result.Missing), strings.Join(result.Missing, ", "))
	}
	if result.Uploaded {
		_, _ = fmt.Fprintf(os.Stderr, "uploaded %s\n", result.ObjectKey)
	}
	return 0
}

func splitNames(raw string) []string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || strings.EqualFold(trimmed, "all") {
		return nil
	}
	parts := strings.Split(trimmed, ",")
	names := make([]string, 0, len(parts))
	for _, part := range parts {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}
	return names
}
