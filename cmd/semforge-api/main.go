package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/semforge/semforge/internal/analyst"
	"github.com/semforge/semforge/internal/api"
	"github.com/semforge/semforge/internal/auth"
	"github.com/semforge/semforge/internal/config"
	"github.com/semforge/semforge/internal/dictionary"
	"github.com/semforge/semforge/internal/facts"
	"github.com/semforge/semforge/internal/generator"
	"github.com/semforge/semforge/internal/maintenance"
	"github.com/semforge/semforge/internal/observability"
	"github.com/semforge/semforge/internal/semantic"
	"github.com/semforge/semforge/internal/storage"
	s3store "github.com/semforge/semforge/internal/storage/s3"
)

func main() {
	cfg, err := config.LoadFromEnv("semforge-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)

	base, err := semantic.LoadModelFile(cfg.Library.BasePath)
	if err != nil {
		logger.Error("failed to load base model", slog.Any("error", err))
		os.Exit(1)
	}
	library, err := facts.LoadLibrary(cfg.Library.FactsPath)
	if err != nil {
		logger.Error("failed to load fact library", slog.Any("error", err))
		os.Exit(1)
	}

	var objectStore storage.ObjectStore
	if cfg.ObjectStore.UploadEnabled || cfg.Dictionary.Source == "object" {
		store, err := s3store.New(context.Background(), s3store.Config{
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
			os.Exit(1)
		}
		objectStore = store
	}

	var warehouseDB *sql.DB
	if cfg.Dictionary.Source == "sql" || cfg.Warehouse.DSN != "" {
		db, err := dictionary.Open(context.Background(), dictionary.DBConfig{
			Driver:          cfg.Warehouse.Driver,
			DSN:             cfg.Warehouse.DSN,
			MaxOpenConns:    cfg.Warehouse.MaxOpenConns,
			MaxIdleConns:    cfg.Warehouse.MaxIdleConns,
			ConnMaxIdleTime: cfg.Warehouse.ConnMaxIdleTime,
			ConnMaxLifetime: cfg.Warehouse.ConnMaxLifetime,
		})
		if err != nil {
			logger.Error("failed to open warehouse db", slog.Any("error", err))
			os.Exit(1)
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

	var analystClient analyst.Analyst
	if cfg.Analyst.Enabled {
		client, err := analyst.NewClient(analyst.ClientConfig{
			AccountURL:  cfg.Analyst.AccountURL,
			Token:       cfg.Analyst.Token,
			TokenType:   cfg.Analyst.TokenType,
			MessagePath: cfg.Analyst.MessagePath,
			Timeout:     cfg.Analyst.Timeout,
		})
		if err != nil {
			logger.Error("failed to initialize analyst client", slog.Any("error", err))
			os.Exit(1)
		}
		analystClient = client
	}

	generatorService, err := generator.NewService(generator.Config{
		Library:          library,
		Base:             base,
		Store:            objectStore,
		Analyst:          analystClient,
		Source:           source,
		DB:               warehouseDB,
		DictionaryColumn: cfg.Dictionary.Column,
		Budget: semantic.Budget{
			MaxFacts: cfg.Model.MaxFacts,
			MaxBytes: cfg.Model.MaxBytes,
		},
		FilenameBase:  cfg.Model.FilenameBase,
		UploadEnabled: cfg.ObjectStore.UploadEnabled,
		Logger:        logger,
	})
	if err != nil {
		logger.Error("failed to initialize generator", slog.Any("error", err))
		os.Exit(1)
	}

	retentionService := &maintenance.Service{
		Store: objectStore,
		Config: maintenance.Config{
			KeepLatest: cfg.Retention.KeepLatest,
			MaxAge:     cfg.Retention.MaxAge,
			Interval:   cfg.Retention.Interval,
		},
		Logger: logger,
	}

	deps := api.Dependencies{
		Logger:    logger,
		Generator: generatorService,
		Readiness: api.CombineReadinessChecks(
			api.CheckLibraryConfig(cfg),
			api.CheckObjectStoreConfig(cfg),
		),
		DependencyTimout: time.Second,
	}
	if objectStore != nil {
		deps.Retention = retentionService
	}
	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Retention.Enabled && objectStore != nil {
		go func() {
			logger.Info("starting retention worker")
			if err := retentionService.Run(ctx); err != nil {
				logger.Error("retention worker failed", slog.Any("error", err))
			}
		}()
	}

	go func() {
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}
