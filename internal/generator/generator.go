package generator

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/semforge/semforge/internal/analyst"
	"github.com/semforge/semforge/internal/dictionary"
	"github.com/semforge/semforge/internal/facts"
	"github.com/semforge/semforge/internal/observability"
	"github.com/semforge/semforge/internal/semantic"
	"github.com/semforge/semforge/internal/storage"
)

var (
	ErrNoFactNames          = errors.New("generator: no fact names provided and no dictionary source configured")
	ErrUploadUnavailable    = errors.New("generator: no object store configured for upload")
	ErrAnalystDisabled      = errors.New("generator: analyst client is not configured")
	ErrWarehouseUnavailable = errors.New("generator: no warehouse configured for dictionary queries")
)

type Config struct {
	Library *facts.Library
	Base    semantic.Model
	Store   storage.ObjectStore
	Analyst analyst.Analyst
	// Source supplies fact names when a request carries neither an
	// explicit selection nor its own dictionary query.
	Source           dictionary.Source
	DB               *sql.DB
	DictionaryColumn string
	Budget           semantic.Budget
	FilenameBase     string
	UploadEnabled    bool
	Logger           *slog.Logger
	Clock            func() time.Time
}

// Service assembles semantic models: it resolves fact names against the
// library, merges the selection into the base template, serializes the
// result, and optionally stages it or forwards it to the analyst.
type Service struct {
	library          *facts.Library
	base             semantic.Model
	store            storage.ObjectStore
	analyst          analyst.Analyst
	source           dictionary.Source
	db               *sql.DB
	dictionaryColumn string
	budget           semantic.Budget
	filenameBase     string
	uploadEnabled    bool
	logger           *slog.Logger
	clock            func() time.Time
}

func NewService(cfg Config) (*Service, error) {
	if cfg.Library == nil {
		return nil, fmt.Errorf("generator: fact library is required")
	}
	if len(cfg.Base.Tables) == 0 {
		return nil, fmt.Errorf("generator: base model must declare at least one table")
	}
	filenameBase := strings.TrimSpace(cfg.FilenameBase)
	if filenameBase == "" {
		filenameBase = "semantic_model"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		library:          cfg.Library,
		base:             cfg.Base.Clone(),
		store:            cfg.Store,
		analyst:          cfg.Analyst,
		source:           cfg.Source,
		db:               cfg.DB,
		dictionaryColumn: cfg.DictionaryColumn,
		budget:           cfg.Budget,
		filenameBase:     filenameBase,
		uploadEnabled:    cfg.UploadEnabled,
		logger:           logger,
		clock:            clock,
	}, nil
}

type GenerateInput struct {
	Workspace string
	// FactNames selects facts explicitly. When empty the names come
	// from DictionaryQuery, DictionaryObjectKey, or the configured
	// default source, in that order.
	FactNames           []string
	DictionaryQuery     string
	DictionaryObjectKey string
	Upload              bool
	FilenameBase        string
}

type GenerateResult struct {
	Model     semantic.Model
	YAML      []byte
	Selected  int
	Missing   []string
	Uploaded  bool
	ObjectKey string
	Info      storage.ObjectInfo
}

func (s *Service) Generate(ctx context.Context, input GenerateInput) (GenerateResult, error) {
	names, err := s.resolveNames(ctx, input)
	if err != nil {
		observability.ObserveModelGenerated("error", 0, 0, 0)
		return GenerateResult{}, err
	}

	selected, missing := s.library.Lookup(names)
	if len(missing) > 0 {
		s.logger.WarnContext(ctx, "requested facts missing from library",
			slog.Int("missing", len(missing)),
			slog.Any("names", missing),
		)
	}
	if len(selected) == 0 {
		s.logger.WarnContext(ctx, "no facts selected, merged model carries no facts",
			slog.Int("requested", len(names)),
		)
	}

	model, err := semantic.Merge(s.base, selected)
	if err != nil {
		observability.ObserveModelGenerated("error", len(selected), len(missing), 0)
		return GenerateResult{}, fmt.Errorf("merge facts into base model: %w", err)
	}

	encoded, err := semantic.EncodeYAML(model)
	if err != nil {
		observability.ObserveModelGenerated("error", len(selected), len(missing), 0)
		return GenerateResult{}, err
	}
	if err := s.budget.Check(encoded, len(selected)); err != nil {
		observability.ObserveModelGenerated("rejected", len(selected), len(missing), len(encoded))
		return GenerateResult{}, err
	}
	observability.ObserveModelGenerated("ok", len(selected), len(missing), len(encoded))

	result := GenerateResult{
		Model:    model,
		YAML:     encoded,
		Selected: len(selected),
		Missing:  missing,
	}

	if input.Upload && s.uploadEnabled {
		info, key, err := s.upload(ctx, input, encoded)
		if err != nil {
			return GenerateResult{}, err
		}
		result.Uploaded = true
		result.ObjectKey = key
		result.Info = info
	}

	s.logger.InfoContext(ctx, "semantic model generated",
		slog.String("workspace", input.Workspace),
		slog.Int("facts_selected", result.Selected),
		slog.Int("facts_missing", len(result.Missing)),
		slog.Int("bytes", len(encoded)),
		slog.Bool("uploaded", result.Uploaded),
	)
	return result, nil
}

func (s *Service) resolveNames(ctx context.Context, input GenerateInput) ([]string, error) {
	if len(input.FactNames) > 0 {
		return input.FactNames, nil
	}

	var source dictionary.Source
	switch {
	case strings.TrimSpace(input.DictionaryQuery) != "":
		if s.db == nil {
			return nil, ErrWarehouseUnavailable
		}
		source = &dictionary.SQLSource{
			DB:     s.db,
			Query:  input.DictionaryQuery,
			Column: s.dictionaryColumn,
			Logger: s.logger,
		}
	case strings.TrimSpace(input.DictionaryObjectKey) != "":
		if s.store == nil {
			return nil, fmt.Errorf("generator: no object store configured for dictionary objects")
		}
		source = &dictionary.ObjectSource{Store: s.store, Key: input.DictionaryObjectKey}
	case s.source != nil:
		source = s.source
	default:
		return nil, ErrNoFactNames
	}

	names, err := source.FactNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve fact names from dictionary: %w", err)
	}
	return names, nil
}

func (s *Service) upload(ctx context.Context, input GenerateInput, encoded []byte) (storage.ObjectInfo, string, error) {
	if s.store == nil {
		observability.ObserveModelUpload("error")
		return storage.ObjectInfo{}, "", ErrUploadUnavailable
	}
	filenameBase := strings.TrimSpace(input.FilenameBase)
	if filenameBase == "" {
		filenameBase = s.filenameBase
	}
	key, err := storage.BuildModelPath(input.Workspace, filenameBase, s.clock().UTC())
	if err != nil {
		observability.ObserveModelUpload("error")
		return storage.ObjectInfo{}, "", err
	}
	info, err := s.store.Put(ctx, key, bytes.NewReader(encoded), int64(len(encoded)), storage.PutOptions{
		ContentType: "application/yaml",
	})
	if err != nil {
		observability.ObserveModelUpload("error")
		return storage.ObjectInfo{}, "", fmt.Errorf("upload model %q: %w", key, err)
	}
	observability.ObserveModelUpload("ok")
	return info, key, nil
}

type AskInput struct {
	Question string
	Generate GenerateInput
}

type AskResult struct {
	Generate GenerateResult
	Response analyst.Response
}

// Ask generates a model for the selection and sends the question plus
// the serialized model to the analyst in one round trip.
func (s *Service) Ask(ctx context.Context, input AskInput) (AskResult, error) {
	if s.analyst == nil {
		return AskResult{}, ErrAnalystDisabled
	}
	if strings.TrimSpace(input.Question) == "" {
		return AskResult{}, fmt.Errorf("generator: question is required")
	}

	// Asking a question never stages the model.
	input.Generate.Upload = false
	generated, err := s.Generate(ctx, input.Generate)
	if err != nil {
		return AskResult{}, err
	}

	started := s.clock()
	response, err := s.analyst.Ask(ctx, analyst.Request{
		Question:      input.Question,
		SemanticModel: string(generated.YAML),
	})
	elapsed := s.clock().Sub(started)
	if err != nil {
		observability.ObserveAnalystRequest("error", elapsed)
		return AskResult{}, fmt.Errorf("analyst request: %w", err)
	}
	observability.ObserveAnalystRequest("ok", elapsed)

	s.logger.InfoContext(ctx, "analyst question answered",
		slog.String("workspace", input.Generate.Workspace),
		slog.String("request_id", response.RequestID),
		slog.Int("warnings", len(response.Warnings)),
	)
	return AskResult{Generate: generated, Response: response}, nil
}

// FactNames lists every fact the library defines, for discovery by
// clients building explicit selections.
func (s *Service) FactNames() []string {
	return s.library.Names()
}
