package generator

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/semforge/semforge/internal/analyst"
	"github.com/semforge/semforge/internal/facts"
	"github.com/semforge/semforge/internal/semantic"
	"github.com/semforge/semforge/internal/storage"
)

const baseYAML = `name: lending_book
description: Loan origination reporting model.
tables:
  - name: LOANS
    base_table:
      database: ANALYTICS
      schema: LENDING
      table: LOANS
    facts:
      - name: PLACEHOLDER
        expr: placeholder
`

const libraryYAML = `facts:
  - name: LOAN_AMOUNT
    expr: loan_amount
    data_type: NUMBER
  - name: INCOME
    expr: income
    data_type: NUMBER
  - name: MORTGAGERESPONSE
    expr: mortgageresponse
    data_type: NUMBER
`

type fakeStore struct {
	putKey  string
	putBody []byte
	putErr  error
}

func (f *fakeStore) Put(_ context.Context, key string, body io.Reader, size int64, _ storage.PutOptions) (storage.ObjectInfo, error) {
	if f.putErr != nil {
		return storage.ObjectInfo{}, f.putErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	f.putKey = key
	f.putBody = data
	return storage.ObjectInfo{Key: key, Size: size}, nil
}

func (f *fakeStore) Get(context.Context, string) (io.ReadCloser, error) {
	return nil, storage.ErrObjectNotFound
}

func (f *fakeStore) Stat(context.Context, string) (storage.ObjectInfo, error) {
	return storage.ObjectInfo{}, storage.ErrObjectNotFound
}

func (f *fakeStore) Delete(context.Context, string) error { return nil }

func (f *fakeStore) List(context.Context, string) ([]storage.ObjectInfo, error) { return nil, nil }

type fakeAnalyst struct {
	lastRequest analyst.Request
	response    analyst.Response
	err         error
}

func (f *fakeAnalyst) Ask(_ context.Context, req analyst.Request) (analyst.Response, error) {
	f.lastRequest = req
	if f.err != nil {
		return analyst.Response{}, f.err
	}
	return f.response, nil
}

type fakeSource struct {
	names []string
	err   error
}

func (f *fakeSource) FactNames(context.Context) ([]string, error) {
	return f.names, f.err
}

func newTestService(t *testing.T, mutate func(*Config)) *Service {
	t.Helper()
	library, err := facts.ParseLibrary([]byte(libraryYAML))
	if err != nil {
		t.Fatalf("ParseLibrary() error = %v", err)
	}
	base, err := semantic.ParseModel([]byte(baseYAML))
	if err != nil {
		t.Fatalf("ParseModel() error = %v", err)
	}
	cfg := Config{
		Library: library,
		Base:    base,
		Logger:  slog.New(slog.NewJSONHandler(io.Discard, nil)),
		Clock:   func() time.Time { return time.Date(2026, time.March, 2, 10, 30, 0, 0, time.UTC) },
	}
	if mutate != nil {
		mutate(&cfg)
	}
	svc, err := NewService(cfg)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return svc
}

func TestGenerateReplacesBaseFacts(t *testing.T) {
	svc := newTestService(t, nil)

	result, err := svc.Generate(context.Background(), GenerateInput{
		Workspace: "ws1",
		FactNames: []string{"LOAN_AMOUNT", "INCOME", "UNKNOWN"},
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if result.Selected != 2 {
		t.Fatalf("Selected = %d, want 2", result.Selected)
	}
	if len(result.Missing) != 1 || result.Missing[0] != "UNKNOWN" {
		t.Fatalf("Missing = %v", result.Missing)
	}
	gotFacts := result.Model.Tables[0].Facts
	if len(gotFacts) != 2 || gotFacts[0].Name != "LOAN_AMOUNT" || gotFacts[1].Name != "INCOME" {
		t.Fatalf("merged facts = %#v", gotFacts)
	}
	if bytes.Contains(result.YAML, []byte("PLACEHOLDER")) {
		t.Fatal("base placeholder fact leaked into encoded model")
	}
}

func TestGenerateResolvesNamesFromSource(t *testing.T) {
	source := &fakeSource{names: []string{"MORTGAGERESPONSE"}}
	svc := newTestService(t, func(cfg *Config) { cfg.Source = source })

	result, err := svc.Generate(context.Background(), GenerateInput{Workspace: "ws1"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if result.Selected != 1 || result.Model.Tables[0].Facts[0].Name != "MORTGAGERESPONSE" {
		t.Fatalf("facts = %#v", result.Model.Tables[0].Facts)
	}
}

func TestGenerateResolvesNamesFromDictionaryQuery(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("SELECT ELEMENT_NUMBER").WillReturnRows(
		sqlmock.NewRows([]string{"ELEMENT_NUMBER"}).
			AddRow("LOAN_AMOUNT").
			AddRow("INCOME"),
	)

	svc := newTestService(t, func(cfg *Config) {
		cfg.DB = db
		cfg.DictionaryColumn = "ELEMENT_NUMBER"
	})

	result, err := svc.Generate(context.Background(), GenerateInput{
		Workspace:       "ws1",
		DictionaryQuery: "SELECT ELEMENT_NUMBER FROM data_dictionary",
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if result.Selected != 2 {
		t.Fatalf("Selected = %d, want 2", result.Selected)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGenerateDictionaryQueryWithoutWarehouse(t *testing.T) {
	svc := newTestService(t, nil)
	_, err := svc.Generate(context.Background(), GenerateInput{
		Workspace:       "ws1",
		DictionaryQuery: "SELECT ELEMENT_NUMBER FROM data_dictionary",
	})
	if !errors.Is(err, ErrWarehouseUnavailable) {
		t.Fatalf("err = %v, want ErrWarehouseUnavailable", err)
	}
}

func TestGenerateDictionaryObjectWithoutStore(t *testing.T) {
	svc := newTestService(t, nil)
	_, err := svc.Generate(context.Background(), GenerateInput{
		Workspace:           "ws1",
		DictionaryObjectKey: "ws1/dictionary/dict.parquet",
	})
	if err == nil || !strings.Contains(err.Error(), "object store") {
		t.Fatalf("err = %v", err)
	}
}

func TestGenerateExplicitNamesWinOverDictionary(t *testing.T) {
	source := &fakeSource{names: []string{"MORTGAGERESPONSE"}}
	svc := newTestService(t, func(cfg *Config) { cfg.Source = source })

	result, err := svc.Generate(context.Background(), GenerateInput{
		Workspace:       "ws1",
		FactNames:       []string{"LOAN_AMOUNT"},
		DictionaryQuery: "SELECT ELEMENT_NUMBER FROM data_dictionary",
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if result.Selected != 1 || result.Model.Tables[0].Facts[0].Name != "LOAN_AMOUNT" {
		t.Fatalf("facts = %#v", result.Model.Tables[0].Facts)
	}
}

func TestGenerateWithoutNamesOrSource(t *testing.T) {
	svc := newTestService(t, nil)
	_, err := svc.Generate(context.Background(), GenerateInput{Workspace: "ws1"})
	if !errors.Is(err, ErrNoFactNames) {
		t.Fatalf("err = %v, want ErrNoFactNames", err)
	}
}

func TestGenerateEnforcesBudget(t *testing.T) {
	svc := newTestService(t, func(cfg *Config) {
		cfg.Budget = semantic.Budget{MaxFacts: 1}
	})
	_, err := svc.Generate(context.Background(), GenerateInput{
		Workspace: "ws1",
		FactNames: []string{"LOAN_AMOUNT", "INCOME"},
	})
	if !errors.Is(err, semantic.ErrModelTooLarge) {
		t.Fatalf("err = %v, want ErrModelTooLarge", err)
	}
}

func TestGenerateUploadsTimestampedObject(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(t, func(cfg *Config) {
		cfg.Store = store
		cfg.UploadEnabled = true
		cfg.FilenameBase = "lending_model"
	})

	result, err := svc.Generate(context.Background(), GenerateInput{
		Workspace: "ws1",
		FactNames: []string{"LOAN_AMOUNT"},
		Upload:    true,
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if !result.Uploaded {
		t.Fatal("expected upload")
	}
	want := "ws1/models/lending_model_20260302_103000.yaml"
	if result.ObjectKey != want {
		t.Fatalf("ObjectKey = %q, want %q", result.ObjectKey, want)
	}
	if store.putKey != want {
		t.Fatalf("store key = %q", store.putKey)
	}
	if !bytes.Equal(store.putBody, result.YAML) {
		t.Fatal("uploaded body differs from encoded model")
	}
}

func TestGenerateUploadWithoutStore(t *testing.T) {
	svc := newTestService(t, func(cfg *Config) { cfg.UploadEnabled = true })
	_, err := svc.Generate(context.Background(), GenerateInput{
		Workspace: "ws1",
		FactNames: []string{"LOAN_AMOUNT"},
		Upload:    true,
	})
	if !errors.Is(err, ErrUploadUnavailable) {
		t.Fatalf("err = %v, want ErrUploadUnavailable", err)
	}
}

func TestGenerateSkipsUploadWhenDisabled(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(t, func(cfg *Config) { cfg.Store = store })

	result, err := svc.Generate(context.Background(), GenerateInput{
		Workspace: "ws1",
		FactNames: []string{"LOAN_AMOUNT"},
		Upload:    true,
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if result.Uploaded || store.putKey != "" {
		t.Fatal("upload should be skipped while disabled")
	}
}

func TestAskSendsGeneratedModel(t *testing.T) {
	client := &fakeAnalyst{response: analyst.Response{
		Message: analyst.Message{
			Role: "analyst",
			Content: []analyst.ContentItem{
				{Type: analyst.ContentTypeSQL, Statement: "SELECT 1"},
			},
		},
		RequestID: "req-7",
	}}
	svc := newTestService(t, func(cfg *Config) { cfg.Analyst = client })

	result, err := svc.Ask(context.Background(), AskInput{
		Question: "What is the average loan amount?",
		Generate: GenerateInput{Workspace: "ws1", FactNames: []string{"LOAN_AMOUNT"}},
	})
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if client.lastRequest.Question != "What is the average loan amount?" {
		t.Fatalf("question = %q", client.lastRequest.Question)
	}
	if !strings.Contains(client.lastRequest.SemanticModel, "LOAN_AMOUNT") {
		t.Fatal("semantic model payload missing selected fact")
	}
	if sql, ok := result.Response.FirstSQL(); !ok || sql != "SELECT 1" {
		t.Fatalf("FirstSQL() = %q, %v", sql, ok)
	}
}

func TestAskNeverUploadsModel(t *testing.T) {
	store := &fakeStore{}
	client := &fakeAnalyst{response: analyst.Response{RequestID: "req-8"}}
	svc := newTestService(t, func(cfg *Config) {
		cfg.Store = store
		cfg.UploadEnabled = true
		cfg.Analyst = client
	})

	result, err := svc.Ask(context.Background(), AskInput{
		Question: "total loans?",
		Generate: GenerateInput{
			Workspace: "ws1",
			FactNames: []string{"LOAN_AMOUNT"},
			Upload:    true,
		},
	})
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if result.Generate.Uploaded || store.putKey != "" {
		t.Fatalf("ask staged an object: uploaded=%v key=%q", result.Generate.Uploaded, store.putKey)
	}
}

func TestAskWithoutAnalyst(t *testing.T) {
	svc := newTestService(t, nil)
	_, err := svc.Ask(context.Background(), AskInput{
		Question: "q",
		Generate: GenerateInput{FactNames: []string{"LOAN_AMOUNT"}},
	})
	if !errors.Is(err, ErrAnalystDisabled) {
		t.Fatalf("err = %v, want ErrAnalystDisabled", err)
	}
}

func TestAskSurfacesAnalystError(t *testing.T) {
	client := &fakeAnalyst{err: errors.New("boom")}
	svc := newTestService(t, func(cfg *Config) { cfg.Analyst = client })
	_, err := svc.Ask(context.Background(), AskInput{
		Question: "q",
		Generate: GenerateInput{FactNames: []string{"LOAN_AMOUNT"}},
	})
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("err = %v", err)
	}
}

func TestFactNames(t *testing.T) {
	svc := newTestService(t, nil)
	names := svc.FactNames()
	if len(names) != 3 || names[0] != "LOAN_AMOUNT" {
		t.Fatalf("FactNames() = %v", names)
	}
}
