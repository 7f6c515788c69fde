package seed

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"
	"gopkg.in/yaml.v3"

	"github.com/semforge/semforge/internal/semantic"
)

type Config struct {
	OutputDir          string
	BaseFilename       string
	FactsFilename      string
	DictionaryFilename string
	// DictionaryNames selects which library facts the sample
	// dictionary export references. Empty selects all of them.
	DictionaryNames []string
}

type Manifest struct {
	BasePath       string
	FactsPath      string
	DictionaryPath string
	FactCount      int
}

type dictionaryRow struct {
	ElementNumber string `parquet:"ELEMENT_NUMBER"`
	ElementName   string `parquet:"ELEMENT_NAME"`
}

// Write materializes a self-consistent sample workspace: a base model,
// a fact library, and a parquet data dictionary whose rows reference
// library facts by name.
func Write(cfg Config) (Manifest, error) {
	if cfg.OutputDir == "" {
		return Manifest{}, fmt.Errorf("output directory is required")
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return Manifest{}, fmt.Errorf("create output directory: %w", err)
	}

	baseFilename := orDefault(cfg.BaseFilename, "base.yaml")
	factsFilename := orDefault(cfg.FactsFilename, "facts.yaml")
	dictionaryFilename := orDefault(cfg.DictionaryFilename, "data_dictionary.parquet")

	manifest := Manifest{
		BasePath:       filepath.Join(cfg.OutputDir, baseFilename),
		FactsPath:      filepath.Join(cfg.OutputDir, factsFilename),
		DictionaryPath: filepath.Join(cfg.OutputDir, dictionaryFilename),
	}

	base := SampleBaseModel()
	encodedBase, err := semantic.EncodeYAML(base)
	if err != nil {
		return Manifest{}, err
	}
	if err := os.WriteFile(manifest.BasePath, encodedBase, 0o644); err != nil {
		return Manifest{}, fmt.Errorf("write base model: %w", err)
	}

	library := SampleFacts()
	manifest.FactCount = len(library)
	encodedFacts, err := yaml.Marshal(map[string][]semantic.Fact{"facts": library})
	if err != nil {
		return Manifest{}, fmt.Errorf("encode fact library: %w", err)
	}
	if err := os.WriteFile(manifest.FactsPath, encodedFacts, 0o644); err != nil {
		return Manifest{}, fmt.Errorf("write fact library: %w", err)
	}

	names := cfg.DictionaryNames
	if len(names) == 0 {
		names = make([]string, len(library))
		for i, fact := range library {
			names[i] = fact.Name
		}
	}
	if err := writeDictionary(manifest.DictionaryPath, names); err != nil {
		return Manifest{}, err
	}

	return manifest, nil
}

func writeDictionary(path string, names []string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create dictionary file: %w", err)
	}
	defer func() { _ = file.Close() }()

	writer := parquet.NewGenericWriter[dictionaryRow](file)
	rows := make([]dictionaryRow, len(names))
	for i, name := range names {
		rows[i] = dictionaryRow{
			ElementNumber: name,
			ElementName:   name,
		}
	}
	if _, err := writer.Write(rows); err != nil {
		return fmt.Errorf("write dictionary rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close dictionary writer: %w", err)
	}
	return nil
}

// SampleBaseModel returns the lending template used by the quickstart.
func SampleBaseModel() semantic.Model {
	return semantic.Model{
		Name:        "lending_book",
		Description: "Loan origination reporting model for the sample workspace.",
		Tables: []semantic.Table{
			{
				Name:        "LOANS",
				Description: "One row per originated loan application.",
				BaseTable: semantic.BaseTable{
					Database: "ANALYTICS",
					Schema:   "LENDING",
					Table:    "LOANS",
				},
				PrimaryKey: &semantic.PrimaryKey{Columns: []string{"LOAN_ID"}},
				Dimensions: []semantic.Dimension{
					{
						Name:         "LOAN_ID",
						Expr:         "loan_id",
						DataType:     "TEXT",
						Description:  "Unique loan identifier.",
						UniqueValues: true,
					},
					{
						Name:         "STATE",
						Expr:         "state",
						DataType:     "TEXT",
						Description:  "Borrower state of residence.",
						SampleValues: []string{"CA", "TX", "NY"},
					},
					{
						Name:        "PURPOSE",
						Expr:        "purpose",
						DataType:    "TEXT",
						Description: "Stated purpose of the loan.",
					},
				},
				TimeDimensions: []semantic.TimeDimension{
					{
						Name:        "ORIGINATION_DATE",
						Expr:        "origination_date",
						DataType:    "DATE",
						Description: "Date the loan was originated.",
					},
				},
			},
		},
	}
}

// SampleFacts returns the quickstart fact library.
func SampleFacts() []semantic.Fact {
	return []semantic.Fact{
		{
			Name:        "LOAN_AMOUNT",
			Expr:        "loan_amount",
			DataType:    "NUMBER",
			Description: "Principal amount of the loan.",
			Synonyms:    []string{"principal", "amount borrowed"},
		},
		{
			Name:        "INCOME",
			Expr:        "income",
			DataType:    "NUMBER",
			Description: "Annual borrower income at application time.",
		},
		{
			Name:        "MORTGAGERESPONSE",
			Expr:        "mortgageresponse",
			DataType:    "NUMBER",
			Description: "1 when the application was approved, 0 otherwise.",
			Synonyms:    []string{"approval flag"},
		},
		{
			Name:        "INTEREST_RATE",
			Expr:        "interest_rate",
			DataType:    "NUMBER",
			Description: "Contract interest rate as a percentage.",
		},
		{
			Name:        "TERM_MONTHS",
			Expr:        "term_months",
			DataType:    "NUMBER",
			Description: "Loan term in months.",
		},
		{
			Name:        "CREDIT_SCORE",
			Expr:        "credit_score",
			DataType:    "NUMBER",
			Description: "Borrower credit score at application time.",
		},
		{
			Name:        "DEBT_TO_INCOME",
			Expr:        "debt_to_income",
			DataType:    "NUMBER",
			Description: "Debt-to-income ratio as a percentage.",
			Synonyms:    []string{"dti"},
		},
		{
			Name:        "MONTHLY_PAYMENT",
			Expr:        "monthly_payment",
			DataType:    "NUMBER",
			Description: "Scheduled monthly payment in dollars.",
		},
	}
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
