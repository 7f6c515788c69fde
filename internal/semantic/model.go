package semantic

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

var ErrNoTables = errors.New("semantic: base model has no tables")

// Model is the document consumed by the downstream analyst service.
// Field order matters on the wire: the analyst prompt is built from the
// serialized YAML, so encoding preserves declaration order.
type Model struct {
	Name            string          `yaml:"name"`
	Description     string          `yaml:"description,omitempty"`
	Tables          []Table         `yaml:"tables"`
	VerifiedQueries []VerifiedQuery `yaml:"verified_queries,omitempty"`
}

type Table struct {
	Name           string          `yaml:"name"`
	Description    string          `yaml:"description,omitempty"`
	BaseTable      BaseTable       `yaml:"base_table"`
	PrimaryKey     *PrimaryKey     `yaml:"primary_key,omitempty"`
	Dimensions     []Dimension     `yaml:"dimensions,omitempty"`
	TimeDimensions []TimeDimension `yaml:"time_dimensions,omitempty"`
	Facts          []Fact          `yaml:"facts,omitempty"`
}

type BaseTable struct {
	Database string `yaml:"database"`
	Schema   string `yaml:"schema"`
	Table    string `yaml:"table"`
}

type PrimaryKey struct {
	Columns []string `yaml:"columns"`
}

// Fact is a named field definition selected by name into a generated
// model from the reusable library.
type Fact struct {
	Name         string   `yaml:"name"`
	Expr         string   `yaml:"expr"`
	DataType     string   `yaml:"data_type,omitempty"`
	Description  string   `yaml:"description,omitempty"`
	Synonyms     []string `yaml:"synonyms,omitempty"`
	SampleValues []string `yaml:"sample_values,omitempty"`
}

type Dimension struct {
	Name         string   `yaml:"name"`
	Expr         string   `yaml:"expr"`
	DataType     string   `yaml:"data_type,omitempty"`
	Description  string   `yaml:"description,omitempty"`
	Synonyms     []string `yaml:"synonyms,omitempty"`
	SampleValues []string `yaml:"sample_values,omitempty"`
	UniqueValues bool     `yaml:"unique,omitempty"`
}

type TimeDimension struct {
	Name        string `yaml:"name"`
	Expr        string `yaml:"expr"`
	DataType    string `yaml:"data_type,omitempty"`
	Description string `yaml:"description,omitempty"`
}

type VerifiedQuery struct {
	Name     string `yaml:"name"`
	Question string `yaml:"question"`
	SQL      string `yaml:"sql"`
}

func ParseModel(data []byte) (Model, error) {
	var model Model
	if err := yaml.Unmarshal(data, &model); err != nil {
		return Model{}, fmt.Errorf("parse semantic model: %w", err)
	}
	return model, nil
}

func LoadModelFile(path string) (Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Model{}, fmt.Errorf("read base model %q: %w", path, err)
	}
	return ParseModel(data)
}

// Clone returns a deep copy so merges never mutate the loaded base
// template across requests.
func (m Model) Clone() Model {
	out := m
	out.Tables = make([]Table, len(m.Tables))
	for i, table := range m.Tables {
		out.Tables[i] = table.clone()
	}
	out.VerifiedQueries = append([]VerifiedQuery(nil), m.VerifiedQueries...)
	return out
}

func (t Table) clone() Table {
	out := t
	if t.PrimaryKey != nil {
		pk := PrimaryKey{Columns: append([]string(nil), t.PrimaryKey.Columns...)}
		out.PrimaryKey = &pk
	}
	out.Dimensions = make([]Dimension, len(t.Dimensions))
	for i, dim := range t.Dimensions {
		out.Dimensions[i] = dim
		out.Dimensions[i].Synonyms = append([]string(nil), dim.Synonyms...)
		out.Dimensions[i].SampleValues = append([]string(nil), dim.SampleValues...)
	}
	out.TimeDimensions = append([]TimeDimension(nil), t.TimeDimensions...)
	out.Facts = CloneFacts(t.Facts)
	return out
}

func CloneFacts(facts []Fact) []Fact {
	if facts == nil {
		return nil
	}
	out := make([]Fact, len(facts))
	for i, fact := range facts {
		out[i] = fact
		out[i].Synonyms = append([]string(nil), fact.Synonyms...)
		out[i].SampleValues = append([]string(nil), fact.SampleValues...)
	}
	return out
}

// Merge combines the base template with the selected facts. The facts
// of the first table are replaced wholesale; an empty selection yields
// a model whose first table carries no facts.
func Merge(base Model, facts []Fact) (Model, error) {
	if len(base.Tables) == 0 {
		return Model{}, ErrNoTables
	}
	merged := base.Clone()
	merged.Tables[0].Facts = CloneFacts(facts)
	return merged, nil
}
