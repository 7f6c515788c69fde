package dictionary

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/semforge/semforge/internal/storage"
)

// dictionaryRow mirrors the parquet export of the data dictionary.
// Only the fact-name column is read; extra columns are skipped by the
// reader schema.
type dictionaryRow struct {
	ElementNumber string `parquet:"ELEMENT_NUMBER"`
}

func ReadParquetNames(data []byte) ([]string, error) {
	rows, err := parquet.Read[dictionaryRow](bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("read dictionary parquet: %w", err)
	}
	names := make([]string, 0, len(rows))
	for _, row := range rows {
		value := strings.TrimSpace(row.ElementNumber)
		if value == "" {
			continue
		}
		names = append(names, value)
	}
	return names, nil
}

// FileSource reads fact names from a local parquet export.
type FileSource struct {
	Path string
}

func (s *FileSource) FactNames(_ context.Context) ([]string, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read dictionary file %q: %w", s.Path, err)
	}
	return ReadParquetNames(data)
}

// ObjectSource reads fact names from a parquet export stored in the
// object store.
type ObjectSource struct {
	Store storage.ObjectStore
	Key   string
}

func (s *ObjectSource) FactNames(ctx context.Context) ([]string, error) {
	if s.Store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	reader, err := s.Store.Get(ctx, s.Key)
	if err != nil {
		return nil, fmt.Errorf("fetch dictionary object %q: %w", s.Key, err)
	}
	defer func() { _ = reader.Close() }()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read dictionary object %q: %w", s.Key, err)
	}
	return ReadParquetNames(data)
}
