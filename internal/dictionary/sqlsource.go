package dictionary

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
)

// SQLSource extracts fact names from a caller-supplied data-dictionary
// query. The query only has to return the fact-name column; all other
// columns are ignored.
type SQLSource struct {
	DB     *sql.DB
	Query  string
	Column string
	Logger *slog.Logger
}

func (s *SQLSource) FactNames(ctx context.Context) ([]string, error) {
	if s.DB == nil {
		return nil, fmt.Errorf("dictionary db is required")
	}
	if strings.TrimSpace(s.Query) == "" {
		return nil, fmt.Errorf("dictionary query is required")
	}

	rows, err := s.DB.QueryContext(ctx, s.Query)
	if err != nil {
		return nil, fmt.Errorf("run dictionary query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read dictionary columns: %w", err)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("dictionary query returned no columns")
	}
	nameIdx := columnIndex(columns, s.column())

	var names []string
	scan := make([]any, len(columns))
	for rows.Next() {
		var name sql.NullString
		for i := range scan {
			scan[i] = new(sql.RawBytes)
		}
		scan[nameIdx] = &name
		if err := rows.Scan(scan...); err != nil {
			return nil, fmt.Errorf("scan dictionary row: %w", err)
		}
		value := strings.TrimSpace(name.String)
		if !name.Valid || value == "" {
			if s.Logger != nil {
				s.Logger.WarnContext(ctx, "skipping dictionary row with empty fact name",
					slog.String("column", columns[nameIdx]),
				)
			}
			continue
		}
		names = append(names, value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dictionary rows: %w", err)
	}
	return names, nil
}

func (s *SQLSource) column() string {
	if strings.TrimSpace(s.Column) != "" {
		return s.Column
	}
	return DefaultColumn
}

// columnIndex falls back to the first column so SELECT single-column
// queries work regardless of aliasing.
func columnIndex(columns []string, want string) int {
	for i, column := range columns {
		if strings.EqualFold(column, want) {
			return i
		}
	}
	return 0
}
