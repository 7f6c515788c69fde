package dictionary

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func TestSQLSourceExtractsFactNameColumn(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	query := "SELECT ELEMENT_NUMBER, TABLE_NAME FROM data_dictionary"
	mock.ExpectQuery("SELECT ELEMENT_NUMBER").WillReturnRows(
		sqlmock.NewRows([]string{"ELEMENT_NUMBER", "TABLE_NAME"}).
			AddRow("LOAN_AMOUNT", "LOANS").
			AddRow("  INCOME  ", "LOANS").
			AddRow("", "LOANS").
			AddRow("MORTGAGERESPONSE", "LOANS"),
	)

	source := &SQLSource{DB: db, Query: query}
	names, err := source.FactNames(context.Background())
	if err != nil {
		t.Fatalf("FactNames() error = %v", err)
	}
	want := []string{"LOAN_AMOUNT", "INCOME", "MORTGAGERESPONSE"}
	if len(names) != len(want) {
		t.Fatalf("names = %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("names[%d] = %q, want %q", i, names[i], want[i])
		}
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSQLSourceFallsBackToFirstColumn(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("SELECT col").WillReturnRows(
		sqlmock.NewRows([]string{"col"}).AddRow("LOAN_ID"),
	)

	source := &SQLSource{DB: db, Query: "SELECT col FROM dict"}
	names, err := source.FactNames(context.Background())
	if err != nil {
		t.Fatalf("FactNames() error = %v", err)
	}
	if len(names) != 1 || names[0] != "LOAN_ID" {
		t.Fatalf("names = %v", names)
	}
}

func TestSQLSourceRequiresQuery(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	source := &SQLSource{DB: db, Query: "   "}
	if _, err := source.FactNames(context.Background()); err == nil {
		t.Fatal("expected error for empty query")
	}
}

func TestNormalizeDriver(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "snowflake", want: "snowflake"},
		{in: "pgx", want: "pgx"},
		{in: "postgres", want: "pgx"},
		{in: "duckdb", want: "duckdb"},
		{in: "", wantErr: true},
		{in: "mysql", wantErr: true},
	}
	for _, tc := range cases {
		got, err := normalizeDriver(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("normalizeDriver(%q) expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("normalizeDriver(%q) error = %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("normalizeDriver(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
