package fixture

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestTranslateRowLimitOrderByWrap(t *testing.T) {
	in := "SELECT * FROM (\n    SELECT * FROM employees ORDER BY salary DESC\n) WHERE ROWNUM <= 50"
	got, err := TranslateRowLimit(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "select * from employees order by salary desc limit 50"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestTranslateRowLimitAndClause(t *testing.T) {
	in := "SELECT * FROM employees WHERE dept = 'eng' AND ROWNUM <= 100"
	got, err := TranslateRowLimit(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "select * from employees where dept = 'eng' limit 100"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestTranslateRowLimitWhereClause(t *testing.T) {
	in := "SELECT * FROM employees WHERE ROWNUM <= 10"
	got, err := TranslateRowLimit(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "select * from employees limit 10"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestRunTranslatesAndScansRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("unexpected error creating sqlmock: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows([]string{"ID", "NAME"}).
		AddRow([]byte("1"), []byte("Ada")).
		AddRow([]byte("2"), []byte("Grace"))
	mock.ExpectQuery("select \\* from employees limit 10").WillReturnRows(rows)

	r := &Runner{db: db}
	resp := r.Run(context.Background(), "SELECT * FROM employees WHERE ROWNUM <= 10")

	if !resp.Success {
		t.Fatalf("expected success, got failure (error: %s)", resp.Error)
	}
	if len(resp.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(resp.Rows))
	}
	if resp.Rows[0]["NAME"] != "Ada" {
		t.Fatalf("expected normalized string value, got %#v", resp.Rows[0]["NAME"])
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}

func TestRunSurfacesQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("unexpected error creating sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("select \\* from employees limit 10").WillReturnError(sqlErr("ORA-00942: table or view does not exist"))

	r := &Runner{db: db}
	resp := r.Run(context.Background(), "SELECT * FROM employees WHERE ROWNUM <= 10")

	if resp.Success {
		t.Fatalf("expected failure, got success")
	}
}

type sqlErr string

func (e sqlErr) Error() string { return string(e) }
