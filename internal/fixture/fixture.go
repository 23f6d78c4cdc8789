// Package fixture backs the test-only fakeexecutor subprocess: a real
// database/sql-backed query runner that speaks the same line-delimited JSON
// protocol internal/executor expects, against a throwaway MySQL instance.
// It exists only so internal/pool's integration test can drive the real
// executor/pool machinery end to end instead of mocking it.
package fixture

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	"github.com/xwb1989/sqlparser"
)

// Response mirrors internal/executor.Response's wire shape.
type Response struct {
	Status    string           `json:"status,omitempty"`
	Connected bool             `json:"connected,omitempty"`
	Success   bool             `json:"success,omitempty"`
	Rows      []map[string]any `json:"rows,omitempty"`
	Columns   []string         `json:"columns,omitempty"`
	Count     int              `json:"count,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// Runner executes translated queries against a MySQL database standing in
// for Oracle in tests.
type Runner struct {
	db *sql.DB
}

// NewRunner opens dsn (a MySQL DSN built from the test database's
// connection parameters) and verifies connectivity.
func NewRunner(ctx context.Context, dsn string) (*Runner, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("fixture: open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("fixture: ping database: %w", err)
	}
	return &Runner{db: db}, nil
}

// Close releases the underlying database handle.
func (r *Runner) Close() error {
	return r.db.Close()
}

// Ping reports whether the underlying database connection is reachable.
func (r *Runner) Ping(ctx context.Context) bool {
	return r.db.PingContext(ctx) == nil
}

// Run executes query (an Oracle-dialect, possibly ROWNUM-wrapped, SELECT
// produced by internal/validator) by translating its row cap into a MySQL
// LIMIT clause and running it through database/sql.
func (r *Runner) Run(ctx context.Context, query string) *Response {
	translated, err := TranslateRowLimit(query)
	if err != nil {
		return &Response{Success: false, Error: err.Error()}
	}

	rows, err := r.db.QueryContext(ctx, translated)
	if err != nil {
		return &Response{Success: false, Error: err.Error()}
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return &Response{Success: false, Error: err.Error()}
	}

	result, err := scanRows(rows, cols)
	if err != nil {
		return &Response{Success: false, Error: err.Error()}
	}

	return &Response{Success: true, Rows: result, Columns: cols, Count: len(result)}
}

func scanRows(rows *sql.Rows, cols []string) ([]map[string]any, error) {
	var out []map[string]any
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			row[col] = normalizeValue(values[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// normalizeValue converts database/sql's []byte scan results (used for
// most non-binary MySQL column types) into plain strings so the JSON
// response matches what a real JDBC-backed driver would emit.
func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

var (
	orderByWrap  = regexp.MustCompile(`(?is)^SELECT \* FROM \(\s*(.*?)\s*\) WHERE ROWNUM <= (\d+)$`)
	andRownum    = regexp.MustCompile(`(?is)^(.*)\s+AND\s+ROWNUM\s*<=\s*(\d+)$`)
	whereRownum  = regexp.MustCompile(`(?is)^(.*)\s+WHERE\s+ROWNUM\s*<=\s*(\d+)$`)
	bareRownum   = regexp.MustCompile(`(?i)\bROWNUM\s*<=\s*(\d+)`)
)

// TranslateRowLimit rewrites an Oracle-dialect ROWNUM row cap into a MySQL
// LIMIT clause. The ROWNUM predicate itself has no MySQL grammar
// equivalent, so its extraction is regex-based on the exact three shapes
// internal/validator.WrapWithRowLimit produces; the remaining core SELECT
// is then parsed and re-serialized through sqlparser so the LIMIT is
// injected at the AST level rather than by further string surgery.
func TranslateRowLimit(query string) (string, error) {
	trimmed := strings.TrimSpace(query)

	if m := orderByWrap.FindStringSubmatch(trimmed); m != nil {
		return injectLimit(m[1], m[2])
	}
	if m := andRownum.FindStringSubmatch(trimmed); m != nil {
		return injectLimit(m[1], m[2])
	}
	if m := whereRownum.FindStringSubmatch(trimmed); m != nil {
		return injectLimit(m[1], m[2])
	}

	// Already contains some other ROWNUM comparison (e.g. the caller wrote
	// one directly): strip it out and fall back to no LIMIT translation,
	// since the validator's wrap step guarantees one of the three shapes
	// above for anything the gateway itself produced.
	if bareRownum.MatchString(trimmed) {
		stripped := bareRownum.ReplaceAllString(trimmed, "1=1")
		return stripped, nil
	}

	return trimmed, nil
}

func injectLimit(core, limitStr string) (string, error) {
	limit, err := strconv.Atoi(limitStr)
	if err != nil {
		return "", fmt.Errorf("fixture: invalid row limit %q: %w", limitStr, err)
	}

	stmt, err := sqlparser.Parse(core)
	if err != nil {
		return "", fmt.Errorf("fixture: parsing translated query: %w", err)
	}

	sel, ok := stmt.(*sqlparser.Select)
	if !ok {
		return "", fmt.Errorf("fixture: translated query is not a plain SELECT (%T)", stmt)
	}

	sel.Limit = &sqlparser.Limit{
		Rowcount: sqlparser.NewIntVal([]byte(strconv.Itoa(limit))),
	}

	return sqlparser.String(sel), nil
}

// MarshalResponse encodes resp as one wire protocol line, including the
// trailing newline the line-delimited protocol expects.
func MarshalResponse(resp *Response) ([]byte, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
