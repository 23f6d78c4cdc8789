package validator

import "testing"

func TestValidateBlocksWriteOperations(t *testing.T) {
	v := New(Options{})
	queries := []string{
		"DELETE FROM employees WHERE id = 1",
		"UPDATE employees SET salary = 0",
		"DROP TABLE employees",
		"TRUNCATE TABLE employees",
		"INSERT INTO employees (id) VALUES (1)",
		"ALTER TABLE employees ADD COLUMN x INT",
		"CREATE TABLE x (id INT)",
		"GRANT SELECT ON employees TO public",
		"CALL some_procedure()",
		"SELECT * FROM a UNION SELECT * FROM b",
	}
	for _, q := range queries {
		r := v.Validate(q)
		if r.IsSafe {
			t.Errorf("expected %q to be blocked", q)
		}
	}
}

func TestValidateCommentBypassBlocked(t *testing.T) {
	v := New(Options{})
	r := v.Validate("SELECT * FROM employees /* comment */ ; DR/**/OP TABLE employees")
	if r.IsSafe {
		t.Fatalf("expected comment-obfuscated DROP to be blocked")
	}
}

func TestValidateAllowsPlainSelect(t *testing.T) {
	v := New(Options{})
	r := v.Validate("SELECT id, name FROM employees WHERE department = 'eng'")
	if !r.IsSafe {
		t.Fatalf("expected plain select to be safe, got error: %s", r.ErrorMessage)
	}
}

func TestValidateAllowsWithCTE(t *testing.T) {
	v := New(Options{})
	r := v.Validate("WITH recent AS (SELECT * FROM orders) SELECT * FROM recent")
	if !r.IsSafe {
		t.Fatalf("expected CTE select to be safe, got error: %s", r.ErrorMessage)
	}
}

func TestValidateRejectsNonSelectPrefix(t *testing.T) {
	v := New(Options{})
	r := v.Validate("employees WHERE id = 1")
	if r.IsSafe {
		t.Fatalf("expected non-select prefix to be rejected")
	}
}

func TestValidateCrossJoinBlocked(t *testing.T) {
	v := New(Options{})
	r := v.Validate("SELECT * FROM a CROSS JOIN b")
	if r.IsSafe {
		t.Fatalf("expected cross join to be blocked")
	}
}

func TestValidateCrossJoinAllowedWhenConfigured(t *testing.T) {
	v := New(Options{AllowCrossJoins: true})
	r := v.Validate("SELECT * FROM a CROSS JOIN b WHERE a.id = b.id")
	if !r.IsSafe {
		t.Fatalf("expected cross join to be allowed when configured safe, got: %s", r.ErrorMessage)
	}
}

func TestValidateMultiTableWithoutWhereOrJoinBlocked(t *testing.T) {
	v := New(Options{})
	r := v.Validate("SELECT * FROM a, b")
	if r.IsSafe {
		t.Fatalf("expected implicit cartesian product to be blocked")
	}
}

func TestValidateMultiTableWithJoinOnAllowed(t *testing.T) {
	v := New(Options{})
	r := v.Validate("SELECT a.id FROM a JOIN b ON a.id = b.id")
	if !r.IsSafe {
		t.Fatalf("expected join-on query to be safe, got error: %s", r.ErrorMessage)
	}
}

func TestValidateComplexityScoreExceeded(t *testing.T) {
	v := New(Options{MaxComplexity: 10})
	r := v.Validate("SELECT a.*, (SELECT COUNT(*) FROM b), (SELECT COUNT(*) FROM c) FROM a, d WHERE a.id = d.id")
	if r.IsSafe {
		t.Fatalf("expected complexity score to exceed small maximum, got score %d", r.ComplexityScore)
	}
}

func TestValidateWarningsForLeadingWildcardLike(t *testing.T) {
	v := New(Options{})
	r := v.Validate("SELECT * FROM employees WHERE name LIKE '%smith'")
	if !r.IsSafe {
		t.Fatalf("expected leading-wildcard LIKE to remain safe with a warning: %s", r.ErrorMessage)
	}
	if len(r.Warnings) == 0 {
		t.Fatalf("expected a warning about the leading wildcard LIKE pattern")
	}
}

func TestWrapWithRowLimitNoExistingClause(t *testing.T) {
	v := New(Options{MaxRows: 100})
	got := v.WrapWithRowLimit("SELECT * FROM employees")
	want := "SELECT * FROM employees WHERE ROWNUM <= 100"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestWrapWithRowLimitExistingWhere(t *testing.T) {
	v := New(Options{MaxRows: 100})
	got := v.WrapWithRowLimit("SELECT * FROM employees WHERE dept = 'eng'")
	want := "SELECT * FROM employees WHERE dept = 'eng' AND ROWNUM <= 100"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestWrapWithRowLimitOrderByOuterWraps(t *testing.T) {
	v := New(Options{MaxRows: 50})
	got := v.WrapWithRowLimit("SELECT * FROM employees ORDER BY salary DESC")
	want := "SELECT * FROM (\n    SELECT * FROM employees ORDER BY salary DESC\n) WHERE ROWNUM <= 50"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestWrapWithRowLimitIdempotent(t *testing.T) {
	v := New(Options{MaxRows: 50})
	once := v.WrapWithRowLimit("SELECT * FROM employees WHERE ROWNUM <= 10")
	twice := v.WrapWithRowLimit(once)
	if once != twice {
		t.Fatalf("expected idempotent wrapping, got %q then %q", once, twice)
	}
}
