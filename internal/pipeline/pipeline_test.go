package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/askdba/oracle-guardrail-gateway/internal/approval"
	"github.com/askdba/oracle-guardrail-gateway/internal/breaker"
	"github.com/askdba/oracle-guardrail-gateway/internal/executor"
	"github.com/askdba/oracle-guardrail-gateway/internal/pool"
	"github.com/askdba/oracle-guardrail-gateway/internal/ratelimit"
	"github.com/askdba/oracle-guardrail-gateway/internal/validator"
)

const fakeServerScript = `
echo '{"status":"ready"}'
while IFS= read -r line; do
  case "$line" in
    PING) echo '{"status":"alive","connected":true}' ;;
    EXIT) exit 0 ;;
    *) echo '{"success":true,"rows":[{"ID":1}],"columns":["ID"],"count":1}' ;;
  esac
done
`

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	ctx := context.Background()

	execCfg := executor.Config{
		Command:        "/bin/sh",
		Args:           []string{"-c", fakeServerScript},
		User:           "test_user",
		Password:       "test_pass",
		StartupTimeout: 2 * time.Second,
		QueryTimeout:   2 * time.Second,
	}
	p, err := pool.New(ctx, pool.Config{Size: 1, MaxWait: time.Second, PollPeriod: 10 * time.Millisecond}, execCfg)
	if err != nil {
		t.Fatalf("unexpected error creating pool: %v", err)
	}
	t.Cleanup(p.Shutdown)

	v := validator.New(validator.Options{MaxComplexity: 1000, MaxRows: 100})
	a := approval.New(time.Minute)
	l := ratelimit.New(100, time.Minute)
	b := breaker.New("test", breaker.Config{FailureThreshold: 5, RecoveryTimeout: time.Second, SuccessThreshold: 1})

	return New(v, a, l, b, p)
}

func TestPreviewAlwaysIssuesApprovalToken(t *testing.T) {
	pl := newTestPipeline(t)
	result, err := pl.Preview("SELECT * FROM employees WHERE dept = 'eng'")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Safe {
		t.Fatalf("expected safe query")
	}
	if result.ApprovalToken == "" {
		t.Fatalf("expected an approval token to be issued")
	}
}

func TestPreviewBlockedQuery(t *testing.T) {
	pl := newTestPipeline(t)
	_, err := pl.Preview("DELETE FROM employees")
	if err == nil {
		t.Fatalf("expected error for blocked query")
	}
	if err.Kind != KindValidationBlocked {
		t.Fatalf("expected KindValidationBlocked, got %s", err.Kind)
	}
}

func TestExecuteRunsSafeQuery(t *testing.T) {
	pl := newTestPipeline(t)
	query := "SELECT * FROM employees WHERE dept = 'eng'"
	preview, perr := pl.Preview(query)
	if perr != nil {
		t.Fatalf("unexpected preview error: %v", perr)
	}

	result, err := pl.Execute(context.Background(), query, preview.ApprovalToken)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Rows) != 1 {
		t.Fatalf("expected one row, got %d", len(result.Rows))
	}
	if !result.ApprovalConsumed {
		t.Fatalf("expected ApprovalConsumed to be set")
	}
}

func TestExecuteRequiresApprovalToken(t *testing.T) {
	pl := newTestPipeline(t)
	query := "SELECT * FROM employees WHERE dept = 'eng'"
	preview, perr := pl.Preview(query)
	if perr != nil {
		t.Fatalf("unexpected preview error: %v", perr)
	}

	_, err := pl.Execute(context.Background(), query, "wrong-token")
	if err == nil || err.Kind != KindApprovalDenied {
		t.Fatalf("expected KindApprovalDenied with wrong token, got %v", err)
	}

	_, err = pl.Execute(context.Background(), query, preview.ApprovalToken)
	if err != nil {
		t.Fatalf("expected correct approval token to succeed, got %v", err)
	}

	_, err = pl.Execute(context.Background(), query, preview.ApprovalToken)
	if err == nil || err.Kind != KindApprovalDenied {
		t.Fatalf("expected a second execute with the same (now consumed) token to fail, got %v", err)
	}
}

// A blocked query can never hold a valid approval token (Preview refuses to
// mint one for it), so an unapproved execute of one is stopped at the
// approval stage before validation or the pool ever see it.
func TestExecuteWithoutApprovalNeverReachesPool(t *testing.T) {
	pl := newTestPipeline(t)
	_, err := pl.Execute(context.Background(), "DROP TABLE employees", "")
	if err == nil || err.Kind != KindApprovalDenied {
		t.Fatalf("expected KindApprovalDenied, got %v", err)
	}
}

func TestExecuteRateLimited(t *testing.T) {
	ctx := context.Background()
	execCfg := executor.Config{
		Command:        "/bin/sh",
		Args:           []string{"-c", fakeServerScript},
		User:           "test_user",
		Password:       "test_pass",
		StartupTimeout: 2 * time.Second,
		QueryTimeout:   2 * time.Second,
	}
	p, err := pool.New(ctx, pool.Config{Size: 1, MaxWait: time.Second, PollPeriod: 10 * time.Millisecond}, execCfg)
	if err != nil {
		t.Fatalf("unexpected error creating pool: %v", err)
	}
	defer p.Shutdown()

	v := validator.New(validator.Options{MaxComplexity: 1000, MaxRows: 100})
	a := approval.New(time.Minute)
	l := ratelimit.New(1, time.Minute)
	b := breaker.New("test", breaker.Config{FailureThreshold: 5, RecoveryTimeout: time.Second, SuccessThreshold: 1})
	pl := New(v, a, l, b, p)

	query := "SELECT 1 FROM dual"
	preview1, perr1 := pl.Preview(query)
	if perr1 != nil {
		t.Fatalf("unexpected preview error: %v", perr1)
	}
	_, err1 := pl.Execute(ctx, query, preview1.ApprovalToken)
	if err1 != nil {
		t.Fatalf("unexpected error on first call: %v", err1)
	}

	preview2, perr2 := pl.Preview(query)
	if perr2 != nil {
		t.Fatalf("unexpected preview error: %v", perr2)
	}
	_, err2 := pl.Execute(ctx, query, preview2.ApprovalToken)
	if err2 == nil || err2.Kind != KindRateLimited {
		t.Fatalf("expected KindRateLimited on second call, got %v", err2)
	}
}
