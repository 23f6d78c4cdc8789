package approval

import (
	"testing"
	"time"
)

func TestGenerateAndVerifyRoundTrip(t *testing.T) {
	tr := New(time.Minute)
	query := "SELECT * FROM employees WHERE dept = 'eng'"
	token, err := tr.GenerateToken(query)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ok, reason := tr.Verify(query, token)
	if !ok {
		t.Fatalf("expected verification to succeed, got reason: %s", reason)
	}
}

func TestVerifyIsSingleUse(t *testing.T) {
	tr := New(time.Minute)
	query := "SELECT * FROM employees"
	token, _ := tr.GenerateToken(query)
	tr.Verify(query, token)
	ok, _ := tr.Verify(query, token)
	if ok {
		t.Fatalf("expected second verification of the same token to fail")
	}
}

func TestVerifyRejectsMismatchedQuery(t *testing.T) {
	tr := New(time.Minute)
	token, _ := tr.GenerateToken("SELECT * FROM employees")
	ok, reason := tr.Verify("SELECT * FROM departments", token)
	if ok {
		t.Fatalf("expected mismatched query to fail verification")
	}
	if reason == "" {
		t.Fatalf("expected a reason for the failure")
	}
}

func TestVerifyRejectsUnknownToken(t *testing.T) {
	tr := New(time.Minute)
	ok, _ := tr.Verify("SELECT 1 FROM dual", "deadbeefdeadbeefdeadbeefdeadbeef")
	if ok {
		t.Fatalf("expected unknown token to fail verification")
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	tr := New(10 * time.Millisecond)
	query := "SELECT * FROM employees"
	token, _ := tr.GenerateToken(query)
	time.Sleep(20 * time.Millisecond)
	ok, reason := tr.Verify(query, token)
	if ok {
		t.Fatalf("expected expired token to fail verification")
	}
	if reason == "" {
		t.Fatalf("expected a reason for the failure")
	}
}

func TestFingerprintIgnoresWhitespaceAndCase(t *testing.T) {
	tr := New(time.Minute)
	token, _ := tr.GenerateToken("SELECT  *   FROM employees")
	ok, _ := tr.Verify("select * from employees", token)
	if !ok {
		t.Fatalf("expected whitespace/case-insensitive fingerprint match to succeed")
	}
}

func TestPendingCounts(t *testing.T) {
	tr := New(time.Minute)
	if tr.Pending() != 0 {
		t.Fatalf("expected zero pending tokens initially")
	}
	tr.GenerateToken("SELECT 1 FROM dual")
	if tr.Pending() != 1 {
		t.Fatalf("expected one pending token after issuance")
	}
}
