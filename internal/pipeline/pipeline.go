// Package pipeline composes validation, approval, rate limiting, circuit
// breaking, and pooled execution into the request flow shared by the
// preview, execute, describe_table, and list_tables operations.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/askdba/oracle-guardrail-gateway/internal/approval"
	"github.com/askdba/oracle-guardrail-gateway/internal/breaker"
	"github.com/askdba/oracle-guardrail-gateway/internal/executor"
	"github.com/askdba/oracle-guardrail-gateway/internal/pool"
	"github.com/askdba/oracle-guardrail-gateway/internal/ratelimit"
	"github.com/askdba/oracle-guardrail-gateway/internal/validator"
)

// Kind tags the failure mode of a pipeline Error so callers (and the audit
// log) can distinguish a blocked query from an infrastructure outage without
// string matching.
type Kind string

const (
	KindValidationBlocked   Kind = "validation_blocked"
	KindApprovalDenied      Kind = "approval_denied"
	KindRateLimited         Kind = "rate_limited"
	KindCircuitOpen         Kind = "circuit_open"
	KindPoolExhausted       Kind = "pool_exhausted"
	KindExecutorTransport   Kind = "executor_transport"
	KindQueryRuntimeFailure Kind = "query_runtime_failure"
	KindConfigurationFailure Kind = "configuration_failure"
)

// Error is the tagged error union returned by every pipeline operation.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func newError(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// PreviewResult is returned by Preview: the validator's verdict without
// touching the database.
type PreviewResult struct {
	Safe            bool
	ComplexityScore int
	Warnings        []string
	WrappedQuery    string
	ApprovalToken   string
}

// ExecuteResult carries rows back from a successful Execute call.
type ExecuteResult struct {
	Rows             []map[string]any
	Columns          []string
	ComplexityScore  int
	Warnings         []string
	ApprovalConsumed bool
}

// Pipeline wires together every gateway safety component in front of one
// executor pool.
type Pipeline struct {
	validator *validator.Validator
	approvals *approval.Tracker
	limiter   *ratelimit.Limiter
	brk       *breaker.Breaker
	pool      *pool.Pool
}

// New constructs a Pipeline from its already-configured components.
func New(v *validator.Validator, a *approval.Tracker, l *ratelimit.Limiter, b *breaker.Breaker, p *pool.Pool) *Pipeline {
	return &Pipeline{validator: v, approvals: a, limiter: l, brk: b, pool: p}
}

// Preview validates query and reports its safety and complexity without
// executing it, always minting an approval token bound to the query's
// fingerprint for a subsequent Execute to present.
func (p *Pipeline) Preview(query string) (*PreviewResult, *Error) {
	report := p.validator.Validate(query)
	if !report.IsSafe {
		return nil, newError(KindValidationBlocked, report.ErrorMessage, nil)
	}

	wrapped := p.validator.WrapWithRowLimit(query)

	token, err := p.approvals.GenerateToken(query)
	if err != nil {
		return nil, newError(KindConfigurationFailure, "failed to mint approval token", err)
	}

	return &PreviewResult{
		Safe:            true,
		ComplexityScore: report.ComplexityScore,
		Warnings:        report.Warnings,
		WrappedQuery:    wrapped,
		ApprovalToken:   token,
	}, nil
}

// Execute runs query end to end: approval verify+consume, rate limiting,
// re-validation, circuit breaking, and pooled subprocess execution, in that
// order.
func (p *Pipeline) Execute(ctx context.Context, query, approvalToken string) (*ExecuteResult, *Error) {
	if ok, reason := p.approvals.Verify(query, approvalToken); !ok {
		return nil, newError(KindApprovalDenied, reason, nil)
	}

	if !p.limiter.Allow() {
		return nil, newError(KindRateLimited, "request rate limit exceeded", nil)
	}

	report := p.validator.Validate(query)
	if !report.IsSafe {
		return nil, newError(KindValidationBlocked, report.ErrorMessage, nil)
	}

	wrapped := p.validator.WrapWithRowLimit(query)

	raw, err := p.brk.Execute(func() (any, error) {
		return p.pool.Execute(ctx, wrapped)
	})
	if err != nil {
		var openErr *breaker.ErrOpen
		if errors.As(err, &openErr) {
			return nil, newError(KindCircuitOpen, openErr.Error(), err)
		}
		if errors.Is(err, pool.ErrExhausted) {
			return nil, newError(KindPoolExhausted, "no database connection became available", err)
		}
		return nil, newError(KindQueryRuntimeFailure, "query execution failed", err)
	}

	resp, ok := raw.(*executor.Response)
	if !ok || resp == nil {
		return nil, newError(KindExecutorTransport, "unexpected executor response type", nil)
	}

	return &ExecuteResult{
		Rows:             resp.Rows,
		Columns:          resp.Columns,
		ComplexityScore:  report.ComplexityScore,
		Warnings:         report.Warnings,
		ApprovalConsumed: true,
	}, nil
}

// DescribeTable and ListTables delegate straight to the pool: they bypass
// the validator because their SQL is generated internally from a validated
// identifier, never from caller-supplied free text.

// DescribeTable runs the fixed describe-table query for table against the
// pool, without going through the SQL validator.
func (p *Pipeline) DescribeTable(ctx context.Context, query string) (*ExecuteResult, *Error) {
	return p.runInternal(ctx, query)
}

// ListTables runs the fixed list-tables query against the pool, without
// going through the SQL validator.
func (p *Pipeline) ListTables(ctx context.Context, query string) (*ExecuteResult, *Error) {
	return p.runInternal(ctx, query)
}

func (p *Pipeline) runInternal(ctx context.Context, query string) (*ExecuteResult, *Error) {
	if !p.limiter.Allow() {
		return nil, newError(KindRateLimited, "request rate limit exceeded", nil)
	}

	raw, err := p.brk.Execute(func() (any, error) {
		return p.pool.Execute(ctx, query)
	})
	if err != nil {
		var openErr *breaker.ErrOpen
		if errors.As(err, &openErr) {
			return nil, newError(KindCircuitOpen, openErr.Error(), err)
		}
		if errors.Is(err, pool.ErrExhausted) {
			return nil, newError(KindPoolExhausted, "no database connection became available", err)
		}
		return nil, newError(KindQueryRuntimeFailure, "query execution failed", err)
	}

	resp, ok := raw.(*executor.Response)
	if !ok || resp == nil {
		return nil, newError(KindExecutorTransport, "unexpected executor response type", nil)
	}

	return &ExecuteResult{Rows: resp.Rows, Columns: resp.Columns}, nil
}
