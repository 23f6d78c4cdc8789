// cmd/gateway/tools.go
package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/askdba/oracle-guardrail-gateway/internal/audit"
	"github.com/askdba/oracle-guardrail-gateway/internal/identifier"
	"github.com/askdba/oracle-guardrail-gateway/internal/pipeline"
	"github.com/askdba/oracle-guardrail-gateway/internal/tokens"
)

// gatewayServer holds everything the tool handlers close over: the
// composed pipeline plus the ambient token estimator and audit logger.
type gatewayServer struct {
	pipe      *pipeline.Pipeline
	estimator tokens.Estimator
	audit     *audit.Logger
	maxRows   int
	maxComplexity int
	allowCrossJoins bool
}

func (s *gatewayServer) toolPreviewQuery(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input PreviewInput,
) (*mcp.CallToolResult, PreviewOutput, error) {
	result, perr := s.pipe.Preview(input.Query)
	if perr != nil {
		s.audit.Event(audit.EventQueryBlocked, map[string]any{"reason": perr.Message})
		return nil, PreviewOutput{
			PreviewMode: true,
			Validation: ValidationInfo{
				IsSafe:       false,
				ErrorMessage: perr.Message,
			},
		}, nil
	}

	s.audit.Event(audit.EventQueryPreviewed, map[string]any{"complexity_score": result.ComplexityScore})

	out := PreviewOutput{
		PreviewMode:        true,
		QueryToExecute:      input.Query,
		SafeQueryWithLimit: result.WrappedQuery,
		Validation: ValidationInfo{
			IsSafe:          true,
			ComplexityScore: result.ComplexityScore,
			MaxComplexity:   s.maxComplexity,
			Warnings:        result.Warnings,
			RowLimitApplied: result.WrappedQuery != input.Query,
		},
		SafetyLimits: SafetyLimits{
			MaxRows:               s.maxRows,
			RowLimitWillBeApplied: result.WrappedQuery != input.Query,
			AllowCrossJoins:       s.allowCrossJoins,
		},
		Approval: ApprovalInfo{
			Token:            result.ApprovalToken,
			ExpiresInSeconds: 300,
			Message:          "Pass this token to query_oracle to execute the previewed query.",
		},
		NextSteps: "Call query_oracle with the provided approval_token to execute this query.",
	}

	if n, err := tokens.EstimateValue(s.estimator, out); err == nil && n > 0 {
		out.TokenUsage = &TokenUsageOut{InputEstimated: n, TotalEstimated: n, Model: s.estimator.Model()}
	}

	return nil, out, nil
}

func (s *gatewayServer) toolQueryOracle(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input ExecuteInput,
) (*mcp.CallToolResult, ExecuteOutput, error) {
	result, eerr := s.pipe.Execute(ctx, input.Query, input.ApprovalToken)
	if eerr != nil {
		s.auditExecuteFailure(eerr)
		return nil, ExecuteOutput{
			Success: false,
			Error:   eerr.Error(),
			Validation: ValidationInfo{
				IsSafe: eerr.Kind != pipeline.KindValidationBlocked,
			},
		}, nil
	}

	if result.ApprovalConsumed {
		s.audit.Event(audit.EventQueryApproved, map[string]any{"complexity_score": result.ComplexityScore})
	}
	s.audit.Event(audit.EventQuerySucceeded, map[string]any{"row_count": len(result.Rows)})

	out := ExecuteOutput{
		Success:  true,
		RowCount: len(result.Rows),
		Rows:     result.Rows,
		Validation: ValidationInfo{
			IsSafe:          true,
			ComplexityScore: result.ComplexityScore,
			Warnings:        result.Warnings,
			RowLimitApplied: true,
		},
	}

	if n, err := tokens.EstimateValue(s.estimator, out); err == nil && n > 0 {
		out.TokenUsage = &TokenUsageOut{OutputEstimated: n, TotalEstimated: n, Model: s.estimator.Model()}
	}

	return nil, out, nil
}

func (s *gatewayServer) auditExecuteFailure(err *pipeline.Error) {
	switch err.Kind {
	case pipeline.KindApprovalDenied:
		s.audit.Event(audit.EventApprovalDenied, map[string]any{"reason": err.Message})
	case pipeline.KindRateLimited:
		s.audit.Event(audit.EventRateLimitExceeded, nil)
	case pipeline.KindValidationBlocked:
		s.audit.Event(audit.EventQueryBlocked, map[string]any{"reason": err.Message})
	default:
		s.audit.Error(audit.EventQueryFailed, err, map[string]any{"kind": string(err.Kind)})
	}
}

func (s *gatewayServer) toolDescribeTable(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input DescribeTableInput,
) (*mcp.CallToolResult, DescribeTableOutput, error) {
	table, ierr := identifier.Validate(input.TableName)
	if ierr != nil {
		s.audit.Event(audit.EventIdentifierRejected, map[string]any{"name": input.TableName})
		return nil, DescribeTableOutput{Error: ierr.Error()}, nil
	}

	columnsQuery := fmt.Sprintf(
		"SELECT column_name, data_type, nullable, data_length FROM user_tab_columns WHERE table_name = '%s' ORDER BY column_id",
		table,
	)
	colResult, cerr := s.pipe.DescribeTable(ctx, columnsQuery)
	if cerr != nil {
		return nil, DescribeTableOutput{TableName: table, Error: cerr.Error()}, nil
	}

	out := DescribeTableOutput{TableName: table}
	for _, row := range colResult.Rows {
		col := ColumnInfo{
			Name:     fmt.Sprint(row["COLUMN_NAME"]),
			DataType: fmt.Sprint(row["DATA_TYPE"]),
			Nullable: fmt.Sprint(row["NULLABLE"]) == "Y",
		}
		out.Columns = append(out.Columns, col)
	}

	pkQuery := fmt.Sprintf(
		"SELECT cols.column_name FROM user_cons_columns cols JOIN user_constraints cons ON cons.constraint_name = cols.constraint_name WHERE cons.constraint_type = 'P' AND cons.table_name = '%s' ORDER BY cols.position",
		table,
	)
	if pkResult, perr := s.pipe.DescribeTable(ctx, pkQuery); perr == nil {
		for _, row := range pkResult.Rows {
			out.PrimaryKeys = append(out.PrimaryKeys, fmt.Sprint(row["COLUMN_NAME"]))
		}
	}

	return nil, out, nil
}

// resourceConnection backs the oracle://connection URI: a plain liveness
// string sourced from the pool's health check.
func (s *gatewayServer) resourceConnection(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	result, err := s.pipe.ListTables(ctx, "SELECT table_name FROM user_tables WHERE ROWNUM <= 1")
	status := "alive"
	if err != nil {
		status = "unreachable: " + err.Error()
	}
	_ = result

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{URI: req.Params.URI, MIMEType: "text/plain", Text: status},
		},
	}, nil
}

// resourceInfo backs the oracle://info URI: a JSON object describing the
// connected database, sourced through the same pool/breaker path as any
// other catalog query.
func (s *gatewayServer) resourceInfo(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	result, err := s.pipe.ListTables(ctx, "SELECT banner AS version, USER AS db_user, SYS_CONTEXT('USERENV', 'DB_NAME') AS db_name, SYS_CONTEXT('USERENV', 'SERVER_HOST') AS db_host FROM v$version WHERE ROWNUM <= 1")
	info := map[string]any{}
	if err != nil {
		info["error"] = err.Error()
	} else if len(result.Rows) > 0 {
		row := result.Rows[0]
		info["version"] = fmt.Sprint(row["VERSION"])
		info["user"] = fmt.Sprint(row["DB_USER"])
		info["db"] = fmt.Sprint(row["DB_NAME"])
		info["host"] = fmt.Sprint(row["DB_HOST"])
	}

	data, merr := json.Marshal(info)
	if merr != nil {
		return nil, merr
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{URI: req.Params.URI, MIMEType: "application/json", Text: string(data)},
		},
	}, nil
}

func (s *gatewayServer) toolListTables(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input ListTablesInput,
) (*mcp.CallToolResult, ListTablesOutput, error) {
	var query string
	var schema string

	if input.Schema != "" {
		var ierr error
		schema, ierr = identifier.Validate(input.Schema)
		if ierr != nil {
			s.audit.Event(audit.EventIdentifierRejected, map[string]any{"name": input.Schema})
			return nil, ListTablesOutput{Error: ierr.Error()}, nil
		}
		query = fmt.Sprintf("SELECT table_name FROM all_tables WHERE owner = '%s' ORDER BY table_name", schema)
	} else {
		query = "SELECT table_name FROM user_tables ORDER BY table_name"
	}

	result, lerr := s.pipe.ListTables(ctx, query)
	if lerr != nil {
		return nil, ListTablesOutput{Schema: schema, Error: lerr.Error()}, nil
	}

	out := ListTablesOutput{Schema: schema}
	for _, row := range result.Rows {
		out.Tables = append(out.Tables, fmt.Sprint(row["TABLE_NAME"]))
	}
	out.TableCount = len(out.Tables)

	return nil, out, nil
}
