// cmd/gateway/types.go
package main

// ValidationInfo mirrors the validator.Report surfaced to the agent.
type ValidationInfo struct {
	IsSafe              bool     `json:"is_safe"`
	ComplexityScore     int      `json:"complexity_score"`
	MaxComplexity       int      `json:"max_complexity,omitempty"`
	ComplexityExplanation string `json:"complexity_explanation,omitempty"`
	Warnings            []string `json:"warnings,omitempty"`
	ErrorMessage        string   `json:"error_message,omitempty"`
	RowLimitApplied     bool     `json:"row_limit_applied,omitempty"`
}

// SafetyLimits describes the row cap and join policy in effect.
type SafetyLimits struct {
	MaxRows               int  `json:"max_rows"`
	RowLimitWillBeApplied bool `json:"row_limit_will_be_applied"`
	AllowCrossJoins       bool `json:"allow_cross_joins"`
}

// ApprovalInfo carries the single-use token preview_query always mints; the
// same token must be presented to query_oracle to execute the query.
type ApprovalInfo struct {
	Token           string `json:"token,omitempty"`
	ExpiresInSeconds int   `json:"expires_in_seconds,omitempty"`
	Message         string `json:"message,omitempty"`
}

// PreviewInput is the preview_query tool's argument shape.
type PreviewInput struct {
	Query string `json:"query"`
}

// PreviewOutput is the preview_query tool's result shape.
type PreviewOutput struct {
	PreviewMode        bool           `json:"preview_mode"`
	QueryToExecute     string         `json:"query_to_execute"`
	SafeQueryWithLimit string         `json:"safe_query_with_limit,omitempty"`
	Validation         ValidationInfo `json:"validation"`
	SafetyLimits       SafetyLimits   `json:"safety_limits"`
	Approval           ApprovalInfo   `json:"approval,omitempty"`
	NextSteps          string         `json:"next_steps,omitempty"`
	TokenUsage         *TokenUsageOut `json:"token_usage,omitempty"`
}

// ExecuteInput is the query_oracle tool's argument shape.
type ExecuteInput struct {
	Query         string `json:"query"`
	ApprovalToken string `json:"approval_token"`
}

// ExecuteOutput is the query_oracle tool's result shape.
type ExecuteOutput struct {
	Success    bool           `json:"success"`
	RowCount   int            `json:"row_count"`
	Rows       []map[string]any `json:"rows,omitempty"`
	Validation ValidationInfo `json:"validation"`
	Error      string         `json:"error,omitempty"`
	TokenUsage *TokenUsageOut `json:"token_usage,omitempty"`
}

// DescribeTableInput is the describe_table tool's argument shape.
type DescribeTableInput struct {
	TableName string `json:"table_name"`
}

// ColumnInfo describes one column returned by describe_table.
type ColumnInfo struct {
	Name       string `json:"name"`
	DataType   string `json:"data_type"`
	Nullable   bool   `json:"nullable"`
	DataLength int    `json:"data_length,omitempty"`
}

// DescribeTableOutput is the describe_table tool's result shape.
type DescribeTableOutput struct {
	TableName    string       `json:"table_name"`
	Columns      []ColumnInfo `json:"columns"`
	PrimaryKeys  []string     `json:"primary_keys,omitempty"`
	Error        string       `json:"error,omitempty"`
}

// ListTablesInput is the list_tables tool's argument shape.
type ListTablesInput struct {
	Schema string `json:"schema,omitempty"`
}

// ListTablesOutput is the list_tables tool's result shape.
type ListTablesOutput struct {
	Schema     string   `json:"schema,omitempty"`
	TableCount int      `json:"table_count"`
	Tables     []string `json:"tables"`
	Error      string   `json:"error,omitempty"`
}

// TokenUsageOut is the JSON-facing form of tokens.Usage.
type TokenUsageOut struct {
	InputEstimated  int    `json:"input_estimated"`
	OutputEstimated int    `json:"output_estimated"`
	TotalEstimated  int    `json:"total_estimated"`
	Model           string `json:"model,omitempty"`
}
