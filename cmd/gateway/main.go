// cmd/gateway/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/askdba/oracle-guardrail-gateway/internal/approval"
	"github.com/askdba/oracle-guardrail-gateway/internal/audit"
	"github.com/askdba/oracle-guardrail-gateway/internal/breaker"
	"github.com/askdba/oracle-guardrail-gateway/internal/config"
	"github.com/askdba/oracle-guardrail-gateway/internal/executor"
	"github.com/askdba/oracle-guardrail-gateway/internal/pipeline"
	"github.com/askdba/oracle-guardrail-gateway/internal/pool"
	"github.com/askdba/oracle-guardrail-gateway/internal/ratelimit"
	"github.com/askdba/oracle-guardrail-gateway/internal/tokens"
	"github.com/askdba/oracle-guardrail-gateway/internal/validator"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "gateway",
		Short: "Oracle SQL safety gateway for agent-driven read access",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to an optional YAML config file")
	root.AddCommand(serveCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the gateway and serve MCP tools over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("configuration failure: %w", err)
	}

	auditLogger, err := audit.New(audit.Config{
		JSON:  cfg.Logging.JSON,
		Level: cfg.Logging.Level,
		Path:  cfg.Audit.Path,
	})
	if err != nil {
		return fmt.Errorf("configuration failure: setting up audit logger: %w", err)
	}

	var estimator tokens.Estimator
	if cfg.Tokens.Enabled {
		estimator, err = tokens.NewEstimator(cfg.Tokens.Model)
		if err != nil {
			return fmt.Errorf("configuration failure: setting up token estimator: %w", err)
		}
	}

	jdbcURL := fmt.Sprintf("jdbc:oracle:thin:@%s:%d/%s", cfg.Oracle.Host, cfg.Oracle.Port, cfg.Oracle.ServiceName)

	execCfg := executor.Config{
		Command:        cfg.Executor.Command,
		Args:           cfg.Executor.Args,
		JDBCURL:        jdbcURL,
		User:           cfg.Oracle.User,
		Password:       cfg.Oracle.Password,
		QueryTimeout:   time.Duration(cfg.Pool.QueryTimeoutSeconds) * time.Second,
	}

	p, err := pool.New(ctx, pool.Config{
		Size:       cfg.Pool.Size,
		MaxWait:    time.Duration(cfg.Pool.MaxWaitSeconds) * time.Second,
		PollPeriod: 100 * time.Millisecond,
		OnEvent:    auditLogger.Event,
	}, execCfg)
	if err != nil {
		return fmt.Errorf("configuration failure: starting executor pool: %w", err)
	}
	defer p.Shutdown()

	v := validator.New(validator.Options{
		MaxComplexity:   cfg.Validator.MaxComplexity,
		MaxRows:         cfg.Validator.MaxRows,
		AllowCrossJoins: cfg.Validator.AllowCrossJoins,
	})
	a := approval.New(time.Duration(cfg.Approval.TokenExpirySeconds) * time.Second)
	l := ratelimit.New(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowSeconds)*time.Second)
	b := breaker.New("oracle-pool", breaker.Config{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		RecoveryTimeout:  time.Duration(cfg.Breaker.RecoveryTimeoutSeconds) * time.Second,
		SuccessThreshold: cfg.Breaker.SuccessThreshold,
		OnEvent:          auditLogger.Event,
	})

	pipe := pipeline.New(v, a, l, b, p)

	gw := &gatewayServer{
		pipe:            pipe,
		estimator:       estimator,
		audit:           auditLogger,
		maxRows:         cfg.Validator.MaxRows,
		maxComplexity:   cfg.Validator.MaxComplexity,
		allowCrossJoins: cfg.Validator.AllowCrossJoins,
	}

	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "oracle-guardrail-gateway",
			Version: "0.1.0",
		},
		nil,
	)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "preview_query",
		Description: "Validate a read-only SQL query and report its safety and complexity, and issue the approval token query_oracle requires, without executing it",
	}, gw.toolPreviewQuery)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "query_oracle",
		Description: "Execute a validated read-only SQL query against Oracle, applying a row cap and requiring the approval token issued by preview_query",
	}, gw.toolQueryOracle)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "describe_table",
		Description: "Describe the columns and primary key of a table",
	}, gw.toolDescribeTable)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_tables",
		Description: "List tables, optionally scoped to a schema",
	}, gw.toolListTables)

	server.AddResource(&mcp.Resource{
		URI:      "oracle://connection",
		Name:     "connection-status",
		MIMEType: "text/plain",
	}, gw.resourceConnection)

	server.AddResource(&mcp.Resource{
		URI:      "oracle://info",
		Name:     "database-info",
		MIMEType: "application/json",
	}, gw.resourceInfo)

	return server.Run(ctx, &mcp.StdioTransport{})
}
