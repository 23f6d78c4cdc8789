//go:build integration

// tests/integration/pool_fixture_test.go
// Integration test driving internal/pool and internal/executor against a
// real subprocess (cmd/fakeexecutor) and a real throwaway MySQL database,
// instead of mocking either layer.
package integration

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	tc "github.com/testcontainers/testcontainers-go"
	tc_mysql "github.com/testcontainers/testcontainers-go/modules/mysql"

	"github.com/askdba/oracle-guardrail-gateway/internal/executor"
	"github.com/askdba/oracle-guardrail-gateway/internal/pool"
)

func startFixtureMySQLContainer(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	mysqlContainer, err := tc_mysql.Run(
		ctx,
		"mysql:8.0.36",
		tc_mysql.WithDatabase("testdb"),
		tc_mysql.WithUsername("testuser"),
		tc_mysql.WithPassword("testpass"),
	)
	if err != nil {
		t.Fatalf("failed to start mysql container: %v", err)
	}
	t.Cleanup(func() {
		if err := tc.TerminateContainer(mysqlContainer); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := mysqlContainer.ConnectionString(ctx, "parseTime=true")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}
	return dsn
}

func seedFixtureSchema(t *testing.T, dsn string) {
	t.Helper()
	ctx := context.Background()

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	defer db.Close()

	ctxPing, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	for {
		if err := db.PingContext(ctxPing); err == nil {
			break
		}
		select {
		case <-time.After(time.Second):
		case <-ctxPing.Done():
			t.Fatalf("failed to ping db within timeout: %v", ctxPing.Err())
		}
	}

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE employees (
			id   INT AUTO_INCREMENT PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			dept VARCHAR(255) NOT NULL
		)
	`); err != nil {
		t.Fatalf("failed to create table: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO employees (name, dept) VALUES ('Ada', 'eng'), ('Grace', 'eng'), ('Hedy', 'legal')`); err != nil {
		t.Fatalf("failed to seed rows: %v", err)
	}
}

func TestIntegration_PoolExecutesAgainstRealSubprocessAndDatabase(t *testing.T) {
	t.Parallel()

	dsn := startFixtureMySQLContainer(t)
	seedFixtureSchema(t, dsn)

	t.Setenv("FAKEEXECUTOR_DSN", dsn)

	execCfg := executor.Config{
		Command:        "go",
		Args:           []string{"run", "../../cmd/fakeexecutor"},
		User:           "testuser",
		Password:       "testpass",
		StartupTimeout: 60 * time.Second,
		QueryTimeout:   10 * time.Second,
	}

	ctx := context.Background()
	p, err := pool.New(ctx, pool.Config{Size: 2, MaxWait: 30 * time.Second, PollPeriod: 100 * time.Millisecond}, execCfg)
	if err != nil {
		t.Fatalf("failed to start pool: %v", err)
	}
	defer p.Shutdown()

	resp, err := p.Execute(ctx, "SELECT * FROM employees WHERE dept = 'eng' AND ROWNUM <= 10")
	if err != nil {
		t.Fatalf("unexpected error executing query: %v", err)
	}
	if len(resp.Rows) != 2 {
		t.Fatalf("expected 2 rows for dept='eng', got %d", len(resp.Rows))
	}

	healthy, total := p.HealthCheck()
	if total != 2 || healthy != 2 {
		t.Fatalf("expected both pool slots healthy, got %d/%d", healthy, total)
	}
}
