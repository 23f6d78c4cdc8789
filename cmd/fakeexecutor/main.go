// Command fakeexecutor is a test-only stand-in for the real Oracle
// database-adapter subprocess. It speaks the exact line-delimited JSON
// protocol internal/executor expects, but answers queries against a real
// MySQL instance (normally a testcontainers throwaway container) instead of
// Oracle, translating the Oracle-dialect ROWNUM row cap into a MySQL LIMIT
// via internal/fixture. It exists so internal/pool's integration test can
// exercise the real subprocess/pool machinery instead of an in-process fake.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/askdba/oracle-guardrail-gateway/internal/fixture"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fakeexecutor: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// The credential contract matches the real subprocess: ORACLE_USER and
	// ORACLE_PASSWORD travel through the environment only. Here they are
	// reinterpreted as MySQL credentials against a throwaway test database
	// whose address is supplied separately via FAKEEXECUTOR_DSN.
	user := os.Getenv("ORACLE_USER")
	password := os.Getenv("ORACLE_PASSWORD")
	dsn := os.Getenv("FAKEEXECUTOR_DSN")
	if dsn == "" {
		return fmt.Errorf("FAKEEXECUTOR_DSN must be set")
	}
	_ = user
	_ = password

	ctx := context.Background()
	runner, err := fixture.NewRunner(ctx, dsn)
	if err != nil {
		return fmt.Errorf("starting fixture runner: %w", err)
	}
	defer runner.Close()

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	writeLine(out, &fixture.Response{Status: "ready"})

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		switch line {
		case "PING":
			alive := runner.Ping(ctx)
			writeLine(out, &fixture.Response{Status: "alive", Connected: alive})
		case "EXIT":
			return nil
		default:
			resp := runner.Run(ctx, line)
			writeLine(out, resp)
		}
	}
	return scanner.Err()
}

func writeLine(w *bufio.Writer, resp *fixture.Response) {
	line, err := fixture.MarshalResponse(resp)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fakeexecutor: marshal response: %v\n", err)
		return
	}
	w.Write(line)
	w.Flush()
}
