// Command payrollctl runs operator tasks: schema migrations and manual job
// triggers.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/fleetledger/fleetledger/cmd/payrollctl/cli"
	"github.com/fleetledger/fleetledger/internal/app"
	"github.com/fleetledger/fleetledger/internal/platform/db"
	"github.com/fleetledger/fleetledger/migrations"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return 2
	}
	cfg, err := app.LoadConfig()
	if err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return 1
	}
	logger := app.NewLogger(cfg)

	switch args[0] {
	case "migrate":
		pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: 2})
		if err != nil {
			logger.Error("connect postgres", slog.Any("error", err))
			return 1
		}
		defer pool.Close()
		applied, err := db.Migrate(ctx, pool, migrations.Files)
		if err != nil {
			logger.Error("migrate", slog.Any("error", err))
			return 1
		}
		if len(applied) == 0 {
			fmt.Fprintln(stdout, "schema up to date")
			return 0
		}
		for _, name := range applied {
			fmt.Fprintf(stdout, "applied %s\n", name)
		}
		return 0
	case "jobs":
		jobsCLI := cli.NewJobsCLI(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer func() {
			if err := jobsCLI.Close(); err != nil {
				logger.Warn("jobs cli close", slog.Any("error", err))
			}
		}()
		return jobsCLI.Run(ctx, args[1:], stdout, stderr)
	default:
		usage(stderr)
		return 2
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: payrollctl <migrate|jobs> [args]")
	fmt.Fprintln(w, "  migrate                          apply pending SQL migrations")
	fmt.Fprintln(w, "  jobs trigger <task> [flags]      enqueue a payroll job")
	fmt.Fprintln(w, "  jobs stats                       show default queue counters")
	fmt.Fprintln(w, "  jobs scheduled [--size N]        list scheduled tasks")
}
