// Команда migrate применяет встроенные миграции схемы сессий PostgreSQL.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/mealorders/internal/storage/postgres"
)

const defaultTimeout = 30 * time.Second

type config struct {
	direction string
	steps     int
	dsn       string
	timeout   time.Duration
}

type migrator interface {
	MigrateUp(ctx context.Context, steps int) error
	MigrateDown(ctx context.Context, steps int) error
	MigrationStatus(ctx context.Context) (postgres.MigrationState, error)
	Close() error
}

var openMigrator = func(ctx context.Context, dsn string) (migrator, error) {
	return postgres.Open(ctx, dsn)
}

func main() {
	cfg, err := readConfig()
	if err != nil {
		fail("%v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.timeout)
	defer cancel()

	if err := run(ctx, cfg, os.Stdout); err != nil {
		fail("%v", err)
	}
}

func readConfig() (config, error) {
	cfg := config{}
	flag.StringVar(&cfg.direction, "direction", "up", "migration direction: up|down|status")
	flag.IntVar(&cfg.steps, "steps", 0, "number of migrations to apply/rollback (0=all for up, 1 for down)")
	flag.StringVar(&cfg.dsn, "dsn", "", "PostgreSQL DSN (fallback: POSTGRES_DSN)")
	flag.DurationVar(&cfg.timeout, "timeout", defaultTimeout, "overall timeout")
	flag.Parse()

	cfg.direction = strings.ToLower(strings.TrimSpace(cfg.direction))
	if strings.TrimSpace(cfg.dsn) == "" {
		cfg.dsn = strings.TrimSpace(os.Getenv("POSTGRES_DSN"))
	}
	if cfg.dsn == "" {
		return config{}, fmt.Errorf("POSTGRES_DSN (or -dsn) is required")
	}
	switch cfg.direction {
	case "up", "down", "status":
	default:
		return config{}, fmt.Errorf("unsupported direction: %s (use up|down|status)", cfg.direction)
	}
	if cfg.steps < 0 {
		return config{}, fmt.Errorf("steps must be >= 0")
	}
	if cfg.timeout <= 0 {
		return config{}, fmt.Errorf("timeout must be > 0")
	}
	return cfg, nil
}

func run(ctx context.Context, cfg config, out io.Writer) error {
	m, err := openMigrator(ctx, cfg.dsn)
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	defer m.Close()

	switch cfg.direction {
	case "up":
		if err := m.MigrateUp(ctx, cfg.steps); err != nil {
			return fmt.Errorf("migrate up failed: %w", err)
		}
	case "down":
		if err := m.MigrateDown(ctx, cfg.steps); err != nil {
			return fmt.Errorf("migrate down failed: %w", err)
		}
	case "status":
	default:
		return fmt.Errorf("unsupported direction: %s", cfg.direction)
	}

	state, err := m.MigrationStatus(ctx)
	if err != nil {
		return fmt.Errorf("migration status failed: %w", err)
	}
	_, err = fmt.Fprintf(out, "%s ok: version=%d applied=%d pending=%d\n",
		cfg.direction, state.Version, state.Applied, state.Pending)
	return err
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
