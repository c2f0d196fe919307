// Команда loadtest генерирует нагрузку на HTTP-интерфейс meal-orders: каждый
// воркер работает в своей сессии (отдельный cookie jar) и выполняет сценарии
// создания, завершения и очистки заказов.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

type loadMode string

const (
	modeCreate              loadMode = "create"
	modeCreateComplete      loadMode = "create-complete"
	modeCreateCompleteClear loadMode = "create-complete-clear"
)

type config struct {
	baseURL     string
	total       int
	totalSet    bool
	duration    time.Duration
	concurrency int
	timeout     time.Duration
	mode        loadMode
	ingredients []string
	outputPath  string
}

func parseConfig() (config, error) {
	var cfg config
	var modeValue string
	var timeoutValue string
	var durationValue string
	var ingredientsValue string

	flag.StringVar(&cfg.baseURL, "url", "http://localhost:8080", "meal-orders base URL")
	flag.IntVar(&cfg.total, "total", 200, "total scenarios to execute in count mode; in duration mode only used when explicitly set")
	flag.StringVar(&durationValue, "duration", "0s", "optional time-based run duration (e.g. 1m, 10m)")
	flag.IntVar(&cfg.concurrency, "concurrency", 20, "number of concurrent sessions")
	flag.StringVar(&timeoutValue, "timeout", "15s", "per-request timeout")
	flag.StringVar(&modeValue, "mode", string(modeCreate), "load mode: create | create-complete | create-complete-clear")
	flag.StringVar(&ingredientsValue, "ingredients", "chicken,beef,salmon,lemon", "comma-separated ingredients to cycle through")
	flag.StringVar(&cfg.outputPath, "output", "", "optional JSON report output file path")
	flag.Parse()

	timeout, err := time.ParseDuration(strings.TrimSpace(timeoutValue))
	if err != nil {
		return cfg, fmt.Errorf("parse timeout: %w", err)
	}
	cfg.timeout = timeout

	duration, err := time.ParseDuration(strings.TrimSpace(durationValue))
	if err != nil {
		return cfg, fmt.Errorf("parse duration: %w", err)
	}
	cfg.duration = duration

	flag.CommandLine.Visit(func(f *flag.Flag) {
		if f.Name == "total" {
			cfg.totalSet = true
		}
	})

	mode, err := parseMode(modeValue)
	if err != nil {
		return cfg, err
	}
	cfg.mode = mode

	for _, ingredient := range strings.Split(ingredientsValue, ",") {
		if ingredient = strings.TrimSpace(ingredient); ingredient != "" {
			cfg.ingredients = append(cfg.ingredients, ingredient)
		}
	}

	if _, err := url.ParseRequestURI(cfg.baseURL); err != nil {
		return cfg, fmt.Errorf("parse url: %w", err)
	}
	if cfg.duration < 0 {
		return cfg, errors.New("duration must be >= 0")
	}
	if cfg.duration == 0 && cfg.total <= 0 {
		return cfg, errors.New("total must be > 0 when duration is not set")
	}
	if cfg.duration > 0 && cfg.totalSet && cfg.total <= 0 {
		return cfg, errors.New("total must be > 0 when explicitly set with duration")
	}
	if cfg.concurrency <= 0 {
		return cfg, errors.New("concurrency must be > 0")
	}
	if cfg.timeout <= 0 {
		return cfg, errors.New("timeout must be > 0")
	}
	if len(cfg.ingredients) == 0 {
		return cfg, errors.New("at least one ingredient is required")
	}

	return cfg, nil
}

func parseMode(value string) (loadMode, error) {
	switch mode := loadMode(strings.TrimSpace(value)); mode {
	case modeCreate, modeCreateComplete, modeCreateCompleteClear:
		return mode, nil
	default:
		return "", fmt.Errorf("unsupported mode: %s", value)
	}
}

// run выполняет нагрузку и возвращает отчёт.
func run(ctx context.Context, cfg config) (report, error) {
	clients := make([]*sessionClient, 0, cfg.concurrency)
	for i := 0; i < cfg.concurrency; i++ {
		client, err := newSessionClient(cfg.baseURL, cfg.timeout)
		if err != nil {
			return report{}, err
		}
		clients = append(clients, client)
	}

	startedAt := time.Now()
	col := newCollector()
	jobs := make(chan int, cfg.concurrency*2)

	g, gctx := errgroup.WithContext(ctx)
	for _, client := range clients {
		g.Go(func() error {
			for id := range jobs {
				// Ошибки сценария уже учтены в collector.
				_ = runScenario(gctx, client, cfg, id, col)
			}
			return nil
		})
	}

	dispatchJobs(jobs, cfg)
	if err := g.Wait(); err != nil {
		return report{}, err
	}

	return col.buildReport(startedAt, time.Since(startedAt)), nil
}

func main() {
	cfg, err := parseConfig()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	result, err := run(context.Background(), cfg)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "load test failed: %v\n", err)
		os.Exit(1)
	}

	printReport(result, cfg)
	if cfg.outputPath != "" {
		if err := writeJSONReport(cfg.outputPath, result); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to write report: %v\n", err)
			os.Exit(1)
		}
	}

	if result.FailedScenarios > 0 {
		os.Exit(1)
	}
}
