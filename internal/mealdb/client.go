// Package mealdb — клиент TheMealDB: поиск блюд по основному ингредиенту.
package mealdb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/vladislavdragonenkov/mealorders/internal/domain"
	"github.com/vladislavdragonenkov/mealorders/internal/metrics"
	"github.com/vladislavdragonenkov/mealorders/internal/tracing"
)

// DefaultBaseURL — публичный endpoint TheMealDB с тестовым ключом "1".
const DefaultBaseURL = "https://www.themealdb.com/api/json/v1/1"

const maxBodyBytes = 4 << 20

// NormalizeIngredient приводит ввод к формату токена TheMealDB:
// обрезает пробелы, переводит в нижний регистр и заменяет серии пробелов на "_".
// Пробелом считается любой unicode.IsSpace, включая неразрывный.
func NormalizeIngredient(raw string) string {
	return strings.Join(strings.Fields(strings.ToLower(raw)), "_")
}

// filterResponse — ответ filter.php; meals == nil означает отсутствие совпадений.
type filterResponse struct {
	Meals []domain.Meal `json:"meals"`
}

// Options задаёт параметры клиента.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *log.Entry
	Metrics    *metrics.OrderMetrics
}

// Option настраивает Client.
type Option func(*Options)

// WithBaseURL задаёт адрес API (для тестов и зеркал).
func WithBaseURL(baseURL string) Option {
	return func(opts *Options) {
		opts.BaseURL = baseURL
	}
}

// WithHTTPClient задаёт http.Client.
func WithHTTPClient(client *http.Client) Option {
	return func(opts *Options) {
		opts.HTTPClient = client
	}
}

// WithLogger задаёт logger клиента.
func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithMetrics задаёт метрики обращений.
func WithMetrics(m *metrics.OrderMetrics) Option {
	return func(opts *Options) {
		opts.Metrics = m
	}
}

// Client выполняет один GET-запрос на каждый поиск, без повторов.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *log.Entry
	metrics    *metrics.OrderMetrics
}

// NewClient создаёт клиент TheMealDB.
func NewClient(options ...Option) *Client {
	opts := Options{BaseURL: DefaultBaseURL}
	for _, option := range options {
		option(&opts)
	}

	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.Logger == nil {
		opts.Logger = log.WithField("component", "mealdb-client")
	}

	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
	}
}

// FetchByIngredient ищет блюда по ингредиенту. Пустой срез без ошибки означает штатный
// исход «ничего не найдено»; любые сбои транспорта и статусы кроме 2xx
// возвращаются как domain.ErrRemote.
func (c *Client) FetchByIngredient(ctx context.Context, rawIngredient string) ([]domain.Meal, error) {
	token := NormalizeIngredient(rawIngredient)
	ctx, span := tracing.StartSpan(ctx, "mealdb.FetchByIngredient", attribute.String("mealdb.ingredient", token))
	defer span.End()

	logger := c.logger.WithField("ingredient", token)
	if traceID := tracing.TraceID(ctx); traceID != "" {
		logger = logger.WithField("trace_id", traceID)
	}
	start := time.Now()

	meals, err := c.fetch(ctx, token)
	duration := time.Since(start)
	if err != nil {
		tracing.RecordError(span, err)
		c.metrics.RecordLookup(metrics.LookupResultError, duration)
		logger.WithError(err).WithField("duration", duration).Warn("meal lookup failed")
		return nil, err
	}

	result := metrics.LookupResultMatch
	if len(meals) == 0 {
		result = metrics.LookupResultNoMatch
	}
	c.metrics.RecordLookup(result, duration)
	span.SetAttributes(attribute.Int("mealdb.matches", len(meals)))
	logger.WithFields(log.Fields{
		"matches":  len(meals),
		"duration": duration,
	}).Debug("meal lookup finished")

	return meals, nil
}

func (c *Client) fetch(ctx context.Context, token string) ([]domain.Meal, error) {
	endpoint := c.baseURL + "/filter.php?i=" + url.QueryEscape(token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %v: %w", err, domain.ErrRemote)
	}
	req.Header.Set("Accept", "application/json")
	tracing.Inject(ctx, req.Header)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %v: %w", token, err, domain.ErrRemote)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, fmt.Errorf("API error: %d: %w", resp.StatusCode, domain.ErrRemote)
	}

	var payload filterResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode response: %v: %w", err, domain.ErrRemote)
	}
	if payload.Meals == nil {
		return []domain.Meal{}, nil
	}
	return payload.Meals, nil
}

var _ domain.MealLookup = (*Client)(nil)
