package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	scenarioMethod = "scenario"
	methodCreate   = "CreateOrder"
	methodComplete = "CompleteOrder"
	methodClear    = "ClearAll"
)

// actionResult содержит часть JSON-ответа сервиса, нужная генератору нагрузки.
type actionResult struct {
	Order *struct {
		Number int `json:"orderNumber"`
	} `json:"order"`
}

// sessionClient работает как HTTP-клиент одной браузерной сессии: cookie сессии живёт в jar.
type sessionClient struct {
	baseURL string
	http    *http.Client
}

func newSessionClient(baseURL string, timeout time.Duration) (*sessionClient, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &sessionClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Jar: jar, Timeout: timeout},
	}, nil
}

// post отправляет форму и возвращает HTTP статус и разобранный ответ.
func (c *sessionClient) post(ctx context.Context, path string, form url.Values) (int, actionResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return codeTransportError, actionResult{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return codeTransportError, actionResult{}, err
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, actionResult{}, fmt.Errorf("%s returned %d", path, resp.StatusCode)
	}

	var result actionResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return codeTransportError, actionResult{}, fmt.Errorf("decode %s response: %w", path, err)
	}
	return resp.StatusCode, result, nil
}

func (c *sessionClient) call(ctx context.Context, method, path string, form url.Values, col *collector) (actionResult, int, error) {
	start := time.Now()
	code, result, err := c.post(ctx, path, form)
	col.record(method, time.Since(start), code)
	return result, code, err
}

// runScenario выполняет один сценарий в сессии клиента.
func runScenario(ctx context.Context, client *sessionClient, cfg config, index int, col *collector) error {
	scenarioStart := time.Now()
	scenarioCode := http.StatusOK
	defer func() {
		col.record(scenarioMethod, time.Since(scenarioStart), scenarioCode)
	}()

	ingredient := cfg.ingredients[index%len(cfg.ingredients)]
	created, code, err := client.call(ctx, methodCreate, "/orders", url.Values{"ingredient": {ingredient}}, col)
	if err != nil {
		scenarioCode = code
		return err
	}
	if created.Order == nil || created.Order.Number <= 0 {
		scenarioCode = codeTransportError
		return errors.New("create response returned no order number")
	}

	if cfg.mode == modeCreate {
		return nil
	}

	form := url.Values{"orderNumber": {strconv.Itoa(created.Order.Number)}}
	if _, code, err := client.call(ctx, methodComplete, "/orders/complete", form, col); err != nil {
		scenarioCode = code
		return err
	}

	if cfg.mode == modeCreateCompleteClear {
		if _, code, err := client.call(ctx, methodClear, "/orders/clear", url.Values{"confirm": {"yes"}}, col); err != nil {
			scenarioCode = code
			return err
		}
	}

	return nil
}

func dispatchJobs(jobs chan<- int, cfg config) {
	defer close(jobs)

	if cfg.duration <= 0 {
		for i := 0; i < cfg.total; i++ {
			jobs <- i
		}
		return
	}

	timer := time.NewTimer(cfg.duration)
	defer timer.Stop()

	for i := 0; ; i++ {
		if cfg.totalSet && i >= cfg.total {
			return
		}

		select {
		case <-timer.C:
			return
		case jobs <- i:
		}
	}
}
