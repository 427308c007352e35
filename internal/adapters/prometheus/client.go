package prometheus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/intura-ai/intura-go/internal/infrastructure/config"
	"github.com/intura-ai/intura-go/internal/ports"
)

// Metric names as exposed by Prometheus for the usage exporter.
const (
	tokenMetric      = "intura_chat_tokens_total"
	invocationMetric = "intura_chat_invocations_total"
)

var ErrDisabled = errors.New("prometheus client is disabled or URL not configured")

// Client queries Prometheus for live usage metrics.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new Prometheus client.
func NewClient(cfg config.Prometheus) (*Client, error) {
	if !cfg.Enabled || cfg.URL == "" {
		return nil, ErrDisabled
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}, nil
}

type queryResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
	Data   struct {
		ResultType string `json:"resultType"`
		Result     []struct {
			Metric map[string]string `json:"metric"`
			Value  []any             `json:"value"`
		} `json:"result"`
	} `json:"data"`
}

// RollingWindowUsage sums token and invocation counters over the last hours.
// An empty experimentID covers every experiment.
func (c *Client) RollingWindowUsage(ctx context.Context, experimentID string, hours int) (*ports.UsageWindow, error) {
	window := &ports.UsageWindow{WindowHours: hours}
	if hours <= 0 {
		return window, fmt.Errorf("window must be at least one hour, got %d", hours)
	}

	var err error
	if window.InputTokens, err = c.queryScalar(ctx, increase(tokenMetric, hours, experimentID, "input")); err != nil {
		return window, fmt.Errorf("querying input tokens: %w", err)
	}
	if window.OutputTokens, err = c.queryScalar(ctx, increase(tokenMetric, hours, experimentID, "output")); err != nil {
		return window, fmt.Errorf("querying output tokens: %w", err)
	}
	if window.Invocations, err = c.queryScalar(ctx, increase(invocationMetric, hours, experimentID, "")); err != nil {
		return window, fmt.Errorf("querying invocations: %w", err)
	}
	window.Available = true
	return window, nil
}

func increase(metric string, hours int, experimentID, tokenType string) string {
	var matchers []string
	if experimentID != "" {
		matchers = append(matchers, fmt.Sprintf("experiment_id=%q", experimentID))
	}
	if tokenType != "" {
		matchers = append(matchers, fmt.Sprintf("type=%q", tokenType))
	}
	selector := metric
	if len(matchers) > 0 {
		selector += "{" + strings.Join(matchers, ",") + "}"
	}
	return fmt.Sprintf("sum(increase(%s[%dh]))", selector, hours)
}

// IsAvailable checks if Prometheus is reachable.
func (c *Client) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/-/ready", nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

// queryScalar runs an instant query and returns the first sample, or zero
// when the query matched nothing.
func (c *Client) queryScalar(ctx context.Context, query string) (float64, error) {
	u, err := url.Parse(c.baseURL + "/api/v1/query")
	if err != nil {
		return 0, fmt.Errorf("parsing URL: %w", err)
	}
	q := u.Query()
	q.Set("query", query)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var body queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("decoding response: %w", err)
	}
	if body.Status != "success" {
		return 0, fmt.Errorf("prometheus query failed: %s %s", body.Status, body.Error)
	}
	if len(body.Data.Result) == 0 {
		return 0, nil
	}

	sample := body.Data.Result[0].Value
	if len(sample) < 2 {
		return 0, fmt.Errorf("unexpected result format")
	}
	s, ok := sample[1].(string)
	if !ok {
		return 0, fmt.Errorf("unexpected value type %T", sample[1])
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing value: %w", err)
	}
	return v, nil
}
