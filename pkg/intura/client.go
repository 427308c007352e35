// Package intura is a client for the Intura experimentation dashboard API.
//
// A Client authenticates with an API key, validates it on construction and
// exposes the experiment, model catalogue, chat model build and event
// tracking endpoints. All methods take a context and return explicit errors;
// any answer other than 200 is reported as *APIError.
package intura

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/intura-ai/intura-go/internal/buildinfo"
	"github.com/intura-ai/intura-go/internal/logging"
)

// DefaultBaseURL is the hosted dashboard.
const DefaultBaseURL = "https://intura-be-external-server-566556985624.asia-southeast2.run.app"

const (
	apiVersion        = "v1"
	defaultMaxRetries = 2
	maxErrorBody      = 100
	maxResponseBody   = 10 << 20
)

type endpoint string

const (
	endpointValidateAPIKey     endpoint = "validate_api_key"
	endpointValidateExperiment endpoint = "validate_experiment"
	endpointInsertInference    endpoint = "insert_inference"
	endpointExperiment         endpoint = "experiment"
	endpointListModels         endpoint = "list_models"
	endpointExperimentDetail   endpoint = "experiment_detail"
	endpointBuildChatModel     endpoint = "build_chat_model"
	endpointTrackReward        endpoint = "track_reward"
)

var endpoints = map[endpoint]string{
	endpointValidateAPIKey:     "external/validate-api-key",
	endpointValidateExperiment: "external/validate-experiment",
	endpointInsertInference:    "external/insert/inference",
	endpointExperiment:         "experiment",
	endpointListModels:         "experiment/models",
	endpointExperimentDetail:   "experiment/detail",
	endpointBuildChatModel:     "experiment/build/chat",
	endpointTrackReward:        "ai/track",
}

// Client talks to the dashboard API.
type Client struct {
	apiKey      string
	baseURL     string
	httpClient  *http.Client
	logger      *slog.Logger
	maxRetries  uint64
	newBackOff  func() backoff.BackOff
	uploadUsage bool
	validate    bool
	now         func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another dashboard deployment.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithMaxRetries sets how many times an idempotent request is retried after
// a transport error or a 5xx answer.
func WithMaxRetries(n uint64) Option {
	return func(c *Client) { c.maxRetries = n }
}

// WithBackOff replaces the exponential retry schedule.
func WithBackOff(fn func() backoff.BackOff) Option {
	return func(c *Client) {
		if fn != nil {
			c.newBackOff = fn
		}
	}
}

// WithUsageUpload enables the remote CHAT_USAGE event. It is off by default
// and InsertChatUsage then succeeds without a request.
func WithUsageUpload(enabled bool) Option {
	return func(c *Client) { c.uploadUsage = enabled }
}

// WithVerbose turns the client's component logger to debug.
func WithVerbose(verbose bool) Option {
	return func(c *Client) {
		if verbose {
			logging.SetComponentLevel(logging.API, slog.LevelDebug)
		}
	}
}

// WithoutValidation skips the API key check done by NewClient.
func WithoutValidation() Option {
	return func(c *Client) { c.validate = false }
}

// NewClient creates a client for apiKey, falling back to INTURA_API_KEY, and
// validates the key against the dashboard.
func NewClient(ctx context.Context, apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		apiKey = os.Getenv("INTURA_API_KEY")
	}
	logger := logging.Component(logging.API)
	if apiKey == "" {
		logger.Error("Intura API key not found")
		return nil, ErrMissingAPIKey
	}

	c := &Client{
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
		maxRetries: defaultMaxRetries,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxElapsedTime = 10 * time.Second
			return b
		},
		validate: true,
		now:      time.Now,
	}
	if env := os.Getenv("INTURA_API_BASE_URL"); env != "" {
		c.baseURL = strings.TrimRight(env, "/")
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.validate {
		if err := c.ValidateAPIKey(ctx); err != nil {
			if errors.Is(err, ErrInvalidAPIKey) {
				logger.Error("Invalid Intura API key")
			}
			return nil, err
		}
	}

	logger.Debug("client initialized", "base_url", c.baseURL)
	return c, nil
}

// BaseURL returns the dashboard root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) endpointURL(ep endpoint, query url.Values) (string, error) {
	path, ok := endpoints[ep]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownEndpoint, ep)
	}
	u := strings.Join([]string{c.baseURL, apiVersion, path}, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u, nil
}

// response is a successful answer. Data holds the "data" member of a JSON
// envelope and is nil for non JSON answers.
type response struct {
	StatusCode int
	JSON       bool
	Data       json.RawMessage
}

func (c *Client) do(ctx context.Context, method string, ep endpoint, query url.Values, payload any) (*response, error) {
	target, err := c.endpointURL(ep, query)
	if err != nil {
		return nil, err
	}

	var body []byte
	if payload != nil {
		body, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s request: %w", ep, err)
		}
	}

	retries := uint64(0)
	if method == http.MethodGet {
		retries = c.maxRetries
	}

	var out *response
	attempt := 0
	op := func() error {
		attempt++
		resp, err := c.send(ctx, method, target, ep, body)
		if err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.StatusCode < http.StatusInternalServerError {
				return backoff.Permanent(err)
			}
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			c.logger.Debug("request attempt failed", "endpoint", string(ep), "attempt", attempt, "error", err)
			return err
		}
		out = resp
		return nil
	}

	b := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), retries), ctx)
	if err := backoff.Retry(op, b); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) send(ctx context.Context, method, target string, ep endpoint, body []byte) (*response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", ep, err)
	}
	c.setHeaders(req)

	c.logger.Debug("making request", "method", method, "url", target)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("request error", "endpoint", string(ep), "error", err)
		return nil, fmt.Errorf("%w: %v", ErrRequest, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrRequest, err)
	}
	c.logger.Debug("response received", "endpoint", string(ep), "status", resp.StatusCode)

	if resp.StatusCode != http.StatusOK {
		text := truncateBody(raw, maxErrorBody)
		c.logger.Warn("API request failed", "endpoint", string(ep), "status", resp.StatusCode, "body", text)
		return nil, &APIError{Endpoint: string(ep), StatusCode: resp.StatusCode, Body: text}
	}

	out := &response{StatusCode: resp.StatusCode}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		out.JSON = true
		var env struct {
			Data json.RawMessage `json:"data"`
		}
		if len(bytes.TrimSpace(raw)) > 0 {
			if err := json.Unmarshal(raw, &env); err != nil {
				return nil, fmt.Errorf("failed to decode %s response: %w", ep, err)
			}
		}
		out.Data = env.Data
	}
	return out, nil
}

// truncateBody keeps at most n bytes of b without splitting a UTF-8 sequence.
func truncateBody(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	for n > 0 && !utf8.RuneStart(b[n]) {
		n--
	}
	return string(b[:n])
}

// setHeaders stamps a fresh request id and timestamp on every request.
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("x-request-id", uuid.NewString())
	req.Header.Set("x-timestamp", strconv.FormatInt(c.now().UnixMilli(), 10))
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", buildinfo.UserAgent())
}

func decodeData[T any](resp *response, ep endpoint) (T, error) {
	var out T
	if len(resp.Data) == 0 || string(resp.Data) == "null" {
		return out, nil
	}
	if err := json.Unmarshal(resp.Data, &out); err != nil {
		return out, fmt.Errorf("failed to decode %s data: %w", ep, err)
	}
	return out, nil
}

// ValidateAPIKey checks the configured key. A 4xx answer is ErrInvalidAPIKey.
func (c *Client) ValidateAPIKey(ctx context.Context) error {
	c.logger.Debug("validating API key")
	_, err := c.do(ctx, http.MethodGet, endpointValidateAPIKey, nil, nil)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode < http.StatusInternalServerError {
			return fmt.Errorf("%w: %w", ErrInvalidAPIKey, err)
		}
		return err
	}
	return nil
}

// ListExperiments returns all experiments visible to the key.
func (c *Client) ListExperiments(ctx context.Context) ([]Experiment, error) {
	c.logger.Debug("fetching list of experiments")
	resp, err := c.do(ctx, http.MethodGet, endpointExperiment, nil, nil)
	if err != nil {
		return nil, err
	}
	return decodeData[[]Experiment](resp, endpointExperiment)
}

// CreateExperiment creates exp and returns the new experiment id.
func (c *Client) CreateExperiment(ctx context.Context, exp Experiment) (string, error) {
	c.logger.Debug("creating new experiment", "name", exp.Name)
	resp, err := c.do(ctx, http.MethodPost, endpointExperiment, nil, exp)
	if err != nil {
		return "", err
	}
	data, err := decodeData[struct {
		ExperimentID string `json:"experiment_id"`
	}](resp, endpointExperiment)
	if err != nil {
		return "", err
	}
	if data.ExperimentID == "" {
		return "", fmt.Errorf("%w: create experiment response has no experiment_id", ErrRequest)
	}
	c.logger.Info("created experiment", "experiment_id", data.ExperimentID)
	return data.ExperimentID, nil
}

// ListModels returns the dashboard model catalogue.
func (c *Client) ListModels(ctx context.Context) ([]Model, error) {
	c.logger.Debug("fetching list of models")
	resp, err := c.do(ctx, http.MethodGet, endpointListModels, nil, nil)
	if err != nil {
		return nil, err
	}
	return decodeData[[]Model](resp, endpointListModels)
}

// ValidateExperiment reports whether id names a known experiment. A 4xx
// answer is a plain false.
func (c *Client) ValidateExperiment(ctx context.Context, id string) (bool, error) {
	c.logger.Debug("validating experiment", "experiment_id", id)
	_, err := c.do(ctx, http.MethodGet, endpointValidateExperiment, url.Values{"experiment_id": {id}}, nil)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode < http.StatusInternalServerError {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ExperimentDetail fetches a single experiment with its treatments.
func (c *Client) ExperimentDetail(ctx context.Context, id string) (*Experiment, error) {
	c.logger.Debug("fetching experiment detail", "experiment_id", id)
	resp, err := c.do(ctx, http.MethodGet, endpointExperimentDetail, url.Values{"experiment_id": {id}}, nil)
	if err != nil {
		return nil, err
	}
	exp, err := decodeData[Experiment](resp, endpointExperimentDetail)
	if err != nil {
		return nil, err
	}
	if exp.ID == "" {
		exp.ID = id
	}
	return &exp, nil
}

// BuildChatModel asks the dashboard which treatments to serve for features.
func (c *Client) BuildChatModel(ctx context.Context, experimentID string, features map[string]any) ([]ChatModelConfig, error) {
	if features == nil {
		features = map[string]any{}
	}
	c.logger.Debug("building chat model", "experiment_id", experimentID)
	payload := map[string]any{
		"features":      features,
		"experiment_id": experimentID,
	}
	resp, err := c.do(ctx, http.MethodPost, endpointBuildChatModel, nil, payload)
	if err != nil {
		return nil, err
	}
	return decodeData[[]ChatModelConfig](resp, endpointBuildChatModel)
}
