// Package upstash implements vectorstore.Store against the Upstash Vector
// REST API.
package upstash

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/poiesic/cebingest/core"
	"github.com/poiesic/cebingest/vectorstore"
)

// DefaultTimeout bounds a single request.
const DefaultTimeout = 30 * time.Second

const maxErrorBody = 4096

// Config holds the REST endpoint and token of an index.
type Config struct {
	URL     string
	Token   string
	Timeout time.Duration
}

// Validate checks that credentials are present and the URL parses.
func (c *Config) Validate() error {
	if c.URL == "" || c.Token == "" {
		return fmt.Errorf("upstash config: %w: UPSTASH_VECTOR_REST_URL and UPSTASH_VECTOR_REST_TOKEN are required",
			vectorstore.ErrMissingCredentials)
	}
	u, err := url.Parse(c.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("upstash config: invalid URL %q", c.URL)
	}
	return nil
}

// APIError is a non-2xx response from Upstash.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("upstash error (status %d): %s", e.StatusCode, e.Message)
}

// Retryable reports whether the status suggests a transient condition.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode == http.StatusRequestTimeout ||
		e.StatusCode >= 500
}

// Client talks to one Upstash Vector index.
type Client struct {
	http    *http.Client
	baseURL string
	token   string
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.http = client
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a Client.
func New(config Config, opts ...Option) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	c := &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: strings.TrimSuffix(config.URL, "/"),
		token:   config.Token,
		logger:  slog.Default().With("component", "upstash"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type envelope struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error,omitempty"`
	Status int             `json:"status,omitempty"`
}

type queryBody struct {
	Vector          []float32 `json:"vector"`
	TopK            int       `json:"topK"`
	IncludeMetadata bool      `json:"includeMetadata"`
}

// Upsert implements vectorstore.Store.
func (c *Client) Upsert(ctx context.Context, namespace string, items []vectorstore.UploadItem) error {
	if namespace == "" {
		return core.Permanent(vectorstore.ErrEmptyNamespace)
	}
	if len(items) == 0 {
		return nil
	}
	c.logger.Debug("upserting vectors", "namespace", namespace, "count", len(items))

	_, err := c.do(ctx, http.MethodPost, "/upsert/"+url.PathEscape(namespace), items)
	return err
}

// Query implements vectorstore.Store.
func (c *Client) Query(ctx context.Context, req vectorstore.QueryRequest) ([]vectorstore.Match, error) {
	if req.Namespace == "" {
		return nil, core.Permanent(vectorstore.ErrEmptyNamespace)
	}

	raw, err := c.do(ctx, http.MethodPost, "/query/"+url.PathEscape(req.Namespace), queryBody{
		Vector:          req.Vector,
		TopK:            req.TopK,
		IncludeMetadata: req.IncludeMetadata,
	})
	if err != nil {
		return nil, err
	}

	var matches []vectorstore.Match
	if err := json.Unmarshal(raw, &matches); err != nil {
		return nil, fmt.Errorf("decode query result: %w", err)
	}
	return matches, nil
}

// Info implements vectorstore.Store.
func (c *Client) Info(ctx context.Context) (*vectorstore.Info, error) {
	raw, err := c.do(ctx, http.MethodGet, "/info", nil)
	if err != nil {
		return nil, err
	}

	var info vectorstore.Info
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, fmt.Errorf("decode info: %w", err)
	}
	return &info, nil
}

// do sends one request and returns the "result" member of the response.
func (c *Client) do(ctx context.Context, method, path string, payload any) (json.RawMessage, error) {
	var body io.Reader = http.NoBody
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, core.Permanent(fmt.Errorf("marshal request: %w", err))
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, core.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if env.Error != "" {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: env.Error}
	}
	return env.Result, nil
}

func statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	var env envelope
	if json.Unmarshal(raw, &env) == nil && env.Error != "" {
		apiErr.Message = env.Error
	}

	if apiErr.Retryable() {
		return apiErr
	}
	return core.Permanent(apiErr)
}

var _ vectorstore.Store = (*Client)(nil)
