package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultTimeout          = 60 * time.Second
	errorBodyReadLimit int64 = 1024
)

var errEndpointRequired = errors.New("generation endpoint is required")

// Generator produces the content for a paid call. Implementations must not
// touch balances.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Result, error)
}

// HTTPGenerator posts requests to an upstream generation service.
type HTTPGenerator struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
}

// Option configures optional generator behavior.
type Option func(*HTTPGenerator)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(g *HTTPGenerator) {
		if client != nil {
			g.httpClient = client
		}
	}
}

// WithTimeout overrides the request timeout of the default client.
func WithTimeout(timeout time.Duration) Option {
	return func(g *HTTPGenerator) {
		if timeout > 0 {
			g.httpClient.Timeout = timeout
		}
	}
}

// NewHTTPGenerator builds a generator for endpoint. apiKey is sent as a
// bearer token when set.
func NewHTTPGenerator(endpoint, apiKey string, opts ...Option) (*HTTPGenerator, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return nil, errEndpointRequired
	}

	g := &HTTPGenerator{
		endpoint:   trimmed,
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g, nil
}

func (g *HTTPGenerator) Generate(ctx context.Context, req Request) (*Result, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal generation request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build generation request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute generation request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
		return nil, fmt.Errorf("generation failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode generation response: %w", err)
	}
	if len(result.Output) == 0 {
		return nil, errors.New("generation response has no output")
	}
	return &result, nil
}
