package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"
	"github.com/teilomillet/chatrelay/errors"
	"go.uber.org/zap"
)

const maxErrorBody = 512

// Client calls the generation service. It holds no per-conversation state
// and is safe for concurrent use.
type Client struct {
	http       *resty.Client
	httpClient *http.Client
	baseURL    string
	timeout    time.Duration
	logger     *zap.Logger
	observer   Observer
}

// NewClient creates a client for the service at baseURL. Trailing slashes
// are ignored. An empty baseURL is a ConfigurationError.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return nil, errors.NewConfigurationError("generation service base URL is empty", nil)
	}

	c := &Client{
		baseURL: base,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient != nil {
		c.http = resty.NewWithClient(c.httpClient)
	} else {
		c.http = resty.New()
	}
	c.http.SetHeader("Accept", "application/json")
	if c.timeout > 0 {
		c.http.SetTimeout(c.timeout)
	}

	return c, nil
}

// BaseURL returns the normalized service address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// HealthCheck issues GET {base}/health and returns the decoded body.
func (c *Client) HealthCheck(ctx context.Context) (Health, error) {
	start := time.Now()
	health, err := c.healthCheck(ctx)
	elapsed := time.Since(start)

	c.observe("health", elapsed, err)
	c.logger.Debug("Health check completed",
		zap.String("url", c.baseURL+"/health"),
		zap.Duration("duration", elapsed),
		zap.Error(err),
	)
	return health, err
}

func (c *Client) healthCheck(ctx context.Context) (Health, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		Get(c.baseURL + "/health")
	if err != nil {
		return nil, errors.NewTransportError("", "health check failed", err)
	}
	if !resp.IsSuccess() {
		return nil, errors.NewTransportError("", "health check failed", statusError(resp))
	}

	var health Health
	if err := json.Unmarshal(resp.Body(), &health); err != nil {
		return nil, errors.NewTransportError("", "health check returned an invalid body", err)
	}
	if health == nil {
		return nil, errors.NewTransportError("", "health check returned an invalid body",
			fmt.Errorf("expected a JSON object"))
	}
	return health, nil
}

// Generate issues POST {base}/generate for prompt. Sampling parameters
// default to 512 / 0.7 / 0.9 / true unless overridden by opts. The returned
// result carries TotalRequestTime measured around the call.
func (c *Client) Generate(ctx context.Context, prompt string, opts ...GenerateOption) (*Result, error) {
	req := NewRequest(prompt, opts...)

	start := time.Now()
	result, err := c.generate(ctx, req)
	elapsed := time.Since(start)

	c.observe("generate", elapsed, err)
	c.logger.Debug("Generation completed",
		zap.String("url", c.baseURL+"/generate"),
		zap.Int("prompt_length", len(req.Prompt)),
		zap.Int("max_new_tokens", req.MaxNewTokens),
		zap.Duration("duration", elapsed),
		zap.Error(err),
	)
	if err != nil {
		return nil, err
	}

	result.TotalRequestTime = elapsed.Seconds()
	return result, nil
}

func (c *Client) generate(ctx context.Context, req Request) (*Result, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		Post(c.baseURL + "/generate")
	if err != nil {
		return nil, errors.NewTransportError("", "generation request failed", err)
	}
	if !resp.IsSuccess() {
		return nil, errors.NewTransportError("", "generation request failed", statusError(resp))
	}

	var body struct {
		GeneratedText string   `json:"generated_text"`
		ResponseTime  *float64 `json:"response_time"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, errors.NewTransportError("", "generation returned an invalid body", err)
	}
	if body.ResponseTime == nil {
		return nil, errors.NewTransportError("", "generation returned an invalid body",
			fmt.Errorf("missing response_time"))
	}
	return &Result{
		GeneratedText: body.GeneratedText,
		ResponseTime:  *body.ResponseTime,
	}, nil
}

func (c *Client) observe(operation string, d time.Duration, err error) {
	if c.observer != nil {
		c.observer.ObserveCall(operation, d, err)
	}
}

func statusError(resp *resty.Response) error {
	body := strings.TrimSpace(resp.String())
	if len(body) > maxErrorBody {
		cut := maxErrorBody
		for cut > 0 && !utf8.RuneStart(body[cut]) {
			cut--
		}
		body = body[:cut]
	}
	if body == "" {
		return fmt.Errorf("unexpected status %s", resp.Status())
	}
	return fmt.Errorf("unexpected status %s: %s", resp.Status(), body)
}
