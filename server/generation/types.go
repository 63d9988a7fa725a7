// Package generation is the client for the remote text-generation service.
// The service exposes two endpoints under a configured base address:
//
//	GET  {base}/health    any JSON object
//	POST {base}/generate  {prompt, max_new_tokens, temperature, top_p, do_sample}
//
// Both calls are synchronous with no retry. Every failure is reported as a
// TransportError from the errors package.
package generation

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Default sampling parameters sent when no GenerateOption overrides them.
const (
	DefaultMaxNewTokens = 512
	DefaultTemperature  = 0.7
	DefaultTopP         = 0.9
	DefaultDoSample     = true
)

// Request is the body of POST /generate. It carries exactly these five fields.
type Request struct {
	Prompt       string  `json:"prompt"`
	MaxNewTokens int     `json:"max_new_tokens"`
	Temperature  float64 `json:"temperature"`
	TopP         float64 `json:"top_p"`
	DoSample     bool    `json:"do_sample"`
}

// Result is the decoded response of POST /generate.
type Result struct {
	// GeneratedText is the model output. It may be empty; callers decide
	// whether that is acceptable.
	GeneratedText string `json:"generated_text"`

	// ResponseTime is the model processing time reported by the service, in seconds.
	ResponseTime float64 `json:"response_time"`

	// TotalRequestTime is the wall-clock duration of the call measured by
	// this client, in seconds. Any value sent by the service is overwritten.
	TotalRequestTime float64 `json:"total_request_time"`
}

// Health is the decoded body of GET /health. Its schema is owned by the
// service; the client only requires a JSON object.
type Health map[string]interface{}

// Observer receives the duration and outcome of every remote call.
// operation is either "health" or "generate".
type Observer interface {
	ObserveCall(operation string, d time.Duration, err error)
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds each remote call. Zero keeps the transport default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithHTTPClient sends requests through hc instead of a default client.
// Timeouts set with WithTimeout still apply.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger used for call diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithObserver reports call durations, typically to Prometheus.
func WithObserver(o Observer) Option {
	return func(c *Client) {
		c.observer = o
	}
}

// GenerateOption overrides one sampling parameter of a Generate call.
type GenerateOption func(*Request)

// WithMaxNewTokens sets max_new_tokens.
func WithMaxNewTokens(n int) GenerateOption {
	return func(r *Request) { r.MaxNewTokens = n }
}

// WithTemperature sets temperature.
func WithTemperature(t float64) GenerateOption {
	return func(r *Request) { r.Temperature = t }
}

// WithTopP sets top_p.
func WithTopP(p float64) GenerateOption {
	return func(r *Request) { r.TopP = p }
}

// WithDoSample sets do_sample.
func WithDoSample(b bool) GenerateOption {
	return func(r *Request) { r.DoSample = b }
}

// NewRequest builds a generation request for prompt with the default
// sampling parameters, then applies opts in order.
func NewRequest(prompt string, opts ...GenerateOption) Request {
	req := Request{
		Prompt:       prompt,
		MaxNewTokens: DefaultMaxNewTokens,
		Temperature:  DefaultTemperature,
		TopP:         DefaultTopP,
		DoSample:     DefaultDoSample,
	}
	for _, opt := range opts {
		opt(&req)
	}
	return req
}
