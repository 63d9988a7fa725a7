// Package handlers provides the chat handler of chatrelay.
//
// ChatHandler serves one request/response cycle: it probes the generation
// service, decodes the chat body, runs a single generation and answers with a
// response envelope. It is exposed both as a Lambda handler (Handle) and as an
// http.Handler for the local server.
package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"sync/atomic"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/google/uuid"
	"github.com/teilomillet/chatrelay/config"
	"github.com/teilomillet/chatrelay/errors"
	"github.com/teilomillet/chatrelay/server/generation"
	"github.com/teilomillet/chatrelay/server/metrics"
	"github.com/teilomillet/chatrelay/server/middleware"
	"github.com/teilomillet/chatrelay/server/processing"
	"go.uber.org/zap"
)

// maxBodyBytes bounds bodies read by ServeHTTP. API Gateway caps payloads
// at 10MB.
const maxBodyBytes = 10 << 20

// responseHeaders returns a fresh copy of the headers sent with every envelope.
func responseHeaders() map[string]string {
	return map[string]string{
		"Content-Type":                 "application/json",
		"Access-Control-Allow-Origin":  middleware.AllowOrigin,
		"Access-Control-Allow-Headers": middleware.AllowHeaders,
		"Access-Control-Allow-Methods": middleware.AllowMethods,
	}
}

// SuccessEnvelope is the body of a 200 response.
type SuccessEnvelope struct {
	Success             bool               `json:"success"`
	Response            string             `json:"response"`
	ConversationHistory processing.History `json:"conversationHistory"`
}

// FailureEnvelope is the body of a failed invocation.
type FailureEnvelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// revision is everything derived from one generation configuration.
type revision struct {
	cfg       config.GenerationConfig
	err       error
	client    *generation.Client
	processor *processing.Processor
}

// ChatHandler handles chat invocations.
type ChatHandler struct {
	current atomic.Pointer[revision]
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewChatHandler creates a handler for cfg. m may be nil.
//
// An invalid cfg does not fail construction: every invocation then returns
// the ConfigurationError without contacting the service. Entrypoints
// validate configuration before constructing the handler.
func NewChatHandler(cfg config.GenerationConfig, logger *zap.Logger, m *metrics.Metrics) *ChatHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &ChatHandler{
		logger:  logger,
		metrics: m,
	}
	h.current.Store(h.build(cfg))
	return h
}

// UpdateConfig swaps in new generation settings. An invalid cfg is rejected
// and the previous settings stay in effect.
func (h *ChatHandler) UpdateConfig(cfg config.GenerationConfig) error {
	rev := h.build(cfg)
	if rev.err != nil {
		return rev.err
	}
	h.current.Store(rev)
	h.logger.Info("generation settings updated",
		zap.String("base_url", rev.client.BaseURL()),
		zap.Int("max_new_tokens", cfg.MaxNewTokens),
		zap.Float64("temperature", cfg.Temperature),
		zap.Float64("top_p", cfg.TopP),
		zap.Bool("do_sample", cfg.DoSample),
	)
	return nil
}

func (h *ChatHandler) build(cfg config.GenerationConfig) *revision {
	if err := cfg.Validate(); err != nil {
		return &revision{cfg: cfg, err: err}
	}

	client, err := generation.NewClient(cfg.BaseURL,
		generation.WithTimeout(cfg.Timeout),
		generation.WithLogger(h.logger),
		generation.WithObserver(h.metrics),
	)
	if err != nil {
		return &revision{cfg: cfg, err: err}
	}

	processor := processing.NewProcessor(client, h.logger,
		generation.WithMaxNewTokens(cfg.MaxNewTokens),
		generation.WithTemperature(cfg.Temperature),
		generation.WithTopP(cfg.TopP),
		generation.WithDoSample(cfg.DoSample),
	)

	return &revision{cfg: cfg, client: client, processor: processor}
}

// Handle is the Lambda entrypoint. Failures other than a ConfigurationError
// are answered with a 500 failure envelope and a nil error. A
// ConfigurationError is returned as is so the runtime fails the invocation.
func (h *ChatHandler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	rev := h.current.Load()
	if rev.err != nil {
		h.logger.Error("chat handler is not configured", zap.Error(rev.err))
		h.metrics.ObserveInvocation(rev.err)
		return events.APIGatewayProxyResponse{}, rev.err
	}

	requestID := requestIDFrom(ctx, event)
	logger := h.logger.With(zap.String("request_id", requestID))

	history, result, err := h.invoke(ctx, logger, rev, requestID, event)
	h.metrics.ObserveInvocation(err)
	if err != nil {
		errors.LogError(logger, err, requestID)
		return failureResponse(logger, err), nil
	}

	return respond(logger, http.StatusOK, SuccessEnvelope{
		Success:             true,
		Response:            result.GeneratedText,
		ConversationHistory: history,
	}), nil
}

func (h *ChatHandler) invoke(ctx context.Context, logger *zap.Logger, rev *revision, requestID string, event events.APIGatewayProxyRequest) (processing.History, *generation.Result, error) {
	health, err := rev.client.HealthCheck(ctx)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("Health check", zap.Any("health", map[string]interface{}(health)))

	if user := identityFrom(event.RequestContext.Authorizer); user != "" {
		logger.Info("Authenticated user", zap.String("user", user))
	}

	body, err := eventBody(requestID, event)
	if err != nil {
		return nil, nil, err
	}
	req, err := decodeChatRequest(requestID, body)
	if err != nil {
		return nil, nil, err
	}

	logger.Info("Processing message",
		zap.Int("message_length", len(*req.Message)),
		zap.Int("history_length", len(req.ConversationHistory)),
	)

	history, result, err := rev.processor.Process(ctx, requestID, req.ConversationHistory, *req.Message)
	if err != nil {
		return nil, nil, err
	}

	logger.Info("Response generated",
		zap.Int("response_length", len(result.GeneratedText)),
		zap.Float64("model_processing_time", result.ResponseTime),
		zap.Float64("total_request_time", result.TotalRequestTime),
	)
	return history, result, nil
}

// ServeHTTP adapts an HTTP request to Handle. The request ID and claims set
// by the RequestID and Claims middleware are carried into the event.
func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		verr := errors.NewInvalidBodyError(requestID, err)
		h.metrics.ObserveInvocation(verr)
		writeResponse(w, failureResponse(h.logger, verr))
		return
	}

	event := events.APIGatewayProxyRequest{
		Resource:              r.URL.Path,
		Path:                  r.URL.Path,
		HTTPMethod:            r.Method,
		Headers:               flattenHeaders(r.Header),
		MultiValueHeaders:     r.Header,
		QueryStringParameters: flattenHeaders(r.URL.Query()),
		Body:                  string(body),
		RequestContext: events.APIGatewayProxyRequestContext{
			RequestID:  requestID,
			Path:       r.URL.Path,
			HTTPMethod: r.Method,
		},
	}
	if claims := middleware.GetClaims(r.Context()); claims != nil {
		event.RequestContext.Authorizer = map[string]interface{}{"claims": claims}
	}

	resp, err := h.Handle(r.Context(), event)
	if err != nil {
		var relayErr *errors.RelayError
		if !errors.As(err, &relayErr) {
			relayErr = errors.NewInternalError(requestID, err)
		}
		// The configuration error is shared by every invocation.
		tagged := *relayErr
		tagged.RequestID = requestID
		errors.WriteError(w, &tagged)
		return
	}

	writeResponse(w, resp)
}

func writeResponse(w http.ResponseWriter, resp events.APIGatewayProxyResponse) {
	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(resp.StatusCode)
	io.WriteString(w, resp.Body)
}

func failureResponse(logger *zap.Logger, err error) events.APIGatewayProxyResponse {
	return respond(logger, errors.StatusCode(err), FailureEnvelope{
		Success: false,
		Error:   err.Error(),
	})
}

func respond(logger *zap.Logger, status int, envelope interface{}) events.APIGatewayProxyResponse {
	headers := responseHeaders()

	body, err := json.Marshal(envelope)
	if err != nil {
		logger.Error("failed to encode response envelope", zap.Error(err))
		status = http.StatusInternalServerError
		body = []byte(`{"success":false,"error":"internal_error: failed to encode response"}`)
	}

	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    headers,
		Body:       string(body),
	}
}

func eventBody(requestID string, event events.APIGatewayProxyRequest) (string, error) {
	if !event.IsBase64Encoded {
		return event.Body, nil
	}
	decoded, err := base64.StdEncoding.DecodeString(event.Body)
	if err != nil {
		return "", errors.NewInvalidBodyError(requestID, err)
	}
	return string(decoded), nil
}

// requestIDFrom prefers the gateway request ID, then the Lambda request ID.
func requestIDFrom(ctx context.Context, event events.APIGatewayProxyRequest) string {
	if event.RequestContext.RequestID != "" {
		return event.RequestContext.RequestID
	}
	if lc, ok := lambdacontext.FromContext(ctx); ok && lc.AwsRequestID != "" {
		return lc.AwsRequestID
	}
	return uuid.New().String()
}

// identityFrom returns the caller's email, falling back to the Cognito
// username, from authorizer claims. It returns "" when neither is present.
func identityFrom(authorizer map[string]interface{}) string {
	if authorizer == nil {
		return ""
	}
	claims, ok := authorizer["claims"].(map[string]interface{})
	if !ok {
		return ""
	}
	for _, key := range []string{"email", "cognito:username", "username"} {
		if v, ok := claims[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func flattenHeaders(values map[string][]string) map[string]string {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]string, len(values))
	for k, v := range values {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}
