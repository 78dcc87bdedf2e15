package invoker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/parley/internal/ctxkeys"
	"github.com/BaSui01/parley/internal/tlsutil"
	"github.com/BaSui01/parley/types"
)

// ModelPrice is the per-1K-token price for one model.
type ModelPrice struct {
	InputPer1K  float64 `json:"input_per_1k" yaml:"input_per_1k"`
	OutputPer1K float64 `json:"output_per_1k" yaml:"output_per_1k"`
}

// GatewayConfig configures the HTTP gateway invoker.
type GatewayConfig struct {
	// BaseURL of an OpenAI-compatible chat completions endpoint. A slot's
	// EndpointOverride takes precedence per dispatch.
	BaseURL string `json:"base_url" yaml:"base_url" env:"BASE_URL"`
	APIKey  string `json:"api_key" yaml:"api_key" env:"API_KEY"`
	// Timeout bounds the transport when the caller's context carries no
	// deadline of its own.
	Timeout time.Duration `json:"timeout" yaml:"timeout" env:"TIMEOUT"`
	// Pricing maps model_ref to its token prices. Unlisted models cost 0.
	Pricing map[string]ModelPrice `json:"pricing" yaml:"pricing" env:"-"`
}

// Gateway invokes models over an OpenAI-compatible chat completions API.
// Safe for concurrent use.
type Gateway struct {
	cfg    GatewayConfig
	client *http.Client
	logger *zap.Logger
}

// NewGateway creates a gateway invoker.
func NewGateway(cfg GatewayConfig, logger *zap.Logger) *Gateway {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{
		cfg:    cfg,
		client: tlsutil.Client(cfg.Timeout),
		logger: logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
}

// Invoke sends contextText to the slot's model and prices the result.
func (g *Gateway) Invoke(ctx context.Context, slot types.Slot, contextText string) (*Result, error) {
	body := chatRequest{
		Model:       slot.ModelRef,
		Messages:    []chatMessage{{Role: "user", Content: contextText}},
		MaxTokens:   slot.MaxTokens,
		Temperature: slot.Temperature,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, types.NewInvocationError(types.InvokeNetwork,
			fmt.Sprintf("marshal request: %v", err)).WithCause(err)
	}

	base := g.cfg.BaseURL
	if slot.EndpointOverride != "" {
		base = slot.EndpointOverride
	}
	endpoint := strings.TrimRight(base, "/") + "/v1/chat/completions"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, types.NewInvocationError(types.InvokeNetwork,
			fmt.Sprintf("build request: %v", err)).WithCause(err)
	}
	req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if sid, ok := ctxkeys.SessionID(ctx); ok {
		req.Header.Set("X-Session-ID", sid)
	}

	start := time.Now()
	resp, err := g.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return nil, g.mapTransportError(err, slot.ModelRef)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg := readErrorMessage(resp.Body)
		g.logger.Warn("model invocation rejected",
			zap.String("model", slot.ModelRef),
			zap.Int("status", resp.StatusCode),
			zap.String("message", msg))
		return nil, mapStatusError(resp.StatusCode, msg)
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return nil, types.NewInvocationError(types.InvokeServer,
			fmt.Sprintf("decode response: %v", err)).WithCause(err)
	}
	if len(cr.Choices) == 0 {
		return nil, types.NewInvocationError(types.InvokeServer, "response carried no choices")
	}

	res := &Result{
		Content:   cr.Choices[0].Message.Content,
		LatencyMS: latency.Milliseconds(),
	}
	if cr.Usage != nil {
		res.TokensIn = cr.Usage.PromptTokens
		res.TokensOut = cr.Usage.CompletionTokens
	}
	res.CostUSD = g.price(slot.ModelRef, res.TokensIn, res.TokensOut)
	return res, nil
}

// price computes the dollar cost of a dispatch from the pricing table.
func (g *Gateway) price(model string, tokensIn, tokensOut int) float64 {
	p, ok := g.cfg.Pricing[model]
	if !ok {
		return 0
	}
	return float64(tokensIn)/1000*p.InputPer1K + float64(tokensOut)/1000*p.OutputPer1K
}

// mapTransportError classifies errors raised before any HTTP status arrived.
func (g *Gateway) mapTransportError(err error, model string) *types.Error {
	kind := types.InvokeNetwork
	if errors.Is(err, context.DeadlineExceeded) {
		kind = types.InvokeTimeout
	}
	var ue *url.Error
	if errors.As(err, &ue) && ue.Timeout() {
		kind = types.InvokeTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		kind = types.InvokeTimeout
	}
	g.logger.Warn("model invocation failed in transport",
		zap.String("model", model),
		zap.String("kind", string(kind)),
		zap.Error(err))
	return types.NewInvocationError(kind, err.Error()).WithCause(err)
}

// mapStatusError classifies HTTP error statuses into invocation kinds.
func mapStatusError(status int, msg string) *types.Error {
	var kind types.InvokeErrorKind
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = types.InvokeAuth
	case status == http.StatusTooManyRequests:
		kind = types.InvokeRateLimit
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		kind = types.InvokeTimeout
	default:
		kind = types.InvokeServer
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return types.NewInvocationError(kind, msg).WithHTTPStatus(status)
}

// readErrorMessage extracts a usable message from an error body, preferring
// the conventional {"error": {"message": ...}} shape.
func readErrorMessage(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 8<<10))
	if err != nil {
		return "failed to read error response"
	}
	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error.Message != "" {
		if errResp.Error.Type != "" {
			return fmt.Sprintf("%s (type: %s)", errResp.Error.Message, errResp.Error.Type)
		}
		return errResp.Error.Message
	}
	return strings.TrimSpace(string(data))
}
