// Package relay implements the prepare/sign/submit execution protocol against
// the external relay service. All relay interaction goes through the Client
// interface; business logic never branches on environment flags to fake
// responses, tests substitute a generated mock instead.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Client is the relay protocol surface used by the execution engine.
//
//go:generate mockgen -package mocks -destination ../../mocks/mock_relay.go -mock_names Client=MockRelayClient delegate-api/internal/client/relay Client
type Client interface {
	// PrepareCalls stages a batch and returns the digest to sign plus opaque
	// relay context. No on-chain side effect.
	PrepareCalls(ctx context.Context, req *PrepareRequest) (*PrepareResponse, error)
	// SendPreparedCalls submits the signed batch. This is the state-changing
	// step; it performs exactly one submission per invocation, no hidden
	// retries.
	SendPreparedCalls(ctx context.Context, req *SubmitRequest) (*SubmitResult, error)
}

const (
	preparePath = "/v1/calls/prepare"
	submitPath  = "/v1/calls/submit"

	defaultTimeout = 60 * time.Second
)

// HTTPClient talks to the real relay over HTTP.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// Config configures the HTTP relay client.
type Config struct {
	BaseURL string
	APIKey  string
	// Timeout bounds each relay call. Defaults to 60s.
	Timeout time.Duration
}

// NewHTTPClient creates a relay client for the given endpoint.
func NewHTTPClient(cfg Config, log *zap.Logger) (*HTTPClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("relay base URL is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &HTTPClient{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     log,
	}, nil
}

// errorEnvelope is the relay's loosely-typed error body. Different deployments
// populate different fields; all are folded into one message string.
type errorEnvelope struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (e *errorEnvelope) text() string {
	switch {
	case e.Error != "" && e.Code != "":
		return e.Code + ": " + e.Error
	case e.Error != "":
		return e.Error
	case e.Message != "":
		return e.Message
	default:
		return ""
	}
}

// doRequest handles the common HTTP request/response logic for relay calls.
func (c *HTTPClient) doRequest(ctx context.Context, path string, body interface{}) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode relay request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create relay request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		var envelope errorEnvelope
		if err := json.Unmarshal(respBody, &envelope); err != nil || envelope.text() == "" {
			c.logger.Debug("Unparsable relay error body",
				zap.String("path", path),
				zap.Int("status", resp.StatusCode),
				zap.String("body", spew.Sdump(string(respBody))),
			)
			return nil, &Error{StatusCode: resp.StatusCode, Message: string(respBody)}
		}
		return nil, errors.Wrap(&Error{StatusCode: resp.StatusCode, Message: envelope.text()}, "relay request failed")
	}

	return respBody, nil
}

// PrepareCalls stages the batch with the relay.
func (c *HTTPClient) PrepareCalls(ctx context.Context, req *PrepareRequest) (*PrepareResponse, error) {
	if len(req.Calls) == 0 {
		return nil, fmt.Errorf("call batch cannot be empty")
	}
	if !req.AtomicRequired {
		return nil, fmt.Errorf("atomicRequired must be set; partial batches are never acceptable")
	}

	body, err := c.doRequest(ctx, preparePath, req)
	if err != nil {
		return nil, err
	}

	var prepared PrepareResponse
	if err := json.Unmarshal(body, &prepared); err != nil {
		return nil, fmt.Errorf("failed to decode prepare response: %w", err)
	}
	if len(prepared.Digest) == 0 {
		return nil, fmt.Errorf("relay prepare returned no digest")
	}
	if len(prepared.Context) == 0 {
		return nil, fmt.Errorf("relay prepare returned no context")
	}

	c.logger.Debug("Relay prepared call batch",
		zap.Int("calls", len(req.Calls)),
		zap.String("from", req.From),
		zap.Uint64("chain_id", req.ChainID),
	)
	return &prepared, nil
}

// SendPreparedCalls submits the signed batch and normalizes the response,
// which arrives either as a single result object or as an array whose first
// element is the result.
func (c *HTTPClient) SendPreparedCalls(ctx context.Context, req *SubmitRequest) (*SubmitResult, error) {
	if len(req.Context) == 0 {
		return nil, fmt.Errorf("submit context cannot be empty")
	}
	if len(req.Signature) == 0 {
		return nil, fmt.Errorf("submit signature cannot be empty")
	}

	body, err := c.doRequest(ctx, submitPath, req)
	if err != nil {
		return nil, err
	}

	result, err := normalizeSubmitResponse(body)
	if err != nil {
		return nil, err
	}

	c.logger.Info("Relay accepted call batch",
		zap.String("batch_id", result.BatchID),
		zap.Int("tx_hashes", len(result.TransactionHashes)),
	)
	return result, nil
}

func normalizeSubmitResponse(body []byte) (*SubmitResult, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("relay submit returned empty body")
	}

	if trimmed[0] == '[' {
		var results []SubmitResult
		if err := json.Unmarshal(trimmed, &results); err != nil {
			return nil, fmt.Errorf("failed to decode submit response array: %w", err)
		}
		if len(results) == 0 {
			return nil, fmt.Errorf("relay submit returned empty result array")
		}
		return &results[0], nil
	}

	var result SubmitResult
	if err := json.Unmarshal(trimmed, &result); err != nil {
		return nil, fmt.Errorf("failed to decode submit response: %w", err)
	}
	return &result, nil
}
