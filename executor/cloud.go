package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/taskmesh/taskmesh/routing"
)

const defaultCloudTimeout = 60 * time.Second

// CloudConfig holds configuration for a remote HTTP execution backend.
type CloudConfig struct {
	ID         string
	Endpoint   string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Cloud executes tasks by POSTing the description to a remote HTTP backend.
type Cloud struct {
	config CloudConfig
}

// NewCloud creates a Cloud executor with the given config.
func NewCloud(cfg CloudConfig) *Cloud {
	if cfg.ID == "" {
		cfg.ID = "cloud-1"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultCloudTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Cloud{config: cfg}
}

func (c *Cloud) ID() string           { return c.config.ID }
func (c *Cloud) Class() routing.Class { return routing.ClassCloud }

// executeRequest is the request body sent to the backend.
type executeRequest struct {
	Description string `json:"description"`
}

// executeResponse is the backend's response body.
type executeResponse struct {
	Output string `json:"output"`
	Error  string `json:"error,omitempty"`
}

// Execute sends the task to the remote backend. Transport and timeout
// failures are classified as retryable; HTTP 4xx responses are fatal.
func (c *Cloud) Execute(ctx context.Context, description string) Result {
	start := time.Now()

	body, err := json.Marshal(executeRequest{Description: description})
	if err != nil {
		return failure(FailureFatal, fmt.Sprintf("marshal request: %v", err), start)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint+"/v1/execute", bytes.NewReader(body))
	if err != nil {
		return failure(FailureFatal, fmt.Sprintf("build request: %v", err), start)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.config.HTTPClient.Do(req)
	if err != nil {
		return failure(classifyTransportError(err), fmt.Sprintf("request failed: %v", err), start)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(resp.Body)
		msg := fmt.Sprintf("backend returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
		return failure(classifyStatus(resp.StatusCode), msg, start)
	}

	var out executeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return failure(FailureFatal, fmt.Sprintf("decode response: %v", err), start)
	}
	if out.Error != "" {
		return failure(FailureFatal, out.Error, start)
	}
	return Result{Success: true, Output: out.Output, Duration: time.Since(start)}
}

// HealthCheck probes the backend's health endpoint.
func (c *Cloud) HealthCheck(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.Endpoint+"/v1/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.config.HTTPClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close() //nolint:errcheck
	return resp.StatusCode < 400
}

// classifyTransportError maps a transport error to a failure kind.
func classifyTransportError(err error) FailureKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailureTimeout
	}
	// Connection refused, DNS failure, reset: the backend is unreachable.
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return FailureUnavailable
	}
	if errors.Is(err, io.EOF) {
		return FailureUnavailable
	}
	return FailureFatal
}

// classifyStatus maps an HTTP status code to a failure kind.
func classifyStatus(code int) FailureKind {
	switch code {
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return FailureTimeout
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable:
		return FailureUnavailable
	default:
		return FailureFatal
	}
}
