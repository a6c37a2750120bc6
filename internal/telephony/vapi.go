package telephony

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"voiceai-platform/internal/config"
	"voiceai-platform/pkg/utils"
)

// VapiClient talks to the Vapi REST API (call initiation and agent
// management). All requests carry bearer auth; responses are JSON.
type VapiClient struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

func NewVapiClient(cfg config.VapiConfig) *VapiClient {
	return &VapiClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		httpc:   &http.Client{Timeout: 30 * time.Second},
	}
}

// APIError is a non-2xx answer from the provider.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telephony: vapi api error: status %d: %s", e.StatusCode, e.Body)
}

func (c *VapiClient) Name() string { return "vapi" }

func (c *VapiClient) HealthCheck(ctx context.Context) error {
	// Listing agents is the cheapest authenticated round trip Vapi offers.
	_, err := c.ListAgents(ctx)
	return err
}

func (c *VapiClient) StartCall(ctx context.Context, req StartCallRequest) (CallInfo, error) {
	var out CallInfo
	if req.AgentID == "" || req.PhoneNumber == "" {
		return out, fmt.Errorf("telephony: agent id and phone number are required")
	}
	err := c.do(ctx, http.MethodPost, "/calls", req, &out)
	return out, err
}

func (c *VapiClient) GetCall(ctx context.Context, callID string) (CallInfo, error) {
	var out CallInfo
	if callID == "" {
		return out, fmt.Errorf("telephony: call id is required")
	}
	err := c.do(ctx, http.MethodGet, "/calls/"+callID, nil, &out)
	return out, err
}

func (c *VapiClient) ListCalls(ctx context.Context) ([]CallInfo, error) {
	var out []CallInfo
	err := c.do(ctx, http.MethodGet, "/calls", nil, &out)
	return out, err
}

func (c *VapiClient) CreateAgent(ctx context.Context, cfg utils.JSONMap) (Agent, error) {
	var out Agent
	err := c.do(ctx, http.MethodPost, "/agents", cfg, &out)
	return out, err
}

func (c *VapiClient) ListAgents(ctx context.Context) ([]Agent, error) {
	var out []Agent
	err := c.do(ctx, http.MethodGet, "/agents", nil, &out)
	return out, err
}

func (c *VapiClient) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("telephony: marshal request: %w", err)
		}
		rd = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("telephony: vapi request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("telephony: decode response: %w", err)
	}
	return nil
}
