package skill

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPWorkflowClient talks to the remote workflow service over its HTTP
// API: POST a run, then poll it until a terminal status. It implements
// WorkflowServiceClient for deployments where remote skills live behind
// the workflow service rather than in-process.
type HTTPWorkflowClient struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

// HTTPWorkflowClientConfig carries the connection details from the
// remote_skill_service configuration block.
type HTTPWorkflowClientConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// NewHTTPWorkflowClient builds an HTTPWorkflowClient. Timeout bounds each
// individual request, not the overall submit-and-poll loop — the poll
// loop's own MaxAttempts handles that.
func NewHTTPWorkflowClient(cfg HTTPWorkflowClientConfig) *HTTPWorkflowClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &HTTPWorkflowClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
	}
}

type submitRequest struct {
	Input json.RawMessage `json:"input"`
}

type submitResponse struct {
	JobID string `json:"job_id"`
}

type pollResponse struct {
	Status      RemoteStatus               `json:"status"`
	OutputNodes map[string]json.RawMessage `json:"output_nodes,omitempty"`
	Error       string                     `json:"error,omitempty"`
}

// Submit implements WorkflowServiceClient.
func (c *HTTPWorkflowClient) Submit(ctx context.Context, workflowID string, input json.RawMessage) (string, error) {
	body, err := json.Marshal(submitRequest{Input: input})
	if err != nil {
		return "", fmt.Errorf("marshal submit request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/workflows/%s/runs", c.baseURL, workflowID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build submit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("submit workflow %s: %w", workflowID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("submit workflow %s: status %d: %s", workflowID, resp.StatusCode, data)
	}

	var out submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode submit response: %w", err)
	}
	if out.JobID == "" {
		return "", fmt.Errorf("submit workflow %s: empty job id in response", workflowID)
	}
	return out.JobID, nil
}

// Poll implements WorkflowServiceClient.
func (c *HTTPWorkflowClient) Poll(ctx context.Context, jobID string) (RemoteStatus, map[string]json.RawMessage, error) {
	url := fmt.Sprintf("%s/v1/runs/%s", c.baseURL, jobID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", nil, fmt.Errorf("build poll request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("poll run %s: %w", jobID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", nil, fmt.Errorf("poll run %s: status %d: %s", jobID, resp.StatusCode, data)
	}

	var out pollResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", nil, fmt.Errorf("decode poll response: %w", err)
	}
	return out.Status, out.OutputNodes, nil
}
