package integrations

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"longhaul/internal/logging"
)

// WorkflowClient triggers workflow automation runs over an HTTP webhook
// endpoint (n8n-style: POST <base>/<workflow-id> with a JSON body).
type WorkflowClient struct {
	baseURL string
	client  *http.Client
}

// NewWorkflowClient creates a webhook client with a bounded timeout.
func NewWorkflowClient(baseURL string, timeout time.Duration) *WorkflowClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &WorkflowClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Trigger fires the named workflow and returns the response body decoded as
// JSON when possible, raw text otherwise.
func (c *WorkflowClient) Trigger(ctx context.Context, workflowID string, payload map[string]interface{}) (interface{}, error) {
	timer := logging.StartTimer(logging.CategoryIntegrations, "WorkflowTrigger")
	defer timer.Stop()

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal workflow payload: %w", err)
	}

	url := fmt.Sprintf("%s/%s", c.baseURL, workflowID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build workflow request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	logging.IntegrationsDebug("triggering workflow: %s", url)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("workflow trigger failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("workflow endpoint returned %d: %s", resp.StatusCode, string(data))
	}

	var decoded interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return string(data), nil
	}
	return decoded, nil
}
