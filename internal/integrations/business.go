package integrations

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"longhaul/internal/logging"
)

// BusinessClient looks up business documents from a Frappe-style REST API
// (GET <base>/api/resource/<doctype>).
type BusinessClient struct {
	baseURL  string
	apiToken string
	client   *http.Client
}

// NewBusinessClient creates a business-data client with a bounded timeout.
func NewBusinessClient(baseURL, apiToken string, timeout time.Duration) *BusinessClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &BusinessClient{
		baseURL:  baseURL,
		apiToken: apiToken,
		client:   &http.Client{Timeout: timeout},
	}
}

// FetchDoctype lists records of the given doctype.
func (c *BusinessClient) FetchDoctype(ctx context.Context, doctype string) ([]map[string]interface{}, error) {
	timer := logging.StartTimer(logging.CategoryIntegrations, "FetchDoctype")
	defer timer.Stop()

	endpoint := fmt.Sprintf("%s/api/resource/%s", c.baseURL, url.PathEscape(doctype))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build business request: %w", err)
	}
	if c.apiToken != "" {
		req.Header.Set("Authorization", "token "+c.apiToken)
	}
	req.Header.Set("Accept", "application/json")

	logging.IntegrationsDebug("fetching business data: %s", endpoint)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("business data fetch failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read business response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("business endpoint returned %d for doctype %s", resp.StatusCode, doctype)
	}

	var payload struct {
		Data []map[string]interface{} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse business response: %w", err)
	}

	return payload.Data, nil
}
