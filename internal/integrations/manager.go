// Package integrations manages the external tool capabilities the execute
// step dispatches to: workflow automation, browser capture/scrape, structured
// record storage, and business-data lookup. Every adapter is optional; a
// missing adapter reports as unavailable and its capability fails cleanly at
// dispatch time instead of at startup.
package integrations

import (
	"context"
	"fmt"
	"time"

	"longhaul/internal/command"
)

// Status describes the availability of one integration.
type Status string

const (
	StatusReady    Status = "/ready"
	StatusDisabled Status = "/disabled"
	StatusError    Status = "/error"
)

// Outcome is the result of one capability dispatch.
type Outcome struct {
	Capability command.CapabilityKind `json:"capability"`
	Success    bool                   `json:"success"`
	Data       interface{}            `json:"data,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Duration   time.Duration          `json:"duration"`
}

// Health is an aggregate system health summary.
type Health struct {
	Healthy      bool              `json:"healthy"`
	Integrations map[string]Status `json:"integrations"`
	CheckedAt    time.Time         `json:"checked_at"`
}

// Manager is the integration collaborator contract consumed by the
// orchestrator: one dispatch method per capability kind plus health and
// availability queries.
type Manager interface {
	GetSystemHealth(ctx context.Context) (Health, error)
	GetAvailableIntegrations() map[string]Status

	TriggerWorkflow(ctx context.Context, workflowID string, payload map[string]interface{}) (Outcome, error)
	CaptureScreenshot(ctx context.Context, url string, fullPage bool) (Outcome, error)
	ScrapePage(ctx context.Context, url, selector string) (Outcome, error)
	StoreStructured(ctx context.Context, table string, payload map[string]interface{}) (Outcome, error)
	FetchBusinessData(ctx context.Context, doctype string) (Outcome, error)
}

// Dispatch routes a capability request to the corresponding manager method,
// pulling kind-specific parameters out of the request. An unknown kind is a
// failed outcome, not an error: dispatch failures must never escalate past
// the execute step.
func Dispatch(ctx context.Context, m Manager, req command.CapabilityRequest) (Outcome, error) {
	switch req.Kind {
	case command.CapabilityWorkflow:
		return m.TriggerWorkflow(ctx, stringParam(req.Params, "workflow_id"), req.Params)
	case command.CapabilityBrowserCapture:
		return m.CaptureScreenshot(ctx, stringParam(req.Params, "url"), boolParam(req.Params, "full_page"))
	case command.CapabilityBrowserScrape:
		return m.ScrapePage(ctx, stringParam(req.Params, "url"), stringParam(req.Params, "selector"))
	case command.CapabilityStructuredStore:
		return m.StoreStructured(ctx, stringParam(req.Params, "table"), mapParam(req.Params, "payload"))
	case command.CapabilityBusinessData:
		return m.FetchBusinessData(ctx, stringParam(req.Params, "doctype"))
	default:
		return Outcome{
			Capability: req.Kind,
			Success:    false,
			Error:      fmt.Sprintf("unknown capability kind: %s", req.Kind),
		}, nil
	}
}

func stringParam(params map[string]interface{}, key string) string {
	if v, ok := params[key].(string); ok {
		return v
	}
	return ""
}

func boolParam(params map[string]interface{}, key string) bool {
	if v, ok := params[key].(bool); ok {
		return v
	}
	return false
}

func mapParam(params map[string]interface{}, key string) map[string]interface{} {
	if v, ok := params[key].(map[string]interface{}); ok {
		return v
	}
	return nil
}
