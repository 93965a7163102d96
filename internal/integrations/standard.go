package integrations

import (
	"context"
	"fmt"
	"time"

	"longhaul/internal/command"
	"longhaul/internal/config"
	"longhaul/internal/logging"
)

// RecordSink receives structured-store writes. The local sqlite store
// satisfies this; a remote system can replace it.
type RecordSink interface {
	StoreRecord(table string, payload map[string]interface{}) (int64, error)
}

// StandardManager is the default Manager implementation wiring the concrete
// adapters. Any adapter may be nil, in which case its capability dispatch
// fails with a "not configured" outcome.
type StandardManager struct {
	workflow *WorkflowClient
	browser  *BrowserSession
	scraper  *PageScraper
	business *BusinessClient
	records  RecordSink

	defaultTable    string
	defaultWorkflow string
}

// NewStandardManager builds a manager from config, attaching the record sink
// for structured-store writes.
func NewStandardManager(cfg config.IntegrationsConfig, records RecordSink) *StandardManager {
	m := &StandardManager{defaultTable: cfg.Records.DefaultTable}

	if cfg.Workflow.Enabled && cfg.Workflow.BaseURL != "" {
		timeout := config.ParseTimeout(cfg.Workflow.Timeout, 30*time.Second)
		m.workflow = NewWorkflowClient(cfg.Workflow.BaseURL, timeout)
	}
	m.defaultWorkflow = cfg.Workflow.DefaultWorkflow

	if cfg.Browser.Enabled {
		timeout := config.ParseTimeout(cfg.Browser.Timeout, 60*time.Second)
		m.browser = NewBrowserSession(cfg.Browser.Headless, timeout)
	}
	if cfg.Browser.HTTPFallback {
		m.scraper = NewPageScraper(config.ParseTimeout(config.DefaultTimeout("scraper"), 120*time.Second))
	}

	if cfg.Business.Enabled && cfg.Business.BaseURL != "" {
		timeout := config.ParseTimeout(cfg.Business.Timeout, 30*time.Second)
		m.business = NewBusinessClient(cfg.Business.BaseURL, cfg.Business.APIToken, timeout)
	}

	if cfg.Records.Enabled {
		m.records = records
	}

	return m
}

// GetAvailableIntegrations reports capability name to status.
func (m *StandardManager) GetAvailableIntegrations() map[string]Status {
	status := func(configured bool) Status {
		if configured {
			return StatusReady
		}
		return StatusDisabled
	}
	return map[string]Status{
		"workflow":         status(m.workflow != nil),
		"browser_capture":  status(m.browser != nil),
		"browser_scrape":   status(m.browser != nil || m.scraper != nil),
		"structured_store": status(m.records != nil),
		"business_data":    status(m.business != nil),
	}
}

// GetSystemHealth summarizes integration availability. Healthy means every
// enabled integration is reachable; disabled integrations do not count
// against health.
func (m *StandardManager) GetSystemHealth(ctx context.Context) (Health, error) {
	health := Health{
		Integrations: m.GetAvailableIntegrations(),
		CheckedAt:    time.Now(),
		Healthy:      true,
	}

	for name, st := range health.Integrations {
		if st == StatusError {
			health.Healthy = false
			logging.IntegrationsWarn("integration unhealthy: %s", name)
		}
	}
	return health, nil
}

// TriggerWorkflow dispatches the workflow capability.
func (m *StandardManager) TriggerWorkflow(ctx context.Context, workflowID string, payload map[string]interface{}) (Outcome, error) {
	start := time.Now()
	out := Outcome{Capability: command.CapabilityWorkflow}

	if m.workflow == nil {
		out.Error = "workflow integration not configured"
		out.Duration = time.Since(start)
		return out, nil
	}
	if workflowID == "" {
		workflowID = m.defaultWorkflow
	}

	data, err := m.workflow.Trigger(ctx, workflowID, payload)
	out.Duration = time.Since(start)
	if err != nil {
		out.Error = err.Error()
		return out, nil
	}
	out.Success = true
	out.Data = data
	return out, nil
}

// CaptureScreenshot dispatches the browser-capture capability.
func (m *StandardManager) CaptureScreenshot(ctx context.Context, url string, fullPage bool) (Outcome, error) {
	start := time.Now()
	out := Outcome{Capability: command.CapabilityBrowserCapture}

	if m.browser == nil {
		out.Error = "browser integration not configured"
		out.Duration = time.Since(start)
		return out, nil
	}

	png, err := m.browser.Capture(ctx, url, fullPage)
	out.Duration = time.Since(start)
	if err != nil {
		out.Error = err.Error()
		return out, nil
	}
	out.Success = true
	out.Data = map[string]interface{}{"url": url, "bytes": len(png), "format": "png"}
	return out, nil
}

// ScrapePage dispatches the browser-scrape capability, preferring the real
// browser and falling back to the HTTP scraper.
func (m *StandardManager) ScrapePage(ctx context.Context, url, selector string) (Outcome, error) {
	start := time.Now()
	out := Outcome{Capability: command.CapabilityBrowserScrape}

	var text string
	var err error
	switch {
	case m.browser != nil:
		text, err = m.browser.Scrape(ctx, url, selector)
		if err != nil && m.scraper != nil {
			logging.IntegrationsWarn("browser scrape failed, falling back to http: %v", err)
			text, err = m.scraper.Scrape(ctx, url, selector)
		}
	case m.scraper != nil:
		text, err = m.scraper.Scrape(ctx, url, selector)
	default:
		err = fmt.Errorf("no scrape integration configured")
	}

	out.Duration = time.Since(start)
	if err != nil {
		out.Error = err.Error()
		return out, nil
	}
	out.Success = true
	out.Data = map[string]interface{}{"url": url, "selector": selector, "text": text}
	return out, nil
}

// StoreStructured dispatches the structured-store capability.
func (m *StandardManager) StoreStructured(ctx context.Context, table string, payload map[string]interface{}) (Outcome, error) {
	start := time.Now()
	out := Outcome{Capability: command.CapabilityStructuredStore}

	if m.records == nil {
		out.Error = "structured store not configured"
		out.Duration = time.Since(start)
		return out, nil
	}
	if table == "" {
		table = m.defaultTable
	}

	id, err := m.records.StoreRecord(table, payload)
	out.Duration = time.Since(start)
	if err != nil {
		out.Error = err.Error()
		return out, nil
	}
	out.Success = true
	out.Data = map[string]interface{}{"table": table, "record_id": id}
	return out, nil
}

// FetchBusinessData dispatches the business-data capability.
func (m *StandardManager) FetchBusinessData(ctx context.Context, doctype string) (Outcome, error) {
	start := time.Now()
	out := Outcome{Capability: command.CapabilityBusinessData}

	if m.business == nil {
		out.Error = "business data integration not configured"
		out.Duration = time.Since(start)
		return out, nil
	}

	docs, err := m.business.FetchDoctype(ctx, doctype)
	out.Duration = time.Since(start)
	if err != nil {
		out.Error = err.Error()
		return out, nil
	}
	out.Success = true
	out.Data = map[string]interface{}{"doctype": doctype, "count": len(docs), "records": docs}
	return out, nil
}

// Close releases adapter resources (currently the browser).
func (m *StandardManager) Close() error {
	if m.browser != nil {
		return m.browser.Close()
	}
	return nil
}
