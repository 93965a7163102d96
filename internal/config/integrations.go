package config

// IntegrationsConfig configures the external tool integrations the execute
// step can dispatch to. Each integration is optional; a disabled integration
// reports as unavailable rather than failing dispatch at startup.
type IntegrationsConfig struct {
	Workflow WorkflowIntegration `yaml:"workflow"`
	Browser  BrowserIntegration  `yaml:"browser"`
	Business BusinessIntegration `yaml:"business"`
	Records  RecordsIntegration  `yaml:"records"`
}

// WorkflowIntegration configures the workflow automation webhook endpoint.
type WorkflowIntegration struct {
	Enabled         bool   `yaml:"enabled"`
	BaseURL         string `yaml:"base_url"`         // e.g. http://localhost:5678/webhook
	DefaultWorkflow string `yaml:"default_workflow"` // workflow id when none inferred
	Timeout         string `yaml:"timeout"`          // e.g. "30s"
}

// BrowserIntegration configures browser capture/scrape.
type BrowserIntegration struct {
	Enabled  bool   `yaml:"enabled"`
	Headless bool   `yaml:"headless"`
	Timeout  string `yaml:"timeout"`
	// HTTPFallback scrapes over plain HTTP when no browser can be launched.
	HTTPFallback bool `yaml:"http_fallback"`
}

// BusinessIntegration configures the business-data REST endpoint
// (Frappe-style /api/resource/<doctype>).
type BusinessIntegration struct {
	Enabled  bool   `yaml:"enabled"`
	BaseURL  string `yaml:"base_url"`
	APIToken string `yaml:"api_token"`
	Timeout  string `yaml:"timeout"`
}

// RecordsIntegration configures the structured-store sink.
type RecordsIntegration struct {
	Enabled      bool   `yaml:"enabled"`
	DefaultTable string `yaml:"default_table"`
}

// DefaultIntegrations returns integration defaults. Only the local record
// sink is enabled out of the box; network integrations need explicit config.
func DefaultIntegrations() IntegrationsConfig {
	return IntegrationsConfig{
		Workflow: WorkflowIntegration{
			DefaultWorkflow: "default-task-workflow",
			Timeout:         "30s",
		},
		Browser: BrowserIntegration{
			Headless:     true,
			Timeout:      "60s",
			HTTPFallback: true,
		},
		Business: BusinessIntegration{
			Timeout: "30s",
		},
		Records: RecordsIntegration{
			Enabled:      true,
			DefaultTable: "tasks",
		},
	}
}

// DefaultTimeout returns a sensible default timeout based on integration id.
func DefaultTimeout(integrationID string) string {
	switch integrationID {
	case "browser":
		return "60s"
	case "scraper":
		return "120s"
	default:
		return "30s"
	}
}
