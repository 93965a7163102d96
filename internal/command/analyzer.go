package command

import (
	"regexp"
	"strings"
	"time"

	"longhaul/internal/logging"
)

// CapabilityKind identifies an external tool capability the execute step can
// dispatch to.
type CapabilityKind string

const (
	CapabilityWorkflow        CapabilityKind = "/workflow"
	CapabilityBrowserCapture  CapabilityKind = "/browser_capture"
	CapabilityBrowserScrape   CapabilityKind = "/browser_scrape"
	CapabilityStructuredStore CapabilityKind = "/structured_store"
	CapabilityBusinessData    CapabilityKind = "/business_data"
)

// CapabilityRequest is an inferred need for a specific external tool action.
// Requests are independent: the same description may yield several, and they
// are never deduplicated.
type CapabilityRequest struct {
	Kind   CapabilityKind         `json:"kind"`
	Params map[string]interface{} `json:"params"`
}

// AnalyzerDefaults are the fallback parameters used when the task text does
// not pin a value down.
type AnalyzerDefaults struct {
	WorkflowID string // workflow to trigger when none is named
	Table      string // structured-store table
	URL        string // placeholder URL for capture/scrape
	Selector   string // scrape selector
}

// Analyzer inspects a task description and produces capability requests via
// an ordered table of (predicate, kind, parameter-builder) rules.
type Analyzer struct {
	defaults AnalyzerDefaults
	rules    []capabilityRule
}

type capabilityRule struct {
	keywords []string
	kind     CapabilityKind
	build    func(desc string) map[string]interface{}
}

var urlPattern = regexp.MustCompile(`https?://[^\s]+`)

// NewAnalyzer builds an analyzer with the given defaults. Zero-valued
// defaults are filled with built-in placeholders.
func NewAnalyzer(defaults AnalyzerDefaults) *Analyzer {
	if defaults.WorkflowID == "" {
		defaults.WorkflowID = "default-task-workflow"
	}
	if defaults.Table == "" {
		defaults.Table = "tasks"
	}
	if defaults.URL == "" {
		defaults.URL = "https://example.com"
	}
	if defaults.Selector == "" {
		defaults.Selector = "body"
	}

	a := &Analyzer{defaults: defaults}
	a.rules = []capabilityRule{
		{
			keywords: []string{"workflow", "automate"},
			kind:     CapabilityWorkflow,
			build: func(desc string) map[string]interface{} {
				return map[string]interface{}{
					"workflow_id": a.defaults.WorkflowID,
					"task":        desc,
				}
			},
		},
		{
			keywords: []string{"screenshot", "capture"},
			kind:     CapabilityBrowserCapture,
			build: func(desc string) map[string]interface{} {
				return map[string]interface{}{
					"url":       a.extractURL(desc),
					"full_page": true,
				}
			},
		},
		{
			keywords: []string{"scrape", "extract"},
			kind:     CapabilityBrowserScrape,
			build: func(desc string) map[string]interface{} {
				return map[string]interface{}{
					"url":      a.extractURL(desc),
					"selector": a.defaults.Selector,
				}
			},
		},
		{
			keywords: []string{"store", "save", "database"},
			kind:     CapabilityStructuredStore,
			build: func(desc string) map[string]interface{} {
				return map[string]interface{}{
					"table": a.defaults.Table,
					"payload": map[string]interface{}{
						"task":      desc,
						"timestamp": time.Now().UTC().Format(time.RFC3339),
					},
				}
			},
		},
		{
			keywords: []string{"customer", "invoice", "sales"},
			kind:     CapabilityBusinessData,
			build: func(desc string) map[string]interface{} {
				return map[string]interface{}{
					"doctype": inferDoctype(desc),
				}
			},
		},
	}
	return a
}

// Analyze runs every rule in fixed order against the task description and
// appends one request per matching rule. Checks are case-insensitive and
// non-exclusive.
func (a *Analyzer) Analyze(desc string) []CapabilityRequest {
	timer := logging.StartTimer(logging.CategoryCommand, "Analyze")
	defer timer.Stop()

	lower := strings.ToLower(desc)

	var requests []CapabilityRequest
	for _, rule := range a.rules {
		if !matchesAny(lower, rule.keywords) {
			continue
		}
		requests = append(requests, CapabilityRequest{
			Kind:   rule.kind,
			Params: rule.build(desc),
		})
	}

	logging.CommandDebug("requirement analysis: %d capability request(s) for %q", len(requests), desc)
	return requests
}

func matchesAny(lower string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// extractURL returns the first URL in the text, or the placeholder default.
func (a *Analyzer) extractURL(desc string) string {
	if m := urlPattern.FindString(desc); m != "" {
		return m
	}
	return a.defaults.URL
}

// inferDoctype maps task text to a business-data doctype via a second fixed
// keyword check. Falls back to Customer.
func inferDoctype(desc string) string {
	lower := strings.ToLower(desc)
	switch {
	case strings.Contains(lower, "customer"):
		return "Customer"
	case strings.Contains(lower, "invoice"):
		return "Sales Invoice"
	case strings.Contains(lower, "sales"):
		return "Sales Order"
	case strings.Contains(lower, "item"):
		return "Item"
	default:
		return "Customer"
	}
}
