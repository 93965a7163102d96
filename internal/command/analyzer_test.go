package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kinds(requests []CapabilityRequest) []CapabilityKind {
	out := make([]CapabilityKind, len(requests))
	for i, r := range requests {
		out[i] = r.Kind
	}
	return out
}

func TestAnalyze_Rules(t *testing.T) {
	a := NewAnalyzer(AnalyzerDefaults{})

	t.Run("no keywords means no requests", func(t *testing.T) {
		assert.Empty(t, a.Analyze("Deploy to production"))
	})

	t.Run("workflow", func(t *testing.T) {
		requests := a.Analyze("automate the nightly report")

		require.Len(t, requests, 1)
		assert.Equal(t, CapabilityWorkflow, requests[0].Kind)
		assert.Equal(t, "default-task-workflow", requests[0].Params["workflow_id"])
		assert.Equal(t, "automate the nightly report", requests[0].Params["task"])
	})

	t.Run("capture with explicit URL", func(t *testing.T) {
		requests := a.Analyze("capture screenshot of https://status.example.net/grid")

		require.Len(t, requests, 1)
		assert.Equal(t, CapabilityBrowserCapture, requests[0].Kind)
		assert.Equal(t, "https://status.example.net/grid", requests[0].Params["url"])
		assert.Equal(t, true, requests[0].Params["full_page"])
	})

	t.Run("capture falls back to placeholder URL", func(t *testing.T) {
		requests := a.Analyze("take a screenshot of the dashboard")

		require.Len(t, requests, 1)
		assert.Equal(t, "https://example.com", requests[0].Params["url"])
	})

	t.Run("scrape carries selector", func(t *testing.T) {
		requests := a.Analyze("scrape https://example.org/report")

		require.Len(t, requests, 1)
		assert.Equal(t, CapabilityBrowserScrape, requests[0].Kind)
		assert.Equal(t, "https://example.org/report", requests[0].Params["url"])
		assert.Equal(t, "body", requests[0].Params["selector"])
	})

	t.Run("structured store", func(t *testing.T) {
		requests := a.Analyze("save the results to the database")

		require.Len(t, requests, 1)
		assert.Equal(t, CapabilityStructuredStore, requests[0].Kind)
		assert.Equal(t, "tasks", requests[0].Params["table"])

		payload, ok := requests[0].Params["payload"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "save the results to the database", payload["task"])
	})

	t.Run("matching is case-insensitive", func(t *testing.T) {
		requests := a.Analyze("SCRAPE the page")

		require.Len(t, requests, 1)
		assert.Equal(t, CapabilityBrowserScrape, requests[0].Kind)
	})
}

func TestAnalyze_MultipleMatches(t *testing.T) {
	a := NewAnalyzer(AnalyzerDefaults{})

	t.Run("requests appear in rule order", func(t *testing.T) {
		requests := a.Analyze("capture a screenshot and store it in the database for the customer")

		assert.Equal(t, []CapabilityKind{
			CapabilityBrowserCapture,
			CapabilityStructuredStore,
			CapabilityBusinessData,
		}, kinds(requests))
	})

	t.Run("one request per rule even with several keyword hits", func(t *testing.T) {
		// "store", "save", and "database" all belong to the same rule.
		requests := a.Analyze("store and save to the database")

		assert.Equal(t, []CapabilityKind{CapabilityStructuredStore}, kinds(requests))
	})
}

func TestAnalyze_Doctype(t *testing.T) {
	a := NewAnalyzer(AnalyzerDefaults{})

	cases := []struct {
		desc string
		want string
	}{
		{"pull customer records", "Customer"},
		{"fetch the latest invoice totals", "Sales Invoice"},
		{"summarize sales this quarter", "Sales Order"},
		{"customer invoice reconciliation", "Customer"}, // customer outranks invoice
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			requests := a.Analyze(tc.desc)

			require.Len(t, requests, 1)
			assert.Equal(t, CapabilityBusinessData, requests[0].Kind)
			assert.Equal(t, tc.want, requests[0].Params["doctype"])
		})
	}
}

func TestAnalyze_CustomDefaults(t *testing.T) {
	a := NewAnalyzer(AnalyzerDefaults{
		WorkflowID: "wf-nightly",
		Table:      "runs",
		URL:        "https://internal.example/status",
		Selector:   "#main",
	})

	requests := a.Analyze("automate the scrape and store the output")
	require.Len(t, requests, 3)

	assert.Equal(t, "wf-nightly", requests[0].Params["workflow_id"])
	assert.Equal(t, "https://internal.example/status", requests[1].Params["url"])
	assert.Equal(t, "#main", requests[1].Params["selector"])
	assert.Equal(t, "runs", requests[2].Params["table"])
}
