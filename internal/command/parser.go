// Package command turns raw symbolic commands into structured intents and
// infers which external capabilities a task needs.
//
// Commands carry up to four trigger symbols, each mapping 1:1 to a pipeline
// step:
//
//	---  load knowledge context
//	+++  execute the task
//	...  update accumulated knowledge
//	***  marathon mode (long-running continuity)
//
// Symbols are substring matches, not token matches, so a command may carry
// any subset in any position.
package command

import (
	"strings"

	"longhaul/internal/logging"
)

// Symbol is one of the four recognized trigger symbols.
type Symbol string

const (
	SymbolLoad     Symbol = "---"
	SymbolExecute  Symbol = "+++"
	SymbolUpdate   Symbol = "..."
	SymbolMarathon Symbol = "***"
)

// allSymbols is the canonical detection order. Symbols always appear in this
// order in Intent.Symbols regardless of their position in the raw command.
var allSymbols = []Symbol{SymbolLoad, SymbolExecute, SymbolUpdate, SymbolMarathon}

// Priority is the derived urgency of a command.
type Priority string

const (
	PriorityUrgent Priority = "/urgent"
	PriorityHigh   Priority = "/high"
	PriorityMedium Priority = "/medium"
	PriorityLow    Priority = "/low"
)

// Duration estimate parameters. The estimate is a planning hint, not a
// deadline: base cost plus a fixed increment per symbol and per complexity
// keyword, capped.
const (
	baseDurationSeconds = 5
	perSymbolSeconds    = 2
	perKeywordSeconds   = 15
	maxEstimateSeconds  = 300
)

// complexityKeywords raise the duration estimate when present in the task
// description (case-insensitive substring checks).
var complexityKeywords = []string{
	"complex",
	"integration",
	"migrate",
	"refactor",
	"architecture",
	"pipeline",
	"optimize",
}

// Intent is the structured form of a raw command string.
type Intent struct {
	Raw              string   `json:"raw"`
	Symbols          []Symbol `json:"symbols"`
	Description      string   `json:"description"`
	Priority         Priority `json:"priority"`
	EstimatedSeconds int      `json:"estimated_seconds"`
	Valid            bool     `json:"valid"`
}

// Has reports whether the intent carries the given symbol.
func (i Intent) Has(sym Symbol) bool {
	for _, s := range i.Symbols {
		if s == sym {
			return true
		}
	}
	return false
}

// Parse converts a raw command string into an Intent. Pure function of the
// input: no side effects beyond debug logging.
//
// The command is invalid if zero symbols were found or the description left
// after stripping all symbol substrings is empty.
func Parse(raw string) Intent {
	intent := Intent{Raw: raw}

	for _, sym := range allSymbols {
		if strings.Contains(raw, string(sym)) {
			intent.Symbols = append(intent.Symbols, sym)
		}
	}

	// Strip to a fixpoint: removing one symbol can splice another together
	// (e.g. "**...*" collapses to "***"), and the stripped description must
	// never contain a symbol.
	desc := raw
	for changed := true; changed; {
		changed = false
		for _, sym := range allSymbols {
			if strings.Contains(desc, string(sym)) {
				desc = strings.ReplaceAll(desc, string(sym), "")
				changed = true
			}
		}
	}
	intent.Description = strings.TrimSpace(desc)

	intent.Priority = derivePriority(intent)
	intent.EstimatedSeconds = estimateDuration(intent)
	intent.Valid = len(intent.Symbols) > 0 && intent.Description != ""

	logging.CommandDebug("parsed command: symbols=%v priority=%s estimate=%ds valid=%v",
		intent.Symbols, intent.Priority, intent.EstimatedSeconds, intent.Valid)

	return intent
}

// derivePriority maps symbol combinations to a priority.
// Marathon always wins; execute+load signals a fully-loaded run; a lone
// load or update is housekeeping.
func derivePriority(intent Intent) Priority {
	switch {
	case intent.Has(SymbolMarathon):
		return PriorityUrgent
	case intent.Has(SymbolExecute) && intent.Has(SymbolLoad):
		return PriorityHigh
	case len(intent.Symbols) == 1 && (intent.Has(SymbolLoad) || intent.Has(SymbolUpdate)):
		return PriorityLow
	default:
		return PriorityMedium
	}
}

// estimateDuration computes the capped duration estimate in seconds.
// Monotonic non-decreasing in symbol count and keyword count.
func estimateDuration(intent Intent) int {
	estimate := baseDurationSeconds + perSymbolSeconds*len(intent.Symbols)

	lower := strings.ToLower(intent.Description)
	for _, kw := range complexityKeywords {
		if strings.Contains(lower, kw) {
			estimate += perKeywordSeconds
		}
	}

	if estimate > maxEstimateSeconds {
		estimate = maxEstimateSeconds
	}
	return estimate
}
