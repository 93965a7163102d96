// Package orchestrator coordinates the command pipeline: parse, load,
// execute, update, marathon, auto-checkpoint, session bookkeeping. Steps run
// strictly in that order and each is independently fallible; only parse
// failures and session bookkeeping are fatal to a call.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"longhaul/internal/command"
	"longhaul/internal/config"
	"longhaul/internal/integrations"
	"longhaul/internal/logging"
	"longhaul/internal/marathon"
	"longhaul/internal/session"
	"longhaul/internal/store"
)

// ErrInvalidCommand is returned inside the response errors when parsing
// rejects a command.
var ErrInvalidCommand = errors.New("invalid command format")

// Response is the caller-visible result of one processed command. Success is
// the overall flag (no per-step errors); Errors lists the non-fatal per-step
// failures so callers see partial progress rather than an opaque abort.
type Response struct {
	Success       bool                 `json:"success"`
	Results       []session.StepResult `json:"results"`
	SessionID     string               `json:"session_id"`
	MarathonState marathon.State       `json:"marathon_state,omitempty"`
	Errors        []string             `json:"errors,omitempty"`
}

// Orchestrator is the top-level coordinator. It owns the session record for
// the process lifetime and serializes command processing so history ordering
// matches submission order.
type Orchestrator struct {
	mu sync.Mutex

	cfg       *config.Config
	sess      *session.Session
	knowledge store.KnowledgeStore
	archive   store.SessionArchive
	tools     integrations.Manager
	machine   *marathon.Machine
	analyzer  *command.Analyzer
}

// New creates an orchestrator with a fresh session. The archive may be nil;
// shutdown persistence is then skipped with a warning.
func New(cfg *config.Config, knowledge store.KnowledgeStore, archive store.SessionArchive, tools integrations.Manager, machine *marathon.Machine) *Orchestrator {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	o := &Orchestrator{
		cfg:       cfg,
		sess:      session.New(),
		knowledge: knowledge,
		archive:   archive,
		tools:     tools,
		machine:   machine,
		analyzer: command.NewAnalyzer(command.AnalyzerDefaults{
			WorkflowID: cfg.Integrations.Workflow.DefaultWorkflow,
			Table:      cfg.Integrations.Records.DefaultTable,
		}),
	}
	logging.Orchestrator("orchestrator ready: session=%s", o.sess.ID)
	return o
}

// CurrentSession returns the live session record, or nil after shutdown.
func (o *Orchestrator) CurrentSession() *session.Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sess
}

// ProcessCommand runs the full pipeline for one raw command string.
func (o *Orchestrator) ProcessCommand(ctx context.Context, raw string) Response {
	o.mu.Lock()
	defer o.mu.Unlock()

	timer := logging.StartTimer(logging.CategoryOrchestrator, "ProcessCommand")
	defer timer.Stop()

	if o.sess == nil {
		return Response{Errors: []string{"session closed"}}
	}

	resp := Response{SessionID: o.sess.ID}

	// Step 1: parse. Invalid commands fail fast without touching the session.
	intent := command.Parse(raw)
	if !intent.Valid {
		logging.OrchestratorWarn("rejected command: %v", ErrInvalidCommand)
		resp.Errors = []string{ErrInvalidCommand.Error()}
		resp.MarathonState = o.machine.State()
		return resp
	}

	start := time.Now()
	var results []session.StepResult
	var stepErrors []string
	marathonStartedHere := false

	// Step 2: load knowledge context.
	if intent.Has(command.SymbolLoad) {
		result, err := o.runLoadStep(ctx, intent)
		results = append(results, result)
		if err != nil {
			stepErrors = append(stepErrors, fmt.Sprintf("Load failed: %v", err))
		}
	}

	// Step 3: execute the task.
	if intent.Has(command.SymbolExecute) {
		if intent.Has(command.SymbolMarathon) && !o.machine.Active() {
			if _, err := o.machine.Start(intent.Description, o.sess.ID); err != nil {
				stepErrors = append(stepErrors, fmt.Sprintf("Execute failed: %v", err))
			} else {
				marathonStartedHere = true
				o.sess.SetMarathonActive(true)
			}
		}

		result, err := o.runExecuteStep(ctx, intent)
		results = append(results, result)
		if err != nil {
			stepErrors = append(stepErrors, fmt.Sprintf("Execute failed: %v", err))
		}
	}

	// Step 4: update accumulated knowledge.
	if intent.Has(command.SymbolUpdate) {
		result, err := o.runUpdateStep(intent, results)
		results = append(results, result)
		if err != nil {
			stepErrors = append(stepErrors, fmt.Sprintf("Update failed: %v", err))
		}
	}

	// Step 5: marathon lifecycle.
	if intent.Has(command.SymbolMarathon) {
		if err := o.runMarathonStep(intent, marathonStartedHere); err != nil {
			stepErrors = append(stepErrors, fmt.Sprintf("Marathon failed: %v", err))
		}
	}

	// Step 6: automatic checkpoint when marathon work made progress.
	if o.cfg.Marathon.AutoCheckpoint && o.machine.Active() && len(results) > 0 {
		if err := o.autoCheckpoint(intent, results, time.Since(start)); err != nil {
			stepErrors = append(stepErrors, fmt.Sprintf("Checkpoint failed: %v", err))
		}
	}

	// Step 7: session bookkeeping.
	totalDuration := time.Since(start)
	overallSuccess := len(stepErrors) == 0

	o.sess.RecordCommand(session.CommandExecution{
		Raw:         raw,
		Timestamp:   start,
		Symbols:     intent.Symbols,
		Description: intent.Description,
		Duration:    totalDuration,
		Success:     overallSuccess,
	})
	o.sess.AppendResults(results)

	resp.Success = overallSuccess
	resp.Results = results
	resp.MarathonState = o.machine.State()
	resp.Errors = stepErrors

	logging.Orchestrator("command processed: success=%v steps=%d errors=%d duration=%v",
		overallSuccess, len(results), len(stepErrors), totalDuration)
	return resp
}

// runLoadStep queries the knowledge store and the integration collaborator
// and assembles a load result. Failures never abort subsequent steps.
func (o *Orchestrator) runLoadStep(ctx context.Context, intent command.Intent) (session.StepResult, error) {
	start := time.Now()
	result := session.StepResult{Step: session.StepLoad, Timestamp: start}

	items, err := o.knowledge.Search(intent.Description, o.cfg.Knowledge.SearchLimit, o.cfg.Knowledge.MinRelevance)
	if err != nil {
		result.Duration = time.Since(start)
		return result, err
	}

	snapshot, err := o.knowledge.GetSnapshot()
	if err != nil {
		result.Duration = time.Since(start)
		return result, err
	}

	health, err := o.tools.GetSystemHealth(ctx)
	if err != nil {
		result.Duration = time.Since(start)
		return result, err
	}

	available := o.tools.GetAvailableIntegrations()
	names := make([]string, 0, len(available))
	for name, st := range available {
		if st == integrations.StatusReady {
			names = append(names, name)
		}
	}

	snap := o.sess.Snapshot()
	snap.KnowledgeLoaded = true
	snap.Integrations = names
	o.sess.UpdateContext(snap)

	result.Success = true
	result.Duration = time.Since(start)
	result.Payload = map[string]interface{}{
		"items":    items,
		"snapshot": snapshot,
		"health":   health,
		"relevant": len(items),
	}
	logging.OrchestratorDebug("load step: %d relevant item(s), healthy=%v", len(items), health.Healthy)
	return result, nil
}

// runExecuteStep analyzes capability requirements and dispatches each to the
// integration collaborator. Dispatches run concurrently; one capability's
// failure never cancels the others, outcomes land at their request's
// position, and the step's success is the logical AND of all outcomes.
func (o *Orchestrator) runExecuteStep(ctx context.Context, intent command.Intent) (session.StepResult, error) {
	start := time.Now()
	result := session.StepResult{Step: session.StepExecute, Timestamp: start}

	requests := o.analyzer.Analyze(intent.Description)

	outcomes := make([]integrations.Outcome, len(requests))
	g, gctx := errgroup.WithContext(ctx)
	for i, req := range requests {
		i, req := i, req
		g.Go(func() error {
			out, err := integrations.Dispatch(gctx, o.tools, req)
			if err != nil {
				out = integrations.Outcome{Capability: req.Kind, Error: err.Error()}
			}
			outcomes[i] = out
			return nil // collection must outlive individual failures
		})
	}
	_ = g.Wait()

	success := true
	failed := 0
	for _, out := range outcomes {
		if !out.Success {
			success = false
			failed++
		}
	}

	result.Success = success
	result.Duration = time.Since(start)
	result.Payload = map[string]interface{}{
		"capabilities": outcomes,
		"dispatched":   len(outcomes),
	}

	logging.OrchestratorDebug("execute step: %d capability dispatch(es), %d failed", len(outcomes), failed)
	if !success {
		return result, fmt.Errorf("%d of %d capabilities failed", failed, len(outcomes))
	}
	return result, nil
}

// runUpdateStep summarizes all results so far and persists the summary as an
// interaction memory plus a knowledge-base interactions entry.
func (o *Orchestrator) runUpdateStep(intent command.Intent, sofar []session.StepResult) (session.StepResult, error) {
	start := time.Now()
	result := session.StepResult{Step: session.StepUpdate, Timestamp: start}

	byStep := make(map[string]map[string]interface{})
	var total time.Duration
	successes := 0
	for _, r := range sofar {
		total += r.Duration
		if r.Success {
			successes++
		}
		byStep[string(r.Step)] = map[string]interface{}{
			"success":     r.Success,
			"duration_ms": r.Duration.Milliseconds(),
		}
	}

	successRate := 1.0
	if len(sofar) > 0 {
		successRate = float64(successes) / float64(len(sofar))
	}

	summary := map[string]interface{}{
		"session_id":        o.sess.ID,
		"task":              intent.Description,
		"steps":             byStep,
		"total_duration_ms": total.Milliseconds(),
		"success_rate":      successRate,
		"timestamp":         start.UTC().Format(time.RFC3339),
	}

	content := fmt.Sprintf("interaction: %s (steps=%d, success_rate=%.2f)",
		intent.Description, len(sofar), successRate)

	id, err := o.knowledge.StoreMemory(content, "interaction", 0.5, summary)
	if err != nil {
		result.Duration = time.Since(start)
		return result, err
	}
	if err := o.knowledge.UpdateSnapshot("interactions", summary); err != nil {
		result.Duration = time.Since(start)
		return result, err
	}

	o.sess.AddRecentSummary(content, 10)

	result.Success = true
	result.Duration = time.Since(start)
	result.Payload = map[string]interface{}{"memory_id": id, "summary": summary}
	return result, nil
}

// runMarathonStep starts or switches the marathon task. A task started
// earlier in this same command (execute step) is left alone.
func (o *Orchestrator) runMarathonStep(intent command.Intent, startedThisCommand bool) error {
	if startedThisCommand {
		return nil
	}

	if o.machine.Active() {
		// Never silently replace an active task.
		if _, err := o.machine.SaveAndSwitch(intent.Description, o.sess.ID); err != nil {
			return err
		}
		o.sess.SetMarathonActive(true)
		return nil
	}

	if _, err := o.machine.Start(intent.Description, o.sess.ID); err != nil {
		return err
	}
	o.sess.SetMarathonActive(true)
	return nil
}

// autoCheckpoint records a system-triggered checkpoint summarizing the
// command. Only called once new results are confirmed to exist.
func (o *Orchestrator) autoCheckpoint(intent command.Intent, results []session.StepResult, elapsed time.Duration) error {
	steps := make([]string, len(results))
	for i, r := range results {
		steps[i] = string(r.Step)
	}

	_, err := o.machine.Checkpoint(
		fmt.Sprintf("auto checkpoint after: %s", intent.Description),
		map[string]interface{}{
			"command":           intent.Raw,
			"result_count":      len(results),
			"steps":             steps,
			"total_duration_ms": elapsed.Milliseconds(),
		},
		true,
	)
	return err
}

// Marathon exposes the state machine for CLI surfaces (status, transfer,
// restore).
func (o *Orchestrator) Marathon() *marathon.Machine {
	return o.machine
}

// Shutdown finalizes the session end time and persists the record through
// the knowledge store. Persistence failures are logged, never raised:
// shutdown must always complete. The session is not reusable afterward.
func (o *Orchestrator) Shutdown(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.sess == nil {
		return
	}

	o.sess.Finalize()

	record, err := o.sess.MarshalRecord()
	if err != nil {
		logging.SessionWarn("failed to serialize session %s: %v", o.sess.ID, err)
	} else if o.archive == nil {
		logging.SessionWarn("no session archive configured, session %s not persisted", o.sess.ID)
	} else if err := o.archive.SaveSession(o.sess.ID, record); err != nil {
		logging.SessionWarn("failed to persist session %s: %v", o.sess.ID, err)
	}

	if err := o.knowledge.UpdateSnapshot("interactions", map[string]interface{}{
		"event":      "session_closed",
		"session_id": o.sess.ID,
		"commands":   len(o.sess.CommandHistory()),
	}); err != nil {
		logging.SessionWarn("failed to record session close for %s: %v", o.sess.ID, err)
	}

	logging.Orchestrator("shutdown complete: session=%s", o.sess.ID)
	o.sess = nil
}
