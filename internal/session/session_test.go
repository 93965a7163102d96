package session

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"longhaul/internal/command"
)

func TestNew(t *testing.T) {
	a := New()
	b := New()

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.False(t, a.StartTime.IsZero())
	assert.True(t, a.EndTime.IsZero())
}

func TestSession_RecordOrdering(t *testing.T) {
	s := New()

	s.RecordCommand(CommandExecution{Raw: "--- first", Success: true})
	s.RecordCommand(CommandExecution{Raw: "+++ second", Success: false})
	s.RecordCommand(CommandExecution{Raw: "... third", Success: true})

	history := s.CommandHistory()
	require.Len(t, history, 3)
	assert.Equal(t, "--- first", history[0].Raw)
	assert.Equal(t, "+++ second", history[1].Raw)
	assert.Equal(t, "... third", history[2].Raw)
}

func TestSession_AppendResults(t *testing.T) {
	s := New()

	s.AppendResults([]StepResult{
		{Step: StepLoad, Success: true},
		{Step: StepExecute, Success: true},
	})
	s.AppendResults([]StepResult{
		{Step: StepUpdate, Success: false},
	})

	results := s.StepResults()
	require.Len(t, results, 3)
	assert.Equal(t, StepLoad, results[0].Step)
	assert.Equal(t, StepExecute, results[1].Step)
	assert.Equal(t, StepUpdate, results[2].Step)
}

func TestSession_HistoryCopiesAreIsolated(t *testing.T) {
	s := New()
	s.RecordCommand(CommandExecution{Raw: "--- original"})

	history := s.CommandHistory()
	history[0].Raw = "mutated"

	assert.Equal(t, "--- original", s.CommandHistory()[0].Raw)
}

func TestSession_MarathonFlag(t *testing.T) {
	s := New()

	s.SetMarathonActive(true)
	assert.True(t, s.Snapshot().MarathonActive)

	s.SetMarathonActive(false)
	assert.False(t, s.Snapshot().MarathonActive)
}

func TestSession_RecentSummaries(t *testing.T) {
	s := New()

	s.AddRecentSummary("one", 3)
	s.AddRecentSummary("two", 3)
	s.AddRecentSummary("three", 3)
	s.AddRecentSummary("four", 3)

	// Oldest entry evicted, newest last.
	assert.Equal(t, []string{"two", "three", "four"}, s.Snapshot().RecentSummaries)
}

func TestSession_FinalizeOnce(t *testing.T) {
	s := New()

	s.Finalize()
	first := s.EndTime
	require.False(t, first.IsZero())

	time.Sleep(5 * time.Millisecond)
	s.Finalize()

	assert.Equal(t, first, s.EndTime)
}

func TestSession_RecordRoundTrip(t *testing.T) {
	// Fixed UTC timestamps so the JSON round trip is exact.
	t0 := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	s := New()
	s.StartTime = t0
	s.RecordCommand(CommandExecution{
		Raw:         "--- +++ deploy the api",
		Timestamp:   t0.Add(time.Second),
		Symbols:     []command.Symbol{command.SymbolLoad, command.SymbolExecute},
		Description: "deploy the api",
		Duration:    1200 * time.Millisecond,
		Success:     true,
	})
	s.AppendResults([]StepResult{
		{Step: StepLoad, Payload: "3 items", Success: true, Duration: 40 * time.Millisecond, Timestamp: t0.Add(time.Second)},
		{Step: StepExecute, Success: false, Duration: 900 * time.Millisecond, Timestamp: t0.Add(2 * time.Second)},
	})
	s.SetMarathonActive(true)
	s.UpdateContext(ContextSnapshot{
		KnowledgeLoaded: true,
		MarathonActive:  true,
		Integrations:    []string{"records"},
		RecentSummaries: []string{"deploy the api: 1/2 steps"},
	})
	s.EndTime = t0.Add(time.Minute)

	data, err := s.MarshalRecord()
	require.NoError(t, err)

	got, err := UnmarshalRecord(data)
	require.NoError(t, err)

	assert.Equal(t, s.ID, got.ID)
	assert.Empty(t, cmp.Diff(s.Commands, got.Commands))
	assert.Empty(t, cmp.Diff(s.Results, got.Results))
	assert.Empty(t, cmp.Diff(s.Context, got.Context))
	assert.True(t, got.MarathonActive)
	assert.True(t, s.EndTime.Equal(got.EndTime))
}

func TestUnmarshalRecord_Garbage(t *testing.T) {
	_, err := UnmarshalRecord([]byte("{not json"))
	assert.Error(t, err)
}
