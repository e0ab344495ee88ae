package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miradorstack/mirador-investigator/internal/models"
	"github.com/miradorstack/mirador-investigator/internal/patterns"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	clock := time.Unix(1_700_000_000, 0)
	var mu sync.Mutex
	s.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Second)
		return clock
	}
	return s
}

func TestCheckpointUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	state := models.NewInvestigationState("run-1", models.IncidentEvent{IncidentID: "inc-1", Service: "checkout"}, time.Now())
	require.NoError(t, s.SaveCheckpoint(ctx, state))

	state.CurrentStep = models.StepDiagnosis
	state.Triage = &models.TriageResult{Severity: models.SeverityP1, Decision: models.DecisionInvestigate, Priority: 9}
	require.NoError(t, s.SaveCheckpoint(ctx, state))

	cp, err := s.LoadCheckpoint(ctx, "inc-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", cp.RunID)
	assert.Equal(t, models.StepDiagnosis, cp.CurrentStep)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(cp.State, &raw))
	triage, ok := raw["triage"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "P1", triage["severity"])

	_, err = s.LoadCheckpoint(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Error(t, s.SaveCheckpoint(ctx, models.InvestigationState{}))
}

func TestResultsGetAndList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, r := range []models.InvestigationResult{
		{IncidentID: "a", Service: "checkout", Status: models.StatusCompleted, Confidence: 80},
		{IncidentID: "b", Service: "payments", Status: models.StatusSkipped},
		{IncidentID: "c", Service: "checkout", Status: models.StatusDegraded, Confidence: 25},
	} {
		require.NoError(t, s.SaveResult(ctx, r))
	}

	got, err := s.GetResult(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 80, got.Confidence)

	all, err := s.ListResults(ctx, ResultFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].IncidentID, "newest first")

	checkout, err := s.ListResults(ctx, ResultFilter{Service: "checkout", Limit: 1})
	require.NoError(t, err)
	require.Len(t, checkout, 1)
	assert.Equal(t, "c", checkout[0].IncidentID)

	skipped, err := s.ListResults(ctx, ResultFilter{Status: models.StatusSkipped})
	require.NoError(t, err)
	require.Len(t, skipped, 1)
	assert.Equal(t, "b", skipped[0].IncidentID)

	// Last writer wins.
	require.NoError(t, s.SaveResult(ctx, models.InvestigationResult{IncidentID: "a", Service: "checkout", Confidence: 10}))
	got, err = s.GetResult(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 10, got.Confidence)

	_, err = s.GetResult(ctx, "zzz")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreSignatures(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sigs := []patterns.Signature{{Template: "timeout after <n>", Count: 3, Example: "timeout after 30s", LastSeen: time.Unix(1_700_000_000, 0)}}
	require.NoError(t, s.StoreSignatures(ctx, "checkout", sigs))
	sigs[0].Count = 5
	require.NoError(t, s.StoreSignatures(ctx, "checkout", sigs))

	var count int
	require.NoError(t, s.db.QueryRow(`SELECT count FROM error_signatures WHERE service = ? AND template = ?`, "checkout", "timeout after <n>").Scan(&count))
	assert.Equal(t, 5, count)
}

func TestFileBackedStoreReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "inv.db")
	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.SaveResult(context.Background(), models.InvestigationResult{IncidentID: "x"}))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()
	_, err = s.GetResult(context.Background(), "x")
	require.NoError(t, err)
}
