package engine

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miradorstack/mirador-investigator/internal/models"
)

type investigateFunc func(ctx context.Context, incident models.IncidentEvent) models.InvestigationResult

func (f investigateFunc) Investigate(ctx context.Context, incident models.IncidentEvent) models.InvestigationResult {
	return f(ctx, incident)
}

func TestRunBatchBoundsConcurrency(t *testing.T) {
	var running, peak atomic.Int32
	inv := investigateFunc(func(_ context.Context, incident models.IncidentEvent) models.InvestigationResult {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		running.Add(-1)
		return models.InvestigationResult{IncidentID: incident.IncidentID, Status: models.StatusCompleted}
	})

	incidents := make([]models.IncidentEvent, 8)
	for i := range incidents {
		incidents[i] = models.IncidentEvent{IncidentID: string(rune('a' + i))}
	}

	results := NewRunner(inv, 2, quietLogger()).RunBatch(context.Background(), incidents)

	require.Len(t, results, len(incidents))
	for i, res := range results {
		assert.Equal(t, incidents[i].IncidentID, res.IncidentID)
	}
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestSubmitRespectsContext(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	inv := investigateFunc(func(context.Context, models.IncidentEvent) models.InvestigationResult {
		close(started)
		<-release
		return models.InvestigationResult{Status: models.StatusCompleted}
	})
	runner := NewRunner(inv, 1, quietLogger())

	go func() { _, _ = runner.Submit(context.Background(), models.IncidentEvent{IncidentID: "first"}) }()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := runner.Submit(ctx, models.IncidentEvent{IncidentID: "second"})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	results := runner.RunBatch(ctx, []models.IncidentEvent{{IncidentID: "third"}})
	assert.Equal(t, models.StatusFailed, results[0].Status)
	assert.Equal(t, "escalate", results[0].RecommendedAction.ActionType)

	close(release)
}
