package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/miradorstack/mirador-investigator/internal/models"
)

// Investigator runs one investigation to completion.
type Investigator interface {
	Investigate(ctx context.Context, incident models.IncidentEvent) models.InvestigationResult
}

// Runner bounds how many investigations run at once, which in turn bounds the
// request rate against the inference endpoint.
type Runner struct {
	investigator Investigator
	slots        *semaphore.Weighted
	limit        int
	logger       *slog.Logger
}

// NewRunner constructs a Runner with maxConcurrent slots.
func NewRunner(investigator Investigator, maxConcurrent int, logger *slog.Logger) *Runner {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		investigator: investigator,
		slots:        semaphore.NewWeighted(int64(maxConcurrent)),
		limit:        maxConcurrent,
		logger:       logger,
	}
}

// Submit waits for a free slot and runs the investigation. The only error is
// the context ending while waiting.
func (r *Runner) Submit(ctx context.Context, incident models.IncidentEvent) (models.InvestigationResult, error) {
	if err := r.slots.Acquire(ctx, 1); err != nil {
		return models.InvestigationResult{}, fmt.Errorf("waiting for investigation slot: %w", err)
	}
	defer r.slots.Release(1)
	return r.investigator.Investigate(ctx, incident), nil
}

// RunBatch investigates incidents concurrently and returns results in input
// order. Incidents that never got a slot get a failed result.
func (r *Runner) RunBatch(ctx context.Context, incidents []models.IncidentEvent) []models.InvestigationResult {
	results := make([]models.InvestigationResult, len(incidents))
	var g errgroup.Group
	g.SetLimit(r.limit)
	for i, incident := range incidents {
		g.Go(func() error {
			res, err := r.Submit(ctx, incident)
			if err != nil {
				r.logger.Warn("investigation not started", slog.String("incident_id", incident.IncidentID), slog.Any("error", err))
				now := time.Now().UTC()
				res = FailedResult(models.NewInvestigationState("", incident, now), err.Error(), now)
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()
	return results
}
