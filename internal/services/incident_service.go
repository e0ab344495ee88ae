// Package services is the request-facing facade over the investigation engine.
package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/miradorstack/mirador-investigator/internal/cache"
	"github.com/miradorstack/mirador-investigator/internal/models"
	"github.com/miradorstack/mirador-investigator/internal/store"
	"github.com/miradorstack/mirador-investigator/internal/utils"
)

// Submitter runs one investigation under the worker bound.
type Submitter interface {
	Submit(ctx context.Context, incident models.IncidentEvent) (models.InvestigationResult, error)
}

// Resumer continues a checkpointed investigation.
type Resumer interface {
	Resume(ctx context.Context, incidentID string) (models.InvestigationResult, error)
}

// ResultStore persists finished investigations.
type ResultStore interface {
	SaveResult(ctx context.Context, result models.InvestigationResult) error
	GetResult(ctx context.Context, incidentID string) (models.InvestigationResult, error)
	ListResults(ctx context.Context, filter store.ResultFilter) ([]models.InvestigationResult, error)
}

// IncidentService validates requests, enforces a single run per incident and
// persists results. Errors carry gRPC status codes.
type IncidentService struct {
	logger    *slog.Logger
	runner    Submitter
	resumer   Resumer
	results   ResultStore
	claims    cache.Provider
	claimTTL  time.Duration
	latencies *utils.LatencyTracker
	now       func() time.Time
}

// NewIncidentService constructs the facade. claims may be nil, in which case
// duplicate runs are not detected.
func NewIncidentService(logger *slog.Logger, runner Submitter, resumer Resumer, results ResultStore, claims cache.Provider, claimTTL time.Duration) *IncidentService {
	if logger == nil {
		logger = slog.Default()
	}
	if claims == nil {
		claims = cache.NoopProvider{}
	}
	if claimTTL <= 0 {
		claimTTL = 15 * time.Minute
	}
	return &IncidentService{
		logger:    logger,
		runner:    runner,
		resumer:   resumer,
		results:   results,
		claims:    claims,
		claimTTL:  claimTTL,
		latencies: utils.NewLatencyTracker(1024),
		now:       time.Now,
	}
}

// Investigate runs a new investigation for incident.
func (s *IncidentService) Investigate(ctx context.Context, incident models.IncidentEvent) (models.InvestigationResult, error) {
	if s.runner == nil {
		return models.InvestigationResult{}, status.Error(codes.FailedPrecondition, "investigation runner not configured")
	}
	incident.IncidentID = strings.TrimSpace(incident.IncidentID)
	incident.Service = strings.TrimSpace(incident.Service)
	if incident.IncidentID == "" {
		return models.InvestigationResult{}, status.Error(codes.InvalidArgument, "incident_id is required")
	}
	if incident.Timestamp.IsZero() {
		incident.Timestamp = s.now().UTC()
	}

	release, err := s.claim(ctx, incident.IncidentID)
	if err != nil {
		return models.InvestigationResult{}, err
	}
	defer release()

	s.logger.Debug("investigation requested", slog.String("incident_id", incident.IncidentID), slog.String("service", incident.Service))
	start := s.now()
	result, err := s.runner.Submit(ctx, incident)
	if err != nil {
		return models.InvestigationResult{}, contextStatus(err)
	}
	s.observe(s.now().Sub(start))
	s.persist(ctx, result)
	return result, nil
}

// Resume continues the checkpointed investigation of incidentID.
func (s *IncidentService) Resume(ctx context.Context, incidentID string) (models.InvestigationResult, error) {
	if s.resumer == nil {
		return models.InvestigationResult{}, status.Error(codes.FailedPrecondition, "checkpoint store not configured")
	}
	incidentID = strings.TrimSpace(incidentID)
	if incidentID == "" {
		return models.InvestigationResult{}, status.Error(codes.InvalidArgument, "incident_id is required")
	}

	release, err := s.claim(ctx, incidentID)
	if err != nil {
		return models.InvestigationResult{}, err
	}
	defer release()

	result, err := s.resumer.Resume(ctx, incidentID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return models.InvestigationResult{}, status.Errorf(codes.NotFound, "no checkpoint for incident %s", incidentID)
	case err != nil:
		s.logger.Error("resume failed", slog.String("incident_id", incidentID), slog.Any("error", err))
		return models.InvestigationResult{}, status.Error(codes.Internal, "failed to resume investigation")
	}
	s.persist(ctx, result)
	return result, nil
}

// Get returns the stored result for incidentID.
func (s *IncidentService) Get(ctx context.Context, incidentID string) (models.InvestigationResult, error) {
	if s.results == nil {
		return models.InvestigationResult{}, status.Error(codes.FailedPrecondition, "result store not configured")
	}
	if strings.TrimSpace(incidentID) == "" {
		return models.InvestigationResult{}, status.Error(codes.InvalidArgument, "incident_id is required")
	}
	result, err := s.results.GetResult(ctx, strings.TrimSpace(incidentID))
	switch {
	case errors.Is(err, store.ErrNotFound):
		return models.InvestigationResult{}, status.Errorf(codes.NotFound, "no investigation for incident %s", incidentID)
	case err != nil:
		s.logger.Error("get result failed", slog.String("incident_id", incidentID), slog.Any("error", err))
		return models.InvestigationResult{}, status.Error(codes.Internal, "failed to load investigation")
	}
	return result, nil
}

// List returns stored results, newest first.
func (s *IncidentService) List(ctx context.Context, filter store.ResultFilter) ([]models.InvestigationResult, error) {
	if s.results == nil {
		return nil, status.Error(codes.FailedPrecondition, "result store not configured")
	}
	if filter.Limit < 0 {
		return nil, status.Error(codes.InvalidArgument, "limit must not be negative")
	}
	results, err := s.results.ListResults(ctx, filter)
	if err != nil {
		s.logger.Error("list results failed", slog.Any("error", err))
		return nil, status.Error(codes.Internal, "failed to list investigations")
	}
	return results, nil
}

// LatencyP95 returns the current p95 investigation latency.
func (s *IncidentService) LatencyP95() time.Duration {
	return s.latencies.Percentile(95)
}

// claim reserves incidentID for one run. The returned func releases it.
func (s *IncidentService) claim(ctx context.Context, incidentID string) (func(), error) {
	key := "investigation:" + incidentID
	c, ok, err := cache.TryClaim(ctx, s.claims, key, s.now().UTC().Format(time.RFC3339), s.claimTTL)
	if err != nil {
		s.logger.Warn("run claim failed; continuing unclaimed", slog.String("incident_id", incidentID), slog.Any("error", err))
		return func() {}, nil
	}
	if !ok {
		if since, err := cache.Holder(ctx, s.claims, key); err == nil && since != "" {
			return nil, status.Errorf(codes.AlreadyExists, "investigation for incident %s already running since %s", incidentID, since)
		}
		return nil, status.Errorf(codes.AlreadyExists, "investigation for incident %s already running", incidentID)
	}
	return func() {
		if err := c.Release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("run claim release failed", slog.String("incident_id", incidentID), slog.Any("error", err))
		}
	}, nil
}

func (s *IncidentService) persist(ctx context.Context, result models.InvestigationResult) {
	if s.results == nil {
		return
	}
	if err := s.results.SaveResult(context.WithoutCancel(ctx), result); err != nil {
		s.logger.Error("persist result failed", slog.String("incident_id", result.IncidentID), slog.Any("error", err))
	}
}

func (s *IncidentService) observe(d time.Duration) {
	s.latencies.Observe(d)
	if count := s.latencies.Count(); count >= 20 && count%20 == 0 {
		snap := s.latencies.Snapshot()
		s.logger.Info("investigation latency",
			slog.Duration("p50", snap.P50),
			slog.Duration("p95", snap.P95),
			slog.Duration("p99", snap.P99),
			slog.Int("samples", snap.Count))
	}
}

func contextStatus(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	}
	return status.Error(codes.Unavailable, err.Error())
}
