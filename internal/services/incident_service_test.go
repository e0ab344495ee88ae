package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/miradorstack/mirador-investigator/internal/cache"
	"github.com/miradorstack/mirador-investigator/internal/models"
	"github.com/miradorstack/mirador-investigator/internal/store"
)

type submitFunc func(ctx context.Context, incident models.IncidentEvent) (models.InvestigationResult, error)

func (f submitFunc) Submit(ctx context.Context, incident models.IncidentEvent) (models.InvestigationResult, error) {
	return f(ctx, incident)
}

type resumeFunc func(ctx context.Context, incidentID string) (models.InvestigationResult, error)

func (f resumeFunc) Resume(ctx context.Context, incidentID string) (models.InvestigationResult, error) {
	return f(ctx, incidentID)
}

func completed(incident models.IncidentEvent) models.InvestigationResult {
	return models.InvestigationResult{IncidentID: incident.IncidentID, Service: incident.Service, Status: models.StatusCompleted}
}

func newStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func newClaims(t *testing.T) cache.Provider {
	t.Helper()
	p, err := cache.NewLRUProvider(cache.LRUConfig{Size: 16, TTL: time.Minute})
	require.NoError(t, err)
	return p
}

func TestInvestigatePersistsResult(t *testing.T) {
	st := newStore(t)
	var got models.IncidentEvent
	svc := NewIncidentService(nil, submitFunc(func(_ context.Context, incident models.IncidentEvent) (models.InvestigationResult, error) {
		got = incident
		return completed(incident), nil
	}), nil, st, newClaims(t), time.Minute)

	res, err := svc.Investigate(context.Background(), models.IncidentEvent{IncidentID: " inc-1 ", Service: "checkout"})
	require.NoError(t, err)
	assert.Equal(t, "inc-1", res.IncidentID)
	assert.Equal(t, "inc-1", got.IncidentID)
	assert.False(t, got.Timestamp.IsZero(), "missing timestamps default to now")

	stored, err := svc.Get(context.Background(), "inc-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, stored.Status)

	list, err := svc.List(context.Background(), store.ResultFilter{Service: "checkout"})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestInvestigateValidation(t *testing.T) {
	svc := NewIncidentService(nil, submitFunc(func(_ context.Context, incident models.IncidentEvent) (models.InvestigationResult, error) {
		return completed(incident), nil
	}), nil, nil, nil, 0)

	_, err := svc.Investigate(context.Background(), models.IncidentEvent{Service: "checkout"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = NewIncidentService(nil, nil, nil, nil, nil, 0).Investigate(context.Background(), models.IncidentEvent{IncidentID: "x"})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	_, err = svc.Get(context.Background(), "x")
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
}

func TestInvestigateRejectsConcurrentDuplicate(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	svc := NewIncidentService(nil, submitFunc(func(_ context.Context, incident models.IncidentEvent) (models.InvestigationResult, error) {
		close(started)
		<-release
		return completed(incident), nil
	}), nil, nil, newClaims(t), time.Minute)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Investigate(context.Background(), models.IncidentEvent{IncidentID: "inc-7"})
		done <- err
	}()
	<-started

	_, err := svc.Investigate(context.Background(), models.IncidentEvent{IncidentID: "inc-7"})
	assert.Equal(t, codes.AlreadyExists, status.Code(err))

	close(release)
	require.NoError(t, <-done)

	svc.runner = submitFunc(func(_ context.Context, incident models.IncidentEvent) (models.InvestigationResult, error) {
		return completed(incident), nil
	})
	_, err = svc.Investigate(context.Background(), models.IncidentEvent{IncidentID: "inc-7"})
	assert.NoError(t, err, "the claim is released once the run finishes")
}

func TestInvestigateMapsRunnerErrors(t *testing.T) {
	svc := NewIncidentService(nil, submitFunc(func(ctx context.Context, _ models.IncidentEvent) (models.InvestigationResult, error) {
		return models.InvestigationResult{}, context.DeadlineExceeded
	}), nil, nil, nil, 0)

	_, err := svc.Investigate(context.Background(), models.IncidentEvent{IncidentID: "x"})
	assert.Equal(t, codes.DeadlineExceeded, status.Code(err))
}

func TestResume(t *testing.T) {
	st := newStore(t)
	resumer := resumeFunc(func(_ context.Context, id string) (models.InvestigationResult, error) {
		switch id {
		case "known":
			return models.InvestigationResult{IncidentID: id, Status: models.StatusDegraded}, nil
		case "broken":
			return models.InvestigationResult{}, errors.New("corrupt checkpoint")
		}
		return models.InvestigationResult{}, store.ErrNotFound
	})
	svc := NewIncidentService(nil, nil, resumer, st, newClaims(t), time.Minute)

	res, err := svc.Resume(context.Background(), "known")
	require.NoError(t, err)
	assert.Equal(t, models.StatusDegraded, res.Status)
	stored, err := svc.Get(context.Background(), "known")
	require.NoError(t, err)
	assert.Equal(t, "known", stored.IncidentID)

	_, err = svc.Resume(context.Background(), "unknown")
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = svc.Resume(context.Background(), "broken")
	assert.Equal(t, codes.Internal, status.Code(err))

	_, err = svc.Get(context.Background(), "unknown")
	assert.Equal(t, codes.NotFound, status.Code(err))
}
