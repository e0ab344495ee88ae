package api

import (
	"context"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/miradorstack/mirador-investigator/internal/models"
	"github.com/miradorstack/mirador-investigator/internal/store"
)

type serviceStub struct {
	investigated models.IncidentEvent
	filter       store.ResultFilter
	results      map[string]models.InvestigationResult
}

func (s *serviceStub) Investigate(_ context.Context, incident models.IncidentEvent) (models.InvestigationResult, error) {
	s.investigated = incident
	return models.InvestigationResult{
		IncidentID:        incident.IncidentID,
		Service:           incident.Service,
		Status:            models.StatusCompleted,
		Confidence:        80,
		RecommendedAction: models.EscalationAction(""),
		ExecutionType:     models.ExecutionEscalate,
	}, nil
}

func (s *serviceStub) Resume(_ context.Context, id string) (models.InvestigationResult, error) {
	if res, ok := s.results[id]; ok {
		return res, nil
	}
	return models.InvestigationResult{}, status.Error(codes.NotFound, "no checkpoint")
}

func (s *serviceStub) Get(_ context.Context, id string) (models.InvestigationResult, error) {
	if res, ok := s.results[id]; ok {
		return res, nil
	}
	return models.InvestigationResult{}, status.Error(codes.NotFound, "not found")
}

func (s *serviceStub) List(_ context.Context, filter store.ResultFilter) ([]models.InvestigationResult, error) {
	s.filter = filter
	out := make([]models.InvestigationResult, 0, len(s.results))
	for _, res := range s.results {
		out = append(out, res)
	}
	return out, nil
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	if err != nil {
		t.Fatalf("build struct: %v", err)
	}
	return s
}

func TestIncidentFromStruct(t *testing.T) {
	tests := []struct {
		name    string
		fields  map[string]any
		want    time.Time
		wantErr bool
	}{
		{
			name:   "rfc3339",
			fields: map[string]any{"incident_id": "inc-1", "service": "checkout", "timestamp": "2024-03-01T10:00:00Z", "value": 12.5, "tags": map[string]any{"region": "eu-west-1"}},
			want:   time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		},
		{
			name:   "epoch seconds",
			fields: map[string]any{"incident_id": "inc-1", "timestamp": 1709287200.0},
			want:   time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		},
		{
			name:   "no timestamp",
			fields: map[string]any{"incident_id": "inc-1"},
		},
		{name: "missing id", fields: map[string]any{"service": "checkout"}, wantErr: true},
		{name: "bad timestamp", fields: map[string]any{"incident_id": "inc-1", "timestamp": true}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			incident, err := IncidentFromStruct(mustStruct(t, tt.fields))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if incident.IncidentID != "inc-1" {
				t.Fatalf("unexpected incident id: %s", incident.IncidentID)
			}
			if !incident.Timestamp.Equal(tt.want) {
				t.Fatalf("timestamp = %v, want %v", incident.Timestamp, tt.want)
			}
		})
	}

	incident, _ := IncidentFromStruct(mustStruct(t, tests[0].fields))
	if incident.Region() != "eu-west-1" || incident.Value != 12.5 {
		t.Fatalf("unexpected mapping: %+v", incident)
	}
}

func TestFilterFromStruct(t *testing.T) {
	filter, err := FilterFromStruct(mustStruct(t, map[string]any{"service": "checkout", "status": "degraded", "limit": 25.0}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filter.Service != "checkout" || filter.Status != "degraded" || filter.Limit != 25 {
		t.Fatalf("unexpected filter: %+v", filter)
	}
	if _, err := FilterFromStruct(mustStruct(t, map[string]any{"limit": 2.5})); err == nil {
		t.Fatalf("expected fractional limit to be rejected")
	}
}

func TestHandlersInvestigate(t *testing.T) {
	stub := &serviceStub{}
	h := NewHandlers(stub)

	resp, err := h.Investigate(context.Background(), mustStruct(t, map[string]any{"incident_id": "inc-9", "service": "payments"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stub.investigated.Service != "payments" {
		t.Fatalf("service not forwarded: %+v", stub.investigated)
	}
	fields := resp.GetFields()
	if fields["incident_id"].GetStringValue() != "inc-9" {
		t.Fatalf("unexpected response: %v", resp)
	}
	if fields["recommended_action"].GetStructValue().GetFields()["action_type"].GetStringValue() != "escalate" {
		t.Fatalf("recommended action missing from response: %v", resp)
	}

	_, err = h.Investigate(context.Background(), mustStruct(t, map[string]any{"service": "payments"}))
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestHandlersGetAndList(t *testing.T) {
	stub := &serviceStub{results: map[string]models.InvestigationResult{
		"inc-1": {IncidentID: "inc-1", Service: "checkout", Status: models.StatusDegraded},
	}}
	h := NewHandlers(stub)

	resp, err := h.GetInvestigation(context.Background(), mustStruct(t, map[string]any{"incident_id": "inc-1"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.GetFields()["status"].GetStringValue() != models.StatusDegraded {
		t.Fatalf("unexpected response: %v", resp)
	}

	_, err = h.GetInvestigation(context.Background(), mustStruct(t, map[string]any{}))
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected invalid argument, got %v", err)
	}
	_, err = h.ResumeInvestigation(context.Background(), mustStruct(t, map[string]any{"incident_id": "nope"}))
	if status.Code(err) != codes.NotFound {
		t.Fatalf("expected not found, got %v", err)
	}

	list, err := h.ListInvestigations(context.Background(), mustStruct(t, map[string]any{"service": "checkout", "limit": 5.0}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stub.filter.Limit != 5 || stub.filter.Service != "checkout" {
		t.Fatalf("filter not forwarded: %+v", stub.filter)
	}
	if n := len(list.GetFields()["investigations"].GetListValue().GetValues()); n != 1 {
		t.Fatalf("expected one investigation, got %d", n)
	}
}
