package api

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/miradorstack/mirador-investigator/internal/models"
	"github.com/miradorstack/mirador-investigator/internal/store"
	"github.com/miradorstack/mirador-investigator/internal/utils"
)

// IncidentService is the facade the handlers delegate to.
type IncidentService interface {
	Investigate(ctx context.Context, incident models.IncidentEvent) (models.InvestigationResult, error)
	Resume(ctx context.Context, incidentID string) (models.InvestigationResult, error)
	Get(ctx context.Context, incidentID string) (models.InvestigationResult, error)
	List(ctx context.Context, filter store.ResultFilter) ([]models.InvestigationResult, error)
}

// Handlers adapts IncidentService to InvestigatorServer.
type Handlers struct {
	service IncidentService
}

// NewHandlers constructs the gRPC handlers.
func NewHandlers(service IncidentService) *Handlers {
	return &Handlers{service: service}
}

// Investigate implements InvestigatorServer.
func (h *Handlers) Investigate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	incident, err := IncidentFromStruct(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	res, err := h.service.Investigate(ctx, incident)
	if err != nil {
		return nil, err
	}
	return resultResponse(res)
}

// GetInvestigation implements InvestigatorServer.
func (h *Handlers) GetInvestigation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := incidentID(req)
	if err != nil {
		return nil, err
	}
	res, err := h.service.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return resultResponse(res)
}

// ListInvestigations implements InvestigatorServer.
func (h *Handlers) ListInvestigations(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	filter, err := FilterFromStruct(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	results, err := h.service.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	items := make([]any, 0, len(results))
	for _, res := range results {
		m, err := toMap(res)
		if err != nil {
			return nil, status.Error(codes.Internal, err.Error())
		}
		items = append(items, m)
	}
	out, err := structpb.NewStruct(map[string]any{"investigations": items, "count": len(items)})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// ResumeInvestigation implements InvestigatorServer.
func (h *Handlers) ResumeInvestigation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := incidentID(req)
	if err != nil {
		return nil, err
	}
	res, err := h.service.Resume(ctx, id)
	if err != nil {
		return nil, err
	}
	return resultResponse(res)
}

// IncidentFromStruct maps a request document into an IncidentEvent. The
// timestamp may be RFC 3339, a free-form date, or epoch seconds.
func IncidentFromStruct(req *structpb.Struct) (models.IncidentEvent, error) {
	if req == nil {
		return models.IncidentEvent{}, fmt.Errorf("request is nil")
	}
	fields := req.AsMap()
	if ts, ok := fields["timestamp"]; ok {
		normalised, err := normaliseTimestamp(ts)
		if err != nil {
			return models.IncidentEvent{}, err
		}
		if normalised == "" {
			delete(fields, "timestamp")
		} else {
			fields["timestamp"] = normalised
		}
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return models.IncidentEvent{}, fmt.Errorf("encode request: %w", err)
	}
	var incident models.IncidentEvent
	if err := json.Unmarshal(data, &incident); err != nil {
		return models.IncidentEvent{}, fmt.Errorf("decode incident: %w", err)
	}
	if strings.TrimSpace(incident.IncidentID) == "" {
		return models.IncidentEvent{}, fmt.Errorf("incident_id is required")
	}
	return incident, nil
}

// FilterFromStruct maps a list request into a store filter.
func FilterFromStruct(req *structpb.Struct) (store.ResultFilter, error) {
	var filter store.ResultFilter
	if req == nil {
		return filter, nil
	}
	fields := req.GetFields()
	filter.Service = fields["service"].GetStringValue()
	filter.Status = fields["status"].GetStringValue()
	if v, ok := fields["limit"]; ok {
		n := v.GetNumberValue()
		if n < 0 || n != math.Trunc(n) {
			return filter, fmt.Errorf("limit must be a non-negative integer")
		}
		filter.Limit = int(n)
	}
	return filter, nil
}

// ResultToStruct converts a result into its response document.
func ResultToStruct(res models.InvestigationResult) (*structpb.Struct, error) {
	m, err := toMap(res)
	if err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

func resultResponse(res models.InvestigationResult) (*structpb.Struct, error) {
	out, err := ResultToStruct(res)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func incidentID(req *structpb.Struct) (string, error) {
	id := strings.TrimSpace(req.GetFields()["incident_id"].GetStringValue())
	if id == "" {
		return "", status.Error(codes.InvalidArgument, "incident_id is required")
	}
	return id, nil
}

func normaliseTimestamp(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case float64:
		sec, frac := math.Modf(t)
		return time.Unix(int64(sec), int64(frac*1e9)).UTC().Format(time.RFC3339Nano), nil
	case string:
		if strings.TrimSpace(t) == "" {
			return "", nil
		}
		parsed, err := utils.ParseTimestamp(t, time.Time{})
		if err != nil {
			return "", fmt.Errorf("timestamp: %w", err)
		}
		return parsed.Format(time.RFC3339Nano), nil
	}
	return "", fmt.Errorf("timestamp must be a string or epoch seconds")
}

// toMap converts v to the generic map form structpb accepts.
func toMap(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}
