package agents

import (
	"context"
	"log/slog"

	"github.com/miradorstack/mirador-investigator/internal/models"
)

// Triage grades an incident and proposes whether to investigate it.
type Triage struct {
	base
}

// NewTriage constructs the triage agent.
func NewTriage(opts Options) *Triage {
	return &Triage{base: newBase(StageTriage, opts)}
}

// Run returns the triage result. A non-nil error means the result is the
// P2/INVESTIGATE fallback.
func (t *Triage) Run(ctx context.Context, incident models.IncidentEvent) (models.TriageResult, error) {
	text, err := t.infer(ctx, triageInstructions, map[string]any{"incident": incidentPayload(incident)})
	if err != nil {
		t.logger.Warn("triage fell back to default", slog.String("incident_id", incident.IncidentID), slog.Any("error", err))
		return TriageSchema{}.Default(), err
	}
	res, err := decode[models.TriageResult](t.base, text, TriageSchema{})
	if err != nil {
		t.logger.Warn("triage fell back to default", slog.String("incident_id", incident.IncidentID), slog.Any("error", err))
		return res, err
	}
	t.logger.Info("triage complete",
		slog.String("incident_id", incident.IncidentID),
		slog.String("severity", string(res.Severity)),
		slog.String("decision", string(res.Decision)),
		slog.Int("priority", res.Priority))
	return res, nil
}
