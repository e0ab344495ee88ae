package agents

import (
	"context"
	"log/slog"

	"github.com/miradorstack/mirador-investigator/internal/models"
)

// Remediation proposes an action plan for a diagnosed incident. The execution
// type is left empty; routing assigns it.
type Remediation struct {
	base
}

// NewRemediation constructs the remediation agent.
func NewRemediation(opts Options) *Remediation {
	return &Remediation{base: newBase(StageRemediation, opts)}
}

// Run returns the remediation proposal. A non-nil error means the result is
// the escalate fallback with approval required.
func (r *Remediation) Run(ctx context.Context, incident models.IncidentEvent, diagnosis models.Upstream[models.DiagnosisResult], analysis models.Upstream[models.AnalysisResult]) (models.RemediationResult, error) {
	d := Normalize(diagnosis, DiagnosisSchema{})
	a := Normalize(analysis, AnalysisSchema{})

	payload := map[string]any{
		"incident": incidentPayload(incident),
		"diagnosis": map[string]any{
			"root_cause":          d.RootCause,
			"confidence":          d.Confidence,
			"category":            d.Category,
			"component":           d.Component,
			"supporting_evidence": d.SupportingEvidence,
		},
		"analysis": map[string]any{
			"summary":                a.Summary,
			"deployment_correlation": a.DeploymentCorrelation,
			"correlated_services":    a.CorrelatedServices,
		},
	}

	text, err := r.infer(ctx, remediationInstructions, payload)
	if err != nil {
		r.logger.Warn("remediation fell back to default", slog.String("incident_id", incident.IncidentID), slog.Any("error", err))
		return RemediationSchema{}.Default(), err
	}
	res, err := decode[models.RemediationResult](r.base, text, RemediationSchema{})
	if err != nil {
		r.logger.Warn("remediation fell back to default", slog.String("incident_id", incident.IncidentID), slog.Any("error", err))
		return res, err
	}
	res.ExecutionType = ""
	res.ExecutionMetadata = nil
	r.logger.Info("remediation proposed",
		slog.String("incident_id", incident.IncidentID),
		slog.String("action_type", res.RecommendedAction.ActionType),
		slog.String("risk", string(res.RecommendedAction.RiskLevel)),
		slog.Bool("requires_approval", res.RequiresApproval))
	return res, nil
}
