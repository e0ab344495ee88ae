package agents

import (
	"context"
	"log/slog"

	"github.com/miradorstack/mirador-investigator/internal/models"
)

// Diagnosis proposes a root cause from triage and analysis evidence.
type Diagnosis struct {
	base
}

// NewDiagnosis constructs the diagnosis agent.
func NewDiagnosis(opts Options) *Diagnosis {
	return &Diagnosis{base: newBase(StageDiagnosis, opts)}
}

// Run returns the diagnosis. A non-nil error means the result is the UNKNOWN fallback.
func (d *Diagnosis) Run(ctx context.Context, incident models.IncidentEvent, triage models.Upstream[models.TriageResult], analysis models.Upstream[models.AnalysisResult]) (models.DiagnosisResult, error) {
	t := Normalize(triage, TriageSchema{})
	a := Normalize(analysis, AnalysisSchema{})

	payload := map[string]any{
		"incident": incidentPayload(incident),
		"triage": map[string]any{
			"severity":            t.Severity,
			"reasoning":           t.Reasoning,
			"affected_components": t.AffectedComponents,
			"initial_hypotheses":  t.InitialHypotheses,
		},
		"analysis": map[string]any{
			"summary":                a.Summary,
			"error_patterns":         a.ErrorPatterns,
			"error_count":            a.ErrorCount,
			"correlated_services":    a.CorrelatedServices,
			"deployment_correlation": a.DeploymentCorrelation,
			"incident_start":         a.IncidentStart,
			"key_findings":           a.KeyFindings,
		},
	}

	text, err := d.infer(ctx, diagnosisInstructions, payload)
	if err != nil {
		d.logger.Warn("diagnosis fell back to default", slog.String("incident_id", incident.IncidentID), slog.Any("error", err))
		return DiagnosisSchema{}.Default(), err
	}
	res, err := decode[models.DiagnosisResult](d.base, text, DiagnosisSchema{})
	if err != nil {
		d.logger.Warn("diagnosis fell back to default", slog.String("incident_id", incident.IncidentID), slog.Any("error", err))
		return res, err
	}
	d.logger.Info("diagnosis complete",
		slog.String("incident_id", incident.IncidentID),
		slog.String("category", res.Category),
		slog.Int("confidence", res.Confidence))
	return res, nil
}
