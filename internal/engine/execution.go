package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/miradorstack/mirador-investigator/internal/models"
	"github.com/miradorstack/mirador-investigator/internal/repo"
	"github.com/miradorstack/mirador-investigator/internal/utils"
)

// execute acts on the routed remediation. Collaborator failures are reported
// in the outcome, never returned.
func (o *Orchestrator) execute(ctx context.Context, s models.InvestigationState) models.ExecutionOutcome {
	now := o.now().UTC()
	rem := s.Remediation
	if rem == nil {
		return models.ExecutionOutcome{Type: models.ExecutionEscalate, Status: models.ExecutionStatusEscalated, Detail: "no remediation available", At: now}
	}

	switch rem.ExecutionType {
	case models.ExecutionAutoExecute:
		return o.autoExecute(ctx, s, *rem, now)
	case models.ExecutionCodeFix:
		return o.openIssue(ctx, s, *rem, now)
	default:
		reason := metaString(rem.ExecutionMetadata, "reason")
		if reason == "" {
			reason = "escalated to on-call engineer"
		}
		return models.ExecutionOutcome{Type: models.ExecutionEscalate, Status: models.ExecutionStatusEscalated, Detail: reason, At: now}
	}
}

func (o *Orchestrator) autoExecute(ctx context.Context, s models.InvestigationState, rem models.RemediationResult, now time.Time) models.ExecutionOutcome {
	action := rem.RecommendedAction
	outcome := models.ExecutionOutcome{Type: models.ExecutionAutoExecute, At: now}
	service := metaString(rem.ExecutionMetadata, "target_service")
	if service == "" {
		service = s.Incident.Service
	}

	if rem.RequiresApproval {
		outcome.Status = models.ExecutionStatusEscalated
		outcome.Detail = fmt.Sprintf("%s on %s awaits approval: %s", action.ActionType, service, rem.ApprovalReason)
		return outcome
	}
	if o.dryRun || o.executor == nil || !o.executor.Enabled() {
		outcome.Status = models.ExecutionStatusSimulated
		outcome.Detail = fmt.Sprintf("dry run: would %s %s (%d steps)", action.ActionType, service, len(action.Steps))
		return outcome
	}

	receipt, err := o.executor.Execute(ctx, repo.ExecutionRequest{
		IncidentID: s.Incident.IncidentID,
		Service:    service,
		Region:     metaString(rem.ExecutionMetadata, "region"),
		Action:     action,
		Metadata:   rem.ExecutionMetadata,
	})
	if err != nil {
		o.logger.Warn("remediation dispatch failed",
			slog.String("incident_id", s.Incident.IncidentID),
			slog.String("action_type", action.ActionType),
			slog.Any("error", err))
		outcome.Status = models.ExecutionStatusFailed
		outcome.Detail = "remediation dispatch failed: " + err.Error()
		return outcome
	}
	outcome.Status = models.ExecutionStatusExecuted
	outcome.Detail = strings.TrimSpace(receipt.Status + " " + receipt.Message)
	return outcome
}

func (o *Orchestrator) openIssue(ctx context.Context, s models.InvestigationState, rem models.RemediationResult, now time.Time) models.ExecutionOutcome {
	outcome := models.ExecutionOutcome{Type: models.ExecutionCodeFix, At: now}
	if o.issues == nil {
		outcome.Status = models.ExecutionStatusFailed
		outcome.Detail = "issue tracker not configured"
		return outcome
	}

	issue := buildIssue(s, rem)
	url, err := o.issues.CreateIssue(ctx, issue)
	if err != nil {
		o.logger.Warn("issue creation failed",
			slog.String("incident_id", s.Incident.IncidentID),
			slog.String("repository", issue.Repository),
			slog.Any("error", err))
		outcome.Status = models.ExecutionStatusFailed
		outcome.Detail = "issue creation failed: " + err.Error()
		return outcome
	}
	outcome.Status = models.ExecutionStatusIssueCreated
	outcome.Detail = "issue opened in " + issue.Repository
	outcome.IssueURL = url
	return outcome
}

func buildIssue(s models.InvestigationState, rem models.RemediationResult) repo.Issue {
	incident := s.Incident
	rootCause := metaString(rem.ExecutionMetadata, "root_cause")
	category := metaString(rem.ExecutionMetadata, "category")
	if s.Diagnosis != nil {
		if rootCause == "" {
			rootCause = s.Diagnosis.RootCause
		}
		if category == "" {
			category = s.Diagnosis.Category
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## Incident %s\n\n", incident.IncidentID)
	fmt.Fprintf(&b, "- Service: `%s`\n", incident.Service)
	if incident.AlertName != "" {
		fmt.Fprintf(&b, "- Alert: %s\n", incident.AlertName)
	}
	if !incident.Timestamp.IsZero() {
		fmt.Fprintf(&b, "- Detected: %s\n", incident.Timestamp.UTC().Format(time.RFC3339))
	}
	fmt.Fprintf(&b, "- Category: %s\n", category)
	if s.Diagnosis != nil {
		fmt.Fprintf(&b, "- Confidence: %d%%\n", s.Diagnosis.Confidence)
	}
	if component := metaString(rem.ExecutionMetadata, "component"); component != "" {
		fmt.Fprintf(&b, "- Component: %s\n", component)
	}
	fmt.Fprintf(&b, "\n## Root cause\n\n%s\n", rootCause)
	if s.Diagnosis != nil && len(s.Diagnosis.SupportingEvidence) > 0 {
		b.WriteString("\n## Evidence\n\n")
		for _, e := range s.Diagnosis.SupportingEvidence {
			fmt.Fprintf(&b, "- %s\n", e)
		}
	}
	action := rem.RecommendedAction
	fmt.Fprintf(&b, "\n## Proposed fix\n\n%s\n", action.Description)
	for i, step := range action.Steps {
		fmt.Fprintf(&b, "%d. %s\n", i+1, step)
	}

	var labels []string
	if category != "" {
		labels = append(labels, strings.ToLower(category))
	}
	return repo.Issue{
		Repository: metaString(rem.ExecutionMetadata, "repository"),
		Title:      utils.Truncate(fmt.Sprintf("[%s] %s: %s", incident.IncidentID, incident.Service, rootCause), 120),
		Body:       b.String(),
		Labels:     labels,
	}
}

func metaString(meta map[string]any, key string) string {
	if meta == nil {
		return ""
	}
	switch v := meta[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
