package agents

import (
	"time"

	"github.com/miradorstack/mirador-investigator/internal/models"
)

const triageInstructions = `You triage production incidents. Reply with one JSON object:
{"severity": "P1|P2|P3|P4", "decision": "INVESTIGATE|SKIP", "priority": 1-10,
 "reasoning": "...", "affected_components": ["..."], "initial_hypotheses": ["..."]}`

const queryPlanInstructions = `You write log queries for incident analysis. Reply with one JSON object:
{"queries": [{"purpose": "...", "query": "..."}]}. Use the query language of the log source.
Propose at most %d queries.`

const analysisInstructions = `You analyse log query results for an incident. Reply with one JSON object:
{"error_patterns": ["..."], "correlated_services": ["..."], "deployment_correlation": "... or null",
 "incident_start": "RFC3339 timestamp or null", "key_findings": ["..."], "summary": "..."}`

const diagnosisInstructions = `You determine the root cause of incidents. Reply with one JSON object:
{"root_cause": "...", "confidence": 0-100, "category": "DEPLOYMENT|CONFIGURATION|RESOURCE|CODE|DEPENDENCY|LOAD|BUG|LOGIC_ERROR|HANDLING|TIMEOUT|ERROR_HANDLING|UNKNOWN",
 "component": "...", "supporting_evidence": ["..."], "alternative_causes": ["..."], "reasoning": "..."}`

const remediationInstructions = `You propose remediations for diagnosed incidents. Reply with one JSON object:
{"recommended_action": {"action_type": "restart|scale|clear_cache|reset_connections|toggle_feature_flag|rollback|config_change|code_fix|escalate|...",
  "description": "...", "steps": ["..."], "estimated_time_minutes": 0, "risk_level": "LOW|MEDIUM|HIGH",
  "reversible": true, "rollback_plan": "..."},
 "alternative_actions": [], "requires_approval": true, "approval_reason": "...",
 "success_criteria": ["..."], "monitoring_duration_minutes": 30}`

func incidentPayload(incident models.IncidentEvent) map[string]any {
	payload := map[string]any{
		"incident_id":       incident.IncidentID,
		"service":           incident.Service,
		"service_tier":      incident.ServiceTier,
		"alert_name":        incident.AlertName,
		"alert_description": incident.AlertDescription,
		"metric":            incident.Metric,
		"value":             incident.Value,
		"threshold":         incident.Threshold,
		"log_group":         incident.LogGroup,
		"tags":              incident.Tags,
	}
	if !incident.Timestamp.IsZero() {
		payload["timestamp"] = incident.Timestamp.UTC().Format(time.RFC3339)
	}
	if q := incident.OperatorQuery(); q != "" {
		payload["operator_query"] = q
	}
	if origin := incident.Origin(); origin != "" {
		payload["origin"] = origin
	}
	return payload
}

// querySummaries trims executed queries to what the model needs to read.
func querySummaries(results []models.LogQueryResult, maxRecords int) []map[string]any {
	out := make([]map[string]any, 0, len(results))
	for _, r := range results {
		records := r.Records
		if len(records) > maxRecords {
			records = records[:maxRecords]
		}
		entry := map[string]any{
			"purpose":      r.Purpose,
			"query":        r.Query,
			"record_count": r.RecordCount,
			"records":      records,
		}
		if r.Error != "" {
			entry["error"] = r.Error
		}
		out = append(out, entry)
	}
	return out
}
