package models

import "time"

// Severity is the triage priority class.
type Severity string

const (
	SeverityP1 Severity = "P1"
	SeverityP2 Severity = "P2"
	SeverityP3 Severity = "P3"
	SeverityP4 Severity = "P4"
)

// Valid reports whether s is one of P1..P4.
func (s Severity) Valid() bool {
	switch s {
	case SeverityP1, SeverityP2, SeverityP3, SeverityP4:
		return true
	}
	return false
}

// TriageDecision is the gate outcome proposed by triage.
type TriageDecision string

const (
	DecisionInvestigate TriageDecision = "INVESTIGATE"
	DecisionSkip        TriageDecision = "SKIP"
)

// TriageResult is produced once per incident by the triage stage.
type TriageResult struct {
	Severity           Severity       `json:"severity"`
	Decision           TriageDecision `json:"decision"`
	Priority           int            `json:"priority"`
	Reasoning          string         `json:"reasoning"`
	AffectedComponents []string       `json:"affected_components"`
	InitialHypotheses  []string       `json:"initial_hypotheses"`
	Degraded           bool           `json:"degraded,omitempty"`
}

// LogQueryResult pairs one generated query with what the log-query service returned.
type LogQueryResult struct {
	Purpose         string              `json:"purpose,omitempty"`
	Query           string              `json:"query"`
	Records         []map[string]string `json:"records"`
	RecordCount     int                 `json:"record_count"`
	ExecutionTimeMS *float64            `json:"execution_time_ms,omitempty"`
	Error           string              `json:"error,omitempty"`
}

// Succeeded reports whether the query executed without error.
func (r LogQueryResult) Succeeded() bool {
	return r.Error == ""
}

// AnalysisResult summarises log evidence. It may be partially empty but is never absent.
type AnalysisResult struct {
	LogQueries            []LogQueryResult `json:"log_queries"`
	ErrorPatterns         []string         `json:"error_patterns"`
	ErrorCount            int              `json:"error_count"`
	CorrelatedServices    []string         `json:"correlated_services"`
	DeploymentCorrelation string           `json:"deployment_correlation,omitempty"`
	IncidentStart         *time.Time       `json:"incident_start,omitempty"`
	KeyFindings           []string         `json:"key_findings"`
	Summary               string           `json:"summary"`
	Degraded              bool             `json:"degraded,omitempty"`
}

// Diagnosis categories. The set is open; these are the values the engine reasons about.
const (
	CategoryDeployment    = "DEPLOYMENT"
	CategoryConfiguration = "CONFIGURATION"
	CategoryResource      = "RESOURCE"
	CategoryCode          = "CODE"
	CategoryDependency    = "DEPENDENCY"
	CategoryLoad          = "LOAD"
	CategoryBug           = "BUG"
	CategoryLogicError    = "LOGIC_ERROR"
	CategoryHandling      = "HANDLING"
	CategoryTimeout       = "TIMEOUT"
	CategoryErrorHandling = "ERROR_HANDLING"
	CategoryUnknown       = "UNKNOWN"
)

// DiagnosisResult is the root-cause hypothesis with calibrated confidence (0-100).
type DiagnosisResult struct {
	RootCause          string   `json:"root_cause"`
	Confidence         int      `json:"confidence"`
	Category           string   `json:"category"`
	Component          string   `json:"component"`
	SupportingEvidence []string `json:"supporting_evidence"`
	AlternativeCauses  []string `json:"alternative_causes"`
	Reasoning          string   `json:"reasoning"`
	Degraded           bool     `json:"degraded,omitempty"`
}

// RiskLevel grades the blast radius of a remediation action.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// RemediationAction is one concrete, ordered plan.
type RemediationAction struct {
	ActionType           string    `json:"action_type"`
	Description          string    `json:"description"`
	Steps                []string  `json:"steps"`
	EstimatedTimeMinutes int       `json:"estimated_time_minutes"`
	RiskLevel            RiskLevel `json:"risk_level"`
	Reversible           bool      `json:"reversible"`
	RollbackPlan         string    `json:"rollback_plan,omitempty"`
}

// ExecutionType is assigned by the execution router, never by the inference service.
type ExecutionType string

const (
	ExecutionAutoExecute ExecutionType = "AUTO_EXECUTE"
	ExecutionCodeFix     ExecutionType = "CODE_FIX"
	ExecutionEscalate    ExecutionType = "ESCALATE"
)

// RemediationResult is the remediation proposal plus routing decision.
type RemediationResult struct {
	RecommendedAction         RemediationAction   `json:"recommended_action"`
	AlternativeActions        []RemediationAction `json:"alternative_actions"`
	ExecutionType             ExecutionType       `json:"execution_type"`
	ExecutionMetadata         map[string]any      `json:"execution_metadata,omitempty"`
	RequiresApproval          bool                `json:"requires_approval"`
	ApprovalReason            string              `json:"approval_reason,omitempty"`
	SuccessCriteria           []string            `json:"success_criteria"`
	MonitoringDurationMinutes int                 `json:"monitoring_duration_minutes"`
	Degraded                  bool                `json:"degraded,omitempty"`
}

// EscalationAction is the conservative default plan used whenever nothing better is known.
func EscalationAction(reason string) RemediationAction {
	if reason == "" {
		reason = "Automated investigation could not produce a safe remediation"
	}
	return RemediationAction{
		ActionType:           "escalate",
		Description:          "Monitor the service and escalate to the on-call engineer: " + reason,
		Steps:                []string{"Page the on-call engineer for the affected service", "Monitor key service metrics until a human takes ownership"},
		EstimatedTimeMinutes: 15,
		RiskLevel:            RiskLow,
		Reversible:           true,
	}
}
