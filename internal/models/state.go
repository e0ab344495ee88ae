package models

import "time"

// Step names a state of the investigation state machine.
type Step string

const (
	StepTriage      Step = "TRIAGE"
	StepAnalysis    Step = "ANALYSIS"
	StepDiagnosis   Step = "DIAGNOSIS"
	StepRemediation Step = "REMEDIATION"
	StepExecution   Step = "EXECUTION"
	StepDone        Step = "DONE"
)

// StageError is an append-only, stage-tagged failure note.
type StageError struct {
	Stage   Step      `json:"stage"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// ExecutionStatus describes what the execution step actually did.
type ExecutionStatus string

const (
	ExecutionStatusExecuted     ExecutionStatus = "executed"
	ExecutionStatusSimulated    ExecutionStatus = "simulated"
	ExecutionStatusIssueCreated ExecutionStatus = "issue_created"
	ExecutionStatusEscalated    ExecutionStatus = "escalated"
	ExecutionStatusFailed       ExecutionStatus = "failed"
)

// ExecutionOutcome records the result of acting on the routed remediation.
type ExecutionOutcome struct {
	Type     ExecutionType   `json:"type"`
	Status   ExecutionStatus `json:"status"`
	Detail   string          `json:"detail,omitempty"`
	IssueURL string          `json:"issue_url,omitempty"`
	At       time.Time       `json:"at"`
}

// InvestigationState is the mutable accumulator owned by exactly one orchestrator run.
type InvestigationState struct {
	RunID       string             `json:"run_id"`
	Incident    IncidentEvent      `json:"incident"`
	Triage      *TriageResult      `json:"triage,omitempty"`
	Analysis    *AnalysisResult    `json:"analysis,omitempty"`
	Diagnosis   *DiagnosisResult   `json:"diagnosis,omitempty"`
	Remediation *RemediationResult `json:"remediation,omitempty"`
	Execution   *ExecutionOutcome  `json:"execution,omitempty"`
	Errors      []StageError       `json:"errors"`
	CurrentStep Step               `json:"current_step"`
	Skipped     bool               `json:"skipped,omitempty"`
	StartedAt   time.Time          `json:"started_at"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
}

// NewInvestigationState starts a state at TRIAGE.
func NewInvestigationState(runID string, incident IncidentEvent, now time.Time) InvestigationState {
	return InvestigationState{
		RunID:       runID,
		Incident:    incident,
		Errors:      []StageError{},
		CurrentStep: StepTriage,
		StartedAt:   now,
	}
}

// WithError returns a copy of s with msg appended to its errors. The receiver's
// backing array is never written to, so earlier snapshots stay intact.
func (s InvestigationState) WithError(stage Step, msg string, at time.Time) InvestigationState {
	errs := make([]StageError, len(s.Errors), len(s.Errors)+1)
	copy(errs, s.Errors)
	s.Errors = append(errs, StageError{Stage: stage, Message: msg, At: at})
	return s
}

// Outcome labels for a finished investigation.
const (
	StatusCompleted = "completed"
	StatusDegraded  = "degraded"
	StatusSkipped   = "skipped"
	StatusFailed    = "failed"
)

// InvestigationResult is the terminal, serialisable snapshot handed to the caller.
type InvestigationResult struct {
	IncidentID                   string             `json:"incident_id"`
	Service                      string             `json:"service"`
	Status                       string             `json:"status"`
	Severity                     Severity           `json:"severity"`
	RootCause                    string             `json:"root_cause"`
	Confidence                   int                `json:"confidence"`
	Category                     string             `json:"category"`
	RecommendedAction            RemediationAction  `json:"recommended_action"`
	ExecutionType                ExecutionType      `json:"execution_type"`
	InvestigationDurationSeconds float64            `json:"investigation_duration_seconds"`
	ExecutiveSummary             string             `json:"executive_summary"`
	FullState                    InvestigationState `json:"full_state"`
}
