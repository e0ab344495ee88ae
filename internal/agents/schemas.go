package agents

import (
	"regexp"
	"strings"
	"time"

	"github.com/miradorstack/mirador-investigator/internal/models"
	"github.com/miradorstack/mirador-investigator/internal/parser"
	"github.com/miradorstack/mirador-investigator/internal/utils"
)

// Conservative values used when a stage cannot produce its own.
const (
	DefaultPriority          = 5
	DefaultConfidence        = 25
	DefaultMonitoringMinutes = 30
	defaultActionMinutes     = 30
	maxListItems             = 20
	maxTextLen               = 2000
)

var categoryToken = regexp.MustCompile(`^[A-Z][A-Z0-9_]{1,39}$`)

// TriageSchema decodes TriageResult.
type TriageSchema struct{}

// Default is the triage fallback: P2, INVESTIGATE.
func (TriageSchema) Default() models.TriageResult {
	return models.TriageResult{
		Severity:           models.SeverityP2,
		Decision:           models.DecisionInvestigate,
		Priority:           DefaultPriority,
		Reasoning:          "Triage unavailable; defaulting to P2 and investigating",
		AffectedComponents: []string{},
		InitialHypotheses:  []string{},
		Degraded:           true,
	}
}

// FromFields implements parser.Schema.
func (TriageSchema) FromFields(f parser.Fields) models.TriageResult {
	return models.TriageResult{
		Severity:           severity(f.String("severity", "")),
		Decision:           decision(f.String("decision", "")),
		Priority:           clamp(f.Int("priority", DefaultPriority), 1, 10),
		Reasoning:          text(f.String("reasoning", "")),
		AffectedComponents: list(f.StringList("affected_components")),
		InitialHypotheses:  list(f.StringList("initial_hypotheses")),
		Degraded:           f.Bool("degraded", false),
	}
}

func severity(v string) models.Severity {
	v = strings.ToUpper(strings.TrimSpace(v))
	v = strings.TrimPrefix(v, "SEV")
	v = strings.TrimSpace(v)
	if len(v) == 1 && v[0] >= '1' && v[0] <= '4' {
		v = "P" + v
	}
	s := models.Severity(v)
	if s.Valid() {
		return s
	}
	return models.SeverityP2
}

func decision(v string) models.TriageDecision {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "SKIP", "IGNORE", "DISMISS", "NO_ACTION":
		return models.DecisionSkip
	default:
		return models.DecisionInvestigate
	}
}

// AnalysisSchema decodes AnalysisResult. The stage agent overwrites the
// query results and error count with what it actually executed.
type AnalysisSchema struct{}

// Default is the analysis fallback: empty evidence, never absent.
func (AnalysisSchema) Default() models.AnalysisResult {
	return models.AnalysisResult{
		LogQueries:         []models.LogQueryResult{},
		ErrorPatterns:      []string{},
		CorrelatedServices: []string{},
		KeyFindings:        []string{},
		Summary:            "Log analysis unavailable",
		Degraded:           true,
	}
}

// FromFields implements parser.Schema.
func (AnalysisSchema) FromFields(f parser.Fields) models.AnalysisResult {
	res := models.AnalysisResult{
		LogQueries:            logQueries(f.Objects("log_queries")),
		ErrorPatterns:         list(f.StringList("error_patterns")),
		ErrorCount:            max(f.Int("error_count", 0), 0),
		CorrelatedServices:    list(f.StringList("correlated_services")),
		DeploymentCorrelation: text(f.String("deployment_correlation", "")),
		KeyFindings:           list(f.StringList("key_findings")),
		Summary:               text(f.String("summary", "")),
		Degraded:              f.Bool("degraded", false),
	}
	if raw := f.String("incident_start", ""); raw != "" {
		if at, err := utils.ParseTimestamp(raw, time.Time{}); err == nil {
			res.IncidentStart = &at
		}
	}
	if isNone(res.DeploymentCorrelation) {
		res.DeploymentCorrelation = ""
	}
	return res
}

func logQueries(objs []parser.Fields) []models.LogQueryResult {
	out := make([]models.LogQueryResult, 0, len(objs))
	for _, o := range objs {
		q := models.LogQueryResult{
			Purpose: o.String("purpose", ""),
			Query:   o.String("query", ""),
			Error:   o.String("error", ""),
			Records: make([]map[string]string, 0),
		}
		for _, rec := range o.Objects("records") {
			flat := make(map[string]string, len(rec))
			for k := range rec {
				flat[k] = rec.String(k, "")
			}
			q.Records = append(q.Records, flat)
		}
		q.RecordCount = max(o.Int("record_count", len(q.Records)), 0)
		if o.Has("execution_time_ms") {
			ms := o.Float("execution_time_ms", 0)
			q.ExecutionTimeMS = &ms
		}
		out = append(out, q)
	}
	return out
}

// DiagnosisSchema decodes DiagnosisResult.
type DiagnosisSchema struct{}

// Default is the diagnosis fallback: UNKNOWN with low confidence.
func (DiagnosisSchema) Default() models.DiagnosisResult {
	return models.DiagnosisResult{
		RootCause:          "Root cause could not be determined automatically",
		Confidence:         DefaultConfidence,
		Category:           models.CategoryUnknown,
		SupportingEvidence: []string{},
		AlternativeCauses:  []string{},
		Reasoning:          "Diagnosis unavailable; manual investigation required",
		Degraded:           true,
	}
}

// FromFields implements parser.Schema.
func (DiagnosisSchema) FromFields(f parser.Fields) models.DiagnosisResult {
	rootCause := text(f.String("root_cause", ""))
	if rootCause == "" {
		rootCause = "Root cause could not be determined automatically"
	}
	return models.DiagnosisResult{
		RootCause:          rootCause,
		Confidence:         confidence(f, "confidence", DefaultConfidence),
		Category:           category(f.String("category", "")),
		Component:          text(f.String("component", "")),
		SupportingEvidence: list(f.StringList("supporting_evidence")),
		AlternativeCauses:  list(f.StringList("alternative_causes")),
		Reasoning:          text(f.String("reasoning", "")),
		Degraded:           f.Bool("degraded", false),
	}
}

// confidence reads a 0-100 score. Fractions written as decimals in (0, 1]
// are read as probabilities and scaled, so 0.85 and "85%" agree.
func confidence(f parser.Fields, key string, def int) int {
	if !f.Has(key) {
		return def
	}
	raw := f.String(key, "")
	v := f.Float(key, -1)
	if v < 0 {
		if strings.HasPrefix(strings.TrimSpace(raw), "-") {
			return 0
		}
		return def
	}
	if v > 0 && v <= 1 && strings.ContainsAny(raw, ".eE") && !strings.Contains(raw, "%") {
		v *= 100
	}
	if v > 100 {
		return 100
	}
	return clamp(int(v+0.5), 0, 100)
}

func category(v string) string {
	c := strings.ToUpper(strings.TrimSpace(v))
	c = strings.NewReplacer("-", "_", " ", "_").Replace(c)
	if categoryToken.MatchString(c) {
		return c
	}
	return models.CategoryUnknown
}

// RemediationSchema decodes RemediationResult. Approval is forced whenever the
// recommended action is not both LOW risk and reversible.
type RemediationSchema struct{}

// Default is the remediation fallback: escalate, approval required.
func (RemediationSchema) Default() models.RemediationResult {
	return models.RemediationResult{
		RecommendedAction:         models.EscalationAction("remediation could not be generated automatically"),
		AlternativeActions:        []models.RemediationAction{},
		RequiresApproval:          true,
		ApprovalReason:            "Automated remediation unavailable; a human must decide",
		SuccessCriteria:           []string{"Service metrics return to baseline", "No new alerts for the affected service"},
		MonitoringDurationMinutes: DefaultMonitoringMinutes,
		Degraded:                  true,
	}
}

// FromFields implements parser.Schema.
func (RemediationSchema) FromFields(f parser.Fields) models.RemediationResult {
	rec := f.Object("recommended_action")
	if rec == nil && f.Has("action_type") {
		rec = f
	}
	var action models.RemediationAction
	if rec == nil {
		action = models.EscalationAction("no remediation action was proposed")
	} else {
		action = remediationAction(rec)
	}

	alternatives := make([]models.RemediationAction, 0)
	for _, alt := range f.Objects("alternative_actions") {
		alternatives = append(alternatives, remediationAction(alt))
	}

	res := models.RemediationResult{
		RecommendedAction:         action,
		AlternativeActions:        alternatives,
		ExecutionType:             models.ExecutionType(f.Enum("execution_type", "", string(models.ExecutionAutoExecute), string(models.ExecutionCodeFix), string(models.ExecutionEscalate))),
		ExecutionMetadata:         f.Object("execution_metadata"),
		RequiresApproval:          f.Bool("requires_approval", true),
		ApprovalReason:            text(f.String("approval_reason", "")),
		SuccessCriteria:           list(f.StringList("success_criteria")),
		MonitoringDurationMinutes: clamp(f.Int("monitoring_duration_minutes", DefaultMonitoringMinutes), 0, 24*60),
		Degraded:                  f.Bool("degraded", false),
	}
	return hardenApproval(res)
}

func remediationAction(f parser.Fields) models.RemediationAction {
	actionType := strings.TrimSpace(f.String("action_type", ""))
	if actionType == "" {
		actionType = "manual"
	}
	return models.RemediationAction{
		ActionType:           actionType,
		Description:          text(f.String("description", "")),
		Steps:                list(f.StringList("steps")),
		EstimatedTimeMinutes: clamp(f.Int("estimated_time_minutes", defaultActionMinutes), 0, 7*24*60),
		RiskLevel:            models.RiskLevel(f.Enum("risk_level", string(models.RiskHigh), string(models.RiskLow), string(models.RiskMedium), string(models.RiskHigh))),
		Reversible:           f.Bool("reversible", false),
		RollbackPlan:         text(f.String("rollback_plan", "")),
	}
}

func hardenApproval(res models.RemediationResult) models.RemediationResult {
	a := res.RecommendedAction
	if a.RiskLevel == models.RiskLow && a.Reversible {
		return res
	}
	if !res.RequiresApproval || res.ApprovalReason == "" {
		res.ApprovalReason = "Action is " + strings.ToLower(string(a.RiskLevel)) + " risk"
		if !a.Reversible {
			res.ApprovalReason += " and not reversible"
		}
	}
	res.RequiresApproval = true
	return res
}

// PlannedQuery is one log query proposed for analysis.
type PlannedQuery struct {
	Purpose string `json:"purpose"`
	Query   string `json:"query"`
}

type queryPlanSchema struct {
	limit int
}

func (queryPlanSchema) Default() []PlannedQuery { return nil }

func (s queryPlanSchema) FromFields(f parser.Fields) []PlannedQuery {
	var out []PlannedQuery
	for _, item := range f.List("queries") {
		var q PlannedQuery
		switch v := item.(type) {
		case string:
			q.Query = strings.TrimSpace(v)
		case map[string]any:
			obj := parser.Fields(v)
			q = PlannedQuery{Purpose: obj.String("purpose", ""), Query: obj.String("query", "")}
		}
		if q.Query == "" {
			continue
		}
		out = append(out, q)
		if len(out) == s.limit {
			break
		}
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func list(items []string) []string {
	if items == nil {
		return []string{}
	}
	if len(items) > maxListItems {
		items = items[:maxListItems]
	}
	for i, s := range items {
		items[i] = utils.Truncate(s, maxTextLen)
	}
	return items
}

func text(s string) string {
	return utils.Truncate(strings.TrimSpace(s), maxTextLen)
}

func isNone(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "null", "n/a", "no", "unknown":
		return true
	}
	return false
}
