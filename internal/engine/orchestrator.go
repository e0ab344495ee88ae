// Package engine runs investigations: the stage state machine, the execution
// step, result assembly and bounded concurrent runs.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/miradorstack/mirador-investigator/internal/metrics"
	"github.com/miradorstack/mirador-investigator/internal/models"
	"github.com/miradorstack/mirador-investigator/internal/repo"
	"github.com/miradorstack/mirador-investigator/internal/store"
)

// TriageStage grades an incident.
type TriageStage interface {
	Run(ctx context.Context, incident models.IncidentEvent) (models.TriageResult, error)
}

// AnalysisStage gathers log evidence.
type AnalysisStage interface {
	Run(ctx context.Context, incident models.IncidentEvent, triage models.Upstream[models.TriageResult]) (models.AnalysisResult, error)
}

// DiagnosisStage proposes a root cause.
type DiagnosisStage interface {
	Run(ctx context.Context, incident models.IncidentEvent, triage models.Upstream[models.TriageResult], analysis models.Upstream[models.AnalysisResult]) (models.DiagnosisResult, error)
}

// RemediationStage proposes an action plan.
type RemediationStage interface {
	Run(ctx context.Context, incident models.IncidentEvent, diagnosis models.Upstream[models.DiagnosisResult], analysis models.Upstream[models.AnalysisResult]) (models.RemediationResult, error)
}

// Classifier assigns the execution path of a remediation.
type Classifier interface {
	Classify(action *models.RemediationAction, diagnosis *models.DiagnosisResult, incident models.IncidentEvent) (models.ExecutionType, map[string]any)
}

// Checkpointer persists investigation state between transitions.
type Checkpointer interface {
	SaveCheckpoint(ctx context.Context, state models.InvestigationState) error
	LoadCheckpoint(ctx context.Context, incidentID string) (store.Checkpoint, error)
}

// IssueCreator files code-fix issues.
type IssueCreator interface {
	CreateIssue(ctx context.Context, issue repo.Issue) (string, error)
}

// RemediationExecutor dispatches auto-executable actions.
type RemediationExecutor interface {
	Enabled() bool
	Execute(ctx context.Context, req repo.ExecutionRequest) (repo.ExecutionReceipt, error)
}

// Stages bundles the four stage agents.
type Stages struct {
	Triage      TriageStage
	Analysis    AnalysisStage
	Diagnosis   DiagnosisStage
	Remediation RemediationStage
}

// Options configures an Orchestrator. Stages and Router are required.
type Options struct {
	Stages      Stages
	Router      Classifier
	Checkpoints Checkpointer
	Issues      IssueCreator
	Executor    RemediationExecutor
	Logger      *slog.Logger
	Tracer      trace.Tracer

	// AlwaysInvestigateOperatorQueries lets human-initiated incidents pass the
	// triage gate even when triage proposes SKIP.
	AlwaysInvestigateOperatorQueries bool

	// DryRun records auto-executable actions as simulated instead of dispatching them.
	DryRun bool

	CheckpointTimeout time.Duration
	Now               func() time.Time
	NewRunID          func() string
}

// Orchestrator drives one incident through the stage state machine. It holds
// no per-run state and is safe for concurrent use.
type Orchestrator struct {
	stages            Stages
	router            Classifier
	checkpoints       Checkpointer
	issues            IssueCreator
	executor          RemediationExecutor
	logger            *slog.Logger
	tracer            trace.Tracer
	alwaysInvestigate bool
	dryRun            bool
	checkpointTimeout time.Duration
	now               func() time.Time
	newRunID          func() string
}

// New constructs an Orchestrator.
func New(opts Options) (*Orchestrator, error) {
	s := opts.Stages
	if s.Triage == nil || s.Analysis == nil || s.Diagnosis == nil || s.Remediation == nil {
		return nil, errors.New("all four investigation stages are required")
	}
	if opts.Router == nil {
		return nil, errors.New("execution router is required")
	}
	o := &Orchestrator{
		stages:            s,
		router:            opts.Router,
		checkpoints:       opts.Checkpoints,
		issues:            opts.Issues,
		executor:          opts.Executor,
		logger:            opts.Logger,
		tracer:            opts.Tracer,
		alwaysInvestigate: opts.AlwaysInvestigateOperatorQueries,
		dryRun:            opts.DryRun,
		checkpointTimeout: opts.CheckpointTimeout,
		now:               opts.Now,
		newRunID:          opts.NewRunID,
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.tracer == nil {
		o.tracer = noop.NewTracerProvider().Tracer("engine")
	}
	if o.checkpointTimeout <= 0 {
		o.checkpointTimeout = 5 * time.Second
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.newRunID == nil {
		o.newRunID = uuid.NewString
	}
	return o, nil
}

// restored holds stage results recovered from a checkpoint in untyped form.
// They are handed downstream as raw upstreams.
type restored struct {
	triage    map[string]any
	analysis  map[string]any
	diagnosis map[string]any
}

// Investigate runs the full state machine for incident. It always returns a
// complete result; failures are reported through the result itself.
func (o *Orchestrator) Investigate(ctx context.Context, incident models.IncidentEvent) models.InvestigationResult {
	state := models.NewInvestigationState(o.newRunID(), incident, o.now().UTC())
	return o.run(ctx, state, restored{})
}

// Resume continues the checkpointed investigation of incidentID from the step
// it stopped at. A finished checkpoint is rebuilt into its result without
// running any stage.
func (o *Orchestrator) Resume(ctx context.Context, incidentID string) (models.InvestigationResult, error) {
	if o.checkpoints == nil {
		return models.InvestigationResult{}, errors.New("checkpoint store not configured")
	}
	cp, err := o.checkpoints.LoadCheckpoint(ctx, incidentID)
	if err != nil {
		return models.InvestigationResult{}, fmt.Errorf("load checkpoint %s: %w", incidentID, err)
	}
	state, raw, err := restoreState(cp.State)
	if err != nil {
		return models.InvestigationResult{}, fmt.Errorf("restore checkpoint %s: %w", incidentID, err)
	}
	if state.CurrentStep == models.StepDone {
		return BuildResult(state, o.now().UTC()), nil
	}
	o.logger.Info("resuming investigation",
		slog.String("incident_id", incidentID),
		slog.String("run_id", state.RunID),
		slog.String("step", string(state.CurrentStep)))
	return o.run(ctx, state, raw), nil
}

func (o *Orchestrator) run(ctx context.Context, state models.InvestigationState, raw restored) (result models.InvestigationResult) {
	logger := o.logger.With(slog.String("incident_id", state.Incident.IncidentID), slog.String("run_id", state.RunID))
	ctx, span := o.tracer.Start(ctx, "investigation", trace.WithAttributes(
		attribute.String("incident.id", state.Incident.IncidentID),
		attribute.String("incident.service", state.Incident.Service),
		attribute.String("run.id", state.RunID),
	))
	started := o.now()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("investigation panicked", slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
			span.SetStatus(codes.Error, "panic")
			result = FailedResult(state, fmt.Sprintf("unexpected failure during %s: %v", state.CurrentStep, r), o.now().UTC())
		}
		outcome := outcomeOf(result)
		span.SetAttributes(attribute.String("investigation.status", result.Status))
		span.End()
		metrics.ObserveInvestigation(o.now().Sub(started), outcome)
		logger.Info("investigation finished",
			slog.String("status", result.Status),
			slog.String("execution_type", string(result.ExecutionType)),
			slog.Int("confidence", result.Confidence),
			slog.Int("errors", len(result.FullState.Errors)))
	}()

	for state.CurrentStep != models.StepDone {
		if err := ctx.Err(); err != nil {
			state = state.WithError(state.CurrentStep, "investigation cancelled: "+err.Error(), o.now().UTC())
			o.checkpoint(ctx, logger, state)
			return BuildResult(state, o.now().UTC())
		}
		state = o.transition(ctx, state, raw)
		o.checkpoint(ctx, logger, state)
	}
	return BuildResult(state, o.now().UTC())
}

// transition executes the current step and returns the next state.
func (o *Orchestrator) transition(ctx context.Context, s models.InvestigationState, raw restored) models.InvestigationState {
	switch s.CurrentStep {
	case models.StepTriage:
		return o.triage(ctx, s)
	case models.StepAnalysis:
		return o.analysis(ctx, s, raw)
	case models.StepDiagnosis:
		return o.diagnosis(ctx, s, raw)
	case models.StepRemediation:
		return o.remediation(ctx, s, raw)
	case models.StepExecution:
		return o.execution(ctx, s)
	default:
		s = s.WithError(s.CurrentStep, fmt.Sprintf("unknown step %q", s.CurrentStep), o.now().UTC())
		return o.finish(s)
	}
}

func (o *Orchestrator) triage(ctx context.Context, s models.InvestigationState) models.InvestigationState {
	var res models.TriageResult
	err := o.stage(ctx, models.StepTriage, func(ctx context.Context) (err error) {
		res, err = o.stages.Triage.Run(ctx, s.Incident)
		return err
	})
	if err != nil {
		s = s.WithError(models.StepTriage, err.Error(), o.now().UTC())
		res = triageFallback(res)
	}
	s.Triage = &res

	if o.gate(res, s.Incident) {
		s.CurrentStep = models.StepAnalysis
		return s
	}
	s.Skipped = true
	return o.finish(s)
}

// gate decides whether the investigation proceeds past triage.
func (o *Orchestrator) gate(res models.TriageResult, incident models.IncidentEvent) bool {
	if res.Decision == models.DecisionInvestigate {
		return true
	}
	return o.alwaysInvestigate && incident.IsOperatorInitiated()
}

func (o *Orchestrator) analysis(ctx context.Context, s models.InvestigationState, raw restored) models.InvestigationState {
	var res models.AnalysisResult
	err := o.stage(ctx, models.StepAnalysis, func(ctx context.Context) (err error) {
		res, err = o.stages.Analysis.Run(ctx, s.Incident, triageInput(s, raw))
		return err
	})
	if err != nil {
		s = s.WithError(models.StepAnalysis, err.Error(), o.now().UTC())
		res = analysisFallback(res)
	}
	s.Analysis = &res
	s.CurrentStep = models.StepDiagnosis
	return s
}

func (o *Orchestrator) diagnosis(ctx context.Context, s models.InvestigationState, raw restored) models.InvestigationState {
	var res models.DiagnosisResult
	err := o.stage(ctx, models.StepDiagnosis, func(ctx context.Context) (err error) {
		res, err = o.stages.Diagnosis.Run(ctx, s.Incident, triageInput(s, raw), analysisInput(s, raw))
		return err
	})
	if err != nil {
		s = s.WithError(models.StepDiagnosis, err.Error(), o.now().UTC())
		res = diagnosisFallback(res)
	}
	s.Diagnosis = &res
	s.CurrentStep = models.StepRemediation
	return s
}

func (o *Orchestrator) remediation(ctx context.Context, s models.InvestigationState, raw restored) models.InvestigationState {
	var res models.RemediationResult
	err := o.stage(ctx, models.StepRemediation, func(ctx context.Context) (err error) {
		res, err = o.stages.Remediation.Run(ctx, s.Incident, diagnosisInput(s, raw), analysisInput(s, raw))
		return err
	})
	if err != nil {
		s = s.WithError(models.StepRemediation, err.Error(), o.now().UTC())
		res = remediationFallback(res)
	}

	execType, metadata := o.router.Classify(&res.RecommendedAction, s.Diagnosis, s.Incident)
	res.ExecutionType = execType
	res.ExecutionMetadata = metadata
	metrics.ObserveRoute(string(execType))

	s.Remediation = &res
	s.CurrentStep = models.StepExecution
	return s
}

func (o *Orchestrator) execution(ctx context.Context, s models.InvestigationState) models.InvestigationState {
	var outcome models.ExecutionOutcome
	_ = o.stage(ctx, models.StepExecution, func(ctx context.Context) error {
		outcome = o.execute(ctx, s)
		if outcome.Status == models.ExecutionStatusFailed {
			return errors.New(outcome.Detail)
		}
		return nil
	})
	if outcome.Status == models.ExecutionStatusFailed {
		s = s.WithError(models.StepExecution, outcome.Detail, o.now().UTC())
	}
	s.Execution = &outcome
	return o.finish(s)
}

func (o *Orchestrator) finish(s models.InvestigationState) models.InvestigationState {
	done := o.now().UTC()
	s.CurrentStep = models.StepDone
	s.CompletedAt = &done
	return s
}

// stage runs fn inside a span and records its latency and outcome.
func (o *Orchestrator) stage(ctx context.Context, step models.Step, fn func(context.Context) error) error {
	name := stageName(step)
	ctx, span := o.tracer.Start(ctx, "investigation."+name)
	defer span.End()

	started := o.now()
	err := fn(ctx)
	metrics.ObserveStage(name, o.now().Sub(started), err == nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (o *Orchestrator) checkpoint(ctx context.Context, logger *slog.Logger, s models.InvestigationState) {
	if o.checkpoints == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.checkpointTimeout)
	defer cancel()
	if err := o.checkpoints.SaveCheckpoint(ctx, s); err != nil {
		logger.Warn("checkpoint write failed", slog.String("step", string(s.CurrentStep)), slog.Any("error", err))
	}
}

func triageInput(s models.InvestigationState, raw restored) models.Upstream[models.TriageResult] {
	switch {
	case raw.triage != nil:
		return models.Raw[models.TriageResult](raw.triage)
	case s.Triage != nil:
		return models.Typed(*s.Triage)
	}
	return models.Missing[models.TriageResult]()
}

func analysisInput(s models.InvestigationState, raw restored) models.Upstream[models.AnalysisResult] {
	switch {
	case raw.analysis != nil:
		return models.Raw[models.AnalysisResult](raw.analysis)
	case s.Analysis != nil:
		return models.Typed(*s.Analysis)
	}
	return models.Missing[models.AnalysisResult]()
}

func diagnosisInput(s models.InvestigationState, raw restored) models.Upstream[models.DiagnosisResult] {
	switch {
	case raw.diagnosis != nil:
		return models.Raw[models.DiagnosisResult](raw.diagnosis)
	case s.Diagnosis != nil:
		return models.Typed(*s.Diagnosis)
	}
	return models.Missing[models.DiagnosisResult]()
}

// restoreState decodes a checkpoint. Stage results are kept twice: typed, for
// result assembly, and as the untyped maps they were stored as, for the next
// stage's input.
func restoreState(data json.RawMessage) (models.InvestigationState, restored, error) {
	var state models.InvestigationState
	if err := json.Unmarshal(data, &state); err != nil {
		return models.InvestigationState{}, restored{}, err
	}
	var shape struct {
		Triage    map[string]any `json:"triage"`
		Analysis  map[string]any `json:"analysis"`
		Diagnosis map[string]any `json:"diagnosis"`
	}
	if err := json.Unmarshal(data, &shape); err != nil {
		return models.InvestigationState{}, restored{}, err
	}
	if state.Errors == nil {
		state.Errors = []models.StageError{}
	}
	if state.CurrentStep == "" {
		state.CurrentStep = models.StepTriage
	}
	return state, restored{triage: shape.Triage, analysis: shape.Analysis, diagnosis: shape.Diagnosis}, nil
}

func stageName(step models.Step) string {
	switch step {
	case models.StepTriage:
		return "triage"
	case models.StepAnalysis:
		return "analysis"
	case models.StepDiagnosis:
		return "diagnosis"
	case models.StepRemediation:
		return "remediation"
	case models.StepExecution:
		return "execution"
	}
	return "unknown"
}

func outcomeOf(res models.InvestigationResult) string {
	switch res.Status {
	case models.StatusCompleted:
		return metrics.OutcomeSuccess
	case models.StatusDegraded:
		return metrics.OutcomeDegraded
	case models.StatusSkipped:
		return metrics.OutcomeSkipped
	}
	return metrics.OutcomeError
}
