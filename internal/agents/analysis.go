package agents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/miradorstack/mirador-investigator/internal/metrics"
	"github.com/miradorstack/mirador-investigator/internal/models"
	"github.com/miradorstack/mirador-investigator/internal/patterns"
	"github.com/miradorstack/mirador-investigator/internal/repo"
)

// LogQuerier runs one log query.
type LogQuerier interface {
	Query(ctx context.Context, q repo.LogQuery) (repo.LogQueryResponse, error)
}

// AnalysisOptions configures the log analysis stage.
type AnalysisOptions struct {
	Options
	// Logs may be nil; analysis then degrades to empty query results.
	Logs  LogQuerier
	Miner *patterns.Miner
	// Lookback and Lookahead bound the query window around the incident timestamp.
	Lookback       time.Duration
	Lookahead      time.Duration
	MaxQueries     int
	MaxConcurrency int
	Now            func() time.Time
}

// Analysis plans log queries, fans them out, and interprets the evidence.
type Analysis struct {
	base
	logs           LogQuerier
	miner          *patterns.Miner
	lookback       time.Duration
	lookahead      time.Duration
	maxQueries     int
	maxConcurrency int
	now            func() time.Time
}

// NewAnalysis constructs the analysis agent.
func NewAnalysis(opts AnalysisOptions) *Analysis {
	a := &Analysis{
		base:           newBase(StageAnalysis, opts.Options),
		logs:           opts.Logs,
		miner:          opts.Miner,
		lookback:       opts.Lookback,
		lookahead:      opts.Lookahead,
		maxQueries:     opts.MaxQueries,
		maxConcurrency: opts.MaxConcurrency,
		now:            opts.Now,
	}
	if a.lookback <= 0 {
		a.lookback = 30 * time.Minute
	}
	if a.lookahead < 0 {
		a.lookahead = 0
	}
	if a.maxQueries <= 0 {
		a.maxQueries = 5
	}
	if a.maxConcurrency <= 0 {
		a.maxConcurrency = 4
	}
	if a.now == nil {
		a.now = time.Now
	}
	if a.miner == nil {
		a.miner = patterns.NewMiner(a.logger, nil)
	}
	return a
}

// Run returns the analysis result, which is never absent. A failed query only
// empties that query's result; error_count counts records of successful
// queries. A non-nil error means planning or interpretation fell back.
func (a *Analysis) Run(ctx context.Context, incident models.IncidentEvent, triage models.Upstream[models.TriageResult]) (models.AnalysisResult, error) {
	t := Normalize(triage, TriageSchema{})
	logger := a.logger.With(slog.String("incident_id", incident.IncidentID))

	var stageErrs []error

	plan, err := a.plan(ctx, incident, t)
	if err != nil {
		logger.Warn("query planning fell back to defaults", slog.Any("error", err))
		stageErrs = append(stageErrs, err)
		plan = defaultQueries()
	}

	results := a.execute(ctx, incident, plan)
	errorCount := 0
	var records []map[string]string
	for _, r := range results {
		if r.Succeeded() {
			errorCount += r.RecordCount
			records = append(records, r.Records...)
		}
	}

	signatures, err := a.miner.Mine(ctx, incident.Service, records)
	if err != nil {
		logger.Warn("error signatures not persisted", slog.Any("error", err))
	}

	res, err := a.interpret(ctx, incident, t, results)
	if err != nil {
		logger.Warn("analysis interpretation fell back", slog.Any("error", err))
		stageErrs = append(stageErrs, err)
		res = AnalysisSchema{}.Default()
		res.Summary = fallbackSummary(results, errorCount)
	}

	res.LogQueries = results
	res.ErrorCount = errorCount
	res.ErrorPatterns = mergePatterns(res.ErrorPatterns, signatures, maxListItems)
	if res.IncidentStart == nil {
		res.IncidentStart = onset(records, signatures)
	}
	if len(stageErrs) > 0 {
		res.Degraded = true
	}

	logger.Info("analysis complete",
		slog.Int("queries", len(results)),
		slog.Int("error_count", res.ErrorCount),
		slog.Int("patterns", len(res.ErrorPatterns)))
	return res, errors.Join(stageErrs...)
}

func (a *Analysis) plan(ctx context.Context, incident models.IncidentEvent, t models.TriageResult) ([]PlannedQuery, error) {
	payload := map[string]any{
		"incident": incidentPayload(incident),
		"triage": map[string]any{
			"severity":            t.Severity,
			"affected_components": t.AffectedComponents,
			"initial_hypotheses":  t.InitialHypotheses,
		},
	}
	text, err := a.infer(ctx, fmt.Sprintf(queryPlanInstructions, a.maxQueries), payload)
	if err != nil {
		return nil, err
	}
	queries, err := decode[[]PlannedQuery](a.base, text, queryPlanSchema{limit: a.maxQueries})
	if err != nil {
		return nil, err
	}
	if len(queries) == 0 {
		return nil, fmt.Errorf("%s: no log queries proposed", a.stage)
	}
	return queries, nil
}

// execute runs every planned query concurrently. Results keep plan order.
func (a *Analysis) execute(ctx context.Context, incident models.IncidentEvent, plan []PlannedQuery) []models.LogQueryResult {
	results := make([]models.LogQueryResult, len(plan))
	start, end := a.window(incident)

	var g errgroup.Group
	g.SetLimit(a.maxConcurrency)
	for i, q := range plan {
		g.Go(func() error {
			results[i] = a.runQuery(ctx, incident, q, start, end)
			metrics.ObserveLogQuery(results[i].Succeeded())
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (a *Analysis) runQuery(ctx context.Context, incident models.IncidentEvent, q PlannedQuery, start, end time.Time) (res models.LogQueryResult) {
	res = models.LogQueryResult{Purpose: q.Purpose, Query: q.Query, Records: []map[string]string{}}
	defer func() {
		if r := recover(); r != nil {
			res = models.LogQueryResult{Purpose: q.Purpose, Query: q.Query, Records: []map[string]string{}, Error: fmt.Sprintf("log query panicked: %v", r)}
		}
	}()

	switch {
	case a.logs == nil:
		res.Error = repo.ErrLogQueryDisabled.Error()
		return res
	case strings.TrimSpace(incident.LogGroup) == "":
		res.Error = "incident has no log source"
		return res
	}

	resp, err := a.logs.Query(ctx, repo.LogQuery{Source: incident.LogGroup, Query: q.Query, Start: start, End: end})
	if err != nil {
		a.logger.Warn("log query failed",
			slog.String("incident_id", incident.IncidentID),
			slog.String("purpose", q.Purpose),
			slog.Any("error", err))
		res.Error = err.Error()
		return res
	}
	if resp.Records != nil {
		res.Records = resp.Records
	}
	res.RecordCount = resp.RecordCount
	res.ExecutionTimeMS = resp.ExecutionTimeMS
	return res
}

func (a *Analysis) window(incident models.IncidentEvent) (time.Time, time.Time) {
	anchor := incident.Timestamp
	if anchor.IsZero() {
		anchor = a.now()
	}
	return anchor.Add(-a.lookback), anchor.Add(a.lookahead)
}

func (a *Analysis) interpret(ctx context.Context, incident models.IncidentEvent, t models.TriageResult, results []models.LogQueryResult) (models.AnalysisResult, error) {
	payload := map[string]any{
		"incident":       incidentPayload(incident),
		"triage_summary": t.Reasoning,
		"log_queries":    querySummaries(results, 20),
	}
	text, err := a.infer(ctx, analysisInstructions, payload)
	if err != nil {
		return AnalysisSchema{}.Default(), err
	}
	return decode[models.AnalysisResult](a.base, text, AnalysisSchema{})
}

func defaultQueries() []PlannedQuery {
	return []PlannedQuery{
		{Purpose: "recent errors", Query: "fields @timestamp, @message | filter @message like /(?i)(error|exception|fatal)/ | sort @timestamp desc | limit 100"},
		{Purpose: "timeouts", Query: "fields @timestamp, @message | filter @message like /(?i)(timeout|timed out|deadline exceeded)/ | sort @timestamp desc | limit 50"},
		{Purpose: "deployments and config changes", Query: "fields @timestamp, @message | filter @message like /(?i)(deploy|release|version|config)/ | sort @timestamp desc | limit 50"},
	}
}

func fallbackSummary(results []models.LogQueryResult, errorCount int) string {
	ok := 0
	for _, r := range results {
		if r.Succeeded() {
			ok++
		}
	}
	return fmt.Sprintf("Automated interpretation unavailable; %d of %d log queries succeeded with %d matching records", ok, len(results), errorCount)
}

func mergePatterns(reported []string, mined []patterns.Signature, limit int) []string {
	out := make([]string, 0, len(reported)+len(mined))
	seen := make(map[string]struct{})
	add := func(s string) {
		s = strings.TrimSpace(s)
		key := strings.ToLower(s)
		if s == "" {
			return
		}
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	for _, p := range reported {
		add(p)
	}
	for _, sig := range mined {
		add(sig.Template)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// onset estimates when the incident started: the first error burst when one
// stands out, otherwise the earliest sighting of any mined signature.
func onset(records []map[string]string, signatures []patterns.Signature) *time.Time {
	if bursts := patterns.DetectBursts(records, time.Minute); len(bursts) > 0 {
		start := bursts[0].Start
		return &start
	}
	return earliest(signatures)
}

func earliest(signatures []patterns.Signature) *time.Time {
	var first time.Time
	for _, s := range signatures {
		if s.FirstSeen.IsZero() {
			continue
		}
		if first.IsZero() || s.FirstSeen.Before(first) {
			first = s.FirstSeen
		}
	}
	if first.IsZero() {
		return nil
	}
	return &first
}
