// Package agents implements the investigation stages. Each stage makes one
// inference call, decodes the answer through its schema, and falls back to a
// conservative, explicitly degraded result on any failure.
package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/miradorstack/mirador-investigator/internal/llm"
	"github.com/miradorstack/mirador-investigator/internal/metrics"
	"github.com/miradorstack/mirador-investigator/internal/parser"
)

// Stage names used in logs, metrics and inference budgets.
const (
	StageTriage      = "triage"
	StageAnalysis    = "analysis"
	StageDiagnosis   = "diagnosis"
	StageRemediation = "remediation"
)

// Budget is the per-stage output size and sampling temperature.
type Budget struct {
	MaxTokens   int
	Temperature float64
}

// BudgetFunc resolves the budget for a stage.
type BudgetFunc func(stage string) Budget

// Options carries what every stage agent needs.
type Options struct {
	Client  llm.Client
	Budgets BudgetFunc
	Logger  *slog.Logger
}

type base struct {
	stage  string
	client llm.Client
	budget Budget
	logger *slog.Logger
}

func newBase(stage string, opts Options) base {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	budget := Budget{MaxTokens: 1024, Temperature: 0.1}
	if opts.Budgets != nil {
		budget = opts.Budgets(stage)
	}
	return base{stage: stage, client: opts.Client, budget: budget, logger: logger.With(slog.String("stage", stage))}
}

// infer sends payload as JSON under the given instructions.
func (b base) infer(ctx context.Context, system string, payload any) (string, error) {
	if b.client == nil {
		return "", fmt.Errorf("%s: inference client not configured", b.stage)
	}
	user, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("%s: marshal payload: %w", b.stage, err)
	}
	text, err := b.client.Complete(ctx, llm.Request{
		Stage:       b.stage,
		System:      system,
		User:        string(user),
		MaxTokens:   b.budget.MaxTokens,
		Temperature: b.budget.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("%s inference: %w", b.stage, err)
	}
	return text, nil
}

// decode parses text through schema, recording repair outcomes. On failure the
// schema default is returned with the error.
func decode[T any](b base, text string, schema parser.Schema[T]) (T, error) {
	fields, report, err := parser.ParseDetailed(text)
	if err != nil {
		if report.RepairPos >= 0 {
			metrics.ObserveRepair(false)
		}
		return schema.Default(), fmt.Errorf("%s response: %w", b.stage, err)
	}
	if report.Repaired {
		metrics.ObserveRepair(true)
		b.logger.Debug("inference response repaired",
			slog.String("strategy", report.Strategy.String()),
			slog.Int("repair_pos", report.RepairPos))
	}
	return schema.FromFields(fields), nil
}
